package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/config"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/infrastructure"
	apihttp "github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/interfaces/http"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/prompts"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/repository"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/usecases"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const typingInterval = 4 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the stats HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := config.SetupLogger(cfg.Log)

	variant, err := entities.ParseVariant(cfg.Bot.Variant)
	if err != nil {
		return err
	}

	quotas, closeQuotas, err := openQuotaStore(ctx, cfg, repository.WithQuotaLogger(logger))
	if err != nil {
		return err
	}
	defer closeQuotas()

	usage := repository.NewUsageRepository(cfg.Usage.LogFile)
	sessions := infrastructure.NewSessionManager(cfg.Session.TTL)
	catalog := prompts.Default()

	settings := usecases.DefaultGatewaySettings()
	settings.QuestionModel = cfg.Perplexity.Model
	settings.DocumentModel = cfg.OpenRouter.Model
	gateway := usecases.NewRemoteGateway(
		infrastructure.NewPerplexityClient(cfg.Perplexity.BaseURL, cfg.Perplexity.APIKey, cfg.Perplexity.Model, cfg.Perplexity.Timeout),
		infrastructure.NewOpenRouterClient(cfg.OpenRouter.BaseURL, cfg.OpenRouter.APIKey, cfg.OpenRouter.Model, cfg.OpenRouter.Timeout),
		catalog,
		usecases.WithGatewaySettings(settings),
		usecases.WithGatewayLogger(logger),
	)
	pipeline := usecases.NewDocumentPipeline(gateway,
		infrastructure.NewDocumentExtractor(),
		infrastructure.NewDocxWriter(),
		catalog,
		usecases.WithPipelineLogger(logger),
	)

	service := usecases.NewMessageService(sessions, quotas, gateway, pipeline, usage, catalog,
		usecases.ServiceConfig{
			Variant:          variant,
			KeepModeOnReject: cfg.Session.KeepModeOnReject,
			TypingInterval:   typingInterval,
		},
		usecases.WithServiceLogger(logger),
	)

	limiter := infrastructure.NewMessageRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
	defer limiter.Close()
	dispatcher := infrastructure.NewEventDispatcher(service.HandleEvent, limiter, logger)

	deps := apihttp.RouterDeps{
		Dashboard:     usecases.NewDashboardUsecase(quotas, usage, sessions),
		Variant:       variant,
		WebhookSecret: cfg.Telegram.WebhookSecret,
		Logger:        logger,
	}

	// Intake sources stopped before the dispatcher drains.
	pollingDone := make(chan struct{})
	close(pollingDone)
	var wa *infrastructure.WhatsAppClient

	if cfg.Telegram.Token != "" {
		bot, err := infrastructure.ConnectBot(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		client := infrastructure.NewTelegramClient(bot, logger)
		client.PlainText = usecases.StripTags
		service.RegisterTransport(entities.PlatformTelegram, client)
		manager := infrastructure.NewTelegramBotManager(bot, client, dispatcher, logger)

		if cfg.Telegram.Mode == "webhook" {
			if err := manager.RegisterWebhook(cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
				return fmt.Errorf("telegram webhook: %w", err)
			}
			deps.Telegram = manager
		} else {
			pollingDone = make(chan struct{})
			go func() {
				defer close(pollingDone)
				if err := manager.StartPolling(ctx); err != nil {
					logger.Error("telegram polling stopped", "error", err)
				}
			}()
		}
		logger.Info("telegram bot ready", "username", bot.Self.UserName, "mode", cfg.Telegram.Mode)
	}

	if cfg.WhatsApp.Enabled {
		client, err := infrastructure.NewWhatsAppClient(ctx, cfg.WhatsApp.DBPath, logger)
		if err != nil {
			return fmt.Errorf("whatsapp: %w", err)
		}
		wa = client
		defer wa.Disconnect()
		manager := infrastructure.NewWhatsAppManager(wa.Client, dispatcher, logger)
		wa.AddHandler(manager.HandleEvent)
		service.RegisterTransport(entities.PlatformWhatsApp, manager)
		if err := wa.Connect(ctx); err != nil {
			return fmt.Errorf("whatsapp connect: %w", err)
		}
		deps.WhatsApp = wa
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	apihttp.SetupRoutes(r, deps, apihttp.NewMiddleware(cfg.HTTP.StatsToken))

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr, "variant", variant)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	<-pollingDone
	if wa != nil {
		wa.Disconnect()
	}
	dispatcher.Close()
	slog.Info("stopped")
	return serveErr
}
