package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/usecases"
	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UpdateHandler consumes Telegram updates delivered by webhook.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// WhatsAppDevice is the linked WhatsApp device.
type WhatsAppDevice interface {
	QRPNG(size int) ([]byte, error)
	IsLoggedIn() bool
	IsConnected() bool
	Logout(ctx context.Context) error
}

// RouterDeps wires the HTTP surface. Telegram and WhatsApp are nil when the
// corresponding intake is not served over HTTP.
type RouterDeps struct {
	Dashboard     *usecases.DashboardUsecase
	Variant       entities.Variant
	Telegram      UpdateHandler
	WebhookSecret string
	WhatsApp      WhatsAppDevice
	Logger        *slog.Logger
}

type Handler struct {
	dashboard     *usecases.DashboardUsecase
	variant       entities.Variant
	telegram      UpdateHandler
	webhookSecret string
	whatsapp      WhatsAppDevice
	logger        *slog.Logger
}

func NewHandler(deps RouterDeps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		dashboard:     deps.Dashboard,
		variant:       deps.Variant,
		telegram:      deps.Telegram,
		webhookSecret: deps.WebhookSecret,
		whatsapp:      deps.WhatsApp,
		logger:        logger,
	}
}

func SetupRoutes(r *gin.Engine, deps RouterDeps, middleware *Middleware) {
	h := NewHandler(deps)

	r.Use(RequestLogger(h.logger))
	r.Use(RequestMetrics())
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(1 << 20))

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if h.telegram != nil {
		r.POST("/webhook/telegram/:secret", h.TelegramWebhook)
	}

	api := r.Group("/api")
	api.Use(middleware.TokenRequired())
	api.Use(middleware.RateLimitPerIP(5, 10))
	{
		api.GET("/stats", h.GetStats)
		api.GET("/quotas", h.GetQuotas)
		api.GET("/quotas/:user_id", h.GetUserQuota)
		api.GET("/usage", h.GetUsage)

		if h.whatsapp != nil {
			wa := api.Group("/whatsapp")
			wa.GET("/qr", h.GetWhatsAppQR)
			wa.GET("/status", h.GetWhatsAppStatus)
			wa.POST("/logout", h.LogoutWhatsApp)
		}
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"variant": h.variant,
	})
}
