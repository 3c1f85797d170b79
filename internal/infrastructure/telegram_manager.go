package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramBotManager owns the bot's update intake: long polling or a
// webhook registration, and the decoding of each update into an event.
type TelegramBotManager struct {
	bot        *tgbotapi.BotAPI
	client     *TelegramClient
	dispatcher *EventDispatcher
	logger     *slog.Logger
}

func NewTelegramBotManager(bot *tgbotapi.BotAPI, client *TelegramClient, dispatcher *EventDispatcher, logger *slog.Logger) *TelegramBotManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &TelegramBotManager{
		bot:        bot,
		client:     client,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// ConnectBot validates the token and returns the bot API handle.
func ConnectBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return bot, nil
}

// StartPolling runs the update loop until ctx is cancelled. Any webhook
// left over from a previous deployment is removed first.
func (m *TelegramBotManager) StartPolling(ctx context.Context) error {
	if _, err := m.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		m.logger.Warn("failed to remove webhook before polling", "error", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := m.bot.GetUpdatesChan(u)

	m.logger.Info("telegram polling started", "bot", m.bot.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			m.bot.StopReceivingUpdates()
			m.logger.Info("telegram polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			m.HandleUpdate(ctx, update)
		}
	}
}

// RegisterWebhook points Telegram at baseURL/webhook/telegram/<secret>.
func (m *TelegramBotManager) RegisterWebhook(baseURL, secret string) error {
	wh, err := tgbotapi.NewWebhook(strings.TrimRight(baseURL, "/") + "/webhook/telegram/" + secret)
	if err != nil {
		return fmt.Errorf("build webhook: %w", err)
	}
	if _, err := m.bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	m.logger.Info("telegram webhook registered", "bot", m.bot.Self.UserName)
	return nil
}

// HandleUpdate acknowledges button presses and dispatches the decoded event.
func (m *TelegramBotManager) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if cq := update.CallbackQuery; cq != nil {
		m.client.AnswerCallback(cq.ID)
	}
	ev, ok := m.client.EventFromUpdate(update)
	if !ok {
		return
	}
	m.dispatcher.Dispatch(ctx, ev)
}
