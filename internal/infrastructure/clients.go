package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MaxDownloadBytes caps a single file download from the chat platform.
const MaxDownloadBytes = 20 << 20

// telegramAPI is the subset of *tgbotapi.BotAPI the client relies on.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// TelegramClient is the Telegram side of the transport boundary.
type TelegramClient struct {
	api  telegramAPI
	http *http.Client

	// PlainText converts rich text for the resend after Telegram rejects
	// the HTML markup. Nil resends the text unchanged without a parse mode.
	PlainText func(string) string

	logger *slog.Logger
}

func NewTelegramClient(api telegramAPI, logger *slog.Logger) *TelegramClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &TelegramClient{
		api:    api,
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

func (t *TelegramClient) SendText(ctx context.Context, chatID, text string, opts entities.SendOptions) (entities.MessageRef, error) {
	id, err := parseChatID(chatID)
	if err != nil {
		return entities.MessageRef{}, err
	}

	msg := tgbotapi.NewMessage(id, text)
	msg.DisableWebPagePreview = opts.DisablePreview
	if opts.RichText {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	if kb := InlineKeyboard(opts.Menu); kb != nil {
		msg.ReplyMarkup = *kb
	}

	sent, err := t.api.Send(msg)
	if err != nil && opts.RichText && isParseError(err) {
		t.logger.Warn("telegram rejected markup, resending as plain text", "chat_id", chatID, "error", err)
		msg.ParseMode = ""
		msg.Text = t.plain(text)
		sent, err = t.api.Send(msg)
	}
	if err != nil {
		return entities.MessageRef{}, fmt.Errorf("telegram send: %w", err)
	}
	return entities.MessageRef{ChatID: chatID, MessageID: strconv.Itoa(sent.MessageID)}, nil
}

func (t *TelegramClient) EditText(ctx context.Context, ref entities.MessageRef, text string, opts entities.SendOptions) error {
	chatID, msgID, err := parseRef(ref)
	if err != nil {
		return err
	}

	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	if kb := InlineKeyboard(opts.Menu); kb != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, text, *kb)
	}
	edit.DisableWebPagePreview = opts.DisablePreview
	if opts.RichText {
		edit.ParseMode = tgbotapi.ModeHTML
	}

	_, err = t.api.Send(edit)
	if err != nil && opts.RichText && isParseError(err) {
		edit.ParseMode = ""
		edit.Text = t.plain(text)
		_, err = t.api.Send(edit)
	}
	if err != nil {
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		return fmt.Errorf("telegram edit: %w", err)
	}
	return nil
}

func (t *TelegramClient) DeleteMessage(ctx context.Context, ref entities.MessageRef) error {
	chatID, msgID, err := parseRef(ref)
	if err != nil {
		return err
	}
	if _, err := t.api.Request(tgbotapi.NewDeleteMessage(chatID, msgID)); err != nil {
		return fmt.Errorf("telegram delete: %w", err)
	}
	return nil
}

func (t *TelegramClient) SendFile(ctx context.Context, chatID string, file entities.RenderedFile, caption string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}

	doc := tgbotapi.NewDocument(id, tgbotapi.FileBytes{Name: file.Name, Bytes: file.Data})
	doc.Caption = caption
	doc.ParseMode = tgbotapi.ModeHTML

	_, err = t.api.Send(doc)
	if err != nil && isParseError(err) {
		doc.ParseMode = ""
		doc.Caption = t.plain(caption)
		_, err = t.api.Send(doc)
	}
	if err != nil {
		return fmt.Errorf("telegram send document: %w", err)
	}
	return nil
}

func (t *TelegramClient) SendTyping(ctx context.Context, chatID string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	_, err = t.api.Request(tgbotapi.NewChatAction(id, tgbotapi.ChatTyping))
	return err
}

// AnswerCallback stops the spinner on the pressed inline button.
func (t *TelegramClient) AnswerCallback(id string) {
	if _, err := t.api.Request(tgbotapi.NewCallback(id, "")); err != nil {
		t.logger.Debug("answer callback failed", "error", err)
	}
}

// Download fetches an uploaded file by its Telegram file id.
func (t *TelegramClient) Download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := t.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("telegram file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram download: http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("telegram download: %w", err)
	}
	if len(data) > MaxDownloadBytes {
		return nil, fmt.Errorf("telegram download: file exceeds %d bytes", MaxDownloadBytes)
	}
	return data, nil
}

// EventFromUpdate decodes an update into a core event. Updates the bot does
// not react to (edits, photos, channel posts) report false.
func (t *TelegramClient) EventFromUpdate(u tgbotapi.Update) (entities.Event, bool) {
	if cq := u.CallbackQuery; cq != nil {
		if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
			return entities.Event{}, false
		}
		chatID := strconv.FormatInt(cq.Message.Chat.ID, 10)
		return entities.Event{
			Kind:     entities.EventButton,
			Platform: entities.PlatformTelegram,
			UserID:   cq.From.ID,
			ChatID:   chatID,
			Username: cq.From.UserName,
			Action:   entities.Action(cq.Data),
			Source:   entities.MessageRef{ChatID: chatID, MessageID: strconv.Itoa(cq.Message.MessageID)},
		}, true
	}

	m := u.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return entities.Event{}, false
	}
	ev := entities.Event{
		Platform: entities.PlatformTelegram,
		UserID:   m.From.ID,
		ChatID:   strconv.FormatInt(m.Chat.ID, 10),
		Username: m.From.UserName,
	}

	switch {
	case m.IsCommand():
		ev.Kind = entities.EventCommand
		ev.Command = m.Command()
		ev.Text = m.CommandArguments()
	case m.Document != nil:
		fileID := m.Document.FileID
		ev.Kind = entities.EventFile
		ev.Text = m.Caption
		ev.File = &entities.FileRef{
			Name: m.Document.FileName,
			Size: int64(m.Document.FileSize),
			Fetch: func(ctx context.Context) ([]byte, error) {
				return t.Download(ctx, fileID)
			},
		}
	case m.Text != "":
		ev.Kind = entities.EventText
		ev.Text = m.Text
	default:
		return entities.Event{}, false
	}
	return ev, true
}

func (t *TelegramClient) plain(s string) string {
	if t.PlainText == nil {
		return s
	}
	return t.PlainText(s)
}

func isParseError(err error) bool {
	return strings.Contains(err.Error(), "can't parse entities")
}

func parseChatID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", s, err)
	}
	return id, nil
}

func parseRef(ref entities.MessageRef) (int64, int, error) {
	chatID, err := parseChatID(ref.ChatID)
	if err != nil {
		return 0, 0, err
	}
	msgID, err := strconv.Atoi(ref.MessageID)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid telegram message id %q: %w", ref.MessageID, err)
	}
	return chatID, msgID, nil
}
