package infrastructure

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

// whatsappAPI is the subset of *whatsmeow.Client the transport relies on.
type whatsappAPI interface {
	SendMessage(ctx context.Context, to types.JID, message *waProto.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error)
	SendChatPresence(ctx context.Context, jid types.JID, state types.ChatPresence, media types.ChatPresenceMedia) error
	Upload(ctx context.Context, plaintext []byte, appInfo whatsmeow.MediaType) (whatsmeow.UploadResponse, error)
	BuildRevoke(chat, sender types.JID, id types.MessageID) *waProto.Message
	BuildEdit(chat types.JID, id types.MessageID, newContent *waProto.Message) *waProto.Message
	Download(ctx context.Context, msg whatsmeow.DownloadableMessage) ([]byte, error)
}

// WhatsAppManager is the WhatsApp side of the transport boundary. WhatsApp
// has no inline buttons, so menus are rendered as numbered lines and a reply
// with the number is decoded as the button press.
type WhatsAppManager struct {
	api        whatsappAPI
	dispatcher *EventDispatcher
	logger     *slog.Logger

	mu    sync.Mutex
	menus map[string][]entities.Action
}

func NewWhatsAppManager(api whatsappAPI, dispatcher *EventDispatcher, logger *slog.Logger) *WhatsAppManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &WhatsAppManager{
		api:        api,
		dispatcher: dispatcher,
		logger:     logger,
		menus:      make(map[string][]entities.Action),
	}
}

func (m *WhatsAppManager) SendText(ctx context.Context, chatID, text string, opts entities.SendOptions) (entities.MessageRef, error) {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return entities.MessageRef{}, fmt.Errorf("invalid whatsapp chat %q: %w", chatID, err)
	}
	body := m.render(chatID, text, opts)

	resp, err := m.api.SendMessage(ctx, jid, &waProto.Message{Conversation: proto.String(body)})
	if err != nil {
		return entities.MessageRef{}, fmt.Errorf("whatsapp send: %w", err)
	}
	return entities.MessageRef{ChatID: chatID, MessageID: string(resp.ID)}, nil
}

func (m *WhatsAppManager) EditText(ctx context.Context, ref entities.MessageRef, text string, opts entities.SendOptions) error {
	jid, err := types.ParseJID(ref.ChatID)
	if err != nil {
		return fmt.Errorf("invalid whatsapp chat %q: %w", ref.ChatID, err)
	}
	body := m.render(ref.ChatID, text, opts)

	edit := m.api.BuildEdit(jid, types.MessageID(ref.MessageID), &waProto.Message{Conversation: proto.String(body)})
	if _, err := m.api.SendMessage(ctx, jid, edit); err != nil {
		return fmt.Errorf("whatsapp edit: %w", err)
	}
	return nil
}

func (m *WhatsAppManager) DeleteMessage(ctx context.Context, ref entities.MessageRef) error {
	jid, err := types.ParseJID(ref.ChatID)
	if err != nil {
		return fmt.Errorf("invalid whatsapp chat %q: %w", ref.ChatID, err)
	}
	revoke := m.api.BuildRevoke(jid, types.EmptyJID, types.MessageID(ref.MessageID))
	if _, err := m.api.SendMessage(ctx, jid, revoke); err != nil {
		return fmt.Errorf("whatsapp revoke: %w", err)
	}
	return nil
}

func (m *WhatsAppManager) SendFile(ctx context.Context, chatID string, file entities.RenderedFile, caption string) error {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("invalid whatsapp chat %q: %w", chatID, err)
	}

	up, err := m.api.Upload(ctx, file.Data, whatsmeow.MediaDocument)
	if err != nil {
		return fmt.Errorf("whatsapp upload: %w", err)
	}
	msg := &waProto.Message{DocumentMessage: &waProto.DocumentMessage{
		URL:           proto.String(up.URL),
		DirectPath:    proto.String(up.DirectPath),
		MediaKey:      up.MediaKey,
		FileEncSHA256: up.FileEncSHA256,
		FileSHA256:    up.FileSHA256,
		FileLength:    proto.Uint64(up.FileLength),
		Mimetype:      proto.String(file.MIMEType),
		FileName:      proto.String(file.Name),
		Title:         proto.String(file.Name),
		Caption:       proto.String(FormatWhatsApp(caption)),
	}}
	if _, err := m.api.SendMessage(ctx, jid, msg); err != nil {
		return fmt.Errorf("whatsapp send document: %w", err)
	}
	return nil
}

func (m *WhatsAppManager) SendTyping(ctx context.Context, chatID string) error {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return err
	}
	return m.api.SendChatPresence(ctx, jid, types.ChatPresenceComposing, types.ChatPresenceMediaText)
}

// HandleEvent is registered with the whatsmeow client.
func (m *WhatsAppManager) HandleEvent(evt interface{}) {
	msg, ok := evt.(*events.Message)
	if !ok {
		return
	}
	ev, ok := m.EventFromMessage(msg)
	if !ok {
		return
	}
	m.dispatcher.Dispatch(context.Background(), ev)
}

// EventFromMessage decodes an incoming private message. Own messages, group
// chats and unsupported payloads report false.
func (m *WhatsAppManager) EventFromMessage(evt *events.Message) (entities.Event, bool) {
	if evt.Info.IsFromMe || evt.Info.IsGroup || evt.Message == nil {
		return entities.Event{}, false
	}
	userID, err := strconv.ParseInt(evt.Info.Sender.User, 10, 64)
	if err != nil {
		return entities.Event{}, false
	}
	chatID := evt.Info.Chat.String()
	ev := entities.Event{
		Platform: entities.PlatformWhatsApp,
		UserID:   userID,
		ChatID:   chatID,
		Username: evt.Info.PushName,
	}

	if doc := evt.Message.GetDocumentMessage(); doc != nil {
		ev.Kind = entities.EventFile
		ev.Text = doc.GetCaption()
		ev.File = &entities.FileRef{
			Name: doc.GetFileName(),
			Size: int64(doc.GetFileLength()),
			Fetch: func(ctx context.Context) ([]byte, error) {
				return m.api.Download(ctx, doc)
			},
		}
		return ev, true
	}

	text := evt.Message.GetConversation()
	if text == "" {
		text = evt.Message.GetExtendedTextMessage().GetText()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return entities.Event{}, false
	}

	if strings.HasPrefix(text, "/") {
		fields := strings.Fields(text[1:])
		if len(fields) > 0 {
			ev.Kind = entities.EventCommand
			ev.Command = strings.ToLower(fields[0])
			return ev, true
		}
	}
	if action, ok := m.menuChoice(chatID, text); ok {
		ev.Kind = entities.EventButton
		ev.Action = action
		return ev, true
	}
	ev.Kind = entities.EventText
	ev.Text = text
	return ev, true
}

// render formats the text and appends the numbered menu, remembering it so a
// numeric reply can be decoded.
func (m *WhatsAppManager) render(chatID, text string, opts entities.SendOptions) string {
	if opts.RichText {
		text = FormatWhatsApp(text)
	}
	if opts.Menu == nil || len(opts.Menu.Buttons) == 0 {
		return text
	}

	var sb strings.Builder
	sb.WriteString(text)
	sb.WriteString("\n")
	actions := make([]entities.Action, 0, len(opts.Menu.Buttons))
	for i, b := range opts.Menu.Buttons {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, b.Label)
		actions = append(actions, b.Action)
	}

	m.mu.Lock()
	m.menus[chatID] = actions
	m.mu.Unlock()
	return sb.String()
}

func (m *WhatsAppManager) menuChoice(chatID, text string) (entities.Action, bool) {
	n, err := strconv.Atoi(strings.TrimSuffix(text, "."))
	if err != nil {
		return "", false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	actions := m.menus[chatID]
	if n < 1 || n > len(actions) {
		return "", false
	}
	return actions[n-1], true
}

var (
	waBoldRe = regexp.MustCompile(`(?s)<b>(.*?)</b>`)
	waItalRe = regexp.MustCompile(`(?s)<i>(.*?)</i>`)
	waCodeRe = regexp.MustCompile(`(?s)<code>(.*?)</code>`)
	waLinkRe = regexp.MustCompile(`(?s)<a\s+href=['"]([^'"]+)['"]\s*>(.*?)</a>`)
	waTagRe  = regexp.MustCompile(`</?(?:b|i|code|a)(?:\s[^>]*)?>`)
)

// FormatWhatsApp rewrites the <b>/<i>/<code>/<a> dialect into WhatsApp
// markup.
func FormatWhatsApp(s string) string {
	s = waLinkRe.ReplaceAllString(s, "$2 ($1)")
	s = waBoldRe.ReplaceAllString(s, "*$1*")
	s = waItalRe.ReplaceAllString(s, "_${1}_")
	s = waCodeRe.ReplaceAllString(s, "```$1```")
	return html.UnescapeString(waTagRe.ReplaceAllString(s, ""))
}
