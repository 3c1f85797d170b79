package infrastructure

import (
	"context"
	"sync"
	"testing"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

type fakeWhatsApp struct {
	mu       sync.Mutex
	sent     []*waProto.Message
	presence []types.ChatPresence
	revoked  []types.MessageID
	edited   []types.MessageID
}

func (f *fakeWhatsApp) SendMessage(ctx context.Context, to types.JID, message *waProto.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, message)
	return whatsmeow.SendResponse{ID: types.MessageID("MSG1")}, nil
}

func (f *fakeWhatsApp) SendChatPresence(ctx context.Context, jid types.JID, state types.ChatPresence, media types.ChatPresenceMedia) error {
	f.presence = append(f.presence, state)
	return nil
}

func (f *fakeWhatsApp) Upload(ctx context.Context, plaintext []byte, appInfo whatsmeow.MediaType) (whatsmeow.UploadResponse, error) {
	return whatsmeow.UploadResponse{URL: "https://mmg/x", DirectPath: "/x", FileLength: uint64(len(plaintext))}, nil
}

func (f *fakeWhatsApp) BuildRevoke(chat, sender types.JID, id types.MessageID) *waProto.Message {
	f.revoked = append(f.revoked, id)
	return &waProto.Message{Conversation: proto.String("revoke")}
}

func (f *fakeWhatsApp) BuildEdit(chat types.JID, id types.MessageID, newContent *waProto.Message) *waProto.Message {
	f.edited = append(f.edited, id)
	return newContent
}

func (f *fakeWhatsApp) Download(ctx context.Context, msg whatsmeow.DownloadableMessage) ([]byte, error) {
	return []byte("file body"), nil
}

const waChat = "79001234567@s.whatsapp.net"

func incoming(msg *waProto.Message) *events.Message {
	jid, _ := types.ParseJID(waChat)
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: jid, Sender: jid},
			PushName:      "Иван",
		},
		Message: msg,
	}
}

func TestWhatsAppManager_NumberedMenuRoundTrip(t *testing.T) {
	api := &fakeWhatsApp{}
	m := NewWhatsAppManager(api, nil, nil)

	menu := &entities.Menu{Buttons: []entities.MenuButton{
		{Label: "Задать вопрос", Action: entities.ActionAskQuestion},
		{Label: "Информация", Action: entities.ActionInfo},
	}}
	ref, err := m.SendText(context.Background(), waChat, "<b>Меню</b>", entities.SendOptions{Menu: menu, RichText: true})
	require.NoError(t, err)
	assert.Equal(t, "MSG1", ref.MessageID)
	assert.Equal(t, "*Меню*\n\n1. Задать вопрос\n2. Информация", api.sent[0].GetConversation())

	ev, ok := m.EventFromMessage(incoming(&waProto.Message{Conversation: proto.String("2")}))
	require.True(t, ok)
	assert.Equal(t, entities.EventButton, ev.Kind)
	assert.Equal(t, entities.ActionInfo, ev.Action)
	assert.Equal(t, int64(79001234567), ev.UserID)
	assert.Equal(t, "Иван", ev.Username)

	ev, ok = m.EventFromMessage(incoming(&waProto.Message{Conversation: proto.String("7")}))
	require.True(t, ok)
	assert.Equal(t, entities.EventText, ev.Kind)
}

func TestWhatsAppManager_EventDecoding(t *testing.T) {
	m := NewWhatsAppManager(&fakeWhatsApp{}, nil, nil)

	ev, ok := m.EventFromMessage(incoming(&waProto.Message{Conversation: proto.String("/Start")}))
	require.True(t, ok)
	assert.Equal(t, entities.EventCommand, ev.Kind)
	assert.Equal(t, "start", ev.Command)

	ev, ok = m.EventFromMessage(incoming(&waProto.Message{ExtendedTextMessage: &waProto.ExtendedTextMessage{Text: proto.String(" Вопрос ")}}))
	require.True(t, ok)
	assert.Equal(t, "Вопрос", ev.Text)

	ev, ok = m.EventFromMessage(incoming(&waProto.Message{DocumentMessage: &waProto.DocumentMessage{
		FileName:   proto.String("contract.pdf"),
		FileLength: proto.Uint64(1024),
	}}))
	require.True(t, ok)
	assert.Equal(t, entities.EventFile, ev.Kind)
	assert.Equal(t, "contract.pdf", ev.File.Name)
	assert.Equal(t, int64(1024), ev.File.Size)
	data, err := ev.File.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file body", string(data))

	own := incoming(&waProto.Message{Conversation: proto.String("x")})
	own.Info.IsFromMe = true
	_, ok = m.EventFromMessage(own)
	assert.False(t, ok)
}

func TestWhatsAppManager_Outbound(t *testing.T) {
	api := &fakeWhatsApp{}
	m := NewWhatsAppManager(api, nil, nil)
	ctx := context.Background()
	ref := entities.MessageRef{ChatID: waChat, MessageID: "M9"}

	require.NoError(t, m.SendTyping(ctx, waChat))
	require.NoError(t, m.EditText(ctx, ref, "new", entities.SendOptions{}))
	require.NoError(t, m.DeleteMessage(ctx, ref))
	require.NoError(t, m.SendFile(ctx, waChat, entities.RenderedFile{Name: "a.docx", Data: []byte("PK"), MIMEType: entities.MIMEDocx}, "<b>Готово</b>"))

	assert.Equal(t, []types.ChatPresence{types.ChatPresenceComposing}, api.presence)
	assert.Equal(t, []types.MessageID{"M9"}, api.edited)
	assert.Equal(t, []types.MessageID{"M9"}, api.revoked)
	doc := api.sent[len(api.sent)-1].GetDocumentMessage()
	require.NotNil(t, doc)
	assert.Equal(t, "a.docx", doc.GetFileName())
	assert.Equal(t, "*Готово*", doc.GetCaption())
	assert.Equal(t, uint64(2), doc.GetFileLength())
}

func TestFormatWhatsApp(t *testing.T) {
	in := "<b>Итог</b> <i>кратко</i> <code>ст. 10</code> <a href='https://pocket-consultant.ru'>сайт</a>"
	assert.Equal(t, "*Итог* _кратко_ ```ст. 10``` сайт (https://pocket-consultant.ru)", FormatWhatsApp(in))
}

func TestFormatWhatsAppDecodesEntities(t *testing.T) {
	assert.Equal(t, "*сумма* < 100 000 & более", FormatWhatsApp("<b>сумма</b> &lt; 100 000 &amp; более"))
}
