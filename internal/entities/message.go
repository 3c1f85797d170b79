package entities

import "context"

type EventKind string

const (
	EventCommand EventKind = "command"
	EventButton  EventKind = "button"
	EventText    EventKind = "text"
	EventFile    EventKind = "file"
)

const (
	PlatformTelegram = "telegram"
	PlatformWhatsApp = "whatsapp"
)

// Event is one inbound user interaction, already decoded by a transport adapter.
type Event struct {
	ID       string
	Kind     EventKind
	Platform string // e.g., "telegram", "whatsapp"
	UserID   int64
	ChatID   string
	Username string
	Text     string
	Command  string     // without the leading slash
	Action   Action     // set for button events
	Source   MessageRef // message carrying the pressed button, if any
	File     *FileRef
}

// FileRef describes an uploaded file. Fetch downloads the content lazily so
// validation can run before any bytes are transferred.
type FileRef struct {
	Name  string
	Size  int64
	Fetch func(ctx context.Context) ([]byte, error)
}

type MessageRef struct {
	ChatID    string
	MessageID string
}

func (r MessageRef) IsZero() bool {
	return r.ChatID == "" && r.MessageID == ""
}

type MenuButton struct {
	Label  string
	Action Action
}

type Menu struct {
	Buttons []MenuButton
}

type SendOptions struct {
	Menu           *Menu
	RichText       bool // text uses the <b>/<i>/<code>/<a> dialect
	DisablePreview bool
}
