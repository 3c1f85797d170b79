package interfaces

import (
	"context"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
)

type TypingNotifier interface {
	SendTyping(ctx context.Context, chatID string) error
}

// Transport is the outbound side of a chat platform adapter.
type Transport interface {
	TypingNotifier
	SendText(ctx context.Context, chatID, text string, opts entities.SendOptions) (entities.MessageRef, error)
	EditText(ctx context.Context, ref entities.MessageRef, text string, opts entities.SendOptions) error
	DeleteMessage(ctx context.Context, ref entities.MessageRef) error
	SendFile(ctx context.Context, chatID string, file entities.RenderedFile, caption string) error
}

type ChatCompleter interface {
	Complete(ctx context.Context, req entities.RemoteRequest) (string, error)
}

// QuotaSnapshotter persists the whole quota table at once.
type QuotaSnapshotter interface {
	Load(ctx context.Context) (map[int64]entities.UserQuota, error)
	Save(ctx context.Context, quotas map[int64]entities.UserQuota) error
}

type TextExtractor interface {
	Extract(data []byte, ext string) (string, error)
}

type DocumentRenderer interface {
	RenderDocx(blocks []entities.DocBlock) ([]byte, error)
}

type UsageLogger interface {
	Append(entry entities.UsageLogEntry) error
}
