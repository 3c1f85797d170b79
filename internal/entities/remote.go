package entities

type DocumentVariant string

const (
	DocumentAnalyze DocumentVariant = "analyze"
	DocumentEdit    DocumentVariant = "edit"
	DocumentCreate  DocumentVariant = "create"
)

// RemoteRequest is a single chat-completion call. Model may be empty, in
// which case the backend's configured default applies.
type RemoteRequest struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// RemoteResponse always carries user-presentable Text. Err records why the
// call failed, in which case Text is an apology.
type RemoteResponse struct {
	Text string
	Err  error
}

func (r RemoteResponse) OK() bool {
	return r.Err == nil
}
