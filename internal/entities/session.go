package entities

import "fmt"

type Mode string

const (
	ModeIdle                       Mode = "idle"
	ModeAwaitingQuestion           Mode = "awaiting_question"
	ModeAwaitingAnalyzeUpload      Mode = "awaiting_analyze_upload"
	ModeAwaitingEditUpload         Mode = "awaiting_edit_upload"
	ModeAwaitingCreateInstructions Mode = "awaiting_create_instructions"
)

// AwaitsFile reports whether the mode expects an uploaded document.
func (m Mode) AwaitsFile() bool {
	return m == ModeAwaitingAnalyzeUpload || m == ModeAwaitingEditUpload
}

// AwaitsText reports whether the mode expects a text message.
func (m Mode) AwaitsText() bool {
	return m == ModeAwaitingQuestion || m == ModeAwaitingCreateInstructions
}

type SessionState struct {
	UserID         int64
	Mode           Mode
	PendingPayload string
}

func (s *SessionState) Reset() {
	s.Mode = ModeIdle
	s.PendingPayload = ""
}

type Action string

const (
	ActionAskQuestion     Action = "ask_question"
	ActionAnalyzeDocument Action = "analyze_document"
	ActionEditDocument    Action = "edit_document"
	ActionCreateDocument  Action = "create_document"
	ActionInfo            Action = "info"
	ActionBackToMain      Action = "back_to_main"
)

// Variant selects which document actions the bot offers.
type Variant string

const (
	VariantEdit   Variant = "edit"
	VariantCreate Variant = "create"
	VariantFull   Variant = "full"
)

func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantEdit, VariantCreate, VariantFull:
		return Variant(s), nil
	case "":
		return VariantEdit, nil
	}
	return "", fmt.Errorf("unknown bot variant %q", s)
}

// Actions lists the main-menu actions in display order.
func (v Variant) Actions() []Action {
	switch v {
	case VariantCreate:
		return []Action{ActionAskQuestion, ActionAnalyzeDocument, ActionCreateDocument, ActionInfo}
	case VariantFull:
		return []Action{ActionAskQuestion, ActionAnalyzeDocument, ActionEditDocument, ActionCreateDocument, ActionInfo}
	default:
		return []Action{ActionAskQuestion, ActionAnalyzeDocument, ActionEditDocument, ActionInfo}
	}
}

func (v Variant) Supports(a Action) bool {
	if a == ActionBackToMain {
		return true
	}
	for _, candidate := range v.Actions() {
		if candidate == a {
			return true
		}
	}
	return false
}
