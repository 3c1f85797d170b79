package entities

const (
	DailyQuestionLimit = 10
	DailyDocumentLimit = 10

	DayLayout = "2006-01-02"
)

// UserQuota holds one user's counters for the calendar day in DayAnchor.
type UserQuota struct {
	UserID        int64  `json:"user_id"`
	QuestionsUsed int    `json:"questions_used"`
	DocumentsUsed int    `json:"documents_used"`
	DayAnchor     string `json:"day_anchor"`
}

// RollOver resets both counters when the anchor precedes today. Anchors use
// DayLayout, so lexical order matches calendar order.
func (q *UserQuota) RollOver(today string) bool {
	if q.DayAnchor >= today {
		return false
	}
	q.QuestionsUsed = 0
	q.DocumentsUsed = 0
	q.DayAnchor = today
	return true
}

type QuotaStatus struct {
	UserID             int64  `json:"user_id"`
	DayAnchor          string `json:"day_anchor"`
	QuestionsUsed      int    `json:"questions_used"`
	QuestionLimit      int    `json:"question_limit"`
	QuestionsRemaining int    `json:"questions_remaining"`
	DocumentsUsed      int    `json:"documents_used"`
	DocumentLimit      int    `json:"document_limit"`
	DocumentsRemaining int    `json:"documents_remaining"`
}
