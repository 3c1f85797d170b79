package entities

import (
	"time"
	"unicode/utf8"
)

const usageQueryPreview = 100

// UsageLogEntry is one line of the append-only audit log.
type UsageLogEntry struct {
	Timestamp string `json:"timestamp"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Action    string `json:"action"`
	Query     string `json:"query"`
}

func NewUsageLogEntry(at time.Time, userID int64, username, action, query string) UsageLogEntry {
	if username == "" {
		username = "Unknown"
	}
	return UsageLogEntry{
		Timestamp: at.Format(time.RFC3339),
		UserID:    userID,
		Username:  username,
		Action:    action,
		Query:     previewQuery(query),
	}
}

func previewQuery(q string) string {
	if utf8.RuneCountInString(q) <= usageQueryPreview {
		return q
	}
	return string([]rune(q)[:usageQueryPreview]) + "..."
}
