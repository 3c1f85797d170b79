package usecases

import (
	"sort"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/repository"
)

// UsageReader reads the audit log back.
type UsageReader interface {
	ReadAll() ([]entities.UsageLogEntry, error)
}

// SessionCounter reports how many conversations are held in memory.
type SessionCounter interface {
	Count() int
}

type DashboardSummary struct {
	Users          int            `json:"users"`
	QuestionsToday int            `json:"questions_today"`
	DocumentsToday int            `json:"documents_today"`
	ActiveSessions int            `json:"active_sessions"`
	UsageEntries   int            `json:"usage_entries"`
	ActionCounts   map[string]int `json:"action_counts"`
}

// DashboardUsecase serves read-only operational views of quotas and usage.
type DashboardUsecase struct {
	quotas   *repository.QuotaStore
	usage    UsageReader
	sessions SessionCounter
}

func NewDashboardUsecase(quotas *repository.QuotaStore, usage UsageReader, sessions SessionCounter) *DashboardUsecase {
	return &DashboardUsecase{
		quotas:   quotas,
		usage:    usage,
		sessions: sessions,
	}
}

func (u *DashboardUsecase) QuotaStatuses() []entities.QuotaStatus {
	return u.quotas.Statuses()
}

func (u *DashboardUsecase) UserQuota(userID int64) entities.QuotaStatus {
	return u.quotas.Status(userID)
}

// RecentUsage returns up to limit audit entries, newest first. A non-positive
// limit returns everything.
func (u *DashboardUsecase) RecentUsage(limit int) ([]entities.UsageLogEntry, error) {
	if u.usage == nil {
		return nil, nil
	}
	entries, err := u.usage.ReadAll()
	if err != nil {
		return nil, err
	}
	out := make([]entities.UsageLogEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (u *DashboardUsecase) Summary() (DashboardSummary, error) {
	statuses := u.quotas.Statuses()
	sum := DashboardSummary{Users: len(statuses), ActionCounts: map[string]int{}}
	for _, st := range statuses {
		sum.QuestionsToday += st.QuestionsUsed
		sum.DocumentsToday += st.DocumentsUsed
	}
	if u.sessions != nil {
		sum.ActiveSessions = u.sessions.Count()
	}
	if u.usage != nil {
		entries, err := u.usage.ReadAll()
		if err != nil {
			return sum, err
		}
		sum.UsageEntries = len(entries)
		for _, e := range entries {
			sum.ActionCounts[e.Action]++
		}
	}
	return sum, nil
}

// TopActions returns action names ordered by frequency.
func (s DashboardSummary) TopActions() []string {
	names := make([]string, 0, len(s.ActionCounts))
	for name := range s.ActionCounts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if s.ActionCounts[names[i]] != s.ActionCounts[names[j]] {
			return s.ActionCounts[names[i]] > s.ActionCounts[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}
