package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type usageSlice []entities.UsageLogEntry

func (u usageSlice) ReadAll() ([]entities.UsageLogEntry, error) { return u, nil }

type sessionCount int

func (c sessionCount) Count() int { return int(c) }

func TestDashboardSummary(t *testing.T) {
	quotas := repository.NewQuotaStore(repository.NewMemorySnapshotter())
	ctx := context.Background()
	quotas.IncrementQuestions(ctx, 1)
	quotas.IncrementQuestions(ctx, 2)
	quotas.IncrementDocuments(ctx, 2)

	now := time.Now()
	usage := usageSlice{
		entities.NewUsageLogEntry(now, 1, "a", "start", ""),
		entities.NewUsageLogEntry(now, 1, "a", "ask_question", "q1"),
		entities.NewUsageLogEntry(now, 2, "b", "ask_question", "q2"),
	}
	u := NewDashboardUsecase(quotas, usage, sessionCount(3))

	sum, err := u.Summary()
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Users)
	assert.Equal(t, 2, sum.QuestionsToday)
	assert.Equal(t, 1, sum.DocumentsToday)
	assert.Equal(t, 3, sum.ActiveSessions)
	assert.Equal(t, 3, sum.UsageEntries)
	assert.Equal(t, []string{"ask_question", "start"}, sum.TopActions())

	recent, err := u.RecentUsage(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "q2", recent[0].Query)
	assert.Equal(t, "q1", recent[1].Query)

	assert.Equal(t, 1, u.UserQuota(2).DocumentsUsed)
	assert.Len(t, u.QuotaStatuses(), 2)
}
