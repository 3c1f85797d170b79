package repository

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/interfaces"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/metrics"
)

// QuotaStore tracks per-user daily question and document counters and writes
// the whole table through a QuotaSnapshotter after every increment.
type QuotaStore struct {
	mu     sync.Mutex
	quotas map[int64]*entities.UserQuota

	// saveMu orders snapshot writes: the copy is taken while it is held, so a
	// later save never carries older data than an earlier one.
	saveMu sync.Mutex
	snap   interfaces.QuotaSnapshotter

	now           func() time.Time
	loc           *time.Location
	questionLimit int
	documentLimit int
	logger        *slog.Logger
}

type QuotaOption func(*QuotaStore)

func WithClock(now func() time.Time) QuotaOption {
	return func(s *QuotaStore) { s.now = now }
}

func WithLocation(loc *time.Location) QuotaOption {
	return func(s *QuotaStore) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLimits(questions, documents int) QuotaOption {
	return func(s *QuotaStore) {
		s.questionLimit = questions
		s.documentLimit = documents
	}
}

func WithQuotaLogger(logger *slog.Logger) QuotaOption {
	return func(s *QuotaStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewQuotaStore(snap interfaces.QuotaSnapshotter, opts ...QuotaOption) *QuotaStore {
	s := &QuotaStore{
		quotas:        make(map[int64]*entities.UserQuota),
		snap:          snap,
		now:           time.Now,
		loc:           time.Local,
		questionLimit: entities.DailyQuestionLimit,
		documentLimit: entities.DailyDocumentLimit,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory table with the persisted snapshot. A missing or
// unreadable snapshot leaves the table empty; it is never fatal.
func (s *QuotaStore) Load(ctx context.Context) {
	if s.snap == nil {
		return
	}
	data, err := s.snap.Load(ctx)
	if err != nil {
		s.logger.Error("quota snapshot unreadable, starting empty", "error", err)
		data = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotas = make(map[int64]*entities.UserQuota, len(data))
	for id, q := range data {
		q.UserID = id
		if q.QuestionsUsed < 0 {
			q.QuestionsUsed = 0
		}
		if q.DocumentsUsed < 0 {
			q.DocumentsUsed = 0
		}
		s.quotas[id] = &q
	}
	s.logger.Info("quota snapshot loaded", "users", len(s.quotas))
}

func (s *QuotaStore) today() string {
	return s.now().In(s.loc).Format(entities.DayLayout)
}

// entry returns the rolled-over record for userID. Callers hold s.mu.
func (s *QuotaStore) entry(userID int64) *entities.UserQuota {
	today := s.today()
	q, ok := s.quotas[userID]
	if !ok {
		q = &entities.UserQuota{UserID: userID, DayAnchor: today}
		s.quotas[userID] = q
		return q
	}
	q.RollOver(today)
	return q
}

func (s *QuotaStore) CanAsk(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry(userID).QuestionsUsed < s.questionLimit
}

func (s *QuotaStore) CanProcessDocument(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry(userID).DocumentsUsed < s.documentLimit
}

func (s *QuotaStore) IncrementQuestions(ctx context.Context, userID int64) {
	s.mu.Lock()
	s.entry(userID).QuestionsUsed++
	s.mu.Unlock()
	s.persist(ctx)
}

func (s *QuotaStore) IncrementDocuments(ctx context.Context, userID int64) {
	s.mu.Lock()
	s.entry(userID).DocumentsUsed++
	s.mu.Unlock()
	s.persist(ctx)
}

func (s *QuotaStore) Limits() (questions, documents int) {
	return s.questionLimit, s.documentLimit
}

func (s *QuotaStore) Status(userID int64) entities.QuotaStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status(s.entry(userID))
}

// Statuses returns the rolled-over status of every known user, ordered by id.
func (s *QuotaStore) Statuses() []entities.QuotaStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	today := s.today()
	out := make([]entities.QuotaStatus, 0, len(s.quotas))
	for _, q := range s.quotas {
		q.RollOver(today)
		out = append(out, s.status(q))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (s *QuotaStore) status(q *entities.UserQuota) entities.QuotaStatus {
	return entities.QuotaStatus{
		UserID:             q.UserID,
		DayAnchor:          q.DayAnchor,
		QuestionsUsed:      q.QuestionsUsed,
		QuestionLimit:      s.questionLimit,
		QuestionsRemaining: remaining(s.questionLimit, q.QuestionsUsed),
		DocumentsUsed:      q.DocumentsUsed,
		DocumentLimit:      s.documentLimit,
		DocumentsRemaining: remaining(s.documentLimit, q.DocumentsUsed),
	}
}

func remaining(limit, used int) int {
	if used >= limit {
		return 0
	}
	return limit - used
}

// Snapshot returns a copy of the table as stored.
func (s *QuotaStore) Snapshot() map[int64]entities.UserQuota {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]entities.UserQuota, len(s.quotas))
	for id, q := range s.quotas {
		out[id] = *q
	}
	return out
}

// persist is best effort: failures are logged and counted, never returned.
func (s *QuotaStore) persist(ctx context.Context) {
	if s.snap == nil {
		return
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	snapshot := s.Snapshot()
	if err := s.snap.Save(context.WithoutCancel(ctx), snapshot); err != nil {
		metrics.QuotaSnapshotErrorsTotal.Inc()
		s.logger.Error("quota snapshot save failed", "users", len(snapshot), "error", err)
	}
}
