package repository

import (
	"context"
	"sync"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
)

// MemorySnapshotter keeps snapshots in process. Used for dry runs and tests.
type MemorySnapshotter struct {
	mu      sync.Mutex
	data    map[int64]entities.UserQuota
	saves   int
	LoadErr error
	SaveErr error
}

func NewMemorySnapshotter() *MemorySnapshotter {
	return &MemorySnapshotter{data: map[int64]entities.UserQuota{}}
}

func (m *MemorySnapshotter) Load(_ context.Context) (map[int64]entities.UserQuota, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return copyQuotas(m.data), nil
}

func (m *MemorySnapshotter) Save(_ context.Context, quotas map[int64]entities.UserQuota) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.data = copyQuotas(quotas)
	m.saves++
	return nil
}

func (m *MemorySnapshotter) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func copyQuotas(in map[int64]entities.UserQuota) map[int64]entities.UserQuota {
	out := make(map[int64]entities.UserQuota, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
