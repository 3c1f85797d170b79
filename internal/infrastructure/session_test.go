package infrastructure

import (
	"sync"
	"testing"
	"time"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_CreatesIdleSession(t *testing.T) {
	sm := NewSessionManager(time.Hour)

	_, ok := sm.Peek(7)
	assert.False(t, ok)

	s, release := sm.Acquire(7)
	assert.Equal(t, entities.ModeIdle, s.State.Mode)
	assert.Equal(t, int64(7), s.State.UserID)
	s.State.Mode = entities.ModeAwaitingQuestion
	release()

	st, ok := sm.Peek(7)
	require.True(t, ok)
	assert.Equal(t, entities.ModeAwaitingQuestion, st.Mode)
	assert.Equal(t, 1, sm.Count())
}

func TestSessionManager_SerializesSameUser(t *testing.T) {
	sm := NewSessionManager(time.Hour)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release := sm.Acquire(1)
			defer release()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestSessionManager_UsersAreIndependent(t *testing.T) {
	sm := NewSessionManager(time.Hour)

	_, releaseA := sm.Acquire(1)
	defer releaseA()

	done := make(chan struct{})
	go func() {
		_, releaseB := sm.Acquire(2)
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second user blocked by the first")
	}
}

func TestSessionManager_Expires(t *testing.T) {
	sm := NewSessionManager(20 * time.Millisecond)
	_, release := sm.Acquire(3)
	release()

	require.Eventually(t, func() bool {
		_, ok := sm.Peek(3)
		return !ok
	}, time.Second, 10*time.Millisecond)
}
