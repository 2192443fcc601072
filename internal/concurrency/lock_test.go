package concurrency

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutexLockUnlockUpdatesStats(t *testing.T) {
	m := &Mutex{}
	m.Lock()
	m.Unlock()
	m.Lock()
	m.Unlock()

	stats := m.Stats()
	assert.Equal(t, int64(2), stats.Acquisitions)
}

func TestMutexTryLockOnlySucceedsWhenFree(t *testing.T) {
	m := &Mutex{}
	require.True(t, m.TryLock())
	assert.False(t, m.TryLock(), "already held, TryLock must fail")
	m.Unlock()
	assert.True(t, m.TryLock())
	m.Unlock()
}

func TestArenaLockSerializesConcurrentAccess(t *testing.T) {
	lock := NewArenaLock()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock.Lock()
			counter++
			lock.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, counter)
	assert.Equal(t, int64(100), lock.Stats().Acquisitions)
}

func TestHeadLockIndependentFromArenaLock(t *testing.T) {
	head := NewHeadLock()
	arena := NewArenaLock()

	head.Lock()
	assert.True(t, arena.TryLock(), "head and arena locks must not contend with each other")
	arena.Unlock()
	head.Unlock()
}
