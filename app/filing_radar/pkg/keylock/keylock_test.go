package keylock

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLock_ExclusivePerKey(t *testing.T) {
	r := New()

	unlock, ok := r.TryLock("a")
	require.True(t, ok)
	assert.True(t, r.Held("a"))

	_, ok = r.TryLock("a")
	assert.False(t, ok)

	unlockB, ok := r.TryLock("b")
	require.True(t, ok)
	unlockB()

	unlock()
	unlock() // 重复释放无副作用
	assert.False(t, r.Held("a"))

	unlock, ok = r.TryLock("a")
	require.True(t, ok)
	unlock()
}

func TestTryLock_OneWinnerUnderContention(t *testing.T) {
	const n = 32
	r := New()
	var winners atomic.Int32
	var attempted, done sync.WaitGroup
	attempted.Add(n)

	for i := 0; i < n; i++ {
		done.Add(1)
		go func() {
			defer done.Done()
			unlock, ok := r.TryLock("k")
			attempted.Done()
			if ok {
				winners.Add(1)
				attempted.Wait()
				unlock()
			}
		}()
	}
	done.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.False(t, r.Held("k"))
}

func TestHeld_DoesNotBlockTryLock(t *testing.T) {
	r := New()
	stop := make(chan struct{})
	var pollers sync.WaitGroup
	for i := 0; i < 8; i++ {
		pollers.Add(1)
		go func() {
			defer pollers.Done()
			for {
				select {
				case <-stop:
					return
				default:
					r.Held("k")
					r.Held("unknown")
				}
			}
		}()
	}

	refused := 0
	for i := 0; i < 20000; i++ {
		unlock, ok := r.TryLock("k")
		if !ok {
			refused++
			continue
		}
		unlock()
	}
	close(stop)
	pollers.Wait()

	assert.Zero(t, refused)
	assert.Zero(t, r.Len())
}

func TestRegistriesAreIsolated(t *testing.T) {
	a, b := New(), New()
	unlock, ok := a.TryLock("k")
	require.True(t, ok)
	defer unlock()

	_, ok = b.TryLock("k")
	assert.True(t, ok)
}
