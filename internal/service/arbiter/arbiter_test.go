package arbiter

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestTryAcquire(t *testing.T) {
	a := New(nil)

	assert.True(t, a.TryAcquire("fg"))
	assert.True(t, a.TryAcquire("fg"), "re-acquire by owner is idempotent")
	assert.False(t, a.TryAcquire("bg"))
	assert.True(t, a.IsOwner("fg"))
	assert.False(t, a.IsOwner("bg"))

	st := a.Status()
	require.True(t, st.Active())
	assert.Equal(t, "fg", st.OwnerID)
	assert.NotNil(t, st.AcquiredAt)
}

func TestReleaseByNonOwnerIgnored(t *testing.T) {
	a := New(nil)
	require.True(t, a.TryAcquire("fg"))

	a.Release("bg")
	assert.Equal(t, "fg", a.Owner())

	a.Release("fg")
	assert.False(t, a.Status().Active())
	assert.Nil(t, a.Status().AcquiredAt)
	assert.True(t, a.TryAcquire("bg"))
}

func TestHeartbeat(t *testing.T) {
	a := New(nil)
	assert.False(t, a.Heartbeat("fg"))
	require.True(t, a.TryAcquire("fg"))
	assert.True(t, a.Heartbeat("fg"))
	assert.False(t, a.Heartbeat("bg"))
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	a := New(nil)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if a.TryAcquire(string(rune('a' + i))) {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
}

func TestOwnerTTL(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}

	t.Run("disabled keeps owner", func(t *testing.T) {
		a := New(nil, WithClock(clk.Now))
		require.True(t, a.TryAcquire("fg"))
		clk.Advance(time.Hour)
		assert.False(t, a.TryAcquire("bg"))
	})

	t.Run("stale owner is superseded", func(t *testing.T) {
		a := New(nil, WithClock(clk.Now), WithOwnerTTL(10*time.Second))
		require.True(t, a.TryAcquire("fg"))

		clk.Advance(5 * time.Second)
		require.True(t, a.Heartbeat("fg"))
		clk.Advance(8 * time.Second)
		assert.False(t, a.TryAcquire("bg"), "heartbeat keeps the owner alive")

		clk.Advance(5 * time.Second)
		assert.True(t, a.TryAcquire("bg"))
		assert.False(t, a.Heartbeat("fg"), "superseded owner learns it lost ownership")
	})
}
