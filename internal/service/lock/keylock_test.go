package lock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 5, 1, 14, 29, 45, 0, time.UTC)}
}

func TestLockIsExclusive(t *testing.T) {
	k := NewKeyLocks()
	assert.True(t, k.Lock("14:30|EURUSD|CALL", "fg"))
	assert.False(t, k.Lock("14:30|EURUSD|CALL", "bg"))
	assert.False(t, k.Lock("14:30|EURUSD|CALL", "fg"))
	assert.True(t, k.Lock("14:31|EURUSD|CALL", "bg"))
}

func TestUnlockOnlyByHolder(t *testing.T) {
	k := NewKeyLocks()
	k.Lock("a", "fg")
	k.Unlock("a", "bg")
	assert.False(t, k.Lock("a", "bg"))
	k.Unlock("a", "fg")
	assert.True(t, k.Lock("a", "bg"))
}

func TestHoldExpiresAfterGrace(t *testing.T) {
	clk := newClock()
	k := NewKeyLocks(WithClock(clk.Now), WithGrace(2*time.Second))

	assert.True(t, k.Lock("a", "fg"))
	clk.Advance(1999 * time.Millisecond)
	assert.False(t, k.Lock("a", "bg"))
	clk.Advance(time.Millisecond)
	assert.True(t, k.Lock("a", "bg"))
}

func TestReleaseAfterExtendsHold(t *testing.T) {
	clk := newClock()
	k := NewKeyLocks(WithClock(clk.Now), WithGrace(2*time.Second))

	k.Lock("a", "fg")
	clk.Advance(1500 * time.Millisecond)
	k.ReleaseAfter("a", "fg")
	clk.Advance(1500 * time.Millisecond)
	assert.Equal(t, []string{"a"}, k.InFlight())
	clk.Advance(500 * time.Millisecond)
	assert.Empty(t, k.InFlight())
}

func TestReleaseHolder(t *testing.T) {
	k := NewKeyLocks()
	k.Lock("a", "fg")
	k.Lock("b", "fg")
	k.Lock("c", "bg")

	assert.Equal(t, 2, k.ReleaseHolder("fg"))
	assert.Equal(t, []string{"c"}, k.InFlight())
}

func TestConcurrentLockSingleWinner(t *testing.T) {
	k := NewKeyLocks()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if k.Lock("k", "x") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
}
