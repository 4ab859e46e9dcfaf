package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPublisher struct {
	mu     sync.Mutex
	topics []string
	got    []AggregatedLogEntry
	err    error
}

func (p *memPublisher) Publish(_ context.Context, topic string, _ []byte, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.got = append(p.got, value.([]AggregatedLogEntry)...)
	return p.err
}

func (p *memPublisher) entries() []AggregatedLogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]AggregatedLogEntry(nil), p.got...)
}

func TestCollectorGroupsIdenticalEntries(t *testing.T) {
	pub := &memPublisher{}
	c := NewLogCollector(&CollectionConfig{CountThreshold: 10, Topic: "summary", Publisher: pub})

	assert.True(t, c.AddLog("warn", "skipping malformed signal", "tick", String("key", "9a:00|EURUSD|CALL")))
	assert.False(t, c.AddLog("warn", "skipping malformed signal", "tick", String("key", "9a:00|EURUSD|CALL")))
	assert.True(t, c.AddLog("warn", "skipping malformed signal", "tick", String("key", "xx|EURUSD|PUT")))
	assert.Equal(t, 2, c.Pending())

	require.NoError(t, c.Close())
	assert.Zero(t, c.Pending())

	got := pub.entries()
	require.Len(t, got, 2)
	counts := map[string]int{}
	for _, e := range got {
		counts[e.Fields["key"].(string)] = e.Count
		assert.Equal(t, "tick", e.Source)
	}
	assert.Equal(t, map[string]int{"9a:00|EURUSD|CALL": 2, "xx|EURUSD|PUT": 1}, counts)
	assert.Equal(t, []string{"summary"}, pub.topics)
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &memPublisher{}
	c := NewLogCollector(&CollectionConfig{CountThreshold: 2, Publisher: pub})
	defer c.Close()

	c.AddLog("error", "notification dispatch failed", "fire", Error(errors.New("a")))
	c.AddLog("error", "notification dispatch failed", "fire", Error(errors.New("b")))

	require.Eventually(t, func() bool { return len(pub.entries()) == 2 }, time.Second, time.Millisecond)
	assert.True(t, c.AddLog("error", "notification dispatch failed", "fire", Error(errors.New("a"))),
		"a flush starts a new window")
}

func TestCollectorPeriodicFlush(t *testing.T) {
	pub := &memPublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: 5 * time.Millisecond, CountThreshold: 100, Publisher: pub})
	defer c.Close()

	c.AddLog("warn", "m", "s")
	require.Eventually(t, func() bool { return len(pub.entries()) == 1 }, time.Second, time.Millisecond)
}

func TestCollectorReportsPublishFailure(t *testing.T) {
	var buf bytes.Buffer
	pub := &memPublisher{err: errors.New("broker down")}
	c := NewLogCollector(&CollectionConfig{Publisher: pub, Logger: NewWithWriter(&buf, zerolog.DebugLevel)})

	c.AddLog("warn", "m", "s")
	require.NoError(t, c.Close())
	assert.Contains(t, buf.String(), "failed to send aggregated logs")
	assert.Contains(t, buf.String(), "broker down")
}

func TestLogPublisherWritesRepeatsOnly(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(NewWithWriter(&buf, zerolog.DebugLevel))
	now := time.Now()

	err := p.Publish(context.Background(), "summary", nil, []AggregatedLogEntry{
		{Level: "warn", Message: "once", Count: 1, FirstSeen: now, LastSeen: now},
		{Level: "error", Message: "twice", Count: 2, Fields: map[string]interface{}{"channel": "dispatch"}, FirstSeen: now, LastSeen: now},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "repeated log entry"))
	assert.Contains(t, out, `"entry":"twice"`)
	assert.Contains(t, out, `"channel":"dispatch"`)
	assert.NotContains(t, out, `"entry":"once"`)
}
