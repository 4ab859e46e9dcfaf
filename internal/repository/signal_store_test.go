package repository

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"SignalPulse/internal/domain/models"
	domrepo "SignalPulse/internal/domain/repository"
	pkgredis "SignalPulse/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleSignals = []models.Signal{
	{Timeframe: "1m", Asset: "EURUSD", Timestamp: "14:30", Direction: "CALL"},
	{Timeframe: "5m", Asset: "GBPJPY", Timestamp: "09:05", Direction: "PUT", Triggered: true},
}

func newRedisStore(t *testing.T) *RedisSignalStore {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	client, err := pkgredis.NewClient(context.Background(), pkgredis.WithAddr(mr.Host(), port), pkgredis.WithPrefix("test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSignalStore(client, nil)
}

func newFileStore(t *testing.T) *FileSignalStore {
	t.Helper()
	s, err := NewFileSignalStore(filepath.Join(t.TempDir(), "data", "signals.yaml"), nil)
	require.NoError(t, err)
	return s
}

func storeFactories() map[string]func(t *testing.T) domrepo.SignalStore {
	return map[string]func(t *testing.T) domrepo.SignalStore{
		"memory": func(t *testing.T) domrepo.SignalStore { return NewMemorySignalStore(nil, 0) },
		"file":   func(t *testing.T) domrepo.SignalStore { return newFileStore(t) },
		"redis":  func(t *testing.T) domrepo.SignalStore { return newRedisStore(t) },
	}
}

func TestSignalStoreRoundTrip(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			defer s.Close()

			empty, err := s.LoadSignals(ctx)
			require.NoError(t, err)
			assert.Empty(t, empty)

			ad, err := s.LoadAntidelaySeconds(ctx)
			require.NoError(t, err)
			assert.Zero(t, ad)

			require.NoError(t, s.SaveSignals(ctx, sampleSignals))
			require.NoError(t, s.SaveAntidelaySeconds(ctx, 15))

			got, err := s.LoadSignals(ctx)
			require.NoError(t, err)
			assert.Equal(t, sampleSignals, got)

			ad, err = s.LoadAntidelaySeconds(ctx)
			require.NoError(t, err)
			assert.Equal(t, 15, ad)
		})
	}
}

func TestSignalStoreWatchNotifies(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			s := factory(t)
			defer s.Close()

			changes := s.Watch(ctx)
			require.NoError(t, s.SaveSignals(ctx, sampleSignals))

			select {
			case _, ok := <-changes:
				require.True(t, ok)
			case <-time.After(2 * time.Second):
				t.Fatal("no change notification")
			}

			cancel()
			require.Eventually(t, func() bool {
				select {
				case _, ok := <-changes:
					return !ok
				default:
					return false
				}
			}, 2*time.Second, 10*time.Millisecond)
		})
	}
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	in := models.CloneSignals(sampleSignals)
	s := NewMemorySignalStore(in, 0)
	in[0].Triggered = true

	got, err := s.LoadSignals(ctx)
	require.NoError(t, err)
	assert.False(t, got[0].Triggered)

	got[0].Asset = "changed"
	again, _ := s.LoadSignals(ctx)
	assert.Equal(t, "EURUSD", again[0].Asset)
}

func TestMemoryStoreCloseEndsWatch(t *testing.T) {
	s := NewMemorySignalStore(nil, 0)
	ch := s.Watch(context.Background())
	require.NoError(t, s.Close())

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("watch channel not closed")
	}
}

func TestFileStoreExternalEdit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newFileStore(t)
	require.NoError(t, s.SaveAntidelaySeconds(ctx, 10))

	changes := s.Watch(ctx)
	doc := []byte("antidelay_seconds: 20\nsignals:\n  - timeframe: 1m\n    asset: BTCUSD\n    timestamp: \"10:00\"\n    direction: CALL\n    triggered: false\n")
	require.NoError(t, os.WriteFile(s.Path(), doc, 0o644))

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("external edit not observed")
	}

	ad, err := s.LoadAntidelaySeconds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, ad)
	got, err := s.LoadSignals(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "10:00|BTCUSD|CALL", got[0].Key())
}

func TestFileStoreKeepsAntidelayOnSignalSave(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)
	require.NoError(t, s.SaveAntidelaySeconds(ctx, 42))
	require.NoError(t, s.SaveSignals(ctx, sampleSignals))

	ad, err := s.LoadAntidelaySeconds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, ad)

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStoreCorruptDocument(t *testing.T) {
	s := newFileStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("signals: [unterminated"), 0o644))
	_, err := s.LoadSignals(context.Background())
	assert.Error(t, err)
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	port, _ := strconv.Atoi(mr.Port())
	client, err := pkgredis.NewClient(context.Background(), pkgredis.WithAddr(mr.Host(), port))
	require.NoError(t, err)
	defer client.Close()
	s := NewRedisSignalStore(client, nil)

	mr.SetError("ERR server unavailable")
	_, err = s.LoadSignals(context.Background())
	assert.ErrorIs(t, err, models.ErrTransientStorage)

	// writes must fail fast on error replies rather than block the caller
	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- s.SaveSignals(ctx, sampleSignals)
	}()
	select {
	case err = <-done:
		assert.ErrorIs(t, err, models.ErrTransientStorage)
	case <-time.After(3 * time.Second):
		t.Fatal("SaveSignals did not return on error replies")
	}

	mr.SetError("")
	require.NoError(t, s.SaveAntidelaySeconds(context.Background(), 12))
	ad, err := s.LoadAntidelaySeconds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, ad)
}
