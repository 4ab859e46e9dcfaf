package repository

import (
	"context"

	"SignalPulse/internal/domain/models"
)

// SignalStore is the durable source of truth for the signal list and the antidelay setting.
type SignalStore interface {
	LoadSignals(ctx context.Context) ([]models.Signal, error)
	SaveSignals(ctx context.Context, signals []models.Signal) error
	LoadAntidelaySeconds(ctx context.Context) (int, error)
	SaveAntidelaySeconds(ctx context.Context, seconds int) error
	// Watch delivers a notification whenever any writer changes the store.
	// Notifications are coalesced; the channel is closed once ctx is done.
	Watch(ctx context.Context) <-chan struct{}
	Close() error
}

// FireHistory records fired alerts for diagnostics.
type FireHistory interface {
	Record(ctx context.Context, ev models.FireEvent) error
	Recent(ctx context.Context, limit int) ([]models.FireEvent, error)
	Close() error
}

type Metrics interface {
	RecordStorageLoad(source string)
	RecordCacheHit()
	RecordCacheInvalidation()
	RecordFire(asset, direction string)
	RecordDrift(seconds float64)
	RecordTick(instance string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	Snapshot() models.MetricsSnapshot
}
