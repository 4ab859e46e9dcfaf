package models

import "time"

// OwnershipToken describes the current polling owner. OwnerID is empty when unowned.
type OwnershipToken struct {
	OwnerID     string     `json:"owner_id,omitempty"`
	AcquiredAt  *time.Time `json:"acquired_at,omitempty"`
	HeartbeatAt *time.Time `json:"heartbeat_at,omitempty"`
}

// Active reports whether an owner currently holds the token.
func (t OwnershipToken) Active() bool {
	return t.OwnerID != ""
}

// MetricsSnapshot holds the in-process counters exposed through the status surface.
type MetricsSnapshot struct {
	StorageLoads       int64 `json:"storage_loads"`
	CacheHits          int64 `json:"cache_hits"`
	CacheInvalidations int64 `json:"cache_invalidations"`
	SignalFires        int64 `json:"signal_fires"`
	DispatchFailures   int64 `json:"dispatch_failures"`
	PersistFailures    int64 `json:"persist_failures"`
	Ticks              int64 `json:"ticks"`
}

// EngineStatus is the diagnostics view of the trigger engine.
type EngineStatus struct {
	OwnerID          string          `json:"owner_id,omitempty"`
	IsActive         bool            `json:"is_active"`
	AcquiredAt       *time.Time      `json:"acquired_at,omitempty"`
	InFlightKeys     []string        `json:"in_flight_keys"`
	RunningInstances []string        `json:"running_instances"`
	CacheVersion     uint64          `json:"cache_version"`
	Metrics          MetricsSnapshot `json:"metrics"`
}

// TickReport summarises a single evaluation pass over the cached signals.
type TickReport struct {
	InstanceID string    `json:"instance_id"`
	At         time.Time `json:"at"`
	Evaluated  int       `json:"evaluated"`
	Fired      []string  `json:"fired,omitempty"`
	Contended  []string  `json:"contended,omitempty"`
	Malformed  []string  `json:"malformed,omitempty"`
}
