package models

import (
	"strings"
	"time"
)

const (
	// MinAntidelaySeconds and MaxAntidelaySeconds bound the global antidelay setting.
	MinAntidelaySeconds = 0
	MaxAntidelaySeconds = 99
)

// Signal is a single scheduled alert keyed by time of day, asset and direction.
// Timeframe is descriptive only and does not take part in identity.
type Signal struct {
	Timeframe string `json:"timeframe" yaml:"timeframe"`
	Asset     string `json:"asset" yaml:"asset"`
	Timestamp string `json:"timestamp" yaml:"timestamp"` // "HH:MM"
	Direction string `json:"direction" yaml:"direction"`
	Triggered bool   `json:"triggered" yaml:"triggered"`
}

// Key returns the identity of the signal: timestamp|asset|direction.
func (s Signal) Key() string {
	return SignalKey(s.Timestamp, s.Asset, s.Direction)
}

// SignalKey builds an identity key from its parts.
func SignalKey(timestamp, asset, direction string) string {
	return strings.Join([]string{timestamp, asset, direction}, "|")
}

// ClampAntidelay forces v into [MinAntidelaySeconds, MaxAntidelaySeconds].
// The second return value reports whether v had to be changed.
func ClampAntidelay(v int) (int, bool) {
	switch {
	case v < MinAntidelaySeconds:
		return MinAntidelaySeconds, true
	case v > MaxAntidelaySeconds:
		return MaxAntidelaySeconds, true
	default:
		return v, false
	}
}

// CloneSignals returns a copy of the list that shares no backing array with in.
func CloneSignals(in []Signal) []Signal {
	if in == nil {
		return nil
	}
	out := make([]Signal, len(in))
	copy(out, in)
	return out
}

// Snapshot is an immutable view of the signal store at a point in time.
// Readers must never modify Signals; a new Snapshot replaces the old one wholesale.
type Snapshot struct {
	Version   uint64
	Signals   []Signal
	Antidelay int
	LoadedAt  time.Time
}

// Len returns the number of signals in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Signals)
}

// Keys returns the identity keys of all signals in cache order.
func (s *Snapshot) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.Signals))
	for _, sig := range s.Signals {
		keys = append(keys, sig.Key())
	}
	return keys
}

// FireEvent is the record of a single alert firing.
type FireEvent struct {
	Key        string    `json:"key"`
	Signal     Signal    `json:"signal"`
	InstanceID string    `json:"instance_id"`
	Target     time.Time `json:"target"`
	FiredAt    time.Time `json:"fired_at"`
	DriftMs    int64     `json:"drift_ms"`
	Antidelay  int       `json:"antidelay"`
	Dispatched bool      `json:"dispatched"` // every alert channel delivered
	Persisted  bool      `json:"persisted"`
}
