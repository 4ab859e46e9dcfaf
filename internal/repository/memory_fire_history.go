package repository

import (
	"context"
	"sync"

	"SignalPulse/internal/domain/models"
)

// MemoryFireHistory keeps the most recent fire events in a fixed-size ring.
type MemoryFireHistory struct {
	mu    sync.Mutex
	buf   []models.FireEvent
	next  int
	count int
}

func NewMemoryFireHistory(capacity int) *MemoryFireHistory {
	if capacity <= 0 {
		capacity = 500
	}
	return &MemoryFireHistory{buf: make([]models.FireEvent, capacity)}
}

func (h *MemoryFireHistory) Record(_ context.Context, ev models.FireEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf[h.next] = ev
	h.next = (h.next + 1) % len(h.buf)
	if h.count < len(h.buf) {
		h.count++
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (h *MemoryFireHistory) Recent(_ context.Context, limit int) ([]models.FireEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit <= 0 || limit > h.count {
		limit = h.count
	}
	out := make([]models.FireEvent, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (h.next - i + len(h.buf)) % len(h.buf)
		out = append(out, h.buf[idx])
	}
	return out, nil
}

func (h *MemoryFireHistory) Close() error { return nil }

// NopFireHistory discards events.
type NopFireHistory struct{}

func (NopFireHistory) Record(context.Context, models.FireEvent) error { return nil }

func (NopFireHistory) Recent(context.Context, int) ([]models.FireEvent, error) {
	return []models.FireEvent{}, nil
}

func (NopFireHistory) Close() error { return nil }
