package repository

import (
	"context"
	"sync"

	"SignalPulse/internal/domain/models"
)

// MemorySignalStore keeps signals in process memory. Useful for development and tests.
type MemorySignalStore struct {
	mu        sync.RWMutex
	signals   []models.Signal
	antidelay int
	subs      map[chan struct{}]struct{}
	closed    bool
}

func NewMemorySignalStore(signals []models.Signal, antidelay int) *MemorySignalStore {
	return &MemorySignalStore{
		signals:   models.CloneSignals(signals),
		antidelay: antidelay,
		subs:      make(map[chan struct{}]struct{}),
	}
}

func (s *MemorySignalStore) LoadSignals(ctx context.Context) ([]models.Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneSignals(s.signals), nil
}

func (s *MemorySignalStore) SaveSignals(ctx context.Context, signals []models.Signal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.signals = models.CloneSignals(signals)
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *MemorySignalStore) LoadAntidelaySeconds(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.antidelay, nil
}

func (s *MemorySignalStore) SaveAntidelaySeconds(ctx context.Context, seconds int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.antidelay = seconds
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *MemorySignalStore) Watch(ctx context.Context) <-chan struct{} {
	out := make(chan struct{})
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(out)
		return out
	}
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// notify wakes every subscriber; pending notifications coalesce into one.
func (s *MemorySignalStore) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.subs {
		coalesce(ch)
	}
}

func (s *MemorySignalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
	return nil
}
