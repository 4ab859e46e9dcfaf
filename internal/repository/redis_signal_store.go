package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"SignalPulse/internal/domain/models"
	applogger "SignalPulse/pkg/logger"
	pkgredis "SignalPulse/pkg/redis"

	goredis "github.com/redis/go-redis/v9"
)

// RedisSignalStore keeps the signal list and antidelay as Redis values and
// announces every write on a Pub/Sub channel so other processes can invalidate.
type RedisSignalStore struct {
	client       *pkgredis.Client
	signalsKey   string
	antidelayKey string
	channel      string
	l            *applogger.Logger
}

func NewRedisSignalStore(client *pkgredis.Client, l *applogger.Logger) *RedisSignalStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &RedisSignalStore{
		client:       client,
		signalsKey:   client.Key("signals"),
		antidelayKey: client.Key("antidelay"),
		channel:      client.Key("changes"),
		l:            l,
	}
}

func (s *RedisSignalStore) LoadSignals(ctx context.Context) ([]models.Signal, error) {
	raw, err := s.client.Redis().Get(ctx, s.signalsKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return []models.Signal{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis get %s: %w", models.ErrTransientStorage, s.signalsKey, err)
	}
	var out []models.Signal
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode signals: %w", err)
	}
	return out, nil
}

func (s *RedisSignalStore) SaveSignals(ctx context.Context, signals []models.Signal) error {
	if signals == nil {
		signals = []models.Signal{}
	}
	raw, err := json.Marshal(signals)
	if err != nil {
		return fmt.Errorf("encode signals: %w", err)
	}
	return s.write(ctx, s.signalsKey, raw)
}

func (s *RedisSignalStore) LoadAntidelaySeconds(ctx context.Context) (int, error) {
	raw, err := s.client.Redis().Get(ctx, s.antidelayKey).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: redis get %s: %w", models.ErrTransientStorage, s.antidelayKey, err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("decode antidelay %q: %w", raw, err)
	}
	return v, nil
}

func (s *RedisSignalStore) SaveAntidelaySeconds(ctx context.Context, seconds int) error {
	return s.write(ctx, s.antidelayKey, strconv.Itoa(seconds))
}

// write sets key and publishes the change in one round trip. The publish only
// wakes watchers, so it need not be atomic with the set.
func (s *RedisSignalStore) write(ctx context.Context, key string, value interface{}) error {
	_, err := s.client.Redis().Pipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, key, value, 0)
		p.Publish(ctx, s.channel, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: redis set %s: %w", models.ErrTransientStorage, key, err)
	}
	return nil
}

func (s *RedisSignalStore) Watch(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	sub := s.client.Redis().Subscribe(ctx, s.channel)
	// wait for the subscription confirmation so no write after Watch returns is missed
	if _, err := sub.Receive(ctx); err != nil {
		s.l.Error("redis subscribe failed", applogger.String("channel", s.channel), applogger.Error(err))
		_ = sub.Close()
		close(out)
		return out
	}

	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				coalesce(out)
			}
		}
	}()
	return out
}

// Close is a no-op; the Redis client is owned by the caller.
func (s *RedisSignalStore) Close() error {
	return nil
}
