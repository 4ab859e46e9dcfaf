package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalPulse/internal/domain/models"
	"SignalPulse/pkg/logger"
	"SignalPulse/pkg/metrics"
	"SignalPulse/pkg/util"

	"golang.org/x/sync/errgroup"
)

// Tick runs one evaluation pass for id at now. It fails with ErrNotOwner unless id owns polling.
// Failures local to one signal are logged and never abort the pass.
func (e *Engine) Tick(ctx context.Context, id string, now time.Time) (models.TickReport, error) {
	if !e.arbiter.Heartbeat(id) {
		return models.TickReport{InstanceID: id, At: now}, models.ErrNotOwner
	}
	return e.evaluate(ctx, id, now)
}

func (e *Engine) evaluate(ctx context.Context, id string, now time.Time) (models.TickReport, error) {
	report := models.TickReport{InstanceID: id, At: now}
	e.metrics.RecordTick(id)
	start := time.Now()
	defer func() { e.metrics.RecordLatency("tick", time.Since(start).Seconds()) }()

	snap, err := e.cache.Read(ctx)
	if err != nil {
		e.metrics.RecordError(metrics.ErrLoad)
		return report, fmt.Errorf("read signals: %w", err)
	}

	present := make(map[string]struct{}, snap.Len())
	for _, sig := range snap.Signals {
		present[sig.Key()] = struct{}{}
	}
	e.ledger.Retain(present, now)

	for _, sig := range snap.Signals {
		report.Evaluated++
		key := sig.Key()
		if sig.Triggered || e.ledger.Has(key) {
			continue
		}

		fire, err := ShouldFire(sig, snap.Antidelay, now, e.tolerance)
		if err != nil {
			report.Malformed = append(report.Malformed, key)
			fields := []logger.Field{logger.String("key", key), logger.String("timestamp", sig.Timestamp)}
			if e.collector.AddLog("warn", "skipping malformed signal", "tick", fields...) {
				e.metrics.RecordError(metrics.ErrMalformed)
				e.log.Warn("skipping malformed signal", append(fields, logger.Error(err))...)
			}
			continue
		}
		if !fire {
			continue
		}

		if !e.locks.Lock(key, id) {
			report.Contended = append(report.Contended, key)
			e.log.Debug("signal skipped", logger.String("key", key), logger.String("instance", id), logger.Error(models.ErrLockContention))
			continue
		}
		if !e.ledger.Claim(key, now) {
			e.locks.Unlock(key, id)
			continue
		}

		e.fire(ctx, id, sig, snap.Antidelay, now)
		report.Fired = append(report.Fired, key)
	}
	return report, nil
}

// fire dispatches the alert on both channels, persists the triggered state and
// records the event. The caller holds the key lock; it is released after the grace period.
func (e *Engine) fire(ctx context.Context, id string, sig models.Signal, antidelay int, now time.Time) {
	key := sig.Key()
	defer e.locks.ReleaseAfter(key, id)

	target, _ := FireTarget(sig, antidelay, now)
	drift := util.AbsDuration(now.Sub(target))

	dctx, cancel := context.WithTimeout(ctx, e.dispatchTimeout)
	var g errgroup.Group
	g.Go(func() error {
		if err := e.dispatcher.Dispatch(dctx, sig); err != nil {
			e.dispatchFailed(metrics.ErrDispatch, "notification dispatch failed", key, err)
			return fmt.Errorf("%w: notification: %w", models.ErrDispatchFailed, err)
		}
		return nil
	})
	g.Go(func() error {
		if err := e.audio.Play(dctx, e.customAudio); err != nil {
			e.dispatchFailed(metrics.ErrAudio, "audio playback failed", key, err)
			return fmt.Errorf("%w: audio: %w", models.ErrDispatchFailed, err)
		}
		return nil
	})
	dispatchErr := g.Wait()
	cancel()

	e.metrics.RecordFire(sig.Asset, sig.Direction)
	e.metrics.RecordDrift(drift.Seconds())
	e.log.Info("signal fired",
		logger.String("key", key),
		logger.String("instance", id),
		logger.String("timeframe", sig.Timeframe),
		logger.Time("target", target),
		logger.Duration("drift_ms", drift),
		logger.Int("antidelay", antidelay))

	persisted := true
	if err := e.updater.MarkTriggered(ctx, key); err != nil {
		persisted = false
		var perr *models.PersistError
		if errors.As(err, &perr) {
			e.metrics.RecordError(metrics.ErrPersist)
		}
		e.log.Error("persist triggered state failed; signal stays suppressed in this process",
			logger.String("key", key),
			logger.Error(err))
	}

	ev := models.FireEvent{
		Key:        key,
		Signal:     sig,
		InstanceID: id,
		Target:     target,
		FiredAt:    now,
		DriftMs:    drift.Milliseconds(),
		Antidelay:  antidelay,
		Dispatched: dispatchErr == nil,
		Persisted:  persisted,
	}
	ev.Signal.Triggered = persisted
	if err := e.history.Record(ctx, ev); err != nil {
		e.metrics.RecordError(metrics.ErrHistory)
		e.log.Warn("record fire history failed", logger.String("key", key), logger.Error(err))
	}
}

// dispatchFailed logs a failed alert channel and counts it in the collector,
// which summarizes identical failures across signals.
func (e *Engine) dispatchFailed(kind, msg, key string, err error) {
	e.metrics.RecordError(kind)
	e.log.Error(msg, logger.String("key", key), logger.Error(err))
	e.collector.AddLog("error", msg, "fire", logger.String("channel", kind), logger.Error(err))
}
