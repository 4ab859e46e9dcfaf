package usecase

import (
	"fmt"
	"time"

	"SignalPulse/internal/domain/models"
	"SignalPulse/pkg/util"
)

const (
	// DefaultTolerance absorbs tick jitter and throttled timers.
	DefaultTolerance = 3 * time.Second
	// rolloverAfter is how far in the past a clock time may be before it refers to tomorrow.
	rolloverAfter = 12 * time.Hour
)

// FireTarget returns the instant sig should fire relative to now.
// A time of day more than 12h behind now is taken as tomorrow's occurrence.
func FireTarget(sig models.Signal, antidelaySeconds int, now time.Time) (time.Time, error) {
	h, m, ok := util.ParseClock(sig.Timestamp)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", models.ErrMalformedSignal, sig.Timestamp)
	}
	at := util.ClockOn(now, h, m)
	if now.Sub(at) > rolloverAfter {
		at = at.AddDate(0, 0, 1)
	}
	ad, _ := models.ClampAntidelay(antidelaySeconds)
	return at.Add(-time.Duration(ad) * time.Second), nil
}

// ShouldFire reports whether now lies strictly inside the tolerance window around
// the fire target. Triggered signals never fire. A malformed timestamp never fires
// and is reported through the error.
func ShouldFire(sig models.Signal, antidelaySeconds int, now time.Time, tolerance time.Duration) (bool, error) {
	if sig.Triggered {
		return false, nil
	}
	target, err := FireTarget(sig, antidelaySeconds, now)
	if err != nil {
		return false, err
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return util.AbsDuration(now.Sub(target)) < tolerance, nil
}
