package usecase

import (
	"testing"
	"time"

	"SignalPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day, hour, min, sec int) time.Time {
	return time.Date(2024, time.May, day, hour, min, sec, 0, time.UTC)
}

func sig(ts string) models.Signal {
	return models.Signal{Timeframe: "1m", Asset: "EURUSD", Timestamp: ts, Direction: "CALL"}
}

func TestShouldFireAntidelayWindow(t *testing.T) {
	s := sig("14:30")

	fire, err := ShouldFire(s, 15, at(1, 14, 29, 45), DefaultTolerance)
	require.NoError(t, err)
	assert.True(t, fire, "diff 0 fires")

	fire, err = ShouldFire(s, 15, at(1, 14, 29, 40), DefaultTolerance)
	require.NoError(t, err)
	assert.False(t, fire, "diff 5s is outside the 3s tolerance")

	target, err := FireTarget(s, 15, at(1, 14, 29, 40))
	require.NoError(t, err)
	assert.Equal(t, at(1, 14, 29, 45), target)
}

func TestShouldFireToleranceBoundaries(t *testing.T) {
	s := sig("14:30")
	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"2.999s early", at(1, 14, 29, 57).Add(3 * time.Millisecond), true},
		{"exactly 3s early", at(1, 14, 29, 57), false},
		{"2s late", at(1, 14, 30, 2), true},
		{"exactly 3s late", at(1, 14, 30, 3), false},
		{"an hour early", at(1, 13, 30, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fire, err := ShouldFire(s, 0, tc.now, DefaultTolerance)
			require.NoError(t, err)
			assert.Equal(t, tc.want, fire)
		})
	}
}

func TestShouldFireRollover(t *testing.T) {
	// 00:05 seen at 23:58 the prior day: today's 00:05 is ~24h past, so it is tomorrow, 7 minutes ahead.
	fire, err := ShouldFire(sig("00:05"), 0, at(1, 23, 58, 0), DefaultTolerance)
	require.NoError(t, err)
	assert.False(t, fire)
	target, _ := FireTarget(sig("00:05"), 0, at(1, 23, 58, 0))
	assert.Equal(t, at(2, 0, 5, 0), target)

	// 23:58 seen at 00:05 the next day stays on the current date, almost 24h ahead.
	fire, err = ShouldFire(sig("23:58"), 0, at(2, 0, 5, 0), DefaultTolerance)
	require.NoError(t, err)
	assert.False(t, fire)
	target, _ = FireTarget(sig("23:58"), 0, at(2, 0, 5, 0))
	assert.Equal(t, at(2, 23, 58, 0), target)

	// Close to midnight with antidelay: 00:00 with 10s fires at 23:59:50 the day before.
	fire, err = ShouldFire(sig("00:00"), 10, at(1, 23, 59, 50), DefaultTolerance)
	require.NoError(t, err)
	assert.True(t, fire)
}

func TestShouldFireMalformed(t *testing.T) {
	for _, ts := range []string{"9a:00", "", "14", "14:3", "24:00", "12:60", "-1:00", "14:30:00", "ab:cd"} {
		t.Run(ts, func(t *testing.T) {
			for _, now := range []time.Time{at(1, 9, 0, 0), at(1, 0, 0, 0), at(1, 14, 30, 0)} {
				fire, err := ShouldFire(sig(ts), 0, now, DefaultTolerance)
				assert.False(t, fire)
				assert.ErrorIs(t, err, models.ErrMalformedSignal)
			}
		})
	}
}

func TestShouldFireTriggeredNeverFires(t *testing.T) {
	s := sig("14:30")
	s.Triggered = true
	fire, err := ShouldFire(s, 0, at(1, 14, 30, 0), DefaultTolerance)
	require.NoError(t, err)
	assert.False(t, fire)
}

func TestShouldFireSingleDigitHour(t *testing.T) {
	fire, err := ShouldFire(sig("9:05"), 0, at(1, 9, 5, 1), DefaultTolerance)
	require.NoError(t, err)
	assert.True(t, fire)
}
