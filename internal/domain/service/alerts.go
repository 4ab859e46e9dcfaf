package service

import (
	"context"

	"SignalPulse/internal/domain/models"
)

// Dispatcher delivers the notification for a fired signal. Delivery is fire-and-forget per signal.
type Dispatcher interface {
	Dispatch(ctx context.Context, sig models.Signal) error
}

// AudioPlayer plays the alert sound.
type AudioPlayer interface {
	Play(ctx context.Context, hasCustomAudio bool) error
}
