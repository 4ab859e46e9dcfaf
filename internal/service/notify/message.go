// Package notify delivers fired-signal alerts to the configured channels.
package notify

import (
	"fmt"
	"time"

	"SignalPulse/internal/domain/models"
)

// Alert is the payload sent to structured channels (websocket, kafka).
type Alert struct {
	Key       string    `json:"key"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Timeframe string    `json:"timeframe"`
	Asset     string    `json:"asset"`
	Direction string    `json:"direction"`
	Timestamp string    `json:"timestamp"`
	SentAt    time.Time `json:"sent_at"`
}

// Body renders the human readable alert text.
func Body(sig models.Signal) string {
	if sig.Timeframe == "" {
		return fmt.Sprintf("%s %s at %s", sig.Asset, sig.Direction, sig.Timestamp)
	}
	return fmt.Sprintf("%s %s at %s (%s)", sig.Asset, sig.Direction, sig.Timestamp, sig.Timeframe)
}

func NewAlert(title string, sig models.Signal, now time.Time) Alert {
	return Alert{
		Key:       sig.Key(),
		Title:     title,
		Body:      Body(sig),
		Timeframe: sig.Timeframe,
		Asset:     sig.Asset,
		Direction: sig.Direction,
		Timestamp: sig.Timestamp,
		SentAt:    now,
	}
}
