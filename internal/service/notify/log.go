package notify

import (
	"context"

	"SignalPulse/internal/domain/models"
	"SignalPulse/pkg/logger"
)

// LogDispatcher writes alerts to the structured log.
type LogDispatcher struct {
	title string
	l     *logger.Logger
}

func NewLogDispatcher(title string, l *logger.Logger) *LogDispatcher {
	if l == nil {
		l = logger.Nop()
	}
	return &LogDispatcher{title: title, l: l}
}

func (d *LogDispatcher) Dispatch(_ context.Context, sig models.Signal) error {
	d.l.Info(d.title+": "+Body(sig),
		logger.String("channel", "log"),
		logger.String("key", sig.Key()))
	return nil
}
