package notify

import (
	"context"
	"time"

	"SignalPulse/internal/domain/models"
)

type publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaDispatcher publishes alerts as JSON events keyed by signal identity.
type KafkaDispatcher struct {
	producer publisher
	topic    string
	title    string
	now      func() time.Time
}

func NewKafkaDispatcher(producer publisher, topic, title string) *KafkaDispatcher {
	return &KafkaDispatcher{producer: producer, topic: topic, title: title, now: time.Now}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, sig models.Signal) error {
	return d.producer.Publish(ctx, d.topic, []byte(sig.Key()), NewAlert(d.title, sig, d.now()))
}
