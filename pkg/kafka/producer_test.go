package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestPublishEncodesJSON(t *testing.T) {
	reg := prometheus.NewRegistry()
	w := &fakeWriter{}
	p := newProducer(w, &ProducerConfig{Compression: "gzip", Registerer: reg})

	require.NoError(t, p.Publish(context.Background(), "alerts", []byte("k"), map[string]string{"asset": "EURUSD"}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "alerts", w.msgs[0].Topic)
	assert.JSONEq(t, `{"asset":"EURUSD"}`, string(w.msgs[0].Value))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.msgs.WithLabelValues("alerts", "gzip", "ok")))
}

func TestPublishError(t *testing.T) {
	reg := prometheus.NewRegistry()
	w := &fakeWriter{err: errors.New("broker down")}
	p := newProducer(w, &ProducerConfig{Compression: "gzip", Registerer: reg})

	err := p.Publish(context.Background(), "alerts", nil, "raw")
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.msgs.WithLabelValues("alerts", "gzip", "error")))
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
}

func TestMetricsRegisteredOncePerRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() {
		a := metricsFor(reg)
		b := metricsFor(reg)
		assert.Same(t, a, b)
	})
}
