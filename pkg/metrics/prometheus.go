package metrics

import (
	"sync/atomic"

	"SignalPulse/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
// Process-local totals are kept next to the collectors so the status endpoint
// can report them without scraping.
type Recorder struct {
	storageLoads  *prometheus.CounterVec
	cacheHits     prometheus.Counter
	invalidations prometheus.Counter
	fires         *prometheus.CounterVec
	drift         prometheus.Histogram
	ticks         *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec

	nLoads         atomic.Int64
	nHits          atomic.Int64
	nInvalidations atomic.Int64
	nFires         atomic.Int64
	nDispatchFail  atomic.Int64
	nPersistFail   atomic.Int64
	nTicks         atomic.Int64
}

// New creates a new Prometheus metrics recorder registered on reg.
// A nil reg falls back to the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		storageLoads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalpulse_storage_loads_total",
				Help: "Total number of signal list loads from durable storage",
			},
			[]string{"source"},
		),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "signalpulse_cache_hits_total",
			Help: "Total number of reads served from the signal cache",
		}),
		invalidations: f.NewCounter(prometheus.CounterOpts{
			Name: "signalpulse_cache_invalidations_total",
			Help: "Total number of signal cache invalidations",
		}),
		fires: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalpulse_signal_fires_total",
				Help: "Total number of fired signals",
			},
			[]string{"asset", "direction"},
		),
		drift: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalpulse_fire_drift_seconds",
			Help:    "Absolute distance between fire time and target time",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3},
		}),
		ticks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalpulse_ticks_total",
				Help: "Total number of monitor ticks",
			},
			[]string{"instance"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordStorageLoad records a signal list load from durable storage.
func (r *Recorder) RecordStorageLoad(source string) {
	r.storageLoads.WithLabelValues(source).Inc()
	r.nLoads.Add(1)
}

func (r *Recorder) RecordCacheHit() {
	r.cacheHits.Inc()
	r.nHits.Add(1)
}

func (r *Recorder) RecordCacheInvalidation() {
	r.invalidations.Inc()
	r.nInvalidations.Add(1)
}

// RecordFire records a fired signal.
func (r *Recorder) RecordFire(asset, direction string) {
	r.fires.WithLabelValues(asset, direction).Inc()
	r.nFires.Add(1)
}

func (r *Recorder) RecordDrift(seconds float64) {
	r.drift.Observe(seconds)
}

func (r *Recorder) RecordTick(instance string) {
	r.ticks.WithLabelValues(instance).Inc()
	r.nTicks.Add(1)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
	switch kind {
	case ErrDispatch:
		r.nDispatchFail.Add(1)
	case ErrPersist:
		r.nPersistFail.Add(1)
	}
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Snapshot returns the process-local totals.
func (r *Recorder) Snapshot() models.MetricsSnapshot {
	return models.MetricsSnapshot{
		StorageLoads:       r.nLoads.Load(),
		CacheHits:          r.nHits.Load(),
		CacheInvalidations: r.nInvalidations.Load(),
		SignalFires:        r.nFires.Load(),
		DispatchFailures:   r.nDispatchFail.Load(),
		PersistFailures:    r.nPersistFail.Load(),
		Ticks:              r.nTicks.Load(),
	}
}
