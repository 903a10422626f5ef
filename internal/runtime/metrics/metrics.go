package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	diagpkg "github.com/drblury/protoconv/internal/runtime/diagnostics"
	errspkg "github.com/drblury/protoconv/internal/runtime/errors"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// ConversionMetrics records conversion outcomes as Prometheus collectors and
// keeps in-process counters for Snapshot. It implements diagnostics.Diagnostics.
type ConversionMetrics struct {
	mu sync.Mutex

	directions map[errspkg.Direction]*DirectionMetrics

	conversionsTotal *prometheus.CounterVec
	failuresTotal    *prometheus.CounterVec
	jsonBytes        *prometheus.HistogramVec
	durationSeconds  *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

var _ diagpkg.Diagnostics = (*ConversionMetrics)(nil)

// DirectionMetrics holds the counters for one conversion direction.
type DirectionMetrics struct {
	Succeeded     uint64    `json:"succeeded"`
	InputFaults   uint64    `json:"input_faults"`
	CodecFaults   uint64    `json:"codec_faults"`
	BytesTotal    uint64    `json:"bytes_total"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// Snapshot provides a point-in-time copy of the counters.
type Snapshot struct {
	Directions  map[errspkg.Direction]DirectionMetrics `json:"directions"`
	CollectedAt time.Time                              `json:"collected_at"`
}

// NewConversionMetrics creates the collectors under namespace. A nil
// registerer selects prometheus.DefaultRegisterer.
func NewConversionMetrics(registerer prometheus.Registerer, namespace string) *ConversionMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &ConversionMetrics{
		directions:       make(map[errspkg.Direction]*DirectionMetrics),
		registerer:       registerer,
		conversionsTotal: newCounterVec(namespace, "conversions_total", "Total number of conversions by direction and outcome", []string{"direction", "outcome"}),
		failuresTotal:    newCounterVec(namespace, "failures_total", "Total number of failed conversions by direction and cause", []string{"direction", "cause"}),
		jsonBytes:        newHistogramVec(namespace, "json_bytes", "Size in bytes of the JSON text handled by successful conversions", prometheus.ExponentialBuckets(64, 4, 8)),
		durationSeconds:  newHistogramVec(namespace, "duration_seconds", "Time spent converting", []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1}),
	}
}

// newCounterVec creates a counter vec in the converter subsystem.
func newCounterVec(namespace, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "converter",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// newHistogramVec creates a per-direction histogram vec in the converter subsystem.
func newHistogramVec(namespace, name, help string, buckets []float64) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "converter",
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		[]string{"direction"},
	)
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *ConversionMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	var err error
	if m.conversionsTotal, err = registerCounterVec(m.registerer, m.conversionsTotal); err != nil {
		return err
	}
	if m.failuresTotal, err = registerCounterVec(m.registerer, m.failuresTotal); err != nil {
		return err
	}
	if m.jsonBytes, err = registerHistogramVec(m.registerer, m.jsonBytes); err != nil {
		return err
	}
	if m.durationSeconds, err = registerHistogramVec(m.registerer, m.durationSeconds); err != nil {
		return err
	}

	m.registered = true
	return nil
}

// registerCounterVec registers vec, reusing the collector of an earlier
// instance that shares the registry.
func registerCounterVec(r prometheus.Registerer, vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := r.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(r prometheus.Registerer, vec *prometheus.HistogramVec) (*prometheus.HistogramVec, error) {
	if err := r.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return vec, nil
}

func (m *ConversionMetrics) ConversionSucceeded(ev diagpkg.Event) {
	m.mu.Lock()
	dm := m.getOrCreate(ev.Direction)
	dm.Succeeded++
	dm.BytesTotal += uint64(ev.Size)
	dm.LastUpdatedAt = time.Now()
	m.mu.Unlock()

	direction := string(ev.Direction)
	m.conversionsTotal.WithLabelValues(direction, outcomeSuccess).Inc()
	m.jsonBytes.WithLabelValues(direction).Observe(float64(ev.Size))
	m.durationSeconds.WithLabelValues(direction).Observe(ev.Duration.Seconds())
}

func (m *ConversionMetrics) ConversionFailed(ev diagpkg.Event, err *errspkg.ConversionError) {
	cause := errspkg.CauseInput
	if err != nil {
		cause = err.Cause
	}

	m.mu.Lock()
	dm := m.getOrCreate(ev.Direction)
	if cause == errspkg.CauseCodec {
		dm.CodecFaults++
	} else {
		dm.InputFaults++
	}
	dm.LastUpdatedAt = time.Now()
	m.mu.Unlock()

	direction := string(ev.Direction)
	m.conversionsTotal.WithLabelValues(direction, outcomeFailure).Inc()
	m.failuresTotal.WithLabelValues(direction, cause.String()).Inc()
	m.durationSeconds.WithLabelValues(direction).Observe(ev.Duration.Seconds())
}

// Snapshot returns a copy of the in-process counters.
func (m *ConversionMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Directions:  make(map[errspkg.Direction]DirectionMetrics, len(m.directions)),
		CollectedAt: time.Now(),
	}
	for d, dm := range m.directions {
		snap.Directions[d] = *dm
	}
	return snap
}

// Reset clears the in-process counters. Prometheus collectors are cumulative
// and are left untouched.
func (m *ConversionMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.directions = make(map[errspkg.Direction]*DirectionMetrics)
}

func (m *ConversionMetrics) getOrCreate(direction errspkg.Direction) *DirectionMetrics {
	dm, ok := m.directions[direction]
	if !ok {
		dm = &DirectionMetrics{}
		m.directions[direction] = dm
	}
	return dm
}
