package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	diagpkg "github.com/drblury/protoconv/internal/runtime/diagnostics"
	errspkg "github.com/drblury/protoconv/internal/runtime/errors"
)

func TestConversionMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewConversionMetrics(reg, "protoconv")
	if err := m.Register(); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	toJSON := diagpkg.Event{Direction: errspkg.DirectionToJSON, Size: 100, Duration: time.Microsecond}
	m.ConversionSucceeded(toJSON)
	m.ConversionSucceeded(toJSON)
	m.ConversionFailed(toJSON, &errspkg.ConversionError{Direction: errspkg.DirectionToJSON, Cause: errspkg.CauseCodec, Err: errors.New("x")})
	m.ConversionFailed(diagpkg.Event{Direction: errspkg.DirectionToMessage}, &errspkg.ConversionError{Direction: errspkg.DirectionToMessage, Cause: errspkg.CauseInput, Err: errors.New("y")})

	if got := testutil.ToFloat64(m.conversionsTotal.WithLabelValues("toJson", outcomeSuccess)); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.failuresTotal.WithLabelValues("toJson", "codec")); got != 1 {
		t.Fatalf("expected 1 codec failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.failuresTotal.WithLabelValues("toMessage", "input")); got != 1 {
		t.Fatalf("expected 1 input failure, got %v", got)
	}

	snap := m.Snapshot()
	js := snap.Directions[errspkg.DirectionToJSON]
	if js.Succeeded != 2 || js.CodecFaults != 1 || js.BytesTotal != 200 {
		t.Fatalf("unexpected toJson snapshot %#v", js)
	}
	if snap.Directions[errspkg.DirectionToMessage].InputFaults != 1 {
		t.Fatalf("unexpected toMessage snapshot %#v", snap.Directions[errspkg.DirectionToMessage])
	}

	m.Reset()
	if len(m.Snapshot().Directions) != 0 {
		t.Fatal("expected reset to clear counters")
	}
}

func TestRegisterIsIdempotentAcrossInstances(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewConversionMetrics(reg, "protoconv")
	if err := first.Register(); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if err := first.Register(); err != nil {
		t.Fatalf("second register failed: %v", err)
	}

	second := NewConversionMetrics(reg, "protoconv")
	if err := second.Register(); err != nil {
		t.Fatalf("expected AlreadyRegisteredError to be tolerated, got %v", err)
	}

	count, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no series before observations, got %d", count)
	}

	second.ConversionSucceeded(diagpkg.Event{Direction: errspkg.DirectionToJSON, Size: 3})
	if got := testutil.ToFloat64(first.conversionsTotal.WithLabelValues("toJson", outcomeSuccess)); got != 1 {
		t.Fatalf("expected instances to share collectors, got %v", got)
	}
}

func TestConversionMetricsConcurrent(t *testing.T) {
	m := NewConversionMetrics(prometheus.NewRegistry(), "protoconv")
	var wg sync.WaitGroup
	const workers = 8
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.ConversionSucceeded(diagpkg.Event{Direction: errspkg.DirectionToMessage, Size: 1})
			}
		}()
	}
	wg.Wait()

	if got := m.Snapshot().Directions[errspkg.DirectionToMessage].Succeeded; got != workers*100 {
		t.Fatalf("expected %d successes, got %d", workers*100, got)
	}
}
