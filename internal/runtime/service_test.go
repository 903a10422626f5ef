package runtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/protobuf/types/known/emptypb"

	configpkg "github.com/drblury/protoconv/internal/runtime/config"
	"github.com/drblury/protoconv/internal/runtime/converter"
	diagpkg "github.com/drblury/protoconv/internal/runtime/diagnostics"
	errspkg "github.com/drblury/protoconv/internal/runtime/errors"
	"github.com/drblury/protoconv/internal/runtime/jsontree"
	loggingpkg "github.com/drblury/protoconv/internal/runtime/logging"
	"github.com/drblury/protoconv/internal/runtime/schema/schematest"
)

func newTestLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NewSlogServiceLogger(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

type recordedSpan struct {
	noop.Span

	mu     sync.Mutex
	attrs  map[attribute.Key]attribute.Value
	errs   []error
	status codes.Code
	ended  bool
}

func (s *recordedSpan) SetAttributes(kv ...attribute.KeyValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, attr := range kv {
		s.attrs[attr.Key] = attr.Value
	}
}

func (s *recordedSpan) RecordError(err error, _ ...trace.EventOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *recordedSpan) SetStatus(code codes.Code, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
}

func (s *recordedSpan) End(...trace.SpanEndOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

type recordingTracer struct {
	noop.Tracer

	mu    sync.Mutex
	spans []*recordedSpan
}

func (r *recordingTracer) Start(ctx context.Context, _ string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	span := &recordedSpan{attrs: make(map[attribute.Key]attribute.Value)}
	cfg := trace.NewSpanStartConfig(opts...)
	span.SetAttributes(cfg.Attributes()...)

	r.mu.Lock()
	r.spans = append(r.spans, span)
	r.mu.Unlock()
	return trace.ContextWithSpan(ctx, span), span
}

func (r *recordingTracer) last(t *testing.T) *recordedSpan {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.spans) == 0 {
		t.Fatal("expected a span to be started")
	}
	return r.spans[len(r.spans)-1]
}

type recordingProvider struct {
	noop.TracerProvider
	tracer *recordingTracer
}

func (p recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return p.tracer
}

type recordingDiagnostics struct {
	mu        sync.Mutex
	succeeded []diagpkg.Event
	failed    []*errspkg.ConversionError
}

func (r *recordingDiagnostics) ConversionSucceeded(ev diagpkg.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succeeded = append(r.succeeded, ev)
}

func (r *recordingDiagnostics) ConversionFailed(_ diagpkg.Event, err *errspkg.ConversionError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, err)
}

func TestTryNewServiceValidatesArguments(t *testing.T) {
	if _, err := TryNewService(nil, newTestLogger(), ServiceDependencies{}); !errors.Is(err, errspkg.ErrConfigRequired) {
		t.Fatalf("expected ErrConfigRequired, got %v", err)
	}
	if _, err := TryNewService(&configpkg.Config{}, nil, ServiceDependencies{}); !errors.Is(err, errspkg.ErrLoggerRequired) {
		t.Fatalf("expected ErrLoggerRequired, got %v", err)
	}

	_, err := TryNewService(&configpkg.Config{MaxJSONBytes: -1}, newTestLogger(), ServiceDependencies{})
	var cfgErr errspkg.ConfigValidationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigValidationError, got %v", err)
	}
}

func TestNewServicePanicsOnInvalidConfig(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for invalid config")
		}
	}()
	NewService(&configpkg.Config{MetricsNamespace: "bad-name"}, newTestLogger(), ServiceDependencies{})
}

func TestServiceRoundTrip(t *testing.T) {
	svc := NewService(&configpkg.Config{}, newTestLogger(), ServiceDependencies{})
	if svc.Metrics() != nil {
		t.Fatal("expected metrics to be disabled by default")
	}

	in := jsontree.MustParse(`{"name":"Ann","age":30}`)
	msg, err := svc.ToMessage(context.Background(), in, schematest.Simple())
	if err != nil {
		t.Fatalf("to message failed: %v", err)
	}

	res, err := svc.ToJSON(context.Background(), msg)
	if err != nil {
		t.Fatalf("to json failed: %v", err)
	}
	if !res.Present() || !res.JSON.Equal(in) {
		t.Fatalf("unexpected round trip result %v", res.JSON)
	}

	absent, err := svc.ToJSON(context.Background(), nil)
	if err != nil || absent.Present() || absent.Size != 0 {
		t.Fatalf("expected absent result, got %+v err=%v", absent, err)
	}
}

func TestServiceBinaryRoundTrip(t *testing.T) {
	svc := NewService(&configpkg.Config{}, newTestLogger(), ServiceDependencies{})
	in := jsontree.MustParse(`{"name":"Ann","tags":["a","b"],"counters":{"x":1}}`)

	data, err := svc.EncodeJSON(context.Background(), in, schematest.Person())
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	res, err := svc.DecodeBinary(context.Background(), data, schematest.Person())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !res.JSON.Equal(in) {
		t.Fatalf("unexpected decoded tree %v", res.JSON)
	}
}

func TestServiceRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc := NewService(&configpkg.Config{MetricsEnabled: true}, newTestLogger(), ServiceDependencies{Registerer: reg})
	if svc.Metrics() == nil {
		t.Fatal("expected metrics when enabled")
	}

	ctx := context.Background()
	if _, err := svc.ToMessage(ctx, jsontree.MustParse(`{"name":"Ann"}`), schematest.Simple()); err != nil {
		t.Fatalf("to message failed: %v", err)
	}
	if _, err := svc.ToMessage(ctx, jsontree.MustParse(`{"nope":true}`), schematest.Simple()); !errspkg.IsConversionError(err) {
		t.Fatalf("expected conversion error, got %v", err)
	}
	if _, err := svc.DecodeBinary(ctx, []byte{0x0a, 0xff}, schematest.Simple()); !errspkg.IsConversionError(err) {
		t.Fatalf("expected conversion error, got %v", err)
	}

	snap := svc.Metrics().Snapshot()
	if snap.Directions[errspkg.DirectionToMessage].Succeeded != 1 {
		t.Fatalf("expected one successful toMessage, got %+v", snap.Directions[errspkg.DirectionToMessage])
	}
	if snap.Directions[errspkg.DirectionToMessage].InputFaults != 1 {
		t.Fatalf("expected one toMessage input fault, got %+v", snap.Directions[errspkg.DirectionToMessage])
	}
	if snap.Directions[errspkg.DirectionFromBinary].InputFaults != 1 {
		t.Fatalf("expected fromBinary failure to be reported, got %+v", snap.Directions[errspkg.DirectionFromBinary])
	}

	count, err := testutil.GatherAndCount(reg, "protoconv_converter_failures_total")
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected failures for two directions, got %d series", count)
	}
}

func TestServiceForwardsExtraDiagnostics(t *testing.T) {
	rec := &recordingDiagnostics{}
	svc := NewService(&configpkg.Config{}, newTestLogger(), ServiceDependencies{Diagnostics: []diagpkg.Diagnostics{rec}})

	if _, err := svc.ToMessage(context.Background(), jsontree.MustParse(`{"age":"x"}`), schematest.Simple()); err == nil {
		t.Fatal("expected conversion error for type mismatch")
	}
	if _, err := svc.ToJSON(context.Background(), &emptypb.Empty{}); err != nil {
		t.Fatalf("to json failed: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.failed) != 1 || rec.failed[0].Cause != errspkg.CauseInput {
		t.Fatalf("expected one input fault, got %+v", rec.failed)
	}
	if len(rec.succeeded) != 1 || rec.succeeded[0].Direction != errspkg.DirectionToJSON {
		t.Fatalf("expected one toJson success, got %+v", rec.succeeded)
	}
}

func TestServiceUsesCustomConverter(t *testing.T) {
	conv := converter.NewProtobufConverter(converter.WithEmitUnpopulated(true))
	svc := NewService(&configpkg.Config{}, newTestLogger(), ServiceDependencies{Converter: conv})
	if svc.Converter() != conv {
		t.Fatal("expected custom converter to be used")
	}
}

func TestServiceTracesConversions(t *testing.T) {
	tracer := &recordingTracer{}
	svc := NewService(&configpkg.Config{TracingEnabled: true}, newTestLogger(), ServiceDependencies{
		TracerProvider: recordingProvider{tracer: tracer},
	})

	if _, err := svc.ToMessage(context.Background(), jsontree.MustParse(`{"name":"Ann"}`), schematest.Simple()); err != nil {
		t.Fatalf("to message failed: %v", err)
	}
	span := tracer.last(t)
	if span.attrs["conversion.direction"].AsString() != "toMessage" {
		t.Fatalf("unexpected direction attribute %v", span.attrs["conversion.direction"])
	}
	if span.attrs["conversion.schema"].AsString() != schematest.SimpleName {
		t.Fatalf("unexpected schema attribute %v", span.attrs["conversion.schema"])
	}
	if span.attrs["conversion.id"].AsString() == "" {
		t.Fatal("expected conversion id attribute")
	}
	if !span.ended || span.status == codes.Error {
		t.Fatal("expected successful span to be ended without error status")
	}

	if _, err := svc.ToMessage(context.Background(), jsontree.MustParse(`{"nope":1}`), schematest.Simple()); err == nil {
		t.Fatal("expected conversion error")
	}
	span = tracer.last(t)
	if span.status != codes.Error || len(span.errs) != 1 {
		t.Fatalf("expected error status and recorded error, got %v %v", span.status, span.errs)
	}
	if span.attrs["conversion.cause"].AsString() != "input" {
		t.Fatalf("unexpected cause attribute %v", span.attrs["conversion.cause"])
	}
}

func TestServiceEncodeJSONTextReportsParseFailures(t *testing.T) {
	rec := &recordingDiagnostics{}
	svc := NewService(&configpkg.Config{}, newTestLogger(), ServiceDependencies{Diagnostics: []diagpkg.Diagnostics{rec}})

	data, err := svc.EncodeJSONText(context.Background(), []byte(`{"name":"Ann","age":30}`), schematest.Simple())
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	res, err := svc.DecodeBinary(context.Background(), data, schematest.Simple())
	if err != nil || res.JSON.String() != `{"name":"Ann","age":30}` {
		t.Fatalf("unexpected decode %v err=%v", res.JSON, err)
	}

	_, err = svc.EncodeJSONText(context.Background(), []byte(`{"age":1,"age":2}`), schematest.Simple())
	convErr, ok := errspkg.AsConversionError(err)
	if !ok || convErr.Direction != errspkg.DirectionToMessage || convErr.Cause != errspkg.CauseInput {
		t.Fatalf("expected toMessage input fault, got %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.failed) != 1 || rec.failed[0] != convErr {
		t.Fatalf("expected the parse failure to be reported once, got %+v", rec.failed)
	}
}

func TestServiceEncodeJSONTextChecksSchemaFirst(t *testing.T) {
	rec := &recordingDiagnostics{}
	svc := NewService(&configpkg.Config{}, newTestLogger(), ServiceDependencies{Diagnostics: []diagpkg.Diagnostics{rec}})

	_, err := svc.EncodeJSONText(context.Background(), []byte(`{not json`), nil)
	if !errors.Is(err, errspkg.ErrSchemaRequired) {
		t.Fatalf("expected ErrSchemaRequired, got %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.failed) != 0 {
		t.Fatalf("contract errors should not be reported, got %+v", rec.failed)
	}
}
