package runtime

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/protobuf/proto"

	configpkg "github.com/drblury/protoconv/internal/runtime/config"
	"github.com/drblury/protoconv/internal/runtime/converter"
	diagpkg "github.com/drblury/protoconv/internal/runtime/diagnostics"
	errspkg "github.com/drblury/protoconv/internal/runtime/errors"
	idspkg "github.com/drblury/protoconv/internal/runtime/ids"
	"github.com/drblury/protoconv/internal/runtime/jsontree"
	loggingpkg "github.com/drblury/protoconv/internal/runtime/logging"
	metricspkg "github.com/drblury/protoconv/internal/runtime/metrics"
	schemapkg "github.com/drblury/protoconv/internal/runtime/schema"
)

// ServiceDependencies holds the optional collaborators that the Service can use.
// Leave fields nil to fall back to the defaults derived from the config.
type ServiceDependencies struct {
	// Converter replaces the protobuf converter built from the config. A custom
	// converter reports its own diagnostics.
	Converter converter.SchemaConverter
	// Registerer receives the conversion metrics. Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// TracerProvider is used when tracing is enabled. Defaults to the global provider.
	TracerProvider trace.TracerProvider
	// Diagnostics are appended after the logger and metrics sinks.
	Diagnostics []diagpkg.Diagnostics
}

// Service wraps a SchemaConverter with logging, metrics, and tracing. It is
// safe for concurrent use.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	converter   converter.SchemaConverter
	diagnostics diagpkg.Diagnostics
	metrics     *metricspkg.ConversionMetrics
	tracer      trace.Tracer
}

// NewService constructs a Service for the supplied configuration and panics
// when the configuration is invalid.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ServiceDependencies) *Service {
	svc, err := TryNewService(conf, log, deps)
	if err != nil {
		panic(err)
	}
	return svc
}

// TryNewService is like NewService but returns configuration errors.
func TryNewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}

	log.Info("Creating converter service", loggingpkg.LogFields{
		"config": conf,
	})

	s := &Service{
		Conf:   conf,
		Logger: log,
	}

	sinks := []diagpkg.Diagnostics{diagpkg.NewLoggerDiagnostics(log)}
	if conf.MetricsEnabled {
		s.metrics = metricspkg.NewConversionMetrics(deps.Registerer, conf.Namespace())
		if err := s.metrics.Register(); err != nil {
			return nil, err
		}
		sinks = append(sinks, s.metrics)
	}
	sinks = append(sinks, deps.Diagnostics...)
	s.diagnostics = diagpkg.Multi(sinks...)

	if deps.Converter != nil {
		s.converter = deps.Converter
	} else {
		opts := append(converter.OptionsFromConfig(conf), converter.WithDiagnostics(s.diagnostics))
		s.converter = converter.NewProtobufConverter(opts...)
	}

	s.tracer = noop.NewTracerProvider().Tracer(conf.Tracer())
	if conf.TracingEnabled {
		provider := deps.TracerProvider
		if provider == nil {
			provider = otel.GetTracerProvider()
		}
		s.tracer = provider.Tracer(conf.Tracer())
	}

	return s, nil
}

// Converter returns the underlying SchemaConverter.
func (s *Service) Converter() converter.SchemaConverter {
	return s.converter
}

// Metrics returns the conversion metrics, or nil when metrics are disabled.
func (s *Service) Metrics() *metricspkg.ConversionMetrics {
	return s.metrics
}

// ToMessage converts a JSON tree into a message built from schema.
func (s *Service) ToMessage(ctx context.Context, value jsontree.Value, schema schemapkg.ParsedSchema) (proto.Message, error) {
	_, span := s.startSpan(ctx, errspkg.DirectionToMessage, schemaName(schema))
	defer span.End()

	msg, err := s.converter.ToMessage(value, schema)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return msg, nil
}

// ToJSON converts msg into a JSON tree. An absent message yields an empty
// Result and no error.
func (s *Service) ToJSON(ctx context.Context, msg proto.Message) (converter.Result, error) {
	name := ""
	if !converter.IsAbsent(msg) {
		name = string(msg.ProtoReflect().Descriptor().FullName())
	}
	_, span := s.startSpan(ctx, errspkg.DirectionToJSON, name)
	defer span.End()

	res, err := s.converter.ToJSON(msg)
	if err != nil {
		recordSpanError(span, err)
		return converter.Result{}, err
	}
	span.SetAttributes(attribute.Int("conversion.size_bytes", res.Size))
	return res, nil
}

// EncodeJSON converts value into protobuf wire bytes for schema.
func (s *Service) EncodeJSON(ctx context.Context, value jsontree.Value, schema schemapkg.ParsedSchema) ([]byte, error) {
	name := schemaName(schema)
	_, span := s.startSpan(ctx, errspkg.DirectionToBinary, name)
	defer span.End()

	return s.encode(span, name, time.Now(), value, schema)
}

// EncodeJSONText parses JSON text and converts it into protobuf wire bytes for
// schema. Malformed text is a toMessage input fault.
func (s *Service) EncodeJSONText(ctx context.Context, text []byte, schema schemapkg.ParsedSchema) ([]byte, error) {
	name := schemaName(schema)
	_, span := s.startSpan(ctx, errspkg.DirectionToBinary, name)
	defer span.End()

	if _, err := schemapkg.AsProtobuf(schema); err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	start := time.Now()
	value, err := jsontree.Parse(text)
	if err != nil {
		err = errspkg.NewConversionError(errspkg.DirectionToMessage, errspkg.CauseInput, err)
		s.reportFailure(errspkg.DirectionToMessage, name, len(text), start, err)
		recordSpanError(span, err)
		return nil, err
	}
	return s.encode(span, name, start, value, schema)
}

func (s *Service) encode(span trace.Span, name string, start time.Time, value jsontree.Value, schema schemapkg.ParsedSchema) ([]byte, error) {
	data, err := converter.EncodeBinary(s.converter, value, schema)
	if err != nil {
		s.reportFailure(errspkg.DirectionToBinary, name, 0, start, err)
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("conversion.size_bytes", len(data)))
	return data, nil
}

// DecodeBinary parses protobuf wire bytes for schema and converts the message
// into a JSON tree.
func (s *Service) DecodeBinary(ctx context.Context, data []byte, schema schemapkg.ParsedSchema) (converter.Result, error) {
	name := schemaName(schema)
	_, span := s.startSpan(ctx, errspkg.DirectionFromBinary, name)
	defer span.End()

	start := time.Now()
	res, err := converter.DecodeBinary(s.converter, data, schema)
	if err != nil {
		s.reportFailure(errspkg.DirectionFromBinary, name, 0, start, err)
		recordSpanError(span, err)
		return converter.Result{}, err
	}
	span.SetAttributes(attribute.Int("conversion.size_bytes", res.Size))
	return res, nil
}

// reportFailure forwards failures raised outside the converter: malformed JSON
// text and the wire codec. Errors tagged with another direction were already
// reported by the converter.
func (s *Service) reportFailure(direction errspkg.Direction, name string, size int, start time.Time, err error) {
	convErr, ok := errspkg.AsConversionError(err)
	if !ok || convErr.Direction != direction {
		return
	}
	s.diagnostics.ConversionFailed(diagpkg.Event{
		Direction: direction,
		Schema:    name,
		Size:      size,
		Duration:  time.Since(start),
	}, convErr)
}

func (s *Service) startSpan(ctx context.Context, direction errspkg.Direction, name string) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.tracer.Start(ctx, "Convert",
		trace.WithAttributes(
			attribute.String("conversion.direction", string(direction)),
			attribute.String("conversion.schema", name),
			attribute.String("conversion.id", idspkg.New()),
		),
	)
}

func recordSpanError(span trace.Span, err error) {
	if convErr, ok := errspkg.AsConversionError(err); ok {
		span.SetAttributes(attribute.String("conversion.cause", convErr.Cause.String()))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func schemaName(schema schemapkg.ParsedSchema) string {
	pb, err := schemapkg.AsProtobuf(schema)
	if err != nil {
		return ""
	}
	return pb.Name()
}
