package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	runtimepkg "github.com/drblury/protoconv/internal/runtime"
	configpkg "github.com/drblury/protoconv/internal/runtime/config"
	"github.com/drblury/protoconv/internal/runtime/converter"
	errspkg "github.com/drblury/protoconv/internal/runtime/errors"
	idspkg "github.com/drblury/protoconv/internal/runtime/ids"
	"github.com/drblury/protoconv/internal/runtime/jsontree"
	loggingpkg "github.com/drblury/protoconv/internal/runtime/logging"
	metadatapkg "github.com/drblury/protoconv/internal/runtime/metadata"
	schemapkg "github.com/drblury/protoconv/internal/runtime/schema"
	"github.com/drblury/protoconv/internal/runtime/schema/schematest"
)

type converterTranscoder struct {
	conv converter.SchemaConverter
}

func (c converterTranscoder) EncodeJSONText(_ context.Context, text []byte, schema schemapkg.ParsedSchema) ([]byte, error) {
	value, err := jsontree.Parse(text)
	if err != nil {
		return nil, errspkg.NewConversionError(errspkg.DirectionToMessage, errspkg.CauseInput, err)
	}
	return converter.EncodeBinary(c.conv, value, schema)
}

func (c converterTranscoder) DecodeBinary(_ context.Context, data []byte, schema schemapkg.ParsedSchema) (converter.Result, error) {
	return converter.DecodeBinary(c.conv, data, schema)
}

func newTranscoder() Transcoder {
	return converterTranscoder{conv: converter.NewProtobufConverter()}
}

func TestJSONToProtoAndBack(t *testing.T) {
	schema := schematest.Simple()
	toProto, err := NewJSONToProtoHandler(newTranscoder(), schema)
	if err != nil {
		t.Fatalf("unexpected error building handler: %v", err)
	}
	toJSON, err := NewProtoToJSONHandler(newTranscoder(), schema)
	if err != nil {
		t.Fatalf("unexpected error building handler: %v", err)
	}

	in := message.NewMessage(idspkg.New(), []byte(`{"name":"Ann","age":30}`))
	in.Metadata = message.Metadata{"origin": "test"}

	encoded, err := toProto(in)
	if err != nil {
		t.Fatalf("json to proto failed: %v", err)
	}
	if len(encoded) != 1 {
		t.Fatalf("expected single outgoing message, got %d", len(encoded))
	}
	bin := encoded[0]
	if bin.Metadata.Get(metadatapkg.KeyContentType) != metadatapkg.ContentTypeProtobuf {
		t.Fatalf("unexpected content type %q", bin.Metadata.Get(metadatapkg.KeyContentType))
	}
	if bin.Metadata.Get(metadatapkg.KeySchema) != schematest.SimpleName {
		t.Fatalf("unexpected schema header %q", bin.Metadata.Get(metadatapkg.KeySchema))
	}
	if bin.Metadata.Get(metadatapkg.KeySourceID) != in.UUID || bin.UUID == in.UUID {
		t.Fatal("expected a new message linked to its source")
	}
	if bin.Metadata.Get("origin") != "test" {
		t.Fatal("expected incoming metadata to be carried over")
	}
	if _, ok := in.Metadata[metadatapkg.KeySchema]; ok {
		t.Fatal("incoming metadata must not be mutated")
	}

	decoded, err := toJSON(bin)
	if err != nil {
		t.Fatalf("proto to json failed: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("expected single outgoing message, got %d", len(decoded))
	}
	if got := string(decoded[0].Payload); got != `{"name":"Ann","age":30}` {
		t.Fatalf("unexpected JSON payload %s", got)
	}
	if decoded[0].Metadata.Get(metadatapkg.KeyJSONSize) == "" {
		t.Fatal("expected JSON size header")
	}
}

func TestJSONToProtoRejectsBadPayloads(t *testing.T) {
	handler, err := NewJSONToProtoHandler(newTranscoder(), schematest.Simple())
	if err != nil {
		t.Fatalf("unexpected error building handler: %v", err)
	}

	if _, err := handler(message.NewMessage(idspkg.New(), nil)); !errors.Is(err, errspkg.ErrPayloadRequired) {
		t.Fatalf("expected ErrPayloadRequired, got %v", err)
	}
	if _, err := handler(message.NewMessage(idspkg.New(), []byte(`{invalid-json`))); !errspkg.IsConversionError(err) {
		t.Fatalf("expected conversion error for malformed JSON, got %v", err)
	}
	if _, err := handler(message.NewMessage(idspkg.New(), []byte(`{"unknownField":1}`))); !errspkg.IsConversionError(err) {
		t.Fatalf("expected conversion error for unknown field, got %v", err)
	}
}

func TestProtoToJSONRejectsGarbage(t *testing.T) {
	handler, err := NewProtoToJSONHandler(newTranscoder(), schematest.Simple())
	if err != nil {
		t.Fatalf("unexpected error building handler: %v", err)
	}
	if _, err := handler(message.NewMessage(idspkg.New(), []byte{0x0a, 0xff})); !errspkg.IsConversionError(err) {
		t.Fatalf("expected conversion error, got %v", err)
	}
}

func TestHandlerConstructionValidatesArguments(t *testing.T) {
	if _, err := NewJSONToProtoHandler(nil, schematest.Simple()); !errors.Is(err, errspkg.ErrConverterRequired) {
		t.Fatalf("expected ErrConverterRequired, got %v", err)
	}
	if _, err := NewProtoToJSONHandler(newTranscoder(), nil); !errors.Is(err, errspkg.ErrSchemaRequired) {
		t.Fatalf("expected ErrSchemaRequired, got %v", err)
	}
	avro := schemapkg.OtherSchema{Kind: schemapkg.TypeAvro, Full: "User"}
	if _, err := NewJSONToProtoHandler(newTranscoder(), avro); !errors.Is(err, errspkg.ErrUnsupportedSchemaType) {
		t.Fatalf("expected ErrUnsupportedSchemaType, got %v", err)
	}
}

func TestJSONToProtoReportsMalformedPayloads(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc := runtimepkg.NewService(&configpkg.Config{MetricsEnabled: true}, loggingpkg.NewNopServiceLogger(), runtimepkg.ServiceDependencies{Registerer: reg})
	handler, err := NewJSONToProtoHandler(svc, schematest.Simple())
	if err != nil {
		t.Fatalf("unexpected error building handler: %v", err)
	}

	payloads := [][]byte{
		[]byte(`{invalid-json`),
		[]byte("{\"name\":\"\xff\"}"),
		[]byte(`{"name":"Ann","name":"Bob"}`),
	}
	for _, payload := range payloads {
		if _, err := handler(message.NewMessage(idspkg.New(), payload)); !errspkg.IsConversionError(err) {
			t.Fatalf("expected conversion error for %q, got %v", payload, err)
		}
	}

	got := svc.Metrics().Snapshot().Directions[errspkg.DirectionToMessage].InputFaults
	if got != uint64(len(payloads)) {
		t.Fatalf("expected %d reported input faults, got %d", len(payloads), got)
	}
}
