package handlers

import (
	"context"
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/protoconv/internal/runtime/converter"
	errspkg "github.com/drblury/protoconv/internal/runtime/errors"
	idspkg "github.com/drblury/protoconv/internal/runtime/ids"
	"github.com/drblury/protoconv/internal/runtime/jsontree"
	metadatapkg "github.com/drblury/protoconv/internal/runtime/metadata"
	schemapkg "github.com/drblury/protoconv/internal/runtime/schema"
)

// Transcoder converts between JSON text and protobuf wire bytes. The runtime
// Service implements it and reports every failure, including malformed JSON
// text, to its diagnostics sinks.
type Transcoder interface {
	EncodeJSONText(ctx context.Context, text []byte, schema schemapkg.ParsedSchema) ([]byte, error)
	DecodeBinary(ctx context.Context, data []byte, schema schemapkg.ParsedSchema) (converter.Result, error)
}

// NewJSONToProtoHandler returns a Watermill handler that rewrites JSON
// payloads into protobuf wire bytes for schema. The emitted message gets a new
// ULID and a copy of the incoming metadata.
func NewJSONToProtoHandler(t Transcoder, schema schemapkg.ParsedSchema) (message.HandlerFunc, error) {
	pb, err := checkArgs(t, schema)
	if err != nil {
		return nil, err
	}

	return func(msg *message.Message) ([]*message.Message, error) {
		if len(msg.Payload) == 0 {
			return nil, errspkg.ErrPayloadRequired
		}

		data, err := t.EncodeJSONText(msg.Context(), msg.Payload, pb)
		if err != nil {
			return nil, err
		}

		out := newDerivedMessage(msg, data, metadatapkg.Metadata{
			metadatapkg.KeySchema:      pb.Name(),
			metadatapkg.KeyContentType: metadatapkg.ContentTypeProtobuf,
		})
		return []*message.Message{out}, nil
	}, nil
}

// NewProtoToJSONHandler returns a Watermill handler that rewrites protobuf
// wire payloads into canonical JSON text. The size of the printer's JSON text
// is forwarded in the protoconv_json_size header.
func NewProtoToJSONHandler(t Transcoder, schema schemapkg.ParsedSchema) (message.HandlerFunc, error) {
	pb, err := checkArgs(t, schema)
	if err != nil {
		return nil, err
	}

	return func(msg *message.Message) ([]*message.Message, error) {
		res, err := t.DecodeBinary(msg.Context(), msg.Payload, pb)
		if err != nil {
			return nil, err
		}
		if !res.Present() {
			return nil, nil
		}

		payload, err := jsontree.Marshal(*res.JSON)
		if err != nil {
			return nil, errspkg.NewConversionError(errspkg.DirectionToJSON, errspkg.CauseCodec, err)
		}

		out := newDerivedMessage(msg, payload, metadatapkg.Metadata{
			metadatapkg.KeySchema:      pb.Name(),
			metadatapkg.KeyContentType: metadatapkg.ContentTypeJSON,
			metadatapkg.KeyJSONSize:    strconv.Itoa(res.Size),
		})
		return []*message.Message{out}, nil
	}, nil
}

func checkArgs(t Transcoder, schema schemapkg.ParsedSchema) (*schemapkg.ProtobufSchema, error) {
	if t == nil {
		return nil, errspkg.ErrConverterRequired
	}
	return schemapkg.AsProtobuf(schema)
}

func newDerivedMessage(src *message.Message, payload []byte, extra metadatapkg.Metadata) *message.Message {
	md := metadatapkg.FromWatermill(src.Metadata).WithAll(extra)
	md = md.With(metadatapkg.KeySourceID, src.UUID)

	out := message.NewMessage(idspkg.New(), payload)
	out.Metadata = metadatapkg.ToWatermill(md)
	out.SetContext(src.Context())
	return out
}
