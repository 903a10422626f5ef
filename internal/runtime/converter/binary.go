package converter

import (
	"google.golang.org/protobuf/proto"

	errspkg "github.com/drblury/protoconv/internal/runtime/errors"
	"github.com/drblury/protoconv/internal/runtime/jsontree"
	schemapkg "github.com/drblury/protoconv/internal/runtime/schema"
)

var deterministicMarshal = proto.MarshalOptions{Deterministic: true}

type schemaRememberer interface {
	rememberSchema(pb *schemapkg.ProtobufSchema)
}

// EncodeBinary converts value into a message with conv and serializes it to
// protobuf wire format. Map entries are written in a stable order so equal
// trees produce equal bytes.
func EncodeBinary(conv SchemaConverter, value jsontree.Value, schema schemapkg.ParsedSchema) ([]byte, error) {
	if conv == nil {
		return nil, errspkg.ErrConverterRequired
	}
	msg, err := conv.ToMessage(value, schema)
	if err != nil {
		return nil, err
	}
	data, err := deterministicMarshal.Marshal(msg)
	if err != nil {
		return nil, errspkg.NewConversionError(errspkg.DirectionToBinary, errspkg.CauseInput, err)
	}
	return data, nil
}

// DecodeBinary parses protobuf wire data against schema and converts the
// message to JSON with conv. Empty data decodes to a message with every field
// unset, as the wire format defines.
func DecodeBinary(conv SchemaConverter, data []byte, schema schemapkg.ParsedSchema) (Result, error) {
	if conv == nil {
		return Result{}, errspkg.ErrConverterRequired
	}
	pb, err := schemapkg.AsProtobuf(schema)
	if err != nil {
		return Result{}, err
	}

	if r, ok := conv.(schemaRememberer); ok {
		r.rememberSchema(pb)
	}

	msg := pb.NewMessageBuilder()
	unmarshal := proto.UnmarshalOptions{Resolver: pb.Resolver()}
	if err := unmarshal.Unmarshal(data, msg); err != nil {
		return Result{}, errspkg.NewConversionError(errspkg.DirectionFromBinary, errspkg.CauseInput, err)
	}
	return conv.ToJSON(msg)
}
