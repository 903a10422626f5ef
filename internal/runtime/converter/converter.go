// Package converter transcodes between JSON trees and protobuf messages using
// a schema resolved at runtime.
package converter

import (
	"fmt"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	diagpkg "github.com/drblury/protoconv/internal/runtime/diagnostics"
	errspkg "github.com/drblury/protoconv/internal/runtime/errors"
	"github.com/drblury/protoconv/internal/runtime/jsontree"
	schemapkg "github.com/drblury/protoconv/internal/runtime/schema"
)

// parseJSONTree is swapped in tests to exercise the codec fault path.
var parseJSONTree = jsontree.Parse

// Result is the outcome of converting a message to JSON. JSON is nil when the
// input message was absent; Size is the byte length of the JSON text the
// printer produced.
type Result struct {
	JSON *jsontree.Value
	Size int
}

// Present reports whether the result carries a JSON tree.
func (r Result) Present() bool { return r.JSON != nil }

// SchemaConverter converts between JSON trees and schema-bound messages.
type SchemaConverter interface {
	ToMessage(value jsontree.Value, schema schemapkg.ParsedSchema) (proto.Message, error)
	ToJSON(msg proto.Message) (Result, error)
}

// ProtobufConverter is the protobuf SchemaConverter. Its options are immutable
// and it is safe for concurrent use.
type ProtobufConverter struct {
	marshal      protojson.MarshalOptions
	unmarshal    protojson.UnmarshalOptions
	maxJSONBytes int
	diagnostics  diagpkg.Diagnostics

	// resolvers maps a message descriptor to the resolver used to print its
	// google.protobuf.Any payloads.
	resolvers sync.Map
}

var _ SchemaConverter = (*ProtobufConverter)(nil)

// NewProtobufConverter builds a converter. Unknown JSON keys are always
// rejected; there is no option to discard them.
func NewProtobufConverter(opts ...Option) *ProtobufConverter {
	cfg := applyOptions(opts)
	return &ProtobufConverter{
		marshal: protojson.MarshalOptions{
			EmitUnpopulated: cfg.emitUnpopulated,
			UseProtoNames:   cfg.useProtoNames,
			AllowPartial:    cfg.allowPartial,
			Resolver:        cfg.resolver,
		},
		unmarshal: protojson.UnmarshalOptions{
			AllowPartial:   cfg.allowPartial,
			DiscardUnknown: false,
			Resolver:       cfg.resolver,
		},
		maxJSONBytes: cfg.maxJSONBytes,
		diagnostics:  cfg.diagnostics,
	}
}

// ToMessage serializes value to canonical JSON text and merges it into a fresh
// builder obtained from schema. A non-protobuf schema is a contract violation
// and is reported with ErrUnsupportedSchemaType instead of a ConversionError.
func (c *ProtobufConverter) ToMessage(value jsontree.Value, schema schemapkg.ParsedSchema) (proto.Message, error) {
	pb, err := schemapkg.AsProtobuf(schema)
	if err != nil {
		return nil, err
	}

	c.rememberSchema(pb)

	start := time.Now()
	msg, size, err := c.toMessage(value, pb)
	ev := diagpkg.Event{
		Direction: errspkg.DirectionToMessage,
		Schema:    pb.Name(),
		Size:      size,
		Duration:  time.Since(start),
	}
	if err != nil {
		return nil, c.fail(ev, err)
	}
	c.diagnostics.ConversionSucceeded(ev)
	return msg, nil
}

func (c *ProtobufConverter) toMessage(value jsontree.Value, pb *schemapkg.ProtobufSchema) (proto.Message, int, error) {
	text, err := jsontree.Marshal(value)
	if err != nil {
		return nil, 0, errspkg.NewConversionError(errspkg.DirectionToMessage, errspkg.CauseInput, err)
	}
	if c.maxJSONBytes > 0 && len(text) > c.maxJSONBytes {
		err := fmt.Errorf("JSON text is %d bytes, limit is %d", len(text), c.maxJSONBytes)
		return nil, len(text), errspkg.NewConversionError(errspkg.DirectionToMessage, errspkg.CauseInput, err)
	}

	builder := pb.NewMessageBuilder()
	unmarshal := c.unmarshal
	if unmarshal.Resolver == nil {
		unmarshal.Resolver = pb.Resolver()
	}
	if err := unmarshal.Unmarshal(text, builder); err != nil {
		return nil, len(text), errspkg.NewConversionError(errspkg.DirectionToMessage, errspkg.CauseInput, err)
	}
	return builder, len(text), nil
}

// ToJSON prints msg as protobuf JSON and parses the text into a tree. An
// absent message (nil, or a typed nil) yields an empty Result and no error.
func (c *ProtobufConverter) ToJSON(msg proto.Message) (Result, error) {
	if IsAbsent(msg) {
		return Result{}, nil
	}

	start := time.Now()
	res, size, err := c.toJSON(msg)
	ev := diagpkg.Event{
		Direction: errspkg.DirectionToJSON,
		Schema:    string(msg.ProtoReflect().Descriptor().FullName()),
		Size:      size,
		Duration:  time.Since(start),
	}
	if err != nil {
		return Result{}, c.fail(ev, err)
	}
	c.diagnostics.ConversionSucceeded(ev)
	return res, nil
}

func (c *ProtobufConverter) toJSON(msg proto.Message) (res Result, size int, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = errspkg.NewConversionError(errspkg.DirectionToJSON, errspkg.CauseCodec, fmt.Errorf("printer panicked: %v", r))
		}
	}()

	marshal := c.marshal
	if marshal.Resolver == nil {
		resolver, err := c.resolverFor(msg.ProtoReflect().Descriptor())
		if err != nil {
			return Result{}, 0, errspkg.NewConversionError(errspkg.DirectionToJSON, errspkg.CauseCodec, err)
		}
		marshal.Resolver = resolver
	}

	text, err := marshal.Marshal(msg)
	if err != nil {
		return Result{}, 0, errspkg.NewConversionError(errspkg.DirectionToJSON, errspkg.CauseInput, err)
	}
	size = len(text)

	tree, err := parseJSONTree(text)
	if err != nil {
		return Result{}, size, errspkg.NewConversionError(errspkg.DirectionToJSON, errspkg.CauseCodec, err)
	}
	return Result{JSON: &tree, Size: size}, size, nil
}

// rememberSchema records the schema's resolver so messages built from it print
// their Any payloads with the same types they were parsed with.
func (c *ProtobufConverter) rememberSchema(pb *schemapkg.ProtobufSchema) {
	if pb.Resolver() == nil {
		return
	}
	c.resolvers.LoadOrStore(pb.Descriptor(), pb.Resolver())
}

func (c *ProtobufConverter) resolverFor(desc protoreflect.MessageDescriptor) (schemapkg.Resolver, error) {
	if cached, ok := c.resolvers.Load(desc); ok {
		return cached.(schemapkg.Resolver), nil
	}
	resolver, err := schemapkg.ResolverFor(desc)
	if err != nil {
		return nil, err
	}
	actual, _ := c.resolvers.LoadOrStore(desc, resolver)
	return actual.(schemapkg.Resolver), nil
}

func (c *ProtobufConverter) fail(ev diagpkg.Event, err error) error {
	if convErr, ok := errspkg.AsConversionError(err); ok {
		c.diagnostics.ConversionFailed(ev, convErr)
	}
	return err
}

// IsAbsent reports whether msg is nil or wraps a nil message.
func IsAbsent(msg proto.Message) bool {
	return msg == nil || !msg.ProtoReflect().IsValid()
}
