// Package schema models the parsed schema handles the converter consumes. The
// handles are produced elsewhere (a registry client, generated code, a
// descriptor set on disk); this package only wraps them so the converter can
// build empty messages and resolve referenced types.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	errspkg "github.com/drblury/protoconv/internal/runtime/errors"
)

// Type tags the flavour of a parsed schema, using the schema registry names.
type Type string

const (
	TypeProtobuf Type = "PROTOBUF"
	TypeJSON     Type = "JSON"
	TypeAvro     Type = "AVRO"
)

// ParsedSchema is an opaque, already resolved schema handle.
type ParsedSchema interface {
	SchemaType() Type
	Name() string
}

// Resolver resolves message and extension types referenced from a schema, for
// example the payload of a google.protobuf.Any field.
type Resolver interface {
	protoregistry.MessageTypeResolver
	protoregistry.ExtensionTypeResolver
}

// ProtobufSchema is the structured-message variant of ParsedSchema.
type ProtobufSchema struct {
	messageType protoreflect.MessageType
	resolver    Resolver
}

var _ ParsedSchema = (*ProtobufSchema)(nil)

func (s *ProtobufSchema) SchemaType() Type { return TypeProtobuf }

// Name returns the fully qualified message name.
func (s *ProtobufSchema) Name() string {
	return string(s.messageType.Descriptor().FullName())
}

func (s *ProtobufSchema) String() string {
	return fmt.Sprintf("%s:%s", TypeProtobuf, s.Name())
}

// Descriptor exposes the message layout.
func (s *ProtobufSchema) Descriptor() protoreflect.MessageDescriptor {
	return s.messageType.Descriptor()
}

// MessageType returns the type used to instantiate builders.
func (s *ProtobufSchema) MessageType() protoreflect.MessageType {
	return s.messageType
}

// Resolver returns the resolver for types referenced from this schema.
func (s *ProtobufSchema) Resolver() Resolver {
	return s.resolver
}

// NewMessageBuilder returns a fresh, empty, mutable message of this schema.
func (s *ProtobufSchema) NewMessageBuilder() proto.Message {
	return s.messageType.New().Interface()
}

// Matches reports whether msg was built against this schema's message.
func (s *ProtobufSchema) Matches(msg proto.Message) bool {
	if msg == nil {
		return false
	}
	return msg.ProtoReflect().Descriptor().FullName() == s.messageType.Descriptor().FullName()
}

// OtherSchema is a non-protobuf handle. The converter refuses it.
type OtherSchema struct {
	Kind Type
	Full string
}

func (s OtherSchema) SchemaType() Type { return s.Kind }
func (s OtherSchema) Name() string     { return s.Full }

// AsProtobuf is the boundary check between an opaque handle and the protobuf
// variant. Any other flavour is a caller contract violation.
func AsProtobuf(ps ParsedSchema) (*ProtobufSchema, error) {
	if ps == nil {
		return nil, errspkg.ErrSchemaRequired
	}
	pb, ok := ps.(*ProtobufSchema)
	if ok && pb == nil {
		return nil, errspkg.ErrSchemaRequired
	}
	if !ok || ps.SchemaType() != TypeProtobuf {
		return nil, fmt.Errorf("%w: got %s schema %q", errspkg.ErrUnsupportedSchemaType, ps.SchemaType(), ps.Name())
	}
	return pb, nil
}

// FromMessage builds a schema from a generated message. Builders produced by
// the schema are instances of the generated Go type.
func FromMessage(msg proto.Message) (*ProtobufSchema, error) {
	if msg == nil {
		return nil, errspkg.ErrMessageTypeRequired
	}
	return &ProtobufSchema{
		messageType: msg.ProtoReflect().Type(),
		resolver:    protoregistry.GlobalTypes,
	}, nil
}

// FromDescriptor builds a schema around a message descriptor. Builders are
// dynamic messages.
func FromDescriptor(desc protoreflect.MessageDescriptor) (*ProtobufSchema, error) {
	if desc == nil {
		return nil, errspkg.ErrMessageTypeRequired
	}
	resolver, err := fileResolver(desc)
	if err != nil {
		return nil, err
	}
	return &ProtobufSchema{
		messageType: dynamicpb.NewMessageType(desc),
		resolver:    resolver,
	}, nil
}

// ResolverFor returns a resolver for the types reachable from desc: its own
// file and everything that file imports, falling back to the global registry.
// Generated messages resolve through the global registry directly.
func ResolverFor(desc protoreflect.MessageDescriptor) (Resolver, error) {
	if desc == nil {
		return nil, errspkg.ErrMessageTypeRequired
	}
	if mt, err := protoregistry.GlobalTypes.FindMessageByName(desc.FullName()); err == nil && mt.Descriptor() == desc {
		return protoregistry.GlobalTypes, nil
	}
	local, err := fileResolver(desc)
	if err != nil {
		return nil, err
	}
	return chainResolver{local, protoregistry.GlobalTypes}, nil
}

func fileResolver(desc protoreflect.MessageDescriptor) (Resolver, error) {
	files := new(protoregistry.Files)
	if err := registerWithDependencies(files, desc.ParentFile()); err != nil {
		return nil, err
	}
	return dynamicpb.NewTypes(files), nil
}

// chainResolver asks each resolver in order and returns the first match.
type chainResolver []Resolver

func (c chainResolver) FindMessageByName(name protoreflect.FullName) (protoreflect.MessageType, error) {
	for _, r := range c {
		if mt, err := r.FindMessageByName(name); !errors.Is(err, protoregistry.NotFound) {
			return mt, err
		}
	}
	return nil, protoregistry.NotFound
}

func (c chainResolver) FindMessageByURL(url string) (protoreflect.MessageType, error) {
	for _, r := range c {
		if mt, err := r.FindMessageByURL(url); !errors.Is(err, protoregistry.NotFound) {
			return mt, err
		}
	}
	return nil, protoregistry.NotFound
}

func (c chainResolver) FindExtensionByName(name protoreflect.FullName) (protoreflect.ExtensionType, error) {
	for _, r := range c {
		if xt, err := r.FindExtensionByName(name); !errors.Is(err, protoregistry.NotFound) {
			return xt, err
		}
	}
	return nil, protoregistry.NotFound
}

func (c chainResolver) FindExtensionByNumber(message protoreflect.FullName, field protoreflect.FieldNumber) (protoreflect.ExtensionType, error) {
	for _, r := range c {
		if xt, err := r.FindExtensionByNumber(message, field); !errors.Is(err, protoregistry.NotFound) {
			return xt, err
		}
	}
	return nil, protoregistry.NotFound
}

// FromFiles looks up fullName in files.
func FromFiles(files *protoregistry.Files, fullName string) (*ProtobufSchema, error) {
	if files == nil {
		return nil, errspkg.ErrSchemaRequired
	}
	name := protoreflect.FullName(strings.TrimPrefix(fullName, "."))
	if !name.IsValid() {
		return nil, fmt.Errorf("schema: invalid message name %q", fullName)
	}

	desc, err := files.FindDescriptorByName(name)
	if err != nil {
		return nil, fmt.Errorf("schema: find %s: %w", name, err)
	}
	md, ok := desc.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, fmt.Errorf("schema: %s is not a message", name)
	}
	return &ProtobufSchema{
		messageType: dynamicpb.NewMessageType(md),
		resolver:    dynamicpb.NewTypes(files),
	}, nil
}

// FromFileDescriptorSet parses a serialized google.protobuf.FileDescriptorSet
// (for example the output of `protoc --descriptor_set_out`) and selects
// fullName from it.
func FromFileDescriptorSet(data []byte, fullName string) (*ProtobufSchema, error) {
	if len(data) == 0 {
		return nil, errspkg.ErrSchemaRequired
	}
	set := &descriptorpb.FileDescriptorSet{}
	if err := proto.Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("schema: decode descriptor set: %w", err)
	}
	files, err := protodesc.NewFiles(set)
	if err != nil {
		return nil, fmt.Errorf("schema: build descriptor set: %w", err)
	}
	return FromFiles(files, fullName)
}

func registerWithDependencies(files *protoregistry.Files, fd protoreflect.FileDescriptor) error {
	if _, err := files.FindFileByPath(fd.Path()); err == nil {
		return nil
	}
	imports := fd.Imports()
	for i := 0; i < imports.Len(); i++ {
		dep := imports.Get(i).FileDescriptor
		if dep.IsPlaceholder() {
			continue
		}
		if err := registerWithDependencies(files, dep); err != nil {
			return err
		}
	}
	if err := files.RegisterFile(fd); err != nil {
		return fmt.Errorf("schema: register %s: %w", fd.Path(), err)
	}
	return nil
}
