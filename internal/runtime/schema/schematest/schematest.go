// Package schematest builds descriptor-backed schemas for tests without
// generated code.
package schematest

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/anypb"

	schemapkg "github.com/drblury/protoconv/internal/runtime/schema"
)

const (
	Package      = "protoconv.test"
	PersonName   = Package + ".Person"
	SimpleName   = Package + ".Simple"
	LegacyName   = Package + ".Legacy"
	EnvelopeName = Package + ".Envelope"
	NoteName     = Package + ".Note"
)

// File returns the descriptor of the test file:
//
//	syntax = "proto3";
//	package protoconv.test;
//	enum Status { STATUS_UNSPECIFIED = 0; STATUS_ACTIVE = 1; STATUS_INACTIVE = 2; }
//	message Simple { string name = 1; int32 age = 2; }
//	message Address { string street = 1; string city = 2; }
//	message Person {
//	  string name = 1; int32 age = 2; repeated string tags = 3; Address address = 4;
//	  Status status = 5; bytes avatar = 6; int64 balance = 7; double score = 8;
//	  map<string, int32> counters = 9; bool active = 10; repeated Address previous = 11;
//	}
func File() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("protoconv/test/person.proto"),
		Package: proto.String(Package),
		Syntax:  proto.String("proto3"),
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("Status"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("STATUS_UNSPECIFIED"), Number: proto.Int32(0)},
				{Name: proto.String("STATUS_ACTIVE"), Number: proto.Int32(1)},
				{Name: proto.String("STATUS_INACTIVE"), Number: proto.Int32(2)},
			},
		}},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("Simple"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalar("age", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				},
			},
			{
				Name: proto.String("Address"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("street", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalar("city", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				},
			},
			{
				Name: proto.String("Person"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalar("age", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					repeated(scalar("tags", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
					typed("address", 4, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, "."+Package+".Address"),
					typed("status", 5, descriptorpb.FieldDescriptorProto_TYPE_ENUM, "."+Package+".Status"),
					scalar("avatar", 6, descriptorpb.FieldDescriptorProto_TYPE_BYTES),
					scalar("balance", 7, descriptorpb.FieldDescriptorProto_TYPE_INT64),
					scalar("score", 8, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
					repeated(typed("counters", 9, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, "."+PersonName+".CountersEntry")),
					scalar("active", 10, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
					repeated(typed("previous", 11, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, "."+Package+".Address")),
				},
				NestedType: []*descriptorpb.DescriptorProto{{
					Name: proto.String("CountersEntry"),
					Field: []*descriptorpb.FieldDescriptorProto{
						scalar("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
						scalar("value", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					},
					Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
				}},
			},
		},
	}
}

// LegacyFile returns a proto2 file with a required field:
//
//	syntax = "proto2";
//	package protoconv.test;
//	message Legacy { required string id = 1; optional int32 count = 2; }
func LegacyFile() *descriptorpb.FileDescriptorProto {
	id := scalar("id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING)
	id.Label = descriptorpb.FieldDescriptorProto_LABEL_REQUIRED.Enum()
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("protoconv/test/legacy.proto"),
		Package: proto.String(Package),
		Syntax:  proto.String("proto2"),
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("Legacy"),
			Field: []*descriptorpb.FieldDescriptorProto{
				id,
				scalar("count", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
			},
		}},
	}
}

// EnvelopeFile returns a file whose message carries an Any payload:
//
//	syntax = "proto3";
//	package protoconv.test;
//	import "google/protobuf/any.proto";
//	message Envelope { google.protobuf.Any payload = 1; }
//	message Note { string text = 1; }
func EnvelopeFile() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String("protoconv/test/envelope.proto"),
		Package:    proto.String(Package),
		Syntax:     proto.String("proto3"),
		Dependency: []string{anypb.File_google_protobuf_any_proto.Path()},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("Envelope"),
				Field: []*descriptorpb.FieldDescriptorProto{
					typed("payload", 1, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".google.protobuf.Any"),
				},
			},
			{
				Name: proto.String("Note"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("text", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				},
			},
		},
	}
}

func allFiles() []*descriptorpb.FileDescriptorProto {
	return []*descriptorpb.FileDescriptorProto{
		protodesc.ToFileDescriptorProto(anypb.File_google_protobuf_any_proto),
		File(),
		LegacyFile(),
		EnvelopeFile(),
	}
}

// Files registers the test files, and the well-known any.proto they import,
// in a fresh registry.
func Files() *protoregistry.Files {
	files := new(protoregistry.Files)
	for _, fdp := range allFiles() {
		fd, err := protodesc.NewFile(fdp, files)
		if err != nil {
			panic(err)
		}
		if err := files.RegisterFile(fd); err != nil {
			panic(err)
		}
	}
	return files
}

// DescriptorSet returns the serialized FileDescriptorSet of the test files.
func DescriptorSet() []byte {
	data, err := proto.Marshal(&descriptorpb.FileDescriptorSet{
		File: allFiles(),
	})
	if err != nil {
		panic(err)
	}
	return data
}

// Descriptor returns the message descriptor registered under fullName.
func Descriptor(fullName string) protoreflect.MessageDescriptor {
	desc, err := Files().FindDescriptorByName(protoreflect.FullName(fullName))
	if err != nil {
		panic(err)
	}
	return desc.(protoreflect.MessageDescriptor)
}

// Person returns the Person schema.
func Person() *schemapkg.ProtobufSchema { return mustSchema(PersonName) }

// Simple returns the Simple schema ({name: string, age: int32}).
func Simple() *schemapkg.ProtobufSchema { return mustSchema(SimpleName) }

// Legacy returns the proto2 schema with a required field.
func Legacy() *schemapkg.ProtobufSchema { return mustSchema(LegacyName) }

// Envelope returns the schema whose payload field is a google.protobuf.Any.
func Envelope() *schemapkg.ProtobufSchema { return mustSchema(EnvelopeName) }

func mustSchema(fullName string) *schemapkg.ProtobufSchema {
	s, err := schemapkg.FromFiles(Files(), fullName)
	if err != nil {
		panic(err)
	}
	return s
}

func scalar(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(jsonName(name)),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     typ.Enum(),
	}
}

func typed(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, typeName string) *descriptorpb.FieldDescriptorProto {
	field := scalar(name, number, typ)
	field.TypeName = proto.String(typeName)
	return field
}

func repeated(field *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	field.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return field
}

// jsonName mirrors protoc's lowerCamelCase conversion for the simple names used
// here.
func jsonName(name string) string {
	out := make([]byte, 0, len(name))
	upper := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '_' {
			upper = true
			continue
		}
		if upper && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = false
		out = append(out, c)
	}
	return string(out)
}
