// Package testutil builds a test schema at runtime from a hand-assembled
// file descriptor, so tests exercise the codec over dynamic messages exactly
// the way production callers with runtime-discovered schemas do.
package testutil

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	// register the well-known files with protoregistry.GlobalFiles so the
	// test schema can import them
	_ "google.golang.org/protobuf/types/known/anypb"
	_ "google.golang.org/protobuf/types/known/durationpb"
	_ "google.golang.org/protobuf/types/known/emptypb"
	_ "google.golang.org/protobuf/types/known/fieldmaskpb"
	_ "google.golang.org/protobuf/types/known/structpb"
	_ "google.golang.org/protobuf/types/known/timestamppb"
	_ "google.golang.org/protobuf/types/known/wrapperspb"
)

// File is the test schema: package codectest with the Widget and Nested
// messages and the Mood enum, covering every field kind the codec handles.
var File protoreflect.FileDescriptor

func init() {
	fd, err := protodesc.NewFile(FileProto(), protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("testutil: unable to build test schema: %v", err))
	}
	File = fd
}

// MessageDescriptor returns a top-level message descriptor by short name.
func MessageDescriptor(name protoreflect.Name) protoreflect.MessageDescriptor {
	md := File.Messages().ByName(name)
	if md == nil {
		panic(fmt.Sprintf("testutil: no message %s in test schema", name))
	}
	return md
}

// NewMessage creates an empty dynamic message of a top-level test type.
func NewMessage(name protoreflect.Name) *dynamicpb.Message {
	return dynamicpb.NewMessage(MessageDescriptor(name))
}

// FieldByName returns a field descriptor of the given message type.
func FieldByName(md protoreflect.MessageDescriptor, name protoreflect.Name) protoreflect.FieldDescriptor {
	fd := md.Fields().ByName(name)
	if fd == nil {
		panic(fmt.Sprintf("testutil: no field %s in %s", name, md.FullName()))
	}
	return fd
}

// Set sets a field of m by name.
func Set(m protoreflect.Message, name protoreflect.Name, val protoreflect.Value) {
	m.Set(FieldByName(m.Descriptor(), name), val)
}

// Get reads a field of m by name.
func Get(m protoreflect.Message, name protoreflect.Name) protoreflect.Value {
	return m.Get(FieldByName(m.Descriptor(), name))
}

// Mutable returns the mutable value of a field of m by name.
func Mutable(m protoreflect.Message, name protoreflect.Name) protoreflect.Value {
	return m.Mutable(FieldByName(m.Descriptor(), name))
}

// FileProto assembles the descriptor proto of the test schema.
func FileProto() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("codectest/widgets.proto"),
		Package: proto.String("codectest"),
		Syntax:  proto.String("proto3"),
		Dependency: []string{
			"google/protobuf/any.proto",
			"google/protobuf/duration.proto",
			"google/protobuf/empty.proto",
			"google/protobuf/field_mask.proto",
			"google/protobuf/struct.proto",
			"google/protobuf/timestamp.proto",
			"google/protobuf/wrappers.proto",
		},
		EnumType: []*descriptorpb.EnumDescriptorProto{
			{
				Name: proto.String("Mood"),
				Value: []*descriptorpb.EnumValueDescriptorProto{
					enumValue("MOOD_UNSPECIFIED", 0),
					enumValue("MOOD_HAPPY", 1),
					enumValue("MOOD_GRUMPY", 2),
					enumValue("MOOD_UNRECOGNIZED", -1),
				},
			},
		},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("Nested"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalarField("rank", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				},
			},
			widgetProto(),
		},
	}
}

func widgetProto() *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{
		Name: proto.String("Widget"),
		Field: []*descriptorpb.FieldDescriptorProto{
			scalarField("id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalarField("count", 2, descriptorpb.FieldDescriptorProto_TYPE_INT64),
			enumField("mood", 3, ".codectest.Mood"),
			messageField("nested", 4, ".codectest.Nested"),
			repeated(scalarField("tags", 5, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
			repeated(messageField("parts", 6, ".codectest.Nested")),
			repeated(enumField("moods", 7, ".codectest.Mood")),
			repeated(messageField("counts", 8, ".codectest.Widget.CountsEntry")),
			repeated(messageField("mood_map", 9, ".codectest.Widget.MoodMapEntry")),
			repeated(messageField("nested_map", 10, ".codectest.Widget.NestedMapEntry")),
			repeated(messageField("by_num", 11, ".codectest.Widget.ByNumEntry")),
			repeated(messageField("flags", 12, ".codectest.Widget.FlagsEntry")),
			messageField("created", 13, ".google.protobuf.Timestamp"),
			messageField("ttl", 14, ".google.protobuf.Duration"),
			messageField("max", 15, ".google.protobuf.Int64Value"),
			messageField("enabled", 16, ".google.protobuf.BoolValue"),
			messageField("label", 17, ".google.protobuf.StringValue"),
			messageField("blob", 18, ".google.protobuf.BytesValue"),
			messageField("meta", 19, ".google.protobuf.Struct"),
			messageField("extra", 20, ".google.protobuf.Value"),
			messageField("items", 21, ".google.protobuf.ListValue"),
			messageField("payload", 22, ".google.protobuf.Any"),
			messageField("nothing", 23, ".google.protobuf.Empty"),
			messageField("mask", 24, ".google.protobuf.FieldMask"),
			messageField("big", 25, ".google.protobuf.UInt64Value"),
			optionalField(scalarField("note", 26, descriptorpb.FieldDescriptorProto_TYPE_STRING), 0),
			messageField("child", 27, ".codectest.Widget"),
			scalarField("data", 28, descriptorpb.FieldDescriptorProto_TYPE_BYTES),
			scalarField("ratio", 29, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
			scalarField("weight", 30, descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
			scalarField("flag", 31, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
			scalarField("small", 32, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
			scalarField("wide", 33, descriptorpb.FieldDescriptorProto_TYPE_UINT64),
			scalarField("tiny", 34, descriptorpb.FieldDescriptorProto_TYPE_INT32),
		},
		NestedType: []*descriptorpb.DescriptorProto{
			mapEntry("CountsEntry",
				scalarField("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalarField("value", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32)),
			mapEntry("MoodMapEntry",
				scalarField("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				enumField("value", 2, ".codectest.Mood")),
			mapEntry("NestedMapEntry",
				scalarField("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				messageField("value", 2, ".codectest.Nested")),
			mapEntry("ByNumEntry",
				scalarField("key", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				scalarField("value", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
			mapEntry("FlagsEntry",
				scalarField("key", 1, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
				scalarField("value", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
		},
		OneofDecl: []*descriptorpb.OneofDescriptorProto{
			{Name: proto.String("_note")},
		},
	}
}

func enumValue(name string, number int32) *descriptorpb.EnumValueDescriptorProto {
	return &descriptorpb.EnumValueDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
	}
}

func scalarField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func messageField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalarField(name, number, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	f.TypeName = proto.String(typeName)
	return f
}

func enumField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalarField(name, number, descriptorpb.FieldDescriptorProto_TYPE_ENUM)
	f.TypeName = proto.String(typeName)
	return f
}

func repeated(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

// optionalField marks a proto3 optional field backed by the synthetic oneof
// at oneofIndex.
func optionalField(f *descriptorpb.FieldDescriptorProto, oneofIndex int32) *descriptorpb.FieldDescriptorProto {
	f.Proto3Optional = proto.Bool(true)
	f.OneofIndex = proto.Int32(oneofIndex)
	return f
}

func mapEntry(name string, key, value *descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{
		Name:    proto.String(name),
		Field:   []*descriptorpb.FieldDescriptorProto{key, value},
		Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
	}
}
