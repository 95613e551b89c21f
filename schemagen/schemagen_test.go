package schemagen_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/dyncodec/canonjson/catalog"
	"github.com/dyncodec/canonjson/schemagen"
)

func TestWellKnownShape(t *testing.T) {
	cases := map[protoreflect.FullName]schemagen.Shape{
		"google.protobuf.Any":         schemagen.ShapeObject,
		"google.protobuf.Struct":      schemagen.ShapeObject,
		"google.protobuf.Empty":       schemagen.ShapeObject,
		"google.protobuf.ListValue":   schemagen.ShapeArray,
		"google.protobuf.Timestamp":   schemagen.ShapeString,
		"google.protobuf.Duration":    schemagen.ShapeString,
		"google.protobuf.FieldMask":   schemagen.ShapeString,
		"google.protobuf.Int64Value":  schemagen.ShapeString,
		"google.protobuf.UInt64Value": schemagen.ShapeString,
		"google.protobuf.Int32Value":  schemagen.ShapeNumber,
		"google.protobuf.DoubleValue": schemagen.ShapeNumber,
		"google.protobuf.BoolValue":   schemagen.ShapeBoolean,
		"google.protobuf.Value":       schemagen.ShapeAny,
	}
	for name, want := range cases {
		got, ok := schemagen.WellKnownShape(name)
		require.True(t, ok, "type %s", name)
		require.Equal(t, want, got, "type %s", name)
	}

	_, ok := schemagen.WellKnownShape("codectest.Widget")
	require.False(t, ok)
}

func TestEveryTagHasAShape(t *testing.T) {
	for wk := catalog.WKAny; wk <= catalog.WKFieldMask; wk++ {
		shape := schemagen.ShapeFor(wk)
		require.NotEqual(t, "unknown", shape.String(), "tag %d", wk)
	}
}
