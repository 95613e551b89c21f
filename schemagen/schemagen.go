// Package schemagen is the surface consumed by the static documentation
// generator: a read-only lookup from well-known message types to their JSON
// shape, kept in lockstep with the codec's translators. The generator itself
// runs at build time and never calls into encode or decode.
package schemagen

import (
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/dyncodec/canonjson/catalog"
)

// Shape is the JSON node kind a type or field maps to on the wire.
type Shape int

const (
	ShapeObject Shape = iota + 1
	ShapeArray
	ShapeString
	ShapeNumber
	ShapeBoolean
	ShapeNull
	// ShapeAny covers google.protobuf.Value: any JSON node.
	ShapeAny
)

func (s Shape) String() string {
	switch s {
	case ShapeObject:
		return "object"
	case ShapeArray:
		return "array"
	case ShapeString:
		return "string"
	case ShapeNumber:
		return "number"
	case ShapeBoolean:
		return "boolean"
	case ShapeNull:
		return "null"
	case ShapeAny:
		return "any"
	default:
		return "unknown"
	}
}

// Generator is implemented by the documentation generator. It walks a set of
// file descriptors (for example a registry.Registry snapshot) and renders a
// static schema document.
type Generator interface {
	Generate(files interface {
		RangeFiles(func(protoreflect.FileDescriptor) bool)
	}) ([]byte, error)
}

// WellKnownShape reports the wire shape of a well-known message type, or
// false for ordinary messages (which are always objects of their fields).
func WellKnownShape(name protoreflect.FullName) (Shape, bool) {
	mi := catalog.WellKnownTag(name)
	if mi == catalog.WKNone {
		return 0, false
	}
	return ShapeFor(mi), true
}

// ShapeFor maps a well-known tag to its JSON shape.
func ShapeFor(wk catalog.WellKnownType) Shape {
	switch wk {
	case catalog.WKAny, catalog.WKStruct, catalog.WKEmpty:
		return ShapeObject
	case catalog.WKListValue:
		return ShapeArray
	case catalog.WKTimestamp, catalog.WKDuration, catalog.WKFieldMask,
		catalog.WKStringValue, catalog.WKBytesValue,
		catalog.WKInt64Value, catalog.WKUInt64Value:
		return ShapeString
	case catalog.WKInt32Value, catalog.WKUInt32Value,
		catalog.WKFloatValue, catalog.WKDoubleValue:
		return ShapeNumber
	case catalog.WKBoolValue:
		return ShapeBoolean
	case catalog.WKValue:
		return ShapeAny
	default:
		return ShapeObject
	}
}
