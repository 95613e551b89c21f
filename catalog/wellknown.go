package catalog

import (
	"google.golang.org/protobuf/reflect/protoreflect"
)

// WellKnownType tags message types with a specification-mandated JSON shape.
// The tag is resolved once per type when the MessageInfo is built; encode and
// decode dispatch on it without comparing type names per call.
type WellKnownType int

const (
	WKNone WellKnownType = iota
	WKAny
	WKTimestamp
	WKDuration
	WKBoolValue
	WKInt32Value
	WKInt64Value
	WKUInt32Value
	WKUInt64Value
	WKFloatValue
	WKDoubleValue
	WKStringValue
	WKBytesValue
	WKStruct
	WKListValue
	WKValue
	WKEmpty
	WKFieldMask
)

// IsWrapper reports whether wk is one of the nullable scalar wrappers.
func (wk WellKnownType) IsWrapper() bool {
	return wk >= WKBoolValue && wk <= WKBytesValue
}

// WellKnownTag reports the well-known tag of a message full name, WKNone for
// ordinary messages.
func WellKnownTag(name protoreflect.FullName) WellKnownType {
	return wellKnownOf(name)
}

func wellKnownOf(name protoreflect.FullName) WellKnownType {
	if name.Parent() != "google.protobuf" {
		return WKNone
	}
	switch name.Name() {
	case "Any":
		return WKAny
	case "Timestamp":
		return WKTimestamp
	case "Duration":
		return WKDuration
	case "BoolValue":
		return WKBoolValue
	case "Int32Value":
		return WKInt32Value
	case "Int64Value":
		return WKInt64Value
	case "UInt32Value":
		return WKUInt32Value
	case "UInt64Value":
		return WKUInt64Value
	case "FloatValue":
		return WKFloatValue
	case "DoubleValue":
		return WKDoubleValue
	case "StringValue":
		return WKStringValue
	case "BytesValue":
		return WKBytesValue
	case "Struct":
		return WKStruct
	case "ListValue":
		return WKListValue
	case "Value":
		return WKValue
	case "Empty":
		return WKEmpty
	case "FieldMask":
		return WKFieldMask
	default:
		return WKNone
	}
}
