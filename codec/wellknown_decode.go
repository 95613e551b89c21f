package codec

import (
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/dyncodec/canonjson/catalog"
	cjerrors "github.com/dyncodec/canonjson/errors"
	"github.com/dyncodec/canonjson/jsontree"
)

func (d decoder) wellKnown(mi *catalog.MessageInfo, v *jsontree.Value, m protoreflect.Message, depth int) error {
	if depth <= 0 {
		return cjerrors.Decode("exceeded max recursion depth")
	}
	switch wk := mi.WellKnown; {
	case wk == catalog.WKAny:
		return d.anyValue(v, m, depth)
	case wk == catalog.WKTimestamp:
		return d.timestamp(v, m)
	case wk == catalog.WKDuration:
		return d.duration(v, m)
	case wk.IsWrapper():
		if v.Kind() == jsontree.Null {
			// a null wrapper is simply absent
			return nil
		}
		fd := m.Descriptor().Fields().ByNumber(wrapperValueFieldNumber)
		val, err := d.scalar(v, fd)
		if err != nil {
			return err
		}
		m.Set(fd, val)
		return nil
	case wk == catalog.WKStruct:
		if v.Kind() != jsontree.Object {
			return cjerrors.Decode("google.protobuf.Struct: expected JSON object, got %s", v.Kind())
		}
		fi, ok := mi.FieldByNumber(structFieldsNumber)
		if !ok {
			return cjerrors.Configuration("%s: missing fields map", mi.FullName)
		}
		return d.field(v, fi, m, depth)
	case wk == catalog.WKListValue:
		if v.Kind() != jsontree.Array {
			return cjerrors.Decode("google.protobuf.ListValue: expected JSON array, got %s", v.Kind())
		}
		fi, ok := mi.FieldByNumber(listValueValuesNumber)
		if !ok {
			return cjerrors.Configuration("%s: missing values list", mi.FullName)
		}
		return d.field(v, fi, m, depth)
	case wk == catalog.WKValue:
		return d.knownValue(v, m, depth)
	case wk == catalog.WKEmpty:
		return d.empty(v, m)
	case wk == catalog.WKFieldMask:
		return d.fieldMask(v, m)
	default:
		return cjerrors.Decode("%s: no decoder for well-known type", mi.FullName)
	}
}

// knownValue selects the Value oneof branch matching the JSON node kind.
func (d decoder) knownValue(v *jsontree.Value, m protoreflect.Message, depth int) error {
	fds := m.Descriptor().Fields()
	switch v.Kind() {
	case jsontree.Null:
		m.Set(fds.ByNumber(valueNullNumber), protoreflect.ValueOfEnum(0))
	case jsontree.Bool:
		m.Set(fds.ByNumber(valueBoolNumber), protoreflect.ValueOfBool(v.Bool()))
	case jsontree.Number:
		f, err := strconv.ParseFloat(v.Number(), 64)
		if err != nil {
			return cjerrors.Decode("google.protobuf.Value: invalid number %s", v.Number())
		}
		m.Set(fds.ByNumber(valueNumberNumber), protoreflect.ValueOfFloat64(f))
	case jsontree.String:
		m.Set(fds.ByNumber(valueStringNumber), protoreflect.ValueOfString(v.Str()))
	case jsontree.Object:
		fd := fds.ByNumber(valueStructNumber)
		sv := m.NewField(fd)
		if err := d.message(v, sv.Message(), depth-1); err != nil {
			return err
		}
		m.Set(fd, sv)
	case jsontree.Array:
		fd := fds.ByNumber(valueListNumber)
		lv := m.NewField(fd)
		if err := d.message(v, lv.Message(), depth-1); err != nil {
			return err
		}
		m.Set(fd, lv)
	default:
		return cjerrors.Decode("google.protobuf.Value: invalid input")
	}
	return nil
}

func (d decoder) timestamp(v *jsontree.Value, m protoreflect.Message) error {
	if v.Kind() != jsontree.String {
		return cjerrors.Decode("google.protobuf.Timestamp: expected RFC 3339 string, got %s", v.Kind())
	}
	s := v.Str()
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return cjerrors.Decode("google.protobuf.Timestamp: invalid value %q", s)
	}
	secs := t.Unix()
	if secs < minTimestampSeconds || secs > maxTimestampSeconds {
		return cjerrors.Decode("google.protobuf.Timestamp: value out of range %q", s)
	}
	// at most 9 fractional digits
	i := strings.LastIndexByte(s, '.')
	j := strings.LastIndexAny(s, "Z-+")
	if i >= 0 && j >= i && j-i > len(".999999999") {
		return cjerrors.Decode("google.protobuf.Timestamp: invalid value %q", s)
	}

	fds := m.Descriptor().Fields()
	m.Set(fds.ByNumber(timestampSecondsNumber), protoreflect.ValueOfInt64(secs))
	m.Set(fds.ByNumber(timestampNanosNumber), protoreflect.ValueOfInt32(int32(t.Nanosecond())))
	return nil
}

func (d decoder) duration(v *jsontree.Value, m protoreflect.Message) error {
	if v.Kind() != jsontree.String {
		return cjerrors.Decode("google.protobuf.Duration: expected string, got %s", v.Kind())
	}
	secs, nanos, ok := parseDuration(v.Str())
	if !ok {
		return cjerrors.Decode("google.protobuf.Duration: invalid value %q", v.Str())
	}
	if secs < -maxDurationSeconds || secs > maxDurationSeconds {
		return cjerrors.Decode("google.protobuf.Duration: value out of range %q", v.Str())
	}
	fds := m.Descriptor().Fields()
	m.Set(fds.ByNumber(durationSecondsNumber), protoreflect.ValueOfInt64(secs))
	m.Set(fds.ByNumber(durationNanosNumber), protoreflect.ValueOfInt32(nanos))
	return nil
}

// parseDuration reads a decimal seconds literal with an "s" suffix and up to
// nine fractional digits. The fractional part is right-padded to nanosecond
// precision; a leading minus applies to both components.
func parseDuration(s string) (int64, int32, bool) {
	if len(s) < 2 || s[len(s)-1] != 's' {
		return 0, 0, false
	}
	s = s[:len(s)-1]
	var neg bool
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" {
		return 0, 0, false
	}
	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" && fracPart == "" {
		return 0, 0, false
	}
	if !allDigits(intPart) || !allDigits(fracPart) || len(fracPart) > 9 {
		return 0, 0, false
	}

	var secs int64
	if intPart != "" {
		v, err := strconv.ParseInt(intPart, 10, 64)
		if err != nil {
			return 0, 0, false
		}
		secs = v
	}
	var nanos int64
	if fracPart != "" {
		padded := fracPart + strings.Repeat("0", 9-len(fracPart))
		nanos, _ = strconv.ParseInt(padded, 10, 64)
	}
	if neg {
		secs, nanos = -secs, -nanos
	}
	return secs, int32(nanos), true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (d decoder) empty(v *jsontree.Value, m protoreflect.Message) error {
	if v.Kind() != jsontree.Object {
		return cjerrors.Decode("google.protobuf.Empty: expected JSON object, got %s", v.Kind())
	}
	for _, mem := range v.Members() {
		if d.c.opts.DiscardUnknown {
			continue
		}
		return cjerrors.Decode("google.protobuf.Empty: unknown field %q", mem.Name)
	}
	return nil
}

func (d decoder) fieldMask(v *jsontree.Value, m protoreflect.Message) error {
	if v.Kind() != jsontree.String {
		return cjerrors.Decode("google.protobuf.FieldMask: expected string, got %s", v.Kind())
	}
	str := strings.TrimSpace(v.Str())
	if str == "" {
		return nil
	}
	fd := m.Descriptor().Fields().ByNumber(fieldMaskPathsNumber)
	list := m.Mutable(fd).List()
	for _, cc := range strings.Split(str, ",") {
		s := jsonSnakeCase(cc)
		if strings.Contains(cc, "_") || !protoreflect.FullName(s).IsValid() {
			return cjerrors.Decode("google.protobuf.FieldMask: invalid path %q", cc)
		}
		list.Append(protoreflect.ValueOfString(s))
	}
	return nil
}

// anyValue reads "@type", resolves the payload type through the configured
// registry, decodes the remaining members into the payload, and stores the
// payload back as serialized bytes.
func (d decoder) anyValue(v *jsontree.Value, m protoreflect.Message, depth int) error {
	if v.Kind() != jsontree.Object {
		return cjerrors.Decode("google.protobuf.Any: expected JSON object, got %s", v.Kind())
	}
	if v.Len() == 0 {
		return nil
	}
	var typeURL string
	for _, mem := range v.Members() {
		if mem.Name != "@type" {
			continue
		}
		if typeURL != "" {
			return cjerrors.Decode(`google.protobuf.Any: duplicate "@type" field`)
		}
		if mem.Value.Kind() != jsontree.String || mem.Value.Str() == "" {
			return cjerrors.Decode(`google.protobuf.Any: "@type" is not a non-empty string`)
		}
		typeURL = mem.Value.Str()
	}
	if typeURL == "" {
		if d.c.opts.DiscardUnknown {
			// all members unknown, same as an empty object
			return nil
		}
		return cjerrors.Decode(`google.protobuf.Any: missing "@type" field`)
	}

	emt, err := d.c.opts.Resolver.FindMessageByURL(typeURL)
	if err != nil {
		return cjerrors.Decode("google.protobuf.Any: unable to resolve %q: %v", typeURL, err)
	}
	em := emt.New()
	emi, err := d.c.cat.Message(em.Descriptor())
	if err != nil {
		return err
	}

	if emi.WellKnown != catalog.WKNone {
		if err := d.anyWellKnownPayload(v, emi, em, depth); err != nil {
			return err
		}
	} else {
		skip := func(name string) bool { return name == "@type" }
		if err := d.members(v.Members(), emi, em, depth-1, skip); err != nil {
			return err
		}
	}

	b, err := proto.MarshalOptions{AllowPartial: true, Deterministic: true}.Marshal(em.Interface())
	if err != nil {
		return cjerrors.Decode("google.protobuf.Any: unable to marshal %q payload: %v", typeURL, err)
	}
	fds := m.Descriptor().Fields()
	m.Set(fds.ByNumber(anyTypeURLFieldNumber), protoreflect.ValueOfString(typeURL))
	m.Set(fds.ByNumber(anyValueFieldNumber), protoreflect.ValueOfBytes(b))
	return nil
}

// anyWellKnownPayload decodes a custom-shaped payload from the "value"
// member of the Any envelope.
func (d decoder) anyWellKnownPayload(v *jsontree.Value, emi *catalog.MessageInfo, em protoreflect.Message, depth int) error {
	var payload *jsontree.Value
	for _, mem := range v.Members() {
		switch mem.Name {
		case "@type":
		case "value":
			if payload != nil {
				return cjerrors.Decode(`google.protobuf.Any: duplicate "value" field`)
			}
			payload = mem.Value
		default:
			if d.c.opts.DiscardUnknown {
				continue
			}
			return cjerrors.Decode("google.protobuf.Any: unknown field %q", mem.Name)
		}
	}
	if payload == nil {
		return cjerrors.Decode(`google.protobuf.Any: missing "value" field for %s payload`, emi.FullName)
	}
	return d.wellKnown(emi, payload, em, depth-1)
}
