package codec

import (
	"encoding/base64"
	"math"
	"strconv"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/dyncodec/canonjson/catalog"
	cjerrors "github.com/dyncodec/canonjson/errors"
	"github.com/dyncodec/canonjson/jsontree"
)

type decoder struct {
	c *Codec
}

func (d decoder) message(v *jsontree.Value, m protoreflect.Message, depth int) error {
	if depth <= 0 {
		return cjerrors.Decode("exceeded max recursion depth")
	}
	mi, err := d.c.cat.Message(m.Descriptor())
	if err != nil {
		return err
	}
	if mi.WellKnown != catalog.WKNone {
		return d.wellKnown(mi, v, m, depth)
	}
	if v.Kind() != jsontree.Object {
		return cjerrors.Decode("%s: expected JSON object, got %s", mi.FullName, v.Kind())
	}
	return d.members(v.Members(), mi, m, depth, nil)
}

// members decodes the given object members into m. skip filters member names
// handled by the caller (the Any envelope uses it for "@type").
func (d decoder) members(members []jsontree.Member, mi *catalog.MessageInfo, m protoreflect.Message, depth int, skip func(string) bool) error {
	seen := make(map[protoreflect.FieldNumber]bool, len(members))
	for _, mem := range members {
		if skip != nil && skip(mem.Name) {
			continue
		}
		fi, ok := mi.FieldByName(mem.Name)
		if !ok {
			if d.c.opts.DiscardUnknown {
				continue
			}
			return cjerrors.Decode("%s: unknown field %q", mi.FullName, mem.Name)
		}
		if seen[fi.Desc.Number()] {
			return cjerrors.Decode("%s: duplicate field %q", mi.FullName, mem.Name)
		}
		seen[fi.Desc.Number()] = true
		if err := d.field(mem.Value, fi, m, depth); err != nil {
			return err
		}
	}
	return nil
}

func (d decoder) field(v *jsontree.Value, fi *catalog.FieldInfo, m protoreflect.Message, depth int) error {
	// null is absence everywhere except the types that represent it
	if v.Kind() == jsontree.Null && !fi.AcceptsNull {
		return nil
	}
	switch fi.Kind {
	case catalog.KindList:
		if v.Kind() != jsontree.Array {
			return cjerrors.Decode("field %s: expected JSON array, got %s", fi.Desc.FullName(), v.Kind())
		}
		list := m.Mutable(fi.Desc).List()
		for _, elem := range v.Elements() {
			val, err := d.singular(elem, fi, list.NewElement, depth)
			if err != nil {
				return err
			}
			list.Append(val)
		}
		return nil
	case catalog.KindMap:
		if v.Kind() != jsontree.Object {
			return cjerrors.Decode("field %s: expected JSON object, got %s", fi.Desc.FullName(), v.Kind())
		}
		mp := m.Mutable(fi.Desc).Map()
		for _, mem := range v.Members() {
			key, err := d.mapKey(mem.Name, fi)
			if err != nil {
				return err
			}
			if mp.Has(key) {
				return cjerrors.Decode("field %s: duplicate map key %q", fi.Desc.FullName(), mem.Name)
			}
			val, err := d.singular(mem.Value, fi.MapValue, mp.NewValue, depth)
			if err != nil {
				return err
			}
			mp.Set(key, val)
		}
		return nil
	default:
		val, err := d.singular(v, fi, func() protoreflect.Value { return m.NewField(fi.Desc) }, depth)
		if err != nil {
			return err
		}
		m.Set(fi.Desc, val)
		return nil
	}
}

// singular decodes one element: a standalone value of the field's declared
// type. newVal allocates the destination for message-typed elements.
func (d decoder) singular(v *jsontree.Value, fi *catalog.FieldInfo, newVal func() protoreflect.Value, depth int) (protoreflect.Value, error) {
	switch {
	case fi.Message != nil:
		pv := newVal()
		if err := d.message(v, pv.Message(), depth-1); err != nil {
			return protoreflect.Value{}, err
		}
		return pv, nil
	case fi.Enum != nil:
		return d.enum(v, fi)
	default:
		return d.scalar(v, fi.Desc)
	}
}

func (d decoder) enum(v *jsontree.Value, fi *catalog.FieldInfo) (protoreflect.Value, error) {
	table, err := d.c.cat.Enum(fi.Enum)
	if err != nil {
		return protoreflect.Value{}, err
	}
	if table.IsNullValue() && v.Kind() == jsontree.Null {
		return protoreflect.ValueOfEnum(0), nil
	}
	switch v.Kind() {
	case jsontree.Number:
		n, perr := strconv.ParseInt(v.Number(), 10, 32)
		if perr != nil {
			// out-of-range or fractional ordinals are misses, not errors
			return d.enumFallback(table, v)
		}
		if evd, ok := table.ByNumber(protoreflect.EnumNumber(n)); ok {
			return protoreflect.ValueOfEnum(evd.Number()), nil
		}
		return d.enumFallback(table, v)
	case jsontree.String:
		if evd, ok := table.ByName(v.Str()); ok {
			return protoreflect.ValueOfEnum(evd.Number()), nil
		}
		return d.enumFallback(table, v)
	default:
		return protoreflect.Value{}, cjerrors.Decode("enum %s: expected string or number, got %s", table.FullName, v.Kind())
	}
}

// enumFallback resolves a miss to the sentinel; enums without one (the
// google.protobuf set) surface the miss instead.
func (d decoder) enumFallback(table *catalog.EnumTable, v *jsontree.Value) (protoreflect.Value, error) {
	if table.Sentinel != nil {
		return protoreflect.ValueOfEnum(table.Sentinel.Number()), nil
	}
	return protoreflect.Value{}, cjerrors.Decode("enum %s: unknown value %s", table.FullName, describe(v))
}

func (d decoder) scalar(v *jsontree.Value, fd protoreflect.FieldDescriptor) (protoreflect.Value, error) {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		if v.Kind() == jsontree.Bool {
			return protoreflect.ValueOfBool(v.Bool()), nil
		}
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		if n, ok := parseInt(v, 32); ok {
			return protoreflect.ValueOfInt32(int32(n)), nil
		}
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		if n, ok := parseInt(v, 64); ok {
			return protoreflect.ValueOfInt64(n), nil
		}
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		if n, ok := parseUint(v, 32); ok {
			return protoreflect.ValueOfUint32(uint32(n)), nil
		}
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		if n, ok := parseUint(v, 64); ok {
			return protoreflect.ValueOfUint64(n), nil
		}
	case protoreflect.FloatKind:
		if f, ok := parseFloat(v, 32); ok {
			return protoreflect.ValueOfFloat32(float32(f)), nil
		}
	case protoreflect.DoubleKind:
		if f, ok := parseFloat(v, 64); ok {
			return protoreflect.ValueOfFloat64(f), nil
		}
	case protoreflect.StringKind:
		if v.Kind() == jsontree.String {
			return protoreflect.ValueOfString(v.Str()), nil
		}
	case protoreflect.BytesKind:
		if v.Kind() == jsontree.String {
			b, err := decodeBase64(v.Str())
			if err != nil {
				return protoreflect.Value{}, cjerrors.Decode("field %s: invalid base64: %v", fd.FullName(), err)
			}
			return protoreflect.ValueOfBytes(b), nil
		}
	default:
		return protoreflect.Value{}, cjerrors.Decode("field %s: unsupported kind %v", fd.FullName(), fd.Kind())
	}
	return protoreflect.Value{}, cjerrors.Decode("field %s: invalid value %s", fd.FullName(), describe(v))
}

func (d decoder) mapKey(name string, fi *catalog.FieldInfo) (protoreflect.MapKey, error) {
	kd := fi.MapKey.Desc
	switch kd.Kind() {
	case protoreflect.StringKind:
		return protoreflect.ValueOfString(name).MapKey(), nil
	case protoreflect.BoolKind:
		switch name {
		case "true":
			return protoreflect.ValueOfBool(true).MapKey(), nil
		case "false":
			return protoreflect.ValueOfBool(false).MapKey(), nil
		}
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		if n, err := strconv.ParseInt(name, 10, 32); err == nil {
			return protoreflect.ValueOfInt32(int32(n)).MapKey(), nil
		}
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		if n, err := strconv.ParseInt(name, 10, 64); err == nil {
			return protoreflect.ValueOfInt64(n).MapKey(), nil
		}
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		if n, err := strconv.ParseUint(name, 10, 32); err == nil {
			return protoreflect.ValueOfUint32(uint32(n)).MapKey(), nil
		}
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		if n, err := strconv.ParseUint(name, 10, 64); err == nil {
			return protoreflect.ValueOfUint64(n).MapKey(), nil
		}
	}
	return protoreflect.MapKey{}, cjerrors.Decode("field %s: invalid map key %q", fi.Desc.FullName(), name)
}

// parseInt accepts JSON numbers and decimal strings; decimal-point and
// exponent forms are accepted when they denote an exact integer.
func parseInt(v *jsontree.Value, bits int) (int64, bool) {
	lit, ok := numberLiteral(v)
	if !ok {
		return 0, false
	}
	if n, err := strconv.ParseInt(lit, 10, bits); err == nil {
		return n, true
	}
	if !strings.ContainsAny(lit, ".eE") {
		return 0, false
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= 1<<53 {
		return 0, false
	}
	n := int64(f)
	if bits == 32 && (n < math.MinInt32 || n > math.MaxInt32) {
		return 0, false
	}
	return n, true
}

func parseUint(v *jsontree.Value, bits int) (uint64, bool) {
	lit, ok := numberLiteral(v)
	if !ok {
		return 0, false
	}
	if n, err := strconv.ParseUint(lit, 10, bits); err == nil {
		return n, true
	}
	if !strings.ContainsAny(lit, ".eE") {
		return 0, false
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil || f != math.Trunc(f) || f < 0 || f >= 1<<53 {
		return 0, false
	}
	n := uint64(f)
	if bits == 32 && n > math.MaxUint32 {
		return 0, false
	}
	return n, true
}

func parseFloat(v *jsontree.Value, bits int) (float64, bool) {
	switch v.Kind() {
	case jsontree.Number:
		f, err := strconv.ParseFloat(v.Number(), bits)
		if err != nil {
			return 0, false
		}
		return f, true
	case jsontree.String:
		switch v.Str() {
		case "NaN":
			return math.NaN(), true
		case "Infinity":
			return math.Inf(1), true
		case "-Infinity":
			return math.Inf(-1), true
		}
		f, err := strconv.ParseFloat(v.Str(), bits)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func numberLiteral(v *jsontree.Value) (string, bool) {
	switch v.Kind() {
	case jsontree.Number:
		return v.Number(), true
	case jsontree.String:
		if v.Str() == "" {
			return "", false
		}
		return v.Str(), true
	default:
		return "", false
	}
}

// decodeBase64 accepts standard and URL-safe alphabets, padded or raw.
func decodeBase64(s string) ([]byte, error) {
	enc := base64.StdEncoding
	if strings.ContainsAny(s, "-_") {
		enc = base64.URLEncoding
	}
	if len(s)%4 != 0 {
		enc = enc.WithPadding(base64.NoPadding)
	}
	return enc.DecodeString(s)
}

func describe(v *jsontree.Value) string {
	switch v.Kind() {
	case jsontree.String:
		return strconv.Quote(v.Str())
	case jsontree.Number:
		return v.Number()
	case jsontree.Bool:
		return strconv.FormatBool(v.Bool())
	default:
		return v.Kind().String()
	}
}
