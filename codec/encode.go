package codec

import (
	"encoding/base64"
	"math"
	"sort"
	"strconv"
	"unicode/utf8"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/dyncodec/canonjson/catalog"
	cjerrors "github.com/dyncodec/canonjson/errors"
	"github.com/dyncodec/canonjson/jsontree"
)

type encoder struct {
	c *Codec
}

func (e encoder) message(m protoreflect.Message, depth int) (*jsontree.Value, error) {
	if depth <= 0 {
		return nil, cjerrors.Encode("exceeded max recursion depth")
	}
	mi, err := e.c.cat.Message(m.Descriptor())
	if err != nil {
		return nil, err
	}
	if mi.WellKnown != catalog.WKNone {
		return e.wellKnown(mi, m, depth)
	}
	return e.plainMessage(mi, m, depth)
}

func (e encoder) plainMessage(mi *catalog.MessageInfo, m protoreflect.Message, depth int) (*jsontree.Value, error) {
	obj := jsontree.NewObject()
	for _, fi := range mi.Fields {
		if !e.shouldEmit(m, fi) {
			continue
		}
		name := fi.JSONName
		if e.c.opts.UseProtoNames {
			name = fi.Name
		}
		val, err := e.field(m.Get(fi.Desc), fi, depth)
		if err != nil {
			return nil, err
		}
		obj.Set(name, val)
	}
	return obj, nil
}

// shouldEmit applies the presence rules: repeated and map fields appear only
// when non-empty unless defaults are emitted, no-presence singular fields
// appear when non-zero or when defaults are emitted, and explicit-presence
// fields appear only when set.
func (e encoder) shouldEmit(m protoreflect.Message, fi *catalog.FieldInfo) bool {
	switch fi.Kind {
	case catalog.KindList:
		return m.Get(fi.Desc).List().Len() > 0 || e.c.opts.EmitDefaultValues
	case catalog.KindMap:
		return m.Get(fi.Desc).Map().Len() > 0 || e.c.opts.EmitDefaultValues
	default:
		if m.Has(fi.Desc) {
			return true
		}
		if fi.HasPresence {
			return false
		}
		return e.c.opts.EmitDefaultValues
	}
}

func (e encoder) field(val protoreflect.Value, fi *catalog.FieldInfo, depth int) (*jsontree.Value, error) {
	switch fi.Kind {
	case catalog.KindList:
		list := val.List()
		arr := jsontree.NewArray()
		for i := 0; i < list.Len(); i++ {
			elem, err := e.singular(list.Get(i), fi, depth)
			if err != nil {
				return nil, err
			}
			arr.Append(elem)
		}
		return arr, nil
	case catalog.KindMap:
		return e.mapField(val.Map(), fi, depth)
	default:
		return e.singular(val, fi, depth)
	}
}

func (e encoder) singular(val protoreflect.Value, fi *catalog.FieldInfo, depth int) (*jsontree.Value, error) {
	switch {
	case fi.Message != nil:
		return e.message(val.Message(), depth-1)
	case fi.Enum != nil:
		return e.enum(val.Enum(), fi)
	default:
		return e.scalar(val, fi.Desc)
	}
}

// mapField emits a JSON object with stringified keys in deterministic order;
// values dispatch as standalone fields of the value's declared type.
func (e encoder) mapField(mp protoreflect.Map, fi *catalog.FieldInfo, depth int) (*jsontree.Value, error) {
	keyKind := fi.MapKey.Desc.Kind()
	keys := make([]protoreflect.MapKey, 0, mp.Len())
	mp.Range(func(k protoreflect.MapKey, _ protoreflect.Value) bool {
		keys = append(keys, k)
		return true
	})
	sortMapKeys(keys, keyKind)

	obj := jsontree.NewObject()
	for _, k := range keys {
		val, err := e.singular(mp.Get(k), fi.MapValue, depth)
		if err != nil {
			return nil, err
		}
		obj.Set(mapKeyString(k, keyKind), val)
	}
	return obj, nil
}

func sortMapKeys(keys []protoreflect.MapKey, kind protoreflect.Kind) {
	sort.Slice(keys, func(i, j int) bool {
		switch kind {
		case protoreflect.BoolKind:
			return !keys[i].Bool() && keys[j].Bool()
		case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
			protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
			return keys[i].Int() < keys[j].Int()
		case protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
			protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
			return keys[i].Uint() < keys[j].Uint()
		default:
			return keys[i].String() < keys[j].String()
		}
	})
}

func mapKeyString(k protoreflect.MapKey, kind protoreflect.Kind) string {
	switch kind {
	case protoreflect.BoolKind:
		return strconv.FormatBool(k.Bool())
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return strconv.FormatInt(k.Int(), 10)
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return strconv.FormatUint(k.Uint(), 10)
	default:
		return k.String()
	}
}

func (e encoder) enum(num protoreflect.EnumNumber, fi *catalog.FieldInfo) (*jsontree.Value, error) {
	table, err := e.c.cat.Enum(fi.Enum)
	if err != nil {
		return nil, err
	}
	if table.IsNullValue() {
		return jsontree.NewNull(), nil
	}
	if e.c.opts.UseEnumNumbers {
		if table.IsSentinelNumber(num) {
			return nil, cjerrors.Encode("enum %s: the unrecognized-value sentinel has no integer form", table.FullName)
		}
		return jsontree.NewNumber(strconv.FormatInt(int64(num), 10)), nil
	}
	if table.IsSentinelNumber(num) {
		return jsontree.NewString(string(table.Sentinel.Name())), nil
	}
	if evd, ok := table.ByNumber(num); ok {
		return jsontree.NewString(string(evd.Name())), nil
	}
	// undeclared numbers carried in the message encode as bare numbers
	return jsontree.NewNumber(strconv.FormatInt(int64(num), 10)), nil
}

func (e encoder) scalar(val protoreflect.Value, fd protoreflect.FieldDescriptor) (*jsontree.Value, error) {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return jsontree.NewBool(val.Bool()), nil
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return jsontree.NewNumber(strconv.FormatInt(val.Int(), 10)), nil
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return jsontree.NewNumber(strconv.FormatUint(val.Uint(), 10)), nil
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		// 64-bit integers ride as strings to survive float64 JSON readers
		return jsontree.NewString(strconv.FormatInt(val.Int(), 10)), nil
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return jsontree.NewString(strconv.FormatUint(val.Uint(), 10)), nil
	case protoreflect.FloatKind:
		return floatValue(val.Float(), 32), nil
	case protoreflect.DoubleKind:
		return floatValue(val.Float(), 64), nil
	case protoreflect.StringKind:
		s := val.String()
		if !utf8.ValidString(s) {
			return nil, cjerrors.Encode("field %s: string contains invalid UTF-8", fd.FullName())
		}
		return jsontree.NewString(s), nil
	case protoreflect.BytesKind:
		return jsontree.NewString(base64.StdEncoding.EncodeToString(val.Bytes())), nil
	default:
		return nil, cjerrors.Encode("field %s: unsupported kind %v", fd.FullName(), fd.Kind())
	}
}

func floatValue(f float64, bits int) *jsontree.Value {
	switch {
	case math.IsNaN(f):
		return jsontree.NewString("NaN")
	case math.IsInf(f, 1):
		return jsontree.NewString("Infinity")
	case math.IsInf(f, -1):
		return jsontree.NewString("-Infinity")
	default:
		return jsontree.NewNumber(strconv.FormatFloat(f, 'g', -1, bits))
	}
}
