package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/dyncodec/canonjson/catalog"
	cjerrors "github.com/dyncodec/canonjson/errors"
	"github.com/dyncodec/canonjson/jsontree"
)

func (e encoder) wellKnown(mi *catalog.MessageInfo, m protoreflect.Message, depth int) (*jsontree.Value, error) {
	if depth <= 0 {
		return nil, cjerrors.Encode("exceeded max recursion depth")
	}
	switch wk := mi.WellKnown; {
	case wk == catalog.WKAny:
		return e.anyValue(m, depth)
	case wk == catalog.WKTimestamp:
		return e.timestamp(m)
	case wk == catalog.WKDuration:
		return e.duration(m)
	case wk.IsWrapper():
		fd := m.Descriptor().Fields().ByNumber(wrapperValueFieldNumber)
		return e.scalar(m.Get(fd), fd)
	case wk == catalog.WKStruct:
		fi, ok := mi.FieldByNumber(structFieldsNumber)
		if !ok {
			return nil, cjerrors.Configuration("%s: missing fields map", mi.FullName)
		}
		return e.mapField(m.Get(fi.Desc).Map(), fi, depth)
	case wk == catalog.WKListValue:
		fi, ok := mi.FieldByNumber(listValueValuesNumber)
		if !ok {
			return nil, cjerrors.Configuration("%s: missing values list", mi.FullName)
		}
		return e.field(m.Get(fi.Desc), fi, depth)
	case wk == catalog.WKValue:
		return e.knownValue(m, depth)
	case wk == catalog.WKEmpty:
		return jsontree.NewObject(), nil
	case wk == catalog.WKFieldMask:
		return e.fieldMask(m)
	default:
		return nil, cjerrors.Encode("%s: no encoder for well-known type", mi.FullName)
	}
}

// knownValue emits the branch of the Value oneof that is set.
func (e encoder) knownValue(m protoreflect.Message, depth int) (*jsontree.Value, error) {
	od := m.Descriptor().Oneofs().ByName("kind")
	if od == nil {
		return nil, cjerrors.Configuration("google.protobuf.Value: missing kind oneof")
	}
	fd := m.WhichOneof(od)
	if fd == nil {
		return nil, cjerrors.Encode("google.protobuf.Value: none of the oneof fields is set")
	}
	switch fd.Number() {
	case valueNullNumber:
		return jsontree.NewNull(), nil
	case valueNumberNumber:
		f := m.Get(fd).Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, cjerrors.Encode("google.protobuf.Value: invalid number value %v", f)
		}
		return jsontree.NewNumber(strconv.FormatFloat(f, 'g', -1, 64)), nil
	case valueStringNumber, valueBoolNumber:
		return e.scalar(m.Get(fd), fd)
	case valueStructNumber, valueListNumber:
		return e.message(m.Get(fd).Message(), depth-1)
	default:
		return nil, cjerrors.Encode("google.protobuf.Value: unexpected oneof field %d", fd.Number())
	}
}

func (e encoder) timestamp(m protoreflect.Message) (*jsontree.Value, error) {
	fds := m.Descriptor().Fields()
	secs := m.Get(fds.ByNumber(timestampSecondsNumber)).Int()
	nanos := m.Get(fds.ByNumber(timestampNanosNumber)).Int()
	if secs < minTimestampSeconds || secs > maxTimestampSeconds {
		return nil, cjerrors.Encode("google.protobuf.Timestamp: seconds out of range %v", secs)
	}
	if nanos < 0 || nanos > maxNanos {
		return nil, cjerrors.Encode("google.protobuf.Timestamp: nanos out of range %v", nanos)
	}
	// RFC 3339 with 0, 3, 6 or 9 fractional digits and a Z suffix.
	t := time.Unix(secs, nanos).UTC()
	x := t.Format("2006-01-02T15:04:05.000000000")
	x = strings.TrimSuffix(x, "000")
	x = strings.TrimSuffix(x, "000")
	x = strings.TrimSuffix(x, ".000")
	return jsontree.NewString(x + "Z"), nil
}

func (e encoder) duration(m protoreflect.Message) (*jsontree.Value, error) {
	fds := m.Descriptor().Fields()
	secs := m.Get(fds.ByNumber(durationSecondsNumber)).Int()
	nanos := m.Get(fds.ByNumber(durationNanosNumber)).Int()
	if secs < -maxDurationSeconds || secs > maxDurationSeconds {
		return nil, cjerrors.Encode("google.protobuf.Duration: seconds out of range %v", secs)
	}
	if nanos < -maxNanos || nanos > maxNanos {
		return nil, cjerrors.Encode("google.protobuf.Duration: nanos out of range %v", nanos)
	}
	if (secs > 0 && nanos < 0) || (secs < 0 && nanos > 0) {
		return nil, cjerrors.Encode("google.protobuf.Duration: signs of seconds and nanos do not match")
	}
	// Output carries 0, 3, 6 or 9 fractional digits followed by "s"; the
	// sign is applied once to the whole literal.
	var sign string
	if secs < 0 || nanos < 0 {
		sign, secs, nanos = "-", -secs, -nanos
	}
	x := fmt.Sprintf("%s%d.%09d", sign, secs, nanos)
	x = strings.TrimSuffix(x, "000")
	x = strings.TrimSuffix(x, "000")
	x = strings.TrimSuffix(x, ".000")
	return jsontree.NewString(x + "s"), nil
}

func (e encoder) fieldMask(m protoreflect.Message) (*jsontree.Value, error) {
	fd := m.Descriptor().Fields().ByNumber(fieldMaskPathsNumber)
	list := m.Get(fd).List()
	paths := make([]string, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		s := list.Get(i).String()
		if !protoreflect.FullName(s).IsValid() {
			return nil, cjerrors.Encode("google.protobuf.FieldMask: invalid path %q", s)
		}
		cc := jsonCamelCase(s)
		if s != jsonSnakeCase(cc) {
			return nil, cjerrors.Encode("google.protobuf.FieldMask: path %q does not round-trip through camelCase", s)
		}
		paths = append(paths, cc)
	}
	return jsontree.NewString(strings.Join(paths, ",")), nil
}

// anyValue resolves the packed payload type, decodes the payload bytes and
// flattens the payload's JSON into an object carrying "@type". Payloads with
// a custom well-known shape nest under a "value" member instead.
func (e encoder) anyValue(m protoreflect.Message, depth int) (*jsontree.Value, error) {
	fds := m.Descriptor().Fields()
	fdType := fds.ByNumber(anyTypeURLFieldNumber)
	fdValue := fds.ByNumber(anyValueFieldNumber)

	if !m.Has(fdType) {
		if !m.Has(fdValue) {
			return jsontree.NewObject(), nil
		}
		return nil, cjerrors.Encode("google.protobuf.Any: value is set but type_url is not")
	}
	typeURL := m.Get(fdType).String()
	emt, err := e.c.opts.Resolver.FindMessageByURL(typeURL)
	if err != nil {
		return nil, cjerrors.Encode("google.protobuf.Any: unable to resolve %q: %v", typeURL, err)
	}
	em := emt.New()
	uo := proto.UnmarshalOptions{AllowPartial: true}
	if err := uo.Unmarshal(m.Get(fdValue).Bytes(), em.Interface()); err != nil {
		return nil, cjerrors.Encode("google.protobuf.Any: unable to unmarshal %q payload: %v", typeURL, err)
	}

	emi, err := e.c.cat.Message(em.Descriptor())
	if err != nil {
		return nil, err
	}
	obj := jsontree.NewObject()
	obj.Set("@type", jsontree.NewString(typeURL))
	if emi.WellKnown != catalog.WKNone {
		inner, err := e.wellKnown(emi, em, depth-1)
		if err != nil {
			return nil, err
		}
		obj.Set("value", inner)
		return obj, nil
	}
	body, err := e.plainMessage(emi, em, depth-1)
	if err != nil {
		return nil, err
	}
	for _, mem := range body.Members() {
		obj.Set(mem.Name, mem.Value)
	}
	return obj, nil
}
