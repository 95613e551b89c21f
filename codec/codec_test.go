package codec_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/dyncodec/canonjson/codec"
	cjerrors "github.com/dyncodec/canonjson/errors"
	"github.com/dyncodec/canonjson/jsontree"
	"github.com/dyncodec/canonjson/testutil"
)

func newCodec(mutate func(*codec.Options)) *codec.Codec {
	opts := codec.DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	return codec.New(opts)
}

func TestMarshalScalarFields(t *testing.T) {
	w := testutil.NewMessage("Widget")
	testutil.Set(w, "id", protoreflect.ValueOfString("w-1"))
	testutil.Set(w, "count", protoreflect.ValueOfInt64(math.MaxInt64))
	testutil.Set(w, "data", protoreflect.ValueOfBytes([]byte("hi")))
	testutil.Set(w, "ratio", protoreflect.ValueOfFloat64(1.5))
	testutil.Set(w, "weight", protoreflect.ValueOfFloat32(0.25))
	testutil.Set(w, "flag", protoreflect.ValueOfBool(true))
	testutil.Set(w, "small", protoreflect.ValueOfUint32(7))
	testutil.Set(w, "wide", protoreflect.ValueOfUint64(math.MaxUint64))
	testutil.Set(w, "tiny", protoreflect.ValueOfInt32(-5))

	c := newCodec(func(o *codec.Options) { o.EmitDefaultValues = false })
	b, err := c.Marshal(w)
	require.NoError(t, err)
	require.Equal(t,
		`{"id":"w-1","count":"9223372036854775807","data":"aGk=","ratio":1.5,"weight":0.25,"flag":true,"small":7,"wide":"18446744073709551615","tiny":-5}`,
		string(b))

	got := testutil.NewMessage("Widget")
	require.NoError(t, c.Unmarshal(b, got))
	require.True(t, proto.Equal(w, got))
}

func TestEmitDefaultValues(t *testing.T) {
	w := testutil.NewMessage("Widget")
	v, err := newCodec(nil).Encode(w)
	require.NoError(t, err)

	id, ok := v.Member("id")
	require.True(t, ok)
	require.Equal(t, "", id.Str())

	count, ok := v.Member("count")
	require.True(t, ok)
	require.Equal(t, jsontree.String, count.Kind())
	require.Equal(t, "0", count.Str())

	mood, ok := v.Member("mood")
	require.True(t, ok)
	require.Equal(t, "MOOD_UNSPECIFIED", mood.Str())

	tags, ok := v.Member("tags")
	require.True(t, ok)
	require.Equal(t, jsontree.Array, tags.Kind())
	require.Zero(t, tags.Len())

	counts, ok := v.Member("counts")
	require.True(t, ok)
	require.Equal(t, jsontree.Object, counts.Kind())
	require.Zero(t, counts.Len())

	// explicit-presence fields stay absent when unset
	for _, name := range []string{"nested", "created", "ttl", "max", "note", "child"} {
		_, ok := v.Member(name)
		require.False(t, ok, "field %s", name)
	}

	b, err := newCodec(func(o *codec.Options) { o.EmitDefaultValues = false }).Marshal(w)
	require.NoError(t, err)
	require.Equal(t, `{}`, string(b))
}

func TestRoundTripAllFieldShapes(t *testing.T) {
	w := testutil.NewMessage("Widget")
	testutil.Set(w, "id", protoreflect.ValueOfString("w-2"))
	testutil.Set(w, "count", protoreflect.ValueOfInt64(-42))
	testutil.Set(w, "mood", protoreflect.ValueOfEnum(2))

	nested := testutil.Mutable(w, "nested").Message()
	testutil.Set(nested, "name", protoreflect.ValueOfString("inner"))
	testutil.Set(nested, "rank", protoreflect.ValueOfInt32(3))

	tags := testutil.Mutable(w, "tags").List()
	tags.Append(protoreflect.ValueOfString("a"))
	tags.Append(protoreflect.ValueOfString("b"))

	parts := testutil.Mutable(w, "parts").List()
	part := parts.NewElement()
	testutil.Set(part.Message(), "name", protoreflect.ValueOfString("p1"))
	parts.Append(part)

	moods := testutil.Mutable(w, "moods").List()
	moods.Append(protoreflect.ValueOfEnum(1))
	moods.Append(protoreflect.ValueOfEnum(2))

	counts := testutil.Mutable(w, "counts").Map()
	counts.Set(protoreflect.ValueOfString("x").MapKey(), protoreflect.ValueOfInt32(3))
	counts.Set(protoreflect.ValueOfString("y").MapKey(), protoreflect.ValueOfInt32(-1))

	moodMap := testutil.Mutable(w, "mood_map").Map()
	moodMap.Set(protoreflect.ValueOfString("a").MapKey(), protoreflect.ValueOfEnum(1))

	nestedMap := testutil.Mutable(w, "nested_map").Map()
	nv := nestedMap.NewValue()
	testutil.Set(nv.Message(), "rank", protoreflect.ValueOfInt32(9))
	nestedMap.Set(protoreflect.ValueOfString("k").MapKey(), nv)

	byNum := testutil.Mutable(w, "by_num").Map()
	byNum.Set(protoreflect.ValueOfInt32(7).MapKey(), protoreflect.ValueOfString("seven"))
	byNum.Set(protoreflect.ValueOfInt32(-2).MapKey(), protoreflect.ValueOfString("neg"))

	flags := testutil.Mutable(w, "flags").Map()
	flags.Set(protoreflect.ValueOfBool(true).MapKey(), protoreflect.ValueOfString("yes"))
	flags.Set(protoreflect.ValueOfBool(false).MapKey(), protoreflect.ValueOfString("no"))

	created := testutil.Mutable(w, "created").Message()
	testutil.Set(created, "seconds", protoreflect.ValueOfInt64(1700000000))
	testutil.Set(created, "nanos", protoreflect.ValueOfInt32(120000000))

	ttl := testutil.Mutable(w, "ttl").Message()
	testutil.Set(ttl, "seconds", protoreflect.ValueOfInt64(3661))
	testutil.Set(ttl, "nanos", protoreflect.ValueOfInt32(123456789))

	max := testutil.Mutable(w, "max").Message()
	testutil.Set(max, "value", protoreflect.ValueOfInt64(math.MaxInt64))

	enabled := testutil.Mutable(w, "enabled").Message()
	testutil.Set(enabled, "value", protoreflect.ValueOfBool(true))

	label := testutil.Mutable(w, "label").Message()
	testutil.Set(label, "value", protoreflect.ValueOfString("tag"))

	blob := testutil.Mutable(w, "blob").Message()
	testutil.Set(blob, "value", protoreflect.ValueOfBytes([]byte{1, 2}))

	big := testutil.Mutable(w, "big").Message()
	testutil.Set(big, "value", protoreflect.ValueOfUint64(math.MaxUint64))

	meta := testutil.Mutable(w, "meta").Message()
	metaFields := testutil.Mutable(meta, "fields").Map()
	mv := metaFields.NewValue()
	testutil.Set(mv.Message(), "string_value", protoreflect.ValueOfString("v"))
	metaFields.Set(protoreflect.ValueOfString("k").MapKey(), mv)

	extra := testutil.Mutable(w, "extra").Message()
	testutil.Set(extra, "number_value", protoreflect.ValueOfFloat64(2.5))

	items := testutil.Mutable(w, "items").Message()
	values := testutil.Mutable(items, "values").List()
	iv := values.NewElement()
	testutil.Set(iv.Message(), "bool_value", protoreflect.ValueOfBool(true))
	values.Append(iv)

	testutil.Mutable(w, "nothing")

	mask := testutil.Mutable(w, "mask").Message()
	paths := testutil.Mutable(mask, "paths").List()
	paths.Append(protoreflect.ValueOfString("display_name"))
	paths.Append(protoreflect.ValueOfString("photo.url"))

	testutil.Set(w, "note", protoreflect.ValueOfString("remember"))

	child := testutil.Mutable(w, "child").Message()
	testutil.Set(child, "id", protoreflect.ValueOfString("kid"))

	c := newCodec(nil)
	b, err := c.Marshal(w)
	require.NoError(t, err)

	got := testutil.NewMessage("Widget")
	require.NoError(t, c.Unmarshal(b, got))
	require.True(t, proto.Equal(w, got), "round trip mismatch\njson: %s", b)
}

func TestMapKeysSortedAndStringified(t *testing.T) {
	w := testutil.NewMessage("Widget")
	byNum := testutil.Mutable(w, "by_num").Map()
	byNum.Set(protoreflect.ValueOfInt32(10).MapKey(), protoreflect.ValueOfString("ten"))
	byNum.Set(protoreflect.ValueOfInt32(-3).MapKey(), protoreflect.ValueOfString("neg"))
	byNum.Set(protoreflect.ValueOfInt32(2).MapKey(), protoreflect.ValueOfString("two"))
	flags := testutil.Mutable(w, "flags").Map()
	flags.Set(protoreflect.ValueOfBool(true).MapKey(), protoreflect.ValueOfString("y"))
	flags.Set(protoreflect.ValueOfBool(false).MapKey(), protoreflect.ValueOfString("n"))

	c := newCodec(func(o *codec.Options) { o.EmitDefaultValues = false })
	b, err := c.Marshal(w)
	require.NoError(t, err)
	require.Equal(t, `{"byNum":{"-3":"neg","2":"two","10":"ten"},"flags":{"false":"n","true":"y"}}`, string(b))
}

func TestEnumNames(t *testing.T) {
	w := testutil.NewMessage("Widget")
	testutil.Set(w, "mood", protoreflect.ValueOfEnum(1))
	c := newCodec(func(o *codec.Options) { o.EmitDefaultValues = false })
	b, err := c.Marshal(w)
	require.NoError(t, err)
	require.Equal(t, `{"mood":"MOOD_HAPPY"}`, string(b))

	numeric := newCodec(func(o *codec.Options) {
		o.EmitDefaultValues = false
		o.UseEnumNumbers = true
	})
	b, err = numeric.Marshal(w)
	require.NoError(t, err)
	require.Equal(t, `{"mood":1}`, string(b))
}

func TestEnumSentinel(t *testing.T) {
	w := testutil.NewMessage("Widget")
	testutil.Set(w, "mood", protoreflect.ValueOfEnum(-1))

	c := newCodec(func(o *codec.Options) { o.EmitDefaultValues = false })
	b, err := c.Marshal(w)
	require.NoError(t, err)
	require.Equal(t, `{"mood":"MOOD_UNRECOGNIZED"}`, string(b))

	// the sentinel has no defined integer form
	numeric := newCodec(func(o *codec.Options) { o.UseEnumNumbers = true })
	_, err = numeric.Marshal(w)
	require.Error(t, err)
	require.True(t, cjerrors.IsEncode(err))

	// round trip through the name lands back on the sentinel
	got := testutil.NewMessage("Widget")
	require.NoError(t, c.Unmarshal(b, got))
	require.True(t, proto.Equal(w, got))
}

func TestEnumDecodeFallback(t *testing.T) {
	c := newCodec(nil)
	for _, in := range []string{
		`{"mood":"NO_SUCH_MOOD"}`,
		`{"mood":99}`,
		`{"mood":"99"}`,
	} {
		got := testutil.NewMessage("Widget")
		require.NoError(t, c.Unmarshal([]byte(in), got), "input %s", in)
		require.EqualValues(t, -1, testutil.Get(got, "mood").Enum(), "input %s", in)
	}

	// case-insensitive name resolution
	got := testutil.NewMessage("Widget")
	require.NoError(t, c.Unmarshal([]byte(`{"mood":"mood_grumpy"}`), got))
	require.EqualValues(t, 2, testutil.Get(got, "mood").Enum())

	err := c.Unmarshal([]byte(`{"mood":true}`), testutil.NewMessage("Widget"))
	require.Error(t, err)
	require.True(t, cjerrors.IsDecode(err))
}

func TestEnumUndeclaredNumberEncodes(t *testing.T) {
	w := testutil.NewMessage("Widget")
	testutil.Set(w, "mood", protoreflect.ValueOfEnum(99))
	c := newCodec(func(o *codec.Options) { o.EmitDefaultValues = false })
	b, err := c.Marshal(w)
	require.NoError(t, err)
	require.Equal(t, `{"mood":99}`, string(b))
}

func TestUseProtoNames(t *testing.T) {
	w := testutil.NewMessage("Widget")
	moodMap := testutil.Mutable(w, "mood_map").Map()
	moodMap.Set(protoreflect.ValueOfString("a").MapKey(), protoreflect.ValueOfEnum(1))

	c := newCodec(func(o *codec.Options) {
		o.EmitDefaultValues = false
		o.UseProtoNames = true
	})
	b, err := c.Marshal(w)
	require.NoError(t, err)
	require.Equal(t, `{"mood_map":{"a":"MOOD_HAPPY"}}`, string(b))

	// decoding accepts both spellings regardless of the option
	for _, in := range []string{`{"mood_map":{"a":"MOOD_HAPPY"}}`, `{"moodMap":{"a":"MOOD_HAPPY"}}`} {
		got := testutil.NewMessage("Widget")
		require.NoError(t, newCodec(nil).Unmarshal([]byte(in), got))
		require.True(t, proto.Equal(w, got), "input %s", in)
	}
}

func TestDuplicateMemberRejected(t *testing.T) {
	c := newCodec(nil)
	err := c.Unmarshal([]byte(`{"id":"a","id":"b"}`), testutil.NewMessage("Widget"))
	require.Error(t, err)
	require.True(t, cjerrors.IsDecode(err))

	// both spellings of one field count as the same member
	err = c.Unmarshal([]byte(`{"moodMap":{},"mood_map":{}}`), testutil.NewMessage("Widget"))
	require.Error(t, err)
	require.True(t, cjerrors.IsDecode(err))
}

func TestUnknownFieldPolicy(t *testing.T) {
	in := []byte(`{"bogus":1,"id":"keep"}`)

	got := testutil.NewMessage("Widget")
	require.NoError(t, newCodec(nil).Unmarshal(in, got))
	require.Equal(t, "keep", testutil.Get(got, "id").String())

	strict := newCodec(func(o *codec.Options) { o.DiscardUnknown = false })
	err := strict.Unmarshal(in, testutil.NewMessage("Widget"))
	require.Error(t, err)
	require.True(t, cjerrors.IsDecode(err))
	require.Contains(t, err.Error(), "bogus")
}

func TestMalformedValueAlwaysFails(t *testing.T) {
	// malformed values of known fields fail even while unknown members are
	// being discarded
	c := newCodec(nil)
	for _, in := range []string{
		`{"count":true}`,
		`{"tiny":1.5}`,
		`{"small":-1}`,
		`{"id":7}`,
		`{"tags":"nope"}`,
		`{"counts":[1]}`,
		`{"data":"!!"}`,
	} {
		err := c.Unmarshal([]byte(in), testutil.NewMessage("Widget"))
		require.Error(t, err, "input %s", in)
		require.True(t, cjerrors.IsDecode(err), "input %s", in)
	}
}

func TestUnmarshalErrorLeavesTargetUntouched(t *testing.T) {
	w := testutil.NewMessage("Widget")
	testutil.Set(w, "id", protoreflect.ValueOfString("old"))

	err := newCodec(nil).Unmarshal([]byte(`{"id":"new","count":true}`), w)
	require.Error(t, err)
	require.Equal(t, "old", testutil.Get(w, "id").String())
}

func TestUnmarshalReplacesPriorState(t *testing.T) {
	w := testutil.NewMessage("Widget")
	testutil.Set(w, "id", protoreflect.ValueOfString("old"))
	testutil.Set(w, "count", protoreflect.ValueOfInt64(7))

	require.NoError(t, newCodec(nil).Unmarshal([]byte(`{"count":"5"}`), w))
	require.Equal(t, "", testutil.Get(w, "id").String())
	require.EqualValues(t, 5, testutil.Get(w, "count").Int())
}

func TestNullMeansAbsent(t *testing.T) {
	c := newCodec(nil)
	w := testutil.NewMessage("Widget")
	require.NoError(t, c.Unmarshal([]byte(`{"id":null,"count":null,"nested":null,"tags":null,"counts":null,"max":null}`), w))
	for _, name := range []protoreflect.Name{"id", "count", "nested", "max"} {
		require.False(t, w.Has(testutil.FieldByName(w.Descriptor(), name)), "field %s", name)
	}

	// google.protobuf.Value treats null as a value, not absence
	require.NoError(t, c.Unmarshal([]byte(`{"extra":null}`), w))
	require.True(t, w.Has(testutil.FieldByName(w.Descriptor(), "extra")))
}

func TestIntegerInputForms(t *testing.T) {
	c := newCodec(nil)
	cases := map[string]int64{
		`{"count":42}`:     42,
		`{"count":"42"}`:   42,
		`{"count":4.2e1}`:  42,
		`{"count":"-7"}`:   -7,
		`{"count":12.0}`:   12,
		`{"count":"1e3"}`:  1000,
	}
	for in, want := range cases {
		w := testutil.NewMessage("Widget")
		require.NoError(t, c.Unmarshal([]byte(in), w), "input %s", in)
		require.Equal(t, want, testutil.Get(w, "count").Int(), "input %s", in)
	}

	for _, in := range []string{`{"count":1.5}`, `{"count":""}`, `{"count":"4x"}`, `{"tiny":2147483648}`} {
		err := c.Unmarshal([]byte(in), testutil.NewMessage("Widget"))
		require.Error(t, err, "input %s", in)
	}
}

func TestBytesInputForms(t *testing.T) {
	c := newCodec(nil)
	cases := map[string][]byte{
		`{"data":"aGk="}`: []byte("hi"),
		`{"data":"aGk"}`:  []byte("hi"),
		`{"data":"_w=="}`: {0xff},
		`{"data":"_w"}`:   {0xff},
	}
	for in, want := range cases {
		w := testutil.NewMessage("Widget")
		require.NoError(t, c.Unmarshal([]byte(in), w), "input %s", in)
		require.Equal(t, want, testutil.Get(w, "data").Bytes(), "input %s", in)
	}
}

func TestNonFiniteFloats(t *testing.T) {
	c := newCodec(func(o *codec.Options) { o.EmitDefaultValues = false })

	w := testutil.NewMessage("Widget")
	testutil.Set(w, "ratio", protoreflect.ValueOfFloat64(math.NaN()))
	testutil.Set(w, "weight", protoreflect.ValueOfFloat32(float32(math.Inf(-1))))
	b, err := c.Marshal(w)
	require.NoError(t, err)
	require.Equal(t, `{"ratio":"NaN","weight":"-Infinity"}`, string(b))

	got := testutil.NewMessage("Widget")
	require.NoError(t, c.Unmarshal([]byte(`{"ratio":"Infinity","weight":"NaN"}`), got))
	require.True(t, math.IsInf(testutil.Get(got, "ratio").Float(), 1))
	require.True(t, math.IsNaN(testutil.Get(got, "weight").Float()))
}

func TestRecursionLimit(t *testing.T) {
	limited := newCodec(func(o *codec.Options) {
		o.EmitDefaultValues = false
		o.RecursionLimit = 4
	})

	w := testutil.NewMessage("Widget")
	cur := protoreflect.Message(w)
	for i := 0; i < 6; i++ {
		cur = testutil.Mutable(cur, "child").Message()
	}
	_, err := limited.Marshal(w)
	require.Error(t, err)
	require.True(t, cjerrors.IsEncode(err))

	// within the default limit the same chain is fine
	b, err := newCodec(func(o *codec.Options) { o.EmitDefaultValues = false }).Marshal(w)
	require.NoError(t, err)

	err = limited.Unmarshal(b, testutil.NewMessage("Widget"))
	require.Error(t, err)
	require.True(t, cjerrors.IsDecode(err))
}

func TestUnmarshalInvalidJSON(t *testing.T) {
	err := newCodec(nil).Unmarshal([]byte(`{"id":`), testutil.NewMessage("Widget"))
	require.Error(t, err)
	require.True(t, cjerrors.IsDecode(err))
	require.Contains(t, err.Error(), "invalid JSON input")
}

func TestInvalidTopLevel(t *testing.T) {
	c := newCodec(nil)
	for _, in := range []string{`[]`, `"x"`, `1`, `true`} {
		err := c.Unmarshal([]byte(in), testutil.NewMessage("Widget"))
		require.Error(t, err, "input %s", in)
		require.True(t, cjerrors.IsDecode(err), "input %s", in)
	}
}
