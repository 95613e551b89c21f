// Package codec converts schema-driven messages to and from their canonical
// JSON mapping. All dispatch happens through runtime descriptors: there is no
// per-type generated code, and a single Codec serves every message type it
// encounters, caching structural metadata on first use.
package codec

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"

	"github.com/dyncodec/canonjson/catalog"
	cjerrors "github.com/dyncodec/canonjson/errors"
	"github.com/dyncodec/canonjson/jsontree"
)

// DefaultRecursionLimit bounds nested-message traversal on both encode and
// decode when Options.RecursionLimit is left zero.
const DefaultRecursionLimit = 10000

// Resolver looks up message types when packing and unpacking
// google.protobuf.Any payloads.
type Resolver interface {
	FindMessageByName(message protoreflect.FullName) (protoreflect.MessageType, error)
	FindMessageByURL(url string) (protoreflect.MessageType, error)
}

// Options configures a Codec. The value is copied at construction and never
// mutated afterwards; a Codec may be shared freely across goroutines.
type Options struct {
	// UseEnumNumbers emits enum values as integers instead of declared
	// names. Encoding the unrecognized-value sentinel this way fails: the
	// sentinel has no defined integer form.
	UseEnumNumbers bool

	// UseProtoNames emits the declared proto field names instead of the
	// lowerCamel JSON names. Decoding accepts both regardless.
	UseProtoNames bool

	// EmitDefaultValues emits zero-valued no-presence fields and empty
	// repeated/map fields. Fields with explicit presence (messages, oneof
	// members, optional fields) are still emitted only when set.
	EmitDefaultValues bool

	// DiscardUnknown skips JSON members that match no declared field.
	// Malformed values of known fields always fail the decode.
	DiscardUnknown bool

	// RecursionLimit bounds message nesting. Zero means
	// DefaultRecursionLimit.
	RecursionLimit int

	// Resolver resolves google.protobuf.Any type URLs. Nil means
	// protoregistry.GlobalTypes.
	Resolver Resolver
}

// DefaultOptions returns the canonical mapping defaults: enums as names,
// lowerCamel field names, default values emitted, unknown members ignored.
func DefaultOptions() Options {
	return Options{
		EmitDefaultValues: true,
		DiscardUnknown:    true,
	}
}

// Codec is a reusable, concurrency-safe converter between messages and their
// canonical JSON form.
type Codec struct {
	opts Options
	cat  *catalog.Catalog
}

// New creates a Codec with the given options.
func New(opts Options) *Codec {
	if opts.RecursionLimit <= 0 {
		opts.RecursionLimit = DefaultRecursionLimit
	}
	if opts.Resolver == nil {
		opts.Resolver = protoregistry.GlobalTypes
	}
	return &Codec{opts: opts, cat: catalog.New()}
}

// Marshal encodes m to canonical JSON text.
func (c *Codec) Marshal(m proto.Message) ([]byte, error) {
	if m == nil {
		return nil, cjerrors.Configuration("cannot marshal a nil message")
	}
	v, err := c.Encode(m.ProtoReflect())
	if err != nil {
		return nil, err
	}
	b, err := v.Marshal()
	if err != nil {
		return nil, cjerrors.Encode("unable to serialize value tree: %v", err)
	}
	return b, nil
}

// Unmarshal decodes canonical JSON text into m. The input is decoded into a
// fresh message first and copied over only on success: on error m is left
// untouched.
func (c *Codec) Unmarshal(data []byte, m proto.Message) error {
	if m == nil {
		return cjerrors.Configuration("cannot unmarshal into a nil message")
	}
	tree, err := jsontree.Parse(data, c.opts.RecursionLimit)
	if err != nil {
		return cjerrors.WrapDecode(err, "invalid JSON input")
	}
	scratch := m.ProtoReflect().New()
	if err := c.Decode(tree, scratch); err != nil {
		return err
	}
	proto.Reset(m)
	proto.Merge(m, scratch.Interface())
	return nil
}

// Encode converts m into a JSON value tree.
func (c *Codec) Encode(m protoreflect.Message) (*jsontree.Value, error) {
	if m == nil {
		return nil, cjerrors.Configuration("cannot encode a nil message")
	}
	e := encoder{c}
	return e.message(m, c.opts.RecursionLimit)
}

// Decode populates m from a JSON value tree. Unlike Unmarshal it writes into
// m directly; on error m may hold the fields decoded so far.
func (c *Codec) Decode(v *jsontree.Value, m protoreflect.Message) error {
	if m == nil {
		return cjerrors.Configuration("cannot decode into a nil message")
	}
	if v == nil {
		return cjerrors.Decode("cannot decode a nil value")
	}
	d := decoder{c}
	return d.message(v, m, c.opts.RecursionLimit)
}
