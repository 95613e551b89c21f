// Package canonjson converts schema-driven messages to and from the
// canonical JSON mapping using runtime reflection over message descriptors.
//
// The package-level functions use the default options; construct a
// codec.Codec directly to configure enum representation, field naming,
// default-value emission, unknown-field policy or the Any type resolver.
package canonjson

import (
	"google.golang.org/protobuf/proto"

	"github.com/dyncodec/canonjson/codec"
)

// Marshal encodes m to canonical JSON with default options.
func Marshal(m proto.Message) ([]byte, error) {
	return codec.New(codec.DefaultOptions()).Marshal(m)
}

// Unmarshal decodes canonical JSON into m with default options.
func Unmarshal(data []byte, m proto.Message) error {
	return codec.New(codec.DefaultOptions()).Unmarshal(data, m)
}
