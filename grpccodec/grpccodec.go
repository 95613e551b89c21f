// Package grpccodec exposes the canonical JSON codec to gRPC as a
// content-subtype codec. Values that are not protobuf messages are declined
// with an error so the host falls back to its own handling.
package grpccodec

import (
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/proto"

	"github.com/dyncodec/canonjson/codec"
)

// Name is the content subtype this codec registers under: requests with
// content-type application/grpc+json route through it.
const Name = "json"

var _ encoding.Codec = (*Codec)(nil)

// Codec adapts a codec.Codec to the gRPC encoding interface.
type Codec struct {
	cdc    *codec.Codec
	logger *zap.Logger
}

// Option configures the adapter.
type Option func(*Codec)

// WithOptions replaces the default codec options.
func WithOptions(opts codec.Options) Option {
	return func(c *Codec) { c.cdc = codec.New(opts) }
}

// WithLogger sets the logger used to report declined values.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Codec) { c.logger = logger }
}

// New creates the adapter with default options.
func New(opts ...Option) *Codec {
	c := &Codec{
		cdc:    codec.New(codec.DefaultOptions()),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register installs the codec into the process-global gRPC codec registry.
func Register(opts ...Option) {
	encoding.RegisterCodec(New(opts...))
}

// Name implements encoding.Codec.
func (c *Codec) Name() string { return Name }

// Handles reports whether v is a value this codec can serve.
func (c *Codec) Handles(v interface{}) bool {
	_, ok := v.(proto.Message)
	return ok
}

// Marshal implements encoding.Codec.
func (c *Codec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		c.logger.Debug("declined value", zap.String("type", fmt.Sprintf("%T", v)))
		return nil, errNotProtobuf(v)
	}
	return c.cdc.Marshal(m)
}

// Unmarshal implements encoding.Codec.
func (c *Codec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(proto.Message)
	if !ok {
		c.logger.Debug("declined value", zap.String("type", fmt.Sprintf("%T", v)))
		return errNotProtobuf(v)
	}
	return c.cdc.Unmarshal(data, m)
}

func errNotProtobuf(v interface{}) error {
	return fmt.Errorf("%T does not implement proto.Message", v)
}
