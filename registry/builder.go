package registry

import (
	"bytes"
	"compress/gzip"
	"io"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// NewBuilder creates an empty Builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		files:    new(protoregistry.Files),
		types:    new(protoregistry.Types),
		typeURLs: make(map[string]protoreflect.FullName),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger used for registration diagnostics.
func WithLogger(logger *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = logger }
}

// Builder accumulates descriptors and produces a Registry. It is not safe
// for concurrent use and builds at most once.
type Builder struct {
	state int32

	files    *protoregistry.Files
	types    *protoregistry.Types
	typeURLs map[string]protoreflect.FullName

	logger *zap.Logger
}

// Build finalizes the Builder into an immutable Registry. It can be called
// only once, and not concurrently with registration.
func (b *Builder) Build() (*Registry, error) {
	const stateNotBuilt int32 = 0
	const stateBuilt int32 = 1
	if !atomic.CompareAndSwapInt32(&b.state, stateNotBuilt, stateBuilt) {
		return nil, errors.New("registry: Builder.Build can only be called once")
	}
	r := &Registry{
		files:    b.files,
		types:    b.types,
		typeURLs: b.typeURLs,
	}
	b.logger.Debug("registry built",
		zap.Int("files", b.files.NumFiles()),
		zap.Int("type_url_aliases", len(b.typeURLs)))
	return r, nil
}

// AddFile registers a live file descriptor and the message, enum and
// extension types it declares.
func (b *Builder) AddFile(fd protoreflect.FileDescriptor) error {
	if err := b.files.RegisterFile(fd); err != nil {
		return errors.Wrapf(err, "unable to register file %s", fd.Path())
	}
	if err := b.registerFileTypes(fd); err != nil {
		return err
	}
	b.logger.Debug("registered file", zap.String("path", fd.Path()))
	return nil
}

// AddFileDescriptorProto builds a file descriptor from its proto form,
// resolving imports against the files registered so far and falling back to
// the process-global file registry.
func (b *Builder) AddFileDescriptorProto(fdp *descriptorpb.FileDescriptorProto) error {
	fd, err := protodesc.NewFile(fdp, resolverChain{b.files, protoregistry.GlobalFiles})
	if err != nil {
		return errors.Wrapf(err, "unable to build descriptor for file %s", fdp.GetName())
	}
	return b.AddFile(fd)
}

// AddRawDescriptor registers a serialized FileDescriptorProto, transparently
// gunzipping it first when compressed.
func (b *Builder) AddRawDescriptor(rawDesc []byte) error {
	rawDesc, err := unzip(rawDesc)
	if err != nil {
		return err
	}
	fdp := new(descriptorpb.FileDescriptorProto)
	if err := proto.Unmarshal(rawDesc, fdp); err != nil {
		return errors.Wrap(err, "unable to parse raw file descriptor")
	}
	return b.AddFileDescriptorProto(fdp)
}

// AddFileDescriptorSet registers every file of a descriptor set in
// dependency order, regardless of the order the set lists them in.
func (b *Builder) AddFileDescriptorSet(fdset *descriptorpb.FileDescriptorSet) error {
	pending := make(map[string]*descriptorpb.FileDescriptorProto, len(fdset.GetFile()))
	for _, fdp := range fdset.GetFile() {
		pending[fdp.GetName()] = fdp
	}
	for len(pending) > 0 {
		progressed := false
		for name, fdp := range pending {
			if !b.dependenciesSatisfied(fdp) {
				continue
			}
			if err := b.AddFileDescriptorProto(fdp); err != nil {
				return err
			}
			delete(pending, name)
			progressed = true
		}
		if !progressed {
			remaining := make([]string, 0, len(pending))
			for name := range pending {
				remaining = append(remaining, name)
			}
			return errors.Errorf("descriptor set has missing or cyclic imports among %v", remaining)
		}
	}
	return nil
}

// RegisterTypeURL maps an Any type URL to a message full name. Re-registering
// the same pair is a no-op; conflicting overwrites fail.
func (b *Builder) RegisterTypeURL(typeURL string, fullname protoreflect.FullName) error {
	got, exists := b.typeURLs[typeURL]
	if !exists {
		b.typeURLs[typeURL] = fullname
		return nil
	}
	if got != fullname {
		return errors.Errorf("disallowed overwrite of type URL %s: %s <-> %s", typeURL, fullname, got)
	}
	return nil
}

func (b *Builder) dependenciesSatisfied(fdp *descriptorpb.FileDescriptorProto) bool {
	for _, dep := range fdp.GetDependency() {
		if _, err := b.files.FindFileByPath(dep); err == nil {
			continue
		}
		if _, err := protoregistry.GlobalFiles.FindFileByPath(dep); err == nil {
			continue
		}
		return false
	}
	return true
}

// registerFileTypes registers dynamic types for every message, enum and
// extension declared at the file's top level and below.
func (b *Builder) registerFileTypes(fd protoreflect.FileDescriptor) error {
	var register func(mds protoreflect.MessageDescriptors) error
	register = func(mds protoreflect.MessageDescriptors) error {
		for i := 0; i < mds.Len(); i++ {
			md := mds.Get(i)
			if md.IsMapEntry() {
				continue
			}
			if err := b.types.RegisterMessage(dynamicpb.NewMessageType(md)); err != nil {
				return errors.Wrapf(err, "unable to register message %s", md.FullName())
			}
			nested := md.Enums()
			for j := 0; j < nested.Len(); j++ {
				ed := nested.Get(j)
				if err := b.types.RegisterEnum(dynamicpb.NewEnumType(ed)); err != nil {
					return errors.Wrapf(err, "unable to register enum %s", ed.FullName())
				}
			}
			if err := register(md.Messages()); err != nil {
				return err
			}
		}
		return nil
	}
	if err := register(fd.Messages()); err != nil {
		return err
	}

	eds := fd.Enums()
	for i := 0; i < eds.Len(); i++ {
		ed := eds.Get(i)
		if err := b.types.RegisterEnum(dynamicpb.NewEnumType(ed)); err != nil {
			return errors.Wrapf(err, "unable to register enum %s", ed.FullName())
		}
	}

	xds := fd.Extensions()
	for i := 0; i < xds.Len(); i++ {
		xd := xds.Get(i)
		if err := b.types.RegisterExtension(dynamicpb.NewExtensionType(xd)); err != nil {
			return errors.Wrapf(err, "unable to register extension %s", xd.FullName())
		}
	}
	return nil
}

// unzip transparently decompresses gzipped descriptor bytes; plain bytes
// pass through unchanged.
func unzip(desc []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewBuffer(desc))
	if err != nil {
		return desc, nil
	}
	unzipped, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "unable to decompress descriptor")
	}
	return unzipped, nil
}

// resolverChain tries each file resolver in order.
type resolverChain []protodesc.Resolver

func (c resolverChain) FindFileByPath(path string) (protoreflect.FileDescriptor, error) {
	var err error
	for _, r := range c {
		var fd protoreflect.FileDescriptor
		fd, err = r.FindFileByPath(path)
		if err == nil {
			return fd, nil
		}
	}
	return nil, err
}

func (c resolverChain) FindDescriptorByName(name protoreflect.FullName) (protoreflect.Descriptor, error) {
	var err error
	for _, r := range c {
		var d protoreflect.Descriptor
		d, err = r.FindDescriptorByName(name)
		if err == nil {
			return d, nil
		}
	}
	return nil, err
}
