// Package registry provides an explicit type registry for resolving
// google.protobuf.Any payloads: descriptors are ingested from live file
// descriptors, descriptor protos, raw (optionally gzipped) descriptor bytes
// or whole descriptor sets, and exposed through the resolver interfaces the
// codec consumes.
package registry

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

var _ protoregistry.MessageTypeResolver = (*Registry)(nil)
var _ protoregistry.ExtensionTypeResolver = (*Registry)(nil)

// Registry is an immutable snapshot of registered types. Build one with a
// Builder; afterwards it is safe for concurrent use without locking.
type Registry struct {
	files    *protoregistry.Files
	types    *protoregistry.Types
	typeURLs map[string]protoreflect.FullName
}

// FindMessageByName resolves a message type by full name.
func (r *Registry) FindMessageByName(message protoreflect.FullName) (protoreflect.MessageType, error) {
	return r.types.FindMessageByName(message)
}

// FindMessageByURL resolves a message type from an Any type URL. Explicit
// aliases registered on the builder win; otherwise the name after the last
// slash is looked up directly.
func (r *Registry) FindMessageByURL(url string) (protoreflect.MessageType, error) {
	if fullname, ok := r.typeURLs[url]; ok {
		return r.types.FindMessageByName(fullname)
	}
	name := url
	for i := len(url) - 1; i >= 0; i-- {
		if url[i] == '/' {
			name = url[i+1:]
			break
		}
	}
	return r.types.FindMessageByName(protoreflect.FullName(name))
}

// FindEnumByName resolves an enum type by full name.
func (r *Registry) FindEnumByName(enum protoreflect.FullName) (protoreflect.EnumType, error) {
	return r.types.FindEnumByName(enum)
}

func (r *Registry) FindExtensionByName(field protoreflect.FullName) (protoreflect.ExtensionType, error) {
	return r.types.FindExtensionByName(field)
}

func (r *Registry) FindExtensionByNumber(message protoreflect.FullName, field protoreflect.FieldNumber) (protoreflect.ExtensionType, error) {
	return r.types.FindExtensionByNumber(message, field)
}

// FindFileByPath resolves a registered file descriptor by path.
func (r *Registry) FindFileByPath(path string) (protoreflect.FileDescriptor, error) {
	return r.files.FindFileByPath(path)
}

// RangeFiles iterates all registered file descriptors.
func (r *Registry) RangeFiles(f func(protoreflect.FileDescriptor) bool) {
	r.files.RangeFiles(f)
}

// NumFiles reports how many file descriptors are registered.
func (r *Registry) NumFiles() int {
	return r.files.NumFiles()
}

func (r *Registry) registerTypeURL(typeURL string, fullname protoreflect.FullName) error {
	got, exists := r.typeURLs[typeURL]
	if !exists {
		r.typeURLs[typeURL] = fullname
		return nil
	}
	if got != fullname {
		return fmt.Errorf("disallowed overwrite of type URL %s: %s <-> %s", typeURL, fullname, got)
	}
	return nil
}
