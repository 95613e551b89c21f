// Package catalog resolves message and enum descriptors into precomputed,
// immutable metadata: per-field kind tags and name lookups for messages, and
// number/name tables with the unrecognized-value sentinel for enums. Entries
// are computed at most logically once and cached for the process lifetime.
package catalog

import (
	"strings"
	"sync"

	"google.golang.org/protobuf/reflect/protoreflect"

	cjerrors "github.com/dyncodec/canonjson/errors"
)

// Catalog caches structural metadata per type. The zero value is not usable;
// use New. A Catalog is safe for concurrent use: cache population goes
// through an atomic insert-if-absent, so a racing first use may compute an
// entry twice but never observes a partial one.
type Catalog struct {
	messages sync.Map // protoreflect.MessageDescriptor -> *MessageInfo
	enums    sync.Map // protoreflect.EnumDescriptor -> *EnumTable
}

// New creates an empty Catalog.
func New() *Catalog {
	return &Catalog{}
}

// Message resolves the cached metadata for md, computing it on first use.
func (c *Catalog) Message(md protoreflect.MessageDescriptor) (*MessageInfo, error) {
	if md == nil {
		return nil, cjerrors.Configuration("message type carries no descriptor")
	}
	if cached, ok := c.messages.Load(md); ok {
		return cached.(*MessageInfo), nil
	}
	mi, err := newMessageInfo(md)
	if err != nil {
		return nil, err
	}
	cached, _ := c.messages.LoadOrStore(md, mi)
	return cached.(*MessageInfo), nil
}

// Enum resolves the cached lookup table for ed, computing it on first use.
func (c *Catalog) Enum(ed protoreflect.EnumDescriptor) (*EnumTable, error) {
	if ed == nil {
		return nil, cjerrors.Configuration("enum type carries no descriptor")
	}
	if cached, ok := c.enums.Load(ed); ok {
		return cached.(*EnumTable), nil
	}
	table, err := newEnumTable(ed)
	if err != nil {
		return nil, err
	}
	cached, _ := c.enums.LoadOrStore(ed, table)
	return cached.(*EnumTable), nil
}

// FieldKind tags how a field dispatches, resolved once at catalog build time.
type FieldKind int

const (
	KindScalar FieldKind = iota + 1
	KindEnum
	KindMessage
	KindList
	KindMap
)

// FieldInfo is the resolved metadata of a single field.
type FieldInfo struct {
	Desc protoreflect.FieldDescriptor
	Kind FieldKind
	// Name is the declared proto name, JSONName the lowerCamel wire name.
	Name     string
	JSONName string
	// HasPresence reports explicit presence: message fields, oneof members
	// and optional-labeled fields.
	HasPresence bool
	Deprecated  bool
	// AcceptsNull marks the singular field types for which JSON null is a
	// value rather than absence: google.protobuf.Value and NullValue.
	AcceptsNull bool

	// Enum and Message reference the target type for KindEnum/KindMessage
	// fields, and describe element types for KindList.
	Enum    protoreflect.EnumDescriptor
	Message protoreflect.MessageDescriptor

	// MapKey and MapValue are set for KindMap fields only.
	MapKey   *FieldInfo
	MapValue *FieldInfo
}

// MessageInfo is the resolved metadata of a message type.
type MessageInfo struct {
	Desc       protoreflect.MessageDescriptor
	FullName   protoreflect.FullName
	Deprecated bool
	// WellKnown is non-zero when the type has a specification-mandated JSON
	// shape; the codec dispatches on this tag instead of the type name.
	WellKnown WellKnownType

	// Fields in declaration order.
	Fields []*FieldInfo

	byName map[string]*FieldInfo
}

// FieldByName resolves a JSON member name to a field, accepting both the
// wire JSON name and the declared proto name.
func (mi *MessageInfo) FieldByName(name string) (*FieldInfo, bool) {
	fi, ok := mi.byName[name]
	return fi, ok
}

// FieldByNumber resolves a field by its declared number.
func (mi *MessageInfo) FieldByNumber(n protoreflect.FieldNumber) (*FieldInfo, bool) {
	for _, fi := range mi.Fields {
		if fi.Desc.Number() == n {
			return fi, true
		}
	}
	return nil, false
}

func newMessageInfo(md protoreflect.MessageDescriptor) (*MessageInfo, error) {
	fds := md.Fields()
	mi := &MessageInfo{
		Desc:       md,
		FullName:   md.FullName(),
		Deprecated: messageDeprecated(md),
		WellKnown:  wellKnownOf(md.FullName()),
		Fields:     make([]*FieldInfo, 0, fds.Len()),
		byName:     make(map[string]*FieldInfo, fds.Len()*2),
	}
	for i := 0; i < fds.Len(); i++ {
		fi, err := newFieldInfo(fds.Get(i))
		if err != nil {
			return nil, err
		}
		mi.Fields = append(mi.Fields, fi)
		mi.byName[fi.JSONName] = fi
		mi.byName[fi.Name] = fi
	}
	return mi, nil
}

func newFieldInfo(fd protoreflect.FieldDescriptor) (*FieldInfo, error) {
	fi := &FieldInfo{
		Desc:        fd,
		Name:        string(fd.Name()),
		JSONName:    fd.JSONName(),
		HasPresence: fd.HasPresence(),
		Deprecated:  fieldDeprecated(fd),
	}
	switch {
	case fd.IsMap():
		fi.Kind = KindMap
		key, err := newFieldInfo(fd.MapKey())
		if err != nil {
			return nil, err
		}
		val, err := newFieldInfo(fd.MapValue())
		if err != nil {
			return nil, err
		}
		fi.MapKey, fi.MapValue = key, val
	case fd.IsList():
		fi.Kind = KindList
		fillElemType(fi, fd)
	default:
		fillElemType(fi, fd)
		if fi.Enum != nil && fi.Enum.FullName() == "google.protobuf.NullValue" {
			fi.AcceptsNull = true
		}
		if fi.Message != nil && fi.Message.FullName() == "google.protobuf.Value" {
			fi.AcceptsNull = true
		}
	}
	return fi, nil
}

// fillElemType tags the element semantics of a singular field or of the
// elements of a list field.
func fillElemType(fi *FieldInfo, fd protoreflect.FieldDescriptor) {
	switch fd.Kind() {
	case protoreflect.EnumKind:
		if fi.Kind == 0 {
			fi.Kind = KindEnum
		}
		fi.Enum = fd.Enum()
	case protoreflect.MessageKind, protoreflect.GroupKind:
		if fi.Kind == 0 {
			fi.Kind = KindMessage
		}
		fi.Message = fd.Message()
	default:
		if fi.Kind == 0 {
			fi.Kind = KindScalar
		}
	}
}

// EnumTable is the per-enum lookup structure. The sentinel is excluded from
// both maps; name keys are lowercased for case-insensitive resolution.
type EnumTable struct {
	Desc     protoreflect.EnumDescriptor
	FullName protoreflect.FullName

	byNumber map[protoreflect.EnumNumber]protoreflect.EnumValueDescriptor
	byName   map[string]protoreflect.EnumValueDescriptor

	// Sentinel is the declared unrecognized-value placeholder. It is nil only
	// for enums under google.protobuf, whose JSON behavior is owned by the
	// well-known type rules.
	Sentinel protoreflect.EnumValueDescriptor
}

// ByNumber resolves a declared value by number, excluding the sentinel.
func (t *EnumTable) ByNumber(n protoreflect.EnumNumber) (protoreflect.EnumValueDescriptor, bool) {
	evd, ok := t.byNumber[n]
	return evd, ok
}

// ByName resolves a declared value by case-insensitive name, excluding the
// sentinel.
func (t *EnumTable) ByName(name string) (protoreflect.EnumValueDescriptor, bool) {
	evd, ok := t.byName[strings.ToLower(name)]
	return evd, ok
}

// IsSentinelNumber reports whether n is the sentinel's number.
func (t *EnumTable) IsSentinelNumber(n protoreflect.EnumNumber) bool {
	return t.Sentinel != nil && t.Sentinel.Number() == n
}

// IsNullValue reports whether this is the google.protobuf.NullValue enum,
// whose only JSON shape is null.
func (t *EnumTable) IsNullValue() bool {
	return t.FullName == "google.protobuf.NullValue"
}

func newEnumTable(ed protoreflect.EnumDescriptor) (*EnumTable, error) {
	vds := ed.Values()
	table := &EnumTable{
		Desc:     ed,
		FullName: ed.FullName(),
		byNumber: make(map[protoreflect.EnumNumber]protoreflect.EnumValueDescriptor, vds.Len()),
		byName:   make(map[string]protoreflect.EnumValueDescriptor, vds.Len()),
	}
	for i := 0; i < vds.Len(); i++ {
		vd := vds.Get(i)
		if isSentinelName(string(vd.Name())) {
			if table.Sentinel != nil {
				return nil, cjerrors.Configuration("enum %s declares more than one unrecognized-value sentinel", ed.FullName())
			}
			table.Sentinel = vd
			continue
		}
		if _, exists := table.byNumber[vd.Number()]; !exists {
			table.byNumber[vd.Number()] = vd
		}
		table.byName[strings.ToLower(string(vd.Name()))] = vd
	}
	if table.Sentinel == nil && !isWellKnownPackage(ed.FullName()) {
		return nil, cjerrors.Configuration("enum %s declares no unrecognized-value sentinel", ed.FullName())
	}
	return table, nil
}

// isSentinelName matches the declared placeholder for undecodable values:
// UNRECOGNIZED or any *_UNRECOGNIZED, case-insensitively.
func isSentinelName(name string) bool {
	lower := strings.ToLower(name)
	return lower == "unrecognized" || strings.HasSuffix(lower, "_unrecognized")
}

func isWellKnownPackage(name protoreflect.FullName) bool {
	return name.Parent() == "google.protobuf"
}

func messageDeprecated(md protoreflect.MessageDescriptor) bool {
	type deprecator interface{ GetDeprecated() bool }
	if opts, ok := md.Options().(deprecator); ok && opts != nil {
		return opts.GetDeprecated()
	}
	return false
}

func fieldDeprecated(fd protoreflect.FieldDescriptor) bool {
	type deprecator interface{ GetDeprecated() bool }
	if opts, ok := fd.Options().(deprecator); ok && opts != nil {
		return opts.GetDeprecated()
	}
	return false
}
