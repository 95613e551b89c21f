// Package jsontree models a generic JSON value as an immutable-by-convention
// tree. Object members keep their declaration order and numbers keep their
// raw literal, so 64-bit integers survive a round trip without ever passing
// through a float64.
package jsontree

// Kind identifies the JSON node type of a Value.
type Kind int

const (
	Invalid Kind = iota
	Null
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "invalid"
	}
}

// Value is a single JSON node. The zero Value is invalid; use the
// constructors.
type Value struct {
	kind Kind
	b    bool
	// s holds the decoded string for String nodes and the raw literal for
	// Number nodes.
	s       string
	elems   []*Value
	members []Member
}

// Member is one name/value pair of an Object node.
type Member struct {
	Name  string
	Value *Value
}

var nullValue = &Value{kind: Null}

// NewNull returns the JSON null value.
func NewNull() *Value { return nullValue }

// NewBool returns a JSON boolean.
func NewBool(b bool) *Value { return &Value{kind: Bool, b: b} }

// NewString returns a JSON string.
func NewString(s string) *Value { return &Value{kind: String, s: s} }

// NewNumber returns a JSON number from a raw literal. The caller is
// responsible for lit being valid JSON number syntax.
func NewNumber(lit string) *Value { return &Value{kind: Number, s: lit} }

// NewArray returns a JSON array with the given elements.
func NewArray(elems ...*Value) *Value { return &Value{kind: Array, elems: elems} }

// NewObject returns an empty JSON object.
func NewObject() *Value { return &Value{kind: Object} }

// Kind reports the node type.
func (v *Value) Kind() Kind { return v.kind }

// Bool returns the boolean payload of a Bool node.
func (v *Value) Bool() bool { return v.b }

// Str returns the decoded string of a String node.
func (v *Value) Str() string { return v.s }

// Number returns the raw literal of a Number node.
func (v *Value) Number() string { return v.s }

// Elements returns the elements of an Array node.
func (v *Value) Elements() []*Value { return v.elems }

// Append adds an element to an Array node.
func (v *Value) Append(elem *Value) { v.elems = append(v.elems, elem) }

// Members returns the ordered members of an Object node.
func (v *Value) Members() []Member { return v.members }

// Member returns the first member with the given name.
func (v *Value) Member(name string) (*Value, bool) {
	for _, m := range v.members {
		if m.Name == name {
			return m.Value, true
		}
	}
	return nil, false
}

// Set appends a member to an Object node. Names are not deduplicated; the
// writer emits members in insertion order.
func (v *Value) Set(name string, val *Value) {
	v.members = append(v.members, Member{Name: name, Value: val})
}

// Len returns the element count of an Array node or the member count of an
// Object node.
func (v *Value) Len() int {
	if v.kind == Array {
		return len(v.elems)
	}
	return len(v.members)
}
