package compiler

import "fmt"

// ---------------------------------------------------------------------------
// ExprType: structural description of a value's type
// ---------------------------------------------------------------------------

// Kinds of ExprType. Primitive kinds carry no detail; the composite kinds
// wrap an inner ExprType.
const (
	KindInt           = "int"
	KindBool          = "bool"
	KindChar          = "char"
	KindString        = "string"
	KindVoid          = "void"
	KindArray         = "array"
	KindReference     = "reference"
	KindDiscreteRange = "discrete-range"
)

// ExprType is a recursive, structurally compared type tag.
type ExprType struct {
	Kind   string
	Detail *ExprType
}

// Primitive types.
var (
	IntType    = &ExprType{Kind: KindInt}
	BoolType   = &ExprType{Kind: KindBool}
	CharType   = &ExprType{Kind: KindChar}
	StringType = &ExprType{Kind: KindString}
	VoidType   = &ExprType{Kind: KindVoid}
)

// ArrayOf returns array(inner).
func ArrayOf(inner *ExprType) *ExprType {
	return &ExprType{Kind: KindArray, Detail: inner}
}

// ReferenceOf returns reference(inner).
func ReferenceOf(inner *ExprType) *ExprType {
	return &ExprType{Kind: KindReference, Detail: inner}
}

// DiscreteRangeOf returns discrete-range(inner).
func DiscreteRangeOf(inner *ExprType) *ExprType {
	return &ExprType{Kind: KindDiscreteRange, Detail: inner}
}

// Equal reports whether t and o have the same kind and recursively equal
// details. A nil type only equals nil.
func (t *ExprType) Equal(o *ExprType) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind {
		return false
	}
	return t.Detail.Equal(o.Detail)
}

// Is reports whether t is the primitive kind k.
func (t *ExprType) Is(kind string) bool {
	return t != nil && t.Kind == kind
}

// Innermost strips every array layer.
func (t *ExprType) Innermost() *ExprType {
	for t != nil && t.Kind == KindArray {
		t = t.Detail
	}
	return t
}

func (t *ExprType) String() string {
	if t == nil {
		return "<unknown>"
	}
	switch t.Kind {
	case KindArray:
		return fmt.Sprintf("array(%s)", t.Detail)
	case KindReference:
		return fmt.Sprintf("ref(%s)", t.Detail)
	case KindDiscreteRange:
		return fmt.Sprintf("range(%s)", t.Detail)
	}
	return t.Kind
}

// ---------------------------------------------------------------------------
// Mode: storage layout of a type
// ---------------------------------------------------------------------------

// StringCapacity is the capacity of the predefined string mode.
const StringCapacity = 255

// Mode describes how values of a mode are laid out in memory.
type Mode struct {
	Name string    // declared name, if any
	Type *ExprType // type of values of this mode

	// Size is the number of words a variable of this mode occupies.
	Size int

	// Discrete ranges and array index domains.
	Lower, Upper int64
	Ranged       bool

	// Elem is the element mode of an array or the target of a ref.
	Elem *Mode

	// Capacity is the maximum length of a string mode.
	Capacity int
}

// Predefined modes.
var (
	IntMode    = &Mode{Name: "int", Type: IntType, Size: 1}
	BoolMode   = &Mode{Name: "bool", Type: BoolType, Size: 1}
	CharMode   = &Mode{Name: "char", Type: CharType, Size: 1}
	StringMode = &Mode{Name: "string", Type: StringType, Size: StringCapacity + 1, Capacity: StringCapacity}
	VoidMode   = &Mode{Name: "void", Type: VoidType, Size: 0}
)

// NewCharsMode returns the mode of chars[n].
func NewCharsMode(n int) *Mode {
	return &Mode{Type: StringType, Size: n + 1, Capacity: n}
}

// NewRangeMode returns a discrete range over base.
func NewRangeMode(base *Mode, lo, hi int64) *Mode {
	return &Mode{Type: base.Type, Size: 1, Lower: lo, Upper: hi, Ranged: true}
}

// NewArrayMode returns an array indexed by index (a discrete range) with
// elements of elem.
func NewArrayMode(index *Mode, elem *Mode) *Mode {
	n := int(index.Upper - index.Lower + 1)
	return &Mode{
		Type:  ArrayOf(elem.Type),
		Size:  n * elem.Size,
		Lower: index.Lower,
		Upper: index.Upper,
		Elem:  elem,
	}
}

// NewRefMode returns ref elem.
func NewRefMode(elem *Mode) *Mode {
	return &Mode{Type: ReferenceOf(elem.Type), Size: 1, Elem: elem}
}

// Named returns a copy of m carrying a declared name.
func (m *Mode) Named(name string) *Mode {
	c := *m
	c.Name = name
	return &c
}

// IsString reports whether m is a string mode.
func (m *Mode) IsString() bool {
	return m != nil && m.Type.Is(KindString)
}

// IsArray reports whether m is an array mode.
func (m *Mode) IsArray() bool {
	return m != nil && m.Type.Is(KindArray)
}

// Len returns the number of elements of an array mode.
func (m *Mode) Len() int {
	return int(m.Upper - m.Lower + 1)
}

func (m *Mode) String() string {
	if m == nil {
		return "<unknown>"
	}
	if m.Name != "" {
		return m.Name
	}
	switch {
	case m.IsArray():
		return fmt.Sprintf("array[%d:%d] %s", m.Lower, m.Upper, m.Elem)
	case m.IsString():
		return fmt.Sprintf("chars[%d]", m.Capacity)
	case m.Type.Is(KindReference):
		return fmt.Sprintf("ref %s", m.Elem)
	case m.Ranged:
		return fmt.Sprintf("%s(%d:%d)", m.Type, m.Lower, m.Upper)
	}
	return m.Type.String()
}
