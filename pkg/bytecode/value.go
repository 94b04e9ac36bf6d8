package bytecode

import (
	"strconv"
	"strings"
)

// ValueKind tags the contents of a memory word.
type ValueKind uint8

const (
	KindInt ValueKind = iota
	KindBool
	KindChar
	KindText
)

// String returns a human-readable name for ValueKind.
func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindText:
		return "text"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is one word of LVM memory. The zero Value is the integer 0.
//
// Integers, booleans and characters live in Int; Text holds raw console
// input that could not be coerced to a number or a boolean.
type Value struct {
	Kind ValueKind `cbor:"1,keyasint"`
	Int  int64     `cbor:"2,keyasint,omitempty"`
	Text string    `cbor:"3,keyasint,omitempty"`
}

// Int returns an integer word.
func Int(n int64) Value { return Value{Kind: KindInt, Int: n} }

// Bool returns a boolean word.
func Bool(b bool) Value {
	if b {
		return Value{Kind: KindBool, Int: 1}
	}
	return Value{Kind: KindBool}
}

// Char returns a character word.
func Char(r rune) Value { return Value{Kind: KindChar, Int: int64(r)} }

// Text returns a word holding raw text.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// AsInt returns the numeric interpretation of the word.
func (v Value) AsInt() int64 {
	if v.Kind == KindText {
		n, err := strconv.ParseInt(strings.TrimSpace(v.Text), 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return v.Int
}

// Truthy reports whether the word counts as true for jof, and, lor and not.
func (v Value) Truthy() bool {
	if v.Kind == KindText {
		return v.Text != ""
	}
	return v.Int != 0
}

// Equal compares two words. Text compares by content; everything else
// compares numerically so that a char equals its code point.
func (v Value) Equal(o Value) bool {
	if v.Kind == KindText || o.Kind == KindText {
		return v.String() == o.String()
	}
	return v.Int == o.Int
}

// String formats the word the way prv prints it.
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		if v.Int != 0 {
			return "true"
		}
		return "false"
	case KindChar:
		return string(rune(v.Int))
	case KindText:
		return v.Text
	default:
		return strconv.FormatInt(v.Int, 10)
	}
}

// Literal formats the word as an assembler operand.
func (v Value) Literal() string {
	switch v.Kind {
	case KindChar:
		return strconv.QuoteRune(rune(v.Int))
	case KindText:
		return strconv.Quote(v.Text)
	default:
		return v.String()
	}
}

// CoerceInput converts one line of console input into a word: TRUE and
// FALSE become booleans, integer text becomes an int, anything else is
// kept as raw text.
func CoerceInput(line string) Value {
	s := strings.TrimSpace(line)
	switch strings.ToUpper(s) {
	case "TRUE":
		return Bool(true)
	case "FALSE":
		return Bool(false)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(n)
	}
	return Text(s)
}
