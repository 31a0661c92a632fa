package events

import (
	"strconv"
	"time"
)

// ValueKind tags the type of a snapshot attribute.
type ValueKind uint8

const (
	KindString ValueKind = iota + 1
	KindNumber
	KindBool
)

// Value is a single typed snapshot attribute.
// Numbers keep their decimal text so that large identifiers survive intact.
type Value struct {
	Kind ValueKind
	Str  string
	Num  string
	Bool bool
}

// StringValue returns a string attribute.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// NumberValue returns a number attribute from its decimal text.
func NumberValue(n string) Value { return Value{Kind: KindNumber, Num: n} }

// BoolValue returns a boolean attribute.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Snapshot maps attribute names to typed values.
type Snapshot map[string]Value

// String returns the first present string attribute among names.
// A present attribute of another type stops the search and reports ok=false.
func (s Snapshot) String(names ...string) (string, bool) {
	for _, name := range names {
		v, ok := s[name]
		if !ok {
			continue
		}
		if v.Kind != KindString {
			return "", false
		}
		return v.Str, true
	}
	return "", false
}

// Has reports whether any of names is present.
func (s Snapshot) Has(names ...string) bool {
	for _, name := range names {
		if _, ok := s[name]; ok {
			return true
		}
	}
	return false
}

// Time reads a timestamp attribute. Numbers are Unix epoch milliseconds,
// strings are RFC 3339.
func (s Snapshot) Time(name string) (time.Time, bool) {
	v, ok := s[name]
	if !ok {
		return time.Time{}, false
	}
	switch v.Kind {
	case KindNumber:
		ms, err := strconv.ParseFloat(v.Num, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(ms)).UTC(), true
	case KindString:
		t, err := time.Parse(time.RFC3339, v.Str)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	default:
		return time.Time{}, false
	}
}
