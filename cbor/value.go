package cbor

import "fmt"

// Value is the closed sum type for every decodable binary object. The
// concrete types below are the only implementations; a type switch over
// them is always exhaustive.
type Value interface {
	isValue()
}

// Uint is an unsigned 64-bit integer (major type 0).
type Uint uint64

// Int is a negative integer in the range -2^63..-1 (major type 1).
// Non-negative values are always represented as Uint, even when built by
// hand, so that Encode never has to choose between the two for zero or
// positive numbers.
type Int int64

// Bytes is a definite-length byte string (major type 2).
type Bytes []byte

// Text is a definite-length UTF-8 text string (major type 3).
type Text string

// Array is an ordered sequence of values (major type 4).
type Array []Value

// MapEntry is one key/value pair of a Map. Order in the slice is
// significant only for Encode's canonical sort and for Decode's duplicate
// detection; callers that just want to look up a key should use Map.Get.
type MapEntry struct {
	Key   Value
	Value Value
}

// Map is an ordered sequence of key/value pairs (major type 5). Unlike a
// Go map, key types are not restricted to comparable kinds, matching
// CTAP2's use of both integer and text keys within the same object.
type Map []MapEntry

// Bool is a boolean simple value (major type 7, simple values 20/21).
type Bool bool

// Null is the null simple value (major type 7, simple value 22).
type Null struct{}

func (Uint) isValue()     {}
func (Int) isValue()      {}
func (Bytes) isValue()    {}
func (Text) isValue()     {}
func (Array) isValue()    {}
func (Map) isValue()      {}
func (Bool) isValue()     {}
func (Null) isValue()     {}

// Get returns the value associated with a key equal to want, and whether
// it was found. Equality is structural (via Equal).
func (m Map) Get(want Value) (Value, bool) {
	for _, e := range m {
		if Equal(e.Key, want) {
			return e.Value, true
		}
	}
	return nil, false
}

// GetUint is a convenience accessor for the common case of an
// integer-keyed map, as used throughout the CTAP2 command/response
// objects.
func (m Map) GetUint(key uint64) (Value, bool) {
	return m.Get(Uint(key))
}

// Equal reports whether a and b describe the same value, recursively.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Uint:
		bv, ok := b.(Uint)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Bytes:
		bv, ok := b.(Bytes)
		return ok && string(av) == string(bv)
	case Text:
		bv, ok := b.(Text)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Null:
		_, ok := b.(Null)
		return ok
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Map:
		bv, ok := b.(Map)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i].Key, bv[i].Key) || !Equal(av[i].Value, bv[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders a Value for debugging and log lines; it is not a wire
// format.
func String(v Value) string {
	switch vv := v.(type) {
	case Uint:
		return fmt.Sprintf("%d", uint64(vv))
	case Int:
		return fmt.Sprintf("%d", int64(vv))
	case Bytes:
		return fmt.Sprintf("h'%x'", []byte(vv))
	case Text:
		return fmt.Sprintf("%q", string(vv))
	case Bool:
		return fmt.Sprintf("%t", bool(vv))
	case Null:
		return "null"
	case Array:
		out := "["
		for i, e := range vv {
			if i > 0 {
				out += ", "
			}
			out += String(e)
		}
		return out + "]"
	case Map:
		out := "{"
		for i, e := range vv {
			if i > 0 {
				out += ", "
			}
			out += String(e.Key) + ": " + String(e.Value)
		}
		return out + "}"
	default:
		return "<invalid>"
	}
}
