package cbor

import (
	"bytes"
	"fmt"
	"sort"
)

const (
	majorUint  = 0
	majorInt   = 1
	majorBytes = 2
	majorText  = 3
	majorArray = 4
	majorMap   = 5
	majorSimple = 7
)

const (
	simpleFalse = 20
	simpleTrue  = 21
	simpleNull  = 22
)

// Encode produces the canonical binary encoding of v: map keys sorted by
// the byte-lexicographic order of their encoded form, shortest-form
// integers, definite-length only.
func Encode(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeInto(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeInto(buf *bytes.Buffer, v Value) error {
	switch vv := v.(type) {
	case Uint:
		writeHead(buf, majorUint, uint64(vv))
		return nil
	case Int:
		if vv >= 0 {
			return fmt.Errorf("cbor: encode: Int must be negative, got %d", int64(vv))
		}
		// CBOR negative integers store -(n+1) as the argument.
		writeHead(buf, majorInt, uint64(-1-int64(vv)))
		return nil
	case Bytes:
		writeHead(buf, majorBytes, uint64(len(vv)))
		buf.Write(vv)
		return nil
	case Text:
		writeHead(buf, majorText, uint64(len(vv)))
		buf.WriteString(string(vv))
		return nil
	case Array:
		writeHead(buf, majorArray, uint64(len(vv)))
		for _, e := range vv {
			if err := encodeInto(buf, e); err != nil {
				return err
			}
		}
		return nil
	case Map:
		return encodeMap(buf, vv)
	case Bool:
		if vv {
			writeHead(buf, majorSimple, simpleTrue)
		} else {
			writeHead(buf, majorSimple, simpleFalse)
		}
		return nil
	case Null:
		writeHead(buf, majorSimple, simpleNull)
		return nil
	default:
		return fmt.Errorf("%w: unknown Value implementation %T", ErrBadType, v)
	}
}

// encodeMap sorts entries by the byte-lexicographic order of their encoded
// key form (the canonical CBOR map ordering CTAP2 requires) before
// emitting them.
func encodeMap(buf *bytes.Buffer, m Map) error {
	type encoded struct {
		key   []byte
		value []byte
	}

	entries := make([]encoded, len(m))

	for i, e := range m {
		var kb, vb bytes.Buffer
		if err := encodeInto(&kb, e.Key); err != nil {
			return err
		}
		if err := encodeInto(&vb, e.Value); err != nil {
			return err
		}
		entries[i] = encoded{key: kb.Bytes(), value: vb.Bytes()}
	}

	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].key, entries[j].key) < 0
	})

	writeHead(buf, majorMap, uint64(len(entries)))
	for _, e := range entries {
		buf.Write(e.key)
		buf.Write(e.value)
	}

	return nil
}

// writeHead writes a major type + shortest-form argument encoding.
func writeHead(buf *bytes.Buffer, major byte, arg uint64) {
	prefix := major << 5

	switch {
	case arg < 24:
		buf.WriteByte(prefix | byte(arg))
	case arg <= 0xFF:
		buf.WriteByte(prefix | 24)
		buf.WriteByte(byte(arg))
	case arg <= 0xFFFF:
		buf.WriteByte(prefix | 25)
		buf.WriteByte(byte(arg >> 8))
		buf.WriteByte(byte(arg))
	case arg <= 0xFFFFFFFF:
		buf.WriteByte(prefix | 26)
		buf.WriteByte(byte(arg >> 24))
		buf.WriteByte(byte(arg >> 16))
		buf.WriteByte(byte(arg >> 8))
		buf.WriteByte(byte(arg))
	default:
		buf.WriteByte(prefix | 27)
		for shift := 56; shift >= 0; shift -= 8 {
			buf.WriteByte(byte(arg >> shift))
		}
	}
}
