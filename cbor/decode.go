package cbor

import (
	"bytes"
	"fmt"
)

// DecodeOptions controls how permissive Decode is about non-canonical
// input. Strict mode is used for security-critical objects (attestation
// statements, client-data hashes); non-strict is used for authenticator
// replies, some of which are emitted in non-canonical form by real
// hardware.
type DecodeOptions struct {
	Strict bool
}

// Decode parses one value from the front of b and returns it along with
// the number of bytes consumed. It does not require b to contain exactly
// one value; trailing bytes are the caller's concern (the CTAP2
// dispatcher decodes the first top-level value of a reply body and
// ignores any bytes after it).
func Decode(b []byte, opts DecodeOptions) (Value, int, error) {
	return decodeValue(b, opts, 0)
}

func decodeValue(b []byte, opts DecodeOptions, depth int) (Value, int, error) {
	if depth > MaxDepth {
		return nil, 0, ErrDepthExceeded
	}
	if len(b) == 0 {
		return nil, 0, ErrTruncated
	}

	major, arg, headLen, canonical, err := readHead(b)
	if err != nil {
		return nil, 0, err
	}
	if opts.Strict && !canonical {
		return nil, 0, ErrNonCanonical
	}

	switch major {
	case majorUint:
		return Uint(arg), headLen, nil

	case majorInt:
		// arg == 2^64-1 would overflow -(arg+1); CTAP2 integers are
		// bounded to -2^63..2^64-1, so reject anything wider.
		if arg >= 1<<63 {
			return nil, 0, fmt.Errorf("%w: negative integer out of range", ErrBadType)
		}
		return Int(-1 - int64(arg)), headLen, nil

	case majorBytes:
		n := int(arg)
		if n < 0 || headLen+n > len(b) {
			return nil, 0, ErrTruncated
		}
		out := make([]byte, n)
		copy(out, b[headLen:headLen+n])
		return Bytes(out), headLen + n, nil

	case majorText:
		n := int(arg)
		if n < 0 || headLen+n > len(b) {
			return nil, 0, ErrTruncated
		}
		return Text(b[headLen : headLen+n]), headLen + n, nil

	case majorArray:
		return decodeArray(b, headLen, arg, opts, depth)

	case majorMap:
		return decodeMap(b, headLen, arg, opts, depth)

	case majorSimple:
		switch arg {
		case simpleFalse:
			return Bool(false), headLen, nil
		case simpleTrue:
			return Bool(true), headLen, nil
		case simpleNull:
			return Null{}, headLen, nil
		default:
			return nil, 0, fmt.Errorf("%w: unsupported simple value %d", ErrBadType, arg)
		}

	default:
		return nil, 0, fmt.Errorf("%w: unsupported major type %d", ErrBadType, major)
	}
}

func decodeArray(b []byte, offset int, count uint64, opts DecodeOptions, depth int) (Value, int, error) {
	items := make(Array, 0, count)
	pos := offset

	for range count {
		v, n, err := decodeValue(b[pos:], opts, depth+1)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
		pos += n
	}

	return items, pos, nil
}

func decodeMap(b []byte, offset int, count uint64, opts DecodeOptions, depth int) (Value, int, error) {
	entries := make(Map, 0, count)
	pos := offset

	var keyBytes [][]byte

	for range count {
		keyStart := pos

		k, n, err := decodeValue(b[pos:], opts, depth+1)
		if err != nil {
			return nil, 0, err
		}
		pos += n
		encodedKey := b[keyStart:pos]

		v, n, err := decodeValue(b[pos:], opts, depth+1)
		if err != nil {
			return nil, 0, err
		}
		pos += n

		for i, e := range entries {
			if Equal(e.Key, k) {
				return nil, 0, ErrDuplicateKey
			}
			if opts.Strict && bytes.Compare(keyBytes[i], encodedKey) >= 0 {
				return nil, 0, ErrNonCanonical
			}
		}

		entries = append(entries, MapEntry{Key: k, Value: v})
		keyBytes = append(keyBytes, append([]byte(nil), encodedKey...))
	}

	return entries, pos, nil
}

// readHead parses a major type + additional-information head, returning
// the decoded argument, the number of bytes the head itself occupied, and
// whether the encoding used was the canonical shortest form.
func readHead(b []byte) (major byte, arg uint64, headLen int, canonical bool, err error) {
	major = b[0] >> 5
	info := b[0] & 0x1F

	switch {
	case info < 24:
		return major, uint64(info), 1, true, nil

	case info == 24:
		if len(b) < 2 {
			return 0, 0, 0, false, ErrTruncated
		}
		arg = uint64(b[1])
		return major, arg, 2, arg >= 24, nil

	case info == 25:
		if len(b) < 3 {
			return 0, 0, 0, false, ErrTruncated
		}
		arg = uint64(b[1])<<8 | uint64(b[2])
		return major, arg, 3, arg > 0xFF, nil

	case info == 26:
		if len(b) < 5 {
			return 0, 0, 0, false, ErrTruncated
		}
		arg = uint64(b[1])<<24 | uint64(b[2])<<16 | uint64(b[3])<<8 | uint64(b[4])
		return major, arg, 5, arg > 0xFFFF, nil

	case info == 27:
		if len(b) < 9 {
			return 0, 0, 0, false, ErrTruncated
		}
		arg = 0
		for i := 1; i <= 8; i++ {
			arg = arg<<8 | uint64(b[i])
		}
		return major, arg, 9, arg > 0xFFFFFFFF, nil

	default:
		// 28-30 reserved, 31 indefinite-length: neither is part of the
		// CTAP2 canonical subset.
		return 0, 0, 0, false, fmt.Errorf("%w: unsupported additional info %d", ErrBadType, info)
	}
}
