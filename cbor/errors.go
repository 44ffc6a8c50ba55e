package cbor

import "errors"

// Sentinel errors describing why Decode rejected a buffer. Some are
// returned as-is and some wrapped with additional context via
// fmt.Errorf("...: %w", ...); match them with errors.Is.
var (
	// ErrTruncated indicates the buffer ended before a value was fully read.
	ErrTruncated = errors.New("cbor: truncated input")

	// ErrBadType indicates an unsupported or malformed major type/additional
	// information byte.
	ErrBadType = errors.New("cbor: bad type")

	// ErrNonCanonical indicates the input used a non-shortest-form integer
	// encoding or an out-of-order map, and DecodeOptions.Strict was set.
	// Indefinite-length items are rejected with ErrBadType in either mode.
	ErrNonCanonical = errors.New("cbor: non-canonical encoding")

	// ErrDuplicateKey indicates a map contained the same key more than
	// once. This is rejected regardless of strict mode.
	ErrDuplicateKey = errors.New("cbor: duplicate map key")

	// ErrDepthExceeded indicates nested arrays/maps exceeded MaxDepth.
	ErrDepthExceeded = errors.New("cbor: nesting depth exceeded")
)

// MaxDepth is the maximum nesting depth Decode will follow into arrays and
// maps. CTAP2 structures never need more than this; it exists to bound
// recursion against malformed or adversarial input.
const MaxDepth = 4
