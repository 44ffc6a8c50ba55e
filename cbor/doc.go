// Package cbor implements the canonical binary object representation CTAP2
// carries over the wire (a constrained CBOR subset): unsigned/signed
// 64-bit integers, byte strings, text strings, arrays, maps, booleans, and
// null.
//
// Encode always produces canonical output: map keys sorted by the byte
// lexicographic order of their encoded form, shortest-form integers,
// definite-length only. Decode accepts non-canonical input unless
// DecodeOptions.Strict is set, which authenticator replies often violate
// but security-critical objects (attestation statements, client data) must
// not.
package cbor
