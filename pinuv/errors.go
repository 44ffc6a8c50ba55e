package pinuv

import "errors"

// Sentinel errors for PIN/UV Auth Protocol failures.
var (
	// ErrUnsupportedProtocol indicates a caller asked for a protocol
	// number other than 1 or 2.
	ErrUnsupportedProtocol = errors.New("pinuv: unsupported protocol number")

	// ErrCiphertextLen indicates ciphertext passed to Decrypt was not a
	// multiple of the AES block size, or (protocol 2) too short to hold
	// the leading IV.
	ErrCiphertextLen = errors.New("pinuv: ciphertext has invalid length")

	// ErrAuthMismatch indicates Verify's computed signature did not
	// match the supplied pinUvAuthParam.
	ErrAuthMismatch = errors.New("pinuv: pinUvAuthParam mismatch")

	// ErrPeerKey indicates the authenticator's COSE public key could
	// not be decoded into a point on P-256.
	ErrPeerKey = errors.New("pinuv: invalid peer public key")

	// ErrNoToken indicates a caller asked for the cached token before
	// one had been obtained.
	ErrNoToken = errors.New("pinuv: no cached token")

	// ErrPinTooLong indicates a new PIN exceeds the 63-byte wire limit
	// after UTF-8 encoding.
	ErrPinTooLong = errors.New("pinuv: pin exceeds 63 bytes")

	// ErrPinTooShort indicates a new PIN has fewer than 4 Unicode code
	// points.
	ErrPinTooShort = errors.New("pinuv: pin shorter than 4 code points")
)
