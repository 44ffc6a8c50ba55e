package management

import "errors"

var (
	// ErrChecksumMismatch indicates a reassembled large-blob array's
	// trailing 16-byte truncated SHA-256 checksum did not match the
	// preceding bytes.
	ErrChecksumMismatch = errors.New("management: large blob checksum mismatch")

	// ErrLargeBlobTooShort indicates a reassembled large-blob array was
	// too short to even hold the 16-byte checksum.
	ErrLargeBlobTooShort = errors.New("management: large blob shorter than checksum")

	// ErrNoToken indicates an authenticated subcommand was attempted
	// without a pinUvAuthParam signer.
	ErrNoToken = errors.New("management: operation requires a pin/uv auth token")
)
