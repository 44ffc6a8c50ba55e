package management

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/dantte-lp/goctap/cbor"
	"github.com/dantte-lp/goctap/ctap2"
	"github.com/dantte-lp/goctap/pinuv"
)

// authenticatorLargeBlobs request/response member indices.
const (
	lbReqGet               = 0x01
	lbReqSet               = 0x02
	lbReqOffset            = 0x03
	lbReqLength            = 0x04
	lbReqPinUvAuthParam    = 0x05
	lbReqPinUvAuthProtocol = 0x06

	lbRespConfig = 0x01
)

// checksumSize is the truncated SHA-256 checksum trailing every
// large-blob array (CTAP 2.1 section 6.10).
const checksumSize = 16

// DefaultMaxFragmentLength is used when a caller does not know the
// authenticator's actual maxFragmentLength from getInfo.
const DefaultMaxFragmentLength = 960

// LargeBlobStore drives authenticatorLargeBlobs: fragmented reads
// requiring no authentication, and fragmented, pinUvAuthParam-signed
// writes.
type LargeBlobStore struct {
	d                 *ctap2.Dispatcher
	tokens            *pinuv.TokenSource
	maxFragmentLength int
}

// NewLargeBlobStore returns a LargeBlobStore. tokens may be nil; Read
// never needs one, Write always does. maxFragmentLength of 0 uses
// DefaultMaxFragmentLength.
func NewLargeBlobStore(d *ctap2.Dispatcher, tokens *pinuv.TokenSource, maxFragmentLength int) *LargeBlobStore {
	if maxFragmentLength <= 0 {
		maxFragmentLength = DefaultMaxFragmentLength
	}
	return &LargeBlobStore{d: d, tokens: tokens, maxFragmentLength: maxFragmentLength}
}

func (l *LargeBlobStore) getFragment(offset, length int) ([]byte, error) {
	req := cbor.Map{
		{Key: cbor.Uint(lbReqGet), Value: cbor.Uint(uint64(length))},
		{Key: cbor.Uint(lbReqOffset), Value: cbor.Uint(uint64(offset))},
	}
	v, err := l.d.Call(ctap2.CmdLargeBlobs, req)
	if err != nil {
		return nil, err
	}
	m, ok := v.(cbor.Map)
	if !ok {
		return nil, fmt.Errorf("management: largeBlobs reply is not a map")
	}
	cfg, ok := m.GetUint(lbRespConfig)
	if !ok {
		return nil, fmt.Errorf("management: largeBlobs reply missing config")
	}
	b, ok := cfg.(cbor.Bytes)
	if !ok {
		return nil, fmt.Errorf("management: largeBlobs config is not a byte string")
	}
	return []byte(b), nil
}

// Read reassembles the entire large-blob array by repeated get calls
// and verifies the trailing truncated SHA-256 checksum, returning the
// payload with the checksum stripped.
func (l *LargeBlobStore) Read() ([]byte, error) {
	var full []byte
	offset := 0
	for {
		frag, err := l.getFragment(offset, l.maxFragmentLength)
		if err != nil {
			return nil, err
		}
		if len(frag) == 0 {
			break
		}
		full = append(full, frag...)
		offset += len(frag)
		if len(frag) < l.maxFragmentLength {
			break
		}
	}

	if len(full) < checksumSize {
		if len(full) == 0 {
			return nil, nil
		}
		return nil, ErrLargeBlobTooShort
	}

	payload := full[:len(full)-checksumSize]
	want := full[len(full)-checksumSize:]
	got := truncatedSHA256(payload)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return nil, ErrChecksumMismatch
	}

	return payload, nil
}

// Write fragments payload, appends its truncated SHA-256 checksum, and
// writes the result via a sequence of pinUvAuthParam-signed set calls.
func (l *LargeBlobStore) Write(payload []byte) error {
	if l.tokens == nil {
		return ErrNoToken
	}

	full := append(append([]byte(nil), payload...), truncatedSHA256(payload)...)
	total := len(full)

	offset := 0
	for offset < total {
		end := offset + l.maxFragmentLength
		if end > total {
			end = total
		}
		fragment := full[offset:end]

		req := cbor.Map{
			{Key: cbor.Uint(lbReqSet), Value: cbor.Bytes(fragment)},
			{Key: cbor.Uint(lbReqOffset), Value: cbor.Uint(uint64(offset))},
		}
		if offset == 0 {
			req = append(req, cbor.MapEntry{Key: cbor.Uint(lbReqLength), Value: cbor.Uint(uint64(total))})
		}

		msg := largeBlobAuthMessage(offset, fragment, total)
		authParam, err := l.tokens.Sign(msg)
		if err != nil {
			return fmt.Errorf("management: sign largeBlobs fragment: %w", err)
		}
		req = append(req,
			cbor.MapEntry{Key: cbor.Uint(lbReqPinUvAuthParam), Value: cbor.Bytes(authParam)},
			cbor.MapEntry{Key: cbor.Uint(lbReqPinUvAuthProtocol), Value: cbor.Uint(uint64(l.tokens.Protocol().Number()))},
		)

		if _, err := l.d.Call(ctap2.CmdLargeBlobs, req); err != nil {
			return err
		}

		offset = end
	}

	return nil
}

// largeBlobAuthMessage builds the message authenticatorLargeBlobs set
// signs: "0xFF"*32 || "LargeBlobs" || uint64le(offset) || SHA-256(fragment)
// (CTAP 2.1 section 6.10.2). The total argument is not part of the
// message.
func largeBlobAuthMessage(offset int, fragment []byte, total int) []byte {
	msg := make([]byte, 0, 32+10+8+32)
	for i := 0; i < 32; i++ {
		msg = append(msg, 0xFF)
	}
	msg = append(msg, []byte("LargeBlobs")...)
	offsetLE := make([]byte, 8)
	for i := range offsetLE {
		offsetLE[i] = byte(offset >> (8 * i))
	}
	msg = append(msg, offsetLE...)
	h := sha256.Sum256(fragment)
	msg = append(msg, h[:]...)
	return msg
}

func truncatedSHA256(b []byte) []byte {
	h := sha256.Sum256(b)
	return h[:checksumSize]
}
