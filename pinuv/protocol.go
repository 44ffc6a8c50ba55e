package pinuv

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"

	"github.com/dantte-lp/goctap/cbor"
)

// COSE key map labels used for the authenticator's and platform's
// ephemeral EC2 public keys.
const (
	coseKty       = 1
	coseKeyOpsAlg = 3
	coseCrv       = -1
	coseX         = -2
	coseY         = -3

	coseKtyEC2  = 2
	coseCrvP256 = 1
)

// Protocol is one PIN/UV Auth Protocol version: the key agreement,
// symmetric encryption, and message authentication primitives that
// getPinUvAuthTokenUsingPinWithPermissions and friends are built from.
// Protocol1 and Protocol2 are the two concrete implementations; callers
// select one by the authenticator's advertised pinUvAuthProtocols list.
type Protocol interface {
	// Number returns 1 or 2.
	Number() int

	// Encapsulate generates a fresh platform key agreement key pair,
	// performs ECDH against the authenticator's COSE-encoded public
	// key, and derives the shared secret. It returns the platform's
	// own COSE public key (to send to the authenticator as keyAgreement)
	// and the derived shared secret.
	Encapsulate(peerCOSEKey cbor.Value) (platformCOSEKey cbor.Value, sharedSecret []byte, err error)

	// Encrypt encrypts plaintext (which must already be a multiple of
	// the AES block size) under sharedSecret.
	Encrypt(sharedSecret, plaintext []byte) ([]byte, error)

	// Decrypt is the inverse of Encrypt.
	Decrypt(sharedSecret, ciphertext []byte) ([]byte, error)

	// Authenticate computes the pinUvAuthParam over message.
	Authenticate(sharedSecret, message []byte) ([]byte, error)

	// Verify reports whether signature is a valid Authenticate output
	// for message under sharedSecret.
	Verify(sharedSecret, message, signature []byte) bool
}

// ByNumber returns the Protocol implementation for n (1 or 2).
func ByNumber(n int) (Protocol, error) {
	switch n {
	case 1:
		return Protocol1{}, nil
	case 2:
		return Protocol2{}, nil
	default:
		return nil, fmt.Errorf("pinuv: protocol %d: %w", n, ErrUnsupportedProtocol)
	}
}

// generateEphemeral draws a fresh P-256 key pair for one key agreement.
func generateEphemeral() (*ecdh.PrivateKey, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("pinuv: generate ephemeral key: %w", err)
	}
	return priv, nil
}

// encodeCOSEKey renders pub as the COSE_Key map shape CTAP2 uses for
// keyAgreement fields: EC2, P-256, with x/y coordinates as byte strings.
func encodeCOSEKey(pub *ecdh.PublicKey) cbor.Value {
	raw := pub.Bytes() // uncompressed point: 0x04 || X(32) || Y(32)
	x := append([]byte(nil), raw[1:33]...)
	y := append([]byte(nil), raw[33:65]...)

	return cbor.Map{
		{Key: cbor.Uint(coseKty), Value: cbor.Uint(coseKtyEC2)},
		{Key: cbor.Uint(coseKeyOpsAlg), Value: cbor.Int(-25)}, // ECDH-ES+HKDF-256
		{Key: cbor.Int(coseCrv), Value: cbor.Uint(coseCrvP256)},
		{Key: cbor.Int(coseX), Value: cbor.Bytes(x)},
		{Key: cbor.Int(coseY), Value: cbor.Bytes(y)},
	}
}

// decodeCOSEKey parses the COSE_Key map shape above into a P-256 public
// key usable for ECDH.
func decodeCOSEKey(v cbor.Value) (*ecdh.PublicKey, error) {
	m, ok := v.(cbor.Map)
	if !ok {
		return nil, fmt.Errorf("pinuv: keyAgreement is not a map: %w", ErrPeerKey)
	}

	xVal, ok := m.Get(cbor.Int(coseX))
	if !ok {
		return nil, fmt.Errorf("pinuv: keyAgreement missing x: %w", ErrPeerKey)
	}
	yVal, ok := m.Get(cbor.Int(coseY))
	if !ok {
		return nil, fmt.Errorf("pinuv: keyAgreement missing y: %w", ErrPeerKey)
	}

	x, ok := xVal.(cbor.Bytes)
	if !ok {
		return nil, fmt.Errorf("pinuv: keyAgreement x not bytes: %w", ErrPeerKey)
	}
	y, ok := yVal.(cbor.Bytes)
	if !ok {
		return nil, fmt.Errorf("pinuv: keyAgreement y not bytes: %w", ErrPeerKey)
	}
	if len(x) != 32 || len(y) != 32 {
		return nil, fmt.Errorf("pinuv: keyAgreement coordinate length: %w", ErrPeerKey)
	}

	point := make([]byte, 0, 65)
	point = append(point, 0x04)
	point = append(point, x...)
	point = append(point, y...)

	pub, err := ecdh.P256().NewPublicKey(point)
	if err != nil {
		return nil, fmt.Errorf("pinuv: decode keyAgreement point: %w: %w", err, ErrPeerKey)
	}
	return pub, nil
}

func ecdhSharedX(priv *ecdh.PrivateKey, peer *ecdh.PublicKey) ([]byte, error) {
	secret, err := priv.ECDH(peer)
	if err != nil {
		return nil, fmt.Errorf("pinuv: ecdh: %w", err)
	}
	return secret, nil
}
