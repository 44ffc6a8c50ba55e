package simulator

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"github.com/dantte-lp/goctap/cbor"
)

// COSE_Key map labels, mirrored from the pinUvAuthProtocol 1 wire shape
// (see pinuv.Protocol1) since the authenticator side of a key agreement
// uses the identical encoding.
const (
	coseKty = 1
	coseAlg = 3
	coseCrv = -1
	coseX   = -2
	coseY   = -3

	coseKtyEC2   = 2
	coseCrvP256  = 1
	coseAlgES256 = -7
	coseAlgECDH  = -25
)

func encodeKeyAgreementKey(pub *ecdh.PublicKey) cbor.Value {
	raw := pub.Bytes() // uncompressed point: 0x04 || X(32) || Y(32)
	x := append([]byte(nil), raw[1:33]...)
	y := append([]byte(nil), raw[33:65]...)

	return cbor.Map{
		{Key: cbor.Uint(coseKty), Value: cbor.Uint(coseKtyEC2)},
		{Key: cbor.Uint(coseAlg), Value: cbor.Int(coseAlgECDH)},
		{Key: cbor.Int(coseCrv), Value: cbor.Uint(coseCrvP256)},
		{Key: cbor.Int(coseX), Value: cbor.Bytes(x)},
		{Key: cbor.Int(coseY), Value: cbor.Bytes(y)},
	}
}

// encodeCredentialKey renders a credential's P-256 public key as the
// COSE_Key shape attestedCredentialData carries (ES256, alg -7).
func encodeCredentialKey(pub *ecdsa.PublicKey) cbor.Value {
	x := pub.X.FillBytes(make([]byte, 32))
	y := pub.Y.FillBytes(make([]byte, 32))

	return cbor.Map{
		{Key: cbor.Uint(coseKty), Value: cbor.Uint(coseKtyEC2)},
		{Key: cbor.Uint(coseAlg), Value: cbor.Int(coseAlgES256)},
		{Key: cbor.Int(coseCrv), Value: cbor.Uint(coseCrvP256)},
		{Key: cbor.Int(coseX), Value: cbor.Bytes(x)},
		{Key: cbor.Int(coseY), Value: cbor.Bytes(y)},
	}
}

// decodePlatformKey parses the platform's COSE-encoded ephemeral public
// key sent alongside a clientPIN request.
func decodePlatformKey(v cbor.Value) (*ecdh.PublicKey, error) {
	m, ok := v.(cbor.Map)
	if !ok {
		return nil, fmt.Errorf("simulator: keyAgreement is not a map")
	}

	xVal, ok := m.Get(cbor.Int(coseX))
	if !ok {
		return nil, fmt.Errorf("simulator: keyAgreement missing x")
	}
	yVal, ok := m.Get(cbor.Int(coseY))
	if !ok {
		return nil, fmt.Errorf("simulator: keyAgreement missing y")
	}

	x, ok := xVal.(cbor.Bytes)
	if !ok {
		return nil, fmt.Errorf("simulator: keyAgreement x not bytes")
	}
	y, ok := yVal.(cbor.Bytes)
	if !ok {
		return nil, fmt.Errorf("simulator: keyAgreement y not bytes")
	}
	if len(x) != 32 || len(y) != 32 {
		return nil, fmt.Errorf("simulator: keyAgreement coordinate length")
	}

	point := make([]byte, 0, 65)
	point = append(point, 0x04)
	point = append(point, x...)
	point = append(point, y...)

	pub, err := ecdh.P256().NewPublicKey(point)
	if err != nil {
		return nil, fmt.Errorf("simulator: decode keyAgreement point: %w", err)
	}
	return pub, nil
}

// deriveSharedSecret computes the pinUvAuthProtocol 1 shared secret: the
// raw SHA-256 of the ECDH x-coordinate between priv and peer.
func deriveSharedSecret(priv *ecdh.PrivateKey, peer *ecdh.PublicKey) ([]byte, error) {
	x, err := priv.ECDH(peer)
	if err != nil {
		return nil, fmt.Errorf("simulator: ecdh: %w", err)
	}
	sum := sha256.Sum256(x)
	return sum[:], nil
}

// protocol1Encrypt is AES-256-CBC under a fixed zero IV, as
// pinUvAuthProtocol 1 always uses.
func protocol1Encrypt(sharedSecret, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(sharedSecret)
	if err != nil {
		return nil, fmt.Errorf("simulator: cipher: %w", err)
	}
	if len(plaintext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("simulator: plaintext is not a block multiple")
	}

	iv := make([]byte, aes.BlockSize)
	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plaintext)
	return out, nil
}

func protocol1Decrypt(sharedSecret, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("simulator: ciphertext is not a block multiple")
	}
	block, err := aes.NewCipher(sharedSecret)
	if err != nil {
		return nil, fmt.Errorf("simulator: cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return out, nil
}

// authenticateToken truncates HMAC-SHA-256(key, message) to 16 bytes, the
// pinUvAuthProtocol 1 pinUvAuthParam shape.
func authenticateToken(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)[:16]
}
