package pinuv

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hkdf"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/dantte-lp/goctap/cbor"
)

const (
	hkdfHMACInfo = "CTAP2 HMAC key"
	hkdfAESInfo  = "CTAP2 AES key"
)

// Protocol2 implements pinUvAuthProtocol 2: the ECDH x-coordinate is run
// through HKDF-SHA-256 to derive independent HMAC and AES keys, Encrypt
// prepends a random IV, and Authenticate/Verify use the full 32-byte
// HMAC-SHA-256 tag. This is the protocol CTAP 2.1 authenticators are
// expected to support.
type Protocol2 struct{}

func (Protocol2) Number() int { return 2 }

// sharedSecret for protocol 2 is hmacKey(32) || aesKey(32).
func (Protocol2) Encapsulate(peerCOSEKey cbor.Value) (cbor.Value, []byte, error) {
	peer, err := decodeCOSEKey(peerCOSEKey)
	if err != nil {
		return nil, nil, err
	}

	priv, err := generateEphemeral()
	if err != nil {
		return nil, nil, err
	}

	z, err := ecdhSharedX(priv, peer)
	if err != nil {
		return nil, nil, err
	}

	secret, err := deriveSharedSecret(z)
	if err != nil {
		return nil, nil, err
	}

	return encodeCOSEKey(priv.PublicKey()), secret, nil
}

func deriveSharedSecret(z []byte) ([]byte, error) {
	salt := make([]byte, sha256.Size)

	prk, err := hkdf.Extract(sha256.New, z, salt)
	if err != nil {
		return nil, fmt.Errorf("pinuv: hkdf extract: %w", err)
	}

	hmacKey, err := hkdf.Expand(sha256.New, prk, hkdfHMACInfo, sha256.Size)
	if err != nil {
		return nil, fmt.Errorf("pinuv: hkdf expand hmac key: %w", err)
	}
	aesKey, err := hkdf.Expand(sha256.New, prk, hkdfAESInfo, sha256.Size)
	if err != nil {
		return nil, fmt.Errorf("pinuv: hkdf expand aes key: %w", err)
	}

	out := make([]byte, 0, len(hmacKey)+len(aesKey))
	out = append(out, hmacKey...)
	out = append(out, aesKey...)
	return out, nil
}

func (Protocol2) Encrypt(sharedSecret, plaintext []byte) ([]byte, error) {
	if len(sharedSecret) != 64 {
		return nil, fmt.Errorf("pinuv: protocol2 shared secret length %d, want 64", len(sharedSecret))
	}
	if len(plaintext)%aes.BlockSize != 0 {
		return nil, ErrCiphertextLen
	}

	aesKey := sharedSecret[32:64]
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("pinuv: protocol2 cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("pinuv: protocol2 iv: %w", err)
	}

	out := make([]byte, aes.BlockSize+len(plaintext))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], plaintext)
	return out, nil
}

func (Protocol2) Decrypt(sharedSecret, ciphertext []byte) ([]byte, error) {
	if len(sharedSecret) != 64 {
		return nil, fmt.Errorf("pinuv: protocol2 shared secret length %d, want 64", len(sharedSecret))
	}
	if len(ciphertext) <= aes.BlockSize || (len(ciphertext)-aes.BlockSize)%aes.BlockSize != 0 {
		return nil, ErrCiphertextLen
	}

	aesKey := sharedSecret[32:64]
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("pinuv: protocol2 cipher: %w", err)
	}

	iv := ciphertext[:aes.BlockSize]
	body := ciphertext[aes.BlockSize:]
	out := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, body)
	return out, nil
}

func (Protocol2) Authenticate(sharedSecret, message []byte) ([]byte, error) {
	// A 64-byte shared secret authenticates with its first 32 bytes (the
	// HMAC key); a 32-byte key, such as a pinUvAuthToken, is used whole.
	hmacKey := sharedSecret
	switch len(sharedSecret) {
	case 64:
		hmacKey = sharedSecret[:32]
	case 32:
	default:
		return nil, fmt.Errorf("pinuv: protocol2 key length %d, want 32 or 64", len(sharedSecret))
	}
	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(message)
	return mac.Sum(nil), nil
}

func (p Protocol2) Verify(sharedSecret, message, signature []byte) bool {
	want, err := p.Authenticate(sharedSecret, message)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(want, signature) == 1
}
