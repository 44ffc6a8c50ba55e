package pinuv

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/dantte-lp/goctap/cbor"
)

// Protocol1 implements pinUvAuthProtocol 1: the shared secret is the raw
// SHA-256 of the ECDH x-coordinate, AES-256-CBC always uses a zero IV,
// and authentication truncates the HMAC-SHA-256 tag to 16 bytes. Devices
// that only advertise protocol 1 predate the CTAP 2.1 token permissions
// model.
type Protocol1 struct{}

func (Protocol1) Number() int { return 1 }

func (Protocol1) Encapsulate(peerCOSEKey cbor.Value) (cbor.Value, []byte, error) {
	peer, err := decodeCOSEKey(peerCOSEKey)
	if err != nil {
		return nil, nil, err
	}

	priv, err := generateEphemeral()
	if err != nil {
		return nil, nil, err
	}

	x, err := ecdhSharedX(priv, peer)
	if err != nil {
		return nil, nil, err
	}

	sum := sha256.Sum256(x)
	return encodeCOSEKey(priv.PublicKey()), sum[:], nil
}

func (Protocol1) Encrypt(sharedSecret, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(sharedSecret)
	if err != nil {
		return nil, fmt.Errorf("pinuv: protocol1 cipher: %w", err)
	}
	if len(plaintext)%aes.BlockSize != 0 {
		return nil, ErrCiphertextLen
	}

	iv := make([]byte, aes.BlockSize)
	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plaintext)
	return out, nil
}

func (Protocol1) Decrypt(sharedSecret, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrCiphertextLen
	}
	block, err := aes.NewCipher(sharedSecret)
	if err != nil {
		return nil, fmt.Errorf("pinuv: protocol1 cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return out, nil
}

func (Protocol1) Authenticate(sharedSecret, message []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, sharedSecret)
	mac.Write(message)
	return mac.Sum(nil)[:16], nil
}

func (p Protocol1) Verify(sharedSecret, message, signature []byte) bool {
	want, err := p.Authenticate(sharedSecret, message)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(want, signature) == 1
}
