package pinuv_test

import (
	"crypto/ecdh"
	"crypto/hkdf"
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/dantte-lp/goctap/cbor"
	"github.com/dantte-lp/goctap/pinuv"
)

func authenticatorCOSEKey(t *testing.T) (*ecdh.PrivateKey, cbor.Value) {
	t.Helper()
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate authenticator key: %v", err)
	}
	raw := priv.PublicKey().Bytes()
	return priv, cbor.Map{
		{Key: cbor.Uint(1), Value: cbor.Uint(2)},
		{Key: cbor.Uint(3), Value: cbor.Int(-25)},
		{Key: cbor.Int(-1), Value: cbor.Uint(1)},
		{Key: cbor.Int(-2), Value: cbor.Bytes(append([]byte(nil), raw[1:33]...))},
		{Key: cbor.Int(-3), Value: cbor.Bytes(append([]byte(nil), raw[33:65]...))},
	}
}

func TestProtocol2EncapsulateSharedSecretAgreement(t *testing.T) {
	t.Parallel()

	authPriv, authCOSE := authenticatorCOSEKey(t)

	p2 := pinuv.Protocol2{}
	platformCOSE, platformSecret, err := p2.Encapsulate(authCOSE)
	if err != nil {
		t.Fatalf("Encapsulate: %v", err)
	}
	if len(platformSecret) != 64 {
		t.Fatalf("shared secret length = %d, want 64", len(platformSecret))
	}

	// The authenticator side derives the same secret from the platform's
	// public key and its own private key; assert it actually agrees by
	// running the same ECDH independently.
	platformPub, err := decodeForTest(platformCOSE)
	if err != nil {
		t.Fatalf("decode platform cose key: %v", err)
	}
	authSecretRaw, err := authPriv.ECDH(platformPub)
	if err != nil {
		t.Fatalf("authenticator ecdh: %v", err)
	}
	prk, err := hkdf.Extract(sha256.New, authSecretRaw, make([]byte, sha256.Size))
	if err != nil {
		t.Fatalf("hkdf extract: %v", err)
	}
	hmacKey, err := hkdf.Expand(sha256.New, prk, "CTAP2 HMAC key", 32)
	if err != nil {
		t.Fatalf("hkdf expand hmac key: %v", err)
	}
	aesKey, err := hkdf.Expand(sha256.New, prk, "CTAP2 AES key", 32)
	if err != nil {
		t.Fatalf("hkdf expand aes key: %v", err)
	}
	if string(platformSecret) != string(hmacKey)+string(aesKey) {
		t.Fatal("authenticator-side secret does not match the platform's Encapsulate output")
	}
}

func decodeForTest(v cbor.Value) (*ecdh.PublicKey, error) {
	m := v.(cbor.Map)
	xv, _ := m.Get(cbor.Int(-2))
	yv, _ := m.Get(cbor.Int(-3))
	x := xv.(cbor.Bytes)
	y := yv.(cbor.Bytes)
	point := append([]byte{0x04}, append(append([]byte(nil), x...), y...)...)
	return ecdh.P256().NewPublicKey(point)
}

func TestProtocol2EncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	secret := make([]byte, 64)
	if _, err := rand.Read(secret); err != nil {
		t.Fatalf("rand: %v", err)
	}

	p2 := pinuv.Protocol2{}
	plaintext := make([]byte, 64)
	copy(plaintext, "abcdef")

	ciphertext, err := p2.Encrypt(secret, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if len(ciphertext) != 80 {
		t.Fatalf("ciphertext length = %d, want 80", len(ciphertext))
	}

	got, err := p2.Decrypt(secret, ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("round trip mismatch")
	}
}

func TestProtocol2AuthenticateVerify(t *testing.T) {
	t.Parallel()

	secret := make([]byte, 64)
	if _, err := rand.Read(secret); err != nil {
		t.Fatalf("rand: %v", err)
	}

	p2 := pinuv.Protocol2{}
	msg := []byte("authenticatorGetAssertion client data hash")

	sig, err := p2.Authenticate(secret, msg)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if len(sig) != 32 {
		t.Fatalf("signature length = %d, want 32", len(sig))
	}
	if !p2.Verify(secret, msg, sig) {
		t.Fatal("Verify() = false for a genuine signature")
	}
	if p2.Verify(secret, []byte("tampered"), sig) {
		t.Fatal("Verify() = true for a mismatched message")
	}
}

func TestProtocol1AuthenticateTruncatesTo16Bytes(t *testing.T) {
	t.Parallel()

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		t.Fatalf("rand: %v", err)
	}

	p1 := pinuv.Protocol1{}
	sig, err := p1.Authenticate(secret, []byte("message"))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if len(sig) != 16 {
		t.Fatalf("signature length = %d, want 16", len(sig))
	}
	if !p1.Verify(secret, []byte("message"), sig) {
		t.Fatal("Verify() = false for a genuine signature")
	}
}

// TestChangePinEncryptedScenario reproduces the worked PIN-change example:
// current PIN "1234", new PIN "abcdef", protocol 2 — a 64-byte padded PIN
// encrypts to an 80-byte ciphertext (16-byte IV prefix) and the auth
// param is the full 32-byte HMAC tag.
func TestChangePinEncryptedScenario(t *testing.T) {
	t.Parallel()

	secret := make([]byte, 64)
	if _, err := rand.Read(secret); err != nil {
		t.Fatalf("rand: %v", err)
	}

	p2 := pinuv.Protocol2{}
	newPinEnc, pinHashEnc, authParam, err := pinuv.ChangePinEncrypted(p2, secret, "1234", "abcdef")
	if err != nil {
		t.Fatalf("ChangePinEncrypted: %v", err)
	}
	if len(newPinEnc) != 80 {
		t.Fatalf("newPinEnc length = %d, want 80", len(newPinEnc))
	}
	if len(pinHashEnc) != 32 {
		t.Fatalf("pinHashEnc length = %d, want 32 (16-byte IV + 16-byte hash)", len(pinHashEnc))
	}
	if len(authParam) != 32 {
		t.Fatalf("pinUvAuthParam length = %d, want 32", len(authParam))
	}
}

func TestPadPINRejectsOutOfRangeLengths(t *testing.T) {
	t.Parallel()

	if _, err := pinuv.PadPIN("123"); err != pinuv.ErrPinTooShort {
		t.Fatalf("PadPIN(3 bytes) error = %v, want ErrPinTooShort", err)
	}

	long := make([]byte, 64)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := pinuv.PadPIN(string(long)); err != pinuv.ErrPinTooLong {
		t.Fatalf("PadPIN(64 bytes) error = %v, want ErrPinTooLong", err)
	}
}

func TestByNumberRejectsUnsupported(t *testing.T) {
	t.Parallel()

	if _, err := pinuv.ByNumber(3); err == nil {
		t.Fatal("ByNumber(3) succeeded, want error")
	}
}
