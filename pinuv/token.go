package pinuv

import (
	"fmt"
	"sync"

	"github.com/dantte-lp/goctap/cbor"
)

// Permission bits for the CTAP 2.1 token permissions model
// (getPinUvAuthTokenUsingPinWithPermissions / UsingUvWithPermissions).
const (
	PermMakeCredential   byte = 0x01
	PermGetAssertion     byte = 0x02
	PermCredentialMgmt   byte = 0x04
	PermBioEnrollment    byte = 0x08
	PermLargeBlobWrite   byte = 0x10
	PermAuthenticatorCfg byte = 0x20
)

// Exchanger performs the authenticatorClientPIN wire round trips a
// TokenSource needs. ctap2 implements it against a real device.Session;
// tests supply a fake.
type Exchanger interface {
	// KeyAgreement runs clientPIN subCommand getKeyAgreement for the
	// given protocol number and returns the authenticator's COSE
	// public key.
	KeyAgreement(protocolNumber int) (cbor.Value, error)

	// PinToken runs clientPIN subCommand getPinUvAuthTokenUsingPinWithPermissions
	// and returns the encrypted token.
	PinToken(protocolNumber int, platformCOSEKey cbor.Value, pinHashEnc []byte, permissions byte, rpID string) ([]byte, error)

	// UvToken runs clientPIN subCommand getPinUvAuthTokenUsingUvWithPermissions
	// and returns the encrypted token.
	UvToken(protocolNumber int, platformCOSEKey cbor.Value, permissions byte, rpID string) ([]byte, error)
}

// TokenSource caches a PIN/UV auth token and the protocol it was
// negotiated under, and knows how to invalidate and re-derive it.
// The specification calls for invalidating on PinAuthInvalid/PinRequired
// replies, not only on explicit PIN changes, since a power cycle the
// caller cannot otherwise observe may have invalidated the device's own
// copy of the token.
type TokenSource struct {
	mu sync.Mutex

	exchanger Exchanger
	protocol  Protocol

	sharedSecret []byte
	token        []byte
}

// NewTokenSource builds a TokenSource that talks to exchanger using the
// given protocol.
func NewTokenSource(exchanger Exchanger, protocol Protocol) *TokenSource {
	return &TokenSource{exchanger: exchanger, protocol: protocol}
}

// Protocol returns the negotiated pinUvAuthProtocol implementation.
func (t *TokenSource) Protocol() Protocol {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.protocol
}

// Cached returns the currently cached token, if any.
func (t *TokenSource) Cached() ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.token == nil {
		return nil, false
	}
	return t.token, true
}

// Invalidate drops the cached token and shared secret. Call this after
// any PinAuthInvalid or PinRequired reply, and after setPIN/changePIN/
// reset.
func (t *TokenSource) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	wipe(t.token)
	wipe(t.sharedSecret)
	t.token = nil
	t.sharedSecret = nil
}

// ObtainWithPin negotiates a fresh key agreement and requests a token
// scoped to permissions (and, if rpID is non-empty, bound to that relying
// party) authorized by the given PIN. The returned token is also cached.
func (t *TokenSource) ObtainWithPin(pin string, permissions byte, rpID string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	peerKey, err := t.exchanger.KeyAgreement(t.protocol.Number())
	if err != nil {
		return nil, fmt.Errorf("pinuv: key agreement: %w", err)
	}

	platformKey, sharedSecret, err := t.protocol.Encapsulate(peerKey)
	if err != nil {
		return nil, err
	}

	pinHashEnc, err := t.encryptedPinHash(sharedSecret, pin)
	if err != nil {
		return nil, err
	}

	encToken, err := t.exchanger.PinToken(t.protocol.Number(), platformKey, pinHashEnc, permissions, rpID)
	if err != nil {
		return nil, fmt.Errorf("pinuv: get pin token: %w", err)
	}

	token, err := t.protocol.Decrypt(sharedSecret, encToken)
	if err != nil {
		return nil, fmt.Errorf("pinuv: decrypt pin token: %w", err)
	}

	t.sharedSecret = sharedSecret
	t.token = token
	return token, nil
}

// ObtainWithUv is ObtainWithPin's built-in-verification counterpart: no
// PIN is sent, the authenticator performs its own user verification.
func (t *TokenSource) ObtainWithUv(permissions byte, rpID string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	peerKey, err := t.exchanger.KeyAgreement(t.protocol.Number())
	if err != nil {
		return nil, fmt.Errorf("pinuv: key agreement: %w", err)
	}

	platformKey, sharedSecret, err := t.protocol.Encapsulate(peerKey)
	if err != nil {
		return nil, err
	}

	encToken, err := t.exchanger.UvToken(t.protocol.Number(), platformKey, permissions, rpID)
	if err != nil {
		return nil, fmt.Errorf("pinuv: get uv token: %w", err)
	}

	token, err := t.protocol.Decrypt(sharedSecret, encToken)
	if err != nil {
		return nil, fmt.Errorf("pinuv: decrypt uv token: %w", err)
	}

	t.sharedSecret = sharedSecret
	t.token = token
	return token, nil
}

// Sign computes the pinUvAuthParam for message using the cached token.
func (t *TokenSource) Sign(message []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token == nil {
		return nil, ErrNoToken
	}
	return t.protocol.Authenticate(t.token, message)
}

func (t *TokenSource) encryptedPinHash(sharedSecret []byte, pin string) ([]byte, error) {
	sum := sha256Sum([]byte(pin))
	return t.protocol.Encrypt(sharedSecret, sum[:16])
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
