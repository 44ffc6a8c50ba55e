package pinuv

import (
	"crypto/sha256"
	"fmt"
	"unicode/utf8"
)

const (
	minPinLen = 4
	maxPinLen = 63
	pinBufLen = 64
)

func sha256Sum(b []byte) [sha256.Size]byte {
	return sha256.Sum256(b)
}

// PadPIN validates pin's length — at least minPinLen Unicode code points,
// at most maxPinLen UTF-8 bytes — and returns it zero-padded to the fixed
// 64-byte wire buffer authenticatorClientPIN expects.
func PadPIN(pin string) ([]byte, error) {
	raw := []byte(pin)
	if utf8.RuneCountInString(pin) < minPinLen {
		return nil, ErrPinTooShort
	}
	if len(raw) > maxPinLen {
		return nil, ErrPinTooLong
	}

	buf := make([]byte, pinBufLen)
	copy(buf, raw)
	return buf, nil
}

// NewPinEncrypted builds the newPinEnc and pinUvAuthParam fields for
// authenticatorClientPIN subCommand setPIN.
func NewPinEncrypted(protocol Protocol, sharedSecret []byte, newPin string) (newPinEnc, pinUvAuthParam []byte, err error) {
	padded, err := PadPIN(newPin)
	if err != nil {
		return nil, nil, err
	}

	newPinEnc, err = protocol.Encrypt(sharedSecret, padded)
	if err != nil {
		return nil, nil, fmt.Errorf("pinuv: encrypt new pin: %w", err)
	}

	pinUvAuthParam, err = protocol.Authenticate(sharedSecret, newPinEnc)
	if err != nil {
		return nil, nil, fmt.Errorf("pinuv: authenticate new pin: %w", err)
	}

	return newPinEnc, pinUvAuthParam, nil
}

// ChangePinEncrypted builds the newPinEnc, pinHashEnc, and pinUvAuthParam
// fields for authenticatorClientPIN subCommand changePIN.
func ChangePinEncrypted(protocol Protocol, sharedSecret []byte, currentPin, newPin string) (newPinEnc, pinHashEnc, pinUvAuthParam []byte, err error) {
	padded, err := PadPIN(newPin)
	if err != nil {
		return nil, nil, nil, err
	}

	newPinEnc, err = protocol.Encrypt(sharedSecret, padded)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("pinuv: encrypt new pin: %w", err)
	}

	curHash := sha256Sum([]byte(currentPin))
	pinHashEnc, err = protocol.Encrypt(sharedSecret, curHash[:16])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("pinuv: encrypt current pin hash: %w", err)
	}

	authMsg := make([]byte, 0, len(newPinEnc)+len(pinHashEnc))
	authMsg = append(authMsg, newPinEnc...)
	authMsg = append(authMsg, pinHashEnc...)

	pinUvAuthParam, err = protocol.Authenticate(sharedSecret, authMsg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("pinuv: authenticate pin change: %w", err)
	}

	return newPinEnc, pinHashEnc, pinUvAuthParam, nil
}
