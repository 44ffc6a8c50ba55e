package ctap2

import (
	"fmt"

	"github.com/dantte-lp/goctap/cbor"
	"github.com/dantte-lp/goctap/pinuv"
)

// authenticatorClientPIN subCommand codes.
const (
	pinSubGetRetries                        = 0x01
	pinSubGetKeyAgreement                   = 0x02
	pinSubSetPIN                            = 0x03
	pinSubChangePIN                         = 0x04
	pinSubGetPinToken                       = 0x05
	pinSubGetPinUvAuthTokenUsingUvWithPermissions = 0x06
	pinSubGetUvRetries                      = 0x07
	pinSubGetPinUvAuthTokenUsingPinWithPermissions = 0x09
)

// authenticatorClientPIN request/response parameter indices.
const (
	pinParamPinProtocol     = 0x01
	pinParamSubCommand      = 0x02
	pinParamKeyAgreement    = 0x03
	pinParamPinAuthParam    = 0x04
	pinParamNewPinEnc       = 0x05
	pinParamPinHashEnc      = 0x06
	pinParamPermissions     = 0x09
	pinParamRpID            = 0x0A

	pinRespKeyAgreement = 0x01
	pinRespPinUvAuthToken = 0x02
	pinRespPinRetries   = 0x03
	pinRespPowerCycleState = 0x04
	pinRespUvRetries    = 0x05
)

// ClientPIN wraps the authenticatorClientPIN command and implements
// pinuv.Exchanger so a pinuv.TokenSource can be driven straight off a
// Dispatcher.
type ClientPIN struct {
	d *Dispatcher
}

// NewClientPIN returns a ClientPIN bound to d.
func NewClientPIN(d *Dispatcher) *ClientPIN {
	return &ClientPIN{d: d}
}

func (c *ClientPIN) call(protocolNumber, subCommand int, extra []cbor.MapEntry) (cbor.Map, error) {
	entries := cbor.Map{
		{Key: cbor.Uint(pinParamPinProtocol), Value: cbor.Uint(uint64(protocolNumber))},
		{Key: cbor.Uint(pinParamSubCommand), Value: cbor.Uint(uint64(subCommand))},
	}
	entries = append(entries, extra...)

	v, err := c.d.Call(CmdClientPIN, entries)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return cbor.Map{}, nil
	}
	m, ok := v.(cbor.Map)
	if !ok {
		return nil, fmt.Errorf("ctap2: clientPIN reply is not a map")
	}
	return m, nil
}

// KeyAgreement implements pinuv.Exchanger.
func (c *ClientPIN) KeyAgreement(protocolNumber int) (cbor.Value, error) {
	m, err := c.call(protocolNumber, pinSubGetKeyAgreement, nil)
	if err != nil {
		return nil, err
	}
	v, ok := m.GetUint(pinRespKeyAgreement)
	if !ok {
		return nil, fmt.Errorf("ctap2: clientPIN getKeyAgreement reply missing key")
	}
	return v, nil
}

// GetPinToken runs the deprecated authenticatorClientPIN subCommand
// getPinToken (protocol 1 only, no permissions or rpID binding). Prefer
// PinToken (getPinUvAuthTokenUsingPinWithPermissions) on authenticators
// that support it.
func (c *ClientPIN) GetPinToken(protocolNumber int, platformCOSEKey cbor.Value, pinHashEnc []byte) ([]byte, error) {
	extra := []cbor.MapEntry{
		{Key: cbor.Uint(pinParamKeyAgreement), Value: platformCOSEKey},
		{Key: cbor.Uint(pinParamPinHashEnc), Value: cbor.Bytes(pinHashEnc)},
	}

	m, err := c.call(protocolNumber, pinSubGetPinToken, extra)
	if err != nil {
		return nil, err
	}
	return tokenFromReply(m)
}

// PinToken implements pinuv.Exchanger.
func (c *ClientPIN) PinToken(protocolNumber int, platformCOSEKey cbor.Value, pinHashEnc []byte, permissions byte, rpID string) ([]byte, error) {
	extra := []cbor.MapEntry{
		{Key: cbor.Uint(pinParamKeyAgreement), Value: platformCOSEKey},
		{Key: cbor.Uint(pinParamPinHashEnc), Value: cbor.Bytes(pinHashEnc)},
		{Key: cbor.Uint(pinParamPermissions), Value: cbor.Uint(uint64(permissions))},
	}
	if rpID != "" {
		extra = append(extra, cbor.MapEntry{Key: cbor.Uint(pinParamRpID), Value: cbor.Text(rpID)})
	}

	m, err := c.call(protocolNumber, pinSubGetPinUvAuthTokenUsingPinWithPermissions, extra)
	if err != nil {
		return nil, err
	}
	return tokenFromReply(m)
}

// UvToken implements pinuv.Exchanger.
func (c *ClientPIN) UvToken(protocolNumber int, platformCOSEKey cbor.Value, permissions byte, rpID string) ([]byte, error) {
	extra := []cbor.MapEntry{
		{Key: cbor.Uint(pinParamKeyAgreement), Value: platformCOSEKey},
		{Key: cbor.Uint(pinParamPermissions), Value: cbor.Uint(uint64(permissions))},
	}
	if rpID != "" {
		extra = append(extra, cbor.MapEntry{Key: cbor.Uint(pinParamRpID), Value: cbor.Text(rpID)})
	}

	m, err := c.call(protocolNumber, pinSubGetPinUvAuthTokenUsingUvWithPermissions, extra)
	if err != nil {
		return nil, err
	}
	return tokenFromReply(m)
}

func tokenFromReply(m cbor.Map) ([]byte, error) {
	v, ok := m.GetUint(pinRespPinUvAuthToken)
	if !ok {
		return nil, fmt.Errorf("ctap2: clientPIN reply missing pinUvAuthToken")
	}
	b, ok := v.(cbor.Bytes)
	if !ok {
		return nil, fmt.Errorf("ctap2: clientPIN pinUvAuthToken is not bytes")
	}
	return []byte(b), nil
}

// SetPIN runs authenticatorClientPIN subCommand setPIN: sets an initial
// PIN on a device that has none configured yet.
func (c *ClientPIN) SetPIN(protocol pinuv.Protocol, newPin string) error {
	peerKey, err := c.KeyAgreement(protocol.Number())
	if err != nil {
		return err
	}
	platformKey, sharedSecret, err := protocol.Encapsulate(peerKey)
	if err != nil {
		return err
	}

	newPinEnc, authParam, err := pinuv.NewPinEncrypted(protocol, sharedSecret, newPin)
	if err != nil {
		return err
	}

	extra := []cbor.MapEntry{
		{Key: cbor.Uint(pinParamKeyAgreement), Value: platformKey},
		{Key: cbor.Uint(pinParamNewPinEnc), Value: cbor.Bytes(newPinEnc)},
		{Key: cbor.Uint(pinParamPinAuthParam), Value: cbor.Bytes(authParam)},
	}

	_, err = c.call(protocol.Number(), pinSubSetPIN, extra)
	return err
}

// ChangePIN runs authenticatorClientPIN subCommand changePIN.
func (c *ClientPIN) ChangePIN(protocol pinuv.Protocol, currentPin, newPin string) error {
	peerKey, err := c.KeyAgreement(protocol.Number())
	if err != nil {
		return err
	}
	platformKey, sharedSecret, err := protocol.Encapsulate(peerKey)
	if err != nil {
		return err
	}

	newPinEnc, pinHashEnc, authParam, err := pinuv.ChangePinEncrypted(protocol, sharedSecret, currentPin, newPin)
	if err != nil {
		return err
	}

	extra := []cbor.MapEntry{
		{Key: cbor.Uint(pinParamKeyAgreement), Value: platformKey},
		{Key: cbor.Uint(pinParamNewPinEnc), Value: cbor.Bytes(newPinEnc)},
		{Key: cbor.Uint(pinParamPinHashEnc), Value: cbor.Bytes(pinHashEnc)},
		{Key: cbor.Uint(pinParamPinAuthParam), Value: cbor.Bytes(authParam)},
	}

	_, err = c.call(protocol.Number(), pinSubChangePIN, extra)
	return err
}

// GetPinRetries returns the number of PIN attempts remaining before the
// device locks PIN entry, and whether a power cycle is required to
// retry.
func (c *ClientPIN) GetPinRetries(protocolNumber int) (retries int, powerCycleState bool, err error) {
	m, err := c.call(protocolNumber, pinSubGetRetries, nil)
	if err != nil {
		return 0, false, err
	}
	if v, ok := m.GetUint(pinRespPinRetries); ok {
		retries = int(uintValue(v))
	}
	if v, ok := m.GetUint(pinRespPowerCycleState); ok {
		if b, ok := v.(cbor.Bool); ok {
			powerCycleState = bool(b)
		}
	}
	return retries, powerCycleState, nil
}

// GetUvRetries returns the number of built-in user verification attempts
// remaining.
func (c *ClientPIN) GetUvRetries(protocolNumber int) (int, error) {
	m, err := c.call(protocolNumber, pinSubGetUvRetries, nil)
	if err != nil {
		return 0, err
	}
	v, ok := m.GetUint(pinRespUvRetries)
	if !ok {
		return 0, fmt.Errorf("ctap2: clientPIN getUvRetries reply missing count")
	}
	return int(uintValue(v)), nil
}
