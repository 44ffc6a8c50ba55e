package simulator

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"github.com/dantte-lp/goctap/cbor"
	"github.com/dantte-lp/goctap/ctap2"
)

// authenticatorClientPIN request/response member indices, mirrored from
// ctap2/clientpin.go's unexported constants since that is the wire
// contract this device must answer.
const (
	pinParamProtocol     = 0x01
	pinParamSubCommand   = 0x02
	pinParamKeyAgreement = 0x03
	pinParamAuthParam    = 0x04
	pinParamNewPinEnc    = 0x05
	pinParamPinHashEnc   = 0x06
	pinParamPermissions  = 0x09
	pinParamRpID         = 0x0A

	pinRespKeyAgreement = 0x01
	pinRespToken        = 0x02
	pinRespRetries      = 0x03
	pinRespUvRetries    = 0x05

	pinSubGetRetries                                = 0x01
	pinSubGetKeyAgreement                           = 0x02
	pinSubSetPIN                                    = 0x03
	pinSubChangePIN                                 = 0x04
	pinSubGetPinUvAuthTokenUsingUvWithPermissions   = 0x06
	pinSubGetUvRetries                               = 0x07
	pinSubGetPinUvAuthTokenUsingPinWithPermissions  = 0x09
)

func (d *Device) handleClientPIN(cid uint32, params cbor.Map) {
	subV, ok := params.GetUint(pinParamSubCommand)
	if !ok {
		d.enqueueStatus(cid, ctap2.CodeMissingParameter)
		return
	}

	protocolNumber := 1
	if pv, ok := params.GetUint(pinParamProtocol); ok {
		protocolNumber = int(uintValue(pv))
	}
	if protocolNumber != 1 {
		d.enqueueStatus(cid, ctap2.CodeInvalidParameter)
		return
	}

	switch uintValue(subV) {
	case pinSubGetKeyAgreement:
		d.handleGetKeyAgreement(cid)
	case pinSubGetPinUvAuthTokenUsingPinWithPermissions:
		d.handlePinToken(cid, params)
	case pinSubGetPinUvAuthTokenUsingUvWithPermissions:
		d.enqueueStatus(cid, ctap2.CodeUnsupportedOption) // no on-device UV modality
	case pinSubSetPIN:
		d.handleSetPIN(cid, params)
	case pinSubChangePIN:
		d.handleChangePIN(cid, params)
	case pinSubGetRetries:
		d.enqueueCBOR(cid, cbor.Map{{Key: cbor.Uint(pinRespRetries), Value: cbor.Uint(uint64(d.pinRetries))}})
	case pinSubGetUvRetries:
		d.enqueueCBOR(cid, cbor.Map{{Key: cbor.Uint(pinRespUvRetries), Value: cbor.Uint(0)}})
	default:
		d.enqueueStatus(cid, ctap2.CodeInvalidSubcommand)
	}
}

func (d *Device) handleGetKeyAgreement(cid uint32) {
	if d.agreementKey == nil {
		priv, err := generateAgreementKey()
		if err != nil {
			d.enqueueStatus(cid, ctap2.CodeOther)
			return
		}
		d.agreementKey = priv
	}

	d.enqueueCBOR(cid, cbor.Map{
		{Key: cbor.Uint(pinRespKeyAgreement), Value: encodeKeyAgreementKey(d.agreementKey.PublicKey())},
	})
}

func (d *Device) handlePinToken(cid uint32, params cbor.Map) {
	if !d.pinSet {
		d.enqueueStatus(cid, ctap2.CodePinNotSet)
		return
	}
	if d.pinRetries <= 0 {
		d.enqueueStatus(cid, ctap2.CodePinBlocked)
		return
	}

	sharedSecret, ok := d.sharedSecretFromRequest(cid, params)
	if !ok {
		return
	}

	hashV, ok := params.GetUint(pinParamPinHashEnc)
	if !ok {
		d.enqueueStatus(cid, ctap2.CodeMissingParameter)
		return
	}
	hashEnc, ok := hashV.(cbor.Bytes)
	if !ok {
		d.enqueueStatus(cid, ctap2.CodeInvalidParameter)
		return
	}

	pinHash, err := protocol1Decrypt(sharedSecret, []byte(hashEnc))
	if err != nil {
		d.enqueueStatus(cid, ctap2.CodePinInvalid)
		return
	}

	want := sha256.Sum256([]byte(d.pin))
	if subtle.ConstantTimeCompare(pinHash, want[:16]) != 1 {
		d.pinRetries--
		d.agreementKey = nil // authenticator discards the key agreement on a failed attempt
		d.enqueueStatus(cid, ctap2.CodePinInvalid)
		return
	}
	d.pinRetries = 8

	var permissions byte
	if pv, ok := params.GetUint(pinParamPermissions); ok {
		permissions = byte(uintValue(pv))
	}
	var rpID string
	if rv, ok := params.GetUint(pinParamRpID); ok {
		if t, ok := rv.(cbor.Text); ok {
			rpID = string(t)
		}
	}

	token := make([]byte, 32)
	if _, err := rand.Read(token); err != nil {
		d.enqueueStatus(cid, ctap2.CodeOther)
		return
	}

	encToken, err := protocol1Encrypt(sharedSecret, token)
	if err != nil {
		d.enqueueStatus(cid, ctap2.CodeOther)
		return
	}

	d.token = token
	d.tokenPermissions = permissions
	d.tokenRPID = rpID

	d.enqueueCBOR(cid, cbor.Map{{Key: cbor.Uint(pinRespToken), Value: cbor.Bytes(encToken)}})
}

func (d *Device) handleSetPIN(cid uint32, params cbor.Map) {
	if d.pinSet {
		d.enqueueStatus(cid, ctap2.CodePinAuthInvalid)
		return
	}

	sharedSecret, ok := d.sharedSecretFromRequest(cid, params)
	if !ok {
		return
	}

	newPinEnc, authParam, ok := d.newPinFields(cid, params)
	if !ok {
		return
	}

	want := authenticateToken(sharedSecret, newPinEnc)
	if subtle.ConstantTimeCompare(want, authParam) != 1 {
		d.enqueueStatus(cid, ctap2.CodePinAuthInvalid)
		return
	}

	padded, err := protocol1Decrypt(sharedSecret, newPinEnc)
	if err != nil {
		d.enqueueStatus(cid, ctap2.CodeInvalidParameter)
		return
	}

	d.pin = strings.TrimRight(string(padded), "\x00")
	d.pinSet = true
	d.pinRetries = 8
	d.enqueueStatus(cid, ctap2.CodeSuccess)
}

func (d *Device) handleChangePIN(cid uint32, params cbor.Map) {
	if !d.pinSet {
		d.enqueueStatus(cid, ctap2.CodePinNotSet)
		return
	}

	sharedSecret, ok := d.sharedSecretFromRequest(cid, params)
	if !ok {
		return
	}

	newPinEnc, authParam, ok := d.newPinFields(cid, params)
	if !ok {
		return
	}

	hashV, ok := params.GetUint(pinParamPinHashEnc)
	if !ok {
		d.enqueueStatus(cid, ctap2.CodeMissingParameter)
		return
	}
	hashEnc, ok := hashV.(cbor.Bytes)
	if !ok {
		d.enqueueStatus(cid, ctap2.CodeInvalidParameter)
		return
	}

	authMsg := append(append([]byte{}, newPinEnc...), []byte(hashEnc)...)
	want := authenticateToken(sharedSecret, authMsg)
	if subtle.ConstantTimeCompare(want, authParam) != 1 {
		d.enqueueStatus(cid, ctap2.CodePinAuthInvalid)
		return
	}

	pinHash, err := protocol1Decrypt(sharedSecret, []byte(hashEnc))
	if err != nil {
		d.enqueueStatus(cid, ctap2.CodePinInvalid)
		return
	}
	want256 := sha256.Sum256([]byte(d.pin))
	if subtle.ConstantTimeCompare(pinHash, want256[:16]) != 1 {
		d.pinRetries--
		d.enqueueStatus(cid, ctap2.CodePinInvalid)
		return
	}

	padded, err := protocol1Decrypt(sharedSecret, newPinEnc)
	if err != nil {
		d.enqueueStatus(cid, ctap2.CodeInvalidParameter)
		return
	}

	d.pin = strings.TrimRight(string(padded), "\x00")
	d.pinRetries = 8
	d.token = nil // changing the PIN invalidates any outstanding token
	d.enqueueStatus(cid, ctap2.CodeSuccess)
}

// sharedSecretFromRequest decodes the platform's keyAgreement field and
// derives the pinUvAuthProtocol 1 shared secret against the device's
// current agreement key, enqueuing an error reply and returning ok=false
// on any failure.
func (d *Device) sharedSecretFromRequest(cid uint32, params cbor.Map) ([]byte, bool) {
	keyV, ok := params.GetUint(pinParamKeyAgreement)
	if !ok {
		d.enqueueStatus(cid, ctap2.CodeMissingParameter)
		return nil, false
	}
	platformKey, err := decodePlatformKey(keyV)
	if err != nil {
		d.enqueueStatus(cid, ctap2.CodeInvalidParameter)
		return nil, false
	}
	if d.agreementKey == nil {
		d.enqueueStatus(cid, ctap2.CodePinAuthInvalid)
		return nil, false
	}

	sharedSecret, err := deriveSharedSecret(d.agreementKey, platformKey)
	if err != nil {
		d.enqueueStatus(cid, ctap2.CodeInvalidParameter)
		return nil, false
	}
	return sharedSecret, true
}

func (d *Device) newPinFields(cid uint32, params cbor.Map) (newPinEnc, authParam []byte, ok bool) {
	newPinV, ok := params.GetUint(pinParamNewPinEnc)
	if !ok {
		d.enqueueStatus(cid, ctap2.CodeMissingParameter)
		return nil, nil, false
	}
	newPinBytes, ok := newPinV.(cbor.Bytes)
	if !ok {
		d.enqueueStatus(cid, ctap2.CodeInvalidParameter)
		return nil, nil, false
	}

	authV, ok := params.GetUint(pinParamAuthParam)
	if !ok {
		d.enqueueStatus(cid, ctap2.CodeMissingParameter)
		return nil, nil, false
	}
	authBytes, ok := authV.(cbor.Bytes)
	if !ok {
		d.enqueueStatus(cid, ctap2.CodeInvalidParameter)
		return nil, nil, false
	}

	return []byte(newPinBytes), []byte(authBytes), true
}

func uintValue(v cbor.Value) uint64 {
	switch t := v.(type) {
	case cbor.Uint:
		return uint64(t)
	case cbor.Int:
		return uint64(t)
	default:
		return 0
	}
}
