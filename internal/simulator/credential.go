package simulator

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"

	"github.com/dantte-lp/goctap/cbor"
	"github.com/dantte-lp/goctap/ctap2"
	"github.com/dantte-lp/goctap/ctaphid"
	"github.com/dantte-lp/goctap/pinuv"
)

// authenticatorMakeCredential / authenticatorGetAssertion request member
// indices, mirrored from credential/workflow.go and assertion/workflow.go.
const (
	mcClientDataHash = 1
	mcRP             = 2
	mcUser           = 3
	mcExcludeList    = 5
	mcOptions        = 7
	mcPinUvAuthParam = 8

	gaRPID           = 1
	gaClientDataHash = 2
	gaAllowList      = 3
	gaOptions        = 5
	gaPinUvAuthParam = 6

	respFmt           = 1
	respAuthData      = 2
	respAttStmt       = 3
	respCredential    = 1
	respSignature     = 3
	respNumberOfCreds = 5
)

func (d *Device) handleCBOR(cid uint32, payload []byte) {
	if len(payload) == 0 {
		d.enqueueStatus(cid, ctap2.CodeInvalidLength)
		return
	}

	cmd := ctap2.Command(payload[0])

	var params cbor.Map
	if len(payload) > 1 {
		v, _, err := cbor.Decode(payload[1:], cbor.DecodeOptions{})
		if err != nil {
			d.enqueueStatus(cid, ctap2.CodeInvalidCBOR)
			return
		}
		m, ok := v.(cbor.Map)
		if !ok {
			d.enqueueStatus(cid, ctap2.CodeCBORUnexpectedType)
			return
		}
		params = m
	}

	switch cmd {
	case ctap2.CmdGetInfo:
		d.handleGetInfo(cid)
	case ctap2.CmdClientPIN:
		d.handleClientPIN(cid, params)
	case ctap2.CmdMakeCredential:
		d.handleMakeCredential(cid, params)
	case ctap2.CmdGetAssertion:
		d.handleGetAssertion(cid, params)
	case ctap2.CmdGetNextAssertion:
		d.handleGetNextAssertion(cid)
	case ctap2.CmdReset:
		d.handleReset(cid)
	case ctap2.CmdSelection:
		d.enqueueStatus(cid, ctap2.CodeSuccess)
	default:
		d.enqueueStatus(cid, ctap2.CodeInvalidCommand)
	}
}

func (d *Device) enqueueStatus(cid uint32, code ctap2.Code) {
	d.enqueueFrames(cid, ctaphid.CmdCBOR, []byte{byte(code)})
}

func (d *Device) enqueueCBOR(cid uint32, body cbor.Value) {
	encoded, err := cbor.Encode(body)
	if err != nil {
		d.enqueueStatus(cid, ctap2.CodeOther)
		return
	}
	reply := make([]byte, 0, 1+len(encoded))
	reply = append(reply, byte(ctap2.CodeSuccess))
	reply = append(reply, encoded...)
	d.enqueueFrames(cid, ctaphid.CmdCBOR, reply)
}

func (d *Device) handleGetInfo(cid uint32) {
	d.enqueueCBOR(cid, cbor.Map{
		{Key: cbor.Uint(1), Value: cbor.Array{cbor.Text("FIDO_2_1")}},
		{Key: cbor.Uint(3), Value: cbor.Bytes(d.aaguid[:])},
		{Key: cbor.Uint(4), Value: cbor.Map{
			{Key: cbor.Text("rk"), Value: cbor.Bool(true)},
			{Key: cbor.Text("clientPin"), Value: cbor.Bool(d.pinSet)},
			{Key: cbor.Text("uv"), Value: cbor.Bool(false)},
		}},
		{Key: cbor.Uint(6), Value: cbor.Array{cbor.Uint(1)}},
		{Key: cbor.Uint(8), Value: cbor.Uint(128)},
		{Key: cbor.Uint(10), Value: cbor.Array{
			cbor.Map{
				{Key: cbor.Text("type"), Value: cbor.Text("public-key")},
				{Key: cbor.Text("alg"), Value: cbor.Int(coseAlgES256)},
			},
		}},
		{Key: cbor.Uint(13), Value: cbor.Uint(4)},
	})
}

func (d *Device) handleMakeCredential(cid uint32, params cbor.Map) {
	cdhV, ok := params.GetUint(mcClientDataHash)
	if !ok {
		d.enqueueStatus(cid, ctap2.CodeMissingParameter)
		return
	}
	clientDataHash, ok := cdhV.(cbor.Bytes)
	if !ok {
		d.enqueueStatus(cid, ctap2.CodeInvalidParameter)
		return
	}

	rpID, ok := d.requireRPID(cid, params, mcRP)
	if !ok {
		return
	}

	userID, userName, displayName, ok := d.requireUser(cid, params)
	if !ok {
		return
	}

	if !d.checkPinUvAuthParam(cid, params, mcPinUvAuthParam, []byte(clientDataHash), pinuv.PermMakeCredential) {
		return
	}

	if excl, ok := params.GetUint(mcExcludeList); ok {
		if arr, ok := excl.(cbor.Array); ok {
			for _, e := range arr {
				desc, ok := e.(cbor.Map)
				if !ok {
					continue
				}
				idv, ok := desc.Get(cbor.Text("id"))
				if !ok {
					continue
				}
				id, ok := idv.(cbor.Bytes)
				if !ok {
					continue
				}
				for _, c := range d.credentials {
					if c.rpID == rpID && bytes.Equal(c.credID, []byte(id)) {
						d.enqueueStatus(cid, ctap2.CodeCredentialExcluded)
						return
					}
				}
			}
		}
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		d.enqueueStatus(cid, ctap2.CodeOther)
		return
	}
	credID := make([]byte, 32)
	if _, err := rand.Read(credID); err != nil {
		d.enqueueStatus(cid, ctap2.CodeOther)
		return
	}

	cred := storedCredential{
		rpID:        rpID,
		credID:      credID,
		userID:      userID,
		userName:    userName,
		displayName: displayName,
		priv:        priv,
	}
	d.credentials = append(d.credentials, cred)

	d.signCounter++
	authData := d.buildAuthData(rpID, d.signCounter, &cred)

	sig, err := d.signAuthData(priv, authData, []byte(clientDataHash))
	if err != nil {
		d.enqueueStatus(cid, ctap2.CodeOther)
		return
	}

	resp := cbor.Map{
		{Key: cbor.Uint(respFmt), Value: cbor.Text("packed")},
		{Key: cbor.Uint(respAuthData), Value: cbor.Bytes(authData)},
		{Key: cbor.Uint(respAttStmt), Value: cbor.Map{
			{Key: cbor.Text("alg"), Value: cbor.Int(coseAlgES256)},
			{Key: cbor.Text("sig"), Value: cbor.Bytes(sig)},
		}},
	}
	d.enqueueCBOR(cid, resp)
}

func (d *Device) handleGetAssertion(cid uint32, params cbor.Map) {
	rpIDV, ok := params.GetUint(gaRPID)
	if !ok {
		d.enqueueStatus(cid, ctap2.CodeMissingParameter)
		return
	}
	rpID, ok := rpIDV.(cbor.Text)
	if !ok {
		d.enqueueStatus(cid, ctap2.CodeInvalidParameter)
		return
	}

	cdhV, ok := params.GetUint(gaClientDataHash)
	if !ok {
		d.enqueueStatus(cid, ctap2.CodeMissingParameter)
		return
	}
	clientDataHash, ok := cdhV.(cbor.Bytes)
	if !ok {
		d.enqueueStatus(cid, ctap2.CodeInvalidParameter)
		return
	}

	if !d.checkPinUvAuthParam(cid, params, gaPinUvAuthParam, []byte(clientDataHash), pinuv.PermGetAssertion) {
		return
	}

	var candidates []storedCredential
	if allowV, ok := params.GetUint(gaAllowList); ok {
		if arr, ok := allowV.(cbor.Array); ok {
			for _, e := range arr {
				desc, ok := e.(cbor.Map)
				if !ok {
					continue
				}
				idv, ok := desc.Get(cbor.Text("id"))
				if !ok {
					continue
				}
				id, ok := idv.(cbor.Bytes)
				if !ok {
					continue
				}
				for _, c := range d.credentials {
					if c.rpID == string(rpID) && bytes.Equal(c.credID, []byte(id)) {
						candidates = append(candidates, c)
					}
				}
			}
		}
	} else {
		for _, c := range d.credentials {
			if c.rpID == string(rpID) {
				candidates = append(candidates, c)
			}
		}
	}

	if len(candidates) == 0 {
		d.enqueueStatus(cid, ctap2.CodeNoCredentials)
		return
	}

	d.signCounter++
	d.nextAssertions = candidates[1:]
	d.nextAssertionRPID = string(rpID)
	d.nextAssertionClientDataHash = []byte(clientDataHash)

	resp, err := d.buildAssertionResponse(string(rpID), []byte(clientDataHash), candidates[0], len(candidates))
	if err != nil {
		d.enqueueStatus(cid, ctap2.CodeOther)
		return
	}
	d.enqueueCBOR(cid, resp)
}

func (d *Device) handleGetNextAssertion(cid uint32) {
	if len(d.nextAssertions) == 0 {
		d.enqueueStatus(cid, ctap2.CodeNotAllowed)
		return
	}

	cred := d.nextAssertions[0]
	d.nextAssertions = d.nextAssertions[1:]
	d.signCounter++

	resp, err := d.buildAssertionResponse(d.nextAssertionRPID, d.nextAssertionClientDataHash, cred, 1)
	if err != nil {
		d.enqueueStatus(cid, ctap2.CodeOther)
		return
	}
	d.enqueueCBOR(cid, resp)
}

func (d *Device) handleReset(cid uint32) {
	d.credentials = nil
	d.pin = ""
	d.pinSet = false
	d.pinRetries = 8
	d.agreementKey = nil
	d.token = nil
	d.tokenPermissions = 0
	d.tokenRPID = ""
	d.signCounter = 0
	d.nextAssertions = nil
	d.enqueueStatus(cid, ctap2.CodeSuccess)
}

// checkPinUvAuthParam enforces the pinUvAuthParam contract shared by
// makeCredential and getAssertion: if the authenticator has a PIN set,
// a valid, permission-scoped auth param over message is required.
func (d *Device) checkPinUvAuthParam(cid uint32, params cbor.Map, paramIndex uint64, message []byte, requiredPermission byte) bool {
	authV, present := params.GetUint(paramIndex)
	if !present {
		if d.pinSet {
			d.enqueueStatus(cid, ctap2.CodePinRequired)
			return false
		}
		return true
	}

	authParam, ok := authV.(cbor.Bytes)
	if !ok {
		d.enqueueStatus(cid, ctap2.CodeInvalidParameter)
		return false
	}
	if d.token == nil {
		d.enqueueStatus(cid, ctap2.CodePinRequired)
		return false
	}
	if d.tokenPermissions&requiredPermission == 0 {
		d.enqueueStatus(cid, ctap2.CodeUnauthorizedPermission)
		return false
	}

	want := authenticateToken(d.token, message)
	if subtle.ConstantTimeCompare(want, []byte(authParam)) != 1 {
		d.enqueueStatus(cid, ctap2.CodePinAuthInvalid)
		return false
	}
	return true
}

func (d *Device) requireRPID(cid uint32, params cbor.Map, index uint64) (string, bool) {
	rpV, ok := params.GetUint(index)
	if !ok {
		d.enqueueStatus(cid, ctap2.CodeMissingParameter)
		return "", false
	}
	rp, ok := rpV.(cbor.Map)
	if !ok {
		d.enqueueStatus(cid, ctap2.CodeInvalidParameter)
		return "", false
	}
	idV, ok := rp.Get(cbor.Text("id"))
	if !ok {
		d.enqueueStatus(cid, ctap2.CodeMissingParameter)
		return "", false
	}
	id, ok := idV.(cbor.Text)
	if !ok {
		d.enqueueStatus(cid, ctap2.CodeInvalidParameter)
		return "", false
	}
	return string(id), true
}

func (d *Device) requireUser(cid uint32, params cbor.Map) (id []byte, name, displayName string, ok bool) {
	userV, present := params.GetUint(mcUser)
	if !present {
		d.enqueueStatus(cid, ctap2.CodeMissingParameter)
		return nil, "", "", false
	}
	user, isMap := userV.(cbor.Map)
	if !isMap {
		d.enqueueStatus(cid, ctap2.CodeInvalidParameter)
		return nil, "", "", false
	}
	idV, present := user.Get(cbor.Text("id"))
	if !present {
		d.enqueueStatus(cid, ctap2.CodeMissingParameter)
		return nil, "", "", false
	}
	idBytes, isBytes := idV.(cbor.Bytes)
	if !isBytes {
		d.enqueueStatus(cid, ctap2.CodeInvalidParameter)
		return nil, "", "", false
	}

	if nv, ok := user.Get(cbor.Text("name")); ok {
		if s, ok := nv.(cbor.Text); ok {
			name = string(s)
		}
	}
	if dv, ok := user.Get(cbor.Text("displayName")); ok {
		if s, ok := dv.(cbor.Text); ok {
			displayName = string(s)
		}
	}

	return []byte(idBytes), name, displayName, true
}

// buildAuthData renders the authenticatorData byte string: rpIdHash,
// flags, signature counter, and, when cred is non-nil, the attested
// credential data block (aaguid, credential id, COSE public key).
func (d *Device) buildAuthData(rpID string, counter uint32, cred *storedCredential) []byte {
	rpHash := sha256.Sum256([]byte(rpID))

	flags := byte(0x01) // user present
	if cred != nil {
		flags |= 0x40 // attested credential data
	}

	buf := make([]byte, 0, 128)
	buf = append(buf, rpHash[:]...)
	buf = append(buf, flags)

	var ctr [4]byte
	binary.BigEndian.PutUint32(ctr[:], counter)
	buf = append(buf, ctr[:]...)

	if cred != nil {
		buf = append(buf, d.aaguid[:]...)

		var idLen [2]byte
		binary.BigEndian.PutUint16(idLen[:], uint16(len(cred.credID)))
		buf = append(buf, idLen[:]...)
		buf = append(buf, cred.credID...)

		keyBytes, err := cbor.Encode(encodeCredentialKey(&cred.priv.PublicKey))
		if err == nil {
			buf = append(buf, keyBytes...)
		}
	}

	return buf
}

// signAuthData computes a "packed" self-attestation signature: ECDSA
// over SHA-256(authData || clientDataHash) under the credential's own
// key, per the packed attestation statement format with no x5c.
func (d *Device) signAuthData(priv *ecdsa.PrivateKey, authData, clientDataHash []byte) ([]byte, error) {
	signed := make([]byte, 0, len(authData)+len(clientDataHash))
	signed = append(signed, authData...)
	signed = append(signed, clientDataHash...)
	digest := sha256.Sum256(signed)
	return ecdsa.SignASN1(rand.Reader, priv, digest[:])
}

func (d *Device) buildAssertionResponse(rpID string, clientDataHash []byte, cred storedCredential, numberOfCredentials int) (cbor.Map, error) {
	authData := d.buildAuthData(rpID, d.signCounter, nil)
	sig, err := d.signAuthData(cred.priv, authData, clientDataHash)
	if err != nil {
		return nil, err
	}

	resp := cbor.Map{
		{Key: cbor.Uint(respCredential), Value: cbor.Map{
			{Key: cbor.Text("id"), Value: cbor.Bytes(cred.credID)},
			{Key: cbor.Text("type"), Value: cbor.Text("public-key")},
		}},
		{Key: cbor.Uint(respAuthData), Value: cbor.Bytes(authData)},
		{Key: cbor.Uint(respSignature), Value: cbor.Bytes(sig)},
	}
	if numberOfCredentials > 1 {
		resp = append(resp, cbor.MapEntry{Key: cbor.Uint(respNumberOfCreds), Value: cbor.Uint(uint64(numberOfCredentials))})
	}
	return resp, nil
}
