package credential

import (
	"fmt"

	"github.com/dantte-lp/goctap/assertion"
	"github.com/dantte-lp/goctap/cbor"
	"github.com/dantte-lp/goctap/ctap2"
)

// request member indices for authenticatorMakeCredential.
const (
	reqClientDataHash        = 1
	reqRP                    = 2
	reqUser                  = 3
	reqPubKeyCredParams      = 4
	reqExcludeList           = 5
	reqExtensions            = 6
	reqOptions               = 7
	reqPinUvAuthParam        = 8
	reqPinUvAuthProtocol     = 9
	reqEnterpriseAttestation = 10
)

// response member indices for authenticatorMakeCredential.
const (
	respFmt          = 1
	respAuthData     = 2
	respAttStmt      = 3
	respEpAtt        = 4
	respLargeBlobKey = 5
)

// MakeCredential runs authenticatorMakeCredential and decodes the
// resulting attestation object.
func MakeCredential(d *ctap2.Dispatcher, req Request) (Response, error) {
	v, err := d.Call(ctap2.CmdMakeCredential, encodeRequest(req))
	if err != nil {
		return Response{}, fmt.Errorf("credential: makeCredential: %w", err)
	}
	return decodeResponse(v)
}

func encodeRequest(req Request) cbor.Map {
	m := cbor.Map{
		{Key: cbor.Uint(reqClientDataHash), Value: cbor.Bytes(req.ClientDataHash)},
		{Key: cbor.Uint(reqRP), Value: encodeRP(req.RP)},
		{Key: cbor.Uint(reqUser), Value: encodeUser(req.User)},
		{Key: cbor.Uint(reqPubKeyCredParams), Value: encodeAlgorithms(req.PubKeyCredParams)},
	}

	if len(req.ExcludeList) > 0 {
		arr := make(cbor.Array, 0, len(req.ExcludeList))
		for _, c := range req.ExcludeList {
			arr = append(arr, encodeDescriptor(c))
		}
		m = append(m, cbor.MapEntry{Key: cbor.Uint(reqExcludeList), Value: arr})
	}

	if len(req.Extensions) > 0 {
		m = append(m, cbor.MapEntry{Key: cbor.Uint(reqExtensions), Value: encodeExtensions(req.Extensions)})
	}

	if len(req.Options) > 0 {
		opts := make(cbor.Map, 0, len(req.Options))
		for k, v := range req.Options {
			opts = append(opts, cbor.MapEntry{Key: cbor.Text(k), Value: cbor.Bool(v)})
		}
		m = append(m, cbor.MapEntry{Key: cbor.Uint(reqOptions), Value: opts})
	}

	if len(req.PinUvAuthParam) > 0 {
		m = append(m, cbor.MapEntry{Key: cbor.Uint(reqPinUvAuthParam), Value: cbor.Bytes(req.PinUvAuthParam)})
		m = append(m, cbor.MapEntry{Key: cbor.Uint(reqPinUvAuthProtocol), Value: cbor.Uint(uint64(req.PinUvAuthProtocol))})
	}

	if req.EnterpriseAttestation != 0 {
		var ep cbor.Value = cbor.Int(req.EnterpriseAttestation)
		if req.EnterpriseAttestation > 0 {
			ep = cbor.Uint(uint64(req.EnterpriseAttestation))
		}
		m = append(m, cbor.MapEntry{Key: cbor.Uint(reqEnterpriseAttestation), Value: ep})
	}

	return m
}

func encodeRP(rp RelyingParty) cbor.Value {
	m := cbor.Map{{Key: cbor.Text("id"), Value: cbor.Text(rp.ID)}}
	if rp.Name != "" {
		m = append(m, cbor.MapEntry{Key: cbor.Text("name"), Value: cbor.Text(rp.Name)})
	}
	return m
}

func encodeUser(u User) cbor.Value {
	m := cbor.Map{{Key: cbor.Text("id"), Value: cbor.Bytes(u.ID)}}
	if u.Name != "" {
		m = append(m, cbor.MapEntry{Key: cbor.Text("name"), Value: cbor.Text(u.Name)})
	}
	if u.DisplayName != "" {
		m = append(m, cbor.MapEntry{Key: cbor.Text("displayName"), Value: cbor.Text(u.DisplayName)})
	}
	return m
}

func encodeAlgorithms(algs []Algorithm) cbor.Value {
	arr := make(cbor.Array, 0, len(algs))
	for _, a := range algs {
		typ := a.Type
		if typ == "" {
			typ = "public-key"
		}
		arr = append(arr, cbor.Map{
			{Key: cbor.Text("type"), Value: cbor.Text(typ)},
			{Key: cbor.Text("alg"), Value: cbor.Int(a.Alg)},
		})
	}
	return arr
}

func encodeDescriptor(c assertion.CredentialDescriptor) cbor.Value {
	typ := c.Type
	if typ == "" {
		typ = "public-key"
	}
	entry := cbor.Map{
		{Key: cbor.Text("id"), Value: cbor.Bytes(c.ID)},
		{Key: cbor.Text("type"), Value: cbor.Text(typ)},
	}
	if len(c.Transports) > 0 {
		arr := make(cbor.Array, 0, len(c.Transports))
		for _, t := range c.Transports {
			arr = append(arr, cbor.Text(t))
		}
		entry = append(entry, cbor.MapEntry{Key: cbor.Text("transports"), Value: arr})
	}
	return entry
}

// encodeExtensions supports the extension input shapes this library
// produces itself: booleans (e.g. "hmac-secret": true), int64 and uint64
// integers (e.g. a "credProtect" policy level), byte strings, text
// strings, and raw cbor.Value escape hatches. Anything else is dropped.
func encodeExtensions(ext map[string]any) cbor.Value {
	m := make(cbor.Map, 0, len(ext))
	for k, v := range ext {
		switch val := v.(type) {
		case bool:
			m = append(m, cbor.MapEntry{Key: cbor.Text(k), Value: cbor.Bool(val)})
		case int64:
			if val >= 0 {
				m = append(m, cbor.MapEntry{Key: cbor.Text(k), Value: cbor.Uint(uint64(val))})
				continue
			}
			m = append(m, cbor.MapEntry{Key: cbor.Text(k), Value: cbor.Int(val)})
		case uint64:
			m = append(m, cbor.MapEntry{Key: cbor.Text(k), Value: cbor.Uint(val)})
		case []byte:
			m = append(m, cbor.MapEntry{Key: cbor.Text(k), Value: cbor.Bytes(val)})
		case string:
			m = append(m, cbor.MapEntry{Key: cbor.Text(k), Value: cbor.Text(val)})
		case cbor.Value:
			m = append(m, cbor.MapEntry{Key: cbor.Text(k), Value: val})
		}
	}
	return m
}

func decodeResponse(v cbor.Value) (Response, error) {
	m, ok := v.(cbor.Map)
	if !ok {
		return Response{}, fmt.Errorf("credential: reply is not a map")
	}

	var resp Response

	if fv, ok := m.GetUint(respFmt); ok {
		if s, ok := fv.(cbor.Text); ok {
			resp.Format = string(s)
		}
	}

	adv, ok := m.GetUint(respAuthData)
	if !ok {
		return Response{}, fmt.Errorf("credential: reply missing authData")
	}
	ab, ok := adv.(cbor.Bytes)
	if !ok {
		return Response{}, fmt.Errorf("credential: authData is not a byte string")
	}
	resp.RawAuthData = []byte(ab)

	ad, acd, err := parseAuthenticatorData(resp.RawAuthData)
	if err != nil {
		return Response{}, err
	}
	resp.AuthData = ad
	resp.AttestedCredential = acd

	stmtv, ok := m.GetUint(respAttStmt)
	if !ok {
		return Response{}, fmt.Errorf("credential: reply missing attStmt")
	}
	stmt, err := decodeAttStmt(resp.Format, stmtv)
	if err != nil {
		return Response{}, err
	}
	resp.AttStmt = stmt

	if ev, ok := m.GetUint(respEpAtt); ok {
		if b, ok := ev.(cbor.Bool); ok {
			resp.EnterpriseAttestation = bool(b)
		}
	}

	if lv, ok := m.GetUint(respLargeBlobKey); ok {
		if b, ok := lv.(cbor.Bytes); ok {
			resp.LargeBlobKey = []byte(b)
		}
	}

	return resp, nil
}
