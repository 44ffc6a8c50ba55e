package assertion

import (
	"fmt"

	"github.com/dantte-lp/goctap/cbor"
	"github.com/dantte-lp/goctap/ctap2"
)

// request member indices for authenticatorGetAssertion.
const (
	reqRPID              = 1
	reqClientDataHash    = 2
	reqAllowList         = 3
	reqExtensions        = 4
	reqOptions           = 5
	reqPinUvAuthParam    = 6
	reqPinUvAuthProtocol = 7
)

// response member indices shared by authenticatorGetAssertion and
// authenticatorGetNextAssertion.
const (
	respCredential          = 1
	respAuthData            = 2
	respSignature           = 3
	respUser                = 4
	respNumberOfCredentials = 5
	respUserSelected        = 6
	respLargeBlobKey        = 7
)

// GetAssertion runs authenticatorGetAssertion and, if the authenticator
// reports more than one matching credential, follows up with enough
// authenticatorGetNextAssertion calls to drain them all.
func GetAssertion(d *ctap2.Dispatcher, req Request) ([]Response, error) {
	v, err := d.Call(ctap2.CmdGetAssertion, encodeRequest(req))
	if err != nil {
		return nil, fmt.Errorf("assertion: getAssertion: %w", err)
	}

	first, err := decodeResponse(v)
	if err != nil {
		return nil, fmt.Errorf("assertion: decode getAssertion reply: %w", err)
	}
	if err := verify(req, &first); err != nil {
		return nil, err
	}

	responses := []Response{first}

	remaining := first.NumberOfCredentials
	if remaining < 2 {
		return responses, nil
	}

	for range remaining - 1 {
		v, err := d.Call(ctap2.CmdGetNextAssertion, nil)
		if err != nil {
			return responses, fmt.Errorf("assertion: getNextAssertion: %w", err)
		}
		next, err := decodeResponse(v)
		if err != nil {
			return responses, fmt.Errorf("assertion: decode getNextAssertion reply: %w", err)
		}
		if err := verify(req, &next); err != nil {
			return responses, err
		}
		responses = append(responses, next)
	}

	return responses, nil
}

func encodeRequest(req Request) cbor.Map {
	m := cbor.Map{
		{Key: cbor.Uint(reqRPID), Value: cbor.Text(req.RPID)},
		{Key: cbor.Uint(reqClientDataHash), Value: cbor.Bytes(req.ClientDataHash)},
	}

	if len(req.AllowList) > 0 {
		arr := make(cbor.Array, 0, len(req.AllowList))
		for _, c := range req.AllowList {
			arr = append(arr, encodeDescriptor(c))
		}
		m = append(m, cbor.MapEntry{Key: cbor.Uint(reqAllowList), Value: arr})
	}

	if len(req.Extensions) > 0 {
		m = append(m, cbor.MapEntry{Key: cbor.Uint(reqExtensions), Value: encodeExtensions(req.Extensions)})
	}

	if len(req.Options) > 0 {
		m = append(m, cbor.MapEntry{Key: cbor.Uint(reqOptions), Value: encodeOptions(req.Options)})
	}

	if len(req.PinUvAuthParam) > 0 {
		m = append(m, cbor.MapEntry{Key: cbor.Uint(reqPinUvAuthParam), Value: cbor.Bytes(req.PinUvAuthParam)})
		m = append(m, cbor.MapEntry{Key: cbor.Uint(reqPinUvAuthProtocol), Value: cbor.Uint(uint64(req.PinUvAuthProtocol))})
	}

	return m
}

func encodeDescriptor(c CredentialDescriptor) cbor.Value {
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

func encodeOptions(opts map[string]bool) cbor.Value {
	m := make(cbor.Map, 0, len(opts))
	for k, v := range opts {
		m = append(m, cbor.MapEntry{Key: cbor.Text(k), Value: cbor.Bool(v)})
	}
	return m
}

// encodeExtensions supports the extension input shapes this library
// produces itself: booleans (e.g. "credBlob": true) and raw byte
// strings (e.g. a COSE-encoded hmac-secret salt). Anything else is
// dropped rather than guessed at.
func encodeExtensions(ext map[string]any) cbor.Value {
	m := make(cbor.Map, 0, len(ext))
	for k, v := range ext {
		switch val := v.(type) {
		case bool:
			m = append(m, cbor.MapEntry{Key: cbor.Text(k), Value: cbor.Bool(val)})
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
		return Response{}, fmt.Errorf("assertion: reply is not a map")
	}

	var resp Response
	resp.NumberOfCredentials = 1

	if cv, ok := m.GetUint(respCredential); ok {
		resp.Credential = decodeDescriptor(cv)
	}

	if av, ok := m.GetUint(respAuthData); ok {
		if b, ok := av.(cbor.Bytes); ok {
			resp.RawAuthData = []byte(b)
			parsed, err := ParseAuthenticatorData(resp.RawAuthData)
			if err != nil {
				return Response{}, err
			}
			resp.AuthData = parsed
		}
	}

	if sv, ok := m.GetUint(respSignature); ok {
		if b, ok := sv.(cbor.Bytes); ok {
			resp.Signature = []byte(b)
		}
	}

	if uv, ok := m.GetUint(respUser); ok {
		resp.User = decodeUser(uv)
	}

	if nv, ok := m.GetUint(respNumberOfCredentials); ok {
		resp.NumberOfCredentials = int(uintFrom(nv))
	}

	if sv, ok := m.GetUint(respUserSelected); ok {
		if b, ok := sv.(cbor.Bool); ok {
			resp.UserSelected = bool(b)
		}
	}

	if lv, ok := m.GetUint(respLargeBlobKey); ok {
		if b, ok := lv.(cbor.Bytes); ok {
			resp.LargeBlobKey = []byte(b)
		}
	}

	return resp, nil
}

func decodeDescriptor(v cbor.Value) CredentialDescriptor {
	m, ok := v.(cbor.Map)
	if !ok {
		return CredentialDescriptor{}
	}
	var desc CredentialDescriptor
	if idv, ok := m.Get(cbor.Text("id")); ok {
		if b, ok := idv.(cbor.Bytes); ok {
			desc.ID = []byte(b)
		}
	}
	if tv, ok := m.Get(cbor.Text("type")); ok {
		if s, ok := tv.(cbor.Text); ok {
			desc.Type = string(s)
		}
	}
	return desc
}

func decodeUser(v cbor.Value) *UserEntity {
	m, ok := v.(cbor.Map)
	if !ok {
		return nil
	}
	u := &UserEntity{}
	if idv, ok := m.Get(cbor.Text("id")); ok {
		if b, ok := idv.(cbor.Bytes); ok {
			u.ID = []byte(b)
		}
	}
	if nv, ok := m.Get(cbor.Text("name")); ok {
		if s, ok := nv.(cbor.Text); ok {
			u.Name = string(s)
		}
	}
	if dv, ok := m.Get(cbor.Text("displayName")); ok {
		if s, ok := dv.(cbor.Text); ok {
			u.DisplayName = string(s)
		}
	}
	return u
}

func uintFrom(v cbor.Value) uint64 {
	switch t := v.(type) {
	case cbor.Uint:
		return uint64(t)
	case cbor.Int:
		return uint64(t)
	default:
		return 0
	}
}
