package management

import (
	"fmt"

	"github.com/dantte-lp/goctap/cbor"
	"github.com/dantte-lp/goctap/ctap2"
	"github.com/dantte-lp/goctap/pinuv"
)

// credentialManagement subcommands (CTAP 2.1 section 6.8).
const (
	cmSubGetCredsMetadata                = 0x01
	cmSubEnumerateRPsBegin               = 0x02
	cmSubEnumerateRPsGetNextRP           = 0x03
	cmSubEnumerateCredentialsBegin       = 0x04
	cmSubEnumerateCredentialsGetNextCred = 0x05
	cmSubDeleteCredential                = 0x06
	cmSubUpdateUserInformation           = 0x07
)

// request/response member indices.
const (
	cmReqSubCommand        = 0x01
	cmReqSubCommandParams  = 0x02
	cmReqPinUvAuthProtocol = 0x03
	cmReqPinUvAuthParam    = 0x04

	cmParamRPIDHash     = 0x01
	cmParamCredentialID = 0x02
	cmParamUser         = 0x03

	cmRespExisting     = 0x01
	cmRespRemaining    = 0x02
	cmRespRP           = 0x03
	cmRespRPIDHash     = 0x04
	cmRespTotalRPs     = 0x05
	cmRespUser         = 0x06
	cmRespCredentialID = 0x07
	cmRespPublicKey    = 0x08
	cmRespTotalCreds   = 0x09
	cmRespCredProtect  = 0x0A
	cmRespLargeBlobKey = 0x0B
)

// CredentialManager drives the authenticatorCredentialManagement
// command.
type CredentialManager struct {
	d      *ctap2.Dispatcher
	tokens *pinuv.TokenSource
}

// NewCredentialManager returns a CredentialManager. A cached token is
// required for getCredsMetadata, the first call of each enumeration,
// deleteCredential and updateUserInformation; with nil tokens those
// return ErrNoToken. Only the getNext continuation calls are sent
// unauthenticated.
func NewCredentialManager(d *ctap2.Dispatcher, tokens *pinuv.TokenSource) *CredentialManager {
	return &CredentialManager{d: d, tokens: tokens}
}

// CredsMetadata is the decoded getCredsMetadata reply.
type CredsMetadata struct {
	Existing  int
	Remaining int
}

// RPInfo is one relying party entry from enumerateRPsBegin/GetNextRP.
type RPInfo struct {
	RPID     string
	RPName   string
	RPIDHash []byte
}

// CredentialInfo is one credential entry from
// enumerateCredentialsBegin/GetNextCredential.
type CredentialInfo struct {
	UserID       []byte
	UserName     string
	DisplayName  string
	CredentialID []byte
	PublicKey    cbor.Value
	CredProtect  int
}

func (c *CredentialManager) call(subCommand byte, params cbor.Map, authenticated bool) (cbor.Map, error) {
	req := cbor.Map{{Key: cbor.Uint(cmReqSubCommand), Value: cbor.Uint(uint64(subCommand))}}
	if params != nil {
		req = append(req, cbor.MapEntry{Key: cbor.Uint(cmReqSubCommandParams), Value: params})
	}

	if authenticated {
		if c.tokens == nil {
			return nil, ErrNoToken
		}
		msg := []byte{subCommand}
		if params != nil {
			enc, err := cbor.Encode(params)
			if err != nil {
				return nil, fmt.Errorf("management: encode subCommandParams: %w", err)
			}
			msg = append(msg, enc...)
		}
		authParam, err := c.tokens.Sign(msg)
		if err != nil {
			return nil, fmt.Errorf("management: sign subcommand: %w", err)
		}
		req = append(req,
			cbor.MapEntry{Key: cbor.Uint(cmReqPinUvAuthProtocol), Value: cbor.Uint(uint64(c.tokens.Protocol().Number()))},
			cbor.MapEntry{Key: cbor.Uint(cmReqPinUvAuthParam), Value: cbor.Bytes(authParam)},
		)
	}

	v, err := c.d.Call(ctap2.CmdCredentialManagement, req)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return cbor.Map{}, nil
	}
	m, ok := v.(cbor.Map)
	if !ok {
		return nil, fmt.Errorf("management: reply is not a map")
	}
	return m, nil
}

// GetCredsMetadata reports how many resident credentials exist and how
// many more could still fit.
func (c *CredentialManager) GetCredsMetadata() (CredsMetadata, error) {
	m, err := c.call(cmSubGetCredsMetadata, nil, true)
	if err != nil {
		return CredsMetadata{}, err
	}
	var md CredsMetadata
	if v, ok := m.GetUint(cmRespExisting); ok {
		md.Existing = int(uintFrom(v))
	}
	if v, ok := m.GetUint(cmRespRemaining); ok {
		md.Remaining = int(uintFrom(v))
	}
	return md, nil
}

// EnumerateRPs returns every relying party with at least one resident
// credential, driving enumerateRPsBegin followed by total-1 calls to
// enumerateRPsGetNextRP.
func (c *CredentialManager) EnumerateRPs() ([]RPInfo, error) {
	m, err := c.call(cmSubEnumerateRPsBegin, nil, true)
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}

	total := 0
	if v, ok := m.GetUint(cmRespTotalRPs); ok {
		total = int(uintFrom(v))
	}
	if total == 0 {
		return nil, nil
	}

	rps := make([]RPInfo, 0, total)
	rps = append(rps, decodeRPInfo(m))

	for i := 1; i < total; i++ {
		next, err := c.call(cmSubEnumerateRPsGetNextRP, nil, false)
		if err != nil {
			return rps, err
		}
		rps = append(rps, decodeRPInfo(next))
	}

	return rps, nil
}

func decodeRPInfo(m cbor.Map) RPInfo {
	var info RPInfo
	if rpv, ok := m.GetUint(cmRespRP); ok {
		if rpm, ok := rpv.(cbor.Map); ok {
			if idv, ok := rpm.Get(cbor.Text("id")); ok {
				if s, ok := idv.(cbor.Text); ok {
					info.RPID = string(s)
				}
			}
			if nv, ok := rpm.Get(cbor.Text("name")); ok {
				if s, ok := nv.(cbor.Text); ok {
					info.RPName = string(s)
				}
			}
		}
	}
	if hv, ok := m.GetUint(cmRespRPIDHash); ok {
		if b, ok := hv.(cbor.Bytes); ok {
			info.RPIDHash = []byte(b)
		}
	}
	return info
}

// EnumerateCredentials returns every resident credential for the given
// RP ID hash, driving enumerateCredentialsBegin followed by total-1
// calls to enumerateCredentialsGetNextCredential.
func (c *CredentialManager) EnumerateCredentials(rpIDHash []byte) ([]CredentialInfo, error) {
	m, err := c.call(cmSubEnumerateCredentialsBegin, cbor.Map{
		{Key: cbor.Uint(cmParamRPIDHash), Value: cbor.Bytes(rpIDHash)},
	}, true)
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}

	total := 0
	if v, ok := m.GetUint(cmRespTotalCreds); ok {
		total = int(uintFrom(v))
	}
	if total == 0 {
		return nil, nil
	}

	creds := make([]CredentialInfo, 0, total)
	creds = append(creds, decodeCredentialInfo(m))

	for i := 1; i < total; i++ {
		next, err := c.call(cmSubEnumerateCredentialsGetNextCred, nil, false)
		if err != nil {
			return creds, err
		}
		creds = append(creds, decodeCredentialInfo(next))
	}

	return creds, nil
}

func decodeCredentialInfo(m cbor.Map) CredentialInfo {
	var info CredentialInfo
	if uv, ok := m.GetUint(cmRespUser); ok {
		if um, ok := uv.(cbor.Map); ok {
			if idv, ok := um.Get(cbor.Text("id")); ok {
				if b, ok := idv.(cbor.Bytes); ok {
					info.UserID = []byte(b)
				}
			}
			if nv, ok := um.Get(cbor.Text("name")); ok {
				if s, ok := nv.(cbor.Text); ok {
					info.UserName = string(s)
				}
			}
			if dv, ok := um.Get(cbor.Text("displayName")); ok {
				if s, ok := dv.(cbor.Text); ok {
					info.DisplayName = string(s)
				}
			}
		}
	}
	if cv, ok := m.GetUint(cmRespCredentialID); ok {
		if cm, ok := cv.(cbor.Map); ok {
			if idv, ok := cm.Get(cbor.Text("id")); ok {
				if b, ok := idv.(cbor.Bytes); ok {
					info.CredentialID = []byte(b)
				}
			}
		}
	}
	if pv, ok := m.GetUint(cmRespPublicKey); ok {
		info.PublicKey = pv
	}
	if pv, ok := m.GetUint(cmRespCredProtect); ok {
		info.CredProtect = int(uintFrom(pv))
	}
	return info
}

// DeleteCredential removes one resident credential by ID.
func (c *CredentialManager) DeleteCredential(credentialID []byte) error {
	_, err := c.call(cmSubDeleteCredential, cbor.Map{
		{Key: cbor.Uint(cmParamCredentialID), Value: cbor.Map{
			{Key: cbor.Text("id"), Value: cbor.Bytes(credentialID)},
			{Key: cbor.Text("type"), Value: cbor.Text("public-key")},
		}},
	}, true)
	return err
}

// UpdateUserInformation rewrites the user entity bound to a resident
// credential.
func (c *CredentialManager) UpdateUserInformation(credentialID []byte, userID []byte, name, displayName string) error {
	user := cbor.Map{{Key: cbor.Text("id"), Value: cbor.Bytes(userID)}}
	if name != "" {
		user = append(user, cbor.MapEntry{Key: cbor.Text("name"), Value: cbor.Text(name)})
	}
	if displayName != "" {
		user = append(user, cbor.MapEntry{Key: cbor.Text("displayName"), Value: cbor.Text(displayName)})
	}

	_, err := c.call(cmSubUpdateUserInformation, cbor.Map{
		{Key: cbor.Uint(cmParamCredentialID), Value: cbor.Map{
			{Key: cbor.Text("id"), Value: cbor.Bytes(credentialID)},
			{Key: cbor.Text("type"), Value: cbor.Text("public-key")},
		}},
		{Key: cbor.Uint(cmParamUser), Value: user},
	}, true)
	return err
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
