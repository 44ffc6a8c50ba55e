package credential

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dantte-lp/goctap/assertion"
	"github.com/dantte-lp/goctap/cbor"
)

// ErrNoAttestedCredentialData indicates the AT flag was set but the
// trailing bytes were too short to hold the fixed aaguid+credIdLen prefix
// or the credential ID. A clear AT flag is not an error: the attested
// credential data is then left empty.
var ErrNoAttestedCredentialData = errors.New("credential: authenticator data has no attested credential data")

// parseAttestedCredentialData decodes the aaguid, credential ID and
// COSE public key from authData.Rest, as produced by
// assertion.ParseAuthenticatorData. It returns whatever bytes follow the
// public key (extensions, usually) unconsumed.
func parseAttestedCredentialData(rest []byte) (AttestedCredentialData, []byte, error) {
	const prefixLen = 16 + 2
	if len(rest) < prefixLen {
		return AttestedCredentialData{}, nil, ErrNoAttestedCredentialData
	}

	var acd AttestedCredentialData
	copy(acd.AAGUID[:], rest[:16])
	credLen := binary.BigEndian.Uint16(rest[16:18])
	offset := prefixLen

	if len(rest) < offset+int(credLen) {
		return AttestedCredentialData{}, nil, fmt.Errorf("%w: credential id truncated", ErrNoAttestedCredentialData)
	}
	acd.CredentialID = append([]byte(nil), rest[offset:offset+int(credLen)]...)
	offset += int(credLen)

	key, consumed, err := cbor.Decode(rest[offset:], cbor.DecodeOptions{})
	if err != nil {
		return AttestedCredentialData{}, nil, fmt.Errorf("credential: decode public key: %w", err)
	}
	acd.PublicKey = key
	offset += consumed

	return acd, rest[offset:], nil
}

// parseAuthenticatorData decodes the fixed prefix via assertion's parser
// and, when the AT flag is set, the attested credential data that
// follows it.
func parseAuthenticatorData(raw []byte) (assertion.AuthenticatorData, AttestedCredentialData, error) {
	ad, err := assertion.ParseAuthenticatorData(raw)
	if err != nil {
		return assertion.AuthenticatorData{}, AttestedCredentialData{}, err
	}
	if !ad.Flags.AttestedCredentialData {
		return ad, AttestedCredentialData{}, nil
	}

	acd, remainder, err := parseAttestedCredentialData(ad.Rest)
	if err != nil {
		return assertion.AuthenticatorData{}, AttestedCredentialData{}, err
	}
	ad.Rest = remainder

	return ad, acd, nil
}
