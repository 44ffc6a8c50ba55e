package assertion

import (
	"encoding/binary"
	"errors"
)

// ErrAuthDataTruncated indicates a raw authenticatorData byte string was
// shorter than the fixed 37-byte rpIdHash+flags+signCount prefix.
var ErrAuthDataTruncated = errors.New("assertion: authenticator data truncated")

const (
	flagUP = 1 << 0
	flagUV = 1 << 2
	flagBE = 1 << 3
	flagBS = 1 << 4
	flagAT = 1 << 6
	flagED = 1 << 7
)

// ParseAuthenticatorData decodes the fixed-size prefix of an
// authenticatorData byte string (RP ID hash, flags, signature counter)
// and leaves any attested credential data / extensions in Rest for a
// caller that knows whether to expect them.
func ParseAuthenticatorData(raw []byte) (AuthenticatorData, error) {
	const prefixLen = 32 + 1 + 4
	if len(raw) < prefixLen {
		return AuthenticatorData{}, ErrAuthDataTruncated
	}

	flags := raw[32]
	return AuthenticatorData{
		RPIDHash: append([]byte(nil), raw[:32]...),
		Flags: AuthenticatorDataFlags{
			UserPresent:            flags&flagUP != 0,
			UserVerified:           flags&flagUV != 0,
			BackupEligible:         flags&flagBE != 0,
			BackupState:            flags&flagBS != 0,
			AttestedCredentialData: flags&flagAT != 0,
			ExtensionData:          flags&flagED != 0,
		},
		SignCount: binary.BigEndian.Uint32(raw[33:37]),
		Rest:      raw[37:],
	}, nil
}
