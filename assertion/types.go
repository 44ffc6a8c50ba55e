package assertion

import (
	"crypto"

	"github.com/dantte-lp/goctap/pinuv"
)

// CredentialDescriptor identifies one public key credential by its
// credential ID, as used in allowList/excludeList and in responses.
type CredentialDescriptor struct {
	ID         []byte
	Type       string // always "public-key" today; carried through as received
	Transports []string
}

// UserEntity is the subset of PublicKeyCredentialUserEntity an
// authenticator may return with an assertion when it resolved more than
// one account for the relying party (typically only for discoverable
// credentials).
type UserEntity struct {
	ID          []byte
	Name        string
	DisplayName string
}

// AuthenticatorDataFlags decodes the one-byte flags field of
// authenticatorData.
type AuthenticatorDataFlags struct {
	UserPresent            bool
	UserVerified           bool
	BackupEligible         bool
	BackupState            bool
	AttestedCredentialData bool
	ExtensionData          bool
}

// AuthenticatorData is the parsed authenticatorData byte string common
// to both get-assertion and make-credential responses. Attested
// credential data and extensions are left undecoded in Rest here;
// credential decodes the attested credential data itself since only
// make-credential responses carry one in practice.
type AuthenticatorData struct {
	RPIDHash  []byte
	Flags     AuthenticatorDataFlags
	SignCount uint32
	Rest      []byte // AttestedCredentialData + extensions, undecoded
}

// Request is one authenticatorGetAssertion call's parameters.
type Request struct {
	RPID              string
	ClientDataHash    []byte
	AllowList         []CredentialDescriptor
	Extensions        map[string]any
	Options           map[string]bool
	PinUvAuthParam    []byte
	PinUvAuthProtocol int

	// VerifyKey, if set, is the credential's public key. GetAssertion
	// verifies the returned signature against it before returning; a
	// nil VerifyKey skips signature verification (e.g. when the caller
	// resolves credential IDs to keys itself, for multiple candidates).
	VerifyKey crypto.PublicKey

	// HMACSecretProtocol and HMACSecretSharedSecret, when both set, are
	// used to decrypt a "hmac-secret" extension output in the reply into
	// Response.HMACSecret. They are the pinUvAuthProtocol implementation
	// and shared secret from the key agreement the hmac-secret extension
	// input was encrypted under (ordinarily a dedicated one, separate
	// from any PIN/UV auth token key agreement).
	HMACSecretProtocol     pinuv.Protocol
	HMACSecretSharedSecret []byte
}

// Response is one decoded assertion, either the first one returned by
// authenticatorGetAssertion or a subsequent one from
// authenticatorGetNextAssertion.
type Response struct {
	Credential          CredentialDescriptor
	AuthData            AuthenticatorData
	RawAuthData         []byte
	Signature           []byte
	User                *UserEntity
	NumberOfCredentials int
	UserSelected        bool
	CredBlob            []byte
	LargeBlobKey        []byte
	HMACSecret          []byte // decrypted hmac-secret extension output, if requested and present
}
