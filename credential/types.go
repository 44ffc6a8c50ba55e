package credential

import (
	"github.com/dantte-lp/goctap/assertion"
	"github.com/dantte-lp/goctap/cbor"
)

// RelyingParty is the subset of PublicKeyCredentialRpEntity a
// makeCredential call needs.
type RelyingParty struct {
	ID   string
	Name string
}

// User identifies the account a new credential is bound to.
type User struct {
	ID          []byte
	Name        string
	DisplayName string
}

// Algorithm pairs a public key type with a COSE algorithm identifier, in
// the caller's preference order.
type Algorithm struct {
	Type string // "public-key"
	Alg  int64  // COSE algorithm identifier, e.g. -7 for ES256
}

// Request is one authenticatorMakeCredential call's parameters.
type Request struct {
	RP                    RelyingParty
	User                  User
	ClientDataHash        []byte
	PubKeyCredParams      []Algorithm
	ExcludeList           []assertion.CredentialDescriptor
	Extensions            map[string]any
	Options               map[string]bool
	PinUvAuthParam        []byte
	PinUvAuthProtocol     int
	EnterpriseAttestation int64 // 0 means omitted
}

// AttestedCredentialData is the attested-credential-data section of
// authenticatorData: present on every makeCredential response.
type AttestedCredentialData struct {
	AAGUID       [16]byte
	CredentialID []byte
	PublicKey    cbor.Value // decoded COSE_Key
}

// Response is the decoded result of authenticatorMakeCredential.
type Response struct {
	Format                string
	AuthData              assertion.AuthenticatorData
	RawAuthData           []byte
	AttestedCredential    AttestedCredentialData
	AttStmt               AttestationStatement
	EnterpriseAttestation bool
	LargeBlobKey          []byte
}
