package assertion

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/dantte-lp/goctap/cbor"
)

var (
	// ErrRPIDHashMismatch indicates the reply's rpIdHash does not match
	// SHA-256(req.RPID); the response does not belong to the request.
	ErrRPIDHashMismatch = errors.New("assertion: rpIdHash does not match sha256(rpId)")

	// ErrUserPresenceRequired indicates the up flag was requested
	// (the default, absent an explicit "up": false option) but the
	// authenticator did not set it.
	ErrUserPresenceRequired = errors.New("assertion: authenticator did not set the user-present flag")

	// ErrUserVerificationRequired indicates Options["uv"] was true but
	// the authenticator did not set the uv flag.
	ErrUserVerificationRequired = errors.New("assertion: authenticator did not set the user-verified flag")

	// ErrSignatureInvalid indicates Request.VerifyKey was set and the
	// returned signature did not verify against it.
	ErrSignatureInvalid = errors.New("assertion: signature verification failed")
)

// verify checks the reply in resp against req: rpIdHash, the up/uv flag
// bits, and, where the caller supplied the material, the signature and
// the hmac-secret extension output.
func verify(req Request, resp *Response) error {
	wantHash := sha256.Sum256([]byte(req.RPID))
	if !hashesEqual(wantHash[:], resp.AuthData.RPIDHash) {
		return ErrRPIDHashMismatch
	}

	if requireUserPresence(req.Options) && !resp.AuthData.Flags.UserPresent {
		return ErrUserPresenceRequired
	}
	if req.Options["uv"] && !resp.AuthData.Flags.UserVerified {
		return ErrUserVerificationRequired
	}

	if req.VerifyKey != nil {
		if err := verifySignature(req.VerifyKey, resp.RawAuthData, req.ClientDataHash, resp.Signature); err != nil {
			return err
		}
	}

	if resp.AuthData.Flags.ExtensionData && !resp.AuthData.Flags.AttestedCredentialData {
		ext, ok := decodeExtensions(resp.AuthData.Rest)
		if ok {
			applyCredBlob(ext, resp)
			if err := applyHMACSecret(req, ext, resp); err != nil {
				return err
			}
		}
	}

	return nil
}

func requireUserPresence(opts map[string]bool) bool {
	up, explicit := opts["up"]
	return !explicit || up
}

func hashesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func verifySignature(pub crypto.PublicKey, rawAuthData, clientDataHash, sig []byte) error {
	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("assertion: unsupported verify key type %T", pub)
	}

	message := make([]byte, 0, len(rawAuthData)+len(clientDataHash))
	message = append(message, rawAuthData...)
	message = append(message, clientDataHash...)
	digest := sha256.Sum256(message)

	if !ecdsa.VerifyASN1(ecdsaPub, digest[:], sig) {
		return ErrSignatureInvalid
	}
	return nil
}

// decodeExtensions decodes the extensions CBOR map from authenticatorData's
// trailing bytes. It is only meaningful when ExtensionData is set and
// AttestedCredentialData is not, since this package never needs to parse
// attested credential data to find the extensions that follow it.
func decodeExtensions(rest []byte) (cbor.Map, bool) {
	v, _, err := cbor.Decode(rest, cbor.DecodeOptions{})
	if err != nil {
		return nil, false
	}
	m, ok := v.(cbor.Map)
	return m, ok
}

func applyCredBlob(ext cbor.Map, resp *Response) {
	v, ok := ext.Get(cbor.Text("credBlob"))
	if !ok {
		return
	}
	if b, ok := v.(cbor.Bytes); ok {
		resp.CredBlob = []byte(b)
	}
}

func applyHMACSecret(req Request, ext cbor.Map, resp *Response) error {
	if req.HMACSecretProtocol == nil || req.HMACSecretSharedSecret == nil {
		return nil
	}

	v, ok := ext.Get(cbor.Text("hmac-secret"))
	if !ok {
		return nil
	}
	enc, ok := v.(cbor.Bytes)
	if !ok {
		return nil
	}

	out, err := req.HMACSecretProtocol.Decrypt(req.HMACSecretSharedSecret, []byte(enc))
	if err != nil {
		return fmt.Errorf("assertion: decrypt hmac-secret: %w", err)
	}
	resp.HMACSecret = out
	return nil
}
