// Package credential implements the make-credential workflow:
// authenticatorMakeCredential, authenticatorData attested-credential-data
// decoding, and attestation statement shape validation.
package credential
