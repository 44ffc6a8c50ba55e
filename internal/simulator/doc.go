// Package simulator implements an in-memory software authenticator: a
// ctaphid.Transport/ctaphid.Handle pair that speaks the CTAPHID framing
// and CTAP2 command set entirely in Go, with no real device attached.
//
// It exists so the rest of this module can be exercised end to end —
// init handshake, clientPIN key agreement and tokens, makeCredential,
// getAssertion/getNextAssertion — without HID, NFC, or Windows Hello
// hardware. Tests and cmd/ctap2diag are its two callers.
//
// The simulated device only supports pinUvAuthProtocol 1 and "packed"
// self-attestation (no x5c). Credential management, bio enrollment, and
// large blobs are exercised in their own packages against hand-rolled
// scripted CTAPHID replies rather than through this device, since wiring
// them into a persistent in-memory authenticator would mostly duplicate
// logic credmgmt.go, bio.go, and largeblob.go already exercise on the
// client side.
package simulator
