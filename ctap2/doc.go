// Package ctap2 dispatches CTAP2 commands over a device.Session: it
// wraps each outgoing command byte and CBOR parameter map in a
// CTAPHID_CBOR transaction, decodes the one-byte status prefix on the
// reply, and classifies authenticator error statuses into the Code
// taxonomy that assertion, credential, and management build workflows
// on top of.
package ctap2
