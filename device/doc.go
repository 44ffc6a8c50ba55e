// Package device owns the per-authenticator Session: its I/O handle,
// negotiated channel id and capabilities, cached PIN/UV token, and the
// nonce-matched CTAPHID_INIT handshake. It also hosts the process-wide
// manifest provider registry used to discover candidate devices.
package device
