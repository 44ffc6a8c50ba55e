// Package management implements the CTAP2 credential management,
// biometric enrollment, and large-blob subsystems: paginated
// enumeration, subcommand-authenticated mutation, and fragmented
// large-blob storage with checksum verification.
package management
