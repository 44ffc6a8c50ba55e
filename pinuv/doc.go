// Package pinuv implements the PIN/UV Auth Protocol key agreement,
// encryption, and authentication primitives shared by both protocol
// versions, plus the token cache that sits in front of them.
package pinuv
