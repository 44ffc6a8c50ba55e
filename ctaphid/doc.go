// Package ctaphid implements the CTAPHID framing layer: splitting a
// logical message into INIT/CONT report frames and reassembling them,
// including KEEPALIVE and ERROR handling and per-operation timeouts. It
// knows nothing about CTAP2 command semantics — that lives in ctap2 and
// device, layered on top of a Transaction.
package ctaphid
