package ctaphid

import (
	"fmt"
	"time"
)

// Handle is the per-device capability interface a platform backend
// supplies: open/close/read/write over a byte-stream report channel. This
// is the Go-native form of the four-operation I/O vtable named in the
// specification; real implementations (HID, NFC, Windows Hello) live
// outside this module.
type Handle interface {
	// Read blocks for up to timeout for one report. timeout ==
	// BlockForever waits indefinitely; timeout == PollOnce reads without
	// blocking. Returns the number of bytes read.
	Read(buf []byte, timeout time.Duration) (int, error)

	// Write sends one report and returns the number of bytes written.
	Write(buf []byte) (int, error)

	// Close releases the underlying device handle.
	Close() error
}

// Transport opens a Handle for a device path. Platform backends (HID,
// NFC, Windows Hello) implement this outside the module and register
// themselves with the device package's provider registry.
type Transport interface {
	Open(path string) (Handle, error)
}

// Transaction owns fragmentation and reassembly of logical messages over
// one channel id on one Handle. It holds no session semantics (no
// capability negotiation, no PIN state) — that is device.Session's job.
type Transaction struct {
	handle     Handle
	cid        uint32
	reportSize int
}

// NewTransaction returns a Transaction for handle on channel cid, using
// the default report size. Use WithReportSize to override it for devices
// with a non-standard report size.
func NewTransaction(handle Handle, cid uint32) *Transaction {
	return &Transaction{handle: handle, cid: cid, reportSize: ReportSize}
}

// WithReportSize returns a copy of t configured for a different HID
// report size.
func (t *Transaction) WithReportSize(size int) *Transaction {
	cp := *t
	cp.reportSize = size
	return &cp
}

// ChannelID returns the channel id this transaction writes and filters on.
func (t *Transaction) ChannelID() uint32 {
	return t.cid
}

// Send fragments payload into INIT/CONT frames under cmd and writes each
// as one report.
func (t *Transaction) Send(cmd Command, payload []byte) error {
	frames, err := Fragment(t.cid, cmd, payload, t.reportSize)
	if err != nil {
		return err
	}

	for _, frame := range frames {
		if _, err := t.handle.Write(frame); err != nil {
			return fmt.Errorf("ctaphid: write frame: %w", err)
		}
	}

	return nil
}

// Receive reads frames until a message sent under cmd is fully
// reassembled, or timeout/error. KEEPALIVE frames extend the wait without
// reducing the overall deadline by more than the time actually spent;
// ERROR frames become a *TransportError; frames on a foreign channel are
// dropped silently; a non-monotonic CONT sequence is ErrProtocol.
func (t *Transaction) Receive(cmd Command, timeout time.Duration) ([]byte, error) {
	var deadline time.Time
	if timeout != BlockForever {
		deadline = time.Now().Add(timeout)
	}

	r := newReassembler(t.cid, cmd)
	buf := make([]byte, t.reportSize)

	for {
		readTimeout := timeout
		if timeout != BlockForever && timeout != PollOnce {
			readTimeout = time.Until(deadline)
			if readTimeout <= 0 {
				return nil, ErrTimeout
			}
		}

		n, err := t.handle.Read(buf, readTimeout)
		if err != nil {
			return nil, fmt.Errorf("ctaphid: read frame: %w", err)
		}
		if n == 0 {
			if timeout == PollOnce {
				return nil, ErrTimeout
			}
			continue
		}

		status, payload, ferr := r.feed(buf[:n])
		if ferr != nil {
			return nil, ferr
		}

		switch status {
		case frameDone:
			return payload, nil
		case frameDropped, frameKeepAlive, frameContinuing:
			if timeout == PollOnce {
				return nil, ErrTimeout
			}
			continue
		}
	}
}
