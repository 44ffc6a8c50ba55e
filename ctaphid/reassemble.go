package ctaphid

import "fmt"

type frameStatus int

const (
	frameDropped frameStatus = iota
	frameKeepAlive
	frameContinuing
	frameDone
)

// reassembler accumulates CONT frames into a logical message for one
// expected (cid, cmd) pair.
type reassembler struct {
	cid         uint32
	expectedCmd Command

	started   bool
	declared  int
	buf       []byte
	nextSeq   byte
}

func newReassembler(cid uint32, expectedCmd Command) *reassembler {
	return &reassembler{cid: cid, expectedCmd: expectedCmd}
}

// feed processes one raw report frame (already stripped of any
// report-ID byte a USB transport might prepend).
func (r *reassembler) feed(frame []byte) (frameStatus, []byte, error) {
	if len(frame) < contFrameHeaderSize {
		return 0, nil, fmt.Errorf("%w: frame shorter than header", ErrProtocol)
	}

	fcid := getUint32(frame[0:4])
	if fcid != r.cid {
		return frameDropped, nil, nil
	}

	// An INIT frame has bit 7 of the command byte set.
	if frame[4]&0x80 != 0 {
		return r.feedInit(frame)
	}

	return r.feedCont(frame)
}

func (r *reassembler) feedInit(frame []byte) (frameStatus, []byte, error) {
	if len(frame) < initFrameHeaderSize {
		return 0, nil, fmt.Errorf("%w: init frame shorter than header", ErrProtocol)
	}

	cmd := Command(frame[4] &^ 0x80)

	if cmd == CmdKeepAlive {
		return frameKeepAlive, nil, nil
	}

	if cmd == CmdError {
		code := ErrInvalidCmd
		if len(frame) > initFrameHeaderSize {
			code = ErrorCode(frame[initFrameHeaderSize])
		}
		return 0, nil, &TransportError{Code: code}
	}

	if cmd != r.expectedCmd {
		return 0, nil, fmt.Errorf("%w: got 0x%02x, want 0x%02x", ErrUnexpectedCommand, byte(cmd), byte(r.expectedCmd))
	}

	if r.started {
		// A fresh INIT frame on the same channel while a message is
		// already in progress restarts reassembly (the remote resent
		// the response).
		r.reset()
	}

	r.started = true
	r.declared = int(frame[5])<<8 | int(frame[6])
	r.buf = make([]byte, 0, r.declared)
	r.nextSeq = 0

	payload := frame[initFrameHeaderSize:]
	r.buf = append(r.buf, truncate(payload, r.declared-len(r.buf))...)

	return r.checkDone()
}

func (r *reassembler) feedCont(frame []byte) (frameStatus, []byte, error) {
	if !r.started {
		// A stray continuation frame with no preceding INIT: drop it.
		return frameDropped, nil, nil
	}

	seq := frame[4]
	if seq != r.nextSeq {
		return 0, nil, fmt.Errorf("%w: continuation seq %d, want %d", ErrProtocol, seq, r.nextSeq)
	}
	r.nextSeq++

	payload := frame[contFrameHeaderSize:]
	r.buf = append(r.buf, truncate(payload, r.declared-len(r.buf))...)

	return r.checkDone()
}

func (r *reassembler) checkDone() (frameStatus, []byte, error) {
	if len(r.buf) >= r.declared {
		return frameDone, r.buf[:r.declared], nil
	}
	return frameContinuing, nil, nil
}

func (r *reassembler) reset() {
	r.started = false
	r.declared = 0
	r.buf = nil
	r.nextSeq = 0
}

func truncate(b []byte, max int) []byte {
	if max < 0 {
		return nil
	}
	if len(b) > max {
		return b[:max]
	}
	return b
}

// Reassemble runs a precomputed sequence of frames (as produced by
// Fragment) through the same reassembly state machine Transaction.Receive
// uses, without any I/O. It exists so the framing round-trip invariant
// can be tested directly against a frame list.
func Reassemble(cid uint32, expectedCmd Command, frames [][]byte) ([]byte, error) {
	r := newReassembler(cid, expectedCmd)

	for _, f := range frames {
		status, payload, err := r.feed(f)
		if err != nil {
			return nil, err
		}
		if status == frameDone {
			return payload, nil
		}
	}

	return nil, ErrTimeout
}
