package device

import (
	"testing"
	"time"

	"github.com/dantte-lp/goctap/ctaphid"
)

// scriptedHandle is a minimal ctaphid.Handle that replies to exactly one
// CTAPHID_INIT with a canned reply frame, built directly (not through
// Fragment) so the test pins down the exact byte layout from the worked
// handshake example.
type scriptedHandle struct {
	reply   []byte
	written [][]byte
	closed  bool
}

func (h *scriptedHandle) Read(buf []byte, timeout time.Duration) (int, error) {
	if h.reply == nil {
		return 0, ctaphid.ErrTimeout
	}
	n := copy(buf, h.reply)
	h.reply = nil
	return n, nil
}

func (h *scriptedHandle) Write(buf []byte) (int, error) {
	frame := make([]byte, len(buf))
	copy(frame, buf)
	h.written = append(h.written, frame)
	return len(buf), nil
}

func (h *scriptedHandle) Close() error {
	h.closed = true
	return nil
}

type scriptedTransport struct {
	handle *scriptedHandle
}

func (t *scriptedTransport) Open(path string) (ctaphid.Handle, error) {
	return t.handle, nil
}

func initReplyFrame(nonce []byte, cid uint32, protocol, major, minor, build, flags byte) []byte {
	frame := make([]byte, ctaphid.ReportSize)
	// the reply frame header itself always carries the broadcast channel
	frame[0], frame[1], frame[2], frame[3] = 0xFF, 0xFF, 0xFF, 0xFF
	frame[4] = byte(ctaphid.CmdInit) | 0x80
	bcnt := 17
	frame[5] = byte(bcnt >> 8)
	frame[6] = byte(bcnt)
	body := frame[7:]
	copy(body[0:8], nonce)
	body[8] = byte(cid >> 24)
	body[9] = byte(cid >> 16)
	body[10] = byte(cid >> 8)
	body[11] = byte(cid)
	body[12] = protocol
	body[13] = major
	body[14] = minor
	body[15] = build
	body[16] = flags
	return frame
}

// TestOpenHandshakeScenario reproduces the specification's worked INIT
// example: nonce 0x0807060504030201, scripted reply with matching nonce,
// cid 0xCAFEBABE, protocol 2, versions 1/0/0, flags 0x05 (wink|cbor).
func TestOpenHandshakeScenario(t *testing.T) {
	t.Parallel()

	nonce := []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
	reply := initReplyFrame(nonce, 0xCAFEBABE, 2, 1, 0, 0, 0x05)

	handle := &scriptedHandle{reply: reply}
	s := New(&scriptedTransport{handle: handle}, nil)
	s.SetNonceForTest(nonce)

	if err := s.Open("fake0"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if !s.IsFIDO2() {
		t.Fatal("IsFIDO2() = false, want true")
	}
	if got := s.ChannelID(); got != 0xCAFEBABE {
		t.Fatalf("ChannelID() = 0x%08X, want 0xCAFEBABE", got)
	}
	protocol, major, minor, build := s.Versions()
	if protocol != 2 || major != 1 || minor != 0 || build != 0 {
		t.Fatalf("Versions() = (%d,%d,%d,%d), want (2,1,0,0)", protocol, major, minor, build)
	}
	caps := s.Capabilities()
	if !caps.Wink || !caps.CBOR {
		t.Fatalf("Capabilities() = %+v, want wink and cbor set", caps)
	}
}

func TestOpenNonceMismatchRejected(t *testing.T) {
	t.Parallel()

	sent := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	wrongEcho := []byte{9, 9, 9, 9, 9, 9, 9, 9}
	reply := initReplyFrame(wrongEcho, 0x01020304, 2, 1, 0, 0, 0)

	handle := &scriptedHandle{reply: reply}
	s := New(&scriptedTransport{handle: handle}, nil)
	s.SetNonceForTest(sent)

	if err := s.Open("fake0"); err != ErrNonceMismatch {
		t.Fatalf("Open() error = %v, want ErrNonceMismatch", err)
	}
	if !handle.closed {
		t.Fatal("handle was not closed after a failed handshake")
	}
}

func TestOpenTwiceRejected(t *testing.T) {
	t.Parallel()

	nonce := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	reply := initReplyFrame(nonce, 0x01020304, 2, 1, 0, 0, 0)

	handle := &scriptedHandle{reply: reply}
	s := New(&scriptedTransport{handle: handle}, nil)
	s.SetNonceForTest(nonce)

	if err := s.Open("fake0"); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := s.Open("fake0"); err != ErrAlreadyOpen {
		t.Fatalf("second Open() error = %v, want ErrAlreadyOpen", err)
	}
}

func TestDoReturnsBusyWhenInFlight(t *testing.T) {
	t.Parallel()

	nonce := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	reply := initReplyFrame(nonce, 0x01020304, 2, 1, 0, 0, 0)

	handle := &scriptedHandle{reply: reply}
	s := New(&scriptedTransport{handle: handle}, nil)
	s.SetNonceForTest(nonce)
	if err := s.Open("fake0"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if !s.inFlight.TryLock() {
		t.Fatal("could not acquire inFlight for the test setup")
	}
	defer s.inFlight.Unlock()

	err := s.Do(func(tx *ctaphid.Transaction) error { return nil })
	if err != ErrBusy {
		t.Fatalf("Do() error = %v, want ErrBusy", err)
	}
}

func TestTokenInvalidation(t *testing.T) {
	t.Parallel()

	s := New(nil, nil)
	s.SetToken([]byte{0xAA, 0xBB})

	if _, ok := s.Token(); !ok {
		t.Fatal("Token() ok = false right after SetToken")
	}

	s.InvalidateToken()

	if _, ok := s.Token(); ok {
		t.Fatal("Token() ok = true after InvalidateToken")
	}
}
