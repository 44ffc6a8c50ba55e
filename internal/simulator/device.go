package simulator

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"sync"
	"time"

	"github.com/dantte-lp/goctap/ctaphid"
)

// storedCredential is one discoverable credential the device has
// minted via authenticatorMakeCredential.
type storedCredential struct {
	rpID        string
	credID      []byte
	userID      []byte
	userName    string
	displayName string
	priv        *ecdsa.PrivateKey
}

// pendingMessage accumulates the frames of one in-flight logical
// message on one channel until ctaphid.Reassemble can decode it.
type pendingMessage struct {
	cmd    ctaphid.Command
	frames [][]byte
}

// Device is a single simulated authenticator. It implements both
// ctaphid.Transport (Open returns itself) and ctaphid.Handle, so a
// device.Session can drive it exactly as it would a real HID handle.
//
// All state changes happen synchronously inside Write: by the time a
// caller's Transaction.Receive starts reading, the reply is already
// queued. A Device is safe for one session at a time; it does not model
// concurrent channels beyond what the INIT handshake needs to hand out
// a fresh channel id per Open.
type Device struct {
	mu sync.Mutex

	logger *slog.Logger

	aaguid  [16]byte
	nextCID uint32

	pending map[uint32]*pendingMessage
	outbox  [][]byte

	pin        string
	pinSet     bool
	pinRetries int

	agreementKey *ecdh.PrivateKey

	token            []byte
	tokenPermissions byte
	tokenRPID        string

	credentials []storedCredential
	signCounter uint32

	nextAssertions              []storedCredential
	nextAssertionRPID           string
	nextAssertionClientDataHash []byte
}

// Option configures a Device at construction time.
type Option func(*Device)

// WithAAGUID sets the device's reported AAGUID. The default is all
// zeroes.
func WithAAGUID(aaguid [16]byte) Option {
	return func(d *Device) { d.aaguid = aaguid }
}

// WithPIN pre-provisions a PIN, as if setPIN had already been run.
func WithPIN(pin string) Option {
	return func(d *Device) {
		d.pin = pin
		d.pinSet = true
	}
}

// New returns a freshly reset Device. logger may be nil, in which case
// slog.Default() is used.
func New(logger *slog.Logger, opts ...Option) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Device{
		logger:     logger,
		pending:    make(map[uint32]*pendingMessage),
		pinRetries: 8,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open implements ctaphid.Transport. path is ignored: a Device is
// always one device.
func (d *Device) Open(path string) (ctaphid.Handle, error) {
	return d, nil
}

// Close implements ctaphid.Handle. It does not wipe credentials or the
// PIN, mirroring a real authenticator surviving a USB unplug; only
// Reset does that.
func (d *Device) Close() error {
	return nil
}

// Read implements ctaphid.Handle, returning the next queued reply
// frame. Because Write produces replies synchronously, the outbox is
// never empty when a well-behaved caller reads after writing.
func (d *Device) Read(buf []byte, timeout time.Duration) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.outbox) == 0 {
		if timeout == ctaphid.PollOnce {
			return 0, nil
		}
		return 0, ctaphid.ErrTimeout
	}

	frame := d.outbox[0]
	d.outbox = d.outbox[1:]
	return copy(buf, frame), nil
}

// Write implements ctaphid.Handle: it accumulates one CTAPHID frame and,
// once a full logical message has arrived, dispatches it.
func (d *Device) Write(buf []byte) (int, error) {
	frame := append([]byte(nil), buf...)

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(frame) < 5 {
		return len(frame), nil
	}

	cid := getUint32(frame)
	isInit := frame[4]&0x80 != 0

	msg, ok := d.pending[cid]
	if isInit {
		msg = &pendingMessage{cmd: ctaphid.Command(frame[4] &^ 0x80)}
		d.pending[cid] = msg
	} else if !ok {
		return len(frame), nil // stray continuation, drop
	}

	msg.frames = append(msg.frames, frame)

	payload, err := ctaphid.Reassemble(cid, msg.cmd, msg.frames)
	if err != nil {
		// Not yet complete (ErrTimeout) or malformed; either way there
		// is nothing to dispatch until more frames arrive or the
		// message is abandoned.
		return len(frame), nil
	}

	delete(d.pending, cid)
	d.dispatch(cid, msg.cmd, payload)

	return len(frame), nil
}

func (d *Device) dispatch(cid uint32, cmd ctaphid.Command, payload []byte) {
	switch cmd {
	case ctaphid.CmdInit:
		d.handleInit(payload)
	case ctaphid.CmdCBOR:
		d.handleCBOR(cid, payload)
	case ctaphid.CmdCancel:
		// Everything here completes synchronously before Cancel could
		// ever arrive first, so there is nothing in flight to abort.
	default:
		d.enqueueError(cid)
	}
}

// handleInit answers the CTAPHID_INIT handshake: allocate a new channel
// id and echo the nonce, protocol version, and capability flags on the
// broadcast channel, exactly as device.Session.OpenWithInfo expects.
func (d *Device) handleInit(nonce []byte) {
	d.nextCID++
	cid := d.nextCID

	reply := make([]byte, 17)
	copy(reply[0:8], nonce)
	binary.BigEndian.PutUint32(reply[8:12], cid)
	reply[12] = 2 // CTAPHID protocol version
	reply[13], reply[14], reply[15] = 1, 0, 0
	reply[16] = 0x04 // CAPABILITY_CBOR

	d.enqueueFrames(ctaphid.BroadcastChannel, ctaphid.CmdInit, reply)
}

func (d *Device) enqueueFrames(cid uint32, cmd ctaphid.Command, payload []byte) {
	frames, err := ctaphid.Fragment(cid, cmd, payload, ctaphid.ReportSize)
	if err != nil {
		d.logger.Error("simulator: fragment reply", slog.Any("error", err))
		return
	}
	d.outbox = append(d.outbox, frames...)
}

func (d *Device) enqueueError(cid uint32) {
	d.enqueueFrames(cid, ctaphid.CmdError, []byte{byte(ctaphid.ErrInvalidCmd)})
}

func getUint32(frame []byte) uint32 {
	return uint32(frame[0])<<24 | uint32(frame[1])<<16 | uint32(frame[2])<<8 | uint32(frame[3])
}

func generateAgreementKey() (*ecdh.PrivateKey, error) {
	return ecdh.P256().GenerateKey(rand.Reader)
}
