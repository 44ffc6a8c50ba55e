package device

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dantte-lp/goctap/ctaphid"
)

// Info identifies a candidate authenticator as supplied by a platform
// manifest provider: a path the Transport understands, plus vendor/product
// identifiers used only for logging and diagnostics.
type Info struct {
	Path    string
	Vendor  uint16
	Product uint16
}

// Session owns exactly one authenticator's I/O handle, channel id,
// negotiated capabilities, and cached PIN/UV token. All command
// dispatch for a device routes through a Session; it serializes
// operations so only one command is ever in flight at a time.
type Session struct {
	mu sync.Mutex

	transport ctaphid.Transport
	handle    ctaphid.Handle
	cid       uint32

	protocolVersion byte
	versionMajor    byte
	versionMinor    byte
	versionBuild    byte
	capabilities    Capabilities

	forcedCBORBit *bool // nil = whatever the device announced

	token             []byte
	pinUvAuthProtocol int

	reportSize int
	logger     *slog.Logger

	inFlight   sync.Mutex
	testNonce  []byte
}

// New returns an empty, unopened Session using transport to open device
// handles. logger may be nil, in which case slog.Default() is used.
func New(transport ctaphid.Transport, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		transport:  transport,
		reportSize: ctaphid.ReportSize,
		logger:     logger,
	}
}

// Open performs the CTAPHID_INIT handshake against path and populates the
// session's handle, channel id, and capabilities.
func (s *Session) Open(path string) error {
	return s.OpenWithInfo(Info{Path: path})
}

// OpenWithInfo is Open for a caller that already has the device's
// manifest entry (vendor/product), used for logging without a second
// enumeration round-trip.
func (s *Session) OpenWithInfo(info Info) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		return ErrAlreadyOpen
	}

	handle, err := s.transport.Open(info.Path)
	if err != nil {
		return fmt.Errorf("device: open %q: %w", info.Path, err)
	}

	nonce := s.testNonce
	if nonce == nil {
		nonce = make([]byte, 8)
		if _, err := rand.Read(nonce); err != nil {
			_ = handle.Close()
			return fmt.Errorf("device: generate init nonce: %w", err)
		}
	}

	tx := ctaphid.NewTransaction(handle, ctaphid.BroadcastChannel).WithReportSize(s.reportSize)

	if err := tx.Send(ctaphid.CmdInit, nonce); err != nil {
		_ = handle.Close()
		return fmt.Errorf("device: send init: %w", err)
	}

	reply, err := tx.Receive(ctaphid.CmdInit, 3*time.Second)
	if err != nil {
		_ = handle.Close()
		return fmt.Errorf("device: receive init reply: %w", err)
	}

	if len(reply) < 17 {
		_ = handle.Close()
		return ErrShortReply
	}
	if string(reply[0:8]) != string(nonce) {
		_ = handle.Close()
		return ErrNonceMismatch
	}

	s.handle = handle
	s.cid = getUint32(reply[8:12])
	s.protocolVersion = reply[12]
	s.versionMajor = reply[13]
	s.versionMinor = reply[14]
	s.versionBuild = reply[15]
	s.capabilities = capabilitiesFromFlags(reply[16])
	s.forcedCBORBit = nil
	s.token = nil

	s.logger.Info("device session opened",
		slog.String("path", info.Path),
		slog.Uint64("channel_id", uint64(s.cid)),
		slog.Int("protocol_version", int(s.protocolVersion)),
		slog.Bool("cbor", s.capabilities.CBOR),
		slog.Bool("wink", s.capabilities.Wink),
	)

	return nil
}

// Close releases the underlying handle and wipes the cached token.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return ErrNotOpen
	}

	err := s.handle.Close()
	s.handle = nil
	s.cid = 0
	wipe(s.token)
	s.token = nil

	return err
}

// Cancel sends a CANCEL frame on the session's current channel and does
// not wait for a reply. It returns ErrNotOpen until Open has completed,
// so no CANCEL is sent before the INIT handshake; the broadcast channel
// is used only if the device assigned channel id 0. The outstanding
// operation, if any, then fails with whatever status the authenticator
// replies with (typically a ctap2 DeviceError carrying
// CodeKeepaliveCancel); no separate user-cancelled error is produced.
// CANCEL is always treated as best-effort.
func (s *Session) Cancel() error {
	s.mu.Lock()
	handle := s.handle
	cid := s.cid
	reportSize := s.reportSize
	s.mu.Unlock()

	if handle == nil {
		return ErrNotOpen
	}
	if cid == 0 {
		cid = ctaphid.BroadcastChannel
	}

	tx := ctaphid.NewTransaction(handle, cid).WithReportSize(reportSize)
	return tx.Send(ctaphid.CmdCancel, nil)
}

// SetIO replaces the transport used for future Open calls. It is rejected
// while a handle is open.
func (s *Session) SetIO(transport ctaphid.Transport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		return ErrIOInUse
	}
	s.transport = transport
	return nil
}

// ForceU2F clears the negotiated CBOR capability bit, steering workflows
// down the legacy U2F path regardless of what the device announced.
func (s *Session) ForceU2F() {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := false
	s.forcedCBORBit = &v
}

// ForceFIDO2 re-enables the CBOR capability bit.
func (s *Session) ForceFIDO2() {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := true
	s.forcedCBORBit = &v
}

// IsFIDO2 reports whether the session should be driven over CTAP2, taking
// ForceU2F/ForceFIDO2 into account.
func (s *Session) IsFIDO2() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forcedCBORBit != nil {
		return *s.forcedCBORBit
	}
	return s.capabilities.CBOR
}

// ChannelID returns the negotiated channel id, or 0 if the session is not
// open.
func (s *Session) ChannelID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cid
}

// Capabilities returns the capabilities the device announced at INIT.
func (s *Session) Capabilities() Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capabilities
}

// Versions returns the protocol/major/minor/build version bytes from the
// INIT reply.
func (s *Session) Versions() (protocol, major, minor, build byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocolVersion, s.versionMajor, s.versionMinor, s.versionBuild
}

// Token returns the cached PIN/UV token, if any.
func (s *Session) Token() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return nil, false
	}
	return s.token, true
}

// SetToken caches tok as the session's PIN/UV token, replacing and wiping
// any previous value.
func (s *Session) SetToken(tok []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wipe(s.token)
	s.token = tok
}

// InvalidateToken clears the cached token. Nothing in this module calls
// it: setPIN, changePIN, reset and PinAuthInvalid or PinRequired replies
// leave the session's cached token in place until the caller clears it.
func (s *Session) InvalidateToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	wipe(s.token)
	s.token = nil
}

// PinUvAuthProtocol returns the negotiated pinUvAuthProtocol number (1 or
// 2), or 0 if none has been negotiated yet.
func (s *Session) PinUvAuthProtocol() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinUvAuthProtocol
}

// SetPinUvAuthProtocol records the negotiated pinUvAuthProtocol number.
func (s *Session) SetPinUvAuthProtocol(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinUvAuthProtocol = n
}

// Do serializes command execution: if another command is already in
// flight on this session, it returns ErrBusy immediately instead of
// blocking. Workflows and the dispatcher call every command through Do.
func (s *Session) Do(fn func(tx *ctaphid.Transaction) error) error {
	if !s.inFlight.TryLock() {
		return ErrBusy
	}
	defer s.inFlight.Unlock()

	s.mu.Lock()
	handle := s.handle
	cid := s.cid
	reportSize := s.reportSize
	s.mu.Unlock()

	if handle == nil {
		return ErrNotOpen
	}

	tx := ctaphid.NewTransaction(handle, cid).WithReportSize(reportSize)
	return fn(tx)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func getUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
