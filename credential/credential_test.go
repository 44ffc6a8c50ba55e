package credential_test

import (
	"encoding/binary"
	"log/slog"
	"testing"
	"time"

	"github.com/dantte-lp/goctap/assertion"
	"github.com/dantte-lp/goctap/cbor"
	"github.com/dantte-lp/goctap/credential"
	"github.com/dantte-lp/goctap/ctap2"
	"github.com/dantte-lp/goctap/ctaphid"
	"github.com/dantte-lp/goctap/device"
)

type scriptedHandle struct {
	replyFrames [][]byte
	written     [][]byte
}

func (h *scriptedHandle) Read(buf []byte, timeout time.Duration) (int, error) {
	if len(h.replyFrames) == 0 {
		return 0, ctaphid.ErrTimeout
	}
	frame := h.replyFrames[0]
	h.replyFrames = h.replyFrames[1:]
	return copy(buf, frame), nil
}

func (h *scriptedHandle) Write(buf []byte) (int, error) {
	frame := make([]byte, len(buf))
	copy(frame, buf)
	h.written = append(h.written, frame)
	return len(buf), nil
}

func (h *scriptedHandle) Close() error { return nil }

func (h *scriptedHandle) queueReply(cid uint32, cmd ctaphid.Command, body []byte) {
	frames, err := ctaphid.Fragment(cid, cmd, body, ctaphid.ReportSize)
	if err != nil {
		panic(err)
	}
	h.replyFrames = append(h.replyFrames, frames...)
}

type singleHandleTransport struct{ handle ctaphid.Handle }

func (t singleHandleTransport) Open(path string) (ctaphid.Handle, error) { return t.handle, nil }

func openTestSession(t *testing.T) (*device.Session, *scriptedHandle, uint32) {
	t.Helper()

	cid := uint32(0x11223344)
	nonce := []byte{1, 1, 2, 2, 3, 3, 4, 4}

	initFrame := make([]byte, ctaphid.ReportSize)
	initFrame[0], initFrame[1], initFrame[2], initFrame[3] = 0xFF, 0xFF, 0xFF, 0xFF
	initFrame[4] = byte(ctaphid.CmdInit) | 0x80
	initFrame[5], initFrame[6] = 0, 17
	copy(initFrame[7:15], nonce)
	initFrame[15], initFrame[16], initFrame[17], initFrame[18] = byte(cid>>24), byte(cid>>16), byte(cid>>8), byte(cid)
	initFrame[19] = 2
	initFrame[20], initFrame[21], initFrame[22] = 1, 0, 0
	initFrame[23] = 0x04

	handle := &scriptedHandle{replyFrames: [][]byte{initFrame}}
	s := device.New(singleHandleTransport{handle: handle}, slog.New(slog.DiscardHandler))
	s.SetNonceForTest(nonce)
	if err := s.Open("fake0"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	return s, handle, cid
}

func mustEncode(t *testing.T, v cbor.Value) []byte {
	t.Helper()
	b, err := cbor.Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return b
}

// rawAuthDataWithCredential builds an authenticatorData byte string with
// the AT flag set and a minimal attested credential data section: a
// 16-byte AAGUID, a credential ID, and a COSE EC2 public key map.
func rawAuthDataWithCredential(t *testing.T, aaguid [16]byte, credID []byte, pub cbor.Value, signCount uint32) []byte {
	t.Helper()

	b := make([]byte, 37)
	b[32] = 0x01 | 0x40 // UP | AT
	binary.BigEndian.PutUint32(b[33:37], signCount)

	b = append(b, aaguid[:]...)
	credLen := make([]byte, 2)
	binary.BigEndian.PutUint16(credLen, uint16(len(credID)))
	b = append(b, credLen...)
	b = append(b, credID...)
	b = append(b, mustEncode(t, pub)...)

	return b
}

func coseEC2Key() cbor.Value {
	return cbor.Map{
		{Key: cbor.Uint(1), Value: cbor.Int(2)},   // kty: EC2
		{Key: cbor.Uint(3), Value: cbor.Int(-7)},  // alg: ES256
		{Key: cbor.Int(-1), Value: cbor.Int(1)},   // crv: P-256
		{Key: cbor.Int(-2), Value: cbor.Bytes(make([]byte, 32))},
		{Key: cbor.Int(-3), Value: cbor.Bytes(make([]byte, 32))},
	}
}

func TestMakeCredentialDecodesPackedAttestation(t *testing.T) {
	t.Parallel()

	s, handle, cid := openTestSession(t)
	defer s.Close()

	d := ctap2.New(s, slog.New(slog.DiscardHandler))

	credID := []byte{0xAA, 0xBB, 0xCC}
	authData := rawAuthDataWithCredential(t, [16]byte{1, 2, 3}, credID, coseEC2Key(), 1)

	attStmt := cbor.Map{
		{Key: cbor.Text("alg"), Value: cbor.Int(-7)},
		{Key: cbor.Text("sig"), Value: cbor.Bytes{0x30, 0x44}},
		{Key: cbor.Text("x5c"), Value: cbor.Array{cbor.Bytes{0x01, 0x02}}},
	}

	reply := append([]byte{byte(ctap2.CodeSuccess)}, mustEncode(t, cbor.Map{
		{Key: cbor.Uint(1), Value: cbor.Text("packed")},
		{Key: cbor.Uint(2), Value: cbor.Bytes(authData)},
		{Key: cbor.Uint(3), Value: attStmt},
	})...)
	handle.queueReply(cid, ctaphid.CmdCBOR, reply)

	resp, err := credential.MakeCredential(d, credential.Request{
		RP:             credential.RelyingParty{ID: "example.com"},
		User:           credential.User{ID: []byte{1}, Name: "alice"},
		ClientDataHash: make([]byte, 32),
		PubKeyCredParams: []credential.Algorithm{
			{Type: "public-key", Alg: -7},
		},
	})
	if err != nil {
		t.Fatalf("MakeCredential: %v", err)
	}

	if resp.Format != "packed" {
		t.Fatalf("Format = %q, want packed", resp.Format)
	}
	if string(resp.AttestedCredential.CredentialID) != string(credID) {
		t.Fatalf("CredentialID = %x, want %x", resp.AttestedCredential.CredentialID, credID)
	}
	if resp.AttestedCredential.AAGUID[0] != 1 {
		t.Fatalf("AAGUID[0] = %d, want 1", resp.AttestedCredential.AAGUID[0])
	}
	if resp.AttStmt.Alg != -7 {
		t.Fatalf("AttStmt.Alg = %d, want -7", resp.AttStmt.Alg)
	}
	if len(resp.AttStmt.X5C) != 1 {
		t.Fatalf("len(X5C) = %d, want 1", len(resp.AttStmt.X5C))
	}
	if !resp.AuthData.Flags.AttestedCredentialData {
		t.Fatal("AttestedCredentialData flag = false, want true")
	}
	if resp.AuthData.SignCount != 1 {
		t.Fatalf("SignCount = %d, want 1", resp.AuthData.SignCount)
	}
}

func TestMakeCredentialNoneFormatRejectsNonEmptyStmt(t *testing.T) {
	t.Parallel()

	s, handle, cid := openTestSession(t)
	defer s.Close()

	d := ctap2.New(s, slog.New(slog.DiscardHandler))

	authData := rawAuthDataWithCredential(t, [16]byte{}, []byte{0x01}, coseEC2Key(), 0)
	reply := append([]byte{byte(ctap2.CodeSuccess)}, mustEncode(t, cbor.Map{
		{Key: cbor.Uint(1), Value: cbor.Text("none")},
		{Key: cbor.Uint(2), Value: cbor.Bytes(authData)},
		{Key: cbor.Uint(3), Value: cbor.Map{{Key: cbor.Text("unexpected"), Value: cbor.Bool(true)}}},
	})...)
	handle.queueReply(cid, ctaphid.CmdCBOR, reply)

	_, err := credential.MakeCredential(d, credential.Request{
		RP:             credential.RelyingParty{ID: "example.com"},
		User:           credential.User{ID: []byte{1}, Name: "bob"},
		ClientDataHash: make([]byte, 32),
	})
	if err == nil {
		t.Fatal("MakeCredential() err = nil, want error for non-empty none attStmt")
	}
}

func TestMakeCredentialWritesExcludeList(t *testing.T) {
	t.Parallel()

	s, handle, cid := openTestSession(t)
	defer s.Close()

	d := ctap2.New(s, slog.New(slog.DiscardHandler))

	authData := rawAuthDataWithCredential(t, [16]byte{}, []byte{0x01}, coseEC2Key(), 0)
	reply := append([]byte{byte(ctap2.CodeSuccess)}, mustEncode(t, cbor.Map{
		{Key: cbor.Uint(1), Value: cbor.Text("none")},
		{Key: cbor.Uint(2), Value: cbor.Bytes(authData)},
		{Key: cbor.Uint(3), Value: cbor.Map{}},
	})...)
	handle.queueReply(cid, ctaphid.CmdCBOR, reply)

	excludeID := []byte{0x99, 0x98}
	_, err := credential.MakeCredential(d, credential.Request{
		RP:             credential.RelyingParty{ID: "example.com"},
		User:           credential.User{ID: []byte{1}, Name: "carol"},
		ClientDataHash: make([]byte, 32),
		ExcludeList: []assertion.CredentialDescriptor{
			{ID: excludeID, Type: "public-key"},
		},
	})
	if err != nil {
		t.Fatalf("MakeCredential: %v", err)
	}

	last := handle.written[len(handle.written)-1]
	body, err := ctaphid.Reassemble(cid, ctaphid.CmdCBOR, [][]byte{last})
	if err != nil {
		t.Fatalf("Reassemble: %v", err)
	}
	v, _, err := cbor.Decode(body[1:], cbor.DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	m, ok := v.(cbor.Map)
	if !ok {
		t.Fatalf("request body type = %T, want cbor.Map", v)
	}
	list, ok := m.GetUint(5)
	if !ok {
		t.Fatal("excludeList missing from request")
	}
	arr, ok := list.(cbor.Array)
	if !ok || len(arr) != 1 {
		t.Fatalf("excludeList = %v, want one-element array", list)
	}
}
