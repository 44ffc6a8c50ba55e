package simulator_test

import (
	"crypto/sha256"
	"log/slog"
	"testing"

	"go.uber.org/goleak"

	"github.com/dantte-lp/goctap/assertion"
	"github.com/dantte-lp/goctap/credential"
	"github.com/dantte-lp/goctap/ctap2"
	"github.com/dantte-lp/goctap/device"
	"github.com/dantte-lp/goctap/internal/simulator"
	"github.com/dantte-lp/goctap/pinuv"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func openSimulatedSession(t *testing.T, opts ...simulator.Option) (*device.Session, *ctap2.Dispatcher) {
	t.Helper()

	dev := simulator.New(slog.New(slog.DiscardHandler), opts...)
	sess := device.New(dev, slog.New(slog.DiscardHandler))
	if err := sess.Open("simulator0"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })

	return sess, ctap2.New(sess, slog.New(slog.DiscardHandler))
}

func TestGetInfoReportsFIDO21(t *testing.T) {
	t.Parallel()

	_, d := openSimulatedSession(t)

	info, err := d.GetInfo()
	if err != nil {
		t.Fatalf("GetInfo: %v", err)
	}
	if !info.SupportsVersion("FIDO_2_1") {
		t.Fatalf("Versions = %v, want FIDO_2_1", info.Versions)
	}
	if info.Options["clientPin"] {
		t.Fatal("clientPin option = true before any PIN is set")
	}
}

func TestMakeCredentialThenGetAssertion(t *testing.T) {
	t.Parallel()

	_, d := openSimulatedSession(t)

	clientDataHash := sha256.Sum256([]byte("make-credential challenge"))
	mcResp, err := credential.MakeCredential(d, credential.Request{
		ClientDataHash: clientDataHash[:],
		RP:             credential.RelyingParty{ID: "example.com", Name: "Example"},
		User:           credential.User{ID: []byte("user-1"), Name: "alice", DisplayName: "Alice"},
		PubKeyCredParams: []credential.Algorithm{
			{Type: "public-key", Alg: -7},
		},
	})
	if err != nil {
		t.Fatalf("MakeCredential: %v", err)
	}
	if mcResp.Format != "packed" {
		t.Fatalf("Format = %q, want packed", mcResp.Format)
	}
	if len(mcResp.AttestedCredential.CredentialID) == 0 {
		t.Fatal("credential id is empty")
	}

	gaClientDataHash := sha256.Sum256([]byte("get-assertion challenge"))
	responses, err := assertion.GetAssertion(d, assertion.Request{
		RPID:           "example.com",
		ClientDataHash: gaClientDataHash[:],
	})
	if err != nil {
		t.Fatalf("GetAssertion: %v", err)
	}
	if len(responses) != 1 {
		t.Fatalf("len(responses) = %d, want 1", len(responses))
	}
	if string(responses[0].Credential.ID) != string(mcResp.AttestedCredential.CredentialID) {
		t.Fatal("assertion returned a different credential id than makeCredential minted")
	}
}

func TestGetAssertionDrainsMultipleCredentials(t *testing.T) {
	t.Parallel()

	_, d := openSimulatedSession(t)

	for i := range 3 {
		cdh := sha256.Sum256([]byte{byte(i)})
		_, err := credential.MakeCredential(d, credential.Request{
			ClientDataHash: cdh[:],
			RP:             credential.RelyingParty{ID: "example.com"},
			User:           credential.User{ID: []byte{byte(i)}, Name: "user"},
			PubKeyCredParams: []credential.Algorithm{
				{Type: "public-key", Alg: -7},
			},
		})
		if err != nil {
			t.Fatalf("MakeCredential[%d]: %v", i, err)
		}
	}

	cdh := sha256.Sum256([]byte("assertion"))
	responses, err := assertion.GetAssertion(d, assertion.Request{
		RPID:           "example.com",
		ClientDataHash: cdh[:],
	})
	if err != nil {
		t.Fatalf("GetAssertion: %v", err)
	}
	if len(responses) != 3 {
		t.Fatalf("len(responses) = %d, want 3", len(responses))
	}

	seen := map[string]bool{}
	for _, r := range responses {
		seen[string(r.Credential.ID)] = true
	}
	if len(seen) != 3 {
		t.Fatalf("responses returned %d distinct credentials, want 3", len(seen))
	}
}

func TestGetAssertionNoCredentialsForRP(t *testing.T) {
	t.Parallel()

	_, d := openSimulatedSession(t)

	cdh := sha256.Sum256([]byte("assertion"))
	_, err := assertion.GetAssertion(d, assertion.Request{
		RPID:           "unknown.example",
		ClientDataHash: cdh[:],
	})
	if err == nil {
		t.Fatal("GetAssertion() err = nil, want NoCredentials")
	}
	code, ok := ctap2.Classify(err)
	if !ok || code != ctap2.CodeNoCredentials {
		t.Fatalf("Classify() = (%v, %v), want (CodeNoCredentials, true)", code, ok)
	}
}

func TestMakeCredentialRequiresPinTokenWhenPinIsSet(t *testing.T) {
	t.Parallel()

	_, d := openSimulatedSession(t, simulator.WithPIN("1234"))

	cdh := sha256.Sum256([]byte("challenge"))
	_, err := credential.MakeCredential(d, credential.Request{
		ClientDataHash: cdh[:],
		RP:             credential.RelyingParty{ID: "example.com"},
		User:           credential.User{ID: []byte("u1"), Name: "user"},
		PubKeyCredParams: []credential.Algorithm{
			{Type: "public-key", Alg: -7},
		},
	})
	if err == nil {
		t.Fatal("MakeCredential() err = nil, want PinRequired")
	}
	code, ok := ctap2.Classify(err)
	if !ok || code != ctap2.CodePinRequired {
		t.Fatalf("Classify() = (%v, %v), want (CodePinRequired, true)", code, ok)
	}
}

func TestMakeCredentialWithPinTokenSucceeds(t *testing.T) {
	t.Parallel()

	_, d := openSimulatedSession(t, simulator.WithPIN("1234"))

	ts := pinuv.NewTokenSource(ctap2.NewClientPIN(d), pinuv.Protocol1{})
	if _, err := ts.ObtainWithPin("1234", pinuv.PermMakeCredential, ""); err != nil {
		t.Fatalf("ObtainWithPin: %v", err)
	}

	cdh := sha256.Sum256([]byte("challenge"))
	authParam, err := ts.Sign(cdh[:])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	resp, err := credential.MakeCredential(d, credential.Request{
		ClientDataHash: cdh[:],
		RP:             credential.RelyingParty{ID: "example.com"},
		User:           credential.User{ID: []byte("u1"), Name: "user"},
		PubKeyCredParams: []credential.Algorithm{
			{Type: "public-key", Alg: -7},
		},
		PinUvAuthParam:    authParam,
		PinUvAuthProtocol: ts.Protocol().Number(),
	})
	if err != nil {
		t.Fatalf("MakeCredential: %v", err)
	}
	if len(resp.AttestedCredential.CredentialID) == 0 {
		t.Fatal("credential id is empty")
	}
}

func TestMakeCredentialWithWrongPinFails(t *testing.T) {
	t.Parallel()

	_, d := openSimulatedSession(t, simulator.WithPIN("1234"))

	ts := pinuv.NewTokenSource(ctap2.NewClientPIN(d), pinuv.Protocol1{})
	_, err := ts.ObtainWithPin("0000", pinuv.PermMakeCredential, "")
	if err == nil {
		t.Fatal("ObtainWithPin() err = nil, want PinInvalid")
	}
	code, ok := ctap2.Classify(err)
	if !ok || code != ctap2.CodePinInvalid {
		t.Fatalf("Classify() = (%v, %v), want (CodePinInvalid, true)", code, ok)
	}
}

func TestSetPINThenObtainToken(t *testing.T) {
	t.Parallel()

	_, d := openSimulatedSession(t)

	cp := ctap2.NewClientPIN(d)
	if err := cp.SetPIN(pinuv.Protocol1{}, "123456"); err != nil {
		t.Fatalf("SetPIN: %v", err)
	}

	ts := pinuv.NewTokenSource(cp, pinuv.Protocol1{})
	if _, err := ts.ObtainWithPin("123456", pinuv.PermGetAssertion, ""); err != nil {
		t.Fatalf("ObtainWithPin: %v", err)
	}
}

func TestResetClearsCredentialsAndPIN(t *testing.T) {
	t.Parallel()

	_, d := openSimulatedSession(t, simulator.WithPIN("1234"))

	if err := d.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	info, err := d.GetInfo()
	if err != nil {
		t.Fatalf("GetInfo: %v", err)
	}
	if info.Options["clientPin"] {
		t.Fatal("clientPin option = true after Reset")
	}

	cdh := sha256.Sum256([]byte("assertion"))
	_, err = assertion.GetAssertion(d, assertion.Request{RPID: "example.com", ClientDataHash: cdh[:]})
	code, ok := ctap2.Classify(err)
	if !ok || code != ctap2.CodeNoCredentials {
		t.Fatalf("Classify() = (%v, %v), want (CodeNoCredentials, true) after reset", code, ok)
	}
}
