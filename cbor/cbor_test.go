package cbor_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dantte-lp/goctap/cbor"
)

// TestCanonicalEncoding verifies the worked example from the protocol
// specification: encoding {3: h'', 1: 2, 2: "fido"} must produce map
// entries in key order 1, 2, 3.
func TestCanonicalEncoding(t *testing.T) {
	t.Parallel()

	v := cbor.Map{
		{Key: cbor.Uint(3), Value: cbor.Bytes(nil)},
		{Key: cbor.Uint(1), Value: cbor.Uint(2)},
		{Key: cbor.Uint(2), Value: cbor.Text("fido")},
	}

	got, err := cbor.Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := []byte{
		0xA3,
		0x01, 0x02,
		0x02, 0x64, 0x66, 0x69, 0x64, 0x6F,
		0x03, 0x40,
	}

	if !bytes.Equal(got, want) {
		t.Fatalf("Encode() = % X, want % X", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		v    cbor.Value
	}{
		{"zero", cbor.Uint(0)},
		{"small uint", cbor.Uint(10)},
		{"uint8 boundary", cbor.Uint(23)},
		{"uint8", cbor.Uint(24)},
		{"uint16", cbor.Uint(300)},
		{"uint32", cbor.Uint(70000)},
		{"uint64", cbor.Uint(1 << 40)},
		{"negative one", cbor.Int(-1)},
		{"negative large", cbor.Int(-1000)},
		{"empty bytes", cbor.Bytes{}},
		{"bytes", cbor.Bytes("hello")},
		{"text", cbor.Text("rp.example.com")},
		{"bool true", cbor.Bool(true)},
		{"bool false", cbor.Bool(false)},
		{"null", cbor.Null{}},
		{"array", cbor.Array{cbor.Uint(1), cbor.Text("x"), cbor.Bool(true)}},
		{
			"nested map",
			cbor.Map{
				{Key: cbor.Uint(1), Value: cbor.Text("es256")},
				{Key: cbor.Uint(2), Value: cbor.Array{cbor.Uint(1), cbor.Uint(2)}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			encoded, err := cbor.Encode(tt.v)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}

			decoded, n, err := cbor.Decode(encoded, cbor.DecodeOptions{Strict: true})
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if n != len(encoded) {
				t.Fatalf("Decode consumed %d of %d bytes", n, len(encoded))
			}
			if !cbor.Equal(decoded, tt.v) {
				t.Fatalf("Decode() = %s, want %s", cbor.String(decoded), cbor.String(tt.v))
			}

			reencoded, err := cbor.Encode(decoded)
			if err != nil {
				t.Fatalf("re-Encode: %v", err)
			}
			if !bytes.Equal(reencoded, encoded) {
				t.Fatalf("re-Encode() = % X, want % X", reencoded, encoded)
			}
		})
	}
}

func TestDecodeTruncated(t *testing.T) {
	t.Parallel()

	// A byte-string head claiming 4 bytes with only 2 available.
	b := []byte{0x44, 0x01, 0x02}

	_, _, err := cbor.Decode(b, cbor.DecodeOptions{})
	if !errors.Is(err, cbor.ErrTruncated) {
		t.Fatalf("Decode() error = %v, want ErrTruncated", err)
	}
}

func TestDecodeDuplicateKey(t *testing.T) {
	t.Parallel()

	// {1: 1, 1: 2} — same key twice.
	b := []byte{0xA2, 0x01, 0x01, 0x01, 0x02}

	_, _, err := cbor.Decode(b, cbor.DecodeOptions{})
	if !errors.Is(err, cbor.ErrDuplicateKey) {
		t.Fatalf("Decode() error = %v, want ErrDuplicateKey", err)
	}
}

func TestDecodeNonCanonicalStrict(t *testing.T) {
	t.Parallel()

	// Uint 1 encoded with an unnecessary 1-byte extension (0x18 0x01)
	// instead of the shortest form (0x01).
	b := []byte{0x18, 0x01}

	_, _, err := cbor.Decode(b, cbor.DecodeOptions{Strict: true})
	if !errors.Is(err, cbor.ErrNonCanonical) {
		t.Fatalf("Decode() error = %v, want ErrNonCanonical", err)
	}

	// The same bytes are accepted in non-strict mode (real authenticators
	// sometimes emit this).
	v, n, err := cbor.Decode(b, cbor.DecodeOptions{Strict: false})
	if err != nil {
		t.Fatalf("Decode() non-strict error = %v", err)
	}
	if n != 2 {
		t.Fatalf("Decode() consumed %d bytes, want 2", n)
	}
	if !cbor.Equal(v, cbor.Uint(1)) {
		t.Fatalf("Decode() = %s, want 1", cbor.String(v))
	}
}

func TestDecodeMapOutOfOrderStrict(t *testing.T) {
	t.Parallel()

	// {2: 1, 1: 2} — canonical order would put key 1 first.
	b := []byte{0xA2, 0x02, 0x01, 0x01, 0x02}

	_, _, err := cbor.Decode(b, cbor.DecodeOptions{Strict: true})
	if !errors.Is(err, cbor.ErrNonCanonical) {
		t.Fatalf("Decode() error = %v, want ErrNonCanonical", err)
	}

	// Non-strict mode tolerates it (some authenticators do not sort).
	v, _, err := cbor.Decode(b, cbor.DecodeOptions{Strict: false})
	if err != nil {
		t.Fatalf("Decode() non-strict error = %v", err)
	}
	m, ok := v.(cbor.Map)
	if !ok || len(m) != 2 {
		t.Fatalf("Decode() = %v, want a 2-entry map", v)
	}
}

func TestDecodeDepthExceeded(t *testing.T) {
	t.Parallel()

	// Five levels of nested single-element arrays: [[[[[1]]]]].
	inner := cbor.Value(cbor.Uint(1))
	for range 5 {
		inner = cbor.Array{inner}
	}

	b, err := cbor.Encode(inner)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	_, _, err = cbor.Decode(b, cbor.DecodeOptions{})
	if !errors.Is(err, cbor.ErrDepthExceeded) {
		t.Fatalf("Decode() error = %v, want ErrDepthExceeded", err)
	}
}

func TestMapGet(t *testing.T) {
	t.Parallel()

	m := cbor.Map{
		{Key: cbor.Uint(1), Value: cbor.Text("fmt")},
		{Key: cbor.Text("rpId"), Value: cbor.Text("example.com")},
	}

	v, ok := m.GetUint(1)
	if !ok || !cbor.Equal(v, cbor.Text("fmt")) {
		t.Fatalf("GetUint(1) = %v, %v", v, ok)
	}

	v, ok = m.Get(cbor.Text("rpId"))
	if !ok || !cbor.Equal(v, cbor.Text("example.com")) {
		t.Fatalf("Get(rpId) = %v, %v", v, ok)
	}

	if _, ok := m.GetUint(99); ok {
		t.Fatalf("GetUint(99) found a value, want not found")
	}
}
