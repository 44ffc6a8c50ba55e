package credential

import (
	"errors"
	"fmt"

	"github.com/dantte-lp/goctap/cbor"
)

// ErrUnsupportedFormat indicates an attStmt fmt this library does not
// know how to validate.
var ErrUnsupportedFormat = errors.New("credential: unsupported attestation format")

// AttestationStatement is the decoded, structurally-validated attStmt.
// Which fields are populated depends on Format; signature verification
// against a trust root is left to the caller.
type AttestationStatement struct {
	Format   string
	Alg      int64 // packed
	Sig      []byte
	X5C      [][]byte // certificate chain, leaf first
	Ver      string   // tpm
	CertInfo []byte   // tpm
	PubArea  []byte   // tpm
}

// decodeAttStmt validates attStmt against the shape its fmt mandates and
// returns the typed result. Unknown formats are an error rather than a
// best-effort decode: a caller relying on attestation should know
// exactly what it got.
func decodeAttStmt(format string, v cbor.Value) (AttestationStatement, error) {
	m, ok := v.(cbor.Map)
	if !ok && format != "none" {
		return AttestationStatement{}, fmt.Errorf("credential: attStmt is not a map for format %q", format)
	}

	stmt := AttestationStatement{Format: format}

	switch format {
	case "packed":
		alg, ok := m.Get(cbor.Text("alg"))
		if !ok {
			return AttestationStatement{}, fmt.Errorf("credential: packed attStmt missing alg")
		}
		stmt.Alg = intFrom(alg)

		sig, ok := m.Get(cbor.Text("sig"))
		if !ok {
			return AttestationStatement{}, fmt.Errorf("credential: packed attStmt missing sig")
		}
		sb, ok := sig.(cbor.Bytes)
		if !ok {
			return AttestationStatement{}, fmt.Errorf("credential: packed attStmt sig is not a byte string")
		}
		stmt.Sig = []byte(sb)

		if x5c, ok := m.Get(cbor.Text("x5c")); ok {
			chain, err := decodeX5C(x5c)
			if err != nil {
				return AttestationStatement{}, err
			}
			stmt.X5C = chain
		}

	case "fido-u2f":
		sig, ok := m.Get(cbor.Text("sig"))
		if !ok {
			return AttestationStatement{}, fmt.Errorf("credential: fido-u2f attStmt missing sig")
		}
		sb, ok := sig.(cbor.Bytes)
		if !ok {
			return AttestationStatement{}, fmt.Errorf("credential: fido-u2f attStmt sig is not a byte string")
		}
		stmt.Sig = []byte(sb)

		x5c, ok := m.Get(cbor.Text("x5c"))
		if !ok {
			return AttestationStatement{}, fmt.Errorf("credential: fido-u2f attStmt missing x5c")
		}
		chain, err := decodeX5C(x5c)
		if err != nil {
			return AttestationStatement{}, err
		}
		stmt.X5C = chain

	case "tpm":
		alg, ok := m.Get(cbor.Text("alg"))
		if !ok {
			return AttestationStatement{}, fmt.Errorf("credential: tpm attStmt missing alg")
		}
		stmt.Alg = intFrom(alg)

		sig, ok := m.Get(cbor.Text("sig"))
		if !ok {
			return AttestationStatement{}, fmt.Errorf("credential: tpm attStmt missing sig")
		}
		stmt.Sig = bytesOf(sig)

		x5c, ok := m.Get(cbor.Text("x5c"))
		if !ok {
			return AttestationStatement{}, fmt.Errorf("credential: tpm attStmt missing x5c")
		}
		chain, err := decodeX5C(x5c)
		if err != nil {
			return AttestationStatement{}, err
		}
		stmt.X5C = chain

		ver, ok := m.Get(cbor.Text("ver"))
		if !ok {
			return AttestationStatement{}, fmt.Errorf("credential: tpm attStmt missing ver")
		}
		verText, ok := ver.(cbor.Text)
		if !ok {
			return AttestationStatement{}, fmt.Errorf("credential: tpm attStmt ver is not a text string")
		}
		stmt.Ver = string(verText)

		certInfo, ok := m.Get(cbor.Text("certInfo"))
		if !ok {
			return AttestationStatement{}, fmt.Errorf("credential: tpm attStmt missing certInfo")
		}
		stmt.CertInfo = bytesOf(certInfo)

		pubArea, ok := m.Get(cbor.Text("pubArea"))
		if !ok {
			return AttestationStatement{}, fmt.Errorf("credential: tpm attStmt missing pubArea")
		}
		stmt.PubArea = bytesOf(pubArea)

	case "apple":
		x5c, ok := m.Get(cbor.Text("x5c"))
		if !ok {
			return AttestationStatement{}, fmt.Errorf("credential: apple attStmt missing x5c")
		}
		chain, err := decodeX5C(x5c)
		if err != nil {
			return AttestationStatement{}, err
		}
		stmt.X5C = chain

	case "none":
		if m != nil && len(m) != 0 {
			return AttestationStatement{}, fmt.Errorf("credential: none attStmt must be empty, got %d members", len(m))
		}

	default:
		return AttestationStatement{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	return stmt, nil
}

func decodeX5C(v cbor.Value) ([][]byte, error) {
	arr, ok := v.(cbor.Array)
	if !ok {
		return nil, fmt.Errorf("credential: x5c is not an array")
	}
	chain := make([][]byte, 0, len(arr))
	for i, cert := range arr {
		b, ok := cert.(cbor.Bytes)
		if !ok {
			return nil, fmt.Errorf("credential: x5c[%d] is not a byte string", i)
		}
		chain = append(chain, []byte(b))
	}
	return chain, nil
}

func bytesOf(v cbor.Value) []byte {
	if b, ok := v.(cbor.Bytes); ok {
		return []byte(b)
	}
	return nil
}

func intFrom(v cbor.Value) int64 {
	switch t := v.(type) {
	case cbor.Int:
		return int64(t)
	case cbor.Uint:
		return int64(t)
	default:
		return 0
	}
}
