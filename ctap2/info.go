package ctap2

import (
	"fmt"

	"github.com/dantte-lp/goctap/cbor"
)

// authenticatorGetInfo response member indices (CTAP2 spec numbering).
const (
	infoVersions              = 1
	infoExtensions            = 2
	infoAAGUID                = 3
	infoOptions               = 4
	infoMaxMsgSize            = 5
	infoPinUvAuthProtocols    = 6
	infoMaxCredentialCountInList = 7
	infoMaxCredentialIDLength = 8
	infoTransports            = 9
	infoAlgorithms            = 10
	infoMaxSerializedLargeBlob = 11
	infoForcePINChange        = 12
	infoMinPINLength          = 13
	infoFirmwareVersion       = 14
	infoMaxCredBlobLength     = 15
	infoMaxRPIDsForSetMinPIN  = 16
	infoPreferredPlatformUV   = 17
	infoUVModality            = 18
	infoRemainingDiscoverableCredentials = 20
)

// DeviceInfo is the decoded authenticatorGetInfo response.
type DeviceInfo struct {
	Versions               []string
	Extensions             []string
	AAGUID                 []byte
	Options                map[string]bool
	MaxMsgSize             uint64
	PinUvAuthProtocols     []int
	MaxCredentialCountInList uint64
	MaxCredentialIDLength  uint64
	Transports             []string
	Algorithms             []Algorithm
	MinPINLength           uint64
	ForcePINChange         bool
	FirmwareVersion        uint64
	RemainingDiscoverableCredentials uint64
	HasRemainingDiscoverableCredentials bool
}

// Algorithm is one entry of the getInfo algorithms array: a COSE
// algorithm identifier paired with the credential type it applies to
// (always "public-key" today, but the field is carried through as-is).
type Algorithm struct {
	Type string
	Alg  int64
}

// SupportsVersion reports whether info.Versions contains v (e.g. "FIDO_2_0",
// "FIDO_2_1", "U2F_V2").
func (info DeviceInfo) SupportsVersion(v string) bool {
	for _, have := range info.Versions {
		if have == v {
			return true
		}
	}
	return false
}

// SupportsPinUvAuthProtocol reports whether the authenticator advertised
// protocol number n.
func (info DeviceInfo) SupportsPinUvAuthProtocol(n int) bool {
	for _, have := range info.PinUvAuthProtocols {
		if have == n {
			return true
		}
	}
	return len(info.PinUvAuthProtocols) == 0 && n == 1 // CTAP 2.0 devices omit the list and imply protocol 1
}

// GetInfo runs authenticatorGetInfo (0x04) and decodes the response.
func (d *Dispatcher) GetInfo() (DeviceInfo, error) {
	v, err := d.Call(CmdGetInfo, nil)
	if err != nil {
		return DeviceInfo{}, err
	}

	m, ok := v.(cbor.Map)
	if !ok {
		return DeviceInfo{}, fmt.Errorf("ctap2: getInfo reply is not a map")
	}

	return decodeDeviceInfo(m)
}

func decodeDeviceInfo(m cbor.Map) (DeviceInfo, error) {
	var info DeviceInfo

	if v, ok := m.GetUint(infoVersions); ok {
		info.Versions = stringArray(v)
	}
	if v, ok := m.GetUint(infoExtensions); ok {
		info.Extensions = stringArray(v)
	}
	if v, ok := m.GetUint(infoAAGUID); ok {
		if b, ok := v.(cbor.Bytes); ok {
			info.AAGUID = []byte(b)
		}
	}
	if v, ok := m.GetUint(infoOptions); ok {
		info.Options = boolMap(v)
	}
	if v, ok := m.GetUint(infoMaxMsgSize); ok {
		info.MaxMsgSize = uintValue(v)
	}
	if v, ok := m.GetUint(infoPinUvAuthProtocols); ok {
		info.PinUvAuthProtocols = intArray(v)
	}
	if v, ok := m.GetUint(infoMaxCredentialCountInList); ok {
		info.MaxCredentialCountInList = uintValue(v)
	}
	if v, ok := m.GetUint(infoMaxCredentialIDLength); ok {
		info.MaxCredentialIDLength = uintValue(v)
	}
	if v, ok := m.GetUint(infoTransports); ok {
		info.Transports = stringArray(v)
	}
	if v, ok := m.GetUint(infoAlgorithms); ok {
		info.Algorithms = algorithmArray(v)
	}
	if v, ok := m.GetUint(infoMinPINLength); ok {
		info.MinPINLength = uintValue(v)
	}
	if v, ok := m.GetUint(infoForcePINChange); ok {
		if b, ok := v.(cbor.Bool); ok {
			info.ForcePINChange = bool(b)
		}
	}
	if v, ok := m.GetUint(infoFirmwareVersion); ok {
		info.FirmwareVersion = uintValue(v)
	}
	if v, ok := m.GetUint(infoRemainingDiscoverableCredentials); ok {
		info.RemainingDiscoverableCredentials = uintValue(v)
		info.HasRemainingDiscoverableCredentials = true
	}

	return info, nil
}

func uintValue(v cbor.Value) uint64 {
	switch t := v.(type) {
	case cbor.Uint:
		return uint64(t)
	case cbor.Int:
		return uint64(t)
	default:
		return 0
	}
}

func stringArray(v cbor.Value) []string {
	arr, ok := v.(cbor.Array)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(cbor.Text); ok {
			out = append(out, string(s))
		}
	}
	return out
}

func intArray(v cbor.Value) []int {
	arr, ok := v.(cbor.Array)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(arr))
	for _, e := range arr {
		out = append(out, int(uintValue(e)))
	}
	return out
}

func boolMap(v cbor.Value) map[string]bool {
	m, ok := v.(cbor.Map)
	if !ok {
		return nil
	}
	out := make(map[string]bool, len(m))
	for _, entry := range m {
		key, ok := entry.Key.(cbor.Text)
		if !ok {
			continue
		}
		if b, ok := entry.Value.(cbor.Bool); ok {
			out[string(key)] = bool(b)
		}
	}
	return out
}

func algorithmArray(v cbor.Value) []Algorithm {
	arr, ok := v.(cbor.Array)
	if !ok {
		return nil
	}
	out := make([]Algorithm, 0, len(arr))
	for _, e := range arr {
		entryMap, ok := e.(cbor.Map)
		if !ok {
			continue
		}
		var alg Algorithm
		if tv, ok := entryMap.Get(cbor.Text("type")); ok {
			if s, ok := tv.(cbor.Text); ok {
				alg.Type = string(s)
			}
		}
		if av, ok := entryMap.Get(cbor.Text("alg")); ok {
			switch n := av.(type) {
			case cbor.Int:
				alg.Alg = int64(n)
			case cbor.Uint:
				alg.Alg = int64(n)
			}
		}
		out = append(out, alg)
	}
	return out
}
