package device

// Capability flag bits reported in the CTAPHID_INIT reply.
const (
	capWink byte = 0x01
	capCBOR byte = 0x04
	capNMsg byte = 0x08
)

// Capabilities describes what an authenticator announced in its INIT
// handshake reply.
type Capabilities struct {
	// Wink indicates the device supports CTAPHID_WINK.
	Wink bool
	// CBOR indicates the device supports CTAP2 (the CmdCBOR carrier).
	// ForceU2F/ForceFIDO2 on Session flip this bit independently of what
	// the device actually announced, to steer workflow selection.
	CBOR bool
	// NMsg indicates the device does NOT support CTAPHID_MSG (U2F).
	NMsg bool
}

func capabilitiesFromFlags(flags byte) Capabilities {
	return Capabilities{
		Wink: flags&capWink != 0,
		CBOR: flags&capCBOR != 0,
		NMsg: flags&capNMsg != 0,
	}
}
