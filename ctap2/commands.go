package ctap2

import "fmt"

// Command is the one-byte CTAP2 command code sent as the first byte of
// a CTAPHID_CBOR payload.
type Command byte

const (
	CmdMakeCredential              Command = 0x01
	CmdGetAssertion                Command = 0x02
	CmdGetInfo                     Command = 0x04
	CmdClientPIN                   Command = 0x06
	CmdReset                       Command = 0x07
	CmdGetNextAssertion            Command = 0x08
	CmdBioEnrollment               Command = 0x09
	CmdCredentialManagement        Command = 0x0A
	CmdSelection                   Command = 0x0B
	CmdLargeBlobs                  Command = 0x0C
	CmdConfig                      Command = 0x0D
	CmdBioEnrollmentPreview        Command = 0x40
	CmdCredentialManagementPreview Command = 0x41
)

func (c Command) String() string {
	switch c {
	case CmdMakeCredential:
		return "authenticatorMakeCredential"
	case CmdGetAssertion:
		return "authenticatorGetAssertion"
	case CmdGetInfo:
		return "authenticatorGetInfo"
	case CmdClientPIN:
		return "authenticatorClientPIN"
	case CmdReset:
		return "authenticatorReset"
	case CmdGetNextAssertion:
		return "authenticatorGetNextAssertion"
	case CmdBioEnrollment:
		return "authenticatorBioEnrollment"
	case CmdCredentialManagement:
		return "authenticatorCredentialManagement"
	case CmdSelection:
		return "authenticatorSelection"
	case CmdLargeBlobs:
		return "authenticatorLargeBlobs"
	case CmdConfig:
		return "authenticatorConfig"
	case CmdBioEnrollmentPreview:
		return "authenticatorBioEnrollment(preview)"
	case CmdCredentialManagementPreview:
		return "authenticatorCredentialManagement(preview)"
	default:
		return fmt.Sprintf("Command(0x%02x)", byte(c))
	}
}
