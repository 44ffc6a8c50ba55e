package ctaphid

import (
	"errors"
	"fmt"
)

// Sentinel errors for transport-level failures.
var (
	// ErrTimeout indicates the caller's deadline elapsed before a
	// message could be reassembled.
	ErrTimeout = errors.New("ctaphid: timeout")

	// ErrProtocol indicates a CONT frame arrived with a non-monotonic or
	// skipped sequence number. Fatal for the channel.
	ErrProtocol = errors.New("ctaphid: protocol violation")

	// ErrMessageTooLarge indicates the caller tried to send a message
	// larger than MaxMessageSize.
	ErrMessageTooLarge = errors.New("ctaphid: message exceeds maximum size")

	// ErrUnexpectedCommand indicates a reply frame's command byte did not
	// match the command that was sent (and was not KEEPALIVE or ERROR).
	ErrUnexpectedCommand = errors.New("ctaphid: unexpected reply command")
)

// TransportError wraps a CmdError frame's one-byte status.
type TransportError struct {
	Code ErrorCode
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ctaphid: device reported error 0x%02x", byte(e.Code))
}

// Is makes any *TransportError target match, so
// errors.Is(err, &ctaphid.TransportError{}) detects the TransportError
// family without caring about the specific code.
func (e *TransportError) Is(target error) bool {
	_, ok := target.(*TransportError)
	return ok
}
