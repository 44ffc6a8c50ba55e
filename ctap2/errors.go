package ctap2

import (
	"errors"
	"fmt"
)

// Code is the one-byte CTAP2 status code prefixing every authenticator
// reply. Code(0) is success; anything else is an error.
type Code byte

// Status codes from the CTAP2 authenticator response taxonomy.
const (
	CodeSuccess             Code = 0x00
	CodeInvalidCommand      Code = 0x01
	CodeInvalidParameter    Code = 0x02
	CodeInvalidLength       Code = 0x03
	CodeInvalidSeq          Code = 0x04
	CodeTimeout             Code = 0x05
	CodeChannelBusy         Code = 0x06
	CodeLockRequired        Code = 0x0A
	CodeInvalidChannel      Code = 0x0B
	CodeCBORUnexpectedType  Code = 0x11
	CodeInvalidCBOR         Code = 0x12
	CodeMissingParameter    Code = 0x14
	CodeLimitExceeded       Code = 0x15
	CodeFPDatabaseFull      Code = 0x17
	CodeLargeBlobStorageFull Code = 0x18
	CodeCredentialExcluded  Code = 0x19
	CodeProcessing          Code = 0x21
	CodeInvalidCredential   Code = 0x22
	CodeUserActionPending   Code = 0x23
	CodeOperationPending    Code = 0x24
	CodeNoOperations        Code = 0x25
	CodeUnsupportedAlgorithm Code = 0x26
	CodeOperationDenied     Code = 0x27
	CodeKeyStoreFull        Code = 0x28
	CodeNotBusy             Code = 0x29
	CodeNoOperationPending  Code = 0x2A
	CodeUnsupportedOption   Code = 0x2B
	CodeInvalidOption       Code = 0x2C
	CodeKeepaliveCancel     Code = 0x2D
	CodeNoCredentials       Code = 0x2E
	CodeUserActionTimeout   Code = 0x2F
	CodeNotAllowed          Code = 0x30
	CodePinInvalid          Code = 0x31
	CodePinBlocked          Code = 0x32
	CodePinAuthInvalid      Code = 0x33
	CodePinAuthBlocked      Code = 0x34
	CodePinNotSet           Code = 0x35
	CodePinRequired         Code = 0x36
	CodePinPolicyViolation  Code = 0x37
	CodeRequestTooLarge     Code = 0x39
	CodeActionTimeout       Code = 0x3A
	CodeUpRequired          Code = 0x3B
	CodeUvBlocked           Code = 0x3C
	CodeIntegrityFailure    Code = 0x3D
	CodeInvalidSubcommand   Code = 0x3E
	CodeUvInvalid           Code = 0x3F
	CodeUnauthorizedPermission Code = 0x40
	CodeOther               Code = 0x7F
)

// String renders a human-readable status name, falling back to the raw
// byte value for anything outside the known taxonomy (extension and
// vendor ranges included).
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("status(0x%02x)", byte(c))
}

var codeNames = map[Code]string{
	CodeSuccess:              "Success",
	CodeInvalidCommand:       "InvalidCommand",
	CodeInvalidParameter:     "InvalidParameter",
	CodeInvalidLength:        "InvalidLength",
	CodeInvalidSeq:           "InvalidSeq",
	CodeTimeout:              "Timeout",
	CodeChannelBusy:          "ChannelBusy",
	CodeLockRequired:         "LockRequired",
	CodeInvalidChannel:       "InvalidChannel",
	CodeCBORUnexpectedType:   "CBORUnexpectedType",
	CodeInvalidCBOR:          "InvalidCBOR",
	CodeMissingParameter:     "MissingParameter",
	CodeLimitExceeded:        "LimitExceeded",
	CodeFPDatabaseFull:       "FPDatabaseFull",
	CodeLargeBlobStorageFull: "LargeBlobStorageFull",
	CodeCredentialExcluded:   "CredentialExcluded",
	CodeProcessing:           "Processing",
	CodeInvalidCredential:    "InvalidCredential",
	CodeUserActionPending:    "UserActionPending",
	CodeOperationPending:     "OperationPending",
	CodeNoOperations:         "NoOperations",
	CodeUnsupportedAlgorithm: "UnsupportedAlgorithm",
	CodeOperationDenied:      "OperationDenied",
	CodeKeyStoreFull:         "KeyStoreFull",
	CodeNotBusy:              "NotBusy",
	CodeNoOperationPending:   "NoOperationPending",
	CodeUnsupportedOption:    "UnsupportedOption",
	CodeInvalidOption:        "InvalidOption",
	CodeKeepaliveCancel:      "KeepaliveCancel",
	CodeNoCredentials:        "NoCredentials",
	CodeUserActionTimeout:    "UserActionTimeout",
	CodeNotAllowed:           "NotAllowed",
	CodePinInvalid:           "PinInvalid",
	CodePinBlocked:           "PinBlocked",
	CodePinAuthInvalid:       "PinAuthInvalid",
	CodePinAuthBlocked:       "PinAuthBlocked",
	CodePinNotSet:            "PinNotSet",
	CodePinRequired:          "PinRequired",
	CodePinPolicyViolation:   "PinPolicyViolation",
	CodeRequestTooLarge:      "RequestTooLarge",
	CodeActionTimeout:        "ActionTimeout",
	CodeUpRequired:           "UpRequired",
	CodeUvBlocked:            "UvBlocked",
	CodeIntegrityFailure:     "IntegrityFailure",
	CodeInvalidSubcommand:    "InvalidSubcommand",
	CodeUvInvalid:            "UvInvalid",
	CodeUnauthorizedPermission: "UnauthorizedPermission",
	CodeOther:                "Other",
}

// DeviceError wraps a non-success status code returned by an
// authenticator for a single command.
type DeviceError struct {
	Code Code
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("ctap2: authenticator returned %s", e.Code)
}

// Classify reports the Code an error carries, if it (or something it
// wraps) is a *DeviceError.
func Classify(err error) (Code, bool) {
	var de *DeviceError
	if errors.As(err, &de) {
		return de.Code, true
	}
	return 0, false
}

// RequiresTokenRefresh reports whether code indicates the caller's
// cached PIN/UV token is no longer valid and a new one must be obtained
// before retrying — either because the authenticator rejected the proof
// (PinAuthInvalid), or because it never had one cached in the first
// place (PinRequired).
func RequiresTokenRefresh(code Code) bool {
	return code == CodePinAuthInvalid || code == CodePinRequired
}

// ErrEmptyReply indicates an authenticator reply was zero bytes long,
// without even a status byte. A bare success status with no CBOR body is
// not an error: the dispatcher returns a nil value for it.
var ErrEmptyReply = errors.New("ctap2: empty success reply")
