// ctap2diag is a protocol-level smoke-testing CLI for FIDO2/CTAP2
// authenticators. It drives authenticatorGetInfo, clientPIN, makeCredential,
// and getAssertion against a device through whatever ctaphid.Transport the
// caller wires in; today that's always the in-memory simulator, since no
// platform HID/NFC transport ships with this module.
package main

import (
	"os"

	"github.com/dantte-lp/goctap/cmd/ctap2diag/commands"
)

func main() {
	os.Exit(commands.Execute())
}
