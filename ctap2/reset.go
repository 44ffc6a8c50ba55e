package ctap2

// Reset runs authenticatorReset (0x07), erasing all credentials and
// resetting the PIN. Most authenticators only honor this within a few
// seconds of power-up and require a fresh user presence test.
func (d *Dispatcher) Reset() error {
	_, err := d.Call(CmdReset, nil)
	return err
}

// Selection runs authenticatorSelection (0x0B): it asks the device to
// blink/prompt so the platform can tell which of several connected
// authenticators the user picked, without starting a real operation.
func (d *Dispatcher) Selection() error {
	_, err := d.Call(CmdSelection, nil)
	return err
}
