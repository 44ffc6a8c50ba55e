package device

// SetNonceForTest pins the INIT nonce Open/OpenWithInfo will send instead
// of drawing one from crypto/rand. It exists only in the test binary —
// there is no production entry point that can reach it — and replaces
// what was once a build-time switch with an ordinary field write.
func (s *Session) SetNonceForTest(nonce []byte) {
	s.testNonce = nonce
}
