package ctap2

// AssertionState is the get-assertion state machine, implemented as a
// pure function over a transition table. It tracks nothing about wire
// encoding or devices, and GetAssertion in the assertion package does not
// use it; it stands alone as a model of the call sequence.
//
// State diagram:
//
//	Idle --EventIssued--> SentGA --EventSingleCredential--> Done
//	                       SentGA --EventMultipleCredentials--> ReceivingNext
//	                       ReceivingNext --EventNextCredential (more remain)--> ReceivingNext
//	                       ReceivingNext --EventNextCredential (last one)--> Done
type AssertionState uint8

const (
	AssertionIdle AssertionState = iota
	AssertionSentGA
	AssertionReceivingNext
	AssertionDone
)

func (s AssertionState) String() string {
	switch s {
	case AssertionIdle:
		return "Idle"
	case AssertionSentGA:
		return "SentGA"
	case AssertionReceivingNext:
		return "ReceivingNext"
	case AssertionDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// AssertionEvent drives AssertionState transitions.
type AssertionEvent uint8

const (
	// EventIssued marks authenticatorGetAssertion having been sent.
	EventIssued AssertionEvent = iota

	// EventSingleCredential marks a getAssertion reply with
	// numberOfCredentials <= 1: no getNextAssertion calls follow.
	EventSingleCredential

	// EventMultipleCredentials marks a getAssertion reply with
	// numberOfCredentials > 1: getNextAssertion calls follow.
	EventMultipleCredentials

	// EventNextCredentialMore marks a getNextAssertion reply that is not
	// the last one expected.
	EventNextCredentialMore

	// EventNextCredentialLast marks the final expected getNextAssertion
	// reply.
	EventNextCredentialLast
)

type assertionStateEvent struct {
	state AssertionState
	event AssertionEvent
}

var assertionFSMTable = map[assertionStateEvent]AssertionState{
	{AssertionIdle, EventIssued}: AssertionSentGA,

	{AssertionSentGA, EventSingleCredential}:    AssertionDone,
	{AssertionSentGA, EventMultipleCredentials}: AssertionReceivingNext,

	{AssertionReceivingNext, EventNextCredentialMore}: AssertionReceivingNext,
	{AssertionReceivingNext, EventNextCredentialLast}: AssertionDone,
}

// AssertionFSMResult holds the outcome of applying an event.
type AssertionFSMResult struct {
	OldState AssertionState
	NewState AssertionState
	Changed  bool
}

// ApplyAssertionEvent applies event to currentState and returns the
// result. Events with no table entry leave the state unchanged.
func ApplyAssertionEvent(currentState AssertionState, event AssertionEvent) AssertionFSMResult {
	next, ok := assertionFSMTable[assertionStateEvent{currentState, event}]
	if !ok {
		return AssertionFSMResult{OldState: currentState, NewState: currentState, Changed: false}
	}
	return AssertionFSMResult{OldState: currentState, NewState: next, Changed: currentState != next}
}
