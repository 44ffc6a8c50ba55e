package ctaphid_test

import (
	"testing"

	"github.com/dantte-lp/goctap/ctaphid"
)

func TestWireFSMSingleFrameRoundTrip(t *testing.T) {
	t.Parallel()

	state := ctaphid.WireIdle
	for _, ev := range []ctaphid.WireEvent{
		ctaphid.EventSendInit,
		ctaphid.EventLastFragment,
		ctaphid.EventReplyAssembled,
	} {
		state = ctaphid.ApplyWireEvent(state, ev).NewState
	}
	if state != ctaphid.WireDone {
		t.Fatalf("final state = %v, want Done", state)
	}
}

func TestWireFSMMultiFrameRoundTrip(t *testing.T) {
	t.Parallel()

	state := ctaphid.WireIdle
	for _, ev := range []ctaphid.WireEvent{
		ctaphid.EventSendInit,
		ctaphid.EventMoreFragments,
		ctaphid.EventMoreFragments,
		ctaphid.EventLastFragment,
		ctaphid.EventReplyAssembled,
	} {
		state = ctaphid.ApplyWireEvent(state, ev).NewState
	}
	if state != ctaphid.WireDone {
		t.Fatalf("final state = %v, want Done", state)
	}
}

func TestWireFSMUnknownTransitionIgnored(t *testing.T) {
	t.Parallel()

	r := ctaphid.ApplyWireEvent(ctaphid.WireDone, ctaphid.EventSendInit)
	if r.Changed {
		t.Fatalf("Done+SendInit should be a no-op, got %v", r.NewState)
	}
}
