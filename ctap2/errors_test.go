package ctap2_test

import (
	"fmt"
	"testing"

	"github.com/dantte-lp/goctap/ctap2"
)

func TestClassifyUnwrapsDeviceError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("get assertion: %w", &ctap2.DeviceError{Code: ctap2.CodeUpRequired})

	code, ok := ctap2.Classify(err)
	if !ok {
		t.Fatal("Classify() ok = false")
	}
	if code != ctap2.CodeUpRequired {
		t.Fatalf("Classify() code = %v, want UpRequired", code)
	}
}

func TestClassifyFalseForOtherErrors(t *testing.T) {
	t.Parallel()

	_, ok := ctap2.Classify(fmt.Errorf("boom"))
	if ok {
		t.Fatal("Classify() ok = true for an unrelated error")
	}
}

func TestRequiresTokenRefresh(t *testing.T) {
	t.Parallel()

	cases := map[ctap2.Code]bool{
		ctap2.CodePinAuthInvalid: true,
		ctap2.CodePinRequired:    true,
		ctap2.CodePinInvalid:     false,
		ctap2.CodeSuccess:        false,
	}
	for code, want := range cases {
		if got := ctap2.RequiresTokenRefresh(code); got != want {
			t.Errorf("RequiresTokenRefresh(%v) = %v, want %v", code, got, want)
		}
	}
}

func TestCodeStringUnknownFallsBackToHex(t *testing.T) {
	t.Parallel()

	got := ctap2.Code(0xE5).String()
	if got != "status(0xe5)" {
		t.Fatalf("Code(0xE5).String() = %q, want %q", got, "status(0xe5)")
	}
}
