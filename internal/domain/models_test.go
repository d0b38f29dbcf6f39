package domain

import "testing"

func TestImageKind_Valid(t *testing.T) {
	for _, k := range []ImageKind{ImageKindPerson, ImageKindOutfit, ImageKindResult} {
		if !k.Valid() {
			t.Fatalf("%q should be valid", k)
		}
	}
	for _, k := range []ImageKind{"", "selfie", "RESULT"} {
		if k.Valid() {
			t.Fatalf("%q should be invalid", k)
		}
	}
}

func TestSwapStatus_Terminal(t *testing.T) {
	if SwapStatusPending.Terminal() || SwapStatusProcessing.Terminal() {
		t.Fatalf("pending/processing must not be terminal")
	}
	if !SwapStatusCompleted.Terminal() || !SwapStatusFailed.Terminal() {
		t.Fatalf("completed/failed must be terminal")
	}
}

func TestSwapStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to SwapStatus
		want     bool
	}{
		{SwapStatusPending, SwapStatusProcessing, true},
		// Completion requires passing through processing first.
		{SwapStatusPending, SwapStatusCompleted, false},
		{SwapStatusPending, SwapStatusFailed, true},
		{SwapStatusProcessing, SwapStatusCompleted, true},
		{SwapStatusProcessing, SwapStatusFailed, true},
		{SwapStatusProcessing, SwapStatusPending, false},
		{SwapStatusCompleted, SwapStatusFailed, false},
		{SwapStatusCompleted, SwapStatusProcessing, false},
		{SwapStatusFailed, SwapStatusPending, false},
		{SwapStatusFailed, SwapStatusCompleted, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s → %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
