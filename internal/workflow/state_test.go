package workflow

import "testing"

func TestValidateTransition(t *testing.T) {
	cases := []struct {
		from, to State
		ok       bool
	}{
		{StateIdle, StateClassifying, true},
		{StateClassifying, StateDispatching, true},
		{StateClassifying, StateComposing, true},
		{StateDispatching, StateEncrypting, true},
		{StateDispatching, StateDecrypting, true},
		{StateDispatching, StateListing, true},
		{StateDispatching, StateHelping, true},
		{StateDispatching, StateComposing, true},
		{StateEncrypting, StateComposing, true},
		{StateDecrypting, StateComposing, true},
		{StateListing, StateComposing, true},
		{StateHelping, StateComposing, true},
		{StateComposing, StateIdle, true},

		{StateIdle, StateEncrypting, false},
		{StateIdle, StateComposing, false},
		{StateEncrypting, StateDecrypting, false},
		{StateComposing, StateClassifying, false},
		{StateListing, StateIdle, false},
	}
	for _, tc := range cases {
		err := ValidateTransition(tc.from, tc.to)
		if tc.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error: %v", tc.from, tc.to, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s -> %s: expected rejection", tc.from, tc.to)
		}
	}
}

func TestValidateTransitionUnknownState(t *testing.T) {
	if err := ValidateTransition(State("bogus"), StateIdle); err == nil {
		t.Fatal("expected error for unknown from-state")
	}
	if err := ValidateTransition(StateIdle, State("bogus")); err == nil {
		t.Fatal("expected error for unknown to-state")
	}
}

func TestEveryStateDrainsToIdle(t *testing.T) {
	// Every state must have a path back to Idle, or a turn could wedge.
	for from := range allowedTransitions {
		if from == StateIdle {
			continue
		}
		if !reachesIdle(from, map[State]bool{}) {
			t.Errorf("state %s has no path back to %s", from, StateIdle)
		}
	}
}

func reachesIdle(from State, seen map[State]bool) bool {
	if from == StateIdle {
		return true
	}
	if seen[from] {
		return false
	}
	seen[from] = true
	for to := range allowedTransitions[from] {
		if reachesIdle(to, seen) {
			return true
		}
	}
	return false
}
