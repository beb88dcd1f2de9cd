// Package workflow is the orchestration core: an explicit finite state
// machine that sequences intent classification, store and gateway calls,
// and reply composition for one user turn. The original graph-of-nodes
// design is flattened into named states with a declared transition table
// so every move is validated and testable.
package workflow

import "fmt"

// State is a workflow engine state. Each turn starts at Idle and ends
// back at Idle once a reply has been composed.
type State string

const (
	StateIdle        State = "idle"
	StateClassifying State = "classifying"
	StateDispatching State = "dispatching"
	StateEncrypting  State = "encrypting"
	StateDecrypting  State = "decrypting"
	StateListing     State = "listing"
	StateHelping     State = "helping"
	StateComposing   State = "composing"
)

// allowedTransitions declares the full transition graph. Classifier
// failures jump straight from Classifying to Composing; every action
// state drains into Composing; Composing always returns to Idle.
var allowedTransitions = map[State]map[State]struct{}{
	StateIdle: {
		StateClassifying: {},
	},
	StateClassifying: {
		StateDispatching: {},
		StateComposing:   {}, // recovered-locally classifier failure
	},
	StateDispatching: {
		StateEncrypting: {},
		StateDecrypting: {},
		StateListing:    {},
		StateHelping:    {},
		StateComposing:  {}, // unknown intent
	},
	StateEncrypting: {
		StateComposing: {},
	},
	StateDecrypting: {
		StateComposing: {},
	},
	StateListing: {
		StateComposing: {},
	},
	StateHelping: {
		StateComposing: {},
	},
	StateComposing: {
		StateIdle: {},
	},
}

// ValidateState reports whether a state is part of the machine.
func ValidateState(state State) error {
	if _, ok := allowedTransitions[state]; !ok {
		return fmt.Errorf("invalid workflow state: %q", state)
	}
	return nil
}

// ValidateTransition reports whether from -> to is a declared edge.
func ValidateTransition(from, to State) error {
	if err := ValidateState(from); err != nil {
		return err
	}
	if err := ValidateState(to); err != nil {
		return err
	}
	if _, ok := allowedTransitions[from][to]; !ok {
		return fmt.Errorf("invalid workflow transition: %s -> %s", from, to)
	}
	return nil
}
