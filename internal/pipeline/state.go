package pipeline

import "fmt"

// State is a step of a pipeline run.
type State int

const (
	StatePending State = iota
	StateDecoded
	StateEdgeMapped
	StateCornersFound
	StateRectified
	StateEnhanced
	StateEncoded
	StateSucceeded
	StateFailed
)

var stateNames = [...]string{
	StatePending:      "pending",
	StateDecoded:      "decoded",
	StateEdgeMapped:   "edge-mapped",
	StateCornersFound: "corners-found",
	StateRectified:    "rectified",
	StateEnhanced:     "enhanced",
	StateEncoded:      "encoded",
	StateSucceeded:    "succeeded",
	StateFailed:       "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no step leaves s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// StageError is returned when a run fails. State is the state the run was
// in when its step failed; Err keeps the originating scanerr sentinel.
// Trace lists every state visited, ending with StateFailed.
type StageError struct {
	State State
	Err   error
	Trace []State
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline failed after %s: %v", e.State, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
