package chain

import "github.com/looplab/fsm"

// Block lifecycle states. They parallel stores/chain.Status: Validated
// corresponds to StatusValid and Committed to StatusActive.
const (
	StateUnknown   = "unknown"
	StateOrphan    = "orphan"
	StateValidated = "validated"
	StateCommitted = "committed"
	StateRejected  = "rejected"
)

// Lifecycle events driving a block between states.
const (
	EventOrphan     = "orphan"
	EventValidate   = "validate"
	EventReconsider = "reconsider"
	EventCommit     = "commit"
	EventReject     = "reject"
)

// newBlockFSM builds the per-block lifecycle state machine described by the
// chain state manager: a freshly-seen block starts Unknown, moves to
// Validated once its header and (if its parent is on the active chain) its
// transactions check out, and to Committed once the UTXO store has applied
// it. A block whose parent has not been seen yet is Orphan until that parent
// arrives, at which point it is Reconsidered back onto the Validated path.
// Any state but Committed can transition to Rejected.
func newBlockFSM(initial string) *fsm.FSM {
	return fsm.NewFSM(
		initial,
		fsm.Events{
			{Name: EventValidate, Src: []string{StateUnknown}, Dst: StateValidated},
			{Name: EventOrphan, Src: []string{StateUnknown}, Dst: StateOrphan},
			{Name: EventReconsider, Src: []string{StateOrphan}, Dst: StateValidated},
			{Name: EventCommit, Src: []string{StateValidated}, Dst: StateCommitted},
			{Name: EventReject, Src: []string{StateUnknown, StateOrphan, StateValidated}, Dst: StateRejected},
		},
		fsm.Callbacks{},
	)
}
