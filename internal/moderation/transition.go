package moderation

import "errors"

// ForbiddenError reports an illegal write with a human-readable reason.
// Illegal transitions are surfaced, never silently coerced.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return e.Reason
}

func forbid(reason string) error {
	return &ForbiddenError{Reason: reason}
}

// ErrInvalidDecision marks an admin decision outside the allowed state set.
var ErrInvalidDecision = errors.New("decision state must be accepted, accepted-blocked, approving, rejected or admin-override")

// EditInput carries everything the transition table keys on for an edit.
type EditInput struct {
	// Current is the item's raw latest event, nil when the item has none.
	Current *Event
	// IsOwner is the ownership verdict for the editing actor, including the
	// series bootstrap exception.
	IsOwner bool
	// KeyFieldsChanged is set when the edit touches identifying fields
	// (display name, slot or replacement ids); such edits always go back to
	// hard pending.
	KeyFieldsChanged bool
}

// CreateState returns the state recorded for a freshly created item.
func CreateState(actor Actor) (State, error) {
	if actor.IsAdmin() {
		return StateAdminOverride, nil
	}
	if actor.IsModder() {
		return StatePendingHard, nil
	}
	return 0, forbid("only modders may submit new items")
}

// EditState returns the state recorded for an edit, or a ForbiddenError when
// the edit is not allowed.
//
// Admin edits always land on admin-override, even on rejected items. Owner
// edits on a rejected item are forbidden (rejection is terminal for owners).
// Owner edits while hard-pending or accepted-blocked stay hard pending; any
// key-field change forces hard pending; everything else is a soft re-edit.
func EditState(actor Actor, in EditInput) (State, error) {
	if actor.IsAdmin() {
		return StateAdminOverride, nil
	}
	if !in.IsOwner {
		return 0, forbid("you do not own this item")
	}
	if in.Current != nil && in.Current.State == StateRejected {
		return 0, forbid("rejected items cannot be edited")
	}
	if in.KeyFieldsChanged {
		return StatePendingHard, nil
	}
	if in.Current != nil {
		switch in.Current.State {
		case StatePendingHard, StateAcceptedBlocked:
			return StatePendingHard, nil
		}
	}
	return StatePendingSoft, nil
}

// DecisionState validates an explicit moderation decision. Only admins may
// record one, and only onto the decision states; the pending states are
// reserved for the edit path.
func DecisionState(actor Actor, requested State) (State, error) {
	if !actor.IsAdmin() {
		return 0, forbid("only administrators may record moderation decisions")
	}
	switch requested {
	case StateAccepted, StateAcceptedBlocked, StateApproving, StateRejected, StateAdminOverride:
		return requested, nil
	default:
		return 0, ErrInvalidDecision
	}
}

// PromotesModder reports whether appending this event triggers the one-time
// modder promotion side effect: an admin approving a modder application links
// the original submitter's user record to the modder profile.
func PromotesModder(itemType ItemType, state State) bool {
	return itemType == ItemModder && state == StateApproving
}
