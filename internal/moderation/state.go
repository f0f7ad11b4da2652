// Package moderation derives the approval state of governed items from an
// append-only event log and decides visibility and edit transitions.
package moderation

import "time"

// ItemType identifies which kind of governed item an event refers to. The
// integer values are part of the wire and storage format.
type ItemType int

const (
	ItemMoveset ItemType = 1
	ItemModder  ItemType = 2
	ItemSeries  ItemType = 3
)

func (t ItemType) Valid() bool {
	return t == ItemMoveset || t == ItemModder || t == ItemSeries
}

func (t ItemType) String() string {
	switch t {
	case ItemMoveset:
		return "moveset"
	case ItemModder:
		return "modder"
	case ItemSeries:
		return "series"
	default:
		return "unknown"
	}
}

// State is an acceptance state. All three item types share one state space.
type State int

const (
	StatePendingSoft     State = 1 // minor re-edit of an accepted item, not blocked
	StatePendingHard     State = 2 // new or major submission, blocked
	StateAccepted        State = 3
	StateAcceptedBlocked State = 4 // accepted but held from listings
	StateApproving       State = 5 // write-only trigger, never a resting state
	StateRejected        State = 6 // terminal for non-admin edits
	StateAdminOverride   State = 7 // admin-authored change, treated as accepted
)

func (s State) Valid() bool {
	return s >= StatePendingSoft && s <= StateAdminOverride
}

// Blocked reports whether an item resting in this state is hidden from the
// general public.
func (s State) Blocked() bool {
	return s == StatePendingHard || s == StateAcceptedBlocked || s == StateRejected
}

func (s State) String() string {
	switch s {
	case StatePendingSoft:
		return "pending-soft"
	case StatePendingHard:
		return "pending-hard"
	case StateAccepted:
		return "accepted"
	case StateAcceptedBlocked:
		return "accepted-blocked"
	case StateApproving:
		return "approving"
	case StateRejected:
		return "rejected"
	case StateAdminOverride:
		return "admin-override"
	default:
		return "unknown"
	}
}

// Event is one immutable moderation log entry. Ordering between events of the
// same item is defined by ID, which the store assigns monotonically; CreatedAt
// is informational because concurrent writes can share a timestamp.
type Event struct {
	ID        int64
	ActorID   string
	ItemType  ItemType
	ItemID    int64
	State     State
	Notes     string
	CreatedAt time.Time
}

// History is the full event log for one item. No ordering of the slice is
// assumed; lookups compare event IDs directly.
type History []Event

// Latest returns the event with the highest ID, the raw current state of the
// item. The second return is false when the item has no events, in which case
// the item is treated as implicitly accepted everywhere.
func (h History) Latest() (Event, bool) {
	var latest Event
	found := false
	for _, ev := range h {
		if !found || ev.ID > latest.ID {
			latest = ev
			found = true
		}
	}
	return latest, found
}

// Current is Latest with Approving events skipped: state 5 only exists to
// trigger the modder promotion on the write path and is never reported as an
// item's resting state.
func (h History) Current() (Event, bool) {
	var current Event
	found := false
	for _, ev := range h {
		if ev.State == StateApproving {
			continue
		}
		if !found || ev.ID > current.ID {
			current = ev
			found = true
		}
	}
	return current, found
}

// OriginalSubmitter returns the actor of the earliest event, the user who
// first submitted the item.
func (h History) OriginalSubmitter() (string, bool) {
	var earliest Event
	found := false
	for _, ev := range h {
		if !found || ev.ID < earliest.ID {
			earliest = ev
			found = true
		}
	}
	if !found {
		return "", false
	}
	return earliest.ActorID, true
}
