package moderation

import (
	"testing"
	"time"
)

func event(id int64, actorID string, state State) Event {
	return Event{
		ID:        id,
		ActorID:   actorID,
		ItemType:  ItemMoveset,
		ItemID:    1,
		State:     state,
		CreatedAt: time.Unix(1700000000, 0),
	}
}

func TestLatestPicksHighestID(t *testing.T) {
	h := History{
		event(3, "u1", StateAccepted),
		event(1, "u1", StatePendingHard),
		event(2, "admin", StateAdminOverride),
	}
	latest, ok := h.Latest()
	if !ok {
		t.Fatal("expected a latest event")
	}
	if latest.ID != 3 || latest.State != StateAccepted {
		t.Fatalf("unexpected latest event: %+v", latest)
	}
}

func TestLatestEmptyHistory(t *testing.T) {
	if _, ok := (History{}).Latest(); ok {
		t.Fatal("empty history should have no latest event")
	}
}

func TestLatestIsStableUnderRecomputation(t *testing.T) {
	h := History{
		event(1, "u1", StatePendingHard),
		event(2, "admin", StateAccepted),
	}
	first, _ := h.Latest()
	for i := 0; i < 5; i++ {
		again, _ := h.Latest()
		if again != first {
			t.Fatalf("Latest() changed between calls: %+v vs %+v", first, again)
		}
	}
}

func TestCurrentSkipsApproving(t *testing.T) {
	h := History{
		event(1, "u1", StatePendingHard),
		event(2, "admin", StateApproving),
	}
	current, ok := h.Current()
	if !ok {
		t.Fatal("expected a current event")
	}
	if current.State != StatePendingHard {
		t.Fatalf("Current() = %v, want pending-hard (approving is write-only)", current.State)
	}

	latest, _ := h.Latest()
	if latest.State != StateApproving {
		t.Fatalf("Latest() = %v, want the raw approving event", latest.State)
	}
}

func TestCurrentAllApproving(t *testing.T) {
	h := History{event(1, "admin", StateApproving)}
	if _, ok := h.Current(); ok {
		t.Fatal("history of only approving events should resolve to no current state")
	}
}

func TestOriginalSubmitter(t *testing.T) {
	h := History{
		event(5, "admin", StateAccepted),
		event(2, "applicant", StatePendingHard),
		event(9, "applicant", StatePendingSoft),
	}
	submitter, ok := h.OriginalSubmitter()
	if !ok || submitter != "applicant" {
		t.Fatalf("OriginalSubmitter() = %q, %v", submitter, ok)
	}
}

func TestBlockedStates(t *testing.T) {
	blocked := map[State]bool{
		StatePendingSoft:     false,
		StatePendingHard:     true,
		StateAccepted:        false,
		StateAcceptedBlocked: true,
		StateApproving:       false,
		StateRejected:        true,
		StateAdminOverride:   false,
	}
	for state, want := range blocked {
		if got := state.Blocked(); got != want {
			t.Errorf("State(%d).Blocked() = %v, want %v", state, got, want)
		}
	}
}

// Replaying any log from empty must land every item on the same final state
// as the incremental reads did: nothing outside the log determines state.
func TestReplayReproducesFinalState(t *testing.T) {
	full := History{
		event(1, "u1", StatePendingHard),
		event(2, "admin", StateAccepted),
		event(3, "u1", StatePendingSoft),
		event(4, "u1", StatePendingHard),
		event(5, "admin", StateRejected),
	}

	var replayed History
	for _, ev := range full {
		replayed = append(replayed, ev)
	}

	want, _ := full.Latest()
	got, _ := replayed.Latest()
	if got != want {
		t.Fatalf("replayed final state %+v, want %+v", got, want)
	}
}
