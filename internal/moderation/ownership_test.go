package moderation

import (
	"context"
	"testing"

	"movesethub/api/internal/rbac"
)

type fakeDirectory struct {
	movesetModders map[int64][]int64
	seriesModders  map[int64][]int64
	seriesCounts   map[int64]int
	histories      map[ItemType]map[int64]History
}

func (f *fakeDirectory) MovesetModderIDs(_ context.Context, movesetID int64) ([]int64, error) {
	return f.movesetModders[movesetID], nil
}

func (f *fakeDirectory) SeriesModderIDs(_ context.Context, seriesID int64) ([]int64, error) {
	return f.seriesModders[seriesID], nil
}

func (f *fakeDirectory) SeriesMovesetCount(_ context.Context, seriesID int64) (int, error) {
	return f.seriesCounts[seriesID], nil
}

func (f *fakeDirectory) ItemHistory(_ context.Context, itemType ItemType, itemID int64) (History, error) {
	if f.histories == nil {
		return nil, nil
	}
	return f.histories[itemType][itemID], nil
}

func modderID(id int64) *int64 {
	return &id
}

func TestIsOwnerModderLinked(t *testing.T) {
	owners := NewOwnership(&fakeDirectory{})
	actor := Actor{ID: "u1", Role: rbac.RoleModder, ModderID: modderID(7)}

	owner, err := owners.IsOwner(context.Background(), actor, ItemModder, 7)
	if err != nil || !owner {
		t.Fatalf("IsOwner(linked modder) = %v, %v; want true", owner, err)
	}
	owner, err = owners.IsOwner(context.Background(), actor, ItemModder, 8)
	if err != nil || owner {
		t.Fatalf("IsOwner(other modder) = %v, %v; want false", owner, err)
	}
}

func TestIsOwnerModderOriginalSubmitter(t *testing.T) {
	dir := &fakeDirectory{
		histories: map[ItemType]map[int64]History{
			ItemModder: {
				7: History{
					{ID: 1, ActorID: "applicant", ItemType: ItemModder, ItemID: 7, State: StatePendingHard},
					{ID: 2, ActorID: "admin", ItemType: ItemModder, ItemID: 7, State: StateRejected},
				},
			},
		},
	}
	owners := NewOwnership(dir)

	// Unlinked applicant still owns their own application page.
	applicant := Actor{ID: "applicant", Role: rbac.RoleGuest}
	owner, err := owners.IsOwner(context.Background(), applicant, ItemModder, 7)
	if err != nil || !owner {
		t.Fatalf("IsOwner(original submitter) = %v, %v; want true", owner, err)
	}

	stranger := Actor{ID: "someone-else", Role: rbac.RoleGuest}
	owner, err = owners.IsOwner(context.Background(), stranger, ItemModder, 7)
	if err != nil || owner {
		t.Fatalf("IsOwner(stranger) = %v, %v; want false", owner, err)
	}
}

func TestIsOwnerMoveset(t *testing.T) {
	dir := &fakeDirectory{movesetModders: map[int64][]int64{10: {3, 7}}}
	owners := NewOwnership(dir)

	member := Actor{ID: "u1", Role: rbac.RoleModder, ModderID: modderID(7)}
	owner, err := owners.IsOwner(context.Background(), member, ItemMoveset, 10)
	if err != nil || !owner {
		t.Fatalf("IsOwner(member) = %v, %v; want true", owner, err)
	}

	outsider := Actor{ID: "u2", Role: rbac.RoleModder, ModderID: modderID(4)}
	owner, err = owners.IsOwner(context.Background(), outsider, ItemMoveset, 10)
	if err != nil || owner {
		t.Fatalf("IsOwner(outsider) = %v, %v; want false", owner, err)
	}

	unlinked := Actor{ID: "u3", Role: rbac.RoleGuest}
	owner, err = owners.IsOwner(context.Background(), unlinked, ItemMoveset, 10)
	if err != nil || owner {
		t.Fatalf("IsOwner(unlinked) = %v, %v; want false", owner, err)
	}
}

func TestIsOwnerSeriesThroughMovesets(t *testing.T) {
	dir := &fakeDirectory{
		seriesCounts:  map[int64]int{20: 2},
		seriesModders: map[int64][]int64{20: {3, 7}},
	}
	owners := NewOwnership(dir)

	member := Actor{ID: "u1", Role: rbac.RoleModder, ModderID: modderID(3)}
	owner, err := owners.IsOwner(context.Background(), member, ItemSeries, 20)
	if err != nil || !owner {
		t.Fatalf("IsOwner(series member) = %v, %v; want true", owner, err)
	}

	outsider := Actor{ID: "u2", Role: rbac.RoleModder, ModderID: modderID(9)}
	owner, err = owners.IsOwner(context.Background(), outsider, ItemSeries, 20)
	if err != nil || owner {
		t.Fatalf("IsOwner(series outsider) = %v, %v; want false", owner, err)
	}
}

func TestIsOwnerSeriesBootstrapException(t *testing.T) {
	dir := &fakeDirectory{seriesCounts: map[int64]int{21: 0}}
	owners := NewOwnership(dir)

	// Any modder or admin owns an empty series.
	unrelated := Actor{ID: "u1", Role: rbac.RoleModder, ModderID: modderID(9)}
	owner, err := owners.IsOwner(context.Background(), unrelated, ItemSeries, 21)
	if err != nil || !owner {
		t.Fatalf("IsOwner(empty series, modder) = %v, %v; want true", owner, err)
	}

	admin := Actor{ID: "a1", Role: rbac.RoleAdmin}
	owner, err = owners.IsOwner(context.Background(), admin, ItemSeries, 21)
	if err != nil || !owner {
		t.Fatalf("IsOwner(empty series, admin) = %v, %v; want true", owner, err)
	}

	guest := Actor{ID: "g1", Role: rbac.RoleGuest}
	owner, err = owners.IsOwner(context.Background(), guest, ItemSeries, 21)
	if err != nil || owner {
		t.Fatalf("IsOwner(empty series, guest) = %v, %v; want false", owner, err)
	}
}

// Scenario: once a moveset joins the series, the bootstrap exception ends and
// unrelated modders lose ownership.
func TestSeriesBootstrapEndsWhenMovesetAdded(t *testing.T) {
	dir := &fakeDirectory{
		seriesCounts:  map[int64]int{22: 0},
		seriesModders: map[int64][]int64{},
	}
	owners := NewOwnership(dir)
	unrelated := Actor{ID: "u1", Role: rbac.RoleModder, ModderID: modderID(9)}

	owner, err := owners.IsOwner(context.Background(), unrelated, ItemSeries, 22)
	if err != nil || !owner {
		t.Fatalf("before movesets: IsOwner = %v, %v; want true", owner, err)
	}

	dir.seriesCounts[22] = 1
	dir.seriesModders[22] = []int64{3}

	owner, err = owners.IsOwner(context.Background(), unrelated, ItemSeries, 22)
	if err != nil || owner {
		t.Fatalf("after moveset added: IsOwner = %v, %v; want false", owner, err)
	}
}
