package moderation

import "context"

// Directory is the slice of the entity store that ownership resolution needs.
type Directory interface {
	// MovesetModderIDs returns the modder ids currently credited on a moveset.
	MovesetModderIDs(ctx context.Context, movesetID int64) ([]int64, error)
	// SeriesModderIDs returns the union of modder ids across every moveset in
	// a series.
	SeriesModderIDs(ctx context.Context, seriesID int64) ([]int64, error)
	SeriesMovesetCount(ctx context.Context, seriesID int64) (int, error)
	ItemHistory(ctx context.Context, itemType ItemType, itemID int64) (History, error)
}

// Ownership resolves whether an actor owns a governed item across the three
// item shapes.
type Ownership struct {
	dir Directory
}

func NewOwnership(dir Directory) *Ownership {
	return &Ownership{dir: dir}
}

// IsOwner reports whether the actor owns the item.
//
// Modder: the actor's linked modder id matches, or, for actors with no modder
// link yet, the actor is the original submitter of the modder's events. The
// submitter rule keeps a pending or denied applicant attached to their own
// application.
//
// Moveset: the actor's modder id appears among the moveset's memberships.
//
// Series: the actor's modder id appears among the memberships of any moveset
// in the series. A series with no movesets yet is the bootstrap exception:
// every modder and admin counts as an owner so the first movesets can be
// attached at all.
func (o *Ownership) IsOwner(ctx context.Context, actor Actor, itemType ItemType, itemID int64) (bool, error) {
	switch itemType {
	case ItemModder:
		if actor.ModderID != nil {
			return *actor.ModderID == itemID, nil
		}
		history, err := o.dir.ItemHistory(ctx, ItemModder, itemID)
		if err != nil {
			return false, err
		}
		submitter, ok := history.OriginalSubmitter()
		return ok && submitter == actor.ID, nil

	case ItemMoveset:
		if actor.ModderID == nil {
			return false, nil
		}
		ids, err := o.dir.MovesetModderIDs(ctx, itemID)
		if err != nil {
			return false, err
		}
		return containsID(ids, *actor.ModderID), nil

	case ItemSeries:
		count, err := o.dir.SeriesMovesetCount(ctx, itemID)
		if err != nil {
			return false, err
		}
		if count == 0 {
			return actor.IsModder(), nil
		}
		if actor.ModderID == nil {
			return false, nil
		}
		ids, err := o.dir.SeriesModderIDs(ctx, itemID)
		if err != nil {
			return false, err
		}
		return containsID(ids, *actor.ModderID), nil
	}
	return false, nil
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
