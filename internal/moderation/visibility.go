package moderation

import "context"

// Placeholder replaces redacted fields in responses to unprivileged viewers.
const Placeholder = "???"

// Visibility decides read access for governed items.
type Visibility struct {
	owners *Ownership
	dir    Directory
}

func NewVisibility(owners *Ownership, dir Directory) *Visibility {
	return &Visibility{owners: owners, dir: dir}
}

// CanSee reports whether the actor may read the item given its history.
// Admins and owners always may; everyone else only while the latest state is
// absent or not blocked. Modder pages carry one extra carve-out: the original
// submitter keeps access to their own application even while it is blocked or
// rejected.
func (v *Visibility) CanSee(ctx context.Context, actor Actor, itemType ItemType, itemID int64, history History) (bool, error) {
	if actor.IsAdmin() {
		return true, nil
	}
	owner, err := v.owners.IsOwner(ctx, actor, itemType, itemID)
	if err != nil {
		return false, err
	}
	if owner {
		return true, nil
	}
	if itemType == ItemModder && actor.ID != "" {
		if submitter, ok := history.OriginalSubmitter(); ok && submitter == actor.ID {
			return true, nil
		}
	}
	latest, ok := history.Latest()
	if !ok {
		return true, nil
	}
	return !latest.State.Blocked(), nil
}

// Redacted reports whether a private field should be masked for this viewer.
// Redaction is a privacy flag on the item, independent of moderation state;
// counts and aggregates are never computed over masked data.
func Redacted(private bool, isAdminOrOwner bool) bool {
	return private && !isAdminOrOwner
}

// Mask substitutes the placeholder for a value the viewer may not see.
func Mask(hidden bool, value string) string {
	if hidden {
		return Placeholder
	}
	return value
}

// MaskURL clears an image or icon URL the viewer may not see. URLs are
// dropped rather than replaced so clients fall back to their default art.
func MaskURL(hidden bool, url string) string {
	if hidden {
		return ""
	}
	return url
}
