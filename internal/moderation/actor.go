package moderation

import "movesethub/api/internal/rbac"

// Actor is the authenticated identity a request acts as. ModderID is nil for
// users who have not been promoted to a modder profile yet.
type Actor struct {
	ID       string
	Role     rbac.Role
	ModderID *int64
}

func (a Actor) IsAdmin() bool {
	return a.Role == rbac.RoleAdmin
}

// IsModder reports whether the actor holds modder-level rights (admins do).
func (a Actor) IsModder() bool {
	return a.Role == rbac.RoleModder || a.Role == rbac.RoleAdmin
}
