package rbac

type Role string
type Action string

const (
	RoleGuest  Role = "guest"
	RoleModder Role = "modder"
	RoleAdmin  Role = "admin"
)

const (
	ActionRead     Action = "read"
	ActionSubmit   Action = "submit"
	ActionModerate Action = "moderate"
	ActionAdmin    Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleModder:
		return action == ActionRead || action == ActionSubmit
	case RoleGuest:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleGuest, RoleModder, RoleAdmin:
		return Role(role)
	default:
		return RoleGuest
	}
}
