package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "guest read", role: RoleGuest, action: ActionRead, allow: true},
		{name: "guest submit", role: RoleGuest, action: ActionSubmit, allow: false},
		{name: "guest moderate", role: RoleGuest, action: ActionModerate, allow: false},
		{name: "modder read", role: RoleModder, action: ActionRead, allow: true},
		{name: "modder submit", role: RoleModder, action: ActionSubmit, allow: true},
		{name: "modder moderate", role: RoleModder, action: ActionModerate, allow: false},
		{name: "admin moderate", role: RoleAdmin, action: ActionModerate, allow: true},
		{name: "admin admin", role: RoleAdmin, action: ActionAdmin, allow: true},
		{name: "unknown read", role: Role("banana"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("admin") != RoleAdmin {
		t.Fatal("admin should normalize to RoleAdmin")
	}
	if Normalize("") != RoleGuest {
		t.Fatal("empty role should normalize to RoleGuest")
	}
	if Normalize("superuser") != RoleGuest {
		t.Fatal("unknown role should normalize to RoleGuest")
	}
}
