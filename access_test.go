package calendar

import (
	"errors"
	"testing"
)

func TestRoleGate(t *testing.T) {
	root := principal("root", "root@example.com")
	alice := principal("alice", "alice@example.com")

	t.Run("first caller becomes admin", func(t *testing.T) {
		gate := NewRoleGate(UserRoleUser)
		gate.Initialize(root)

		if !gate.IsAdmin("root") {
			t.Error("first initializer should be admin")
		}
		if gate.IsAdmin("alice") {
			t.Error("other principals should not be admin")
		}
	})

	t.Run("initialize is idempotent", func(t *testing.T) {
		gate := NewRoleGate(UserRoleUser)
		gate.Initialize(root)
		gate.Initialize(alice)

		if gate.IsAdmin("alice") {
			t.Error("second initializer must not become admin")
		}
	})

	t.Run("unassigned principals get the default role", func(t *testing.T) {
		gate := NewRoleGate(UserRoleGuest)
		gate.Initialize(root)

		if got := gate.RoleOf("alice"); got != UserRoleGuest {
			t.Errorf("expected guest, got %q", got)
		}
	})

	t.Run("admin can assign roles", func(t *testing.T) {
		gate := NewRoleGate(UserRoleGuest)
		gate.Initialize(root)

		if err := gate.Assign(root, "alice", UserRoleUser); err != nil {
			t.Fatalf("assign: %v", err)
		}
		if got := gate.RoleOf("alice"); got != UserRoleUser {
			t.Errorf("expected user, got %q", got)
		}
	})

	t.Run("non-admin cannot assign roles", func(t *testing.T) {
		gate := NewRoleGate(UserRoleUser)
		gate.Initialize(root)

		err := gate.Assign(alice, "alice", UserRoleAdmin)
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
		if gate.IsAdmin("alice") {
			t.Error("self-promotion must not succeed")
		}
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		gate := NewRoleGate(UserRoleUser)
		gate.Initialize(root)

		err := gate.Assign(root, "alice", UserRole("owner"))
		if !errors.Is(err, ErrInvalidRole) {
			t.Errorf("expected ErrInvalidRole, got %v", err)
		}
	})

	t.Run("capability grants follow roles", func(t *testing.T) {
		gate := NewRoleGate(UserRoleGuest)
		gate.Initialize(root)
		if err := gate.Assign(root, "alice", UserRoleUser); err != nil {
			t.Fatalf("assign: %v", err)
		}

		cases := []struct {
			name string
			p    Principal
			c    Capability
			want bool
		}{
			{"admin has admin", root, CapAdmin, true},
			{"admin can create", root, CapCreate, true},
			{"user can create", alice, CapCreate, true},
			{"user can delete", alice, CapDelete, true},
			{"user lacks admin", alice, CapAdmin, false},
			{"guest cannot create", principal("guest", "g@example.com"), CapCreate, false},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if got := gate.Authorize(tc.p, tc.c); got != tc.want {
					t.Errorf("Authorize(%s, %s) = %v, want %v", tc.p.ID, tc.c, got, tc.want)
				}
			})
		}
	})
}

func TestAllowAll(t *testing.T) {
	a := AllowAll()
	if !a.Authorize(Principal{}, CapAdmin) {
		t.Error("AllowAll should grant everything")
	}
}
