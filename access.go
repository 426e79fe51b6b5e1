package calendar

import (
	"strings"
	"sync"

	"github.com/rbaliyan/calendar/store"
)

// Principal identifies the caller of a calendar client.
type Principal struct {
	// ID is the caller's stable identity (e.g., an auth subject).
	ID string
	// Mailbox is the caller's email identity, used as the organizer of
	// events it creates.
	Mailbox store.Mailbox
}

// valid reports whether the principal is usable for calendar operations.
func (p Principal) valid() bool {
	return p.ID != "" && strings.TrimSpace(p.Mailbox.Email) != ""
}

// Capability names an action a principal may be granted.
type Capability string

// Capabilities checked by calendar operations.
const (
	CapCreate Capability = "create"
	CapUpdate Capability = "update"
	CapCancel Capability = "cancel"
	CapDelete Capability = "delete"
	CapAdmin  Capability = "admin"
)

// Authorizer decides whether a principal may perform an action.
// Implementations must be safe for concurrent use.
type Authorizer interface {
	Authorize(p Principal, c Capability) bool
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(p Principal, c Capability) bool

// Authorize calls f.
func (f AuthorizerFunc) Authorize(p Principal, c Capability) bool {
	return f(p, c)
}

// AllowAll grants every capability to every principal. This is the default
// authorizer; production deployments should install a RoleGate or a custom
// Authorizer via WithAuthorizer.
func AllowAll() Authorizer {
	return AuthorizerFunc(func(Principal, Capability) bool { return true })
}

// UserRole is a coarse-grained role assigned to a principal.
type UserRole string

// Recognized user roles.
const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
	UserRoleGuest UserRole = "guest"
)

// roleGrants maps each role to the capabilities it carries.
var roleGrants = map[UserRole]map[Capability]bool{
	UserRoleAdmin: {
		CapCreate: true, CapUpdate: true, CapCancel: true, CapDelete: true, CapAdmin: true,
	},
	UserRoleUser: {
		CapCreate: true, CapUpdate: true, CapCancel: true, CapDelete: true,
	},
	UserRoleGuest: {},
}

// RoleGate is a role-based Authorizer with runtime role assignment.
//
// The gate starts uninitialized: the first principal to call Initialize
// becomes the admin, and subsequent principals default to the configured
// default role until an admin assigns them one. Safe for concurrent use.
type RoleGate struct {
	mu          sync.RWMutex
	roles       map[string]UserRole
	defaultRole UserRole
	initialized bool
}

// Compile-time check
var _ Authorizer = (*RoleGate)(nil)

// NewRoleGate creates a role gate where unassigned principals get defaultRole.
func NewRoleGate(defaultRole UserRole) *RoleGate {
	if _, ok := roleGrants[defaultRole]; !ok {
		defaultRole = UserRoleGuest
	}
	return &RoleGate{
		roles:       make(map[string]UserRole),
		defaultRole: defaultRole,
	}
}

// Initialize bootstraps access control: the first caller becomes admin.
// Later calls are no-ops, so Initialize is safe to call on every startup.
func (g *RoleGate) Initialize(p Principal) {
	if p.ID == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initialized {
		return
	}
	g.roles[p.ID] = UserRoleAdmin
	g.initialized = true
}

// Assign sets the role for a principal ID. Only an admin actor may assign
// roles; non-admin actors get ErrUnauthorized.
func (g *RoleGate) Assign(actor Principal, principalID string, role UserRole) error {
	if principalID == "" {
		return ErrInvalidPrincipal
	}
	if _, ok := roleGrants[role]; !ok {
		return ErrInvalidRole
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.roles[actor.ID] != UserRoleAdmin {
		return ErrUnauthorized
	}
	g.roles[principalID] = role
	return nil
}

// RoleOf returns the effective role for a principal ID.
func (g *RoleGate) RoleOf(principalID string) UserRole {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if role, ok := g.roles[principalID]; ok {
		return role
	}
	return g.defaultRole
}

// IsAdmin reports whether the principal ID holds the admin role.
func (g *RoleGate) IsAdmin(principalID string) bool {
	return g.RoleOf(principalID) == UserRoleAdmin
}

// Authorize reports whether the principal's role grants the capability.
func (g *RoleGate) Authorize(p Principal, c Capability) bool {
	return roleGrants[g.RoleOf(p.ID)][c]
}
