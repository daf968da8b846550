// Package authz holds the capability rules for submissions and settings.
package authz

import "strings"

// Roles recognised by the policy.
const (
	RoleAdministrator = "administrator"
	RoleAuthor        = "author"
)

// GuestOwner is the owner id stored for entries created without an
// authenticated actor. It never matches any actor.
const GuestOwner = ""

// GuestName is the display name used when the actor is anonymous.
const GuestName = "Guest"

// Action names an operation guarded by the policy.
type Action string

const (
	ActionSubmit         Action = "submit"
	ActionViewAll        Action = "view_all"
	ActionMutate         Action = "mutate"
	ActionClearAll       Action = "clear_all"
	ActionManageSettings Action = "manage_settings"
)

// Actor is the identity performing an operation.
type Actor struct {
	ID          string
	Roles       []string
	DisplayName string
}

// Anonymous returns the actor used for requests without credentials.
func Anonymous() Actor { return Actor{} }

// Authenticated reports whether the actor carries a non-empty id.
func (a Actor) Authenticated() bool { return strings.TrimSpace(a.ID) != "" }

// HasRole reports whether the actor holds role. Anonymous actors hold none.
func (a Actor) HasRole(role string) bool {
	if !a.Authenticated() {
		return false
	}
	for _, r := range a.Roles {
		if strings.EqualFold(strings.TrimSpace(r), role) {
			return true
		}
	}
	return false
}

// Name returns the display name, falling back to GuestName.
func (a Actor) Name() string {
	if name := strings.TrimSpace(a.DisplayName); name != "" && a.Authenticated() {
		return name
	}
	return GuestName
}

// IsAdmin is shorthand for HasRole(RoleAdministrator).
func (a Actor) IsAdmin() bool { return a.HasRole(RoleAdministrator) }

// CanSubmit allows administrators and authors.
func CanSubmit(a Actor) bool {
	return a.HasRole(RoleAdministrator) || a.HasRole(RoleAuthor)
}

// CanViewAll is unconditional.
func CanViewAll(Actor) bool { return true }

// CanMutate allows administrators, or the authenticated owner of the entry.
func CanMutate(a Actor, ownerID string) bool {
	if a.IsAdmin() {
		return true
	}
	if !a.Authenticated() || ownerID == GuestOwner {
		return false
	}
	return a.ID == ownerID
}

// CanClearAll allows administrators only.
func CanClearAll(a Actor) bool { return a.IsAdmin() }

// CanManageSettings allows administrators only.
func CanManageSettings(a Actor) bool { return a.IsAdmin() }

// Allowed dispatches to the predicate for action. ownerID is only consulted
// for ActionMutate.
func Allowed(a Actor, action Action, ownerID string) bool {
	switch action {
	case ActionSubmit:
		return CanSubmit(a)
	case ActionViewAll:
		return CanViewAll(a)
	case ActionMutate:
		return CanMutate(a, ownerID)
	case ActionClearAll:
		return CanClearAll(a)
	case ActionManageSettings:
		return CanManageSettings(a)
	default:
		return false
	}
}
