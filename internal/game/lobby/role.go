// Package lobby provides the authoritative in-memory session registry for
// game lobbies: admission, role exclusivity, activity tracking, message
// fan-out, and idle reclamation.
package lobby

import "fmt"

// Role identifies a member's function within a lobby. The set is closed:
// goat and prompter are exclusive per lobby, spectators are unbounded.
type Role string

const (
	// RoleGoat is the player character; at most one per lobby.
	RoleGoat Role = "goat"
	// RolePrompter issues commands to the interpreter; at most one per lobby.
	RolePrompter Role = "prompter"
	// RoleSpectator observes; any number per lobby.
	RoleSpectator Role = "spectator"
)

// ParseRole validates a role string received at connect time.
//
// Postcondition: Returns a valid Role, or an error for any value outside the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleGoat, RolePrompter, RoleSpectator:
		return Role(s), nil
	default:
		return "", fmt.Errorf("invalid role %q: must be one of [goat, prompter, spectator]", s)
	}
}

// Exclusive reports whether at most one member may hold this role in a lobby.
func (r Role) Exclusive() bool {
	return r == RoleGoat || r == RolePrompter
}

// String returns the wire representation of the role.
func (r Role) String() string { return string(r) }
