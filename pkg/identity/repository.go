package identity

import (
	"fmt"
	"regexp"

	"github.com/lodestonedb/lodestone-auth/pkg/security"
)

// namePattern constrains user and role names.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ValidateUserName checks the naming pattern for usernames.
func ValidateUserName(name string) error {
	if name == "" {
		return security.InvalidArgumentsf("The provided user name is empty")
	}
	if !namePattern.MatchString(name) {
		return security.InvalidArgumentsf("User name contains illegal characters")
	}
	return nil
}

// ValidateRoleName checks the naming pattern for role names.
func ValidateRoleName(name string) error {
	if name == "" {
		return security.InvalidArgumentsf("The provided role name is empty")
	}
	if !namePattern.MatchString(name) {
		return security.InvalidArgumentsf("Role name contains illegal characters")
	}
	return nil
}

// ListSnapshot is a timestamped, versioned view of a full record list. The
// FromPersisted tag distinguishes the in-memory view from one read back from
// disk, which is how the reload job reconciles concurrent in-memory mutation
// with external file changes.
type ListSnapshot[T any] struct {
	Timestamp     int64
	Values        []T
	FromPersisted bool
}

// UserRepository stores user records.
//
// Implementations must be safe for concurrent use: mutations are serialized
// internally while reads observe a consistent copy-on-write snapshot without
// blocking.
type UserRepository interface {
	// FindByName returns the user or nil when absent.
	FindByName(name string) *User

	// Create adds a new user. Fails with security.ErrInvalidArguments when
	// the name violates the naming pattern or already exists.
	Create(user *User) error

	// Update atomically replaces existing with updated. Fails with
	// security.ErrConcurrentModification when the repository's current
	// record no longer structurally equals existing.
	Update(existing, updated *User) error

	// Delete removes the record and reports whether it was found.
	Delete(user *User) bool

	// AllUsernames returns the names of all users.
	AllUsernames() []string

	// Snapshot returns the current in-memory view.
	Snapshot() ListSnapshot[*User]

	// SetUsers wholesale replaces the in-memory state with a persisted
	// snapshot. A persisted snapshot whose Timestamp is older than the
	// current in-memory state is skipped, so a mutation racing a disk
	// reload is never rolled back.
	SetUsers(snapshot ListSnapshot[*User]) error
}

// RoleRepository stores role records. In addition to the primary name index
// it maintains a reverse index from username to role names for O(1) lookup.
type RoleRepository interface {
	FindByName(name string) *Role
	Create(role *Role) error
	Update(existing, updated *Role) error
	Delete(role *Role) bool

	// RolesByUsername returns the names of all roles the user is a member
	// of, via the reverse index.
	RolesByUsername(username string) []string

	// RemoveUserFromAllRoles strips the username from every role's member
	// set, e.g. when the user is deleted.
	RemoveUserFromAllRoles(username string) error

	AllRoleNames() []string
	Snapshot() ListSnapshot[*Role]
	SetRoles(snapshot ListSnapshot[*Role]) error
}

// ValidateSnapshot checks referential integrity between a role snapshot and
// a user snapshot: every role member must exist as a user.
func ValidateSnapshot(users ListSnapshot[*User], roles ListSnapshot[*Role]) error {
	known := make(map[string]struct{}, len(users.Values))
	for _, u := range users.Values {
		known[u.Name] = struct{}{}
	}
	for _, r := range roles.Values {
		for _, member := range r.Members {
			if _, ok := known[member]; !ok {
				return fmt.Errorf("role %q references unknown user %q: %w",
					r.Name, member, security.ErrInvalidArguments)
			}
		}
	}
	return nil
}
