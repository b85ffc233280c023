package identity

import (
	"slices"
	"sort"
)

// Role is an immutable role record: a name plus a sorted set of member
// usernames.
type Role struct {
	Name    string
	Members []string
}

// NewRole builds a role record with a sorted, deduplicated member set.
func NewRole(name string, members ...string) *Role {
	out := make([]string, 0, len(members))
	for _, m := range members {
		if m != "" && !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return &Role{Name: name, Members: out}
}

// HasMember reports whether username is a member of the role.
func (r *Role) HasMember(username string) bool {
	_, found := slices.BinarySearch(r.Members, username)
	return found
}

// WithMember derives a new record including username.
func (r *Role) WithMember(username string) *Role {
	return NewRole(r.Name, append(slices.Clone(r.Members), username)...)
}

// WithoutMember derives a new record excluding username.
func (r *Role) WithoutMember(username string) *Role {
	members := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		if m != username {
			members = append(members, m)
		}
	}
	return NewRole(r.Name, members...)
}

// Equal reports structural equality, used by the repository compare-and-swap.
func (r *Role) Equal(other *Role) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.Name == other.Name && slices.Equal(r.Members, other.Members)
}
