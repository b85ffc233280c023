// Package identity defines the user and role records managed by the
// security engine and the repository contracts they are stored behind.
//
// Records are immutable value objects: every mutation derives a new record
// which is then applied through the repository's optimistic update.
package identity

import (
	"slices"
	"sort"
)

// User flags. Flags are free-form string markers; these are the ones the
// engine itself interprets.
const (
	FlagSuspended              = "suspended"
	FlagPasswordChangeRequired = "password_change_required"
)

// User is an immutable user record. Name is unique and never changes after
// creation; all other changes go through the With* derivations plus a
// repository update.
type User struct {
	Name       string
	Credential Credential
	Flags      []string
}

// NewUser builds a user record with a sorted, deduplicated flag set.
func NewUser(name string, credential Credential, flags ...string) *User {
	return &User{Name: name, Credential: credential, Flags: normalizeFlags(flags)}
}

func normalizeFlags(flags []string) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		if f != "" && !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// HasFlag reports whether the record carries the given flag.
func (u *User) HasFlag(flag string) bool {
	return slices.Contains(u.Flags, flag)
}

// IsSuspended reports whether the account is suspended.
func (u *User) IsSuspended() bool { return u.HasFlag(FlagSuspended) }

// PasswordChangeRequired reports whether the account must change its
// password before it can be used.
func (u *User) PasswordChangeRequired() bool { return u.HasFlag(FlagPasswordChangeRequired) }

// WithFlag derives a new record carrying the flag.
func (u *User) WithFlag(flag string) *User {
	return NewUser(u.Name, u.Credential, append(slices.Clone(u.Flags), flag)...)
}

// WithoutFlag derives a new record without the flag.
func (u *User) WithoutFlag(flag string) *User {
	flags := make([]string, 0, len(u.Flags))
	for _, f := range u.Flags {
		if f != flag {
			flags = append(flags, f)
		}
	}
	return NewUser(u.Name, u.Credential, flags...)
}

// WithCredential derives a new record with a replaced credential.
func (u *User) WithCredential(credential Credential) *User {
	return NewUser(u.Name, credential, u.Flags...)
}

// Equal reports structural equality. The repository's compare-and-swap uses
// this to detect stale snapshots.
func (u *User) Equal(other *User) bool {
	if u == nil || other == nil {
		return u == other
	}
	return u.Name == other.Name &&
		u.Credential == other.Credential &&
		slices.Equal(u.Flags, other.Flags)
}
