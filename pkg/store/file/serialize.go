// Package file provides the flat-file backed user and role repositories.
//
// Records serialize to a line-oriented text format, one record per line:
//
//	users: name:bcrypt-hash:flag1,flag2
//	roles: name:member1,member2
//
// Files are written via temp-file-then-rename so a partial file is never
// observable, and a background job picks up external edits.
package file

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lodestonedb/lodestone-auth/pkg/identity"
)

// ErrInvalidFormat is returned when a persisted file contains a line that
// cannot be parsed.
var ErrInvalidFormat = errors.New("invalid auth file format")

// serializeUsers renders user records in the on-disk format.
func serializeUsers(users []*identity.User) []byte {
	var b strings.Builder
	for _, u := range users {
		b.WriteString(u.Name)
		b.WriteByte(':')
		b.WriteString(u.Credential.Hash())
		b.WriteByte(':')
		b.WriteString(strings.Join(u.Flags, ","))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// deserializeUsers parses the on-disk user format.
func deserializeUsers(data []byte) ([]*identity.User, error) {
	var users []*identity.User
	for i, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 || parts[0] == "" {
			return nil, fmt.Errorf("user file line %d: %w", i+1, ErrInvalidFormat)
		}
		var flags []string
		if parts[2] != "" {
			flags = strings.Split(parts[2], ",")
		}
		users = append(users, identity.NewUser(parts[0], identity.CredentialFromHash(parts[1]), flags...))
	}
	return users, nil
}

// serializeRoles renders role records in the on-disk format.
func serializeRoles(roles []*identity.Role) []byte {
	var b strings.Builder
	for _, r := range roles {
		b.WriteString(r.Name)
		b.WriteByte(':')
		b.WriteString(strings.Join(r.Members, ","))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// deserializeRoles parses the on-disk role format.
func deserializeRoles(data []byte) ([]*identity.Role, error) {
	var roles []*identity.Role
	for i, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("role file line %d: %w", i+1, ErrInvalidFormat)
		}
		var members []string
		if parts[1] != "" {
			members = strings.Split(parts[1], ",")
		}
		roles = append(roles, identity.NewRole(parts[0], members...))
	}
	return roles, nil
}
