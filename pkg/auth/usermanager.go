package auth

import (
	"errors"
	"fmt"

	"github.com/lodestonedb/lodestone-auth/internal/logger"
	"github.com/lodestonedb/lodestone-auth/pkg/identity"
	"github.com/lodestonedb/lodestone-auth/pkg/security"
)

// maxUpdateRetries bounds the optimistic re-read/reapply loop on concurrent
// record updates.
const maxUpdateRetries = 10

// UserManager is the administrative surface scoped to one subject. Admin
// subjects may manage every account except where policy denies operations
// against their own; non-admin subjects are limited to their own password
// and account info.
type UserManager struct {
	coord   *Coordinator
	subject string
	isAdmin bool

	onOwnPasswordChange func()
}

// CurrentUser describes the calling subject.
type CurrentUser struct {
	Username string
	Roles    []string
	Flags    []string
}

func (m *UserManager) assertAdmin() error {
	if !m.isAdmin {
		return security.NewPermissionDenied()
	}
	return nil
}

func (m *UserManager) users() identity.UserRepository { return m.coord.users }
func (m *UserManager) roles() identity.RoleRepository { return m.coord.roles }

func userNotFound(name string) error {
	return security.InvalidArgumentsf("User '%s' does not exist.", name)
}

func roleNotFound(name string) error {
	return security.InvalidArgumentsf("Role '%s' does not exist.", name)
}

// NewUser creates a user with the given initial password. With
// requirePasswordChange the account must change its password before it can
// do anything else.
func (m *UserManager) NewUser(username, password string, requirePasswordChange bool) error {
	if err := m.assertAdmin(); err != nil {
		return err
	}
	if err := identity.ValidatePassword(password); err != nil {
		return err
	}
	cred, err := identity.NewCredential(password)
	if err != nil {
		return err
	}

	var flags []string
	if requirePasswordChange {
		flags = append(flags, identity.FlagPasswordChangeRequired)
	}
	if err := m.users().Create(identity.NewUser(username, cred, flags...)); err != nil {
		return err
	}
	logger.Info("user created", "username", security.EscapePrincipal(username), "by", m.subject)
	return nil
}

// DeleteUser removes the user and all of their role memberships. Deleting
// the calling subject is denied.
func (m *UserManager) DeleteUser(username string) error {
	if err := m.assertAdmin(); err != nil {
		return err
	}
	if username == m.subject {
		return security.InvalidArgumentsf("Deleting yourself (user '%s') is not allowed.", username)
	}
	user := m.users().FindByName(username)
	if user == nil {
		return userNotFound(username)
	}
	if err := m.roles().RemoveUserFromAllRoles(username); err != nil {
		return err
	}
	if !m.users().Delete(user) {
		return userNotFound(username)
	}
	m.coord.cache.Remove(username)
	logger.Info("user deleted", "username", security.EscapePrincipal(username), "by", m.subject)
	return nil
}

// SuspendUser marks the account suspended; logins fail with a disabled
// account error until it is activated again.
func (m *UserManager) SuspendUser(username string) error {
	if err := m.assertAdmin(); err != nil {
		return err
	}
	if username == m.subject {
		return security.InvalidArgumentsf("Suspending yourself (user '%s') is not allowed.", username)
	}
	if err := m.updateUser(username, func(u *identity.User) *identity.User {
		return u.WithFlag(identity.FlagSuspended)
	}); err != nil {
		return err
	}
	m.coord.cache.Remove(username)
	return nil
}

// ActivateUser clears the suspended flag.
func (m *UserManager) ActivateUser(username string) error {
	if err := m.assertAdmin(); err != nil {
		return err
	}
	if username == m.subject {
		return security.InvalidArgumentsf("Activating yourself (user '%s') is not allowed.", username)
	}
	return m.updateUser(username, func(u *identity.User) *identity.User {
		return u.WithoutFlag(identity.FlagSuspended)
	})
}

// ChangeUserPassword replaces the user's password and clears any pending
// password-change requirement. Non-admin subjects may change only their own
// password. The new password must differ from the current one.
func (m *UserManager) ChangeUserPassword(username, newPassword string) error {
	if !m.isAdmin && username != m.subject {
		return security.NewPermissionDenied()
	}
	if err := identity.ValidatePassword(newPassword); err != nil {
		return err
	}

	user := m.users().FindByName(username)
	if user == nil {
		return userNotFound(username)
	}
	if user.Credential.Matches(newPassword) {
		return security.InvalidArgumentsf("Old password and new password cannot be the same.")
	}

	cred, err := identity.NewCredential(newPassword)
	if err != nil {
		return err
	}
	if err := m.updateUser(username, func(u *identity.User) *identity.User {
		return u.WithCredential(cred).WithoutFlag(identity.FlagPasswordChangeRequired)
	}); err != nil {
		return err
	}
	m.coord.cache.Remove(username)

	if username == m.subject && m.onOwnPasswordChange != nil {
		m.onOwnPasswordChange()
	}
	logger.Info("password changed", "username", security.EscapePrincipal(username), "by", m.subject)
	return nil
}

// NewRole creates an empty role.
func (m *UserManager) NewRole(roleName string) error {
	if err := m.assertAdmin(); err != nil {
		return err
	}
	return m.roles().Create(identity.NewRole(roleName))
}

// DeleteRole removes a custom role. The predefined roles cannot be deleted.
func (m *UserManager) DeleteRole(roleName string) error {
	if err := m.assertAdmin(); err != nil {
		return err
	}
	if security.IsPredefinedRole(roleName) {
		return security.InvalidArgumentsf("'%s' is a predefined role and can not be deleted.", roleName)
	}
	role := m.roles().FindByName(roleName)
	if role == nil {
		return roleNotFound(roleName)
	}
	members := role.Members
	if !m.roles().Delete(role) {
		return roleNotFound(roleName)
	}
	for _, member := range members {
		m.coord.cache.Remove(member)
	}
	return nil
}

// AddRoleToUser grants the role to the user.
func (m *UserManager) AddRoleToUser(roleName, username string) error {
	if err := m.assertAdmin(); err != nil {
		return err
	}
	if m.users().FindByName(username) == nil {
		return userNotFound(username)
	}
	if err := m.updateRole(roleName, func(r *identity.Role) *identity.Role {
		return r.WithMember(username)
	}); err != nil {
		return err
	}
	m.coord.cache.Remove(username)
	return nil
}

// RemoveRoleFromUser revokes the role from the user. An admin cannot remove
// themselves from the admin role.
func (m *UserManager) RemoveRoleFromUser(roleName, username string) error {
	if err := m.assertAdmin(); err != nil {
		return err
	}
	if username == m.subject && roleName == security.RoleAdmin {
		return security.InvalidArgumentsf("Removing yourself (user '%s') from the admin role is not allowed.", username)
	}
	if m.users().FindByName(username) == nil {
		return userNotFound(username)
	}
	if err := m.updateRole(roleName, func(r *identity.Role) *identity.Role {
		return r.WithoutMember(username)
	}); err != nil {
		return err
	}
	m.coord.cache.Remove(username)
	return nil
}

// ListUsers returns all usernames.
func (m *UserManager) ListUsers() ([]string, error) {
	if err := m.assertAdmin(); err != nil {
		return nil, err
	}
	return m.users().AllUsernames(), nil
}

// ListRoles returns all role names.
func (m *UserManager) ListRoles() ([]string, error) {
	if err := m.assertAdmin(); err != nil {
		return nil, err
	}
	return m.roles().AllRoleNames(), nil
}

// ListRolesForUser returns the roles the user is a member of. Non-admin
// subjects may query only themselves.
func (m *UserManager) ListRolesForUser(username string) ([]string, error) {
	if !m.isAdmin && username != m.subject {
		return nil, security.NewPermissionDenied()
	}
	if m.users().FindByName(username) == nil {
		return nil, userNotFound(username)
	}
	return m.roles().RolesByUsername(username), nil
}

// ListUsersForRole returns the members of the role.
func (m *UserManager) ListUsersForRole(roleName string) ([]string, error) {
	if err := m.assertAdmin(); err != nil {
		return nil, err
	}
	role := m.roles().FindByName(roleName)
	if role == nil {
		return nil, roleNotFound(roleName)
	}
	members := make([]string, len(role.Members))
	copy(members, role.Members)
	return members, nil
}

// ShowCurrentUser describes the calling subject.
func (m *UserManager) ShowCurrentUser() (*CurrentUser, error) {
	user := m.users().FindByName(m.subject)
	if user == nil {
		return nil, userNotFound(m.subject)
	}
	flags := make([]string, len(user.Flags))
	copy(flags, user.Flags)
	return &CurrentUser{
		Username: user.Name,
		Roles:    m.roles().RolesByUsername(m.subject),
		Flags:    flags,
	}, nil
}

// ClearAuthCache empties the authorization cache so the next request for
// every principal requeries the realms.
func (m *UserManager) ClearAuthCache() error {
	if err := m.assertAdmin(); err != nil {
		return err
	}
	m.coord.cache.Clear()
	logger.Info("auth cache cleared", "by", m.subject)
	return nil
}

// updateUser applies fn through the optimistic-update loop, re-reading the
// record and reapplying on each lost race.
func (m *UserManager) updateUser(username string, fn func(*identity.User) *identity.User) error {
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		user := m.users().FindByName(username)
		if user == nil {
			return userNotFound(username)
		}
		updated := fn(user)
		if user.Equal(updated) {
			return nil
		}
		err := m.users().Update(user, updated)
		if err == nil {
			return nil
		}
		if !errors.Is(err, security.ErrConcurrentModification) {
			return err
		}
	}
	return fmt.Errorf("updating user %s: %w", username, security.ErrConcurrentModification)
}

func (m *UserManager) updateRole(roleName string, fn func(*identity.Role) *identity.Role) error {
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		role := m.roles().FindByName(roleName)
		if role == nil {
			return roleNotFound(roleName)
		}
		updated := fn(role)
		if role.Equal(updated) {
			return nil
		}
		err := m.roles().Update(role, updated)
		if err == nil {
			return nil
		}
		if !errors.Is(err, security.ErrConcurrentModification) {
			return err
		}
	}
	return fmt.Errorf("updating role %s: %w", roleName, security.ErrConcurrentModification)
}
