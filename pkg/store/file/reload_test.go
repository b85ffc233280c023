package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestonedb/lodestone-auth/pkg/identity"
)

func newTestStores(t *testing.T) (*UserStore, *RoleStore) {
	t.Helper()
	dir := t.TempDir()

	users, err := NewUserStore(filepath.Join(dir, "auth"))
	require.NoError(t, err)
	roles, err := NewRoleStore(filepath.Join(dir, "roles"))
	require.NoError(t, err)

	require.NoError(t, users.Create(identity.NewUser("alice", identity.CredentialFromHash("$2a$10$x"))))
	require.NoError(t, roles.Create(identity.NewRole("reader", "alice")))
	return users, roles
}

func TestReloadAppliesConsistentExternalChange(t *testing.T) {
	users, roles := newTestStores(t)
	job := NewReloadJob(users, roles, ReloadConfig{Interval: time.Hour, MaxAttempts: 1, Backoff: time.Millisecond})

	external := serializeUsers([]*identity.User{
		identity.NewUser("alice", identity.CredentialFromHash("$2a$10$x")),
		identity.NewUser("bob", identity.CredentialFromHash("$2a$10$y")),
	})
	require.NoError(t, os.WriteFile(users.Path(), external, 0o600))

	require.NoError(t, job.ReloadNow())
	assert.NotNil(t, users.FindByName("bob"))
}

// A role referencing a user missing from the persisted files must be
// rejected: in-memory state is retained unchanged.
func TestReloadRejectsDanglingRoleMember(t *testing.T) {
	users, roles := newTestStores(t)
	job := NewReloadJob(users, roles, ReloadConfig{Interval: time.Hour, MaxAttempts: 1, Backoff: time.Millisecond})

	external := serializeRoles([]*identity.Role{
		identity.NewRole("reader", "alice", "deleted_user"),
	})
	require.NoError(t, os.WriteFile(roles.Path(), external, 0o600))

	err := job.ReloadNow()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deleted_user")

	// In-memory state unchanged.
	assert.Equal(t, []string{"alice"}, roles.FindByName("reader").Members)
}

func TestReloadRetriesThenReportsFatal(t *testing.T) {
	users, roles := newTestStores(t)

	var fatal error
	job := NewReloadJob(users, roles,
		ReloadConfig{Interval: time.Hour, MaxAttempts: 2, Backoff: time.Millisecond},
		WithFatalHandler(func(err error) { fatal = err }),
	)

	bad := serializeRoles([]*identity.Role{identity.NewRole("reader", "ghost")})
	require.NoError(t, os.WriteFile(roles.Path(), bad, 0o600))

	job.runCycle()

	require.Error(t, fatal)
	assert.Contains(t, fatal.Error(), "after 2 attempts")
	assert.Equal(t, []string{"alice"}, roles.FindByName("reader").Members)
}

func TestReloadUnchangedIsNoop(t *testing.T) {
	users, roles := newTestStores(t)

	var outcomes []string
	job := NewReloadJob(users, roles,
		ReloadConfig{Interval: time.Hour, MaxAttempts: 1, Backoff: time.Millisecond},
		WithReloadObserver(func(outcome string) { outcomes = append(outcomes, outcome) }),
	)

	job.runCycle()
	assert.Equal(t, []string{"unchanged"}, outcomes)
}
