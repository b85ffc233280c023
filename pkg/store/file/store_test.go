package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestonedb/lodestone-auth/pkg/identity"
)

func TestUserSerializationRoundTrip(t *testing.T) {
	cred, err := identity.NewCredential("pw1")
	require.NoError(t, err)
	users := []*identity.User{
		identity.NewUser("alice", cred, identity.FlagSuspended, identity.FlagPasswordChangeRequired),
		identity.NewUser("bob", identity.CredentialFromHash("$2a$10$abc")),
	}

	parsed, err := deserializeUsers(serializeUsers(users))
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.True(t, parsed[0].Equal(users[0]))
	assert.True(t, parsed[1].Equal(users[1]))
	assert.True(t, parsed[0].IsSuspended())
	assert.Empty(t, parsed[1].Flags)
}

func TestRoleSerializationRoundTrip(t *testing.T) {
	roles := []*identity.Role{
		identity.NewRole("reader", "bob", "alice"),
		identity.NewRole("empty_role"),
	}

	parsed, err := deserializeRoles(serializeRoles(roles))
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, []string{"alice", "bob"}, parsed[0].Members)
	assert.Empty(t, parsed[1].Members)
}

func TestDeserializeRejectsMalformedLines(t *testing.T) {
	_, err := deserializeUsers([]byte("justaname\n"))
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = deserializeUsers([]byte(":hash:\n"))
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = deserializeRoles([]byte("nomembersfield\n"))
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestUserStorePersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth")

	store, err := NewUserStore(path)
	require.NoError(t, err)

	cred, err := identity.NewCredential("pw1")
	require.NoError(t, err)
	require.NoError(t, store.Create(identity.NewUser("alice", cred)))

	// No temp file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	// A fresh store over the same file sees the record.
	reopened, err := NewUserStore(path)
	require.NoError(t, err)
	found := reopened.FindByName("alice")
	require.NotNil(t, found)
	assert.True(t, found.Credential.Matches("pw1"))
}

func TestRoleStorePersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles")

	store, err := NewRoleStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Create(identity.NewRole("reader", "alice")))

	reopened, err := NewRoleStore(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"reader"}, reopened.RolesByUsername("alice"))
}

func TestNewStoreWithMissingFileStartsEmpty(t *testing.T) {
	store, err := NewUserStore(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, store.AllUsernames())
}

func TestLoadIfChangedDetectsExternalEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth")
	store, err := NewUserStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Create(identity.NewUser("alice", identity.CredentialFromHash("$2a$10$x"))))

	// Unchanged file yields no snapshot.
	_, _, changed, err := store.loadIfChanged()
	require.NoError(t, err)
	assert.False(t, changed)

	// External edit is picked up.
	external := serializeUsers([]*identity.User{
		identity.NewUser("alice", identity.CredentialFromHash("$2a$10$x")),
		identity.NewUser("bob", identity.CredentialFromHash("$2a$10$y")),
	})
	require.NoError(t, os.WriteFile(path, external, 0o600))

	snap, _, changed, err := store.loadIfChanged()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, snap.FromPersisted)
	assert.Len(t, snap.Values, 2)
}

func TestMutationAfterLoadIsNotRolledBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth")
	store, err := NewUserStore(path)
	require.NoError(t, err)

	alice := identity.NewUser("alice", identity.CredentialFromHash("$2a$10$old"))
	require.NoError(t, store.Create(alice))

	external := serializeUsers([]*identity.User{
		alice,
		identity.NewUser("bob", identity.CredentialFromHash("$2a$10$y")),
	})
	require.NoError(t, os.WriteFile(path, external, 0o600))
	snap, _, changed, err := store.loadIfChanged()
	require.NoError(t, err)
	require.True(t, changed)

	// A password change lands between the file read and the swap.
	rotated := alice.WithCredential(identity.CredentialFromHash("$2a$10$new"))
	require.NoError(t, store.Update(alice, rotated))

	// Applying the older disk snapshot must not revert the new credential.
	require.NoError(t, store.SetUsers(snap))
	found := store.FindByName("alice")
	require.NotNil(t, found)
	assert.True(t, found.Equal(rotated))
}
