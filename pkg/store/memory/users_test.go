package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestonedb/lodestone-auth/pkg/identity"
	"github.com/lodestonedb/lodestone-auth/pkg/security"
)

func TestCreateAndFind(t *testing.T) {
	repo := NewUserRepository()

	require.NoError(t, repo.Create(identity.NewUser("alice", identity.Credential{})))

	found := repo.FindByName("alice")
	require.NotNil(t, found)
	assert.Equal(t, "alice", found.Name)
	assert.Nil(t, repo.FindByName("bob"))
}

func TestCreateRejectsDuplicates(t *testing.T) {
	repo := NewUserRepository()
	require.NoError(t, repo.Create(identity.NewUser("alice", identity.Credential{})))

	err := repo.Create(identity.NewUser("alice", identity.Credential{}))
	assert.ErrorIs(t, err, security.ErrInvalidArguments)
}

func TestCreateRejectsIllegalNames(t *testing.T) {
	repo := NewUserRepository()
	for _, bad := range []string{"", "has space", "semi;colon"} {
		err := repo.Create(identity.NewUser(bad, identity.Credential{}))
		assert.ErrorIs(t, err, security.ErrInvalidArguments, "name %q", bad)
	}
}

func TestUpdateDetectsStaleRecord(t *testing.T) {
	repo := NewUserRepository()
	original := identity.NewUser("alice", identity.Credential{})
	require.NoError(t, repo.Create(original))

	// First update from the current record succeeds.
	suspended := original.WithFlag(identity.FlagSuspended)
	require.NoError(t, repo.Update(original, suspended))

	// A second update from the now-stale original must fail.
	err := repo.Update(original, original.WithFlag("other"))
	assert.ErrorIs(t, err, security.ErrConcurrentModification)

	// Retrying from a freshly fetched record succeeds.
	fresh := repo.FindByName("alice")
	require.NoError(t, repo.Update(fresh, fresh.WithFlag("other")))
}

func TestConcurrentUpdatesExactlyOneWinsPerGeneration(t *testing.T) {
	repo := NewUserRepository()
	original := identity.NewUser("alice", identity.Credential{})
	require.NoError(t, repo.Create(original))

	const racers = 16
	var wg sync.WaitGroup
	results := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			updated := original.WithFlag(identity.FlagSuspended)
			results[i] = repo.Update(original, updated)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, security.ErrConcurrentModification)
		}
	}
	assert.Equal(t, 1, winners, "exactly one update per stale-snapshot generation may win")
}

func TestDelete(t *testing.T) {
	repo := NewUserRepository()
	user := identity.NewUser("alice", identity.Credential{})
	require.NoError(t, repo.Create(user))

	assert.True(t, repo.Delete(user))
	assert.Nil(t, repo.FindByName("alice"))
	assert.False(t, repo.Delete(user), "second delete finds nothing")
}

func TestSetUsersReplacesState(t *testing.T) {
	repo := NewUserRepository()
	require.NoError(t, repo.Create(identity.NewUser("old", identity.Credential{})))

	err := repo.SetUsers(identity.ListSnapshot[*identity.User]{
		Timestamp:     time.Now().UnixNano(),
		Values:        []*identity.User{identity.NewUser("new", identity.Credential{})},
		FromPersisted: true,
	})
	require.NoError(t, err)

	assert.Nil(t, repo.FindByName("old"))
	assert.NotNil(t, repo.FindByName("new"))
	assert.Equal(t, []string{"new"}, repo.AllUsernames())
}

func TestSetUsersSkipsStalePersistedSnapshot(t *testing.T) {
	repo := NewUserRepository()

	// Snapshot read from disk before the mutation below committed.
	stale := identity.ListSnapshot[*identity.User]{
		Timestamp:     time.Now().UnixNano(),
		Values:        []*identity.User{identity.NewUser("alice", identity.Credential{})},
		FromPersisted: true,
	}

	updated := identity.NewUser("alice", identity.Credential{}, identity.FlagSuspended)
	repo.now = func() time.Time { return time.Unix(0, stale.Timestamp).Add(time.Second) }
	require.NoError(t, repo.Create(updated))

	require.NoError(t, repo.SetUsers(stale))

	// The newer in-memory mutation must survive the older disk snapshot.
	found := repo.FindByName("alice")
	require.NotNil(t, found)
	assert.True(t, found.IsSuspended())
}

func TestPersistHookReceivesNewList(t *testing.T) {
	var persisted []*identity.User
	repo := NewUserRepository(WithUserPersistence(func(users []*identity.User) error {
		persisted = users
		return nil
	}))

	require.NoError(t, repo.Create(identity.NewUser("alice", identity.Credential{})))
	require.Len(t, persisted, 1)
	assert.Equal(t, "alice", persisted[0].Name)
}
