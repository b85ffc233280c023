// Package memory provides in-memory implementations of the identity
// repositories. Mutations are serialized behind a single mutex; every
// mutation builds a fresh snapshot and swaps one pointer, so readers never
// observe a torn state. The file-backed store embeds these repositories and
// supplies a persist hook.
package memory

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lodestonedb/lodestone-auth/pkg/identity"
	"github.com/lodestonedb/lodestone-auth/pkg/security"
)

// PersistUsersFunc is called under the repository lock after each successful
// mutation with the new authoritative record list.
type PersistUsersFunc func(users []*identity.User) error

// userSnapshot is the immutable state readers see.
type userSnapshot struct {
	all       []*identity.User
	byName    map[string]*identity.User
	timestamp int64
}

func buildUserSnapshot(users []*identity.User, ts int64) *userSnapshot {
	byName := make(map[string]*identity.User, len(users))
	for _, u := range users {
		byName[u.Name] = u
	}
	return &userSnapshot{all: users, byName: byName, timestamp: ts}
}

// UserRepository is the in-memory identity.UserRepository implementation.
type UserRepository struct {
	mu      sync.Mutex
	snap    atomic.Pointer[userSnapshot]
	persist PersistUsersFunc
	now     func() time.Time
}

// UserOption configures a UserRepository.
type UserOption func(*UserRepository)

// WithUserPersistence installs a persist hook invoked after each mutation.
func WithUserPersistence(fn PersistUsersFunc) UserOption {
	return func(r *UserRepository) { r.persist = fn }
}

// NewUserRepository creates an empty repository.
func NewUserRepository(opts ...UserOption) *UserRepository {
	r := &UserRepository{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.snap.Store(buildUserSnapshot(nil, r.now().UnixNano()))
	return r
}

// FindByName returns the user or nil. Lock-free.
func (r *UserRepository) FindByName(name string) *identity.User {
	return r.snap.Load().byName[name]
}

// Create adds a new user record.
func (r *UserRepository) Create(user *identity.User) error {
	if err := identity.ValidateUserName(user.Name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	if _, exists := cur.byName[user.Name]; exists {
		return security.InvalidArgumentsf("The specified user '%s' already exists", user.Name)
	}

	next := make([]*identity.User, len(cur.all), len(cur.all)+1)
	copy(next, cur.all)
	next = append(next, user)
	return r.swap(next)
}

// Update replaces existing with updated, failing when existing is stale.
func (r *UserRepository) Update(existing, updated *identity.User) error {
	if existing.Name != updated.Name {
		return security.InvalidArgumentsf("The names of the existing and updated users must match")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	current, ok := cur.byName[existing.Name]
	if !ok || !current.Equal(existing) {
		return security.ErrConcurrentModification
	}

	next := make([]*identity.User, 0, len(cur.all))
	for _, u := range cur.all {
		if u.Name == existing.Name {
			next = append(next, updated)
		} else {
			next = append(next, u)
		}
	}
	return r.swap(next)
}

// Delete removes the record and reports whether it was found.
func (r *UserRepository) Delete(user *identity.User) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	if _, ok := cur.byName[user.Name]; !ok {
		return false
	}

	next := make([]*identity.User, 0, len(cur.all)-1)
	for _, u := range cur.all {
		if u.Name != user.Name {
			next = append(next, u)
		}
	}
	// Deletion is not rolled back if persistence fails; the reload job will
	// surface a persistent store problem on its next cycle.
	_ = r.swap(next)
	return true
}

// AllUsernames returns all usernames. Lock-free.
func (r *UserRepository) AllUsernames() []string {
	cur := r.snap.Load()
	names := make([]string, 0, len(cur.all))
	for _, u := range cur.all {
		names = append(names, u.Name)
	}
	return names
}

// Snapshot returns the current in-memory view.
func (r *UserRepository) Snapshot() identity.ListSnapshot[*identity.User] {
	cur := r.snap.Load()
	values := make([]*identity.User, len(cur.all))
	copy(values, cur.all)
	return identity.ListSnapshot[*identity.User]{
		Timestamp:     cur.timestamp,
		Values:        values,
		FromPersisted: false,
	}
}

// SetUsers wholesale replaces the state with a newer snapshot, typically one
// read back from the persisted store. A persisted snapshot older than the
// current in-memory state is skipped: a mutation committed after the snapshot
// was read has already persisted the newer state.
func (r *UserRepository) SetUsers(snapshot identity.ListSnapshot[*identity.User]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if snapshot.FromPersisted && snapshot.Timestamp < r.snap.Load().timestamp {
		return nil
	}

	seen := make(map[string]struct{}, len(snapshot.Values))
	for _, u := range snapshot.Values {
		if err := identity.ValidateUserName(u.Name); err != nil {
			return err
		}
		if _, dup := seen[u.Name]; dup {
			return security.InvalidArgumentsf("The specified user '%s' already exists", u.Name)
		}
		seen[u.Name] = struct{}{}
	}

	r.snap.Store(buildUserSnapshot(snapshot.Values, r.now().UnixNano()))
	return nil
}

// swap installs the new list and persists it. Callers hold r.mu.
func (r *UserRepository) swap(users []*identity.User) error {
	r.snap.Store(buildUserSnapshot(users, r.now().UnixNano()))
	if r.persist != nil {
		return r.persist(users)
	}
	return nil
}
