package memory

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lodestonedb/lodestone-auth/pkg/identity"
	"github.com/lodestonedb/lodestone-auth/pkg/security"
)

// PersistRolesFunc mirrors PersistUsersFunc for the role repository.
type PersistRolesFunc func(roles []*identity.Role) error

// roleSnapshot is the immutable state readers see. byMember is the reverse
// index from username to the sorted role names the user belongs to.
type roleSnapshot struct {
	all       []*identity.Role
	byName    map[string]*identity.Role
	byMember  map[string][]string
	timestamp int64
}

func buildRoleSnapshot(roles []*identity.Role, ts int64) *roleSnapshot {
	byName := make(map[string]*identity.Role, len(roles))
	byMember := make(map[string][]string)
	for _, role := range roles {
		byName[role.Name] = role
		for _, member := range role.Members {
			byMember[member] = append(byMember[member], role.Name)
		}
	}
	return &roleSnapshot{all: roles, byName: byName, byMember: byMember, timestamp: ts}
}

// RoleRepository is the in-memory identity.RoleRepository implementation.
type RoleRepository struct {
	mu      sync.Mutex
	snap    atomic.Pointer[roleSnapshot]
	persist PersistRolesFunc
	now     func() time.Time
}

// RoleOption configures a RoleRepository.
type RoleOption func(*RoleRepository)

// WithRolePersistence installs a persist hook invoked after each mutation.
func WithRolePersistence(fn PersistRolesFunc) RoleOption {
	return func(r *RoleRepository) { r.persist = fn }
}

// NewRoleRepository creates an empty repository.
func NewRoleRepository(opts ...RoleOption) *RoleRepository {
	r := &RoleRepository{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.snap.Store(buildRoleSnapshot(nil, r.now().UnixNano()))
	return r
}

// FindByName returns the role or nil. Lock-free.
func (r *RoleRepository) FindByName(name string) *identity.Role {
	return r.snap.Load().byName[name]
}

// Create adds a new role record.
func (r *RoleRepository) Create(role *identity.Role) error {
	if err := identity.ValidateRoleName(role.Name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	if _, exists := cur.byName[role.Name]; exists {
		return security.InvalidArgumentsf("The specified role '%s' already exists", role.Name)
	}

	next := make([]*identity.Role, len(cur.all), len(cur.all)+1)
	copy(next, cur.all)
	next = append(next, role)
	return r.swap(next)
}

// Update replaces existing with updated, failing when existing is stale.
func (r *RoleRepository) Update(existing, updated *identity.Role) error {
	if existing.Name != updated.Name {
		return security.InvalidArgumentsf("The names of the existing and updated roles must match")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	current, ok := cur.byName[existing.Name]
	if !ok || !current.Equal(existing) {
		return security.ErrConcurrentModification
	}

	next := make([]*identity.Role, 0, len(cur.all))
	for _, role := range cur.all {
		if role.Name == existing.Name {
			next = append(next, updated)
		} else {
			next = append(next, role)
		}
	}
	return r.swap(next)
}

// Delete removes the record and reports whether it was found.
func (r *RoleRepository) Delete(role *identity.Role) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	if _, ok := cur.byName[role.Name]; !ok {
		return false
	}

	next := make([]*identity.Role, 0, len(cur.all)-1)
	for _, existing := range cur.all {
		if existing.Name != role.Name {
			next = append(next, existing)
		}
	}
	_ = r.swap(next)
	return true
}

// RolesByUsername answers through the reverse index. Lock-free.
func (r *RoleRepository) RolesByUsername(username string) []string {
	names := r.snap.Load().byMember[username]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// RemoveUserFromAllRoles strips the username from every role's member set.
func (r *RoleRepository) RemoveUserFromAllRoles(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	if len(cur.byMember[username]) == 0 {
		return nil
	}

	next := make([]*identity.Role, 0, len(cur.all))
	for _, role := range cur.all {
		if role.HasMember(username) {
			next = append(next, role.WithoutMember(username))
		} else {
			next = append(next, role)
		}
	}
	return r.swap(next)
}

// AllRoleNames returns all role names. Lock-free.
func (r *RoleRepository) AllRoleNames() []string {
	cur := r.snap.Load()
	names := make([]string, 0, len(cur.all))
	for _, role := range cur.all {
		names = append(names, role.Name)
	}
	return names
}

// Snapshot returns the current in-memory view.
func (r *RoleRepository) Snapshot() identity.ListSnapshot[*identity.Role] {
	cur := r.snap.Load()
	values := make([]*identity.Role, len(cur.all))
	copy(values, cur.all)
	return identity.ListSnapshot[*identity.Role]{
		Timestamp:     cur.timestamp,
		Values:        values,
		FromPersisted: false,
	}
}

// SetRoles wholesale replaces the state with a newer snapshot. A persisted
// snapshot older than the current in-memory state is skipped, mirroring
// SetUsers.
func (r *RoleRepository) SetRoles(snapshot identity.ListSnapshot[*identity.Role]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if snapshot.FromPersisted && snapshot.Timestamp < r.snap.Load().timestamp {
		return nil
	}

	seen := make(map[string]struct{}, len(snapshot.Values))
	for _, role := range snapshot.Values {
		if err := identity.ValidateRoleName(role.Name); err != nil {
			return err
		}
		if _, dup := seen[role.Name]; dup {
			return security.InvalidArgumentsf("The specified role '%s' already exists", role.Name)
		}
		seen[role.Name] = struct{}{}
	}

	r.snap.Store(buildRoleSnapshot(snapshot.Values, r.now().UnixNano()))
	return nil
}

func (r *RoleRepository) swap(roles []*identity.Role) error {
	r.snap.Store(buildRoleSnapshot(roles, r.now().UnixNano()))
	if r.persist != nil {
		return r.persist(roles)
	}
	return nil
}
