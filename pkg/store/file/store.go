package file

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lodestonedb/lodestone-auth/pkg/identity"
	"github.com/lodestonedb/lodestone-auth/pkg/store/memory"
)

// UserStore is a file-backed identity.UserRepository. It embeds the
// in-memory repository for all index and concurrency behavior and persists
// every mutation through an atomic write.
type UserStore struct {
	*memory.UserRepository

	path string

	hashMu   sync.Mutex
	lastHash [sha256.Size]byte
}

// NewUserStore creates the store and loads the file at path if it exists.
func NewUserStore(path string) (*UserStore, error) {
	s := &UserStore{path: path}
	s.UserRepository = memory.NewUserRepository(
		memory.WithUserPersistence(s.persist),
	)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read user store %q: %w", path, err)
	}

	users, err := deserializeUsers(data)
	if err != nil {
		return nil, err
	}
	if err := s.SetUsers(identity.ListSnapshot[*identity.User]{
		Timestamp:     time.Now().UnixNano(),
		Values:        users,
		FromPersisted: true,
	}); err != nil {
		return nil, err
	}
	s.setLastHash(sha256.Sum256(data))
	return s, nil
}

// Path returns the backing file path.
func (s *UserStore) Path() string { return s.path }

func (s *UserStore) persist(users []*identity.User) error {
	data := serializeUsers(users)
	if err := atomicWrite(s.path, data); err != nil {
		return err
	}
	s.setLastHash(sha256.Sum256(data))
	return nil
}

func (s *UserStore) setLastHash(h [sha256.Size]byte) {
	s.hashMu.Lock()
	s.lastHash = h
	s.hashMu.Unlock()
}

// loadIfChanged re-reads the file. When its content differs from the last
// loaded/persisted state it returns the parsed persisted snapshot and true.
// The snapshot is not applied; the reload job validates first. The snapshot
// timestamp is taken before the read so a mutation committing during the
// cycle always ranks newer and wins the SetUsers reconciliation.
func (s *UserStore) loadIfChanged() (identity.ListSnapshot[*identity.User], [sha256.Size]byte, bool, error) {
	var zero [sha256.Size]byte

	ts := time.Now().UnixNano()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return identity.ListSnapshot[*identity.User]{}, zero, false, nil
		}
		return identity.ListSnapshot[*identity.User]{}, zero, false, err
	}

	h := sha256.Sum256(data)
	s.hashMu.Lock()
	unchanged := h == s.lastHash
	s.hashMu.Unlock()
	if unchanged {
		return identity.ListSnapshot[*identity.User]{}, zero, false, nil
	}

	users, err := deserializeUsers(data)
	if err != nil {
		return identity.ListSnapshot[*identity.User]{}, zero, false, err
	}
	return identity.ListSnapshot[*identity.User]{
		Timestamp:     ts,
		Values:        users,
		FromPersisted: true,
	}, h, true, nil
}

// RoleStore is a file-backed identity.RoleRepository.
type RoleStore struct {
	*memory.RoleRepository

	path string

	hashMu   sync.Mutex
	lastHash [sha256.Size]byte
}

// NewRoleStore creates the store and loads the file at path if it exists.
func NewRoleStore(path string) (*RoleStore, error) {
	s := &RoleStore{path: path}
	s.RoleRepository = memory.NewRoleRepository(
		memory.WithRolePersistence(s.persist),
	)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read role store %q: %w", path, err)
	}

	roles, err := deserializeRoles(data)
	if err != nil {
		return nil, err
	}
	if err := s.SetRoles(identity.ListSnapshot[*identity.Role]{
		Timestamp:     time.Now().UnixNano(),
		Values:        roles,
		FromPersisted: true,
	}); err != nil {
		return nil, err
	}
	s.setLastHash(sha256.Sum256(data))
	return s, nil
}

// Path returns the backing file path.
func (s *RoleStore) Path() string { return s.path }

func (s *RoleStore) persist(roles []*identity.Role) error {
	data := serializeRoles(roles)
	if err := atomicWrite(s.path, data); err != nil {
		return err
	}
	s.setLastHash(sha256.Sum256(data))
	return nil
}

func (s *RoleStore) setLastHash(h [sha256.Size]byte) {
	s.hashMu.Lock()
	s.lastHash = h
	s.hashMu.Unlock()
}

func (s *RoleStore) loadIfChanged() (identity.ListSnapshot[*identity.Role], [sha256.Size]byte, bool, error) {
	var zero [sha256.Size]byte

	ts := time.Now().UnixNano()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return identity.ListSnapshot[*identity.Role]{}, zero, false, nil
		}
		return identity.ListSnapshot[*identity.Role]{}, zero, false, err
	}

	h := sha256.Sum256(data)
	s.hashMu.Lock()
	unchanged := h == s.lastHash
	s.hashMu.Unlock()
	if unchanged {
		return identity.ListSnapshot[*identity.Role]{}, zero, false, nil
	}

	roles, err := deserializeRoles(data)
	if err != nil {
		return identity.ListSnapshot[*identity.Role]{}, zero, false, err
	}
	return identity.ListSnapshot[*identity.Role]{
		Timestamp:     ts,
		Values:        roles,
		FromPersisted: true,
	}, h, true, nil
}

// atomicWrite writes data to a temp file in the same directory and renames
// it over path, so readers never observe a partial file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
