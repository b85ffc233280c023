package realm

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestonedb/lodestone-auth/pkg/security"
)

type fakeDirectory struct {
	bindErr   error
	groups    []string
	lookupErr error

	bindCalls   int
	lookupCalls int
}

func (f *fakeDirectory) Bind(ctx context.Context, principal string, credentials []byte) error {
	f.bindCalls++
	return f.bindErr
}

func (f *fakeDirectory) LookupGroups(ctx context.Context, principal string) ([]string, error) {
	f.lookupCalls++
	return f.groups, f.lookupErr
}

func testDirectoryConfig() DirectoryConfig {
	return DirectoryConfig{
		AuthzCacheTTL: time.Minute,
		GroupToRole: map[string][]string{
			"engineering": {security.RoleReader, security.RolePublisher},
			"ops":         {security.RoleAdmin},
		},
	}
}

func TestDirectoryAuthenticateMapsGroups(t *testing.T) {
	dir := &fakeDirectory{groups: []string{"engineering", "unknown-group"}}
	r := NewDirectoryRealm(dir, testDirectoryConfig())

	info, err := r.Authenticate(context.Background(), basicToken("alice", "secret"))
	require.NoError(t, err)
	assert.Equal(t, security.ResultSuccess, info.Result)

	authz, err := r.Authorize(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, authz)
	assert.ElementsMatch(t, []string{security.RoleReader, security.RolePublisher}, authz.Roles)
}

func TestDirectoryBadCredentials(t *testing.T) {
	dir := &fakeDirectory{bindErr: errors.New("invalid credentials")}
	r := NewDirectoryRealm(dir, testDirectoryConfig())

	_, err := r.Authenticate(context.Background(), basicToken("alice", "nope"))
	assert.ErrorIs(t, err, security.ErrAuthenticationFailed)
	assert.Zero(t, dir.lookupCalls)
}

func TestDirectoryTransportErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"deadline exceeded", context.DeadlineExceeded, security.ErrProviderTimeout},
		{"connection refused", syscall.ECONNREFUSED, security.ErrProviderUnavailable},
		{"connection reset", syscall.ECONNRESET, security.ErrProviderUnavailable},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("no route to host")}, security.ErrProviderUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := &fakeDirectory{bindErr: tc.err}
			r := NewDirectoryRealm(dir, testDirectoryConfig())

			_, err := r.Authenticate(context.Background(), basicToken("alice", "secret"))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDirectoryGroupLookupFailureStillAuthenticates(t *testing.T) {
	dir := &fakeDirectory{lookupErr: errors.New("search failed")}
	r := NewDirectoryRealm(dir, testDirectoryConfig())

	info, err := r.Authenticate(context.Background(), basicToken("alice", "secret"))
	require.NoError(t, err)
	assert.Equal(t, security.ResultSuccess, info.Result)

	authz, err := r.Authorize(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, authz)
	assert.Empty(t, authz.Roles)
}

func TestDirectoryAuthorizeUnknownPrincipalNoOpinion(t *testing.T) {
	r := NewDirectoryRealm(&fakeDirectory{}, testDirectoryConfig())

	authz, err := r.Authorize(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, authz)
}

func TestDirectoryAuthorizeCacheExpiry(t *testing.T) {
	dir := &fakeDirectory{groups: []string{"ops"}}
	r := NewDirectoryRealm(dir, testDirectoryConfig())

	clock := time.Unix(1000, 0)
	r.now = func() time.Time { return clock }

	_, err := r.Authenticate(context.Background(), basicToken("alice", "secret"))
	require.NoError(t, err)

	authz, err := r.Authorize(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{security.RoleAdmin}, authz.Roles)

	clock = clock.Add(time.Minute)
	_, err = r.Authorize(context.Background(), "alice")
	assert.ErrorIs(t, err, security.ErrAuthorizationExpired)
}

func TestDirectoryHandlesRealmHint(t *testing.T) {
	r := NewDirectoryRealm(&fakeDirectory{}, testDirectoryConfig())

	assert.True(t, r.Handles(basicToken("alice", "x")))

	hinted := basicToken("alice", "x")
	hinted.Realm = InternalRealmName
	assert.False(t, r.Handles(hinted))
}
