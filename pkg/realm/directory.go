package realm

import (
	"context"
	"errors"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/lodestonedb/lodestone-auth/internal/logger"
	"github.com/lodestonedb/lodestone-auth/pkg/security"
)

// DirectoryRealmName is the realm identifier of the directory-backed realm.
const DirectoryRealmName = "directory"

// DirectoryClient is the transport boundary to the external directory
// service. A full protocol client is out of scope here; the engine owns
// only the coordination and decision logic around it.
type DirectoryClient interface {
	// Bind authenticates the principal with the directory server.
	Bind(ctx context.Context, principal string, credentials []byte) error

	// LookupGroups returns the directory group names the principal is a
	// member of.
	LookupGroups(ctx context.Context, principal string) ([]string, error)
}

// DirectoryConfig configures the directory realm.
type DirectoryConfig struct {
	// ConnectTimeout and ReadTimeout bound every directory round trip.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// AuthzCacheTTL is how long group memberships fetched at login remain
	// usable for authorization without a fresh network round trip.
	AuthzCacheTTL time.Duration `mapstructure:"authz_cache_ttl" yaml:"authz_cache_ttl"`

	// GroupToRole maps directory group names to engine role names.
	GroupToRole map[string][]string `mapstructure:"group_to_role" yaml:"group_to_role"`
}

// DirectoryRealm coordinates authentication and authorization against an
// external directory service. Group memberships are fetched during
// authentication, mapped to roles, and cached; authorization answers from
// that cache because a fresh round trip would need live credentials.
type DirectoryRealm struct {
	client DirectoryClient
	cfg    DirectoryConfig
	now    func() time.Time

	mu    sync.Mutex
	authz map[string]directoryCacheEntry
}

type directoryCacheEntry struct {
	roles []string
	at    time.Time
}

// NewDirectoryRealm wires the realm over a directory client.
func NewDirectoryRealm(client DirectoryClient, cfg DirectoryConfig) *DirectoryRealm {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.AuthzCacheTTL <= 0 {
		cfg.AuthzCacheTTL = 10 * time.Minute
	}
	return &DirectoryRealm{
		client: client,
		cfg:    cfg,
		now:    time.Now,
		authz:  make(map[string]directoryCacheEntry),
	}
}

// Name returns "directory".
func (r *DirectoryRealm) Name() string { return DirectoryRealmName }

// Handles accepts basic-scheme tokens, honoring an explicit realm hint.
func (r *DirectoryRealm) Handles(token *security.Token) bool {
	return handlesToken(DirectoryRealmName, []string{security.SchemeBasic}, token)
}

// Authenticate binds against the directory and refreshes the authorization
// cache from the principal's group memberships. Transport faults surface as
// security.ErrProviderTimeout / security.ErrProviderUnavailable so callers
// can distinguish infrastructure failure from bad credentials.
func (r *DirectoryRealm) Authenticate(ctx context.Context, token *security.Token) (*AuthenticationInfo, error) {
	bindCtx, cancel := context.WithTimeout(ctx, r.cfg.ConnectTimeout+r.cfg.ReadTimeout)
	defer cancel()

	if err := r.client.Bind(bindCtx, token.Principal, token.Credentials); err != nil {
		if infra := classifyTransportError(err); infra != nil {
			return nil, infra
		}
		return nil, security.ErrAuthenticationFailed
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	groups, err := r.client.LookupGroups(lookupCtx, token.Principal)
	if err != nil {
		if infra := classifyTransportError(err); infra != nil {
			return nil, infra
		}
		// Authentication succeeded; a failed group lookup just means no
		// authorization info from this realm.
		logger.Warn("directory group lookup failed",
			"principal", security.EscapePrincipal(token.Principal), "error", err)
		groups = nil
	}

	r.mu.Lock()
	r.authz[token.Principal] = directoryCacheEntry{roles: r.mapGroups(groups), at: r.now()}
	r.mu.Unlock()

	return &AuthenticationInfo{Principal: token.Principal, Result: security.ResultSuccess}, nil
}

// Authorize answers from the cache filled at authentication time. A
// principal this realm never authenticated gets no opinion; an entry that
// existed but lapsed cannot be refreshed without live credentials, so it
// signals security.ErrAuthorizationExpired and the client must reconnect.
func (r *DirectoryRealm) Authorize(ctx context.Context, principal string) (*AuthorizationInfo, error) {
	r.mu.Lock()
	entry, ok := r.authz[principal]
	expired := ok && r.now().Sub(entry.at) >= r.cfg.AuthzCacheTTL
	if expired {
		delete(r.authz, principal)
	}
	r.mu.Unlock()

	if expired {
		return nil, security.ErrAuthorizationExpired
	}
	if !ok {
		return nil, nil
	}
	roles := make([]string, len(entry.roles))
	copy(roles, entry.roles)
	return &AuthorizationInfo{Roles: roles}, nil
}

// mapGroups translates directory groups into engine roles. Unmapped groups
// contribute nothing.
func (r *DirectoryRealm) mapGroups(groups []string) []string {
	seen := make(map[string]struct{})
	var roles []string
	for _, g := range groups {
		for _, role := range r.cfg.GroupToRole[g] {
			if _, dup := seen[role]; !dup {
				seen[role] = struct{}{}
				roles = append(roles, role)
			}
		}
	}
	if roles == nil {
		roles = []string{}
	}
	return roles
}

// classifyTransportError maps network-level faults to the distinguishable
// infrastructure errors; nil means the error was not transport-related.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return security.ErrProviderTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return security.ErrProviderTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return security.ErrProviderUnavailable
	}
	var op *net.OpError
	if errors.As(err, &op) {
		return security.ErrProviderUnavailable
	}
	return nil
}
