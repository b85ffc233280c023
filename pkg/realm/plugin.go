package realm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lodestonedb/lodestone-auth/internal/logger"
	"github.com/lodestonedb/lodestone-auth/pkg/security"
)

// AuthPlugin is the contract external authentication plugins implement. The
// plugin host itself is a collaborator; this realm owns only the adaptation
// of plugin verdicts into the engine's types.
type AuthPlugin interface {
	// Name identifies the plugin; the realm is addressed as
	// "plugin-<name>" in token realm hints.
	Name() string

	// AuthenticateAndAuthorize verifies the credentials and returns the
	// roles the plugin asserts in one round trip.
	AuthenticateAndAuthorize(ctx context.Context, principal string, credentials []byte) (*PluginResult, error)
}

// PluginResult is a plugin's combined verdict.
type PluginResult struct {
	Roles                  []string
	PasswordChangeRequired bool
}

// PluginRealm adapts an AuthPlugin into the realm interfaces. Plugin panics
// are recovered and folded into authentication failure so a misbehaving
// plugin can never take down the coordinator.
type PluginRealm struct {
	plugin  AuthPlugin
	schemes []string
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	authz map[string]pluginCacheEntry
}

type pluginCacheEntry struct {
	roles []string
	at    time.Time
}

// NewPluginRealm wraps the plugin. schemes defaults to {"basic"}.
func NewPluginRealm(plugin AuthPlugin, ttl time.Duration, schemes ...string) *PluginRealm {
	if len(schemes) == 0 {
		schemes = []string{security.SchemeBasic}
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PluginRealm{
		plugin:  plugin,
		schemes: schemes,
		ttl:     ttl,
		now:     time.Now,
		authz:   make(map[string]pluginCacheEntry),
	}
}

// Name returns "plugin-<plugin name>".
func (r *PluginRealm) Name() string { return "plugin-" + r.plugin.Name() }

// Handles accepts the configured schemes, honoring an explicit realm hint.
func (r *PluginRealm) Handles(token *security.Token) bool {
	return handlesToken(r.Name(), r.schemes, token)
}

// Authenticate delegates to the plugin and caches the asserted roles for
// later Authorize calls.
func (r *PluginRealm) Authenticate(ctx context.Context, token *security.Token) (info *AuthenticationInfo, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("auth plugin panicked",
				"plugin", r.plugin.Name(),
				"principal", security.EscapePrincipal(token.Principal),
				"panic", fmt.Sprint(rec))
			info = nil
			err = security.ErrAuthenticationFailed
		}
	}()

	result, err := r.plugin.AuthenticateAndAuthorize(ctx, token.Principal, token.Credentials)
	if err != nil {
		if infra := classifyTransportError(err); infra != nil {
			return nil, infra
		}
		return nil, security.ErrAuthenticationFailed
	}

	roles := result.Roles
	if roles == nil {
		roles = []string{}
	}
	r.mu.Lock()
	r.authz[token.Principal] = pluginCacheEntry{roles: roles, at: r.now()}
	r.mu.Unlock()

	outcome := security.ResultSuccess
	if result.PasswordChangeRequired {
		outcome = security.ResultPasswordChangeRequired
	}
	return &AuthenticationInfo{Principal: token.Principal, Result: outcome}, nil
}

// Authorize answers from the verdict cached at authentication; principals
// this plugin never authenticated get no opinion, expired entries require a
// fresh login.
func (r *PluginRealm) Authorize(ctx context.Context, principal string) (*AuthorizationInfo, error) {
	r.mu.Lock()
	entry, ok := r.authz[principal]
	if ok && r.now().Sub(entry.at) >= r.ttl {
		delete(r.authz, principal)
		r.mu.Unlock()
		return nil, security.ErrAuthorizationExpired
	}
	r.mu.Unlock()

	if !ok {
		return nil, nil
	}
	roles := make([]string, len(entry.roles))
	copy(roles, entry.roles)
	return &AuthorizationInfo{Roles: roles}, nil
}
