package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/lodestonedb/lodestone-auth/internal/logger"
	"github.com/lodestonedb/lodestone-auth/pkg/identity"
	"github.com/lodestonedb/lodestone-auth/pkg/realm"
	"github.com/lodestonedb/lodestone-auth/pkg/security"
)

// RealmEntry is one configured realm plus its per-capability enable flags.
// A realm can participate in authentication, authorization, or both.
type RealmEntry struct {
	Realm                 realm.Realm
	AuthenticationEnabled bool
	AuthorizationEnabled  bool
}

// Coordinator drives the configured realms in order, merges their verdicts
// and builds login contexts. It is the single entry point collaborators use;
// nothing downstream talks to a realm directly.
type Coordinator struct {
	realms    []RealmEntry
	cache     *Cache
	users     identity.UserRepository
	roles     identity.RoleRepository
	blacklist map[string][]string
	metrics   *Metrics
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCache installs the authorization cache. Without one, a default-sized
// cache is created.
func WithCache(c *Cache) Option {
	return func(co *Coordinator) { co.cache = c }
}

// WithRepositories wires the user and role repositories the user manager
// operates on.
func WithRepositories(users identity.UserRepository, roles identity.RoleRepository) Option {
	return func(co *Coordinator) {
		co.users = users
		co.roles = roles
	}
}

// WithPropertyBlacklist installs the role to denied-property-names mapping
// applied when access modes are built.
func WithPropertyBlacklist(blacklist map[string][]string) Option {
	return func(co *Coordinator) { co.blacklist = blacklist }
}

// WithMetrics installs the Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(co *Coordinator) { co.metrics = m }
}

// NewCoordinator creates a coordinator over the configured realms. Realm
// order is significant: authentication results merge in this order.
func NewCoordinator(realms []RealmEntry, opts ...Option) (*Coordinator, error) {
	co := &Coordinator{realms: realms}
	for _, opt := range opts {
		opt(co)
	}
	if co.cache == nil {
		cache, err := NewCache(0, 0)
		if err != nil {
			return nil, err
		}
		co.cache = cache
	}
	return co, nil
}

// Cache exposes the authorization cache, used by management operations that
// must invalidate entries.
func (co *Coordinator) Cache() *Cache { return co.cache }

// Login authenticates the raw credential map against every enabled realm
// that handles the token, merging per-realm outcomes with the precedence
// rules. It returns a LoginContext on success or required password change.
// Infrastructure faults (realm timeout, realm unreachable) propagate as
// distinguishable errors; credential faults fold into the merged outcome.
func (co *Coordinator) Login(ctx context.Context, credentials map[string]any) (*LoginContext, error) {
	token, err := security.ParseToken(credentials)
	if err != nil {
		return nil, err
	}
	defer token.ClearCredentials()

	merged := security.ResultNotAttempted
	var disabledErr error

	for _, entry := range co.realms {
		if !entry.AuthenticationEnabled {
			continue
		}
		provider, ok := entry.Realm.(realm.AuthenticationProvider)
		if !ok || !entry.Realm.Handles(token) {
			continue
		}

		info, err := provider.Authenticate(ctx, token)
		if err != nil {
			if errors.Is(err, security.ErrProviderTimeout) || errors.Is(err, security.ErrProviderUnavailable) {
				logger.Error("realm unreachable",
					"realm", entry.Realm.Name(),
					"principal", security.EscapePrincipal(token.Principal),
					"error", err)
				co.countLogin("infrastructure_error")
				return nil, fmt.Errorf("realm %s: %w", entry.Realm.Name(), err)
			}

			logger.Debug("realm rejected login",
				"realm", entry.Realm.Name(),
				"principal", security.EscapePrincipal(token.Principal),
				"error", err)

			switch {
			case errors.Is(err, security.ErrTooManyAttempts):
				merged = security.Merge(merged, security.ResultTooManyAttempts)
			case errors.Is(err, security.ErrAccountDisabled):
				disabledErr = err
				merged = security.Merge(merged, security.ResultFailure)
			default:
				merged = security.Merge(merged, security.ResultFailure)
			}
			continue
		}
		merged = security.Merge(merged, info.Result)
	}

	switch merged {
	case security.ResultSuccess, security.ResultPasswordChangeRequired:
		co.countLogin(outcomeLabel(merged))
		return newLoginContext(co, token.Principal, merged), nil
	case security.ResultTooManyAttempts:
		co.countLogin("too_many_attempts")
		return nil, security.ErrTooManyAttempts
	default:
		co.countLogin("failure")
		if disabledErr != nil {
			return nil, disabledErr
		}
		return nil, security.ErrAuthenticationFailed
	}
}

// rolesFor unions the roles every authorization-enabled realm asserts for
// the principal, consulting the cache first. A realm returning no opinion
// contributes nothing; realm errors (expired authorization, infrastructure
// faults) propagate.
func (co *Coordinator) rolesFor(ctx context.Context, principal string) ([]string, error) {
	roles, hit, err := co.cache.GetOrLoad(principal, func() ([]string, error) {
		return co.queryRealms(ctx, principal)
	})
	if err != nil {
		return nil, err
	}
	co.countCache(hit)
	return roles, nil
}

func (co *Coordinator) queryRealms(ctx context.Context, principal string) ([]string, error) {
	seen := make(map[string]struct{})
	roles := []string{}
	for _, entry := range co.realms {
		if !entry.AuthorizationEnabled {
			continue
		}
		provider, ok := entry.Realm.(realm.AuthorizationProvider)
		if !ok {
			continue
		}
		info, err := provider.Authorize(ctx, principal)
		if err != nil {
			return nil, fmt.Errorf("realm %s: %w", entry.Realm.Name(), err)
		}
		if info == nil {
			continue
		}
		for _, r := range info.Roles {
			if _, dup := seen[r]; !dup {
				seen[r] = struct{}{}
				roles = append(roles, r)
			}
		}
	}
	return roles, nil
}

// UserManager returns the management surface scoped to the given subject.
// Non-admin subjects get a self-scoped manager limited to their own account.
func (co *Coordinator) UserManager(subject string, isAdmin bool) *UserManager {
	return &UserManager{
		coord:   co,
		subject: subject,
		isAdmin: isAdmin,
	}
}

func (co *Coordinator) countLogin(outcome string) {
	if co.metrics != nil {
		co.metrics.LoginAttempts.WithLabelValues(outcome).Inc()
	}
}

func (co *Coordinator) countCache(hit bool) {
	if co.metrics == nil {
		return
	}
	if hit {
		co.metrics.CacheHits.Inc()
	} else {
		co.metrics.CacheMisses.Inc()
	}
}

func outcomeLabel(r security.Result) string {
	switch r {
	case security.ResultSuccess:
		return "success"
	case security.ResultPasswordChangeRequired:
		return "password_change_required"
	case security.ResultTooManyAttempts:
		return "too_many_attempts"
	default:
		return "failure"
	}
}
