package realm

import (
	"context"

	"github.com/lodestonedb/lodestone-auth/pkg/identity"
	"github.com/lodestonedb/lodestone-auth/pkg/security"
)

// InternalRealmName is the realm identifier of the built-in store realm.
const InternalRealmName = "internal"

// InternalRealm authenticates and authorizes against the engine's own user
// and role repositories. It is the reference realm implementation.
type InternalRealm struct {
	users    identity.UserRepository
	roles    identity.RoleRepository
	strategy *RateLimitedStrategy
}

// NewInternalRealm wires the realm over the given repositories. strategy may
// be nil, in which case a default rate limiter is used.
func NewInternalRealm(users identity.UserRepository, roles identity.RoleRepository, strategy *RateLimitedStrategy) *InternalRealm {
	if strategy == nil {
		strategy = NewRateLimitedStrategy(0, 0)
	}
	return &InternalRealm{users: users, roles: roles, strategy: strategy}
}

// Name returns "internal".
func (r *InternalRealm) Name() string { return InternalRealmName }

// Handles accepts basic-scheme tokens, honoring an explicit realm hint.
func (r *InternalRealm) Handles(token *security.Token) bool {
	return handlesToken(InternalRealmName, []string{security.SchemeBasic}, token)
}

// Authenticate validates the token against the user repository.
func (r *InternalRealm) Authenticate(ctx context.Context, token *security.Token) (*AuthenticationInfo, error) {
	if err := r.strategy.Assert(token.Principal); err != nil {
		return nil, err
	}

	user := r.users.FindByName(token.Principal)
	if user == nil {
		// Unknown accounts still consume the failure budget so the realm
		// cannot be used to probe for valid usernames.
		r.strategy.RecordFailure(token.Principal)
		return nil, security.ErrUnknownAccount
	}

	if !user.Credential.Matches(string(token.Credentials)) {
		r.strategy.RecordFailure(token.Principal)
		return nil, security.ErrAuthenticationFailed
	}
	r.strategy.RecordSuccess(token.Principal)

	if user.IsSuspended() {
		return nil, security.ErrAccountDisabled
	}

	result := security.ResultSuccess
	if user.PasswordChangeRequired() {
		result = security.ResultPasswordChangeRequired
	}
	return &AuthenticationInfo{Principal: user.Name, Result: result}, nil
}

// Authorize returns the roles the internal store asserts for the principal.
// Unknown principals yield no opinion; a known principal without any role
// memberships yields explicitly no roles.
func (r *InternalRealm) Authorize(ctx context.Context, principal string) (*AuthorizationInfo, error) {
	user := r.users.FindByName(principal)
	if user == nil {
		return nil, nil
	}
	roles := r.roles.RolesByUsername(principal)
	if roles == nil {
		roles = []string{}
	}
	return &AuthorizationInfo{Roles: roles}, nil
}
