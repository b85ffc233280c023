// Package realm defines the pluggable identity backends the coordinator
// drives. A realm is polymorphic over the capability set {authenticate,
// authorize}: implementations expose either or both through the two
// orthogonal provider interfaces rather than a deep type hierarchy.
package realm

import (
	"context"

	"github.com/lodestonedb/lodestone-auth/pkg/security"
)

// AuthenticationInfo is one realm's verdict for one login attempt.
type AuthenticationInfo struct {
	Principal string
	Result    security.Result
}

// AuthorizationInfo is the role set one realm asserts for a principal. A nil
// *AuthorizationInfo means "this realm has no opinion"; a non-nil info with
// an empty role slice means "explicitly no roles".
type AuthorizationInfo struct {
	Roles []string
}

// Realm identifies a backend and declares which tokens it handles.
type Realm interface {
	// Name is the realm identifier, matched against a token's realm hint.
	Name() string

	// Handles reports whether this realm should be consulted for the
	// token, based on the authentication scheme and the optional explicit
	// realm hint.
	Handles(token *security.Token) bool
}

// AuthenticationProvider is implemented by realms able to authenticate.
type AuthenticationProvider interface {
	Realm

	// Authenticate validates the token's credentials. Errors signal
	// distinguishable failures: security.ErrUnknownAccount,
	// security.ErrAuthenticationFailed, security.ErrTooManyAttempts,
	// security.ErrAccountDisabled, or the infrastructure errors
	// security.ErrProviderTimeout / security.ErrProviderUnavailable.
	Authenticate(ctx context.Context, token *security.Token) (*AuthenticationInfo, error)
}

// AuthorizationProvider is implemented by realms able to authorize.
type AuthorizationProvider interface {
	Realm

	// Authorize returns the roles this realm asserts for the principal.
	// Returning (nil, nil) means the realm has no opinion. It returns
	// security.ErrAuthorizationExpired when a cached decision is stale and
	// cannot be refreshed without live credentials.
	Authorize(ctx context.Context, principal string) (*AuthorizationInfo, error)
}

// handlesToken is the shared scheme/hint matching rule.
func handlesToken(name string, schemes []string, token *security.Token) bool {
	if token.HasRealmHint() && token.Realm != name {
		return false
	}
	for _, s := range schemes {
		if s == token.Scheme {
			return true
		}
	}
	return false
}
