package auth

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/lodestonedb/lodestone-auth/pkg/security"
)

// LoginContext wraps one merged authentication outcome. Authorization is
// computed lazily per request through Authorize; the context itself retains
// no credentials.
type LoginContext struct {
	coord        *Coordinator
	subject      string
	connectionID string

	mu     sync.Mutex
	result security.Result
}

func newLoginContext(coord *Coordinator, subject string, result security.Result) *LoginContext {
	return &LoginContext{
		coord:        coord,
		subject:      subject,
		connectionID: uuid.NewString(),
		result:       result,
	}
}

// Subject returns the authenticated principal.
func (lc *LoginContext) Subject() string { return lc.subject }

// ConnectionID identifies this login for correlation in logs.
func (lc *LoginContext) ConnectionID() string { return lc.connectionID }

// Result returns the merged authentication outcome.
func (lc *LoginContext) Result() security.Result {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.result
}

// passwordChangeNoLongerRequired flips a PASSWORD_CHANGE_REQUIRED login to
// SUCCESS. Reached only through the subject changing their own password.
func (lc *LoginContext) passwordChangeNoLongerRequired() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.result == security.ResultPasswordChangeRequired {
		lc.result = security.ResultSuccess
	}
}

// Authorize computes the security context for a request: the union of the
// roles every authorization-enabled realm asserts for the subject, resolved
// through the cache, plus the capability booleans and property predicate
// derived from them. A login pending a password change yields a context that
// denies everything with the actionable credentials-expired message.
func (lc *LoginContext) Authorize(ctx context.Context, lookup security.PropertyLookup) (*SecurityContext, error) {
	roles, err := lc.coord.rolesFor(ctx, lc.subject)
	if err != nil {
		return nil, err
	}

	credentialsExpired := lc.Result() == security.ResultPasswordChangeRequired
	mode := security.NewAccessMode(roles, credentialsExpired, lc.coord.blacklist, lookup)
	return &SecurityContext{username: lc.subject, mode: mode}, nil
}

// UserManager returns the management surface for this login's subject,
// wired so that the subject changing their own password clears a pending
// password-change requirement.
func (lc *LoginContext) UserManager(isAdmin bool) *UserManager {
	m := lc.coord.UserManager(lc.subject, isAdmin)
	m.onOwnPasswordChange = lc.passwordChangeNoLongerRequired
	return m
}

// SecurityContext is the immutable per-request decision object downstream
// operations consult for every action.
type SecurityContext struct {
	username string
	mode     *security.AccessMode
}

// Username returns the principal this context was built for.
func (sc *SecurityContext) Username() string { return sc.username }

// Mode returns the access mode.
func (sc *SecurityContext) Mode() *security.AccessMode { return sc.mode }

// WithMode derives a context for the same principal under a different access
// mode, leaving the receiver untouched.
func (sc *SecurityContext) WithMode(mode *security.AccessMode) *SecurityContext {
	return &SecurityContext{username: sc.username, mode: mode}
}
