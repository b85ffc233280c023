package security

import (
	"errors"
	"fmt"
)

// Repository and argument errors.
var (
	// ErrInvalidArguments is returned for bad names, duplicates, and
	// references to entities that do not exist.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrConcurrentModification is returned when an optimistic update lost
	// the race against a concurrent mutation. Callers should re-read the
	// record and retry.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// Authentication errors.
var (
	// ErrAuthenticationFailed is the generic bad-credentials error. Unknown
	// accounts are folded into this at the coordinator boundary so callers
	// cannot probe for valid usernames.
	ErrAuthenticationFailed = errors.New("the client is unauthorized due to authentication failure")

	// ErrUnknownAccount signals that no realm recognized the principal.
	ErrUnknownAccount = errors.New("unknown account")

	// ErrAccountDisabled signals an authentication attempt against a
	// suspended account.
	ErrAccountDisabled = errors.New("account is suspended")

	// ErrTooManyAttempts signals that authentication was rate limited after
	// repeated failures.
	ErrTooManyAttempts = errors.New("the client has provided incorrect authentication details too many times in a row")

	// ErrPasswordChangeRequired is a soft failure: the credentials were
	// valid but must be changed before the account can be used.
	ErrPasswordChangeRequired = errors.New("password change required")

	// ErrInvalidToken is returned for malformed authentication tokens,
	// before any realm is consulted.
	ErrInvalidToken = errors.New("unsupported authentication token")
)

// Authorization errors.
var (
	// ErrAuthorizationExpired signals that a cached authorization decision
	// is stale and cannot be refreshed without live credentials. The client
	// must re-authenticate.
	ErrAuthorizationExpired = errors.New("the stored authorization info has expired, please reconnect")
)

// Infrastructure errors, distinguished from credential faults so operators
// can alert on backend outages separately from brute-force noise.
var (
	// ErrProviderTimeout signals a timeout talking to an identity backend.
	ErrProviderTimeout = errors.New("authentication provider timed out")

	// ErrProviderUnavailable signals a refused or failed connection to an
	// identity backend.
	ErrProviderUnavailable = errors.New("authentication provider is unavailable")
)

// AuthorizationViolation is returned when an operation is denied by the
// access mode. The message is deliberately generic ("Permission denied.")
// unless the denial is caused by a required password change, in which case
// the actionable credentials-expired message is produced instead.
type AuthorizationViolation struct {
	msg string
}

func (e *AuthorizationViolation) Error() string { return e.msg }

// Is makes errors.Is(err, ErrAuthorizationViolation) work for any violation.
func (e *AuthorizationViolation) Is(target error) bool {
	return target == ErrAuthorizationViolation
}

// ErrAuthorizationViolation is the sentinel all authorization violations
// match via errors.Is.
var ErrAuthorizationViolation = errors.New("authorization violation")

const (
	permissionDeniedMessage = "Permission denied."

	credentialsExpiredMessage = "Permission denied.\n\nThe credentials you provided were valid, " +
		"but must be changed before you can use this instance."
)

// NewPermissionDenied returns the generic permission-denied violation.
// The specific failed check is never leaked to the caller.
func NewPermissionDenied() error {
	return &AuthorizationViolation{msg: permissionDeniedMessage}
}

// NewCredentialsExpired returns the violation raised when the denial is due
// to a required password change.
func NewCredentialsExpired() error {
	return &AuthorizationViolation{msg: credentialsExpiredMessage}
}

// InvalidArgumentsf builds an ErrInvalidArguments with a user-facing message.
func InvalidArgumentsf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArguments)
}
