package identity

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost balances hashing strength against login latency.
const DefaultBcryptCost = 10

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 1

// MaxPasswordLength is the maximum accepted password length. bcrypt silently
// truncates input at 72 bytes, so longer passwords are rejected outright.
const MaxPasswordLength = 72

// ErrPasswordEmpty is returned when a password is empty.
var ErrPasswordEmpty = errors.New("a password cannot be empty")

// ErrPasswordTooLong is returned when a password exceeds the bcrypt limit.
var ErrPasswordTooLong = errors.New("password must be at most 72 bytes")

// Credential is a salted password hash. The zero value matches nothing.
type Credential struct {
	hash string
}

// NewCredential hashes a plaintext password. The plaintext is not retained.
func NewCredential(password string) (Credential, error) {
	if err := ValidatePassword(password); err != nil {
		return Credential{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), DefaultBcryptCost)
	if err != nil {
		return Credential{}, err
	}
	return Credential{hash: string(hash)}, nil
}

// CredentialFromHash wraps an already-hashed credential, e.g. one read back
// from the persisted store.
func CredentialFromHash(hash string) Credential {
	return Credential{hash: hash}
}

// Matches reports whether the plaintext password matches this credential.
func (c Credential) Matches(password string) bool {
	if c.hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.hash), []byte(password)) == nil
}

// Hash returns the stored hash for serialization.
func (c Credential) Hash() string { return c.hash }

// ValidatePassword checks password constraints shared by all entry points.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordEmpty
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}
