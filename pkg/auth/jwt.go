package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lodestonedb/lodestone-auth/pkg/security"
)

// Session token errors.
var (
	ErrExpiredToken        = errors.New("token has expired")
	ErrTokenSigningFailed  = errors.New("failed to sign token")
	ErrInvalidSecretLength = errors.New("session token secret must be at least 32 characters")
)

// SessionTokenConfig holds configuration for session token generation.
type SessionTokenConfig struct {
	// Secret is the HMAC signing key. Must be at least 32 characters.
	Secret string

	// Issuer is the token issuer claim. Default: "lodestone".
	Issuer string

	// Duration is the token lifetime. Default: 15 minutes.
	Duration time.Duration
}

// SessionClaims are the claims carried by a session token.
type SessionClaims struct {
	jwt.RegisteredClaims

	Roles        []string `json:"roles"`
	ConnectionID string   `json:"connection_id,omitempty"`
}

// SessionTokenService mints and verifies signed session tokens so a
// principal's merged login outcome can be handed across process boundaries
// without replaying credentials. Minting a token for another subject is
// gated on the caller's token-create capability.
type SessionTokenService struct {
	config SessionTokenConfig
}

// NewSessionTokenService creates a session token service.
func NewSessionTokenService(config SessionTokenConfig) (*SessionTokenService, error) {
	if len(config.Secret) < 32 {
		return nil, ErrInvalidSecretLength
	}
	if config.Issuer == "" {
		config.Issuer = "lodestone"
	}
	if config.Duration == 0 {
		config.Duration = 15 * time.Minute
	}
	return &SessionTokenService{config: config}, nil
}

// Issue mints a token for the security context's own subject.
func (s *SessionTokenService) Issue(sc *SecurityContext, connectionID string) (string, error) {
	return s.sign(sc.Username(), sc.Mode().Roles(), connectionID)
}

// IssueFor mints a token for another subject on behalf of the caller, which
// requires the token-create capability.
func (s *SessionTokenService) IssueFor(sc *SecurityContext, subject string, roles []string) (string, error) {
	if err := sc.Mode().AssertTokenCreate(); err != nil {
		return "", err
	}
	return s.sign(subject, roles, "")
}

func (s *SessionTokenService) sign(subject string, roles []string, connectionID string) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Duration)),
		},
		Roles:        roles,
		ConnectionID: connectionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenSigningFailed, err)
	}
	return signed, nil
}

// Verify parses and validates a session token, returning its claims.
func (s *SessionTokenService) Verify(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithIssuer(s.config.Issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, security.ErrInvalidToken
	}
	if !token.Valid {
		return nil, security.ErrInvalidToken
	}
	return claims, nil
}
