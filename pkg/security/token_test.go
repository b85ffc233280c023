package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken(t *testing.T) {
	token, err := ParseToken(map[string]any{
		"principal":   "alice",
		"credentials": "secret",
		"scheme":      "basic",
		"realm":       "internal",
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", token.Principal)
	assert.Equal(t, []byte("secret"), token.Credentials)
	assert.Equal(t, "basic", token.Scheme)
	assert.Equal(t, "internal", token.Realm)
	assert.True(t, token.HasRealmHint())
}

func TestParseTokenRejectsMissingScheme(t *testing.T) {
	_, err := ParseToken(map[string]any{"principal": "alice", "credentials": "pw"})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsNoneScheme(t *testing.T) {
	_, err := ParseToken(map[string]any{"principal": "alice", "scheme": "none"})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsNonStringScheme(t *testing.T) {
	_, err := ParseToken(map[string]any{"principal": "alice", "scheme": 42})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClearCredentialsWipesBytes(t *testing.T) {
	raw := []byte("secret")
	token, err := ParseToken(map[string]any{"scheme": "basic", "credentials": raw})
	require.NoError(t, err)

	held := token.Credentials
	token.ClearCredentials()

	assert.Nil(t, token.Credentials)
	for _, b := range held {
		assert.Zero(t, b)
	}
	// The caller's copy is untouched; only the token's copy is wiped.
	assert.Equal(t, []byte("secret"), raw)
}

func TestEscapePrincipal(t *testing.T) {
	assert.Equal(t, "`alice`", EscapePrincipal("alice"))
	assert.Equal(t, "`evil\\nuser`", EscapePrincipal("evil\nuser"))
	assert.Equal(t, "`tick'y`", EscapePrincipal("tick`y"))
}
