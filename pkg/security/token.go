package security

import (
	"strings"
)

// Well-known token map keys. Login requests arrive as opaque key/value maps
// produced by the transport layer; these are the keys the engine reads.
const (
	TokenPrincipal   = "principal"
	TokenCredentials = "credentials"
	TokenScheme      = "scheme"
	TokenRealm       = "realm"
)

// Authentication schemes.
const (
	SchemeBasic = "basic"
	SchemeNone  = "none"
)

// Token is a parsed authentication token. Credentials are held as a byte
// slice so they can be wiped once login completes.
type Token struct {
	Principal   string
	Credentials []byte
	Scheme      string
	Realm       string
}

// ParseToken validates and extracts the fields the engine needs from a raw
// credential map. Tokens without a scheme, or with the explicit "none"
// scheme, are rejected before any realm is consulted.
func ParseToken(raw map[string]any) (*Token, error) {
	scheme, ok := raw[TokenScheme].(string)
	if !ok || scheme == "" || scheme == SchemeNone {
		return nil, ErrInvalidToken
	}

	t := &Token{Scheme: scheme}

	if p, ok := raw[TokenPrincipal].(string); ok {
		t.Principal = p
	}
	if r, ok := raw[TokenRealm].(string); ok {
		t.Realm = r
	}

	switch c := raw[TokenCredentials].(type) {
	case string:
		t.Credentials = []byte(c)
	case []byte:
		creds := make([]byte, len(c))
		copy(creds, c)
		t.Credentials = creds
	}

	return t, nil
}

// ClearCredentials zeroes the credential bytes. Called as soon as login
// completes so secrets are not retained in memory.
func (t *Token) ClearCredentials() {
	for i := range t.Credentials {
		t.Credentials[i] = 0
	}
	t.Credentials = nil
}

// HasRealmHint reports whether the token names an explicit target realm.
func (t *Token) HasRealmHint() bool {
	return t.Realm != ""
}

// EscapePrincipal sanitizes a principal for inclusion in log output so a
// crafted username cannot forge log lines.
func EscapePrincipal(principal string) string {
	r := strings.NewReplacer("\n", "\\n", "\r", "\\r", "\t", "\\t", "`", "'")
	return "`" + r.Replace(principal) + "`"
}
