package security

import (
	"sort"

	"github.com/lodestonedb/lodestone-auth/internal/logger"
)

// PropertyLookup resolves a property name to its integer token id. It may
// return an error for names that do not (yet) exist; such entries are
// ignored rather than failing authorization.
type PropertyLookup func(name string) (int, error)

// AccessMode is the immutable, request-scoped decision object produced by
// authorization. Every downstream operation consults it instead of touching
// realms or repositories directly.
type AccessMode struct {
	caps               capabilities
	roles              []string
	deniedProperties   map[int]struct{}
	credentialsExpired bool
}

// NewAccessMode resolves a role set into an access mode.
//
// blacklist maps role names to property names whose reads are denied for
// holders of that role. Property names are resolved lazily through lookup;
// names the lookup cannot resolve are logged and skipped, so a blacklist
// entry for a property that does not exist yet is simply ignored.
//
// When credentialsExpired is set, all capability checks deny and violations
// carry the actionable credentials-expired message instead of the generic
// one.
func NewAccessMode(roles []string, credentialsExpired bool, blacklist map[string][]string, lookup PropertyLookup) *AccessMode {
	sorted := make([]string, len(roles))
	copy(sorted, roles)
	sort.Strings(sorted)

	mode := &AccessMode{
		roles:              sorted,
		credentialsExpired: credentialsExpired,
	}
	if !credentialsExpired {
		mode.caps = resolveCapabilities(sorted)
	}

	if len(blacklist) > 0 && lookup != nil {
		denied := make(map[int]struct{})
		for _, role := range sorted {
			for _, property := range blacklist[role] {
				id, err := lookup(property)
				if err != nil {
					logger.Warn("ignoring unresolvable blacklisted property",
						"role", role, "property", property, "error", err)
					continue
				}
				denied[id] = struct{}{}
			}
		}
		if len(denied) > 0 {
			mode.deniedProperties = denied
		}
	}

	return mode
}

// AllowsReads reports whether data reads are permitted.
func (m *AccessMode) AllowsReads() bool { return m.caps.reads }

// AllowsWrites reports whether data writes are permitted.
func (m *AccessMode) AllowsWrites() bool { return m.caps.writes }

// AllowsSchemaWrites reports whether schema changes are permitted.
func (m *AccessMode) AllowsSchemaWrites() bool { return m.caps.schemaWrites }

// AllowsTokenCreates reports whether new token creation is permitted.
func (m *AccessMode) AllowsTokenCreates() bool { return m.caps.tokenCreates }

// AllowsPropertyReads reports whether the property with the given token id
// may be read under this mode.
func (m *AccessMode) AllowsPropertyReads(propertyID int) bool {
	if m.deniedProperties == nil {
		return true
	}
	_, denied := m.deniedProperties[propertyID]
	return !denied
}

// Roles returns the sorted role names this mode was resolved from.
func (m *AccessMode) Roles() []string {
	out := make([]string, len(m.roles))
	copy(out, m.roles)
	return out
}

// CredentialsExpired reports whether this mode denies everything because a
// password change is pending.
func (m *AccessMode) CredentialsExpired() bool { return m.credentialsExpired }

func (m *AccessMode) violation() error {
	if m.credentialsExpired {
		return NewCredentialsExpired()
	}
	return NewPermissionDenied()
}

// AssertRead returns a violation unless reads are allowed.
func (m *AccessMode) AssertRead() error {
	if !m.AllowsReads() {
		return m.violation()
	}
	return nil
}

// AssertWrite returns a violation unless writes are allowed.
func (m *AccessMode) AssertWrite() error {
	if !m.AllowsWrites() {
		return m.violation()
	}
	return nil
}

// AssertSchemaWrite returns a violation unless schema writes are allowed.
func (m *AccessMode) AssertSchemaWrite() error {
	if !m.AllowsSchemaWrites() {
		return m.violation()
	}
	return nil
}

// AssertTokenCreate returns a violation unless token creation is allowed.
func (m *AccessMode) AssertTokenCreate() error {
	if !m.AllowsTokenCreates() {
		return m.violation()
	}
	return nil
}
