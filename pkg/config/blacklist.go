package config

import (
	"fmt"
	"strings"
)

// ParsePropertyBlacklist parses a role-to-denied-properties mapping of the
// form "role=prop1,prop2;role2=prop3" into a map. Whitespace around names is
// trimmed; an empty string yields an empty map.
func ParsePropertyBlacklist(s string) (map[string][]string, error) {
	blacklist := make(map[string][]string)
	if strings.TrimSpace(s) == "" {
		return blacklist, nil
	}

	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		role, props, found := strings.Cut(entry, "=")
		role = strings.TrimSpace(role)
		if !found || role == "" {
			return nil, fmt.Errorf("malformed entry %q, expected role=prop1,prop2", entry)
		}

		var names []string
		for _, p := range strings.Split(props, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			names = append(names, p)
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("entry %q lists no properties", entry)
		}

		blacklist[role] = append(blacklist[role], names...)
	}

	return blacklist, nil
}
