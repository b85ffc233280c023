package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for structural and semantic problems.
// Struct tags carry the field-level rules; cross-field rules (unique realm
// names, parseable property blacklist) are checked explicitly.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(cfg.Realms))
	for _, r := range cfg.Realms {
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("duplicate realm name %q", r.Name)
		}
		seen[r.Name] = struct{}{}

		if r.Type == "directory" && cfg.Directory.Server == "" {
			return fmt.Errorf("realm %q requires directory.server to be set", r.Name)
		}
	}

	if _, err := ParsePropertyBlacklist(cfg.PropertyBlacklist); err != nil {
		return fmt.Errorf("invalid property_blacklist: %w", err)
	}

	if cfg.Session.Secret != "" && len(cfg.Session.Secret) < 32 {
		return fmt.Errorf("session.secret must be at least 32 characters")
	}

	return nil
}
