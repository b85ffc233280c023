package config

import (
	"path/filepath"
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit
// values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyStoreDefaults(&cfg.Store)
	applyCacheDefaults(&cfg.Cache)
	applyRateLimitDefaults(&cfg.RateLimit)
	applyRealmDefaults(cfg)
	applyDirectoryDefaults(&cfg.Directory)
	applySessionDefaults(&cfg.Session)
}

// GetDefaultConfig returns a fully defaulted configuration.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	dataDir := filepath.Join(getConfigDir(), "data")
	if cfg.UsersFile == "" {
		cfg.UsersFile = filepath.Join(dataDir, "auth")
	}
	if cfg.RolesFile == "" {
		cfg.RolesFile = filepath.Join(dataDir, "roles")
	}
	if cfg.ReloadInterval == 0 {
		cfg.ReloadInterval = 10 * time.Second
	}
	if cfg.ReloadMaxAttempts == 0 {
		cfg.ReloadMaxAttempts = 10
	}
	if cfg.ReloadBackoff == 0 {
		cfg.ReloadBackoff = 100 * time.Millisecond
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.TTL == 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = 10000
	}
}

func applyRateLimitDefaults(cfg *RateLimitConfig) {
	if cfg.MaxFailedAttempts == 0 {
		cfg.MaxFailedAttempts = 3
	}
	if cfg.LockDuration == 0 {
		cfg.LockDuration = 5 * time.Second
	}
}

func applyRealmDefaults(cfg *Config) {
	// Without explicit realm configuration the internal realm handles
	// everything.
	if len(cfg.Realms) == 0 {
		cfg.Realms = []RealmConfig{
			{
				Name:                  "internal",
				Type:                  "internal",
				AuthenticationEnabled: true,
				AuthorizationEnabled:  true,
			},
		}
	}
}

func applyDirectoryDefaults(cfg *DirectoryConfig) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.AuthzCacheTTL == 0 {
		cfg.AuthzCacheTTL = 10 * time.Minute
	}
}

func applySessionDefaults(cfg *SessionConfig) {
	if cfg.Issuer == "" {
		cfg.Issuer = "lodestone"
	}
	if cfg.Duration == 0 {
		cfg.Duration = 15 * time.Minute
	}
}
