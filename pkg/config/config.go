// Package config loads and validates the engine configuration from file,
// environment, and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the engine configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (LODESTONE_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Store locates the flat-file user and role stores and controls the
	// background reload job
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Cache configures the authorization cache
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// RateLimit throttles repeated authentication failures per principal
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`

	// Realms lists the identity backends in the order their authentication
	// results merge
	Realms []RealmConfig `mapstructure:"realms" yaml:"realms"`

	// Directory configures the directory-protocol realm, when one is listed
	Directory DirectoryConfig `mapstructure:"directory" yaml:"directory"`

	// PropertyBlacklist maps roles to property names they may not read,
	// in the form "role=prop1,prop2;role2=prop3"
	PropertyBlacklist string `mapstructure:"property_blacklist" yaml:"property_blacklist"`

	// Session configures the signed session token service
	Session SessionConfig `mapstructure:"session" yaml:"session"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// StoreConfig locates the persisted user/role files.
type StoreConfig struct {
	// UsersFile is the path of the flat-file user store
	UsersFile string `mapstructure:"users_file" validate:"required" yaml:"users_file"`

	// RolesFile is the path of the flat-file role store
	RolesFile string `mapstructure:"roles_file" validate:"required" yaml:"roles_file"`

	// ReloadInterval is how often the background job rechecks the files.
	// Default: 10s
	ReloadInterval time.Duration `mapstructure:"reload_interval" yaml:"reload_interval"`

	// ReloadMaxAttempts bounds validation-failure retries within one cycle.
	// Default: 10
	ReloadMaxAttempts int `mapstructure:"reload_max_attempts" yaml:"reload_max_attempts"`

	// ReloadBackoff is the sleep between retries. Default: 100ms
	ReloadBackoff time.Duration `mapstructure:"reload_backoff" yaml:"reload_backoff"`
}

// CacheConfig bounds the authorization cache.
type CacheConfig struct {
	// TTL is how long a cached decision stays valid. Default: 10m
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`

	// Capacity is the maximum number of cached principals. Default: 10000
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
}

// RateLimitConfig throttles repeated authentication failures.
type RateLimitConfig struct {
	// MaxFailedAttempts is the failure budget before lockout. Default: 3
	MaxFailedAttempts int `mapstructure:"max_failed_attempts" yaml:"max_failed_attempts"`

	// LockDuration is how long a locked principal stays locked. Default: 5s
	LockDuration time.Duration `mapstructure:"lock_duration" yaml:"lock_duration"`
}

// RealmConfig enables one identity backend. Order in the realm list is the
// order authentication results merge in.
type RealmConfig struct {
	// Name identifies the realm, matched against token realm hints
	Name string `mapstructure:"name" validate:"required" yaml:"name"`

	// Type selects the implementation
	// Valid values: internal, directory, plugin
	Type string `mapstructure:"type" validate:"required,oneof=internal directory plugin" yaml:"type"`

	// AuthenticationEnabled and AuthorizationEnabled gate the realm's two
	// capabilities independently
	AuthenticationEnabled bool `mapstructure:"authentication_enabled" yaml:"authentication_enabled"`
	AuthorizationEnabled  bool `mapstructure:"authorization_enabled" yaml:"authorization_enabled"`
}

// DirectoryConfig configures the directory-protocol realm.
type DirectoryConfig struct {
	// Server is the directory server address
	Server string `mapstructure:"server" yaml:"server"`

	// ConnectTimeout and ReadTimeout bound every round trip.
	// Defaults: 5s / 10s
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// AuthzCacheTTL is how long group memberships fetched at login remain
	// usable for authorization. Default: 10m
	AuthzCacheTTL time.Duration `mapstructure:"authz_cache_ttl" yaml:"authz_cache_ttl"`

	// GroupToRole maps directory group names to engine role names
	GroupToRole map[string][]string `mapstructure:"group_to_role" yaml:"group_to_role"`
}

// SessionConfig configures the signed session token service.
type SessionConfig struct {
	// Secret is the HMAC signing key. Must be at least 32 characters when
	// the session service is used.
	Secret string `mapstructure:"secret" yaml:"secret"`

	// Issuer is the token issuer claim. Default: "lodestone"
	Issuer string `mapstructure:"issuer" yaml:"issuer"`

	// Duration is the token lifetime. Default: 15m
	Duration time.Duration `mapstructure:"duration" yaml:"duration"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	// If no config file was found, use defaults
	if !configFileFound {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Restricted permissions; the file may carry the session secret.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file
// settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the LODESTONE_ prefix and underscores.
	// Example: LODESTONE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("LODESTONE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was
// found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		// An explicit config file that doesn't exist is also acceptable.
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook converts strings to time.Duration so config files can
// use human-readable durations like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "lodestone")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "lodestone")
}

// GetDefaultConfigPath returns the default config file location.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
