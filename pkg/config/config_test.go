package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, 10*time.Second, cfg.Store.ReloadInterval)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	require.Len(t, cfg.Realms, 1)
	assert.Equal(t, "internal", cfg.Realms[0].Type)
	assert.True(t, cfg.Realms[0].AuthenticationEnabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
  format: json
store:
  users_file: /var/lib/lodestone/auth
  roles_file: /var/lib/lodestone/roles
  reload_interval: 30s
cache:
  ttl: 5m
  capacity: 500
rate_limit:
  max_failed_attempts: 5
realms:
  - name: internal
    type: internal
    authentication_enabled: true
    authorization_enabled: true
property_blacklist: "reader=ssn,salary;editor=ssn"
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/var/lib/lodestone/auth", cfg.Store.UsersFile)
	assert.Equal(t, 30*time.Second, cfg.Store.ReloadInterval)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 500, cfg.Cache.Capacity)
	assert.Equal(t, 5, cfg.RateLimit.MaxFailedAttempts)

	blacklist, err := ParsePropertyBlacklist(cfg.PropertyBlacklist)
	require.NoError(t, err)
	assert.Equal(t, []string{"ssn", "salary"}, blacklist["reader"])
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: verbose\n"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateDuplicateRealmNames(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Realms = append(cfg.Realms, RealmConfig{Name: "internal", Type: "internal"})

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate realm name")
}

func TestValidateDirectoryRealmNeedsServer(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Realms = append(cfg.Realms, RealmConfig{Name: "corp", Type: "directory"})

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory.server")

	cfg.Directory.Server = "ldap.corp.example:636"
	assert.NoError(t, Validate(cfg))
}

func TestValidateShortSessionSecret(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Session.Secret = "short"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session.secret")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Logging.Level = "DEBUG"
	require.NoError(t, SaveConfig(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", loaded.Logging.Level)
}
