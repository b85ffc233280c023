package auth

import (
	"fmt"

	"github.com/lodestonedb/lodestone-auth/pkg/config"
	"github.com/lodestonedb/lodestone-auth/pkg/identity"
	"github.com/lodestonedb/lodestone-auth/pkg/realm"
	"github.com/lodestonedb/lodestone-auth/pkg/security"
	"github.com/lodestonedb/lodestone-auth/pkg/store/file"
)

// Engine assembles the full stack from configuration: file-backed stores,
// realms, authorization cache, coordinator, and the background reload job.
type Engine struct {
	Coordinator *Coordinator
	Users       *file.UserStore
	Roles       *file.RoleStore
	Reload      *file.ReloadJob
}

// EngineOption injects collaborators the configuration alone cannot build.
type EngineOption func(*engineDeps)

type engineDeps struct {
	directoryClient realm.DirectoryClient
	plugins         map[string]realm.AuthPlugin
	metrics         *Metrics
	onFatal         func(error)
}

// WithDirectoryClient wires the transport client a directory realm uses.
func WithDirectoryClient(client realm.DirectoryClient) EngineOption {
	return func(d *engineDeps) { d.directoryClient = client }
}

// WithAuthPlugin registers a plugin under its realm name ("plugin-<name>").
func WithAuthPlugin(plugin realm.AuthPlugin) EngineOption {
	return func(d *engineDeps) { d.plugins["plugin-"+plugin.Name()] = plugin }
}

// WithEngineMetrics installs Prometheus collectors.
func WithEngineMetrics(m *Metrics) EngineOption {
	return func(d *engineDeps) { d.metrics = m }
}

// WithReloadFatalHandler installs the handler invoked when the background
// reload exhausts its retries.
func WithReloadFatalHandler(fn func(error)) EngineOption {
	return func(d *engineDeps) { d.onFatal = fn }
}

// NewEngine builds the engine from configuration. The background reload job
// is constructed but not started; call Start.
func NewEngine(cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	deps := &engineDeps{plugins: make(map[string]realm.AuthPlugin)}
	for _, opt := range opts {
		opt(deps)
	}

	users, err := file.NewUserStore(cfg.Store.UsersFile)
	if err != nil {
		return nil, fmt.Errorf("opening user store: %w", err)
	}
	roles, err := file.NewRoleStore(cfg.Store.RolesFile)
	if err != nil {
		return nil, fmt.Errorf("opening role store: %w", err)
	}

	// A brand-new role store starts out with the predefined roles.
	if len(roles.AllRoleNames()) == 0 {
		for _, name := range security.PredefinedRoles {
			if err := roles.Create(identity.NewRole(name)); err != nil {
				return nil, fmt.Errorf("seeding predefined roles: %w", err)
			}
		}
	}

	strategy := realm.NewRateLimitedStrategy(cfg.RateLimit.MaxFailedAttempts, cfg.RateLimit.LockDuration)

	entries := make([]RealmEntry, 0, len(cfg.Realms))
	for _, rc := range cfg.Realms {
		var r realm.Realm
		switch rc.Type {
		case "internal":
			r = realm.NewInternalRealm(users, roles, strategy)
		case "directory":
			if deps.directoryClient == nil {
				return nil, fmt.Errorf("realm %q: no directory client configured", rc.Name)
			}
			r = realm.NewDirectoryRealm(deps.directoryClient, realm.DirectoryConfig{
				ConnectTimeout: cfg.Directory.ConnectTimeout,
				ReadTimeout:    cfg.Directory.ReadTimeout,
				AuthzCacheTTL:  cfg.Directory.AuthzCacheTTL,
				GroupToRole:    cfg.Directory.GroupToRole,
			})
		case "plugin":
			plugin, ok := deps.plugins[rc.Name]
			if !ok {
				return nil, fmt.Errorf("realm %q: no plugin registered", rc.Name)
			}
			r = realm.NewPluginRealm(plugin, cfg.Cache.TTL)
		default:
			return nil, fmt.Errorf("realm %q: unknown type %q", rc.Name, rc.Type)
		}
		entries = append(entries, RealmEntry{
			Realm:                 r,
			AuthenticationEnabled: rc.AuthenticationEnabled,
			AuthorizationEnabled:  rc.AuthorizationEnabled,
		})
	}

	cache, err := NewCache(cfg.Cache.Capacity, cfg.Cache.TTL)
	if err != nil {
		return nil, err
	}

	blacklist, err := config.ParsePropertyBlacklist(cfg.PropertyBlacklist)
	if err != nil {
		return nil, err
	}

	coordOpts := []Option{
		WithCache(cache),
		WithRepositories(users, roles),
		WithPropertyBlacklist(blacklist),
	}
	if deps.metrics != nil {
		coordOpts = append(coordOpts, WithMetrics(deps.metrics))
	}
	coord, err := NewCoordinator(entries, coordOpts...)
	if err != nil {
		return nil, err
	}

	reloadOpts := []file.ReloadOption{}
	if deps.metrics != nil {
		reloadOpts = append(reloadOpts, file.WithReloadObserver(deps.metrics.ReloadObserver()))
	}
	if deps.onFatal != nil {
		reloadOpts = append(reloadOpts, file.WithFatalHandler(deps.onFatal))
	}
	reload := file.NewReloadJob(users, roles, file.ReloadConfig{
		Interval:    cfg.Store.ReloadInterval,
		MaxAttempts: cfg.Store.ReloadMaxAttempts,
		Backoff:     cfg.Store.ReloadBackoff,
	}, reloadOpts...)

	return &Engine{
		Coordinator: coord,
		Users:       users,
		Roles:       roles,
		Reload:      reload,
	}, nil
}

// Start launches the background reload job.
func (e *Engine) Start() error {
	return e.Reload.Start()
}

// Stop shuts the background reload job down.
func (e *Engine) Stop() {
	e.Reload.Stop()
}
