package file

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/lodestonedb/lodestone-auth/internal/logger"
	"github.com/lodestonedb/lodestone-auth/pkg/identity"
)

// ReloadConfig controls the background reload job.
type ReloadConfig struct {
	// Interval between periodic re-reads of the store files.
	Interval time.Duration
	// MaxAttempts bounds validation retries within one cycle.
	MaxAttempts int
	// Backoff between retries.
	Backoff time.Duration
}

// DefaultReloadConfig returns the standard cadence.
func DefaultReloadConfig() ReloadConfig {
	return ReloadConfig{
		Interval:    10 * time.Second,
		MaxAttempts: 10,
		Backoff:     100 * time.Millisecond,
	}
}

// ReloadJob periodically re-reads the user and role files and swaps in any
// externally changed snapshot after validating referential integrity. A
// filesystem watcher triggers an immediate out-of-schedule cycle when either
// file changes. Cycles never overlap: the cron chain skips a tick while the
// previous run is still going, and watcher-driven runs bail out when a cycle
// holds the run lock.
type ReloadJob struct {
	users *UserStore
	roles *RoleStore
	cfg   ReloadConfig

	// onFatal is invoked when a reload cycle exhausts its retries; running
	// with an inconsistent auth store is unsafe, so the owner should treat
	// this as a fatal configuration error.
	onFatal func(error)

	// observe, when set, records cycle outcomes ("applied", "unchanged",
	// "rejected") for metrics.
	observe func(outcome string)

	runMu   sync.Mutex
	cron    *cron.Cron
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// ReloadOption configures a ReloadJob.
type ReloadOption func(*ReloadJob)

// WithFatalHandler installs the handler called when retries are exhausted.
func WithFatalHandler(fn func(error)) ReloadOption {
	return func(j *ReloadJob) { j.onFatal = fn }
}

// WithReloadObserver installs a metrics callback for cycle outcomes.
func WithReloadObserver(fn func(outcome string)) ReloadOption {
	return func(j *ReloadJob) { j.observe = fn }
}

// NewReloadJob wires the job; call Start to begin the schedule.
func NewReloadJob(users *UserStore, roles *RoleStore, cfg ReloadConfig, opts ...ReloadOption) *ReloadJob {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 100 * time.Millisecond
	}
	j := &ReloadJob{
		users:  users,
		roles:  roles,
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start launches the periodic schedule and the filesystem watcher.
func (j *ReloadJob) Start() error {
	j.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := j.cron.AddFunc(fmt.Sprintf("@every %s", j.cfg.Interval), j.runCycle); err != nil {
		return fmt.Errorf("failed to schedule auth store reload: %w", err)
	}
	j.cron.Start()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("auth store file watcher unavailable, relying on periodic reload", "error", err)
		return nil
	}
	j.watcher = watcher

	dirs := map[string]struct{}{
		filepath.Dir(j.users.Path()): {},
		filepath.Dir(j.roles.Path()): {},
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			logger.Warn("failed to watch auth store directory", "dir", dir, "error", err)
		}
	}

	j.wg.Add(1)
	go j.watch()
	return nil
}

// Stop cancels the schedule and waits for any in-flight cycle to finish.
func (j *ReloadJob) Stop() {
	close(j.stopCh)
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
	if j.watcher != nil {
		j.watcher.Close()
	}
	j.wg.Wait()
}

func (j *ReloadJob) watch() {
	defer j.wg.Done()
	for {
		select {
		case <-j.stopCh:
			return
		case event, ok := <-j.watcher.Events:
			if !ok {
				return
			}
			if event.Name != j.users.Path() && event.Name != j.roles.Path() {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// A cycle already in flight will pick up the change anyway.
			if j.runMu.TryLock() {
				j.cycleLocked()
				j.runMu.Unlock()
			}
		case err, ok := <-j.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("auth store watcher error", "error", err)
		}
	}
}

func (j *ReloadJob) runCycle() {
	j.runMu.Lock()
	defer j.runMu.Unlock()
	j.cycleLocked()
}

func (j *ReloadJob) cycleLocked() {
	var lastErr error
	for attempt := 1; attempt <= j.cfg.MaxAttempts; attempt++ {
		outcome, err := j.reloadOnce()
		if err == nil {
			if j.observe != nil {
				j.observe(outcome)
			}
			return
		}
		lastErr = err
		logger.Warn("auth store reload failed, retrying",
			"attempt", attempt, "max_attempts", j.cfg.MaxAttempts, "error", err)
		select {
		case <-j.stopCh:
			return
		case <-time.After(j.cfg.Backoff):
		}
	}

	if j.observe != nil {
		j.observe("rejected")
	}
	err := fmt.Errorf("auth store reload failed after %d attempts: %w", j.cfg.MaxAttempts, lastErr)
	logger.Error("auth store is inconsistent and could not be reloaded", "error", err)
	if j.onFatal != nil {
		j.onFatal(err)
	}
}

// reloadOnce performs one read-validate-swap pass. In-memory state is only
// replaced when the combined view passes referential integrity validation;
// otherwise the current state is retained and an error returned for retry.
func (j *ReloadJob) reloadOnce() (string, error) {
	userSnap, userHash, usersChanged, err := j.users.loadIfChanged()
	if err != nil {
		return "", err
	}
	roleSnap, roleHash, rolesChanged, err := j.roles.loadIfChanged()
	if err != nil {
		return "", err
	}
	if !usersChanged && !rolesChanged {
		return "unchanged", nil
	}

	effectiveUsers := userSnap
	if !usersChanged {
		effectiveUsers = j.users.Snapshot()
	}
	effectiveRoles := roleSnap
	if !rolesChanged {
		effectiveRoles = j.roles.Snapshot()
	}

	if err := identity.ValidateSnapshot(effectiveUsers, effectiveRoles); err != nil {
		return "", err
	}

	if usersChanged {
		if err := j.users.SetUsers(userSnap); err != nil {
			return "", err
		}
		j.users.setLastHash(userHash)
	}
	if rolesChanged {
		if err := j.roles.SetRoles(roleSnap); err != nil {
			return "", err
		}
		j.roles.setLastHash(roleHash)
	}

	logger.Info("auth store reloaded from disk",
		"users_changed", usersChanged, "roles_changed", rolesChanged)
	return "applied", nil
}

// ReloadNow runs a single cycle synchronously; used by tests and by the CLI
// after external edits.
func (j *ReloadJob) ReloadNow() error {
	j.runMu.Lock()
	defer j.runMu.Unlock()
	_, err := j.reloadOnce()
	return err
}
