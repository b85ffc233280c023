// Package commands implements the lodestone-auth CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lodestonedb/lodestone-auth/internal/logger"
	"github.com/lodestonedb/lodestone-auth/pkg/auth"
	"github.com/lodestonedb/lodestone-auth/pkg/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"

	// Global flags.
	cfgFile string
)

// cliSubject is the principal management operations run as. The CLI operates
// on the store directly with admin rights, so the subject only matters for
// audit log lines and self-denial checks.
const cliSubject = "lodestone-auth"

var rootCmd = &cobra.Command{
	Use:   "lodestone-auth",
	Short: "Lodestone authentication and authorization engine",
	Long: `lodestone-auth manages the Lodestone security store: users, roles,
role memberships, and the authorization cache. It operates on the flat-file
store directly, so run it on the host that owns the store files.

Use "lodestone-auth [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/lodestone/config.yaml)")

	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(rolesCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lodestone-auth %s (commit: %s)\n", Version, Commit)
	},
}

// loadEngine loads the configuration, initializes logging, and assembles
// the engine over the configured store files.
func loadEngine() (*auth.Engine, *config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	engine, err := auth.NewEngine(cfg)
	if err != nil {
		return nil, nil, err
	}
	return engine, cfg, nil
}

// manager returns the admin-scoped management surface over the store.
func manager() (*auth.UserManager, error) {
	engine, _, err := loadEngine()
	if err != nil {
		return nil, err
	}
	return engine.Coordinator.UserManager(cliSubject, true), nil
}
