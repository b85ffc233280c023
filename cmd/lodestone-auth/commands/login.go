package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lodestonedb/lodestone-auth/internal/cli/prompt"
	"github.com/lodestonedb/lodestone-auth/pkg/security"
)

var loginPassword string

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Test a credential pair against the configured realms",
	Long: `Attempt a login with the given username and report the merged outcome
and the roles the realms assert for the principal.

Examples:
  # Prompt for the password
  lodestone-auth login alice`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]

		password := loginPassword
		if password == "" {
			var err error
			password, err = prompt.Password("Password")
			if err != nil {
				return err
			}
		}

		engine, _, err := loadEngine()
		if err != nil {
			return err
		}

		lc, err := engine.Coordinator.Login(context.Background(), map[string]any{
			security.TokenPrincipal:   username,
			security.TokenCredentials: password,
			security.TokenScheme:      security.SchemeBasic,
		})
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		fmt.Printf("Outcome: %s\n", lc.Result())

		sc, err := lc.Authorize(context.Background(), nil)
		if err != nil {
			return err
		}
		if roles := sc.Mode().Roles(); len(roles) > 0 {
			fmt.Printf("Roles: %s\n", strings.Join(roles, ", "))
		} else {
			fmt.Println("Roles: (none)")
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prompts if not provided)")
}
