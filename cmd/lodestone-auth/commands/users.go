package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lodestonedb/lodestone-auth/internal/cli/output"
	"github.com/lodestonedb/lodestone-auth/internal/cli/prompt"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "User management",
	Long: `Manage users in the Lodestone security store.

Examples:
  # List all users
  lodestone-auth users list

  # Create a user, prompting for the password
  lodestone-auth users create alice

  # Create a user that must change the password on first login
  lodestone-auth users create alice --require-password-change

  # Suspend and reactivate a user
  lodestone-auth users suspend alice
  lodestone-auth users activate alice

  # Reset a password
  lodestone-auth users set-password alice`,
}

var (
	createPassword        string
	requirePasswordChange bool
	newPassword           string
)

var usersCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]

		password := createPassword
		if password == "" {
			var err error
			password, err = prompt.PasswordWithConfirmation("Password", "Confirm password")
			if err != nil {
				return err
			}
		}

		mgr, err := manager()
		if err != nil {
			return err
		}
		if err := mgr.NewUser(username, password, requirePasswordChange); err != nil {
			return err
		}
		fmt.Printf("User '%s' created\n", username)
		return nil
	},
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete a user and all of their role memberships",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]

		ok, err := prompt.Confirm(fmt.Sprintf("Delete user '%s'", username))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted")
			return nil
		}

		mgr, err := manager()
		if err != nil {
			return err
		}
		if err := mgr.DeleteUser(username); err != nil {
			return err
		}
		fmt.Printf("User '%s' deleted\n", username)
		return nil
	},
}

var usersSuspendCmd = &cobra.Command{
	Use:   "suspend <username>",
	Short: "Suspend a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := manager()
		if err != nil {
			return err
		}
		if err := mgr.SuspendUser(args[0]); err != nil {
			return err
		}
		fmt.Printf("User '%s' suspended\n", args[0])
		return nil
	},
}

var usersActivateCmd = &cobra.Command{
	Use:   "activate <username>",
	Short: "Reactivate a suspended user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := manager()
		if err != nil {
			return err
		}
		if err := mgr.ActivateUser(args[0]); err != nil {
			return err
		}
		fmt.Printf("User '%s' activated\n", args[0])
		return nil
	},
}

var usersSetPasswordCmd = &cobra.Command{
	Use:   "set-password <username>",
	Short: "Set a user's password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]

		password := newPassword
		if password == "" {
			var err error
			password, err = prompt.PasswordWithConfirmation("New password", "Confirm password")
			if err != nil {
				return err
			}
		}

		mgr, err := manager()
		if err != nil {
			return err
		}
		if err := mgr.ChangeUserPassword(username, password); err != nil {
			return err
		}
		fmt.Printf("Password set for user '%s'\n", username)
		return nil
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users with their roles and flags",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := loadEngine()
		if err != nil {
			return err
		}
		mgr := engine.Coordinator.UserManager(cliSubject, true)

		usernames, err := mgr.ListUsers()
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(usernames))
		for _, name := range usernames {
			roles, err := mgr.ListRolesForUser(name)
			if err != nil {
				return err
			}
			user := engine.Users.FindByName(name)
			flags := []string{}
			if user != nil {
				flags = user.Flags
			}
			rows = append(rows, []string{name, strings.Join(roles, ","), strings.Join(flags, ",")})
		}

		output.Table(os.Stdout, []string{"Username", "Roles", "Flags"}, rows)
		return nil
	},
}

func init() {
	usersCreateCmd.Flags().StringVarP(&createPassword, "password", "p", "", "Initial password (prompts if not provided)")
	usersCreateCmd.Flags().BoolVar(&requirePasswordChange, "require-password-change", false, "Require a password change on first login")
	usersSetPasswordCmd.Flags().StringVarP(&newPassword, "password", "p", "", "New password (prompts if not provided)")

	usersCmd.AddCommand(usersCreateCmd)
	usersCmd.AddCommand(usersDeleteCmd)
	usersCmd.AddCommand(usersSuspendCmd)
	usersCmd.AddCommand(usersActivateCmd)
	usersCmd.AddCommand(usersSetPasswordCmd)
	usersCmd.AddCommand(usersListCmd)
}
