package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lodestonedb/lodestone-auth/internal/cli/output"
)

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Role management",
	Long: `Manage roles and role memberships in the Lodestone security store.

Examples:
  # List all roles and their members
  lodestone-auth roles list

  # Create and delete a custom role
  lodestone-auth roles create auditors
  lodestone-auth roles delete auditors

  # Grant and revoke memberships
  lodestone-auth roles assign reader alice
  lodestone-auth roles unassign reader alice`,
}

var rolesCreateCmd = &cobra.Command{
	Use:   "create <role>",
	Short: "Create a role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := manager()
		if err != nil {
			return err
		}
		if err := mgr.NewRole(args[0]); err != nil {
			return err
		}
		fmt.Printf("Role '%s' created\n", args[0])
		return nil
	},
}

var rolesDeleteCmd = &cobra.Command{
	Use:   "delete <role>",
	Short: "Delete a custom role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := manager()
		if err != nil {
			return err
		}
		if err := mgr.DeleteRole(args[0]); err != nil {
			return err
		}
		fmt.Printf("Role '%s' deleted\n", args[0])
		return nil
	},
}

var rolesAssignCmd = &cobra.Command{
	Use:   "assign <role> <username>",
	Short: "Add a user to a role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := manager()
		if err != nil {
			return err
		}
		if err := mgr.AddRoleToUser(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Role '%s' assigned to user '%s'\n", args[0], args[1])
		return nil
	},
}

var rolesUnassignCmd = &cobra.Command{
	Use:   "unassign <role> <username>",
	Short: "Remove a user from a role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := manager()
		if err != nil {
			return err
		}
		if err := mgr.RemoveRoleFromUser(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Role '%s' removed from user '%s'\n", args[0], args[1])
		return nil
	},
}

var rolesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all roles and their members",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := manager()
		if err != nil {
			return err
		}

		names, err := mgr.ListRoles()
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(names))
		for _, name := range names {
			members, err := mgr.ListUsersForRole(name)
			if err != nil {
				return err
			}
			rows = append(rows, []string{name, strings.Join(members, ",")})
		}

		output.Table(os.Stdout, []string{"Role", "Members"}, rows)
		return nil
	},
}

func init() {
	rolesCmd.AddCommand(rolesCreateCmd)
	rolesCmd.AddCommand(rolesDeleteCmd)
	rolesCmd.AddCommand(rolesAssignCmd)
	rolesCmd.AddCommand(rolesUnassignCmd)
	rolesCmd.AddCommand(rolesListCmd)
}
