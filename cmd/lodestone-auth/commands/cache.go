package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Authorization cache management",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the authorization cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := manager()
		if err != nil {
			return err
		}
		if err := mgr.ClearAuthCache(); err != nil {
			return err
		}
		fmt.Println("Authorization cache cleared")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}
