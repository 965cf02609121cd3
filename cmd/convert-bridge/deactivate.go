package main

import (
	"github.com/spf13/cobra"
)

var deactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Deactivate the current license and free its activation slot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager(cmd.Context())
		if err != nil {
			return fail(err)
		}

		if err := mgr.Deactivate(cmd.Context()); err != nil {
			return fail(err)
		}

		printJSON(map[string]interface{}{
			"success": true,
			"status":  mgr.GetStatus(cmd.Context()),
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deactivateCmd)
}
