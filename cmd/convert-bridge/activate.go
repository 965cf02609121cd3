package main

import (
	"github.com/spf13/cobra"
)

var activateCmd = &cobra.Command{
	Use:   "activate <license-key>",
	Short: "Activate a license key on this machine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager(cmd.Context())
		if err != nil {
			return fail(err)
		}

		result, err := mgr.Activate(cmd.Context(), args[0])
		if err != nil {
			return fail(err)
		}

		printJSON(map[string]interface{}{
			"success": true,
			"status":  result,
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(activateCmd)
}
