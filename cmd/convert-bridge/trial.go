package main

import (
	"github.com/spf13/cobra"
)

var trialCmd = &cobra.Command{
	Use:   "get-trial-status",
	Short: "Print trial usage indicators as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager(cmd.Context())
		if err != nil {
			return fail(err)
		}

		printJSON(mgr.GetTrialStatus())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trialCmd)
}
