package main

import (
	"github.com/spf13/cobra"
)

var statusFull bool

var statusCmd = &cobra.Command{
	Use:   "get-status",
	Short: "Print the current license status as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager(cmd.Context())
		if err != nil {
			return fail(err)
		}

		if statusFull {
			printJSON(mgr.GetFullStatus(cmd.Context()))
		} else {
			printJSON(mgr.GetStatus(cmd.Context()))
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusFull, "full", false, "include machine and state file details")
	rootCmd.AddCommand(statusCmd)
}
