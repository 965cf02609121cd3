package main

import (
	"github.com/spf13/cobra"
)

var featureFile string

var featureCmd = &cobra.Command{
	Use:   "check-feature <feature-name>",
	Short: "Check whether the current license permits a feature",
	Long: `check-feature runs the gate decision for one feature identifier and,
when --file is given, also enforces the tier's input file size ceiling.
The GUI uses this to pre-flight conversions and gray out menu entries.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager(cmd.Context())
		if err != nil {
			return fail(err)
		}

		if err := mgr.CheckFeatureAccess(args[0]); err != nil {
			return fail(err)
		}
		if featureFile != "" {
			if err := mgr.CheckFileSizeLimit(featureFile); err != nil {
				return fail(err)
			}
		}

		printJSON(map[string]interface{}{
			"success": true,
			"allowed": true,
			"feature": args[0],
		})
		return nil
	},
}

func init() {
	featureCmd.Flags().StringVar(&featureFile, "file", "", "input file to check against the tier size ceiling")
	rootCmd.AddCommand(featureCmd)
}
