// Package main is the issuance tool. It generates signing key pairs and
// issues signed license keys, inserting the matching row into the license
// database so the online backend recognizes the key.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"convertcli/pkg/contracts"
)

var rootCmd = &cobra.Command{
	Use:          "license-keygen",
	Short:        "Issue signed license keys for the conversion product",
	Version:      contracts.Version,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
