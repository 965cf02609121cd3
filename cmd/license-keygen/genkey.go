package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"convertcli/internal/signing"
)

var genkeyOutDir string

var genkeyCmd = &cobra.Command{
	Use:   "genkey",
	Short: "Generate a new RSA signing key pair",
	Long: `genkey writes license_private.pem and license_public.pem into the output
directory. The private key stays with issuance; the public key is embedded
into product builds.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		priv, pub, err := signing.GenerateKeyPair()
		if err != nil {
			return err
		}

		if err := os.MkdirAll(genkeyOutDir, 0o700); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}

		privPath := filepath.Join(genkeyOutDir, "license_private.pem")
		pubPath := filepath.Join(genkeyOutDir, "license_public.pem")
		if err := os.WriteFile(privPath, priv, 0o600); err != nil {
			return fmt.Errorf("write private key: %w", err)
		}
		if err := os.WriteFile(pubPath, pub, 0o644); err != nil {
			return fmt.Errorf("write public key: %w", err)
		}

		fmt.Printf("wrote %s and %s\n", privPath, pubPath)
		return nil
	},
}

func init() {
	genkeyCmd.Flags().StringVar(&genkeyOutDir, "out", ".", "output directory for the key pair")
	rootCmd.AddCommand(genkeyCmd)
}
