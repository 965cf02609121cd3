package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"convertcli/internal/license"
	"convertcli/internal/signing"
	"convertcli/internal/storage"
	v1 "convertcli/pkg/contracts/api/v1"
)

var (
	issueEmail      string
	issueType       string
	issueExpires    string
	issueKeyFile    string
	issueDatabase   string
	issueOrderID    string
	issueActivations int
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Sign and issue a license key",
	Long: `issue signs a license payload with the private key, inserts the license
row into the database, and prints the key. The tier's activation limit is
applied at issuance; override it with --max-activations.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tier, err := license.ParseTier(issueType)
		if err != nil {
			return err
		}

		pemBytes, err := os.ReadFile(issueKeyFile)
		if err != nil {
			return fmt.Errorf("read private key: %w", err)
		}
		priv, err := signing.ParsePrivateKey(pemBytes)
		if err != nil {
			return err
		}

		maxActivations := issueActivations
		if maxActivations <= 0 {
			maxActivations = license.ActivationLimit(tier)
		}

		payload := signing.Payload{
			Email:          issueEmail,
			Type:           tier.String(),
			MaxActivations: maxActivations,
			IssuedAt:       time.Now().UTC(),
		}
		if issueExpires != "" {
			expires, err := time.Parse(time.RFC3339, issueExpires)
			if err != nil {
				return fmt.Errorf("parse --expires (want RFC3339): %w", err)
			}
			payload.ExpiresAt = &expires
		}
		if issueOrderID != "" {
			payload.Metadata = map[string]string{"order_id": issueOrderID}
		}

		key, err := signing.GenerateLicenseKey(payload, priv)
		if err != nil {
			return err
		}

		store, err := storage.Open(issueDatabase, slog.Default())
		if err != nil {
			return err
		}
		defer store.Close()

		err = store.CreateLicense(context.Background(), &storage.License{
			Email:          payload.Email,
			LicenseKey:     key,
			Type:           payload.Type,
			Status:         v1.StatusActive,
			MaxActivations: payload.MaxActivations,
			ExpiresAt:      payload.ExpiresAt,
			Metadata:       payload.Metadata,
		})
		if err != nil {
			return err
		}

		fmt.Println(key)
		return nil
	},
}

func init() {
	issueCmd.Flags().StringVar(&issueEmail, "email", "", "customer email (required)")
	issueCmd.Flags().StringVar(&issueType, "type", "basic", "license tier: basic, professional, enterprise")
	issueCmd.Flags().StringVar(&issueExpires, "expires", "", "expiry timestamp, RFC3339; empty for perpetual")
	issueCmd.Flags().StringVar(&issueKeyFile, "key", "license_private.pem", "private signing key file")
	issueCmd.Flags().StringVar(&issueDatabase, "db", "licenses.db", "license database path")
	issueCmd.Flags().StringVar(&issueOrderID, "order-id", "", "order id recorded in license metadata")
	issueCmd.Flags().IntVar(&issueActivations, "max-activations", 0, "override the tier's activation limit")
	issueCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(issueCmd)
}
