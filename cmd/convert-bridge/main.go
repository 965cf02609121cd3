// Package main is the process-boundary bridge consumed by the GUI. Each
// subcommand performs one licensing operation and prints a JSON result on
// stdout; logs go to stderr. Exit code 0 on success, 1 on any failure
// including malformed arguments.
package main

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"convertcli/internal/backend"
	"convertcli/internal/config"
	"convertcli/internal/fingerprint"
	"convertcli/internal/infrastructure"
	"convertcli/internal/license"
	"convertcli/internal/signing"
	"convertcli/internal/store"
	"convertcli/pkg/contracts"
)

var rootCmd = &cobra.Command{
	Use:           "convert-bridge",
	Short:         "Licensing bridge for the document conversion GUI",
	Version:       contracts.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Every command already printed its JSON error envelope; argument
		// parsing failures still need one.
		if _, ok := err.(*reportedError); !ok {
			printJSON(map[string]interface{}{
				"success": false,
				"error":   err.Error(),
			})
		}
		os.Exit(1)
	}
}

// reportedError marks an error whose JSON envelope was already printed.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }

func reported(err error) error { return &reportedError{err: err} }

// newManager builds the license manager from configuration. Developer
// auto-activation runs here when (and only when) the dev build flag and the
// config opt-in are both set.
func newManager(ctx context.Context) (*license.Manager, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	pub, err := verificationKey(cfg)
	if err != nil {
		return nil, err
	}

	client := backend.New(backend.Config{
		BaseURL:      cfg.Backend.URL,
		APIKey:       cfg.Backend.APIKey,
		Timeout:      cfg.Backend.Timeout,
		ProbeTimeout: cfg.Backend.ProbeTimeout,
	}, logger)

	mgr, err := license.NewManager(license.Options{
		Store:              store.New(cfg.License.StateFile),
		Backend:            client,
		PublicKey:          pub,
		Fingerprint:        fingerprint.New(),
		Logger:             logger,
		TrialFile:          cfg.License.TrialFile,
		RevalidateInterval: cfg.License.RevalidateInterval,
		ValidationCacheTTL: cfg.License.ValidationCacheTTL,
	})
	if err != nil {
		return nil, err
	}

	if cfg.DevModeEnabled() && cfg.Dev.LicenseKeyFile != "" {
		if key, err := os.ReadFile(cfg.Dev.LicenseKeyFile); err == nil {
			devCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			mgr.AutoActivateDev(devCtx, string(key))
			cancel()
		}
	}
	return mgr, nil
}

func verificationKey(cfg *config.Config) (*rsa.PublicKey, error) {
	if cfg.License.PublicKeyFile == "" {
		return signing.ProductPublicKey(), nil
	}
	pemBytes, err := os.ReadFile(cfg.License.PublicKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read public key file: %w", err)
	}
	return signing.ParsePublicKey(pemBytes)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// fail prints the error envelope and returns a reported error so main exits
// with code 1 without double-printing.
func fail(err error) error {
	printJSON(map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
	return reported(err)
}
