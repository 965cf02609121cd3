// Package store persists the currently activated license to a local file.
// It is the single durable record of activation on a machine; all writes go
// through the license manager.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	licerrors "convertcli/internal/errors"
	"convertcli/internal/signing"
)

// Confirmation levels for an activated license.
const (
	// ConfirmedOnline means the backend corroborated the license during
	// activation or a later re-validation.
	ConfirmedOnline = "online"
	// ConfirmedOffline means only the key's signature was verified; the
	// backend was unreachable. Usable, but re-validated opportunistically.
	ConfirmedOffline = "offline"
)

// State is the locally persisted activation record.
type State struct {
	LicenseKey         string          `json:"license_key"`
	License            signing.Payload `json:"license"`
	MachineID          string          `json:"machine_id"`
	ActivatedAt        time.Time       `json:"activated_at"`
	Confirmation       string          `json:"confirmation"`
	LastConfirmAttempt time.Time       `json:"last_confirm_attempt"`
}

// Store reads and writes the license state file.
type Store struct {
	path string
}

// New creates a Store for the given file path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted state, or (nil, nil) when no file exists (first
// run). A file that exists but cannot be parsed returns ErrCorruptState so
// callers can distinguish "not activated" from "damaged".
func (s *Store) Load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", licerrors.ErrCorruptState, err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", licerrors.ErrCorruptState, err)
	}
	if st.LicenseKey == "" {
		return nil, fmt.Errorf("%w: missing license key", licerrors.ErrCorruptState)
	}
	return &st, nil
}

// Save writes the state atomically: the JSON is written to a temp file in the
// same directory and renamed over the target, so a crash mid-write never
// leaves a partial file behind.
func (s *Store) Save(st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal license state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".license-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write license state: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod license state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close license state: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace license state: %w", err)
	}
	return nil
}

// Clear removes the state file. Missing files are not an error; deactivation
// must succeed regardless of prior state.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove license state: %w", err)
	}
	return nil
}
