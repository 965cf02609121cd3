// Package errors defines the error taxonomy shared by the licensing core:
// sentinel errors for license validation outcomes, typed errors carrying
// feature-gate and activation context, and HTTP renderers for the license
// server API.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for license key parsing and verification. Structural and
// cryptographic failures are never retried; they indicate a corrupt or
// tampered key and must reach the user unchanged.
var (
	ErrMalformedKey     = errors.New("malformed license key")
	ErrInvalidSignature = errors.New("invalid license signature")
)

// Sentinel errors for backend-confirmed license states.
var (
	ErrLicenseNotFound  = errors.New("license not found")
	ErrLicenseRevoked   = errors.New("license revoked")
	ErrLicenseSuspended = errors.New("license suspended")
	ErrLicenseExpired   = errors.New("license expired")
)

// Sentinel errors for local state handling.
var (
	ErrNotActivated = errors.New("no license activated")
	// ErrCorruptState marks a license state file that exists but cannot be
	// read, as opposed to a first run where no file is present.
	ErrCorruptState = errors.New("license state file is corrupt")
	// ErrBackendUnreachable is returned by best-effort backend calls so the
	// manager can log and continue rather than fail the operation.
	ErrBackendUnreachable = errors.New("license backend unreachable")
)

// ErrUnknownFeature is returned by the feature gate for identifiers missing
// from the tier table.
var ErrUnknownFeature = errors.New("unknown feature")

// ActivationLimitError reports that a license's machine cap is already
// reached by other machines.
type ActivationLimitError struct {
	Current int
	Max     int
}

func (e *ActivationLimitError) Error() string {
	return fmt.Sprintf("activation limit exceeded: %d of %d machines already activated", e.Current, e.Max)
}

// Is makes the error match errors.Is(err, ErrActivationLimit).
func (e *ActivationLimitError) Is(target error) bool {
	return target == ErrActivationLimit
}

// ErrActivationLimit is the sentinel form of ActivationLimitError.
var ErrActivationLimit = errors.New("activation limit exceeded")

// FeatureError reports a feature-gate denial: the current tier is below the
// tier the feature requires.
type FeatureError struct {
	Feature      string
	RequiredTier string
	CurrentTier  string
}

func (e *FeatureError) Error() string {
	return fmt.Sprintf("feature %q requires the %s tier (current tier: %s)", e.Feature, e.RequiredTier, e.CurrentTier)
}

func (e *FeatureError) Is(target error) bool {
	return target == ErrFeatureNotIncluded
}

// ErrFeatureNotIncluded is the sentinel form of FeatureError.
var ErrFeatureNotIncluded = errors.New("feature not included in license")

// FileSizeError reports an input file exceeding the tier's size ceiling.
// Both the limit and the actual size are stated so the UI can show them.
type FileSizeError struct {
	Path  string
	Limit int64
	Size  int64
}

func (e *FileSizeError) Error() string {
	return fmt.Sprintf("file %s is %d bytes, exceeding the %d byte limit for the current license tier", e.Path, e.Size, e.Limit)
}

func (e *FileSizeError) Is(target error) bool {
	return target == ErrFileSizeLimit
}

// ErrFileSizeLimit is the sentinel form of FileSizeError.
var ErrFileSizeLimit = errors.New("file size limit exceeded")
