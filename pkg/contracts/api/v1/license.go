// Package v1 defines the license server's request and response payloads.
// Both the server handlers and the backend client build against these types,
// so the two sides cannot drift apart.
package v1

import "time"

// License statuses stored on the server row. The signed key string never
// changes; only the row status transitions.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusRevoked   = "revoked"
	StatusExpired   = "expired"
)

// ValidateRequest asks the server whether a key may be used from a machine.
type ValidateRequest struct {
	LicenseKey string `json:"license_key" validate:"required"`
	MachineID  string `json:"machine_id" validate:"required"`
}

// LicenseInfo is the server's view of a license row.
type LicenseInfo struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	MaxActivations int        `json:"max_activations"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// ActivationSummary reports how many of a license's activation slots are
// used and whether the requesting machine holds one of them.
type ActivationSummary struct {
	Count          int  `json:"count"`
	Max            int  `json:"max"`
	MachineKnown   bool `json:"machine_known"`
}

// ValidateResponse is the tri-state validation result.
type ValidateResponse struct {
	Valid       bool               `json:"valid"`
	Message     string             `json:"message"`
	ErrorCode   string             `json:"error_code,omitempty"`
	License     *LicenseInfo       `json:"license,omitempty"`
	Activations *ActivationSummary `json:"activations,omitempty"`
}

// ActivateRequest registers a machine activation for a license.
type ActivateRequest struct {
	LicenseKey string            `json:"license_key" validate:"required"`
	MachineID  string            `json:"machine_id" validate:"required"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ActivateResponse confirms an activation registration.
type ActivateResponse struct {
	Success     bool               `json:"success"`
	Message     string             `json:"message,omitempty"`
	Activations *ActivationSummary `json:"activations,omitempty"`
}

// DeactivateRequest revokes a machine activation, freeing the slot.
type DeactivateRequest struct {
	LicenseKey string `json:"license_key" validate:"required"`
	MachineID  string `json:"machine_id" validate:"required"`
}

// DeactivateResponse confirms a revocation.
type DeactivateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// UsageRequest records one conversion attempt for analytics and trial
// accounting. The server never rejects a well-formed usage report.
type UsageRequest struct {
	LicenseKey    string            `json:"license_key" validate:"required"`
	ConverterName string            `json:"converter_name" validate:"required"`
	InputFileSize int64             `json:"input_file_size" validate:"min=0"`
	Success       bool              `json:"success"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Activation is one machine registration on a license.
type Activation struct {
	ID          string            `json:"id"`
	MachineID   string            `json:"machine_id"`
	ActivatedAt time.Time         `json:"activated_at"`
	LastSeenAt  time.Time         `json:"last_seen_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ActivationsResponse lists a license's machine registrations.
type ActivationsResponse struct {
	Count       int          `json:"count"`
	Max         int          `json:"max"`
	Activations []Activation `json:"activations"`
}

// HealthResponse reports server and database health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Version  string `json:"version"`
}
