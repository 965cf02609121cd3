// Package backend is the HTTP client for the online license server. Every
// network failure is converted at this boundary into a reachability result
// or a sentinel the manager can log and ignore; nothing here hangs, and
// nothing network-shaped escapes as a hard error.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	licerrors "convertcli/internal/errors"
	v1 "convertcli/pkg/contracts/api/v1"
)

// Config holds client settings. An empty BaseURL disables the client: all
// probes report unreachable and all calls are no-ops.
type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	ProbeTimeout time.Duration
}

// Client talks to the license server.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// ValidationResult is the tri-state outcome of an online validation.
// Reachable=false means the backend could not be consulted and carries no
// judgment about the license; Valid is meaningful only when Reachable.
type ValidationResult struct {
	Reachable bool
	Valid     bool
	Message   string
	License   *v1.LicenseInfo
	// Activations is set when the server reported slot usage.
	Activations *v1.ActivationSummary
	// Err is the typed negative (ErrLicenseNotFound, ErrLicenseRevoked,
	// ErrLicenseExpired, ActivationLimitError...) when Reachable && !Valid.
	Err error
}

// New creates a backend client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 2 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        4,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: cfg.Timeout,
			},
		},
		logger: logger.With(slog.String("component", "backend_client")),
	}
}

// Available probes the server with a short timeout. It never returns an
// error; unreachable is an answer, not a failure.
func (c *Client) Available(ctx context.Context) bool {
	if c.cfg.BaseURL == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("backend probe failed", slog.String("error", err.Error()))
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// ValidateLicense asks the server whether key may be used from machineID.
// The server answers tri-state in the body with HTTP 200; transport failure
// is the only path to Reachable=false.
func (c *Client) ValidateLicense(ctx context.Context, key, machineID string) ValidationResult {
	status, body, err := c.post(ctx, "/api/license/validate", v1.ValidateRequest{
		LicenseKey: key,
		MachineID:  machineID,
	})
	if err != nil {
		c.logger.Warn("online validation unreachable", slog.String("error", err.Error()))
		return ValidationResult{Reachable: false}
	}

	var out v1.ValidateResponse
	if decodeErr := json.Unmarshal(body, &out); decodeErr != nil || status != http.StatusOK {
		c.logger.Warn("online validation returned unusable response",
			slog.Int("status", status),
		)
		return ValidationResult{Reachable: false}
	}

	res := ValidationResult{
		Reachable:   true,
		Valid:       out.Valid,
		Message:     out.Message,
		License:     out.License,
		Activations: out.Activations,
	}
	if !res.Valid {
		res.Err = c.negativeError(out.ErrorCode, out.Message, out.Activations)
	}
	return res
}

// RegisterActivation inserts or refreshes the (license, machine) activation
// row. Network failures return ErrBackendUnreachable so the caller can
// degrade; a cap rejection returns ActivationLimitError.
func (c *Client) RegisterActivation(ctx context.Context, key, machineID string, metadata map[string]string) error {
	status, body, err := c.post(ctx, "/api/license/activate", v1.ActivateRequest{
		LicenseKey: key,
		MachineID:  machineID,
		Metadata:   metadata,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", licerrors.ErrBackendUnreachable, err)
	}
	if status != http.StatusOK {
		return c.apiError(status, body)
	}

	var out v1.ActivateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("decode activate response: %w", err)
	}
	if !out.Success {
		return c.negativeError("", out.Message, out.Activations)
	}
	return nil
}

// RevokeActivation deletes the activation row, freeing the slot for another
// machine.
func (c *Client) RevokeActivation(ctx context.Context, key, machineID string) error {
	status, body, err := c.post(ctx, "/api/license/deactivate", v1.DeactivateRequest{
		LicenseKey: key,
		MachineID:  machineID,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", licerrors.ErrBackendUnreachable, err)
	}
	if status != http.StatusOK {
		return c.apiError(status, body)
	}
	return nil
}

// RecordUsage reports one conversion attempt. Best effort only: failures are
// logged at debug level and swallowed, because usage tracking must never
// block a conversion.
func (c *Client) RecordUsage(ctx context.Context, key, converterName string, fileSize int64, success bool) {
	if c.cfg.BaseURL == "" {
		return
	}
	status, _, err := c.post(ctx, "/api/license/usage", v1.UsageRequest{
		LicenseKey:    key,
		ConverterName: converterName,
		InputFileSize: fileSize,
		Success:       success,
	})
	if err != nil || status >= http.StatusBadRequest {
		c.logger.Debug("usage report dropped",
			slog.String("converter", converterName),
			slog.Int("status", status),
		)
	}
}

// Activations fetches the activation list for a key.
func (c *Client) Activations(ctx context.Context, key string) (*v1.ActivationsResponse, error) {
	if c.cfg.BaseURL == "" {
		return nil, licerrors.ErrBackendUnreachable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/license/activations?key="+key, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", licerrors.ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", licerrors.ErrBackendUnreachable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp.StatusCode, body)
	}

	var out v1.ActivationsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode activations response: %w", err)
	}
	return &out, nil
}

// post sends a JSON request and returns the HTTP status and raw body. The
// error return covers transport failures only; application-level negatives
// arrive as 4xx statuses with an APIError body.
func (c *Client) post(ctx context.Context, path string, in interface{}) (int, []byte, error) {
	if c.cfg.BaseURL == "" {
		return 0, nil, fmt.Errorf("no backend configured")
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "convertcli/1.0")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

// negativeError turns a server error code into the matching typed error,
// preserving activation counts for cap rejections.
func (c *Client) negativeError(code, message string, acts *v1.ActivationSummary) error {
	if code == licerrors.CodeActivationLimit {
		limitErr := &licerrors.ActivationLimitError{}
		if acts != nil {
			limitErr.Current = acts.Count
			limitErr.Max = acts.Max
		}
		return limitErr
	}
	return licerrors.FromCode(code, message)
}

// apiError parses an APIError body into the matching typed error.
func (c *Client) apiError(status int, body []byte) error {
	var apiErr struct {
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
		Details   struct {
			Current int `json:"current"`
			Max     int `json:"max"`
		} `json:"details"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.ErrorCode != "" {
		if apiErr.ErrorCode == licerrors.CodeActivationLimit {
			return &licerrors.ActivationLimitError{
				Current: apiErr.Details.Current,
				Max:     apiErr.Details.Max,
			}
		}
		return licerrors.FromCode(apiErr.ErrorCode, apiErr.Message)
	}
	return fmt.Errorf("license server returned status %d", status)
}
