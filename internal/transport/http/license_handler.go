// Package http exposes the license server's HTTP API: online validation,
// activation bookkeeping, and usage ingestion over the three-table store.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	licerrors "convertcli/internal/errors"
	"convertcli/internal/storage"
	v1 "convertcli/pkg/contracts/api/v1"
)

// LicenseHandler serves the /api/license routes.
type LicenseHandler struct {
	store    *storage.Store
	logger   *slog.Logger
	validate *validator.Validate
}

// NewLicenseHandler creates a license handler.
func NewLicenseHandler(store *storage.Store, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		store:    store,
		logger:   logger.With(slog.String("handler", "license")),
		validate: validator.New(),
	}
}

// Routes returns the chi router for license endpoints.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(10 * time.Second))

	r.Post("/validate", h.Validate)
	r.Post("/activate", h.Activate)
	r.Post("/deactivate", h.Deactivate)
	r.Post("/usage", h.RecordUsage)
	r.Get("/activations", h.ListActivations)
	return r
}

// Validate implements the tri-state online validation: the response is
// always HTTP 200 with the verdict in the body, so the client can separate
// "backend said no" from "backend unreachable".
func (h *LicenseHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req v1.ValidateRequest
	if err := h.bind(r, &req); err != nil {
		render.Render(w, r, licerrors.InvalidRequest(err))
		return
	}

	lic, summary, err := h.checkLicense(r.Context(), req.LicenseKey, req.MachineID)
	if err != nil {
		apiErr := licerrors.ToAPIError(err)
		if apiErr.StatusCode == http.StatusInternalServerError {
			h.logger.Error("validation failed", slog.String("error", err.Error()))
			render.Render(w, r, apiErr)
			return
		}
		render.JSON(w, r, v1.ValidateResponse{
			Valid:       false,
			Message:     apiErr.Message,
			ErrorCode:   apiErr.ErrorCode,
			License:     licenseInfo(lic),
			Activations: summary,
		})
		return
	}

	render.JSON(w, r, v1.ValidateResponse{
		Valid:       true,
		Message:     "license valid",
		License:     licenseInfo(lic),
		Activations: summary,
	})
}

// Activate registers the (license, machine) activation, bumping last_seen_at
// when the machine already holds a slot.
func (h *LicenseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req v1.ActivateRequest
	if err := h.bind(r, &req); err != nil {
		render.Render(w, r, licerrors.InvalidRequest(err))
		return
	}

	lic, summary, err := h.checkLicense(r.Context(), req.LicenseKey, req.MachineID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	if err := h.store.UpsertActivation(r.Context(), lic.ID, req.MachineID, req.Metadata); err != nil {
		h.logger.Error("activation upsert failed", slog.String("error", err.Error()))
		render.Render(w, r, licerrors.Internal(err))
		return
	}

	if !summary.MachineKnown {
		summary.Count++
		summary.MachineKnown = true
	}
	h.logger.Info("activation registered",
		slog.String("license_id", lic.ID),
		slog.Int("count", summary.Count),
		slog.Int("max", summary.Max),
	)
	render.JSON(w, r, v1.ActivateResponse{
		Success:     true,
		Message:     "activation registered",
		Activations: summary,
	})
}

// Deactivate removes the activation row, freeing the slot for another
// machine. Deactivating a machine that holds no slot is a success.
func (h *LicenseHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	var req v1.DeactivateRequest
	if err := h.bind(r, &req); err != nil {
		render.Render(w, r, licerrors.InvalidRequest(err))
		return
	}

	lic, err := h.store.FindLicenseByKey(r.Context(), req.LicenseKey)
	if err != nil {
		render.Render(w, r, licerrors.Internal(err))
		return
	}
	if lic == nil {
		h.renderError(w, r, licerrors.ErrLicenseNotFound)
		return
	}

	if err := h.store.DeleteActivation(r.Context(), lic.ID, req.MachineID); err != nil {
		h.logger.Error("activation delete failed", slog.String("error", err.Error()))
		render.Render(w, r, licerrors.Internal(err))
		return
	}

	h.logger.Info("activation revoked", slog.String("license_id", lic.ID))
	render.JSON(w, r, v1.DeactivateResponse{Success: true, Message: "activation revoked"})
}

// RecordUsage appends a usage log entry. The endpoint accepts reports for
// any known license regardless of status; analytics should not lose data
// because a license lapsed.
func (h *LicenseHandler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	var req v1.UsageRequest
	if err := h.bind(r, &req); err != nil {
		render.Render(w, r, licerrors.InvalidRequest(err))
		return
	}

	lic, err := h.store.FindLicenseByKey(r.Context(), req.LicenseKey)
	if err != nil {
		render.Render(w, r, licerrors.Internal(err))
		return
	}
	if lic == nil {
		h.renderError(w, r, licerrors.ErrLicenseNotFound)
		return
	}

	entry := &storage.UsageLog{
		LicenseID:     lic.ID,
		ConverterName: req.ConverterName,
		InputFileSize: req.InputFileSize,
		Success:       req.Success,
		Metadata:      req.Metadata,
	}
	if err := h.store.InsertUsage(r.Context(), entry); err != nil {
		h.logger.Error("usage insert failed", slog.String("error", err.Error()))
		render.Render(w, r, licerrors.Internal(err))
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]bool{"recorded": true})
}

// ListActivations returns a license's machine registrations.
func (h *LicenseHandler) ListActivations(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		render.Render(w, r, licerrors.NewAPIError(http.StatusBadRequest, licerrors.CodeInvalidRequest, "key query parameter is required"))
		return
	}

	lic, err := h.store.FindLicenseByKey(r.Context(), key)
	if err != nil {
		render.Render(w, r, licerrors.Internal(err))
		return
	}
	if lic == nil {
		h.renderError(w, r, licerrors.ErrLicenseNotFound)
		return
	}

	acts, err := h.store.ListActivations(r.Context(), lic.ID)
	if err != nil {
		render.Render(w, r, licerrors.Internal(err))
		return
	}

	out := v1.ActivationsResponse{
		Count:       len(acts),
		Max:         lic.MaxActivations,
		Activations: make([]v1.Activation, 0, len(acts)),
	}
	for _, a := range acts {
		out.Activations = append(out.Activations, v1.Activation{
			ID:          a.ID,
			MachineID:   a.MachineID,
			ActivatedAt: a.ActivatedAt,
			LastSeenAt:  a.LastSeenAt,
			Metadata:    a.Metadata,
		})
	}
	render.JSON(w, r, out)
}

// checkLicense applies the validity rules shared by validate and activate:
// the row must exist, be active, be unexpired, and either have a free
// activation slot or already know the requesting machine. The license row
// and slot summary are returned even on negative verdicts so responses can
// carry context.
func (h *LicenseHandler) checkLicense(ctx context.Context, key, machineID string) (*storage.License, *v1.ActivationSummary, error) {
	lic, err := h.store.FindLicenseByKey(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if lic == nil {
		return nil, nil, licerrors.ErrLicenseNotFound
	}

	count, err := h.store.CountActivations(ctx, lic.ID)
	if err != nil {
		return lic, nil, err
	}
	known, err := h.store.HasActivation(ctx, lic.ID, machineID)
	if err != nil {
		return lic, nil, err
	}
	summary := &v1.ActivationSummary{Count: count, Max: lic.MaxActivations, MachineKnown: known}

	switch lic.Status {
	case v1.StatusRevoked:
		return lic, summary, licerrors.ErrLicenseRevoked
	case v1.StatusSuspended:
		return lic, summary, licerrors.ErrLicenseSuspended
	case v1.StatusExpired:
		return lic, summary, licerrors.ErrLicenseExpired
	}

	if lic.ExpiresAt != nil && time.Now().After(*lic.ExpiresAt) {
		// Reflect the lapse on the row; the key string itself is immutable.
		if err := h.store.UpdateLicenseStatus(ctx, lic.ID, v1.StatusExpired); err != nil {
			h.logger.Warn("failed to mark license expired", slog.String("error", err.Error()))
		}
		return lic, summary, licerrors.ErrLicenseExpired
	}

	if !known && count >= lic.MaxActivations {
		return lic, summary, &licerrors.ActivationLimitError{Current: count, Max: lic.MaxActivations}
	}
	return lic, summary, nil
}

func (h *LicenseHandler) bind(r *http.Request, req interface{}) error {
	if err := render.DecodeJSON(r.Body, req); err != nil {
		return err
	}
	return h.validate.Struct(req)
}

func (h *LicenseHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := licerrors.ToAPIError(err)
	if apiErr.StatusCode == http.StatusInternalServerError {
		h.logger.Error("request failed", slog.String("error", err.Error()))
	}
	render.Render(w, r, apiErr)
}

func licenseInfo(lic *storage.License) *v1.LicenseInfo {
	if lic == nil {
		return nil
	}
	return &v1.LicenseInfo{
		ID:             lic.ID,
		Email:          lic.Email,
		Type:           lic.Type,
		Status:         lic.Status,
		MaxActivations: lic.MaxActivations,
		CreatedAt:      lic.CreatedAt,
		ExpiresAt:      lic.ExpiresAt,
	}
}
