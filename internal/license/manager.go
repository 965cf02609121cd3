package license

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"convertcli/internal/backend"
	licerrors "convertcli/internal/errors"
	"convertcli/internal/signing"
	"convertcli/internal/store"
)

// Backend is the subset of the online client the manager needs. The concrete
// implementation is backend.Client; tests substitute fakes.
type Backend interface {
	Available(ctx context.Context) bool
	ValidateLicense(ctx context.Context, key, machineID string) backend.ValidationResult
	RegisterActivation(ctx context.Context, key, machineID string, metadata map[string]string) error
	RevokeActivation(ctx context.Context, key, machineID string) error
	RecordUsage(ctx context.Context, key, converterName string, fileSize int64, success bool)
}

// MachineIDProvider yields the stable machine identifier activations bind to.
type MachineIDProvider interface {
	MachineID() (string, error)
}

// Options configures a Manager.
type Options struct {
	Store       *store.Store
	Backend     Backend
	PublicKey   *rsa.PublicKey
	Fingerprint MachineIDProvider
	Logger      *slog.Logger
	TrialFile   string

	// RevalidateInterval throttles opportunistic re-validation of the
	// stored license during status queries. Zero means the 24h default.
	RevalidateInterval time.Duration
	// ValidationCacheTTL bounds reuse of the last online validation result.
	ValidationCacheTTL time.Duration

	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

// Manager owns the process-wide license state. All mutation funnels through
// Activate and Deactivate under the write lock; gate checks and status
// queries take the read lock. It is safe for concurrent use.
type Manager struct {
	mu    sync.RWMutex
	state *store.State

	store   *store.Store
	backend Backend
	pub     *rsa.PublicKey
	fp      MachineIDProvider
	logger  *slog.Logger
	trial   *TrialTracker
	metrics *managerMetrics
	now     func() time.Time

	revalidateEvery time.Duration

	valMu         sync.Mutex
	lastValidated time.Time
	lastResult    *backend.ValidationResult
	validationTTL time.Duration
}

// ActivationResult is returned by Activate on success.
type ActivationResult struct {
	Activated    bool   `json:"activated"`
	LicenseType  string `json:"license_type"`
	Confirmation string `json:"confirmation"`
	Message      string `json:"message,omitempty"`
}

// NewManager builds a Manager and loads any previously persisted state. A
// corrupt state file is a hard error so the user learns about it instead of
// silently dropping to trial.
func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("license manager requires a store")
	}
	if opts.PublicKey == nil {
		return nil, fmt.Errorf("license manager requires a verification key")
	}
	if opts.Fingerprint == nil {
		return nil, fmt.Errorf("license manager requires a machine id provider")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.RevalidateInterval <= 0 {
		opts.RevalidateInterval = 24 * time.Hour
	}
	if opts.ValidationCacheTTL <= 0 {
		opts.ValidationCacheTTL = 15 * time.Minute
	}

	m := &Manager{
		store:           opts.Store,
		backend:         opts.Backend,
		pub:             opts.PublicKey,
		fp:              opts.Fingerprint,
		logger:          opts.Logger.With(slog.String("component", "license_manager")),
		trial:           NewTrialTracker(opts.TrialFile, opts.Logger, opts.Clock),
		metrics:         newManagerMetrics(),
		now:             opts.Clock,
		revalidateEvery: opts.RevalidateInterval,
		validationTTL:   opts.ValidationCacheTTL,
	}

	state, err := opts.Store.Load()
	if err != nil {
		return nil, err
	}
	m.state = state
	if state != nil {
		m.logger.Info("loaded activated license",
			slog.String("type", state.License.Type),
			slog.String("confirmation", state.Confirmation),
		)
	}
	return m, nil
}

// Activate verifies and activates a license key. The signature is checked
// offline first; the backend is never contacted with an unverifiable key.
// When the backend is reachable its verdict is authoritative. When it is
// not, the offline-verified payload is accepted with offline confirmation.
func (m *Manager) Activate(ctx context.Context, key string) (*ActivationResult, error) {
	start := m.now()

	payload, err := signing.VerifyAndDecode(key, m.pub)
	if err != nil {
		m.metrics.recordActivation(ctx, "rejected_offline")
		m.logger.Warn("license key rejected before backend contact",
			slog.String("key_fingerprint", signing.Fingerprint(key)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	if payload.Expired(m.now()) {
		m.metrics.recordActivation(ctx, "expired")
		return nil, licerrors.ErrLicenseExpired
	}

	machineID, err := m.fp.MachineID()
	if err != nil {
		return nil, fmt.Errorf("compute machine id: %w", err)
	}

	// Re-activating the key that is already active is a no-op success.
	m.mu.RLock()
	current := m.state
	m.mu.RUnlock()
	if current != nil && signing.Fingerprint(current.LicenseKey) == signing.Fingerprint(key) {
		m.logger.Info("license already active, activation is a no-op",
			slog.String("key_fingerprint", signing.Fingerprint(key)),
		)
		return &ActivationResult{
			Activated:    true,
			LicenseType:  current.License.Type,
			Confirmation: current.Confirmation,
			Message:      "license already activated on this machine",
		}, nil
	}

	confirmation := store.ConfirmedOffline
	message := "activated offline; backend unreachable"
	var onlineResult *backend.ValidationResult

	if m.backend != nil && m.backend.Available(ctx) {
		res := m.backend.ValidateLicense(ctx, key, machineID)
		if res.Reachable {
			if !res.Valid {
				m.metrics.recordActivation(ctx, "rejected_online")
				return nil, res.Err
			}
			confirmation = store.ConfirmedOnline
			message = "activated and confirmed online"
			onlineResult = &res
		}
	}

	newState := &store.State{
		LicenseKey:         key,
		License:            *payload,
		MachineID:          machineID,
		ActivatedAt:        m.now(),
		Confirmation:       confirmation,
		LastConfirmAttempt: m.now(),
	}

	m.mu.Lock()
	if err := m.store.Save(newState); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("persist license state: %w", err)
	}
	m.state = newState
	m.mu.Unlock()

	if onlineResult != nil {
		m.cacheValidation(onlineResult)
	}

	// Register the activation slot. Local activation already succeeded;
	// anything but a cap rejection is a warning, not a failure.
	if confirmation == store.ConfirmedOnline {
		err := m.backend.RegisterActivation(ctx, key, machineID, map[string]string{
			"hostname_hash": machineID[:8],
		})
		switch {
		case err == nil:
		case errors.Is(err, licerrors.ErrActivationLimit):
			m.mu.Lock()
			m.store.Clear()
			m.state = nil
			m.mu.Unlock()
			m.metrics.recordActivation(ctx, "limit_exceeded")
			return nil, err
		default:
			m.logger.Warn("online activation registration failed, license remains active",
				slog.String("error", err.Error()),
			)
		}
	}

	m.metrics.recordActivation(ctx, "success")
	m.metrics.recordActivationDuration(ctx, m.now().Sub(start))
	m.logger.Info("license activated",
		slog.String("type", payload.Type),
		slog.String("confirmation", confirmation),
		slog.String("key_fingerprint", signing.Fingerprint(key)),
	)

	return &ActivationResult{
		Activated:    true,
		LicenseType:  payload.Type,
		Confirmation: confirmation,
		Message:      message,
	}, nil
}

// Deactivate revokes this machine's activation online when possible and
// always clears local state. Local deactivation must succeed even offline.
func (m *Manager) Deactivate(ctx context.Context) error {
	m.mu.RLock()
	current := m.state
	m.mu.RUnlock()

	if current != nil && m.backend != nil && m.backend.Available(ctx) {
		if err := m.backend.RevokeActivation(ctx, current.LicenseKey, current.MachineID); err != nil {
			m.logger.Warn("online activation revocation failed, clearing local state anyway",
				slog.String("error", err.Error()),
			)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Clear(); err != nil {
		return err
	}
	m.state = nil
	m.invalidateValidation()
	m.logger.Info("license deactivated")
	return nil
}

// Status is the license state summary consumed by the GUI.
type Status struct {
	Activated       bool       `json:"activated"`
	IsTrial         bool       `json:"is_trial"`
	LicenseType     string     `json:"license_type"`
	Email           string     `json:"email,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	Expired         bool       `json:"expired"`
	Confirmation    string     `json:"confirmation,omitempty"`
	ActivationCount int        `json:"activation_count,omitempty"`
	MaxActivations  int        `json:"max_activations,omitempty"`
	Message         string     `json:"message"`
}

// FullStatus extends Status with local bookkeeping detail.
type FullStatus struct {
	Status
	MachineID          string      `json:"machine_id,omitempty"`
	ActivatedAt        *time.Time  `json:"activated_at,omitempty"`
	LastConfirmAttempt *time.Time  `json:"last_confirm_attempt,omitempty"`
	StateFile          string      `json:"state_file"`
	Trial              TrialStatus `json:"trial"`
}

// GetStatus returns the current license status. As a side effect it may
// attempt to reconcile an offline-accepted license with the backend when the
// last attempt is stale; that never degrades a usable state.
func (m *Manager) GetStatus(ctx context.Context) *Status {
	m.maybeRevalidate(ctx)

	m.mu.RLock()
	defer m.mu.RUnlock()

	st := &Status{IsTrial: true, LicenseType: TierTrial.String()}
	if m.state == nil {
		st.Message = "no license activated, running in trial mode"
		return st
	}

	lic := m.state.License
	st.Activated = true
	st.IsTrial = false
	st.LicenseType = lic.Type
	st.Email = lic.Email
	st.ExpiresAt = lic.ExpiresAt
	st.Expired = lic.Expired(m.now())
	st.Confirmation = m.state.Confirmation
	st.MaxActivations = lic.MaxActivations

	if res := m.cachedValidation(); res != nil && res.Activations != nil {
		st.ActivationCount = res.Activations.Count
		st.MaxActivations = res.Activations.Max
	}

	switch {
	case st.Expired:
		st.Message = "license expired, paid features are locked"
	case m.state.Confirmation == store.ConfirmedOffline:
		st.Message = "license active (offline verified, awaiting online confirmation)"
	default:
		st.Message = "license active"
	}
	return st
}

// GetFullStatus returns status plus machine and file details.
func (m *Manager) GetFullStatus(ctx context.Context) *FullStatus {
	status := m.GetStatus(ctx)

	m.mu.RLock()
	full := &FullStatus{
		Status:    *status,
		StateFile: m.store.Path(),
	}
	if m.state != nil {
		full.MachineID = m.state.MachineID
		activatedAt := m.state.ActivatedAt
		full.ActivatedAt = &activatedAt
		lastAttempt := m.state.LastConfirmAttempt
		full.LastConfirmAttempt = &lastAttempt
	}
	m.mu.RUnlock()

	full.Trial = m.trial.Status()
	return full
}

// GetTrialStatus reports trial usage indicators. Computation failures fall
// back to a permissive default; trial users are never blocked by accounting.
func (m *Manager) GetTrialStatus() TrialStatus {
	m.mu.RLock()
	hasPaid := m.state != nil && !m.state.License.Expired(m.now())
	m.mu.RUnlock()

	ts := m.trial.Status()
	ts.IsTrial = !hasPaid
	return ts
}

// currentTier derives the effective tier: trial when nothing is activated or
// the activated license has expired.
func (m *Manager) currentTier() Tier {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentTierLocked()
}

func (m *Manager) currentTierLocked() Tier {
	if m.state == nil || m.state.License.Expired(m.now()) {
		return TierTrial
	}
	tier, err := ParseTier(m.state.License.Type)
	if err != nil {
		m.logger.Warn("activated license carries unknown tier, treating as trial",
			slog.String("type", m.state.License.Type),
		)
		return TierTrial
	}
	return tier
}

// maybeRevalidate upgrades an offline-accepted license to online-confirmed
// when the backend becomes reachable. Backend-confirmed revocation or
// disappearance clears the local state; expiry is left to the payload's own
// expiry date. Attempts are throttled by RevalidateInterval.
func (m *Manager) maybeRevalidate(ctx context.Context) {
	m.mu.RLock()
	current := m.state
	m.mu.RUnlock()

	if current == nil || m.backend == nil {
		return
	}
	if m.now().Sub(current.LastConfirmAttempt) < m.revalidateEvery {
		return
	}
	if !m.backend.Available(ctx) {
		return
	}

	res := m.backend.ValidateLicense(ctx, current.LicenseKey, current.MachineID)
	if !res.Reachable {
		return
	}
	m.cacheValidation(&res)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil || m.state.LicenseKey != current.LicenseKey {
		return
	}
	m.state.LastConfirmAttempt = m.now()

	if res.Valid {
		if m.state.Confirmation != store.ConfirmedOnline {
			m.logger.Info("offline-accepted license confirmed online")
		}
		m.state.Confirmation = store.ConfirmedOnline
	} else if errors.Is(res.Err, licerrors.ErrLicenseRevoked) ||
		errors.Is(res.Err, licerrors.ErrLicenseSuspended) ||
		errors.Is(res.Err, licerrors.ErrLicenseNotFound) {
		m.logger.Warn("backend invalidated stored license, clearing local state",
			slog.String("reason", res.Err.Error()),
		)
		m.store.Clear()
		m.state = nil
		return
	}

	if err := m.store.Save(m.state); err != nil {
		m.logger.Warn("failed to persist revalidated license state",
			slog.String("error", err.Error()),
		)
	}
}

func (m *Manager) cacheValidation(res *backend.ValidationResult) {
	m.valMu.Lock()
	defer m.valMu.Unlock()
	m.lastResult = res
	m.lastValidated = m.now()
}

func (m *Manager) cachedValidation() *backend.ValidationResult {
	m.valMu.Lock()
	defer m.valMu.Unlock()
	if m.lastResult == nil || m.now().Sub(m.lastValidated) > m.validationTTL {
		return nil
	}
	return m.lastResult
}

func (m *Manager) invalidateValidation() {
	m.valMu.Lock()
	defer m.valMu.Unlock()
	m.lastResult = nil
}

// AutoActivateDev activates the developer license key from keyFile. Callers
// must gate this behind config.DevModeEnabled; it is a no-op when a license
// is already active.
func (m *Manager) AutoActivateDev(ctx context.Context, key string) {
	m.mu.RLock()
	active := m.state != nil
	m.mu.RUnlock()
	if active {
		return
	}
	if _, err := m.Activate(ctx, key); err != nil {
		m.logger.Warn("developer auto-activation failed",
			slog.String("error", err.Error()),
		)
		return
	}
	m.logger.Info("developer license auto-activated")
}
