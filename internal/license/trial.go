package license

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Trial accounting constants. The trial never hard-expires; these feed the
// indicators the GUI shows ("X days of trial used").
const (
	trialPeriodDays = 14
)

// trialRecord is the locally persisted trial bookkeeping.
type trialRecord struct {
	FirstRunAt  time.Time      `json:"first_run_at"`
	Conversions int            `json:"conversions"`
	ByConverter map[string]int `json:"by_converter,omitempty"`
}

// TrialStatus is the derived trial state reported over the process boundary.
type TrialStatus struct {
	IsTrial       bool      `json:"is_trial"`
	FirstRunAt    time.Time `json:"first_run_at"`
	DaysUsed      int       `json:"days_used"`
	DaysRemaining int       `json:"days_remaining"`
	Conversions   int       `json:"conversions"`
	PeriodDays    int       `json:"period_days"`
}

// TrialTracker persists first-run time and local conversion counts. Every
// failure path degrades to a permissive default: trial accounting exists for
// indicators and analytics, never to block the user.
type TrialTracker struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// NewTrialTracker creates a tracker persisting to path. An empty path keeps
// the tracker memory-only (status reports a fresh trial).
func NewTrialTracker(path string, logger *slog.Logger, clock func() time.Time) *TrialTracker {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TrialTracker{
		path:   path,
		logger: logger.With(slog.String("component", "trial_tracker")),
		now:    clock,
	}
}

// Status computes trial indicators, initializing the first-run timestamp on
// first call.
func (t *TrialTracker) Status() TrialStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.load()
	daysUsed := int(t.now().Sub(rec.FirstRunAt).Hours() / 24)
	if daysUsed < 0 {
		daysUsed = 0
	}
	remaining := trialPeriodDays - daysUsed
	if remaining < 0 {
		remaining = 0
	}

	return TrialStatus{
		IsTrial:       true,
		FirstRunAt:    rec.FirstRunAt,
		DaysUsed:      daysUsed,
		DaysRemaining: remaining,
		Conversions:   rec.Conversions,
		PeriodDays:    trialPeriodDays,
	}
}

// RecordConversion bumps the local trial conversion counters.
func (t *TrialTracker) RecordConversion(converterName string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.load()
	rec.Conversions++
	if rec.ByConverter == nil {
		rec.ByConverter = make(map[string]int)
	}
	rec.ByConverter[converterName]++
	t.save(rec)
}

// load reads the trial record, creating it on first run. Corrupt or
// unreadable files are replaced with a fresh record; losing trial counters
// is preferable to surfacing an error for accounting.
func (t *TrialTracker) load() trialRecord {
	fresh := trialRecord{FirstRunAt: t.now()}
	if t.path == "" {
		return fresh
	}

	data, err := os.ReadFile(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.Warn("trial file unreadable, starting fresh",
				slog.String("error", err.Error()),
			)
		}
		t.save(fresh)
		return fresh
	}

	var rec trialRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.FirstRunAt.IsZero() {
		t.logger.Warn("trial file corrupt, starting fresh")
		t.save(fresh)
		return fresh
	}
	return rec
}

func (t *TrialTracker) save(rec trialRecord) {
	if t.path == "" {
		return
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return
	}
	if err := os.WriteFile(t.path, data, 0o600); err != nil {
		t.logger.Warn("failed to persist trial record",
			slog.String("error", err.Error()),
		)
	}
}
