package license

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTrialTracker(t *testing.T, clock func() time.Time) (*TrialTracker, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trial.json")
	logger := slog.New(slog.NewTextHandler(discard{}, nil))
	return NewTrialTracker(path, logger, clock), path
}

func TestTrialFirstRunInitializes(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	tracker, path := newTrialTracker(t, func() time.Time { return now })

	st := tracker.Status()
	assert.True(t, st.IsTrial)
	assert.True(t, now.Equal(st.FirstRunAt))
	assert.Equal(t, 0, st.DaysUsed)
	assert.Equal(t, trialPeriodDays, st.DaysRemaining)

	_, err := os.Stat(path)
	assert.NoError(t, err, "first status call persists the first-run timestamp")
}

func TestTrialDayAccounting(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)}
	tracker, _ := newTrialTracker(t, clock.Now)

	tracker.Status()

	clock.Advance(5*24*time.Hour + time.Hour)
	st := tracker.Status()
	assert.Equal(t, 5, st.DaysUsed)
	assert.Equal(t, trialPeriodDays-5, st.DaysRemaining)

	// Well past the period: remaining clamps at zero, trial is not blocked.
	clock.Advance(30 * 24 * time.Hour)
	st = tracker.Status()
	assert.Equal(t, 0, st.DaysRemaining)
	assert.True(t, st.IsTrial)
}

func TestTrialConversionCounters(t *testing.T) {
	tracker, path := newTrialTracker(t, time.Now)

	tracker.RecordConversion("md2pdf")
	tracker.RecordConversion("md2pdf")
	tracker.RecordConversion("md2html")

	st := tracker.Status()
	assert.Equal(t, 3, st.Conversions)

	// Counters survive a new tracker over the same file.
	logger := slog.New(slog.NewTextHandler(discard{}, nil))
	again := NewTrialTracker(path, logger, time.Now)
	assert.Equal(t, 3, again.Status().Conversions)
}

func TestTrialCorruptFileStartsFresh(t *testing.T) {
	tracker, path := newTrialTracker(t, time.Now)
	require.NoError(t, os.WriteFile(path, []byte("{{{corrupt"), 0o600))

	st := tracker.Status()
	assert.Equal(t, 0, st.Conversions, "corrupt bookkeeping resets instead of erroring")
	assert.False(t, st.FirstRunAt.IsZero())
}

func TestTrialMemoryOnly(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(discard{}, nil))
	tracker := NewTrialTracker("", logger, time.Now)

	assert.NotPanics(t, func() {
		tracker.RecordConversion("md2pdf")
		tracker.Status()
	})
}

func TestTrialConcurrentRecording(t *testing.T) {
	tracker, _ := newTrialTracker(t, time.Now)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.RecordConversion("md2pdf")
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, tracker.Status().Conversions)
}
