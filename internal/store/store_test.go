package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	licerrors "convertcli/internal/errors"
	"convertcli/internal/signing"
)

func testState() *State {
	return &State{
		LicenseKey: "CONVERT:dGVzdA",
		License: signing.Payload{
			Email:          "customer@example.com",
			Type:           "basic",
			MaxActivations: 1,
			IssuedAt:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		MachineID:          "ab12cd34ef56ab12cd34ef56ab12cd34",
		ActivatedAt:        time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC),
		Confirmation:       ConfirmedOnline,
		LastConfirmAttempt: time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestLoadAbsentFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "license.dat"))

	state, err := s.Load()
	require.NoError(t, err, "a missing file is a first run, not an error")
	assert.Nil(t, state)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "license.dat"))
	want := testState()

	require.NoError(t, s.Save(want))

	got, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.LicenseKey, got.LicenseKey)
	assert.Equal(t, want.License.Email, got.License.Email)
	assert.Equal(t, want.MachineID, got.MachineID)
	assert.Equal(t, ConfirmedOnline, got.Confirmation)
	assert.True(t, want.ActivatedAt.Equal(got.ActivatedAt))
}

func TestLoadCorruptFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "this is not json{{{"},
		{"empty object", "{}"},
		{"wrong shape", `{"license_key": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "license.dat")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := New(path).Load()
			assert.ErrorIs(t, err, licerrors.ErrCorruptState,
				"a present-but-unreadable file must be distinguishable from absence")
		})
	}
}

func TestSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "license.dat"))

	first := testState()
	require.NoError(t, s.Save(first))

	second := testState()
	second.License.Email = "other@example.com"
	require.NoError(t, s.Save(second))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "other@example.com", got.License.Email)

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveCreatesParentDirectory(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nested", "deeper", "license.dat"))
	require.NoError(t, s.Save(testState()))

	got, err := s.Load()
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestSaveRestrictsPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "license.dat")
	require.NoError(t, New(path).Save(testState()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "license.dat")
	s := New(path)

	require.NoError(t, s.Save(testState()))
	require.NoError(t, s.Clear())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Clearing again is not an error.
	assert.NoError(t, s.Clear())

	state, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, state)
}
