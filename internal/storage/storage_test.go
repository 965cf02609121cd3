package storage

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	licerrors "convertcli/internal/errors"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func openTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(discard{}, nil))
	s, err := Open(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedLicense(t *testing.T, s *Store, mutate func(*License)) *License {
	t.Helper()
	lic := &License{
		Email:          "customer@example.com",
		LicenseKey:     "CONVERT:" + t.Name(),
		Type:           "professional",
		Status:         "active",
		MaxActivations: 3,
		Metadata:       map[string]string{"order_id": "ord_1001"},
	}
	if mutate != nil {
		mutate(lic)
	}
	require.NoError(t, s.CreateLicense(context.Background(), lic))
	return lic
}

func TestCreateAndFindLicense(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	expires := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	created := seedLicense(t, s, func(l *License) { l.ExpiresAt = &expires })
	assert.NotEmpty(t, created.ID, "id is generated on insert")

	found, err := s.FindLicenseByKey(ctx, created.LicenseKey)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "customer@example.com", found.Email)
	assert.Equal(t, "professional", found.Type)
	assert.Equal(t, 3, found.MaxActivations)
	require.NotNil(t, found.ExpiresAt)
	assert.True(t, expires.Equal(*found.ExpiresAt))
	assert.Equal(t, "ord_1001", found.Metadata["order_id"])
}

func TestFindLicenseByKeyAbsent(t *testing.T) {
	s := openTestStore(t)

	found, err := s.FindLicenseByKey(context.Background(), "CONVERT:never-issued")
	require.NoError(t, err, "an unknown key is not a storage error")
	assert.Nil(t, found)
}

func TestCreateLicenseDuplicateKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	lic := seedLicense(t, s, nil)
	err := s.CreateLicense(ctx, &License{
		Email:          "other@example.com",
		LicenseKey:     lic.LicenseKey,
		Type:           "basic",
		Status:         "active",
		MaxActivations: 1,
	})
	assert.Error(t, err, "license_key is unique")
}

func TestUpdateLicenseStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	lic := seedLicense(t, s, nil)

	require.NoError(t, s.UpdateLicenseStatus(ctx, lic.ID, "revoked"))

	found, err := s.FindLicenseByKey(ctx, lic.LicenseKey)
	require.NoError(t, err)
	assert.Equal(t, "revoked", found.Status)

	err = s.UpdateLicenseStatus(ctx, "no-such-id", "revoked")
	assert.ErrorIs(t, err, licerrors.ErrLicenseNotFound)
}

func TestUpsertActivationDedupes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	lic := seedLicense(t, s, nil)

	require.NoError(t, s.UpsertActivation(ctx, lic.ID, "machine-1", nil))
	require.NoError(t, s.UpsertActivation(ctx, lic.ID, "machine-1", nil))
	require.NoError(t, s.UpsertActivation(ctx, lic.ID, "machine-2", map[string]string{"hostname_hash": "ab12"}))

	n, err := s.CountActivations(ctx, lic.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "re-activating the same machine must not consume a slot")

	has, err := s.HasActivation(ctx, lic.ID, "machine-1")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = s.HasActivation(ctx, lic.ID, "machine-9")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestDeleteActivationFreesSlot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	lic := seedLicense(t, s, nil)

	require.NoError(t, s.UpsertActivation(ctx, lic.ID, "machine-1", nil))
	require.NoError(t, s.DeleteActivation(ctx, lic.ID, "machine-1"))

	n, err := s.CountActivations(ctx, lic.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Deleting an absent row is not an error.
	assert.NoError(t, s.DeleteActivation(ctx, lic.ID, "machine-1"))
}

func TestListActivations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	lic := seedLicense(t, s, nil)

	require.NoError(t, s.UpsertActivation(ctx, lic.ID, "machine-1", map[string]string{"hostname_hash": "aa"}))
	require.NoError(t, s.UpsertActivation(ctx, lic.ID, "machine-2", nil))

	list, err := s.ListActivations(ctx, lic.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, lic.ID, list[0].LicenseID)
	assert.False(t, list[0].ActivatedAt.IsZero())
	assert.False(t, list[0].LastSeenAt.IsZero())

	empty, err := s.ListActivations(ctx, "no-such-id")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUsageLogs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	lic := seedLicense(t, s, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.InsertUsage(ctx, &UsageLog{
			LicenseID:     lic.ID,
			ConverterName: "docx2pdf",
			InputFileSize: 1 << 20,
			Success:       i != 2,
		}))
	}

	n, err := s.CountUsage(ctx, lic.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPing(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpenIsIdempotentOnSchema(t *testing.T) {
	// Re-applying the schema against an existing file must be a no-op.
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(discard{}, nil))

	s1, err := Open(dir+"/licenses.db", logger)
	require.NoError(t, err)
	seedLicense(t, s1, nil)
	require.NoError(t, s1.Close())

	s2, err := Open(dir+"/licenses.db", logger)
	require.NoError(t, err)
	defer s2.Close()

	found, err := s2.FindLicenseByKey(context.Background(), "CONVERT:"+t.Name())
	require.NoError(t, err)
	assert.NotNil(t, found)
}
