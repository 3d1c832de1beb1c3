package registration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistration(tenantID, deviceID, token string, now time.Time) DeviceRegistration {
	return DeviceRegistration{
		ID:                uuid.New(),
		TenantID:          tenantID,
		DeviceID:          deviceID,
		DeviceName:        "Test Device",
		Platform:          "iOS",
		OSVersion:         "17.2",
		IPAddress:         "192.0.2.10",
		RegistrationToken: token,
		TokenExpiry:       now.Add(TokenExpiryDuration),
		TokenUsed:         false,
		Status:            StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestInMemRegistrationRepository_UpsertRegistration(t *testing.T) {
	// Setup
	repo := NewInMemRegistrationRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	reg := newTestRegistration("acme", "device-1", "REG-AAAA1111", now)

	// Insert a new registration
	stored, err := repo.UpsertRegistration(ctx, reg)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, stored.ID)
	assert.Equal(t, reg.RegistrationToken, stored.RegistrationToken)

	// Upsert the same (tenant_id, device_id) with a new token
	replacement := newTestRegistration("acme", "device-1", "REG-BBBB2222", now.Add(time.Minute))
	stored, err = repo.UpsertRegistration(ctx, replacement)
	require.NoError(t, err)

	// Row identity is stable, everything else is overwritten
	assert.Equal(t, reg.ID, stored.ID)
	assert.Equal(t, "REG-BBBB2222", stored.RegistrationToken)
	assert.Equal(t, StatusPending, stored.Status)
	assert.False(t, stored.TokenUsed)

	// Only one row exists
	regs, err := repo.FindRegistrations(ctx, "acme", "")
	require.NoError(t, err)
	assert.Len(t, regs, 1)
}

func TestInMemRegistrationRepository_GetRegistration(t *testing.T) {
	repo := NewInMemRegistrationRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	reg := newTestRegistration("acme", "device-1", "REG-AAAA1111", now)
	_, err := repo.UpsertRegistration(ctx, reg)
	require.NoError(t, err)

	// Existing registration
	found, err := repo.GetRegistration(ctx, "acme", "device-1")
	require.NoError(t, err)
	assert.Equal(t, reg.ID, found.ID)

	// Same device id under another tenant is a different row
	_, err = repo.GetRegistration(ctx, "other", "device-1")
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
}

func TestInMemRegistrationRepository_TokenExists(t *testing.T) {
	repo := NewInMemRegistrationRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := repo.UpsertRegistration(ctx, newTestRegistration("acme", "device-1", "REG-AAAA1111", now))
	require.NoError(t, err)

	exists, err := repo.TokenExists(ctx, "REG-AAAA1111")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.TokenExists(ctx, "REG-ZZZZ9999")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestInMemRegistrationRepository_ConsumeToken(t *testing.T) {
	repo := NewInMemRegistrationRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	reg := newTestRegistration("acme", "device-1", "REG-AAAA1111", now)
	_, err := repo.UpsertRegistration(ctx, reg)
	require.NoError(t, err)

	// First consumption succeeds and approves the device
	consumed, err := repo.ConsumeToken(ctx, reg.ID, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, consumed.TokenUsed)
	assert.Equal(t, StatusApproved, consumed.Status)

	// Second consumption fails
	_, err = repo.ConsumeToken(ctx, reg.ID, now.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrTokenConsumed)

	// Unknown id
	_, err = repo.ConsumeToken(ctx, uuid.New(), now)
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
}

func TestInMemRegistrationRepository_FindRegistrations(t *testing.T) {
	repo := NewInMemRegistrationRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	older := newTestRegistration("acme", "device-1", "REG-AAAA1111", now.Add(-time.Hour))
	newer := newTestRegistration("acme", "device-2", "REG-BBBB2222", now)
	other := newTestRegistration("globex", "device-3", "REG-CCCC3333", now)

	for _, reg := range []DeviceRegistration{older, newer, other} {
		_, err := repo.UpsertRegistration(ctx, reg)
		require.NoError(t, err)
	}

	// Filter by tenant, newest first
	regs, err := repo.FindRegistrations(ctx, "acme", "")
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "device-2", regs[0].DeviceID)
	assert.Equal(t, "device-1", regs[1].DeviceID)

	// Filter by status
	require.NoError(t, repo.UpdateStatus(ctx, older.ID, StatusBlocked, now))
	regs, err = repo.FindRegistrations(ctx, "acme", StatusBlocked)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "device-1", regs[0].DeviceID)

	// No filters returns everything
	regs, err = repo.FindRegistrations(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, regs, 3)
}

func TestInMemRegistrationRepository_BlockExpiredTokens(t *testing.T) {
	repo := NewInMemRegistrationRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	expired := newTestRegistration("acme", "device-1", "REG-AAAA1111", now.Add(-time.Hour))
	expired.TokenExpiry = now.Add(-30 * time.Minute)

	fresh := newTestRegistration("acme", "device-2", "REG-BBBB2222", now)

	used := newTestRegistration("acme", "device-3", "REG-CCCC3333", now.Add(-time.Hour))
	used.TokenExpiry = now.Add(-30 * time.Minute)

	for _, reg := range []DeviceRegistration{expired, fresh, used} {
		_, err := repo.UpsertRegistration(ctx, reg)
		require.NoError(t, err)
	}

	// Consume device-3's token so its expiry no longer matters
	_, err := repo.ConsumeToken(ctx, used.ID, now)
	require.NoError(t, err)

	count, err := repo.BlockExpiredTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	blocked, err := repo.GetRegistration(ctx, "acme", "device-1")
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, blocked.Status)

	untouched, err := repo.GetRegistration(ctx, "acme", "device-2")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, untouched.Status)

	approved, err := repo.GetRegistration(ctx, "acme", "device-3")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
}
