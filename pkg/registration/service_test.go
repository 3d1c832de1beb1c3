package registration

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/device-gate/pkg/errors"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRegistrationService_Register(t *testing.T) {
	repo := NewInMemRegistrationRepository()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	service := NewRegistrationService(repo, WithClock(fixedClock(now)))
	ctx := context.Background()

	reg, err := service.Register(ctx, RegisterDeviceParams{
		TenantID:   "Acme",
		DeviceID:   "device-1",
		DeviceName: "Alice's Laptop",
		Platform:   "macOS",
		OSVersion:  "14.5",
	})
	require.NoError(t, err)

	// Tenant id is normalized to lower case
	assert.Equal(t, "acme", reg.TenantID)
	assert.Regexp(t, `^REG-[A-Z0-9]{8}$`, reg.RegistrationToken)
	assert.Equal(t, now.Add(TokenExpiryDuration), reg.TokenExpiry)
	assert.Equal(t, StatusPending, reg.Status)
	assert.False(t, reg.TokenUsed)
}

func TestRegistrationService_Register_MissingFields(t *testing.T) {
	repo := NewInMemRegistrationRepository()
	service := NewRegistrationService(repo)
	ctx := context.Background()

	_, err := service.Register(ctx, RegisterDeviceParams{
		TenantID: "acme",
		DeviceID: "device-1",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMissingRequired))
}

func TestRegistrationService_Register_ResetsState(t *testing.T) {
	repo := NewInMemRegistrationRepository()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	service := NewRegistrationService(repo, WithClock(fixedClock(now)))
	ctx := context.Background()

	params := RegisterDeviceParams{
		TenantID:   "acme",
		DeviceID:   "device-1",
		DeviceName: "Alice's Laptop",
		Platform:   "macOS",
	}

	first, err := service.Register(ctx, params)
	require.NoError(t, err)

	// Consume the first token
	_, err = service.Verify(ctx, "device-1", first.RegistrationToken)
	require.NoError(t, err)

	// Re-registering issues a fresh token and resets to pending
	second, err := service.Register(ctx, params)
	require.NoError(t, err)
	assert.NotEqual(t, first.RegistrationToken, second.RegistrationToken)
	assert.Equal(t, StatusPending, second.Status)
	assert.False(t, second.TokenUsed)

	// The old token is gone, only the new one verifies
	_, err = service.Verify(ctx, "device-1", first.RegistrationToken)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))

	_, err = service.Verify(ctx, "device-1", second.RegistrationToken)
	require.NoError(t, err)
}

func TestRegistrationService_Verify(t *testing.T) {
	repo := NewInMemRegistrationRepository()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	service := NewRegistrationService(repo, WithClock(fixedClock(now)))
	ctx := context.Background()

	reg, err := service.Register(ctx, RegisterDeviceParams{
		TenantID:   "acme",
		DeviceID:   "device-1",
		DeviceName: "Alice's Laptop",
		Platform:   "macOS",
	})
	require.NoError(t, err)

	verified, err := service.Verify(ctx, "device-1", reg.RegistrationToken)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, verified.Status)
	assert.True(t, verified.TokenUsed)
}

func TestRegistrationService_Verify_CaseInsensitive(t *testing.T) {
	repo := NewInMemRegistrationRepository()
	service := NewRegistrationService(repo)
	ctx := context.Background()

	reg, err := service.Register(ctx, RegisterDeviceParams{
		TenantID:   "acme",
		DeviceID:   "device-1",
		DeviceName: "Alice's Laptop",
		Platform:   "macOS",
	})
	require.NoError(t, err)

	lowered := "  " + strings.ToLower(reg.RegistrationToken) + " "
	verified, err := service.Verify(ctx, "device-1", lowered)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, verified.Status)
}

func TestRegistrationService_Verify_OneShot(t *testing.T) {
	repo := NewInMemRegistrationRepository()
	service := NewRegistrationService(repo)
	ctx := context.Background()

	reg, err := service.Register(ctx, RegisterDeviceParams{
		TenantID:   "acme",
		DeviceID:   "device-1",
		DeviceName: "Alice's Laptop",
		Platform:   "macOS",
	})
	require.NoError(t, err)

	_, err = service.Verify(ctx, "device-1", reg.RegistrationToken)
	require.NoError(t, err)

	// Second use of the same token fails
	_, err = service.Verify(ctx, "device-1", reg.RegistrationToken)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTokenAlreadyUsed))
}

func TestRegistrationService_Verify_Expired(t *testing.T) {
	repo := NewInMemRegistrationRepository()
	registeredAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := registeredAt
	service := NewRegistrationService(repo, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	reg, err := service.Register(ctx, RegisterDeviceParams{
		TenantID:   "acme",
		DeviceID:   "device-1",
		DeviceName: "Alice's Laptop",
		Platform:   "macOS",
	})
	require.NoError(t, err)

	// Advance past the token expiry window
	clock = registeredAt.Add(TokenExpiryDuration + time.Minute)

	_, err = service.Verify(ctx, "device-1", reg.RegistrationToken)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTokenExpired))

	// No state change: the registration is still pending with an unused token
	stored, err := repo.GetRegistration(ctx, "acme", "device-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
	assert.False(t, stored.TokenUsed)
}

func TestRegistrationService_Verify_UnknownToken(t *testing.T) {
	repo := NewInMemRegistrationRepository()
	service := NewRegistrationService(repo)
	ctx := context.Background()

	_, err := service.Verify(ctx, "device-1", "REG-NOSUCH01")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))
	// External message does not reveal why the token failed
	assert.Contains(t, err.Error(), "invalid or expired token")
}

type failingRegistrationRepository struct {
	RegistrationRepository
	err error
}

func (r failingRegistrationRepository) FindByDeviceAndToken(ctx context.Context, deviceID, token string) (DeviceRegistration, error) {
	return DeviceRegistration{}, r.err
}

func TestRegistrationService_Verify_StorageError(t *testing.T) {
	repo := failingRegistrationRepository{
		RegistrationRepository: NewInMemRegistrationRepository(),
		err:                    stderrors.New("connection refused"),
	}
	service := NewRegistrationService(repo)
	ctx := context.Background()

	// A repository failure is not mistaken for a bad token
	_, err := service.Verify(ctx, "device-1", "REG-AAAA1111")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStorage))
	assert.False(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))
}

func TestRegistrationService_UpdateStatus(t *testing.T) {
	repo := NewInMemRegistrationRepository()
	service := NewRegistrationService(repo)
	ctx := context.Background()

	reg, err := service.Register(ctx, RegisterDeviceParams{
		TenantID:   "acme",
		DeviceID:   "device-1",
		DeviceName: "Alice's Laptop",
		Platform:   "macOS",
	})
	require.NoError(t, err)

	require.NoError(t, service.UpdateStatus(ctx, reg.ID, StatusBlocked))

	stored, err := repo.GetRegistration(ctx, "acme", "device-1")
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, stored.Status)

	// Unknown status is rejected
	err = service.UpdateStatus(ctx, reg.ID, Status("frozen"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidStatus))
}

func TestRegistrationService_SweepExpiredTokens(t *testing.T) {
	repo := NewInMemRegistrationRepository()
	registeredAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := registeredAt
	service := NewRegistrationService(repo, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	_, err := service.Register(ctx, RegisterDeviceParams{
		TenantID:   "acme",
		DeviceID:   "device-1",
		DeviceName: "Alice's Laptop",
		Platform:   "macOS",
	})
	require.NoError(t, err)

	// Nothing expired yet
	count, err := service.SweepExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	clock = registeredAt.Add(TokenExpiryDuration + time.Minute)

	count, err = service.SweepExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	stored, err := repo.GetRegistration(ctx, "acme", "device-1")
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, stored.Status)
}
