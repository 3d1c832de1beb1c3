package approval

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest(deviceID, userID, domain string, createdAt time.Time) DeviceRequest {
	return DeviceRequest{
		ID:         uuid.New(),
		DeviceID:   deviceID,
		UserID:     userID,
		Domain:     domain,
		DeviceName: "Test Device",
		Platform:   "iOS",
		Status:     RequestPending,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

func TestInMemApprovalRepository_UpsertRequest(t *testing.T) {
	repo := NewInMemApprovalRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	req := newTestRequest("device-1", "alice", "example.com", now.Add(-time.Hour))
	stored, err := repo.UpsertRequest(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, req.ID, stored.ID)

	// Repeating the request overwrites the row and restarts created_at
	repeat := newTestRequest("device-1", "alice", "example.com", now)
	stored, err = repo.UpsertRequest(ctx, repeat)
	require.NoError(t, err)
	assert.Equal(t, req.ID, stored.ID)
	assert.Equal(t, now, stored.CreatedAt)

	reqs, err := repo.FindRequests(ctx, "example.com", "")
	require.NoError(t, err)
	assert.Len(t, reqs, 1)

	// Same device for a different user is a separate row
	other := newTestRequest("device-1", "bob", "example.com", now)
	_, err = repo.UpsertRequest(ctx, other)
	require.NoError(t, err)

	reqs, err = repo.FindRequests(ctx, "example.com", "")
	require.NoError(t, err)
	assert.Len(t, reqs, 2)
}

func TestInMemApprovalRepository_GetLatestRequest(t *testing.T) {
	repo := NewInMemApprovalRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	older := newTestRequest("device-1", "alice", "example.com", now.Add(-time.Hour))
	newer := newTestRequest("device-1", "bob", "example.com", now)

	_, err := repo.UpsertRequest(ctx, older)
	require.NoError(t, err)
	_, err = repo.UpsertRequest(ctx, newer)
	require.NoError(t, err)

	// Latest by created_at regardless of user
	latest, err := repo.GetLatestRequest(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, "bob", latest.UserID)

	// The lookup spans domains as well
	elsewhere := newTestRequest("device-1", "carol", "other.com", now.Add(time.Minute))
	_, err = repo.UpsertRequest(ctx, elsewhere)
	require.NoError(t, err)

	latest, err = repo.GetLatestRequest(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, "carol", latest.UserID)

	_, err = repo.GetLatestRequest(ctx, "device-2")
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestInMemApprovalRepository_SetStatus_ApproveCascade(t *testing.T) {
	repo := NewInMemApprovalRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	req := newTestRequest("device-1", "alice", "example.com", now)
	_, err := repo.UpsertRequest(ctx, req)
	require.NoError(t, err)

	// Not approved before the decision
	approved, err := repo.IsDeviceApproved(ctx, "device-1", "example.com")
	require.NoError(t, err)
	assert.False(t, approved)

	updated, err := repo.SetStatus(ctx, req.ID, RequestApproved, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, RequestApproved, updated.Status)

	// The cascade put the device in the approval cache
	approved, err = repo.IsDeviceApproved(ctx, "device-1", "example.com")
	require.NoError(t, err)
	assert.True(t, approved)

	// The cache is keyed by device and domain only
	approved, err = repo.IsDeviceApproved(ctx, "device-1", "other.com")
	require.NoError(t, err)
	assert.False(t, approved)

	// Approving a second request for the same device is idempotent on the cache
	second := newTestRequest("device-1", "bob", "example.com", now)
	_, err = repo.UpsertRequest(ctx, second)
	require.NoError(t, err)
	_, err = repo.SetStatus(ctx, second.ID, RequestApproved, now.Add(2*time.Minute))
	require.NoError(t, err)

	devices, err := repo.FindApprovedDevices(ctx, "example.com")
	require.NoError(t, err)
	assert.Len(t, devices, 1)
	// The cache entry remembers whose request created it
	assert.Equal(t, "alice", devices[0].UserID)
}

func TestInMemApprovalRepository_SetStatus_Block(t *testing.T) {
	repo := NewInMemApprovalRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	req := newTestRequest("device-1", "alice", "example.com", now)
	_, err := repo.UpsertRequest(ctx, req)
	require.NoError(t, err)

	updated, err := repo.SetStatus(ctx, req.ID, RequestBlocked, now)
	require.NoError(t, err)
	assert.Equal(t, RequestBlocked, updated.Status)

	// Blocking does not touch the approval cache
	approved, err := repo.IsDeviceApproved(ctx, "device-1", "example.com")
	require.NoError(t, err)
	assert.False(t, approved)

	_, err = repo.SetStatus(ctx, uuid.New(), RequestBlocked, now)
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestInMemApprovalRepository_RevokeApprovedDevice(t *testing.T) {
	repo := NewInMemApprovalRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	req := newTestRequest("device-1", "alice", "example.com", now)
	_, err := repo.UpsertRequest(ctx, req)
	require.NoError(t, err)
	_, err = repo.SetStatus(ctx, req.ID, RequestApproved, now)
	require.NoError(t, err)

	require.NoError(t, repo.RevokeApprovedDevice(ctx, "device-1", "example.com"))

	approved, err := repo.IsDeviceApproved(ctx, "device-1", "example.com")
	require.NoError(t, err)
	assert.False(t, approved)

	err = repo.RevokeApprovedDevice(ctx, "device-1", "example.com")
	assert.ErrorIs(t, err, ErrApprovedDeviceNotFound)
}

func TestInMemApprovalRepository_MarkExpiredRequests(t *testing.T) {
	repo := NewInMemApprovalRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	overdue := newTestRequest("device-1", "alice", "example.com", now.Add(-RequestExpiryDuration-time.Minute))
	fresh := newTestRequest("device-2", "bob", "example.com", now.Add(-time.Hour))
	decided := newTestRequest("device-3", "carol", "example.com", now.Add(-RequestExpiryDuration-time.Minute))

	for _, req := range []DeviceRequest{overdue, fresh, decided} {
		_, err := repo.UpsertRequest(ctx, req)
		require.NoError(t, err)
	}

	// Approve device-3 so its age no longer matters
	_, err := repo.SetStatus(ctx, decided.ID, RequestApproved, now)
	require.NoError(t, err)

	count, err := repo.MarkExpiredRequests(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	expired, err := repo.GetRequestByID(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, RequestExpired, expired.Status)

	untouched, err := repo.GetRequestByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, RequestPending, untouched.Status)
}
