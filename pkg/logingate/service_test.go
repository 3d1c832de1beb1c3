package logingate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/device-gate/pkg/approval"
	"github.com/tendant/device-gate/pkg/errors"
	"github.com/tendant/device-gate/pkg/tokengenerator"
)

func newTestGate(t *testing.T) (*LoginGateService, *approval.ApprovalService, *approval.InMemApprovalRepository) {
	verifier := NewStaticVerifier()
	verifier.AddUser(Identity{UserID: "u-1", Name: "Alice", Email: "alice@example.com"}, "secret")

	repo := approval.NewInMemApprovalRepository()
	approvalService := approval.NewApprovalService(repo)
	tg := tokengenerator.NewJwtTokenGenerator("test-secret", "device-gate", "device-gate-api")

	gate := NewLoginGateService(verifier, approvalService, WithTokenGenerator(tg))
	return gate, approvalService, repo
}

func TestLoginGate_WrongCredentials(t *testing.T) {
	gate, _, _ := newTestGate(t)
	ctx := context.Background()

	_, err := gate.Login(ctx, LoginParams{
		Email:    "alice@example.com",
		Password: "wrong",
		DeviceID: "device-1",
		Domain:   "example.com",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnauthorized))

	_, err = gate.Login(ctx, LoginParams{
		Email:    "nobody@example.com",
		Password: "secret",
		DeviceID: "device-1",
		Domain:   "example.com",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnauthorized))
}

func TestLoginGate_MissingFields(t *testing.T) {
	gate, _, _ := newTestGate(t)
	ctx := context.Background()

	_, err := gate.Login(ctx, LoginParams{Email: "alice@example.com", Password: "secret"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMissingRequired))
}

func TestLoginGate_UnapprovedDeviceWaits(t *testing.T) {
	gate, _, repo := newTestGate(t)
	ctx := context.Background()

	result, err := gate.Login(ctx, LoginParams{
		Email:      "Alice@Example.com",
		Password:   "secret",
		DeviceID:   "device-1",
		Domain:     "example.com",
		DeviceName: "Alice's Laptop",
	})
	require.NoError(t, err)
	assert.Equal(t, LoginWaitingApproval, result.Status)
	assert.Equal(t, approval.RequestPending, result.DeviceStatus.Status)
	assert.Empty(t, result.AccessToken)

	// The login filed an approval request carrying the user's identity
	req, err := repo.GetLatestRequest(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", req.UserID)
	assert.Equal(t, "Alice", req.Name)
	assert.Equal(t, "alice@example.com", req.Email)
	assert.Equal(t, "Alice's Laptop", req.DeviceName)
}

func TestLoginGate_ApprovedDeviceLogsIn(t *testing.T) {
	gate, approvalService, repo := newTestGate(t)
	ctx := context.Background()

	// First login files the request
	_, err := gate.Login(ctx, LoginParams{
		Email:    "alice@example.com",
		Password: "secret",
		DeviceID: "device-1",
		Domain:   "example.com",
	})
	require.NoError(t, err)

	// Admin approves it
	req, err := repo.GetLatestRequest(ctx, "device-1")
	require.NoError(t, err)
	_, err = approvalService.Approve(ctx, req.ID)
	require.NoError(t, err)

	// Next login completes and carries an access token
	result, err := gate.Login(ctx, LoginParams{
		Email:    "alice@example.com",
		Password: "secret",
		DeviceID: "device-1",
		Domain:   "example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, LoginApproved, result.Status)
	assert.Equal(t, "u-1", result.Identity.UserID)
	assert.NotEmpty(t, result.AccessToken)
	assert.False(t, result.TokenExpiry.IsZero())
}

func TestLoginGate_ApprovedDevicePassesOtherUsers(t *testing.T) {
	gate, approvalService, repo := newTestGate(t)
	ctx := context.Background()

	verifier := NewStaticVerifier()
	verifier.AddUser(Identity{UserID: "u-1", Email: "alice@example.com"}, "secret")
	verifier.AddUser(Identity{UserID: "u-2", Email: "bob@example.com"}, "hunter2")
	gate = NewLoginGateService(verifier, approvalService)

	_, err := gate.Login(ctx, LoginParams{
		Email:    "alice@example.com",
		Password: "secret",
		DeviceID: "device-1",
		Domain:   "example.com",
	})
	require.NoError(t, err)

	req, err := repo.GetLatestRequest(ctx, "device-1")
	require.NoError(t, err)
	_, err = approvalService.Approve(ctx, req.ID)
	require.NoError(t, err)

	// Bob never requested, but the device is approved for the domain
	result, err := gate.Login(ctx, LoginParams{
		Email:    "bob@example.com",
		Password: "hunter2",
		DeviceID: "device-1",
		Domain:   "example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, LoginApproved, result.Status)
	assert.Equal(t, "u-2", result.Identity.UserID)
}

func TestLoginGate_BlockedDeviceStaysBlocked(t *testing.T) {
	gate, approvalService, repo := newTestGate(t)
	ctx := context.Background()

	_, err := gate.Login(ctx, LoginParams{
		Email:    "alice@example.com",
		Password: "secret",
		DeviceID: "device-1",
		Domain:   "example.com",
	})
	require.NoError(t, err)

	req, err := repo.GetLatestRequest(ctx, "device-1")
	require.NoError(t, err)
	_, err = approvalService.Block(ctx, req.ID)
	require.NoError(t, err)

	result, err := gate.Login(ctx, LoginParams{
		Email:    "alice@example.com",
		Password: "secret",
		DeviceID: "device-1",
		Domain:   "example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, LoginBlocked, result.Status)
	assert.Empty(t, result.AccessToken)

	// The login did not flip the blocked request back to pending
	req, err = repo.GetLatestRequest(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, approval.RequestBlocked, req.Status)
}
