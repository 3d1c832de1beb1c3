package registration

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/device-gate/pkg/errors"
)

// RegistrationService handles the device registration token flow: a device
// announces itself and receives a short-lived token, and a second step
// consumes the token to approve the device.
type RegistrationService struct {
	repo RegistrationRepository
	now  func() time.Time
}

// Option configures a RegistrationService
type Option func(*RegistrationService)

// WithClock overrides the time source, used by tests to control expiry
func WithClock(now func() time.Time) Option {
	return func(s *RegistrationService) {
		s.now = now
	}
}

// NewRegistrationService creates a new registration service with the given repository
func NewRegistrationService(repo RegistrationRepository, opts ...Option) *RegistrationService {
	s := &RegistrationService{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterDeviceParams carries the fields a device submits when announcing itself
type RegisterDeviceParams struct {
	TenantID   string
	DeviceID   string
	DeviceName string
	Platform   string
	OSVersion  string
	IPAddress  string
}

func (p RegisterDeviceParams) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"tenant_id", p.TenantID},
		{"device_id", p.DeviceID},
		{"device_name", p.DeviceName},
		{"platform", p.Platform},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return errors.MissingRequired(f.name)
		}
	}
	return nil
}

// Register upserts a device registration keyed by (tenant_id, device_id).
// A new token with a fresh expiry is always issued: re-registering discards
// any prior unconsumed token and resets the device to pending. The token is
// returned for the caller to relay to the device owner out-of-band.
func (s *RegistrationService) Register(ctx context.Context, params RegisterDeviceParams) (DeviceRegistration, error) {
	if err := params.validate(); err != nil {
		return DeviceRegistration{}, err
	}

	token, err := GenerateRegistrationToken(ctx, s.repo)
	if err != nil {
		slog.Error("Failed to generate registration token", "tenantID", params.TenantID, "deviceID", params.DeviceID, "error", err)
		return DeviceRegistration{}, err
	}

	now := s.now()
	reg := DeviceRegistration{
		ID:                uuid.New(),
		TenantID:          strings.ToLower(strings.TrimSpace(params.TenantID)),
		DeviceID:          strings.TrimSpace(params.DeviceID),
		DeviceName:        strings.TrimSpace(params.DeviceName),
		Platform:          strings.TrimSpace(params.Platform),
		OSVersion:         strings.TrimSpace(params.OSVersion),
		IPAddress:         strings.TrimSpace(params.IPAddress),
		RegistrationToken: token,
		TokenExpiry:       now.Add(TokenExpiryDuration),
		TokenUsed:         false,
		Status:            StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	stored, err := s.repo.UpsertRegistration(ctx, reg)
	if err != nil {
		slog.Error("Failed to upsert device registration", "tenantID", reg.TenantID, "deviceID", reg.DeviceID, "error", err)
		return DeviceRegistration{}, errors.StorageWrap(err, "failed to store device registration")
	}

	slog.Info("Device registered", "tenantID", stored.TenantID, "deviceID", stored.DeviceID,
		"tokenExpiry", stored.TokenExpiry.Format(time.RFC3339))
	return stored, nil
}

// Verify consumes a registration token and approves the device. The match
// requires an unused token on a pending registration; expired tokens fail
// closed with no state change, and a second verification of the same token
// fails because the first one consumed it.
func (s *RegistrationService) Verify(ctx context.Context, deviceID, token string) (DeviceRegistration, error) {
	if strings.TrimSpace(deviceID) == "" {
		return DeviceRegistration{}, errors.MissingRequired("device_id")
	}
	if strings.TrimSpace(token) == "" {
		return DeviceRegistration{}, errors.MissingRequired("token")
	}

	normalized := NormalizeToken(token)

	reg, err := s.repo.FindByDeviceAndToken(ctx, deviceID, normalized)
	if err != nil {
		if stderrors.Is(err, ErrRegistrationNotFound) {
			slog.Info("Registration token not found", "deviceID", deviceID)
			return DeviceRegistration{}, errors.New(errors.ErrCodeTokenInvalid, "invalid or expired token")
		}
		slog.Error("Failed to look up registration token", "deviceID", deviceID, "error", err)
		return DeviceRegistration{}, errors.StorageWrap(err, "failed to look up registration token")
	}

	if reg.TokenUsed || reg.Status != StatusPending {
		// Logged distinctly from expiry; callers see the same failure
		slog.Info("Registration token already consumed", "deviceID", deviceID, "status", reg.Status)
		return DeviceRegistration{}, errors.New(errors.ErrCodeTokenAlreadyUsed, "invalid or expired token")
	}

	if s.now().After(reg.TokenExpiry) {
		slog.Info("Registration token expired", "deviceID", deviceID,
			"tokenExpiry", reg.TokenExpiry.Format(time.RFC3339))
		return DeviceRegistration{}, errors.New(errors.ErrCodeTokenExpired, "invalid or expired token")
	}

	consumed, err := s.repo.ConsumeToken(ctx, reg.ID, s.now())
	if err != nil {
		if stderrors.Is(err, ErrTokenConsumed) {
			// Lost the race to a concurrent verification
			slog.Info("Registration token consumed concurrently", "deviceID", deviceID)
			return DeviceRegistration{}, errors.New(errors.ErrCodeTokenAlreadyUsed, "invalid or expired token")
		}
		slog.Error("Failed to consume registration token", "deviceID", deviceID, "error", err)
		return DeviceRegistration{}, errors.StorageWrap(err, "failed to consume registration token")
	}

	slog.Info("Device approved via registration token", "tenantID", consumed.TenantID, "deviceID", consumed.DeviceID)
	return consumed, nil
}

// ListRegistrations returns registrations for the admin view, optionally
// filtered by tenant and status. Empty filters match everything.
func (s *RegistrationService) ListRegistrations(ctx context.Context, tenantID string, status Status) ([]DeviceRegistration, error) {
	if status != "" && !status.IsValid() {
		return nil, errors.Newf(errors.ErrCodeInvalidStatus, "unknown registration status: %s", status)
	}
	regs, err := s.repo.FindRegistrations(ctx, tenantID, status)
	if err != nil {
		return nil, errors.StorageWrap(err, "failed to list device registrations")
	}
	return regs, nil
}

// UpdateStatus sets the status of a registration from the admin view
func (s *RegistrationService) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	if !status.IsValid() {
		return errors.Newf(errors.ErrCodeInvalidStatus, "unknown registration status: %s", status)
	}
	if _, err := s.repo.GetRegistrationByID(ctx, id); err != nil {
		if stderrors.Is(err, ErrRegistrationNotFound) {
			return errors.NotFound("device registration", id.String())
		}
		return errors.StorageWrap(err, "failed to get device registration")
	}
	if err := s.repo.UpdateStatus(ctx, id, status, s.now()); err != nil {
		return errors.StorageWrap(err, "failed to update registration status")
	}
	slog.Info("Registration status updated", "id", id, "status", status)
	return nil
}

// SweepExpiredTokens blocks pending registrations whose token expired
// without being consumed. Designed for periodic external invocation.
func (s *RegistrationService) SweepExpiredTokens(ctx context.Context) (int64, error) {
	count, err := s.repo.BlockExpiredTokens(ctx, s.now())
	if err != nil {
		slog.Error("Failed to sweep expired registration tokens", "error", err)
		return 0, errors.StorageWrap(err, "failed to sweep expired registration tokens")
	}
	if count > 0 {
		slog.Info("Blocked registrations with expired tokens", "count", count)
	}
	return count, nil
}
