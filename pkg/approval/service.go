package approval

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/device-gate/pkg/errors"
	"github.com/tendant/device-gate/pkg/notification"
)

// ApprovalService handles the device approval flow: a user on an unapproved
// device files a request, an admin approves or blocks it, and the device
// polls for the outcome. Approval is cached per (device_id, domain) so any
// user on an approved device passes.
type ApprovalService struct {
	repo                ApprovalRepository
	notificationManager *notification.NotificationManager
	adminEmail          string
	now                 func() time.Time
}

// Option configures an ApprovalService
type Option func(*ApprovalService)

// WithClock overrides the time source, used by tests to control expiry
func WithClock(now func() time.Time) Option {
	return func(s *ApprovalService) {
		s.now = now
	}
}

// WithNotificationManager enables notices on request and decision events.
// Without it the service stays silent.
func WithNotificationManager(nm *notification.NotificationManager) Option {
	return func(s *ApprovalService) {
		s.notificationManager = nm
	}
}

// WithAdminEmail sets the recipient for new-request notices
func WithAdminEmail(email string) Option {
	return func(s *ApprovalService) {
		s.adminEmail = email
	}
}

// NewApprovalService creates a new approval service with the given repository
func NewApprovalService(repo ApprovalRepository, opts ...Option) *ApprovalService {
	s := &ApprovalService{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestAccessParams carries the fields a device submits when asking for approval
type RequestAccessParams struct {
	DeviceID   string
	UserID     string
	Name       string
	Email      string
	Domain     string
	DeviceName string
	Platform   string
	IPAddress  string
}

func (p RequestAccessParams) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"device_id", p.DeviceID},
		{"user_id", p.UserID},
		{"domain", p.Domain},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return errors.MissingRequired(f.name)
		}
	}
	return nil
}

// StatusResult is the outcome of a status check or an access request.
// ExpiresAt is zero unless an actual request row backs the status.
type StatusResult struct {
	Status    RequestStatus `json:"status"`
	ExpiresAt time.Time     `json:"expires_at,omitempty"`
}

// RequestAccess files an approval request for a device on behalf of a user.
// If the device is already in the approval cache no request is created and
// the result is approved. Otherwise the request row for
// (device_id, user_id, domain) is created or reset to pending with a fresh
// expiry window, and the admin is notified.
func (s *ApprovalService) RequestAccess(ctx context.Context, params RequestAccessParams) (StatusResult, error) {
	if err := params.validate(); err != nil {
		return StatusResult{}, err
	}

	deviceID := strings.TrimSpace(params.DeviceID)
	domain := strings.ToLower(strings.TrimSpace(params.Domain))

	approved, err := s.repo.IsDeviceApproved(ctx, deviceID, domain)
	if err != nil {
		slog.Error("Failed to check approved device cache", "deviceID", deviceID, "domain", domain, "error", err)
		return StatusResult{}, errors.StorageWrap(err, "failed to check approved device cache")
	}
	if approved {
		slog.Info("Device already approved, skipping request", "deviceID", deviceID, "domain", domain)
		return StatusResult{Status: RequestApproved}, nil
	}

	now := s.now()
	req := DeviceRequest{
		ID:         uuid.New(),
		DeviceID:   deviceID,
		UserID:     strings.TrimSpace(params.UserID),
		Name:       strings.TrimSpace(params.Name),
		Email:      strings.ToLower(strings.TrimSpace(params.Email)),
		Domain:     domain,
		DeviceName: strings.TrimSpace(params.DeviceName),
		Platform:   strings.TrimSpace(params.Platform),
		IPAddress:  strings.TrimSpace(params.IPAddress),
		Status:     RequestPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	stored, err := s.repo.UpsertRequest(ctx, req)
	if err != nil {
		slog.Error("Failed to upsert device request", "deviceID", deviceID, "userID", req.UserID, "domain", domain, "error", err)
		return StatusResult{}, errors.StorageWrap(err, "failed to store device request")
	}

	slog.Info("Device approval requested", "deviceID", stored.DeviceID, "userID", stored.UserID, "domain", stored.Domain)
	s.notifyAdmin(stored)

	return StatusResult{Status: stored.Status, ExpiresAt: stored.ExpiresAt()}, nil
}

// CheckStatus reports where a device stands on a domain.
//
// The approval cache is consulted first, so an approved device answers
// approved even after its request rows are gone. The cache check is
// domain-scoped but the request lookup is not: the latest request for the
// device counts whichever domain filed it. A device with no request on
// record reports pending rather than an error, which keeps first-contact
// polling simple for clients. A pending request past its expiry moment is
// transitioned to expired on the spot.
func (s *ApprovalService) CheckStatus(ctx context.Context, deviceID, domain string) (StatusResult, error) {
	if strings.TrimSpace(deviceID) == "" {
		return StatusResult{}, errors.MissingRequired("device_id")
	}
	if strings.TrimSpace(domain) == "" {
		return StatusResult{}, errors.MissingRequired("domain")
	}

	deviceID = strings.TrimSpace(deviceID)
	domain = strings.ToLower(strings.TrimSpace(domain))

	approved, err := s.repo.IsDeviceApproved(ctx, deviceID, domain)
	if err != nil {
		return StatusResult{}, errors.StorageWrap(err, "failed to check approved device cache")
	}
	if approved {
		return StatusResult{Status: RequestApproved}, nil
	}

	req, err := s.repo.GetLatestRequest(ctx, deviceID)
	if err != nil {
		if stderrors.Is(err, ErrRequestNotFound) {
			// No request on record reads as pending
			slog.Debug("No device request on record", "deviceID", deviceID)
			return StatusResult{Status: RequestPending}, nil
		}
		slog.Error("Failed to get latest device request", "deviceID", deviceID, "error", err)
		return StatusResult{}, errors.StorageWrap(err, "failed to get latest device request")
	}

	if req.Status == RequestPending && req.IsExpired(s.now()) {
		expired, err := s.repo.SetStatus(ctx, req.ID, RequestExpired, s.now())
		if err != nil {
			slog.Error("Failed to expire device request", "id", req.ID, "error", err)
			return StatusResult{}, errors.StorageWrap(err, "failed to expire device request")
		}
		slog.Info("Device request expired on status check", "deviceID", deviceID, "domain", domain)
		return StatusResult{Status: expired.Status, ExpiresAt: expired.ExpiresAt()}, nil
	}

	return StatusResult{Status: req.Status, ExpiresAt: req.ExpiresAt()}, nil
}

// IsApproved reports whether the approval cache holds the device for the
// domain. It ignores any request rows.
func (s *ApprovalService) IsApproved(ctx context.Context, deviceID, domain string) (bool, error) {
	deviceID = strings.TrimSpace(deviceID)
	domain = strings.ToLower(strings.TrimSpace(domain))
	approved, err := s.repo.IsDeviceApproved(ctx, deviceID, domain)
	if err != nil {
		return false, errors.StorageWrap(err, "failed to check approved device cache")
	}
	return approved, nil
}

// Approve grants a request and records the device in the approval cache.
// Approving an already approved request is a no-op that succeeds.
func (s *ApprovalService) Approve(ctx context.Context, id uuid.UUID) (DeviceRequest, error) {
	return s.decide(ctx, id, RequestApproved)
}

// Block denies a request. The approval cache is not touched: blocking one
// user's request does not revoke a device another user got approved.
func (s *ApprovalService) Block(ctx context.Context, id uuid.UUID) (DeviceRequest, error) {
	return s.decide(ctx, id, RequestBlocked)
}

func (s *ApprovalService) decide(ctx context.Context, id uuid.UUID, status RequestStatus) (DeviceRequest, error) {
	req, err := s.repo.GetRequestByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, ErrRequestNotFound) {
			return DeviceRequest{}, errors.NotFound("device request", id.String())
		}
		slog.Error("Failed to get device request", "id", id, "error", err)
		return DeviceRequest{}, errors.StorageWrap(err, "failed to get device request")
	}

	if req.Status == status {
		slog.Info("Device request already in requested status", "id", id, "status", status)
		return req, nil
	}

	updated, err := s.repo.SetStatus(ctx, id, status, s.now())
	if err != nil {
		slog.Error("Failed to set device request status", "id", id, "status", status, "error", err)
		return DeviceRequest{}, errors.StorageWrap(err, "failed to set device request status")
	}

	slog.Info("Device request decided", "id", id, "deviceID", updated.DeviceID, "domain", updated.Domain, "status", status)
	s.notifyRequester(updated)

	return updated, nil
}

// GetRequest returns a request by id
func (s *ApprovalService) GetRequest(ctx context.Context, id uuid.UUID) (DeviceRequest, error) {
	req, err := s.repo.GetRequestByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, ErrRequestNotFound) {
			return DeviceRequest{}, errors.NotFound("device request", id.String())
		}
		return DeviceRequest{}, errors.StorageWrap(err, "failed to get device request")
	}
	return req, nil
}

// ListRequests returns requests for the admin view, optionally filtered by
// domain and status. Empty filters match everything.
func (s *ApprovalService) ListRequests(ctx context.Context, domain string, status RequestStatus) ([]DeviceRequest, error) {
	if status != "" && !status.IsValid() {
		return nil, errors.Newf(errors.ErrCodeInvalidStatus, "unknown request status: %s", status)
	}
	reqs, err := s.repo.FindRequests(ctx, strings.ToLower(domain), status)
	if err != nil {
		return nil, errors.StorageWrap(err, "failed to list device requests")
	}
	return reqs, nil
}

// ListApprovedDevices returns the approval cache for a domain
func (s *ApprovalService) ListApprovedDevices(ctx context.Context, domain string) ([]ApprovedDevice, error) {
	devices, err := s.repo.FindApprovedDevices(ctx, strings.ToLower(domain))
	if err != nil {
		return nil, errors.StorageWrap(err, "failed to list approved devices")
	}
	return devices, nil
}

// RevokeDevice removes a device from the approval cache for a domain.
// Existing request rows are untouched; the device has to re-request access.
func (s *ApprovalService) RevokeDevice(ctx context.Context, deviceID, domain string) error {
	if strings.TrimSpace(deviceID) == "" {
		return errors.MissingRequired("device_id")
	}
	if strings.TrimSpace(domain) == "" {
		return errors.MissingRequired("domain")
	}

	if err := s.repo.RevokeApprovedDevice(ctx, strings.TrimSpace(deviceID), strings.ToLower(strings.TrimSpace(domain))); err != nil {
		if stderrors.Is(err, ErrApprovedDeviceNotFound) {
			return errors.NotFound("approved device", deviceID)
		}
		slog.Error("Failed to revoke approved device", "deviceID", deviceID, "domain", domain, "error", err)
		return errors.StorageWrap(err, "failed to revoke approved device")
	}
	slog.Info("Approved device revoked", "deviceID", deviceID, "domain", domain)
	return nil
}

// SweepExpired transitions pending requests past their expiry moment to
// expired. Designed for periodic external invocation.
func (s *ApprovalService) SweepExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.MarkExpiredRequests(ctx, s.now())
	if err != nil {
		slog.Error("Failed to sweep expired device requests", "error", err)
		return 0, errors.StorageWrap(err, "failed to sweep expired device requests")
	}
	if count > 0 {
		slog.Info("Expired device requests", "count", count)
	}
	return count, nil
}

// notifyAdmin sends a new-request notice. Notification failures are logged,
// never surfaced: the request itself already succeeded.
func (s *ApprovalService) notifyAdmin(req DeviceRequest) {
	if s.notificationManager == nil || s.adminEmail == "" {
		return
	}
	err := s.notificationManager.Send(notification.DeviceRequestCreatedNotice, notification.NotificationData{
		To: s.adminEmail,
		Data: map[string]string{
			"DeviceID":   req.DeviceID,
			"DeviceName": req.DeviceName,
			"UserID":     req.UserID,
			"Name":       req.Name,
			"Email":      req.Email,
			"Domain":     req.Domain,
			"IPAddress":  req.IPAddress,
		},
	})
	if err != nil {
		slog.Warn("Failed to send device request notice", "deviceID", req.DeviceID, "error", err)
	}
}

func (s *ApprovalService) notifyRequester(req DeviceRequest) {
	if s.notificationManager == nil || req.Email == "" {
		return
	}

	noticeType := notification.DeviceApprovedNotice
	if req.Status == RequestBlocked {
		noticeType = notification.DeviceBlockedNotice
	}

	err := s.notificationManager.Send(noticeType, notification.NotificationData{
		To: req.Email,
		Data: map[string]string{
			"DeviceID":   req.DeviceID,
			"DeviceName": req.DeviceName,
			"Name":       req.Name,
			"Domain":     req.Domain,
		},
	})
	if err != nil {
		slog.Warn("Failed to send device decision notice", "deviceID", req.DeviceID, "status", req.Status, "error", err)
	}
}
