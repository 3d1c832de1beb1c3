package approval

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors returned by repositories so the service layer can tell a
// missing row from a storage failure.
var (
	ErrRequestNotFound        = errors.New("device request not found")
	ErrApprovedDeviceNotFound = errors.New("approved device not found")
)

// RequestStatus represents the lifecycle state of a device request
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestBlocked  RequestStatus = "blocked"
	RequestExpired  RequestStatus = "expired"
)

// IsValid reports whether s is one of the known request statuses
func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestBlocked, RequestExpired:
		return true
	}
	return false
}

// RequestExpiryDuration is how long a pending request stays actionable
const RequestExpiryDuration = 48 * time.Hour

// DeviceRequest is one user asking for one device to be allowed on one
// domain. Natural key is (device_id, user_id, domain); repeating the request
// overwrites the row and restarts the expiry window.
type DeviceRequest struct {
	ID         uuid.UUID     `json:"id"`
	DeviceID   string        `json:"device_id"`
	UserID     string        `json:"user_id"`
	Name       string        `json:"name,omitempty"`
	Email      string        `json:"email,omitempty"`
	Domain     string        `json:"domain"`
	DeviceName string        `json:"device_name,omitempty"`
	Platform   string        `json:"platform,omitempty"`
	IPAddress  string        `json:"ip_address,omitempty"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// ExpiresAt returns the moment the request stops being actionable
func (r DeviceRequest) ExpiresAt() time.Time {
	return r.CreatedAt.Add(RequestExpiryDuration)
}

// IsExpired reports whether the request has reached its expiry moment.
// A request exactly at the boundary counts as expired.
func (r DeviceRequest) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt())
}

// ApprovedDevice is the approval cache entry for a device on a domain.
// It is keyed by (device_id, domain) only: once any user's request for the
// device is approved, the device is approved for the whole domain.
type ApprovedDevice struct {
	ID       uuid.UUID `json:"id"`
	DeviceID string    `json:"device_id"`
	Domain   string    `json:"domain"`
	// UserID records whose approved request created the entry; lookups
	// ignore it
	UserID     string    `json:"user_id,omitempty"`
	ApprovedAt time.Time `json:"approved_at"`
}

// ApprovalRepository defines the storage operations for device requests and
// the approved-device cache. Implementations must enforce uniqueness on
// (device_id, user_id, domain) for requests and on (device_id, domain) for
// approved devices at write time.
type ApprovalRepository interface {
	// UpsertRequest inserts a request or, when a row already exists for
	// (device_id, user_id, domain), overwrites its state including
	// created_at, which restarts the expiry window
	UpsertRequest(ctx context.Context, req DeviceRequest) (DeviceRequest, error)
	GetRequestByID(ctx context.Context, id uuid.UUID) (DeviceRequest, error)
	// GetLatestRequest returns the most recent request for a device
	// regardless of user or domain. Status checks deliberately look across
	// domains even though the cache and the upsert key are domain-scoped.
	// Returns ErrRequestNotFound when the device has no request at all.
	GetLatestRequest(ctx context.Context, deviceID string) (DeviceRequest, error)
	FindRequests(ctx context.Context, domain string, status RequestStatus) ([]DeviceRequest, error)

	// SetStatus updates the status of a request. When the new status is
	// approved, the device is also recorded in the approved-device cache in
	// the same storage transaction; a cache entry that already exists is
	// left untouched.
	SetStatus(ctx context.Context, id uuid.UUID, status RequestStatus, updatedAt time.Time) (DeviceRequest, error)

	// IsDeviceApproved consults the approval cache for (device_id, domain)
	IsDeviceApproved(ctx context.Context, deviceID, domain string) (bool, error)
	FindApprovedDevices(ctx context.Context, domain string) ([]ApprovedDevice, error)
	// RevokeApprovedDevice removes the cache entry for (device_id, domain)
	RevokeApprovedDevice(ctx context.Context, deviceID, domain string) error

	// MarkExpiredRequests transitions pending requests whose expiry moment
	// has passed to expired, returning the number of rows affected
	MarkExpiredRequests(ctx context.Context, now time.Time) (int64, error)
}
