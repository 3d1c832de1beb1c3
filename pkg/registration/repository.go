package registration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors returned by repositories so the service layer can tell a
// missing row from a storage failure.
var (
	ErrRegistrationNotFound = errors.New("device registration not found")
	ErrTokenConsumed        = errors.New("registration token already consumed")
)

// Status represents the lifecycle state of a device registration
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusBlocked  Status = "blocked"
)

// IsValid reports whether s is one of the known registration statuses
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusBlocked:
		return true
	}
	return false
}

const (
	// TokenPrefix is prepended to every registration token
	TokenPrefix = "REG-"
	// TokenLength is the number of random characters after the prefix
	TokenLength = 8
	// TokenExpiryDuration is how long an issued token stays valid
	TokenExpiryDuration = 30 * time.Minute
)

// DeviceRegistration is a device announcing itself to a tenant, waiting for
// its registration token to be consumed. Natural key is (tenant_id,
// device_id); the registration token is unique across all tenants.
// Invariant: TokenUsed implies Status == StatusApproved.
type DeviceRegistration struct {
	ID                uuid.UUID `json:"id"`
	TenantID          string    `json:"tenant_id"`
	DeviceID          string    `json:"device_id"`
	DeviceName        string    `json:"device_name"`
	Platform          string    `json:"platform"`
	OSVersion         string    `json:"os_version,omitempty"`
	IPAddress         string    `json:"ip_address,omitempty"`
	RegistrationToken string    `json:"registration_token"`
	TokenExpiry       time.Time `json:"token_expiry"`
	TokenUsed         bool      `json:"token_used"`
	Status            Status    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// RegistrationRepository defines the storage operations for device
// registrations. Implementations must enforce uniqueness on
// (tenant_id, device_id) and on registration_token at write time; the
// service layer does not serialize concurrent callers.
type RegistrationRepository interface {
	// UpsertRegistration inserts a registration or, when a row already
	// exists for (tenant_id, device_id), overwrites it wholesale
	UpsertRegistration(ctx context.Context, reg DeviceRegistration) (DeviceRegistration, error)
	GetRegistration(ctx context.Context, tenantID, deviceID string) (DeviceRegistration, error)
	GetRegistrationByID(ctx context.Context, id uuid.UUID) (DeviceRegistration, error)

	// TokenExists reports whether a registration token is currently stored,
	// across all tenants
	TokenExists(ctx context.Context, token string) (bool, error)
	// FindByDeviceAndToken returns the registration matching the device and
	// token regardless of its consumption state
	FindByDeviceAndToken(ctx context.Context, deviceID, token string) (DeviceRegistration, error)
	// ConsumeToken marks the token used and the device approved, but only
	// while the row is still pending with an unused token. The conditional
	// write is what makes verification one-shot under concurrency.
	ConsumeToken(ctx context.Context, id uuid.UUID, updatedAt time.Time) (DeviceRegistration, error)

	// Admin operations
	FindRegistrations(ctx context.Context, tenantID string, status Status) ([]DeviceRegistration, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, updatedAt time.Time) error

	// BlockExpiredTokens transitions pending registrations whose token
	// expired unused to blocked, returning the number of rows affected
	BlockExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}
