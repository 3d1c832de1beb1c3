package registration

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemRegistrationRepository implements RegistrationRepository using an
// in-memory map, keyed by tenant_id + ":" + device_id. Useful for demos
// and tests; all data is lost on restart.
type InMemRegistrationRepository struct {
	registrations map[string]DeviceRegistration
	mu            sync.Mutex
}

// NewInMemRegistrationRepository creates a new in-memory registration repository
func NewInMemRegistrationRepository() *InMemRegistrationRepository {
	return &InMemRegistrationRepository{
		registrations: make(map[string]DeviceRegistration),
	}
}

func registrationKey(tenantID, deviceID string) string {
	return tenantID + ":" + deviceID
}

// UpsertRegistration inserts or overwrites the registration for (tenant_id, device_id)
func (r *InMemRegistrationRepository) UpsertRegistration(ctx context.Context, reg DeviceRegistration) (DeviceRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := registrationKey(reg.TenantID, reg.DeviceID)
	if existing, exists := r.registrations[key]; exists {
		// Keep the row identity stable across re-registrations
		reg.ID = existing.ID
		slog.Debug("Overwriting existing device registration", "tenantID", reg.TenantID, "deviceID", reg.DeviceID)
	}

	r.registrations[key] = reg
	return reg, nil
}

// GetRegistration retrieves a registration by its natural key
func (r *InMemRegistrationRepository) GetRegistration(ctx context.Context, tenantID, deviceID string) (DeviceRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, exists := r.registrations[registrationKey(tenantID, deviceID)]
	if !exists {
		return DeviceRegistration{}, ErrRegistrationNotFound
	}
	return reg, nil
}

// GetRegistrationByID retrieves a registration by its row id
func (r *InMemRegistrationRepository) GetRegistrationByID(ctx context.Context, id uuid.UUID) (DeviceRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reg := range r.registrations {
		if reg.ID == id {
			return reg, nil
		}
	}
	return DeviceRegistration{}, ErrRegistrationNotFound
}

// TokenExists reports whether any stored registration holds the token
func (r *InMemRegistrationRepository) TokenExists(ctx context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reg := range r.registrations {
		if reg.RegistrationToken == token {
			return true, nil
		}
	}
	return false, nil
}

// FindByDeviceAndToken returns the registration matching device and token
func (r *InMemRegistrationRepository) FindByDeviceAndToken(ctx context.Context, deviceID, token string) (DeviceRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reg := range r.registrations {
		if reg.DeviceID == deviceID && reg.RegistrationToken == token {
			return reg, nil
		}
	}
	return DeviceRegistration{}, ErrRegistrationNotFound
}

// ConsumeToken marks the token used and approves the device, one-shot
func (r *InMemRegistrationRepository) ConsumeToken(ctx context.Context, id uuid.UUID, updatedAt time.Time) (DeviceRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, reg := range r.registrations {
		if reg.ID == id {
			if reg.TokenUsed || reg.Status != StatusPending {
				return DeviceRegistration{}, ErrTokenConsumed
			}
			reg.TokenUsed = true
			reg.Status = StatusApproved
			reg.UpdatedAt = updatedAt
			r.registrations[key] = reg
			return reg, nil
		}
	}
	return DeviceRegistration{}, ErrRegistrationNotFound
}

// FindRegistrations returns registrations filtered by tenant and status,
// newest first
func (r *InMemRegistrationRepository) FindRegistrations(ctx context.Context, tenantID string, status Status) ([]DeviceRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	regs := make([]DeviceRegistration, 0, len(r.registrations))
	for _, reg := range r.registrations {
		if tenantID != "" && reg.TenantID != tenantID {
			continue
		}
		if status != "" && reg.Status != status {
			continue
		}
		regs = append(regs, reg)
	}

	sort.Slice(regs, func(i, j int) bool {
		return regs[i].CreatedAt.After(regs[j].CreatedAt)
	})
	return regs, nil
}

// UpdateStatus sets the status of a registration by row id
func (r *InMemRegistrationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, reg := range r.registrations {
		if reg.ID == id {
			reg.Status = status
			reg.UpdatedAt = updatedAt
			r.registrations[key] = reg
			return nil
		}
	}
	return ErrRegistrationNotFound
}

// BlockExpiredTokens blocks pending registrations whose token expired unused
func (r *InMemRegistrationRepository) BlockExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for key, reg := range r.registrations {
		if reg.Status == StatusPending && !reg.TokenUsed && reg.TokenExpiry.Before(now) {
			reg.Status = StatusBlocked
			reg.UpdatedAt = now
			r.registrations[key] = reg
			count++
		}
	}
	return count, nil
}
