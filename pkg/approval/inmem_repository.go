package approval

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemApprovalRepository implements ApprovalRepository using in-memory
// maps. Requests are keyed by device_id + ":" + user_id + ":" + domain,
// approved devices by device_id + ":" + domain. Useful for demos and tests;
// all data is lost on restart.
type InMemApprovalRepository struct {
	requests map[string]DeviceRequest
	approved map[string]ApprovedDevice
	mu       sync.Mutex
}

// NewInMemApprovalRepository creates a new in-memory approval repository
func NewInMemApprovalRepository() *InMemApprovalRepository {
	return &InMemApprovalRepository{
		requests: make(map[string]DeviceRequest),
		approved: make(map[string]ApprovedDevice),
	}
}

func requestKey(deviceID, userID, domain string) string {
	return deviceID + ":" + userID + ":" + domain
}

func approvedKey(deviceID, domain string) string {
	return deviceID + ":" + domain
}

// UpsertRequest inserts or overwrites the request for (device_id, user_id, domain)
func (r *InMemApprovalRepository) UpsertRequest(ctx context.Context, req DeviceRequest) (DeviceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := requestKey(req.DeviceID, req.UserID, req.Domain)
	if existing, exists := r.requests[key]; exists {
		// Keep the row identity stable across repeat requests
		req.ID = existing.ID
		slog.Debug("Overwriting existing device request", "deviceID", req.DeviceID, "userID", req.UserID, "domain", req.Domain)
	}

	r.requests[key] = req
	return req, nil
}

// GetRequestByID retrieves a request by its row id
func (r *InMemApprovalRepository) GetRequestByID(ctx context.Context, id uuid.UUID) (DeviceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, req := range r.requests {
		if req.ID == id {
			return req, nil
		}
	}
	return DeviceRequest{}, ErrRequestNotFound
}

// GetLatestRequest returns the most recent request for a device, whichever
// user or domain filed it
func (r *InMemApprovalRepository) GetLatestRequest(ctx context.Context, deviceID string) (DeviceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest DeviceRequest
	found := false
	for _, req := range r.requests {
		if req.DeviceID != deviceID {
			continue
		}
		if !found || req.CreatedAt.After(latest.CreatedAt) {
			latest = req
			found = true
		}
	}
	if !found {
		return DeviceRequest{}, ErrRequestNotFound
	}
	return latest, nil
}

// FindRequests returns requests filtered by domain and status, newest first
func (r *InMemApprovalRepository) FindRequests(ctx context.Context, domain string, status RequestStatus) ([]DeviceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reqs := make([]DeviceRequest, 0, len(r.requests))
	for _, req := range r.requests {
		if domain != "" && req.Domain != domain {
			continue
		}
		if status != "" && req.Status != status {
			continue
		}
		reqs = append(reqs, req)
	}

	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
	})
	return reqs, nil
}

// SetStatus updates a request's status, and on approval records the device
// in the approval cache under the same lock
func (r *InMemApprovalRepository) SetStatus(ctx context.Context, id uuid.UUID, status RequestStatus, updatedAt time.Time) (DeviceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, req := range r.requests {
		if req.ID != id {
			continue
		}
		req.Status = status
		req.UpdatedAt = updatedAt
		r.requests[key] = req

		if status == RequestApproved {
			cacheKey := approvedKey(req.DeviceID, req.Domain)
			if _, exists := r.approved[cacheKey]; !exists {
				r.approved[cacheKey] = ApprovedDevice{
					ID:         uuid.New(),
					DeviceID:   req.DeviceID,
					Domain:     req.Domain,
					UserID:     req.UserID,
					ApprovedAt: updatedAt,
				}
			}
		}
		return req, nil
	}
	return DeviceRequest{}, ErrRequestNotFound
}

// IsDeviceApproved consults the approval cache
func (r *InMemApprovalRepository) IsDeviceApproved(ctx context.Context, deviceID, domain string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.approved[approvedKey(deviceID, domain)]
	return exists, nil
}

// FindApprovedDevices returns the approval cache entries for a domain
func (r *InMemApprovalRepository) FindApprovedDevices(ctx context.Context, domain string) ([]ApprovedDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	devices := make([]ApprovedDevice, 0, len(r.approved))
	for _, dev := range r.approved {
		if domain != "" && dev.Domain != domain {
			continue
		}
		devices = append(devices, dev)
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].ApprovedAt.After(devices[j].ApprovedAt)
	})
	return devices, nil
}

// RevokeApprovedDevice removes the cache entry for (device_id, domain)
func (r *InMemApprovalRepository) RevokeApprovedDevice(ctx context.Context, deviceID, domain string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := approvedKey(deviceID, domain)
	if _, exists := r.approved[key]; !exists {
		return ErrApprovedDeviceNotFound
	}
	delete(r.approved, key)
	return nil
}

// MarkExpiredRequests expires pending requests past their expiry moment
func (r *InMemApprovalRepository) MarkExpiredRequests(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for key, req := range r.requests {
		if req.Status == RequestPending && req.IsExpired(now) {
			req.Status = RequestExpired
			req.UpdatedAt = now
			r.requests[key] = req
			count++
		}
	}
	return count, nil
}
