package approval

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tendant/device-gate/pkg/utils"
)

// PostgresApprovalRepository implements ApprovalRepository using PostgreSQL
type PostgresApprovalRepository struct {
	db DBTX
}

// DBTX is an interface that allows us to use either a database connection or
// a transaction. Begin is needed so the approve cascade can write the
// request and the approval cache atomically.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// NewPostgresApprovalRepository creates a new PostgreSQL approval repository
func NewPostgresApprovalRepository(db DBTX) *PostgresApprovalRepository {
	return &PostgresApprovalRepository{db: db}
}

const requestColumns = `id, device_id, user_id, name, email, domain, device_name, platform, ip_address, status, created_at, updated_at`

func scanRequest(row pgx.Row) (DeviceRequest, error) {
	var req DeviceRequest
	var name, email, deviceName, platform, ipAddress sql.NullString
	err := row.Scan(
		&req.ID,
		&req.DeviceID,
		&req.UserID,
		&name,
		&email,
		&req.Domain,
		&deviceName,
		&platform,
		&ipAddress,
		&req.Status,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return DeviceRequest{}, err
	}
	req.Name = utils.FromNullString(name)
	req.Email = utils.FromNullString(email)
	req.DeviceName = utils.FromNullString(deviceName)
	req.Platform = utils.FromNullString(platform)
	req.IPAddress = utils.FromNullString(ipAddress)
	return req, nil
}

// UpsertRequest inserts a request or overwrites the existing row for
// (device_id, user_id, domain), created_at included, which restarts the
// expiry window. The upsert is atomic at the storage layer so racing
// callers for the same key cannot create duplicates.
func (r *PostgresApprovalRepository) UpsertRequest(ctx context.Context, req DeviceRequest) (DeviceRequest, error) {
	query := `
		INSERT INTO device_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (device_id, user_id, domain) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			device_name = EXCLUDED.device_name,
			platform = EXCLUDED.platform,
			ip_address = EXCLUDED.ip_address,
			status = EXCLUDED.status,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + requestColumns

	row := r.db.QueryRow(ctx, query,
		req.ID,
		req.DeviceID,
		req.UserID,
		utils.ToNullString(req.Name),
		utils.ToNullString(req.Email),
		req.Domain,
		utils.ToNullString(req.DeviceName),
		utils.ToNullString(req.Platform),
		utils.ToNullString(req.IPAddress),
		req.Status,
		req.CreatedAt,
		req.UpdatedAt,
	)

	stored, err := scanRequest(row)
	if err != nil {
		slog.Error("Failed to upsert device request", "err", err, "deviceID", req.DeviceID, "userID", req.UserID, "domain", req.Domain)
		return DeviceRequest{}, fmt.Errorf("failed to upsert device request: %w", err)
	}

	slog.Debug("Device request upserted", "deviceID", stored.DeviceID, "userID", stored.UserID, "domain", stored.Domain)
	return stored, nil
}

// GetRequestByID retrieves a request by its row id
func (r *PostgresApprovalRepository) GetRequestByID(ctx context.Context, id uuid.UUID) (DeviceRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM device_requests
		WHERE id = $1
	`

	req, err := scanRequest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DeviceRequest{}, ErrRequestNotFound
		}
		slog.Error("Failed to get device request", "err", err, "id", id)
		return DeviceRequest{}, fmt.Errorf("failed to get device request: %w", err)
	}
	return req, nil
}

// GetLatestRequest returns the most recent request for a device, whichever
// user or domain filed it
func (r *PostgresApprovalRepository) GetLatestRequest(ctx context.Context, deviceID string) (DeviceRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM device_requests
		WHERE device_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	req, err := scanRequest(r.db.QueryRow(ctx, query, deviceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.Debug("No device request on record", "deviceID", deviceID)
			return DeviceRequest{}, ErrRequestNotFound
		}
		slog.Error("Failed to get latest device request", "err", err, "deviceID", deviceID)
		return DeviceRequest{}, fmt.Errorf("failed to get latest device request: %w", err)
	}
	return req, nil
}

// FindRequests returns requests for the admin view, newest first
func (r *PostgresApprovalRepository) FindRequests(ctx context.Context, domain string, status RequestStatus) ([]DeviceRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM device_requests
		WHERE ($1 = '' OR domain = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, domain, string(status))
	if err != nil {
		slog.Error("Failed to find device requests", "err", err)
		return nil, fmt.Errorf("failed to find device requests: %w", err)
	}
	defer rows.Close()

	var reqs []DeviceRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			slog.Error("Failed to scan device request", "err", err)
			return nil, fmt.Errorf("failed to scan device request: %w", err)
		}
		reqs = append(reqs, req)
	}

	if err := rows.Err(); err != nil {
		slog.Error("Error iterating over device requests", "err", err)
		return nil, fmt.Errorf("error iterating over device requests: %w", err)
	}

	slog.Debug("Found device requests", "count", len(reqs))
	return reqs, nil
}

// SetStatus updates a request's status. Approval also inserts the device
// into the approved_devices cache inside one transaction; an entry that
// already exists is left alone via ON CONFLICT DO NOTHING.
func (r *PostgresApprovalRepository) SetStatus(ctx context.Context, id uuid.UUID, status RequestStatus, updatedAt time.Time) (DeviceRequest, error) {
	updateQuery := `
		UPDATE device_requests
		SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + requestColumns

	if status != RequestApproved {
		req, err := scanRequest(r.db.QueryRow(ctx, updateQuery, id, status, updatedAt))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return DeviceRequest{}, ErrRequestNotFound
			}
			slog.Error("Failed to set device request status", "err", err, "id", id, "status", status)
			return DeviceRequest{}, fmt.Errorf("failed to set device request status: %w", err)
		}
		return req, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		slog.Error("Failed to begin transaction", "err", err)
		return DeviceRequest{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := scanRequest(tx.QueryRow(ctx, updateQuery, id, status, updatedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DeviceRequest{}, ErrRequestNotFound
		}
		slog.Error("Failed to set device request status", "err", err, "id", id, "status", status)
		return DeviceRequest{}, fmt.Errorf("failed to set device request status: %w", err)
	}

	cacheQuery := `
		INSERT INTO approved_devices (id, device_id, domain, user_id, approved_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (device_id, domain) DO NOTHING
	`
	if _, err := tx.Exec(ctx, cacheQuery, uuid.New(), req.DeviceID, req.Domain, req.UserID, updatedAt); err != nil {
		slog.Error("Failed to record approved device", "err", err, "deviceID", req.DeviceID, "domain", req.Domain)
		return DeviceRequest{}, fmt.Errorf("failed to record approved device: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		slog.Error("Failed to commit transaction", "err", err)
		return DeviceRequest{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return req, nil
}

// IsDeviceApproved consults the approval cache for (device_id, domain)
func (r *PostgresApprovalRepository) IsDeviceApproved(ctx context.Context, deviceID, domain string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM approved_devices WHERE device_id = $1 AND domain = $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, deviceID, domain).Scan(&exists); err != nil {
		slog.Error("Failed to check approved device cache", "err", err, "deviceID", deviceID, "domain", domain)
		return false, fmt.Errorf("failed to check approved device cache: %w", err)
	}
	return exists, nil
}

// FindApprovedDevices returns the approval cache entries for a domain
func (r *PostgresApprovalRepository) FindApprovedDevices(ctx context.Context, domain string) ([]ApprovedDevice, error) {
	query := `
		SELECT id, device_id, domain, user_id, approved_at
		FROM approved_devices
		WHERE ($1 = '' OR domain = $1)
		ORDER BY approved_at DESC
	`

	rows, err := r.db.Query(ctx, query, domain)
	if err != nil {
		slog.Error("Failed to find approved devices", "err", err)
		return nil, fmt.Errorf("failed to find approved devices: %w", err)
	}
	defer rows.Close()

	var devices []ApprovedDevice
	for rows.Next() {
		var dev ApprovedDevice
		var userID sql.NullString
		if err := rows.Scan(&dev.ID, &dev.DeviceID, &dev.Domain, &userID, &dev.ApprovedAt); err != nil {
			slog.Error("Failed to scan approved device", "err", err)
			return nil, fmt.Errorf("failed to scan approved device: %w", err)
		}
		dev.UserID = utils.FromNullString(userID)
		devices = append(devices, dev)
	}

	if err := rows.Err(); err != nil {
		slog.Error("Error iterating over approved devices", "err", err)
		return nil, fmt.Errorf("error iterating over approved devices: %w", err)
	}

	return devices, nil
}

// RevokeApprovedDevice removes the cache entry for (device_id, domain)
func (r *PostgresApprovalRepository) RevokeApprovedDevice(ctx context.Context, deviceID, domain string) error {
	query := `DELETE FROM approved_devices WHERE device_id = $1 AND domain = $2`

	result, err := r.db.Exec(ctx, query, deviceID, domain)
	if err != nil {
		slog.Error("Failed to revoke approved device", "err", err, "deviceID", deviceID, "domain", domain)
		return fmt.Errorf("failed to revoke approved device: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrApprovedDeviceNotFound
	}
	return nil
}

// MarkExpiredRequests expires pending requests past their expiry moment
func (r *PostgresApprovalRepository) MarkExpiredRequests(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE device_requests
		SET status = $2, updated_at = $1
		WHERE status = $3 AND created_at <= $4
	`

	cutoff := now.Add(-RequestExpiryDuration)
	result, err := r.db.Exec(ctx, query, now, RequestExpired, RequestPending, cutoff)
	if err != nil {
		slog.Error("Failed to mark expired device requests", "err", err)
		return 0, fmt.Errorf("failed to mark expired device requests: %w", err)
	}
	return result.RowsAffected(), nil
}
