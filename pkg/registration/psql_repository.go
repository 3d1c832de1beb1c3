package registration

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

// PostgresRegistrationRepository implements RegistrationRepository using PostgreSQL
type PostgresRegistrationRepository struct {
	db DBTX
}

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// NewPostgresRegistrationRepository creates a new PostgreSQL registration repository
func NewPostgresRegistrationRepository(db DBTX) *PostgresRegistrationRepository {
	return &PostgresRegistrationRepository{db: db}
}

const registrationColumns = `id, tenant_id, device_id, device_name, platform, os_version, ip_address,
	registration_token, token_expiry, token_used, status, created_at, updated_at`

func scanRegistration(row pgx.Row) (DeviceRegistration, error) {
	var reg DeviceRegistration
	var osVersion, ipAddress sql.NullString
	err := row.Scan(
		&reg.ID,
		&reg.TenantID,
		&reg.DeviceID,
		&reg.DeviceName,
		&reg.Platform,
		&osVersion,
		&ipAddress,
		&reg.RegistrationToken,
		&reg.TokenExpiry,
		&reg.TokenUsed,
		&reg.Status,
		&reg.CreatedAt,
		&reg.UpdatedAt,
	)
	if err != nil {
		return DeviceRegistration{}, err
	}
	reg.OSVersion = utils.FromNullString(osVersion)
	reg.IPAddress = utils.FromNullString(ipAddress)
	return reg, nil
}

// UpsertRegistration inserts a registration or overwrites the existing row
// for (tenant_id, device_id). The upsert is atomic at the storage layer so
// racing callers for the same key cannot create duplicates; one of them
// simply wins with the last write.
func (r *PostgresRegistrationRepository) UpsertRegistration(ctx context.Context, reg DeviceRegistration) (DeviceRegistration, error) {
	query := `
		INSERT INTO device_registration (` + registrationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (tenant_id, device_id) DO UPDATE SET
			device_name = EXCLUDED.device_name,
			platform = EXCLUDED.platform,
			os_version = EXCLUDED.os_version,
			ip_address = EXCLUDED.ip_address,
			registration_token = EXCLUDED.registration_token,
			token_expiry = EXCLUDED.token_expiry,
			token_used = EXCLUDED.token_used,
			status = EXCLUDED.status,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + registrationColumns

	row := r.db.QueryRow(ctx, query,
		reg.ID,
		reg.TenantID,
		reg.DeviceID,
		reg.DeviceName,
		reg.Platform,
		utils.ToNullString(reg.OSVersion),
		utils.ToNullString(reg.IPAddress),
		reg.RegistrationToken,
		reg.TokenExpiry,
		reg.TokenUsed,
		reg.Status,
		reg.CreatedAt,
		reg.UpdatedAt,
	)

	stored, err := scanRegistration(row)
	if err != nil {
		slog.Error("Failed to upsert device registration", "err", err, "tenantID", reg.TenantID, "deviceID", reg.DeviceID)
		return DeviceRegistration{}, fmt.Errorf("failed to upsert device registration: %w", err)
	}

	slog.Debug("Device registration upserted", "tenantID", stored.TenantID, "deviceID", stored.DeviceID)
	return stored, nil
}

// GetRegistration retrieves a registration by its natural key
func (r *PostgresRegistrationRepository) GetRegistration(ctx context.Context, tenantID, deviceID string) (DeviceRegistration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM device_registration
		WHERE tenant_id = $1 AND device_id = $2
	`

	reg, err := scanRegistration(r.db.QueryRow(ctx, query, tenantID, deviceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.Debug("Device registration not found", "tenantID", tenantID, "deviceID", deviceID)
			return DeviceRegistration{}, ErrRegistrationNotFound
		}
		slog.Error("Failed to get device registration", "err", err, "tenantID", tenantID, "deviceID", deviceID)
		return DeviceRegistration{}, fmt.Errorf("failed to get device registration: %w", err)
	}
	return reg, nil
}

// GetRegistrationByID retrieves a registration by its row id
func (r *PostgresRegistrationRepository) GetRegistrationByID(ctx context.Context, id uuid.UUID) (DeviceRegistration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM device_registration
		WHERE id = $1
	`

	reg, err := scanRegistration(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DeviceRegistration{}, ErrRegistrationNotFound
		}
		slog.Error("Failed to get device registration", "err", err, "id", id)
		return DeviceRegistration{}, fmt.Errorf("failed to get device registration: %w", err)
	}
	return reg, nil
}

// TokenExists reports whether a registration token is stored, cross-tenant
func (r *PostgresRegistrationRepository) TokenExists(ctx context.Context, token string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM device_registration WHERE registration_token = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, token).Scan(&exists); err != nil {
		slog.Error("Failed to check registration token existence", "err", err)
		return false, fmt.Errorf("failed to check registration token existence: %w", err)
	}
	return exists, nil
}

// FindByDeviceAndToken returns the registration matching device and token
func (r *PostgresRegistrationRepository) FindByDeviceAndToken(ctx context.Context, deviceID, token string) (DeviceRegistration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM device_registration
		WHERE device_id = $1 AND registration_token = $2
	`

	reg, err := scanRegistration(r.db.QueryRow(ctx, query, deviceID, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.Debug("No registration matches device and token", "deviceID", deviceID)
			return DeviceRegistration{}, ErrRegistrationNotFound
		}
		slog.Error("Failed to find registration by device and token", "err", err, "deviceID", deviceID)
		return DeviceRegistration{}, fmt.Errorf("failed to find registration by device and token: %w", err)
	}
	return reg, nil
}

// ConsumeToken marks the token used and the device approved. The WHERE
// clause keeps the consumption one-shot: a second caller matches no rows.
func (r *PostgresRegistrationRepository) ConsumeToken(ctx context.Context, id uuid.UUID, updatedAt time.Time) (DeviceRegistration, error) {
	query := `
		UPDATE device_registration
		SET token_used = true, status = $2, updated_at = $3
		WHERE id = $1 AND token_used = false AND status = $4
		RETURNING ` + registrationColumns

	reg, err := scanRegistration(r.db.QueryRow(ctx, query, id, StatusApproved, updatedAt, StatusPending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.Debug("Registration token already consumed or not pending", "id", id)
			return DeviceRegistration{}, ErrTokenConsumed
		}
		slog.Error("Failed to consume registration token", "err", err, "id", id)
		return DeviceRegistration{}, fmt.Errorf("failed to consume registration token: %w", err)
	}
	return reg, nil
}

// FindRegistrations returns registrations for the admin view, newest first
func (r *PostgresRegistrationRepository) FindRegistrations(ctx context.Context, tenantID string, status Status) ([]DeviceRegistration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM device_registration
		WHERE ($1 = '' OR tenant_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, tenantID, string(status))
	if err != nil {
		slog.Error("Failed to find device registrations", "err", err)
		return nil, fmt.Errorf("failed to find device registrations: %w", err)
	}
	defer rows.Close()

	var regs []DeviceRegistration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			slog.Error("Failed to scan device registration", "err", err)
			return nil, fmt.Errorf("failed to scan device registration: %w", err)
		}
		regs = append(regs, reg)
	}

	if err := rows.Err(); err != nil {
		slog.Error("Error iterating over device registrations", "err", err)
		return nil, fmt.Errorf("error iterating over device registrations: %w", err)
	}

	slog.Debug("Found device registrations", "count", len(regs))
	return regs, nil
}

// UpdateStatus sets the status of a registration by row id
func (r *PostgresRegistrationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, updatedAt time.Time) error {
	query := `
		UPDATE device_registration
		SET status = $2, updated_at = $3
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id, status, updatedAt)
	if err != nil {
		slog.Error("Failed to update registration status", "err", err, "id", id)
		return fmt.Errorf("failed to update registration status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRegistrationNotFound
	}
	return nil
}

// BlockExpiredTokens blocks pending registrations whose token expired unused
func (r *PostgresRegistrationRepository) BlockExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE device_registration
		SET status = $2, updated_at = $1
		WHERE token_expiry < $1 AND token_used = false AND status = $3
	`

	result, err := r.db.Exec(ctx, query, now, StatusBlocked, StatusPending)
	if err != nil {
		slog.Error("Failed to block registrations with expired tokens", "err", err)
		return 0, fmt.Errorf("failed to block registrations with expired tokens: %w", err)
	}
	return result.RowsAffected(), nil
}
