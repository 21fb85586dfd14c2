package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	licensedomain "github.com/glowpress/keyline/internal/license/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() licensedomain.Repository {
	return &repo{}
}

const licenseColumns = `id, license_key, plan, status, hardware_id, max_activations, current_activations,
	 email, activated_at, last_validated_at, expires_at, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, license *licensedomain.License) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO licenses (`+licenseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		license.ID,
		license.LicenseKey,
		license.Plan,
		license.Status,
		license.HardwareID,
		license.MaxActivations,
		license.CurrentActivations,
		license.Email,
		license.ActivatedAt,
		license.LastValidatedAt,
		license.ExpiresAt,
		license.CreatedAt,
		license.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, license *licensedomain.License) error {
	return db.WithContext(ctx).Exec(
		`UPDATE licenses
		 SET plan = ?, status = ?, hardware_id = ?, max_activations = ?, current_activations = ?,
		     activated_at = ?, last_validated_at = ?, expires_at = ?, updated_at = ?
		 WHERE id = ?`,
		license.Plan,
		license.Status,
		license.HardwareID,
		license.MaxActivations,
		license.CurrentActivations,
		license.ActivatedAt,
		license.LastValidatedAt,
		license.ExpiresAt,
		license.UpdatedAt,
		license.ID,
	).Error
}

func (r *repo) FindByKey(ctx context.Context, db *gorm.DB, licenseKey string) (*licensedomain.License, error) {
	return r.findByKey(ctx, db, licenseKey, false)
}

// FindByKeyForUpdate takes a row lock so the read-check-write sequence around
// the activation counter is atomic per license. SQLite has no FOR UPDATE;
// its single-writer model serializes the transaction instead.
func (r *repo) FindByKeyForUpdate(ctx context.Context, db *gorm.DB, licenseKey string) (*licensedomain.License, error) {
	return r.findByKey(ctx, db, licenseKey, true)
}

func (r *repo) findByKey(ctx context.Context, db *gorm.DB, licenseKey string, lock bool) (*licensedomain.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE license_key = ?`
	if lock && db.Dialector.Name() == "postgres" {
		query += " FOR UPDATE"
	}

	var license licensedomain.License
	err := db.WithContext(ctx).Raw(query, licenseKey).Scan(&license).Error
	if err != nil {
		return nil, err
	}
	if license.ID == 0 {
		return nil, nil
	}
	return &license, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter licensedomain.ListFilter) ([]licensedomain.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE 1=1`
	args := []any{}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Plan != "" {
		query += ` AND plan = ?`
		args = append(args, filter.Plan)
	}
	if filter.AfterID != 0 {
		query += ` AND id < ?`
		args = append(args, filter.AfterID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, filter.PageSize)

	var licenses []licensedomain.License
	err := db.WithContext(ctx).Raw(query, args...).Scan(&licenses).Error
	if err != nil {
		return nil, err
	}
	return licenses, nil
}

func (r *repo) FindActiveActivation(ctx context.Context, db *gorm.DB, licenseID snowflake.ID, hardwareID string) (*licensedomain.Activation, error) {
	var activation licensedomain.Activation
	err := db.WithContext(ctx).Raw(
		`SELECT id, license_id, hardware_id, device_info, status, created_at, deactivated_at
		 FROM activations
		 WHERE license_id = ? AND hardware_id = ? AND deactivated_at IS NULL
		 LIMIT 1`,
		licenseID,
		hardwareID,
	).Scan(&activation).Error
	if err != nil {
		return nil, err
	}
	if activation.ID == 0 {
		return nil, nil
	}
	return &activation, nil
}

func (r *repo) InsertActivation(ctx context.Context, db *gorm.DB, activation *licensedomain.Activation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO activations (id, license_id, hardware_id, device_info, status, created_at, deactivated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		activation.ID,
		activation.LicenseID,
		activation.HardwareID,
		activation.DeviceInfo,
		activation.Status,
		activation.CreatedAt,
		activation.DeactivatedAt,
	).Error
}

func (r *repo) DeactivateActivations(ctx context.Context, db *gorm.DB, licenseID snowflake.ID, hardwareID string, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE activations
		 SET deactivated_at = ?, status = ?
		 WHERE license_id = ? AND hardware_id = ? AND deactivated_at IS NULL`,
		at,
		licensedomain.ActivationDeactivated,
		licenseID,
		hardwareID,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) InsertValidationLog(ctx context.Context, db *gorm.DB, entry *licensedomain.ValidationLog) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO validation_logs (id, license_id, success, error_message, hardware_id, ip_address, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.LicenseID,
		entry.Success,
		entry.ErrorMessage,
		entry.HardwareID,
		entry.IPAddress,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListValidationLogs(ctx context.Context, db *gorm.DB, licenseID snowflake.ID, filter licensedomain.LogFilter) ([]licensedomain.ValidationLog, error) {
	query := `SELECT id, license_id, success, error_message, hardware_id, ip_address, created_at
		 FROM validation_logs WHERE license_id = ?`
	args := []any{licenseID}
	if filter.AfterID != 0 {
		query += ` AND id < ?`
		args = append(args, filter.AfterID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, filter.PageSize)

	var entries []licensedomain.ValidationLog
	err := db.WithContext(ctx).Raw(query, args...).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
