package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// LicenseStatus is the lifecycle state of a license.
type LicenseStatus string

const (
	StatusPending   LicenseStatus = "pending"
	StatusActive    LicenseStatus = "active"
	StatusSuspended LicenseStatus = "suspended"
	StatusCancelled LicenseStatus = "cancelled"
	StatusExpired   LicenseStatus = "expired"
)

// License is the aggregate root. CurrentActivations always equals the count
// of activation rows with deactivated_at IS NULL, and HardwareID is non-null
// only while at least one active activation exists.
type License struct {
	ID                 snowflake.ID  `gorm:"primaryKey"`
	LicenseKey         string        `gorm:"column:license_key;type:text;not null;uniqueIndex:ux_licenses_license_key"`
	Plan               string        `gorm:"type:text;not null"`
	Status             LicenseStatus `gorm:"type:text;not null;default:pending"`
	HardwareID         *string       `gorm:"column:hardware_id;type:text"`
	MaxActivations     int           `gorm:"column:max_activations;not null;default:1"`
	CurrentActivations int           `gorm:"column:current_activations;not null;default:0"`
	Email              string        `gorm:"type:text;not null"`
	ActivatedAt        *time.Time    `gorm:"column:activated_at"`
	LastValidatedAt    *time.Time    `gorm:"column:last_validated_at"`
	ExpiresAt          *time.Time    `gorm:"column:expires_at"`
	CreatedAt          time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (License) TableName() string { return "licenses" }

// ActivationStatus mirrors DeactivatedAt.
type ActivationStatus string

const (
	ActivationActive      ActivationStatus = "active"
	ActivationDeactivated ActivationStatus = "deactivated"
)

// Activation occupies one device slot while DeactivatedAt is null. Rows are
// never deleted; deactivation preserves history.
type Activation struct {
	ID            snowflake.ID     `gorm:"primaryKey"`
	LicenseID     snowflake.ID     `gorm:"column:license_id;not null;index:ix_activations_license_id"`
	HardwareID    string           `gorm:"column:hardware_id;type:text;not null"`
	DeviceInfo    datatypes.JSON   `gorm:"column:device_info"`
	Status        ActivationStatus `gorm:"type:text;not null;default:active"`
	CreatedAt     time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
	DeactivatedAt *time.Time       `gorm:"column:deactivated_at"`
}

// TableName sets the database table name.
func (Activation) TableName() string { return "activations" }

// ValidationLog is an append-only audit row, one per validate outcome.
// LicenseID is null when the key itself was not found.
type ValidationLog struct {
	ID           snowflake.ID  `gorm:"primaryKey"`
	LicenseID    *snowflake.ID `gorm:"column:license_id;index:ix_validation_logs_license_id"`
	Success      bool          `gorm:"not null"`
	ErrorMessage string        `gorm:"column:error_message;type:text"`
	HardwareID   string        `gorm:"column:hardware_id;type:text"`
	IPAddress    string        `gorm:"column:ip_address;type:text"`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ValidationLog) TableName() string { return "validation_logs" }
