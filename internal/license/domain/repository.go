package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the transactional store contract. Methods take the gorm
// handle explicitly so services can run them inside a transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, license *License) error
	Update(ctx context.Context, db *gorm.DB, license *License) error
	FindByKey(ctx context.Context, db *gorm.DB, licenseKey string) (*License, error)
	FindByKeyForUpdate(ctx context.Context, db *gorm.DB, licenseKey string) (*License, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]License, error)

	FindActiveActivation(ctx context.Context, db *gorm.DB, licenseID snowflake.ID, hardwareID string) (*Activation, error)
	InsertActivation(ctx context.Context, db *gorm.DB, activation *Activation) error
	DeactivateActivations(ctx context.Context, db *gorm.DB, licenseID snowflake.ID, hardwareID string, at time.Time) (int64, error)

	InsertValidationLog(ctx context.Context, db *gorm.DB, entry *ValidationLog) error
	ListValidationLogs(ctx context.Context, db *gorm.DB, licenseID snowflake.ID, filter LogFilter) ([]ValidationLog, error)
}

type ListFilter struct {
	Status   string
	Plan     string
	AfterID  snowflake.ID
	PageSize int
}

type LogFilter struct {
	AfterID  snowflake.ID
	PageSize int
}
