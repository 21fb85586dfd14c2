package domain

import (
	"context"
	"errors"
	"time"

	"github.com/glowpress/keyline/pkg/db/pagination"
)

type Service interface {
	Issue(ctx context.Context, req IssueRequest) (*IssueResponse, error)
	Activate(ctx context.Context, req ActivateRequest) (*ActivationResult, error)
	Validate(ctx context.Context, req ValidateRequest) (*ValidationResult, error)
	Deactivate(ctx context.Context, req DeactivateRequest) (*DeactivationResult, error)
	Get(ctx context.Context, licenseKey string) (*LicenseResponse, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	ListValidations(ctx context.Context, req ListValidationsRequest) (*ListValidationsResponse, error)
}

type IssueRequest struct {
	Plan           string     `json:"plan"`
	Email          string     `json:"email"`
	MaxActivations int        `json:"max_activations"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

type IssueResponse struct {
	LicenseKey     string     `json:"license_key"`
	Plan           string     `json:"plan"`
	Status         string     `json:"status"`
	MaxActivations int        `json:"max_activations"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

type ActivateRequest struct {
	LicenseKey string         `json:"license_key"`
	HardwareID string         `json:"hardware_id"`
	DeviceInfo map[string]any `json:"device_info"`
	IPAddress  string         `json:"-"`
}

type ActivationResult struct {
	Plan               string     `json:"plan"`
	ExpiresAt          *time.Time `json:"expires_at"`
	ActivatedAt        *time.Time `json:"activated_at"`
	CurrentActivations int        `json:"current_activations"`
	MaxActivations     int        `json:"max_activations"`
	Checksum           string     `json:"checksum"`
}

type ValidateRequest struct {
	LicenseKey string `json:"license_key"`
	HardwareID string `json:"hardware_id"`
	IPAddress  string `json:"-"`
}

// ValidationResult reports a business outcome, never a business error:
// expired, mismatched, or inactive licenses all come back as Valid=false so
// client polling has a single code path.
type ValidationResult struct {
	Valid   bool             `json:"valid"`
	Error   string           `json:"error,omitempty"`
	License *ValidatedEntity `json:"license,omitempty"`
}

type ValidatedEntity struct {
	Plan      string     `json:"plan"`
	ExpiresAt *time.Time `json:"expires_at"`
	Email     string     `json:"email"`
}

type DeactivateRequest struct {
	LicenseKey string `json:"license_key"`
	HardwareID string `json:"hardware_id"`
}

type DeactivationResult struct {
	CurrentActivations int    `json:"current_activations"`
	Status             string `json:"status"`
}

type LicenseResponse struct {
	LicenseKey         string     `json:"license_key"`
	Plan               string     `json:"plan"`
	Status             string     `json:"status"`
	HardwareID         *string    `json:"hardware_id"`
	MaxActivations     int        `json:"max_activations"`
	CurrentActivations int        `json:"current_activations"`
	Email              string     `json:"email"`
	ActivatedAt        *time.Time `json:"activated_at"`
	LastValidatedAt    *time.Time `json:"last_validated_at"`
	ExpiresAt          *time.Time `json:"expires_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

type ListRequest struct {
	pagination.Pagination
	Status string
	Plan   string
}

type ListResponse struct {
	pagination.PageInfo
	Licenses []LicenseResponse `json:"licenses"`
}

type ListValidationsRequest struct {
	pagination.Pagination
	LicenseKey string
}

type ValidationLogResponse struct {
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	HardwareID   string    `json:"hardware_id"`
	IPAddress    string    `json:"ip_address"`
	CreatedAt    time.Time `json:"created_at"`
}

type ListValidationsResponse struct {
	pagination.PageInfo
	Validations []ValidationLogResponse `json:"validations"`
}

var (
	ErrInvalidKey             = errors.New("invalid_license_key")
	ErrInvalidHardwareID      = errors.New("invalid_hardware_id")
	ErrInvalidPlan            = errors.New("invalid_plan")
	ErrInvalidEmail           = errors.New("invalid_email")
	ErrLicenseNotFound        = errors.New("license_not_found")
	ErrLicenseExpired         = errors.New("license_expired")
	ErrLicenseInactive        = errors.New("license_inactive")
	ErrActivationLimitReached = errors.New("activation_limit_reached")
	ErrInvalidPageToken       = errors.New("invalid_page_token")
)

// Validation failure messages recorded in the audit trail. The unknown-key
// message matches the generic invalid response so the API never acts as a
// key-enumeration oracle.
const (
	FailureLicenseNotFound   = "license_not_found"
	FailureInvalidHardwareID = "invalid_hardware_id"
	FailureHardwareMismatch  = "hardware_mismatch"
	FailureLicenseExpired    = "license_expired"
)
