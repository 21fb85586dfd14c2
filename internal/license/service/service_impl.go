package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/glowpress/keyline/internal/clock"
	"github.com/glowpress/keyline/internal/config"
	licensedomain "github.com/glowpress/keyline/internal/license/domain"
	"github.com/glowpress/keyline/internal/license/fingerprint"
	"github.com/glowpress/keyline/internal/license/keygen"
	"github.com/glowpress/keyline/internal/observability/metrics"
	"github.com/glowpress/keyline/pkg/db"
	"github.com/glowpress/keyline/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const issueMaxRetries = 5

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    licensedomain.Repository
	Policy  *config.PolicyHolder
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    licensedomain.Repository
	policy  *config.PolicyHolder
	metrics *metrics.Metrics
}

func New(p Params) licensedomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("license.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		policy:  p.Policy,
		metrics: p.Metrics,
	}
}

func (s *Service) Issue(ctx context.Context, req licensedomain.IssueRequest) (*licensedomain.IssueResponse, error) {
	plan := strings.ToLower(strings.TrimSpace(req.Plan))
	if plan == "" {
		return nil, licensedomain.ErrInvalidPlan
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, licensedomain.ErrInvalidEmail
	}

	maxActivations := req.MaxActivations
	if maxActivations < 1 {
		maxActivations = s.policy.PlanDefaults(plan).MaxActivations
	}

	now := s.clock.Now()
	license := &licensedomain.License{
		Plan:           plan,
		Status:         licensedomain.StatusPending,
		MaxActivations: maxActivations,
		Email:          email,
		ExpiresAt:      req.ExpiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// 64 bits of key entropy makes collisions negligible, but the unique
	// index is authoritative: regenerate on a duplicate.
	var insertErr error
	for attempt := 0; attempt < issueMaxRetries; attempt++ {
		key, err := keygen.Generate()
		if err != nil {
			return nil, err
		}
		license.ID = s.genID.Generate()
		license.LicenseKey = key

		insertErr = s.repo.Insert(ctx, s.db, license)
		if insertErr == nil {
			break
		}
		if !db.IsDuplicateKeyErr(insertErr) {
			return nil, fmt.Errorf("insert license: %w", insertErr)
		}
	}
	if insertErr != nil {
		return nil, fmt.Errorf("insert license: %w", insertErr)
	}

	s.log.Info("license issued",
		zap.String("license_key", license.LicenseKey),
		zap.String("plan", plan),
		zap.Int("max_activations", maxActivations),
	)

	return &licensedomain.IssueResponse{
		LicenseKey:     license.LicenseKey,
		Plan:           license.Plan,
		Status:         string(license.Status),
		MaxActivations: license.MaxActivations,
		ExpiresAt:      license.ExpiresAt,
	}, nil
}

func (s *Service) Activate(ctx context.Context, req licensedomain.ActivateRequest) (*licensedomain.ActivationResult, error) {
	key := strings.TrimSpace(req.LicenseKey)
	if !keygen.IsValidFormat(key) {
		s.recordActivation("invalid_key")
		return nil, licensedomain.ErrInvalidKey
	}
	hardwareID := fingerprint.Normalize(req.HardwareID)
	if !fingerprint.IsValidFormat(hardwareID) {
		s.recordActivation("invalid_hardware_id")
		return nil, licensedomain.ErrInvalidHardwareID
	}

	var (
		result    *licensedomain.ActivationResult
		domainErr error
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		license, err := s.repo.FindByKeyForUpdate(ctx, tx, key)
		if err != nil {
			return err
		}
		if license == nil {
			domainErr = licensedomain.ErrLicenseNotFound
			return nil
		}

		now := s.clock.Now()
		if license.ExpiresAt != nil && now.After(*license.ExpiresAt) {
			// The expiry flip must survive the failed activation, so the
			// transaction commits and the domain error travels separately.
			license.Status = licensedomain.StatusExpired
			license.UpdatedAt = now
			if err := s.repo.Update(ctx, tx, license); err != nil {
				return err
			}
			domainErr = licensedomain.ErrLicenseExpired
			return nil
		}
		if license.Status == licensedomain.StatusSuspended || license.Status == licensedomain.StatusCancelled {
			domainErr = fmt.Errorf("%w: %s", licensedomain.ErrLicenseInactive, license.Status)
			return nil
		}

		existing, err := s.repo.FindActiveActivation(ctx, tx, license.ID, hardwareID)
		if err != nil {
			return err
		}

		// Re-activating an already-bound device never consumes a slot, so
		// client retries cannot exhaust the activation limit.
		if existing == nil {
			if license.CurrentActivations >= license.MaxActivations {
				domainErr = licensedomain.ErrActivationLimitReached
				return nil
			}

			deviceInfo, err := marshalDeviceInfo(req.DeviceInfo)
			if err != nil {
				return err
			}
			activation := &licensedomain.Activation{
				ID:         s.genID.Generate(),
				LicenseID:  license.ID,
				HardwareID: hardwareID,
				DeviceInfo: deviceInfo,
				Status:     licensedomain.ActivationActive,
				CreatedAt:  now,
			}
			if err := s.repo.InsertActivation(ctx, tx, activation); err != nil {
				return err
			}
			license.CurrentActivations++
		}

		license.HardwareID = &hardwareID
		license.Status = licensedomain.StatusActive
		if license.ActivatedAt == nil {
			license.ActivatedAt = &now
		}
		license.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, license); err != nil {
			return err
		}

		result = &licensedomain.ActivationResult{
			Plan:               license.Plan,
			ExpiresAt:          license.ExpiresAt,
			ActivatedAt:        license.ActivatedAt,
			CurrentActivations: license.CurrentActivations,
			MaxActivations:     license.MaxActivations,
			Checksum:           keygen.Checksum(key, hardwareID),
		}
		return nil
	})
	if err != nil {
		s.recordActivation("storage_error")
		return nil, fmt.Errorf("activate license: %w", err)
	}
	if domainErr != nil {
		s.recordActivation(rootError(domainErr))
		return nil, domainErr
	}

	s.recordActivation("success")
	s.log.Info("license activated",
		zap.String("license_key", key),
		zap.Int("current_activations", result.CurrentActivations),
		zap.Int("max_activations", result.MaxActivations),
	)
	return result, nil
}

func (s *Service) Validate(ctx context.Context, req licensedomain.ValidateRequest) (*licensedomain.ValidationResult, error) {
	key := strings.TrimSpace(req.LicenseKey)
	hardwareID := fingerprint.Normalize(req.HardwareID)

	var license *licensedomain.License
	if keygen.IsValidFormat(key) {
		found, err := s.repo.FindByKey(ctx, s.db, key)
		if err != nil {
			s.recordValidation("storage_error")
			return nil, fmt.Errorf("find license: %w", err)
		}
		license = found
	}

	var licenseID *snowflake.ID
	if license != nil {
		licenseID = &license.ID
	}

	if !fingerprint.IsValidFormat(hardwareID) {
		s.audit(ctx, licenseID, false, licensedomain.FailureInvalidHardwareID, hardwareID, req.IPAddress)
		s.recordValidation("invalid_hardware_id")
		return &licensedomain.ValidationResult{Valid: false, Error: licensedomain.FailureInvalidHardwareID}, nil
	}

	// An unknown key and a hardware mismatch both answer with the same
	// generic error so the endpoint cannot be used to enumerate keys.
	if license == nil {
		s.audit(ctx, nil, false, licensedomain.FailureLicenseNotFound, hardwareID, req.IPAddress)
		s.recordValidation("not_found")
		return &licensedomain.ValidationResult{Valid: false, Error: "invalid_license"}, nil
	}

	if license.HardwareID != nil && !fingerprint.Equal(*license.HardwareID, hardwareID) {
		s.audit(ctx, licenseID, false, licensedomain.FailureHardwareMismatch, hardwareID, req.IPAddress)
		s.recordValidation("hardware_mismatch")
		return &licensedomain.ValidationResult{Valid: false, Error: "invalid_license"}, nil
	}

	now := s.clock.Now()
	if license.ExpiresAt != nil && now.After(*license.ExpiresAt) {
		license.Status = licensedomain.StatusExpired
		license.UpdatedAt = now
		if err := s.repo.Update(ctx, s.db, license); err != nil {
			s.recordValidation("storage_error")
			return nil, fmt.Errorf("expire license: %w", err)
		}
		s.audit(ctx, licenseID, false, licensedomain.FailureLicenseExpired, hardwareID, req.IPAddress)
		s.recordValidation("expired")
		return &licensedomain.ValidationResult{Valid: false, Error: licensedomain.FailureLicenseExpired}, nil
	}

	if license.Status != licensedomain.StatusActive {
		message := "license_" + string(license.Status)
		s.audit(ctx, licenseID, false, message, hardwareID, req.IPAddress)
		s.recordValidation(string(license.Status))
		return &licensedomain.ValidationResult{Valid: false, Error: message}, nil
	}

	// Rebinding on every success also covers a license whose binding was
	// cleared by deactivation: the next validating device takes the slot.
	license.HardwareID = &hardwareID
	license.LastValidatedAt = &now
	license.UpdatedAt = now
	if err := s.repo.Update(ctx, s.db, license); err != nil {
		s.recordValidation("storage_error")
		return nil, fmt.Errorf("update license: %w", err)
	}

	s.audit(ctx, licenseID, true, "", hardwareID, req.IPAddress)
	s.recordValidation("success")
	return &licensedomain.ValidationResult{
		Valid: true,
		License: &licensedomain.ValidatedEntity{
			Plan:      license.Plan,
			ExpiresAt: license.ExpiresAt,
			Email:     license.Email,
		},
	}, nil
}

func (s *Service) Deactivate(ctx context.Context, req licensedomain.DeactivateRequest) (*licensedomain.DeactivationResult, error) {
	key := strings.TrimSpace(req.LicenseKey)
	if key == "" {
		return nil, licensedomain.ErrInvalidKey
	}
	hardwareID := fingerprint.Normalize(req.HardwareID)

	var (
		result    *licensedomain.DeactivationResult
		domainErr error
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		license, err := s.repo.FindByKeyForUpdate(ctx, tx, key)
		if err != nil {
			return err
		}
		if license == nil {
			domainErr = licensedomain.ErrLicenseNotFound
			return nil
		}

		now := s.clock.Now()
		released, err := s.repo.DeactivateActivations(ctx, tx, license.ID, hardwareID, now)
		if err != nil {
			return err
		}

		license.CurrentActivations -= int(released)
		if license.CurrentActivations < 0 {
			license.CurrentActivations = 0
		}
		if license.HardwareID != nil && fingerprint.Equal(*license.HardwareID, hardwareID) {
			license.HardwareID = nil
		}
		if license.CurrentActivations == 0 && license.Status == licensedomain.StatusActive {
			// Back to pending: the license frees up for a different machine
			// without losing its plan or expiry.
			license.Status = licensedomain.StatusPending
		}
		license.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, license); err != nil {
			return err
		}

		result = &licensedomain.DeactivationResult{
			CurrentActivations: license.CurrentActivations,
			Status:             string(license.Status),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("deactivate license: %w", err)
	}
	if domainErr != nil {
		return nil, domainErr
	}

	s.log.Info("license deactivated",
		zap.String("license_key", key),
		zap.Int("current_activations", result.CurrentActivations),
	)
	return result, nil
}

func (s *Service) Get(ctx context.Context, licenseKey string) (*licensedomain.LicenseResponse, error) {
	license, err := s.repo.FindByKey(ctx, s.db, strings.TrimSpace(licenseKey))
	if err != nil {
		return nil, err
	}
	if license == nil {
		return nil, licensedomain.ErrLicenseNotFound
	}
	resp := toLicenseResponse(license)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req licensedomain.ListRequest) (*licensedomain.ListResponse, error) {
	pageSize := normalizePageSize(req.PageSize)
	afterID, err := cursorID(req.PageToken)
	if err != nil {
		return nil, licensedomain.ErrInvalidPageToken
	}
	filter := licensedomain.ListFilter{
		Status:   strings.TrimSpace(req.Status),
		Plan:     strings.TrimSpace(req.Plan),
		AfterID:  afterID,
		PageSize: pageSize + 1,
	}

	licenses, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	resp := &licensedomain.ListResponse{}
	resp.HasMore = len(licenses) > pageSize
	if resp.HasMore {
		licenses = licenses[:pageSize]
	}
	for i := range licenses {
		resp.Licenses = append(resp.Licenses, toLicenseResponse(&licenses[i]))
	}
	if resp.HasMore && len(licenses) > 0 {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: licenses[len(licenses)-1].ID.String()})
		if err != nil {
			return nil, err
		}
		resp.NextPageToken = token
	}
	return resp, nil
}

func (s *Service) ListValidations(ctx context.Context, req licensedomain.ListValidationsRequest) (*licensedomain.ListValidationsResponse, error) {
	license, err := s.repo.FindByKey(ctx, s.db, strings.TrimSpace(req.LicenseKey))
	if err != nil {
		return nil, err
	}
	if license == nil {
		return nil, licensedomain.ErrLicenseNotFound
	}

	pageSize := normalizePageSize(req.PageSize)
	afterID, err := cursorID(req.PageToken)
	if err != nil {
		return nil, licensedomain.ErrInvalidPageToken
	}
	filter := licensedomain.LogFilter{AfterID: afterID, PageSize: pageSize + 1}

	entries, err := s.repo.ListValidationLogs(ctx, s.db, license.ID, filter)
	if err != nil {
		return nil, err
	}

	resp := &licensedomain.ListValidationsResponse{}
	resp.HasMore = len(entries) > pageSize
	if resp.HasMore {
		entries = entries[:pageSize]
	}
	for _, entry := range entries {
		resp.Validations = append(resp.Validations, licensedomain.ValidationLogResponse{
			Success:      entry.Success,
			ErrorMessage: entry.ErrorMessage,
			HardwareID:   entry.HardwareID,
			IPAddress:    entry.IPAddress,
			CreatedAt:    entry.CreatedAt,
		})
	}
	if resp.HasMore && len(entries) > 0 {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: entries[len(entries)-1].ID.String()})
		if err != nil {
			return nil, err
		}
		resp.NextPageToken = token
	}
	return resp, nil
}

// audit appends a validation log entry. Audit is observability, not a
// correctness gate: a write failure is surfaced to the operator log and
// metrics but never fails the outer call.
func (s *Service) audit(ctx context.Context, licenseID *snowflake.ID, success bool, message, hardwareID, ipAddress string) {
	entry := &licensedomain.ValidationLog{
		ID:           s.genID.Generate(),
		LicenseID:    licenseID,
		Success:      success,
		ErrorMessage: message,
		HardwareID:   hardwareID,
		IPAddress:    ipAddress,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repo.InsertValidationLog(ctx, s.db, entry); err != nil {
		s.log.Warn("validation log write failed",
			zap.Error(err),
			zap.Bool("success", success),
			zap.String("message", message),
		)
		s.metrics.RecordAuditWriteFailure()
	}
}

func (s *Service) recordActivation(outcome string) {
	s.metrics.RecordActivationAttempt(outcome)
}

func (s *Service) recordValidation(outcome string) {
	s.metrics.RecordValidationResult(outcome)
}

func marshalDeviceInfo(info map[string]any) (datatypes.JSON, error) {
	if len(info) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("marshal device info: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func toLicenseResponse(license *licensedomain.License) licensedomain.LicenseResponse {
	return licensedomain.LicenseResponse{
		LicenseKey:         license.LicenseKey,
		Plan:               license.Plan,
		Status:             string(license.Status),
		HardwareID:         license.HardwareID,
		MaxActivations:     license.MaxActivations,
		CurrentActivations: license.CurrentActivations,
		Email:              license.Email,
		ActivatedAt:        license.ActivatedAt,
		LastValidatedAt:    license.LastValidatedAt,
		ExpiresAt:          license.ExpiresAt,
		CreatedAt:          license.CreatedAt,
	}
}

func normalizePageSize(size int) int {
	if size < 1 {
		return 50
	}
	if size > 250 {
		return 250
	}
	return size
}

func cursorID(token string) (snowflake.ID, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, nil
	}
	cursor, err := pagination.DecodeCursor(token)
	if err != nil {
		return 0, err
	}
	raw, err := strconv.ParseInt(cursor.ID, 10, 64)
	if err != nil {
		return 0, err
	}
	return snowflake.ID(raw), nil
}

func rootError(err error) string {
	switch {
	case err == nil:
		return "success"
	default:
		parts := strings.SplitN(err.Error(), ":", 2)
		return strings.TrimSpace(parts[0])
	}
}
