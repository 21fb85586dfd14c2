package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/glowpress/keyline/internal/clock"
	"github.com/glowpress/keyline/internal/config"
	licensedomain "github.com/glowpress/keyline/internal/license/domain"
	"github.com/glowpress/keyline/internal/license/fingerprint"
	"github.com/glowpress/keyline/internal/license/keygen"
	licenserepo "github.com/glowpress/keyline/internal/license/repository"
	licenseservice "github.com/glowpress/keyline/internal/license/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&licensedomain.License{},
		&licensedomain.Activation{},
		&licensedomain.ValidationLog{},
	))
	return db
}

func newTestService(t *testing.T, db *gorm.DB, clk clock.Clock) licensedomain.Service {
	t.Helper()

	node, err := snowflake.NewNode(7)
	require.NoError(t, err)

	return licenseservice.New(licenseservice.Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Repo:   licenserepo.Provide(),
		Policy: config.NewStaticPolicyHolder(config.DefaultPolicy()),
	})
}

func deviceID(seed string) string {
	return fingerprint.Derive(fingerprint.DeviceAttributes{
		UUID: seed + "-uuid",
		CPU:  seed + "-cpu",
		MAC:  seed + "-mac",
	})
}

func countValidationLogs(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM validation_logs`).Scan(&count).Error)
	return count
}

func TestIssueAppliesPlanPolicy(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewSystem())

	pro, err := svc.Issue(ctx, licensedomain.IssueRequest{Plan: "pro", Email: "dev@example.com"})
	require.NoError(t, err)
	assert.True(t, keygen.IsValidFormat(pro.LicenseKey))
	assert.Equal(t, "pro", pro.Plan)
	assert.Equal(t, "pending", pro.Status)
	assert.Equal(t, 1, pro.MaxActivations)

	team, err := svc.Issue(ctx, licensedomain.IssueRequest{Plan: "Team", Email: "ops@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "team", team.Plan)
	assert.Equal(t, 5, team.MaxActivations)

	custom, err := svc.Issue(ctx, licensedomain.IssueRequest{Plan: "team", Email: "ops@example.com", MaxActivations: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, custom.MaxActivations)

	assert.NotEqual(t, pro.LicenseKey, team.LicenseKey)
}

func TestIssueRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewSystem())

	_, err := svc.Issue(ctx, licensedomain.IssueRequest{Plan: "  ", Email: "dev@example.com"})
	assert.ErrorIs(t, err, licensedomain.ErrInvalidPlan)

	_, err = svc.Issue(ctx, licensedomain.IssueRequest{Plan: "pro", Email: "not-an-email"})
	assert.ErrorIs(t, err, licensedomain.ErrInvalidEmail)
}

func TestActivateBindsDevice(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)

	issued, err := svc.Issue(ctx, licensedomain.IssueRequest{Plan: "pro", Email: "dev@example.com"})
	require.NoError(t, err)

	hw := deviceID("laptop")
	result, err := svc.Activate(ctx, licensedomain.ActivateRequest{
		LicenseKey: issued.LicenseKey,
		HardwareID: hw,
		DeviceInfo: map[string]any{"os": "darwin", "hostname": "dev-laptop"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.CurrentActivations)
	assert.Equal(t, 1, result.MaxActivations)
	assert.Equal(t, keygen.Checksum(issued.LicenseKey, hw), result.Checksum)
	require.NotNil(t, result.ActivatedAt)
	assert.True(t, result.ActivatedAt.Equal(clk.Now()))

	stored, err := svc.Get(ctx, issued.LicenseKey)
	require.NoError(t, err)
	assert.Equal(t, "active", stored.Status)
	require.NotNil(t, stored.HardwareID)
	assert.Equal(t, hw, *stored.HardwareID)
	assert.Equal(t, 1, stored.CurrentActivations)
}

func TestActivateSameDeviceDoesNotConsumeSlot(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewSystem())

	issued, err := svc.Issue(ctx, licensedomain.IssueRequest{Plan: "pro", Email: "dev@example.com"})
	require.NoError(t, err)

	hw := deviceID("laptop")
	first, err := svc.Activate(ctx, licensedomain.ActivateRequest{LicenseKey: issued.LicenseKey, HardwareID: hw})
	require.NoError(t, err)
	second, err := svc.Activate(ctx, licensedomain.ActivateRequest{LicenseKey: issued.LicenseKey, HardwareID: hw})
	require.NoError(t, err)

	assert.Equal(t, first.CurrentActivations, second.CurrentActivations)
	assert.Equal(t, 1, second.CurrentActivations)
}

func TestActivationCapacityInvariant(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewSystem())

	issued, err := svc.Issue(ctx, licensedomain.IssueRequest{Plan: "team", Email: "ops@example.com", MaxActivations: 2})
	require.NoError(t, err)

	successes := 0
	for i := 0; i < 6; i++ {
		_, err := svc.Activate(ctx, licensedomain.ActivateRequest{
			LicenseKey: issued.LicenseKey,
			HardwareID: deviceID(fmt.Sprintf("machine-%d", i)),
		})
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, licensedomain.ErrActivationLimitReached)
	}
	assert.Equal(t, 2, successes)

	stored, err := svc.Get(ctx, issued.LicenseKey)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CurrentActivations)
}

func TestActivationCapacityInvariantConcurrent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewSystem())

	issued, err := svc.Issue(ctx, licensedomain.IssueRequest{Plan: "team", Email: "ops@example.com", MaxActivations: 2})
	require.NoError(t, err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		successes int64
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			req := licensedomain.ActivateRequest{
				LicenseKey: issued.LicenseKey,
				HardwareID: deviceID(fmt.Sprintf("worker-%d", n)),
			}
			// sqlite rejects overlapping write transactions with a busy
			// error; retry those so only the domain outcome is asserted.
			for attempt := 0; attempt < 50; attempt++ {
				_, err := svc.Activate(ctx, req)
				if err == nil {
					atomic.AddInt64(&successes, 1)
					return
				}
				if errors.Is(err, licensedomain.ErrActivationLimitReached) {
					return
				}
				time.Sleep(time.Duration(attempt+1) * time.Millisecond)
			}
			t.Errorf("worker %d never reached a domain outcome", n)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(2), successes)

	stored, err := svc.Get(ctx, issued.LicenseKey)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CurrentActivations)

	var liveRows int64
	require.NoError(t, db.Raw(
		`SELECT COUNT(*)
		   FROM activations a
		   JOIN licenses l ON l.id = a.license_id
		  WHERE l.license_key = ? AND a.deactivated_at IS NULL`,
		issued.LicenseKey,
	).Scan(&liveRows).Error)
	assert.Equal(t, int64(2), liveRows)
}

func TestActivateLimitFreedByDeactivation(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewSystem())

	issued, err := svc.Issue(ctx, licensedomain.IssueRequest{Plan: "pro", Email: "dev@example.com"})
	require.NoError(t, err)

	hw1 := deviceID("old-laptop")
	hw2 := deviceID("new-laptop")

	_, err = svc.Activate(ctx, licensedomain.ActivateRequest{LicenseKey: issued.LicenseKey, HardwareID: hw1})
	require.NoError(t, err)

	_, err = svc.Activate(ctx, licensedomain.ActivateRequest{LicenseKey: issued.LicenseKey, HardwareID: hw2})
	assert.ErrorIs(t, err, licensedomain.ErrActivationLimitReached)

	_, err = svc.Deactivate(ctx, licensedomain.DeactivateRequest{LicenseKey: issued.LicenseKey, HardwareID: hw1})
	require.NoError(t, err)

	result, err := svc.Activate(ctx, licensedomain.ActivateRequest{LicenseKey: issued.LicenseKey, HardwareID: hw2})
	require.NoError(t, err)
	assert.Equal(t, 1, result.CurrentActivations)
}

func TestActivateRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewSystem())

	_, err := svc.Activate(ctx, licensedomain.ActivateRequest{LicenseKey: "not-a-key", HardwareID: deviceID("x")})
	assert.ErrorIs(t, err, licensedomain.ErrInvalidKey)

	key, err := keygen.Generate()
	require.NoError(t, err)
	_, err = svc.Activate(ctx, licensedomain.ActivateRequest{LicenseKey: key, HardwareID: "short"})
	assert.ErrorIs(t, err, licensedomain.ErrInvalidHardwareID)

	_, err = svc.Activate(ctx, licensedomain.ActivateRequest{LicenseKey: key, HardwareID: deviceID("x")})
	assert.ErrorIs(t, err, licensedomain.ErrLicenseNotFound)
}

func TestActivateExpiredFlipsStatus(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)

	expiry := clk.Now().Add(24 * time.Hour)
	issued, err := svc.Issue(ctx, licensedomain.IssueRequest{Plan: "pro", Email: "dev@example.com", ExpiresAt: &expiry})
	require.NoError(t, err)

	clk.Advance(48 * time.Hour)

	_, err = svc.Activate(ctx, licensedomain.ActivateRequest{LicenseKey: issued.LicenseKey, HardwareID: deviceID("laptop")})
	assert.ErrorIs(t, err, licensedomain.ErrLicenseExpired)

	// The status flip must outlive the failed activation.
	stored, err := svc.Get(ctx, issued.LicenseKey)
	require.NoError(t, err)
	assert.Equal(t, "expired", stored.Status)
}

func TestActivateInactiveLicense(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewSystem())

	issued, err := svc.Issue(ctx, licensedomain.IssueRequest{Plan: "pro", Email: "dev@example.com"})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`UPDATE licenses SET status = 'suspended' WHERE license_key = ?`, issued.LicenseKey).Error)

	_, err = svc.Activate(ctx, licensedomain.ActivateRequest{LicenseKey: issued.LicenseKey, HardwareID: deviceID("laptop")})
	assert.ErrorIs(t, err, licensedomain.ErrLicenseInactive)
	assert.Contains(t, err.Error(), "suspended")
}

func TestValidateSuccess(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)

	issued, err := svc.Issue(ctx, licensedomain.IssueRequest{Plan: "pro", Email: "dev@example.com"})
	require.NoError(t, err)

	hw := deviceID("laptop")
	_, err = svc.Activate(ctx, licensedomain.ActivateRequest{LicenseKey: issued.LicenseKey, HardwareID: hw})
	require.NoError(t, err)

	clk.Advance(time.Hour)

	result, err := svc.Validate(ctx, licensedomain.ValidateRequest{LicenseKey: issued.LicenseKey, HardwareID: hw, IPAddress: "203.0.113.9"})
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Error)
	require.NotNil(t, result.License)
	assert.Equal(t, "pro", result.License.Plan)
	assert.Equal(t, "dev@example.com", result.License.Email)

	stored, err := svc.Get(ctx, issued.LicenseKey)
	require.NoError(t, err)
	require.NotNil(t, stored.LastValidatedAt)
	assert.True(t, stored.LastValidatedAt.Equal(clk.Now()))

	assert.Equal(t, int64(1), countValidationLogs(t, db))
}

func TestValidateHardwareMismatchIsOpaque(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewSystem())

	issued, err := svc.Issue(ctx, licensedomain.IssueRequest{Plan: "pro", Email: "dev@example.com"})
	require.NoError(t, err)

	_, err = svc.Activate(ctx, licensedomain.ActivateRequest{LicenseKey: issued.LicenseKey, HardwareID: deviceID("laptop")})
	require.NoError(t, err)

	result, err := svc.Validate(ctx, licensedomain.ValidateRequest{LicenseKey: issued.LicenseKey, HardwareID: deviceID("other")})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "invalid_license", result.Error)
	assert.Nil(t, result.License)

	var entry licensedomain.ValidationLog
	require.NoError(t, db.Raw(`SELECT * FROM validation_logs ORDER BY id DESC LIMIT 1`).Scan(&entry).Error)
	assert.False(t, entry.Success)
	assert.Equal(t, licensedomain.FailureHardwareMismatch, entry.ErrorMessage)
}

func TestValidateUnknownKeyMatchesMismatchResponse(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewSystem())

	key, err := keygen.Generate()
	require.NoError(t, err)

	result, err := svc.Validate(ctx, licensedomain.ValidateRequest{LicenseKey: key, HardwareID: deviceID("laptop")})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	// Same response as a hardware mismatch so the endpoint cannot confirm
	// which keys exist.
	assert.Equal(t, "invalid_license", result.Error)

	var entry licensedomain.ValidationLog
	require.NoError(t, db.Raw(`SELECT * FROM validation_logs ORDER BY id DESC LIMIT 1`).Scan(&entry).Error)
	assert.Nil(t, entry.LicenseID)
	assert.Equal(t, licensedomain.FailureLicenseNotFound, entry.ErrorMessage)
	assert.Equal(t, int64(1), countValidationLogs(t, db))
}

func TestValidateInvalidHardwareID(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewSystem())

	issued, err := svc.Issue(ctx, licensedomain.IssueRequest{Plan: "pro", Email: "dev@example.com"})
	require.NoError(t, err)

	result, err := svc.Validate(ctx, licensedomain.ValidateRequest{LicenseKey: issued.LicenseKey, HardwareID: "nope"})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, licensedomain.FailureInvalidHardwareID, result.Error)
}

func TestValidateExpiredFlipsStatus(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)

	expiry := clk.Now().Add(24 * time.Hour)
	issued, err := svc.Issue(ctx, licensedomain.IssueRequest{Plan: "pro", Email: "dev@example.com", ExpiresAt: &expiry})
	require.NoError(t, err)

	hw := deviceID("laptop")
	_, err = svc.Activate(ctx, licensedomain.ActivateRequest{LicenseKey: issued.LicenseKey, HardwareID: hw})
	require.NoError(t, err)

	clk.Advance(72 * time.Hour)

	result, err := svc.Validate(ctx, licensedomain.ValidateRequest{LicenseKey: issued.LicenseKey, HardwareID: hw})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, licensedomain.FailureLicenseExpired, result.Error)

	stored, err := svc.Get(ctx, issued.LicenseKey)
	require.NoError(t, err)
	assert.Equal(t, "expired", stored.Status)
}

func TestValidatePendingLicense(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewSystem())

	issued, err := svc.Issue(ctx, licensedomain.IssueRequest{Plan: "pro", Email: "dev@example.com"})
	require.NoError(t, err)

	result, err := svc.Validate(ctx, licensedomain.ValidateRequest{LicenseKey: issued.LicenseKey, HardwareID: deviceID("laptop")})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "license_pending", result.Error)
}

func TestDeactivateReleasesSlotAndBinding(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewSystem())

	issued, err := svc.Issue(ctx, licensedomain.IssueRequest{Plan: "team", Email: "ops@example.com"})
	require.NoError(t, err)

	hw1 := deviceID("desk")
	hw2 := deviceID("laptop")
	_, err = svc.Activate(ctx, licensedomain.ActivateRequest{LicenseKey: issued.LicenseKey, HardwareID: hw1})
	require.NoError(t, err)
	_, err = svc.Activate(ctx, licensedomain.ActivateRequest{LicenseKey: issued.LicenseKey, HardwareID: hw2})
	require.NoError(t, err)

	first, err := svc.Deactivate(ctx, licensedomain.DeactivateRequest{LicenseKey: issued.LicenseKey, HardwareID: hw1})
	require.NoError(t, err)
	assert.Equal(t, 1, first.CurrentActivations)
	assert.Equal(t, "active", first.Status)

	second, err := svc.Deactivate(ctx, licensedomain.DeactivateRequest{LicenseKey: issued.LicenseKey, HardwareID: hw2})
	require.NoError(t, err)
	assert.Equal(t, 0, second.CurrentActivations)
	assert.Equal(t, "pending", second.Status)

	stored, err := svc.Get(ctx, issued.LicenseKey)
	require.NoError(t, err)
	assert.Nil(t, stored.HardwareID)

	// Repeating the deactivation releases nothing further.
	again, err := svc.Deactivate(ctx, licensedomain.DeactivateRequest{LicenseKey: issued.LicenseKey, HardwareID: hw2})
	require.NoError(t, err)
	assert.Equal(t, 0, again.CurrentActivations)
}

func TestDeactivateUnknownKey(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewSystem())

	_, err := svc.Deactivate(ctx, licensedomain.DeactivateRequest{LicenseKey: "", HardwareID: deviceID("x")})
	assert.ErrorIs(t, err, licensedomain.ErrInvalidKey)

	key, err := keygen.Generate()
	require.NoError(t, err)
	_, err = svc.Deactivate(ctx, licensedomain.DeactivateRequest{LicenseKey: key, HardwareID: deviceID("x")})
	assert.ErrorIs(t, err, licensedomain.ErrLicenseNotFound)
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewSystem())

	for i := 0; i < 5; i++ {
		_, err := svc.Issue(ctx, licensedomain.IssueRequest{Plan: "pro", Email: fmt.Sprintf("user%d@example.com", i)})
		require.NoError(t, err)
	}

	req := licensedomain.ListRequest{}
	req.PageSize = 2
	page1, err := svc.List(ctx, req)
	require.NoError(t, err)
	assert.Len(t, page1.Licenses, 2)
	assert.True(t, page1.HasMore)
	require.NotEmpty(t, page1.NextPageToken)

	req.PageToken = page1.NextPageToken
	page2, err := svc.List(ctx, req)
	require.NoError(t, err)
	assert.Len(t, page2.Licenses, 2)
	assert.True(t, page2.HasMore)

	req.PageToken = page2.NextPageToken
	page3, err := svc.List(ctx, req)
	require.NoError(t, err)
	assert.Len(t, page3.Licenses, 1)
	assert.False(t, page3.HasMore)
	assert.Empty(t, page3.NextPageToken)

	seen := map[string]bool{}
	for _, page := range []*licensedomain.ListResponse{page1, page2, page3} {
		for _, l := range page.Licenses {
			assert.False(t, seen[l.LicenseKey])
			seen[l.LicenseKey] = true
		}
	}
	assert.Len(t, seen, 5)

	req.PageToken = "not-base64"
	_, err = svc.List(ctx, req)
	assert.ErrorIs(t, err, licensedomain.ErrInvalidPageToken)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewSystem())

	pro, err := svc.Issue(ctx, licensedomain.IssueRequest{Plan: "pro", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = svc.Issue(ctx, licensedomain.IssueRequest{Plan: "team", Email: "b@example.com"})
	require.NoError(t, err)

	_, err = svc.Activate(ctx, licensedomain.ActivateRequest{LicenseKey: pro.LicenseKey, HardwareID: deviceID("laptop")})
	require.NoError(t, err)

	active, err := svc.List(ctx, licensedomain.ListRequest{Status: "active"})
	require.NoError(t, err)
	require.Len(t, active.Licenses, 1)
	assert.Equal(t, pro.LicenseKey, active.Licenses[0].LicenseKey)

	team, err := svc.List(ctx, licensedomain.ListRequest{Plan: "team"})
	require.NoError(t, err)
	require.Len(t, team.Licenses, 1)
	assert.Equal(t, "team", team.Licenses[0].Plan)
}

func TestListValidations(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewSystem())

	issued, err := svc.Issue(ctx, licensedomain.IssueRequest{Plan: "pro", Email: "dev@example.com"})
	require.NoError(t, err)

	hw := deviceID("laptop")
	_, err = svc.Activate(ctx, licensedomain.ActivateRequest{LicenseKey: issued.LicenseKey, HardwareID: hw})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.Validate(ctx, licensedomain.ValidateRequest{LicenseKey: issued.LicenseKey, HardwareID: hw, IPAddress: "198.51.100.7"})
		require.NoError(t, err)
	}
	_, err = svc.Validate(ctx, licensedomain.ValidateRequest{LicenseKey: issued.LicenseKey, HardwareID: deviceID("other")})
	require.NoError(t, err)

	resp, err := svc.ListValidations(ctx, licensedomain.ListValidationsRequest{LicenseKey: issued.LicenseKey})
	require.NoError(t, err)
	require.Len(t, resp.Validations, 4)

	failures := 0
	for _, v := range resp.Validations {
		if !v.Success {
			failures++
			assert.Equal(t, licensedomain.FailureHardwareMismatch, v.ErrorMessage)
		} else {
			assert.Equal(t, "198.51.100.7", v.IPAddress)
		}
	}
	assert.Equal(t, 1, failures)

	_, err = svc.ListValidations(ctx, licensedomain.ListValidationsRequest{LicenseKey: "GLOW-0000-0000-0000-0000"})
	assert.ErrorIs(t, err, licensedomain.ErrLicenseNotFound)
}
