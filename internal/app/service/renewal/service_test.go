package renewal

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nimbushost/provisioner/internal/app/service/audit"
	"github.com/nimbushost/provisioner/internal/models"
	"github.com/nimbushost/provisioner/pkg/apperr"
	"github.com/nimbushost/provisioner/pkg/config"
	"github.com/nimbushost/provisioner/pkg/tool"
	"github.com/nimbushost/provisioner/pkg/types"
)

type stubRegistrar struct {
	err   error
	calls int
}

func (r *stubRegistrar) Renew(ctx context.Context, domainName string, years int) error {
	r.calls++
	return r.err
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Domain{}, &models.DomainRenewal{}, &models.DomainPricing{}, &models.ProvisioningQueueItem{},
	))
	return db
}

func newTestService(t *testing.T, db *gorm.DB, registrar Registrar) *Service {
	t.Helper()
	cfg := &config.Config{Renewal: config.RenewalConfig{DefaultPrice: "12.99"}}
	log := zap.NewNop().Sugar()
	return NewService(cfg, log, db, registrar, audit.NewService(cfg, log))
}

func seedDomain(t *testing.T, db *gorm.DB, status models.DomainStatus, expiry *time.Time) *models.Domain {
	t.Helper()
	d := &models.Domain{
		ID:         tool.GenerateUUIDV7(),
		UserID:     "user-1",
		Name:       fmt.Sprintf("%s.com", tool.GenerateUUIDV7()[:8]),
		Extension:  "com",
		Status:     status,
		ExpiryDate: expiry,
		SyncStatus: models.DomainSyncStatusSynced,
	}
	require.NoError(t, db.Create(d).Error)
	return d
}

var owner = types.Actor{UserID: "user-1"}

func TestNewExpiry(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 2, 0)
	past := now.AddDate(0, -3, 0)

	cases := []struct {
		name    string
		current *time.Time
		years   int
		want    time.Time
	}{
		{"future expiry extends from expiry", &future, 1, future.AddDate(1, 0, 0)},
		{"past expiry extends from now", &past, 1, now.AddDate(1, 0, 0)},
		{"nil expiry extends from now", nil, 2, now.AddDate(2, 0, 0)},
		{"multi-year", &future, 3, future.AddDate(3, 0, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, NewExpiry(tc.current, now, tc.years))
		})
	}
}

func TestRenew_Success(t *testing.T) {
	db := newTestDB(t)
	reg := &stubRegistrar{}
	svc := newTestService(t, db, reg)

	expiry := time.Now().AddDate(0, 1, 0)
	d := seedDomain(t, db, models.DomainStatusExpired, &expiry)

	res, err := svc.Renew(context.Background(), owner, RenewRequest{DomainID: d.ID})
	require.NoError(t, err)
	require.Equal(t, 1, reg.calls)
	require.True(t, res.NewExpiryDate.After(expiry))
	require.True(t, decimal.RequireFromString("12.99").Equal(res.Amount))

	var got models.Domain
	require.NoError(t, db.First(&got, "id = ?", d.ID).Error)
	require.Equal(t, models.DomainStatusActive, got.Status)
	require.Equal(t, models.DomainSyncStatusSynced, got.SyncStatus)
	require.NotNil(t, got.ExpiryDate)
	// Monotonic: never earlier than max(now, previous expiry) + 1 year.
	require.False(t, got.ExpiryDate.Before(expiry.AddDate(1, 0, 0).Add(-time.Second)))

	var renewal models.DomainRenewal
	require.NoError(t, db.Where("domain_id = ?", d.ID).First(&renewal).Error)
	require.Equal(t, models.RenewalStatusCompleted, renewal.Status)
	require.Equal(t, 1, renewal.PeriodYears)

	var item models.ProvisioningQueueItem
	require.NoError(t, db.Where("ref_id = ?", renewal.ID).First(&item).Error)
	require.Equal(t, models.QueueItemTypeDomainRenewal, item.Type)
	require.Equal(t, models.QueueItemStatusCompleted, item.Status)
	require.Equal(t, 2, item.Priority)
}

func TestRenew_UsesConfiguredPricing(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, &stubRegistrar{})

	require.NoError(t, db.Create(&models.DomainPricing{
		ID:           tool.GenerateUUIDV7(),
		Extension:    "com",
		RenewalPrice: decimal.RequireFromString("9.50"),
		Active:       true,
	}).Error)

	expiry := time.Now().AddDate(1, 0, 0)
	d := seedDomain(t, db, models.DomainStatusActive, &expiry)

	res, err := svc.Renew(context.Background(), owner, RenewRequest{DomainID: d.ID, Years: 2})
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("19.00").Equal(res.Amount))
}

func TestRenew_NotEligible(t *testing.T) {
	db := newTestDB(t)
	reg := &stubRegistrar{}
	svc := newTestService(t, db, reg)

	d := seedDomain(t, db, models.DomainStatus("transferred_out"), nil)

	_, err := svc.Renew(context.Background(), owner, RenewRequest{DomainID: d.ID})
	require.Equal(t, apperr.CodeNotEligible, apperr.CodeOf(err))
	require.Zero(t, reg.calls)
}

func TestRenew_AccessDenied(t *testing.T) {
	db := newTestDB(t)
	reg := &stubRegistrar{}
	svc := newTestService(t, db, reg)

	expiry := time.Now().AddDate(0, 1, 0)
	d := seedDomain(t, db, models.DomainStatusActive, &expiry)

	_, err := svc.Renew(context.Background(), types.Actor{UserID: "someone-else"}, RenewRequest{DomainID: d.ID})
	require.Equal(t, apperr.CodeAccessDenied, apperr.CodeOf(err))
	require.Zero(t, reg.calls)
}

func TestRenew_NotFound(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, &stubRegistrar{})

	_, err := svc.Renew(context.Background(), owner, RenewRequest{DomainID: tool.GenerateUUIDV7()})
	require.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestRenew_RegistrarFailure(t *testing.T) {
	db := newTestDB(t)
	reg := &stubRegistrar{err: errors.New("registrar unavailable")}
	svc := newTestService(t, db, reg)

	expiry := time.Now().AddDate(0, 1, 0)
	d := seedDomain(t, db, models.DomainStatusActive, &expiry)

	_, err := svc.Renew(context.Background(), owner, RenewRequest{DomainID: d.ID, RenewalType: models.RenewalTypeAuto})
	require.Equal(t, apperr.CodeRenewalFailed, apperr.CodeOf(err))

	var renewal models.DomainRenewal
	require.NoError(t, db.Where("domain_id = ?", d.ID).First(&renewal).Error)
	require.Equal(t, models.RenewalStatusFailed, renewal.Status)
	require.Contains(t, renewal.FailureReason, "registrar unavailable")

	var got models.Domain
	require.NoError(t, db.First(&got, "id = ?", d.ID).Error)
	// Expiry untouched, auto-renew failure stamped for the scheduler.
	require.WithinDuration(t, expiry, *got.ExpiryDate, time.Second)
	require.NotNil(t, got.AutoRenewFailedAt)
	require.Contains(t, got.AutoRenewFailureReason, "registrar unavailable")
}
