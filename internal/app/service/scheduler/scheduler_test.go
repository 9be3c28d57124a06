package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nimbushost/provisioner/internal/app/service/account"
	"github.com/nimbushost/provisioner/internal/app/service/audit"
	"github.com/nimbushost/provisioner/internal/app/service/domainsync"
	"github.com/nimbushost/provisioner/internal/app/service/provisioning"
	"github.com/nimbushost/provisioner/internal/app/service/renewal"
	"github.com/nimbushost/provisioner/internal/models"
	"github.com/nimbushost/provisioner/internal/platform/mailer"
	"github.com/nimbushost/provisioner/internal/platform/panel"
	"github.com/nimbushost/provisioner/pkg/apperr"
	"github.com/nimbushost/provisioner/pkg/config"
	"github.com/nimbushost/provisioner/pkg/tool"
)

// stubControlPlane satisfies every control-plane slice the scheduler's
// downstream services need.
type stubControlPlane struct {
	renewErr    error
	renewals    int
	domainInfos map[string]*panel.DomainInfo
}

func (s *stubControlPlane) Renew(ctx context.Context, domainName string, years int) error {
	s.renewals++
	return s.renewErr
}

func (s *stubControlPlane) GetDomainInfo(ctx context.Context, domainName string) (*panel.DomainInfo, error) {
	if info, ok := s.domainInfos[domainName]; ok {
		return info, nil
	}
	return nil, errors.New("unknown domain")
}

func (s *stubControlPlane) CreateAccount(ctx context.Context, server *models.Server, req panel.CreateAccountRequest) (*panel.CreateAccountResult, error) {
	return &panel.CreateAccountResult{Username: req.Username, Domain: req.Domain, IP: server.IP}, nil
}

func (s *stubControlPlane) SuspendAccount(ctx context.Context, server *models.Server, username, reason string) error {
	return nil
}

func (s *stubControlPlane) UnsuspendAccount(ctx context.Context, server *models.Server, username string) error {
	return nil
}

func (s *stubControlPlane) TerminateAccount(ctx context.Context, server *models.Server, username string) error {
	return nil
}

func (s *stubControlPlane) GetUsage(ctx context.Context, server *models.Server, username string) (*panel.Usage, error) {
	return &panel.Usage{DiskUsedMB: 100, DiskLimitMB: 1000}, nil
}

type stubMailer struct {
	sent []mailer.Email
	err  error
}

func (m *stubMailer) Send(ctx context.Context, email mailer.Email) error {
	m.sent = append(m.sent, email)
	return m.err
}

type fixture struct {
	svc  *Service
	db   *gorm.DB
	cp   *stubControlPlane
	mail *stubMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Server{}, &models.Order{}, &models.HostingAccount{}, &models.ProvisioningQueueItem{},
		&models.Domain{}, &models.DomainRenewal{}, &models.DomainPricing{}, &models.DomainSyncLog{},
		&models.ScheduledJobRecord{}, &models.ExpiryNotification{}, &models.EmailLog{},
		&models.ServerPackage{},
	))

	cfg := &config.Config{
		Renewal:      config.RenewalConfig{DefaultPrice: "12.99"},
		Provisioning: config.ProvisioningConfig{MaxAttempts: 3, DefaultPackage: "standard"},
		Scheduler: config.SchedulerConfig{
			DomainThresholds:  []int{30, 15, 7, 1},
			HostingThresholds: []int{7, 3, 1},
		},
	}
	log := zap.NewNop().Sugar()
	cp := &stubControlPlane{}
	mail := &stubMailer{}
	auditSvc := audit.NewService(cfg, log)

	svc := NewService(cfg, log, db, nil,
		renewal.NewService(cfg, log, db, cp, auditSvc),
		domainsync.NewService(log, db, cp),
		provisioning.NewService(cfg, log, db, cp, auditSvc),
		account.NewService(log, db, cp, cp, auditSvc),
		mail,
	)
	return &fixture{svc: svc, db: db, cp: cp, mail: mail}
}

func seedDomain(t *testing.T, db *gorm.DB, name string, expiry time.Time, autoRenew bool) *models.Domain {
	t.Helper()
	d := &models.Domain{
		ID:         tool.GenerateUUIDV7(),
		UserID:     "user-1",
		Name:       name,
		Extension:  models.ExtensionOf(name),
		Status:     models.DomainStatusActive,
		ExpiryDate: &expiry,
		AutoRenew:  autoRenew,
		SyncStatus: models.DomainSyncStatusSynced,
	}
	require.NoError(t, db.Create(d).Error)
	return d
}

func TestRunLedgered_Completed(t *testing.T) {
	f := newFixture(t)

	rec, err := f.svc.runLedgered(context.Background(), "test-job", models.JobTypeManual,
		func(ctx context.Context) (datatypes.JSONMap, []string, error) {
			return datatypes.JSONMap{"processed": 3}, nil, nil
		})
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCompleted, rec.Status)
	require.NotNil(t, rec.CompletedAt)

	var got models.ScheduledJobRecord
	require.NoError(t, f.db.First(&got, "id = ?", rec.ID).Error)
	require.Equal(t, models.JobStatusCompleted, got.Status)
	require.EqualValues(t, 3, got.Metadata["processed"])
}

func TestRunLedgered_CompletedWithErrors(t *testing.T) {
	f := newFixture(t)

	rec, err := f.svc.runLedgered(context.Background(), "test-job", models.JobTypeManual,
		func(ctx context.Context) (datatypes.JSONMap, []string, error) {
			return datatypes.JSONMap{"processed": 2}, []string{"domain x: timeout"}, nil
		})
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCompletedWithErrors, rec.Status)
	require.Contains(t, rec.Metadata, "errors")
}

func TestRunLedgered_Failed(t *testing.T) {
	f := newFixture(t)

	rec, err := f.svc.runLedgered(context.Background(), "test-job", models.JobTypeManual,
		func(ctx context.Context) (datatypes.JSONMap, []string, error) {
			return nil, nil, errors.New("store unreachable")
		})
	require.Error(t, err)
	require.Equal(t, models.JobStatusFailed, rec.Status)
	require.Contains(t, rec.ErrorMessage, "store unreachable")
}

func TestRunLedgered_PanicMarksFailed(t *testing.T) {
	f := newFixture(t)

	rec, err := f.svc.runLedgered(context.Background(), "test-job", models.JobTypeManual,
		func(ctx context.Context) (datatypes.JSONMap, []string, error) {
			panic("nil map write")
		})
	require.Error(t, err)

	var got models.ScheduledJobRecord
	require.NoError(t, f.db.First(&got, "id = ?", rec.ID).Error)
	require.Equal(t, models.JobStatusFailed, got.Status)
	require.Contains(t, got.ErrorMessage, "panic")
}

func TestRun_UnknownJob(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Run(context.Background(), "no-such-job", models.JobTypeManual)
	require.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestNotificationType(t *testing.T) {
	require.Equal(t, "7_day", NotificationType(7))
	require.Equal(t, "1_day", NotificationType(1))
}

func TestSortedThresholds(t *testing.T) {
	require.Equal(t, []int{30, 15, 7, 1}, sortedThresholds(nil, []int{30, 15, 7, 1}))
	require.Equal(t, []int{15, 3}, sortedThresholds([]int{3, 15, 3}, []int{1}))
}

func TestDayWindow(t *testing.T) {
	now := time.Date(2026, 9, 1, 17, 45, 0, 0, time.UTC)
	start, end := dayWindow(now, 7)
	require.Equal(t, time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, 9, 9, 0, 0, 0, 0, time.UTC), end)
	require.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestDomainExpiryJob_NotifiesOnceAcrossRuns(t *testing.T) {
	f := newFixture(t)
	d := seedDomain(t, f.db, "expiring.com", time.Now().AddDate(0, 0, 1), false)

	for i := 0; i < 2; i++ {
		rec, err := f.svc.Run(context.Background(), "domain-expiry-notifications", models.JobTypeManual)
		require.NoError(t, err)
		require.Equal(t, models.JobStatusCompleted, rec.Status)
	}

	var notifs []models.ExpiryNotification
	require.NoError(t, f.db.Where("target_id = ?", d.ID).Find(&notifs).Error)
	require.Len(t, notifs, 1)
	require.Equal(t, "1_day", notifs[0].NotificationType)
	require.Equal(t, models.NotificationStatusSent, notifs[0].Status)
	require.NotNil(t, notifs[0].EmailLogID)
	require.Len(t, f.mail.sent, 1)

	var emailLog models.EmailLog
	require.NoError(t, f.db.First(&emailLog, "id = ?", *notifs[0].EmailLogID).Error)
	require.Equal(t, models.EmailLogStatusSent, emailLog.Status)
}

func TestDomainExpiryJob_AutoRenewSuppressesExpiryNotice(t *testing.T) {
	f := newFixture(t)
	d := seedDomain(t, f.db, "autorenew.com", time.Now().AddDate(0, 0, 1), true)

	rec, err := f.svc.Run(context.Background(), "domain-expiry-notifications", models.JobTypeManual)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCompleted, rec.Status)
	require.Equal(t, 1, f.cp.renewals)

	var notifs []models.ExpiryNotification
	require.NoError(t, f.db.Where("target_id = ?", d.ID).Find(&notifs).Error)
	require.Len(t, notifs, 1)
	require.Equal(t, models.NotificationTypeAutoRenewed, notifs[0].NotificationType)

	var got models.Domain
	require.NoError(t, f.db.First(&got, "id = ?", d.ID).Error)
	require.True(t, got.ExpiryDate.After(time.Now().AddDate(0, 11, 0)))
}

func TestDomainExpiryJob_AutoRenewFailureFallsBackToNotice(t *testing.T) {
	f := newFixture(t)
	f.cp.renewErr = errors.New("registrar rejected")
	d := seedDomain(t, f.db, "broke.com", time.Now().AddDate(0, 0, 1), true)

	rec, err := f.svc.Run(context.Background(), "domain-expiry-notifications", models.JobTypeManual)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCompletedWithErrors, rec.Status)

	var notifs []models.ExpiryNotification
	require.NoError(t, f.db.Where("target_id = ?", d.ID).Find(&notifs).Error)
	require.Len(t, notifs, 1)
	require.Equal(t, "1_day", notifs[0].NotificationType)

	var got models.Domain
	require.NoError(t, f.db.First(&got, "id = ?", d.ID).Error)
	require.NotNil(t, got.AutoRenewFailedAt)
}

func TestHostingExpiryJob(t *testing.T) {
	f := newFixture(t)
	expiry := time.Now().AddDate(0, 0, 3)
	acct := &models.HostingAccount{
		ID: tool.GenerateUUIDV7(), UserID: "user-1", OrderID: tool.GenerateUUIDV7(),
		ServerID: tool.GenerateUUIDV7(), Username: "example", Domain: "example.com",
		PackageName: "standard", Status: models.HostingAccountStatusActive, ExpiryDate: &expiry,
	}
	require.NoError(t, f.db.Create(acct).Error)

	for i := 0; i < 2; i++ {
		rec, err := f.svc.Run(context.Background(), "hosting-expiry-notifications", models.JobTypeManual)
		require.NoError(t, err)
		require.Equal(t, models.JobStatusCompleted, rec.Status)
	}

	var notifs []models.ExpiryNotification
	require.NoError(t, f.db.Where("target_id = ?", acct.ID).Find(&notifs).Error)
	require.Len(t, notifs, 1)
	require.Equal(t, "3_day", notifs[0].NotificationType)
	require.Equal(t, models.NotificationTargetHostingAccount, notifs[0].TargetType)
}

func TestRetryDelay(t *testing.T) {
	require.Equal(t, 5*time.Minute, RetryDelay(1))
	require.Equal(t, 10*time.Minute, RetryDelay(2))
	require.Equal(t, 20*time.Minute, RetryDelay(3))
	require.LessOrEqual(t, RetryDelay(20), 6*time.Hour)
	require.Greater(t, RetryDelay(4), RetryDelay(3))
}

func TestProvisioningRetryJob(t *testing.T) {
	f := newFixture(t)

	server := &models.Server{
		ID: tool.GenerateUUIDV7(), Name: "web1", Hostname: "web1.example.com", IP: "10.0.0.1",
		PanelType: "cpanel", Status: models.ServerStatusActive, CurrentAccounts: 0, MaxAccounts: 10,
	}
	require.NoError(t, f.db.Create(server).Error)
	order := &models.Order{
		ID: tool.GenerateUUIDV7(), UserID: "user-1", Type: models.OrderTypeHosting,
		PlanName: "starter", DomainName: "retry.com", Status: models.OrderStatusPending,
	}
	require.NoError(t, f.db.Create(order).Error)

	item := &models.ProvisioningQueueItem{
		ID: tool.GenerateUUIDV7(), Type: models.QueueItemTypeHosting, RefID: order.ID,
		Priority: 1, Status: models.QueueItemStatusFailed, Attempts: 1, MaxAttempts: 3,
		LastError: "createacct: timeout", ScheduledAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, f.db.Create(item).Error)
	// Age the row past the first backoff step.
	require.NoError(t, f.db.Model(item).UpdateColumn("updated_at", time.Now().Add(-time.Hour)).Error)

	rec, err := f.svc.Run(context.Background(), "provisioning-retry", models.JobTypeManual)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCompleted, rec.Status)
	require.EqualValues(t, 1, rec.Metadata["retried"])

	var got models.ProvisioningQueueItem
	require.NoError(t, f.db.First(&got, "id = ?", item.ID).Error)
	require.Equal(t, models.QueueItemStatusCompleted, got.Status)
	require.Equal(t, 2, got.Attempts)
}

func TestProvisioningRetryJob_SkipsNoServerFailures(t *testing.T) {
	f := newFixture(t)

	item := &models.ProvisioningQueueItem{
		ID: tool.GenerateUUIDV7(), Type: models.QueueItemTypeHosting, RefID: tool.GenerateUUIDV7(),
		Priority: 1, Status: models.QueueItemStatusFailed, Attempts: 1, MaxAttempts: 3,
		LastError: "No available servers", ScheduledAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, f.db.Create(item).Error)
	require.NoError(t, f.db.Model(item).UpdateColumn("updated_at", time.Now().Add(-time.Hour)).Error)

	rec, err := f.svc.Run(context.Background(), "provisioning-retry", models.JobTypeManual)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCompleted, rec.Status)
	require.EqualValues(t, 0, rec.Metadata["retried"])

	var got models.ProvisioningQueueItem
	require.NoError(t, f.db.First(&got, "id = ?", item.ID).Error)
	require.Equal(t, models.QueueItemStatusFailed, got.Status)
}

func TestDriftSyncJobRecordsSummary(t *testing.T) {
	f := newFixture(t)
	expiry := time.Now().AddDate(1, 0, 0)
	seedDomain(t, f.db, "ok.com", expiry, false)
	f.cp.domainInfos = map[string]*panel.DomainInfo{
		"ok.com": {Status: "active", ExpiryDate: &expiry},
	}

	rec, err := f.svc.Run(context.Background(), "domain-drift-sync", models.JobTypeManual)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCompleted, rec.Status)
	require.EqualValues(t, 1, rec.Metadata["synced"])
}

func TestListRecords(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		_, err := f.svc.Run(context.Background(), "domain-drift-sync", models.JobTypeManual)
		require.NoError(t, err)
	}

	records, err := f.svc.ListRecords(context.Background(), "domain-drift-sync", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)

	all, err := f.svc.ListRecords(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
}
