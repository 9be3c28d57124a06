package provisioning

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nimbushost/provisioner/internal/app/service/audit"
	"github.com/nimbushost/provisioner/internal/models"
	"github.com/nimbushost/provisioner/internal/platform/panel"
	"github.com/nimbushost/provisioner/pkg/apperr"
	"github.com/nimbushost/provisioner/pkg/config"
	"github.com/nimbushost/provisioner/pkg/tool"
)

type stubPanel struct {
	err   error
	calls int
}

func (p *stubPanel) CreateAccount(ctx context.Context, server *models.Server, req panel.CreateAccountRequest) (*panel.CreateAccountResult, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &panel.CreateAccountResult{Username: req.Username, Domain: req.Domain, IP: server.IP, Package: req.Package}, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Server{}, &models.Order{}, &models.HostingAccount{},
		&models.ProvisioningQueueItem{}, &models.ServerPackage{},
	))
	return db
}

func newTestService(t *testing.T, db *gorm.DB, api PanelAPI) *Service {
	t.Helper()
	cfg := &config.Config{
		Provisioning: config.ProvisioningConfig{MaxAttempts: 3, DefaultPackage: "standard"},
	}
	log := zap.NewNop().Sugar()
	return NewService(cfg, log, db, api, audit.NewService(cfg, log))
}

func seedOrder(t *testing.T, db *gorm.DB, domain string) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:         tool.GenerateUUIDV7(),
		UserID:     "user-1",
		Type:       models.OrderTypeHosting,
		PlanName:   "starter",
		DomainName: domain,
		Status:     models.OrderStatusPending,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func seedServer(t *testing.T, db *gorm.DB, current, max int) *models.Server {
	t.Helper()
	server := &models.Server{
		ID:              tool.GenerateUUIDV7(),
		Name:            "web1",
		Hostname:        "web1.example.com",
		IP:              "10.0.0.1",
		PanelType:       "cpanel",
		Status:          models.ServerStatusActive,
		CurrentAccounts: current,
		MaxAccounts:     max,
	}
	require.NoError(t, db.Create(server).Error)
	return server
}

func TestProvisionOrder_Success(t *testing.T) {
	db := newTestDB(t)
	api := &stubPanel{}
	svc := newTestService(t, db, api)
	order := seedOrder(t, db, "example.com")
	server := seedServer(t, db, 3, 10)

	res, err := svc.ProvisionOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, "example", res.ProviderUsername)
	require.Equal(t, "example.com", res.Domain)
	require.Equal(t, "10.0.0.1", res.ServerIP)

	var account models.HostingAccount
	require.NoError(t, db.Where("order_id = ?", order.ID).First(&account).Error)
	require.Equal(t, models.HostingAccountStatusActive, account.Status)
	require.NotNil(t, account.ExpiryDate)

	var got models.Order
	require.NoError(t, db.First(&got, "id = ?", order.ID).Error)
	require.Equal(t, models.OrderStatusCompleted, got.Status)
	require.NotNil(t, got.StartDate)

	var sv models.Server
	require.NoError(t, db.First(&sv, "id = ?", server.ID).Error)
	require.Equal(t, 4, sv.CurrentAccounts)

	var item models.ProvisioningQueueItem
	require.NoError(t, db.Where("ref_id = ?", order.ID).First(&item).Error)
	require.Equal(t, models.QueueItemStatusCompleted, item.Status)
	require.Equal(t, 1, item.Attempts)
}

func TestProvisionOrder_Idempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, &stubPanel{})
	order := seedOrder(t, db, "example.com")
	seedServer(t, db, 0, 10)

	_, err := svc.ProvisionOrder(context.Background(), order.ID)
	require.NoError(t, err)

	_, err = svc.ProvisionOrder(context.Background(), order.ID)
	require.Error(t, err)
	require.Equal(t, apperr.CodeNotEligible, apperr.CodeOf(err))

	var count int64
	require.NoError(t, db.Model(&models.HostingAccount{}).Where("order_id = ?", order.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestProvisionOrder_NonHostingOrder(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, &stubPanel{})
	order := &models.Order{
		ID: tool.GenerateUUIDV7(), UserID: "user-1", Type: models.OrderTypeDomain,
		PlanName: "na", DomainName: "example.com", Status: models.OrderStatusPending,
	}
	require.NoError(t, db.Create(order).Error)

	_, err := svc.ProvisionOrder(context.Background(), order.ID)
	require.Equal(t, apperr.CodeNotEligible, apperr.CodeOf(err))
}

func TestProvisionOrder_NoAvailableServers(t *testing.T) {
	db := newTestDB(t)
	api := &stubPanel{}
	svc := newTestService(t, db, api)
	order := seedOrder(t, db, "example.com")
	seedServer(t, db, 10, 10) // full

	_, err := svc.ProvisionOrder(context.Background(), order.ID)
	require.Error(t, err)
	require.Zero(t, api.calls)

	var item models.ProvisioningQueueItem
	require.NoError(t, db.Where("ref_id = ?", order.ID).First(&item).Error)
	require.Equal(t, models.QueueItemStatusFailed, item.Status)
	require.Equal(t, "No available servers", item.LastError)
}

func TestProvisionOrder_ProviderFailureThenRetry(t *testing.T) {
	db := newTestDB(t)
	api := &stubPanel{err: errors.New("createacct: disk full")}
	svc := newTestService(t, db, api)
	order := seedOrder(t, db, "example.com")
	seedServer(t, db, 0, 10)

	_, err := svc.ProvisionOrder(context.Background(), order.ID)
	require.Error(t, err)

	var item models.ProvisioningQueueItem
	require.NoError(t, db.Where("ref_id = ?", order.ID).First(&item).Error)
	require.Equal(t, models.QueueItemStatusFailed, item.Status)
	require.Equal(t, 1, item.Attempts)
	require.Contains(t, item.LastError, "disk full")

	var count int64
	require.NoError(t, db.Model(&models.HostingAccount{}).Count(&count).Error)
	require.Zero(t, count)

	// Re-invocation reuses the same queue row.
	api.err = nil
	_, err = svc.ProvisionOrder(context.Background(), order.ID)
	require.NoError(t, err)

	var items []models.ProvisioningQueueItem
	require.NoError(t, db.Where("ref_id = ?", order.ID).Find(&items).Error)
	require.Len(t, items, 1)
	require.Equal(t, models.QueueItemStatusCompleted, items[0].Status)
	require.Equal(t, 2, items[0].Attempts)
}

func TestProvisionOrder_SelectsLeastLoadedServer(t *testing.T) {
	db := newTestDB(t)
	api := &stubPanel{}
	svc := newTestService(t, db, api)
	order := seedOrder(t, db, "example.com")
	seedServer(t, db, 9, 10)
	light := seedServer(t, db, 1, 10)

	res, err := svc.ProvisionOrder(context.Background(), order.ID)
	require.NoError(t, err)

	var account models.HostingAccount
	require.NoError(t, db.Where("id = ?", res.HostingAccountID).First(&account).Error)
	require.Equal(t, light.ID, account.ServerID)
}

func TestDeriveUsername(t *testing.T) {
	cases := []struct {
		domain string
		want   string
	}{
		{"example.com", "example"},
		{"my-long-domain-name.co.uk", "mylongdo"},
		{"123shop.com", "a123shop"},
		{"ACME.org", "acme"},
		{"---.com", "site"},
		{"", "site"},
	}
	for _, tc := range cases {
		t.Run(tc.domain, func(t *testing.T) {
			require.Equal(t, tc.want, DeriveUsername(tc.domain))
		})
	}
}
