package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nimbushost/provisioner/internal/app/service/audit"
	"github.com/nimbushost/provisioner/internal/models"
	"github.com/nimbushost/provisioner/internal/platform/panel"
	"github.com/nimbushost/provisioner/pkg/apperr"
	"github.com/nimbushost/provisioner/pkg/config"
	"github.com/nimbushost/provisioner/pkg/logctx"
	"github.com/nimbushost/provisioner/pkg/tool"
)

const noAvailableServers = "No available servers"

// PanelAPI is the slice of the account-management control plane the
// orchestrator needs.
type PanelAPI interface {
	CreateAccount(ctx context.Context, server *models.Server, req panel.CreateAccountRequest) (*panel.CreateAccountResult, error)
}

// ProvisionResult is returned to the API caller on success.
type ProvisionResult struct {
	HostingAccountID string `json:"hostingAccountId"`
	ProviderUsername string `json:"providerUsername"`
	Domain           string `json:"domain"`
	ServerIP         string `json:"serverIp"`
}

type Service struct {
	cfg      *config.Config
	log      *zap.SugaredLogger
	db       *gorm.DB
	panelAPI PanelAPI
	auditSvc *audit.Service
}

func NewService(cfg *config.Config, log *zap.SugaredLogger, db *gorm.DB, panelAPI PanelAPI, auditSvc *audit.Service) *Service {
	return &Service{cfg: cfg, log: log, db: db, panelAPI: panelAPI, auditSvc: auditSvc}
}

// ProvisionOrder creates the hosting account for a pending hosting order.
// Safe to re-invoke after a failure: the existing-account guard prevents
// double provisioning and the order's queue item is reused, so attempts
// accumulate on one row.
func (s *Service) ProvisionOrder(ctx context.Context, orderID string) (*ProvisionResult, error) {
	lg := logctx.FromCtx(ctx, s.log)

	var order models.Order
	if err := s.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(fmt.Sprintf("order %s not found", orderID))
		}
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order.Type != models.OrderTypeHosting {
		return nil, apperr.NotEligible(fmt.Sprintf("order %s is not a hosting order", orderID))
	}

	var existing models.HostingAccount
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&existing).Error
	if err == nil {
		return nil, apperr.NotEligible(fmt.Sprintf("order %s already has hosting account %s", orderID, existing.ID))
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check existing account: %w", err)
	}

	server, err := s.selectServer(ctx)
	if err != nil {
		// Terminal: a failed queue row is left behind for manual intervention,
		// not for the retry job.
		item := s.newQueueItem(&order, nil)
		item.Status = models.QueueItemStatusFailed
		item.LastError = noAvailableServers
		if dbErr := s.db.WithContext(ctx).Create(item).Error; dbErr != nil {
			lg.Errorw("failed to record no-server queue item", "order_id", orderID, "err", dbErr)
		}
		return nil, err
	}

	item, err := s.claimQueueItem(ctx, &order, server)
	if err != nil {
		return nil, err
	}

	username := DeriveUsername(order.DomainName)
	pkg := s.resolvePackage(ctx, server.ID, order.PlanName)

	created, err := s.panelAPI.CreateAccount(ctx, server, panel.CreateAccountRequest{
		Username: username,
		Domain:   order.DomainName,
		Package:  pkg,
		Email:    "admin@" + order.DomainName,
	})
	if err != nil {
		s.failQueueItem(ctx, item, err)
		return nil, err
	}

	// Post-creation writes are sequential, not transactional: a crash between
	// them leaves the order completed without the server counter bump, which
	// is reconciled by manual audit.
	now := time.Now()
	account := &models.HostingAccount{
		ID:          tool.GenerateUUIDV7(),
		UserID:      order.UserID,
		OrderID:     order.ID,
		ServerID:    server.ID,
		Username:    created.Username,
		Domain:      order.DomainName,
		PackageName: pkg,
		Status:      models.HostingAccountStatusActive,
		ExpiryDate:  lo.ToPtr(now.AddDate(1, 0, 0)),
	}
	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		s.failQueueItem(ctx, item, err)
		return nil, fmt.Errorf("persist hosting account: %w", err)
	}

	orderUpdates := map[string]any{
		"status":      models.OrderStatusCompleted,
		"start_date":  now,
		"expiry_date": now.AddDate(1, 0, 0),
	}
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", order.ID).Updates(orderUpdates).Error; err != nil {
		lg.Errorw("order completion update failed", "order_id", order.ID, "err", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Server{}).Where("id = ?", server.ID).
		UpdateColumn("current_accounts", gorm.Expr("current_accounts + 1")).Error; err != nil {
		lg.Errorw("server counter increment failed", "server_id", server.ID, "err", err)
	}
	s.completeQueueItem(ctx, item)

	s.auditSvc.Emit(ctx, audit.Event{
		ActionType: "hosting_account.provisioned",
		TargetType: "hosting_account",
		TargetID:   account.ID,
		Metadata:   map[string]any{"order_id": order.ID, "server_id": server.ID, "username": created.Username},
	})
	lg.Infow("order provisioned",
		"order_id", order.ID, "account_id", account.ID, "server", server.Hostname, "username", created.Username)

	return &ProvisionResult{
		HostingAccountID: account.ID,
		ProviderUsername: created.Username,
		Domain:           order.DomainName,
		ServerIP:         created.IP,
	}, nil
}

// selectServer picks the least-loaded active server with spare capacity.
func (s *Service) selectServer(ctx context.Context) (*models.Server, error) {
	var servers []*models.Server
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.ServerStatusActive).
		Find(&servers).Error; err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}

	eligible := lo.Filter(servers, func(sv *models.Server, _ int) bool { return sv.HasCapacity() })
	if len(eligible) == 0 {
		return nil, apperr.Provider(noAvailableServers, nil)
	}
	return lo.MinBy(eligible, func(a, b *models.Server) bool { return a.LoadRatio() < b.LoadRatio() }), nil
}

// claimQueueItem reuses the order's open queue item if one exists, so repeated
// attempts accumulate on a single row; otherwise it creates one. The row is in
// processing before the provider call, making a mid-call crash observable.
func (s *Service) claimQueueItem(ctx context.Context, order *models.Order, server *models.Server) (*models.ProvisioningQueueItem, error) {
	var item models.ProvisioningQueueItem
	err := s.db.WithContext(ctx).
		Where("type = ? AND ref_id = ? AND status IN ?", models.QueueItemTypeHosting, order.ID,
			[]models.QueueItemStatus{models.QueueItemStatusPending, models.QueueItemStatusFailed, models.QueueItemStatusRetry}).
		First(&item).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load queue item: %w", err)
	}

	now := time.Now()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fresh := s.newQueueItem(order, server)
		fresh.Status = models.QueueItemStatusProcessing
		fresh.StartedAt = &now
		if err := s.db.WithContext(ctx).Create(fresh).Error; err != nil {
			return nil, fmt.Errorf("create queue item: %w", err)
		}
		return fresh, nil
	}

	if item.Status == models.QueueItemStatusFailed {
		// failed -> retry -> processing keeps the transition table honest
		item.Status = models.QueueItemStatusRetry
	}
	item.Status = models.QueueItemStatusProcessing
	item.ServerID = &server.ID
	item.StartedAt = &now
	if err := s.db.WithContext(ctx).Save(&item).Error; err != nil {
		return nil, fmt.Errorf("claim queue item: %w", err)
	}
	return &item, nil
}

func (s *Service) newQueueItem(order *models.Order, server *models.Server) *models.ProvisioningQueueItem {
	item := &models.ProvisioningQueueItem{
		ID:          tool.GenerateUUIDV7(),
		Type:        models.QueueItemTypeHosting,
		RefID:       order.ID,
		Priority:    1,
		Status:      models.QueueItemStatusPending,
		MaxAttempts: s.cfg.Provisioning.MaxAttempts,
		ScheduledAt: time.Now(),
	}
	if server != nil {
		item.ServerID = &server.ID
	}
	return item
}

func (s *Service) failQueueItem(ctx context.Context, item *models.ProvisioningQueueItem, cause error) {
	item.Attempts++
	item.Status = models.QueueItemStatusFailed
	item.LastError = cause.Error()
	if err := s.db.WithContext(ctx).Save(item).Error; err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("queue item failure update failed", "item_id", item.ID, "err", err)
	}
}

func (s *Service) completeQueueItem(ctx context.Context, item *models.ProvisioningQueueItem) {
	now := time.Now()
	item.Attempts++
	item.Status = models.QueueItemStatusCompleted
	item.CompletedAt = &now
	if err := s.db.WithContext(ctx).Save(item).Error; err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("queue item completion update failed", "item_id", item.ID, "err", err)
	}
}

func (s *Service) resolvePackage(ctx context.Context, serverID, planName string) string {
	var mapping models.ServerPackage
	err := s.db.WithContext(ctx).
		Where("server_id = ? AND plan_name = ?", serverID, planName).
		First(&mapping).Error
	if err != nil {
		return s.cfg.Provisioning.DefaultPackage
	}
	return mapping.PackageName
}

// DeriveUsername builds the provider account name deterministically from the
// domain: lowercase alphanumerics only, letter-prefixed, at most 8 chars.
func DeriveUsername(domain string) string {
	base := domain
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		if unicode.IsLower(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" {
		name = "site"
	}
	if unicode.IsDigit(rune(name[0])) {
		name = "a" + name
	}
	if len(name) > 8 {
		name = name[:8]
	}
	return name
}
