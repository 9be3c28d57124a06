package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nimbushost/provisioner/internal/app/service/audit"
	"github.com/nimbushost/provisioner/internal/models"
	"github.com/nimbushost/provisioner/internal/platform/panel"
	"github.com/nimbushost/provisioner/pkg/apperr"
	"github.com/nimbushost/provisioner/pkg/logctx"
	"github.com/nimbushost/provisioner/pkg/types"
)

// PanelAPI is the slice of the account-management control plane used by
// lifecycle operations.
type PanelAPI interface {
	SuspendAccount(ctx context.Context, server *models.Server, username, reason string) error
	UnsuspendAccount(ctx context.Context, server *models.Server, username string) error
	TerminateAccount(ctx context.Context, server *models.Server, username string) error
}

// UsageAPI is the slice of the per-account control plane used by usage sync.
type UsageAPI interface {
	GetUsage(ctx context.Context, server *models.Server, username string) (*panel.Usage, error)
}

type Service struct {
	log      *zap.SugaredLogger
	db       *gorm.DB
	panelAPI PanelAPI
	usageAPI UsageAPI
	auditSvc *audit.Service
}

func NewService(log *zap.SugaredLogger, db *gorm.DB, panelAPI PanelAPI, usageAPI UsageAPI, auditSvc *audit.Service) *Service {
	return &Service{log: log, db: db, panelAPI: panelAPI, usageAPI: usageAPI, auditSvc: auditSvc}
}

// Resolve loads an account and its server, enforcing ownership before any
// provider interaction can happen.
func (s *Service) Resolve(ctx context.Context, actor types.Actor, accountID string) (*models.HostingAccount, *models.Server, error) {
	var account models.HostingAccount
	if err := s.db.WithContext(ctx).Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound(fmt.Sprintf("hosting account %s not found", accountID))
		}
		return nil, nil, fmt.Errorf("load hosting account: %w", err)
	}
	if !actor.Owns(account.UserID) {
		return nil, nil, apperr.AccessDenied("not allowed to manage this hosting account")
	}
	var server models.Server
	if err := s.db.WithContext(ctx).Where("id = ?", account.ServerID).First(&server).Error; err != nil {
		return nil, nil, fmt.Errorf("load server for account %s: %w", accountID, err)
	}
	return &account, &server, nil
}

// Suspend calls the provider first and mutates the local row only on provider
// success: local state lags the provider, never leads it.
func (s *Service) Suspend(ctx context.Context, actor types.Actor, accountID, reason string) error {
	account, server, err := s.Resolve(ctx, actor, accountID)
	if err != nil {
		return err
	}
	if !account.Status.CanTransition(models.HostingAccountStatusSuspended) {
		return apperr.NotEligible(fmt.Sprintf("cannot suspend account in status %s", account.Status))
	}

	if err := s.panelAPI.SuspendAccount(ctx, server, account.Username, reason); err != nil {
		return err
	}

	now := time.Now()
	updates := map[string]any{
		"status":            models.HostingAccountStatusSuspended,
		"suspended_at":      now,
		"suspension_reason": reason,
	}
	if err := s.db.WithContext(ctx).Model(&models.HostingAccount{}).Where("id = ?", accountID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update suspended account: %w", err)
	}
	s.emit(ctx, actor, "hosting_account.suspended", accountID, map[string]any{"reason": reason})
	return nil
}

func (s *Service) Unsuspend(ctx context.Context, actor types.Actor, accountID string) error {
	account, server, err := s.Resolve(ctx, actor, accountID)
	if err != nil {
		return err
	}
	if !account.Status.CanTransition(models.HostingAccountStatusActive) {
		return apperr.NotEligible(fmt.Sprintf("cannot unsuspend account in status %s", account.Status))
	}

	if err := s.panelAPI.UnsuspendAccount(ctx, server, account.Username); err != nil {
		return err
	}

	updates := map[string]any{
		"status":            models.HostingAccountStatusActive,
		"suspended_at":      nil,
		"suspension_reason": "",
	}
	if err := s.db.WithContext(ctx).Model(&models.HostingAccount{}).Where("id = ?", accountID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update unsuspended account: %w", err)
	}
	s.emit(ctx, actor, "hosting_account.unsuspended", accountID, nil)
	return nil
}

func (s *Service) Terminate(ctx context.Context, actor types.Actor, accountID string) error {
	account, server, err := s.Resolve(ctx, actor, accountID)
	if err != nil {
		return err
	}
	if !account.Status.CanTransition(models.HostingAccountStatusTerminated) {
		return apperr.NotEligible(fmt.Sprintf("cannot terminate account in status %s", account.Status))
	}

	if err := s.panelAPI.TerminateAccount(ctx, server, account.Username); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(&models.HostingAccount{}).Where("id = ?", accountID).
		Update("status", models.HostingAccountStatusTerminated).Error; err != nil {
		return fmt.Errorf("update terminated account: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Server{}).Where("id = ? AND current_accounts > 0", server.ID).
		UpdateColumn("current_accounts", gorm.Expr("current_accounts - 1")).Error; err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("server counter decrement failed", "server_id", server.ID, "err", err)
	}
	s.emit(ctx, actor, "hosting_account.terminated", accountID, nil)
	return nil
}

// SyncUsage refreshes resource counters from the per-account control plane.
func (s *Service) SyncUsage(ctx context.Context, account *models.HostingAccount, server *models.Server) error {
	usage, err := s.usageAPI.GetUsage(ctx, server, account.Username)
	if err != nil {
		return err
	}
	updates := map[string]any{
		"disk_used_mb":       usage.DiskUsedMB,
		"disk_limit_mb":      usage.DiskLimitMB,
		"bandwidth_used_mb":  usage.BandwidthUsedMB,
		"bandwidth_limit_mb": usage.BandwidthLimitMB,
		"mailbox_count":      usage.MailboxCount,
		"mailbox_limit":      usage.MailboxLimit,
		"database_count":     usage.DatabaseCount,
		"database_limit":     usage.DatabaseLimit,
		"last_synced_at":     time.Now(),
	}
	if err := s.db.WithContext(ctx).Model(&models.HostingAccount{}).Where("id = ?", account.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update usage for account %s: %w", account.ID, err)
	}
	return nil
}

// ActiveAccounts lists accounts eligible for usage sync, stalest first.
func (s *Service) ActiveAccounts(ctx context.Context, limit int) ([]*models.HostingAccount, error) {
	var accounts []*models.HostingAccount
	err := s.db.WithContext(ctx).
		Where("status IN ?", []models.HostingAccountStatus{models.HostingAccountStatusActive, models.HostingAccountStatusSuspended}).
		Order("last_synced_at ASC NULLS FIRST").
		Limit(limit).
		Find(&accounts).Error
	if err != nil {
		return nil, fmt.Errorf("list accounts for usage sync: %w", err)
	}
	return accounts, nil
}

func (s *Service) emit(ctx context.Context, actor types.Actor, action, targetID string, meta map[string]any) {
	s.auditSvc.Emit(ctx, audit.Event{
		ActorID:    actor.UserID,
		ActorRole:  actor.Role(),
		ActionType: action,
		TargetType: "hosting_account",
		TargetID:   targetID,
		Metadata:   meta,
	})
}
