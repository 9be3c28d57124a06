package renewal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nimbushost/provisioner/internal/app/service/audit"
	"github.com/nimbushost/provisioner/internal/models"
	"github.com/nimbushost/provisioner/pkg/apperr"
	"github.com/nimbushost/provisioner/pkg/config"
	"github.com/nimbushost/provisioner/pkg/logctx"
	"github.com/nimbushost/provisioner/pkg/tool"
	"github.com/nimbushost/provisioner/pkg/types"
)

// Registrar is the slice of the registrar control plane renewals need.
type Registrar interface {
	Renew(ctx context.Context, domainName string, years int) error
}

type RenewRequest struct {
	DomainID    string
	Years       int
	RenewalType models.RenewalType
	PaymentID   string
}

type Result struct {
	ID            string          `json:"id"`
	DomainName    string          `json:"domain_name"`
	NewExpiryDate time.Time       `json:"new_expiry_date"`
	Amount        decimal.Decimal `json:"amount"`
}

type Service struct {
	cfg       *config.Config
	log       *zap.SugaredLogger
	db        *gorm.DB
	registrar Registrar
	auditSvc  *audit.Service
}

func NewService(cfg *config.Config, log *zap.SugaredLogger, db *gorm.DB, registrar Registrar, auditSvc *audit.Service) *Service {
	return &Service{cfg: cfg, log: log, db: db, registrar: registrar, auditSvc: auditSvc}
}

// NewExpiry extends from the current expiry when it is still in the future,
// otherwise from now: renewing an already-expired domain never back-dates it.
func NewExpiry(current *time.Time, now time.Time, years int) time.Time {
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	return base.AddDate(years, 0, 0)
}

// Renew extends a domain by N years. The renewal row and its queue entry are
// written before the registrar call so a crash mid-call is observable.
func (s *Service) Renew(ctx context.Context, actor types.Actor, req RenewRequest) (*Result, error) {
	lg := logctx.FromCtx(ctx, s.log)
	if req.Years <= 0 {
		req.Years = 1
	}
	if req.RenewalType == "" {
		req.RenewalType = models.RenewalTypeManual
	}

	var domain models.Domain
	if err := s.db.WithContext(ctx).Where("id = ?", req.DomainID).First(&domain).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(fmt.Sprintf("domain %s not found", req.DomainID))
		}
		return nil, fmt.Errorf("load domain: %w", err)
	}
	if !actor.Owns(domain.UserID) {
		return nil, apperr.AccessDenied("not allowed to renew this domain")
	}
	if !domain.Status.Renewable() {
		return nil, apperr.NotEligible(fmt.Sprintf("domain %s in status %s is not renewable", domain.Name, domain.Status))
	}

	amount := s.renewalPrice(ctx, domain.Extension).Mul(decimal.NewFromInt(int64(req.Years)))

	now := time.Now()
	newExpiry := NewExpiry(domain.ExpiryDate, now, req.Years)

	renewal := &models.DomainRenewal{
		ID:             tool.GenerateUUIDV7(),
		DomainID:       domain.ID,
		RenewalType:    req.RenewalType,
		PeriodYears:    req.Years,
		Amount:         amount,
		PreviousExpiry: domain.ExpiryDate,
		NewExpiry:      &newExpiry,
		Status:         models.RenewalStatusPending,
		PaymentID:      req.PaymentID,
	}
	if err := s.db.WithContext(ctx).Create(renewal).Error; err != nil {
		return nil, fmt.Errorf("create renewal row: %w", err)
	}

	item := &models.ProvisioningQueueItem{
		ID:          tool.GenerateUUIDV7(),
		Type:        models.QueueItemTypeDomainRenewal,
		RefID:       renewal.ID,
		Priority:    2,
		Status:      models.QueueItemStatusProcessing,
		MaxAttempts: 1,
		ScheduledAt: now,
		StartedAt:   &now,
	}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, fmt.Errorf("create renewal queue item: %w", err)
	}

	if err := s.registrar.Renew(ctx, domain.Name, req.Years); err != nil {
		s.recordFailure(ctx, &domain, renewal, item, req.RenewalType, err)
		return nil, apperr.RenewalFailed(fmt.Sprintf("renewal of %s failed", domain.Name), err)
	}

	domainUpdates := map[string]any{
		"status":                    models.DomainStatusActive,
		"expiry_date":               newExpiry,
		"last_renewed_at":           now,
		"auto_renew_failed_at":      nil,
		"auto_renew_failure_reason": "",
		"sync_status":               models.DomainSyncStatusSynced,
	}
	if err := s.db.WithContext(ctx).Model(&models.Domain{}).Where("id = ?", domain.ID).Updates(domainUpdates).Error; err != nil {
		return nil, fmt.Errorf("extend domain expiry: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.DomainRenewal{}).Where("id = ?", renewal.ID).
		Update("status", models.RenewalStatusCompleted).Error; err != nil {
		lg.Errorw("renewal completion update failed", "renewal_id", renewal.ID, "err", err)
	}
	completed := time.Now()
	if err := s.db.WithContext(ctx).Model(&models.ProvisioningQueueItem{}).Where("id = ?", item.ID).
		Updates(map[string]any{"status": models.QueueItemStatusCompleted, "attempts": 1, "completed_at": completed}).Error; err != nil {
		lg.Errorw("renewal queue item update failed", "item_id", item.ID, "err", err)
	}

	s.auditSvc.Emit(ctx, audit.Event{
		ActorID:    actor.UserID,
		ActorRole:  actor.Role(),
		ActionType: "domain.renewed",
		TargetType: "domain",
		TargetID:   domain.ID,
		Metadata: map[string]any{
			"renewal_id": renewal.ID,
			"type":       string(req.RenewalType),
			"years":      req.Years,
			"new_expiry": newExpiry,
		},
	})
	lg.Infow("domain renewed", "domain", domain.Name, "years", req.Years, "new_expiry", newExpiry)

	return &Result{ID: renewal.ID, DomainName: domain.Name, NewExpiryDate: newExpiry, Amount: amount}, nil
}

func (s *Service) recordFailure(ctx context.Context, domain *models.Domain, renewal *models.DomainRenewal, item *models.ProvisioningQueueItem, renewalType models.RenewalType, cause error) {
	lg := logctx.FromCtx(ctx, s.log)
	if err := s.db.WithContext(ctx).Model(&models.DomainRenewal{}).Where("id = ?", renewal.ID).
		Updates(map[string]any{"status": models.RenewalStatusFailed, "failure_reason": cause.Error()}).Error; err != nil {
		lg.Errorw("renewal failure update failed", "renewal_id", renewal.ID, "err", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.ProvisioningQueueItem{}).Where("id = ?", item.ID).
		Updates(map[string]any{"status": models.QueueItemStatusFailed, "attempts": 1, "last_error": cause.Error()}).Error; err != nil {
		lg.Errorw("renewal queue item failure update failed", "item_id", item.ID, "err", err)
	}
	if renewalType == models.RenewalTypeAuto {
		// Surfaced by the notification scheduler instead of retrying forever.
		if err := s.db.WithContext(ctx).Model(&models.Domain{}).Where("id = ?", domain.ID).
			Updates(map[string]any{"auto_renew_failed_at": time.Now(), "auto_renew_failure_reason": cause.Error()}).Error; err != nil {
			lg.Errorw("auto-renew failure stamp failed", "domain_id", domain.ID, "err", err)
		}
	}
}

// renewalPrice looks up the active per-extension price, falling back to the
// configured default when no row exists.
func (s *Service) renewalPrice(ctx context.Context, extension string) decimal.Decimal {
	var pricing models.DomainPricing
	err := s.db.WithContext(ctx).
		Where("extension = ? AND active = ?", extension, true).
		First(&pricing).Error
	if err == nil {
		return pricing.RenewalPrice
	}
	def, derr := decimal.NewFromString(s.cfg.Renewal.DefaultPrice)
	if derr != nil {
		logctx.FromCtx(ctx, s.log).Warnw("invalid default renewal price", "value", s.cfg.Renewal.DefaultPrice)
		return decimal.NewFromInt(0)
	}
	return def
}
