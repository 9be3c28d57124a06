package domainsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nimbushost/provisioner/internal/models"
	"github.com/nimbushost/provisioner/internal/platform/panel"
	"github.com/nimbushost/provisioner/pkg/apperr"
	"github.com/nimbushost/provisioner/pkg/batch"
	"github.com/nimbushost/provisioner/pkg/logctx"
	"github.com/nimbushost/provisioner/pkg/tool"
)

// BatchSize bounds per-run cost; repeated runs cover the whole domain set
// because selection is stalest-first.
const BatchSize = 100

// Registrar is the slice of the registrar control plane reconciliation needs.
type Registrar interface {
	GetDomainInfo(ctx context.Context, domainName string) (*panel.DomainInfo, error)
}

type Summary struct {
	Synced     int      `json:"synced"`
	Mismatches int      `json:"mismatches"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

type Service struct {
	log       *zap.SugaredLogger
	db        *gorm.DB
	registrar Registrar
}

func NewService(log *zap.SugaredLogger, db *gorm.DB, registrar Registrar) *Service {
	return &Service{log: log, db: db, registrar: registrar}
}

// SyncDomains reconciles either one domain or the stalest batch. Mismatches
// are recorded, never corrected: fixing drift is a separate explicit action.
func (s *Service) SyncDomains(ctx context.Context, domainID string) (*Summary, error) {
	domains, err := s.selectDomains(ctx, domainID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	res := batch.Run(ctx, domains, func(ctx context.Context, d *models.Domain) error {
		status, err := s.syncOne(ctx, d)
		if err != nil {
			return fmt.Errorf("domain %s: %w", d.Name, err)
		}
		if status == models.SyncLogStatusMismatchDetected {
			summary.Mismatches++
		} else {
			summary.Synced++
		}
		return nil
	})
	summary.Failed = len(res.Failed)
	summary.Errors = res.Errors()
	return summary, nil
}

func (s *Service) selectDomains(ctx context.Context, domainID string) ([]*models.Domain, error) {
	if domainID != "" {
		var d models.Domain
		if err := s.db.WithContext(ctx).Where("id = ?", domainID).First(&d).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.NotFound(fmt.Sprintf("domain %s not found", domainID))
			}
			return nil, fmt.Errorf("load domain: %w", err)
		}
		return []*models.Domain{&d}, nil
	}

	var domains []*models.Domain
	err := s.db.WithContext(ctx).
		Where("status IN ?", models.RenewableStatuses).
		Order("last_synced_at ASC NULLS FIRST").
		Limit(BatchSize).
		Find(&domains).Error
	if err != nil {
		return nil, fmt.Errorf("list domains for sync: %w", err)
	}
	return domains, nil
}

// syncOne produces exactly one sync log row for the domain, success or not.
func (s *Service) syncOne(ctx context.Context, d *models.Domain) (models.SyncLogStatus, error) {
	lg := logctx.FromCtx(ctx, s.log)
	now := time.Now()

	remote, err := s.registrar.GetDomainInfo(ctx, d.Name)
	if err != nil {
		s.writeLog(ctx, d, models.SyncLogStatusFailed, nil, nil, err.Error())
		s.updateDomain(ctx, d.ID, models.DomainSyncStatusFailed, now)
		return models.SyncLogStatusFailed, err
	}

	mismatches := Diff(d, remote)
	if len(mismatches) > 0 {
		lg.Warnw("domain drift detected", "domain", d.Name, "fields", len(mismatches))
		s.writeLog(ctx, d, models.SyncLogStatusMismatchDetected, remote, mismatches, "")
		s.updateDomain(ctx, d.ID, models.DomainSyncStatusMismatch, now)
		return models.SyncLogStatusMismatchDetected, nil
	}

	s.writeLog(ctx, d, models.SyncLogStatusSuccess, remote, nil, "")
	s.updateDomain(ctx, d.ID, models.DomainSyncStatusSynced, now)
	return models.SyncLogStatusSuccess, nil
}

func (s *Service) updateDomain(ctx context.Context, id string, status models.DomainSyncStatus, at time.Time) {
	if err := s.db.WithContext(ctx).Model(&models.Domain{}).Where("id = ?", id).
		Updates(map[string]any{"sync_status": status, "last_synced_at": at}).Error; err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("domain sync status update failed", "domain_id", id, "err", err)
	}
}

func (s *Service) writeLog(ctx context.Context, d *models.Domain, status models.SyncLogStatus, remote *panel.DomainInfo, mismatches map[string]models.FieldMismatch, errMsg string) {
	localSnap, _ := json.Marshal(map[string]any{
		"status":              d.Status,
		"expiry_date":         d.ExpiryDate,
		"nameservers":         localNameservers(d),
		"registrar_domain_id": d.RegistrarDomainID,
	})
	providerSnap := []byte("{}")
	if remote != nil {
		providerSnap, _ = json.Marshal(remote)
	}
	if mismatches == nil {
		mismatches = map[string]models.FieldMismatch{}
	}

	row := &models.DomainSyncLog{
		ID:               tool.GenerateUUIDV7(),
		DomainID:         d.ID,
		SyncType:         "registrar",
		Status:           status,
		LocalSnapshot:    datatypes.JSON(localSnap),
		ProviderSnapshot: datatypes.JSON(providerSnap),
		Mismatches:       datatypes.NewJSONType(mismatches),
		ErrorMessage:     errMsg,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("sync log insert failed", "domain_id", d.ID, "err", err)
	}
}
