package scheduler

import (
	"context"
	"fmt"

	"gorm.io/datatypes"

	"github.com/nimbushost/provisioner/internal/models"
	"github.com/nimbushost/provisioner/pkg/batch"
)

// driftSyncJob is the ledgered wrapper around the reconciliation engine.
func (s *Service) driftSyncJob(ctx context.Context) (datatypes.JSONMap, []string, error) {
	summary, err := s.syncSvc.SyncDomains(ctx, "")
	if err != nil {
		return nil, nil, err
	}
	meta := datatypes.JSONMap{
		"synced":     summary.Synced,
		"mismatches": summary.Mismatches,
		"failed":     summary.Failed,
	}
	return meta, summary.Errors, nil
}

// usageSyncJob refreshes resource counters for the stalest accounts.
func (s *Service) usageSyncJob(ctx context.Context) (datatypes.JSONMap, []string, error) {
	accounts, err := s.accountSvc.ActiveAccounts(ctx, 100)
	if err != nil {
		return nil, nil, err
	}

	var synced int
	res := batch.Run(ctx, accounts, func(ctx context.Context, a *models.HostingAccount) error {
		var server models.Server
		if err := s.db.WithContext(ctx).Where("id = ?", a.ServerID).First(&server).Error; err != nil {
			return fmt.Errorf("account %s: load server: %w", a.Domain, err)
		}
		if err := s.accountSvc.SyncUsage(ctx, a, &server); err != nil {
			return fmt.Errorf("account %s: %w", a.Domain, err)
		}
		synced++
		return nil
	})

	return datatypes.JSONMap{"synced": synced}, res.Errors(), nil
}
