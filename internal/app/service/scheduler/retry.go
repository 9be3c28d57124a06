package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/datatypes"

	"github.com/nimbushost/provisioner/internal/models"
	"github.com/nimbushost/provisioner/pkg/batch"
)

const (
	retryInitialDelay = 5 * time.Minute
	retryMaxDelay     = 6 * time.Hour
)

// RetryDelay is the wait after the given number of failed attempts, walking
// an exponential schedule from 5 minutes up to the 6 hour cap.
func RetryDelay(attempts int) time.Duration {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialDelay
	bo.MaxInterval = retryMaxDelay
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0

	delay := bo.NextBackOff()
	for i := 1; i < attempts; i++ {
		delay = bo.NextBackOff()
	}
	return delay
}

// provisioningRetryJob re-drives failed hosting queue items whose backoff has
// elapsed. No-server failures are excluded: those need manual intervention,
// not retries.
func (s *Service) provisioningRetryJob(ctx context.Context) (datatypes.JSONMap, []string, error) {
	var items []*models.ProvisioningQueueItem
	err := s.db.WithContext(ctx).
		Where("type = ? AND status = ?", models.QueueItemTypeHosting, models.QueueItemStatusFailed).
		Where("attempts < max_attempts").
		Where("last_error <> ?", "No available servers").
		Order("updated_at ASC").
		Limit(50).
		Find(&items).Error
	if err != nil {
		return nil, nil, fmt.Errorf("list failed queue items: %w", err)
	}

	now := time.Now()
	var retried, skipped int
	res := batch.Run(ctx, items, func(ctx context.Context, item *models.ProvisioningQueueItem) error {
		if now.Sub(item.UpdatedAt) < RetryDelay(item.Attempts) {
			skipped++
			return nil
		}
		if _, err := s.provisioningSvc.ProvisionOrder(ctx, item.RefID); err != nil {
			return fmt.Errorf("order %s: %w", item.RefID, err)
		}
		retried++
		return nil
	})

	return datatypes.JSONMap{"retried": retried, "waiting": skipped}, res.Errors(), nil
}
