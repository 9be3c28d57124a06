package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nimbushost/provisioner/internal/app/service/account"
	"github.com/nimbushost/provisioner/internal/app/service/domainsync"
	"github.com/nimbushost/provisioner/internal/app/service/provisioning"
	"github.com/nimbushost/provisioner/internal/app/service/renewal"
	"github.com/nimbushost/provisioner/internal/models"
	"github.com/nimbushost/provisioner/internal/platform/mailer"
	"github.com/nimbushost/provisioner/pkg/apperr"
	"github.com/nimbushost/provisioner/pkg/config"
	"github.com/nimbushost/provisioner/pkg/logctx"
	"github.com/nimbushost/provisioner/pkg/metrics"
	"github.com/nimbushost/provisioner/pkg/tool"
)

const lockTTL = 10 * time.Minute

// jobFn runs one batch pass and reports metadata counters plus the per-item
// error list. A returned error means the job failed outside its batch loop.
type jobFn func(ctx context.Context) (datatypes.JSONMap, []string, error)

type Service struct {
	cfg             *config.Config
	log             *zap.SugaredLogger
	db              *gorm.DB
	locker          *redislock.Client
	renewalSvc      *renewal.Service
	syncSvc         *domainsync.Service
	provisioningSvc *provisioning.Service
	accountSvc      *account.Service
	mail            mailer.Mailer
}

func NewService(
	cfg *config.Config,
	log *zap.SugaredLogger,
	db *gorm.DB,
	locker *redislock.Client,
	renewalSvc *renewal.Service,
	syncSvc *domainsync.Service,
	provisioningSvc *provisioning.Service,
	accountSvc *account.Service,
	mail mailer.Mailer,
) *Service {
	return &Service{
		cfg:             cfg,
		log:             log,
		db:              db,
		locker:          locker,
		renewalSvc:      renewalSvc,
		syncSvc:         syncSvc,
		provisioningSvc: provisioningSvc,
		accountSvc:      accountSvc,
		mail:            mail,
	}
}

func (s *Service) jobs() map[string]jobFn {
	return map[string]jobFn{
		"domain-expiry-notifications":  s.domainExpiryJob,
		"hosting-expiry-notifications": s.hostingExpiryJob,
		"domain-drift-sync":            s.driftSyncJob,
		"provisioning-retry":           s.provisioningRetryJob,
		"usage-sync":                   s.usageSyncJob,
	}
}

// JobNames lists the runnable jobs, for the HTTP trigger endpoint.
func (s *Service) JobNames() []string {
	names := make([]string, 0, len(s.jobs()))
	for name := range s.jobs() {
		names = append(names, name)
	}
	return names
}

// Run executes a named job under the ledger. Overlapping runs of the same job
// are serialized through redis when it is configured.
func (s *Service) Run(ctx context.Context, name string, jobType models.JobType) (*models.ScheduledJobRecord, error) {
	fn, ok := s.jobs()[name]
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("unknown job %s", name))
	}

	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, "job:"+name, lockTTL, nil)
		if err == redislock.ErrNotObtained {
			return nil, apperr.NotEligible(fmt.Sprintf("job %s is already running", name))
		}
		if err != nil {
			return nil, fmt.Errorf("obtain job lock: %w", err)
		}
		defer func() {
			if rErr := lock.Release(context.WithoutCancel(ctx)); rErr != nil && rErr != redislock.ErrLockNotHeld {
				s.log.Warnw("job lock release failed", "job", name, "err", rErr)
			}
		}()
	}

	return s.runLedgered(ctx, name, jobType, fn)
}

// runLedgered wraps fn with the job ledger: insert running, run, update once
// at completion. A panic or pre-loop failure marks the record failed; per-item
// errors downgrade it to completed_with_errors only.
func (s *Service) runLedgered(ctx context.Context, name string, jobType models.JobType, fn jobFn) (rec *models.ScheduledJobRecord, err error) {
	lg := logctx.FromCtx(ctx, s.log)

	rec = &models.ScheduledJobRecord{
		ID:        tool.GenerateUUIDV7(),
		JobName:   name,
		JobType:   jobType,
		Status:    models.JobStatusRunning,
		StartedAt: time.Now(),
		Metadata:  datatypes.JSONMap{},
	}
	if dbErr := s.db.WithContext(ctx).Create(rec).Error; dbErr != nil {
		return nil, fmt.Errorf("insert job record: %w", dbErr)
	}

	defer func() {
		if r := recover(); r != nil {
			lg.Errorw("job panicked", "job", name, "panic", r)
			s.finish(ctx, rec, models.JobStatusFailed, nil, fmt.Sprintf("panic: %v", r))
			err = fmt.Errorf("job %s panicked: %v", name, r)
		}
	}()

	meta, itemErrs, runErr := fn(ctx)
	if runErr != nil {
		s.finish(ctx, rec, models.JobStatusFailed, meta, runErr.Error())
		metrics.ObserveJob(name, string(models.JobStatusFailed), float64(time.Since(rec.StartedAt).Milliseconds()))
		return rec, runErr
	}

	status := models.JobStatusCompleted
	if len(itemErrs) > 0 {
		status = models.JobStatusCompletedWithErrors
	}
	if meta == nil {
		meta = datatypes.JSONMap{}
	}
	if len(itemErrs) > 0 {
		meta["errors"] = itemErrs
	}
	s.finish(ctx, rec, status, meta, "")
	metrics.ObserveJob(name, string(status), float64(time.Since(rec.StartedAt).Milliseconds()))
	lg.Infow("job finished", "job", name, "status", status, "errors", len(itemErrs))
	return rec, nil
}

func (s *Service) finish(ctx context.Context, rec *models.ScheduledJobRecord, status models.JobStatus, meta datatypes.JSONMap, errMsg string) {
	now := time.Now()
	rec.Status = status
	rec.CompletedAt = &now
	if meta != nil {
		rec.Metadata = meta
	}
	rec.ErrorMessage = errMsg
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		s.log.Errorw("job record update failed", "job", rec.JobName, "err", err)
	}
}

// ListRecords returns recent ledger rows, newest first.
func (s *Service) ListRecords(ctx context.Context, jobName string, limit int) ([]*models.ScheduledJobRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if jobName != "" {
		q = q.Where("job_name = ?", jobName)
	}
	var records []*models.ScheduledJobRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list job records: %w", err)
	}
	return records, nil
}
