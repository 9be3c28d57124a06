package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nimbushost/provisioner/internal/models"
)

// registerCron starts the in-process trigger for jobs with a configured cron
// expression. Deployments driving jobs from an external scheduler leave
// scheduler.enabled off and use the HTTP trigger instead.
func registerCron(lc fx.Lifecycle, log *zap.SugaredLogger, s *Service) {
	if !s.cfg.Scheduler.Enabled || len(s.cfg.Scheduler.Crons) == 0 {
		return
	}

	c := cron.New()
	for name, expr := range s.cfg.Scheduler.Crons {
		name := name
		if _, ok := s.jobs()[name]; !ok {
			log.Warnw("cron entry for unknown job", "job", name)
			continue
		}
		if _, err := c.AddFunc(expr, func() {
			if _, err := s.Run(context.Background(), name, models.JobTypeRecurring); err != nil {
				log.Errorw("scheduled job run failed", "job", name, "err", err)
			}
		}); err != nil {
			log.Errorw("invalid cron expression", "job", name, "expr", expr, "err", err)
		}
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting cron scheduler", "jobs", len(s.cfg.Scheduler.Crons))
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping cron scheduler")
			stopped := c.Stop()
			select {
			case <-stopped.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
}
