package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"

	"github.com/nimbushost/provisioner/internal/app/service/renewal"
	"github.com/nimbushost/provisioner/internal/models"
	"github.com/nimbushost/provisioner/internal/platform/mailer"
	"github.com/nimbushost/provisioner/pkg/batch"
	"github.com/nimbushost/provisioner/pkg/logctx"
	"github.com/nimbushost/provisioner/pkg/tool"
	"github.com/nimbushost/provisioner/pkg/types"
)

// systemActor runs scheduler-driven renewals with administrative privilege.
var systemActor = types.Actor{UserID: "system", Admin: true}

func NotificationType(days int) string { return fmt.Sprintf("%d_day", days) }

// dayWindow returns the [start, end) bounds of the calendar day `days` from now.
func dayWindow(now time.Time, days int) (time.Time, time.Time) {
	target := now.AddDate(0, 0, days)
	start := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, target.Location())
	return start, start.Add(24 * time.Hour)
}

// sortedThresholds returns the configured thresholds highest-first with a
// fallback when config is empty.
func sortedThresholds(configured, fallback []int) []int {
	ts := configured
	if len(ts) == 0 {
		ts = fallback
	}
	ts = lo.Uniq(ts)
	sort.Sort(sort.Reverse(sort.IntSlice(ts)))
	return ts
}

func (s *Service) domainExpiryJob(ctx context.Context) (datatypes.JSONMap, []string, error) {
	thresholds := sortedThresholds(s.cfg.Scheduler.DomainThresholds, []int{30, 15, 7, 1})
	final := thresholds[len(thresholds)-1]
	now := time.Now()

	var notified, autoRenewed int
	var errs []string

	for _, days := range thresholds {
		start, end := dayWindow(now, days)
		var domains []*models.Domain
		err := s.db.WithContext(ctx).
			Where("status IN ?", models.RenewableStatuses).
			Where("expiry_date >= ? AND expiry_date < ?", start, end).
			Find(&domains).Error
		if err != nil {
			return nil, nil, fmt.Errorf("list domains expiring in %d days: %w", days, err)
		}

		days := days
		res := batch.Run(ctx, domains, func(ctx context.Context, d *models.Domain) error {
			sent, renewed, err := s.notifyDomain(ctx, d, days, days == final, &errs)
			if err != nil {
				return fmt.Errorf("domain %s: %w", d.Name, err)
			}
			if sent {
				notified++
			}
			if renewed {
				autoRenewed++
			}
			return nil
		})
		errs = append(errs, res.Errors()...)
	}

	return datatypes.JSONMap{"notified": notified, "auto_renewed": autoRenewed}, errs, nil
}

// notifyDomain handles one domain at one threshold. On the final threshold an
// auto-renewing domain gets a synchronous renewal attempt first; success
// replaces the expiry notice with an auto_renewed record.
func (s *Service) notifyDomain(ctx context.Context, d *models.Domain, days int, isFinal bool, softErrs *[]string) (sent bool, renewed bool, err error) {
	lg := logctx.FromCtx(ctx, s.log)

	if isFinal && d.AutoRenew {
		exists, err := s.notificationExists(ctx, models.NotificationTargetDomain, d.ID, models.NotificationTypeAutoRenewed)
		if err != nil {
			return false, false, err
		}
		if exists {
			return false, false, nil
		}

		_, renewErr := s.renewalSvc.Renew(ctx, systemActor, renewal.RenewRequest{
			DomainID:    d.ID,
			Years:       1,
			RenewalType: models.RenewalTypeAuto,
		})
		if renewErr == nil {
			notif, created, err := s.createNotification(ctx, models.NotificationTargetDomain, d.ID, d.UserID, models.NotificationTypeAutoRenewed, days)
			if err != nil {
				return false, true, err
			}
			if created {
				s.deliver(ctx, notif, "domain_auto_renewed", fmt.Sprintf("%s was renewed automatically", d.Name), map[string]any{
					"domain": d.Name,
				})
			}
			return false, true, nil
		}

		// Fall through to the plain expiry notice so the owner learns the
		// renewal did not happen.
		lg.Warnw("auto-renewal failed", "domain", d.Name, "err", renewErr)
		*softErrs = append(*softErrs, fmt.Sprintf("auto-renew %s: %v", d.Name, renewErr))
	}

	ntype := NotificationType(days)
	exists, err := s.notificationExists(ctx, models.NotificationTargetDomain, d.ID, ntype)
	if err != nil {
		return false, false, err
	}
	if exists {
		return false, false, nil
	}

	notif, created, err := s.createNotification(ctx, models.NotificationTargetDomain, d.ID, d.UserID, ntype, days)
	if err != nil {
		return false, false, err
	}
	if !created {
		return false, false, nil
	}
	s.deliver(ctx, notif, "domain_expiry_warning", fmt.Sprintf("%s expires in %d day(s)", d.Name, days), map[string]any{
		"domain":      d.Name,
		"days":        days,
		"expiry_date": d.ExpiryDate,
		"auto_renew":  d.AutoRenew,
	})
	return true, false, nil
}

func (s *Service) hostingExpiryJob(ctx context.Context) (datatypes.JSONMap, []string, error) {
	thresholds := sortedThresholds(s.cfg.Scheduler.HostingThresholds, []int{7, 3, 1})
	now := time.Now()

	var notified int
	var errs []string

	for _, days := range thresholds {
		start, end := dayWindow(now, days)
		var accounts []*models.HostingAccount
		err := s.db.WithContext(ctx).
			Where("status = ?", models.HostingAccountStatusActive).
			Where("expiry_date >= ? AND expiry_date < ?", start, end).
			Find(&accounts).Error
		if err != nil {
			return nil, nil, fmt.Errorf("list accounts expiring in %d days: %w", days, err)
		}

		days := days
		res := batch.Run(ctx, accounts, func(ctx context.Context, a *models.HostingAccount) error {
			ntype := NotificationType(days)
			exists, err := s.notificationExists(ctx, models.NotificationTargetHostingAccount, a.ID, ntype)
			if err != nil {
				return fmt.Errorf("account %s: %w", a.Domain, err)
			}
			if exists {
				return nil
			}
			notif, created, err := s.createNotification(ctx, models.NotificationTargetHostingAccount, a.ID, a.UserID, ntype, days)
			if err != nil {
				return fmt.Errorf("account %s: %w", a.Domain, err)
			}
			if !created {
				return nil
			}
			s.deliver(ctx, notif, "hosting_expiry_warning", fmt.Sprintf("Hosting for %s expires in %d day(s)", a.Domain, days), map[string]any{
				"domain": a.Domain,
				"days":   days,
			})
			notified++
			return nil
		})
		errs = append(errs, res.Errors()...)
	}

	return datatypes.JSONMap{"notified": notified}, errs, nil
}

func (s *Service) notificationExists(ctx context.Context, targetType models.NotificationTargetType, targetID, ntype string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ExpiryNotification{}).
		Where("target_type = ? AND target_id = ? AND notification_type = ?", targetType, targetID, ntype).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check notification: %w", err)
	}
	return count > 0, nil
}

// createNotification inserts the row behind the unique (target, type) index;
// a conflict means another run got there first and is a clean no-op.
func (s *Service) createNotification(ctx context.Context, targetType models.NotificationTargetType, targetID, userID, ntype string, days int) (*models.ExpiryNotification, bool, error) {
	notif := &models.ExpiryNotification{
		ID:               tool.GenerateUUIDV7(),
		TargetType:       targetType,
		TargetID:         targetID,
		UserID:           userID,
		NotificationType: ntype,
		DaysBeforeExpiry: days,
		Status:           models.NotificationStatusPending,
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "target_type"}, {Name: "target_id"}, {Name: "notification_type"}},
		DoNothing: true,
	}).Create(notif)
	if res.Error != nil {
		return nil, false, fmt.Errorf("create notification: %w", res.Error)
	}
	return notif, res.RowsAffected > 0, nil
}

// deliver hands the notification email to the mail collaborator and links the
// email log row. Delivery failures never fail the batch item; the pending
// notification row is the retry signal.
func (s *Service) deliver(ctx context.Context, notif *models.ExpiryNotification, template, subject string, data map[string]any) {
	lg := logctx.FromCtx(ctx, s.log)

	emailLog := &models.EmailLog{
		ID:       tool.GenerateUUIDV7(),
		UserID:   notif.UserID,
		Template: template,
		Subject:  subject,
		Status:   models.EmailLogStatusQueued,
	}
	if err := s.db.WithContext(ctx).Create(emailLog).Error; err != nil {
		lg.Errorw("email log insert failed", "notification_id", notif.ID, "err", err)
		return
	}

	sendErr := s.mail.Send(ctx, mailer.Email{
		UserID:   notif.UserID,
		Template: template,
		Subject:  subject,
		Data:     data,
	})

	if sendErr != nil {
		lg.Warnw("email send failed", "notification_id", notif.ID, "err", sendErr)
		if err := s.db.WithContext(ctx).Model(emailLog).
			Updates(map[string]any{"status": models.EmailLogStatusFailed, "error": sendErr.Error()}).Error; err != nil {
			lg.Errorw("email log update failed", "email_log_id", emailLog.ID, "err", err)
		}
		return
	}

	if err := s.db.WithContext(ctx).Model(emailLog).Update("status", models.EmailLogStatusSent).Error; err != nil {
		lg.Errorw("email log update failed", "email_log_id", emailLog.ID, "err", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.ExpiryNotification{}).Where("id = ?", notif.ID).
		Updates(map[string]any{"status": models.NotificationStatusSent, "email_log_id": emailLog.ID}).Error; err != nil {
		lg.Errorw("notification status update failed", "notification_id", notif.ID, "err", err)
	}
}
