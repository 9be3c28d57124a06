package account

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nimbushost/provisioner/internal/app/service/audit"
	"github.com/nimbushost/provisioner/internal/platform/panel"
)

var Module = fx.Options(
	fx.Provide(func(log *zap.SugaredLogger, db *gorm.DB, serverAPI *panel.ServerAPI, accountAPI *panel.AccountAPI, auditSvc *audit.Service) *Service {
		return NewService(log, db, serverAPI, accountAPI, auditSvc)
	}),
)
