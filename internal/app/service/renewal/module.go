package renewal

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nimbushost/provisioner/internal/app/service/audit"
	"github.com/nimbushost/provisioner/internal/platform/panel"
	"github.com/nimbushost/provisioner/pkg/config"
)

var Module = fx.Options(
	fx.Provide(func(cfg *config.Config, log *zap.SugaredLogger, db *gorm.DB, registrar *panel.RegistrarAPI, auditSvc *audit.Service) *Service {
		return NewService(cfg, log, db, registrar, auditSvc)
	}),
)
