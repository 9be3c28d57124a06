package domainsync

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nimbushost/provisioner/internal/platform/panel"
)

var Module = fx.Options(
	fx.Provide(func(log *zap.SugaredLogger, db *gorm.DB, registrar *panel.RegistrarAPI) *Service {
		return NewService(log, db, registrar)
	}),
)
