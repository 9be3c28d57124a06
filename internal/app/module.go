package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/nimbushost/provisioner/internal/app/api/server"
	"github.com/nimbushost/provisioner/internal/app/service/account"
	"github.com/nimbushost/provisioner/internal/app/service/audit"
	"github.com/nimbushost/provisioner/internal/app/service/domainsync"
	"github.com/nimbushost/provisioner/internal/app/service/inventory"
	"github.com/nimbushost/provisioner/internal/app/service/provisioning"
	"github.com/nimbushost/provisioner/internal/app/service/renewal"
	"github.com/nimbushost/provisioner/internal/app/service/scheduler"
	"github.com/nimbushost/provisioner/internal/platform/db"
	"github.com/nimbushost/provisioner/internal/platform/mailer"
	"github.com/nimbushost/provisioner/internal/platform/panel"
	"github.com/nimbushost/provisioner/internal/platform/redis"
	"github.com/nimbushost/provisioner/pkg/config"
	"github.com/nimbushost/provisioner/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	redis.Module,
	panel.Module,
	mailer.Module,
	audit.Module,
	provisioning.Module,
	account.Module,
	renewal.Module,
	domainsync.Module,
	inventory.Module,
	scheduler.Module,
	server.Module,
)
