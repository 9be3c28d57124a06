package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nimbushost/provisioner/docs"
	"github.com/nimbushost/provisioner/internal/app/api/handlers"
	mw "github.com/nimbushost/provisioner/internal/app/api/middleware"
	"github.com/nimbushost/provisioner/internal/app/service/domainsync"
	invsvc "github.com/nimbushost/provisioner/internal/app/service/inventory"
	provsvc "github.com/nimbushost/provisioner/internal/app/service/provisioning"
	renewsvc "github.com/nimbushost/provisioner/internal/app/service/renewal"
	schedsvc "github.com/nimbushost/provisioner/internal/app/service/scheduler"
	cfgpkg "github.com/nimbushost/provisioner/pkg/config"
	metrics "github.com/nimbushost/provisioner/pkg/metrics"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Request tracing only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

type routeDeps struct {
	fx.In

	Log             *zap.SugaredLogger
	Cfg             *cfgpkg.Config
	ProvisioningSvc *provsvc.Service
	RenewalSvc      *renewsvc.Service
	SyncSvc         *domainsync.Service
	SchedulerSvc    *schedsvc.Service
	InventorySvc    *invsvc.Service
	AccountHandler  *handlers.AccountHandler
	ServerHandler   *handlers.ServerHandler
}

func registerRoutes(r *gin.Engine, deps routeDeps) {
	log := deps.Log
	cfg := deps.Cfg

	// Prometheus metrics
	if cfg != nil && cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			MetricsList: []*metrics.Metric{metrics.MetricJobDuration},
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return c.Request.URL.Path
			},
			Logger: log,
		})
		p.SetListenAddress(cfg.MetricsAddr)
		p.Use(r)

		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Authenticated API
	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(), mw.AuthMiddleware(cfg))

	handlers.RegisterProvisioningRoutes(apiV1, deps.ProvisioningSvc)
	handlers.RegisterAccountRoutes(apiV1, deps.AccountHandler)
	handlers.RegisterDomainRoutes(apiV1, deps.RenewalSvc, deps.SyncSvc)

	// Admin-only surfaces
	admin := apiV1.Group("/")
	admin.Use(mw.RequireAdmin())
	handlers.RegisterServerRoutes(admin, deps.ServerHandler)
	handlers.RegisterJobRoutes(admin, deps.SchedulerSvc)
	handlers.RegisterAdminRoutes(admin.Group("/admin"), deps.InventorySvc)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Provide(handlers.NewAccountHandler),
	fx.Provide(handlers.NewServerHandler),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
