package redis

import (
	"context"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nimbushost/provisioner/pkg/config"
)

// NewClient returns nil when redis is not configured; dependents must treat a
// nil client as "locking disabled" rather than an error.
func NewClient(cfg *config.Config, log *zap.SugaredLogger) *goredis.Client {
	if cfg.Redis.Addr == "" {
		log.Infow("redis not configured, job locking disabled")
		return nil
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Warnw("redis ping failed, job locking degraded", "err", err)
	}
	return client
}

func NewLockClient(client *goredis.Client) *redislock.Client {
	if client == nil {
		return nil
	}
	return redislock.New(client)
}

func registerClose(lc fx.Lifecycle, log *zap.SugaredLogger, client *goredis.Client) {
	if client == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Infow("closing redis connection")
			return client.Close()
		},
	})
}

var Module = fx.Options(
	fx.Provide(NewClient),
	fx.Provide(NewLockClient),
	fx.Invoke(registerClose),
)
