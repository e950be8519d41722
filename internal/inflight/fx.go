package inflight

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/shiplabel/internal/config"
	"github.com/smallbiznis/shiplabel/internal/shippinglabel/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("inflight",
	fx.Provide(
		NewRedisClient,
		NewGuard,
		provideIssuanceGuard,
	),
)

// NewRedisClient returns nil when Redis is disabled so the guard is skipped.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		log.Info("redis disabled, issuance guard off")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(cfg.Redis.Addr),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis ping failed, issuance guard degraded", zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

func provideIssuanceGuard(g *Guard) service.IssuanceGuard {
	if g == nil {
		return nil
	}
	return g
}
