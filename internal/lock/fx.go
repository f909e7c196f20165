package lock

import (
	"errors"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/queueline/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("lock",
	fx.Provide(NewRedisClient),
	fx.Provide(New),
)

// New picks the Locker backend from configuration.
func New(cfg config.Config, client *redis.Client, log *zap.Logger) (Locker, error) {
	switch cfg.Lock.Backend {
	case config.LockBackendRedis:
		if client == nil {
			return nil, errors.New("lock backend redis requires REDIS_ADDR")
		}
		log.Info("queue lock backend", zap.String("backend", config.LockBackendRedis))
		return NewRedis(client, cfg.Lock.TTL), nil
	default:
		log.Info("queue lock backend", zap.String("backend", config.LockBackendLocal))
		return NewLocal(), nil
	}
}
