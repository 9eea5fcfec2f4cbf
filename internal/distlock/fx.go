package distlock

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/soundline/vocalis/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("distlock",
	fx.Provide(provideClient),
	fx.Provide(NewLocker),
)

// provideClient returns nil when redis is not configured; the Locker treats
// that as single-instance mode.
func provideClient(cfg config.Config, log *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		log.Named("distlock").Info("redis not configured, sweep lock disabled")
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}
