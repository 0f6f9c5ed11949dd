package projectlock

import (
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// NewFromConfig returns a nil Locker when redis is not configured; callers
// treat nil as "no distributed locking".
func NewFromConfig(cfg config.Config) *Locker {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return NewLocker(client)
}

var Module = fx.Module("project.lock",
	fx.Provide(NewFromConfig),
)
