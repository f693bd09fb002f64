package lock

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/pricepool/internal/domain"
	"github.com/alejandrodnm/pricepool/internal/ports"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// unlockLua borra la clave solo si sigue siendo nuestra: un holder cuyo TTL
// expiró no puede liberar el lock que ya tomó otro.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// retryEvery es el intervalo de sondeo mientras otro proceso tiene la clave.
const retryEvery = 50 * time.Millisecond

// RedisConfig son los parámetros de conexión.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	TLSEnabled bool
}

// Redis implementa ports.Locker con SET NX + TTL y unlock condicional en Lua,
// para varios procesos que comparten la misma base.
type Redis struct {
	rdb      *goredis.Client
	unlockSc *goredis.Script
}

var _ ports.Locker = (*Redis)(nil)

// NewRedis conecta y hace ping. Devuelve error si Redis no responde.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	opts := &goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("lock.NewRedis: ping %s: %w", cfg.Addr, err)
	}
	return NewRedisFromClient(rdb), nil
}

// NewRedisFromClient envuelve un cliente ya creado.
func NewRedisFromClient(rdb *goredis.Client) *Redis {
	return &Redis{rdb: rdb, unlockSc: goredis.NewScript(unlockLua)}
}

func lockKey(key string) string {
	return "pricepool:lock:" + key
}

// Acquire intenta SET NX hasta conseguirlo o hasta que ctx termine.
// La función de unlock se puede llamar varias veces.
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	lk := lockKey(key)

	for {
		ok, err := r.rdb.SetNX(ctx, lk, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock.Redis: acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-time.After(retryEvery):
		case <-ctx.Done():
			return nil, fmt.Errorf("lock %s: %w: %w", key, domain.ErrLockHeld, ctx.Err())
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.release(lk, token) })
	}, nil
}

func (r *Redis) release(lk, token string) {
	// contexto propio: el unlock tiene que salir aunque ctx ya esté cancelado
	unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.unlockSc.Run(unlockCtx, r.rdb, []string{lk}, token).Err(); err != nil {
		slog.Warn("redis unlock failed", "key", lk, "err", err)
	}
}

// Close cierra la conexión.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
