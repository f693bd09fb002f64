package ports

import (
	"context"
	"time"
)

// Locker da exclusión mutua por clave (un escritor por mercado).
type Locker interface {
	// Acquire bloquea la clave hasta ttl. Devuelve una función de unlock
	// idempotente, o domain.ErrLockHeld si no pudo obtenerla.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
