// Package lock implementa ports.Locker: en proceso (Local) o distribuido sobre Redis.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/pricepool/internal/domain"
	"github.com/alejandrodnm/pricepool/internal/ports"
)

// Local es un mutex por clave dentro del proceso. El ttl se ignora.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

var _ ports.Locker = (*Local)(nil)

// NewLocal crea un Local vacío.
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

// Acquire espera hasta obtener la clave o hasta que ctx termine.
func (l *Local) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s)
		return nil, fmt.Errorf("lock %s: %w: %w", key, domain.ErrLockHeld, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(key, s)
		})
	}, nil
}

// release borra el slot cuando nadie más lo espera.
func (l *Local) release(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
