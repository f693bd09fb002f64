// Package clock implementa ports.Clock.
package clock

import (
	"sync"
	"time"
)

// System es el reloj real, en UTC.
type System struct{}

// Now devuelve la hora actual.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Manual es un reloj controlado a mano. Solo avanza.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual crea un reloj parado en start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start.UTC()}
}

// Now devuelve la hora fijada.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance adelanta el reloj d. Un d negativo se ignora.
func (m *Manual) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Set mueve el reloj a t si t es posterior a la hora actual.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	if t.After(m.now) {
		m.now = t.UTC()
	}
	m.mu.Unlock()
}
