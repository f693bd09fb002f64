package ports

import "time"

// Clock da la hora actual para los chequeos de deadline.
// Las implementaciones deben ser monótonas (no retroceder).
type Clock interface {
	Now() time.Time
}
