package domain

import (
	"fmt"
	"math/bits"
	"strings"
	"time"
)

const (
	// BasisPoints es el denominador de las comisiones (100% = 10000 bps).
	BasisPoints = 10_000
	// DefaultFeeBps es la comisión de la plataforma: 2%.
	DefaultFeeBps = 200
)

// Direction es el lado de una apuesta: Up gana si el precio final >= target.
type Direction uint8

const (
	DirectionUp Direction = iota + 1
	DirectionDown
)

// ParseDirection acepta "up"/"down" y también "yes"/"no".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "yes", "true":
		return DirectionUp, nil
	case "down", "no", "false":
		return DirectionDown, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// Valid devuelve true si d es Up o Down.
func (d Direction) Valid() bool {
	return d == DirectionUp || d == DirectionDown
}

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "UP"
	case DirectionDown:
		return "DOWN"
	}
	return "INVALID"
}

// Outcome es el resultado de un mercado. OutcomePending es un estado propio,
// no la ausencia de valor: un mercado está resuelto si y solo si Outcome != Pending.
type Outcome uint8

const (
	OutcomePending Outcome = iota
	OutcomeUp
	OutcomeDown
)

// OutcomeFor devuelve el resultado en el que gana la dirección d.
func OutcomeFor(d Direction) Outcome {
	if d == DirectionUp {
		return OutcomeUp
	}
	return OutcomeDown
}

// Decided devuelve true si el mercado ya tiene resultado.
func (o Outcome) Decided() bool {
	return o == OutcomeUp || o == OutcomeDown
}

// Winner devuelve la dirección ganadora; ok es false mientras el resultado esté pendiente.
func (o Outcome) Winner() (d Direction, ok bool) {
	switch o {
	case OutcomeUp:
		return DirectionUp, true
	case OutcomeDown:
		return DirectionDown, true
	}
	return 0, false
}

func (o Outcome) String() string {
	switch o {
	case OutcomeUp:
		return "UP"
	case OutcomeDown:
		return "DOWN"
	}
	return "PENDING"
}

// MarketParams son los datos de entrada para crear un mercado.
type MarketParams struct {
	Admin       string
	Question    string
	AssetSymbol string
	FeedID      string
	Duration    time.Duration
	TargetPrice int64
	StartPrice  int64
	PriceConf   uint64
	PriceExpo   int32
	FeeBps      uint64
}

// Market es un mercado binario Up/Down sobre el precio de un activo.
//
// Los pools solo cambian mientras el mercado está abierto; una vez resuelto
// ningún campo vuelve a cambiar.
type Market struct {
	ID          string
	Admin       string
	Question    string
	AssetSymbol string
	FeedID      string // feed de precios de 32 bytes, hex con prefijo 0x

	// StartPrice y PriceConf quedan como auditoría; TargetPrice decide el resultado.
	StartPrice  int64
	PriceConf   uint64
	PriceExpo   int32
	TargetPrice int64
	EndPrice    int64

	StartTime time.Time
	EndTime   time.Time // exclusivo para apostar, inclusivo para resolver

	TotalUp   uint64
	TotalDown uint64
	FeeBps    uint64

	Outcome    Outcome
	ResolvedAt time.Time
}

// NewMarket crea un mercado abierto que acepta posiciones durante p.Duration desde now.
func NewMarket(id string, p MarketParams, now time.Time) (Market, error) {
	if p.Duration <= 0 {
		return Market{}, ErrInvalidDuration
	}
	if p.FeeBps >= BasisPoints {
		return Market{}, fmt.Errorf("%w: %d", ErrInvalidFee, p.FeeBps)
	}
	feedID, err := NormalizeFeedID(p.FeedID)
	if err != nil {
		return Market{}, err
	}

	start := now.UTC()
	return Market{
		ID:          id,
		Admin:       p.Admin,
		Question:    p.Question,
		AssetSymbol: p.AssetSymbol,
		FeedID:      feedID,
		StartPrice:  p.StartPrice,
		PriceConf:   p.PriceConf,
		PriceExpo:   p.PriceExpo,
		TargetPrice: p.TargetPrice,
		StartTime:   start,
		EndTime:     start.Add(p.Duration),
		FeeBps:      p.FeeBps,
		Outcome:     OutcomePending,
	}, nil
}

// Resolved devuelve true si el mercado ya tiene resultado.
func (m Market) Resolved() bool {
	return m.Outcome.Decided()
}

// Ended devuelve true si now alcanzó el deadline.
func (m Market) Ended(now time.Time) bool {
	return !now.Before(m.EndTime)
}

// AcceptPosition suma amount al pool de la dirección dada.
// Falla con ErrMarketClosed si now >= EndTime y con ErrMath si el pool desborda;
// en ambos casos el mercado no se modifica.
//
// Un amount de 0 se acepta: registra la posición sin mover los pools.
func (m *Market) AcceptPosition(dir Direction, amount uint64, now time.Time) error {
	if !dir.Valid() {
		return ErrInvalidDirection
	}
	if m.Resolved() || m.Ended(now) {
		return ErrMarketClosed
	}

	pool := &m.TotalDown
	if dir == DirectionUp {
		pool = &m.TotalUp
	}
	sum, carry := bits.Add64(*pool, amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: %s pool overflow", ErrMath, dir)
	}
	*pool = sum
	return nil
}

// Resolve fija el resultado con el precio de cierre. Up gana si endPrice >= TargetPrice
// (los empates van a Up). Solo puede ocurrir una vez.
func (m *Market) Resolve(endPrice int64, now time.Time) (Direction, error) {
	if !m.Ended(now) {
		return 0, ErrMarketNotEnded
	}
	if m.Resolved() {
		return 0, ErrMarketAlreadyResolved
	}

	winner := DirectionDown
	if endPrice >= m.TargetPrice {
		winner = DirectionUp
	}
	m.EndPrice = endPrice
	m.Outcome = OutcomeFor(winner)
	m.ResolvedAt = now.UTC()
	return winner, nil
}

// Pool devuelve el total apostado en la dirección d.
func (m Market) Pool(d Direction) uint64 {
	if d == DirectionUp {
		return m.TotalUp
	}
	return m.TotalDown
}
