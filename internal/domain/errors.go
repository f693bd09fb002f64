package domain

import "errors"

// Errores del ciclo de vida del mercado y de la liquidación.
// Todos son fatales para la operación que los devuelve: no hay reintentos internos
// ni mutación parcial.
var (
	ErrMarketClosed          = errors.New("market betting window is closed")
	ErrMarketNotEnded        = errors.New("market has not ended yet")
	ErrMarketAlreadyResolved = errors.New("market already resolved")
	ErrMarketNotResolved     = errors.New("market not resolved yet")
	ErrAlreadyClaimed        = errors.New("position already claimed")
	ErrLostBet               = errors.New("position did not win")
	ErrMath                  = errors.New("math error")
)

// Errores de validación e infraestructura.
var (
	ErrInvalidDuration   = errors.New("duration must be positive")
	ErrInvalidFee        = errors.New("fee must be below 10000 basis points")
	ErrInvalidDirection  = errors.New("invalid direction")
	ErrInvalidFeedID     = errors.New("invalid price feed id")
	ErrWrongMarket       = errors.New("position belongs to another market")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidOwner      = errors.New("invalid owner account")
	ErrPriceRejected     = errors.New("price observation rejected")
	ErrLockHeld          = errors.New("lock already held")
)
