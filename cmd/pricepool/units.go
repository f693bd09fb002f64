package main

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// parseAmount convierte un importe decimal ("1.5") a unidades mínimas con
// decimals decimales. Rechaza fracciones que no caben en la unidad mínima.
func parseAmount(s string, decimals int32) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount %q: negative", s)
	}
	units := d.Shift(decimals)
	if !units.IsInteger() {
		return 0, fmt.Errorf("amount %q: more than %d decimals", s, decimals)
	}
	bi := units.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("amount %q: too large", s)
	}
	return bi.Uint64(), nil
}

// parsePrice convierte un precio decimal a la representación entera price·10^-expo.
func parsePrice(s string, expo int32) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("price %q: %w", s, err)
	}
	raw := d.Shift(-expo)
	if !raw.IsInteger() {
		return 0, fmt.Errorf("price %q: not representable with expo %d", s, expo)
	}
	bi := raw.BigInt()
	if !bi.IsInt64() || bi.Int64() == math.MinInt64 {
		return 0, fmt.Errorf("price %q: out of range", s)
	}
	return bi.Int64(), nil
}
