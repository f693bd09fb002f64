package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// feedIDLen es el tamaño en bytes de un identificador de feed (Pyth).
const feedIDLen = 32

// PriceObservation es un precio publicado por un feed externo.
// El valor real es Price × 10^Expo.
type PriceObservation struct {
	FeedID      string
	Price       int64
	Conf        uint64
	Expo        int32
	PublishTime time.Time
	Signature   []byte // attestation opcional del publicador
}

// Decimal devuelve el precio escalado por el exponente.
func (o PriceObservation) Decimal() decimal.Decimal {
	return decimal.New(o.Price, o.Expo)
}

// NormalizeFeedID valida un feed ID hex de 32 bytes y lo devuelve en minúsculas con prefijo 0x.
// Un feed vacío se permite: el mercado no podrá resolverse automáticamente.
func NormalizeFeedID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	raw := strings.TrimPrefix(strings.ToLower(s), "0x")
	b, err := hex.DecodeString(raw)
	if err != nil || len(b) != feedIDLen {
		return "", fmt.Errorf("%w: %q", ErrInvalidFeedID, s)
	}
	return "0x" + raw, nil
}

// FeedIDBytes decodifica un feed ID ya normalizado.
func FeedIDBytes(feedID string) ([feedIDLen]byte, error) {
	var out [feedIDLen]byte
	b, err := hex.DecodeString(strings.TrimPrefix(feedID, "0x"))
	if err != nil || len(b) != feedIDLen {
		return out, fmt.Errorf("%w: %q", ErrInvalidFeedID, feedID)
	}
	copy(out[:], b)
	return out, nil
}
