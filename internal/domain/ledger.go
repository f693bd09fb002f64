package domain

import (
	"fmt"
	"strings"
	"time"
)

// EntryKind clasifica un movimiento del ledger.
type EntryKind string

const (
	EntryDeposit EntryKind = "DEPOSIT" // fondos externos → cuenta del owner
	EntryStake   EntryKind = "STAKE"   // owner → vault del mercado
	EntryPayout  EntryKind = "PAYOUT"  // vault del mercado → owner
)

// ExternalAccount es el origen de los depósitos; no tiene saldo propio.
const ExternalAccount = "external"

const vaultPrefix = "vault:"

// VaultAccount devuelve la cuenta custodio de un mercado.
func VaultAccount(marketID string) string {
	return vaultPrefix + marketID
}

// ValidOwner rechaza las cuentas que no pueden apostar ni recibir depósitos:
// vacía, la externa (sin saldo propio) y cualquier vault de mercado.
func ValidOwner(owner string) error {
	if strings.TrimSpace(owner) == "" || owner == ExternalAccount || strings.HasPrefix(owner, vaultPrefix) {
		return fmt.Errorf("%w: %q", ErrInvalidOwner, owner)
	}
	return nil
}

// LedgerEntry es una transferencia registrada por el custodio.
type LedgerEntry struct {
	ID         string
	Kind       EntryKind
	From       string
	To         string
	Amount     uint64
	MarketID   string
	PositionID string
	CreatedAt  time.Time
}
