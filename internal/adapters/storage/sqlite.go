package storage

// sqlite.go — persistencia de mercados, posiciones y ledger del custodio.
//
// Estrategia:
//   - Una sola conexión (SQLite es single-writer): cada InTx es serializable
//     frente a cualquier otra, así que place/resolve/settle sobre el mismo
//     mercado nunca se intercalan.
//   - Los importes son uint64 y SQLite solo tiene INTEGER con signo: se guardan
//     como TEXT decimal, sin pérdida.
//   - Los tiempos se guardan como Unix nanos (INTEGER) en UTC.
//   - El cobro de una posición es un compare-and-set (claimed = 0 → 1) en la
//     misma transacción que la transferencia vault → owner.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/pricepool/internal/domain"
	"github.com/alejandrodnm/pricepool/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS markets (
    id           TEXT PRIMARY KEY,
    admin        TEXT    NOT NULL,
    question     TEXT    NOT NULL DEFAULT '',
    asset_symbol TEXT    NOT NULL DEFAULT '',
    feed_id      TEXT    NOT NULL DEFAULT '',
    start_price  INTEGER NOT NULL DEFAULT 0,
    price_conf   TEXT    NOT NULL DEFAULT '0',
    price_expo   INTEGER NOT NULL DEFAULT 0,
    target_price INTEGER NOT NULL,
    end_price    INTEGER NOT NULL DEFAULT 0,
    start_time   INTEGER NOT NULL,
    end_time     INTEGER NOT NULL,
    total_up     TEXT    NOT NULL DEFAULT '0',
    total_down   TEXT    NOT NULL DEFAULT '0',
    fee_bps      INTEGER NOT NULL,
    outcome      INTEGER NOT NULL DEFAULT 0, -- 0 pending, 1 up, 2 down
    resolved_at  INTEGER
);

CREATE TABLE IF NOT EXISTS positions (
    id         TEXT PRIMARY KEY,
    market_id  TEXT    NOT NULL REFERENCES markets(id),
    owner      TEXT    NOT NULL,
    amount     TEXT    NOT NULL,
    direction  INTEGER NOT NULL, -- 1 up, 2 down
    claimed    INTEGER NOT NULL DEFAULT 0,
    payout     TEXT    NOT NULL DEFAULT '0',
    placed_at  INTEGER NOT NULL,
    claimed_at INTEGER
);

CREATE TABLE IF NOT EXISTS balances (
    account TEXT PRIMARY KEY,
    amount  TEXT NOT NULL DEFAULT '0'
);

CREATE TABLE IF NOT EXISTS ledger (
    id           TEXT PRIMARY KEY,
    kind         TEXT    NOT NULL,
    from_account TEXT    NOT NULL,
    to_account   TEXT    NOT NULL,
    amount       TEXT    NOT NULL,
    market_id    TEXT    NOT NULL DEFAULT '',
    position_id  TEXT    NOT NULL DEFAULT '',
    created_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_markets_due    ON markets(outcome, end_time);
CREATE INDEX IF NOT EXISTS idx_positions_mkt  ON positions(market_id);
CREATE INDEX IF NOT EXISTS idx_ledger_from    ON ledger(from_account);
CREATE INDEX IF NOT EXISTS idx_ledger_to      ON ledger(to_account);
`

// querier es lo común a *sql.DB y *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStorage implementa ports.Store usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	reader
	db *sql.DB
}

var _ ports.Store = (*SQLiteStorage)(nil)

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica el schema.
// Usar ":memory:" para tests.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // con :memory: cerrar la conexión borra la base

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage.NewSQLiteStorage: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	return &SQLiteStorage{reader: reader{q: db}, db: db}, nil
}

// InTx ejecuta fn dentro de una transacción. Los errores de fn se devuelven tal cual.
func (s *SQLiteStorage) InTx(ctx context.Context, fn func(tx ports.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.InTx: begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{reader: reader{q: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.InTx: commit: %w", err)
	}
	return nil
}

// ListMarkets devuelve los mercados que cumplen el filtro, por deadline ascendente.
func (s *SQLiteStorage) ListMarkets(ctx context.Context, f ports.MarketFilter) ([]domain.Market, error) {
	var (
		where []string
		args  []any
	)
	if f.Unresolved {
		where = append(where, "outcome = 0")
	}
	if !f.EndedBy.IsZero() {
		where = append(where, "end_time <= ?")
		args = append(args, f.EndedBy.UnixNano())
	}

	query := "SELECT " + marketColumns + " FROM markets"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY end_time ASC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ListMarkets: query: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListMarkets: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// LedgerEntries devuelve los movimientos en los que participa la cuenta, en orden de registro.
func (s *SQLiteStorage) LedgerEntries(ctx context.Context, account string) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, from_account, to_account, amount, market_id, position_id, created_at
		FROM ledger
		WHERE from_account = ? OR to_account = ?
		ORDER BY created_at ASC, rowid ASC
	`, account, account)
	if err != nil {
		return nil, fmt.Errorf("storage.LedgerEntries: query: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var (
			e         domain.LedgerEntry
			kind      string
			amount    string
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &kind, &e.From, &e.To, &amount, &e.MarketID, &e.PositionID, &createdAt); err != nil {
			return nil, fmt.Errorf("storage.LedgerEntries: scan row: %w", err)
		}
		e.Kind = domain.EntryKind(kind)
		if e.Amount, err = parseAmount(amount); err != nil {
			return nil, fmt.Errorf("storage.LedgerEntries: %w", err)
		}
		e.CreatedAt = fromNanos(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// formatAmount y parseAmount convierten uint64 ↔ TEXT.
func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseAmount(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullNanos(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullNanos(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return fromNanos(n.Int64)
}

// notFound traduce sql.ErrNoRows a domain.ErrNotFound.
func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %q: %w", what, id, domain.ErrNotFound)
	}
	return err
}
