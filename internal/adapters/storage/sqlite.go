package storage

// sqlite.go — persistencia del estado de reconciliación.
//
// Estrategia:
//   - `state`: UNA fila (id = 1) con el documento JSON completo del estado.
//     Se reemplaza entero en cada ciclo, nunca se mezcla.
//   - `cycles`: resumen ligero por ciclo (señales, órdenes, fallos).
//   - `order_intents`: journal de órdenes (ver intents.go). Los intents
//     SUBMITTED pasan a COMMITTED en la misma transacción que el estado.
//   - Prune automático al arrancar: cycles e intents resueltos > 30d.

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/signalbot/internal/domain"
	"github.com/alejandrodnm/signalbot/internal/ports"
)

const schema = `
-- Documento de estado, siempre una sola fila
CREATE TABLE IF NOT EXISTS state (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    document   TEXT     NOT NULL,
    cycle      INTEGER  NOT NULL DEFAULT 0,
    updated_at TEXT     NOT NULL
);

-- Resumen por ciclo de reconciliación
CREATE TABLE IF NOT EXISTS cycles (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    cycle            INTEGER NOT NULL,
    finished_at      TEXT    NOT NULL,
    signals_merged   INTEGER NOT NULL DEFAULT 0,
    orders_placed    INTEGER NOT NULL DEFAULT 0,
    orders_cancelled INTEGER NOT NULL DEFAULT 0,
    cancel_failures  INTEGER NOT NULL DEFAULT 0,
    pair_errors      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_cycles_at ON cycles(finished_at DESC);
`

const retention = 30 * 24 * time.Hour

// timeLayout es de ancho fijo para que las fechas ordenen como texto.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStorage implementa ports.StateStore usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia datos antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	for _, ddl := range []string{schema, intentSchema} {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
		}
	}

	s := &SQLiteStorage{db: db, now: time.Now}
	s.pruneOld(context.Background())
	return s, nil
}

// LoadState devuelve el último estado persistido, o uno vacío.
func (s *SQLiteStorage) LoadState(ctx context.Context) (domain.ReconciliationState, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM state WHERE id = 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ReconciliationState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.LoadState: query: %w", err)
	}

	var state domain.ReconciliationState
	if err := json.Unmarshal([]byte(doc), &state); err != nil {
		return nil, fmt.Errorf("storage.LoadState: decode: %w", err)
	}
	if state == nil {
		state = domain.ReconciliationState{}
	}
	return state, nil
}

// SaveState reemplaza el documento de estado, añade el resumen del ciclo y
// marca COMMITTED los intents SUBMITTED, todo en una transacción.
func (s *SQLiteStorage) SaveState(ctx context.Context, state domain.ReconciliationState, summary ports.CycleSummary) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("storage.SaveState: encode: %w", err)
	}
	now := s.stamp()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveState: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO state (id, document, cycle, updated_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document   = excluded.document,
			cycle      = excluded.cycle,
			updated_at = excluded.updated_at`,
		string(doc), summary.Cycle, now,
	); err != nil {
		return fmt.Errorf("storage.SaveState: write state: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cycles
			(cycle, finished_at, signals_merged, orders_placed, orders_cancelled, cancel_failures, pair_errors)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		summary.Cycle, now, summary.SignalsMerged, summary.OrdersPlaced,
		summary.OrdersCancelled, summary.CancelFailures, summary.PairErrors,
	); err != nil {
		return fmt.Errorf("storage.SaveState: insert cycle: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE order_intents SET status = ?, updated_at = ? WHERE status = ?`,
		string(domain.IntentCommitted), now, string(domain.IntentSubmitted),
	); err != nil {
		return fmt.Errorf("storage.SaveState: commit intents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveState: commit: %w", err)
	}
	return nil
}

// RecentCycles devuelve los últimos limit ciclos, el más reciente primero.
func (s *SQLiteStorage) RecentCycles(ctx context.Context, limit int) ([]ports.CycleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cycle, finished_at, signals_merged, orders_placed,
		       orders_cancelled, cancel_failures, pair_errors
		FROM cycles
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentCycles: query: %w", err)
	}
	defer rows.Close()

	var out []ports.CycleRecord
	for rows.Next() {
		var rec ports.CycleRecord
		var finished string
		if err := rows.Scan(
			&rec.Cycle,
			&finished,
			&rec.SignalsMerged,
			&rec.OrdersPlaced,
			&rec.OrdersCancelled,
			&rec.CancelFailures,
			&rec.PairErrors,
		); err != nil {
			return nil, fmt.Errorf("storage.RecentCycles: scan row: %w", err)
		}
		rec.FinishedAt, _ = time.Parse(timeLayout, finished)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LastCycle devuelve el número del último ciclo persistido (0 si ninguno).
func (s *SQLiteStorage) LastCycle(ctx context.Context) (int, error) {
	var cycle int
	err := s.db.QueryRowContext(ctx, `SELECT cycle FROM state WHERE id = 1`).Scan(&cycle)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage.LastCycle: %w", err)
	}
	return cycle, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

func (s *SQLiteStorage) stamp() string {
	return s.now().UTC().Format(timeLayout)
}

// pruneOld elimina datos antiguos para mantener la DB ligera. Los intents
// sin resolver nunca se borran.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := s.now().UTC().Add(-retention).Format(timeLayout)
	s.db.ExecContext(ctx, `DELETE FROM cycles WHERE finished_at < ?`, cutoff)
	s.db.ExecContext(ctx,
		`DELETE FROM order_intents WHERE status IN (?, ?) AND updated_at < ?`,
		string(domain.IntentCommitted), string(domain.IntentAbandoned), cutoff,
	)
}
