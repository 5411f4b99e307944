package storage

// intents.go — journal de órdenes. Cada orden se registra PENDING antes de
// enviarse; así un proceso reiniciado sabe si ya salió.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

const intentSchema = `
CREATE TABLE IF NOT EXISTS order_intents (
    client_id  TEXT PRIMARY KEY,
    pair       TEXT NOT NULL,
    side       TEXT NOT NULL,
    quantity   TEXT NOT NULL,
    kind       TEXT NOT NULL,
    price      TEXT NOT NULL DEFAULT '0',
    order_id   TEXT NOT NULL DEFAULT '',
    status     TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_intents_pair_status ON order_intents(pair, status);
`

// ─── Intents ─────────────────────────────────────────────────────────────────

// SaveIntent inserta (o reemplaza) un intent.
func (s *SQLiteStorage) SaveIntent(ctx context.Context, in domain.OrderIntent) error {
	created := in.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	updated := in.UpdatedAt
	if updated.IsZero() {
		updated = created
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO order_intents
		  (client_id, pair, side, quantity, kind, price, order_id, status, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		in.ClientID, in.Pair, string(in.Side), in.Quantity.String(), string(in.Kind),
		in.Price.String(), in.OrderID, string(in.Status),
		created.UTC().Format(timeLayout), updated.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveIntent: %w", err)
	}
	return nil
}

// MarkIntentSubmitted registra el id que devolvió el venue.
func (s *SQLiteStorage) MarkIntentSubmitted(ctx context.Context, clientID, orderID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE order_intents SET status = ?, order_id = ?, updated_at = ? WHERE client_id = ?`,
		string(domain.IntentSubmitted), orderID, s.stamp(), clientID,
	)
	if err != nil {
		return fmt.Errorf("storage.MarkIntentSubmitted: %w", err)
	}
	return expectOne(res, "storage.MarkIntentSubmitted", clientID)
}

// MarkIntentAbandoned cierra un intent que nunca llegó al venue o quedó obsoleto.
func (s *SQLiteStorage) MarkIntentAbandoned(ctx context.Context, clientID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE order_intents SET status = ?, updated_at = ? WHERE client_id = ?`,
		string(domain.IntentAbandoned), s.stamp(), clientID,
	)
	if err != nil {
		return fmt.Errorf("storage.MarkIntentAbandoned: %w", err)
	}
	return expectOne(res, "storage.MarkIntentAbandoned", clientID)
}

// UnresolvedIntents devuelve los intents PENDING o SUBMITTED de pair, los
// más antiguos primero.
func (s *SQLiteStorage) UnresolvedIntents(ctx context.Context, pair string) ([]domain.OrderIntent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT client_id, pair, side, quantity, kind, price, order_id, status, created_at, updated_at
		FROM order_intents
		WHERE pair = ? AND status IN (?, ?)
		ORDER BY created_at, client_id`,
		pair, string(domain.IntentPending), string(domain.IntentSubmitted),
	)
	if err != nil {
		return nil, fmt.Errorf("storage.UnresolvedIntents: query: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderIntent
	for rows.Next() {
		var (
			in                   domain.OrderIntent
			side, kind, status   string
			qty, price           string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&in.ClientID, &in.Pair, &side, &qty, &kind, &price, &in.OrderID, &status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("storage.UnresolvedIntents: scan row: %w", err)
		}
		in.Side = domain.Side(side)
		in.Kind = domain.OrderKind(kind)
		in.Status = domain.IntentStatus(status)
		if in.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("storage.UnresolvedIntents: %s quantity: %w", in.ClientID, err)
		}
		if in.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("storage.UnresolvedIntents: %s price: %w", in.ClientID, err)
		}
		in.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		in.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
		out = append(out, in)
	}
	return out, rows.Err()
}

func expectOne(res sql.Result, op, clientID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: intent %s not found", op, clientID)
	}
	return nil
}
