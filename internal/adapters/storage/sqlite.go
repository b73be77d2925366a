package storage

// sqlite.go — persistencia de fills y fotos de métricas.
//
// Estrategia:
//   - `fills`: una fila por fill, PRIMARY KEY el fill ID del venue. El
//     INSERT OR IGNORE hace idempotente el replay de notificaciones.
//   - `snapshots`: foto periódica de métricas por mercado; los decimales se
//     guardan como TEXT para no perder precisión.
//   - Prune automático al arrancar: snapshots > 30d.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/ayazabbas/polymarket-lp/internal/domain"
	"github.com/ayazabbas/polymarket-lp/internal/ports"
)

const schema = `
-- Un fill confirmado por fila; el fill ID del venue dedupea replays
CREATE TABLE IF NOT EXISTS fills (
    fill_id        TEXT PRIMARY KEY,
    condition_id   TEXT NOT NULL,
    venue_order_id TEXT,
    token_id       TEXT NOT NULL,
    side           TEXT NOT NULL,
    price          TEXT NOT NULL,
    size           TEXT NOT NULL,
    filled_at      DATETIME NOT NULL
);

-- Foto periódica de métricas por mercado
CREATE TABLE IF NOT EXISTS snapshots (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    condition_id   TEXT NOT NULL,
    question       TEXT,
    spread_pnl     TEXT NOT NULL,
    reward_pnl     TEXT NOT NULL,
    rebate_pnl     TEXT NOT NULL,
    unrealized_pnl TEXT NOT NULL,
    net_inventory  TEXT NOT NULL,
    total_fills    INTEGER NOT NULL DEFAULT 0,
    total_orders   INTEGER NOT NULL DEFAULT 0,
    uptime_pct     TEXT NOT NULL,
    taken_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_condition ON fills(condition_id, filled_at DESC);
CREATE INDEX IF NOT EXISTS idx_snap_condition  ON snapshots(condition_id, taken_at DESC);
`

const retentionSnapshots = 30 * 24 * time.Hour

// SQLiteStorage implementa ports.Storage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia snapshots antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	s := &SQLiteStorage{db: db}
	if err := s.ApplySchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	s.pruneOld(context.Background())
	return s, nil
}

// ApplySchema crea las tablas si no existen.
func (s *SQLiteStorage) ApplySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("storage.ApplySchema: %w", err)
	}
	return nil
}

// SaveFill persiste un fill. Idempotente por fill ID.
func (s *SQLiteStorage) SaveFill(ctx context.Context, conditionID string, f domain.Fill) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO fills
			(fill_id, condition_id, venue_order_id, token_id, side, price, size, filled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.FillID, conditionID, f.VenueOrderID, f.TokenID, string(f.Side),
		f.Price.String(), f.Size.String(), f.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveFill %s: %w", f.FillID, err)
	}
	return nil
}

// GetFills devuelve los fills de un mercado, más recientes primero.
func (s *SQLiteStorage) GetFills(ctx context.Context, conditionID string, limit int) ([]domain.Fill, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT fill_id, venue_order_id, token_id, side, price, size, filled_at
		FROM fills WHERE condition_id = ?
		ORDER BY filled_at DESC LIMIT ?`,
		conditionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.GetFills %s: %w", conditionID, err)
	}
	defer rows.Close()

	var fills []domain.Fill
	for rows.Next() {
		var f domain.Fill
		var side, price, size string
		if err := rows.Scan(&f.FillID, &f.VenueOrderID, &f.TokenID, &side, &price, &size, &f.Timestamp); err != nil {
			return nil, fmt.Errorf("storage.GetFills: scan: %w", err)
		}
		f.Side = domain.Side(side)
		f.Price, _ = decimal.NewFromString(price)
		f.Size, _ = decimal.NewFromString(size)
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// SaveSnapshot persiste una foto de métricas.
func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, snap ports.MetricsSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots
			(condition_id, question, spread_pnl, reward_pnl, rebate_pnl,
			 unrealized_pnl, net_inventory, total_fills, total_orders, uptime_pct, taken_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ConditionID, snap.Question, snap.SpreadPnL, snap.RewardPnL, snap.RebatePnL,
		snap.UnrealizedPnL, snap.NetInventory, snap.TotalFills, snap.TotalOrders,
		snap.UptimePct, snap.TakenAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot %s: %w", snap.ConditionID, err)
	}
	return nil
}

// GetLatestSnapshots devuelve la última foto por mercado.
func (s *SQLiteStorage) GetLatestSnapshots(ctx context.Context) ([]ports.MetricsSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT condition_id, question, spread_pnl, reward_pnl, rebate_pnl,
		       unrealized_pnl, net_inventory, total_fills, total_orders, uptime_pct, taken_at
		FROM snapshots s1
		WHERE taken_at = (SELECT MAX(taken_at) FROM snapshots s2 WHERE s2.condition_id = s1.condition_id)
		ORDER BY condition_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.GetLatestSnapshots: %w", err)
	}
	defer rows.Close()

	var snaps []ports.MetricsSnapshot
	for rows.Next() {
		var snap ports.MetricsSnapshot
		if err := rows.Scan(&snap.ConditionID, &snap.Question, &snap.SpreadPnL, &snap.RewardPnL,
			&snap.RebatePnL, &snap.UnrealizedPnL, &snap.NetInventory, &snap.TotalFills,
			&snap.TotalOrders, &snap.UptimePct, &snap.TakenAt); err != nil {
			return nil, fmt.Errorf("storage.GetLatestSnapshots: scan: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// Close cierra la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// pruneOld borra snapshots fuera de la ventana de retención. Best-effort.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionSnapshots)
	s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE taken_at < ?`, cutoff)
}
