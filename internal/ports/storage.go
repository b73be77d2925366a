package ports

import (
	"context"
	"time"

	"github.com/ayazabbas/polymarket-lp/internal/domain"
)

// MetricsSnapshot es una foto periódica del estado de un mercado, persistida
// para reporting entre sesiones.
type MetricsSnapshot struct {
	ConditionID   string
	Question      string
	SpreadPnL     string // decimales serializados como texto, sin redondeo
	RewardPnL     string
	RebatePnL     string
	UnrealizedPnL string
	NetInventory  string
	TotalFills    int64
	TotalOrders   int64
	UptimePct     string
	TakenAt       time.Time
}

// Storage persists fills and metrics snapshots.
type Storage interface {
	ApplySchema(ctx context.Context) error

	// SaveFill persiste un fill confirmado. Idempotente por fill ID: el
	// replay de una notificación duplicada no inserta dos veces.
	SaveFill(ctx context.Context, conditionID string, fill domain.Fill) error

	// GetFills devuelve los fills de un mercado, más recientes primero.
	GetFills(ctx context.Context, conditionID string, limit int) ([]domain.Fill, error)

	// SaveSnapshot persiste una foto de métricas.
	SaveSnapshot(ctx context.Context, snap MetricsSnapshot) error

	// GetLatestSnapshots devuelve la última foto por mercado.
	GetLatestSnapshots(ctx context.Context) ([]MetricsSnapshot, error)

	Close() error
}
