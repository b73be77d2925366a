package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ayazabbas/polymarket-lp/internal/domain"
)

// FeedEventType clasifica los eventos del feed de mercado.
type FeedEventType string

const (
	FeedMidpoint     FeedEventType = "midpoint"
	FeedFill         FeedEventType = "fill"
	FeedDisconnected FeedEventType = "disconnected"
	FeedReconnected  FeedEventType = "reconnected"
)

// FeedEvent es un evento push del feed. Solo el campo que corresponde al
// tipo está poblado.
type FeedEvent struct {
	Type     FeedEventType
	TokenID  string
	Midpoint decimal.Decimal
	Fill     domain.Fill
	At       time.Time
}

// MarketDataProvider entrega midpoints y fills, por push cuando el feed está
// vivo y por polling como fallback.
type MarketDataProvider interface {
	// Subscribe abre una suscripción push para los tokens dados. El canal se
	// cierra al cancelar ctx. La implementación reconecta por dentro y emite
	// FeedDisconnected/FeedReconnected en las transiciones.
	Subscribe(ctx context.Context, tokenIDs []string) (<-chan FeedEvent, error)

	// Midpoint consulta el midpoint por REST. Camino de fallback cuando el
	// push está caído o stale.
	Midpoint(ctx context.Context, tokenID string) (decimal.Decimal, error)

	// FetchOrderBooks devuelve los orderbooks para los token_ids dados.
	// Internamente agrupa los IDs en batches para minimizar requests.
	FetchOrderBooks(ctx context.Context, tokenIDs []string) (map[string]domain.OrderBook, error)
}
