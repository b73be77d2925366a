package ports

import (
	"context"

	"github.com/ayazabbas/polymarket-lp/internal/domain"
)

// Límites de batch del CLOB. El tracker trocea sus diffs a estos tamaños;
// los adapters rechazan batches mayores en vez de partirlos en silencio.
const (
	MaxPlaceBatch  = 15
	MaxCancelBatch = 20
)

// OrderSubmitter places and cancels real limit orders on the CLOB. Only
// authenticated trading handles implement it; read-only clients cannot be
// upgraded into one after construction.
type OrderSubmitter interface {
	// PlaceOrders submits up to MaxPlaceBatch limit maker orders in one call.
	// Per-order rejections come back inside the PlacedOrder acks; the error
	// return is reserved for transport-level failures of the whole batch.
	PlaceOrders(ctx context.Context, reqs []domain.PlaceOrderRequest) ([]domain.PlacedOrder, error)

	// CancelOrders cancels up to MaxCancelBatch orders by venue order ID and
	// returns the IDs the venue confirmed cancelled.
	CancelOrders(ctx context.Context, venueOrderIDs []string) ([]string, error)

	// CancelMarket cancels all open orders for one market.
	CancelMarket(ctx context.Context, conditionID string) error

	// CancelAll cancels every open order for this wallet. Used on shutdown
	// and on portfolio kill switch.
	CancelAll(ctx context.Context) error

	// OpenOrders returns the venue's snapshot of open/partial orders for a
	// market. The reconciler treats this as ground truth.
	OpenOrders(ctx context.Context, conditionID string) ([]domain.VenueOrder, error)

	// Fills returns fills since the given cursor (venue fill ID, empty for
	// all). Poll fallback for when the user feed is down.
	Fills(ctx context.Context, conditionID, sinceFillID string) ([]domain.Fill, error)

	// Balance returns the available USDC collateral in the CLOB.
	Balance(ctx context.Context) (float64, error)
}
