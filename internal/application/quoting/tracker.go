package quoting

// Order tracker: local cache of our resting orders for one market. The venue
// book is the source of truth; this cache is best-effort and reconciled
// periodically. Requoting is a diff, not a blanket cancel-and-replace: orders
// already at the right price and size are left resting so they keep queue
// priority and reward uptime.
//
// Ask quotes are expressed as NO-token bids at the complement price
// (buy NO at 1−ask ≡ sell YES at ask), so the bot never needs to hold
// tokens before quoting both sides.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ayazabbas/polymarket-lp/internal/domain"
	"github.com/ayazabbas/polymarket-lp/internal/ports"
)

// desiredOrder is one venue order implied by a quote.
type desiredOrder struct {
	TokenID string
	Side    domain.Side
	Price   decimal.Decimal
	Size    decimal.Decimal
	Level   int
}

// Tracker owns order state for one market.
type Tracker struct {
	market    domain.Market
	submitter ports.OrderSubmitter

	mu        sync.Mutex
	orders    map[string]*domain.TrackedOrder // venue order ID → order
	seenFills map[string]struct{}             // venue fill IDs already applied
	lastSet   domain.QuoteSet
}

// NewTracker creates a tracker for a market.
func NewTracker(market domain.Market, submitter ports.OrderSubmitter) *Tracker {
	return &Tracker{
		market:    market,
		submitter: submitter,
		orders:    make(map[string]*domain.TrackedOrder),
		seenFills: make(map[string]struct{}),
	}
}

// one is shared by the complement math below.
var one = decimal.NewFromInt(1)

// expandQuotes maps a QuoteSet (YES prices) to concrete venue orders:
// bids buy YES at the quote price, asks buy NO at the complement.
func (t *Tracker) expandQuotes(quotes domain.QuoteSet) []desiredOrder {
	desired := make([]desiredOrder, 0, len(quotes))
	for _, q := range quotes {
		switch q.Side {
		case domain.SideBid:
			desired = append(desired, desiredOrder{
				TokenID: t.market.TokenYes.TokenID,
				Side:    domain.SideBid,
				Price:   q.Price,
				Size:    q.Size,
				Level:   q.Level,
			})
		case domain.SideAsk:
			noPrice := domain.AlignToTick(one.Sub(q.Price), t.market.TickSize)
			if !noPrice.IsPositive() || noPrice.GreaterThanOrEqual(one) {
				continue
			}
			desired = append(desired, desiredOrder{
				TokenID: t.market.TokenNo.TokenID,
				Side:    domain.SideBid,
				Price:   noPrice,
				Size:    q.Size,
				Level:   q.Level,
			})
		}
	}
	return desired
}

// Sync drives the resting orders toward the target QuoteSet. An identical
// target with all orders still live is a no-op, so an unchanged market burns
// zero API budget. Returns how many orders were placed and cancelled.
func (t *Tracker) Sync(ctx context.Context, quotes domain.QuoteSet) (placed, cancelled int, err error) {
	t.mu.Lock()
	if quotes.Equal(t.lastSet) && t.allLive() {
		t.mu.Unlock()
		return 0, 0, nil
	}

	desired := t.expandQuotes(quotes)

	// Match live orders against desired ones. Unmatched live orders get
	// cancelled; unmatched desired entries get placed.
	matched := make(map[string]bool, len(t.orders))
	var toPlace []desiredOrder

	for _, d := range desired {
		found := false
		for id, o := range t.orders {
			if matched[id] || !o.Status.Live() {
				continue
			}
			if o.TokenID == d.TokenID && o.Side == d.Side &&
				o.Price.Equal(d.Price) && o.Remaining().Equal(d.Size) {
				matched[id] = true
				found = true
				break
			}
		}
		if !found {
			toPlace = append(toPlace, d)
		}
	}

	var toCancel []string
	for id, o := range t.orders {
		if o.Status.Live() && !matched[id] {
			toCancel = append(toCancel, id)
		}
	}
	t.mu.Unlock()

	// Cancel first so capital frees up before new placements.
	cancelled, err = t.cancelBatch(ctx, toCancel)
	if err != nil {
		return 0, cancelled, err
	}

	placed, err = t.placeBatch(ctx, toPlace)
	if err != nil {
		return placed, cancelled, err
	}

	t.mu.Lock()
	t.lastSet = quotes
	t.mu.Unlock()
	return placed, cancelled, nil
}

// cancelBatch cancels venue orders in chunks of MaxCancelBatch.
func (t *Tracker) cancelBatch(ctx context.Context, ids []string) (int, error) {
	total := 0
	for start := 0; start < len(ids); start += ports.MaxCancelBatch {
		end := start + ports.MaxCancelBatch
		if end > len(ids) {
			end = len(ids)
		}

		confirmed, err := t.submitter.CancelOrders(ctx, ids[start:end])
		if err != nil {
			return total, fmt.Errorf("quoting.Tracker: cancel batch: %w", err)
		}

		t.mu.Lock()
		for _, id := range confirmed {
			if o, ok := t.orders[id]; ok {
				o.Status = domain.StatusCancelled
			}
		}
		t.mu.Unlock()
		total += len(confirmed)
	}
	return total, nil
}

// placeBatch submits desired orders in chunks of MaxPlaceBatch. Individual
// rejections are logged and skipped; they resolve on the next tick.
func (t *Tracker) placeBatch(ctx context.Context, desired []desiredOrder) (int, error) {
	total := 0
	for start := 0; start < len(desired); start += ports.MaxPlaceBatch {
		end := start + ports.MaxPlaceBatch
		if end > len(desired) {
			end = len(desired)
		}
		chunk := desired[start:end]

		reqs := make([]domain.PlaceOrderRequest, len(chunk))
		pending := make(map[string]desiredOrder, len(chunk))
		for i, d := range chunk {
			clientID := uuid.NewString()
			reqs[i] = domain.PlaceOrderRequest{
				ClientID:    clientID,
				ConditionID: t.market.ConditionID,
				TokenID:     d.TokenID,
				Side:        d.Side,
				Price:       d.Price,
				Size:        d.Size,
				Level:       d.Level,
			}
			pending[clientID] = d
		}

		acks, err := t.submitter.PlaceOrders(ctx, reqs)
		if err != nil {
			return total, fmt.Errorf("quoting.Tracker: place batch: %w", err)
		}

		t.mu.Lock()
		for _, ack := range acks {
			d, ok := pending[ack.ClientID]
			if !ok {
				continue
			}
			if ack.Status == domain.StatusRejected {
				slog.Warn("order rejected",
					"market", t.market.ConditionID,
					"token", d.TokenID,
					"price", d.Price,
					"err", ack.ErrorMsg,
				)
				continue
			}
			t.orders[ack.VenueOrderID] = &domain.TrackedOrder{
				ID:           ack.ClientID,
				VenueOrderID: ack.VenueOrderID,
				ConditionID:  t.market.ConditionID,
				TokenID:      d.TokenID,
				Side:         d.Side,
				Price:        d.Price,
				Size:         d.Size,
				Status:       domain.StatusOpen,
				Level:        d.Level,
				PlacedAt:     time.Now().UTC(),
			}
			total++
		}
		t.mu.Unlock()
	}
	return total, nil
}

// OnFill applies a fill notification. Returns false for duplicates (same
// venue fill ID) so inventory never double-counts a replayed event.
func (t *Tracker) OnFill(f domain.Fill) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, seen := t.seenFills[f.FillID]; seen {
		return false
	}
	t.seenFills[f.FillID] = struct{}{}

	if o, ok := t.orders[f.VenueOrderID]; ok {
		o.FilledSize = o.FilledSize.Add(f.Size)
		if o.FilledSize.GreaterThanOrEqual(o.Size) {
			o.Status = domain.StatusFilled
		} else {
			o.Status = domain.StatusPartiallyFilled
		}
	}
	return true
}

// CancelAll cancels every resting order for this market.
func (t *Tracker) CancelAll(ctx context.Context) error {
	if err := t.submitter.CancelMarket(ctx, t.market.ConditionID); err != nil {
		return fmt.Errorf("quoting.Tracker: cancel all: %w", err)
	}

	t.mu.Lock()
	for _, o := range t.orders {
		if o.Status.Live() {
			o.Status = domain.StatusCancelled
		}
	}
	t.lastSet = nil
	t.mu.Unlock()
	return nil
}

// Reconcile replaces local state with the venue's snapshot. Returns the
// number of mismatches found (orders we thought live but the venue doesn't
// report, or the reverse). After it runs, local state converges to the venue.
func (t *Tracker) Reconcile(ctx context.Context) (int, error) {
	venueOrders, err := t.submitter.OpenOrders(ctx, t.market.ConditionID)
	if err != nil {
		return 0, fmt.Errorf("quoting.Tracker: reconcile: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	venueLive := make(map[string]domain.VenueOrder, len(venueOrders))
	for _, vo := range venueOrders {
		if vo.Status.Live() {
			venueLive[vo.VenueOrderID] = vo
		}
	}

	drift := 0

	// Orders we think are live that the venue no longer reports.
	for id, o := range t.orders {
		if !o.Status.Live() {
			continue
		}
		vo, ok := venueLive[id]
		if !ok {
			o.Status = domain.StatusCancelled
			drift++
			continue
		}
		if !o.FilledSize.Equal(vo.FilledSize) {
			o.FilledSize = vo.FilledSize
			o.Status = vo.Status
			drift++
		}
		delete(venueLive, id)
	}

	// Orders the venue reports that we don't know about.
	for id, vo := range venueLive {
		t.orders[id] = &domain.TrackedOrder{
			ID:           uuid.NewString(),
			VenueOrderID: id,
			ConditionID:  t.market.ConditionID,
			TokenID:      vo.TokenID,
			Side:         vo.Side,
			Price:        vo.Price,
			Size:         vo.Size,
			FilledSize:   vo.FilledSize,
			Status:       vo.Status,
			PlacedAt:     time.Now().UTC(),
		}
		drift++
	}

	if drift > 0 {
		// Force a full re-diff on the next tick.
		t.lastSet = nil
	}
	return drift, nil
}

// LiveOrders returns copies of the currently live orders.
func (t *Tracker) LiveOrders() []domain.TrackedOrder {
	t.mu.Lock()
	defer t.mu.Unlock()

	var live []domain.TrackedOrder
	for _, o := range t.orders {
		if o.Status.Live() {
			live = append(live, *o)
		}
	}
	return live
}

// IsYesToken reports whether a token ID is this market's YES side.
func (t *Tracker) IsYesToken(tokenID string) bool {
	return tokenID == t.market.TokenYes.TokenID
}

// allLive reports whether every order from the last sync is still resting.
// Caller holds t.mu.
func (t *Tracker) allLive() bool {
	if len(t.lastSet) == 0 {
		return len(t.orders) == 0
	}
	live := 0
	for _, o := range t.orders {
		if o.Status.Live() {
			live++
		}
	}
	return live == len(t.lastSet)
}
