package quoting

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayazabbas/polymarket-lp/internal/domain"
	"github.com/ayazabbas/polymarket-lp/internal/ports"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testMarket() domain.Market {
	return domain.Market{
		ConditionID: "0xcond",
		Question:    "Will it rain tomorrow?",
		TokenYes:    domain.Token{TokenID: "tok-yes", Outcome: "Yes"},
		TokenNo:     domain.Token{TokenID: "tok-no", Outcome: "No"},
		TickSize:    dec("0.01"),
		Active:      true,
	}
}

// stubSubmitter records calls and acks everything as OPEN unless told to
// reject a specific price.
type stubSubmitter struct {
	mu            sync.Mutex
	placeCalls    [][]domain.PlaceOrderRequest
	cancelCalls   [][]string
	cancelMarkets []string
	callOrder     []string
	openOrders    []domain.VenueOrder
	rejectPrice   string // price string that gets a per-order rejection
	placeErr      error
	nextID        int
}

func (s *stubSubmitter) PlaceOrders(ctx context.Context, reqs []domain.PlaceOrderRequest) ([]domain.PlacedOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.placeErr != nil {
		return nil, s.placeErr
	}
	s.placeCalls = append(s.placeCalls, reqs)
	s.callOrder = append(s.callOrder, "place")

	acks := make([]domain.PlacedOrder, len(reqs))
	for i, r := range reqs {
		if s.rejectPrice != "" && r.Price.Equal(dec(s.rejectPrice)) {
			acks[i] = domain.PlacedOrder{ClientID: r.ClientID, Status: domain.StatusRejected, ErrorMsg: "invalid tick size"}
			continue
		}
		s.nextID++
		acks[i] = domain.PlacedOrder{
			ClientID:     r.ClientID,
			VenueOrderID: fmt.Sprintf("vo-%d", s.nextID),
			Status:       domain.StatusOpen,
		}
	}
	return acks, nil
}

func (s *stubSubmitter) CancelOrders(ctx context.Context, ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelCalls = append(s.cancelCalls, ids)
	s.callOrder = append(s.callOrder, "cancel")
	return ids, nil
}

func (s *stubSubmitter) CancelMarket(ctx context.Context, conditionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelMarkets = append(s.cancelMarkets, conditionID)
	return nil
}

func (s *stubSubmitter) CancelAll(ctx context.Context) error { return nil }

func (s *stubSubmitter) OpenOrders(ctx context.Context, conditionID string) ([]domain.VenueOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openOrders, nil
}

func (s *stubSubmitter) Fills(ctx context.Context, conditionID, sinceFillID string) ([]domain.Fill, error) {
	return nil, nil
}

func (s *stubSubmitter) Balance(ctx context.Context) (float64, error) { return 1000, nil }

func (s *stubSubmitter) placed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.placeCalls {
		n += len(c)
	}
	return n
}

func twoSidedQuotes(bid, ask string) domain.QuoteSet {
	return domain.QuoteSet{
		{Side: domain.SideBid, Price: dec(bid), Size: dec("100"), Level: 0},
		{Side: domain.SideAsk, Price: dec(ask), Size: dec("100"), Level: 0},
	}
}

func TestTracker_SyncExpandsAskAsNoComplement(t *testing.T) {
	sub := &stubSubmitter{}
	tr := NewTracker(testMarket(), sub)

	placed, cancelled, err := tr.Sync(context.Background(), twoSidedQuotes("0.48", "0.52"))
	require.NoError(t, err)
	assert.Equal(t, 2, placed)
	assert.Equal(t, 0, cancelled)

	require.Len(t, sub.placeCalls, 1)
	reqs := sub.placeCalls[0]
	require.Len(t, reqs, 2)

	// Bid buys YES at the quoted price.
	assert.Equal(t, "tok-yes", reqs[0].TokenID)
	assert.Equal(t, domain.SideBid, reqs[0].Side)
	assert.True(t, reqs[0].Price.Equal(dec("0.48")))

	// Ask buys NO at the complement: 1 − 0.52 = 0.48.
	assert.Equal(t, "tok-no", reqs[1].TokenID)
	assert.Equal(t, domain.SideBid, reqs[1].Side)
	assert.True(t, reqs[1].Price.Equal(dec("0.48")))
}

func TestTracker_SyncIdenticalSetIsNoOp(t *testing.T) {
	sub := &stubSubmitter{}
	tr := NewTracker(testMarket(), sub)
	quotes := twoSidedQuotes("0.48", "0.52")

	_, _, err := tr.Sync(context.Background(), quotes)
	require.NoError(t, err)

	placed, cancelled, err := tr.Sync(context.Background(), quotes)
	require.NoError(t, err)
	assert.Equal(t, 0, placed)
	assert.Equal(t, 0, cancelled)
	assert.Len(t, sub.placeCalls, 1, "second sync must not touch the venue")
	assert.Empty(t, sub.cancelCalls)
}

func TestTracker_SyncCancelsBeforePlacing(t *testing.T) {
	sub := &stubSubmitter{}
	tr := NewTracker(testMarket(), sub)

	_, _, err := tr.Sync(context.Background(), twoSidedQuotes("0.48", "0.52"))
	require.NoError(t, err)

	// Midpoint moved: everything gets repriced.
	placed, cancelled, err := tr.Sync(context.Background(), twoSidedQuotes("0.58", "0.62"))
	require.NoError(t, err)
	assert.Equal(t, 2, placed)
	assert.Equal(t, 2, cancelled)

	require.GreaterOrEqual(t, len(sub.callOrder), 3)
	assert.Equal(t, "cancel", sub.callOrder[1], "stale orders cancel before new ones place")
	assert.Equal(t, "place", sub.callOrder[2])
}

func TestTracker_SyncKeepsMatchingOrders(t *testing.T) {
	sub := &stubSubmitter{}
	tr := NewTracker(testMarket(), sub)

	_, _, err := tr.Sync(context.Background(), twoSidedQuotes("0.48", "0.52"))
	require.NoError(t, err)

	// Only the ask moves; the bid must keep resting for queue priority.
	mixed := domain.QuoteSet{
		{Side: domain.SideBid, Price: dec("0.48"), Size: dec("100"), Level: 0},
		{Side: domain.SideAsk, Price: dec("0.54"), Size: dec("100"), Level: 0},
	}
	placed, cancelled, err := tr.Sync(context.Background(), mixed)
	require.NoError(t, err)
	assert.Equal(t, 1, placed)
	assert.Equal(t, 1, cancelled)
	assert.Len(t, tr.LiveOrders(), 2)
}

func TestTracker_SyncChunksLargeBatches(t *testing.T) {
	sub := &stubSubmitter{}
	tr := NewTracker(testMarket(), sub)

	// 20 levels of bids → 20 desired orders, over the 15-order place limit.
	var quotes domain.QuoteSet
	for i := 0; i < 20; i++ {
		quotes = append(quotes, domain.Quote{
			Side:  domain.SideBid,
			Price: dec("0.30").Add(decimal.New(int64(i), -2)),
			Size:  dec("100"),
			Level: i,
		})
	}

	placed, _, err := tr.Sync(context.Background(), quotes)
	require.NoError(t, err)
	assert.Equal(t, 20, placed)
	require.Len(t, sub.placeCalls, 2)
	assert.Len(t, sub.placeCalls[0], ports.MaxPlaceBatch)
	assert.Len(t, sub.placeCalls[1], 5)
}

func TestTracker_SyncSkipsPerOrderRejections(t *testing.T) {
	sub := &stubSubmitter{rejectPrice: "0.48"}
	tr := NewTracker(testMarket(), sub)

	placed, _, err := tr.Sync(context.Background(), twoSidedQuotes("0.48", "0.54"))
	require.NoError(t, err, "a single rejection must not fail the sync")
	assert.Equal(t, 1, placed)
	assert.Len(t, tr.LiveOrders(), 1)
}

func TestTracker_OnFillDedupes(t *testing.T) {
	sub := &stubSubmitter{}
	tr := NewTracker(testMarket(), sub)

	_, _, err := tr.Sync(context.Background(), twoSidedQuotes("0.48", "0.52"))
	require.NoError(t, err)
	venueID := tr.LiveOrders()[0].VenueOrderID

	fill := domain.Fill{
		FillID:       "fill-1",
		VenueOrderID: venueID,
		TokenID:      "tok-yes",
		Side:         domain.SideBid,
		Price:        dec("0.48"),
		Size:         dec("40"),
		Timestamp:    time.Now(),
	}
	assert.True(t, tr.OnFill(fill))
	assert.False(t, tr.OnFill(fill), "replayed fill must be dropped")
}

func TestTracker_OnFillUpdatesOrderState(t *testing.T) {
	sub := &stubSubmitter{}
	tr := NewTracker(testMarket(), sub)

	_, _, err := tr.Sync(context.Background(), domain.QuoteSet{
		{Side: domain.SideBid, Price: dec("0.48"), Size: dec("100"), Level: 0},
	})
	require.NoError(t, err)
	venueID := tr.LiveOrders()[0].VenueOrderID

	tr.OnFill(domain.Fill{FillID: "f1", VenueOrderID: venueID, Size: dec("40")})
	live := tr.LiveOrders()
	require.Len(t, live, 1)
	assert.Equal(t, domain.StatusPartiallyFilled, live[0].Status)
	assert.True(t, live[0].Remaining().Equal(dec("60")))

	tr.OnFill(domain.Fill{FillID: "f2", VenueOrderID: venueID, Size: dec("60")})
	assert.Empty(t, tr.LiveOrders(), "fully filled order is no longer live")
}

func TestTracker_CancelAll(t *testing.T) {
	sub := &stubSubmitter{}
	tr := NewTracker(testMarket(), sub)

	_, _, err := tr.Sync(context.Background(), twoSidedQuotes("0.48", "0.52"))
	require.NoError(t, err)

	require.NoError(t, tr.CancelAll(context.Background()))
	assert.Equal(t, []string{"0xcond"}, sub.cancelMarkets)
	assert.Empty(t, tr.LiveOrders())

	// The same quote set must fully re-place after a blanket cancel.
	placed, _, err := tr.Sync(context.Background(), twoSidedQuotes("0.48", "0.52"))
	require.NoError(t, err)
	assert.Equal(t, 2, placed)
}

func TestTracker_ReconcileDetectsDrift(t *testing.T) {
	sub := &stubSubmitter{}
	tr := NewTracker(testMarket(), sub)

	_, _, err := tr.Sync(context.Background(), twoSidedQuotes("0.48", "0.52"))
	require.NoError(t, err)
	live := tr.LiveOrders()
	require.Len(t, live, 2)

	// Venue only knows about one of our orders plus a stranger.
	sub.openOrders = []domain.VenueOrder{
		{
			VenueOrderID: live[0].VenueOrderID,
			TokenID:      live[0].TokenID,
			Side:         live[0].Side,
			Price:        live[0].Price,
			Size:         live[0].Size,
			Status:       domain.StatusOpen,
		},
		{
			VenueOrderID: "vo-stranger",
			TokenID:      "tok-yes",
			Side:         domain.SideBid,
			Price:        dec("0.30"),
			Size:         dec("50"),
			Status:       domain.StatusOpen,
		},
	}

	drift, err := tr.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, drift, "one lost order and one adopted order")

	after := tr.LiveOrders()
	assert.Len(t, after, 2)
	ids := map[string]bool{}
	for _, o := range after {
		ids[o.VenueOrderID] = true
	}
	assert.True(t, ids["vo-stranger"], "venue-only order must be adopted")
}

func TestTracker_ReconcileCleanIsZeroDrift(t *testing.T) {
	sub := &stubSubmitter{}
	tr := NewTracker(testMarket(), sub)

	_, _, err := tr.Sync(context.Background(), twoSidedQuotes("0.48", "0.52"))
	require.NoError(t, err)

	for _, o := range tr.LiveOrders() {
		sub.openOrders = append(sub.openOrders, domain.VenueOrder{
			VenueOrderID: o.VenueOrderID,
			TokenID:      o.TokenID,
			Side:         o.Side,
			Price:        o.Price,
			Size:         o.Size,
			Status:       domain.StatusOpen,
		})
	}

	drift, err := tr.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, drift)
}
