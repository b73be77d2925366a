package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayazabbas/polymarket-lp/internal/application/feed"
	"github.com/ayazabbas/polymarket-lp/internal/application/quoting"
	"github.com/ayazabbas/polymarket-lp/internal/application/scanner"
	"github.com/ayazabbas/polymarket-lp/internal/domain"
	"github.com/ayazabbas/polymarket-lp/internal/ports"
)

type stubMarkets struct {
	mu      sync.Mutex
	markets []domain.Market
}

func (s *stubMarkets) set(markets []domain.Market) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets = markets
}

func (s *stubMarkets) FetchSamplingMarkets(ctx context.Context) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markets, nil
}

func (s *stubMarkets) FetchMarket(ctx context.Context, conditionID string) (domain.Market, error) {
	return domain.Market{}, nil
}

type stubDataFeed struct{}

func (s *stubDataFeed) Subscribe(ctx context.Context, tokenIDs []string) (<-chan ports.FeedEvent, error) {
	ch := make(chan ports.FeedEvent)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (s *stubDataFeed) Midpoint(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	return dec("0.5"), nil
}

func (s *stubDataFeed) FetchOrderBooks(ctx context.Context, tokenIDs []string) (map[string]domain.OrderBook, error) {
	return nil, nil
}

type stubSubmitter struct {
	mu         sync.Mutex
	cancelAlls int
	fills      map[string][]domain.Fill // conditionID → fills the poll returns
	cursors    []string                 // sinceFillID seen per Fills call
}

func (s *stubSubmitter) PlaceOrders(ctx context.Context, reqs []domain.PlaceOrderRequest) ([]domain.PlacedOrder, error) {
	return nil, nil
}

func (s *stubSubmitter) CancelOrders(ctx context.Context, ids []string) ([]string, error) {
	return ids, nil
}

func (s *stubSubmitter) CancelMarket(ctx context.Context, conditionID string) error { return nil }

func (s *stubSubmitter) CancelAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAlls++
	return nil
}

func (s *stubSubmitter) OpenOrders(ctx context.Context, conditionID string) ([]domain.VenueOrder, error) {
	return nil, nil
}

func (s *stubSubmitter) Fills(ctx context.Context, conditionID, sinceFillID string) ([]domain.Fill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors = append(s.cursors, sinceFillID)
	return s.fills[conditionID], nil
}

func (s *stubSubmitter) Balance(ctx context.Context) (float64, error) { return 1000, nil }

type stubNotifier struct {
	mu     sync.Mutex
	events []ports.Event
}

func (n *stubNotifier) Notify(ctx context.Context, ev ports.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *stubNotifier) NotifyScan(ctx context.Context, markets []domain.Market) error { return nil }

func (n *stubNotifier) NotifyStatus(ctx context.Context, p *domain.PortfolioMetrics, r []domain.RiskState) error {
	return nil
}

func (n *stubNotifier) has(t ports.EventType) bool {
	return n.count(t) > 0
}

func (n *stubNotifier) count(t ports.EventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ev := range n.events {
		if ev.Type == t {
			c++
		}
	}
	return c
}

func orchMarket(id string) domain.Market {
	return domain.Market{
		ConditionID: id,
		Question:    "q-" + id,
		TokenYes:    domain.Token{TokenID: id + "-yes", Outcome: "Yes"},
		TokenNo:     domain.Token{TokenID: id + "-no", Outcome: "No"},
		TickSize:    dec("0.01"),
		EndDate:     time.Now().Add(72 * time.Hour),
		Active:      true,
		Liquidity:   dec("1000"),
		Rewards: domain.RewardConfig{
			DailyRate: dec("50"),
			MinSize:   dec("50"),
			MaxSpread: dec("0.03"),
		},
	}
}

func orchFixture(t *testing.T, provider *stubMarkets) (*Orchestrator, *stubSubmitter, *stubNotifier) {
	t.Helper()
	sc := scanner.New(provider, scanner.Config{MaxMarkets: 10, MinRewardDaily: dec("5")})
	sub := &stubSubmitter{}
	notifier := &stubNotifier{}
	o := New(sc, &stubDataFeed{}, sub, notifier, nil, nil, Config{
		Quoting: quoting.Config{
			BaseOffsetCents:       dec("1"),
			MinOffsetCents:        dec("0.5"),
			RequoteThresholdCents: dec("0.5"),
			OrderSize:             dec("100"),
			NumLevels:             1,
			RequoteInterval:       time.Hour, // engines stay idle during tests
		},
		Risk: quoting.RiskConfig{
			InventoryCap: dec("5000"),
			SkewFactor:   dec("0.5"),
			KillLoss:     dec("100"),
		},
		Capital: CapitalConfig{
			MaxTotal:     dec("1000"),
			MaxPerMarket: dec("500"),
		},
		PortfolioLoss:   dec("200"),
		ShutdownTimeout: time.Second,
		Feed:            feed.Config{StaleAfter: time.Minute},
	})
	return o, sub, notifier
}

func TestOrchestrator_RescanStartsAndRetiresEngines(t *testing.T) {
	provider := &stubMarkets{}
	provider.set([]domain.Market{orchMarket("a"), orchMarket("b")})
	o, _, notifier := orchFixture(t, provider)
	defer o.shutdown()

	require.NoError(t, o.rescan(context.Background()))
	assert.Len(t, o.RiskStates(), 2)

	// Market "b" drops out of the ranking on the next scan.
	provider.set([]domain.Market{orchMarket("a")})
	require.NoError(t, o.rescan(context.Background()))

	assert.Len(t, o.RiskStates(), 1)
	assert.True(t, notifier.has(ports.EventMarketRetired))
}

func TestOrchestrator_RescanIsIdempotentForUnchangedSet(t *testing.T) {
	provider := &stubMarkets{}
	provider.set([]domain.Market{orchMarket("a")})
	o, _, notifier := orchFixture(t, provider)
	defer o.shutdown()

	require.NoError(t, o.rescan(context.Background()))
	require.NoError(t, o.rescan(context.Background()))

	assert.Len(t, o.RiskStates(), 1)
	assert.False(t, notifier.has(ports.EventMarketRetired))
}

func TestOrchestrator_DispatchFillRoutesToOwningEngine(t *testing.T) {
	provider := &stubMarkets{}
	provider.set([]domain.Market{orchMarket("a"), orchMarket("b")})
	o, _, _ := orchFixture(t, provider)
	defer o.shutdown()
	require.NoError(t, o.rescan(context.Background()))

	o.dispatchFill(context.Background(), domain.Fill{
		FillID:  "f1",
		TokenID: "b-yes",
		Side:    domain.SideBid,
		Price:   dec("0.40"),
		Size:    dec("100"),
	})

	var bInventory decimal.Decimal
	for _, rs := range o.RiskStates() {
		if rs.ConditionID == "b" {
			bInventory = rs.Inventory.YesTokens
		}
	}
	assert.True(t, bInventory.Equal(dec("100")), "fill must land on market b only")

	for _, rs := range o.RiskStates() {
		if rs.ConditionID == "a" {
			assert.True(t, rs.Inventory.YesTokens.IsZero())
		}
	}
}

func TestOrchestrator_PortfolioKillCancelsEverything(t *testing.T) {
	provider := &stubMarkets{}
	provider.set([]domain.Market{orchMarket("a")})
	o, sub, notifier := orchFixture(t, provider)
	defer o.shutdown()
	require.NoError(t, o.rescan(context.Background()))

	// A 1000-share long at 0.50 marked to ~0 loses 500, past the 200 limit.
	o.dispatchFill(context.Background(), domain.Fill{
		FillID:  "f1",
		TokenID: "a-yes",
		Side:    domain.SideBid,
		Price:   dec("0.50"),
		Size:    dec("1000"),
	})

	// The engine has no midpoint yet, so UnrealizedPnL marks the position at
	// zero value: pnl = 0 − 500 = −500.
	tripped := o.checkPortfolio(context.Background())
	assert.True(t, tripped)
	assert.Equal(t, 1, sub.cancelAlls)
	assert.True(t, notifier.has(ports.EventKillSwitch))

	// Once tripped it stays tripped.
	assert.True(t, o.checkPortfolio(context.Background()))
	assert.Equal(t, 1, sub.cancelAlls, "cancel-all fires once")
}

type stubInvOps struct {
	mu       sync.Mutex
	merges   map[string]decimal.Decimal
	redeems  []string
	balances map[string]decimal.Decimal // nil → TokenBalance errors out
}

func (s *stubInvOps) SplitCollateral(ctx context.Context, conditionID string, amount decimal.Decimal) error {
	return nil
}

func (s *stubInvOps) MergePairs(ctx context.Context, conditionID string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.merges == nil {
		s.merges = make(map[string]decimal.Decimal)
	}
	s.merges[conditionID] = amount
	return nil
}

func (s *stubInvOps) Redeem(ctx context.Context, conditionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redeems = append(s.redeems, conditionID)
	return nil
}

func (s *stubInvOps) TokenBalance(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balances == nil {
		return decimal.Zero, errors.New("signer unavailable")
	}
	return s.balances[tokenID], nil
}

func TestOrchestrator_ReleaseInventoryMergesPairs(t *testing.T) {
	inv := &stubInvOps{}
	o := &Orchestrator{invOps: inv}

	o.releaseInventory(context.Background(), orchMarket("a"), domain.Inventory{
		YesTokens: dec("300"),
		NoTokens:  dec("120"),
	})

	require.Contains(t, inv.merges, "a")
	assert.True(t, inv.merges["a"].Equal(dec("120")), "only matched pairs merge")
	assert.Empty(t, inv.redeems)
}

func TestOrchestrator_ReleaseInventoryPrefersOnChainBalance(t *testing.T) {
	m := orchMarket("a")
	inv := &stubInvOps{balances: map[string]decimal.Decimal{
		m.TokenYes.TokenID: dec("80"),
		m.TokenNo.TokenID:  dec("250"),
	}}
	o := &Orchestrator{invOps: inv}

	// Session inventory says 300/120, but the wallet only holds 80 YES.
	o.releaseInventory(context.Background(), m, domain.Inventory{
		YesTokens: dec("300"),
		NoTokens:  dec("120"),
	})

	require.Contains(t, inv.merges, "a")
	assert.True(t, inv.merges["a"].Equal(dec("80")))
}

func TestOrchestrator_ReleaseInventoryRedeemsResolved(t *testing.T) {
	inv := &stubInvOps{}
	o := &Orchestrator{invOps: inv}

	resolved := orchMarket("a")
	resolved.Closed = true
	o.releaseInventory(context.Background(), resolved, domain.Inventory{YesTokens: dec("300")})

	assert.Equal(t, []string{"a"}, inv.redeems)
	assert.Empty(t, inv.merges)
}

func TestOrchestrator_FeedOutageAlertsOnceAfterSustainedChecks(t *testing.T) {
	provider := &stubMarkets{}
	provider.set([]domain.Market{orchMarket("a")})
	o, _, notifier := orchFixture(t, provider)
	defer o.shutdown()
	require.NoError(t, o.rescan(context.Background()))

	ctx := context.Background()
	o.noteFeedHealth(ctx, false)
	o.noteFeedHealth(ctx, false)
	assert.False(t, notifier.has(ports.EventFeedDown), "a reconnect cycle must not alert")

	o.noteFeedHealth(ctx, false)
	assert.Equal(t, 1, notifier.count(ports.EventFeedDown))

	// Still down: no repeat alert.
	o.noteFeedHealth(ctx, false)
	assert.Equal(t, 1, notifier.count(ports.EventFeedDown))
}

func TestOrchestrator_FeedRecoveryRearmsAlert(t *testing.T) {
	provider := &stubMarkets{}
	provider.set([]domain.Market{orchMarket("a")})
	o, _, notifier := orchFixture(t, provider)
	defer o.shutdown()
	require.NoError(t, o.rescan(context.Background()))

	ctx := context.Background()
	for i := 0; i < feedDownChecks; i++ {
		o.noteFeedHealth(ctx, false)
	}
	o.noteFeedHealth(ctx, true)
	for i := 0; i < feedDownChecks; i++ {
		o.noteFeedHealth(ctx, false)
	}

	assert.Equal(t, 2, notifier.count(ports.EventFeedDown), "each sustained outage alerts")
}

func TestOrchestrator_PollFillsRoutesAndDeduplicates(t *testing.T) {
	provider := &stubMarkets{}
	provider.set([]domain.Market{orchMarket("a")})
	o, sub, _ := orchFixture(t, provider)
	defer o.shutdown()
	require.NoError(t, o.rescan(context.Background()))

	sub.mu.Lock()
	sub.fills = map[string][]domain.Fill{
		"a": {{
			FillID:  "pf1",
			TokenID: "a-yes",
			Side:    domain.SideBid,
			Price:   dec("0.48"),
			Size:    dec("100"),
		}},
	}
	sub.mu.Unlock()

	o.pollFills(context.Background())
	// The venue keeps returning the tail; the tracker drops the duplicate.
	o.pollFills(context.Background())

	rs := o.RiskStates()
	require.Len(t, rs, 1)
	assert.True(t, rs[0].Inventory.YesTokens.Equal(dec("100")), "duplicate fill must not double inventory")

	sub.mu.Lock()
	defer sub.mu.Unlock()
	require.Len(t, sub.cursors, 2)
	assert.Equal(t, "", sub.cursors[0])
	assert.Equal(t, "pf1", sub.cursors[1], "cursor advances past polled fills")
}

func TestOrchestrator_NoKillWhenFlat(t *testing.T) {
	provider := &stubMarkets{}
	provider.set([]domain.Market{orchMarket("a")})
	o, sub, _ := orchFixture(t, provider)
	defer o.shutdown()
	require.NoError(t, o.rescan(context.Background()))

	assert.False(t, o.checkPortfolio(context.Background()))
	assert.Zero(t, sub.cancelAlls)
}
