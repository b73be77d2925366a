package orchestrator

// Multi-market orchestrator: owns one quote engine per selected market, the
// shared market-data feed, capital allocation, and the portfolio kill switch.
// Engines run on their own goroutines; the orchestrator only reads immutable
// risk snapshots from them.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ayazabbas/polymarket-lp/internal/application/feed"
	"github.com/ayazabbas/polymarket-lp/internal/application/quoting"
	"github.com/ayazabbas/polymarket-lp/internal/application/scanner"
	"github.com/ayazabbas/polymarket-lp/internal/domain"
	"github.com/ayazabbas/polymarket-lp/internal/ports"
)

// Config holds orchestrator-level settings. Quoting and Risk act as the
// per-market template every engine starts from.
type Config struct {
	Quoting          quoting.Config
	Risk             quoting.RiskConfig
	Capital          CapitalConfig
	PortfolioLoss    decimal.Decimal // aggregate unrealized loss that shuts everything down
	RescanInterval   time.Duration
	SnapshotInterval time.Duration
	ShutdownTimeout  time.Duration
	Feed             feed.Config
	DryRun           bool
}

// engineHandle pairs an engine with its lifecycle controls.
type engineHandle struct {
	engine *quoting.Engine
	cancel context.CancelFunc
	done   chan struct{}
}

// Orchestrator runs the whole liquidity-provision session.
type Orchestrator struct {
	scanner   *scanner.Scanner
	dataFeed  ports.MarketDataProvider
	submitter ports.OrderSubmitter // nil in dry run
	notifier  ports.Notifier
	store     ports.Storage        // nil in dry run
	invOps    ports.InventoryOps   // nil when no signer sidecar is configured
	cfg       Config

	feedMgr    *feed.Manager
	feedCancel context.CancelFunc

	// Feed supervision state, touched only from the Run loop.
	feedDown    int
	feedAlerted bool
	fillCursor  map[string]string // conditionID → last polled fill ID

	mu        sync.Mutex
	engines   map[string]*engineHandle // conditionID → handle
	portfolio *domain.PortfolioMetrics
	kill      domain.KillSwitch
}

// New wires an orchestrator. submitter, store and invOps may be nil; a nil
// submitter/store means dry run, a nil invOps disables on-chain inventory
// operations.
func New(
	sc *scanner.Scanner,
	dataFeed ports.MarketDataProvider,
	submitter ports.OrderSubmitter,
	notifier ports.Notifier,
	store ports.Storage,
	invOps ports.InventoryOps,
	cfg Config,
) *Orchestrator {
	if cfg.RescanInterval <= 0 {
		cfg.RescanInterval = time.Hour
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = 5 * time.Minute
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	return &Orchestrator{
		scanner:    sc,
		dataFeed:   dataFeed,
		submitter:  submitter,
		notifier:   notifier,
		store:      store,
		invOps:     invOps,
		cfg:        cfg,
		feedMgr:    feed.NewManager(dataFeed, cfg.Feed),
		fillCursor: make(map[string]string),
		engines:    make(map[string]*engineHandle),
		portfolio:  domain.NewPortfolioMetrics(),
	}
}

// Run executes the session until ctx is cancelled or the portfolio kill
// switch trips.
func (o *Orchestrator) Run(ctx context.Context) error {
	slog.Info("orchestrator starting",
		"rescan", o.cfg.RescanInterval,
		"dry_run", o.cfg.DryRun,
	)

	if err := o.rescan(ctx); err != nil {
		return fmt.Errorf("orchestrator.Run: initial scan: %w", err)
	}

	rescanTicker := time.NewTicker(o.cfg.RescanInterval)
	defer rescanTicker.Stop()
	snapshotTicker := time.NewTicker(o.cfg.SnapshotInterval)
	defer snapshotTicker.Stop()
	riskTicker := time.NewTicker(30 * time.Second)
	defer riskTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return nil

		case f := <-o.feedMgr.Fills():
			o.dispatchFill(ctx, f)

		case <-riskTicker.C:
			o.superviseFeed(ctx)
			if o.checkPortfolio(ctx) {
				o.shutdown()
				return fmt.Errorf("orchestrator.Run: portfolio kill switch: %s", o.kill.Reason())
			}

		case <-rescanTicker.C:
			if err := o.rescan(ctx); err != nil {
				slog.Error("rescan failed, keeping current market set", "err", err)
			}

		case <-snapshotTicker.C:
			o.persistSnapshots(ctx)
		}
	}
}

// rescan refreshes the market set: starts engines for newly ranked markets,
// retires engines whose market dropped out, and rebalances allocations.
func (o *Orchestrator) rescan(ctx context.Context) error {
	ranked, err := o.scanner.Scan(ctx)
	if err != nil {
		return err
	}

	alloc := Allocate(ranked, o.cfg.Capital)

	o.mu.Lock()
	current := make(map[string]bool, len(ranked))
	var started, retired int

	for _, m := range ranked {
		current[m.ConditionID] = true
		factor := SizeFactor(alloc[m.ConditionID], o.cfg.Capital.MaxPerMarket)

		if h, ok := o.engines[m.ConditionID]; ok {
			h.engine.SetSizeFactor(factor)
			continue
		}
		o.startEngineLocked(ctx, m, factor)
		started++
	}

	var toRetire []*engineHandle
	for id, h := range o.engines {
		if !current[id] {
			toRetire = append(toRetire, h)
			delete(o.engines, id)
			retired++
		}
	}
	o.mu.Unlock()

	for _, h := range toRetire {
		o.retire(ctx, h)
	}

	o.restartFeed(ctx)

	slog.Info("rescan applied",
		"markets", len(ranked),
		"started", started,
		"retired", retired,
	)
	return nil
}

// startEngineLocked builds and launches an engine. Caller holds o.mu.
func (o *Orchestrator) startEngineLocked(ctx context.Context, m domain.Market, factor decimal.Decimal) {
	risk := quoting.NewController(m.ConditionID, o.cfg.Risk)
	tracker := quoting.NewTracker(m, o.submitter)
	eng := quoting.NewEngine(m, o.feedMgr, tracker, risk, o.notifier, o.store, o.cfg.Quoting)
	eng.SetSizeFactor(factor)

	engCtx, cancel := context.WithCancel(ctx)
	h := &engineHandle{engine: eng, cancel: cancel, done: make(chan struct{})}
	o.engines[m.ConditionID] = h
	o.portfolio.Markets[m.ConditionID] = eng.Metrics()

	go func() {
		defer close(h.done)
		eng.Run(engCtx)
	}()

	slog.Info("engine started",
		"market", m.ConditionID,
		"question", domain.TruncateQuestion(m.Question, m.ConditionID, 60),
		"score", m.Score.StringFixed(1),
		"size_factor", factor.StringFixed(2),
	)
}

// retire shuts down one engine, frees what inventory it can, and notifies
// the operator.
func (o *Orchestrator) retire(ctx context.Context, h *engineHandle) {
	market := h.engine.Market()
	h.cancel()
	select {
	case <-h.done:
	case <-time.After(o.cfg.ShutdownTimeout):
		slog.Warn("engine retire timed out", "market", market.ConditionID)
	}

	o.releaseInventory(ctx, market, h.engine.RiskState().Inventory)

	if o.notifier != nil {
		_ = o.notifier.Notify(ctx, ports.Event{
			Type:        ports.EventMarketRetired,
			ConditionID: market.ConditionID,
			Question:    market.Question,
			Message:     "market dropped out of the ranked set",
			At:          time.Now().UTC(),
		})
	}
}

// releaseInventory merges matched YES+NO pairs back into collateral and
// redeems resolved markets. Best effort: a failed call leaves tokens in the
// wallet for a later manual pass.
func (o *Orchestrator) releaseInventory(ctx context.Context, m domain.Market, inv domain.Inventory) {
	if o.invOps == nil {
		return
	}

	if m.Closed {
		if err := o.invOps.Redeem(ctx, m.ConditionID); err != nil {
			slog.Warn("redeem failed", "market", m.ConditionID, "err", err)
		} else {
			slog.Info("redeemed resolved market", "market", m.ConditionID)
		}
		return
	}

	pairs := o.mergeablePairs(ctx, m, inv)
	if !pairs.IsPositive() {
		return
	}
	if err := o.invOps.MergePairs(ctx, m.ConditionID, pairs); err != nil {
		slog.Warn("merge failed", "market", m.ConditionID, "pairs", pairs, "err", err)
	} else {
		slog.Info("merged pairs back to collateral", "market", m.ConditionID, "pairs", pairs)
	}
}

// mergeablePairs prefers the signer's on-chain balances, which also cover
// tokens left over from earlier sessions. Session inventory is the fallback
// when the sidecar cannot answer.
func (o *Orchestrator) mergeablePairs(ctx context.Context, m domain.Market, inv domain.Inventory) decimal.Decimal {
	yesBal, errYes := o.invOps.TokenBalance(ctx, m.TokenYes.TokenID)
	noBal, errNo := o.invOps.TokenBalance(ctx, m.TokenNo.TokenID)
	if errYes == nil && errNo == nil {
		return decimal.Min(yesBal, noBal)
	}
	slog.Warn("token balance query failed, using session inventory",
		"market", m.ConditionID, "err_yes", errYes, "err_no", errNo)
	return decimal.Min(inv.YesTokens, inv.NoTokens)
}

// restartFeed resubscribes the shared feed to the current token set.
func (o *Orchestrator) restartFeed(ctx context.Context) {
	o.mu.Lock()
	tokens := make([]string, 0, len(o.engines)*2)
	for _, h := range o.engines {
		m := h.engine.Market()
		tokens = append(tokens, m.TokenYes.TokenID, m.TokenNo.TokenID)
	}
	prev := o.feedCancel
	feedCtx, cancel := context.WithCancel(ctx)
	o.feedCancel = cancel
	o.mu.Unlock()

	if prev != nil {
		prev()
	}
	if len(tokens) == 0 {
		return
	}

	go func() {
		if err := o.feedMgr.Run(feedCtx, tokens); err != nil && feedCtx.Err() == nil {
			slog.Error("feed manager stopped", "err", err)
		}
	}()
}

// dispatchFill routes a fill to the engine that owns its token.
func (o *Orchestrator) dispatchFill(ctx context.Context, f domain.Fill) {
	o.mu.Lock()
	var target *quoting.Engine
	for _, h := range o.engines {
		if h.engine.OwnsToken(f.TokenID) {
			target = h.engine
			break
		}
	}
	o.mu.Unlock()

	if target == nil {
		slog.Debug("fill for unknown token", "token", f.TokenID, "fill", f.FillID)
		return
	}
	target.OnFill(ctx, f)
}

// feedDownChecks is how many consecutive unhealthy risk-ticker checks the
// feed gets before the operator is alerted. One reconnect cycle should never
// page anyone.
const feedDownChecks = 3

// superviseFeed runs on the risk ticker: alerts on sustained feed outages
// and falls back to polling fills over REST while the push channel is down.
func (o *Orchestrator) superviseFeed(ctx context.Context) {
	o.noteFeedHealth(ctx, o.feedMgr.Healthy())
}

func (o *Orchestrator) noteFeedHealth(ctx context.Context, healthy bool) {
	if healthy {
		if o.feedAlerted {
			slog.Info("market data feed recovered")
		}
		o.feedDown, o.feedAlerted = 0, false
		return
	}

	o.feedDown++
	if o.feedDown >= feedDownChecks && !o.feedAlerted {
		o.feedAlerted = true
		slog.Error("market data feed hard down", "checks", o.feedDown)
		if o.notifier != nil {
			_ = o.notifier.Notify(ctx, ports.Event{
				Type:    ports.EventFeedDown,
				Message: "market data feed down, polling fills over REST",
				At:      time.Now().UTC(),
			})
		}
	}
	o.pollFills(ctx)
}

// pollFills queries recent fills per market over REST and routes them to the
// owning engines. Fill IDs already seen by a tracker are deduplicated there,
// so replaying the tail after a cursor reset is harmless.
func (o *Orchestrator) pollFills(ctx context.Context) {
	if o.submitter == nil {
		return
	}

	o.mu.Lock()
	handles := make([]*engineHandle, 0, len(o.engines))
	for _, h := range o.engines {
		handles = append(handles, h)
	}
	o.mu.Unlock()

	for _, h := range handles {
		id := h.engine.Market().ConditionID
		fills, err := o.submitter.Fills(ctx, id, o.fillCursor[id])
		if err != nil {
			slog.Warn("fill poll failed", "market", id, "err", err)
			continue
		}
		for _, f := range fills {
			h.engine.OnFill(ctx, f)
		}
		if len(fills) > 0 {
			o.fillCursor[id] = fills[len(fills)-1].FillID
		}
	}
}

// checkPortfolio trips the portfolio kill switch when the aggregate
// unrealized loss crosses the configured threshold. Returns true when
// tripped; the session must not continue past it.
func (o *Orchestrator) checkPortfolio(ctx context.Context) bool {
	if o.kill.Tripped() {
		return true
	}
	if !o.cfg.PortfolioLoss.IsPositive() {
		return false
	}

	total := decimal.Zero
	o.mu.Lock()
	for _, h := range o.engines {
		total = total.Add(h.engine.RiskState().UnrealizedPnL)
	}
	o.mu.Unlock()

	if !total.IsNegative() || total.Neg().LessThan(o.cfg.PortfolioLoss) {
		return false
	}

	reason := fmt.Sprintf("portfolio unrealized loss %s exceeds %s",
		total.StringFixed(2), o.cfg.PortfolioLoss.Neg().StringFixed(2))
	o.kill.Trip(reason)
	slog.Error("portfolio kill switch tripped", "loss", total.StringFixed(2))

	if o.submitter != nil {
		cancelCtx, cancel := context.WithTimeout(context.Background(), o.cfg.ShutdownTimeout)
		if err := o.submitter.CancelAll(cancelCtx); err != nil {
			slog.Error("portfolio cancel-all failed", "err", err)
		}
		cancel()
	}
	if o.notifier != nil {
		_ = o.notifier.Notify(ctx, ports.Event{
			Type:    ports.EventKillSwitch,
			Message: reason,
			At:      time.Now().UTC(),
		})
	}
	return true
}

// persistSnapshots writes one metrics snapshot per active engine.
func (o *Orchestrator) persistSnapshots(ctx context.Context) {
	if o.store == nil {
		return
	}

	o.mu.Lock()
	handles := make([]*engineHandle, 0, len(o.engines))
	for _, h := range o.engines {
		handles = append(handles, h)
	}
	o.mu.Unlock()

	now := time.Now().UTC()
	for _, h := range handles {
		m := h.engine.Metrics()
		rs := h.engine.RiskState()
		spread, reward, rebate, fills, orders := m.Counters()
		snap := ports.MetricsSnapshot{
			ConditionID:   m.ConditionID,
			Question:      m.Question,
			SpreadPnL:     spread.String(),
			RewardPnL:     reward.String(),
			RebatePnL:     rebate.String(),
			UnrealizedPnL: rs.UnrealizedPnL.String(),
			NetInventory:  rs.Inventory.Net().String(),
			TotalFills:    fills,
			TotalOrders:   orders,
			UptimePct:     m.UptimePct().StringFixed(2),
			TakenAt:       now,
		}
		if err := o.store.SaveSnapshot(ctx, snap); err != nil {
			slog.Warn("snapshot persist failed", "market", m.ConditionID, "err", err)
		}
	}
}

// RiskStates returns the current risk snapshot of every engine.
func (o *Orchestrator) RiskStates() []domain.RiskState {
	o.mu.Lock()
	defer o.mu.Unlock()
	states := make([]domain.RiskState, 0, len(o.engines))
	for _, h := range o.engines {
		states = append(states, h.engine.RiskState())
	}
	return states
}

// Portfolio returns the session metrics aggregate.
func (o *Orchestrator) Portfolio() *domain.PortfolioMetrics {
	return o.portfolio
}

// shutdown stops the feed and every engine, bounded by ShutdownTimeout.
func (o *Orchestrator) shutdown() {
	slog.Info("orchestrator shutting down")

	o.mu.Lock()
	if o.feedCancel != nil {
		o.feedCancel()
	}
	handles := make([]*engineHandle, 0, len(o.engines))
	for id, h := range o.engines {
		handles = append(handles, h)
		delete(o.engines, id)
	}
	o.mu.Unlock()

	deadline := time.After(o.cfg.ShutdownTimeout)
	for _, h := range handles {
		h.cancel()
	}
	for _, h := range handles {
		select {
		case <-h.done:
		case <-deadline:
			slog.Warn("shutdown deadline reached with engines still closing")
			return
		}
	}
	slog.Info("orchestrator stopped")
}
