package quoting

// Per-market quote engine. Single goroutine owns the tick loop; fills arrive
// through OnFill from the orchestrator's dispatch loop. All venue interaction
// goes through the tracker so the engine itself never touches order state
// directly.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ayazabbas/polymarket-lp/internal/domain"
	"github.com/ayazabbas/polymarket-lp/internal/ports"
)

// State is the engine lifecycle state.
type State string

const (
	StateDiscovering  State = "discovering" // waiting for the first valid sample
	StateDryRun       State = "dry_run"     // computing quotes, not submitting
	StateLive         State = "live"        // quoting with real orders
	StatePaused       State = "paused"      // stale feed or kill switch; orders cancelled
	StateShuttingDown State = "shutting_down"
	StateTerminated   State = "terminated"
)

// reconcileEvery is the number of ticks between venue reconciliations.
const reconcileEvery = 10

// Config holds per-market quoting parameters.
type Config struct {
	BaseOffsetCents decimal.Decimal
	MinOffsetCents  decimal.Decimal
	RequoteInterval time.Duration
	// RequoteThresholdCents is the midpoint move that forces a requote even
	// when the resulting QuoteSet would round to the same prices.
	RequoteThresholdCents decimal.Decimal
	OrderSize             decimal.Decimal
	NumLevels             int
	DryRun                bool
}

// MidpointSource abstracts the feed manager for the engine.
type MidpointSource interface {
	Latest(tokenID string) (domain.MidpointSample, bool)
}

// Engine quotes a single market.
type Engine struct {
	market   domain.Market
	feed     MidpointSource
	tracker  *Tracker
	risk     *Controller
	notifier ports.Notifier
	store    ports.Storage // nil in dry run
	cfg      Config

	metrics *domain.MarketMetrics

	mu         sync.Mutex
	state      State
	lastMid    decimal.Decimal
	sizeFactor decimal.Decimal // capital allocation scaling, 1 = full size
	tickCount  int
}

// NewEngine creates an engine in the Discovering state.
func NewEngine(
	market domain.Market,
	feedSrc MidpointSource,
	tracker *Tracker,
	risk *Controller,
	notifier ports.Notifier,
	store ports.Storage,
	cfg Config,
) *Engine {
	return &Engine{
		market:     market,
		feed:       feedSrc,
		tracker:    tracker,
		risk:       risk,
		notifier:   notifier,
		store:      store,
		cfg:        cfg,
		metrics:    domain.NewMarketMetrics(market.ConditionID, market.Question),
		state:      StateDiscovering,
		sizeFactor: decimal.NewFromInt(1),
	}
}

// Run drives the tick loop until ctx is cancelled, then shuts down cleanly.
func (e *Engine) Run(ctx context.Context) {
	interval := e.cfg.RequoteInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			// Bounded shutdown: best effort cancel with a fresh context.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			e.Shutdown(shutdownCtx)
			cancel()
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick runs one quoting cycle. Exported for the orchestrator and tests.
func (e *Engine) Tick(ctx context.Context) {
	e.mu.Lock()
	if e.state == StateShuttingDown || e.state == StateTerminated {
		e.mu.Unlock()
		return
	}
	e.tickCount++
	doReconcile := e.tickCount%reconcileEvery == 0
	e.mu.Unlock()

	if killed, reason := e.risk.Killed(); killed {
		e.pause(ctx, "kill switch: "+reason)
		return
	}

	sample, fresh := e.feed.Latest(e.market.TokenYes.TokenID)
	if !fresh {
		e.pause(ctx, "midpoint stale or missing")
		return
	}
	mid := sample.Price

	if e.risk.CheckKill(mid) {
		_, reason := e.risk.Killed()
		e.pause(ctx, "kill switch: "+reason)
		e.notify(ctx, ports.EventKillSwitch, reason)
		return
	}

	if doReconcile && !e.cfg.DryRun {
		if drift, err := e.tracker.Reconcile(ctx); err != nil {
			slog.Warn("reconcile failed", "market", e.market.ConditionID, "err", err)
		} else if drift > 0 {
			e.notify(ctx, ports.EventReconcileDrift, fmt.Sprintf("%d orders drifted from venue state", drift))
		}
	}

	e.resume()

	// Skip the requote when the midpoint barely moved and orders are still
	// resting; queue priority is worth more than a cosmetic reprice.
	e.mu.Lock()
	threshold := e.cfg.RequoteThresholdCents.Div(decimal.NewFromInt(100))
	smallMove := !e.lastMid.IsZero() && mid.Sub(e.lastMid).Abs().LessThan(threshold)
	e.mu.Unlock()

	hasOrders := len(e.tracker.LiveOrders()) > 0
	if smallMove && hasOrders {
		e.metrics.RecordTick(true)
		return
	}

	quotes := e.buildQuotes(mid)

	if e.cfg.DryRun {
		slog.Info("dry run quotes",
			"market", e.market.ConditionID,
			"mid", mid,
			"quotes", len(quotes),
		)
		e.setLastMid(mid)
		e.metrics.RecordTick(false)
		return
	}

	placed, cancelled, err := e.tracker.Sync(ctx, quotes)
	if err != nil {
		slog.Error("quote sync failed", "market", e.market.ConditionID, "err", err)
		e.metrics.RecordTick(hasOrders)
		return
	}

	if placed > 0 {
		e.metrics.RecordOrders(int64(placed))
		e.notify(ctx, ports.EventQuotesPlaced, fmt.Sprintf("%d orders placed around %s", placed, mid.StringFixed(3)))
	}
	if cancelled > 0 {
		e.notify(ctx, ports.EventQuotesCancelled, fmt.Sprintf("%d stale orders cancelled", cancelled))
	}
	if placed > 0 || cancelled > 0 {
		slog.Debug("requoted",
			"market", e.market.ConditionID,
			"mid", mid,
			"placed", placed,
			"cancelled", cancelled,
			"reward_score", e.advisoryScore(mid, quotes),
		)
	}

	e.setLastMid(mid)
	e.metrics.RecordTick(len(quotes) > 0)
}

// buildQuotes assembles QuoteParams for the current tick and generates the
// target QuoteSet, scaled by the capital allocation factor.
func (e *Engine) buildQuotes(mid decimal.Decimal) domain.QuoteSet {
	d := e.risk.Directives()

	size := e.cfg.OrderSize.Mul(e.SizeFactor()).Floor()
	if size.LessThan(decimal.NewFromInt(1)) {
		size = decimal.NewFromInt(1)
	}

	return domain.GenerateQuotes(domain.QuoteParams{
		Midpoint:        mid,
		BaseOffsetCents: e.cfg.BaseOffsetCents,
		MinOffsetCents:  e.cfg.MinOffsetCents,
		TickSize:        e.market.TickSize,
		OrderSize:       size,
		NumLevels:       e.cfg.NumLevels,
		FeeRateBps:      e.market.FeeRateBps,
		BidOffsetMult:   d.BidOffsetMult,
		AskOffsetMult:   d.AskOffsetMult,
		PauseBids:       d.PauseBids,
		PauseAsks:       d.PauseAsks,
	})
}

// rewardScore estimates the reward score of the innermost quote level.
// Inside the two-sided band the min-side rule applies; outside it the venue
// credits each side on its own.
func (e *Engine) rewardScore(mid decimal.Decimal, quotes domain.QuoteSet) decimal.Decimal {
	var bidScore, askScore decimal.Decimal
	for _, q := range quotes {
		if q.Level != 0 {
			continue
		}
		s := domain.EstimateScore(mid, q.Price, q.Size, e.market.Rewards.MaxSpread, e.market.Rewards.MinSize)
		if q.Side == domain.SideBid {
			bidScore = s
		} else {
			askScore = s
		}
	}
	if !e.market.InTwoSidedBand(mid) {
		return bidScore.Add(askScore)
	}
	return domain.TwoSidedScore(bidScore, askScore)
}

// advisoryScore formats the reward score plus the holding factor near
// resolution. Logging only; never gates a requote.
func (e *Engine) advisoryScore(mid decimal.Decimal, quotes domain.QuoteSet) string {
	score := e.rewardScore(mid, quotes)

	days := int(time.Until(e.market.EndDate).Hours() / 24)
	if hold := domain.HoldingRewardFactor(mid, days); hold.IsPositive() {
		return fmt.Sprintf("%s (hold %s)", score.StringFixed(2), hold.StringFixed(2))
	}
	return score.StringFixed(2)
}

// OnFill applies a fill notification for this market. Duplicates are dropped
// by the tracker before they can touch inventory.
func (e *Engine) OnFill(ctx context.Context, f domain.Fill) {
	if !e.tracker.OnFill(f) {
		return
	}

	isYes := e.tracker.IsYesToken(f.TokenID)
	e.risk.ApplyFill(f, isYes)

	// Spread capture estimate: distance from the last midpoint, floored at
	// zero. Refined when the position closes; good enough for the dashboard.
	capture := decimal.Zero
	e.mu.Lock()
	if !e.lastMid.IsZero() {
		ref := e.lastMid
		if !isYes {
			ref = one.Sub(e.lastMid)
		}
		if f.Side == domain.SideBid {
			capture = ref.Sub(f.Price).Mul(f.Size)
		} else {
			capture = f.Price.Sub(ref).Mul(f.Size)
		}
		if capture.IsNegative() {
			capture = decimal.Zero
		}
	}
	e.mu.Unlock()

	e.metrics.RecordFill(capture)

	if e.store != nil {
		if err := e.store.SaveFill(ctx, e.market.ConditionID, f); err != nil {
			slog.Warn("fill persist failed", "fill", f.FillID, "err", err)
		}
	}

	e.notify(ctx, ports.EventFill, fmt.Sprintf("%s %s @ %s", f.Side, f.Size, f.Price))
	slog.Info("fill",
		"market", e.market.ConditionID,
		"token", f.TokenID,
		"side", f.Side,
		"price", f.Price,
		"size", f.Size,
	)
}

// OwnsToken reports whether a token belongs to this engine's market.
func (e *Engine) OwnsToken(tokenID string) bool {
	return tokenID == e.market.TokenYes.TokenID || tokenID == e.market.TokenNo.TokenID
}

// Shutdown cancels all resting orders and terminates the engine.
func (e *Engine) Shutdown(ctx context.Context) {
	e.mu.Lock()
	if e.state == StateTerminated {
		e.mu.Unlock()
		return
	}
	e.state = StateShuttingDown
	e.mu.Unlock()

	if !e.cfg.DryRun {
		if err := e.tracker.CancelAll(ctx); err != nil {
			slog.Error("shutdown cancel failed", "market", e.market.ConditionID, "err", err)
		}
	}

	e.mu.Lock()
	e.state = StateTerminated
	e.mu.Unlock()
	slog.Info("engine terminated", "market", e.market.ConditionID)
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Market returns the market this engine quotes.
func (e *Engine) Market() domain.Market {
	return e.market
}

// Metrics returns the live metrics accumulator.
func (e *Engine) Metrics() *domain.MarketMetrics {
	return e.metrics
}

// RiskState returns the risk snapshot marked to the last known midpoint.
func (e *Engine) RiskState() domain.RiskState {
	e.mu.Lock()
	mid := e.lastMid
	e.mu.Unlock()
	return e.risk.State(mid)
}

// SetSizeFactor updates the capital allocation scaling for order sizes.
func (e *Engine) SetSizeFactor(f decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if f.IsPositive() {
		e.sizeFactor = f
	}
}

// SizeFactor returns the current allocation scaling.
func (e *Engine) SizeFactor() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sizeFactor
}

// pause cancels resting orders and parks the engine until conditions clear.
func (e *Engine) pause(ctx context.Context, reason string) {
	e.mu.Lock()
	alreadyPaused := e.state == StatePaused
	e.state = StatePaused
	e.mu.Unlock()

	if !alreadyPaused {
		slog.Warn("engine paused", "market", e.market.ConditionID, "reason", reason)
		if !e.cfg.DryRun && len(e.tracker.LiveOrders()) > 0 {
			if err := e.tracker.CancelAll(ctx); err != nil {
				slog.Error("pause cancel failed", "market", e.market.ConditionID, "err", err)
			} else {
				e.notify(ctx, ports.EventQuotesCancelled, "paused: "+reason)
			}
		}
	}
	e.metrics.RecordTick(false)
}

// resume transitions Paused/Discovering back to the quoting state.
func (e *Engine) resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StatePaused || e.state == StateDiscovering {
		if e.cfg.DryRun {
			e.state = StateDryRun
		} else {
			e.state = StateLive
		}
	}
}

func (e *Engine) setLastMid(mid decimal.Decimal) {
	e.mu.Lock()
	e.lastMid = mid
	e.mu.Unlock()
}

func (e *Engine) notify(ctx context.Context, t ports.EventType, msg string) {
	if e.notifier == nil {
		return
	}
	_ = e.notifier.Notify(ctx, ports.Event{
		Type:        t,
		ConditionID: e.market.ConditionID,
		Question:    e.market.Question,
		Message:     msg,
		At:          time.Now().UTC(),
	})
}
