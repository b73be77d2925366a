package quoting

// Risk controller: one per market, single writer (the engine loop). Holds
// inventory built from confirmed fills, derives skew directives for the next
// tick, and owns the per-market kill switch.

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ayazabbas/polymarket-lp/internal/domain"
)

// RiskConfig holds the per-market risk limits.
type RiskConfig struct {
	InventoryCap decimal.Decimal // max |YES − NO| before the accumulating side pauses
	SkewFactor   decimal.Decimal // linear skew intensity, in [0, 1]
	KillLoss     decimal.Decimal // unrealized loss (positive number) that trips the switch
}

// Controller tracks risk state for a single market.
type Controller struct {
	conditionID string
	cfg         RiskConfig

	mu   sync.Mutex
	inv  domain.Inventory
	kill domain.KillSwitch
}

// NewController creates a risk controller for a market.
func NewController(conditionID string, cfg RiskConfig) *Controller {
	return &Controller{conditionID: conditionID, cfg: cfg}
}

// ApplyFill updates inventory with a confirmed, deduplicated fill.
func (c *Controller) ApplyFill(f domain.Fill, isYesToken bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inv.ApplyFill(f, isYesToken)
}

// Directives computes the skew directives for the next quoting tick.
func (c *Controller) Directives() domain.SkewDirectives {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.ComputeSkew(c.inv.Net(), c.cfg.InventoryCap, c.cfg.SkewFactor)
}

// CheckKill marks the position to the given midpoint and trips the kill
// switch if the unrealized loss crosses the configured threshold. Returns
// true while the switch is tripped. The switch never resets on its own.
func (c *Controller) CheckKill(midpoint decimal.Decimal) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.kill.Tripped() {
		return true
	}
	if !c.cfg.KillLoss.IsPositive() {
		return false
	}

	pnl := c.inv.UnrealizedPnL(midpoint)
	if pnl.IsNegative() && pnl.Neg().GreaterThanOrEqual(c.cfg.KillLoss) {
		c.kill.Trip("unrealized loss " + pnl.StringFixed(2) + " exceeds threshold " + c.cfg.KillLoss.Neg().StringFixed(2))
		return true
	}
	return false
}

// Killed reports whether the kill switch is tripped, and why.
func (c *Controller) Killed() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kill.Tripped(), c.kill.Reason()
}

// ResetKill clears the switch. Operator action only.
func (c *Controller) ResetKill() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kill.Reset()
}

// State returns the risk snapshot marked to the given midpoint.
func (c *Controller) State(midpoint decimal.Decimal) domain.RiskState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.RiskState{
		ConditionID:       c.conditionID,
		Inventory:         c.inv,
		UnrealizedPnL:     c.inv.UnrealizedPnL(midpoint),
		InventoryCap:      c.cfg.InventoryCap,
		KillSwitchTripped: c.kill.Tripped(),
	}
}

// Inventory returns a copy of the current inventory.
func (c *Controller) Inventory() domain.Inventory {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inv
}
