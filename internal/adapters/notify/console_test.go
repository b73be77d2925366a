package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayazabbas/polymarket-lp/internal/adapters/notify"
	"github.com/ayazabbas/polymarket-lp/internal/domain"
	"github.com/ayazabbas/polymarket-lp/internal/ports"
)

func TestConsole_NotifyEvent(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	err := c.Notify(context.Background(), ports.Event{
		Type:        ports.EventKillSwitch,
		ConditionID: "0xabc",
		Question:    "Will it rain tomorrow?",
		Message:     "unrealized loss -120.00 exceeds threshold",
		At:          time.Now(),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "kill_switch")
	assert.Contains(t, out, "Will it rain tomorrow?")
	assert.Contains(t, out, "-120.00")
}

func TestConsole_NotifyScanTable(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	markets := []domain.Market{
		{
			ConditionID: "0xaaa",
			Question:    "Market A?",
			Rewards:     domain.RewardConfig{DailyRate: decimal.RequireFromString("25")},
			Liquidity:   decimal.RequireFromString("12000"),
			TickSize:    decimal.RequireFromString("0.01"),
			Score:       decimal.RequireFromString("20.83"),
		},
	}

	err := c.NotifyScan(context.Background(), markets)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Market A?")
	assert.Contains(t, out, "$25.00")
	assert.Contains(t, out, "0.01")
}

func TestConsole_NotifyScanEmpty(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	require.NoError(t, c.NotifyScan(context.Background(), nil))
	assert.Contains(t, buf.String(), "no candidate markets")
}

func TestConsole_NotifyStatus(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	portfolio := domain.NewPortfolioMetrics()
	m := domain.NewMarketMetrics("0xaaa", "Market A?")
	m.SpreadPnL = decimal.RequireFromString("3.50")
	m.TotalFills = 7
	portfolio.Markets["0xaaa"] = m

	risk := []domain.RiskState{{
		ConditionID:       "0xaaa",
		UnrealizedPnL:     decimal.RequireFromString("-1.25"),
		KillSwitchTripped: true,
	}}

	require.NoError(t, c.NotifyStatus(context.Background(), portfolio, risk))

	out := buf.String()
	assert.Contains(t, out, "Market A?")
	assert.Contains(t, out, "TRIPPED")
	assert.Contains(t, out, "3.50")
}
