package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// --- ComputeSkew ---

func TestComputeSkew_FlatInventory(t *testing.T) {
	d := ComputeSkew(decimal.Zero, dec("5000"), dec("0.5"))
	assert.True(t, d.BidOffsetMult.Equal(dec("1")))
	assert.True(t, d.AskOffsetMult.Equal(dec("1")))
	assert.False(t, d.PauseBids)
	assert.False(t, d.PauseAsks)
}

func TestComputeSkew_LongWidensBidTightensAsk(t *testing.T) {
	// net = 2500, cap = 5000 → ratio 0.5, factor 0.5 → bid 1.25, ask 0.75
	d := ComputeSkew(dec("2500"), dec("5000"), dec("0.5"))
	assert.True(t, d.BidOffsetMult.Equal(dec("1.25")), "got %s", d.BidOffsetMult)
	assert.True(t, d.AskOffsetMult.Equal(dec("0.75")), "got %s", d.AskOffsetMult)
	assert.False(t, d.PauseBids)
}

func TestComputeSkew_MultipliersBounded(t *testing.T) {
	// Para todo |I| ≤ C los multiplicadores quedan en [1−factor, 1+factor].
	factor := dec("0.7")
	invCap := dec("1000")
	for _, net := range []string{"-1000", "-999", "-500", "0", "250", "999", "1000"} {
		d := ComputeSkew(dec(net), invCap, factor)
		assert.True(t, d.BidOffsetMult.GreaterThanOrEqual(dec("0.3")), "net=%s bid=%s", net, d.BidOffsetMult)
		assert.True(t, d.BidOffsetMult.LessThanOrEqual(dec("1.7")), "net=%s bid=%s", net, d.BidOffsetMult)
		assert.True(t, d.AskOffsetMult.GreaterThanOrEqual(dec("0.3")), "net=%s ask=%s", net, d.AskOffsetMult)
		assert.True(t, d.AskOffsetMult.LessThanOrEqual(dec("1.7")), "net=%s ask=%s", net, d.AskOffsetMult)
	}
}

func TestComputeSkew_PausesBidsAtCap(t *testing.T) {
	d := ComputeSkew(dec("5000"), dec("5000"), dec("0.5"))
	assert.True(t, d.PauseBids)
	assert.False(t, d.PauseAsks)
}

func TestComputeSkew_PausesAsksAtNegativeCap(t *testing.T) {
	d := ComputeSkew(dec("-5000"), dec("5000"), dec("0.5"))
	assert.True(t, d.PauseAsks)
	assert.False(t, d.PauseBids)
}

func TestComputeSkew_ClampsBeyondCap(t *testing.T) {
	d := ComputeSkew(dec("9000"), dec("5000"), dec("0.5"))
	assert.True(t, d.Ratio.Equal(dec("1")))
	assert.True(t, d.PauseBids)
}

func TestComputeSkew_ZeroCapNeutral(t *testing.T) {
	d := ComputeSkew(dec("100"), decimal.Zero, dec("0.5"))
	assert.True(t, d.BidOffsetMult.Equal(dec("1")))
	assert.False(t, d.PauseBids)
}

// Escenario: inventario al +100% del cap → el próximo QuoteSet no contiene
// ningún bid; los asks siguen presentes con offset más apretado.
func TestSkewAtCap_QuoteSetHasZeroBids(t *testing.T) {
	d := ComputeSkew(dec("5000"), dec("5000"), dec("0.5"))

	p := baseParams()
	p.BidOffsetMult = d.BidOffsetMult
	p.AskOffsetMult = d.AskOffsetMult
	p.PauseBids = d.PauseBids
	p.PauseAsks = d.PauseAsks

	quotes := GenerateQuotes(p)
	assert.NotEmpty(t, quotes)
	for _, q := range quotes {
		assert.NotEqual(t, SideBid, q.Side, "expected zero bid orders at cap")
	}
}

// --- Inventory ---

func TestInventory_UnrealizedPnL(t *testing.T) {
	inv := Inventory{
		YesTokens:   dec("1000"),
		BoughtValue: dec("400"), // 1000 YES a 0.40
	}
	// mid 0.50 → valor 500, PnL = 100
	assert.True(t, inv.UnrealizedPnL(dec("0.50")).Equal(dec("100")))
}

func TestInventory_ApplyFill(t *testing.T) {
	var inv Inventory
	inv.ApplyFill(Fill{Side: SideBid, Price: dec("0.40"), Size: dec("100")}, true)
	assert.True(t, inv.YesTokens.Equal(dec("100")))
	assert.True(t, inv.BoughtValue.Equal(dec("40")))

	inv.ApplyFill(Fill{Side: SideAsk, Price: dec("0.55"), Size: dec("50")}, true)
	assert.True(t, inv.YesTokens.Equal(dec("50")))
	assert.True(t, inv.SoldValue.Equal(dec("27.5")))

	inv.ApplyFill(Fill{Side: SideBid, Price: dec("0.45"), Size: dec("30")}, false)
	assert.True(t, inv.NoTokens.Equal(dec("30")))
	assert.True(t, inv.Net().Equal(dec("20")))
}

// --- KillSwitch ---

func TestKillSwitch_Monotonic(t *testing.T) {
	var k KillSwitch
	assert.False(t, k.Tripped())

	k.Trip("loss threshold exceeded")
	assert.True(t, k.Tripped())
	assert.Equal(t, "loss threshold exceeded", k.Reason())

	// Un segundo trip no sobreescribe el motivo; nada interno lo limpia.
	k.Trip("other")
	assert.Equal(t, "loss threshold exceeded", k.Reason())
	assert.True(t, k.Tripped())

	k.Reset()
	assert.False(t, k.Tripped())
}

// --- HoldingRewardFactor ---

func TestHoldingRewardFactor(t *testing.T) {
	assert.True(t, HoldingRewardFactor(dec("0.95"), 7).IsPositive())
	assert.True(t, HoldingRewardFactor(dec("0.50"), 7).IsZero())
	assert.True(t, HoldingRewardFactor(dec("0.95"), 0).IsZero())
}

// --- Market ---

func TestMarket_Validate(t *testing.T) {
	m := Market{
		ConditionID: "0xabc",
		TokenYes:    Token{TokenID: "1", Outcome: "Yes"},
		TokenNo:     Token{TokenID: "2", Outcome: "No"},
		TickSize:    dec("0.01"),
	}
	assert.NoError(t, m.Validate())

	bad := m
	bad.TickSize = decimal.Zero
	assert.Error(t, bad.Validate())

	bad = m
	bad.TokenNo.TokenID = ""
	assert.Error(t, bad.Validate())
}

func TestMarket_InTwoSidedBand(t *testing.T) {
	m := Market{}
	assert.True(t, m.InTwoSidedBand(dec("0.50")))
	assert.True(t, m.InTwoSidedBand(dec("0.10")))
	assert.False(t, m.InTwoSidedBand(dec("0.05")))
	assert.False(t, m.InTwoSidedBand(dec("0.95")))
}

func TestMarket_FeeRate(t *testing.T) {
	m := Market{FeeRateBps: 200}
	assert.True(t, m.FeeRate().Equal(dec("0.02")))
	assert.True(t, Market{}.FeeRate().IsZero())
}
