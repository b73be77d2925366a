package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func baseParams() QuoteParams {
	return QuoteParams{
		Midpoint:        dec("0.50"),
		BaseOffsetCents: dec("1.0"),
		MinOffsetCents:  dec("0.5"),
		TickSize:        dec("0.01"),
		OrderSize:       dec("500"),
		NumLevels:       2,
	}
}

// --- ComputeOffset ---

func TestComputeOffset_NoFee(t *testing.T) {
	offset := ComputeOffset(baseParams())
	assert.True(t, offset.Equal(dec("0.01")), "got %s", offset)
}

func TestComputeOffset_WithFee(t *testing.T) {
	p := baseParams()
	p.FeeRateBps = 200
	// fee_at_mid = 0.02 × 0.50 × 0.50 = 0.005 → offset = 0.0025 + 0.01
	offset := ComputeOffset(p)
	assert.True(t, offset.Equal(dec("0.0125")), "got %s", offset)
}

func TestComputeOffset_FeeAwareScenario(t *testing.T) {
	// fee 156 bps en mid 0.50: fee_at_mid = 0.0156×0.25 = 0.0039,
	// offset = 0.00195 + 0.01 = 0.01195 > min_offset
	p := baseParams()
	p.FeeRateBps = 156
	offset := ComputeOffset(p)
	assert.True(t, offset.Equal(dec("0.01195")), "got %s", offset)
}

func TestComputeOffset_MinOffsetFloor(t *testing.T) {
	p := baseParams()
	p.BaseOffsetCents = dec("0.1")
	p.MinOffsetCents = dec("0.5")
	offset := ComputeOffset(p)
	assert.True(t, offset.Equal(dec("0.005")), "got %s", offset)
}

// --- AlignToTick ---

func TestAlignToTick(t *testing.T) {
	cases := []struct{ price, tick, want string }{
		{"0.4567", "0.01", "0.46"},
		{"0.4567", "0.001", "0.457"},
		{"0.4567", "0.1", "0.5"},
		{"0.4567", "0.0001", "0.4567"},
		{"0.455", "0.01", "0.46"}, // half-up
	}
	for _, c := range cases {
		got := AlignToTick(dec(c.price), dec(c.tick))
		assert.True(t, got.Equal(dec(c.want)), "align(%s, %s) = %s, want %s", c.price, c.tick, got, c.want)
	}
}

func TestAlignToTick_ZeroTickUnchanged(t *testing.T) {
	got := AlignToTick(dec("0.4567"), decimal.Zero)
	assert.True(t, got.Equal(dec("0.4567")))
}

func TestAlignToTick_MultipleOfTickAndWithinOneTick(t *testing.T) {
	// Propiedad: el precio alineado es múltiplo del tick y dista < 1 tick.
	prices := []string{"0.131", "0.276", "0.5049", "0.899", "0.013"}
	ticks := []string{"0.01", "0.001", "0.1"}
	for _, ps := range prices {
		for _, ts := range ticks {
			p, tick := dec(ps), dec(ts)
			aligned := AlignToTick(p, tick)
			assert.True(t, aligned.Mod(tick).IsZero(),
				"align(%s, %s) = %s not a tick multiple", ps, ts, aligned)
			assert.True(t, aligned.Sub(p).Abs().LessThanOrEqual(tick),
				"align(%s, %s) = %s more than one tick away", ps, ts, aligned)
		}
	}
}

// --- GenerateQuotes ---

func TestGenerateQuotes_Basic(t *testing.T) {
	quotes := GenerateQuotes(baseParams())
	assert.Len(t, quotes, 4) // bid+ask × 2 niveles

	// Nivel 0: bid=0.49, ask=0.51 — ya alineados, sin cambios
	assert.Equal(t, SideBid, quotes[0].Side)
	assert.True(t, quotes[0].Price.Equal(dec("0.49")), "got %s", quotes[0].Price)
	assert.Equal(t, SideAsk, quotes[1].Side)
	assert.True(t, quotes[1].Price.Equal(dec("0.51")), "got %s", quotes[1].Price)
}

func TestGenerateQuotes_PauseBids(t *testing.T) {
	p := baseParams()
	p.PauseBids = true
	quotes := GenerateQuotes(p)
	assert.Len(t, quotes, 2)
	for _, q := range quotes {
		assert.Equal(t, SideAsk, q.Side)
	}
}

func TestGenerateQuotes_DropsExtremeLevels(t *testing.T) {
	p := baseParams()
	p.Midpoint = dec("0.005")
	quotes := GenerateQuotes(p)
	for _, q := range quotes {
		assert.True(t, q.Price.IsPositive())
		assert.True(t, q.Price.LessThan(dec("1")))
	}
}

func TestGenerateQuotes_SkewWidensAndTightens(t *testing.T) {
	p := baseParams()
	p.BidOffsetMult = dec("1.5")
	p.AskOffsetMult = dec("0.5")
	quotes := GenerateQuotes(p)
	// bid en 0.50 − 0.015 = 0.485 → alineado 0.49 (half-up en .485/.01 = 48.5 → 49)
	// ask en 0.50 + 0.005 = 0.505 → alineado 0.51
	assert.True(t, quotes[0].Price.Equal(dec("0.49")), "bid got %s", quotes[0].Price)
	assert.True(t, quotes[1].Price.Equal(dec("0.51")), "ask got %s", quotes[1].Price)
}

func TestQuoteSet_Equal(t *testing.T) {
	a := GenerateQuotes(baseParams())
	b := GenerateQuotes(baseParams())
	assert.True(t, a.Equal(b))

	p := baseParams()
	p.Midpoint = dec("0.52")
	c := GenerateQuotes(p)
	assert.False(t, a.Equal(c))
}

// --- EstimateScore ---

func TestEstimateScore_Quadratic(t *testing.T) {
	// ((0.05 − 0.01)/0.05)² × 1000 = 0.8² × 1000 = 640
	score := EstimateScore(dec("0.50"), dec("0.49"), dec("1000"), dec("0.05"), decimal.Zero)
	assert.True(t, score.Equal(dec("640")), "got %s", score)
}

func TestEstimateScore_OutsideSpread(t *testing.T) {
	score := EstimateScore(dec("0.50"), dec("0.40"), dec("1000"), dec("0.05"), decimal.Zero)
	assert.True(t, score.IsZero())
}

func TestEstimateScore_BelowMinSize(t *testing.T) {
	score := EstimateScore(dec("0.50"), dec("0.49"), dec("10"), dec("0.05"), dec("50"))
	assert.True(t, score.IsZero())
}

func TestTwoSidedScore(t *testing.T) {
	assert.True(t, TwoSidedScore(dec("640"), dec("640")).Equal(dec("640")))
	// Qmin=100, exceso 540/3=180 → 280
	assert.True(t, TwoSidedScore(dec("640"), dec("100")).Equal(dec("280")))
}
