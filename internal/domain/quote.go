package domain

import (
	"github.com/shopspring/decimal"
)

// Side de una quote.
type Side string

const (
	SideBid Side = "BUY"
	SideAsk Side = "SELL"
)

// Quote es una orden candidata, alineada a tick, para un nivel de profundidad.
type Quote struct {
	Side  Side
	Price decimal.Decimal
	Size  decimal.Decimal
	Level int // 0..NumLevels-1
}

// QuoteSet es el libro completo que queremos tener posteado en un mercado en
// un instante: como máximo 2×NumLevels entradas (bid+ask por nivel), en
// precios del token YES. El lado NO se deriva por complemento al enviar.
type QuoteSet []Quote

// Equal devuelve true si ambos sets son idénticos en nivel, lado, precio y
// tamaño. Los precios ya vienen alineados a tick, así que la comparación es
// exacta; un set igual suprime el requote para no quemar rate limit.
func (qs QuoteSet) Equal(other QuoteSet) bool {
	if len(qs) != len(other) {
		return false
	}
	for i := range qs {
		a, b := qs[i], other[i]
		if a.Side != b.Side || a.Level != b.Level {
			return false
		}
		if !a.Price.Equal(b.Price) || !a.Size.Equal(b.Size) {
			return false
		}
	}
	return true
}

// QuoteParams son los inputs del calculador de quotes para un tick.
type QuoteParams struct {
	Midpoint        decimal.Decimal
	BaseOffsetCents decimal.Decimal
	MinOffsetCents  decimal.Decimal
	TickSize        decimal.Decimal
	OrderSize       decimal.Decimal
	NumLevels       int
	FeeRateBps      int64

	// Directivas del risk controller para este tick.
	BidOffsetMult decimal.Decimal // 1 = sin skew
	AskOffsetMult decimal.Decimal
	PauseBids     bool
	PauseAsks     bool
}

var (
	one        = decimal.NewFromInt(1)
	two        = decimal.NewFromInt(2)
	hundred    = decimal.NewFromInt(100)
	levelWiden = decimal.RequireFromString("0.1") // cada nivel 10% más ancho
)

// ComputeOffset calcula el offset base fee-aware:
//
//	offset = max(min_offset, fee_at_mid/2 + base_offset)
//
// donde fee_at_mid = fee_rate · p · (1−p) aproxima el taker fee en el midpoint.
// Sin fee, el offset es simplemente base_offset (acotado por min_offset).
func ComputeOffset(p QuoteParams) decimal.Decimal {
	baseOffset := p.BaseOffsetCents.Div(hundred)

	offset := baseOffset
	if p.FeeRateBps > 0 {
		feeRate := decimal.New(p.FeeRateBps, -4)
		feeAtMid := feeRate.Mul(p.Midpoint).Mul(one.Sub(p.Midpoint))
		offset = feeAtMid.Div(two).Add(baseOffset)
	}

	minOffset := p.MinOffsetCents.Div(hundred)
	if offset.LessThan(minOffset) {
		return minOffset
	}
	return offset
}

// AlignToTick redondea un precio al múltiplo de tick más cercano (half-up).
// Tick cero devuelve el precio sin tocar.
func AlignToTick(price, tickSize decimal.Decimal) decimal.Decimal {
	if tickSize.IsZero() {
		return price
	}
	return price.Div(tickSize).Round(0).Mul(tickSize)
}

// GenerateQuotes produce el QuoteSet para los parámetros dados. Niveles cuyo
// bid o ask queda fuera de (0,1), o cruzado, se descartan enteros.
func GenerateQuotes(p QuoteParams) QuoteSet {
	baseOffset := ComputeOffset(p)

	bidMult := p.BidOffsetMult
	if bidMult.IsZero() {
		bidMult = one
	}
	askMult := p.AskOffsetMult
	if askMult.IsZero() {
		askMult = one
	}

	var quotes QuoteSet
	for level := 0; level < p.NumLevels; level++ {
		levelOffset := baseOffset.Add(baseOffset.Mul(levelWiden).Mul(decimal.NewFromInt(int64(level))))

		bidPrice := AlignToTick(p.Midpoint.Sub(levelOffset.Mul(bidMult)), p.TickSize)
		askPrice := AlignToTick(p.Midpoint.Add(levelOffset.Mul(askMult)), p.TickSize)

		if !bidPrice.IsPositive() || askPrice.GreaterThanOrEqual(one) {
			continue
		}
		if bidPrice.GreaterThanOrEqual(askPrice) {
			continue
		}

		if !p.PauseBids {
			quotes = append(quotes, Quote{Side: SideBid, Price: bidPrice, Size: p.OrderSize, Level: level})
		}
		if !p.PauseAsks {
			quotes = append(quotes, Quote{Side: SideAsk, Price: askPrice, Size: p.OrderSize, Level: level})
		}
	}
	return quotes
}

// defaultMaxSpread cuando el mercado no publica rewards_max_spread.
var defaultMaxSpread = decimal.RequireFromString("0.05")

// EstimateScore calcula el score cuadrático de incentivos de una orden:
//
//	S(v, d) = ((v − d) / v)² · b
//
// con v = max spread premiado, d = distancia al midpoint, b = tamaño.
// Fuera del spread premiado o por debajo del tamaño mínimo puntúa cero.
// Solo advisory: se loguea, nunca entra en la decisión de requote.
func EstimateScore(midpoint, price, size, maxSpread, minSize decimal.Decimal) decimal.Decimal {
	if minSize.IsPositive() && size.LessThan(minSize) {
		return decimal.Zero
	}

	distance := midpoint.Sub(price).Abs()

	v := maxSpread
	if !v.IsPositive() {
		v = defaultMaxSpread
	}
	if distance.GreaterThan(v) {
		return decimal.Zero
	}

	ratio := v.Sub(distance).Div(v)
	return ratio.Mul(ratio).Mul(size)
}

// TwoSidedScore combina los scores bid/ask: Qmin cuenta entero, el exceso
// single-sided se divide entre 3.
func TwoSidedScore(bidScore, askScore decimal.Decimal) decimal.Decimal {
	qMin := decimal.Min(bidScore, askScore)
	qMax := decimal.Max(bidScore, askScore)
	return qMin.Add(qMax.Sub(qMin).Div(decimal.NewFromInt(3)))
}
