package orchestrator

import (
	"github.com/shopspring/decimal"

	"github.com/ayazabbas/polymarket-lp/internal/domain"
)

// CapitalConfig limita el capital desplegado.
type CapitalConfig struct {
	MaxTotal     decimal.Decimal // USDC totales desplegables
	MaxPerMarket decimal.Decimal // tope por mercado
}

// Allocate reparte el capital entre mercados proporcionalmente a su score,
// con tope por mercado. El excedente de los mercados que tocan el tope se
// redistribuye entre el resto. Si todos los scores son cero, reparto igual.
// Devuelve conditionID → USDC asignados.
func Allocate(markets []domain.Market, cfg CapitalConfig) map[string]decimal.Decimal {
	alloc := make(map[string]decimal.Decimal, len(markets))
	if len(markets) == 0 || !cfg.MaxTotal.IsPositive() {
		return alloc
	}

	cap := cfg.MaxPerMarket
	if !cap.IsPositive() || cap.GreaterThan(cfg.MaxTotal) {
		cap = cfg.MaxTotal
	}

	totalScore := decimal.Zero
	for _, m := range markets {
		totalScore = totalScore.Add(m.Score)
	}

	if totalScore.IsZero() {
		share := cfg.MaxTotal.Div(decimal.NewFromInt(int64(len(markets))))
		if share.GreaterThan(cap) {
			share = cap
		}
		for _, m := range markets {
			alloc[m.ConditionID] = share
		}
		return alloc
	}

	// Waterfall: en cada ronda, los mercados cuya parte proporcional supera el
	// tope se fijan al tope y su excedente se reparte entre los que quedan.
	remaining := cfg.MaxTotal
	open := make([]domain.Market, len(markets))
	copy(open, markets)
	openScore := totalScore

	for len(open) > 0 && remaining.IsPositive() && openScore.IsPositive() {
		roundBudget := remaining
		var next []domain.Market
		nextScore := decimal.Zero
		capped := false

		for _, m := range open {
			share := roundBudget.Mul(m.Score).Div(openScore)
			if share.GreaterThanOrEqual(cap) {
				alloc[m.ConditionID] = cap
				remaining = remaining.Sub(cap)
				capped = true
			} else {
				next = append(next, m)
				nextScore = nextScore.Add(m.Score)
			}
		}

		if !capped {
			for _, m := range open {
				alloc[m.ConditionID] = roundBudget.Mul(m.Score).Div(openScore)
			}
			break
		}
		open = next
		openScore = nextScore
	}

	return alloc
}

// SizeFactor convierte una asignación en el factor de escala del order size:
// allocation / maxPerMarket, en (0, 1].
func SizeFactor(allocation, maxPerMarket decimal.Decimal) decimal.Decimal {
	if !maxPerMarket.IsPositive() || !allocation.IsPositive() {
		return decimal.NewFromInt(1)
	}
	f := allocation.Div(maxPerMarket)
	if f.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return f
}
