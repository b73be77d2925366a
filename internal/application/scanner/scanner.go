package scanner

// Market scanner: fetch → filter → score → rank. The score is advisory: it
// orders markets and drives capital allocation, it never decides prices.

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ayazabbas/polymarket-lp/internal/domain"
	"github.com/ayazabbas/polymarket-lp/internal/ports"
)

// Config contiene los criterios de selección de mercados.
type Config struct {
	MaxMarkets           int
	MinRewardDaily       decimal.Decimal // USDC/día mínimo
	MinHoursToResolution float64
}

// Scanner selecciona los mercados donde vale la pena proveer liquidez.
type Scanner struct {
	provider ports.MarketProvider
	cfg      Config
}

// New crea un Scanner.
func New(provider ports.MarketProvider, cfg Config) *Scanner {
	return &Scanner{provider: provider, cfg: cfg}
}

// zeroLiquidityScore es el score de un mercado con rewards pero sin liquidez
// contra la que competir: va primero en el ranking.
var zeroLiquidityScore = decimal.NewFromInt(99999)

// scoreScale normaliza reward/liquidity a un rango legible.
var scoreScale = decimal.NewFromInt(10000)

// Scan devuelve los mercados elegibles, rankeados por score descendente y
// truncados a MaxMarkets.
func (s *Scanner) Scan(ctx context.Context) ([]domain.Market, error) {
	start := time.Now()

	markets, err := s.provider.FetchSamplingMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanner.Scan: fetch markets: %w", err)
	}

	eligible := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		if !s.eligible(m) {
			continue
		}
		m.Score = Score(m)
		eligible = append(eligible, m)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Score.GreaterThan(eligible[j].Score)
	})

	if s.cfg.MaxMarkets > 0 && len(eligible) > s.cfg.MaxMarkets {
		eligible = eligible[:s.cfg.MaxMarkets]
	}

	slog.Info("scan complete",
		"fetched", len(markets),
		"eligible", len(eligible),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return eligible, nil
}

// eligible aplica los filtros de selección a un mercado.
func (s *Scanner) eligible(m domain.Market) bool {
	if !m.Active || m.Closed {
		return false
	}
	if err := m.Validate(); err != nil {
		slog.Debug("market excluded", "condition_id", m.ConditionID, "err", err)
		return false
	}
	if !m.HasRewards() {
		return false
	}
	if m.Rewards.DailyRate.LessThan(s.cfg.MinRewardDaily) {
		return false
	}
	if s.cfg.MinHoursToResolution > 0 && m.HoursToResolution() < s.cfg.MinHoursToResolution {
		return false
	}
	return true
}

// Score calcula reward/liquidity normalizado. Liquidez cero con reward
// positivo puntúa zeroLiquidityScore: nadie contra quien competir.
func Score(m domain.Market) decimal.Decimal {
	if !m.Liquidity.IsPositive() {
		if m.Rewards.DailyRate.IsPositive() {
			return zeroLiquidityScore
		}
		return decimal.Zero
	}
	return m.Rewards.DailyRate.Div(m.Liquidity).Mul(scoreScale)
}
