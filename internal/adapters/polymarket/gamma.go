package polymarket

// gamma.go — Gamma API: la metadata que el CLOB no expone (question legible,
// slug, fecha de resolución, liquidez, volumen y el fee cuando el CLOB lo
// omite). El enriquecimiento es best effort: una página fallida deja sus
// mercados tal como vinieron del CLOB.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ayazabbas/polymarket-lp/internal/domain"
)

const (
	gammaMarketsPath  = "/markets"
	gammaConditionMax = 20 // máx condition_ids por request
)

// gammaMarket es la metadata de un mercado en Gamma. Varios campos numéricos
// llegan como strings JSON, de ahí json.Number.
type gammaMarket struct {
	ConditionID  string      `json:"conditionId"`
	Question     string      `json:"question"`
	Slug         string      `json:"slug"`
	EndDateISO   string      `json:"endDateIso"`
	Volume24h    json.Number `json:"volume24hr"`
	Liquidity    json.Number `json:"liquidity"`
	MakerBaseFee json.Number `json:"makerBaseFee"`
	Active       bool        `json:"active"`
	Closed       bool        `json:"closed"`
}

// EnrichWithGamma vuelca la metadata de Gamma sobre los mercados, in place.
// Los mercados que Gamma no conoce se devuelven sin tocar.
func (c *Client) EnrichWithGamma(ctx context.Context, markets []domain.Market) ([]domain.Market, error) {
	byCondition := make(map[string]*domain.Market, len(markets))
	ids := make([]string, 0, len(markets))
	for i := range markets {
		byCondition[markets[i].ConditionID] = &markets[i]
		ids = append(ids, markets[i].ConditionID)
	}

	enriched := 0
	for start := 0; start < len(ids); start += gammaConditionMax {
		end := min(start+gammaConditionMax, len(ids))

		page, err := c.fetchGammaPage(ctx, ids[start:end])
		if err != nil {
			slog.Debug("gamma page failed, skipping", "from", start, "to", end, "err", err)
			continue
		}
		for _, gm := range page {
			m, ok := byCondition[gm.ConditionID]
			if !ok {
				continue
			}
			applyGamma(m, gm)
			enriched++
		}
	}

	slog.Debug("gamma enrichment complete",
		"markets", len(markets),
		"enriched", enriched,
	)
	return markets, nil
}

// fetchGammaPage pide un lote de condition_ids a GET /markets.
func (c *Client) fetchGammaPage(ctx context.Context, conditionIDs []string) ([]gammaMarket, error) {
	q := url.Values{}
	q.Set("condition_ids", strings.Join(conditionIDs, ","))
	q.Set("limit", strconv.Itoa(gammaConditionMax))

	var page []gammaMarket
	if err := c.get(ctx, c.gammaLimiter, c.gammaBase+gammaMarketsPath+"?"+q.Encode(), &page); err != nil {
		return nil, fmt.Errorf("gamma.fetchGammaPage: %w", err)
	}
	return page, nil
}

// applyGamma aplica la metadata sobre un mercado. El fee de Gamma entra solo
// como fallback: si el CLOB ya reportó maker_base_fee, ese manda.
func applyGamma(m *domain.Market, gm gammaMarket) {
	if gm.Question != "" {
		m.Question = gm.Question
	}
	m.Slug = gm.Slug

	if v, err := decimal.NewFromString(gm.Volume24h.String()); err == nil {
		m.Volume24h = v
	}
	if v, err := decimal.NewFromString(gm.Liquidity.String()); err == nil {
		m.Liquidity = v
	}
	if m.FeeRateBps == 0 {
		if bps, err := gm.MakerBaseFee.Int64(); err == nil {
			m.FeeRateBps = bps
		}
	}
	if t, ok := parseGammaDate(gm.EndDateISO); ok {
		m.EndDate = t
	}
}

// parseGammaDate intenta los formatos de fecha que Gamma devuelve en la práctica.
func parseGammaDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
