package polymarket

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ayazabbas/polymarket-lp/internal/domain"
)

// mapSamplingMarkets convierte los DTOs del CLOB a domain.Market.
func mapSamplingMarkets(raw []samplingMarket) []domain.Market {
	markets := make([]domain.Market, 0, len(raw))
	for _, r := range raw {
		markets = append(markets, mapSamplingMarket(r))
	}
	return markets
}

// mapSamplingMarket convierte un samplingMarket DTO a domain.Market.
// El fee viene en bps desde el CLOB; el tick como string decimal.
func mapSamplingMarket(r samplingMarket) domain.Market {
	m := domain.Market{
		ConditionID: r.ConditionID,
		Question:    r.Question,
		FeeRateBps:  int64(r.MakerBaseFee),
		Active:      r.Active && r.AcceptingOrders,
		Closed:      r.Closed,
		Rewards: domain.RewardConfig{
			MinSize:   decimal.NewFromFloat(r.Rewards.MinSize),
			MaxSpread: decimal.NewFromFloat(r.Rewards.MaxSpread),
		},
	}

	if tick, err := decimal.NewFromString(r.MinimumTick.String()); err == nil {
		m.TickSize = tick
	}

	for _, rate := range r.Rewards.Rates {
		m.Rewards.DailyRate = m.Rewards.DailyRate.Add(decimal.NewFromFloat(rate.RewardsDailyRate))
	}

	for _, t := range r.Tokens {
		tok := domain.Token{TokenID: t.TokenID, Outcome: t.Outcome}
		if strings.EqualFold(t.Outcome, "yes") {
			m.TokenYes = tok
		} else {
			m.TokenNo = tok
		}
	}

	return m
}

// mapOrderBooks convierte la respuesta batch de /books a un map tokenID→OrderBook.
func mapOrderBooks(raw []orderBookResponse) map[string]domain.OrderBook {
	result := make(map[string]domain.OrderBook, len(raw))
	for _, r := range raw {
		ob := domain.OrderBook{
			TokenID: r.AssetID,
			Bids:    mapBookEntries(r.Bids, false),
			Asks:    mapBookEntries(r.Asks, true),
		}
		result[r.AssetID] = ob
	}
	return result
}

// mapBookEntries convierte entries raw a domain.BookEntry y los ordena.
// ascending=true → menor a mayor (asks), ascending=false → mayor a menor (bids).
func mapBookEntries(raw []bookEntryRaw, ascending bool) []domain.BookEntry {
	entries := make([]domain.BookEntry, 0, len(raw))
	for _, r := range raw {
		price, errP := decimal.NewFromString(r.Price)
		size, errS := decimal.NewFromString(r.Size)
		if errP != nil || errS != nil || !price.IsPositive() || !size.IsPositive() {
			continue
		}
		entries = append(entries, domain.BookEntry{Price: price, Size: size})
	}

	sort.Slice(entries, func(i, j int) bool {
		if ascending {
			return entries[i].Price.LessThan(entries[j].Price)
		}
		return entries[i].Price.GreaterThan(entries[j].Price)
	})

	return entries
}

// mapOpenOrder convierte una orden abierta del CLOB a domain.VenueOrder.
func mapOpenOrder(o clobOpenOrder) domain.VenueOrder {
	side := domain.SideBid
	if strings.EqualFold(o.Side, "SELL") {
		side = domain.SideAsk
	}

	status := domain.StatusOpen
	upper := strings.ToUpper(o.Status)
	switch {
	case strings.Contains(upper, "MATCHED"):
		status = domain.StatusFilled
	case strings.Contains(upper, "CANCEL") || strings.Contains(upper, "INVALID"):
		status = domain.StatusCancelled
	}

	vo := domain.VenueOrder{
		VenueOrderID: o.ID,
		TokenID:      o.AssetID,
		Side:         side,
		Status:       status,
	}
	if p, err := decimal.NewFromString(o.Price); err == nil {
		vo.Price = p
	}
	if s, err := decimal.NewFromString(o.OriginalSize); err == nil {
		vo.Size = s
	}
	if f, err := decimal.NewFromString(o.SizeMatched); err == nil {
		vo.FilledSize = f
		if f.IsPositive() && f.LessThan(vo.Size) {
			vo.Status = domain.StatusPartiallyFilled
		}
	}
	return vo
}

// mapTrade convierte un trade del CLOB a domain.Fill.
func mapTrade(t clobTrade) domain.Fill {
	side := domain.SideBid
	if strings.EqualFold(t.Side, "SELL") {
		side = domain.SideAsk
	}

	f := domain.Fill{
		FillID:       t.ID,
		VenueOrderID: t.MakerOrder,
		TokenID:      t.AssetID,
		Side:         side,
		Timestamp:    parseTimestamp(t.MatchTime),
	}
	if p, err := decimal.NewFromString(t.Price); err == nil {
		f.Price = p
	}
	if s, err := decimal.NewFromString(t.Size); err == nil {
		f.Size = s
	}
	return f
}

// parseTimestamp acepta Unix (s o ms) e ISO 8601.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if n, err := decimal.NewFromString(s); err == nil && n.IsPositive() {
		ts := n.IntPart()
		if ts > 1e12 {
			return time.UnixMilli(ts).UTC()
		}
		return time.Unix(ts, 0).UTC()
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
