package domain

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MarketMetrics acumula PnL y actividad de un mercado, desglosado por fuente:
// spread capture, liquidity rewards y maker rebates. El engine escribe desde
// su loop y el orchestrator lee snapshots desde el suyo; el mutex interno
// cubre ambos.
type MarketMetrics struct {
	ConditionID string
	Question    string
	StartTime   time.Time

	mu           sync.Mutex
	SpreadPnL    decimal.Decimal
	RewardPnL    decimal.Decimal
	RebatePnL    decimal.Decimal
	TotalFills   int64
	TotalOrders  int64
	UptimeTicks  int64
	TotalTicks   int64
	LastMidpoint decimal.Decimal
	LastUpdate   time.Time
}

// NewMarketMetrics crea métricas vacías para un mercado.
func NewMarketMetrics(conditionID, question string) *MarketMetrics {
	now := time.Now().UTC()
	return &MarketMetrics{
		ConditionID: conditionID,
		Question:    question,
		StartTime:   now,
		LastUpdate:  now,
	}
}

// FillRate devuelve fills/órdenes, 0 si no hay órdenes.
func (m *MarketMetrics) FillRate() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TotalOrders == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(m.TotalFills).Div(decimal.NewFromInt(m.TotalOrders))
}

// UptimePct devuelve el porcentaje de ticks con órdenes descansando en el book.
func (m *MarketMetrics) UptimePct() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TotalTicks == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(m.UptimeTicks).Div(decimal.NewFromInt(m.TotalTicks)).Mul(hundred)
}

// TotalPnL suma los tres componentes.
func (m *MarketMetrics) TotalPnL() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SpreadPnL.Add(m.RewardPnL).Add(m.RebatePnL)
}

// RecordTick registra un tick; hadOrders marca si había órdenes vivas.
func (m *MarketMetrics) RecordTick(hadOrders bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalTicks++
	if hadOrders {
		m.UptimeTicks++
	}
	m.LastUpdate = time.Now().UTC()
}

// RecordFill registra un fill y su spread capture.
func (m *MarketMetrics) RecordFill(spreadCapture decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalFills++
	m.SpreadPnL = m.SpreadPnL.Add(spreadCapture)
}

// RecordOrders registra órdenes colocadas.
func (m *MarketMetrics) RecordOrders(count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalOrders += count
}

// RecordReward registra reward acreditado por el venue.
func (m *MarketMetrics) RecordReward(amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RewardPnL = m.RewardPnL.Add(amount)
}

// RecordRebate registra un maker rebate.
func (m *MarketMetrics) RecordRebate(amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RebatePnL = m.RebatePnL.Add(amount)
}

// Counters devuelve los acumuladores bajo lock, para lectores concurrentes
// como el persistidor de snapshots.
func (m *MarketMetrics) Counters() (spread, reward, rebate decimal.Decimal, fills, orders int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SpreadPnL, m.RewardPnL, m.RebatePnL, m.TotalFills, m.TotalOrders
}

// Ticks devuelve el total de ticks registrados, bajo lock.
func (m *MarketMetrics) Ticks() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.TotalTicks
}

// PortfolioMetrics agrega las métricas de todos los mercados de la sesión.
type PortfolioMetrics struct {
	Markets      map[string]*MarketMetrics
	SessionStart time.Time
}

// NewPortfolioMetrics crea un portfolio vacío.
func NewPortfolioMetrics() *PortfolioMetrics {
	return &PortfolioMetrics{
		Markets:      make(map[string]*MarketMetrics),
		SessionStart: time.Now().UTC(),
	}
}

// TotalPnL suma el PnL de todos los mercados.
func (p *PortfolioMetrics) TotalPnL() decimal.Decimal {
	total := decimal.Zero
	for _, m := range p.Markets {
		total = total.Add(m.TotalPnL())
	}
	return total
}

// TotalFills suma los fills de todos los mercados. Como el resto de
// agregadores del portfolio, lee a través de los accessors con lock: los
// engines pueden seguir escribiendo mientras se arma el dashboard final.
func (p *PortfolioMetrics) TotalFills() int64 {
	var total int64
	for _, m := range p.Markets {
		_, _, _, fills, _ := m.Counters()
		total += fills
	}
	return total
}

// AvgFillRate promedia el fill rate de los mercados con órdenes.
func (p *PortfolioMetrics) AvgFillRate() decimal.Decimal {
	sum, n := decimal.Zero, 0
	for _, m := range p.Markets {
		if _, _, _, _, orders := m.Counters(); orders > 0 {
			sum = sum.Add(m.FillRate())
			n++
		}
	}
	if n == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(n)))
}

// AvgUptime promedia el uptime de los mercados con ticks.
func (p *PortfolioMetrics) AvgUptime() decimal.Decimal {
	sum, n := decimal.Zero, 0
	for _, m := range p.Markets {
		if m.Ticks() > 0 {
			sum = sum.Add(m.UptimePct())
			n++
		}
	}
	if n == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(n)))
}
