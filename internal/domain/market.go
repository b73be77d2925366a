package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Market representa un mercado de predicción binario en Polymarket.
// Inmutable durante la vida de un engine; solo se refresca en rescan.
type Market struct {
	ConditionID string
	Question    string
	Slug        string
	EndDate     time.Time
	TokenYes    Token
	TokenNo     Token
	TickSize    decimal.Decimal
	FeeRateBps  int64
	Rewards     RewardConfig
	Liquidity   decimal.Decimal
	Volume24h   decimal.Decimal
	Active      bool
	Closed      bool
	// Score es reward/liquidity normalizado, calculado en el scan. Advisory:
	// ordena mercados y reparte capital, nunca decide precios.
	Score decimal.Decimal
}

// Token es uno de los dos lados del mercado (YES/NO).
type Token struct {
	TokenID string
	Outcome string // "Yes" | "No"
}

// RewardConfig contiene los parámetros de rewards del mercado.
type RewardConfig struct {
	// DailyRate es el total de USDC/día distribuidos entre los LPs.
	DailyRate decimal.Decimal
	// MinSize es el tamaño mínimo de orden para calificar al reward.
	MinSize decimal.Decimal
	// MaxSpread es la distancia máxima al midpoint que todavía puntúa.
	MaxSpread decimal.Decimal
}

// Banda de precio fuera de la cual no aplica el requisito two-sided.
var (
	TwoSidedBandLow  = decimal.RequireFromString("0.10")
	TwoSidedBandHigh = decimal.RequireFromString("0.90")
)

// FeeRate devuelve el fee del mercado como decimal (bps/10000).
func (m Market) FeeRate() decimal.Decimal {
	if m.FeeRateBps <= 0 {
		return decimal.Zero
	}
	return decimal.New(m.FeeRateBps, -4)
}

// HasRewards devuelve true si el mercado tiene rewards activos configurados.
func (m Market) HasRewards() bool {
	return m.Rewards.DailyRate.IsPositive() && m.Rewards.MaxSpread.IsPositive()
}

// InTwoSidedBand devuelve true si el midpoint cae dentro de la banda donde
// el reward exige cotizar ambos lados.
func (m Market) InTwoSidedBand(midpoint decimal.Decimal) bool {
	return midpoint.GreaterThanOrEqual(TwoSidedBandLow) &&
		midpoint.LessThanOrEqual(TwoSidedBandHigh)
}

// HoursToResolution devuelve las horas hasta que el mercado se resuelve.
// Devuelve 0 si EndDate no está definido o ya pasó.
func (m Market) HoursToResolution() float64 {
	if m.EndDate.IsZero() {
		return 0
	}
	h := time.Until(m.EndDate).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// Validate comprueba los invariantes de configuración del mercado.
// Un mercado inválido se excluye del orchestrator; nunca tumba el proceso.
func (m Market) Validate() error {
	if m.ConditionID == "" {
		return fmt.Errorf("domain.Market: empty condition ID")
	}
	if m.TokenYes.TokenID == "" || m.TokenNo.TokenID == "" {
		return fmt.Errorf("domain.Market %s: missing token IDs", m.ConditionID)
	}
	if !m.TickSize.IsPositive() || m.TickSize.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("domain.Market %s: impossible tick size %s", m.ConditionID, m.TickSize)
	}
	if m.FeeRateBps < 0 {
		return fmt.Errorf("domain.Market %s: negative fee rate %d bps", m.ConditionID, m.FeeRateBps)
	}
	return nil
}

// TruncateQuestion devuelve la pregunta del mercado truncada a maxLen caracteres.
// Si la pregunta está vacía usa los primeros caracteres del conditionID como fallback.
func TruncateQuestion(question, conditionID string, maxLen int) string {
	q := question
	if q == "" {
		if len(conditionID) > 20 {
			q = conditionID[:20] + "..."
		} else {
			q = conditionID
		}
	}
	if len(q) > maxLen {
		q = q[:maxLen-3] + "..."
	}
	return q
}
