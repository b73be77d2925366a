package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Inventory es la posición neta por token de un mercado. Solo la actualizan
// fills confirmados, nunca órdenes pendientes.
type Inventory struct {
	YesTokens   decimal.Decimal
	NoTokens    decimal.Decimal
	BoughtValue decimal.Decimal // valor acumulado de compras
	SoldValue   decimal.Decimal // valor acumulado de ventas
}

// Net devuelve la posición neta: YES − NO. Positivo = long YES.
func (inv Inventory) Net() decimal.Decimal {
	return inv.YesTokens.Sub(inv.NoTokens)
}

// UnrealizedPnL marca la posición a un midpoint dado:
//
//	yes·mid + no·(1−mid) + vendido − comprado
func (inv Inventory) UnrealizedPnL(midpoint decimal.Decimal) decimal.Decimal {
	yesValue := inv.YesTokens.Mul(midpoint)
	noValue := inv.NoTokens.Mul(one.Sub(midpoint))
	return yesValue.Add(noValue).Add(inv.SoldValue).Sub(inv.BoughtValue)
}

// CapitalDeployed devuelve el cost basis de la posición actual.
func (inv Inventory) CapitalDeployed() decimal.Decimal {
	return inv.BoughtValue.Sub(inv.SoldValue)
}

// ApplyFill aplica un fill confirmado al inventario. El dedupe por FillID
// ocurre antes, en el tracker.
func (inv *Inventory) ApplyFill(f Fill, isYesToken bool) {
	value := f.Size.Mul(f.Price)
	switch f.Side {
	case SideBid:
		if isYesToken {
			inv.YesTokens = inv.YesTokens.Add(f.Size)
		} else {
			inv.NoTokens = inv.NoTokens.Add(f.Size)
		}
		inv.BoughtValue = inv.BoughtValue.Add(value)
	case SideAsk:
		if isYesToken {
			inv.YesTokens = inv.YesTokens.Sub(f.Size)
		} else {
			inv.NoTokens = inv.NoTokens.Sub(f.Size)
		}
		inv.SoldValue = inv.SoldValue.Add(value)
	}
}

// SkewDirectives es la salida del risk controller para un tick: multiplica
// los offsets y, en el límite, pausa el lado que acumula.
type SkewDirectives struct {
	Ratio         decimal.Decimal // clamp(net/cap, −1, 1)
	BidOffsetMult decimal.Decimal
	AskOffsetMult decimal.Decimal
	PauseBids     bool
	PauseAsks     bool
}

// ComputeSkew calcula las directivas de skew para un inventario dado.
// Gobernador lineal: ratio = clamp(net/cap, −1, 1),
// bid mult = 1 + ratio·factor, ask mult = 1 − ratio·factor. En |ratio| = 1 el
// lado que acumula se pausa del todo (cero órdenes), no se ensancha más.
func ComputeSkew(net, cap, skewFactor decimal.Decimal) SkewDirectives {
	d := SkewDirectives{BidOffsetMult: one, AskOffsetMult: one}
	if !cap.IsPositive() {
		return d
	}

	ratio := net.Div(cap)
	if ratio.GreaterThan(one) {
		ratio = one
	} else if ratio.LessThan(one.Neg()) {
		ratio = one.Neg()
	}
	d.Ratio = ratio

	adj := ratio.Mul(skewFactor)
	d.BidOffsetMult = one.Add(adj)
	d.AskOffsetMult = one.Sub(adj)

	// En el tope, el lado acumulador se apaga: long al cap → no más bids,
	// short al cap → no más asks.
	if ratio.Equal(one) {
		d.PauseBids = true
	} else if ratio.Equal(one.Neg()) {
		d.PauseAsks = true
	}
	return d
}

// KillSwitch es terminal por scope (mercado o portfolio): una vez disparado
// solo se limpia con un reset externo explícito, nunca desde lógica interna,
// para evitar oscilación.
type KillSwitch struct {
	tripped   bool
	reason    string
	trippedAt time.Time
}

// Trip dispara el switch. Idempotente: conserva el primer motivo.
func (k *KillSwitch) Trip(reason string) {
	if k.tripped {
		return
	}
	k.tripped = true
	k.reason = reason
	k.trippedAt = time.Now().UTC()
}

// Tripped devuelve true si el switch está disparado.
func (k *KillSwitch) Tripped() bool { return k.tripped }

// Reason devuelve el motivo del primer disparo.
func (k *KillSwitch) Reason() string { return k.reason }

// Reset limpia el switch. Solo debe invocarse por acción externa del operador.
func (k *KillSwitch) Reset() {
	k.tripped = false
	k.reason = ""
	k.trippedAt = time.Time{}
}

// RiskState es el snapshot inmutable de riesgo de un mercado que el
// orchestrator agrega a nivel portfolio.
type RiskState struct {
	ConditionID       string
	Inventory         Inventory
	UnrealizedPnL     decimal.Decimal
	InventoryCap      decimal.Decimal
	KillSwitchTripped bool
}

// HoldingRewardFactor estima el valor de mantener tokens cerca de resolución
// (≈4% APY prorrateado). Solo relevante para midpoints extremos. Advisory.
func HoldingRewardFactor(midpoint decimal.Decimal, daysToResolution int) decimal.Decimal {
	if daysToResolution <= 0 {
		return decimal.Zero
	}

	var confidence decimal.Decimal
	switch {
	case midpoint.GreaterThan(decimal.RequireFromString("0.85")):
		confidence = midpoint
	case midpoint.LessThan(decimal.RequireFromString("0.15")):
		confidence = one.Sub(midpoint)
	default:
		return decimal.Zero
	}

	dailyRate := decimal.RequireFromString("0.04").Div(decimal.NewFromInt(365))
	return confidence.Mul(dailyRate).Mul(decimal.NewFromInt(int64(daysToResolution)))
}
