package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MidpointSource indica de dónde salió un sample de midpoint.
type MidpointSource string

const (
	SourceFeed     MidpointSource = "feed"     // WebSocket en vivo
	SourceFallback MidpointSource = "fallback" // polling REST
)

// MidpointSample es un midpoint con timestamp. El engine solo actúa sobre el
// sample más reciente; los anteriores se descartan, nunca se encolan.
type MidpointSample struct {
	Price      decimal.Decimal // en [0,1]
	ReceivedAt time.Time
	Source     MidpointSource
}

// Age devuelve la antigüedad del sample respecto a now.
func (s MidpointSample) Age(now time.Time) time.Duration {
	return now.Sub(s.ReceivedAt)
}

// Valid devuelve true si el precio está dentro de (0,1).
func (s MidpointSample) Valid() bool {
	return s.Price.IsPositive() && s.Price.LessThan(decimal.NewFromInt(1))
}
