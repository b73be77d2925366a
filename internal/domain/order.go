package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus es el ciclo de vida de una orden real en el CLOB.
type OrderStatus string

const (
	StatusOpen            OrderStatus = "OPEN"
	StatusPartiallyFilled OrderStatus = "PARTIAL"
	StatusFilled          OrderStatus = "FILLED"
	StatusCancelled       OrderStatus = "CANCELLED"
	StatusRejected        OrderStatus = "REJECTED"
)

// Live devuelve true si la orden sigue descansando en el book.
func (s OrderStatus) Live() bool {
	return s == StatusOpen || s == StatusPartiallyFilled
}

// TrackedOrder es el estado local de una orden. Propiedad exclusiva del
// tracker de su mercado; el book del venue es la fuente de verdad y esto una
// cache best-effort que se reconcilia.
type TrackedOrder struct {
	ID           string // UUID local, asignado al construir
	VenueOrderID string // hash del CLOB; vacío hasta el ack
	ConditionID  string
	TokenID      string
	Side         Side
	Price        decimal.Decimal
	Size         decimal.Decimal
	FilledSize   decimal.Decimal
	Status       OrderStatus
	Level        int
	PlacedAt     time.Time
}

// Remaining devuelve el tamaño aún sin llenar.
func (o TrackedOrder) Remaining() decimal.Decimal {
	return o.Size.Sub(o.FilledSize)
}

// Fill es una notificación de fill del venue. FillID dedupea notificaciones
// duplicadas: el inventario nunca cuenta un fill dos veces.
type Fill struct {
	FillID       string
	VenueOrderID string
	TokenID      string
	Side         Side
	Price        decimal.Decimal
	Size         decimal.Decimal
	Timestamp    time.Time
}

// VenueOrder es el snapshot de una orden tal como la reporta el venue,
// usado en la reconciliación periódica.
type VenueOrder struct {
	VenueOrderID string
	TokenID      string
	Side         Side
	Price        decimal.Decimal
	Size         decimal.Decimal
	FilledSize   decimal.Decimal
	Status       OrderStatus
}

// PlaceOrderRequest es una orden limit maker lista para enviar al CLOB.
type PlaceOrderRequest struct {
	ClientID    string // UUID local para correlacionar el ack
	ConditionID string
	TokenID     string
	Side        Side
	Price       decimal.Decimal
	Size        decimal.Decimal
	Level       int
}

// PlacedOrder es el ack (o rechazo) del venue para una orden del batch.
// Un rechazo individual no falla el batch entero.
type PlacedOrder struct {
	ClientID     string
	VenueOrderID string
	Status       OrderStatus
	ErrorMsg     string // vacío salvo rechazo
}
