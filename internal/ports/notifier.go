package ports

import (
	"context"
	"time"

	"github.com/ayazabbas/polymarket-lp/internal/domain"
)

// EventType de las notificaciones operativas del bot.
type EventType string

const (
	EventQuotesPlaced    EventType = "quotes_placed"
	EventQuotesCancelled EventType = "quotes_cancelled"
	EventFill            EventType = "fill"
	EventKillSwitch      EventType = "kill_switch"
	EventReconcileDrift  EventType = "reconcile_drift"
	EventFeedDown        EventType = "feed_down"
	EventMarketRetired   EventType = "market_retired"
)

// Event es una notificación estructurada de un suceso operativo.
type Event struct {
	Type        EventType
	ConditionID string
	Question    string
	Message     string
	At          time.Time
}

// Notifier presenta el estado del bot al operador.
type Notifier interface {
	// Notify entrega un evento operativo. Best-effort: un fallo se loguea y
	// nunca bloquea el loop de quoting.
	Notify(ctx context.Context, ev Event) error

	// NotifyScan muestra los mercados rankeados del último scan.
	// En la implementación de consola, imprime una tabla formateada.
	NotifyScan(ctx context.Context, markets []domain.Market) error

	// NotifyStatus muestra el dashboard de métricas de la sesión.
	NotifyStatus(ctx context.Context, portfolio *domain.PortfolioMetrics, risk []domain.RiskState) error
}
