package notify

// telegram.go — alertas por Telegram para los eventos que exigen atención
// del operador (kill switch, drift de reconciliación, feed caído). El resto
// de eventos solo van a consola/log.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ayazabbas/polymarket-lp/internal/domain"
	"github.com/ayazabbas/polymarket-lp/internal/ports"
)

const telegramRetries = 3

// Telegram implementa ports.Notifier enviando alertas a un chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram crea el notificador. Falla si el token no es válido.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// alertable marca los eventos que ameritan interrumpir al operador.
func alertable(t ports.EventType) bool {
	switch t {
	case ports.EventKillSwitch, ports.EventReconcileDrift, ports.EventFeedDown:
		return true
	}
	return false
}

// Notify envía el evento al chat si es alertable. Best-effort con retries
// lineales; un fallo se loguea y no se propaga al loop de quoting.
func (t *Telegram) Notify(_ context.Context, ev ports.Event) error {
	if !alertable(ev.Type) {
		return nil
	}

	label := domain.TruncateQuestion(ev.Question, ev.ConditionID, 60)
	text := fmt.Sprintf("⚠️ %s\n%s\n%s", ev.Type, label, ev.Message)

	if err := t.send(text); err != nil {
		slog.Warn("telegram notify failed", "type", ev.Type, "err", err)
	}
	return nil
}

// NotifyScan no aplica por Telegram: la tabla de scan es de consola.
func (t *Telegram) NotifyScan(_ context.Context, _ []domain.Market) error {
	return nil
}

// NotifyStatus envía un resumen corto del portfolio.
func (t *Telegram) NotifyStatus(_ context.Context, portfolio *domain.PortfolioMetrics, risk []domain.RiskState) error {
	if portfolio == nil {
		return nil
	}

	tripped := 0
	for _, r := range risk {
		if r.KillSwitchTripped {
			tripped++
		}
	}

	text := fmt.Sprintf("LP bot: %d markets, PnL $%s, %d fills, %d kill switches",
		len(portfolio.Markets),
		portfolio.TotalPnL().StringFixed(2),
		portfolio.TotalFills(),
		tripped,
	)
	if err := t.send(text); err != nil {
		slog.Warn("telegram status failed", "err", err)
	}
	return nil
}

// send entrega un mensaje con retry lineal.
func (t *Telegram) send(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)

	var lastErr error
	for i := 0; i < telegramRetries; i++ {
		if _, err := t.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(time.Second * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", telegramRetries, lastErr)
}

// Multi reparte cada notificación a varios notifiers (consola + telegram).
type Multi []ports.Notifier

// Notify entrega a todos; devuelve el primer error.
func (m Multi) Notify(ctx context.Context, ev ports.Event) error {
	var firstErr error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NotifyScan entrega a todos; devuelve el primer error.
func (m Multi) NotifyScan(ctx context.Context, markets []domain.Market) error {
	var firstErr error
	for _, n := range m {
		if err := n.NotifyScan(ctx, markets); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NotifyStatus entrega a todos; devuelve el primer error.
func (m Multi) NotifyStatus(ctx context.Context, portfolio *domain.PortfolioMetrics, risk []domain.RiskState) error {
	var firstErr error
	for _, n := range m {
		if err := n.NotifyStatus(ctx, portfolio, risk); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
