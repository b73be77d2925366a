package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/ayazabbas/polymarket-lp/internal/domain"
	"github.com/ayazabbas/polymarket-lp/internal/ports"
)

// Console implementa ports.Notifier escribiendo a stdout.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador de consola.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Notify imprime un evento operativo en una línea.
func (c *Console) Notify(_ context.Context, ev ports.Event) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	label := domain.TruncateQuestion(ev.Question, ev.ConditionID, 40)
	fmt.Fprintf(c.out, "[%s] %-18s %s — %s\n", at.Format("15:04:05"), ev.Type, label, ev.Message)
	return nil
}

// NotifyScan imprime la tabla de mercados rankeados del último scan.
func (c *Console) NotifyScan(_ context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		fmt.Fprintf(c.out, "[%s] no candidate markets found\n", time.Now().Format("15:04:05"))
		return nil
	}

	fmt.Fprintf(c.out, "\n[%s] %d candidate markets\n", time.Now().Format("15:04:05"), len(markets))

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Market", "Rwd/day", "Liquidity", "Vol 24h", "Tick", "Score")

	for i, m := range markets {
		table.Append(
			fmt.Sprintf("%d", i+1),
			domain.TruncateQuestion(m.Question, m.ConditionID, 45),
			"$"+m.Rewards.DailyRate.StringFixed(2),
			"$"+m.Liquidity.StringFixed(0),
			"$"+m.Volume24h.StringFixed(0),
			m.TickSize.String(),
			m.Score.StringFixed(2),
		)
	}
	table.Render()
	return nil
}

// NotifyStatus imprime el dashboard de métricas de la sesión.
func (c *Console) NotifyStatus(_ context.Context, portfolio *domain.PortfolioMetrics, risk []domain.RiskState) error {
	if portfolio == nil || len(portfolio.Markets) == 0 {
		fmt.Fprintf(c.out, "[%s] no active markets\n", time.Now().Format("15:04:05"))
		return nil
	}

	riskByID := make(map[string]domain.RiskState, len(risk))
	for _, r := range risk {
		riskByID[r.ConditionID] = r
	}

	fmt.Fprintf(c.out, "\n=== session %s — %d markets — total PnL $%s ===\n",
		time.Since(portfolio.SessionStart).Round(time.Second),
		len(portfolio.Markets),
		portfolio.TotalPnL().StringFixed(2),
	)

	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Spread$", "Reward$", "Rebate$", "Unreal$", "Net inv", "Fills", "Uptime%", "Kill")

	for _, m := range portfolio.Markets {
		r := riskByID[m.ConditionID]

		kill := ""
		if r.KillSwitchTripped {
			kill = "TRIPPED"
		}

		table.Append(
			domain.TruncateQuestion(m.Question, m.ConditionID, 40),
			m.SpreadPnL.StringFixed(2),
			m.RewardPnL.StringFixed(2),
			m.RebatePnL.StringFixed(2),
			r.UnrealizedPnL.StringFixed(2),
			r.Inventory.Net().StringFixed(0),
			fmt.Sprintf("%d", m.TotalFills),
			m.UptimePct().Round(1).String(),
			kill,
		)
	}
	table.Render()

	fmt.Fprintf(c.out, "fills: %d — avg fill rate: %s — avg uptime: %s%%\n",
		portfolio.TotalFills(),
		portfolio.AvgFillRate().Round(3).String(),
		portfolio.AvgUptime().Round(1).String(),
	)
	return nil
}
