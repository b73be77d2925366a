package main

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"

	"github.com/ayazabbas/polymarket-lp/config"
	"github.com/ayazabbas/polymarket-lp/internal/adapters/storage"
	"github.com/ayazabbas/polymarket-lp/internal/domain"
)

// runStatus prints the last persisted snapshot per market from the SQLite
// store. Works across sessions: the bot does not need to be running.
func runStatus(ctx context.Context, cfg *config.Config) error {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("runStatus: open storage: %w", err)
	}
	defer store.Close()

	snaps, err := store.GetLatestSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("runStatus: %w", err)
	}
	if len(snaps) == 0 {
		fmt.Println("no persisted metrics yet — run `lpbot run` first")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Market", "Spread$", "Reward$", "Rebate$", "Unreal$", "Net inv", "Fills", "Orders", "Uptime%", "Taken")

	for _, s := range snaps {
		table.Append(
			domain.TruncateQuestion(s.Question, s.ConditionID, 40),
			s.SpreadPnL,
			s.RewardPnL,
			s.RebatePnL,
			s.UnrealizedPnL,
			s.NetInventory,
			fmt.Sprintf("%d", s.TotalFills),
			fmt.Sprintf("%d", s.TotalOrders),
			s.UptimePct,
			s.TakenAt.Format("01-02 15:04"),
		)
	}
	table.Render()
	return nil
}
