package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ayazabbas/polymarket-lp/config"
	"github.com/ayazabbas/polymarket-lp/internal/adapters/notify"
	"github.com/ayazabbas/polymarket-lp/internal/adapters/polymarket"
	"github.com/ayazabbas/polymarket-lp/internal/application/scanner"
)

// runScan ranks the current reward markets and prints the table. Read-only:
// no credentials, no orders.
func runScan(ctx context.Context, cfg *config.Config) error {
	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase)
	sc := scanner.New(client, scanner.Config{
		MaxMarkets:           cfg.Selection.MaxMarkets,
		MinRewardDaily:       decimal.NewFromFloat(cfg.Selection.MinRewardDaily),
		MinHoursToResolution: cfg.Selection.MinHoursToResolution,
	})

	markets, err := sc.Scan(ctx)
	if err != nil {
		return fmt.Errorf("runScan: %w", err)
	}

	return notify.NewConsole().NotifyScan(ctx, markets)
}
