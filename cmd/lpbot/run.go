package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ayazabbas/polymarket-lp/config"
	"github.com/ayazabbas/polymarket-lp/internal/adapters/notify"
	"github.com/ayazabbas/polymarket-lp/internal/adapters/onchain"
	"github.com/ayazabbas/polymarket-lp/internal/adapters/polymarket"
	"github.com/ayazabbas/polymarket-lp/internal/adapters/storage"
	"github.com/ayazabbas/polymarket-lp/internal/application/feed"
	"github.com/ayazabbas/polymarket-lp/internal/application/orchestrator"
	"github.com/ayazabbas/polymarket-lp/internal/application/quoting"
	"github.com/ayazabbas/polymarket-lp/internal/application/scanner"
	"github.com/ayazabbas/polymarket-lp/internal/ports"
)

// runBot runs the full liquidity provision session until interrupted.
func runBot(ctx context.Context, cfg *config.Config) error {
	if err := cfg.EnsureLiveAllowed(); err != nil {
		return err
	}

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase)
	creds := polymarket.Credentials{
		APIKey:     cfg.Auth.APIKey,
		Secret:     cfg.Auth.APISecret,
		Passphrase: cfg.Auth.APIPassphrase,
		Address:    cfg.Auth.WalletAddress,
	}

	var submitter ports.OrderSubmitter
	var store ports.Storage
	if !cfg.DryRun {
		if err := confirmLive(ctx, cfg); err != nil {
			return err
		}

		auth, err := polymarket.NewAuthClient(client, creds)
		if err != nil {
			return fmt.Errorf("runBot: %w", err)
		}
		trading := polymarket.NewTradingClient(auth)

		balance, err := trading.Balance(ctx)
		if err != nil {
			return fmt.Errorf("runBot: get balance: %w", err)
		}
		slog.Info("authenticated with CLOB",
			"address", auth.Address(),
			"balance", fmt.Sprintf("$%.2f", balance),
		)
		submitter = trading

		sqlStore, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("runBot: open storage: %w", err)
		}
		defer sqlStore.Close()
		store = sqlStore
	}

	var invOps ports.InventoryOps
	if cfg.Signer.URL != "" && !cfg.DryRun {
		signer, err := onchain.NewSignerClient(cfg.Signer.URL)
		if err != nil {
			return fmt.Errorf("runBot: %w", err)
		}
		invOps = signer
		slog.Info("inventory operations enabled", "signer", cfg.Signer.URL)
	}

	notifier := buildNotifier(cfg)
	dataFeed := polymarket.NewFeed(client, cfg.API.WSBase, creds)
	sc := scanner.New(client, scanner.Config{
		MaxMarkets:           cfg.Selection.MaxMarkets,
		MinRewardDaily:       decimal.NewFromFloat(cfg.Selection.MinRewardDaily),
		MinHoursToResolution: cfg.Selection.MinHoursToResolution,
	})

	o := orchestrator.New(sc, dataFeed, submitter, notifier, store, invOps, orchestrator.Config{
		Quoting: quoting.Config{
			BaseOffsetCents:       decimal.NewFromFloat(cfg.Quoting.BaseOffsetCents),
			MinOffsetCents:        decimal.NewFromFloat(cfg.Quoting.MinOffsetCents),
			RequoteInterval:       cfg.RequoteInterval(),
			RequoteThresholdCents: decimal.NewFromFloat(cfg.Quoting.RequoteThresholdCents),
			OrderSize:             decimal.NewFromFloat(cfg.Quoting.OrderSize),
			NumLevels:             cfg.Quoting.NumLevels,
			DryRun:                cfg.DryRun,
		},
		Risk: quoting.RiskConfig{
			InventoryCap: decimal.NewFromFloat(cfg.Risk.InventoryCap),
			SkewFactor:   decimal.NewFromFloat(cfg.Risk.SkewFactor),
			KillLoss:     decimal.NewFromFloat(cfg.Risk.KillSwitchLossUSDC),
		},
		Capital: orchestrator.CapitalConfig{
			MaxTotal:     decimal.NewFromFloat(cfg.Selection.MaxTotalCapitalUSDC),
			MaxPerMarket: decimal.NewFromFloat(cfg.Selection.MaxPerMarketUSDC),
		},
		PortfolioLoss:  decimal.NewFromFloat(cfg.Risk.PortfolioLossUSDC),
		RescanInterval: cfg.RescanInterval(),
		Feed: feed.Config{
			StaleAfter:   cfg.StaleAfter(),
			PollInterval: cfg.PollInterval(),
		},
		DryRun: cfg.DryRun,
	})

	runErr := o.Run(ctx)

	// Final dashboard regardless of how the session ended.
	statusCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := notifier.NotifyStatus(statusCtx, o.Portfolio(), o.RiskStates()); err != nil {
		slog.Warn("final status failed", "err", err)
	}
	return runErr
}

// confirmLive gives the operator a short window to abort a real-money session.
func confirmLive(ctx context.Context, cfg *config.Config) error {
	slog.Warn("LIVE TRADING MODE — REAL MONEY",
		"order_size", cfg.Quoting.OrderSize,
		"max_total_capital", cfg.Selection.MaxTotalCapitalUSDC,
		"max_per_market", cfg.Selection.MaxPerMarketUSDC,
	)
	fmt.Println("\n⚠  live trading starts in 5 seconds — press Ctrl+C to abort")

	timer := time.NewTimer(5 * time.Second)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("runBot: aborted before start")
	}
}

// buildNotifier stacks console output with Telegram alerts when configured.
func buildNotifier(cfg *config.Config) ports.Notifier {
	console := notify.NewConsole()
	if !cfg.Telegram.Enabled || cfg.Telegram.Token == "" {
		return console
	}

	tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
	if err != nil {
		slog.Warn("telegram disabled", "err", err)
		return console
	}
	slog.Info("telegram alerts enabled", "chat_id", cfg.Telegram.ChatID)
	return notify.Multi{console, tg}
}
