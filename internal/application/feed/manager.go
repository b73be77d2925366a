package feed

// Feed manager: keeps only the latest midpoint sample per token. Samples are
// overwritten, never queued — a slow consumer acts on fresh data or none.
// When the push feed is down or silent, a REST poll keeps samples flowing,
// tagged with their source so the engine can log degraded mode.

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ayazabbas/polymarket-lp/internal/domain"
	"github.com/ayazabbas/polymarket-lp/internal/ports"
)

// Config holds feed manager settings.
type Config struct {
	StaleAfter   time.Duration // max sample age before Latest reports stale
	PollInterval time.Duration // REST fallback cadence
}

// Manager owns the market-data flow for a set of tokens.
type Manager struct {
	provider ports.MarketDataProvider
	cfg      Config

	mu      sync.RWMutex
	latest  map[string]domain.MidpointSample // tokenID → last sample
	healthy bool

	fills chan domain.Fill
}

// NewManager creates a feed manager for the given provider.
func NewManager(provider ports.MarketDataProvider, cfg Config) *Manager {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	return &Manager{
		provider: provider,
		cfg:      cfg,
		latest:   make(map[string]domain.MidpointSample),
		fills:    make(chan domain.Fill, 256),
	}
}

// Run consumes the push subscription and polls the fallback until ctx is
// cancelled. Blocks; callers run it in a goroutine.
func (m *Manager) Run(ctx context.Context, tokenIDs []string) error {
	events, err := m.provider.Subscribe(ctx, tokenIDs)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return ctx.Err()
			}
			m.handleEvent(ev)

		case <-ticker.C:
			m.pollStale(ctx, tokenIDs)
		}
	}
}

// Fills returns the stream of fill notifications from the user feed.
func (m *Manager) Fills() <-chan domain.Fill {
	return m.fills
}

// Latest returns the most recent sample for a token and whether it is fresh
// enough to quote on. A missing or stale sample returns ok=false: the caller
// cancels resting orders instead of quoting blind.
func (m *Manager) Latest(tokenID string) (domain.MidpointSample, bool) {
	m.mu.RLock()
	sample, found := m.latest[tokenID]
	m.mu.RUnlock()

	if !found || !sample.Valid() {
		return domain.MidpointSample{}, false
	}
	if sample.Age(time.Now()) > m.cfg.StaleAfter {
		return sample, false
	}
	return sample, true
}

// Healthy reports whether the push feed is currently connected.
func (m *Manager) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy
}

func (m *Manager) handleEvent(ev ports.FeedEvent) {
	switch ev.Type {
	case ports.FeedMidpoint:
		m.store(ev.TokenID, domain.MidpointSample{
			Price:      ev.Midpoint,
			ReceivedAt: ev.At,
			Source:     domain.SourceFeed,
		})

	case ports.FeedFill:
		select {
		case m.fills <- ev.Fill:
		default:
			slog.Warn("fill channel full, dropping", "fill_id", ev.Fill.FillID)
		}

	case ports.FeedDisconnected:
		m.setHealthy(false)
		slog.Warn("market data feed disconnected, poll fallback active")

	case ports.FeedReconnected:
		m.setHealthy(true)
		slog.Info("market data feed reconnected")
	}
}

// pollStale refreshes tokens whose sample is older than the poll interval.
// While the push feed is healthy most tokens skip this path entirely.
func (m *Manager) pollStale(ctx context.Context, tokenIDs []string) {
	now := time.Now()
	for _, id := range tokenIDs {
		m.mu.RLock()
		sample, found := m.latest[id]
		m.mu.RUnlock()

		if found && sample.Age(now) < m.cfg.PollInterval {
			continue
		}

		mid, err := m.provider.Midpoint(ctx, id)
		if err != nil {
			slog.Debug("midpoint poll failed", "token", id, "err", err)
			continue
		}

		m.store(id, domain.MidpointSample{
			Price:      mid,
			ReceivedAt: time.Now(),
			Source:     domain.SourceFallback,
		})
	}
}

func (m *Manager) store(tokenID string, sample domain.MidpointSample) {
	if !sample.Valid() {
		return
	}
	m.mu.Lock()
	m.latest[tokenID] = sample
	if sample.Source == domain.SourceFeed {
		m.healthy = true
	}
	m.mu.Unlock()
}

func (m *Manager) setHealthy(v bool) {
	m.mu.Lock()
	m.healthy = v
	m.mu.Unlock()
}
