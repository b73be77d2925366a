package polymarket

// ws.go — feed push por WebSocket: canal market (books → midpoints) y canal
// user (fills). Reconexión con backoff exponencial y jitter; la detección de
// staleness vive en el feed manager, aquí solo se emiten eventos.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/ayazabbas/polymarket-lp/internal/domain"
	"github.com/ayazabbas/polymarket-lp/internal/ports"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterPercent  = 0.2

	heartbeatTimeout = 60 * time.Second
	pongTimeout      = 10 * time.Second
	writeTimeout     = 10 * time.Second
)

// Feed implementa ports.MarketDataProvider: push por WS más los métodos de
// polling del Client embebido como fallback.
type Feed struct {
	*Client
	wsBase string
	creds  Credentials // vacías → solo canal market, sin fills push
}

// NewFeed crea el feed. Con credenciales completas abre también el canal
// user para recibir fills en push.
func NewFeed(client *Client, wsBase string, creds Credentials) *Feed {
	if wsBase == "" {
		wsBase = "wss://ws-subscriptions-clob.polymarket.com/ws"
	}
	return &Feed{Client: client, wsBase: wsBase, creds: creds}
}

// Subscribe abre la suscripción push para los tokens dados. El canal devuelto
// se cierra al cancelar ctx.
func (f *Feed) Subscribe(ctx context.Context, tokenIDs []string) (<-chan ports.FeedEvent, error) {
	if len(tokenIDs) == 0 {
		return nil, fmt.Errorf("polymarket.Subscribe: no token IDs")
	}

	out := make(chan ports.FeedEvent, 256)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		f.runChannel(ctx, "market", tokenIDs, out)
	}()

	if f.creds.Complete() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.runChannel(ctx, "user", tokenIDs, out)
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

// runChannel mantiene una conexión WS viva para un canal, reconectando con
// backoff hasta que el contexto se cancele.
func (f *Feed) runChannel(ctx context.Context, channel string, tokenIDs []string, out chan<- ports.FeedEvent) {
	backoff := initialBackoff
	connectedOnce := false

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := f.dial(ctx, channel, tokenIDs)
		if err != nil {
			slog.Error("ws connect failed", "channel", channel, "err", err, "backoff", backoff)
			backoff = f.waitBackoff(ctx, backoff)
			continue
		}

		backoff = initialBackoff
		if connectedOnce {
			emit(ctx, out, ports.FeedEvent{Type: ports.FeedReconnected, At: time.Now().UTC()})
		}
		connectedOnce = true
		slog.Info("ws connected", "channel", channel, "tokens", len(tokenIDs))

		if err := f.readLoop(ctx, conn, out); err != nil {
			slog.Warn("ws read error", "channel", channel, "err", err)
		}
		conn.Close()

		select {
		case <-ctx.Done():
			return
		default:
			emit(ctx, out, ports.FeedEvent{Type: ports.FeedDisconnected, At: time.Now().UTC()})
			backoff = f.waitBackoff(ctx, backoff)
		}
	}
}

// dial abre la conexión y envía el mensaje de suscripción del canal.
func (f *Feed) dial(ctx context.Context, channel string, tokenIDs []string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	headers := http.Header{}
	headers.Set("Origin", "https://polymarket.com")

	url := strings.TrimSuffix(f.wsBase, "/") + "/" + channel
	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", channel, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", channel, err)
	}

	var sub map[string]any
	switch channel {
	case "user":
		sub = map[string]any{
			"type":    "user",
			"markets": []string{},
			"auth": map[string]string{
				"apiKey":     f.creds.APIKey,
				"secret":     f.creds.Secret,
				"passphrase": f.creds.Passphrase,
			},
		}
	default:
		sub = map[string]any{
			"type":       "market",
			"assets_ids": tokenIDs,
		}
	}

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	return conn, nil
}

// readLoop lee mensajes hasta error de conexión o cancelación.
func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- ports.FeedEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn.SetReadDeadline(time.Now().Add(heartbeatTimeout + pongTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		for _, ev := range parseWSMessage(message) {
			emit(ctx, out, ev)
		}
	}
}

// emit entrega sin bloquear: si el consumidor no drena, el evento se
// descarta (el feed manager solo quiere el último sample).
func emit(_ context.Context, out chan<- ports.FeedEvent, ev ports.FeedEvent) {
	select {
	case out <- ev:
	default:
		slog.Warn("feed channel full, dropping event", "type", ev.Type)
	}
}

// waitBackoff espera el backoff actual con jitter y devuelve el siguiente.
func (f *Feed) waitBackoff(ctx context.Context, backoff time.Duration) time.Duration {
	jitter := 1 + jitterPercent*(2*rand.Float64()-1)
	wait := time.Duration(float64(backoff) * jitter)

	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}

	return nextBackoff(backoff)
}

// nextBackoff dobla el backoff hasta el tope.
func nextBackoff(cur time.Duration) time.Duration {
	next := time.Duration(float64(cur) * backoffFactor)
	if next > maxBackoff {
		next = maxBackoff
	}
	return next
}

// --- parsing ---

// wsEnvelope cubre los campos comunes de los mensajes de ambos canales.
type wsEnvelope struct {
	EventType string         `json:"event_type"`
	AssetID   string         `json:"asset_id"`
	Market    string         `json:"market"`
	Bids      []bookEntryRaw `json:"bids"`
	Asks      []bookEntryRaw `json:"asks"`
	// Campos del canal user (event_type = trade)
	ID    string `json:"id"`
	Side  string `json:"side"`
	Price string `json:"price"`
	Size  string `json:"size"`
	// Orden maker afectada por el trade
	MakerOrders []wsMakerOrder `json:"maker_orders"`
}

type wsMakerOrder struct {
	OrderID string `json:"order_id"`
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
	Amount  string `json:"matched_amount"`
}

// parseWSMessage convierte un frame WS en cero o más FeedEvents. El CLOB
// manda tanto objetos sueltos como arrays.
func parseWSMessage(data []byte) []ports.FeedEvent {
	var envs []wsEnvelope
	if err := json.Unmarshal(data, &envs); err != nil {
		var single wsEnvelope
		if err := json.Unmarshal(data, &single); err != nil {
			return nil
		}
		envs = []wsEnvelope{single}
	}

	var events []ports.FeedEvent
	now := time.Now().UTC()
	for _, env := range envs {
		switch env.EventType {
		case "book":
			mid, ok := midpointFromBook(env)
			if !ok {
				continue
			}
			events = append(events, ports.FeedEvent{
				Type:     ports.FeedMidpoint,
				TokenID:  env.AssetID,
				Midpoint: mid,
				At:       now,
			})
		case "trade":
			events = append(events, tradeEvents(env, now)...)
		}
	}
	return events
}

// midpointFromBook calcula el midpoint del snapshot de book del mensaje.
func midpointFromBook(env wsEnvelope) (decimal.Decimal, bool) {
	ob := domain.OrderBook{
		TokenID: env.AssetID,
		Bids:    mapBookEntries(env.Bids, false),
		Asks:    mapBookEntries(env.Asks, true),
	}
	mid := ob.Midpoint()
	if mid.IsZero() {
		return decimal.Zero, false
	}
	return mid, true
}

// tradeEvents convierte un trade del canal user en eventos de fill, uno por
// orden maker nuestra involucrada.
func tradeEvents(env wsEnvelope, now time.Time) []ports.FeedEvent {
	side := domain.SideBid
	if strings.EqualFold(env.Side, "SELL") {
		side = domain.SideAsk
	}

	// Sin desglose por maker order: un único fill con los datos del trade.
	if len(env.MakerOrders) == 0 {
		f := domain.Fill{
			FillID:    env.ID,
			TokenID:   env.AssetID,
			Side:      side,
			Timestamp: now,
		}
		if p, err := decimal.NewFromString(env.Price); err == nil {
			f.Price = p
		}
		if s, err := decimal.NewFromString(env.Size); err == nil {
			f.Size = s
		}
		return []ports.FeedEvent{{Type: ports.FeedFill, TokenID: env.AssetID, Fill: f, At: now}}
	}

	events := make([]ports.FeedEvent, 0, len(env.MakerOrders))
	for i, mo := range env.MakerOrders {
		// El lado maker es el opuesto al taker del trade.
		makerSide := domain.SideAsk
		if side == domain.SideAsk {
			makerSide = domain.SideBid
		}
		f := domain.Fill{
			FillID:       fmt.Sprintf("%s/%d", env.ID, i),
			VenueOrderID: mo.OrderID,
			TokenID:      mo.AssetID,
			Side:         makerSide,
			Timestamp:    now,
		}
		if p, err := decimal.NewFromString(mo.Price); err == nil {
			f.Price = p
		}
		if s, err := decimal.NewFromString(mo.Amount); err == nil {
			f.Size = s
		}
		events = append(events, ports.FeedEvent{Type: ports.FeedFill, TokenID: mo.AssetID, Fill: f, At: now})
	}
	return events
}
