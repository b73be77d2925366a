package polymarket

// trading.go — ejecución real de órdenes contra el CLOB.
//
// Implementa ports.OrderSubmitter sobre AuthClient. Todas las órdenes son
// limit GTC maker; el CLOB firma del lado del operador (la firma de órdenes
// no vive en este proceso).

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/ayazabbas/polymarket-lp/internal/domain"
	"github.com/ayazabbas/polymarket-lp/internal/ports"
)

// TradingClient implementa ports.OrderSubmitter.
type TradingClient struct {
	auth *AuthClient
}

// NewTradingClient crea el cliente de trading. Requiere un AuthClient, que a
// su vez solo existe con credenciales completas.
func NewTradingClient(auth *AuthClient) *TradingClient {
	return &TradingClient{auth: auth}
}

// PlaceOrders envía un batch de órdenes limit maker. Respeta MaxPlaceBatch;
// un batch mayor es un error de programación del caller, no se trocea aquí.
func (tc *TradingClient) PlaceOrders(ctx context.Context, reqs []domain.PlaceOrderRequest) ([]domain.PlacedOrder, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	if len(reqs) > ports.MaxPlaceBatch {
		return nil, fmt.Errorf("trading.PlaceOrders: batch %d exceeds max %d", len(reqs), ports.MaxPlaceBatch)
	}

	body := make([]clobPostOrder, len(reqs))
	for i, r := range reqs {
		body[i] = clobPostOrder{
			ClientID:  r.ClientID,
			TokenID:   r.TokenID,
			Price:     r.Price.String(),
			Size:      r.Size.String(),
			Side:      string(r.Side),
			OrderType: "GTC",
		}
	}

	var acks []clobOrderAck
	if err := tc.auth.doL2(ctx, http.MethodPost, "/orders", body, &acks); err != nil {
		return nil, fmt.Errorf("trading.PlaceOrders: %w", err)
	}

	placed := make([]domain.PlacedOrder, 0, len(acks))
	for _, a := range acks {
		po := domain.PlacedOrder{
			ClientID:     a.ClientID,
			VenueOrderID: a.OrderID,
			Status:       domain.StatusOpen,
		}
		if !a.Success || a.ErrorMsg != "" {
			po.Status = domain.StatusRejected
			po.ErrorMsg = a.ErrorMsg
		}
		placed = append(placed, po)
	}
	return placed, nil
}

// CancelOrders cancela hasta MaxCancelBatch órdenes por venue order ID.
// Devuelve los IDs que el venue confirmó cancelados.
func (tc *TradingClient) CancelOrders(ctx context.Context, venueOrderIDs []string) ([]string, error) {
	if len(venueOrderIDs) == 0 {
		return nil, nil
	}
	if len(venueOrderIDs) > ports.MaxCancelBatch {
		return nil, fmt.Errorf("trading.CancelOrders: batch %d exceeds max %d", len(venueOrderIDs), ports.MaxCancelBatch)
	}

	var resp clobCancelResponse
	body := clobCancelRequest{OrderIDs: venueOrderIDs}
	if err := tc.auth.doL2(ctx, http.MethodDelete, "/orders", body, &resp); err != nil {
		return nil, fmt.Errorf("trading.CancelOrders: %w", err)
	}
	return resp.Canceled, nil
}

// CancelMarket cancela todas las órdenes abiertas de un mercado.
func (tc *TradingClient) CancelMarket(ctx context.Context, conditionID string) error {
	path := "/cancel-market-orders?market=" + url.QueryEscape(conditionID)
	if err := tc.auth.doL2(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("trading.CancelMarket %s: %w", conditionID, err)
	}
	return nil
}

// CancelAll cancela todas las órdenes abiertas de la wallet.
func (tc *TradingClient) CancelAll(ctx context.Context) error {
	if err := tc.auth.doL2(ctx, http.MethodDelete, "/cancel-all", nil, nil); err != nil {
		return fmt.Errorf("trading.CancelAll: %w", err)
	}
	return nil
}

// OpenOrders devuelve el snapshot del venue de órdenes abiertas del mercado.
func (tc *TradingClient) OpenOrders(ctx context.Context, conditionID string) ([]domain.VenueOrder, error) {
	var all []domain.VenueOrder
	cursor := ""

	for {
		path := "/orders?market=" + url.QueryEscape(conditionID)
		if cursor != "" {
			path += "&next_cursor=" + cursor
		}

		var resp clobOrdersResponse
		if err := tc.auth.doL2(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, fmt.Errorf("trading.OpenOrders %s: %w", conditionID, err)
		}

		for _, o := range resp.Data {
			all = append(all, mapOpenOrder(o))
		}
		if resp.NextCursor == "" || resp.NextCursor == "LTE=" {
			break
		}
		cursor = resp.NextCursor
	}
	return all, nil
}

// Fills devuelve los fills del mercado desde el cursor dado (fill ID, vacío
// para todos). Fallback de polling cuando el user feed está caído.
func (tc *TradingClient) Fills(ctx context.Context, conditionID, sinceFillID string) ([]domain.Fill, error) {
	path := "/trades?market=" + url.QueryEscape(conditionID)
	if sinceFillID != "" {
		path += "&after=" + url.QueryEscape(sinceFillID)
	}

	var resp clobTradesResponse
	if err := tc.auth.doL2(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("trading.Fills %s: %w", conditionID, err)
	}

	fills := make([]domain.Fill, 0, len(resp.Data))
	for _, t := range resp.Data {
		fills = append(fills, mapTrade(t))
	}
	return fills, nil
}

// Balance devuelve el colateral USDC disponible en el CLOB.
func (tc *TradingClient) Balance(ctx context.Context) (float64, error) {
	var resp clobBalanceResponse
	if err := tc.auth.doL2(ctx, http.MethodGet, "/balance-allowance?asset_type=COLLATERAL", nil, &resp); err != nil {
		return 0, fmt.Errorf("trading.Balance: %w", err)
	}

	bal, err := decimal.NewFromString(resp.Balance)
	if err != nil {
		return 0, fmt.Errorf("trading.Balance: parse %q: %w", resp.Balance, err)
	}
	// El CLOB reporta micro-USDC.
	f, _ := bal.Div(decimal.NewFromInt(1_000_000)).Float64()
	return f, nil
}
