package polymarket

import "encoding/json"

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- CLOB API ---

// samplingMarketsResponse es la respuesta paginada de GET /sampling-markets.
type samplingMarketsResponse struct {
	Limit      int              `json:"limit"`
	Count      int              `json:"count"`
	NextCursor string           `json:"next_cursor"`
	Data       []samplingMarket `json:"data"`
}

// samplingMarket es un mercado con rewards activos del CLOB.
type samplingMarket struct {
	ConditionID     string      `json:"condition_id"`
	Question        string      `json:"question"`
	Tokens          []clobToken `json:"tokens"`
	Rewards         clobRewards `json:"rewards"`
	MinimumTick     json.Number `json:"minimum_tick_size"`
	MakerBaseFee    float64     `json:"maker_base_fee"`
	TakerBaseFee    float64     `json:"taker_base_fee"`
	Active          bool        `json:"active"`
	Closed          bool        `json:"closed"`
	AcceptingOrders bool        `json:"accepting_orders"`
}

// clobToken representa un token (YES/NO) en el CLOB.
type clobToken struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
	Winner  bool    `json:"winner"`
}

// clobRewards contiene la configuración de rewards del mercado.
type clobRewards struct {
	Rates     []rewardRate `json:"rates"`
	MinSize   float64      `json:"min_size"`
	MaxSpread float64      `json:"max_spread"`
}

// rewardRate es la tasa de reward por asset.
type rewardRate struct {
	AssetAddress     string  `json:"asset_address"`
	RewardsDailyRate float64 `json:"rewards_daily_rate"`
}

// orderBookRequest es el body del POST /books batch.
type orderBookRequest struct {
	TokenID string `json:"token_id"`
}

// orderBookResponse es la respuesta de un item en POST /books.
type orderBookResponse struct {
	AssetID string         `json:"asset_id"`
	Bids    []bookEntryRaw `json:"bids"`
	Asks    []bookEntryRaw `json:"asks"`
}

// bookEntryRaw es un nivel de precio raw de la API (strings para mayor precisión).
type bookEntryRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// midpointResponse es la respuesta de GET /midpoint.
type midpointResponse struct {
	Mid string `json:"mid"`
}

// --- CLOB trading (L2 auth) ---

// clobPostOrder es un item del body de POST /orders (batch).
type clobPostOrder struct {
	ClientID  string `json:"client_order_id"`
	TokenID   string `json:"token_id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Side      string `json:"side"`
	OrderType string `json:"order_type"` // siempre GTC: solo órdenes maker
}

// clobOrderAck es el ack por orden dentro de la respuesta batch.
type clobOrderAck struct {
	ClientID string `json:"client_order_id"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
}

// clobCancelRequest es el body de DELETE /orders.
type clobCancelRequest struct {
	OrderIDs []string `json:"order_ids"`
}

// clobCancelResponse lista los IDs cancelados y los que no se pudieron.
type clobCancelResponse struct {
	Canceled    []string          `json:"canceled"`
	NotCanceled map[string]string `json:"not_canceled"`
}

// clobOpenOrder es una orden abierta tal como la reporta GET /orders.
type clobOpenOrder struct {
	ID           string `json:"id"`
	AssetID      string `json:"asset_id"`
	Market       string `json:"market"`
	Side         string `json:"side"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Price        string `json:"price"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

// clobOrdersResponse es la respuesta paginada de GET /orders.
type clobOrdersResponse struct {
	Data       []clobOpenOrder `json:"data"`
	NextCursor string          `json:"next_cursor"`
}

// clobTrade es un fill reportado por GET /trades.
type clobTrade struct {
	ID          string `json:"id"`
	OrderID     string `json:"taker_order_id"`
	MakerOrder  string `json:"maker_order_id"`
	AssetID     string `json:"asset_id"`
	Side        string `json:"side"`
	Price       string `json:"price"`
	Size        string `json:"size"`
	MatchTime   string `json:"match_time"`
	Status      string `json:"status"`
	ConditionID string `json:"market"`
}

// clobTradesResponse es la respuesta paginada de GET /trades.
type clobTradesResponse struct {
	Data       []clobTrade `json:"data"`
	NextCursor string      `json:"next_cursor"`
}

// clobBalanceResponse es la respuesta de GET /balance-allowance.
type clobBalanceResponse struct {
	Balance string `json:"balance"`
}
