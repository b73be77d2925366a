package ports

import (
	"context"

	"github.com/ayazabbas/polymarket-lp/internal/domain"
)

// MarketProvider obtiene los mercados con rewards activos desde el CLOB.
type MarketProvider interface {
	// FetchSamplingMarkets devuelve todos los mercados actualmente
	// seleccionados para recibir rewards de liquidez.
	// Pagina automáticamente hasta obtener todos los resultados.
	FetchSamplingMarkets(ctx context.Context) ([]domain.Market, error)

	// FetchMarket devuelve un mercado concreto por condition ID, con tick
	// size y fee actualizados. Usado al refrescar parámetros en rescan.
	FetchMarket(ctx context.Context, conditionID string) (domain.Market, error)
}
