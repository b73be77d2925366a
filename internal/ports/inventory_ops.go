package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// InventoryOps ejecuta las operaciones CTF de inventario: split de colateral
// en pares YES+NO, merge de pares de vuelta a colateral y redeem tras
// resolución. Todas son best-effort con confirmación del venue.
type InventoryOps interface {
	// SplitCollateral convierte amount de USDC en amount tokens YES + NO.
	SplitCollateral(ctx context.Context, conditionID string, amount decimal.Decimal) error

	// MergePairs convierte amount pares YES+NO de vuelta en USDC. Libera
	// capital cuando ambos lados acumularon inventario.
	MergePairs(ctx context.Context, conditionID string, amount decimal.Decimal) error

	// Redeem canjea los tokens del lado ganador tras la resolución.
	Redeem(ctx context.Context, conditionID string) error

	// TokenBalance devuelve el balance on-chain de un token (shares).
	TokenBalance(ctx context.Context, tokenID string) (decimal.Decimal, error)
}
