package polymarket

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Presupuesto de escrituras (órdenes y cancels) compartido por todos los
// mercados, al margen de cuántos engines corran. Dos ventanas: burst corto y
// sostenido largo; una request debe caber en ambas antes de salir.
const (
	burstLimit      = 3500 // requests por ventana de 10s
	burstWindowSecs = 10
	sustainedLimit  = 36000 // requests por ventana de 10min
	sustainedWindow = 600
)

// apiBudget es el rate limiter de dos niveles. Seguro para uso concurrente.
type apiBudget struct {
	burst     *rate.Limiter
	sustained *rate.Limiter
}

func newAPIBudget() *apiBudget {
	return &apiBudget{
		burst:     rate.NewLimiter(rate.Limit(float64(burstLimit)/burstWindowSecs), burstLimit/10),
		sustained: rate.NewLimiter(rate.Limit(float64(sustainedLimit)/sustainedWindow), sustainedLimit/100),
	}
}

// Wait bloquea hasta que ambas ventanas tengan presupuesto, o ctx expire.
func (b *apiBudget) Wait(ctx context.Context) error {
	if err := b.sustained.Wait(ctx); err != nil {
		return fmt.Errorf("polymarket.apiBudget: sustained window: %w", err)
	}
	if err := b.burst.Wait(ctx); err != nil {
		return fmt.Errorf("polymarket.apiBudget: burst window: %w", err)
	}
	return nil
}

// Allow devuelve true si hay presupuesto en ambas ventanas sin bloquear.
// La reserva sostenida se cancela si la ventana burst no acompaña, para no
// quemar presupuesto largo en requests que nunca salieron.
func (b *apiBudget) Allow() bool {
	r := b.sustained.Reserve()
	if !r.OK() || r.Delay() > 0 {
		r.Cancel()
		return false
	}
	if !b.burst.Allow() {
		r.Cancel()
		return false
	}
	return true
}
