package ports

import (
	"errors"
	"fmt"
)

// Códigos de rechazo del venue que el engine distingue para reaccionar.
type RejectCode string

const (
	RejectTickSize     RejectCode = "INVALID_TICK"
	RejectMinSize      RejectCode = "BELOW_MIN_SIZE"
	RejectInsufficient RejectCode = "INSUFFICIENT_BALANCE"
	RejectMarketClosed RejectCode = "MARKET_CLOSED"
	RejectOther        RejectCode = "OTHER"
)

// RejectionError es un rechazo explícito del venue a una orden bien formada
// a nivel transporte. No se reintenta tal cual: el engine lo loguea y
// recalcula en el próximo tick.
type RejectionError struct {
	Code    RejectCode
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("venue rejection [%s]: %s", e.Code, e.Message)
}

// TransientError envuelve fallos de red o 5xx del venue. Elegible para
// retry con backoff; nunca muta estado local.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// ErrRateLimited señala que el rate limiter local agotó presupuesto o que el
// venue devolvió 429. El caller espera al próximo tick.
var ErrRateLimited = errors.New("rate limit exhausted")

// IsTransient devuelve true si err amerita retry con backoff.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsRejection extrae el RejectionError si err lo es.
func IsRejection(err error) (*RejectionError, bool) {
	var re *RejectionError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
