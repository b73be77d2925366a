package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ayazabbas/polymarket-lp/internal/ports"
)

const (
	defaultCLOBBase  = "https://clob.polymarket.com"
	defaultGammaBase = "https://gamma-api.polymarket.com"

	// Rate limits de lectura al 60% de los límites reales documentados.
	// CLOB /books: 500/10s → 300/10s → 30/s
	booksRatePerSec = 30
	// Gamma /markets: 300/10s → 180/10s → 18/s
	gammaRatePerSec = 18
	// CLOB general (sampling-markets, midpoint, etc.): 9000/10s → 5400/10s → 540/s
	generalRatePerSec = 540

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// waiter es lo que get/post/doL2 necesitan de un rate limiter.
type waiter interface {
	Wait(ctx context.Context) error
}

// Client es el HTTP client de Polymarket con rate limiting y retries.
// Cada clase de endpoint de lectura lleva su propio limiter; las escrituras
// (órdenes, cancels) pasan por el presupuesto de dos ventanas de ratelimit.go,
// de modo que un burst de submissions nunca deja sin cupo a los polls.
type Client struct {
	http      *http.Client
	clobBase  string
	gammaBase string

	writes       *apiBudget
	readLimiter  *rate.Limiter
	gammaLimiter *rate.Limiter
	booksLimiter *rate.Limiter
}

// NewClient crea un Client con los base URLs dados.
// Si clobBase o gammaBase están vacíos, usa los URLs de producción.
func NewClient(clobBase, gammaBase string) *Client {
	if clobBase == "" {
		clobBase = defaultCLOBBase
	}
	if gammaBase == "" {
		gammaBase = defaultGammaBase
	}
	return &Client{
		http:         &http.Client{Timeout: 10 * time.Second},
		clobBase:     clobBase,
		gammaBase:    gammaBase,
		writes:       newAPIBudget(),
		readLimiter:  rate.NewLimiter(generalRatePerSec, 50),
		gammaLimiter: rate.NewLimiter(gammaRatePerSec, 10),
		booksLimiter: rate.NewLimiter(booksRatePerSec, 5),
	}
}

// get hace un GET con rate limiting y retries.
func (c *Client) get(ctx context.Context, lim waiter, url string, out any) error {
	return c.doWithRetry(ctx, lim, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// post hace un POST JSON con rate limiting y retries.
func (c *Client) post(ctx context.Context, lim waiter, url string, body, out any) error {
	return c.doWithRetry(ctx, lim, func() (*http.Response, error) {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// doWithRetry ejecuta la función con backoff exponencial y jitter.
// Los retries solo aplican a fallos de transporte y 5xx; un 4xx es definitivo.
func (c *Client) doWithRetry(ctx context.Context, lim waiter, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			return err
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries {
				return &ports.TransientError{Err: fmt.Errorf("request failed after %d retries: %w", maxRetries, err)}
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by API", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return &ports.TransientError{Err: fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)}
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return mapClientError(resp.StatusCode, body)
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return ports.ErrRateLimited
}

// mapClientError clasifica un 4xx del venue en el código de rechazo que el
// engine usa para reaccionar.
func mapClientError(status int, body []byte) error {
	msg := string(body)
	code := ports.RejectOther
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "tick"):
		code = ports.RejectTickSize
	case strings.Contains(lower, "min") && strings.Contains(lower, "size"):
		code = ports.RejectMinSize
	case strings.Contains(lower, "balance") || strings.Contains(lower, "allowance"):
		code = ports.RejectInsufficient
	case strings.Contains(lower, "closed") || strings.Contains(lower, "not active"):
		code = ports.RejectMarketClosed
	}
	return &ports.RejectionError{Code: code, Message: fmt.Sprintf("status %d: %s", status, msg)}
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
