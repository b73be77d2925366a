package polymarket

// auth.go — L2 auth del CLOB: HMAC-SHA256 sobre cada request autenticada.
// Las credenciales (key/secret/passphrase) llegan por configuración; la
// derivación L1 y la firma de órdenes viven fuera del proceso.

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayazabbas/polymarket-lp/internal/ports"
)

// Credentials son las credenciales L2 del CLOB.
type Credentials struct {
	APIKey     string
	Secret     string
	Passphrase string
	Address    string // wallet address asociada
}

// Complete devuelve true si hay credenciales suficientes para operar.
func (c Credentials) Complete() bool {
	return c.APIKey != "" && c.Secret != "" && c.Passphrase != ""
}

// AuthClient envuelve el Client base con auth L2. Solo se construye con
// credenciales completas: un handle de lectura nunca puede enviar órdenes.
type AuthClient struct {
	*Client
	creds Credentials
}

// NewAuthClient crea un cliente autenticado. Falla en construcción si las
// credenciales están incompletas.
func NewAuthClient(client *Client, creds Credentials) (*AuthClient, error) {
	if !creds.Complete() {
		return nil, fmt.Errorf("polymarket.NewAuthClient: incomplete credentials")
	}
	return &AuthClient{Client: client, creds: creds}, nil
}

// Address devuelve la wallet address asociada a las credenciales.
func (ac *AuthClient) Address() string {
	return ac.creds.Address
}

// l2Headers genera los headers HMAC para una request autenticada.
func (ac *AuthClient) l2Headers(method, path, body string) (map[string]string, error) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	msg := ts + strings.ToUpper(method) + path + body

	secretBytes, err := base64.URLEncoding.DecodeString(ac.creds.Secret)
	if err != nil {
		return nil, fmt.Errorf("auth: decode secret: %w", err)
	}

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(msg))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"POLY_ADDRESS":    ac.creds.Address,
		"POLY_SIGNATURE":  sig,
		"POLY_TIMESTAMP":  ts,
		"POLY_API_KEY":    ac.creds.APIKey,
		"POLY_PASSPHRASE": ac.creds.Passphrase,
	}, nil
}

// doL2 ejecuta una request HTTP autenticada con rate limiting y retries.
// Los headers HMAC se regeneran en cada intento para que el timestamp no caduque.
func (ac *AuthClient) doL2(ctx context.Context, method, path string, reqBody, out any) error {
	var bodyStr string

	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		bodyStr = string(b)
	}

	fullURL := ac.clobBase + path

	// Solo las escrituras consumen el presupuesto de dos ventanas; los GET
	// autenticados (reconcile, trades, balance) van por la clase de lectura.
	lim := waiter(ac.writes)
	if method == http.MethodGet {
		lim = ac.readLimiter
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			return err
		}

		headers, err := ac.l2Headers(method, path, bodyStr)
		if err != nil {
			return err
		}

		var bodyReader io.Reader
		if bodyStr != "" {
			bodyReader = strings.NewReader(bodyStr)
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := ac.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return &ports.TransientError{Err: fmt.Errorf("request failed after %d retries: %w", maxRetries, err)}
			}
			ac.sleep(ctx, attempt)
			continue
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			ac.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 500 {
			if attempt == maxRetries {
				return &ports.TransientError{Err: fmt.Errorf("server error %d: %s", resp.StatusCode, respBody)}
			}
			ac.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 400 {
			return mapClientError(resp.StatusCode, respBody)
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}
	return ports.ErrRateLimited
}
