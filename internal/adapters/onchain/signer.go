package onchain

// signer.go — operaciones CTF de inventario (split/merge/redeem) delegadas a
// un signer sidecar local por HTTP. Las claves privadas y la firma de
// transacciones viven en ese proceso, nunca en el bot.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ayazabbas/polymarket-lp/internal/ports"
)

const defaultSignerTimeout = 60 * time.Second // las txs on-chain tardan

// SignerClient implementa ports.InventoryOps contra el sidecar.
type SignerClient struct {
	http    *http.Client
	baseURL string
}

// NewSignerClient crea el cliente. baseURL apunta al sidecar local
// (p.ej. http://127.0.0.1:8578).
func NewSignerClient(baseURL string) (*SignerClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("onchain.NewSignerClient: empty base URL")
	}
	return &SignerClient{
		http:    &http.Client{Timeout: defaultSignerTimeout},
		baseURL: baseURL,
	}, nil
}

type txRequest struct {
	ConditionID string `json:"condition_id"`
	Amount      string `json:"amount,omitempty"`
}

type txResponse struct {
	TxHash string `json:"tx_hash"`
	Error  string `json:"error"`
}

// SplitCollateral convierte colateral en pares YES+NO.
func (s *SignerClient) SplitCollateral(ctx context.Context, conditionID string, amount decimal.Decimal) error {
	return s.postTx(ctx, "/split", txRequest{ConditionID: conditionID, Amount: amount.String()})
}

// MergePairs convierte pares YES+NO de vuelta en colateral.
func (s *SignerClient) MergePairs(ctx context.Context, conditionID string, amount decimal.Decimal) error {
	return s.postTx(ctx, "/merge", txRequest{ConditionID: conditionID, Amount: amount.String()})
}

// Redeem canjea los tokens del lado ganador tras la resolución.
func (s *SignerClient) Redeem(ctx context.Context, conditionID string) error {
	return s.postTx(ctx, "/redeem", txRequest{ConditionID: conditionID})
}

// TokenBalance devuelve el balance on-chain de un token en shares.
func (s *SignerClient) TokenBalance(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/balance?token_id=%s", s.baseURL, tokenID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("onchain.TokenBalance: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return decimal.Zero, &ports.TransientError{Err: fmt.Errorf("onchain.TokenBalance: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return decimal.Zero, fmt.Errorf("onchain.TokenBalance: status %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Balance string `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return decimal.Zero, fmt.Errorf("onchain.TokenBalance: decode: %w", err)
	}

	bal, err := decimal.NewFromString(out.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("onchain.TokenBalance: parse %q: %w", out.Balance, err)
	}
	return bal, nil
}

// postTx envía una operación al sidecar y espera la confirmación de la tx.
func (s *SignerClient) postTx(ctx context.Context, path string, body txRequest) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("onchain.postTx %s: marshal: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("onchain.postTx %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return &ports.TransientError{Err: fmt.Errorf("onchain.postTx %s: %w", path, err)}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 500 {
		return &ports.TransientError{Err: fmt.Errorf("onchain.postTx %s: status %d: %s", path, resp.StatusCode, respBody)}
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("onchain.postTx %s: status %d: %s", path, resp.StatusCode, respBody)
	}

	var out txResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return fmt.Errorf("onchain.postTx %s: decode: %w", path, err)
	}
	if out.Error != "" {
		return fmt.Errorf("onchain.postTx %s: signer error: %s", path, out.Error)
	}
	return nil
}
