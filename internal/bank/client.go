package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Transferer é a primitiva de movimentação de fundos consumida pelo engine.
// A falha é um resultado normal (não um crash): o chamador desfaz os efeitos
// da operação e reporta o erro.
type Transferer interface {
	Transfer(ctx context.Context, to string, amountMicros int64, externalRef string) error
}

var ErrTransferRejected = errors.New("transfer rejected")

// Client fala com o bank-simulator (ou o serviço real de custódia) via HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

type transferRequest struct {
	To           string `json:"to"`
	AmountMicros int64  `json:"amount_micros"`
	ExternalRef  string `json:"external_ref"`
}

type transferResponse struct {
	Status string `json:"status"`
}

// Transfer envia fundos para a conta destino. externalRef permite ao lado
// receptor deduplicar reenvios da mesma operação.
func (c *Client) Transfer(ctx context.Context, to string, amountMicros int64, externalRef string) error {
	body, _ := json.Marshal(transferRequest{To: to, AmountMicros: amountMicros, ExternalRef: externalRef})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/bank/transfer", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("%w: bank transfer http %d", ErrTransferRejected, res.StatusCode)
	}
	var out transferResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return err
	}
	if out.Status != "OK" {
		return fmt.Errorf("%w: status %s", ErrTransferRejected, out.Status)
	}
	return nil
}
