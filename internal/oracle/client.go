package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient implementa Client contra o oracle-simulator (ou um gateway real
// de oráculo de preços) via HTTP.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewHTTPClient(base string) *HTTPClient {
	return &HTTPClient{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

type updateFeeResponse struct {
	FeeMicros int64 `json:"fee_micros"`
}

type applyUpdateRequest struct {
	UpdateData []string `json:"update_data"` // base64
	FeeMicros  int64    `json:"fee_micros"`
}

type priceResponse struct {
	Price           int64 `json:"price"`
	Expo            int32 `json:"expo"`
	PublishTimeUnix int64 `json:"publish_time_unix"`
}

func encodeUpdateData(updateData [][]byte) []string {
	out := make([]string, len(updateData))
	for i, d := range updateData {
		out[i] = base64.StdEncoding.EncodeToString(d)
	}
	return out
}

func (c *HTTPClient) UpdateFee(ctx context.Context, updateData [][]byte) (int64, error) {
	body, _ := json.Marshal(map[string]any{"update_data": encodeUpdateData(updateData)})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/oracle/update-fee", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return 0, fmt.Errorf("oracle update-fee http %d", res.StatusCode)
	}
	var out updateFeeResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.FeeMicros, nil
}

func (c *HTTPClient) ApplyUpdate(ctx context.Context, updateData [][]byte, feeMicros int64) error {
	body, _ := json.Marshal(applyUpdateRequest{UpdateData: encodeUpdateData(updateData), FeeMicros: feeMicros})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/oracle/update", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusPaymentRequired {
		return ErrFeeTooLow
	}
	if res.StatusCode >= 300 {
		return fmt.Errorf("oracle update http %d", res.StatusCode)
	}
	return nil
}

func (c *HTTPClient) PriceNoOlderThan(ctx context.Context, feedID string, maxAge time.Duration) (PriceData, error) {
	u := fmt.Sprintf("%s/oracle/price?feed=%s&max_age_secs=%d",
		c.BaseURL, url.QueryEscape(feedID), int64(maxAge.Seconds()))
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return PriceData{}, err
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusNotFound:
		return PriceData{}, ErrFeedNotFound
	case http.StatusGone:
		return PriceData{}, ErrPriceStale
	}
	if res.StatusCode >= 300 {
		return PriceData{}, fmt.Errorf("oracle price http %d", res.StatusCode)
	}
	var out priceResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return PriceData{}, err
	}
	return PriceData{
		Price:       out.Price,
		Expo:        out.Expo,
		PublishTime: time.Unix(out.PublishTimeUnix, 0),
	}, nil
}
