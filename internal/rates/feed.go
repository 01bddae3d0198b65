package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Lebim01/dotacasino-api-sub001/internal/domain"
	"github.com/Lebim01/dotacasino-api-sub001/internal/fx"
)

// FeedClient pulls the daily reference-currency rates from the external
// feed. The feed returns units of each currency per one unit of the base
// currency, which is exactly the snapshot shape the converter consumes.
type FeedClient struct {
	feedURL    string
	httpClient *http.Client
}

func NewFeedClient(feedURL string) *FeedClient {
	return &FeedClient{
		feedURL: feedURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type feedResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

func (c *FeedClient) FetchDaily(ctx context.Context) (fx.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return fx.Snapshot{}, fmt.Errorf("FetchDaily: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fx.Snapshot{}, fmt.Errorf("FetchDaily: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fx.Snapshot{}, fmt.Errorf("FetchDaily: feed returned %d: %s", resp.StatusCode, body)
	}

	var payload feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fx.Snapshot{}, fmt.Errorf("FetchDaily: decode: %w", err)
	}

	reference := domain.Currency(payload.Base)
	if !reference.IsValid() {
		return fx.Snapshot{}, fmt.Errorf("FetchDaily: feed base %q: %w", payload.Base, domain.ErrInvalidCurrency)
	}

	snapshot := fx.Snapshot{
		Reference: reference,
		Rates:     make(map[domain.Currency]decimal.Decimal, len(payload.Rates)),
	}
	for code, rate := range payload.Rates {
		currency := domain.Currency(code)
		if !currency.IsValid() || currency == reference {
			continue
		}
		if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
			return fx.Snapshot{}, fmt.Errorf("FetchDaily: feed rate %s=%v: %w", code, rate, domain.ErrMissingRate)
		}
		snapshot.Rates[currency] = decimal.NewFromFloat(rate)
	}
	return snapshot, nil
}
