package goldrush

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tradefeed/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultBaseURL = "https://api.covalenthq.com/v1"

// Client talks to a GoldRush-style block explorer API: per-address
// transaction history with decoded log events and USD quotes.
type Client struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient *http.Client
}

type Config struct {
	BaseURL  string
	APIKey   string
	PageSize int
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("chain data api key is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 5
	}
	return &Client{
		baseURL:  baseURL,
		apiKey:   cfg.APIKey,
		pageSize: cfg.PageSize,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

type transactionsResponse struct {
	Data *struct {
		Items []domain.RawTransaction `json:"items"`
	} `json:"data"`
	Error        bool   `json:"error"`
	ErrorMessage string `json:"error_message"`
}

// TransactionsForAddress returns the page of most-recent transactions for
// address on chain, quoted in USD and with log events included. A missing
// or null item list means the address has no recorded activity and is not
// an error.
func (c *Client) TransactionsForAddress(ctx context.Context, chain, address string) ([]domain.RawTransaction, error) {
	tracer := otel.Tracer("tradefeed/goldrush")
	ctx, span := tracer.Start(ctx, "goldrush.transactions_for_address")
	span.SetAttributes(
		attribute.String("chain", chain),
		attribute.String("address", address),
	)
	defer span.End()

	items, err := c.fetch(ctx, chain, address)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("items", len(items)))
	return items, nil
}

func (c *Client) fetch(ctx context.Context, chain, address string) ([]domain.RawTransaction, error) {
	endpoint := fmt.Sprintf("%s/%s/address/%s/transactions_v3/",
		c.baseURL, url.PathEscape(chain), url.PathEscape(address))

	params := url.Values{}
	params.Set("quote-currency", "USD")
	params.Set("no-logs", "false")
	params.Set("page-size", strconv.Itoa(c.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("chain data provider returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload transactionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode transactions response: %w", err)
	}
	if payload.Error {
		return nil, fmt.Errorf("chain data provider error: %s", payload.ErrorMessage)
	}
	if payload.Data == nil {
		return nil, nil
	}
	return payload.Data.Items, nil
}
