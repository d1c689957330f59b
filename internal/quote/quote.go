package quote

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"resty.dev/v3"

	"papertrade/internal/models"
)

const _quotePath = "/quote"

// Provider resolves a ticker symbol to its current name and price.
type Provider interface {
	Lookup(ctx context.Context, symbol string) (models.Quote, error)
}

type Client struct {
	c   *resty.Client
	log *logrus.Logger
}

func NewClient(baseURL string, log *logrus.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL)

	return &Client{c: client, log: log}
}

type quoteResponse struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Price  string `json:"price"`
}

type quoteErrorResponse struct {
	Error string `json:"error"`
}

// Lookup is case-insensitive: symbols are uppercased before the call.
func (c *Client) Lookup(ctx context.Context, symbol string) (models.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return models.Quote{}, models.ErrInvalidInput
	}

	req := c.c.R().
		SetQueryParam("symbol", symbol).
		SetResult(&quoteResponse{}).
		SetError(&quoteErrorResponse{}).
		SetContext(ctx)

	resp, err := req.Get(_quotePath)
	if err != nil {
		return models.Quote{}, fmt.Errorf("%w: quote request failed", err)
	}
	defer resp.Body.Close()

	c.log.Debugf("quote %s: %s (%s)", symbol, resp.Status(), resp.Duration())

	if resp.StatusCode() == http.StatusNotFound {
		return models.Quote{}, models.ErrUnknownSymbol
	}
	if resp.IsError() {
		if er, ok := resp.Error().(*quoteErrorResponse); ok && er.Error != "" {
			return models.Quote{}, fmt.Errorf("quote lookup error: %s", er.Error)
		}
		return models.Quote{}, fmt.Errorf("quote lookup error: %s", resp.Status())
	}

	body, ok := resp.Result().(*quoteResponse)
	if !ok {
		return models.Quote{}, fmt.Errorf("quote lookup: unexpected response for %s", symbol)
	}
	price, err := decimal.NewFromString(body.Price)
	if err != nil {
		return models.Quote{}, fmt.Errorf("parse quote price %q: %w", body.Price, err)
	}
	if price.Cmp(decimal.Zero) <= 0 {
		return models.Quote{}, fmt.Errorf("quote lookup: non-positive price for %s", symbol)
	}

	return models.Quote{Symbol: symbol, Name: body.Name, Price: price}, nil
}
