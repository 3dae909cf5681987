// Package coinbase implements a client for the Coinbase Commerce charge API.
package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/asunaverse/equipledger/internal/config"
)

const (
	chargesEndpoint = "https://api.commerce.coinbase.com/charges"
	apiVersion      = "2018-03-22"
)

// Commerce exposes hosted charge creation.
type Commerce interface {
	CreateCharge(ctx context.Context, chargeName string, description string, amountUSD int64) (ChargeResource, error)
}

// ChargeResource is the subset of the hosted charge the ledger persists.
type ChargeResource struct {
	ID        string
	HostedURL string
}

// Client defines attributes of a struct available to its methods.
type Client struct {
	client         *resty.Client
	commerceConfig *config.CommerceConfig
	endpoint       string
	log            *zerolog.Logger
}

// InitClient initializes a resty client for the Commerce API.
func InitClient(commerceConfig *config.CommerceConfig, log *zerolog.Logger) *Client {
	commerceClient := resty.New()
	log.Info().Msg("commerce client initialized")
	return &Client{client: commerceClient, commerceConfig: commerceConfig, endpoint: chargesEndpoint, log: log}
}

type chargeRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	PricingType string     `json:"pricing_type"`
	LocalPrice  localPrice `json:"local_price"`
	RedirectURL string     `json:"redirect_url,omitempty"`
	CancelURL   string     `json:"cancel_url,omitempty"`
}

type localPrice struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type chargeResponse struct {
	Data struct {
		ID        string `json:"id"`
		HostedURL string `json:"hosted_url"`
	} `json:"data"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateCharge creates a fixed-price USD charge and returns its hosted resource.
func (c *Client) CreateCharge(ctx context.Context, chargeName string, description string, amountUSD int64) (ChargeResource, error) {
	payload := chargeRequest{
		Name:        chargeName,
		Description: description,
		PricingType: "fixed_price",
		LocalPrice:  localPrice{Amount: strconv.FormatInt(amountUSD, 10), Currency: "USD"},
		RedirectURL: c.commerceConfig.RedirectURL,
		CancelURL:   c.commerceConfig.CancelURL,
	}
	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-CC-Api-Key", c.commerceConfig.APIKey).
		SetHeader("X-CC-Version", apiVersion).
		SetBody(payload).
		Post(c.endpoint)
	if err != nil {
		return ChargeResource{}, fmt.Errorf("commerce request failed: %w", err)
	}
	var parsed chargeResponse
	err = json.Unmarshal(res.Body(), &parsed)
	if err != nil {
		return ChargeResource{}, fmt.Errorf("commerce response parsing failed: %w", err)
	}
	if res.StatusCode() >= 400 || parsed.Data.ID == "" {
		return ChargeResource{}, fmt.Errorf("commerce returned %d: %s", res.StatusCode(), parsed.Error.Message)
	}
	return ChargeResource{ID: parsed.Data.ID, HostedURL: parsed.Data.HostedURL}, nil
}
