// Package hyperliquid implements the market data and execution gateways
// against the hyperliquid http api.
package hyperliquid

import (
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/velatrade/vela/infra/config"
)

func newClient(cfg config.Remote) *resty.Client {
	client := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetHeader("Content-Type", "application/json")
	if cfg.Key != "" {
		client.SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.Key))
	}
	return client
}

// apiError is the error envelope of the venue.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e apiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
