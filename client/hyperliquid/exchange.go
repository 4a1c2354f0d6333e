package hyperliquid

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/velatrade/vela/infra/config"
	"github.com/velatrade/vela/internal/api"
	"github.com/velatrade/vela/internal/model"
)

// Exchange submits orders to the venue http api.
// Money amounts cross the wire as decimal strings, float arithmetic
// never touches a price or a fee on the way in or out.
type Exchange struct {
	client *resty.Client
}

func NewExchange(cfg config.Remote) *Exchange {
	return &Exchange{client: newClient(cfg)}
}

type wireOrder struct {
	ID         string `json:"cloid"`
	Coin       string `json:"coin"`
	Side       string `json:"side"`
	Type       string `json:"type"`
	Volume     string `json:"sz"`
	Price      string `json:"limit_px,omitempty"`
	Leverage   string `json:"leverage,omitempty"`
	ReduceOnly bool   `json:"reduce_only"`
}

type wireFill struct {
	OrderID string `json:"cloid"`
	Coin    string `json:"coin"`
	Side    string `json:"side"`
	Volume  string `json:"sz"`
	Price   string `json:"avg_px"`
	Fees    string `json:"fee"`
	Time    int64  `json:"t"`
}

type wireBalance struct {
	Equity string `json:"account_value"`
}

func (e *Exchange) Submit(ctx context.Context, order model.Order) (*model.Fill, error) {
	body := wireOrder{
		ID:         order.ID,
		Coin:       string(order.Coin),
		Side:       order.Type.String(),
		Type:       order.OType.String(),
		Volume:     decimal.NewFromFloat(order.Volume).String(),
		ReduceOnly: order.ReduceOnly,
	}
	if order.OType == model.Limit {
		body.Price = decimal.NewFromFloat(order.Price).String()
	}
	if order.Leverage > 0 {
		body.Leverage = decimal.NewFromFloat(order.Leverage).String()
	}

	var payload wireFill
	var apiErr apiError
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&payload).
		SetError(&apiErr).
		Post("/v1/order")
	if err != nil {
		return nil, fmt.Errorf("submit %s: %s: %w", order.ID, err, api.ErrUnavailable)
	}
	if resp.IsError() {
		if resp.StatusCode() == http.StatusUnprocessableEntity {
			return nil, fmt.Errorf("submit %s: %s: %w", order.ID, apiErr.Error(), api.ErrRejected)
		}
		return nil, fmt.Errorf("submit %s: %s: %w", order.ID, apiErr.Error(), api.ErrUnavailable)
	}
	return parseFill(payload)
}

func (e *Exchange) Check(ctx context.Context, orderID string) (*model.Fill, error) {
	var payload wireFill
	var apiErr apiError
	resp, err := e.client.R().
		SetContext(ctx).
		SetQueryParam("cloid", orderID).
		SetResult(&payload).
		SetError(&apiErr).
		Get("/v1/order")
	if err != nil {
		return nil, fmt.Errorf("check %s: %s: %w", orderID, err, api.ErrUnavailable)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("check %s: %w", orderID, api.ErrUnknownOrder)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("check %s: %s: %w", orderID, apiErr.Error(), api.ErrUnavailable)
	}
	return parseFill(payload)
}

func (e *Exchange) Balance(ctx context.Context) (float64, error) {
	var payload wireBalance
	var apiErr apiError
	resp, err := e.client.R().
		SetContext(ctx).
		SetResult(&payload).
		SetError(&apiErr).
		Get("/v1/account")
	if err != nil {
		return 0, fmt.Errorf("balance: %s: %w", err, api.ErrUnavailable)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("balance: %s: %w", apiErr.Error(), api.ErrUnavailable)
	}
	equity, err := decimal.NewFromString(payload.Equity)
	if err != nil {
		return 0, fmt.Errorf("balance: bad equity '%s': %w", payload.Equity, err)
	}
	f, _ := equity.Float64()
	return f, nil
}

func parseFill(payload wireFill) (*model.Fill, error) {
	volume, err := decimal.NewFromString(payload.Volume)
	if err != nil {
		return nil, fmt.Errorf("fill %s: bad size '%s': %w", payload.OrderID, payload.Volume, err)
	}
	price, err := decimal.NewFromString(payload.Price)
	if err != nil {
		return nil, fmt.Errorf("fill %s: bad price '%s': %w", payload.OrderID, payload.Price, err)
	}
	fees := decimal.Zero
	if payload.Fees != "" {
		fees, err = decimal.NewFromString(payload.Fees)
		if err != nil {
			return nil, fmt.Errorf("fill %s: bad fee '%s': %w", payload.OrderID, payload.Fees, err)
		}
	}

	t := model.Buy
	if payload.Side == model.Sell.String() {
		t = model.Sell
	}
	v, _ := volume.Float64()
	p, _ := price.Float64()
	f, _ := fees.Float64()
	return &model.Fill{
		OrderID: payload.OrderID,
		Coin:    model.Coin(payload.Coin),
		Type:    t,
		Volume:  v,
		Price:   p,
		Fees:    f,
		Time:    time.UnixMilli(payload.Time),
	}, nil
}
