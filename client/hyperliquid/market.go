package hyperliquid

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/velatrade/vela/infra/config"
	"github.com/velatrade/vela/internal/api"
	"github.com/velatrade/vela/internal/model"
)

// Market reads snapshots from the venue http api.
type Market struct {
	client *resty.Client
}

func NewMarket(cfg config.Remote) *Market {
	return &Market{client: newClient(cfg)}
}

type wireCandle struct {
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
	Time   int64   `json:"t"`
}

type wireBook struct {
	BidDepth  float64 `json:"bid_depth"`
	AskDepth  float64 `json:"ask_depth"`
	SpreadBps float64 `json:"spread_bps"`
	Time      int64   `json:"t"`
}

type wireSnapshot struct {
	Coin         string                  `json:"coin"`
	MarkPrice    float64                 `json:"mark_px"`
	Candles      map[string][]wireCandle `json:"candles"`
	Book         wireBook                `json:"book"`
	FundingRate  float64                 `json:"funding"`
	OpenInterest float64                 `json:"open_interest"`
	Time         int64                   `json:"t"`
}

type wireConstraints struct {
	TickSize float64 `json:"tick_sz"`
	LotSize  float64 `json:"lot_sz"`
}

func (m *Market) Snapshot(ctx context.Context, coin model.Coin, timeframes []string) (*model.Snapshot, error) {
	var payload wireSnapshot
	var apiErr apiError
	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParam("coin", string(coin)).
		SetQueryParamsFromValues(map[string][]string{"tf": timeframes}).
		SetResult(&payload).
		SetError(&apiErr).
		Get("/v1/snapshot")
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %s: %w", coin, err, api.ErrUnavailable)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("snapshot %s: %s: %w", coin, apiErr.Error(), api.ErrUnavailable)
	}

	snapshot := model.Snapshot{
		Coin:         coin,
		MarkPrice:    payload.MarkPrice,
		Candles:      make(map[string][]model.Candle, len(payload.Candles)),
		FundingRate:  payload.FundingRate,
		OpenInterest: payload.OpenInterest,
		Book: model.Orderbook{
			BidDepth:  payload.Book.BidDepth,
			AskDepth:  payload.Book.AskDepth,
			SpreadBps: payload.Book.SpreadBps,
			Time:      time.UnixMilli(payload.Book.Time),
		},
		Time: time.UnixMilli(payload.Time),
	}
	for tf, cc := range payload.Candles {
		candles := make([]model.Candle, len(cc))
		for i, c := range cc {
			candles[i] = model.Candle{
				Open:   c.Open,
				High:   c.High,
				Low:    c.Low,
				Close:  c.Close,
				Volume: c.Volume,
				Time:   time.UnixMilli(c.Time),
			}
		}
		snapshot.Candles[tf] = candles
	}
	return &snapshot, nil
}

func (m *Market) Constraints(ctx context.Context, coin model.Coin) (model.Constraints, error) {
	var payload wireConstraints
	var apiErr apiError
	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParam("coin", string(coin)).
		SetResult(&payload).
		SetError(&apiErr).
		Get("/v1/meta")
	if err != nil {
		return model.Constraints{}, fmt.Errorf("meta %s: %s: %w", coin, err, api.ErrUnavailable)
	}
	if resp.IsError() {
		return model.Constraints{}, fmt.Errorf("meta %s: %s: %w", coin, apiErr.Error(), api.ErrUnavailable)
	}
	return model.Constraints{
		TickSize: payload.TickSize,
		LotSize:  payload.LotSize,
	}, nil
}
