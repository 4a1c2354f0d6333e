package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderType defines the price conditions for an order i.e. market price, limit price.
type OrderType byte

const (
	// NoOrderType means the order type is missing
	NoOrderType OrderType = iota
	// Market defines a market order
	Market
	// Limit defines a limit order
	Limit
)

func (o OrderType) String() string {
	switch o {
	case Market:
		return "market"
	case Limit:
		return "limit"
	}
	return ""
}

// Order defines an order intent for the execution gateway.
type Order struct {
	ID         string
	RefID      string
	Coin       Coin
	Type       Type
	OType      OrderType
	Volume     float64
	Price      float64
	Leverage   float64
	ReduceOnly bool
	Time       time.Time
}

// NewOrder creates a new order for the given coin.
func NewOrder(coin Coin) *Order {
	return &Order{
		ID:   uuid.New().String(),
		Coin: coin,
		Time: time.Now(),
	}
}

// Buy defines an order of type buy.
func (o *Order) Buy() *Order {
	o.Type = Buy
	return o
}

// Sell defines an order of type sell.
func (o *Order) Sell() *Order {
	o.Type = Sell
	return o
}

// WithType defines the type of the order.
func (o *Order) WithType(t Type) *Order {
	o.Type = t
	return o
}

// Market defines an order with market order type.
func (o *Order) Market() *Order {
	o.OType = Market
	return o
}

// Limit defines an order with limit order type at the given price.
func (o *Order) Limit(p float64) *Order {
	o.OType = Limit
	o.Price = p
	return o
}

// WithVolume defines the volume for this order.
func (o *Order) WithVolume(v float64) *Order {
	o.Volume = v
	return o
}

// WithPrice defines the price for the order (if needed).
func (o *Order) WithPrice(p float64) *Order {
	o.Price = p
	return o
}

// WithLeverage defines the leverage for this order.
func (o *Order) WithLeverage(l float64) *Order {
	o.Leverage = l
	return o
}

// Reduce marks the order as reduce only, it can never increase exposure.
func (o *Order) Reduce() *Order {
	o.ReduceOnly = true
	return o
}

// Ref links the order to the position it acts on.
func (o *Order) Ref(id string) *Order {
	o.RefID = id
	return o
}

// Create makes a sanity check on the order parameters and freezes the order.
func (o *Order) Create() (Order, error) {
	if o.Coin == NoCoin {
		return Order{}, fmt.Errorf("order without coin")
	}
	if o.Type == NoType {
		return Order{}, fmt.Errorf("order without type")
	}
	if o.OType == NoOrderType {
		return Order{}, fmt.Errorf("order without order type")
	}
	if o.Volume <= 0 {
		return Order{}, fmt.Errorf("order with invalid volume %f", o.Volume)
	}
	if o.OType == Limit && o.Price <= 0 {
		return Order{}, fmt.Errorf("limit order with invalid price %f", o.Price)
	}
	return *o, nil
}

// Fill is the result of a filled order.
type Fill struct {
	OrderID string    `json:"order_id"`
	Coin    Coin      `json:"coin"`
	Type    Type      `json:"type"`
	Volume  float64   `json:"volume"`
	Price   float64   `json:"price"`
	Fees    float64   `json:"fees"`
	Time    time.Time `json:"time"`
}
