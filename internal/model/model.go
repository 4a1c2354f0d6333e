package model

import (
	"errors"
	"math"
)

const Epsilon = 1e-9

var (
	// ErrInvariant signals a programming level fault e.g. a position whose
	// closed fractions would exceed the full size. The operation that hit it
	// must leave prior state unchanged.
	ErrInvariant = errors.New("invariant violation")
	// ErrStopLoosened signals an attempt to move a protective stop against the position.
	ErrStopLoosened = errors.New("stop loss may only tighten")
)

// Type defines the type of the order, buy or sell.
type Type byte

const (
	// NoType defines a missing order type.
	NoType Type = iota
	// Buy defines a buy order.
	Buy
	// Sell defines a sell order.
	Sell
)

func (t Type) String() string {
	switch t {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return ""
}

// Inv returns the inverse of the order type.
func (t Type) Inv() Type {
	switch t {
	case Buy:
		return Sell
	case Sell:
		return Buy
	}
	return NoType
}

// Side defines the direction of a position.
type Side byte

const (
	// NoSide defines a missing side.
	NoSide Side = iota
	// Long defines a position that gains when price goes up.
	Long
	// Short defines a position that gains when price goes down.
	Short
)

func (s Side) String() string {
	switch s {
	case Long:
		return "long"
	case Short:
		return "short"
	}
	return ""
}

// Sign returns the pnl multiplier for the side.
func (s Side) Sign() float64 {
	switch s {
	case Long:
		return 1
	case Short:
		return -1
	}
	return 0
}

// Close returns the order type that reduces a position of this side.
func (s Side) Close() Type {
	switch s {
	case Long:
		return Sell
	case Short:
		return Buy
	}
	return NoType
}

// PnL computes the profit for the given side and volume between the two prices.
func PnL(side Side, volume, openPrice, currentPrice float64) float64 {
	return side.Sign() * (currentPrice - openPrice) * volume
}

// RoundDown rounds v down to the nearest multiple of step.
// A zero step leaves v untouched.
func RoundDown(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Floor(v/step+Epsilon) * step
}
