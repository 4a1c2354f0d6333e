// Package local provides in-memory collaborators used for tests and dry runs.
package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/velatrade/vela/internal/api"
	"github.com/velatrade/vela/internal/model"
)

// Market serves canned snapshots per coin.
type Market struct {
	mutex       *sync.RWMutex
	snapshots   map[model.Coin]model.Snapshot
	constraints map[model.Coin]model.Constraints
	err         error
}

func NewMarket() *Market {
	return &Market{
		mutex:       new(sync.RWMutex),
		snapshots:   make(map[model.Coin]model.Snapshot),
		constraints: make(map[model.Coin]model.Constraints),
	}
}

// Set installs the snapshot the market will serve for the coin.
func (m *Market) Set(snapshot model.Snapshot) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.snapshots[snapshot.Coin] = snapshot
}

// SetConstraints installs the rounding rules for the coin.
func (m *Market) SetConstraints(coin model.Coin, c model.Constraints) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.constraints[coin] = c
}

// Fail makes every call return the given error.
func (m *Market) Fail(err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.err = err
}

func (m *Market) Snapshot(_ context.Context, coin model.Coin, _ []string) (*model.Snapshot, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	snapshot, ok := m.snapshots[coin]
	if !ok {
		return nil, fmt.Errorf("no snapshot for %s: %w", coin, api.ErrUnavailable)
	}
	return &snapshot, nil
}

func (m *Market) Constraints(_ context.Context, coin model.Coin) (model.Constraints, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.err != nil {
		return model.Constraints{}, m.err
	}
	return m.constraints[coin], nil
}

// Oracle replays scripted decisions per coin, holding when none is scripted.
type Oracle struct {
	mutex     *sync.RWMutex
	decisions map[model.Coin]model.Decision
	err       error
	delay     time.Duration
	Calls     int
}

func NewOracle() *Oracle {
	return &Oracle{
		mutex:     new(sync.RWMutex),
		decisions: make(map[model.Coin]model.Decision),
	}
}

// Script installs the decision the oracle will return for the coin.
func (o *Oracle) Script(d model.Decision) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.decisions[d.Coin] = d
}

// Fail makes every call return the given error.
func (o *Oracle) Fail(err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.err = err
}

// Delay makes every call block for the given duration or the context deadline.
func (o *Oracle) Delay(d time.Duration) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.delay = d
}

func (o *Oracle) Decide(ctx context.Context, snapshot model.Snapshot, _ model.IndicatorSet, _ model.Summary) (model.Decision, error) {
	o.mutex.Lock()
	o.Calls++
	delay := o.delay
	err := o.err
	d, ok := o.decisions[snapshot.Coin]
	o.mutex.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return model.Decision{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return model.Decision{}, err
	}
	if !ok {
		return model.Hold(snapshot.Coin, "no scripted decision"), nil
	}
	return d, nil
}

// Exchange fills every order instantly at the configured mark price.
type Exchange struct {
	mutex    *sync.RWMutex
	balance  float64
	marks    map[model.Coin]float64
	fills    map[string]model.Fill
	Orders   []model.Order
	FeeBps   float64
	fail     int
	err      error
	executed bool
	checkErr error
}

func NewExchange(balance float64) *Exchange {
	return &Exchange{
		mutex:   new(sync.RWMutex),
		balance: balance,
		marks:   make(map[model.Coin]float64),
		fills:   make(map[string]model.Fill),
		Orders:  make([]model.Order, 0),
	}
}

// Mark sets the execution price for the coin.
func (e *Exchange) Mark(coin model.Coin, price float64) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.marks[coin] = price
}

// SetBalance overrides the reported equity.
func (e *Exchange) SetBalance(balance float64) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.balance = balance
}

// FailNext makes the next n submissions return err. When executed is true the
// order still fills at the venue and stays retrievable via Check, mimicking a
// venue that executed but did not acknowledge.
func (e *Exchange) FailNext(n int, err error, executed bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.fail = n
	e.err = err
	e.executed = executed
}

func (e *Exchange) Submit(_ context.Context, order model.Order) (*model.Fill, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.Orders = append(e.Orders, order)

	price, ok := e.marks[order.Coin]
	if !ok {
		price = order.Price
	}
	if price <= 0 {
		return nil, fmt.Errorf("no mark for %s: %w", order.Coin, api.ErrRejected)
	}

	fill := model.Fill{
		OrderID: order.ID,
		Coin:    order.Coin,
		Type:    order.Type,
		Volume:  order.Volume,
		Price:   price,
		Fees:    order.Volume * price * e.FeeBps / 10000.0,
		Time:    time.Now(),
	}

	if e.fail > 0 {
		e.fail--
		err := e.err
		if err == nil {
			err = api.ErrUnavailable
		}
		if e.executed {
			e.fills[order.ID] = fill
		}
		return nil, err
	}

	e.fills[order.ID] = fill
	return &fill, nil
}

// FailCheck makes every status check return err until cleared with nil.
func (e *Exchange) FailCheck(err error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.checkErr = err
}

func (e *Exchange) Check(_ context.Context, orderID string) (*model.Fill, error) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	if e.checkErr != nil {
		return nil, e.checkErr
	}
	if fill, ok := e.fills[orderID]; ok {
		return &fill, nil
	}
	return nil, fmt.Errorf("order %s: %w", orderID, api.ErrUnknownOrder)
}

func (e *Exchange) Balance(_ context.Context) (float64, error) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.balance, nil
}

// NewSnapshot builds a healthy snapshot for tests.
func NewSnapshot(coin model.Coin, mark float64, at time.Time) model.Snapshot {
	return model.Snapshot{
		Coin:      coin,
		MarkPrice: mark,
		Candles: map[string][]model.Candle{
			"1h": {{Open: mark, High: mark, Low: mark, Close: mark, Time: at}},
		},
		Book: model.Orderbook{
			BidDepth:  1_000_000,
			AskDepth:  1_000_000,
			SpreadBps: 2,
			Time:      at,
		},
		Time: at,
	}
}
