package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Observer is the process wide metrics sink.
var Observer = newMetrics()

type Metrics struct {
	mutex *sync.RWMutex

	Cycles    prometheus.Counter
	Verdicts  *prometheus.CounterVec
	Positions *prometheus.CounterVec
	Bands     *prometheus.CounterVec
	Errors    *prometheus.CounterVec

	Equity        prometheus.Gauge
	Drawdown      prometheus.Gauge
	Exposure      prometheus.Gauge
	OpenPositions prometheus.Gauge
}

func newMetrics() *Metrics {
	m := &Metrics{
		mutex: new(sync.RWMutex),
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vela",
			Name:      "cycles_total",
		}),
		Verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vela",
			Name:      "verdicts_total",
		}, []string{"coin", "outcome"}),
		Positions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vela",
			Name:      "positions_total",
		}, []string{"coin", "state"}),
		Bands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vela",
			Name:      "band_transitions_total",
		}, []string{"band"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vela",
			Name:      "errors_total",
		}, []string{"coin", "source"}),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vela",
			Name:      "equity",
		}),
		Drawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vela",
			Name:      "drawdown",
		}),
		Exposure: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vela",
			Name:      "exposure",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vela",
			Name:      "open_positions",
		}),
	}
	prometheus.MustRegister(
		m.Cycles, m.Verdicts, m.Positions, m.Bands, m.Errors,
		m.Equity, m.Drawdown, m.Exposure, m.OpenPositions,
	)
	return m
}

// Cycle counts one completed orchestrator cycle.
func (m *Metrics) Cycle() {
	m.Cycles.Inc()
}

// Verdict counts one gate outcome for a coin.
func (m *Metrics) Verdict(coin string, accepted bool) {
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	m.Verdicts.WithLabelValues(coin, outcome).Inc()
}

// Position counts one position lifecycle transition for a coin.
func (m *Metrics) Position(coin string, state string) {
	m.Positions.WithLabelValues(coin, state).Inc()
}

// Band counts one risk band transition.
func (m *Metrics) Band(band string) {
	m.Bands.WithLabelValues(band).Inc()
}

// Error counts one degraded collaborator call for a coin.
func (m *Metrics) Error(coin string, source string) {
	m.Errors.WithLabelValues(coin, source).Inc()
}

// Portfolio publishes the portfolio gauges.
func (m *Metrics) Portfolio(equity, drawdown, exposure float64, positions int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.Equity.Set(equity)
	m.Drawdown.Set(drawdown)
	m.Exposure.Set(exposure)
	m.OpenPositions.Set(float64(positions))
}

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
