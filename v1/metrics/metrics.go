package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// TickCounter tracks ticks that reported progress to the tick observer.
	TickCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stretch_ticks_total",
		Help: "Total number of timer ticks delivered",
	})
	// TickAbortCounter tracks ticks dropped because the timer was no longer
	// running or this instance lost activity.
	TickAbortCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stretch_tick_aborts_total",
		Help: "Total number of ticks aborted by the ownership check",
	})
	// ExpiryCounter tracks expiry events fired by this instance.
	ExpiryCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stretch_expiries_total",
		Help: "Total number of timer expiries fired",
	})
	// ClaimCounter tracks successful activity claims that changed the owner.
	ClaimCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stretch_claims_total",
		Help: "Total number of active instance claims",
	})
	// StoreErrorCounter tracks failed store operations.
	StoreErrorCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stretch_store_errors_total",
		Help: "Total number of failed state store operations",
	})
	// RemainingGauge reports the remaining time last observed by a tick.
	RemainingGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stretch_remaining_seconds",
		Help: "Remaining time of the running period as seen by the last tick",
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterTimerMetrics registers the timer metrics on the provided registry.
func RegisterTimerMetrics(reg prometheus.Registerer) {
	reg.MustRegister(TickCounter, TickAbortCounter, ExpiryCounter, ClaimCounter, StoreErrorCounter, RemainingGauge)
}
