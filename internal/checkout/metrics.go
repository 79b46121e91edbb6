package checkout

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Facubm01/ocaso/internal/cart"
	"github.com/Facubm01/ocaso/internal/store"
)

// Metrics counts checkout attempts by outcome and tracks latency.
type Metrics struct {
	Checkouts *prometheus.CounterVec
	Duration  prometheus.Histogram
}

// NewMetrics registers the checkout collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocaso",
			Subsystem: "checkout",
			Name:      "attempts_total",
			Help:      "Total checkout attempts by outcome.",
		}, []string{"outcome"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ocaso",
			Subsystem: "checkout",
			Name:      "duration_seconds",
			Help:      "Checkout latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.Checkouts, m.Duration)
	return m
}

// outcome maps a checkout result to a stable metric label.
func outcome(err error) string {
	var insufficient *InsufficientStockError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, cart.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, cart.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, store.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, store.ErrVariantNotFound):
		return "variant_not_found"
	case errors.As(err, &insufficient):
		return "insufficient_stock"
	case errors.Is(err, store.ErrLockTimeout):
		return "lock_timeout"
	default:
		return "error"
	}
}
