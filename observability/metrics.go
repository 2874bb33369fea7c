package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	landSaleOnce     sync.Once
	landSaleRegistry *LandSaleMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "landsale",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module, method and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "landsale",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method and JSON-RPC error code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "landsale",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "landsale",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a JSON-RPC request. Code is the JSON-RPC
// error code written to the response, or zero on success.
func (m *moduleMetrics) Observe(module, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// LandSaleMetrics tracks sale outcomes as seen by the node.
type LandSaleMetrics struct {
	mints    *prometheus.CounterVec
	failures *prometheus.CounterVec
	revenue  *prometheus.CounterVec
	price    prometheus.Gauge
}

// LandSale returns the lazily-initialised sale metrics registry.
func LandSale() *LandSaleMetrics {
	landSaleOnce.Do(func() {
		landSaleRegistry = &LandSaleMetrics{
			mints: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "landsale",
				Name:      "mints_total",
				Help:      "Committed parcel mints segmented by entry point.",
			}, []string{"kind"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "landsale",
				Name:      "mint_failures_total",
				Help:      "Rejected parcel mints segmented by entry point and error class.",
			}, []string{"kind", "class"}),
			revenue: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "landsale",
				Name:      "revenue_total",
				Help:      "Payment token base units collected by committed mints.",
			}, []string{"kind"}),
			price: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "landsale",
				Name:      "price",
				Help:      "Current price per parcel in payment token base units.",
			}),
		}
		prometheus.MustRegister(
			landSaleRegistry.mints,
			landSaleRegistry.failures,
			landSaleRegistry.revenue,
			landSaleRegistry.price,
		)
	})
	return landSaleRegistry
}

// RecordMint counts a committed mint and the price it collected.
func (m *LandSaleMetrics) RecordMint(kind string, price *big.Int) {
	if m == nil {
		return
	}
	kind = labelKind(kind)
	m.mints.WithLabelValues(kind).Inc()
	if value := bigToFloat(price); value > 0 {
		m.revenue.WithLabelValues(kind).Add(value)
	}
}

// RecordFailure counts a rejected mint under its error class.
func (m *LandSaleMetrics) RecordFailure(kind, class string) {
	if m == nil {
		return
	}
	if strings.TrimSpace(class) == "" {
		class = "unknown"
	}
	m.failures.WithLabelValues(labelKind(kind), class).Inc()
}

// SetPrice publishes the current price.
func (m *LandSaleMetrics) SetPrice(price *big.Int) {
	if m == nil {
		return
	}
	m.price.Set(bigToFloat(price))
}

func labelKind(kind string) string {
	trimmed := strings.ToLower(strings.TrimSpace(kind))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
