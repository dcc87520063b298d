package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus counters for ledger activity.
type Metrics struct {
	registry  *prometheus.Registry
	handler   http.Handler
	posted    *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	transfers prometheus.Counter
}

// NewMetrics initialises the registry and the movement counters.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	posted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "medledger_movements_posted_total",
		Help: "Stock movements posted to the ledger by transaction type.",
	}, []string{"type"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "medledger_movements_rejected_total",
		Help: "Stock movements rejected before posting, by reason.",
	}, []string{"reason"})
	transfers := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "medledger_transfers_completed_total",
		Help: "Cross-branch transfers completed.",
	})
	registry.MustRegister(posted, rejected, transfers)
	return &Metrics{
		registry:  registry,
		handler:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		posted:    posted,
		rejected:  rejected,
		transfers: transfers,
	}
}

// Handler returns the scrape endpoint handler for the hosting process.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// MovementPosted counts a committed ledger movement.
func (m *Metrics) MovementPosted(txType string) {
	if m == nil {
		return
	}
	m.posted.WithLabelValues(txType).Inc()
}

// MovementRejected counts a rejected movement by reason.
func (m *Metrics) MovementRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

// TransferCompleted counts a completed cross-branch transfer.
func (m *Metrics) TransferCompleted() {
	if m == nil {
		return
	}
	m.transfers.Inc()
}
