package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for vault operations.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	LamportsMoved     *prometheus.CounterVec
	Reclaimed         prometheus.Counter
	Airdrops          prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. Passing a
// fresh prometheus.NewRegistry keeps tests isolated from the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_operations_total",
			Help: "Vault instructions processed, by operation and outcome",
		}, []string{"operation", "outcome"}),

		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vault_operation_duration_seconds",
			Help:    "Time to execute a vault instruction including the ledger commit",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),

		LamportsMoved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_lamports_moved_total",
			Help: "Lamports moved into or out of vaults",
		}, []string{"direction"}),

		Reclaimed: factory.NewCounter(prometheus.CounterOpts{
			Name: "vault_ledger_reclaimed_accounts_total",
			Help: "System accounts reclaimed by the ledger for falling below the minimum balance",
		}),

		Airdrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "vault_airdrops_total",
			Help: "Faucet credits applied",
		}),
	}
}
