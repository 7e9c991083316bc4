package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "walletd"

var (
	txPostedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "ledger",
		Name:      "posted_transactions_total",
		Help:      "Count of transactions pushed to the node.",
	}, []string{"status"})
	txConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "ledger",
		Name:      "confirmed_transactions_total",
		Help:      "Count of transactions found on chain by a refresh.",
	})
	spentOutputsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "ledger",
		Name:      "spent_outputs_total",
		Help:      "Count of outputs found spent by an output refresh.",
	})
	kernelLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "ledger",
		Name:      "kernel_lookups_total",
		Help:      "Count of kernel lookups made to refresh transactions.",
	}, []string{"status"})
	scannedOutputsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "scanner",
		Name:      "outputs_total",
		Help:      "Count of outputs updated by scans.",
	}, []string{"kind"})
	scanLastIndex = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "scanner",
		Name:      "last_retrieved_index",
		Help:      "Last PMMR index scanned.",
	})
)

func observeStatus(vec *prometheus.CounterVec, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	vec.WithLabelValues(status).Inc()
}
