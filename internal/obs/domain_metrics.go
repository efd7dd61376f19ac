package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SalesCommittedTotal counts committed sales by payment method.
	SalesCommittedTotal *prometheus.CounterVec
	// SaleCommitFailures counts aborted commits by failing step.
	SaleCommitFailures *prometheus.CounterVec
	// SaleCommitDuration records the commit transaction latency in milliseconds.
	SaleCommitDuration prometheus.Histogram
	// SaleCreditIssued accumulates credit (fiado) extended at commit, in currency units.
	SaleCreditIssued prometheus.Counter
	// ReceiptsPrintedTotal counts receipt print attempts by outcome.
	ReceiptsPrintedTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SalesCommittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_committed_total",
			Help:      "Count of committed sales by payment method.",
		}, []string{"method"})
		SaleCommitFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sale_commit_failures_total",
			Help:      "Count of aborted sale commits by failing step.",
		}, []string{"step"})
		SaleCommitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sale_commit_duration_ms",
			Help:      "Latency of the sale commit transaction in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 10000},
		})
		SaleCreditIssued = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sale_credit_issued_total",
			Help:      "Total store credit extended to clients at commit.",
		})
		ReceiptsPrintedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipts_printed_total",
			Help:      "Count of receipt print attempts by outcome.",
		}, []string{"result"})

		SalesCommittedTotal = register(reg, SalesCommittedTotal)
		SaleCommitFailures = register(reg, SaleCommitFailures)
		SaleCommitDuration = register(reg, SaleCommitDuration)
		SaleCreditIssued = register(reg, SaleCreditIssued)
		ReceiptsPrintedTotal = register(reg, ReceiptsPrintedTotal)
	})
}

// ObserveCommit records a successful commit. Safe to call before registration.
func ObserveCommit(method string, durationMs, credit float64) {
	if SalesCommittedTotal != nil {
		SalesCommittedTotal.WithLabelValues(method).Inc()
	}
	if SaleCommitDuration != nil {
		SaleCommitDuration.Observe(durationMs)
	}
	if SaleCreditIssued != nil && credit > 0 {
		SaleCreditIssued.Add(credit)
	}
}

// ObserveCommitFailure records an aborted commit. Safe to call before registration.
func ObserveCommitFailure(step string) {
	if SaleCommitFailures != nil {
		SaleCommitFailures.WithLabelValues(step).Inc()
	}
}

// ObserveReceipt records a receipt print outcome. Safe to call before registration.
func ObserveReceipt(result string) {
	if ReceiptsPrintedTotal != nil {
		ReceiptsPrintedTotal.WithLabelValues(result).Inc()
	}
}
