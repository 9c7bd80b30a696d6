package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type CustodyMetrics struct {
	txApplied     *prometheus.CounterVec
	txDuration    *prometheus.HistogramVec
	lockConflicts prometheus.Counter
	redemptions   *prometheus.CounterVec
	rejections    *prometheus.CounterVec
}

var (
	custodyOnce     sync.Once
	custodyRegistry *CustodyMetrics
)

// Custody returns the lazily registered transaction and redemption metrics.
func Custody() *CustodyMetrics {
	custodyOnce.Do(func() {
		custodyRegistry = &CustodyMetrics{
			txApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "custody",
				Subsystem: "tx",
				Name:      "applied_total",
				Help:      "Transactions processed segmented by type and outcome.",
			}, []string{"type", "outcome"}),
			txDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "custody",
				Subsystem: "tx",
				Name:      "duration_seconds",
				Help:      "Time spent applying a transaction.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"type"}),
			lockConflicts: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "custody",
				Subsystem: "tx",
				Name:      "lock_conflicts_total",
				Help:      "Transactions rejected because a referenced account was in use.",
			}),
			redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "custody",
				Subsystem: "schedule",
				Name:      "redemptions_total",
				Help:      "Successful entitlement redemptions by schedule type.",
			}, []string{"obj_type"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "custody",
				Subsystem: "vault",
				Name:      "rejections_total",
				Help:      "Vault operations rejected by error classification.",
			}, []string{"code"}),
		}
		prometheus.MustRegister(
			custodyRegistry.txApplied,
			custodyRegistry.txDuration,
			custodyRegistry.lockConflicts,
			custodyRegistry.redemptions,
			custodyRegistry.rejections,
		)
	})
	return custodyRegistry
}

func (m *CustodyMetrics) ObserveTx(txType, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if txType == "" {
		txType = "unknown"
	}
	m.txApplied.WithLabelValues(txType, outcome).Inc()
	m.txDuration.WithLabelValues(txType).Observe(elapsed.Seconds())
}

func (m *CustodyMetrics) IncLockConflict() {
	if m == nil {
		return
	}
	m.lockConflicts.Inc()
}

func (m *CustodyMetrics) IncRedemption(objType string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(objType).Inc()
}

func (m *CustodyMetrics) IncRejection(code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "unknown"
	}
	m.rejections.WithLabelValues(code).Inc()
}
