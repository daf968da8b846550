package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

var (
	domainOnce sync.Once

	// SubmissionOpsTotal counts submission operations by outcome.
	SubmissionOpsTotal *prometheus.CounterVec
	// SettingsUpdatesTotal counts settings update attempts by outcome.
	SettingsUpdatesTotal *prometheus.CounterVec
	// TipDriftTotal counts rows whose stored tip no longer matches the live factor.
	TipDriftTotal prometheus.Counter
	// DailySummary holds the figures of the last computed daily summary.
	DailySummary *prometheus.GaugeVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ops := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submission_operations_total",
			Help:      "Count of submission operations by operation and result.",
		}, []string{"operation", "result"})
		updates := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settings_updates_total",
			Help:      "Count of settings update attempts by result.",
		}, []string{"result"})
		drift := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tip_drift_rows_total",
			Help:      "Rows rendered whose stored team tip differs from the current tip factor.",
		})
		summary := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "daily_summary",
			Help:      "Figures of the most recent daily summary, by figure.",
		}, []string{"figure"})

		SubmissionOpsTotal = registerOrReuse(reg, ops)
		SettingsUpdatesTotal = registerOrReuse(reg, updates)
		TipDriftTotal = registerOrReuse(reg, drift)
		DailySummary = registerOrReuse(reg, summary)
	})
}

// RecordSubmissionOp increments the operation counter when metrics are registered.
func RecordSubmissionOp(operation, result string) {
	if SubmissionOpsTotal != nil {
		SubmissionOpsTotal.WithLabelValues(operation, result).Inc()
	}
}

// RecordSettingsUpdate increments the settings counter when metrics are registered.
func RecordSettingsUpdate(result string) {
	if SettingsUpdatesTotal != nil {
		SettingsUpdatesTotal.WithLabelValues(result).Inc()
	}
}

// RecordTipDrift counts one drifting row.
func RecordTipDrift() {
	if TipDriftTotal != nil {
		TipDriftTotal.Inc()
	}
}

// SetDailySummary publishes a summary figure.
func SetDailySummary(figure string, value decimal.Decimal) {
	if DailySummary != nil {
		f, _ := value.Float64()
		DailySummary.WithLabelValues(figure).Set(f)
	}
}
