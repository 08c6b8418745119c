package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Config scopes metric const labels.
type Config struct {
	ServiceName string
	Environment string
}

// BillingMetrics tracks ledger and allocation activity.
type BillingMetrics struct {
	entriesAppended *prometheus.CounterVec
	recomputes      *prometheus.CounterVec
	allocations     *prometheus.CounterVec
	repairBacklog   prometheus.Gauge
}

var (
	billingMetricsOnce sync.Once
	billingMetrics     *BillingMetrics
)

// Billing returns the process-wide billing metrics instance.
func Billing() *BillingMetrics {
	return BillingWithConfig(Config{})
}

func BillingWithConfig(cfg Config) *BillingMetrics {
	billingMetricsOnce.Do(func() {
		billingMetrics = newBillingMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return billingMetrics
}

func ResetBillingMetricsForTest() {
	billingMetricsOnce = sync.Once{}
	billingMetrics = nil
}

func newBillingMetrics(registerer prometheus.Registerer, cfg Config) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "labdesk"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	entriesAppended := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "labdesk_ledger_entries_appended_total",
			Help:        "Total account ledger entries appended.",
			ConstLabels: constLabels,
		},
		[]string{"direction"}, // debit | credit
	)

	recomputes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "labdesk_ledger_recomputes_total",
			Help:        "Total running-balance recomputations.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // success | failed
	)

	allocations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "labdesk_payment_allocations_total",
			Help:        "Total payment allocation calls.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // applied | surplus | rejected
	)

	repairBacklog := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:        "labdesk_ledger_repair_backlog_total",
			Help:        "Clients waiting for a ledger repair pass.",
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(
		entriesAppended,
		recomputes,
		allocations,
		repairBacklog,
	)

	return &BillingMetrics{
		entriesAppended: entriesAppended,
		recomputes:      recomputes,
		allocations:     allocations,
		repairBacklog:   repairBacklog,
	}
}

// ObserveEntryAppended counts one appended ledger entry.
func (m *BillingMetrics) ObserveEntryAppended(direction string) {
	if m == nil {
		return
	}
	m.entriesAppended.WithLabelValues(direction).Inc()
}

// ObserveRecompute counts one recompute pass.
func (m *BillingMetrics) ObserveRecompute(result string) {
	if m == nil {
		return
	}
	m.recomputes.WithLabelValues(result).Inc()
}

// ObserveAllocation counts one allocation call.
func (m *BillingMetrics) ObserveAllocation(result string) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(result).Inc()
}

// SetRepairBacklog reports the current repair queue depth.
func (m *BillingMetrics) SetRepairBacklog(n int) {
	if m == nil {
		return
	}
	m.repairBacklog.Set(float64(n))
}
