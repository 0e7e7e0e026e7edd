package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций для метки result.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// LifecycleMetrics содержит метрики операций над заказами, возвратами, счетами и корзинами.
type LifecycleMetrics struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	transitions       *prometheus.CounterVec
	registryLoads     *prometheus.CounterVec
	outboxEnqueued    prometheus.Counter
}

// NewLifecycleMetrics создаёт метрики в DefaultRegisterer.
func NewLifecycleMetrics() *LifecycleMetrics {
	return NewLifecycleMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewLifecycleMetricsWithRegisterer создаёт метрики в указанном реестре (удобно для тестов).
func NewLifecycleMetricsWithRegisterer(registerer prometheus.Registerer) *LifecycleMetrics {
	return &LifecycleMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_lifecycle_operations_total",
			Help: "Total number of lifecycle operations grouped by entity, operation and result",
		}, []string{"entity", "operation", "result"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_lifecycle_operation_duration_seconds",
			Help:    "Duration of lifecycle operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"entity", "operation"}),
		transitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_status_transitions_total",
			Help: "Total number of applied status transitions",
		}, []string{"entity", "from", "to"}),
		registryLoads: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_status_registry_loads_total",
			Help: "Total number of status registry loads grouped by result",
		}, []string{"result"}),
		outboxEnqueued: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_outbox_enqueued_total",
			Help: "Total number of lifecycle events written to the outbox",
		}),
	}
}

// ObserveOperation фиксирует результат и длительность операции. nil-получатель допустим.
func (m *LifecycleMetrics) ObserveOperation(entity, operation, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(entity, operation, result).Inc()
	m.operationDuration.WithLabelValues(entity, operation).Observe(duration.Seconds())
}

// RecordTransition считает применённый переход статуса.
func (m *LifecycleMetrics) RecordTransition(entity, from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(entity, from, to).Inc()
}

// ObserveRegistryLoad считает загрузки реестра статусов.
func (m *LifecycleMetrics) ObserveRegistryLoad(err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.registryLoads.WithLabelValues(result).Inc()
}

// RecordOutboxEnqueued увеличивает счётчик событий outbox.
func (m *LifecycleMetrics) RecordOutboxEnqueued() {
	if m == nil {
		return
	}
	m.outboxEnqueued.Inc()
}
