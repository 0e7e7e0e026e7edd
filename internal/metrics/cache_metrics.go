package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics считает попадания, промахи и инвалидации read-through кэша.
type CacheMetrics struct {
	lookups       *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

// NewCacheMetrics создаёт метрики кэша в DefaultRegisterer.
func NewCacheMetrics() *CacheMetrics {
	return NewCacheMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCacheMetricsWithRegisterer создаёт метрики кэша в указанном реестре.
func NewCacheMetricsWithRegisterer(registerer prometheus.Registerer) *CacheMetrics {
	return &CacheMetrics{
		lookups: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_cache_lookups_total",
			Help: "Cache lookups grouped by key namespace and outcome (hit/miss)",
		}, []string{"namespace", "outcome"}),
		invalidations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_cache_invalidations_total",
			Help: "Cache invalidations grouped by result",
		}, []string{"result"}),
	}
}

// RecordHit считает попадание.
func (m *CacheMetrics) RecordHit(namespace string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(namespace, "hit").Inc()
}

// RecordMiss считает промах.
func (m *CacheMetrics) RecordMiss(namespace string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(namespace, "miss").Inc()
}

// RecordInvalidation считает инвалидацию; failed=true для ошибок хранилища кэша.
func (m *CacheMetrics) RecordInvalidation(failed bool) {
	if m == nil {
		return
	}
	result := ResultOK
	if failed {
		result = ResultError
	}
	m.invalidations.WithLabelValues(result).Inc()
}
