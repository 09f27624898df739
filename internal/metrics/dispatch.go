// Package metrics expone las métricas Prometheus del pipeline de despacho.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once
	registerErr  error

	attemptsTotal *prometheus.CounterVec
	enqueuedTotal prometheus.Counter
)

// Register registra las métricas del pipeline en el registry indicado
// (nil => DefaultRegisterer). Idempotente.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	registerOnce.Do(func() {
		attemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "email_attempts_total",
			Help: "Intentos de entrega por resultado y diagnóstico",
		}, []string{"result", "diag"})

		enqueuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "email_jobs_enqueued_total",
			Help: "Jobs de email encolados",
		})

		for _, c := range []prometheus.Collector{attemptsTotal, enqueuedTotal} {
			if err := register(reg, c); err != nil {
				registerErr = err
				return
			}
		}
	})
	return registerErr
}

// RecordAttempt registra el resultado de un intento de entrega.
func RecordAttempt(result, diag string) {
	if attemptsTotal != nil {
		attemptsTotal.WithLabelValues(result, diag).Inc()
	}
}

// RecordEnqueued registra un job aceptado por la cola.
func RecordEnqueued() {
	if enqueuedTotal != nil {
		enqueuedTotal.Inc()
	}
}

func register(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// QueueStatsFunc provee la ocupación actual de la cola.
type QueueStatsFunc func() (waiting, active, completed, failed int64, err error)

// queueCollector exporta gauges de ocupación leyendo Stats() en cada scrape.
type queueCollector struct {
	stats QueueStatsFunc

	waitingDesc   *prometheus.Desc
	activeDesc    *prometheus.Desc
	completedDesc *prometheus.Desc
	failedDesc    *prometheus.Desc
}

// NewQueueCollector crea un collector de ocupación de la cola de despacho.
func NewQueueCollector(stats QueueStatsFunc) prometheus.Collector {
	return &queueCollector{
		stats:         stats,
		waitingDesc:   prometheus.NewDesc("email_queue_waiting", "Jobs esperando eligibilidad", nil, nil),
		activeDesc:    prometheus.NewDesc("email_queue_active", "Jobs en procesamiento", nil, nil),
		completedDesc: prometheus.NewDesc("email_queue_completed", "Jobs completados retenidos", nil, nil),
		failedDesc:    prometheus.NewDesc("email_queue_failed", "Jobs fallidos terminales retenidos", nil, nil),
	}
}

func (c *queueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.waitingDesc
	ch <- c.activeDesc
	ch <- c.completedDesc
	ch <- c.failedDesc
}

func (c *queueCollector) Collect(ch chan<- prometheus.Metric) {
	w, a, co, f, err := c.stats()
	if err != nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.waitingDesc, prometheus.GaugeValue, float64(w))
	ch <- prometheus.MustNewConstMetric(c.activeDesc, prometheus.GaugeValue, float64(a))
	ch <- prometheus.MustNewConstMetric(c.completedDesc, prometheus.GaugeValue, float64(co))
	ch <- prometheus.MustNewConstMetric(c.failedDesc, prometheus.GaugeValue, float64(f))
}
