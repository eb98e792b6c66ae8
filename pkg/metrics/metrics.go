// Package metrics exposes acquisition state as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/NotCoffee418/linky_meter/pkg/esmutils"
	"github.com/NotCoffee418/linky_meter/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "linky"

// Cycle results
const (
	ResultOK             = "ok"
	ResultStall          = "stall"
	ResultTransportError = "transport_error"
	ResultWriteError     = "write_error"
)

// Metrics is safe to use as a nil pointer, every method is then a no-op.
type Metrics struct {
	index         prometheus.Gauge
	power         prometheus.Gauge
	lastReading   prometheus.Gauge
	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	rollovers     prometheus.Counter
	writeRetries  prometheus.Counter
}

// New creates the collectors and registers them, with the Go runtime
// collectors, on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		index: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_kwh",
			Help:      "Current value of the BASE index in kilowatt.hour",
		}),
		power: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "power_apparent_va",
			Help:      "Current apparent power (PAPP) in volt.ampere",
		}),
		lastReading: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_reading_timestamp_seconds",
			Help:      "Unix time of the last complete reading",
		}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Acquisition cycles by result",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Time spent reading and storing one cycle",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		rollovers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollovers_total",
			Help:      "Day rollovers that produced a dailies record",
		}),
		writeRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_retries_total",
			Help:      "Database writes retried after a failure",
		}),
	}

	reg.MustRegister(
		m.index,
		m.power,
		m.lastReading,
		m.cycles,
		m.cycleDuration,
		m.rollovers,
		m.writeRetries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveReading(r types.Reading) {
	if m == nil {
		return
	}
	m.index.Set(esmutils.WhToKwh(r.Counter))
	m.power.Set(float64(r.Power))
	m.lastReading.Set(float64(r.Timestamp.Unix()))
}

func (m *Metrics) ObserveCycle(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(took.Seconds())
}

func (m *Metrics) ObserveRollover() {
	if m == nil {
		return
	}
	m.rollovers.Inc()
}

func (m *Metrics) ObserveWriteRetry() {
	if m == nil {
		return
	}
	m.writeRetries.Inc()
}
