package clrt

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Compilation results, the values of the "result" label.
const (
	ResultOK            = "ok"
	ResultDegraded      = "degraded"
	ResultNoDevice      = "no_device"
	ResultBuildFailed   = "build_failed"
	ResultKernelsFailed = "kernels_failed"
	ResultError         = "error"
)

// Metrics collects Prometheus metrics about devices and program compilations.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ProgramsCompiled *prometheus.CounterVec
	KernelsDegraded  prometheus.Counter
	BuildDuration    prometheus.Histogram
	Devices          prometheus.Gauge
	ProgramsAlive    prometheus.GaugeFunc
}

// NewMetrics creates the collectors and registers them with reg. If reg is nil they are not registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProgramsCompiled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goclrt",
			Name:      "programs_compiled_total",
			Help:      "Total number of program compilations, by result.",
		}, []string{"result"}),
		KernelsDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "goclrt",
			Name:      "kernels_degraded_total",
			Help:      "Programs built successfully whose kernels could not be enumerated in batch.",
		}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "goclrt",
			Name:      "build_duration_seconds",
			Help:      "Time spent in the native build of programs.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		Devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "goclrt",
			Name:      "devices",
			Help:      "Number of devices discovered across all platforms.",
		}),
		ProgramsAlive: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "goclrt",
			Name:      "programs_alive",
			Help:      "Number of programs created and not yet released.",
		}, func() float64 { return float64(ProgramsAlive()) }),
	}
	if reg != nil {
		reg.MustRegister(m.ProgramsCompiled, m.KernelsDegraded, m.BuildDuration, m.Devices, m.ProgramsAlive)
	}
	return m
}

func (m *Metrics) compiled(result string) {
	if m == nil {
		return
	}
	m.ProgramsCompiled.WithLabelValues(result).Inc()
	if result == ResultDegraded {
		m.KernelsDegraded.Inc()
	}
}

func (m *Metrics) observeBuild(start time.Time) {
	if m == nil {
		return
	}
	m.BuildDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) setDevices(n int) {
	if m == nil {
		return
	}
	m.Devices.Set(float64(n))
}
