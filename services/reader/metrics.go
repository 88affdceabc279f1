package reader

import (
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"
)

var CyclesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reader_cycles_total",
		Help: "Completed refresh passes over all peripherals",
	},
	[]string{"reader"},
)

var OverrunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reader_overruns_total",
		Help: "Cycles whose refresh pass ended after the cycle deadline",
	},
	[]string{"reader"},
)

var RefreshErrorsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reader_refresh_errors_total",
		Help: "Failed RefreshInputs calls by peripheral",
	},
	[]string{"reader", "peripheral"},
)

var CycleDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "reader_cycle_duration_seconds",
		Help:    "Time taken by one refresh pass",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	},
	[]string{"reader"},
)

var OverrunSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "reader_overrun_seconds",
		Help:    "Amount by which overrunning cycles missed their deadline",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
	},
	[]string{"reader"},
)

// RegisterMetrics registers the reader collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	klog.Info("[reader] registered metrics")
	reg.MustRegister(CyclesTotal)
	reg.MustRegister(OverrunsTotal)
	reg.MustRegister(RefreshErrorsTotal)
	reg.MustRegister(CycleDuration)
	reg.MustRegister(OverrunSeconds)
}
