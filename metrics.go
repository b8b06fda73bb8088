package assetcache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "assetcache"

// Asset outcomes reported in metrics.
const (
	outcomeDownloaded   = "downloaded"
	outcomeCached       = "cached"
	outcomeFailed       = "failed"
	outcomeUnresolvable = "unresolvable"
	outcomeMalformed    = "malformed"
)

// Metrics collects pipeline and index counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	pages    *prometheus.CounterVec
	assets   *prometheus.CounterVec
	bytes    prometheus.Counter
	download prometheus.Histogram
	lookups  *prometheus.CounterVec
}

// NewMetrics creates pipeline metrics and registers them in reg, if it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pages_total",
			Help:      "Pages processed by result",
		}, []string{"result"}),
		assets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "assets_total",
			Help:      "Asset references processed by outcome",
		}, []string{"outcome"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "downloaded_bytes_total",
			Help:      "Bytes written to the corpus",
		}),
		download: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "download_duration_seconds",
			Help:      "Duration of asset downloads",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "index_lookups_total",
			Help:      "Index lookups by result",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.pages, m.assets, m.bytes, m.download, m.lookups)
	}
	return m
}

func (m *Metrics) page(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.pages.WithLabelValues("ok").Inc()
	} else {
		m.pages.WithLabelValues("failed").Inc()
	}
}

func (m *Metrics) asset(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.assets.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) downloaded(size uint64, dt time.Duration) {
	if m == nil {
		return
	}
	m.bytes.Add(float64(size))
	m.download.Observe(dt.Seconds())
}

func (m *Metrics) lookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.lookups.WithLabelValues("hit").Inc()
	} else {
		m.lookups.WithLabelValues("miss").Inc()
	}
}

// WriteMetrics writes all metrics gathered from g to a file in the Prometheus text format.
func WriteMetrics(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
