package providers

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Kvilt1/merger-simple/internal/structures"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsProviderInterface interface {
	IncFuse(strategy string, ok bool)
	IncResolution(method string)
	SetOrphans(count int)
	IncPoolInsert(deduplicated bool)
	IncCacheLookup(hit bool)
	ObserveStage(stage string, duration time.Duration)
	Flush() error
}

type MetricsProvider struct {
	registry      *prometheus.Registry
	textfile      string
	fusesTotal    *prometheus.CounterVec
	resolutions   *prometheus.CounterVec
	orphans       prometheus.Gauge
	poolInserts   *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

func (m *MetricsProvider) IncFuse(strategy string, ok bool) {
	m.fusesTotal.WithLabelValues(strategy, resultLabel(ok)).Inc()
}

func (m *MetricsProvider) IncResolution(method string) {
	m.resolutions.WithLabelValues(method).Inc()
}

func (m *MetricsProvider) SetOrphans(count int) {
	m.orphans.Set(float64(count))
}

func (m *MetricsProvider) IncPoolInsert(deduplicated bool) {
	if deduplicated {
		m.poolInserts.WithLabelValues("dedup").Inc()
		return
	}
	m.poolInserts.WithLabelValues("copied").Inc()
}

func (m *MetricsProvider) IncCacheLookup(hit bool) {
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func (m *MetricsProvider) ObserveStage(stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// Flush writes the registry in the node_exporter textfile format.
func (m *MetricsProvider) Flush() error {
	if m.textfile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.textfile), 0755); err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(m.textfile, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &MetricsProvider{
		registry: reg,
		textfile: conf.Metrics.Textfile,

		fusesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "snapdays_fuses_total",
			Help: "Overlay fuse invocations by strategy and result",
		}, []string{"strategy", "result"}),

		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "snapdays_resolutions_total",
			Help: "Media assets attached to messages by resolution method",
		}, []string{"method"}),

		orphans: factory.NewGauge(prometheus.GaugeOpts{
			Name: "snapdays_orphans",
			Help: "Media files left unattached after mapping",
		}),

		poolInserts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "snapdays_pool_inserts_total",
			Help: "Media pool insertions, copied or deduplicated",
		}, []string{"outcome"}),

		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "snapdays_digest_cache_lookups_total",
			Help: "Content digest cache lookups by result",
		}, []string{"result"}),

		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "snapdays_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"stage"}),
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncFuse(_ string, _ bool)                {}
func (n *noopMetrics) IncResolution(_ string)                  {}
func (n *noopMetrics) SetOrphans(_ int)                        {}
func (n *noopMetrics) IncPoolInsert(_ bool)                    {}
func (n *noopMetrics) IncCacheLookup(_ bool)                   {}
func (n *noopMetrics) ObserveStage(_ string, _ time.Duration) {}
func (n *noopMetrics) Flush() error                            { return nil }
