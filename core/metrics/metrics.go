// Package metrics exposes engine counters and gauges through Prometheus.
//
// Every method is safe on a nil *Metrics so components can run unmetered.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is one registry's worth of engine instrumentation.
type Metrics struct {
	reg *prometheus.Registry

	framesRendered prometheus.Counter
	pointsDrawn    prometheus.Counter
	pointsCulled   prometheus.Counter
	batches        prometheus.Counter
	renderSeconds  prometheus.Histogram

	liveBytes    prometheus.Gauge
	scrapLists   prometheus.Gauge
	purges       prometheus.Counter
	reclaimed    prometheus.Counter
	arenaReuse   prometheus.Counter
	framesIngest *prometheus.CounterVec
	reports      *prometheus.CounterVec
	snapshotHits *prometheus.CounterVec
}

// New registers the engine metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		framesRendered: f.NewCounter(prometheus.CounterOpts{
			Name: "specks_frames_rendered_total",
			Help: "Frames rendered",
		}),
		pointsDrawn: f.NewCounter(prometheus.CounterOpts{
			Name: "specks_points_drawn_total",
			Help: "Points submitted to draw calls",
		}),
		pointsCulled: f.NewCounter(prometheus.CounterOpts{
			Name: "specks_points_culled_total",
			Help: "Points removed by the sub-pixel cull",
		}),
		batches: f.NewCounter(prometheus.CounterOpts{
			Name: "specks_draw_batches_total",
			Help: "Point draw calls issued",
		}),
		renderSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "specks_render_duration_seconds",
			Help:    "Render pass duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 10), // 0.5ms to ~250ms
		}),
		liveBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "specks_store_live_bytes",
			Help: "Bytes held by installed specklist chains",
		}),
		scrapLists: f.NewGauge(prometheus.GaugeOpts{
			Name: "specks_store_scrap_lists",
			Help: "Retired chains awaiting reclamation",
		}),
		purges: f.NewCounter(prometheus.CounterOpts{
			Name: "specks_store_purges_total",
			Help: "Slots evicted under memory pressure",
		}),
		reclaimed: f.NewCounter(prometheus.CounterOpts{
			Name: "specks_store_reclaimed_total",
			Help: "Retired chains returned to the arena",
		}),
		arenaReuse: f.NewCounter(prometheus.CounterOpts{
			Name: "specks_arena_reuse_total",
			Help: "Specklists served from the warm pool",
		}),
		framesIngest: f.NewCounterVec(prometheus.CounterOpts{
			Name: "specks_source_frames_total",
			Help: "Frames ingested by live sources",
		}, []string{"source"}),
		reports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "specks_reports_total",
			Help: "Degradation reports by kind",
		}, []string{"kind"}),
		snapshotHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "specks_snapshot_requests_total",
			Help: "Snapshot requests by outcome",
		}, []string{"outcome"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Rendered records one render pass.
func (m *Metrics) Rendered(seconds float64, drawn, culled, batches int) {
	if m == nil {
		return
	}
	m.framesRendered.Inc()
	m.pointsDrawn.Add(float64(drawn))
	m.pointsCulled.Add(float64(culled))
	m.batches.Add(float64(batches))
	m.renderSeconds.Observe(seconds)
}

// Store records the current store occupancy.
func (m *Metrics) Store(liveBytes int64, scrap int) {
	if m == nil {
		return
	}
	m.liveBytes.Set(float64(liveBytes))
	m.scrapLists.Set(float64(scrap))
}

func (m *Metrics) Purged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.purges.Add(float64(n))
}

func (m *Metrics) Reclaimed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reclaimed.Add(float64(n))
}

func (m *Metrics) ArenaReused(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.arenaReuse.Add(float64(n))
}

// FrameIngested counts one frame appended by the named source.
func (m *Metrics) FrameIngested(source string) {
	if m == nil {
		return
	}
	m.framesIngest.WithLabelValues(source).Inc()
}

// Reported counts one degradation report.
func (m *Metrics) Reported(kind string) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(kind).Inc()
}

// Snapshot counts a frame request: outcome is "hit", "rebuild" or "miss".
func (m *Metrics) Snapshot(outcome string) {
	if m == nil {
		return
	}
	m.snapshotHits.WithLabelValues(outcome).Inc()
}
