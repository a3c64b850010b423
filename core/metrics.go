package core

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

// Counter only goes up
type Counter struct {
	value atomic.Int64
	name  string
	help  string
}

func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

func (c *Counter) Inc()       { c.value.Add(1) }
func (c *Counter) Get() int64 { return c.value.Load() }

// Gauge holds the latest value of a quantity
type Gauge struct {
	value atomic.Int64
	name  string
	help  string
}

func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

func (g *Gauge) Set(value int64) { g.value.Store(value) }
func (g *Gauge) Inc()            { g.value.Add(1) }
func (g *Gauge) Dec()            { g.value.Add(-1) }
func (g *Gauge) Get() int64      { return g.value.Load() }

// bucket bounds of all histograms, in milliseconds
var histogramBounds = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Histogram counts observations per cumulative bucket
type Histogram struct {
	mu     sync.RWMutex
	counts []int64 // parallel to histogramBounds
	sum    float64
	count  int64
	name   string
	help   string
}

func NewHistogram(name, help string) *Histogram {
	return &Histogram{counts: make([]int64, len(histogramBounds)), name: name, help: help}
}

func (h *Histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += value
	h.count++
	for i := sort.SearchFloat64s(histogramBounds, value); i < len(h.counts); i++ {
		h.counts[i]++
	}
}

// GetBuckets returns the cumulative count per upper bound
func (h *Histogram) GetBuckets() map[float64]int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	buckets := make(map[float64]int64, len(histogramBounds))
	for i, le := range histogramBounds {
		buckets[le] = h.counts[i]
	}
	return buckets
}

func (h *Histogram) GetSum() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sum
}

func (h *Histogram) GetCount() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Timer observes the milliseconds since its creation
type Timer struct {
	start time.Time
	hist  *Histogram
}

func NewTimer(hist *Histogram) *Timer {
	return &Timer{start: time.Now(), hist: hist}
}

func (t *Timer) ObserveDuration() {
	t.hist.Observe(float64(time.Since(t.start).Microseconds()) / 1000)
}

// MetricsCollector manages all metrics for the application
type MetricsCollector struct {
	// HTTP metrics
	HTTPRequestsTotal    *Counter
	HTTPRequestDuration  *Histogram
	HTTPRequestsInFlight *Gauge
	HTTPErrorsTotal      *Counter
	RouteNotFoundTotal   *Counter

	// File system metrics
	FilesTotal             *Gauge
	FileProcessingDuration *Histogram
	FileWatcherEvents      *Counter

	// Plugin metrics
	PluginExecutionDuration *Histogram
	PluginErrorsTotal       *Counter
	PluginsRegistered       *Gauge

	// Route metrics
	RoutesTotal          *Gauge
	RouteRebuildDuration *Histogram

	// Download records
	RecordsRendered  *Counter
	MissingResources *Counter
	FilerDownloads   *Counter

	// System metrics
	GoRoutinesCount *Gauge
	MemoryUsage     *Gauge
	UptimeSeconds   *Gauge

	// Rate limiting metrics
	RateLimitHits   *Counter
	RateLimitBlocks *Counter

	startTime time.Time
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		HTTPRequestsTotal:    NewCounter("http_requests_total", "Total number of HTTP requests"),
		HTTPRequestDuration:  NewHistogram("http_request_duration_ms", "HTTP request duration in milliseconds"),
		HTTPRequestsInFlight: NewGauge("http_requests_in_flight", "Current number of HTTP requests being processed"),
		HTTPErrorsTotal:      NewCounter("http_errors_total", "Total number of HTTP errors"),
		RouteNotFoundTotal:   NewCounter("route_not_found_total", "Total number of 404 responses"),

		FilesTotal:             NewGauge("files_total", "Total number of files managed"),
		FileProcessingDuration: NewHistogram("file_processing_duration_ms", "File processing duration in milliseconds"),
		FileWatcherEvents:      NewCounter("file_watcher_events_total", "Total number of file watcher events"),

		PluginExecutionDuration: NewHistogram("plugin_execution_duration_ms", "Plugin execution duration in milliseconds"),
		PluginErrorsTotal:       NewCounter("plugin_errors_total", "Total number of plugin errors"),
		PluginsRegistered:       NewGauge("plugins_registered", "Number of registered plugins"),

		RoutesTotal:          NewGauge("routes_total", "Total number of routes"),
		RouteRebuildDuration: NewHistogram("route_rebuild_duration_ms", "Route rebuild duration in milliseconds"),

		RecordsRendered:  NewCounter("records_rendered_total", "Total number of file and folder records rendered"),
		MissingResources: NewCounter("missing_resources_total", "Records rendered with an unresolved file or folder"),
		FilerDownloads:   NewCounter("filer_downloads_total", "Total number of files served from the filer"),

		GoRoutinesCount: NewGauge("go_routines_count", "Number of Go routines"),
		MemoryUsage:     NewGauge("memory_usage_bytes", "Memory usage in bytes"),
		UptimeSeconds:   NewGauge("uptime_seconds", "Application uptime in seconds"),

		RateLimitHits:   NewCounter("rate_limit_hits_total", "Total number of rate limit hits"),
		RateLimitBlocks: NewCounter("rate_limit_blocks_total", "Total number of rate limit blocks"),

		startTime: time.Now(),
	}
}

// UpdateSystemMetrics updates system-level metrics
func (mc *MetricsCollector) UpdateSystemMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	mc.GoRoutinesCount.Set(int64(runtime.NumGoroutine()))
	mc.MemoryUsage.Set(int64(memStats.Alloc))
	mc.UptimeSeconds.Set(int64(time.Since(mc.startTime).Seconds()))
}

// GetAllMetrics returns all current metric values
func (mc *MetricsCollector) GetAllMetrics() map[string]interface{} {
	mc.UpdateSystemMetrics()

	metrics := map[string]interface{}{}
	for _, c := range []*Counter{
		mc.HTTPRequestsTotal, mc.HTTPErrorsTotal, mc.RouteNotFoundTotal,
		mc.FileWatcherEvents, mc.PluginErrorsTotal,
		mc.RecordsRendered, mc.MissingResources, mc.FilerDownloads,
		mc.RateLimitHits, mc.RateLimitBlocks,
	} {
		metrics[c.name] = c.Get()
	}
	for _, g := range []*Gauge{
		mc.HTTPRequestsInFlight, mc.FilesTotal, mc.PluginsRegistered, mc.RoutesTotal,
		mc.GoRoutinesCount, mc.MemoryUsage, mc.UptimeSeconds,
	} {
		metrics[g.name] = g.Get()
	}
	for _, h := range []*Histogram{
		mc.HTTPRequestDuration, mc.FileProcessingDuration,
		mc.PluginExecutionDuration, mc.RouteRebuildDuration,
	} {
		metrics[h.name] = map[string]interface{}{
			"buckets": h.GetBuckets(),
			"sum":     h.GetSum(),
			"count":   h.GetCount(),
		}
	}

	return metrics
}

// MetricsMiddleware creates a Gin middleware for collecting HTTP metrics
func (mc *MetricsCollector) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == MetricsRoute {
			c.Next()
			return
		}

		start := time.Now()
		mc.HTTPRequestsInFlight.Inc()
		timer := NewTimer(mc.HTTPRequestDuration)

		c.Next()

		timer.ObserveDuration()
		mc.HTTPRequestsInFlight.Dec()
		mc.HTTPRequestsTotal.Inc()

		if c.Writer.Status() >= 400 {
			mc.HTTPErrorsTotal.Inc()
			if c.Writer.Status() == http.StatusNotFound {
				mc.RouteNotFoundTotal.Inc()
			}
		}

		if duration := time.Since(start); duration > time.Second {
			Warn("slow request: %s %s took %v", c.Request.Method, c.Request.URL.Path, duration)
		}
	}
}

// MetricsHandler serves all metrics as JSON, or in the Prometheus text
// format when called with ?format=prometheus
func (mc *MetricsCollector) MetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics := mc.GetAllMetrics()
		if c.Query("format") == "prometheus" {
			c.Header("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
			c.String(http.StatusOK, formatPrometheusMetrics(metrics))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"timestamp": time.Now(),
			"metrics":   metrics,
		})
	}
}

func formatPrometheusMetrics(metrics map[string]interface{}) string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var out strings.Builder
	for _, name := range names {
		switch v := metrics[name].(type) {
		case int64:
			fmt.Fprintf(&out, "# TYPE %s gauge\n%s %d\n", name, name, v)
		case map[string]interface{}:
			buckets, ok := v["buckets"].(map[float64]int64)
			if !ok {
				continue
			}
			fmt.Fprintf(&out, "# TYPE %s histogram\n", name)
			bounds := make([]float64, 0, len(buckets))
			for le := range buckets {
				bounds = append(bounds, le)
			}
			sort.Float64s(bounds)
			for _, le := range bounds {
				fmt.Fprintf(&out, "%s_bucket{le=\"%.1f\"} %d\n", name, le, buckets[le])
			}
			fmt.Fprintf(&out, "%s_sum %.2f\n%s_count %d\n", name, v["sum"], name, v["count"])
		}
	}
	return out.String()
}

// StartMetricsCollector starts background metric collection
func (mc *MetricsCollector) StartMetricsCollector(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mc.UpdateSystemMetrics()
		}
	}
}

// Global metrics collector instance
var GlobalMetrics = NewMetricsCollector()

func RecordFileWatcherEvent() {
	GlobalMetrics.FileWatcherEvents.Inc()
}

func RecordPluginError() {
	GlobalMetrics.PluginErrorsTotal.Inc()
}

func RecordRateLimitHit() {
	GlobalMetrics.RateLimitHits.Inc()
}

func RecordRateLimitBlock() {
	GlobalMetrics.RateLimitBlocks.Inc()
}

// RecordRecordRendered counts a rendered File or Folder record
func RecordRecordRendered(missing bool) {
	GlobalMetrics.RecordsRendered.Inc()
	if missing {
		GlobalMetrics.MissingResources.Inc()
	}
}

func RecordFilerDownload() {
	GlobalMetrics.FilerDownloads.Inc()
}

func SetFilesCount(count int64) {
	GlobalMetrics.FilesTotal.Set(count)
}

func SetRoutesCount(count int64) {
	GlobalMetrics.RoutesTotal.Set(count)
}

func SetPluginsCount(count int64) {
	GlobalMetrics.PluginsRegistered.Set(count)
}

func NewFileProcessingTimer() *Timer {
	return NewTimer(GlobalMetrics.FileProcessingDuration)
}

func NewPluginExecutionTimer() *Timer {
	return NewTimer(GlobalMetrics.PluginExecutionDuration)
}

func NewRouteRebuildTimer() *Timer {
	return NewTimer(GlobalMetrics.RouteRebuildDuration)
}
