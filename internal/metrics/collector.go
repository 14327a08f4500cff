// Package metrics is a lightweight Prometheus-compatible collector. It
// renders text/plain exposition format without pulling in
// prometheus/client_golang.
package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the process-wide collector instance.
var Collector = NewCollector()

// MetricsCollector aggregates counters, gauges, and histograms. Metric
// series are keyed by name plus rendered label pairs; output is sorted so
// scrapes are deterministic.
type MetricsCollector struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	startTime  time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		startTime:  time.Now(),
	}
}

// Uptime returns how long the collector has been running.
func (c *MetricsCollector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name   string
	help   string
	labels string
	value  atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	name   string
	help   string
	labels string
	value  atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram tracks the distribution of observed values across fixed
// buckets.
type Histogram struct {
	name    string
	help    string
	labels  string
	mu      sync.Mutex
	count   int64
	sum     float64
	buckets []histBucket
}

type histBucket struct {
	le    float64
	count int64
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i := range h.buckets {
		if v <= h.buckets[i].le {
			h.buckets[i].count++
		}
	}
}

func seriesKey(name, labels string) string {
	return name + "{" + labels + "}"
}

// Counter returns or creates the counter series for name and labels.
// Labels are a pre-rendered pair list like `platform="slack"`.
func (c *MetricsCollector) Counter(name, help, labels string) *Counter {
	key := seriesKey(name, labels)
	c.mu.RLock()
	ctr, ok := c.counters[key]
	c.mu.RUnlock()
	if ok {
		return ctr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ctr, ok = c.counters[key]; ok {
		return ctr
	}
	ctr = &Counter{name: name, help: help, labels: labels}
	c.counters[key] = ctr
	return ctr
}

// Gauge returns or creates the gauge series for name and labels.
func (c *MetricsCollector) Gauge(name, help, labels string) *Gauge {
	key := seriesKey(name, labels)
	c.mu.RLock()
	g, ok := c.gauges[key]
	c.mu.RUnlock()
	if ok {
		return g
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok = c.gauges[key]; ok {
		return g
	}
	g = &Gauge{name: name, help: help, labels: labels}
	c.gauges[key] = g
	return g
}

// Histogram returns or creates the histogram series for name and labels.
func (c *MetricsCollector) Histogram(name, help, labels string, buckets []float64) *Histogram {
	key := seriesKey(name, labels)
	c.mu.RLock()
	h, ok := c.histograms[key]
	c.mu.RUnlock()
	if ok {
		return h
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok = c.histograms[key]; ok {
		return h
	}
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)
	if len(sorted) == 0 || !math.IsInf(sorted[len(sorted)-1], 1) {
		sorted = append(sorted, math.Inf(1))
	}
	hb := make([]histBucket, len(sorted))
	for i, b := range sorted {
		hb[i] = histBucket{le: b}
	}
	h = &Histogram{name: name, help: help, labels: labels, buckets: hb}
	c.histograms[key] = h
	return h
}

// Render returns the Prometheus text exposition of every series.
func (c *MetricsCollector) Render() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var sb strings.Builder

	fmt.Fprintf(&sb, "# HELP chatbridge_uptime_seconds Time since start in seconds\n")
	fmt.Fprintf(&sb, "# TYPE chatbridge_uptime_seconds gauge\n")
	fmt.Fprintf(&sb, "chatbridge_uptime_seconds %d\n\n", int64(c.Uptime().Seconds()))

	helpWritten := make(map[string]bool)
	for _, key := range sortedKeys(c.counters) {
		ctr := c.counters[key]
		if !helpWritten[ctr.name] {
			fmt.Fprintf(&sb, "# HELP %s %s\n", ctr.name, ctr.help)
			fmt.Fprintf(&sb, "# TYPE %s counter\n", ctr.name)
			helpWritten[ctr.name] = true
		}
		writeSample(&sb, ctr.name, ctr.labels, fmt.Sprintf("%d", ctr.Value()))
	}

	helpWritten = make(map[string]bool)
	for _, key := range sortedKeys(c.gauges) {
		g := c.gauges[key]
		if !helpWritten[g.name] {
			fmt.Fprintf(&sb, "# HELP %s %s\n", g.name, g.help)
			fmt.Fprintf(&sb, "# TYPE %s gauge\n", g.name)
			helpWritten[g.name] = true
		}
		writeSample(&sb, g.name, g.labels, fmt.Sprintf("%d", g.Value()))
	}

	for _, key := range sortedKeys(c.histograms) {
		h := c.histograms[key]
		h.mu.Lock()
		fmt.Fprintf(&sb, "# HELP %s %s\n", h.name, h.help)
		fmt.Fprintf(&sb, "# TYPE %s histogram\n", h.name)
		for _, b := range h.buckets {
			le := fmt.Sprintf("%g", b.le)
			if math.IsInf(b.le, 1) {
				le = "+Inf"
			}
			bucketLabels := fmt.Sprintf("le=%q", le)
			if h.labels != "" {
				bucketLabels = h.labels + "," + bucketLabels
			}
			writeSample(&sb, h.name+"_bucket", bucketLabels, fmt.Sprintf("%d", b.count))
		}
		writeSample(&sb, h.name+"_count", h.labels, fmt.Sprintf("%d", h.count))
		writeSample(&sb, h.name+"_sum", h.labels, fmt.Sprintf("%f", h.sum))
		h.mu.Unlock()
	}

	return sb.String()
}

// Handler serves the collector in Prometheus text format.
func (c *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprint(w, c.Render())
	}
}

func writeSample(sb *strings.Builder, name, labels, value string) {
	if labels != "" {
		fmt.Fprintf(sb, "%s{%s} %s\n", name, labels, value)
	} else {
		fmt.Fprintf(sb, "%s %s\n", name, value)
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// --- Pre-defined series used across the gateway ---

// PlatformLabel renders the label pair for a platform series.
func PlatformLabel(platform string) string {
	return fmt.Sprintf("platform=%q", platform)
}

// WebhooksTotal counts accepted webhook deliveries per platform.
func WebhooksTotal(platform string) *Counter {
	return Collector.Counter("chatbridge_webhooks_total",
		"Total accepted webhook deliveries", PlatformLabel(platform))
}

// WebhooksRejected counts webhook deliveries rejected at the signature
// check.
func WebhooksRejected(platform string) *Counter {
	return Collector.Counter("chatbridge_webhooks_rejected_total",
		"Webhook deliveries rejected by signature verification", PlatformLabel(platform))
}

// MessagesSent counts outbound messages per platform.
func MessagesSent(platform string) *Counter {
	return Collector.Counter("chatbridge_messages_sent_total",
		"Total outbound messages delivered", PlatformLabel(platform))
}

// CallbackFailures counts dispatch callbacks that returned a panic.
var CallbackFailures = Collector.Counter("chatbridge_callback_failures_total",
	"Webhook callbacks that panicked during dispatch", "")

// DispatchSeconds observes end-to-end webhook handling latency.
var DispatchSeconds = Collector.Histogram("chatbridge_dispatch_seconds",
	"Webhook handling latency in seconds", "",
	[]float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5})
