package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounterReuse(t *testing.T) {
	c := NewCollector()

	a := c.Counter("test_total", "A test counter", `platform="slack"`)
	b := c.Counter("test_total", "A test counter", `platform="slack"`)
	if a != b {
		t.Fatal("same name and labels should return the same series")
	}

	other := c.Counter("test_total", "A test counter", `platform="telegram"`)
	if a == other {
		t.Fatal("different labels should return a distinct series")
	}

	a.Inc()
	a.Add(2)
	if got := b.Value(); got != 3 {
		t.Errorf("Value() = %d, want 3", got)
	}
	if got := other.Value(); got != 0 {
		t.Errorf("other series Value() = %d, want 0", got)
	}
}

func TestGauge(t *testing.T) {
	c := NewCollector()

	g := c.Gauge("test_gauge", "A test gauge", "")
	g.Set(10)
	g.Inc()
	g.Dec()
	g.Dec()
	if got := g.Value(); got != 9 {
		t.Errorf("Value() = %d, want 9", got)
	}
}

func TestHistogramBuckets(t *testing.T) {
	c := NewCollector()

	h := c.Histogram("test_seconds", "A test histogram", "", []float64{0.1, 1, 10})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(5)
	h.Observe(50)

	out := c.Render()
	for _, want := range []string{
		`test_seconds_bucket{le="0.1"} 1`,
		`test_seconds_bucket{le="1"} 2`,
		`test_seconds_bucket{le="10"} 3`,
		`test_seconds_bucket{le="+Inf"} 4`,
		"test_seconds_count 4",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q\n%s", want, out)
		}
	}
}

func TestRenderFormat(t *testing.T) {
	c := NewCollector()

	c.Counter("requests_total", "Total requests", `platform="slack"`).Inc()
	c.Counter("requests_total", "Total requests", `platform="discord"`).Add(5)
	c.Gauge("connections", "Open connections", "").Set(2)

	out := c.Render()

	if !strings.Contains(out, "# HELP chatbridge_uptime_seconds") {
		t.Error("missing uptime gauge")
	}
	if strings.Count(out, "# TYPE requests_total counter") != 1 {
		t.Error("TYPE line should appear once per metric name")
	}
	for _, want := range []string{
		`requests_total{platform="discord"} 5`,
		`requests_total{platform="slack"} 1`,
		"connections 2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q\n%s", want, out)
		}
	}

	// Series are sorted so scrapes are stable.
	if strings.Index(out, `platform="discord"`) > strings.Index(out, `platform="slack"`) {
		t.Error("series should render in sorted order")
	}
}

func TestHandler(t *testing.T) {
	c := NewCollector()
	c.Counter("hits_total", "Hits", "").Inc()

	rr := httptest.NewRecorder()
	c.Handler()(rr, httptest.NewRequest("GET", "/metrics", nil))

	if rr.Code != 200 {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "hits_total 1") {
		t.Errorf("body missing counter:\n%s", rr.Body.String())
	}
}

func TestPredefinedSeries(t *testing.T) {
	if got := WebhooksTotal("slack"); got != WebhooksTotal("slack") {
		t.Error("WebhooksTotal should return a stable series per platform")
	}
	if PlatformLabel("whatsapp") != `platform="whatsapp"` {
		t.Errorf("PlatformLabel = %q", PlatformLabel("whatsapp"))
	}
}
