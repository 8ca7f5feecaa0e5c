package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"prism-gw/prism/pkg/keypool"
)

func testOptions() Options {
	return Options{Namespace: "prism", Subsystem: "gateway"}
}

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rr.Code)
	}
	return rr.Body.String()
}

func TestCollectorRecordsRequests(t *testing.T) {
	c := New(testOptions())

	c.RecordRequest(OutcomeSuccess, 2, 150*time.Millisecond)
	c.RecordRequest(OutcomePoolExhausted, 0, time.Millisecond)
	c.RecordAttempt(OutcomeError, 80*time.Millisecond)
	c.RecordProbe(true)
	c.RecordProbe(false)
	c.RecordKeyDisabled()
	c.RecordKeyReactivated()

	body := scrape(t, c)
	for _, want := range []string{
		`prism_gateway_requests_total{outcome="success"} 1`,
		`prism_gateway_requests_total{outcome="pool_exhausted"} 1`,
		`prism_gateway_recovery_probes_total{result="success"} 1`,
		`prism_gateway_recovery_probes_total{result="failure"} 1`,
		`prism_gateway_keys_disabled_total 1`,
		`prism_gateway_keys_reactivated_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestNilCollectorIsNoOp(t *testing.T) {
	var c *Collector

	// Must not panic.
	c.RecordRequest(OutcomeSuccess, 1, time.Second)
	c.RecordAttempt(OutcomeSuccess, time.Second)
	c.RecordProbe(true)
	c.RecordKeyDisabled()
	c.RecordKeyReactivated()
	if err := c.Register(nil); err != nil {
		t.Errorf("Register on nil collector error = %v", err)
	}
}

type staticPool []keypool.KeyRecord

func (s staticPool) Snapshot() []keypool.KeyRecord { return s }

type staticUsage map[string]int

func (s staticUsage) Usage(key string) int { return s[key] }

func TestPoolCollector(t *testing.T) {
	c := New(testOptions())
	pool := staticPool{
		{Identifier: "key-aaaa-1111", Status: keypool.StatusActive},
		{Identifier: "key-bbbb-2222", Status: keypool.StatusActive},
		{Identifier: "key-cccc-3333", Status: keypool.StatusDisabled},
	}
	usage := staticUsage{"key-aaaa-1111": 7}

	if err := c.Register(NewPoolCollector(testOptions(), pool, usage)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	body := scrape(t, c)
	for _, want := range []string{
		`prism_gateway_pool_keys{status="active"} 2`,
		`prism_gateway_pool_keys{status="disabled"} 1`,
		`prism_gateway_pool_keys{status="rate_limited"} 0`,
		`prism_gateway_key_window_usage{key="****1111"} 7`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
	if strings.Contains(body, "key-aaaa-1111") {
		t.Error("scrape leaks an unmasked key")
	}
}
