package http

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

// serverMetrics tracks request counters exposed on /metrics.
type serverMetrics struct {
	requestsTotal      int64
	responses2xx       int64
	responses4xx       int64
	responses5xx       int64
	rateLimitHits      int64
	suspiciousRequests int64
	cacheHits          int64
	cacheMisses        int64
}

func newServerMetrics() *serverMetrics {
	return &serverMetrics{}
}

func (m *serverMetrics) recordRequest() {
	atomic.AddInt64(&m.requestsTotal, 1)
}

func (m *serverMetrics) recordResponse(statusCode int) {
	switch {
	case statusCode >= 500:
		atomic.AddInt64(&m.responses5xx, 1)
	case statusCode >= 400:
		atomic.AddInt64(&m.responses4xx, 1)
	default:
		atomic.AddInt64(&m.responses2xx, 1)
	}
}

func (m *serverMetrics) recordRateLimitHit() {
	atomic.AddInt64(&m.rateLimitHits, 1)
}

func (m *serverMetrics) recordSuspiciousRequest() {
	atomic.AddInt64(&m.suspiciousRequests, 1)
}

func (m *serverMetrics) recordCacheHit() {
	atomic.AddInt64(&m.cacheHits, 1)
}

func (m *serverMetrics) recordCacheMiss() {
	atomic.AddInt64(&m.cacheMisses, 1)
}

// handleMetrics writes plain-text counters.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	counters := []struct {
		name  string
		value *int64
	}{
		{"http_requests_total", &s.metrics.requestsTotal},
		{"http_responses_2xx", &s.metrics.responses2xx},
		{"http_responses_4xx", &s.metrics.responses4xx},
		{"http_responses_5xx", &s.metrics.responses5xx},
		{"http_rate_limit_hits", &s.metrics.rateLimitHits},
		{"http_suspicious_requests", &s.metrics.suspiciousRequests},
		{"report_cache_hits", &s.metrics.cacheHits},
		{"report_cache_misses", &s.metrics.cacheMisses},
	}

	for _, c := range counters {
		fmt.Fprintf(w, "%s %d\n", c.name, atomic.LoadInt64(c.value))
	}
}
