package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"superstore/internal/analytics"
	applog "superstore/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports ready once templates are parsed and a dataset is
// loaded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	code := http.StatusOK
	checks := map[string]interface{}{}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.views == nil || s.views.Dataset() == nil {
		checks["dataset"] = "not_loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		ds := s.views.Dataset()
		checks["dataset"] = map[string]interface{}{
			"source":    ds.Source(),
			"rows":      ds.Len(),
			"loaded_at": ds.LoadedAt().Format(time.RFC3339),
		}
	}

	_ = writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	tm := s.traceMiddleware.GetMetrics()
	rl := s.rateLimiter.Metrics()
	sec := s.securityDetector.Metrics()

	metric := func(name, kind, help string, v any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, v)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", tm.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", tm.ServerErrors)
	metric("http_response_time_avg_us", "gauge", "Average response time in microseconds", tm.AverageResponseTime)

	if s.views != nil {
		st := s.views.Stats()
		metric("dataset_rows", "gauge", "Records in the loaded dataset", st.Rows)
		metric("views_computed_total", "counter", "Views computed outside the cache", st.Computed)
		metric("view_cache_hits_total", "counter", "View cache hits", st.Cache.Hits)
		metric("view_cache_misses_total", "counter", "View cache misses", st.Cache.Misses)
		metric("view_cache_evictions_total", "counter", "View cache evictions", st.Cache.Evictions)
		metric("view_cache_entries", "gauge", "Entries in the view cache", st.Cache.Size)
	}

	metric("rate_limit_allowed_total", "counter", "Requests allowed by the rate limiter", rl.Allowed)
	metric("rate_limit_limited_total", "counter", "Requests rejected by the rate limiter", rl.Limited)
	metric("rate_limit_clients", "gauge", "Clients tracked by the rate limiter", rl.Clients)
	metric("security_suspicious_requests_total", "counter", "Requests flagged as suspicious", sec.SuspiciousRequests)
	metric("security_blocked_requests_total", "counter", "Requests blocked as suspicious", sec.BlockedRequests)
	metric("uptime_seconds", "gauge", "Seconds since server start", int64(time.Since(s.started).Seconds()))
}

// handleOptions returns the control domains for the sidebar.
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, s.views.Options()); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Options encode failed", applog.FieldError, err)
	}
}

// handleViews returns the five views for the query's filters as JSON.
func (s *Server) handleViews(w http.ResponseWriter, r *http.Request) {
	v, ok := s.computeViews(w, r)
	if !ok {
		return
	}
	if err := writeJSON(w, http.StatusOK, v); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Views encode failed", applog.FieldError, err)
	}
}

// computeViews parses filters from r and fetches their views, logging
// adjusted parameters. It answers the request itself when ok is false.
func (s *Server) computeViews(w http.ResponseWriter, r *http.Request) (analytics.Views, bool) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	f, issues := ParseFilters(r.URL.Query())
	for _, is := range issues {
		logger.WarnContext(ctx, "Filter value adjusted",
			"param", is.Param, "value", is.Value, "fallback", is.Fix)
	}

	v, err := s.views.Views(ctx, f)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// client went away, typically an HTMX request superseded by a newer one
			logger.DebugContext(ctx, "View request cancelled", applog.FieldFilters, f.String())
			return analytics.Views{}, false
		}
		logger.ErrorContext(ctx, "View computation failed", applog.FieldError, err, applog.FieldFilters, f.String())
		http.Error(w, "view computation failed", http.StatusInternalServerError)
		return analytics.Views{}, false
	}
	return v, true
}
