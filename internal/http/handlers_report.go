package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cassa/internal/core"
	"cassa/internal/log"
	"cassa/internal/report"
)

const opReport = "report"

func (s *Server) handlePnL(w http.ResponseWriter, r *http.Request) {
	rng, err := parseReportRange(r.URL.Query(), s.today())
	if err != nil {
		writeError(w, r, opReport, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()
	book, err := s.book(ctx)
	if err != nil {
		writeError(w, r, opReport, err)
		return
	}
	asm := report.NewAssembler(book, s.memo)

	out, err := deliver(ctx, s, reportSession(r), rng, func(ctx context.Context) (report.PnLReport, error) {
		return asm.PnL(ctx, rng)
	})
	if err != nil {
		writeError(w, r, opReport, err)
		return
	}
	NewJSONResponse().Data(out).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	today := s.today()

	ctx, cancel := s.storeContext(r)
	defer cancel()
	book, err := s.book(ctx)
	if err != nil {
		writeError(w, r, opReport, err)
		return
	}
	asm := report.NewAssembler(book, s.memo)

	out, err := deliver(ctx, s, reportSession(r), report.MonthOf(today), func(ctx context.Context) (report.Dashboard, error) {
		return asm.Dashboard(ctx, today)
	})
	if err != nil {
		writeError(w, r, opReport, err)
		return
	}
	NewJSONResponse().Data(out).Write(w)
}

// deliver computes a report, discarding it as stale when the session issued a newer
// request meanwhile. Requests without a session are never stale.
func deliver[T any](ctx context.Context, s *Server, session string, rng core.DateRange, compute func(context.Context) (T, error)) (T, error) {
	if s.feed == nil || session == "" {
		return compute(ctx)
	}
	ticket := s.feed.Issue(ctx, session, rng)
	return report.Deliver(ctx, s.feed, ticket, compute)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the ledger store is reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{
		"rate_limiter": map[string]any{"active_clients": s.limiter.ActiveClients()},
	}
	if err := s.ledger.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	NewJSONResponse().Status(httpStatus).Data(map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	rateMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()
	var hits, misses int64
	if s.memo != nil {
		hits, misses = s.memo.Stats()
	}

	w.WriteHeader(http.StatusOK)
	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_request_duration_avg_microseconds", "gauge", "Average request duration", traceMetrics.AverageResponseTime)
	metric("report_cache_hits_total", "counter", "Report cache hits", hits)
	metric("report_cache_misses_total", "counter", "Report cache misses", misses)
	metric("rate_limit_hits_total", "counter", "Total rate limit hits", rateMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("invalid_client_ips_total", "counter", "Forwarded client addresses that failed to parse", securityMetrics.InvalidIPAttempts)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(s.now().Sub(s.startedAt).Seconds()))
}
