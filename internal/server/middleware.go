package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/daymark-app/daymark/internal/api"
	"github.com/daymark-app/daymark/internal/appctx"
	"github.com/daymark-app/daymark/internal/platform/metrics"
)

// identityHeader carries the calling user's id. Requests without it are
// treated as unauthenticated on protected routes.
const identityHeader = "X-User-ID"

// loggingMiddleware logs request information using slog and records the
// request duration histogram by route pattern and status class.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			elapsed := time.Since(start)

			s.logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", elapsed.Milliseconds(),
				"client_ip", s.trustedProxies.GetClientIPString(r),
				"request_id", middleware.GetReqID(r.Context()),
			)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			metrics.RequestDuration.
				WithLabelValues(route, statusClass(ww.Status())).
				Observe(elapsed.Seconds())
		}()

		next.ServeHTTP(ww, r)
	})
}

// statusClass collapses a status code into its class ("2xx", "4xx", ...)
// to keep the histogram's label cardinality bounded.
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return fmt.Sprintf("%dxx", status/100)
}

// identityMiddleware extracts the caller's identity from the X-User-ID
// header and attaches it to the request context. Protected routes reject
// requests that carry no identity; public endpoints pass through.
func (s *Server) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(identityHeader)
		if userID != "" {
			r = r.WithContext(appctx.WithUserID(r.Context(), userID))
		}

		if userID == "" && IsAuthRequired(r.URL.Path, s.cfg.ExternalBasePath) {
			api.WriteUnauthorized(w, "authentication required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware applies the per-client request budget.
// Failures in the cache backend let the request through.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := s.trustedProxies.GetClientIPString(r)

		result, err := s.limiter.Allow(r.Context(), clientIP)
		if err != nil {
			s.logger.Warn("rate limit check failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", s.cfg.RateLimit.RequestsPerWindow))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetAt.Unix()))

		if !result.Allowed {
			s.logger.Warn("rate limit exceeded",
				"path", r.URL.Path,
				"client_ip", clientIP,
			)
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(time.Until(result.ResetAt).Seconds())))
			api.WriteTooManyRequests(w, "too many requests, please try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}
