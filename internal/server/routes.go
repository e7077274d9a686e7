package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daymark-app/daymark/internal/api"
)

// RouteGroup defines an endpoint group with its auth requirements.
type RouteGroup struct {
	Name         string
	PathPrefix   string
	RequiresAuth bool
	AtHostRoot   bool // true for endpoints that must be at host root, not under base path
}

// routeGroups defines all endpoint groups and their auth requirements.
// This table is the single source of truth for routing decisions.
var routeGroups = []RouteGroup{
	// Root-only endpoints (must be at host root, never under external_base_path)
	{Name: "metrics", PathPrefix: "/metrics", RequiresAuth: false, AtHostRoot: true},

	// App endpoints (mounted under external_base_path)
	{Name: "api", PathPrefix: "/api", RequiresAuth: true, AtHostRoot: false}, // API: auth required (exceptions in publicExceptions)
}

// GetRouteGroups returns the route group definitions for testing.
func GetRouteGroups() []RouteGroup {
	return routeGroups
}

// publicExceptions are specific paths that don't require auth within otherwise protected groups.
var publicExceptions = []string{
	"/api/healthz",
}

// IsAuthRequired checks if a given path requires authentication.
// This is used by the identity middleware to make gating decisions.
func IsAuthRequired(path string, basePath string) bool {
	// Check root-only endpoints first
	for _, rg := range routeGroups {
		if rg.AtHostRoot {
			if pathMatchesPrefix(path, rg.PathPrefix) {
				return rg.RequiresAuth
			}
		}
	}

	// Check public exceptions (paths that are always public)
	for _, exc := range publicExceptions {
		fullExc := basePath + exc
		if pathMatchesPrefix(path, fullExc) {
			return false
		}
	}

	// Check base-path-mounted endpoints
	for _, rg := range routeGroups {
		if !rg.AtHostRoot {
			fullPrefix := basePath + rg.PathPrefix
			if pathMatchesPrefix(path, fullPrefix) {
				return rg.RequiresAuth
			}
		}
	}

	// Default: require auth for unknown paths
	return true
}

// pathMatchesPrefix checks if path equals or is a subpath of prefix.
func pathMatchesPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	if len(path) > len(prefix) && path[:len(prefix)] == prefix {
		// Check for path separator
		if path[len(prefix)] == '/' {
			return true
		}
	}
	return false
}

// setupRoutes creates the chi router with all route groups mounted.
func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	// Global middleware stack (order matters for correct logging)
	// RequestID must come first so GetReqID works in the access log.
	// loggingMiddleware wraps response, Recoverer writes through wrapper,
	// so access log captures correct status for panics.
	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	if s.limiter != nil {
		r.Use(s.rateLimitMiddleware)
	}

	// Identity middleware for all routes (checks IsAuthRequired)
	r.Use(s.identityMiddleware)

	// Prometheus metrics at host root
	r.Handle("/metrics", promhttp.Handler())

	// Mount app endpoints under external_base_path
	if s.cfg.ExternalBasePath != "" {
		r.Route(s.cfg.ExternalBasePath, func(r chi.Router) {
			s.mountAppEndpoints(r)
		})
	} else {
		s.mountAppEndpoints(r)
	}

	return r
}

// mountAppEndpoints mounts app endpoints (may be under base path).
func (s *Server) mountAppEndpoints(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		// Health endpoint (public)
		r.Get("/healthz", api.HealthHandler)

		// Event endpoints
		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.eventsHandler.HandleList)
			r.Post("/", s.eventsHandler.HandleCreate)
			r.Get("/export.ics", s.eventsHandler.HandleExportICS)
			r.Post("/{eventID}/delete", s.eventsHandler.HandleDelete)
		})

		// Restore lives outside /events so restored ids read naturally
		r.Post("/restore/{eventID}", s.eventsHandler.HandleRestore)

		// Calendar range query across all users
		r.Get("/calendar", s.eventsHandler.HandleCalendar)

		// Invitation endpoints
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", s.notificationsHandler.HandleListPending)
			r.Post("/", s.notificationsHandler.HandleCreate)
			r.Get("/count", s.notificationsHandler.HandleCount)
			r.Post("/{notificationID}/accept", s.notificationsHandler.HandleAccept)
			r.Post("/{notificationID}/decline", s.notificationsHandler.HandleDecline)
		})
	})
}
