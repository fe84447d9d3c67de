// Package middleware provides HTTP middleware for the storesync server.
//
// This package includes:
//   - OpenTelemetry tracing middleware
//   - Prometheus metrics middleware
//
// Both take the route from chi's routing context when one is present, so
// label and span cardinality stays bounded by the number of routes rather
// than the number of keys:
//
//	r := chi.NewRouter()
//	r.Use(
//	    middleware.OpenTelemetry(),
//	    middleware.Prometheus(middleware.WithRegistry(reg)),
//	)
//
// The wrapped ResponseWriter implements http.Hijacker and http.Flusher, so
// WebSocket upgrades pass through both middlewares.
package middleware
