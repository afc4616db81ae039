// Package shield provides reusable HTTP security middleware for the cahier
// API: security headers, JSON body limits, request tracing, and rate
// limiting.
//
// Usage:
//
//	r := chi.NewRouter()
//	r.Use(shield.SecurityHeaders(shield.DefaultHeaders()))
//	r.Use(shield.MaxJSONBody(1 << 20))
//	r.Use(shield.TraceID)
//	r.Use(shield.NewRateLimiter(db).Middleware)
//
// Or apply the default stack in one call:
//
//	stack, rl := shield.DefaultAPIStack(db)
//	rl.StartReloader(done)
//	for _, mw := range stack {
//	    r.Use(mw)
//	}
package shield

import (
	"database/sql"
	"net/http"
)

type contextKey string

const (
	// LoggerKey is the context key for the per-request structured logger.
	LoggerKey contextKey = "shield_logger"

	// TraceIDKey is the context key for the request trace ID.
	TraceIDKey contextKey = "shield_trace_id"
)

// DefaultAPIStack returns the standard middleware stack for the cahier API.
// Middleware is ordered: SecurityHeaders → MaxJSONBody → TraceID →
// RateLimiter. The returned RateLimiter handle allows callers to start the
// rule reloader.
func DefaultAPIStack(db *sql.DB, excludePrefixes ...string) ([]func(http.Handler) http.Handler, *RateLimiter) {
	rl := NewRateLimiter(db, excludePrefixes...)
	return []func(http.Handler) http.Handler{
		SecurityHeaders(DefaultHeaders()),
		MaxJSONBody(1 << 20),
		TraceID,
		rl.Middleware,
	}, rl
}
