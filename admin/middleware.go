package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const (
	traceIDKey   contextKey = "trace_id"
	startTimeKey contextKey = "start_time"

	// TraceIDHeader carries the request trace id both ways.
	TraceIDHeader = "X-Trace-ID"
)

// traceMiddleware reuses the caller's trace id or assigns a new one, and
// records when the request started.
func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		w.Header().Set(TraceIDHeader, traceID)

		ctx := context.WithValue(r.Context(), traceIDKey, traceID)
		ctx = context.WithValue(ctx, startTimeKey, time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TraceID returns the request trace id, empty outside the admin API.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// RequestDuration returns the milliseconds since the request started.
func RequestDuration(ctx context.Context) int64 {
	if start, ok := ctx.Value(startTimeKey).(time.Time); ok {
		return time.Since(start).Milliseconds()
	}
	return 0
}
