package admin

import (
	"net/http"

	"github.com/leeforge/bot/errors"
	"github.com/leeforge/bot/json"
)

// Response is the envelope of every admin API answer.
type Response struct {
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
	Meta  Meta   `json:"meta"`
}

// Error is the error part of a Response.
type Error struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Meta carries request bookkeeping.
type Meta struct {
	TraceID string `json:"traceId,omitempty"`
	Took    int64  `json:"took"`
	Total   *int   `json:"total,omitempty"`
}

type option func(*Meta)

func withTotal(n int) option {
	return func(m *Meta) { m.Total = &n }
}

func newMeta(r *http.Request, opts ...option) Meta {
	meta := Meta{
		TraceID: TraceID(r.Context()),
		Took:    RequestDuration(r.Context()),
	}
	for _, opt := range opts {
		opt(&meta)
	}
	return meta
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		raw = []byte(`{"error":{"type":"internal","message":"encode failed"},"meta":{}}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

func ok(w http.ResponseWriter, r *http.Request, data any, opts ...option) {
	writeJSON(w, http.StatusOK, &Response{Data: data, Meta: newMeta(r, opts...)})
}

// fail answers with the status and type carried by err.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	appErr := errors.FromError(err)
	body := &Error{
		Type:    string(appErr.Type),
		Message: appErr.Error(),
		Details: appErr.Details,
	}
	writeJSON(w, errors.StatusOf(err), &Response{Error: body, Meta: newMeta(r)})
}
