// Package metrics keeps in-process counters for the bot: commands run,
// platform events seen, module states and admin API requests.
package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Metric types.
const (
	TypeCounter   = "counter"
	TypeGauge     = "gauge"
	TypeHistogram = "histogram"
)

const historySize = 100

// Collector holds every metric by name and label set.
type Collector struct {
	metrics map[string]*Metric
	mu      sync.RWMutex
	now     func() time.Time
}

// Metric is one series.
type Metric struct {
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	History   []float64         `json:"history,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

func NewCollector() *Collector {
	return &Collector{
		metrics: make(map[string]*Metric),
		now:     time.Now,
	}
}

// IncCounter adds one to a counter.
func (c *Collector) IncCounter(name string, labels map[string]string) {
	c.AddCounter(name, 1, labels)
}

func (c *Collector) AddCounter(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := buildKey(name, labels)
	if metric, exists := c.metrics[key]; exists {
		metric.Value += value
		metric.Timestamp = c.now().Unix()
		return
	}
	c.metrics[key] = &Metric{
		Name:      name,
		Type:      TypeCounter,
		Value:     value,
		Labels:    copyLabels(labels),
		Timestamp: c.now().Unix(),
	}
}

func (c *Collector) SetGauge(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics[buildKey(name, labels)] = &Metric{
		Name:      name,
		Type:      TypeGauge,
		Value:     value,
		Labels:    copyLabels(labels),
		Timestamp: c.now().Unix(),
	}
}

// ObserveHistogram records value. Value holds the latest observation and
// History the last hundred.
func (c *Collector) ObserveHistogram(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := buildKey(name, labels)
	if metric, exists := c.metrics[key]; exists {
		metric.Value = value
		metric.History = append(metric.History, value)
		if len(metric.History) > historySize {
			metric.History = metric.History[1:]
		}
		metric.Timestamp = c.now().Unix()
		return
	}
	c.metrics[key] = &Metric{
		Name:      name,
		Type:      TypeHistogram,
		Value:     value,
		Labels:    copyLabels(labels),
		History:   []float64{value},
		Timestamp: c.now().Unix(),
	}
}

// RecordCommand counts a dispatched command by outcome and observes its
// duration.
func (c *Collector) RecordCommand(moduleID, command, outcome string, took time.Duration) {
	labels := map[string]string{
		"module":  moduleID,
		"command": command,
		"outcome": outcome,
	}
	c.IncCounter("commands_total", labels)
	c.ObserveHistogram("command_duration_seconds", took.Seconds(), map[string]string{
		"module":  moduleID,
		"command": command,
	})
}

// RecordEvent counts a platform event.
func (c *Collector) RecordEvent(name string) {
	c.IncCounter("events_total", map[string]string{"event": name})
}

// SetModuleStates replaces the per-state module gauges.
func (c *Collector) SetModuleStates(counts map[string]int) {
	for state, n := range counts {
		c.SetGauge("modules", float64(n), map[string]string{"state": state})
	}
}

// RecordRequest counts an admin API request.
func (c *Collector) RecordRequest(method, path string, status int, took time.Duration) {
	labels := map[string]string{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	c.IncCounter("http_requests_total", labels)
	c.ObserveHistogram("http_request_duration_seconds", took.Seconds(), map[string]string{
		"method": method,
		"path":   path,
	})
}

// Get returns a copy of one series, or nil.
func (c *Collector) Get(name string, labels map[string]string) *Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.metrics[buildKey(name, labels)]
	if !ok {
		return nil
	}
	return m.clone()
}

// Snapshot returns copies of all series ordered by key.
func (c *Collector) Snapshot() []*Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.metrics))
	for k := range c.metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Metric, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.metrics[k].clone())
	}
	return out
}

func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = make(map[string]*Metric)
}

// Middleware records every request served by next. The path label is the
// route pattern when pattern returns one, so ids do not explode the series.
func (c *Collector) Middleware(pattern func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			path := r.URL.Path
			if pattern != nil {
				if p := pattern(r); p != "" {
					path = p
				}
			}
			c.RecordRequest(r.Method, path, ww.statusCode, time.Since(start))
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// buildKey orders labels so equal label sets share a series.
func buildKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range names {
		b.WriteString(":" + k + "=" + labels[k])
	}
	return b.String()
}

func copyLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

func (m *Metric) clone() *Metric {
	cp := *m
	cp.Labels = copyLabels(m.Labels)
	if m.History != nil {
		cp.History = append([]float64(nil), m.History...)
	}
	return &cp
}
