package core

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"fieldparty/pkg/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder receives operation outcomes from managers and version
// conflicts from SessionStore.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, err error, duration time.Duration)
	Conflict(ctx context.Context, kind domain.Kind)
}

// Tracer starts a span per manager operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation result.
type TraceSpan interface {
	End(err error)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, error, time.Duration) {}
func (noopMetrics) Conflict(context.Context, domain.Kind)                 {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// PrometheusRecorder exports operation counters, latencies and conflict counts.
type PrometheusRecorder struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	conflicts  *prometheus.CounterVec
}

// NewPrometheusRecorder registers the fieldparty collectors on reg. A nil reg
// uses a private registry, which keeps repeated construction in tests safe.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	r := &PrometheusRecorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldparty",
			Name:      "operations_total",
			Help:      "Session operations by outcome.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fieldparty",
			Name:      "operation_duration_seconds",
			Help:      "Session operation latency including lock wait and retries.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"operation"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldparty",
			Name:      "version_conflicts_total",
			Help:      "Store-level compare-and-set conflicts that forced a retry.",
		}, []string{"kind"}),
	}
	for _, c := range []prometheus.Collector{r.operations, r.durations, r.conflicts} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, err error, duration time.Duration) {
	if operation == "" {
		return
	}
	r.operations.WithLabelValues(operation, domain.Classify(err)).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// Conflict implements MetricsRecorder.
func (r *PrometheusRecorder) Conflict(_ context.Context, kind domain.Kind) {
	r.conflicts.WithLabelValues(string(kind)).Inc()
}

// Operations exposes the operations counter for inspection.
func (r *PrometheusRecorder) Operations() *prometheus.CounterVec { return r.operations }

// Conflicts exposes the conflict counter for inspection.
func (r *PrometheusRecorder) Conflicts() *prometheus.CounterVec { return r.conflicts }

// JSONTraceEntry represents a serialized trace span emitted by JSONTraceTracer.
type JSONTraceEntry struct {
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer serializes spans to a writer and retains them for inspection.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
}

// NewJSONTracer constructs a tracer that writes spans as JSON lines to w.
// A nil writer only retains entries.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	var enc *json.Encoder
	if w != nil {
		enc = json.NewEncoder(w)
	}
	return &JSONTraceTracer{enc: enc}
}

// Entries returns a copy of all recorded spans.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]JSONTraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{tracer: t, operation: operation, started: time.Now().UTC()}
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	operation string
	started   time.Time
}

func (s *jsonTraceSpan) End(err error) {
	var errMsg string
	if err != nil {
		errMsg = err.Error()
	}
	ended := time.Now().UTC()
	entry := JSONTraceEntry{
		Operation:  s.operation,
		Status:     domain.Classify(err),
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		Error:      errMsg,
		StartedAt:  s.started,
		EndedAt:    ended,
	}

	s.tracer.mu.Lock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(entry)
	}
	s.tracer.mu.Unlock()
}
