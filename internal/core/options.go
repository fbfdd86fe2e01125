package core

import (
	"context"
	"time"

	"fieldparty/internal/codec"
	"fieldparty/pkg/domain"
)

const (
	// DefaultMaxAttempts bounds how often a mutation is re-applied after losing a version race.
	DefaultMaxAttempts = 5
	// DefaultRetryBackoff is the base delay between attempts; attempt n waits n times this.
	DefaultRetryBackoff = 2 * time.Millisecond
)

// Logger is the structured logging contract used by the session layer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Clock supplies timestamps for CreatedAt/UpdatedAt.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type options struct {
	clock        Clock
	logger       Logger
	metrics      MetricsRecorder
	tracer       Tracer
	codec        codec.Codec
	maxAttempts  int
	retryBackoff time.Duration
}

func defaultOptions() options {
	c, _ := codec.New(codec.JSON)
	return options{
		clock:        systemClock{},
		logger:       noopLogger{},
		metrics:      noopMetrics{},
		tracer:       noopTracer{},
		codec:        c,
		maxAttempts:  DefaultMaxAttempts,
		retryBackoff: DefaultRetryBackoff,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Option customises a SessionStore or manager.
type Option func(*options)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger routes diagnostics to l.
func WithLogger(l Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records operation outcomes and version conflicts on m.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer wraps every manager operation in a span.
func WithTracer(t Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithCodec selects the payload encoding.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithMaxAttempts sets the retry ceiling; values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.maxAttempts = n
		}
	}
}

// WithRetryBackoff sets the base delay between conflicting attempts. Zero disables waiting.
func WithRetryBackoff(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.retryBackoff = d
		}
	}
}

// run wraps a manager operation with tracing, metrics and logging.
func (o *options) run(ctx context.Context, operation string, fn func(context.Context) error, attrs ...any) error {
	start := o.clock.Now()
	ctx, span := o.tracer.Start(ctx, operation)
	err := fn(ctx)
	span.End(err)
	o.metrics.Observe(ctx, operation, err, o.clock.Now().Sub(start))
	args := append([]any{"operation", operation}, attrs...)
	switch domain.Classify(err) {
	case "ok":
		o.logger.Debug("session operation applied", args...)
	case "contention":
		o.logger.Warn("session operation gave up under contention", append(args, "error", err)...)
	case "error":
		o.logger.Error("session operation failed", append(args, "error", err)...)
	default:
		o.logger.Info("session operation rejected", append(args, "error", err)...)
	}
	return err
}
