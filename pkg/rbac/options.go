package rbac

import (
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/entitle/pkg/audit"
	"github.com/platinummonkey/entitle/pkg/observability"
)

// DefaultCacheTTL is how long a persisted resolution is served without recomputing
const DefaultCacheTTL = 5 * time.Minute

type options struct {
	logger   *observability.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
	now      func() time.Time
	ttl      time.Duration
	recorder *audit.Recorder
	newID    func() string
}

// Option configures the resolver, cache, checker and service
type Option func(*options)

func newOptions(opts []Option) options {
	o := options{
		logger: observability.NopLogger(),
		tracer: observability.Tracer(),
		now:    time.Now,
		ttl:    DefaultCacheTTL,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger
func WithLogger(l *observability.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets Prometheus metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer overrides the OpenTelemetry tracer
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithClock overrides time.Now, used for expiry checks and cache freshness
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithCacheTTL sets the cache freshness window. Non-positive values keep the default.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithRecorder sets the audit recorder used by Service
func WithRecorder(r *audit.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithIDGenerator replaces uuid.NewString for records created by Service
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}
