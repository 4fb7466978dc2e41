package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/entitle/pkg/observability"
)

// Recorder appends entries to a sink without ever failing the caller
type Recorder struct {
	sink     Sink
	sinkName string
	logger   *observability.Logger
	metrics  *observability.Metrics
	now      func() time.Time
	newID    func() string
}

// Option configures a Recorder
type Option func(*Recorder)

// WithLogger sets the logger used to surface write failures
func WithLogger(l *observability.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// WithMetrics sets the metrics used to count write failures
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithSinkName sets the label used for failure metrics
func WithSinkName(name string) Option {
	return func(r *Recorder) { r.sinkName = name }
}

// NewRecorder creates a Recorder writing to sink
func NewRecorder(sink Sink, opts ...Option) *Recorder {
	r := &Recorder{
		sink:     sink,
		sinkName: "default",
		logger:   observability.NopLogger(),
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends one entry and returns its ID. The ID is returned even when the
// write fails so callers can correlate logs.
func (r *Recorder) Record(ctx context.Context, action Action, orgID, actorID string, target *Target, metadata map[string]interface{}) string {
	entry := &Entry{
		ID:             r.newID(),
		OrganizationID: orgID,
		ActorID:        actorID,
		Action:         action,
		Metadata:       metadata,
		CreatedAt:      r.now().UTC(),
	}
	if target != nil {
		entry.Target = *target
	}
	if info, ok := clientInfoFromContext(ctx); ok {
		entry.IPAddress = info.ip
		entry.UserAgent = info.userAgent
	}

	if r.sink == nil {
		return entry.ID
	}

	if err := r.sink.AppendAuditEntry(ctx, entry); err != nil {
		r.metrics.AuditFailure(r.sinkName)
		observability.FromContext(ctx, r.logger).
			WithError(err).
			WithFields(map[string]interface{}{
				"audit_id":        entry.ID,
				"action":          string(action),
				"organization_id": orgID,
				"actor_id":        actorID,
			}).
			Error("Failed to write audit entry")
		return entry.ID
	}

	r.metrics.AuditRecorded(string(action))
	return entry.ID
}

type clientInfo struct {
	ip        string
	userAgent string
}

type contextKey string

const clientInfoKey contextKey = "audit_client_info"

// WithClientInfo attaches the caller's address and user agent to ctx so entries
// recorded under it carry them.
func WithClientInfo(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientInfoKey, clientInfo{ip: ip, userAgent: userAgent})
}

func clientInfoFromContext(ctx context.Context) (clientInfo, bool) {
	info, ok := ctx.Value(clientInfoKey).(clientInfo)
	return info, ok
}
