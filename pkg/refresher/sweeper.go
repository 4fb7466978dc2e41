package refresher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/entitle/pkg/async"
	"github.com/platinummonkey/entitle/pkg/observability"
	"github.com/platinummonkey/entitle/pkg/permission"
	"github.com/platinummonkey/entitle/pkg/rbac"
)

// StaleLister finds memberships whose persisted cache needs recomputing
type StaleLister interface {
	ListStaleMemberships(ctx context.Context, cutoff time.Time, limit int) ([]rbac.Membership, error)
}

// Refresher recomputes and persists one membership
type Refresher interface {
	RefreshAndStore(ctx context.Context, membershipID string) (permission.Mask, error)
}

// Config tunes a sweep
type Config struct {
	TTL     time.Duration // memberships computed before now-TTL are stale
	Batch   int           // memberships per sweep
	Workers int           // concurrent refreshes
	Timeout time.Duration // per membership
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = rbac.DefaultCacheTTL
	}
	if c.Batch <= 0 {
		c.Batch = 500
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// Result summarises one sweep
type Result struct {
	Scanned   int
	Refreshed int
	Skipped   int // deleted between listing and refresh
	Failed    int
	Duration  time.Duration
}

// Option configures a Sweeper
type Option func(*Sweeper)

// WithLogger sets the logger
func WithLogger(l *observability.Logger) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets Prometheus metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

// WithClock overrides time.Now when computing the staleness cutoff
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// Sweeper periodically refreshes stale memberships
type Sweeper struct {
	lister    StaleLister
	refresher Refresher
	cfg       Config
	logger    *observability.Logger
	metrics   *observability.Metrics
	now       func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// New creates a Sweeper. Zero fields in cfg take defaults.
func New(lister StaleLister, refresher Refresher, cfg Config, opts ...Option) *Sweeper {
	s := &Sweeper{
		lister:    lister,
		refresher: refresher,
		cfg:       cfg.withDefaults(),
		logger:    observability.NopLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithField("component", "refresher")
	return s
}

// RunOnce refreshes one page of stale memberships. It returns an error only
// when the page itself cannot be listed.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	start := s.now()
	cutoff := start.Add(-s.cfg.TTL).UTC()

	stale, err := s.lister.ListStaleMemberships(ctx, cutoff, s.cfg.Batch)
	if err != nil {
		s.metrics.StoreError(rbac.SourceMembership)
		return Result{}, fmt.Errorf("failed to list stale memberships: %w", err)
	}

	res := Result{Scanned: len(stale)}
	errs := async.Batch(ctx, stale, s.cfg.Workers, s.cfg.Timeout, func(ctx context.Context, m rbac.Membership) error {
		_, err := s.refresher.RefreshAndStore(ctx, m.ID)
		return err
	})
	for i, err := range errs {
		switch {
		case err == nil:
			res.Refreshed++
		case errors.Is(err, rbac.ErrNotFound):
			res.Skipped++
		default:
			res.Failed++
			s.logger.WithFields(map[string]interface{}{
				"membership_id":   stale[i].ID,
				"organization_id": stale[i].OrganizationID,
			}).WithError(err).Warn("Failed to refresh membership permissions")
		}
	}
	res.Duration = s.now().Sub(start)

	s.metrics.ObserveSweep(res.Refreshed, res.Failed, res.Duration)
	if res.Scanned > 0 {
		s.logger.WithFields(map[string]interface{}{
			"scanned":   res.Scanned,
			"refreshed": res.Refreshed,
			"skipped":   res.Skipped,
			"failed":    res.Failed,
			"duration":  res.Duration.String(),
		}).Info("Stale membership sweep finished")
	}
	return res, nil
}

// Start schedules RunOnce on a cron spec such as "@every 1m" or "*/5 * * * *".
// A tick that fires while the previous sweep is still running is skipped.
func (s *Sweeper) Start(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("sweeper already started")
	}

	logger := cronLogger{s.logger}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))
	if _, err := c.AddFunc(schedule, s.tick); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c

	s.logger.WithFields(map[string]interface{}{
		"schedule": schedule,
		"ttl":      s.cfg.TTL.String(),
		"batch":    s.cfg.Batch,
	}).Info("Stale membership sweeper started")
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to end
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		s.logger.Info("Stale membership sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) tick() {
	if _, err := s.RunOnce(context.Background()); err != nil {
		s.logger.WithError(err).Error("Stale membership sweep failed")
	}
}

// cronLogger routes robfig/cron's key/value logging to the service logger
type cronLogger struct {
	logger *observability.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).WithError(err).Error("cron: " + msg)
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
