package rbac

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/entitle/pkg/observability"
	"github.com/platinummonkey/entitle/pkg/permission"
)

// Resolver computes a membership's permissions from current store state. It
// keeps no state between calls.
type Resolver struct {
	store    Store
	registry *permission.Registry
	logger   *observability.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

// NewResolver creates a Resolver. registry maps stored permissions to bits.
func NewResolver(store Store, registry *permission.Registry, opts ...Option) *Resolver {
	o := newOptions(opts)
	return &Resolver{
		store:    store,
		registry: registry,
		logger:   o.logger,
		metrics:  o.metrics,
		tracer:   o.tracer,
		now:      o.now,
	}
}

// Resolve returns the permissions of userID in orgID. Non-members and inactive
// members resolve to zero without error.
func (r *Resolver) Resolve(ctx context.Context, userID, orgID string) (permission.Mask, error) {
	m, err := r.store.GetMembership(ctx, userID, orgID)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		r.metrics.StoreError(SourceMembership)
		return 0, sourceErr(SourceMembership, err)
	}
	return r.ResolveMembership(ctx, m)
}

// ResolveMembership resolves an already loaded membership. Reads for the four
// entitlement sources and the overrides run concurrently; the first failure
// aborts the whole resolution.
func (r *Resolver) ResolveMembership(ctx context.Context, m *Membership) (permission.Mask, error) {
	if !m.Active() {
		r.metrics.ObserveResolution("inactive", 0)
		return 0, nil
	}

	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "rbac.Resolve", trace.WithAttributes(
		attribute.String("membership.id", m.ID),
		attribute.String("organization.id", m.OrganizationID),
	))
	defer span.End()

	now := r.now()

	var (
		org    *Organization
		tier   permission.Mask
		addons permission.Mask
		roles  permission.Mask
		ops    []OverrideOp
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		org, err = r.readOrganization(gctx, m.OrganizationID)
		if err != nil || org == nil {
			return err
		}
		tier, err = r.readTier(gctx, org)
		return err
	})
	g.Go(func() error {
		var err error
		addons, err = r.readAddons(gctx, m.OrganizationID, now)
		return err
	})
	g.Go(func() error {
		var err error
		roles, err = r.readRoles(gctx, m)
		return err
	})
	g.Go(func() error {
		var err error
		ops, err = r.readOverrides(gctx, m.ID, now)
		return err
	})

	if err := g.Wait(); err != nil {
		var se *SourceError
		if errors.As(err, &se) {
			r.metrics.StoreError(se.Source)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolution failed")
		r.metrics.ObserveResolution("error", time.Since(start))
		return 0, err
	}

	if org == nil {
		r.metrics.ObserveResolution("orphaned", time.Since(start))
		return 0, nil
	}

	mask := tier | readCustom(org)
	mask |= addons
	mask |= roles
	mask = ApplyOverrides(mask, ops)

	span.SetAttributes(attribute.Int("permissions.count", mask.Count()))
	r.metrics.ObserveResolution("ok", time.Since(start))
	return mask, nil
}
