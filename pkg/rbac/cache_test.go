package rbac_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/entitle/pkg/observability"
	"github.com/platinummonkey/entitle/pkg/permission"
	"github.com/platinummonkey/entitle/pkg/rbac"
)

func TestCache_FreshWithinTTL(t *testing.T) {
	f := newFixture(t)
	f.org("acme", 0b1)
	f.member("m1", "alice", "acme", rbac.MemberStatusActive)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	checker := f.checker(rbac.WithMetrics(metrics))

	mask, err := checker.RefreshAndStore(f.ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, permission.Mask(0b1), mask)

	// a change that the cache must not see yet
	f.role("r1", "acme", 0b10)
	f.assign("m1", "r1")
	f.now = f.now.Add(4 * time.Minute)

	first, err := checker.GetEffectivePermissions(f.ctx, "alice", "acme")
	require.NoError(t, err)
	second, err := checker.GetEffectivePermissions(f.ctx, "alice", "acme")
	require.NoError(t, err)
	assert.Equal(t, permission.Mask(0b1), first)
	assert.Equal(t, first, second)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.CacheLookupsTotal.WithLabelValues("hit")))

	// past the TTL the read recomputes
	f.now = f.now.Add(2 * time.Minute)
	mask, err = checker.GetEffectivePermissions(f.ctx, "alice", "acme")
	require.NoError(t, err)
	assert.Equal(t, permission.Mask(0b11), mask)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheLookupsTotal.WithLabelValues("stale")))
}

func TestCache_RefreshReflectsChangeImmediately(t *testing.T) {
	f := newFixture(t)
	f.org("acme", 0b1)
	f.member("m1", "alice", "acme", rbac.MemberStatusActive)
	checker := f.checker()

	_, err := checker.RefreshAndStore(f.ctx, "m1")
	require.NoError(t, err)

	f.role("r1", "acme", 0b100)
	f.assign("m1", "r1")
	_, err = checker.RefreshAndStore(f.ctx, "m1")
	require.NoError(t, err)

	mask, err := checker.GetEffectivePermissions(f.ctx, "alice", "acme")
	require.NoError(t, err)
	assert.Equal(t, permission.Mask(0b101), mask)
}

func TestCache_ReadPathNeverWrites(t *testing.T) {
	f := newFixture(t)
	f.org("acme", 0b1)
	f.member("m1", "alice", "acme", rbac.MemberStatusActive)
	checker := f.checker()

	mask, err := checker.GetEffectivePermissions(f.ctx, "alice", "acme")
	require.NoError(t, err)
	assert.Equal(t, permission.Mask(0b1), mask)

	m, err := f.store.GetMembershipByID(f.ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, m.PermissionsLastComputedAt)
	assert.Zero(t, m.ComputedPermissions)
}

func TestCache_RefreshPersistsTimestamp(t *testing.T) {
	f := newFixture(t)
	f.org("acme", 0b11)
	f.member("m1", "alice", "acme", rbac.MemberStatusActive)

	_, err := f.checker().RefreshAndStore(f.ctx, "m1")
	require.NoError(t, err)

	m, err := f.store.GetMembershipByID(f.ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, permission.Mask(0b11), m.ComputedPermissions)
	require.NotNil(t, m.PermissionsLastComputedAt)
	assert.True(t, m.PermissionsLastComputedAt.Equal(f.now))
	assert.Equal(t, time.UTC, m.PermissionsLastComputedAt.Location())
}

func TestCache_RefreshInactivePersistsZero(t *testing.T) {
	f := newFixture(t)
	f.org("acme", 0b11)
	f.member("m1", "alice", "acme", rbac.MemberStatusActive)
	checker := f.checker()

	_, err := checker.RefreshAndStore(f.ctx, "m1")
	require.NoError(t, err)

	require.NoError(t, f.store.UpdateMembershipStatus(f.ctx, "m1", rbac.MemberStatusSuspended, f.now))
	mask, err := checker.RefreshAndStore(f.ctx, "m1")
	require.NoError(t, err)
	assert.Zero(t, mask)

	m, err := f.store.GetMembershipByID(f.ctx, "m1")
	require.NoError(t, err)
	assert.Zero(t, m.ComputedPermissions)

	// the stale nonzero value is never served for an inactive member
	mask, err = checker.GetEffectivePermissions(f.ctx, "alice", "acme")
	require.NoError(t, err)
	assert.Zero(t, mask)
}

func TestCache_RefreshMissingMembership(t *testing.T) {
	f := newFixture(t)
	_, err := f.checker().RefreshAndStore(f.ctx, "nope")
	assert.ErrorIs(t, err, rbac.ErrNotFound)
	assert.NotErrorIs(t, err, rbac.ErrStoreUnavailable)
}

func TestCache_RefreshFailureLeavesCacheUntouched(t *testing.T) {
	f := newFixture(t)
	f.org("acme", 0b1)
	f.member("m1", "alice", "acme", rbac.MemberStatusActive)

	store := &failingStore{Store: f.store, fail: "roles"}
	checker := rbac.NewPermissionChecker(store, f.registry, f.opts()...)
	_, err := checker.RefreshAndStore(f.ctx, "m1")
	require.ErrorIs(t, err, rbac.ErrStoreUnavailable)

	store.fail = "patch"
	_, err = checker.RefreshAndStore(f.ctx, "m1")
	require.Error(t, err)

	m, err := f.store.GetMembershipByID(f.ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, m.PermissionsLastComputedAt)
}

func TestCache_Fresh(t *testing.T) {
	f := newFixture(t)
	cache := f.checker(rbac.WithCacheTTL(time.Minute)).Cache()
	assert.Equal(t, time.Minute, cache.TTL())

	assert.False(t, cache.Fresh(&rbac.Membership{}))

	ts := f.now.Add(-59 * time.Second)
	assert.True(t, cache.Fresh(&rbac.Membership{PermissionsLastComputedAt: &ts}))

	ts = f.now.Add(-time.Minute)
	assert.False(t, cache.Fresh(&rbac.Membership{PermissionsLastComputedAt: &ts}))
}

func TestCache_DefaultTTL(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, rbac.DefaultCacheTTL, f.checker(rbac.WithCacheTTL(0)).Cache().TTL())
}
