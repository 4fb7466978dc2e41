package rbac_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/entitle/pkg/permission"
	"github.com/platinummonkey/entitle/pkg/rbac"
)

func TestResolve_CombinedSources(t *testing.T) {
	f := newFixture(t)
	f.org("acme", 0b0111)
	f.member("m1", "alice", "acme", rbac.MemberStatusActive)
	f.role("r1", "acme", 0b1000)
	f.assign("m1", "r1")
	f.override("allow5", "m1", f.codeAt(5), true, nil, f.now)
	f.override("deny1", "m1", f.codeAt(1), false, nil, f.now)

	resolver := rbac.NewResolver(f.store, f.registry, f.opts()...)
	mask, err := resolver.Resolve(f.ctx, "alice", "acme")
	require.NoError(t, err)
	assert.Equal(t, permission.Mask(0b101101), mask)
}

func TestResolve_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.org("acme", 0b11)
	f.member("m1", "alice", "acme", rbac.MemberStatusActive)
	f.role("r1", "acme", 0b110000)
	f.assign("m1", "r1")

	resolver := rbac.NewResolver(f.store, f.registry, f.opts()...)
	first, err := resolver.Resolve(f.ctx, "alice", "acme")
	require.NoError(t, err)
	second, err := resolver.Resolve(f.ctx, "alice", "acme")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, permission.Mask(0b110011), first)
}

func TestResolve_AllSourcesUnion(t *testing.T) {
	f := newFixture(t)
	f.org("acme", 0b1)
	require.NoError(t, f.store.SetCustomPermissions(f.ctx, "acme", permission.Mask(1)<<9))
	f.member("m1", "alice", "acme", rbac.MemberStatusActive)
	f.addon("a1", "acme", "integrations.slack", nil)
	f.role("r1", "acme", 0b100)
	f.assign("m1", "r1")

	mask, err := rbac.NewResolver(f.store, f.registry, f.opts()...).Resolve(f.ctx, "alice", "acme")
	require.NoError(t, err)

	for _, bit := range []int{0, 2, 9, f.bit("integrations.slack")} {
		assert.True(t, mask.Has(bit), "bit %d", bit)
	}
	assert.Equal(t, 4, mask.Count())
}

func TestResolve_DenyWinsRegardlessOfOrder(t *testing.T) {
	for _, denyFirst := range []bool{true, false} {
		t.Run(map[bool]string{true: "deny first", false: "allow first"}[denyFirst], func(t *testing.T) {
			f := newFixture(t)
			f.org("acme", 0)
			f.member("m1", "alice", "acme", rbac.MemberStatusActive)
			f.role("r1", "acme", permission.Mask(0).Set(f.bit("crm.deals")))
			f.assign("m1", "r1")

			early, late := f.now.Add(-2*time.Hour), f.now.Add(-time.Hour)
			denyAt, allowAt := early, late
			if !denyFirst {
				denyAt, allowAt = late, early
			}
			f.override("deny", "m1", "crm.deals", false, nil, denyAt)
			f.override("allow", "m1", "crm.deals", true, nil, allowAt)

			mask, err := rbac.NewResolver(f.store, f.registry, f.opts()...).Resolve(f.ctx, "alice", "acme")
			require.NoError(t, err)
			assert.False(t, mask.Has(f.bit("crm.deals")))
		})
	}
}

func TestResolve_ExpiredGrantsContributeNothing(t *testing.T) {
	f := newFixture(t)
	f.org("acme", 0b11)
	f.member("m1", "alice", "acme", rbac.MemberStatusActive)

	past := f.now.Add(-time.Minute)
	f.addon("a1", "acme", "support.priority", &past)
	f.override("allow", "m1", "api.access", true, &past, f.now.Add(-time.Hour))
	f.override("deny", "m1", "profile.view", false, &past, f.now.Add(-time.Hour))

	mask, err := rbac.NewResolver(f.store, f.registry, f.opts()...).Resolve(f.ctx, "alice", "acme")
	require.NoError(t, err)
	assert.Equal(t, permission.Mask(0b11), mask)
}

func TestResolve_ExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	f.org("acme", 0)
	f.member("m1", "alice", "acme", rbac.MemberStatusActive)

	expires := f.now.Add(time.Minute)
	f.override("allow", "m1", "api.access", true, &expires, f.now)

	resolver := rbac.NewResolver(f.store, f.registry, f.opts()...)
	mask, err := resolver.Resolve(f.ctx, "alice", "acme")
	require.NoError(t, err)
	assert.True(t, mask.Has(f.bit("api.access")))

	f.now = expires
	mask, err = resolver.Resolve(f.ctx, "alice", "acme")
	require.NoError(t, err)
	assert.False(t, mask.Has(f.bit("api.access")))
}

func TestResolve_InactiveMembershipIsZero(t *testing.T) {
	for _, status := range []rbac.MemberStatus{rbac.MemberStatusInvited, rbac.MemberStatusSuspended, rbac.MemberStatusLeft} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			f.org("acme", 0b1111)
			f.member("m1", "alice", "acme", status)
			f.role("r1", "acme", permission.All)
			f.assign("m1", "r1")
			f.override("allow", "m1", "api.access", true, nil, f.now)

			mask, err := rbac.NewResolver(f.store, f.registry, f.opts()...).Resolve(f.ctx, "alice", "acme")
			require.NoError(t, err)
			assert.Zero(t, mask)
		})
	}
}

func TestResolve_NonMemberIsZero(t *testing.T) {
	f := newFixture(t)
	f.org("acme", 0b1111)

	mask, err := rbac.NewResolver(f.store, f.registry, f.opts()...).Resolve(f.ctx, "mallory", "acme")
	require.NoError(t, err)
	assert.Zero(t, mask)
}

func TestResolve_MissingOrganizationIsZero(t *testing.T) {
	f := newFixture(t)
	f.org("acme", 0b1111)
	f.member("m1", "alice", "acme", rbac.MemberStatusActive)
	f.role("r1", "acme", 0b10000)
	f.assign("m1", "r1")
	require.NoError(t, f.store.DeleteOrganization(f.ctx, "acme"))

	mask, err := rbac.NewResolver(f.store, f.registry, f.opts()...).Resolve(f.ctx, "alice", "acme")
	require.NoError(t, err)
	assert.Zero(t, mask)
}

func TestResolve_DanglingReferencesAreSkipped(t *testing.T) {
	f := newFixture(t)
	f.org("acme", 0b1)
	f.org("other", 0)
	f.member("m1", "alice", "acme", rbac.MemberStatusActive)

	// role deleted without cascading its assignment
	f.role("gone", "acme", 0b10)
	f.assign("m1", "gone")
	require.NoError(t, f.store.PurgeRole(f.ctx, "gone"))

	// role belonging to another organization
	f.role("foreign", "other", 0b100)
	f.assign("m1", "foreign")

	// permission row removed after the override was granted
	f.override("stale", "m1", "api.access", true, nil, f.now)
	require.NoError(t, f.store.DeletePermission(f.ctx, rbac.PermissionID("api.access")))

	// permission row whose code the registry does not carry
	require.NoError(t, f.store.UpsertPermission(f.ctx, &rbac.Permission{ID: "legacy", Code: "legacy.reports", BitPosition: 40}))
	require.NoError(t, f.store.CreateOverride(f.ctx, &rbac.PermissionOverride{ID: "legacy-allow", MembershipID: "m1", PermissionID: "legacy", Allow: true}))
	require.NoError(t, f.store.CreateAddon(f.ctx, &rbac.AddonGrant{ID: "legacy-addon", OrganizationID: "acme", PermissionID: "legacy", IsActive: true}))

	mask, err := rbac.NewResolver(f.store, f.registry, f.opts()...).Resolve(f.ctx, "alice", "acme")
	require.NoError(t, err)
	assert.Equal(t, permission.Mask(0b1), mask)
}

func TestResolve_FailsClosedOnStoreError(t *testing.T) {
	sources := []string{"membership", "organization", "tier", "addons", "roles", "overrides"}
	for _, source := range sources {
		t.Run(source, func(t *testing.T) {
			f := newFixture(t)
			f.org("acme", permission.All)
			f.member("m1", "alice", "acme", rbac.MemberStatusActive)
			store := &failingStore{Store: f.store, fail: source}

			mask, err := rbac.NewResolver(store, f.registry, f.opts()...).Resolve(f.ctx, "alice", "acme")
			require.Error(t, err)
			assert.Zero(t, mask)
			assert.ErrorIs(t, err, rbac.ErrStoreUnavailable)
			assert.ErrorIs(t, err, errBackend)

			var se *rbac.SourceError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, source, se.Source)
		})
	}
}

func TestResolve_AddingRoleGrantsBit(t *testing.T) {
	f := newFixture(t)
	f.org("acme", 0)
	f.member("m1", "alice", "acme", rbac.MemberStatusActive)
	checker := f.checker()

	allowed, err := checker.CheckPermission(f.ctx, "alice", "acme", "webhooks.manage")
	require.NoError(t, err)
	assert.False(t, allowed)

	f.role("hooks", "acme", permission.Mask(0).Set(f.bit("webhooks.manage")))
	f.assign("m1", "hooks")

	allowed, err = checker.CheckPermission(f.ctx, "alice", "acme", "webhooks.manage")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestApplyOverrides(t *testing.T) {
	allow := rbac.OverrideOp{Bit: 3, Allow: true}
	deny := rbac.OverrideOp{Bit: 3, Allow: false}
	other := rbac.OverrideOp{Bit: 7, Allow: true}

	orders := [][]rbac.OverrideOp{
		{allow, deny, other},
		{deny, allow, other},
		{other, deny, allow},
		{deny, other, allow, allow},
	}
	for _, ops := range orders {
		got := rbac.ApplyOverrides(0b1000, ops)
		assert.False(t, got.Has(3))
		assert.True(t, got.Has(7))
	}

	assert.Equal(t, permission.Mask(0b101), rbac.ApplyOverrides(0b101, nil))
}
