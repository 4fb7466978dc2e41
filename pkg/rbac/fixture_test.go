package rbac_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/entitle/pkg/permission"
	"github.com/platinummonkey/entitle/pkg/rbac"
	"github.com/platinummonkey/entitle/pkg/storage/memory"
)

var errBackend = errors.New("connection refused")

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *memory.Store
	registry *permission.Registry
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := permission.DefaultRegistry()
	require.NoError(t, err)

	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		store:    memory.New(),
		registry: reg,
		now:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	for _, def := range reg.Definitions() {
		require.NoError(t, f.store.UpsertPermission(f.ctx, &rbac.Permission{
			ID:          rbac.PermissionID(def.Code),
			Code:        def.Code,
			BitPosition: def.Bit,
			Name:        def.Name,
			Category:    def.Category,
			IsAddon:     def.IsAddon,
		}))
	}
	return f
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) opts(extra ...rbac.Option) []rbac.Option {
	return append([]rbac.Option{rbac.WithClock(f.clock)}, extra...)
}

func (f *fixture) checker(extra ...rbac.Option) *rbac.PermissionChecker {
	return rbac.NewPermissionChecker(f.store, f.registry, f.opts(extra...)...)
}

func (f *fixture) org(id string, base permission.Mask) {
	f.t.Helper()
	require.NoError(f.t, f.store.CreateTier(f.ctx, &rbac.SubscriptionTier{
		ID:              "tier-" + id,
		Slug:            "tier-" + id,
		BasePermissions: base,
	}))
	require.NoError(f.t, f.store.CreateOrganization(f.ctx, &rbac.Organization{
		ID:                 id,
		Slug:               id,
		OwnerID:            "owner-" + id,
		SubscriptionTierID: "tier-" + id,
		SubscriptionStatus: rbac.SubscriptionActive,
	}))
}

func (f *fixture) member(id, userID, orgID string, status rbac.MemberStatus) {
	f.t.Helper()
	require.NoError(f.t, f.store.CreateMembership(f.ctx, &rbac.Membership{
		ID:             id,
		OrganizationID: orgID,
		UserID:         userID,
		Status:         status,
	}))
}

func (f *fixture) role(id, orgID string, mask permission.Mask) {
	f.t.Helper()
	require.NoError(f.t, f.store.CreateRole(f.ctx, &rbac.Role{
		ID:             id,
		OrganizationID: orgID,
		Name:           id,
		Permissions:    mask,
		IsAssignable:   true,
	}))
}

func (f *fixture) assign(membershipID, roleID string) {
	f.t.Helper()
	require.NoError(f.t, f.store.CreateRoleAssignment(f.ctx, &rbac.RoleAssignment{
		ID:           membershipID + "/" + roleID,
		MembershipID: membershipID,
		RoleID:       roleID,
	}))
}

func (f *fixture) override(id, membershipID, code string, allow bool, expiresAt *time.Time, createdAt time.Time) {
	f.t.Helper()
	require.NoError(f.t, f.store.CreateOverride(f.ctx, &rbac.PermissionOverride{
		ID:           id,
		MembershipID: membershipID,
		PermissionID: rbac.PermissionID(code),
		Allow:        allow,
		ExpiresAt:    expiresAt,
		CreatedAt:    createdAt,
	}))
}

func (f *fixture) addon(id, orgID, code string, expiresAt *time.Time) {
	f.t.Helper()
	require.NoError(f.t, f.store.CreateAddon(f.ctx, &rbac.AddonGrant{
		ID:             id,
		OrganizationID: orgID,
		PermissionID:   rbac.PermissionID(code),
		PurchasedAt:    f.now.Add(-time.Hour),
		ExpiresAt:      expiresAt,
		IsActive:       true,
	}))
}

func (f *fixture) bit(code string) int {
	f.t.Helper()
	bit, ok := f.registry.Bit(code)
	require.True(f.t, ok, code)
	return bit
}

func (f *fixture) codeAt(bit int) string {
	f.t.Helper()
	code, ok := f.registry.Code(bit)
	require.True(f.t, ok, bit)
	return code
}

// failingStore fails the named read with errBackend
type failingStore struct {
	*memory.Store
	fail  string
	calls int
}

func (s *failingStore) GetMembership(ctx context.Context, userID, orgID string) (*rbac.Membership, error) {
	s.calls++
	if s.fail == "membership" {
		return nil, errBackend
	}
	return s.Store.GetMembership(ctx, userID, orgID)
}

func (s *failingStore) GetOrganization(ctx context.Context, id string) (*rbac.Organization, error) {
	if s.fail == "organization" {
		return nil, errBackend
	}
	return s.Store.GetOrganization(ctx, id)
}

func (s *failingStore) GetTier(ctx context.Context, id string) (*rbac.SubscriptionTier, error) {
	if s.fail == "tier" {
		return nil, errBackend
	}
	return s.Store.GetTier(ctx, id)
}

func (s *failingStore) ListActiveAddons(ctx context.Context, orgID string, now time.Time) ([]rbac.AddonGrant, error) {
	if s.fail == "addons" {
		return nil, errBackend
	}
	return s.Store.ListActiveAddons(ctx, orgID, now)
}

func (s *failingStore) ListRoleAssignments(ctx context.Context, membershipID string) ([]rbac.RoleAssignment, error) {
	if s.fail == "roles" {
		return nil, errBackend
	}
	return s.Store.ListRoleAssignments(ctx, membershipID)
}

func (s *failingStore) ListActiveOverrides(ctx context.Context, membershipID string, now time.Time) ([]rbac.PermissionOverride, error) {
	if s.fail == "overrides" {
		return nil, errBackend
	}
	return s.Store.ListActiveOverrides(ctx, membershipID, now)
}

func (s *failingStore) PatchMembership(ctx context.Context, membershipID string, update rbac.CacheUpdate) error {
	if s.fail == "patch" {
		return errBackend
	}
	return s.Store.PatchMembership(ctx, membershipID, update)
}
