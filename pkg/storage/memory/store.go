// Package memory is an in-process rbac.MutationStore. It backs development
// servers, the CLI's dry runs and the test suites of the packages above it.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/platinummonkey/entitle/pkg/audit"
	"github.com/platinummonkey/entitle/pkg/permission"
	"github.com/platinummonkey/entitle/pkg/rbac"
)

// Store keeps every record in maps guarded by one RWMutex. Values are copied on
// the way in and out so callers never share memory with the store.
type Store struct {
	mu sync.RWMutex

	tiers       map[string]rbac.SubscriptionTier
	orgs        map[string]rbac.Organization
	memberships map[string]rbac.Membership
	permissions map[string]rbac.Permission
	roles       map[string]rbac.Role
	assignments map[string]rbac.RoleAssignment
	addons      map[string]rbac.AddonGrant
	overrides   map[string]rbac.PermissionOverride
	audit       []audit.Entry

	closed bool
}

var _ rbac.MutationStore = (*Store)(nil)

// New returns an empty store
func New() *Store {
	return &Store{
		tiers:       make(map[string]rbac.SubscriptionTier),
		orgs:        make(map[string]rbac.Organization),
		memberships: make(map[string]rbac.Membership),
		permissions: make(map[string]rbac.Permission),
		roles:       make(map[string]rbac.Role),
		assignments: make(map[string]rbac.RoleAssignment),
		addons:      make(map[string]rbac.AddonGrant),
		overrides:   make(map[string]rbac.PermissionOverride),
	}
}

// Ping reports whether the store is open
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("memory store closed")
	}
	return ctx.Err()
}

// Close marks the store closed. Data stays readable.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Tiers and permissions

func (s *Store) CreateTier(ctx context.Context, tier *rbac.SubscriptionTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tiers[tier.ID]; ok {
		return fmt.Errorf("tier %s: %w", tier.ID, rbac.ErrConflict)
	}
	for _, t := range s.tiers {
		if t.Slug == tier.Slug {
			return fmt.Errorf("tier slug %s: %w", tier.Slug, rbac.ErrConflict)
		}
	}
	s.tiers[tier.ID] = *tier
	return nil
}

func (s *Store) GetTier(ctx context.Context, id string) (*rbac.SubscriptionTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tiers[id]
	if !ok {
		return nil, rbac.NotFound("tier", id)
	}
	return &t, nil
}

func (s *Store) GetTierBySlug(ctx context.Context, slug string) (*rbac.SubscriptionTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tiers {
		if t.Slug == slug {
			t := t
			return &t, nil
		}
	}
	return nil, rbac.NotFound("tier", slug)
}

// UpsertPermission inserts perm or replaces the row with the same code,
// keeping its ID.
func (s *Store) UpsertPermission(ctx context.Context, perm *rbac.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *perm
	for id, p := range s.permissions {
		if p.Code == perm.Code {
			row.ID = id
			continue
		}
		if p.BitPosition == perm.BitPosition {
			return fmt.Errorf("bit %d held by %s: %w", perm.BitPosition, p.Code, rbac.ErrConflict)
		}
	}
	s.permissions[row.ID] = row
	perm.ID = row.ID
	return nil
}

func (s *Store) GetPermission(ctx context.Context, id string) (*rbac.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.permissions[id]
	if !ok {
		return nil, rbac.NotFound("permission", id)
	}
	return &p, nil
}

func (s *Store) GetPermissionByCode(ctx context.Context, code string) (*rbac.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.permissions {
		if p.Code == code {
			p := p
			return &p, nil
		}
	}
	return nil, rbac.NotFound("permission", code)
}

// DeletePermission removes a catalog row. References to it become dangling
// and are skipped by the resolver.
func (s *Store) DeletePermission(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[id]; !ok {
		return rbac.NotFound("permission", id)
	}
	delete(s.permissions, id)
	return nil
}

// Organizations

func (s *Store) CreateOrganization(ctx context.Context, org *rbac.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOrganization(org); err != nil {
		return err
	}
	s.orgs[org.ID] = *org
	return nil
}

func (s *Store) checkOrganization(org *rbac.Organization) error {
	if _, ok := s.orgs[org.ID]; ok {
		return fmt.Errorf("organization %s: %w", org.ID, rbac.ErrConflict)
	}
	for _, o := range s.orgs {
		if o.Slug == org.Slug {
			return fmt.Errorf("organization slug %s: %w", org.Slug, rbac.ErrConflict)
		}
	}
	return nil
}

// CreateOrganizationWithRoles validates every record of n before writing any
// of them, all under one lock.
func (s *Store) CreateOrganizationWithRoles(ctx context.Context, n *rbac.NewOrganization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOrganization(n.Organization); err != nil {
		return err
	}
	seen := make(map[string]bool, len(n.Roles))
	for _, r := range n.Roles {
		if _, ok := s.roles[r.ID]; ok || seen[r.ID] {
			return fmt.Errorf("role %s: %w", r.ID, rbac.ErrConflict)
		}
		seen[r.ID] = true
	}
	if err := s.checkMembership(n.Owner); err != nil {
		return err
	}
	if !seen[n.OwnerAssignment.RoleID] {
		return fmt.Errorf("owner role %s is not part of the organization: %w", n.OwnerAssignment.RoleID, rbac.ErrInvalidInput)
	}

	s.orgs[n.Organization.ID] = *n.Organization
	for _, r := range n.Roles {
		s.roles[r.ID] = r
	}
	s.memberships[n.Owner.ID] = *n.Owner
	s.assignments[n.OwnerAssignment.ID] = *n.OwnerAssignment
	return nil
}

func (s *Store) GetOrganization(ctx context.Context, id string) (*rbac.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orgs[id]
	if !ok {
		return nil, rbac.NotFound("organization", id)
	}
	return &o, nil
}

func (s *Store) UpdateOrganizationTier(ctx context.Context, orgID, tierID string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orgs[orgID]
	if !ok {
		return rbac.NotFound("organization", orgID)
	}
	o.SubscriptionTierID = tierID
	o.UpdatedAt = updatedAt
	s.orgs[orgID] = o
	return nil
}

// SetCustomPermissions replaces an organization's custom mask
func (s *Store) SetCustomPermissions(ctx context.Context, orgID string, mask permission.Mask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orgs[orgID]
	if !ok {
		return rbac.NotFound("organization", orgID)
	}
	o.CustomPermissions = mask
	s.orgs[orgID] = o
	return nil
}

// DeleteOrganization removes the organization only, leaving its memberships
// orphaned.
func (s *Store) DeleteOrganization(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[id]; !ok {
		return rbac.NotFound("organization", id)
	}
	delete(s.orgs, id)
	return nil
}

// Memberships

func (s *Store) CreateMembership(ctx context.Context, m *rbac.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMembership(m); err != nil {
		return err
	}
	s.memberships[m.ID] = *m
	return nil
}

func (s *Store) checkMembership(m *rbac.Membership) error {
	if _, ok := s.memberships[m.ID]; ok {
		return fmt.Errorf("membership %s: %w", m.ID, rbac.ErrConflict)
	}
	for _, existing := range s.memberships {
		if existing.UserID == m.UserID && existing.OrganizationID == m.OrganizationID {
			return fmt.Errorf("membership for user %s: %w", m.UserID, rbac.ErrConflict)
		}
	}
	return nil
}

// ReinviteMembership sets the membership back to invited and replaces all of
// its role assignments and overrides with assignments.
func (s *Store) ReinviteMembership(ctx context.Context, membershipID, invitedBy string, at time.Time, assignments []rbac.RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[membershipID]
	if !ok {
		return rbac.NotFound("membership", membershipID)
	}
	seen := make(map[string]bool, len(assignments))
	for _, ra := range assignments {
		if seen[ra.RoleID] {
			return fmt.Errorf("role %s on membership %s: %w", ra.RoleID, membershipID, rbac.ErrConflict)
		}
		seen[ra.RoleID] = true
	}

	m.Status = rbac.MemberStatusInvited
	m.InvitedBy = invitedBy
	m.InvitedAt = &at
	m.JoinedAt = nil
	s.memberships[membershipID] = m
	for id, ra := range s.assignments {
		if ra.MembershipID == membershipID {
			delete(s.assignments, id)
		}
	}
	for id, o := range s.overrides {
		if o.MembershipID == membershipID {
			delete(s.overrides, id)
		}
	}
	for _, ra := range assignments {
		s.assignments[ra.ID] = ra
	}
	return nil
}

func (s *Store) GetMembership(ctx context.Context, userID, orgID string) (*rbac.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.memberships {
		if m.UserID == userID && m.OrganizationID == orgID {
			m := m
			return &m, nil
		}
	}
	return nil, rbac.NotFound("membership", userID+"@"+orgID)
}

func (s *Store) GetMembershipByID(ctx context.Context, id string) (*rbac.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memberships[id]
	if !ok {
		return nil, rbac.NotFound("membership", id)
	}
	return &m, nil
}

func (s *Store) UpdateMembershipStatus(ctx context.Context, membershipID string, status rbac.MemberStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[membershipID]
	if !ok {
		return rbac.NotFound("membership", membershipID)
	}
	m.Status = status
	if status == rbac.MemberStatusActive && m.JoinedAt == nil {
		m.JoinedAt = &at
	}
	s.memberships[membershipID] = m
	return nil
}

func (s *Store) PatchMembership(ctx context.Context, membershipID string, update rbac.CacheUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[membershipID]
	if !ok {
		return rbac.NotFound("membership", membershipID)
	}
	ts := update.PermissionsLastComputedAt
	m.ComputedPermissions = update.ComputedPermissions
	m.PermissionsLastComputedAt = &ts
	s.memberships[membershipID] = m
	return nil
}

func (s *Store) ListMemberships(ctx context.Context, orgID string) ([]rbac.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []rbac.Membership
	for _, m := range s.memberships {
		if m.OrganizationID == orgID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListStaleMemberships returns never-computed memberships first, then the
// oldest computed ones.
func (s *Store) ListStaleMemberships(ctx context.Context, cutoff time.Time, limit int) ([]rbac.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []rbac.Membership
	for _, m := range s.memberships {
		if m.Status != rbac.MemberStatusActive {
			continue
		}
		if ts := m.PermissionsLastComputedAt; ts == nil || ts.Before(cutoff) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].PermissionsLastComputedAt, out[j].PermissionsLastComputedAt
		switch {
		case a == nil && b == nil:
			return out[i].ID < out[j].ID
		case a == nil:
			return true
		case b == nil:
			return false
		}
		return a.Before(*b)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Roles

func (s *Store) CreateRole(ctx context.Context, role *rbac.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[role.ID]; ok {
		return fmt.Errorf("role %s: %w", role.ID, rbac.ErrConflict)
	}
	s.roles[role.ID] = *role
	return nil
}

func (s *Store) GetRole(ctx context.Context, id string) (*rbac.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[id]
	if !ok {
		return nil, rbac.NotFound("role", id)
	}
	return &r, nil
}

func (s *Store) ListRoles(ctx context.Context, orgID string) ([]rbac.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []rbac.Role
	for _, r := range s.roles {
		if r.OrganizationID == orgID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// DeleteRole removes the role and every assignment of it
func (s *Store) DeleteRole(ctx context.Context, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return rbac.NotFound("role", roleID)
	}
	delete(s.roles, roleID)
	for id, ra := range s.assignments {
		if ra.RoleID == roleID {
			delete(s.assignments, id)
		}
	}
	return nil
}

// PurgeRole removes the role but leaves its assignments dangling
func (s *Store) PurgeRole(ctx context.Context, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return rbac.NotFound("role", roleID)
	}
	delete(s.roles, roleID)
	return nil
}

func (s *Store) CreateRoleAssignment(ctx context.Context, ra *rbac.RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.assignments {
		if existing.MembershipID == ra.MembershipID && existing.RoleID == ra.RoleID {
			return fmt.Errorf("role %s on membership %s: %w", ra.RoleID, ra.MembershipID, rbac.ErrConflict)
		}
	}
	s.assignments[ra.ID] = *ra
	return nil
}

func (s *Store) ListRoleAssignments(ctx context.Context, membershipID string) ([]rbac.RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []rbac.RoleAssignment
	for _, ra := range s.assignments {
		if ra.MembershipID == membershipID {
			out = append(out, ra)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteRoleAssignment(ctx context.Context, membershipID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ra := range s.assignments {
		if ra.MembershipID == membershipID && ra.RoleID == roleID {
			delete(s.assignments, id)
			return nil
		}
	}
	return rbac.NotFound("role assignment", membershipID+"/"+roleID)
}

// Overrides

func (s *Store) CreateOverride(ctx context.Context, o *rbac.PermissionOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.overrides[o.ID]; ok {
		return fmt.Errorf("override %s: %w", o.ID, rbac.ErrConflict)
	}
	s.overrides[o.ID] = *o
	return nil
}

func (s *Store) ListActiveOverrides(ctx context.Context, membershipID string, now time.Time) ([]rbac.PermissionOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []rbac.PermissionOverride
	for _, o := range s.overrides {
		if o.MembershipID == membershipID && o.ActiveAt(now) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteOverride(ctx context.Context, membershipID, overrideID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.overrides[overrideID]
	if !ok || o.MembershipID != membershipID {
		return rbac.NotFound("override", overrideID)
	}
	delete(s.overrides, overrideID)
	return nil
}

// Add-ons

func (s *Store) CreateAddon(ctx context.Context, a *rbac.AddonGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.addons[a.ID]; ok {
		return fmt.Errorf("addon %s: %w", a.ID, rbac.ErrConflict)
	}
	s.addons[a.ID] = *a
	return nil
}

func (s *Store) ListActiveAddons(ctx context.Context, orgID string, now time.Time) ([]rbac.AddonGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []rbac.AddonGrant
	for _, a := range s.addons {
		if a.OrganizationID == orgID && a.ActiveAt(now) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PurchasedAt.Before(out[j].PurchasedAt) })
	return out, nil
}

func (s *Store) DeactivateAddon(ctx context.Context, orgID, addonID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.addons[addonID]
	if !ok || a.OrganizationID != orgID {
		return rbac.NotFound("addon", addonID)
	}
	a.IsActive = false
	s.addons[addonID] = a
	return nil
}

// Audit

func (s *Store) AppendAuditEntry(ctx context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, *entry)
	return nil
}

func (s *Store) ListAuditEntries(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Entry
	for i := range s.audit {
		if filter.Matches(&s.audit[i]) {
			out = append(out, s.audit[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}
