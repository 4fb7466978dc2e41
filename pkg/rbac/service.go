package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/entitle/pkg/audit"
	"github.com/platinummonkey/entitle/pkg/observability"
	"github.com/platinummonkey/entitle/pkg/permission"
)

// permissionNamespace derives stable permission row IDs from codes, so every
// store and every deployment agrees on them.
var permissionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://entitle.dev/permission"))

// PermissionID returns the stored ID for a registry code
func PermissionID(code string) string {
	return uuid.NewSHA1(permissionNamespace, []byte(code)).String()
}

// Service performs the administrative mutations that feed the resolver. Each
// mutation records an audit entry and refreshes the cache of every affected
// membership. A failed refresh is logged only: the mutation stands, and reads
// recompute once the old cache value passes its TTL.
type Service struct {
	store    MutationStore
	checker  *PermissionChecker
	registry *permission.Registry
	recorder *audit.Recorder
	logger   *observability.Logger
	now      func() time.Time
	newID    func() string
}

// NewService creates a Service. Without WithRecorder, audit entries go to store.
func NewService(store MutationStore, checker *PermissionChecker, opts ...Option) *Service {
	o := newOptions(opts)
	recorder := o.recorder
	if recorder == nil {
		recorder = audit.NewRecorder(store,
			audit.WithLogger(o.logger),
			audit.WithMetrics(o.metrics),
			audit.WithClock(o.now),
			audit.WithSinkName("store"),
		)
	}
	return &Service{
		store:    store,
		checker:  checker,
		registry: checker.Registry(),
		recorder: recorder,
		logger:   o.logger,
		now:      o.now,
		newID:    o.newID,
	}
}

// SeedCatalog writes every registry code to the permission table and creates
// the default tiers that do not exist yet. It is idempotent.
func (s *Service) SeedCatalog(ctx context.Context) error {
	for _, def := range s.registry.Definitions() {
		perm := &Permission{
			ID:          PermissionID(def.Code),
			Code:        def.Code,
			BitPosition: def.Bit,
			Name:        def.Name,
			Description: def.Description,
			Category:    def.Category,
			IsAddon:     def.IsAddon,
			IsDangerous: def.IsDangerous,
		}
		if err := s.store.UpsertPermission(ctx, perm); err != nil {
			return fmt.Errorf("failed to seed permission %s: %w", def.Code, err)
		}
	}

	for _, tier := range DefaultTiers() {
		_, err := s.store.GetTierBySlug(ctx, tier.Slug)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to look up tier %s: %w", tier.Slug, err)
		}
		tier := tier
		tier.ID = s.newID()
		if err := s.store.CreateTier(ctx, &tier); err != nil {
			return fmt.Errorf("failed to seed tier %s: %w", tier.Slug, err)
		}
	}

	s.logger.WithField("permissions", s.registry.Len()).Info("Permission catalog seeded")
	return nil
}

// CreateOrganization creates an organization on the default tier with its four
// system roles and an active owner membership holding the owner role. The
// records are written atomically: on failure none of them exist and the slug
// stays free.
func (s *Service) CreateOrganization(ctx context.Context, ownerID, name, slug string) (*Organization, *Membership, error) {
	if ownerID == "" {
		return nil, nil, ErrNotAuthenticated
	}
	name, slug = strings.TrimSpace(name), strings.TrimSpace(slug)
	if name == "" {
		return nil, nil, invalid("name is required")
	}
	if slug == "" {
		return nil, nil, invalid("slug is required")
	}

	tier, err := s.store.GetTierBySlug(ctx, DefaultTierSlug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load default tier: %w", err)
	}

	now := s.now().UTC()
	org := &Organization{
		ID:                 s.newID(),
		Name:               name,
		Slug:               slug,
		OwnerID:            ownerID,
		SubscriptionTierID: tier.ID,
		SubscriptionStatus: SubscriptionActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	roles := SystemRoles(org.ID)
	var ownerRole *Role
	for i := range roles {
		roles[i].ID = s.newID()
		roles[i].CreatedAt = now
		if roles[i].SystemRoleType == SystemRoleOwner {
			ownerRole = &roles[i]
		}
	}
	membership := &Membership{
		ID:             s.newID(),
		OrganizationID: org.ID,
		UserID:         ownerID,
		Status:         MemberStatusActive,
		JoinedAt:       &now,
	}
	err = s.store.CreateOrganizationWithRoles(ctx, &NewOrganization{
		Organization: org,
		Roles:        roles,
		Owner:        membership,
		OwnerAssignment: &RoleAssignment{
			ID:           s.newID(),
			MembershipID: membership.ID,
			RoleID:       ownerRole.ID,
			AssignedBy:   ownerID,
			AssignedAt:   now,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create organization: %w", err)
	}

	s.recorder.Record(ctx, audit.ActionMemberJoined, org.ID, ownerID,
		&audit.Target{UserID: ownerID, RoleID: ownerRole.ID}, map[string]interface{}{"owner": true})

	if mask, ok := s.refresh(ctx, membership.ID); ok {
		membership.ComputedPermissions = mask
	}
	return org, membership, nil
}

// InviteMember creates an invited membership with the organization's default
// role. A user who previously left is invited again on the same membership,
// subject to the tier's member limit, and starts over with only the default
// role: earlier assignments and overrides are removed.
func (s *Service) InviteMember(ctx context.Context, actorID, orgID, userID string) (*Membership, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalid("user_id is required")
	}
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	existing, err := s.store.GetMembership(ctx, userID, orgID)
	switch {
	case err == nil && existing.Status != MemberStatusLeft:
		return nil, fmt.Errorf("membership for user %s: %w", userID, ErrConflict)
	case err == nil:
		return s.reinvite(ctx, actorID, org, existing, now)
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	if err := s.checkMemberLimit(ctx, org); err != nil {
		return nil, err
	}

	m := &Membership{
		ID:             s.newID(),
		OrganizationID: orgID,
		UserID:         userID,
		Status:         MemberStatusInvited,
		InvitedBy:      actorID,
		InvitedAt:      &now,
	}
	if err := s.store.CreateMembership(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	defaults, err := s.defaultAssignments(ctx, orgID, m.ID, actorID, now)
	if err != nil {
		return nil, err
	}
	for i := range defaults {
		if err := s.store.CreateRoleAssignment(ctx, &defaults[i]); err != nil {
			return nil, fmt.Errorf("failed to assign default role: %w", err)
		}
	}

	s.recorder.Record(ctx, audit.ActionMemberInvited, orgID, actorID, &audit.Target{UserID: userID}, nil)
	return m, nil
}

func (s *Service) reinvite(ctx context.Context, actorID string, org *Organization, m *Membership, now time.Time) (*Membership, error) {
	if err := s.checkMemberLimit(ctx, org); err != nil {
		return nil, err
	}
	defaults, err := s.defaultAssignments(ctx, org.ID, m.ID, actorID, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.ReinviteMembership(ctx, m.ID, actorID, now, defaults); err != nil {
		return nil, fmt.Errorf("failed to re-invite member: %w", err)
	}
	m.Status = MemberStatusInvited
	m.InvitedBy = actorID
	m.InvitedAt = &now
	m.JoinedAt = nil

	s.recorder.Record(ctx, audit.ActionMemberInvited, org.ID, actorID, &audit.Target{UserID: m.UserID}, map[string]interface{}{"reinvite": true})
	if mask, ok := s.refresh(ctx, m.ID); ok {
		m.ComputedPermissions = mask
	}
	return m, nil
}

// defaultAssignments builds one assignment per default role of orgID
func (s *Service) defaultAssignments(ctx context.Context, orgID, membershipID, actorID string, now time.Time) ([]RoleAssignment, error) {
	roles, err := s.store.ListRoles(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	var out []RoleAssignment
	for _, role := range roles {
		if !role.IsDefault {
			continue
		}
		out = append(out, RoleAssignment{
			ID:           s.newID(),
			MembershipID: membershipID,
			RoleID:       role.ID,
			AssignedBy:   actorID,
			AssignedAt:   now,
		})
	}
	return out, nil
}

func (s *Service) checkMemberLimit(ctx context.Context, org *Organization) error {
	tier, err := s.store.GetTier(ctx, org.SubscriptionTierID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if tier.MaxMembers == nil {
		return nil
	}
	members, err := s.store.ListMemberships(ctx, org.ID)
	if err != nil {
		return fmt.Errorf("failed to list memberships: %w", err)
	}
	count := 0
	for _, m := range members {
		if m.Status != MemberStatusLeft {
			count++
		}
	}
	if count >= *tier.MaxMembers {
		return invalid("tier %s allows at most %d members", tier.Slug, *tier.MaxMembers)
	}
	return nil
}

// SetMemberStatus moves a membership to status and refreshes its cache, so a
// suspended or departed member immediately persists zero permissions. The owner
// cannot be suspended or removed.
func (s *Service) SetMemberStatus(ctx context.Context, actorID, membershipID string, status MemberStatus) (*Membership, error) {
	if !status.Valid() {
		return nil, invalid("unknown status %q", status)
	}
	m, err := s.store.GetMembershipByID(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	if m.Status == status {
		return m, nil
	}
	org, err := s.store.GetOrganization(ctx, m.OrganizationID)
	if err != nil {
		return nil, err
	}
	if org.OwnerID == m.UserID && status != MemberStatusActive {
		return nil, fmt.Errorf("%w: the owner membership must stay active", ErrSystemRole)
	}

	at := s.now().UTC()
	if err := s.store.UpdateMembershipStatus(ctx, m.ID, status, at); err != nil {
		return nil, fmt.Errorf("failed to update membership status: %w", err)
	}
	previous := m.Status
	m.Status = status
	if status == MemberStatusActive && m.JoinedAt == nil {
		m.JoinedAt = &at
	}

	action := audit.ActionMemberRemoved
	if status == MemberStatusActive {
		action = audit.ActionMemberJoined
	}
	s.recorder.Record(ctx, action, m.OrganizationID, actorID, &audit.Target{UserID: m.UserID},
		map[string]interface{}{"from": string(previous), "to": string(status)})

	if mask, ok := s.refresh(ctx, m.ID); ok {
		m.ComputedPermissions = mask
	}
	return m, nil
}

// AssignRole gives a membership an assignable role of its own organization
func (s *Service) AssignRole(ctx context.Context, actorID, membershipID, roleID string) error {
	m, role, err := s.loadMembershipRole(ctx, membershipID, roleID)
	if err != nil {
		return err
	}
	if role.SystemRoleType == SystemRoleOwner || !role.IsAssignable {
		return fmt.Errorf("%w: role %s is not assignable", ErrSystemRole, role.Name)
	}

	assignments, err := s.store.ListRoleAssignments(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("failed to list role assignments: %w", err)
	}
	for _, ra := range assignments {
		if ra.RoleID == role.ID {
			return fmt.Errorf("role %s on membership %s: %w", role.ID, m.ID, ErrConflict)
		}
	}

	if err := s.store.CreateRoleAssignment(ctx, &RoleAssignment{
		ID:           s.newID(),
		MembershipID: m.ID,
		RoleID:       role.ID,
		AssignedBy:   actorID,
		AssignedAt:   s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	s.recorder.Record(ctx, audit.ActionRoleAssigned, m.OrganizationID, actorID,
		&audit.Target{UserID: m.UserID, RoleID: role.ID}, map[string]interface{}{"role_name": role.Name})
	s.refresh(ctx, m.ID)
	return nil
}

// UnassignRole removes a role from a membership. The owner role cannot be removed.
func (s *Service) UnassignRole(ctx context.Context, actorID, membershipID, roleID string) error {
	m, role, err := s.loadMembershipRole(ctx, membershipID, roleID)
	if err != nil {
		return err
	}
	if role.SystemRoleType == SystemRoleOwner {
		return fmt.Errorf("%w: the owner role cannot be removed", ErrSystemRole)
	}

	if err := s.store.DeleteRoleAssignment(ctx, m.ID, role.ID); err != nil {
		return fmt.Errorf("failed to unassign role: %w", err)
	}

	s.recorder.Record(ctx, audit.ActionRoleUnassigned, m.OrganizationID, actorID,
		&audit.Target{UserID: m.UserID, RoleID: role.ID}, map[string]interface{}{"role_name": role.Name})
	s.refresh(ctx, m.ID)
	return nil
}

func (s *Service) loadMembershipRole(ctx context.Context, membershipID, roleID string) (*Membership, *Role, error) {
	m, err := s.store.GetMembershipByID(ctx, membershipID)
	if err != nil {
		return nil, nil, err
	}
	role, err := s.store.GetRole(ctx, roleID)
	if err != nil {
		return nil, nil, err
	}
	if role.OrganizationID != m.OrganizationID {
		return nil, nil, invalid("role %s belongs to another organization", roleID)
	}
	return m, role, nil
}

// CreateRole creates a custom role granting codes
func (s *Service) CreateRole(ctx context.Context, actorID, orgID, name, color string, codes []string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name is required")
	}
	mask, err := s.registry.MaskOf(codes...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownPermission, err)
	}
	if _, err := s.store.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}
	existing, err := s.store.ListRoles(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	for _, r := range existing {
		if strings.EqualFold(r.Name, name) {
			return nil, fmt.Errorf("role %q: %w", name, ErrConflict)
		}
	}

	role := &Role{
		ID:             s.newID(),
		OrganizationID: orgID,
		Name:           name,
		Color:          color,
		Permissions:    mask,
		Position:       len(existing),
		IsAssignable:   true,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.CreateRole(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	s.recorder.Record(ctx, audit.ActionRoleCreated, orgID, actorID, &audit.Target{RoleID: role.ID},
		map[string]interface{}{"role_name": role.Name, "permissions": codes})
	return role, nil
}

// DeleteRole deletes a custom role together with its assignments
func (s *Service) DeleteRole(ctx context.Context, actorID, roleID string) error {
	role, err := s.store.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystemRole {
		return fmt.Errorf("%w: %s is a system role", ErrSystemRole, role.Name)
	}
	if err := s.store.DeleteRole(ctx, role.ID); err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	s.recorder.Record(ctx, audit.ActionRoleDeleted, role.OrganizationID, actorID, &audit.Target{RoleID: role.ID},
		map[string]interface{}{"role_name": role.Name})
	s.refreshOrganization(ctx, role.OrganizationID)
	return nil
}

// GrantOverride adds a signed override of code for a membership. A nil expiresAt
// never expires.
func (s *Service) GrantOverride(ctx context.Context, actorID, membershipID, code string, allow bool, expiresAt *time.Time, reason string) (*PermissionOverride, error) {
	perm, err := s.permissionByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, invalid("expires_at must be in the future")
	}
	m, err := s.store.GetMembershipByID(ctx, membershipID)
	if err != nil {
		return nil, err
	}

	o := &PermissionOverride{
		ID:           s.newID(),
		MembershipID: m.ID,
		PermissionID: perm.ID,
		Allow:        allow,
		GrantedBy:    actorID,
		Reason:       reason,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
	}
	if err := s.store.CreateOverride(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to create override: %w", err)
	}

	s.recorder.Record(ctx, audit.ActionOverrideAdded, m.OrganizationID, actorID,
		&audit.Target{UserID: m.UserID, PermissionID: perm.ID},
		map[string]interface{}{"code": code, "allow": allow, "reason": reason})
	s.refresh(ctx, m.ID)
	return o, nil
}

// RevokeOverride deletes an override from a membership
func (s *Service) RevokeOverride(ctx context.Context, actorID, membershipID, overrideID string) error {
	m, err := s.store.GetMembershipByID(ctx, membershipID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteOverride(ctx, m.ID, overrideID); err != nil {
		return fmt.Errorf("failed to delete override: %w", err)
	}

	s.recorder.Record(ctx, audit.ActionOverrideRemoved, m.OrganizationID, actorID,
		&audit.Target{UserID: m.UserID}, map[string]interface{}{"override_id": overrideID})
	s.refresh(ctx, m.ID)
	return nil
}

// PurchaseAddon grants an add-on permission to the whole organization
func (s *Service) PurchaseAddon(ctx context.Context, actorID, orgID, code string, expiresAt *time.Time, pricePaid *float64) (*AddonGrant, error) {
	def, ok := s.registry.Lookup(code)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPermission, code)
	}
	if !def.IsAddon {
		return nil, invalid("%s is not sold as an add-on", code)
	}
	perm, err := s.permissionByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, invalid("expires_at must be in the future")
	}
	if _, err := s.store.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}

	grant := &AddonGrant{
		ID:             s.newID(),
		OrganizationID: orgID,
		PermissionID:   perm.ID,
		PurchasedBy:    actorID,
		PurchasedAt:    now,
		ExpiresAt:      expiresAt,
		PricePaidEUR:   pricePaid,
		IsActive:       true,
	}
	if err := s.store.CreateAddon(ctx, grant); err != nil {
		return nil, fmt.Errorf("failed to create add-on: %w", err)
	}

	metadata := map[string]interface{}{"code": code}
	if pricePaid != nil {
		metadata["price_paid_eur"] = *pricePaid
	}
	s.recorder.Record(ctx, audit.ActionAddonPurchased, orgID, actorID, &audit.Target{PermissionID: perm.ID}, metadata)
	s.refreshOrganization(ctx, orgID)
	return grant, nil
}

// CancelAddon deactivates an add-on grant
func (s *Service) CancelAddon(ctx context.Context, actorID, orgID, addonID string) error {
	if err := s.store.DeactivateAddon(ctx, orgID, addonID); err != nil {
		return err
	}
	s.recorder.Record(ctx, audit.ActionAddonCancelled, orgID, actorID, nil, map[string]interface{}{"addon_id": addonID})
	s.refreshOrganization(ctx, orgID)
	return nil
}

// ChangeTier moves an organization to the tier with slug
func (s *Service) ChangeTier(ctx context.Context, actorID, orgID, slug string) (*SubscriptionTier, error) {
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	next, err := s.store.GetTierBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if next.ID == org.SubscriptionTierID {
		return next, nil
	}

	action := audit.ActionTierUpgraded
	from := ""
	if current, err := s.store.GetTier(ctx, org.SubscriptionTierID); err == nil {
		from = current.Slug
		if next.PriceEUR < current.PriceEUR {
			action = audit.ActionTierDowngraded
		}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if err := s.store.UpdateOrganizationTier(ctx, org.ID, next.ID, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to change tier: %w", err)
	}

	s.recorder.Record(ctx, action, org.ID, actorID, nil, map[string]interface{}{"from": from, "to": next.Slug})
	s.refreshOrganization(ctx, org.ID)
	return next, nil
}

// ListAuditEntries returns an organization's audit trail
func (s *Service) ListAuditEntries(ctx context.Context, orgID string, since time.Time, limit int) ([]audit.Entry, error) {
	return s.store.ListAuditEntries(ctx, audit.Filter{OrganizationID: orgID, Since: since, Limit: limit})
}

func (s *Service) permissionByCode(ctx context.Context, code string) (*Permission, error) {
	if _, ok := s.registry.Bit(code); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPermission, code)
	}
	perm, err := s.store.GetPermissionByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s is not in the permission table; run the catalog seed", ErrUnknownPermission, code)
	}
	return perm, err
}

func (s *Service) refresh(ctx context.Context, membershipID string) (permission.Mask, bool) {
	mask, err := s.checker.RefreshAndStore(ctx, membershipID)
	if err != nil {
		observability.FromContext(ctx, s.logger).
			WithError(err).
			WithField("membership_id", membershipID).
			Error("Failed to refresh permissions after mutation")
		return 0, false
	}
	return mask, true
}

func (s *Service) refreshOrganization(ctx context.Context, orgID string) {
	members, err := s.store.ListMemberships(ctx, orgID)
	if err != nil {
		observability.FromContext(ctx, s.logger).
			WithError(err).
			WithField("organization_id", orgID).
			Error("Failed to list memberships for refresh")
		return
	}
	for _, m := range members {
		s.refresh(ctx, m.ID)
	}
}

// AcceptInvitation activates userID's invited membership in orgID
func (s *Service) AcceptInvitation(ctx context.Context, userID, orgID string) (*Membership, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	m, err := s.store.GetMembership(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}
	if m.Status != MemberStatusInvited {
		return nil, fmt.Errorf("membership is %s, not invited: %w", m.Status, ErrConflict)
	}
	return s.SetMemberStatus(ctx, userID, m.ID, MemberStatusActive)
}

// Membership returns membershipID if it belongs to orgID
func (s *Service) Membership(ctx context.Context, orgID, membershipID string) (*Membership, error) {
	m, err := s.store.GetMembershipByID(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	if orgID != "" && m.OrganizationID != orgID {
		return nil, NotFound("membership", membershipID)
	}
	return m, nil
}

// ListMembers returns every membership of orgID, departed ones included
func (s *Service) ListMembers(ctx context.Context, orgID string) ([]Membership, error) {
	if _, err := s.store.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}
	return s.store.ListMemberships(ctx, orgID)
}

// Role returns roleID if it belongs to orgID
func (s *Service) Role(ctx context.Context, orgID, roleID string) (*Role, error) {
	role, err := s.store.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.OrganizationID != orgID {
		return nil, NotFound("role", roleID)
	}
	return role, nil
}

// ListRoles returns the roles of orgID ordered by position
func (s *Service) ListRoles(ctx context.Context, orgID string) ([]Role, error) {
	if _, err := s.store.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}
	return s.store.ListRoles(ctx, orgID)
}
