package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/platinummonkey/entitle/pkg/audit"
	"github.com/platinummonkey/entitle/pkg/permission"
	"github.com/platinummonkey/entitle/pkg/rbac"
)

// Store implements rbac.MutationStore on database/sql. Reads go to a replica
// when one is configured and writes go to the primary, so a read issued right
// after a write may lag by the replication delay.
type Store struct {
	cm *ConnectionManager
}

var _ rbac.MutationStore = (*Store)(nil)

// NewStore creates a store over cm
func NewStore(cm *ConnectionManager) *Store {
	return &Store{cm: cm}
}

func (s *Store) reader() *sql.DB { return s.cm.Replica() }
func (s *Store) writer() *sql.DB { return s.cm.Primary() }

// Ping checks the primary connection
func (s *Store) Ping(ctx context.Context) error {
	return s.cm.HealthCheck(ctx)
}

// Close closes every pool
func (s *Store) Close() error {
	return s.cm.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// execer is satisfied by *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func writeErr(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, rbac.ErrConflict)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func readErr(kind, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.NotFound(kind, id)
	}
	return fmt.Errorf("failed to get %s: %w", kind, err)
}

func expectOne(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return rbac.NotFound(kind, id)
	}
	return nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// Tiers and permissions

const tierColumns = "id, name, slug, description, price_eur, is_custom, base_permissions, max_members"

func scanTier(row scanner) (*rbac.SubscriptionTier, error) {
	var t rbac.SubscriptionTier
	var base int64
	var maxMembers sql.NullInt64
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Description, &t.PriceEUR, &t.IsCustom, &base, &maxMembers); err != nil {
		return nil, err
	}
	t.BasePermissions = permission.FromInt64(base)
	if maxMembers.Valid {
		n := int(maxMembers.Int64)
		t.MaxMembers = &n
	}
	return &t, nil
}

func (s *Store) CreateTier(ctx context.Context, tier *rbac.SubscriptionTier) error {
	var maxMembers interface{}
	if tier.MaxMembers != nil {
		maxMembers = *tier.MaxMembers
	}
	_, err := s.writer().ExecContext(ctx,
		`INSERT INTO subscription_tiers (`+tierColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tier.ID, tier.Name, tier.Slug, tier.Description, tier.PriceEUR, tier.IsCustom,
		tier.BasePermissions.Int64(), maxMembers,
	)
	if err != nil {
		return writeErr("create tier "+tier.Slug, err)
	}
	return nil
}

func (s *Store) GetTier(ctx context.Context, id string) (*rbac.SubscriptionTier, error) {
	row := s.reader().QueryRowContext(ctx, `SELECT `+tierColumns+` FROM subscription_tiers WHERE id = $1`, id)
	t, err := scanTier(row)
	if err != nil {
		return nil, readErr("tier", id, err)
	}
	return t, nil
}

func (s *Store) GetTierBySlug(ctx context.Context, slug string) (*rbac.SubscriptionTier, error) {
	row := s.reader().QueryRowContext(ctx, `SELECT `+tierColumns+` FROM subscription_tiers WHERE slug = $1`, slug)
	t, err := scanTier(row)
	if err != nil {
		return nil, readErr("tier", slug, err)
	}
	return t, nil
}

const permissionColumns = "id, code, bit_position, name, description, category, is_addon, is_dangerous"

func scanPermission(row scanner) (*rbac.Permission, error) {
	var p rbac.Permission
	if err := row.Scan(&p.ID, &p.Code, &p.BitPosition, &p.Name, &p.Description, &p.Category, &p.IsAddon, &p.IsDangerous); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertPermission inserts perm or updates the row with the same code, keeping
// its ID. A bit position held by another code is a conflict.
func (s *Store) UpsertPermission(ctx context.Context, perm *rbac.Permission) error {
	err := s.writer().QueryRowContext(ctx, `
		INSERT INTO permissions (`+permissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO UPDATE SET
			bit_position = excluded.bit_position,
			name = excluded.name,
			description = excluded.description,
			category = excluded.category,
			is_addon = excluded.is_addon,
			is_dangerous = excluded.is_dangerous
		RETURNING id`,
		perm.ID, perm.Code, perm.BitPosition, perm.Name, perm.Description, perm.Category, perm.IsAddon, perm.IsDangerous,
	).Scan(&perm.ID)
	if err != nil {
		return writeErr("upsert permission "+perm.Code, err)
	}
	return nil
}

func (s *Store) GetPermission(ctx context.Context, id string) (*rbac.Permission, error) {
	row := s.reader().QueryRowContext(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id)
	p, err := scanPermission(row)
	if err != nil {
		return nil, readErr("permission", id, err)
	}
	return p, nil
}

func (s *Store) GetPermissionByCode(ctx context.Context, code string) (*rbac.Permission, error) {
	row := s.reader().QueryRowContext(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE code = $1`, code)
	p, err := scanPermission(row)
	if err != nil {
		return nil, readErr("permission", code, err)
	}
	return p, nil
}

// Organizations

const organizationColumns = "id, name, slug, owner_id, subscription_tier_id, subscription_status, custom_permissions, created_at, updated_at"

func (s *Store) CreateOrganization(ctx context.Context, org *rbac.Organization) error {
	return insertOrganization(ctx, s.writer(), org)
}

func insertOrganization(ctx context.Context, ex execer, org *rbac.Organization) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO organizations (`+organizationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		org.ID, org.Name, org.Slug, org.OwnerID, org.SubscriptionTierID, string(org.SubscriptionStatus),
		org.CustomPermissions.Int64(), org.CreatedAt.UTC(), org.UpdatedAt.UTC(),
	)
	if err != nil {
		return writeErr("create organization "+org.Slug, err)
	}
	return nil
}

func (s *Store) GetOrganization(ctx context.Context, id string) (*rbac.Organization, error) {
	var o rbac.Organization
	var status string
	var custom int64
	err := s.reader().QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id = $1`, id).Scan(
		&o.ID, &o.Name, &o.Slug, &o.OwnerID, &o.SubscriptionTierID, &status, &custom, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, readErr("organization", id, err)
	}
	o.SubscriptionStatus = rbac.SubscriptionStatus(status)
	o.CustomPermissions = permission.FromInt64(custom)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return &o, nil
}

func (s *Store) UpdateOrganizationTier(ctx context.Context, orgID, tierID string, updatedAt time.Time) error {
	res, err := s.writer().ExecContext(ctx,
		`UPDATE organizations SET subscription_tier_id = $2, updated_at = $3 WHERE id = $1`,
		orgID, tierID, updatedAt.UTC(),
	)
	if err != nil {
		return writeErr("update organization tier", err)
	}
	return expectOne(res, "organization", orgID)
}

// CreateOrganizationWithRoles writes the organization, its system roles, the
// owner membership and the owner's role assignment in one transaction.
func (s *Store) CreateOrganizationWithRoles(ctx context.Context, n *rbac.NewOrganization) error {
	tx, err := s.writer().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertOrganization(ctx, tx, n.Organization); err != nil {
		return err
	}
	for i := range n.Roles {
		if err := insertRole(ctx, tx, &n.Roles[i]); err != nil {
			return err
		}
	}
	if err := insertMembership(ctx, tx, n.Owner); err != nil {
		return err
	}
	if err := insertRoleAssignment(ctx, tx, n.OwnerAssignment); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit organization %s: %w", n.Organization.Slug, err)
	}
	return nil
}

// Memberships

const membershipColumns = "id, organization_id, user_id, status, invited_by, invited_at, joined_at, computed_permissions, permissions_last_computed_at"

func scanMembership(row scanner) (*rbac.Membership, error) {
	var m rbac.Membership
	var status string
	var mask int64
	var invitedAt, joinedAt, computedAt sql.NullTime
	if err := row.Scan(&m.ID, &m.OrganizationID, &m.UserID, &status, &m.InvitedBy, &invitedAt, &joinedAt, &mask, &computedAt); err != nil {
		return nil, err
	}
	m.Status = rbac.MemberStatus(status)
	m.InvitedAt = timePtr(invitedAt)
	m.JoinedAt = timePtr(joinedAt)
	m.ComputedPermissions = permission.FromInt64(mask)
	m.PermissionsLastComputedAt = timePtr(computedAt)
	return &m, nil
}

func scanMemberships(rows *sql.Rows) ([]rbac.Membership, error) {
	defer rows.Close()
	var out []rbac.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *Store) CreateMembership(ctx context.Context, m *rbac.Membership) error {
	return insertMembership(ctx, s.writer(), m)
}

func insertMembership(ctx context.Context, ex execer, m *rbac.Membership) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO organization_members (`+membershipColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.OrganizationID, m.UserID, string(m.Status), m.InvitedBy,
		nullTime(m.InvitedAt), nullTime(m.JoinedAt), m.ComputedPermissions.Int64(), nullTime(m.PermissionsLastComputedAt),
	)
	if err != nil {
		return writeErr("create membership for "+m.UserID, err)
	}
	return nil
}

func (s *Store) GetMembership(ctx context.Context, userID, orgID string) (*rbac.Membership, error) {
	row := s.reader().QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM organization_members WHERE user_id = $1 AND organization_id = $2`,
		userID, orgID,
	)
	m, err := scanMembership(row)
	if err != nil {
		return nil, readErr("membership", userID+"@"+orgID, err)
	}
	return m, nil
}

func (s *Store) GetMembershipByID(ctx context.Context, id string) (*rbac.Membership, error) {
	row := s.reader().QueryRowContext(ctx, `SELECT `+membershipColumns+` FROM organization_members WHERE id = $1`, id)
	m, err := scanMembership(row)
	if err != nil {
		return nil, readErr("membership", id, err)
	}
	return m, nil
}

// UpdateMembershipStatus sets status and stamps joined_at on the first
// activation.
func (s *Store) UpdateMembershipStatus(ctx context.Context, membershipID string, status rbac.MemberStatus, at time.Time) error {
	var joinedAt interface{}
	if status == rbac.MemberStatusActive {
		joinedAt = at.UTC()
	}
	res, err := s.writer().ExecContext(ctx,
		`UPDATE organization_members SET status = $2, joined_at = COALESCE(joined_at, $3) WHERE id = $1`,
		membershipID, string(status), joinedAt,
	)
	if err != nil {
		return writeErr("update membership status", err)
	}
	return expectOne(res, "membership", membershipID)
}

func (s *Store) PatchMembership(ctx context.Context, membershipID string, update rbac.CacheUpdate) error {
	res, err := s.writer().ExecContext(ctx,
		`UPDATE organization_members SET computed_permissions = $2, permissions_last_computed_at = $3 WHERE id = $1`,
		membershipID, update.ComputedPermissions.Int64(), update.PermissionsLastComputedAt.UTC(),
	)
	if err != nil {
		return writeErr("patch membership", err)
	}
	return expectOne(res, "membership", membershipID)
}

func (s *Store) ListMemberships(ctx context.Context, orgID string) ([]rbac.Membership, error) {
	rows, err := s.reader().QueryContext(ctx,
		`SELECT `+membershipColumns+` FROM organization_members WHERE organization_id = $1 ORDER BY id`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return scanMemberships(rows)
}

// ListStaleMemberships returns never-computed memberships first, then the
// oldest computed ones.
func (s *Store) ListStaleMemberships(ctx context.Context, cutoff time.Time, limit int) ([]rbac.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM organization_members
		WHERE status = $1 AND (permissions_last_computed_at IS NULL OR permissions_last_computed_at < $2)
		ORDER BY permissions_last_computed_at ASC NULLS FIRST, id ASC`
	args := []interface{}{string(rbac.MemberStatusActive), cutoff.UTC()}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.reader().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale memberships: %w", err)
	}
	return scanMemberships(rows)
}

// Roles

const roleColumns = "id, organization_id, name, description, color, permissions, position, is_system_role, system_role_type, is_assignable, is_default, created_at"

func scanRole(row scanner) (*rbac.Role, error) {
	var r rbac.Role
	var mask int64
	var systemType string
	if err := row.Scan(&r.ID, &r.OrganizationID, &r.Name, &r.Description, &r.Color, &mask, &r.Position,
		&r.IsSystemRole, &systemType, &r.IsAssignable, &r.IsDefault, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Permissions = permission.FromInt64(mask)
	r.SystemRoleType = rbac.SystemRoleType(systemType)
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

func (s *Store) CreateRole(ctx context.Context, role *rbac.Role) error {
	return insertRole(ctx, s.writer(), role)
}

func insertRole(ctx context.Context, ex execer, role *rbac.Role) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO roles (`+roleColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		role.ID, role.OrganizationID, role.Name, role.Description, role.Color, role.Permissions.Int64(), role.Position,
		role.IsSystemRole, string(role.SystemRoleType), role.IsAssignable, role.IsDefault, role.CreatedAt.UTC(),
	)
	if err != nil {
		return writeErr("create role "+role.Name, err)
	}
	return nil
}

func (s *Store) GetRole(ctx context.Context, id string) (*rbac.Role, error) {
	row := s.reader().QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	r, err := scanRole(row)
	if err != nil {
		return nil, readErr("role", id, err)
	}
	return r, nil
}

func (s *Store) ListRoles(ctx context.Context, orgID string) ([]rbac.Role, error) {
	rows, err := s.reader().QueryContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE organization_id = $1 ORDER BY position, id`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var out []rbac.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// DeleteRole removes the role and every assignment of it in one transaction
func (s *Store) DeleteRole(ctx context.Context, roleID string) error {
	tx, err := s.writer().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM member_roles WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to delete role assignments: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, roleID)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if err := expectOne(res, "role", roleID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role deletion: %w", err)
	}
	return nil
}

func (s *Store) CreateRoleAssignment(ctx context.Context, ra *rbac.RoleAssignment) error {
	return insertRoleAssignment(ctx, s.writer(), ra)
}

func insertRoleAssignment(ctx context.Context, ex execer, ra *rbac.RoleAssignment) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO member_roles (id, member_id, role_id, assigned_by, assigned_at) VALUES ($1, $2, $3, $4, $5)`,
		ra.ID, ra.MembershipID, ra.RoleID, ra.AssignedBy, ra.AssignedAt.UTC(),
	)
	if err != nil {
		return writeErr("assign role "+ra.RoleID, err)
	}
	return nil
}

func (s *Store) ListRoleAssignments(ctx context.Context, membershipID string) ([]rbac.RoleAssignment, error) {
	rows, err := s.reader().QueryContext(ctx,
		`SELECT id, member_id, role_id, assigned_by, assigned_at FROM member_roles WHERE member_id = $1 ORDER BY id`,
		membershipID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list role assignments: %w", err)
	}
	defer rows.Close()

	var out []rbac.RoleAssignment
	for rows.Next() {
		var ra rbac.RoleAssignment
		if err := rows.Scan(&ra.ID, &ra.MembershipID, &ra.RoleID, &ra.AssignedBy, &ra.AssignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role assignment: %w", err)
		}
		ra.AssignedAt = ra.AssignedAt.UTC()
		out = append(out, ra)
	}
	return out, rows.Err()
}

func (s *Store) DeleteRoleAssignment(ctx context.Context, membershipID, roleID string) error {
	res, err := s.writer().ExecContext(ctx,
		`DELETE FROM member_roles WHERE member_id = $1 AND role_id = $2`,
		membershipID, roleID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete role assignment: %w", err)
	}
	return expectOne(res, "role assignment", membershipID+"/"+roleID)
}

// ReinviteMembership returns a membership to invited in one transaction. All of
// its role assignments and overrides are removed and replaced by assignments.
func (s *Store) ReinviteMembership(ctx context.Context, membershipID, invitedBy string, at time.Time, assignments []rbac.RoleAssignment) error {
	tx, err := s.writer().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE organization_members
		SET status = $2, invited_by = $3, invited_at = $4, joined_at = NULL
		WHERE id = $1`,
		membershipID, string(rbac.MemberStatusInvited), invitedBy, at.UTC(),
	)
	if err != nil {
		return writeErr("re-invite membership", err)
	}
	if err := expectOne(res, "membership", membershipID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM member_roles WHERE member_id = $1`, membershipID); err != nil {
		return fmt.Errorf("failed to clear role assignments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM member_permission_overrides WHERE member_id = $1`, membershipID); err != nil {
		return fmt.Errorf("failed to clear overrides: %w", err)
	}
	for i := range assignments {
		if err := insertRoleAssignment(ctx, tx, &assignments[i]); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit re-invite: %w", err)
	}
	return nil
}

// Overrides

func (s *Store) CreateOverride(ctx context.Context, o *rbac.PermissionOverride) error {
	_, err := s.writer().ExecContext(ctx, `
		INSERT INTO member_permission_overrides (id, member_id, permission_id, allow, granted_by, reason, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.MembershipID, o.PermissionID, o.Allow, o.GrantedBy, o.Reason, nullTime(o.ExpiresAt), o.CreatedAt.UTC(),
	)
	if err != nil {
		return writeErr("create override", err)
	}
	return nil
}

func (s *Store) ListActiveOverrides(ctx context.Context, membershipID string, now time.Time) ([]rbac.PermissionOverride, error) {
	rows, err := s.reader().QueryContext(ctx, `
		SELECT id, member_id, permission_id, allow, granted_by, reason, expires_at, created_at
		FROM member_permission_overrides
		WHERE member_id = $1 AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY created_at, id`,
		membershipID, now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}
	defer rows.Close()

	var out []rbac.PermissionOverride
	for rows.Next() {
		var o rbac.PermissionOverride
		var expiresAt sql.NullTime
		if err := rows.Scan(&o.ID, &o.MembershipID, &o.PermissionID, &o.Allow, &o.GrantedBy, &o.Reason, &expiresAt, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		o.ExpiresAt = timePtr(expiresAt)
		o.CreatedAt = o.CreatedAt.UTC()
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) DeleteOverride(ctx context.Context, membershipID, overrideID string) error {
	res, err := s.writer().ExecContext(ctx,
		`DELETE FROM member_permission_overrides WHERE id = $1 AND member_id = $2`,
		overrideID, membershipID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete override: %w", err)
	}
	return expectOne(res, "override", overrideID)
}

// Add-ons

func (s *Store) CreateAddon(ctx context.Context, a *rbac.AddonGrant) error {
	var price interface{}
	if a.PricePaidEUR != nil {
		price = *a.PricePaidEUR
	}
	_, err := s.writer().ExecContext(ctx, `
		INSERT INTO organization_addons (id, organization_id, permission_id, purchased_by, purchased_at, expires_at, price_paid_eur, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.OrganizationID, a.PermissionID, a.PurchasedBy, a.PurchasedAt.UTC(), nullTime(a.ExpiresAt), price, a.IsActive,
	)
	if err != nil {
		return writeErr("create addon", err)
	}
	return nil
}

func (s *Store) ListActiveAddons(ctx context.Context, orgID string, now time.Time) ([]rbac.AddonGrant, error) {
	rows, err := s.reader().QueryContext(ctx, `
		SELECT id, organization_id, permission_id, purchased_by, purchased_at, expires_at, price_paid_eur, is_active
		FROM organization_addons
		WHERE organization_id = $1 AND is_active = $2 AND (expires_at IS NULL OR expires_at > $3)
		ORDER BY purchased_at, id`,
		orgID, true, now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list addons: %w", err)
	}
	defer rows.Close()

	var out []rbac.AddonGrant
	for rows.Next() {
		var a rbac.AddonGrant
		var expiresAt sql.NullTime
		var price sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.PermissionID, &a.PurchasedBy, &a.PurchasedAt, &expiresAt, &price, &a.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan addon: %w", err)
		}
		a.PurchasedAt = a.PurchasedAt.UTC()
		a.ExpiresAt = timePtr(expiresAt)
		if price.Valid {
			p := price.Float64
			a.PricePaidEUR = &p
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) DeactivateAddon(ctx context.Context, orgID, addonID string) error {
	res, err := s.writer().ExecContext(ctx,
		`UPDATE organization_addons SET is_active = $3 WHERE id = $1 AND organization_id = $2`,
		addonID, orgID, false,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate addon: %w", err)
	}
	return expectOne(res, "addon", addonID)
}

// Audit

const auditColumns = "id, organization_id, actor_id, action, target_user_id, target_role_id, target_permission_id, metadata, ip_address, user_agent, created_at"

func (s *Store) AppendAuditEntry(ctx context.Context, entry *audit.Entry) error {
	var metadata interface{}
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
		metadata = string(raw)
	}

	_, err := s.writer().ExecContext(ctx,
		`INSERT INTO permission_audit_log (`+auditColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID, entry.OrganizationID, entry.ActorID, string(entry.Action),
		entry.Target.UserID, entry.Target.RoleID, entry.Target.PermissionID,
		metadata, entry.IPAddress, entry.UserAgent, entry.CreatedAt.UTC(),
	)
	if err != nil {
		return writeErr("append audit entry", err)
	}
	return nil
}

// ListAuditEntries returns matching entries oldest first. With a positive
// Limit the newest Limit entries are selected.
func (s *Store) ListAuditEntries(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	var where []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.OrganizationID != "" {
		where = append(where, "organization_id = "+arg(filter.OrganizationID))
	}
	if filter.Action != "" {
		where = append(where, "action = "+arg(string(filter.Action)))
	}
	if !filter.Since.IsZero() {
		where = append(where, "created_at >= "+arg(filter.Since.UTC()))
	}
	if !filter.Until.IsZero() {
		where = append(where, "created_at < "+arg(filter.Until.UTC()))
	}

	query := `SELECT ` + auditColumns + ` FROM permission_audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	newestFirst := filter.Limit > 0
	if newestFirst {
		query += " ORDER BY created_at DESC, id DESC LIMIT " + arg(filter.Limit)
	} else {
		query += " ORDER BY created_at ASC, id ASC"
	}

	rows, err := s.reader().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var action string
		var metadata sql.NullString
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.ActorID, &action,
			&e.Target.UserID, &e.Target.RoleID, &e.Target.PermissionID,
			&metadata, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Action = audit.Action(action)
		e.CreatedAt = e.CreatedAt.UTC()
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit metadata for %s: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if newestFirst {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}
