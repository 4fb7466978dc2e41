// Package mongo implements rbac.MutationStore on MongoDB, one collection per
// entity with the indexes the resolver's lookups need.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/platinummonkey/entitle/pkg/audit"
	"github.com/platinummonkey/entitle/pkg/observability"
	"github.com/platinummonkey/entitle/pkg/rbac"
)

// Config holds connection settings
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Store implements rbac.MutationStore
type Store struct {
	client  *mongo.Client
	timeout time.Duration
	logger  *observability.Logger

	tiers       *mongo.Collection
	orgs        *mongo.Collection
	members     *mongo.Collection
	permissions *mongo.Collection
	roles       *mongo.Collection
	assignments *mongo.Collection
	overrides   *mongo.Collection
	addons      *mongo.Collection
	audit       *mongo.Collection
}

var _ rbac.MutationStore = (*Store)(nil)

// Connect opens a client, pings it and ensures indexes
func Connect(ctx context.Context, cfg Config, logger *observability.Logger) (*Store, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	err = client.Ping(pingCtx, nil)
	cancel()
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	s := newStore(client, client.Database(cfg.Database), cfg.Timeout, logger)
	if err := s.applyIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	logger.WithField("database", cfg.Database).Info("Mongo store connected")
	return s, nil
}

func newStore(client *mongo.Client, db *mongo.Database, timeout time.Duration, logger *observability.Logger) *Store {
	return &Store{
		client:      client,
		timeout:     timeout,
		logger:      logger,
		tiers:       db.Collection("subscription_tiers"),
		orgs:        db.Collection("organizations"),
		members:     db.Collection("organization_members"),
		permissions: db.Collection("permissions"),
		roles:       db.Collection("roles"),
		assignments: db.Collection("member_roles"),
		overrides:   db.Collection("member_permission_overrides"),
		addons:      db.Collection("organization_addons"),
		audit:       db.Collection("permission_audit_log"),
	}
}

type index struct {
	coll   *mongo.Collection
	keys   bson.D
	unique bool
}

func (s *Store) applyIndexes(ctx context.Context) error {
	indexes := []index{
		{s.tiers, bson.D{primitive.E{Key: "slug", Value: 1}}, true},
		{s.orgs, bson.D{primitive.E{Key: "slug", Value: 1}}, true},
		{s.members, bson.D{primitive.E{Key: "organization_id", Value: 1}, primitive.E{Key: "user_id", Value: 1}}, true},
		{s.members, bson.D{primitive.E{Key: "status", Value: 1}, primitive.E{Key: "permissions_last_computed_at", Value: 1}}, false},
		{s.permissions, bson.D{primitive.E{Key: "code", Value: 1}}, true},
		{s.permissions, bson.D{primitive.E{Key: "bit_position", Value: 1}}, true},
		{s.roles, bson.D{primitive.E{Key: "organization_id", Value: 1}, primitive.E{Key: "position", Value: 1}}, false},
		{s.assignments, bson.D{primitive.E{Key: "member_id", Value: 1}, primitive.E{Key: "role_id", Value: 1}}, true},
		{s.overrides, bson.D{primitive.E{Key: "member_id", Value: 1}}, false},
		{s.addons, bson.D{primitive.E{Key: "organization_id", Value: 1}}, false},
		{s.audit, bson.D{primitive.E{Key: "organization_id", Value: 1}, primitive.E{Key: "created_at", Value: 1}}, false},
	}
	for _, idx := range indexes {
		ctx, cancel := s.ctx(ctx)
		_, err := idx.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    idx.keys,
			Options: options.Index().SetUnique(idx.unique),
		})
		cancel()
		if err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

func (s *Store) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Ping checks the primary
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

func writeErr(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", op, rbac.ErrConflict)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func (s *Store) findOne(ctx context.Context, coll *mongo.Collection, filter interface{}, out interface{}, kind, id string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	err := coll.FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return rbac.NotFound(kind, id)
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", kind, err)
	}
	return nil
}

func (s *Store) find(ctx context.Context, coll *mongo.Collection, filter interface{}, out interface{}, opts *options.FindOptions) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", coll.Name(), err)
	}
	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", coll.Name(), err)
	}
	return nil
}

func (s *Store) insert(ctx context.Context, coll *mongo.Collection, doc interface{}, op string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return writeErr(op, err)
	}
	return nil
}

func (s *Store) updateOne(ctx context.Context, coll *mongo.Collection, filter, update interface{}, kind, id string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	res, err := coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return writeErr("update "+kind, err)
	}
	if res.MatchedCount == 0 {
		return rbac.NotFound(kind, id)
	}
	return nil
}

func (s *Store) deleteOne(ctx context.Context, coll *mongo.Collection, filter interface{}, kind, id string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	res, err := coll.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	if res.DeletedCount == 0 {
		return rbac.NotFound(kind, id)
	}
	return nil
}

// withTransaction runs fn in a multi-document transaction. Transactions need a
// replica set or sharded cluster; on a standalone server the call fails before
// anything is written.
func (s *Store) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	return s.client.UseSession(ctx, func(sc mongo.SessionContext) error {
		_, err := sc.WithTransaction(sc, func(sc mongo.SessionContext) (interface{}, error) {
			return nil, fn(sc)
		})
		return err
	})
}

// Tiers and permissions

func (s *Store) CreateTier(ctx context.Context, tier *rbac.SubscriptionTier) error {
	return s.insert(ctx, s.tiers, toTierDoc(tier), "create tier "+tier.Slug)
}

func (s *Store) GetTier(ctx context.Context, id string) (*rbac.SubscriptionTier, error) {
	var d tierDoc
	if err := s.findOne(ctx, s.tiers, bson.M{"_id": id}, &d, "tier", id); err != nil {
		return nil, err
	}
	return d.model(), nil
}

func (s *Store) GetTierBySlug(ctx context.Context, slug string) (*rbac.SubscriptionTier, error) {
	var d tierDoc
	if err := s.findOne(ctx, s.tiers, bson.M{"slug": slug}, &d, "tier", slug); err != nil {
		return nil, err
	}
	return d.model(), nil
}

// UpsertPermission replaces the document with perm's code, keeping its ID
func (s *Store) UpsertPermission(ctx context.Context, perm *rbac.Permission) error {
	var existing permissionDoc
	err := s.findOne(ctx, s.permissions, bson.M{"code": perm.Code}, &existing, "permission", perm.Code)
	switch {
	case err == nil:
		perm.ID = existing.ID
	case !errors.Is(err, rbac.ErrNotFound):
		return err
	}

	ctx, cancel := s.ctx(ctx)
	defer cancel()
	_, err = s.permissions.ReplaceOne(ctx, bson.M{"_id": perm.ID}, permissionDoc(*perm), options.Replace().SetUpsert(true))
	if err != nil {
		return writeErr("upsert permission "+perm.Code, err)
	}
	return nil
}

func (s *Store) GetPermission(ctx context.Context, id string) (*rbac.Permission, error) {
	var d permissionDoc
	if err := s.findOne(ctx, s.permissions, bson.M{"_id": id}, &d, "permission", id); err != nil {
		return nil, err
	}
	return d.model(), nil
}

func (s *Store) GetPermissionByCode(ctx context.Context, code string) (*rbac.Permission, error) {
	var d permissionDoc
	if err := s.findOne(ctx, s.permissions, bson.M{"code": code}, &d, "permission", code); err != nil {
		return nil, err
	}
	return d.model(), nil
}

// Organizations

func (s *Store) CreateOrganization(ctx context.Context, org *rbac.Organization) error {
	return s.insert(ctx, s.orgs, toOrganizationDoc(org), "create organization "+org.Slug)
}

func (s *Store) GetOrganization(ctx context.Context, id string) (*rbac.Organization, error) {
	var d organizationDoc
	if err := s.findOne(ctx, s.orgs, bson.M{"_id": id}, &d, "organization", id); err != nil {
		return nil, err
	}
	return d.model(), nil
}

func (s *Store) UpdateOrganizationTier(ctx context.Context, orgID, tierID string, updatedAt time.Time) error {
	update := bson.M{"$set": bson.M{"subscription_tier_id": tierID, "updated_at": updatedAt.UTC()}}
	return s.updateOne(ctx, s.orgs, bson.M{"_id": orgID}, update, "organization", orgID)
}

// CreateOrganizationWithRoles inserts the organization, its roles, the owner
// membership and the owner assignment in one transaction.
func (s *Store) CreateOrganizationWithRoles(ctx context.Context, n *rbac.NewOrganization) error {
	return s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if err := s.insert(sc, s.orgs, toOrganizationDoc(n.Organization), "create organization "+n.Organization.Slug); err != nil {
			return err
		}
		for i := range n.Roles {
			if err := s.insert(sc, s.roles, toRoleDoc(&n.Roles[i]), "create role "+n.Roles[i].Name); err != nil {
				return err
			}
		}
		if err := s.insert(sc, s.members, toMembershipDoc(n.Owner), "create membership for "+n.Owner.UserID); err != nil {
			return err
		}
		return s.insert(sc, s.assignments, toAssignmentDoc(n.OwnerAssignment), "assign owner role")
	})
}

// Memberships

func (s *Store) CreateMembership(ctx context.Context, m *rbac.Membership) error {
	return s.insert(ctx, s.members, toMembershipDoc(m), "create membership for "+m.UserID)
}

func (s *Store) GetMembership(ctx context.Context, userID, orgID string) (*rbac.Membership, error) {
	var d membershipDoc
	filter := bson.M{"user_id": userID, "organization_id": orgID}
	if err := s.findOne(ctx, s.members, filter, &d, "membership", userID+"@"+orgID); err != nil {
		return nil, err
	}
	return d.model(), nil
}

func (s *Store) GetMembershipByID(ctx context.Context, id string) (*rbac.Membership, error) {
	var d membershipDoc
	if err := s.findOne(ctx, s.members, bson.M{"_id": id}, &d, "membership", id); err != nil {
		return nil, err
	}
	return d.model(), nil
}

// UpdateMembershipStatus sets status and stamps joined_at on the first
// activation. It uses an aggregation pipeline update (MongoDB 4.2+).
func (s *Store) UpdateMembershipStatus(ctx context.Context, membershipID string, status rbac.MemberStatus, at time.Time) error {
	set := bson.M{"status": string(status)}
	if status == rbac.MemberStatusActive {
		set["joined_at"] = bson.M{"$ifNull": bson.A{"$joined_at", at.UTC()}}
	}
	update := mongo.Pipeline{{primitive.E{Key: "$set", Value: set}}}
	return s.updateOne(ctx, s.members, bson.M{"_id": membershipID}, update, "membership", membershipID)
}

// ReinviteMembership resets the membership to invited and replaces its role
// assignments and overrides with assignments, in one transaction.
func (s *Store) ReinviteMembership(ctx context.Context, membershipID, invitedBy string, at time.Time, assignments []rbac.RoleAssignment) error {
	return s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		update := bson.M{
			"$set": bson.M{
				"status":     string(rbac.MemberStatusInvited),
				"invited_by": invitedBy,
				"invited_at": at.UTC(),
			},
			"$unset": bson.M{"joined_at": ""},
		}
		if err := s.updateOne(sc, s.members, bson.M{"_id": membershipID}, update, "membership", membershipID); err != nil {
			return err
		}
		dctx, cancel := s.ctx(sc)
		defer cancel()
		if _, err := s.assignments.DeleteMany(dctx, bson.M{"member_id": membershipID}); err != nil {
			return fmt.Errorf("failed to clear role assignments: %w", err)
		}
		if _, err := s.overrides.DeleteMany(dctx, bson.M{"member_id": membershipID}); err != nil {
			return fmt.Errorf("failed to clear overrides: %w", err)
		}
		for i := range assignments {
			if err := s.insert(sc, s.assignments, toAssignmentDoc(&assignments[i]), "assign role "+assignments[i].RoleID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) PatchMembership(ctx context.Context, membershipID string, update rbac.CacheUpdate) error {
	set := bson.M{"$set": bson.M{
		"computed_permissions":         update.ComputedPermissions.Int64(),
		"permissions_last_computed_at": update.PermissionsLastComputedAt.UTC(),
	}}
	return s.updateOne(ctx, s.members, bson.M{"_id": membershipID}, set, "membership", membershipID)
}

func (s *Store) listMemberships(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]rbac.Membership, error) {
	var docs []membershipDoc
	if err := s.find(ctx, s.members, filter, &docs, opts); err != nil {
		return nil, err
	}
	out := make([]rbac.Membership, 0, len(docs))
	for _, d := range docs {
		out = append(out, *d.model())
	}
	return out, nil
}

func (s *Store) ListMemberships(ctx context.Context, orgID string) ([]rbac.Membership, error) {
	opts := options.Find().SetSort(bson.D{primitive.E{Key: "_id", Value: 1}})
	return s.listMemberships(ctx, bson.M{"organization_id": orgID}, opts)
}

// ListStaleMemberships returns never-computed memberships first, then the
// oldest computed ones. Null sorts before any date in ascending order.
func (s *Store) ListStaleMemberships(ctx context.Context, cutoff time.Time, limit int) ([]rbac.Membership, error) {
	filter := bson.M{
		"status": string(rbac.MemberStatusActive),
		"$or": bson.A{
			bson.M{"permissions_last_computed_at": nil},
			bson.M{"permissions_last_computed_at": bson.M{"$lt": cutoff.UTC()}},
		},
	}
	opts := options.Find().SetSort(bson.D{
		primitive.E{Key: "permissions_last_computed_at", Value: 1},
		primitive.E{Key: "_id", Value: 1},
	})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.listMemberships(ctx, filter, opts)
}

// Roles

func (s *Store) CreateRole(ctx context.Context, role *rbac.Role) error {
	return s.insert(ctx, s.roles, toRoleDoc(role), "create role "+role.Name)
}

func (s *Store) GetRole(ctx context.Context, id string) (*rbac.Role, error) {
	var d roleDoc
	if err := s.findOne(ctx, s.roles, bson.M{"_id": id}, &d, "role", id); err != nil {
		return nil, err
	}
	r := d.model()
	return &r, nil
}

func (s *Store) ListRoles(ctx context.Context, orgID string) ([]rbac.Role, error) {
	var docs []roleDoc
	opts := options.Find().SetSort(bson.D{primitive.E{Key: "position", Value: 1}, primitive.E{Key: "_id", Value: 1}})
	if err := s.find(ctx, s.roles, bson.M{"organization_id": orgID}, &docs, opts); err != nil {
		return nil, err
	}
	out := make([]rbac.Role, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

// DeleteRole removes the role, then its assignments. A crash in between
// leaves dangling assignments, which the resolver skips.
func (s *Store) DeleteRole(ctx context.Context, roleID string) error {
	if err := s.deleteOne(ctx, s.roles, bson.M{"_id": roleID}, "role", roleID); err != nil {
		return err
	}
	dctx, cancel := s.ctx(ctx)
	defer cancel()
	if _, err := s.assignments.DeleteMany(dctx, bson.M{"role_id": roleID}); err != nil {
		return fmt.Errorf("failed to delete role assignments: %w", err)
	}
	return nil
}

func (s *Store) CreateRoleAssignment(ctx context.Context, ra *rbac.RoleAssignment) error {
	return s.insert(ctx, s.assignments, toAssignmentDoc(ra), "assign role "+ra.RoleID)
}

func (s *Store) ListRoleAssignments(ctx context.Context, membershipID string) ([]rbac.RoleAssignment, error) {
	var docs []assignmentDoc
	opts := options.Find().SetSort(bson.D{primitive.E{Key: "_id", Value: 1}})
	if err := s.find(ctx, s.assignments, bson.M{"member_id": membershipID}, &docs, opts); err != nil {
		return nil, err
	}
	out := make([]rbac.RoleAssignment, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

func (s *Store) DeleteRoleAssignment(ctx context.Context, membershipID, roleID string) error {
	return s.deleteOne(ctx, s.assignments, bson.M{"member_id": membershipID, "role_id": roleID}, "role assignment", membershipID+"/"+roleID)
}

// Overrides

func (s *Store) CreateOverride(ctx context.Context, o *rbac.PermissionOverride) error {
	return s.insert(ctx, s.overrides, toOverrideDoc(o), "create override")
}

func (s *Store) ListActiveOverrides(ctx context.Context, membershipID string, now time.Time) ([]rbac.PermissionOverride, error) {
	filter := bson.M{
		"member_id": membershipID,
		"$or": bson.A{
			bson.M{"expires_at": nil},
			bson.M{"expires_at": bson.M{"$gt": now.UTC()}},
		},
	}
	var docs []overrideDoc
	opts := options.Find().SetSort(bson.D{primitive.E{Key: "created_at", Value: 1}, primitive.E{Key: "_id", Value: 1}})
	if err := s.find(ctx, s.overrides, filter, &docs, opts); err != nil {
		return nil, err
	}
	out := make([]rbac.PermissionOverride, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

func (s *Store) DeleteOverride(ctx context.Context, membershipID, overrideID string) error {
	return s.deleteOne(ctx, s.overrides, bson.M{"_id": overrideID, "member_id": membershipID}, "override", overrideID)
}

// Add-ons

func (s *Store) CreateAddon(ctx context.Context, a *rbac.AddonGrant) error {
	return s.insert(ctx, s.addons, toAddonDoc(a), "create addon")
}

func (s *Store) ListActiveAddons(ctx context.Context, orgID string, now time.Time) ([]rbac.AddonGrant, error) {
	filter := bson.M{
		"organization_id": orgID,
		"is_active":       true,
		"$or": bson.A{
			bson.M{"expires_at": nil},
			bson.M{"expires_at": bson.M{"$gt": now.UTC()}},
		},
	}
	var docs []addonDoc
	opts := options.Find().SetSort(bson.D{primitive.E{Key: "purchased_at", Value: 1}, primitive.E{Key: "_id", Value: 1}})
	if err := s.find(ctx, s.addons, filter, &docs, opts); err != nil {
		return nil, err
	}
	out := make([]rbac.AddonGrant, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

func (s *Store) DeactivateAddon(ctx context.Context, orgID, addonID string) error {
	update := bson.M{"$set": bson.M{"is_active": false}}
	return s.updateOne(ctx, s.addons, bson.M{"_id": addonID, "organization_id": orgID}, update, "addon", addonID)
}

// Audit

func (s *Store) AppendAuditEntry(ctx context.Context, entry *audit.Entry) error {
	doc := *entry
	doc.CreatedAt = doc.CreatedAt.UTC()
	return s.insert(ctx, s.audit, doc, "append audit entry")
}

// ListAuditEntries returns matching entries oldest first. With a positive
// Limit the newest Limit entries are selected.
func (s *Store) ListAuditEntries(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	q := bson.M{}
	if filter.OrganizationID != "" {
		q["organization_id"] = filter.OrganizationID
	}
	if filter.Action != "" {
		q["action"] = string(filter.Action)
	}
	created := bson.M{}
	if !filter.Since.IsZero() {
		created["$gte"] = filter.Since.UTC()
	}
	if !filter.Until.IsZero() {
		created["$lt"] = filter.Until.UTC()
	}
	if len(created) > 0 {
		q["created_at"] = created
	}

	direction := 1
	if filter.Limit > 0 {
		direction = -1
	}
	opts := options.Find().SetSort(bson.D{
		primitive.E{Key: "created_at", Value: direction},
		primitive.E{Key: "_id", Value: direction},
	})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	var out []audit.Entry
	if err := s.find(ctx, s.audit, q, &out, opts); err != nil {
		return nil, err
	}
	if direction < 0 {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	for i := range out {
		out[i].CreatedAt = out[i].CreatedAt.UTC()
	}
	return out, nil
}
