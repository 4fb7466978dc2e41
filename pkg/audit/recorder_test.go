package audit

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/entitle/pkg/observability"
)

type memorySink struct {
	entries []Entry
	err     error
}

func (s *memorySink) AppendAuditEntry(_ context.Context, e *Entry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, *e)
	return nil
}

func (s *memorySink) ListAuditEntries(_ context.Context, f Filter) ([]Entry, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []Entry
	for i := range s.entries {
		if f.Matches(&s.entries[i]) {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

func TestRecorder_Record(t *testing.T) {
	sink := &memorySink{}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRecorder(sink, WithClock(func() time.Time { return fixed }))

	ctx := WithClientInfo(context.Background(), "10.0.0.1", "entitlectl/1.0")
	id := r.Record(ctx, ActionRoleAssigned, "org-1", "user-1",
		&Target{UserID: "user-2", RoleID: "role-1"}, map[string]interface{}{"role_name": "Admin"})

	require.NotEmpty(t, id)
	require.Len(t, sink.entries, 1)

	e := sink.entries[0]
	assert.Equal(t, id, e.ID)
	assert.Equal(t, ActionRoleAssigned, e.Action)
	assert.Equal(t, "org-1", e.OrganizationID)
	assert.Equal(t, "user-1", e.ActorID)
	assert.Equal(t, "user-2", e.Target.UserID)
	assert.Equal(t, "role-1", e.Target.RoleID)
	assert.Equal(t, "Admin", e.Metadata["role_name"])
	assert.Equal(t, "10.0.0.1", e.IPAddress)
	assert.Equal(t, "entitlectl/1.0", e.UserAgent)
	assert.Equal(t, fixed, e.CreatedAt)
}

func TestRecorder_FailureIsNotPropagated(t *testing.T) {
	var logs bytes.Buffer
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	r := NewRecorder(&memorySink{err: errors.New("disk full")},
		WithLogger(observability.NewLogger(observability.InfoLevel, &logs)),
		WithMetrics(metrics),
		WithSinkName("store"),
	)

	var id string
	assert.NotPanics(t, func() {
		id = r.Record(context.Background(), ActionOverrideAdded, "org-1", "user-1", nil, nil)
	})
	assert.NotEmpty(t, id)
	assert.Contains(t, logs.String(), "Failed to write audit entry")
	assert.Contains(t, logs.String(), "disk full")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuditWriteFailuresTotal.WithLabelValues("store")))
}

func TestRecorder_NilSink(t *testing.T) {
	r := NewRecorder(nil)
	assert.NotEmpty(t, r.Record(context.Background(), ActionMemberJoined, "org", "user", nil, nil))
}

func TestRecorder_UniqueIDs(t *testing.T) {
	r := NewRecorder(&memorySink{})
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := r.Record(context.Background(), ActionRoleCreated, "org", "user", nil, nil)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestActionValid(t *testing.T) {
	assert.Len(t, Actions(), 16)
	assert.True(t, ActionTierDowngraded.Valid())
	assert.False(t, Action("role_renamed").Valid())
}

func TestFilterMatches(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := &Entry{OrganizationID: "org-1", Action: ActionAddonPurchased, CreatedAt: base}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter", Filter{}, true},
		{"same org", Filter{OrganizationID: "org-1"}, true},
		{"other org", Filter{OrganizationID: "org-2"}, false},
		{"other action", Filter{Action: ActionAddonCancelled}, false},
		{"since inclusive", Filter{Since: base}, true},
		{"since after", Filter{Since: base.Add(time.Second)}, false},
		{"until exclusive", Filter{Until: base}, false},
		{"until after", Filter{Until: base.Add(time.Second)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(e))
		})
	}
}
