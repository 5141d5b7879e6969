package lead_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/lead"
	"github.com/trezcool/admitflow/core/user"
	testutil "github.com/trezcool/admitflow/tests"
)

type fixture struct {
	env        *testutil.Env
	admin      user.User
	manager    user.User
	counsellor user.User
	other      user.User
}

func newFixture(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	return fixture{
		env:        env,
		admin:      testutil.CreateUser(t, env.UserRepo, "Admin", "admin", "admin@example.com", "", user.RoleSuperAdmin, true),
		manager:    testutil.CreateUser(t, env.UserRepo, "Manager", "manager", "manager@example.com", "", user.RoleManager, true),
		counsellor: testutil.CreateUser(t, env.UserRepo, "Ravi", "ravi", "ravi@example.com", "", user.RoleUser, true),
		other:      testutil.CreateUser(t, env.UserRepo, "Sita", "sita", "sita@example.com", "", user.RoleUser, true),
	}
}

func TestService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := testutil.CreateLead(t, f.env.LeadSvc, f.manager, "Anil", "9848022338")
	second := testutil.CreateLead(t, f.env.LeadSvc, f.manager, "Bhavani", "9848022339")

	assert.Equal(t, lead.StatusNew, first.LeadStatus)
	assert.Equal(t, lead.QuotaNotApplicable, first.Quota)
	assert.False(t, first.IsAssigned())
	assert.Regexp(t, `^ENQ\d{2}000001$`, first.EnquiryNumber)
	assert.Regexp(t, `^ENQ\d{2}000002$`, second.EnquiryNumber)

	t.Run("counsellors own what they capture", func(t *testing.T) {
		l, err := f.env.LeadSvc.Create(ctx, lead.NewLead{Name: "Chaitanya", Phone: "9848022340"}, f.counsellor)
		require.NoError(t, err)
		assert.Equal(t, f.counsellor.ID, l.AssignedTo)
		assert.Equal(t, "Ravi", l.AssignedToName)
	})
}

func TestService_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine := testutil.CreateLead(t, f.env.LeadSvc, f.manager, "Mine", "9848022338")
	theirs := testutil.CreateLead(t, f.env.LeadSvc, f.manager, "Theirs", "9848022339")
	testutil.CreateLead(t, f.env.LeadSvc, f.manager, "Nobody", "9848022340")
	testutil.AssignLeads(t, f.env.LeadSvc, f.counsellor, f.manager, mine)
	testutil.AssignLeads(t, f.env.LeadSvc, f.other, f.manager, theirs)

	tests := []struct {
		name   string
		viewer user.User
		filter lead.QueryFilter
		want   int
	}{
		{"admin sees all", f.admin, lead.QueryFilter{}, 3},
		{"manager sees all", f.manager, lead.QueryFilter{}, 3},
		{"manager unassigned", f.manager, lead.QueryFilter{Unassigned: true}, 1},
		{"counsellor sees own", f.counsellor, lead.QueryFilter{}, 1},
		{"counsellor cannot widen scope", f.counsellor, lead.QueryFilter{AssignedTo: f.other.ID}, 1},
		{"counsellor ignores unassigned", f.counsellor, lead.QueryFilter{Unassigned: true}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leads, meta, err := f.env.LeadSvc.Query(ctx, tt.filter, core.NewPage(1, 20), nil, tt.viewer)
			require.NoError(t, err)
			assert.Len(t, leads, tt.want)
			assert.Equal(t, tt.want, meta.Total)

			ids, err := f.env.LeadSvc.QueryIDs(ctx, tt.filter, tt.viewer)
			require.NoError(t, err)
			assert.Len(t, ids, tt.want)
		})
	}

	t.Run("get outside scope is not found", func(t *testing.T) {
		_, err := f.env.LeadSvc.Get(ctx, theirs.ID, f.counsellor)
		assert.True(t, core.IsNotFound(err))

		_, err = f.env.LeadSvc.Get(ctx, mine.ID, f.counsellor)
		assert.NoError(t, err)
	})
}

func TestService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := testutil.CreateLead(t, f.env.LeadSvc, f.manager, "Anil", "9848022338")

	district := "Guntur"
	name := "Anil"
	updated, err := f.env.LeadSvc.Update(ctx, l.ID, lead.UpdateLead{District: &district, Name: &name}, f.manager)
	require.NoError(t, err)
	assert.Equal(t, "Guntur", updated.District)

	logs, err := f.env.LeadSvc.Activities(ctx, l.ID, f.manager)
	require.NoError(t, err)
	require.Len(t, logs, 1, "unchanged fields are not logged")
	assert.Equal(t, lead.ActivityFieldUpdate, logs[0].Type)
	assert.Equal(t, []string{"district"}, logs[0].Metadata[lead.MetaFields])

	t.Run("no changes no log", func(t *testing.T) {
		_, err := f.env.LeadSvc.Update(ctx, l.ID, lead.UpdateLead{District: &district}, f.manager)
		require.NoError(t, err)
		logs, _ := f.env.LeadSvc.Activities(ctx, l.ID, f.manager)
		assert.Len(t, logs, 1)
	})
}

func TestService_AddActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		activity  lead.NewActivity
		wantTypes []string
		wantErr   bool
	}{
		{
			name:      "status quota and comment",
			activity:  lead.NewActivity{NewStatus: lead.StatusInterested, NewQuota: lead.QuotaManagement, Comment: "wants CSE"},
			wantTypes: []string{lead.ActivityStatusChange, lead.ActivityQuotaChange},
		},
		{
			name:      "quota and comment",
			activity:  lead.NewActivity{NewQuota: lead.QuotaNRI, Comment: "abroad"},
			wantTypes: []string{lead.ActivityQuotaChange},
		},
		{
			name:      "comment only",
			activity:  lead.NewActivity{Comment: "call after exams"},
			wantTypes: []string{lead.ActivityComment},
		},
		{
			name:      "unchanged status with comment",
			activity:  lead.NewActivity{NewStatus: lead.StatusNew, Comment: "still thinking"},
			wantTypes: []string{lead.ActivityComment},
		},
		{
			name:     "nothing",
			activity: lead.NewActivity{NewStatus: lead.StatusNew},
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := testutil.CreateLead(t, f.env.LeadSvc, f.manager, "Anil", "9848022338")

			updated, logs, err := f.env.LeadSvc.AddActivity(ctx, l.ID, tt.activity, f.manager)
			if tt.wantErr {
				var verr *core.ValidationError
				assert.ErrorAs(t, err, &verr)
				return
			}
			require.NoError(t, err)

			var types []string
			for _, log := range logs {
				types = append(types, log.Type)
			}
			assert.Equal(t, tt.wantTypes, types)
			assert.Equal(t, tt.activity.Comment, logs[0].Comment, "comment goes on the first log")
			for _, log := range logs[1:] {
				assert.Empty(t, log.Comment)
			}
			if tt.activity.NewStatus != "" {
				assert.Equal(t, tt.activity.NewStatus, updated.LeadStatus)
			}
			if tt.activity.NewQuota != "" {
				assert.Equal(t, tt.activity.NewQuota, updated.Quota)
			}
		})
	}
}

func TestService_Assign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := testutil.CreateLead(t, f.env.LeadSvc, f.manager, "Anil", "9848022338")
	b := testutil.CreateLead(t, f.env.LeadSvc, f.manager, "Bhavani", "9848022339")

	n, err := f.env.LeadSvc.Assign(ctx, []string{a.ID, b.ID, "missing"}, f.counsellor.ID, f.manager)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := f.env.LeadSvc.Get(ctx, a.ID, f.counsellor)
	require.NoError(t, err)
	assert.Equal(t, f.counsellor.ID, got.AssignedTo)
	assert.Equal(t, f.manager.ID, got.AssignedBy)

	logs, err := f.env.LeadSvc.Activities(ctx, a.ID, f.manager)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.True(t, logs[len(logs)-1].IsAssignment() || logs[0].IsAssignment())

	t.Run("inactive counsellor", func(t *testing.T) {
		inactive := testutil.CreateUser(t, f.env.UserRepo, "Old", "oldhand", "old@example.com", "", user.RoleUser, false)
		_, err := f.env.LeadSvc.Assign(ctx, []string{a.ID}, inactive.ID, f.manager)
		var verr *core.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("nothing selected", func(t *testing.T) {
		_, err := f.env.LeadSvc.Assign(ctx, nil, f.counsellor.ID, f.manager)
		var verr *core.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestService_BulkDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 10; i++ {
		ids = append(ids, testutil.CreateLead(t, f.env.LeadSvc, f.manager, "Lead", "9848022338").ID)
	}

	n, err := f.env.LeadSvc.BulkDelete(ctx, ids[:3])
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, meta, err := f.env.LeadSvc.Query(ctx, lead.QueryFilter{}, core.NewPage(1, 20), nil, f.manager)
	require.NoError(t, err)
	assert.Equal(t, 7, meta.Total)

	require.NoError(t, f.env.LeadSvc.Delete(ctx, ids[3]))
	assert.True(t, core.IsNotFound(f.env.LeadSvc.Delete(ctx, ids[3])))
}
