package statusflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admitflow/client"
	"github.com/trezcool/admitflow/core/lead"
	"github.com/trezcool/admitflow/core/user"
	testutil "github.com/trezcool/admitflow/tests"
)

type recordingAPI struct {
	calls []lead.NewActivity
	err   error
}

func (api *recordingAPI) AddActivity(_ context.Context, leadID string, na lead.NewActivity) (client.ActivityResult, error) {
	api.calls = append(api.calls, na)
	if api.err != nil {
		return client.ActivityResult{}, api.err
	}
	l := lead.Lead{ID: leadID, LeadStatus: lead.StatusNew, Quota: lead.QuotaNotApplicable}
	if na.NewStatus != "" {
		l.LeadStatus = na.NewStatus
	}
	if na.NewQuota != "" {
		l.Quota = na.NewQuota
	}
	return client.ActivityResult{Lead: l}, nil
}

func newLead() lead.Lead {
	return lead.Lead{ID: "l1", LeadStatus: lead.StatusNew, Quota: lead.QuotaNotApplicable}
}

func TestFlow_Submit(t *testing.T) {
	tests := []struct {
		name          string
		draft         Draft
		wantConfirm   bool
		wantErr       error
		wantActivity  lead.NewActivity
		wantCallCount int
	}{
		{
			name:    "nothing changed",
			draft:   Draft{NewStatus: lead.StatusNew, NewQuota: lead.QuotaNotApplicable, Comment: "  "},
			wantErr: ErrNoChanges,
		},
		{
			name:          "comment only",
			draft:         Draft{NewStatus: lead.StatusNew, NewQuota: lead.QuotaNotApplicable, Comment: "called back later"},
			wantActivity:  lead.NewActivity{Comment: "called back later"},
			wantCallCount: 1,
		},
		{
			name:          "quota only",
			draft:         Draft{NewStatus: lead.StatusNew, NewQuota: lead.QuotaNRI},
			wantActivity:  lead.NewActivity{NewQuota: lead.QuotaNRI},
			wantCallCount: 1,
		},
		{
			name:        "status change waits for confirmation",
			draft:       Draft{NewStatus: lead.StatusConfirmed, NewQuota: lead.QuotaNotApplicable},
			wantConfirm: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &recordingAPI{}
			f := New(api, newLead())
			f.SetStatus(tt.draft.NewStatus)
			f.SetQuota(tt.draft.NewQuota)
			f.SetComment(tt.draft.Comment)

			out, err := f.Submit(context.Background())
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				assert.Empty(t, api.calls)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantConfirm, out.NeedsConfirmation)
			require.Len(t, api.calls, tt.wantCallCount)
			if tt.wantCallCount > 0 {
				assert.Equal(t, tt.wantActivity, api.calls[0])
				assert.Equal(t, StepEditing, f.Step())
			} else {
				assert.Equal(t, StepConfirming, f.Step())
			}
		})
	}
}

func TestFlow_Confirm(t *testing.T) {
	api := &recordingAPI{}
	f := New(api, newLead())
	ctx := context.Background()

	_, err := f.Confirm(ctx)
	assert.Equal(t, ErrNotConfirmed, err)

	f.SetStatus(lead.StatusConfirmed)
	f.SetQuota(lead.QuotaManagement)
	f.SetComment("paid token amount")
	out, err := f.Submit(ctx)
	require.NoError(t, err)
	require.True(t, out.NeedsConfirmation)

	f.Cancel()
	assert.Equal(t, StepEditing, f.Step())
	assert.Equal(t, lead.StatusConfirmed, f.Draft().NewStatus, "cancel keeps the draft")
	assert.Empty(t, api.calls)

	_, _ = f.Submit(ctx)
	out, err = f.Confirm(ctx)
	require.NoError(t, err)
	require.Len(t, api.calls, 1, "one call for status, quota & comment")
	assert.Equal(t, lead.NewActivity{NewStatus: lead.StatusConfirmed, NewQuota: lead.QuotaManagement, Comment: "paid token amount"}, api.calls[0])

	assert.Equal(t, lead.StatusConfirmed, out.Lead.LeadStatus)
	assert.Equal(t, lead.StatusConfirmed, f.Lead().LeadStatus)
	assert.Equal(t, Draft{NewStatus: lead.StatusConfirmed, NewQuota: lead.QuotaManagement}, f.Draft(), "draft restarts from the saved lead")
}

func TestFlow_EditWithdrawsConfirmation(t *testing.T) {
	f := New(&recordingAPI{}, newLead())
	f.SetStatus(lead.StatusDropped)
	_, _ = f.Submit(context.Background())
	require.Equal(t, StepConfirming, f.Step())

	f.SetComment("not reachable")
	assert.Equal(t, StepEditing, f.Step())
	_, err := f.Confirm(context.Background())
	assert.Equal(t, ErrNotConfirmed, err)
}

func TestFlow_FailureKeepsState(t *testing.T) {
	api := &recordingAPI{err: &client.APIError{StatusCode: 500}}
	l := newLead()
	f := New(api, l)
	f.SetQuota(lead.QuotaConvenor)

	_, err := f.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, client.GenericErrorMessage, client.MessageOf(err))
	assert.Equal(t, l, f.Lead(), "no optimistic update")
	assert.Equal(t, lead.QuotaConvenor, f.Draft().NewQuota)
	assert.Equal(t, StepEditing, f.Step())
}

func TestFlow_AgainstAPI(t *testing.T) {
	env := testutil.NewEnv(t)
	ts := testutil.NewAPIServer(t, env)
	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin", "admin@example.com", "P@ssw0rd", user.RoleSuperAdmin, true)
	l := testutil.CreateLead(t, env.LeadSvc, admin, "Anil", "9848022338")
	ctx := context.Background()

	api := client.New(ts.URL, client.WithHTTPClient(ts.Client()))
	_, err := api.Login(ctx, "admin", "P@ssw0rd")
	require.NoError(t, err)

	// warm both caches
	cached, err := api.GetLead(ctx, l.ID)
	require.NoError(t, err)
	_, err = api.ListLeads(ctx, map[string]string{"leadStatus": lead.StatusConfirmed})
	require.NoError(t, err)

	f := New(api, cached)
	f.SetStatus(lead.StatusConfirmed)
	f.SetComment("joining next week")
	_, err = f.Submit(ctx)
	require.NoError(t, err)
	out, err := f.Confirm(ctx)
	require.NoError(t, err)
	require.Len(t, out.Activities, 1)
	assert.Equal(t, lead.StatusNew, out.Activities[0].OldStatus)
	assert.Equal(t, "joining next week", out.Activities[0].Comment)

	got, err := api.GetLead(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, lead.StatusConfirmed, got.LeadStatus)

	page, err := api.ListLeads(ctx, map[string]string{"leadStatus": lead.StatusConfirmed})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Meta.Total)
}
