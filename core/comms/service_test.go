package comms_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/comms"
	"github.com/trezcool/admitflow/core/user"
	testutil "github.com/trezcool/admitflow/tests"
)

type downGateway struct{}

func (downGateway) Send(context.Context, core.SMSMessage) (core.SMSReceipt, error) {
	return core.SMSReceipt{}, errors.New("gateway unavailable")
}

func (downGateway) DeliveryStatus(context.Context, string) (core.DeliveryStatus, error) {
	return "", errors.New("gateway unavailable")
}

func TestService_LogCall(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	manager := testutil.CreateUser(t, env.UserRepo, "Manager", "manager", "manager@example.com", "", user.RoleManager, true)
	counsellor := testutil.CreateUser(t, env.UserRepo, "Ravi", "ravi", "ravi@example.com", "", user.RoleUser, true)
	l := testutil.CreateLead(t, env.LeadSvc, manager, "Anil", "9848022338")

	rec, err := env.CommsSvc.LogCall(ctx, l.ID, comms.NewCall{
		ContactNumber:   "9848022338",
		CallOutcome:     comms.OutcomeAnswered,
		DurationSeconds: 95,
	}, manager)
	require.NoError(t, err)
	assert.True(t, rec.IsCall())
	assert.Equal(t, core.DeliverySuccess, rec.Status)
	assert.Equal(t, "Manager", rec.ActorName)

	t.Run("counsellor outside scope", func(t *testing.T) {
		_, err := env.CommsSvc.LogCall(ctx, l.ID, comms.NewCall{ContactNumber: "9848022338", CallOutcome: comms.OutcomeBusy}, counsellor)
		assert.True(t, core.IsNotFound(err))
	})
}

func TestService_SendSMS(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	manager := testutil.CreateUser(t, env.UserRepo, "Manager", "manager", "manager@example.com", "", user.RoleManager, true)
	l := testutil.CreateLead(t, env.LeadSvc, manager, "Anil", "9848022338")
	tmpl := testutil.CreateTemplate(t, env.CommsSvc, "welcome", "1107160000000000001", "Dear {#var#}, visit us on {#var#}.")

	t.Run("defaults to the lead phone", func(t *testing.T) {
		recs, err := env.CommsSvc.SendSMS(ctx, l.ID, comms.SendSMS{TemplateID: tmpl.ID, Variables: []string{"Anil", "Monday"}}, manager)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "9848022338", recs[0].ContactNumber)
		assert.Equal(t, "Dear Anil, visit us on Monday.", recs[0].Content)
		assert.Equal(t, core.DeliveryPending, recs[0].Status)
		assert.NotEmpty(t, recs[0].ProviderMessageID)

		sent := env.SMS.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, tmpl.DLTTemplateID, sent[0].DLTTemplateID)
	})

	t.Run("one record per number", func(t *testing.T) {
		recs, err := env.CommsSvc.SendSMS(ctx, l.ID, comms.SendSMS{
			TemplateID:     tmpl.ID,
			Variables:      []string{"Anil", "Monday"},
			ContactNumbers: []string{"9848022338", "9123456789"},
		}, manager)
		require.NoError(t, err)
		assert.Len(t, recs, 2)
	})

	t.Run("variable count mismatch", func(t *testing.T) {
		_, err := env.CommsSvc.SendSMS(ctx, l.ID, comms.SendSMS{TemplateID: tmpl.ID, Variables: []string{"Anil"}}, manager)
		var verr *core.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("inactive template", func(t *testing.T) {
		off := false
		_, err := env.CommsSvc.UpdateTemplate(ctx, tmpl.ID, comms.UpdateTemplate{IsActive: &off})
		require.NoError(t, err)
		defer func() {
			on := true
			_, _ = env.CommsSvc.UpdateTemplate(ctx, tmpl.ID, comms.UpdateTemplate{IsActive: &on})
		}()

		_, err = env.CommsSvc.SendSMS(ctx, l.ID, comms.SendSMS{TemplateID: tmpl.ID, Variables: []string{"Anil", "Monday"}}, manager)
		var verr *core.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("gateway failure is recorded", func(t *testing.T) {
		svc := comms.NewService(env.CommsRepo, env.LeadSvc, downGateway{}, env.Logger)
		recs, err := svc.SendSMS(ctx, l.ID, comms.SendSMS{TemplateID: tmpl.ID, Variables: []string{"Anil", "Monday"}}, manager)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, core.DeliveryFailed, recs[0].Status)
		assert.Equal(t, "gateway unavailable", recs[0].Remarks)
	})
}

func TestService_SyncPending(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	manager := testutil.CreateUser(t, env.UserRepo, "Manager", "manager", "manager@example.com", "", user.RoleManager, true)
	l := testutil.CreateLead(t, env.LeadSvc, manager, "Anil", "9848022338")
	tmpl := testutil.CreateTemplate(t, env.CommsSvc, "reminder", "1107160000000000002", "Reminder for {#var#}")

	_, err := env.CommsSvc.SendSMS(ctx, l.ID, comms.SendSMS{
		TemplateID:     tmpl.ID,
		Variables:      []string{"Anil"},
		ContactNumbers: []string{"9848022338", "9123456789"},
	}, manager)
	require.NoError(t, err)

	n, err := env.CommsSvc.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = env.CommsSvc.SyncPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing left to sync")

	stats, err := env.CommsSvc.Stats(ctx, comms.StatsFilter{}, manager)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSMS)
	assert.Equal(t, 2, stats.SMSSuccess)
	assert.Zero(t, stats.SMSPending)
}

func TestService_Stats(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	manager := testutil.CreateUser(t, env.UserRepo, "Manager", "manager", "manager@example.com", "", user.RoleManager, true)
	counsellor := testutil.CreateUser(t, env.UserRepo, "Ravi", "ravi", "ravi@example.com", "", user.RoleUser, true)
	l := testutil.CreateLead(t, env.LeadSvc, counsellor, "Anil", "9848022338")

	for _, outcome := range []string{comms.OutcomeAnswered, comms.OutcomeBusy, comms.OutcomeBusy} {
		_, err := env.CommsSvc.LogCall(ctx, l.ID, comms.NewCall{ContactNumber: "9848022338", CallOutcome: outcome}, counsellor)
		require.NoError(t, err)
	}
	_, err := env.CommsSvc.LogCall(ctx, l.ID, comms.NewCall{ContactNumber: "9848022338", CallOutcome: comms.OutcomeAnswered}, manager)
	require.NoError(t, err)

	tests := []struct {
		name       string
		viewer     user.User
		wantCalls  int
		wantBusy   int
		wantActors int
	}{
		{"manager sees everyone", manager, 4, 2, 2},
		{"counsellor sees own", counsellor, 3, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats, err := env.CommsSvc.Stats(ctx, comms.StatsFilter{}, tt.viewer)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, stats.TotalCalls)
			assert.Equal(t, tt.wantBusy, stats.CallsByOutcome[comms.OutcomeBusy])
			assert.Len(t, stats.ByActor, tt.wantActors)
		})
	}
}

func TestService_UpsertTemplates(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	testutil.CreateTemplate(t, env.CommsSvc, "welcome", "1107160000000000001", "Hello {#var#}")

	created, updated, err := env.CommsSvc.UpsertTemplates(ctx, []comms.NewTemplate{
		{Name: "welcome v2", DLTTemplateID: "1107160000000000001", Content: "Hi {#var#}, from {#var#}"},
		{Name: "fees", DLTTemplateID: "1107160000000000003", Content: "Fee due {#var#}"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, updated)

	tmpls, err := env.CommsSvc.ListTemplates(ctx, true)
	require.NoError(t, err)
	require.Len(t, tmpls, 2)
	for _, tmpl := range tmpls {
		if tmpl.DLTTemplateID == "1107160000000000001" {
			assert.Equal(t, "welcome v2", tmpl.Name)
			assert.Equal(t, 2, tmpl.VariableCount)
		}
	}

	t.Run("duplicate DLT ID", func(t *testing.T) {
		_, err := env.CommsSvc.CreateTemplate(ctx, comms.NewTemplate{Name: "dup", DLTTemplateID: "1107160000000000003", Content: "x"})
		var verr *core.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}
