package joining_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/catalog"
	"github.com/trezcool/admitflow/core/joining"
	"github.com/trezcool/admitflow/core/lead"
	"github.com/trezcool/admitflow/core/user"
	testutil "github.com/trezcool/admitflow/tests"
)

func completeDraft(courseID string) joining.SaveJoining {
	return joining.SaveJoining{
		CourseID: courseID,
		Quota:    lead.QuotaManagement,
		Payload: joining.Payload{
			Student: joining.StudentSection{FullName: "Anil Kumar", DateOfBirth: "2008-03-14", Gender: "male", Phone: "9848022338"},
			Parents: joining.ParentsSection{FatherName: "Ramesh"},
			Address: joining.AddressSection{District: "Guntur", State: "Andhra Pradesh", Pincode: "522001"},
			Education: []joining.EducationEntry{
				{Level: "Intermediate", Board: "BIEAP", YearOfPassing: 2026, Percentage: 91.5},
			},
		},
	}
}

func TestService_Workflow(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	manager := testutil.CreateUser(t, env.UserRepo, "Manager", "manager", "manager@example.com", "", user.RoleManager, true)
	counsellor := testutil.CreateUser(t, env.UserRepo, "Ravi", "ravi", "ravi@example.com", "", user.RoleUser, true)

	course, err := env.CatalogSvc.CreateCourse(ctx, catalog.NewCourse{Code: "BTECH", Name: "B.Tech", DurationYears: 4})
	require.NoError(t, err)
	_, err = env.CatalogSvc.SaveFee(ctx, catalog.NewFee{
		CourseID:     course.ID,
		Quota:        lead.QuotaManagement,
		AcademicYear: catalog.AcademicYear(time.Now().UTC()),
		Components:   []catalog.FeeComponent{{Name: "Tuition", Amount: 120000}, {Name: "Hostel", Amount: 60000}},
	})
	require.NoError(t, err)

	var leads []lead.Lead
	for i := 0; i < 2; i++ {
		leads = append(leads, testutil.CreateLead(t, env.LeadSvc, counsellor, fmt.Sprintf("Student %d", i), "9848022338"))
	}

	t.Run("draft is prefilled from the lead", func(t *testing.T) {
		j, err := env.JoiningSvc.SaveDraft(ctx, leads[0].ID, joining.SaveJoining{}, counsellor)
		require.NoError(t, err)
		assert.True(t, j.IsDraft())
		assert.Equal(t, "Student 0", j.Payload.Student.FullName)
		assert.Equal(t, "9848022338", j.Payload.Student.Phone)
	})

	t.Run("incomplete draft cannot be submitted", func(t *testing.T) {
		_, err := env.JoiningSvc.Submit(ctx, leads[0].ID, counsellor)
		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.NotEmpty(t, verr.Fields)
	})

	t.Run("unknown course", func(t *testing.T) {
		_, err := env.JoiningSvc.SaveDraft(ctx, leads[0].ID, completeDraft("missing"), counsellor)
		var verr *core.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	for _, l := range leads {
		_, err = env.JoiningSvc.SaveDraft(ctx, l.ID, completeDraft(course.ID), counsellor)
		require.NoError(t, err)
		j, err := env.JoiningSvc.Submit(ctx, l.ID, counsellor)
		require.NoError(t, err)
		assert.True(t, j.IsPending())
	}

	pending, err := env.JoiningSvc.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	t.Run("counsellors cannot approve", func(t *testing.T) {
		_, err := env.JoiningSvc.Approve(ctx, leads[0].ID, counsellor)
		assert.Equal(t, core.ErrForbidden, err)
	})

	t.Run("counsellors cannot edit pending", func(t *testing.T) {
		_, err := env.JoiningSvc.SaveDraft(ctx, leads[0].ID, completeDraft(course.ID), counsellor)
		assert.Equal(t, core.ErrForbidden, err)
	})

	yy := time.Now().UTC().Year() % 100
	for i, l := range leads {
		adm, err := env.JoiningSvc.Approve(ctx, l.ID, manager)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("ADM%02dBTECH%04d", yy, i+1), adm.AdmissionNumber)
		assert.Equal(t, float64(180000), adm.TotalFee)
		assert.Equal(t, joining.AdmissionActive, adm.Status)

		got, err := env.LeadSvc.Get(ctx, l.ID, manager)
		require.NoError(t, err)
		assert.Equal(t, lead.StatusAdmitted, got.LeadStatus)
	}

	t.Run("approved joining is locked", func(t *testing.T) {
		_, err := env.JoiningSvc.SaveDraft(ctx, leads[0].ID, completeDraft(course.ID), manager)
		assert.Error(t, err)
		_, err = env.JoiningSvc.Approve(ctx, leads[0].ID, manager)
		assert.Error(t, err)
	})

	t.Run("admissions", func(t *testing.T) {
		adms, meta, err := env.JoiningSvc.QueryAdmissions(ctx, joining.AdmissionFilter{CourseID: course.ID}, core.NewPage(1, 10))
		require.NoError(t, err)
		assert.Len(t, adms, 2)
		assert.Equal(t, 2, meta.Total)

		adm, err := env.JoiningSvc.GetAdmissionByLead(ctx, leads[1].ID, counsellor)
		require.NoError(t, err)

		updated, err := env.JoiningSvc.UpdateAdmission(ctx, adm.ID, joining.UpdateAdmission{Status: joining.AdmissionCancelled})
		require.NoError(t, err)
		assert.Equal(t, joining.AdmissionCancelled, updated.Status)
		assert.Equal(t, adm.AdmissionNumber, updated.AdmissionNumber)
	})
}

func TestService_SendBack(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	manager := testutil.CreateUser(t, env.UserRepo, "Manager", "manager", "manager@example.com", "", user.RoleManager, true)

	course, err := env.CatalogSvc.CreateCourse(ctx, catalog.NewCourse{Code: "MBA", Name: "MBA", DurationYears: 2})
	require.NoError(t, err)
	l := testutil.CreateLead(t, env.LeadSvc, manager, "Anil", "9848022338")

	_, err = env.JoiningSvc.SaveDraft(ctx, l.ID, completeDraft(course.ID), manager)
	require.NoError(t, err)

	_, err = env.JoiningSvc.SendBack(ctx, l.ID, joining.SendBack{Remarks: "missing TC"}, manager)
	assert.Error(t, err, "only pending joinings can be sent back")

	_, err = env.JoiningSvc.Submit(ctx, l.ID, manager)
	require.NoError(t, err)
	j, err := env.JoiningSvc.SendBack(ctx, l.ID, joining.SendBack{Remarks: "missing TC"}, manager)
	require.NoError(t, err)
	assert.True(t, j.IsDraft())
	assert.Equal(t, "missing TC", j.Remarks)

	t.Run("approval without fee structure", func(t *testing.T) {
		_, err := env.JoiningSvc.Submit(ctx, l.ID, manager)
		require.NoError(t, err)
		adm, err := env.JoiningSvc.Approve(ctx, l.ID, manager)
		require.NoError(t, err)
		assert.Zero(t, adm.TotalFee)
	})
}

func TestService_SaveDraftKeepsOmittedSections(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	counsellor := testutil.CreateUser(t, env.UserRepo, "Ravi", "ravi", "ravi@example.com", "", user.RoleUser, true)
	course, err := env.CatalogSvc.CreateCourse(ctx, catalog.NewCourse{Code: "BSC", Name: "B.Sc", DurationYears: 3})
	require.NoError(t, err)
	l := testutil.CreateLead(t, env.LeadSvc, counsellor, "Anil", "9848022338")

	_, err = env.JoiningSvc.SaveDraft(ctx, l.ID, completeDraft(course.ID), counsellor)
	require.NoError(t, err)

	// only the address changes
	j, err := env.JoiningSvc.SaveDraft(ctx, l.ID, joining.SaveJoining{
		Payload: joining.Payload{Address: joining.AddressSection{District: "Krishna", State: "Andhra Pradesh", Pincode: "521001"}},
	}, counsellor)
	require.NoError(t, err)

	assert.Equal(t, "Krishna", j.Payload.Address.District)
	assert.Equal(t, "Anil Kumar", j.Payload.Student.FullName)
	assert.Equal(t, "Ramesh", j.Payload.Parents.FatherName)
	require.Len(t, j.Payload.Education, 1)
	assert.Equal(t, "BIEAP", j.Payload.Education[0].Board)
	assert.Equal(t, course.ID, j.CourseID)
	assert.Equal(t, lead.QuotaManagement, j.Quota)

	got, err := env.JoiningSvc.Get(ctx, l.ID, counsellor)
	require.NoError(t, err)
	assert.Equal(t, j.Payload, got.Payload)
}
