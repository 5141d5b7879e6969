package echoapi_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admitflow/core/analytics"
	"github.com/trezcool/admitflow/core/catalog"
	"github.com/trezcool/admitflow/core/joining"
	"github.com/trezcool/admitflow/core/lead"
	"github.com/trezcool/admitflow/core/payment"
	testutil "github.com/trezcool/admitflow/tests"
)

func joiningForm(courseID string) joining.SaveJoining {
	return joining.SaveJoining{
		CourseID: courseID,
		Quota:    lead.QuotaConvenor,
		Payload: joining.Payload{
			Student:   joining.StudentSection{FullName: "Anil Kumar", DateOfBirth: "2008-03-14", Gender: "male", Phone: "9848022338"},
			Parents:   joining.ParentsSection{FatherName: "Ramesh"},
			Address:   joining.AddressSection{District: "Guntur", State: "Andhra Pradesh", Pincode: "522001"},
			Education: []joining.EducationEntry{{Level: "Intermediate", Percentage: 88}},
		},
	}
}

func TestCatalogAPI(t *testing.T) {
	f := newAPIFixture(t)
	course := catalog.NewCourse{Code: "btech", Name: "B.Tech", DurationYears: 4}

	rec := f.request(t, http.MethodPost, "/v1/courses", course, &f.manager)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.request(t, http.MethodPost, "/v1/courses", course, &f.admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c catalog.Course
	decodeData(t, rec, &c)
	assert.Equal(t, "BTECH", c.Code)

	rec = f.request(t, http.MethodPost, "/v1/courses/"+c.ID+"/branches", catalog.NewBranch{Code: "cse", Name: "Computer Science", Seats: 120}, &f.admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.request(t, http.MethodGet, "/v1/courses/"+c.ID+"/branches", nil, &f.counsellor)
	require.Equal(t, http.StatusOK, rec.Code)
	var branches []catalog.Branch
	decodeData(t, rec, &branches)
	require.Len(t, branches, 1)
	assert.Equal(t, "CSE", branches[0].Code)

	fee := catalog.NewFee{
		CourseID:     c.ID,
		Quota:        lead.QuotaConvenor,
		AcademicYear: catalog.AcademicYear(time.Now().UTC()),
		Components:   []catalog.FeeComponent{{Name: "Tuition", Amount: 35000}, {Name: "Bus", Amount: 15000}},
	}
	rec = f.request(t, http.MethodPut, "/v1/fees", fee, &f.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var fs catalog.FeeStructure
	decodeData(t, rec, &fs)
	assert.Equal(t, float64(50000), fs.Total)

	t.Run("bad academic year", func(t *testing.T) {
		bad := fee
		bad.AcademicYear = "2026-2028"
		rec := f.request(t, http.MethodPut, "/v1/fees", bad, &f.admin)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode(t, rec).Errors, "academicYear")
	})
}

func TestJoiningAPI_Approval(t *testing.T) {
	f := newAPIFixture(t)
	c, err := f.CatalogSvc.CreateCourse(context.Background(), catalog.NewCourse{Code: "MBA", Name: "MBA", DurationYears: 2})
	require.NoError(t, err)

	var leads []lead.Lead
	for i := 0; i < 3; i++ {
		l := testutil.CreateLead(t, f.LeadSvc, f.counsellor, fmt.Sprintf("Student %d", i), "9848022338")
		leads = append(leads, l)

		path := "/v1/leads/" + l.ID + "/joining"
		rec := f.request(t, http.MethodPut, path, joiningForm(c.ID), &f.counsellor)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rec = f.request(t, http.MethodPost, path+"/submit", nil, &f.counsellor)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := f.request(t, http.MethodGet, "/v1/joinings/pending", nil, &f.counsellor)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.request(t, http.MethodGet, "/v1/joinings/pending", nil, &f.manager)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []joining.Joining
	decodeData(t, rec, &pending)
	assert.Len(t, pending, 3)

	rec = f.request(t, http.MethodPost, "/v1/leads/"+leads[0].ID+"/joining/approve", nil, &f.counsellor)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	yy := time.Now().UTC().Year() % 100
	for i, l := range leads {
		rec := f.request(t, http.MethodPost, "/v1/leads/"+l.ID+"/joining/approve", nil, &f.manager)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var adm joining.Admission
		decodeData(t, rec, &adm)
		assert.Equal(t, fmt.Sprintf("ADM%02dMBA%04d", yy, i+1), adm.AdmissionNumber)

		rec = f.request(t, http.MethodGet, "/v1/leads/"+l.ID, nil, &f.counsellor)
		require.Equal(t, http.StatusOK, rec.Code)
		var got lead.Lead
		decodeData(t, rec, &got)
		assert.Equal(t, lead.StatusAdmitted, got.LeadStatus)
	}

	rec = f.request(t, http.MethodPost, "/v1/leads/"+leads[0].ID+"/joining/approve", nil, &f.manager)
	assert.Equal(t, http.StatusConflict, rec.Code, "already approved")

	rec = f.request(t, http.MethodGet, "/v1/admissions?courseId="+c.ID, nil, &f.manager)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decode(t, rec).Pagination["total"])

	t.Run("analytics", func(t *testing.T) {
		rec := f.request(t, http.MethodGet, "/v1/analytics/overview", nil, &f.manager)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var ov analytics.Overview
		decodeData(t, rec, &ov)
		assert.Equal(t, 3, ov.TotalLeads)
		assert.Equal(t, 3, ov.Admissions)
		assert.Equal(t, float64(100), ov.ConversionRate)
	})
}

func TestJoiningAPI_SendBack(t *testing.T) {
	f := newAPIFixture(t)
	c, err := f.CatalogSvc.CreateCourse(context.Background(), catalog.NewCourse{Code: "BBA", Name: "BBA", DurationYears: 3})
	require.NoError(t, err)
	l := testutil.CreateLead(t, f.LeadSvc, f.counsellor, "Anil", "9848022338")
	path := "/v1/leads/" + l.ID + "/joining"

	rec := f.request(t, http.MethodPost, path+"/submit", nil, &f.counsellor)
	assert.Equal(t, http.StatusNotFound, rec.Code, "no draft yet")

	rec = f.request(t, http.MethodPut, path, joining.SaveJoining{CourseID: c.ID}, &f.counsellor)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.request(t, http.MethodPost, path+"/submit", nil, &f.counsellor)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decode(t, rec).Errors)

	rec = f.request(t, http.MethodPut, path, joiningForm(c.ID), &f.counsellor)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.request(t, http.MethodPost, path+"/submit", nil, &f.counsellor)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.request(t, http.MethodPost, path+"/send-back", joining.SendBack{}, &f.manager)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "remarks are required")

	rec = f.request(t, http.MethodPost, path+"/send-back", joining.SendBack{Remarks: "upload TC"}, &f.manager)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var j joining.Joining
	decodeData(t, rec, &j)
	assert.True(t, j.IsDraft())
	assert.Equal(t, "upload TC", j.Remarks)
}

func TestPaymentAPI(t *testing.T) {
	f := newAPIFixture(t)
	path := "/v1/settings/payment-gateway"

	rec := f.request(t, http.MethodGet, path, nil, &f.manager)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.request(t, http.MethodGet, path, nil, &f.admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := payment.UpdateGateway{AppID: "app-123", SecretKey: "cfsk_ma_test_abcd1234", Environment: payment.EnvSandbox}
	rec = f.request(t, http.MethodPut, path, body, &f.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var gc payment.GatewayConfig
	decodeData(t, rec, &gc)
	assert.Equal(t, "****1234", gc.SecretKey)

	body.SecretKey = gc.SecretKey
	body.AppID = "app-456"
	rec = f.request(t, http.MethodPut, path, body, &f.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &gc)
	assert.Equal(t, "app-456", gc.AppID)
	assert.Equal(t, "****1234", gc.SecretKey, "masked secret keeps the stored one")
}
