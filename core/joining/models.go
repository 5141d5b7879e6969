package joining

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/admitflow/core"
)

// Joining statuses
const (
	StatusDraft           = "draft"
	StatusPendingApproval = "pending_approval"
	StatusApproved        = "approved"
)

// Admission statuses
const (
	AdmissionActive    = "active"
	AdmissionCancelled = "cancelled"
)

var admissionPrefix = "ADM"

type (
	StudentSection struct {
		FullName      string `json:"fullName"`
		DateOfBirth   string `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
		Gender        string `json:"gender" validate:"omitempty,oneof=male female other"`
		Phone         string `json:"phone" validate:"omitempty,mobile"`
		Email         string `json:"email" validate:"omitempty,email"`
		AadhaarNumber string `json:"aadhaarNumber" validate:"omitempty,numeric,len=12"`
		Category      string `json:"category"`
		BloodGroup    string `json:"bloodGroup"`
	}

	ParentsSection struct {
		FatherName       string `json:"fatherName"`
		FatherPhone      string `json:"fatherPhone" validate:"omitempty,mobile"`
		FatherOccupation string `json:"fatherOccupation"`
		MotherName       string `json:"motherName"`
		MotherPhone      string `json:"motherPhone" validate:"omitempty,mobile"`
		AnnualIncome     int    `json:"annualIncome" validate:"min=0"`
	}

	AddressSection struct {
		Line1    string `json:"line1"`
		Village  string `json:"village"`
		Mandal   string `json:"mandal"`
		District string `json:"district"`
		State    string `json:"state"`
		Pincode  string `json:"pincode" validate:"omitempty,pincode"`
	}

	EducationEntry struct {
		Level         string  `json:"level" validate:"required"` // SSC, Intermediate, ...
		Board         string  `json:"board"`
		Institution   string  `json:"institution"`
		YearOfPassing int     `json:"yearOfPassing" validate:"omitempty,min=1950,max=2100"`
		Percentage    float64 `json:"percentage" validate:"min=0,max=100"`
	}

	Document struct {
		Name     string `json:"name" validate:"required"`
		Received bool   `json:"received"`
		Remarks  string `json:"remarks"`
	}

	// Payload is the multi-section form shared by a joining and its admission.
	Payload struct {
		Student   StudentSection   `json:"student"`
		Parents   ParentsSection   `json:"parents"`
		Address   AddressSection   `json:"address"`
		Education []EducationEntry `json:"education" validate:"dive"`
		Documents []Document       `json:"documents" validate:"dive"`
	}
)

type Joining struct {
	ID          string    `json:"id"`
	LeadID      string    `json:"leadId"`
	Status      string    `json:"status"`
	CourseID    string    `json:"courseId"`
	BranchID    string    `json:"branchId"`
	Quota       string    `json:"quota"`
	Payload     Payload   `json:"payload"`
	SubmittedAt time.Time `json:"submittedAt"`
	SubmittedBy string    `json:"submittedBy"`
	ApprovedAt  time.Time `json:"approvedAt"`
	ApprovedBy  string    `json:"approvedBy"`
	Remarks     string    `json:"remarks"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (j Joining) IsDraft() bool    { return j.Status == StatusDraft }
func (j Joining) IsPending() bool  { return j.Status == StatusPendingApproval }
func (j Joining) IsApproved() bool { return j.Status == StatusApproved }

// missingFields lists the fields required before a joining can be submitted.
func (j Joining) missingFields() []core.FieldError {
	var errs []core.FieldError
	req := func(field, val string) {
		if val == "" {
			errs = append(errs, core.FieldError{Field: field, Error: "this field is required"})
		}
	}
	req("courseId", j.CourseID)
	req("quota", j.Quota)
	req("student.fullName", j.Payload.Student.FullName)
	req("student.dateOfBirth", j.Payload.Student.DateOfBirth)
	req("student.gender", j.Payload.Student.Gender)
	req("student.phone", j.Payload.Student.Phone)
	req("parents.fatherName", j.Payload.Parents.FatherName)
	req("address.district", j.Payload.Address.District)
	req("address.state", j.Payload.Address.State)
	req("address.pincode", j.Payload.Address.Pincode)
	if len(j.Payload.Education) == 0 {
		errs = append(errs, core.FieldError{Field: "education", Error: "at least one education entry is required"})
	}
	return errs
}

// SaveJoining is a draft save of the joining form.
type SaveJoining struct {
	CourseID string  `json:"courseId"`
	BranchID string  `json:"branchId"`
	Quota    string  `json:"quota" validate:"omitempty,quota"`
	Payload  Payload `json:"payload"`
}

func (sj *SaveJoining) Validate(validate *validator.Validate) error {
	s := &sj.Payload.Student
	s.FullName = core.CleanString(s.FullName)
	s.Phone = core.CleanPhone(s.Phone)
	s.Email = core.CleanString(s.Email, true /* lower */)
	p := &sj.Payload.Parents
	p.FatherPhone = core.CleanPhone(p.FatherPhone)
	p.MotherPhone = core.CleanPhone(p.MotherPhone)
	sj.Payload.Address.Pincode = core.CleanString(sj.Payload.Address.Pincode)
	return validate.Struct(sj)
}

type SendBack struct {
	Remarks string `json:"remarks" validate:"required"`
}

func (sb *SendBack) Validate(validate *validator.Validate) error {
	sb.Remarks = core.CleanString(sb.Remarks)
	return validate.Struct(sb)
}

// Admission is the finalised enrolment minted when a joining is approved.
type Admission struct {
	ID              string    `json:"id"`
	AdmissionNumber string    `json:"admissionNumber"`
	LeadID          string    `json:"leadId"`
	JoiningID       string    `json:"joiningId"`
	CourseID        string    `json:"courseId"`
	BranchID        string    `json:"branchId"`
	Quota           string    `json:"quota"`
	Payload         Payload   `json:"payload"`
	TotalFee        float64   `json:"totalFee"`
	Status          string    `json:"status"`
	AdmittedAt      time.Time `json:"admittedAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// FormatAdmissionNumber returns ADM<YY><COURSECODE><4 digits seq>, e.g. ADM26BTECH0007
func FormatAdmissionNumber(t time.Time, courseCode string, seq int) string {
	return fmt.Sprintf("%s%02d%s%04d", admissionPrefix, t.Year()%100, courseCode, seq)
}

func admissionSeqKey(t time.Time, courseCode string) string {
	return fmt.Sprintf("admission:%s:%d", courseCode, t.Year())
}

// UpdateAdmission holds the editable admission sections; nil sections are left untouched.
type UpdateAdmission struct {
	Student *StudentSection `json:"student"`
	Parents *ParentsSection `json:"parents"`
	Address *AddressSection `json:"address"`
	Status  string          `json:"status" validate:"omitempty,oneof=active cancelled"`
}

func (ua *UpdateAdmission) Validate(validate *validator.Validate) error {
	if ua.Student != nil {
		ua.Student.Phone = core.CleanPhone(ua.Student.Phone)
		ua.Student.Email = core.CleanString(ua.Student.Email, true /* lower */)
	}
	if ua.Parents != nil {
		ua.Parents.FatherPhone = core.CleanPhone(ua.Parents.FatherPhone)
		ua.Parents.MotherPhone = core.CleanPhone(ua.Parents.MotherPhone)
	}
	return validate.Struct(ua)
}

type AdmissionFilter struct {
	Search   string    `query:"search"`
	CourseID string    `query:"courseId"`
	Quota    string    `query:"quota"`
	Status   string    `query:"status"`
	From     time.Time `query:"from"`
	To       time.Time `query:"to"`
}

func (af *AdmissionFilter) Clean() {
	af.Search = core.CleanString(af.Search)
	af.CourseID = core.CleanString(af.CourseID)
	af.Quota = core.CleanString(af.Quota)
	af.Status = core.CleanString(af.Status, true /* lower */)
}
