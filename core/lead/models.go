package lead

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/admitflow/core"
)

// Lead statuses
const (
	StatusNew           = "New"
	StatusContacted     = "Contacted"
	StatusInterested    = "Interested"
	StatusNotInterested = "Not Interested"
	StatusCallback      = "Callback"
	StatusConfirmed     = "Confirmed"
	StatusAdmitted      = "Admitted"
	StatusDropped       = "Dropped"
)

// Quotas
const (
	QuotaNotApplicable = "Not Applicable"
	QuotaManagement    = "Management"
	QuotaConvenor      = "Convenor"
	QuotaNRI           = "NRI"
)

// Activity types
const (
	ActivityStatusChange = "status_change"
	ActivityQuotaChange  = "quota_change"
	ActivityComment      = "comment"
	ActivityFieldUpdate  = "field_update"
)

// Activity metadata keys
const (
	MetaAssignment     = "assignment"
	MetaAssignedTo     = "assignedTo"
	MetaAssignedToName = "assignedToName"
	MetaFields         = "fields"
	MetaChanges        = "changes"
)

var (
	AllStatuses = []string{
		StatusNew, StatusContacted, StatusInterested, StatusNotInterested,
		StatusCallback, StatusConfirmed, StatusAdmitted, StatusDropped,
	}
	AllQuotas = []string{QuotaNotApplicable, QuotaManagement, QuotaConvenor, QuotaNRI}

	enquiryPrefix = "ENQ"
)

type Lead struct {
	ID               string    `json:"id"`
	EnquiryNumber    string    `json:"enquiryNumber"`
	Name             string    `json:"name"`
	Phone            string    `json:"phone"`
	AlternatePhone   string    `json:"alternatePhone"`
	Email            string    `json:"email"`
	FatherName       string    `json:"fatherName"`
	FatherPhone      string    `json:"fatherPhone"`
	MotherName       string    `json:"motherName"`
	Village          string    `json:"village"`
	Mandal           string    `json:"mandal"`
	District         string    `json:"district"`
	State            string    `json:"state"`
	CourseInterested string    `json:"courseInterested"`
	Source           string    `json:"source"`
	LeadStatus       string    `json:"leadStatus"`
	Quota            string    `json:"quota"`
	AssignedTo       string    `json:"assignedTo"`
	AssignedToName   string    `json:"assignedToName"`
	AssignedAt       time.Time `json:"assignedAt"` // UTC
	AssignedBy       string    `json:"assignedBy"`
	Notes            string    `json:"notes"`
	CreatedBy        string    `json:"createdBy"`
	CreatedAt        time.Time `json:"createdAt"` // UTC
	UpdatedAt        time.Time `json:"updatedAt"` // UTC
}

func (l Lead) IsAssigned() bool { return l.AssignedTo != "" }

func (l Lead) LogLead() (id, enquiryNumber string) { return l.ID, l.EnquiryNumber }

// FormatEnquiryNumber returns ENQ<YY><6 digits seq>, e.g. ENQ26000042
func FormatEnquiryNumber(t time.Time, seq int) string {
	return fmt.Sprintf("%s%02d%06d", enquiryPrefix, t.Year()%100, seq)
}

func enquirySeqKey(t time.Time) string {
	return fmt.Sprintf("enquiry:%d", t.Year())
}

// ActivityLog is an append-only event attached to a Lead.
type ActivityLog struct {
	ID        string                 `json:"id"`
	LeadID    string                 `json:"leadId"`
	Type      string                 `json:"type"`
	OldStatus string                 `json:"oldStatus,omitempty"`
	NewStatus string                 `json:"newStatus,omitempty"`
	OldQuota  string                 `json:"oldQuota,omitempty"`
	NewQuota  string                 `json:"newQuota,omitempty"`
	Comment   string                 `json:"comment,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	ActorID   string                 `json:"actorId"`
	ActorName string                 `json:"actorName"`
	CreatedAt time.Time              `json:"createdAt"` // UTC
}

// IsAssignment reports whether the log records a counsellor assignment.
func (a ActivityLog) IsAssignment() bool {
	if a.Metadata == nil {
		return false
	}
	flag, _ := a.Metadata[MetaAssignment].(bool)
	return flag
}

// NewLead contains information needed to create a new Lead.
type NewLead struct {
	Name             string `json:"name" validate:"required"`
	Phone            string `json:"phone" validate:"required,mobile"`
	AlternatePhone   string `json:"alternatePhone" validate:"omitempty,mobile"`
	Email            string `json:"email" validate:"omitempty,email"`
	FatherName       string `json:"fatherName"`
	FatherPhone      string `json:"fatherPhone" validate:"omitempty,mobile"`
	MotherName       string `json:"motherName"`
	Village          string `json:"village"`
	Mandal           string `json:"mandal"`
	District         string `json:"district"`
	State            string `json:"state"`
	CourseInterested string `json:"courseInterested"`
	Source           string `json:"source"`
	LeadStatus       string `json:"leadStatus" validate:"omitempty,lead_status"`
	Quota            string `json:"quota" validate:"omitempty,quota"`
	Notes            string `json:"notes"`
}

func (nl *NewLead) Validate(validate *validator.Validate) error {
	nl.Name = core.CleanString(nl.Name)
	nl.Phone = core.CleanPhone(nl.Phone)
	nl.AlternatePhone = core.CleanPhone(nl.AlternatePhone)
	nl.FatherPhone = core.CleanPhone(nl.FatherPhone)
	nl.Email = core.CleanString(nl.Email, true /* lower */)
	return validate.Struct(nl)
}

// UpdateLead holds the editable lead fields; nil fields are left untouched.
type UpdateLead struct {
	Name             *string `json:"name" validate:"omitempty,min=1"`
	Phone            *string `json:"phone" validate:"omitempty,mobile"`
	AlternatePhone   *string `json:"alternatePhone" validate:"omitempty,mobile"`
	Email            *string `json:"email" validate:"omitempty,email"`
	FatherName       *string `json:"fatherName"`
	FatherPhone      *string `json:"fatherPhone" validate:"omitempty,mobile"`
	MotherName       *string `json:"motherName"`
	Village          *string `json:"village"`
	Mandal           *string `json:"mandal"`
	District         *string `json:"district"`
	State            *string `json:"state"`
	CourseInterested *string `json:"courseInterested"`
	Source           *string `json:"source"`
	Notes            *string `json:"notes"`
}

func (ul *UpdateLead) Validate(validate *validator.Validate) error {
	clean := func(s *string, fn func(string) string) {
		if s != nil {
			*s = fn(*s)
		}
	}
	clean(ul.Name, func(s string) string { return core.CleanString(s) })
	clean(ul.Email, func(s string) string { return core.CleanString(s, true /* lower */) })
	clean(ul.Phone, core.CleanPhone)
	clean(ul.AlternatePhone, core.CleanPhone)
	clean(ul.FatherPhone, core.CleanPhone)
	return validate.Struct(ul)
}

// FieldChange records the old & new values of an updated field.
type FieldChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// apply sets the provided fields on l and returns the changes, keyed by json field name.
func (ul UpdateLead) apply(l *Lead) map[string]FieldChange {
	changes := make(map[string]FieldChange)
	set := func(name string, dst *string, src *string) {
		if src == nil || *dst == *src {
			return
		}
		changes[name] = FieldChange{Old: *dst, New: *src}
		*dst = *src
	}
	set("name", &l.Name, ul.Name)
	set("phone", &l.Phone, ul.Phone)
	set("alternatePhone", &l.AlternatePhone, ul.AlternatePhone)
	set("email", &l.Email, ul.Email)
	set("fatherName", &l.FatherName, ul.FatherName)
	set("fatherPhone", &l.FatherPhone, ul.FatherPhone)
	set("motherName", &l.MotherName, ul.MotherName)
	set("village", &l.Village, ul.Village)
	set("mandal", &l.Mandal, ul.Mandal)
	set("district", &l.District, ul.District)
	set("state", &l.State, ul.State)
	set("courseInterested", &l.CourseInterested, ul.CourseInterested)
	set("source", &l.Source, ul.Source)
	set("notes", &l.Notes, ul.Notes)
	return changes
}

// NewActivity is a single status/quota/comment update request.
type NewActivity struct {
	NewStatus string `json:"newStatus" validate:"omitempty,lead_status"`
	NewQuota  string `json:"newQuota" validate:"omitempty,quota"`
	Comment   string `json:"comment"`
}

func (na *NewActivity) Validate(validate *validator.Validate) error {
	na.NewStatus = strings.TrimSpace(na.NewStatus)
	na.NewQuota = strings.TrimSpace(na.NewQuota)
	na.Comment = core.CleanString(na.Comment)
	return validate.Struct(na)
}

// AssignRequest assigns leads to a counsellor.
type AssignRequest struct {
	LeadIDs      []string `json:"leadIds" validate:"required,min=1,dive,required"`
	CounsellorID string   `json:"counsellorId" validate:"required"`
}

func (ar AssignRequest) Validate(validate *validator.Validate) error { return validate.Struct(ar) }

type QueryFilter struct {
	Search        string    `query:"search"`
	EnquiryNumber string    `query:"enquiryNumber"`
	Statuses      []string  `query:"leadStatus"`
	Quotas        []string  `query:"quota"`
	District      string    `query:"district"`
	Mandal        string    `query:"mandal"`
	State         string    `query:"state"`
	Course        string    `query:"courseInterested"`
	Source        string    `query:"source"`
	AssignedTo    string    `query:"assignedTo"`
	Unassigned    bool      `query:"unassigned"`
	CreatedFrom   time.Time `query:"createdFrom"`
	CreatedTo     time.Time `query:"createdTo"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.EnquiryNumber = strings.ToUpper(core.CleanString(qf.EnquiryNumber))
	qf.District = core.CleanString(qf.District)
	qf.Mandal = core.CleanString(qf.Mandal)
	qf.State = core.CleanString(qf.State)
	qf.Course = core.CleanString(qf.Course)
	qf.Source = core.CleanString(qf.Source)
	qf.AssignedTo = core.CleanString(qf.AssignedTo)
	qf.Statuses = cleanList(qf.Statuses)
	qf.Quotas = cleanList(qf.Quotas)
}

// cleanList trims values and splits comma separated ones.
func cleanList(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Orderings maps API ordering fields to lead columns.
var Orderings = map[string]string{
	"createdAt":     "created_at",
	"updatedAt":     "updated_at",
	"name":          "name",
	"enquiryNumber": "enquiry_number",
	"leadStatus":    "lead_status",
	"assignedAt":    "assigned_at",
}

// DefaultOrdering is newest first.
var DefaultOrdering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
