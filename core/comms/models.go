package comms

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/admitflow/core"
)

// Record types
const (
	TypeCall = "call"
	TypeSMS  = "sms"
)

// Call outcomes
const (
	OutcomeAnswered      = "Answered"
	OutcomeNotAnswered   = "Not Answered"
	OutcomeBusy          = "Busy"
	OutcomeSwitchedOff   = "Switched Off"
	OutcomeWrongNumber   = "Wrong Number"
	OutcomeCallBackLater = "Call Back Later"
)

// Placeholder is the DLT positional variable marker.
const Placeholder = "{#var#}"

var (
	AllOutcomes = []string{
		OutcomeAnswered, OutcomeNotAnswered, OutcomeBusy,
		OutcomeSwitchedOff, OutcomeWrongNumber, OutcomeCallBackLater,
	}

	errVariableCount = "template expects %d variable(s), got %d"
)

// CommunicationRecord is a logged call or a sent SMS. Append-only, except for SMS delivery status.
type CommunicationRecord struct {
	ID                string              `json:"id"`
	LeadID            string              `json:"leadId"`
	Type              string              `json:"type"`
	ContactNumber     string              `json:"contactNumber"`
	CallOutcome       string              `json:"callOutcome,omitempty"`
	DurationSeconds   int                 `json:"durationSeconds,omitempty"`
	Remarks           string              `json:"remarks,omitempty"`
	TemplateID        string              `json:"templateId,omitempty"`
	TemplateName      string              `json:"templateName,omitempty"`
	Content           string              `json:"content,omitempty"`
	ProviderMessageID string              `json:"providerMessageId,omitempty"`
	Status            core.DeliveryStatus `json:"status"`
	ActorID           string              `json:"actorId"`
	ActorName         string              `json:"actorName"`
	SentAt            time.Time           `json:"sentAt"` // UTC
}

func (r CommunicationRecord) IsCall() bool { return r.Type == TypeCall }
func (r CommunicationRecord) IsSMS() bool  { return r.Type == TypeSMS }

// MessageTemplate is a DLT registered SMS template with positional `{#var#}` placeholders.
type MessageTemplate struct {
	ID            string    `json:"id" yaml:"-"`
	Name          string    `json:"name" yaml:"name"`
	DLTTemplateID string    `json:"dltTemplateId" yaml:"dltTemplateId"`
	Content       string    `json:"content" yaml:"content"`
	VariableCount int       `json:"variableCount" yaml:"-"`
	IsActive      bool      `json:"isActive" yaml:"isActive"`
	CreatedAt     time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt     time.Time `json:"updatedAt" yaml:"-"`
}

// CountVariables returns the number of placeholders in content.
func CountVariables(content string) int {
	return strings.Count(content, Placeholder)
}

// Render fills the placeholders in order.
func (t MessageTemplate) Render(values []string) (string, error) {
	n := CountVariables(t.Content)
	if len(values) != n {
		err := errors.Errorf(errVariableCount, n, len(values))
		return "", core.NewValidationError(err, core.FieldError{Field: "variables", Error: err.Error()})
	}

	var b strings.Builder
	rest := t.Content
	for _, v := range values {
		idx := strings.Index(rest, Placeholder)
		b.WriteString(rest[:idx])
		b.WriteString(v)
		rest = rest[idx+len(Placeholder):]
	}
	b.WriteString(rest)
	return b.String(), nil
}

// NewCall contains information needed to log a call.
type NewCall struct {
	ContactNumber   string `json:"contactNumber" validate:"required,mobile"`
	CallOutcome     string `json:"callOutcome" validate:"required,call_outcome"`
	DurationSeconds int    `json:"durationSeconds" validate:"min=0"`
	Remarks         string `json:"remarks"`
}

func (nc *NewCall) Validate(validate *validator.Validate) error {
	nc.ContactNumber = core.CleanPhone(nc.ContactNumber)
	nc.Remarks = core.CleanString(nc.Remarks)
	return validate.Struct(nc)
}

// SendSMS requests one SMS per contact number; the lead's phone is used when none is given.
type SendSMS struct {
	TemplateID     string   `json:"templateId" validate:"required"`
	Variables      []string `json:"variables"`
	ContactNumbers []string `json:"contactNumbers" validate:"omitempty,dive,mobile"`
}

func (ss *SendSMS) Validate(validate *validator.Validate) error {
	numbers := make([]string, 0, len(ss.ContactNumbers))
	seen := make(map[string]bool, len(ss.ContactNumbers))
	for _, n := range ss.ContactNumbers {
		n = core.CleanPhone(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		numbers = append(numbers, n)
	}
	ss.ContactNumbers = numbers
	return validate.Struct(ss)
}

// NewTemplate contains information needed to create or import a MessageTemplate.
type NewTemplate struct {
	Name          string `json:"name" yaml:"name" validate:"required"`
	DLTTemplateID string `json:"dltTemplateId" yaml:"dltTemplateId" validate:"required,numeric"`
	Content       string `json:"content" yaml:"content" validate:"required"`
	IsActive      *bool  `json:"isActive" yaml:"isActive"`
}

func (nt *NewTemplate) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.DLTTemplateID = core.CleanString(nt.DLTTemplateID)
	nt.Content = strings.TrimSpace(nt.Content)
	return validate.Struct(nt)
}

// UpdateTemplate holds the editable template fields; empty fields are left untouched.
type UpdateTemplate struct {
	Name          string `json:"name"`
	DLTTemplateID string `json:"dltTemplateId" validate:"omitempty,numeric"`
	Content       string `json:"content"`
	IsActive      *bool  `json:"isActive"`
}

func (tu *UpdateTemplate) Validate(validate *validator.Validate) error {
	tu.Name = core.CleanString(tu.Name)
	tu.DLTTemplateID = core.CleanString(tu.DLTTemplateID)
	tu.Content = strings.TrimSpace(tu.Content)
	return validate.Struct(tu)
}

type StatsFilter struct {
	From    time.Time `query:"from"`
	To      time.Time `query:"to"`
	ActorID string    `query:"actorId"`
}

// StatBucket is one GROUP BY row of communication records.
type StatBucket struct {
	ActorID     string
	ActorName   string
	Type        string
	Status      core.DeliveryStatus
	CallOutcome string
	Count       int
}

type ActorStats struct {
	ActorID   string `json:"actorId"`
	ActorName string `json:"actorName"`
	Calls     int    `json:"calls"`
	SMS       int    `json:"sms"`
}

type Stats struct {
	TotalCalls     int            `json:"totalCalls"`
	TotalSMS       int            `json:"totalSms"`
	SMSSuccess     int            `json:"smsSuccess"`
	SMSFailed      int            `json:"smsFailed"`
	SMSPending     int            `json:"smsPending"`
	CallsByOutcome map[string]int `json:"callsByOutcome"`
	ByActor        []ActorStats   `json:"byActor"`
}

func (s Stats) String() string {
	return fmt.Sprintf("calls=%d sms=%d (success=%d failed=%d pending=%d)",
		s.TotalCalls, s.TotalSMS, s.SMSSuccess, s.SMSFailed, s.SMSPending)
}
