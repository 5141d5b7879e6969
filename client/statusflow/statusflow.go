// Package statusflow edits a lead's status, quota and comment as one draft and submits it
// as a single activity.
package statusflow

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/admitflow/client"
	"github.com/trezcool/admitflow/core/lead"
)

// Steps
const (
	StepEditing    = "editing"
	StepConfirming = "confirming"
	StepSubmitting = "submitting"
)

var (
	ErrNoChanges    = errors.New("nothing to submit")
	ErrNotConfirmed = errors.New("status change has not been confirmed")
	ErrBusy         = errors.New("an update is already in progress")
)

type API interface {
	AddActivity(ctx context.Context, leadID string, na lead.NewActivity) (client.ActivityResult, error)
}

type Draft struct {
	NewStatus string
	NewQuota  string
	Comment   string
}

// Outcome of a Submit call.
type Outcome struct {
	NeedsConfirmation bool
	Lead              lead.Lead
	Activities        []lead.ActivityLog
}

type Flow struct {
	api API

	mu    sync.Mutex
	lead  lead.Lead
	draft Draft
	step  string
}

// New starts a flow on l with a draft holding its current status & quota.
func New(api API, l lead.Lead) *Flow {
	f := &Flow{api: api, lead: l, step: StepEditing}
	f.reset()
	return f
}

func (f *Flow) reset() {
	f.draft = Draft{NewStatus: f.lead.LeadStatus, NewQuota: f.lead.Quota}
	f.step = StepEditing
}

func (f *Flow) Lead() lead.Lead {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lead
}

func (f *Flow) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

func (f *Flow) Step() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

func (f *Flow) edit(fn func(d *Draft)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step == StepSubmitting {
		return
	}
	fn(&f.draft)
	f.step = StepEditing // an edit withdraws a pending confirmation
}

func (f *Flow) SetStatus(status string) { f.edit(func(d *Draft) { d.NewStatus = strings.TrimSpace(status) }) }

func (f *Flow) SetQuota(quota string) { f.edit(func(d *Draft) { d.NewQuota = strings.TrimSpace(quota) }) }

func (f *Flow) SetComment(comment string) { f.edit(func(d *Draft) { d.Comment = comment }) }

// activity returns the request for the draft, holding only what changed.
func (f *Flow) activity() lead.NewActivity {
	var na lead.NewActivity
	if f.draft.NewStatus != "" && f.draft.NewStatus != f.lead.LeadStatus {
		na.NewStatus = f.draft.NewStatus
	}
	if f.draft.NewQuota != "" && f.draft.NewQuota != f.lead.Quota {
		na.NewQuota = f.draft.NewQuota
	}
	na.Comment = strings.TrimSpace(f.draft.Comment)
	return na
}

// Submit sends the draft. A status change is held back until Confirm; comment-only and
// quota-only changes are sent right away.
func (f *Flow) Submit(ctx context.Context) (Outcome, error) {
	f.mu.Lock()
	if f.step == StepSubmitting {
		f.mu.Unlock()
		return Outcome{}, ErrBusy
	}
	na := f.activity()
	if na == (lead.NewActivity{}) {
		f.mu.Unlock()
		return Outcome{}, ErrNoChanges
	}
	if na.NewStatus != "" {
		f.step = StepConfirming
		f.mu.Unlock()
		return Outcome{NeedsConfirmation: true, Lead: f.Lead()}, nil
	}
	f.step = StepSubmitting
	leadID := f.lead.ID
	f.mu.Unlock()
	return f.send(ctx, leadID, na)
}

// Confirm sends a draft awaiting confirmation.
func (f *Flow) Confirm(ctx context.Context) (Outcome, error) {
	f.mu.Lock()
	switch f.step {
	case StepSubmitting:
		f.mu.Unlock()
		return Outcome{}, ErrBusy
	case StepEditing:
		f.mu.Unlock()
		return Outcome{}, ErrNotConfirmed
	}
	na := f.activity()
	f.step = StepSubmitting
	leadID := f.lead.ID
	f.mu.Unlock()
	return f.send(ctx, leadID, na)
}

// Cancel drops a pending confirmation and keeps the draft.
func (f *Flow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step == StepConfirming {
		f.step = StepEditing
	}
}

// send makes the single add-activity call. The lead is only updated from the server's answer.
func (f *Flow) send(ctx context.Context, leadID string, na lead.NewActivity) (Outcome, error) {
	res, err := f.api.AddActivity(ctx, leadID, na)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.step = StepEditing
		return Outcome{}, errors.Wrap(err, "adding activity")
	}
	f.lead = res.Lead
	f.reset()
	return Outcome{Lead: res.Lead, Activities: res.Activities}, nil
}
