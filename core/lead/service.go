package lead

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("lead")
	ErrNoChanges          = errors.New("nothing to update")
	ErrCounsellorInactive = errors.New("counsellor account is deactivated")
	errCounsellorNotFound = errors.New("counsellor not found")
	errNothingSelected    = errors.New("no leads selected")
)

type (
	Repository interface {
		CreateLead(ctx context.Context, l Lead) (Lead, error)
		// QueryLeads applies AND operation on available QueryFilter fields and returns a page of leads
		// together with the total number of matching leads.
		QueryLeads(ctx context.Context, filter QueryFilter, page core.Page, ordering []core.DBOrdering) ([]Lead, int, error)
		QueryLeadIDs(ctx context.Context, filter QueryFilter) ([]string, error)
		GetLead(ctx context.Context, id string) (Lead, error)
		GetLeadsByID(ctx context.Context, ids ...string) ([]Lead, error)
		UpdateLead(ctx context.Context, l Lead) (Lead, error)
		// DeleteLeadsByID deletes leads together with their activity logs & communication records.
		DeleteLeadsByID(ctx context.Context, ids ...string) (int, error)

		CreateActivityLogs(ctx context.Context, logs ...ActivityLog) error
		// QueryActivityLogs returns the lead's logs, oldest first.
		QueryActivityLogs(ctx context.Context, leadID string) ([]ActivityLog, error)
	}

	Service interface {
		Create(ctx context.Context, nl NewLead, actor user.User) (Lead, error)
		Query(ctx context.Context, filter QueryFilter, page core.Page, ordering []core.DBOrdering, viewer user.User) ([]Lead, core.PageMeta, error)
		QueryIDs(ctx context.Context, filter QueryFilter, viewer user.User) ([]string, error)
		Get(ctx context.Context, id string, viewer user.User) (Lead, error)
		Update(ctx context.Context, id string, ul UpdateLead, actor user.User) (Lead, error)
		AddActivity(ctx context.Context, id string, na NewActivity, actor user.User) (Lead, []ActivityLog, error)
		Assign(ctx context.Context, ids []string, counsellorID string, actor user.User) (int, error)
		Delete(ctx context.Context, id string) error
		BulkDelete(ctx context.Context, ids []string) (int, error)
		Activities(ctx context.Context, id string, viewer user.User) ([]ActivityLog, error)
	}

	service struct {
		repo    Repository
		tx      core.Transactor
		seq     core.Sequencer
		usrSvc  user.Service
		mailSvc core.EmailService
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	tx core.Transactor,
	seq core.Sequencer,
	usrSvc user.Service,
	mailSvc core.EmailService,
	logger core.Logger,
) Service {
	return &service{repo: repo, tx: tx, seq: seq, usrSvc: usrSvc, mailSvc: mailSvc, logger: logger}
}

// scope restricts counsellors to the leads assigned to them.
func scope(filter QueryFilter, viewer user.User) QueryFilter {
	if viewer.IsCounsellor() {
		filter.AssignedTo = viewer.ID
		filter.Unassigned = false
	}
	return filter
}

func canView(l Lead, viewer user.User) bool {
	return !viewer.IsCounsellor() || l.AssignedTo == viewer.ID
}

func (svc *service) Create(ctx context.Context, nl NewLead, actor user.User) (Lead, error) {
	now := core.NowFunc()
	l := Lead{
		ID:               uuid.NewString(),
		Name:             nl.Name,
		Phone:            nl.Phone,
		AlternatePhone:   nl.AlternatePhone,
		Email:            nl.Email,
		FatherName:       nl.FatherName,
		FatherPhone:      nl.FatherPhone,
		MotherName:       nl.MotherName,
		Village:          nl.Village,
		Mandal:           nl.Mandal,
		District:         nl.District,
		State:            nl.State,
		CourseInterested: nl.CourseInterested,
		Source:           nl.Source,
		LeadStatus:       core.FirstNonEmpty(nl.LeadStatus, StatusNew),
		Quota:            core.FirstNonEmpty(nl.Quota, QuotaNotApplicable),
		Notes:            nl.Notes,
		CreatedBy:        actor.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// counsellors own the leads they capture
	if actor.IsCounsellor() {
		l.AssignedTo = actor.ID
		l.AssignedToName = actor.DisplayName()
		l.AssignedAt = now
		l.AssignedBy = actor.ID
	}

	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		seq, err := svc.seq.Next(ctx, enquirySeqKey(now))
		if err != nil {
			return errors.Wrap(err, "getting enquiry sequence")
		}
		l.EnquiryNumber = FormatEnquiryNumber(now, seq)

		if l, err = svc.repo.CreateLead(ctx, l); err != nil {
			return errors.Wrap(err, "creating lead")
		}
		return nil
	})
	if err != nil {
		return Lead{}, err
	}
	return l, nil
}

func (svc *service) Query(
	ctx context.Context,
	filter QueryFilter,
	page core.Page,
	ordering []core.DBOrdering,
	viewer user.User,
) ([]Lead, core.PageMeta, error) {
	if len(ordering) == 0 {
		ordering = DefaultOrdering
	}
	page = core.NewPage(page.Page, page.Limit)

	leads, total, err := svc.repo.QueryLeads(ctx, scope(filter, viewer), page, ordering)
	if err != nil {
		return nil, core.PageMeta{}, errors.Wrap(err, "querying leads")
	}
	if leads == nil {
		leads = []Lead{}
	}
	return leads, core.BuildPageMeta(total, page), nil
}

func (svc *service) QueryIDs(ctx context.Context, filter QueryFilter, viewer user.User) ([]string, error) {
	ids, err := svc.repo.QueryLeadIDs(ctx, scope(filter, viewer))
	if err != nil {
		return nil, errors.Wrap(err, "querying lead ids")
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (svc *service) Get(ctx context.Context, id string, viewer user.User) (Lead, error) {
	l, err := svc.repo.GetLead(ctx, id)
	if err != nil {
		return Lead{}, err
	}
	if !canView(l, viewer) {
		return Lead{}, ErrNotFound
	}
	return l, nil
}

func (svc *service) Update(ctx context.Context, id string, ul UpdateLead, actor user.User) (Lead, error) {
	var l Lead
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if l, err = svc.Get(ctx, id, actor); err != nil {
			return err
		}

		changes := ul.apply(&l)
		if len(changes) == 0 {
			return nil
		}
		fields := make([]string, 0, len(changes))
		for name := range changes {
			fields = append(fields, name)
		}
		sort.Strings(fields)

		now := core.NowFunc()
		l.UpdatedAt = now
		if l, err = svc.repo.UpdateLead(ctx, l); err != nil {
			return errors.Wrap(err, "updating lead")
		}

		log := newLog(l, ActivityFieldUpdate, actor, now)
		log.Metadata = map[string]interface{}{
			MetaFields:  fields,
			MetaChanges: changes,
		}
		return errors.Wrap(svc.repo.CreateActivityLogs(ctx, log), "creating activity log")
	})
	if err != nil {
		return Lead{}, err
	}
	return l, nil
}

// AddActivity turns a status/quota/comment update into activity logs:
// a status change carries the comment; a quota change gets it only when the status is unchanged;
// a lone comment produces a comment log.
func (svc *service) AddActivity(ctx context.Context, id string, na NewActivity, actor user.User) (Lead, []ActivityLog, error) {
	var (
		l    Lead
		logs []ActivityLog
	)
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if l, err = svc.Get(ctx, id, actor); err != nil {
			return err
		}

		now := core.NowFunc()
		comment := na.Comment
		changed := false

		if na.NewStatus != "" && na.NewStatus != l.LeadStatus {
			log := newLog(l, ActivityStatusChange, actor, now)
			log.OldStatus = l.LeadStatus
			log.NewStatus = na.NewStatus
			log.Comment = comment
			comment = ""
			logs = append(logs, log)
			l.LeadStatus = na.NewStatus
			changed = true
		}
		if na.NewQuota != "" && na.NewQuota != l.Quota {
			log := newLog(l, ActivityQuotaChange, actor, now)
			log.OldQuota = l.Quota
			log.NewQuota = na.NewQuota
			log.Comment = comment
			comment = ""
			logs = append(logs, log)
			l.Quota = na.NewQuota
			changed = true
		}
		if comment != "" {
			log := newLog(l, ActivityComment, actor, now)
			log.Comment = comment
			logs = append(logs, log)
		}
		if len(logs) == 0 {
			return core.NewValidationError(ErrNoChanges)
		}

		if changed {
			l.UpdatedAt = now
			if l, err = svc.repo.UpdateLead(ctx, l); err != nil {
				return errors.Wrap(err, "updating lead")
			}
		}
		return errors.Wrap(svc.repo.CreateActivityLogs(ctx, logs...), "creating activity logs")
	})
	if err != nil {
		return Lead{}, nil, err
	}
	return l, logs, nil
}

func (svc *service) Assign(ctx context.Context, ids []string, counsellorID string, actor user.User) (int, error) {
	if len(ids) == 0 {
		return 0, core.NewValidationError(errNothingSelected)
	}

	counsellor, err := svc.usrSvc.GetByID(ctx, counsellorID)
	if err != nil {
		if core.IsNotFound(err) {
			return 0, core.NewValidationError(nil, core.FieldError{Field: "counsellorId", Error: errCounsellorNotFound.Error()})
		}
		return 0, errors.Wrap(err, "finding counsellor")
	}
	if !counsellor.IsActive {
		return 0, core.NewValidationError(nil, core.FieldError{Field: "counsellorId", Error: ErrCounsellorInactive.Error()})
	}

	var assigned []Lead
	err = svc.tx.InTx(ctx, func(ctx context.Context) error {
		leads, err := svc.repo.GetLeadsByID(ctx, ids...)
		if err != nil {
			return errors.Wrap(err, "finding leads")
		}

		now := core.NowFunc()
		logs := make([]ActivityLog, 0, len(leads))
		for _, l := range leads {
			if l.AssignedTo == counsellor.ID {
				continue
			}
			prev := l.AssignedToName

			l.AssignedTo = counsellor.ID
			l.AssignedToName = counsellor.DisplayName()
			l.AssignedAt = now
			l.AssignedBy = actor.ID
			l.UpdatedAt = now
			if l, err = svc.repo.UpdateLead(ctx, l); err != nil {
				return errors.Wrap(err, "updating lead")
			}
			assigned = append(assigned, l)

			log := newLog(l, ActivityStatusChange, actor, now)
			log.OldStatus = l.LeadStatus
			log.NewStatus = l.LeadStatus
			log.Comment = fmt.Sprintf("Assigned to %s", l.AssignedToName)
			log.Metadata = map[string]interface{}{
				MetaAssignment:     true,
				MetaAssignedTo:     l.AssignedTo,
				MetaAssignedToName: l.AssignedToName,
			}
			if prev != "" {
				log.Metadata["previousAssignee"] = prev
			}
			logs = append(logs, log)
		}
		if len(logs) == 0 {
			return nil
		}
		return errors.Wrap(svc.repo.CreateActivityLogs(ctx, logs...), "creating activity logs")
	})
	if err != nil {
		return 0, err
	}

	if len(assigned) > 0 {
		svc.sendAssignedMail(counsellor, actor, assigned)
	}
	return len(assigned), nil
}

func (svc *service) sendAssignedMail(counsellor, actor user.User, leads []Lead) {
	if counsellor.Email == "" {
		return
	}
	type mailLead struct {
		EnquiryNumber string
		Name          string
		Phone         string
	}
	data := make([]mailLead, 0, len(leads))
	for _, l := range leads {
		data = append(data, mailLead{EnquiryNumber: l.EnquiryNumber, Name: l.Name, Phone: l.Phone})
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: counsellor.Name, Address: counsellor.Email}},
		Subject:      "New leads assigned",
		TemplateName: "leads_assigned",
		TemplateData: map[string]interface{}{
			"Counsellor": counsellor.DisplayName(),
			"AssignedBy": actor.DisplayName(),
			"Leads":      data,
		},
	})
}

func (svc *service) Delete(ctx context.Context, id string) error {
	n, err := svc.repo.DeleteLeadsByID(ctx, id)
	if err != nil {
		return errors.Wrap(err, "deleting lead")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (svc *service) BulkDelete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, core.NewValidationError(errNothingSelected)
	}
	var n int
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		n, err = svc.repo.DeleteLeadsByID(ctx, ids...)
		return errors.Wrap(err, "deleting leads")
	})
	if err != nil {
		return 0, err
	}
	svc.logger.Info(fmt.Sprintf("bulk deleted %d lead(s)", n))
	return n, nil
}

func (svc *service) Activities(ctx context.Context, id string, viewer user.User) ([]ActivityLog, error) {
	if _, err := svc.Get(ctx, id, viewer); err != nil {
		return nil, err
	}
	logs, err := svc.repo.QueryActivityLogs(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "querying activity logs")
	}
	if logs == nil {
		logs = []ActivityLog{}
	}
	return logs, nil
}

func newLog(l Lead, typ string, actor user.User, at time.Time) ActivityLog {
	return ActivityLog{
		ID:        uuid.NewString(),
		LeadID:    l.ID,
		Type:      typ,
		ActorID:   actor.ID,
		ActorName: actor.DisplayName(),
		CreatedAt: at,
	}
}
