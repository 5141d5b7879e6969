package comms

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/lead"
	"github.com/trezcool/admitflow/core/user"
)

var (
	// errors
	ErrTemplateNotFound   = core.NewNotFoundError("template")
	ErrTemplateInactive   = errors.New("template is not active")
	ErrDLTTemplateIDTaken = errors.New("a template with this DLT template ID already exists")
	errNoContactNumber    = errors.New("lead has no contact number")

	syncBatchSize = 200
)

type (
	Repository interface {
		CreateRecords(ctx context.Context, recs ...CommunicationRecord) error
		// QueryRecords returns the lead's records, newest first.
		QueryRecords(ctx context.Context, leadID string) ([]CommunicationRecord, error)
		// QueryPendingSMS returns up to limit pending SMS having a provider message ID, oldest first.
		QueryPendingSMS(ctx context.Context, limit int) ([]CommunicationRecord, error)
		UpdateRecordStatus(ctx context.Context, id string, status core.DeliveryStatus) error
		// RecordStats groups records by actor, type, status & call outcome.
		RecordStats(ctx context.Context, filter StatsFilter) ([]StatBucket, error)

		CreateTemplate(ctx context.Context, t MessageTemplate) (MessageTemplate, error)
		UpdateTemplate(ctx context.Context, t MessageTemplate) (MessageTemplate, error)
		GetTemplate(ctx context.Context, id string) (MessageTemplate, error)
		GetTemplateByDLTID(ctx context.Context, dltID string) (MessageTemplate, error)
		QueryTemplates(ctx context.Context, activeOnly bool) ([]MessageTemplate, error)
	}

	Service interface {
		LogCall(ctx context.Context, leadID string, nc NewCall, actor user.User) (CommunicationRecord, error)
		SendSMS(ctx context.Context, leadID string, req SendSMS, actor user.User) ([]CommunicationRecord, error)
		History(ctx context.Context, leadID string, viewer user.User) ([]CommunicationRecord, error)
		Stats(ctx context.Context, filter StatsFilter, viewer user.User) (Stats, error)
		// SyncPending refreshes the delivery status of pending SMS and returns how many changed.
		SyncPending(ctx context.Context) (int, error)

		ListTemplates(ctx context.Context, activeOnly bool) ([]MessageTemplate, error)
		GetTemplate(ctx context.Context, id string) (MessageTemplate, error)
		CreateTemplate(ctx context.Context, nt NewTemplate) (MessageTemplate, error)
		UpdateTemplate(ctx context.Context, id string, tu UpdateTemplate) (MessageTemplate, error)
		// UpsertTemplates creates or updates templates matched by DLT template ID.
		UpsertTemplates(ctx context.Context, nts []NewTemplate) (created, updated int, err error)
	}

	service struct {
		repo    Repository
		leadSvc lead.Service
		gateway core.SMSGateway
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, leadSvc lead.Service, gateway core.SMSGateway, logger core.Logger) Service {
	return &service{repo: repo, leadSvc: leadSvc, gateway: gateway, logger: logger}
}

func newRecord(leadID, typ, number string, actor user.User) CommunicationRecord {
	return CommunicationRecord{
		ID:            uuid.NewString(),
		LeadID:        leadID,
		Type:          typ,
		ContactNumber: number,
		ActorID:       actor.ID,
		ActorName:     actor.DisplayName(),
		SentAt:        core.NowFunc(),
	}
}

func (svc *service) LogCall(ctx context.Context, leadID string, nc NewCall, actor user.User) (CommunicationRecord, error) {
	if _, err := svc.leadSvc.Get(ctx, leadID, actor); err != nil {
		return CommunicationRecord{}, err
	}

	rec := newRecord(leadID, TypeCall, nc.ContactNumber, actor)
	rec.CallOutcome = nc.CallOutcome
	rec.DurationSeconds = nc.DurationSeconds
	rec.Remarks = nc.Remarks
	rec.Status = core.DeliverySuccess

	if err := svc.repo.CreateRecords(ctx, rec); err != nil {
		return CommunicationRecord{}, errors.Wrap(err, "creating call record")
	}
	return rec, nil
}

func (svc *service) SendSMS(ctx context.Context, leadID string, req SendSMS, actor user.User) ([]CommunicationRecord, error) {
	l, err := svc.leadSvc.Get(ctx, leadID, actor)
	if err != nil {
		return nil, err
	}

	tmpl, err := svc.repo.GetTemplate(ctx, req.TemplateID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "templateId", Error: ErrTemplateNotFound.Error()})
		}
		return nil, errors.Wrap(err, "finding template")
	}
	if !tmpl.IsActive {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "templateId", Error: ErrTemplateInactive.Error()})
	}
	content, err := tmpl.Render(req.Variables)
	if err != nil {
		return nil, err
	}

	numbers := req.ContactNumbers
	if len(numbers) == 0 {
		if l.Phone == "" {
			return nil, core.NewValidationError(errNoContactNumber)
		}
		numbers = []string{l.Phone}
	}

	recs := make([]CommunicationRecord, 0, len(numbers))
	for _, number := range numbers {
		rec := newRecord(leadID, TypeSMS, number, actor)
		rec.TemplateID = tmpl.ID
		rec.TemplateName = tmpl.Name
		rec.Content = content

		receipt, err := svc.gateway.Send(ctx, core.SMSMessage{To: number, Content: content, DLTTemplateID: tmpl.DLTTemplateID})
		if err != nil {
			svc.logger.Error(fmt.Sprintf("sending sms: %v", err), err, actor, l)
			rec.Status = core.DeliveryFailed
			rec.Remarks = err.Error()
		} else {
			rec.ProviderMessageID = receipt.ProviderMessageID
			rec.Status = receipt.Status
			if rec.Status == "" {
				rec.Status = core.DeliveryPending
			}
		}
		recs = append(recs, rec)
	}

	if err = svc.repo.CreateRecords(ctx, recs...); err != nil {
		return nil, errors.Wrap(err, "creating sms records")
	}
	return recs, nil
}

func (svc *service) History(ctx context.Context, leadID string, viewer user.User) ([]CommunicationRecord, error) {
	if _, err := svc.leadSvc.Get(ctx, leadID, viewer); err != nil {
		return nil, err
	}
	recs, err := svc.repo.QueryRecords(ctx, leadID)
	if err != nil {
		return nil, errors.Wrap(err, "querying communication records")
	}
	if recs == nil {
		recs = []CommunicationRecord{}
	}
	return recs, nil
}

func (svc *service) Stats(ctx context.Context, filter StatsFilter, viewer user.User) (Stats, error) {
	if viewer.IsCounsellor() {
		filter.ActorID = viewer.ID
	}
	buckets, err := svc.repo.RecordStats(ctx, filter)
	if err != nil {
		return Stats{}, errors.Wrap(err, "querying communication stats")
	}
	return foldStats(buckets), nil
}

func foldStats(buckets []StatBucket) Stats {
	stats := Stats{CallsByOutcome: make(map[string]int), ByActor: []ActorStats{}}
	actors := make(map[string]*ActorStats)

	for _, b := range buckets {
		as, ok := actors[b.ActorID]
		if !ok {
			as = &ActorStats{ActorID: b.ActorID, ActorName: b.ActorName}
			actors[b.ActorID] = as
		}
		switch b.Type {
		case TypeCall:
			stats.TotalCalls += b.Count
			stats.CallsByOutcome[b.CallOutcome] += b.Count
			as.Calls += b.Count
		case TypeSMS:
			stats.TotalSMS += b.Count
			as.SMS += b.Count
			switch b.Status {
			case core.DeliverySuccess:
				stats.SMSSuccess += b.Count
			case core.DeliveryFailed:
				stats.SMSFailed += b.Count
			default:
				stats.SMSPending += b.Count
			}
		}
	}

	for _, as := range actors {
		stats.ByActor = append(stats.ByActor, *as)
	}
	sort.Slice(stats.ByActor, func(i, j int) bool {
		ti := stats.ByActor[i].Calls + stats.ByActor[i].SMS
		tj := stats.ByActor[j].Calls + stats.ByActor[j].SMS
		if ti != tj {
			return ti > tj
		}
		return stats.ByActor[i].ActorName < stats.ByActor[j].ActorName
	})
	return stats
}

func (svc *service) SyncPending(ctx context.Context) (int, error) {
	pending, err := svc.repo.QueryPendingSMS(ctx, syncBatchSize)
	if err != nil {
		return 0, errors.Wrap(err, "querying pending sms")
	}

	var updated int
	for _, rec := range pending {
		status, err := svc.gateway.DeliveryStatus(ctx, rec.ProviderMessageID)
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("fetching delivery status of %s: %v", rec.ProviderMessageID, err), err)
			continue
		}
		if status == "" || status == rec.Status {
			continue
		}
		if err = svc.repo.UpdateRecordStatus(ctx, rec.ID, status); err != nil {
			return updated, errors.Wrap(err, "updating sms status")
		}
		updated++
	}
	return updated, nil
}

// Templates

func (svc *service) ListTemplates(ctx context.Context, activeOnly bool) ([]MessageTemplate, error) {
	tmpls, err := svc.repo.QueryTemplates(ctx, activeOnly)
	if err != nil {
		return nil, errors.Wrap(err, "querying templates")
	}
	if tmpls == nil {
		tmpls = []MessageTemplate{}
	}
	return tmpls, nil
}

func (svc *service) GetTemplate(ctx context.Context, id string) (MessageTemplate, error) {
	return svc.repo.GetTemplate(ctx, id)
}

func (svc *service) checkDLTID(ctx context.Context, dltID, exclID string) error {
	existing, err := svc.repo.GetTemplateByDLTID(ctx, dltID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil
		}
		return errors.Wrap(err, "finding template by DLT ID")
	}
	if existing.ID != exclID {
		return core.NewValidationError(nil, core.FieldError{Field: "dltTemplateId", Error: ErrDLTTemplateIDTaken.Error()})
	}
	return nil
}

func (svc *service) CreateTemplate(ctx context.Context, nt NewTemplate) (MessageTemplate, error) {
	if err := svc.checkDLTID(ctx, nt.DLTTemplateID, ""); err != nil {
		return MessageTemplate{}, err
	}
	now := core.NowFunc()
	t := MessageTemplate{
		ID:            uuid.NewString(),
		Name:          nt.Name,
		DLTTemplateID: nt.DLTTemplateID,
		Content:       nt.Content,
		VariableCount: CountVariables(nt.Content),
		IsActive:      nt.IsActive == nil || *nt.IsActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return svc.repo.CreateTemplate(ctx, t)
}

func (svc *service) UpdateTemplate(ctx context.Context, id string, tu UpdateTemplate) (MessageTemplate, error) {
	t, err := svc.repo.GetTemplate(ctx, id)
	if err != nil {
		return MessageTemplate{}, err
	}
	if tu.DLTTemplateID != "" && tu.DLTTemplateID != t.DLTTemplateID {
		if err = svc.checkDLTID(ctx, tu.DLTTemplateID, t.ID); err != nil {
			return MessageTemplate{}, err
		}
		t.DLTTemplateID = tu.DLTTemplateID
	}
	t.Name = core.FirstNonEmpty(tu.Name, t.Name)
	if tu.Content != "" {
		t.Content = tu.Content
		t.VariableCount = CountVariables(tu.Content)
	}
	if tu.IsActive != nil {
		t.IsActive = *tu.IsActive
	}
	t.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateTemplate(ctx, t)
}

func (svc *service) UpsertTemplates(ctx context.Context, nts []NewTemplate) (created, updated int, err error) {
	for _, nt := range nts {
		existing, err := svc.repo.GetTemplateByDLTID(ctx, nt.DLTTemplateID)
		switch {
		case err == nil:
			if _, err = svc.UpdateTemplate(ctx, existing.ID, UpdateTemplate{
				Name:     nt.Name,
				Content:  nt.Content,
				IsActive: nt.IsActive,
			}); err != nil {
				return created, updated, errors.Wrapf(err, "updating template %s", nt.DLTTemplateID)
			}
			updated++
		case core.IsNotFound(err):
			if _, err = svc.CreateTemplate(ctx, nt); err != nil {
				return created, updated, errors.Wrapf(err, "creating template %s", nt.DLTTemplateID)
			}
			created++
		default:
			return created, updated, errors.Wrap(err, "finding template by DLT ID")
		}
	}
	return created, updated, nil
}
