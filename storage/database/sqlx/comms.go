package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/comms"
)

var (
	recordColumns = []string{
		"id", "lead_id", "type", "contact_number", "call_outcome", "duration_seconds", "remarks",
		"template_id", "template_name", "content", "provider_message_id", "status",
		"actor_id", "actor_name", "sent_at",
	}

	templateColumns = []string{
		"id", "name", "dlt_template_id", "content", "variable_count", "is_active", "created_at", "updated_at",
	}
)

type recordRow struct {
	ID                string      `db:"id"`
	LeadID            string      `db:"lead_id"`
	Type              string      `db:"type"`
	ContactNumber     string      `db:"contact_number"`
	CallOutcome       string      `db:"call_outcome"`
	DurationSeconds   int         `db:"duration_seconds"`
	Remarks           string      `db:"remarks"`
	TemplateID        null.String `db:"template_id"`
	TemplateName      string      `db:"template_name"`
	Content           string      `db:"content"`
	ProviderMessageID string      `db:"provider_message_id"`
	Status            string      `db:"status"`
	ActorID           null.String `db:"actor_id"`
	ActorName         string      `db:"actor_name"`
	SentAt            time.Time   `db:"sent_at"`
}

func (r recordRow) record() comms.CommunicationRecord {
	return comms.CommunicationRecord{
		ID:                r.ID,
		LeadID:            r.LeadID,
		Type:              r.Type,
		ContactNumber:     r.ContactNumber,
		CallOutcome:       r.CallOutcome,
		DurationSeconds:   r.DurationSeconds,
		Remarks:           r.Remarks,
		TemplateID:        r.TemplateID.String,
		TemplateName:      r.TemplateName,
		Content:           r.Content,
		ProviderMessageID: r.ProviderMessageID,
		Status:            core.DeliveryStatus(r.Status),
		ActorID:           r.ActorID.String,
		ActorName:         r.ActorName,
		SentAt:            r.SentAt.UTC(),
	}
}

type templateRow struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	DLTTemplateID string    `db:"dlt_template_id"`
	Content       string    `db:"content"`
	VariableCount int       `db:"variable_count"`
	IsActive      bool      `db:"is_active"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r templateRow) template() comms.MessageTemplate {
	return comms.MessageTemplate{
		ID:            r.ID,
		Name:          r.Name,
		DLTTemplateID: r.DLTTemplateID,
		Content:       r.Content,
		VariableCount: r.VariableCount,
		IsActive:      r.IsActive,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type commsRepository struct {
	base
}

var _ comms.Repository = (*commsRepository)(nil) // interface compliance check

func NewCommsRepository(db *sqlx.DB) *commsRepository {
	return &commsRepository{base{db: db}}
}

func (repo *commsRepository) CreateRecords(ctx context.Context, recs ...comms.CommunicationRecord) error {
	if len(recs) == 0 {
		return nil
	}
	query := psql.Insert("communication_records").Columns(recordColumns...)
	for _, r := range recs {
		query = query.Values(
			r.ID, r.LeadID, r.Type, r.ContactNumber, r.CallOutcome, r.DurationSeconds, r.Remarks,
			nullID(r.TemplateID), r.TemplateName, r.Content, r.ProviderMessageID, string(r.Status),
			nullID(r.ActorID), r.ActorName, r.SentAt.UTC(),
		)
	}
	_, err := repo.execute(ctx, query)
	return errors.Wrap(err, "inserting communication records")
}

func (repo *commsRepository) queryRecords(ctx context.Context, query sq.SelectBuilder) ([]comms.CommunicationRecord, error) {
	var rows []recordRow
	if err := repo.selectAll(ctx, &rows, query); err != nil {
		return nil, err
	}
	recs := make([]comms.CommunicationRecord, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, r.record())
	}
	return recs, nil
}

func (repo *commsRepository) QueryRecords(ctx context.Context, leadID string) ([]comms.CommunicationRecord, error) {
	if !isValidID(leadID) {
		return []comms.CommunicationRecord{}, nil
	}
	query := psql.Select(recordColumns...).From("communication_records").
		Where(sq.Eq{"lead_id": leadID}).
		OrderBy("sent_at DESC", "id ASC")
	recs, err := repo.queryRecords(ctx, query)
	return recs, errors.Wrap(err, "querying communication records")
}

func pendingSMSQuery(limit int) sq.SelectBuilder {
	return psql.Select(recordColumns...).From("communication_records").
		Where(sq.Eq{"type": comms.TypeSMS, "status": string(core.DeliveryPending)}).
		Where(sq.NotEq{"provider_message_id": ""}).
		OrderBy("sent_at ASC").
		Limit(uint64(limit))
}

func (repo *commsRepository) QueryPendingSMS(ctx context.Context, limit int) ([]comms.CommunicationRecord, error) {
	recs, err := repo.queryRecords(ctx, pendingSMSQuery(limit))
	return recs, errors.Wrap(err, "querying pending sms")
}

func (repo *commsRepository) UpdateRecordStatus(ctx context.Context, id string, status core.DeliveryStatus) error {
	_, err := repo.execute(ctx, psql.Update("communication_records").
		Set("status", string(status)).
		Where(sq.Eq{"id": id}))
	return errors.Wrap(err, "updating record status")
}

func recordStatsQuery(filter comms.StatsFilter) sq.SelectBuilder {
	query := psql.Select(
		"COALESCE(actor_id::text, '') AS actor_id",
		"MAX(actor_name) AS actor_name",
		"type", "status", "call_outcome",
		"COUNT(*) AS count",
	).From("communication_records").
		GroupBy("actor_id", "type", "status", "call_outcome")

	if filter.ActorID != "" {
		if !isValidID(filter.ActorID) {
			return query.Where(sq.Expr("false"))
		}
		query = query.Where(sq.Eq{"actor_id": filter.ActorID})
	}
	if !filter.From.IsZero() {
		query = query.Where(sq.GtOrEq{"sent_at": filter.From.UTC()})
	}
	if !filter.To.IsZero() {
		query = query.Where(sq.LtOrEq{"sent_at": filter.To.UTC()})
	}
	return query
}

func (repo *commsRepository) RecordStats(ctx context.Context, filter comms.StatsFilter) ([]comms.StatBucket, error) {
	var rows []struct {
		ActorID     string `db:"actor_id"`
		ActorName   string `db:"actor_name"`
		Type        string `db:"type"`
		Status      string `db:"status"`
		CallOutcome string `db:"call_outcome"`
		Count       int    `db:"count"`
	}
	if err := repo.selectAll(ctx, &rows, recordStatsQuery(filter)); err != nil {
		return nil, errors.Wrap(err, "grouping communication records")
	}
	buckets := make([]comms.StatBucket, 0, len(rows))
	for _, r := range rows {
		buckets = append(buckets, comms.StatBucket{
			ActorID:     r.ActorID,
			ActorName:   r.ActorName,
			Type:        r.Type,
			Status:      core.DeliveryStatus(r.Status),
			CallOutcome: r.CallOutcome,
			Count:       r.Count,
		})
	}
	return buckets, nil
}

// Templates

func (repo *commsRepository) CreateTemplate(ctx context.Context, t comms.MessageTemplate) (comms.MessageTemplate, error) {
	query := psql.Insert("message_templates").Columns(templateColumns...).Values(
		t.ID, t.Name, t.DLTTemplateID, t.Content, t.VariableCount, t.IsActive, t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	)
	if _, err := repo.execute(ctx, query); err != nil {
		if isUniqueViolation(err) {
			return comms.MessageTemplate{}, comms.ErrDLTTemplateIDTaken
		}
		return comms.MessageTemplate{}, errors.Wrap(err, "inserting template")
	}
	return t, nil
}

func (repo *commsRepository) UpdateTemplate(ctx context.Context, t comms.MessageTemplate) (comms.MessageTemplate, error) {
	query := psql.Update("message_templates").SetMap(map[string]interface{}{
		"name":            t.Name,
		"dlt_template_id": t.DLTTemplateID,
		"content":         t.Content,
		"variable_count":  t.VariableCount,
		"is_active":       t.IsActive,
		"updated_at":      t.UpdatedAt.UTC(),
	}).Where(sq.Eq{"id": t.ID})

	n, err := repo.execute(ctx, query)
	if err != nil {
		if isUniqueViolation(err) {
			return comms.MessageTemplate{}, comms.ErrDLTTemplateIDTaken
		}
		return comms.MessageTemplate{}, errors.Wrap(err, "updating template")
	}
	if n == 0 {
		return comms.MessageTemplate{}, comms.ErrTemplateNotFound
	}
	return t, nil
}

func (repo *commsRepository) getTemplate(ctx context.Context, where sq.Eq) (comms.MessageTemplate, error) {
	var row templateRow
	query := psql.Select(templateColumns...).From("message_templates").Where(where)
	if err := repo.get(ctx, &row, query); err != nil {
		return comms.MessageTemplate{}, trapNoRowsErr(err, comms.ErrTemplateNotFound, "getting template")
	}
	return row.template(), nil
}

func (repo *commsRepository) GetTemplate(ctx context.Context, id string) (comms.MessageTemplate, error) {
	if !isValidID(id) {
		return comms.MessageTemplate{}, comms.ErrTemplateNotFound
	}
	return repo.getTemplate(ctx, sq.Eq{"id": id})
}

func (repo *commsRepository) GetTemplateByDLTID(ctx context.Context, dltID string) (comms.MessageTemplate, error) {
	return repo.getTemplate(ctx, sq.Eq{"dlt_template_id": dltID})
}

func (repo *commsRepository) QueryTemplates(ctx context.Context, activeOnly bool) ([]comms.MessageTemplate, error) {
	query := psql.Select(templateColumns...).From("message_templates").OrderBy("name ASC")
	if activeOnly {
		query = query.Where(sq.Eq{"is_active": true})
	}
	var rows []templateRow
	if err := repo.selectAll(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying templates")
	}
	tmpls := make([]comms.MessageTemplate, 0, len(rows))
	for _, r := range rows {
		tmpls = append(tmpls, r.template())
	}
	return tmpls, nil
}
