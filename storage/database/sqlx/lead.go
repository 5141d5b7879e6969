package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/lead"
)

var (
	leadColumns = []string{
		"id", "enquiry_number", "name", "phone", "alternate_phone", "email",
		"father_name", "father_phone", "mother_name", "village", "mandal", "district", "state",
		"course_interested", "source", "lead_status", "quota",
		"assigned_to", "assigned_to_name", "assigned_at", "assigned_by",
		"notes", "created_by", "created_at", "updated_at",
	}

	activityColumns = []string{
		"id", "lead_id", "type", "old_status", "new_status", "old_quota", "new_quota",
		"comment", "metadata", "actor_id", "actor_name", "created_at",
	}
)

type leadRow struct {
	ID               string      `db:"id"`
	EnquiryNumber    string      `db:"enquiry_number"`
	Name             string      `db:"name"`
	Phone            string      `db:"phone"`
	AlternatePhone   string      `db:"alternate_phone"`
	Email            string      `db:"email"`
	FatherName       string      `db:"father_name"`
	FatherPhone      string      `db:"father_phone"`
	MotherName       string      `db:"mother_name"`
	Village          string      `db:"village"`
	Mandal           string      `db:"mandal"`
	District         string      `db:"district"`
	State            string      `db:"state"`
	CourseInterested string      `db:"course_interested"`
	Source           string      `db:"source"`
	LeadStatus       string      `db:"lead_status"`
	Quota            string      `db:"quota"`
	AssignedTo       null.String `db:"assigned_to"`
	AssignedToName   string      `db:"assigned_to_name"`
	AssignedAt       null.Time   `db:"assigned_at"`
	AssignedBy       null.String `db:"assigned_by"`
	Notes            string      `db:"notes"`
	CreatedBy        null.String `db:"created_by"`
	CreatedAt        time.Time   `db:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at"`
}

// nullID stores "" as NULL in uuid columns.
func nullID(id string) null.String {
	return null.NewString(id, id != "")
}

func nullTime(t time.Time) null.Time {
	return null.NewTime(t.UTC(), !t.IsZero())
}

func toLeadRow(l lead.Lead) leadRow {
	return leadRow{
		ID:               l.ID,
		EnquiryNumber:    l.EnquiryNumber,
		Name:             l.Name,
		Phone:            l.Phone,
		AlternatePhone:   l.AlternatePhone,
		Email:            l.Email,
		FatherName:       l.FatherName,
		FatherPhone:      l.FatherPhone,
		MotherName:       l.MotherName,
		Village:          l.Village,
		Mandal:           l.Mandal,
		District:         l.District,
		State:            l.State,
		CourseInterested: l.CourseInterested,
		Source:           l.Source,
		LeadStatus:       l.LeadStatus,
		Quota:            l.Quota,
		AssignedTo:       nullID(l.AssignedTo),
		AssignedToName:   l.AssignedToName,
		AssignedAt:       nullTime(l.AssignedAt),
		AssignedBy:       nullID(l.AssignedBy),
		Notes:            l.Notes,
		CreatedBy:        nullID(l.CreatedBy),
		CreatedAt:        l.CreatedAt.UTC(),
		UpdatedAt:        l.UpdatedAt.UTC(),
	}
}

func (r leadRow) lead() lead.Lead {
	return lead.Lead{
		ID:               r.ID,
		EnquiryNumber:    r.EnquiryNumber,
		Name:             r.Name,
		Phone:            r.Phone,
		AlternatePhone:   r.AlternatePhone,
		Email:            r.Email,
		FatherName:       r.FatherName,
		FatherPhone:      r.FatherPhone,
		MotherName:       r.MotherName,
		Village:          r.Village,
		Mandal:           r.Mandal,
		District:         r.District,
		State:            r.State,
		CourseInterested: r.CourseInterested,
		Source:           r.Source,
		LeadStatus:       r.LeadStatus,
		Quota:            r.Quota,
		AssignedTo:       r.AssignedTo.String,
		AssignedToName:   r.AssignedToName,
		AssignedAt:       r.AssignedAt.Time.UTC(),
		AssignedBy:       r.AssignedBy.String,
		Notes:            r.Notes,
		CreatedBy:        r.CreatedBy.String,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func (r leadRow) values() []interface{} {
	return []interface{}{
		r.ID, r.EnquiryNumber, r.Name, r.Phone, r.AlternatePhone, r.Email,
		r.FatherName, r.FatherPhone, r.MotherName, r.Village, r.Mandal, r.District, r.State,
		r.CourseInterested, r.Source, r.LeadStatus, r.Quota,
		r.AssignedTo, r.AssignedToName, r.AssignedAt, r.AssignedBy,
		r.Notes, r.CreatedBy, r.CreatedAt, r.UpdatedAt,
	}
}

type activityRow struct {
	ID        string      `db:"id"`
	LeadID    string      `db:"lead_id"`
	Type      string      `db:"type"`
	OldStatus string      `db:"old_status"`
	NewStatus string      `db:"new_status"`
	OldQuota  string      `db:"old_quota"`
	NewQuota  string      `db:"new_quota"`
	Comment   string      `db:"comment"`
	Metadata  null.JSON   `db:"metadata"`
	ActorID   null.String `db:"actor_id"`
	ActorName string      `db:"actor_name"`
	CreatedAt time.Time   `db:"created_at"`
}

func toActivityRow(a lead.ActivityLog) (activityRow, error) {
	row := activityRow{
		ID:        a.ID,
		LeadID:    a.LeadID,
		Type:      a.Type,
		OldStatus: a.OldStatus,
		NewStatus: a.NewStatus,
		OldQuota:  a.OldQuota,
		NewQuota:  a.NewQuota,
		Comment:   a.Comment,
		ActorID:   nullID(a.ActorID),
		ActorName: a.ActorName,
		CreatedAt: a.CreatedAt.UTC(),
	}
	if len(a.Metadata) > 0 {
		b, err := sonic.Marshal(a.Metadata)
		if err != nil {
			return activityRow{}, errors.Wrap(err, "encoding activity metadata")
		}
		row.Metadata = null.JSONFrom(b)
	}
	return row, nil
}

func (r activityRow) activity() (lead.ActivityLog, error) {
	a := lead.ActivityLog{
		ID:        r.ID,
		LeadID:    r.LeadID,
		Type:      r.Type,
		OldStatus: r.OldStatus,
		NewStatus: r.NewStatus,
		OldQuota:  r.OldQuota,
		NewQuota:  r.NewQuota,
		Comment:   r.Comment,
		ActorID:   r.ActorID.String,
		ActorName: r.ActorName,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if r.Metadata.Valid {
		if err := sonic.Unmarshal(r.Metadata.JSON, &a.Metadata); err != nil {
			return lead.ActivityLog{}, errors.Wrap(err, "decoding activity metadata")
		}
	}
	return a, nil
}

type leadRepository struct {
	base
}

var _ lead.Repository = (*leadRepository)(nil) // interface compliance check

func NewLeadRepository(db *sqlx.DB) *leadRepository {
	return &leadRepository{base{db: db}}
}

// applyLeadFilter adds the WHERE clauses of filter to query.
func applyLeadFilter(query sq.SelectBuilder, filter lead.QueryFilter) sq.SelectBuilder {
	if filter.Search != "" {
		contains := "%" + escapeLike(filter.Search) + "%"
		or := sq.Or{
			iLike("name", contains),
			iLike("email", contains),
			iLike("enquiry_number", contains),
			iLike("father_name", contains),
		}
		if digits := core.CleanPhone(filter.Search); digits != "" {
			or = append(or, sq.Like{"phone": "%" + digits + "%"}, sq.Like{"alternate_phone": "%" + digits + "%"})
		}
		query = query.Where(or)
	}
	if filter.EnquiryNumber != "" {
		query = query.Where(sq.Expr(`enquiry_number LIKE ? ESCAPE '\'`, escapeLike(filter.EnquiryNumber)+"%"))
	}
	if len(filter.Statuses) > 0 {
		query = query.Where(sq.Eq{"lead_status": filter.Statuses})
	}
	if len(filter.Quotas) > 0 {
		query = query.Where(sq.Eq{"quota": filter.Quotas})
	}
	// column filters are case-insensitive equality
	for _, f := range [...]struct{ col, val string }{
		{"district", filter.District},
		{"mandal", filter.Mandal},
		{"state", filter.State},
		{"course_interested", filter.Course},
		{"source", filter.Source},
	} {
		if f.val != "" {
			query = query.Where(iLike(f.col, escapeLike(f.val)))
		}
	}
	switch {
	case filter.AssignedTo != "":
		if !isValidID(filter.AssignedTo) {
			return query.Where(sq.Expr("false"))
		}
		query = query.Where(sq.Eq{"assigned_to": filter.AssignedTo})
	case filter.Unassigned:
		query = query.Where(sq.Eq{"assigned_to": nil})
	}
	if !filter.CreatedFrom.IsZero() {
		query = query.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
	}
	if !filter.CreatedTo.IsZero() {
		query = query.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
	}
	return query
}

func (repo *leadRepository) CreateLead(ctx context.Context, l lead.Lead) (lead.Lead, error) {
	row := toLeadRow(l)
	query := psql.Insert("leads").Columns(leadColumns...).Values(row.values()...)
	if _, err := repo.execute(ctx, query); err != nil {
		return lead.Lead{}, errors.Wrap(err, "inserting lead")
	}
	return row.lead(), nil
}

func leadPageQuery(filter lead.QueryFilter, page core.Page, ordering []core.DBOrdering) sq.SelectBuilder {
	query := applyLeadFilter(psql.Select(leadColumns...).From("leads"), filter)
	return orderBy(query, ordering).Limit(uint64(page.Limit)).Offset(uint64(page.Offset()))
}

func (repo *leadRepository) QueryLeads(
	ctx context.Context,
	filter lead.QueryFilter,
	page core.Page,
	ordering []core.DBOrdering,
) ([]lead.Lead, int, error) {
	var total int
	if err := repo.get(ctx, &total, applyLeadFilter(psql.Select("COUNT(*)").From("leads"), filter)); err != nil {
		return nil, 0, errors.Wrap(err, "counting leads")
	}
	if total == 0 {
		return []lead.Lead{}, 0, nil
	}

	var rows []leadRow
	if err := repo.selectAll(ctx, &rows, leadPageQuery(filter, page, ordering)); err != nil {
		return nil, 0, errors.Wrap(err, "querying leads")
	}
	leads := make([]lead.Lead, 0, len(rows))
	for _, r := range rows {
		leads = append(leads, r.lead())
	}
	return leads, total, nil
}

func (repo *leadRepository) QueryLeadIDs(ctx context.Context, filter lead.QueryFilter) ([]string, error) {
	var ids []string
	query := applyLeadFilter(psql.Select("id").From("leads"), filter).OrderBy("created_at DESC", "id ASC")
	if err := repo.selectAll(ctx, &ids, query); err != nil {
		return nil, errors.Wrap(err, "querying lead ids")
	}
	return ids, nil
}

func (repo *leadRepository) GetLead(ctx context.Context, id string) (lead.Lead, error) {
	if !isValidID(id) {
		return lead.Lead{}, lead.ErrNotFound
	}
	var row leadRow
	query := psql.Select(leadColumns...).From("leads").Where(sq.Eq{"id": id})
	if err := repo.get(ctx, &row, query); err != nil {
		return lead.Lead{}, trapNoRowsErr(err, lead.ErrNotFound, "getting lead")
	}
	return row.lead(), nil
}

func (repo *leadRepository) GetLeadsByID(ctx context.Context, ids ...string) ([]lead.Lead, error) {
	ids = validIDs(ids...)
	if len(ids) == 0 {
		return []lead.Lead{}, nil
	}
	var rows []leadRow
	query := psql.Select(leadColumns...).From("leads").Where(sq.Eq{"id": ids}).OrderBy("created_at ASC")
	if err := repo.selectAll(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying leads")
	}
	leads := make([]lead.Lead, 0, len(rows))
	for _, r := range rows {
		leads = append(leads, r.lead())
	}
	return leads, nil
}

func (repo *leadRepository) UpdateLead(ctx context.Context, l lead.Lead) (lead.Lead, error) {
	row := toLeadRow(l)
	set := make(map[string]interface{}, len(leadColumns))
	values := row.values()
	for i, col := range leadColumns {
		if col == "id" || col == "enquiry_number" || col == "created_by" || col == "created_at" {
			continue
		}
		set[col] = values[i]
	}

	n, err := repo.execute(ctx, psql.Update("leads").SetMap(set).Where(sq.Eq{"id": row.ID}))
	if err != nil {
		return lead.Lead{}, errors.Wrap(err, "updating lead")
	}
	if n == 0 {
		return lead.Lead{}, lead.ErrNotFound
	}
	return row.lead(), nil
}

func (repo *leadRepository) DeleteLeadsByID(ctx context.Context, ids ...string) (int, error) {
	ids = validIDs(ids...)
	if len(ids) == 0 {
		return 0, nil
	}
	// activity logs, communication records & joinings go with ON DELETE CASCADE
	n, err := repo.execute(ctx, psql.Delete("leads").Where(sq.Eq{"id": ids}))
	return n, errors.Wrap(err, "deleting leads")
}

func (repo *leadRepository) CreateActivityLogs(ctx context.Context, logs ...lead.ActivityLog) error {
	if len(logs) == 0 {
		return nil
	}
	query := psql.Insert("activity_logs").Columns(activityColumns...)
	for _, a := range logs {
		row, err := toActivityRow(a)
		if err != nil {
			return err
		}
		query = query.Values(
			row.ID, row.LeadID, row.Type, row.OldStatus, row.NewStatus, row.OldQuota, row.NewQuota,
			row.Comment, row.Metadata, row.ActorID, row.ActorName, row.CreatedAt,
		)
	}
	_, err := repo.execute(ctx, query)
	return errors.Wrap(err, "inserting activity logs")
}

func (repo *leadRepository) QueryActivityLogs(ctx context.Context, leadID string) ([]lead.ActivityLog, error) {
	if !isValidID(leadID) {
		return []lead.ActivityLog{}, nil
	}
	var rows []activityRow
	query := psql.Select(activityColumns...).From("activity_logs").
		Where(sq.Eq{"lead_id": leadID}).
		OrderBy("created_at ASC", "seq ASC")
	if err := repo.selectAll(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying activity logs")
	}
	logs := make([]lead.ActivityLog, 0, len(rows))
	for _, r := range rows {
		a, err := r.activity()
		if err != nil {
			return nil, err
		}
		logs = append(logs, a)
	}
	return logs, nil
}
