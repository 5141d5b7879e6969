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
	"github.com/trezcool/admitflow/core/joining"
)

var (
	joiningColumns = []string{
		"id", "lead_id", "status", "course_id", "branch_id", "quota", "payload",
		"submitted_at", "submitted_by", "approved_at", "approved_by", "remarks", "created_at", "updated_at",
	}

	admissionColumns = []string{
		"id", "admission_number", "lead_id", "joining_id", "course_id", "branch_id", "quota",
		"payload", "total_fee", "status", "admitted_at", "updated_at",
	}
)

type joiningRow struct {
	ID          string      `db:"id"`
	LeadID      string      `db:"lead_id"`
	Status      string      `db:"status"`
	CourseID    null.String `db:"course_id"`
	BranchID    null.String `db:"branch_id"`
	Quota       string      `db:"quota"`
	Payload     null.JSON   `db:"payload"`
	SubmittedAt null.Time   `db:"submitted_at"`
	SubmittedBy null.String `db:"submitted_by"`
	ApprovedAt  null.Time   `db:"approved_at"`
	ApprovedBy  null.String `db:"approved_by"`
	Remarks     string      `db:"remarks"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func toJoiningRow(j joining.Joining) (joiningRow, error) {
	payload, err := sonic.Marshal(j.Payload)
	if err != nil {
		return joiningRow{}, errors.Wrap(err, "encoding joining payload")
	}
	return joiningRow{
		ID:          j.ID,
		LeadID:      j.LeadID,
		Status:      j.Status,
		CourseID:    nullID(j.CourseID),
		BranchID:    nullID(j.BranchID),
		Quota:       j.Quota,
		Payload:     null.JSONFrom(payload),
		SubmittedAt: nullTime(j.SubmittedAt),
		SubmittedBy: nullID(j.SubmittedBy),
		ApprovedAt:  nullTime(j.ApprovedAt),
		ApprovedBy:  nullID(j.ApprovedBy),
		Remarks:     j.Remarks,
		CreatedAt:   j.CreatedAt.UTC(),
		UpdatedAt:   j.UpdatedAt.UTC(),
	}, nil
}

func (r joiningRow) values() []interface{} {
	return []interface{}{
		r.ID, r.LeadID, r.Status, r.CourseID, r.BranchID, r.Quota, r.Payload,
		r.SubmittedAt, r.SubmittedBy, r.ApprovedAt, r.ApprovedBy, r.Remarks, r.CreatedAt, r.UpdatedAt,
	}
}

func (r joiningRow) joining() (joining.Joining, error) {
	j := joining.Joining{
		ID:          r.ID,
		LeadID:      r.LeadID,
		Status:      r.Status,
		CourseID:    r.CourseID.String,
		BranchID:    r.BranchID.String,
		Quota:       r.Quota,
		SubmittedAt: r.SubmittedAt.Time.UTC(),
		SubmittedBy: r.SubmittedBy.String,
		ApprovedAt:  r.ApprovedAt.Time.UTC(),
		ApprovedBy:  r.ApprovedBy.String,
		Remarks:     r.Remarks,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if err := r.Payload.Unmarshal(&j.Payload); err != nil {
		return joining.Joining{}, errors.Wrap(err, "decoding joining payload")
	}
	return j, nil
}

type admissionRow struct {
	ID              string      `db:"id"`
	AdmissionNumber string      `db:"admission_number"`
	LeadID          string      `db:"lead_id"`
	JoiningID       string      `db:"joining_id"`
	CourseID        null.String `db:"course_id"`
	BranchID        null.String `db:"branch_id"`
	Quota           string      `db:"quota"`
	Payload         null.JSON   `db:"payload"`
	TotalFee        float64     `db:"total_fee"`
	Status          string      `db:"status"`
	AdmittedAt      time.Time   `db:"admitted_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func toAdmissionRow(a joining.Admission) (admissionRow, error) {
	payload, err := sonic.Marshal(a.Payload)
	if err != nil {
		return admissionRow{}, errors.Wrap(err, "encoding admission payload")
	}
	return admissionRow{
		ID:              a.ID,
		AdmissionNumber: a.AdmissionNumber,
		LeadID:          a.LeadID,
		JoiningID:       a.JoiningID,
		CourseID:        nullID(a.CourseID),
		BranchID:        nullID(a.BranchID),
		Quota:           a.Quota,
		Payload:         null.JSONFrom(payload),
		TotalFee:        a.TotalFee,
		Status:          a.Status,
		AdmittedAt:      a.AdmittedAt.UTC(),
		UpdatedAt:       a.UpdatedAt.UTC(),
	}, nil
}

func (r admissionRow) values() []interface{} {
	return []interface{}{
		r.ID, r.AdmissionNumber, r.LeadID, r.JoiningID, r.CourseID, r.BranchID, r.Quota,
		r.Payload, r.TotalFee, r.Status, r.AdmittedAt, r.UpdatedAt,
	}
}

func (r admissionRow) admission() (joining.Admission, error) {
	a := joining.Admission{
		ID:              r.ID,
		AdmissionNumber: r.AdmissionNumber,
		LeadID:          r.LeadID,
		JoiningID:       r.JoiningID,
		CourseID:        r.CourseID.String,
		BranchID:        r.BranchID.String,
		Quota:           r.Quota,
		TotalFee:        r.TotalFee,
		Status:          r.Status,
		AdmittedAt:      r.AdmittedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
	if err := r.Payload.Unmarshal(&a.Payload); err != nil {
		return joining.Admission{}, errors.Wrap(err, "decoding admission payload")
	}
	return a, nil
}

type joiningRepository struct {
	base
}

var _ joining.Repository = (*joiningRepository)(nil) // interface compliance check

func NewJoiningRepository(db *sqlx.DB) *joiningRepository {
	return &joiningRepository{base{db: db}}
}

func (repo *joiningRepository) GetJoiningByLead(ctx context.Context, leadID string) (joining.Joining, error) {
	if !isValidID(leadID) {
		return joining.Joining{}, joining.ErrNotFound
	}
	var row joiningRow
	query := psql.Select(joiningColumns...).From("joinings").Where(sq.Eq{"lead_id": leadID})
	if err := repo.get(ctx, &row, query); err != nil {
		return joining.Joining{}, trapNoRowsErr(err, joining.ErrNotFound, "getting joining")
	}
	return row.joining()
}

func (repo *joiningRepository) CreateJoining(ctx context.Context, j joining.Joining) (joining.Joining, error) {
	row, err := toJoiningRow(j)
	if err != nil {
		return joining.Joining{}, err
	}
	query := psql.Insert("joinings").Columns(joiningColumns...).Values(row.values()...)
	if _, err = repo.execute(ctx, query); err != nil {
		return joining.Joining{}, errors.Wrap(err, "inserting joining")
	}
	return j, nil
}

func (repo *joiningRepository) UpdateJoining(ctx context.Context, j joining.Joining) (joining.Joining, error) {
	row, err := toJoiningRow(j)
	if err != nil {
		return joining.Joining{}, err
	}
	set := make(map[string]interface{}, len(joiningColumns))
	values := row.values()
	for i, col := range joiningColumns {
		if col == "id" || col == "lead_id" || col == "created_at" {
			continue
		}
		set[col] = values[i]
	}

	n, err := repo.execute(ctx, psql.Update("joinings").SetMap(set).Where(sq.Eq{"id": row.ID}))
	if err != nil {
		return joining.Joining{}, errors.Wrap(err, "updating joining")
	}
	if n == 0 {
		return joining.Joining{}, joining.ErrNotFound
	}
	return j, nil
}

func (repo *joiningRepository) QueryJoiningsByStatus(ctx context.Context, status string) ([]joining.Joining, error) {
	var rows []joiningRow
	query := psql.Select(joiningColumns...).From("joinings").
		Where(sq.Eq{"status": status}).
		OrderBy("submitted_at ASC NULLS LAST", "created_at ASC")
	if err := repo.selectAll(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying joinings")
	}
	joinings := make([]joining.Joining, 0, len(rows))
	for _, r := range rows {
		j, err := r.joining()
		if err != nil {
			return nil, err
		}
		joinings = append(joinings, j)
	}
	return joinings, nil
}

// Admissions

func (repo *joiningRepository) CreateAdmission(ctx context.Context, a joining.Admission) (joining.Admission, error) {
	row, err := toAdmissionRow(a)
	if err != nil {
		return joining.Admission{}, err
	}
	query := psql.Insert("admissions").Columns(admissionColumns...).Values(row.values()...)
	if _, err = repo.execute(ctx, query); err != nil {
		if isUniqueViolation(err) {
			return joining.Admission{}, core.NewConflictError("an admission already exists for this lead")
		}
		return joining.Admission{}, errors.Wrap(err, "inserting admission")
	}
	return a, nil
}

func (repo *joiningRepository) UpdateAdmission(ctx context.Context, a joining.Admission) (joining.Admission, error) {
	row, err := toAdmissionRow(a)
	if err != nil {
		return joining.Admission{}, err
	}
	query := psql.Update("admissions").SetMap(map[string]interface{}{
		"payload":    row.Payload,
		"status":     row.Status,
		"updated_at": row.UpdatedAt,
	}).Where(sq.Eq{"id": row.ID})

	n, err := repo.execute(ctx, query)
	if err != nil {
		return joining.Admission{}, errors.Wrap(err, "updating admission")
	}
	if n == 0 {
		return joining.Admission{}, joining.ErrAdmissionNotFound
	}
	return a, nil
}

func (repo *joiningRepository) getAdmission(ctx context.Context, where sq.Eq) (joining.Admission, error) {
	var row admissionRow
	query := psql.Select(admissionColumns...).From("admissions").Where(where)
	if err := repo.get(ctx, &row, query); err != nil {
		return joining.Admission{}, trapNoRowsErr(err, joining.ErrAdmissionNotFound, "getting admission")
	}
	return row.admission()
}

func (repo *joiningRepository) GetAdmission(ctx context.Context, id string) (joining.Admission, error) {
	if !isValidID(id) {
		return joining.Admission{}, joining.ErrAdmissionNotFound
	}
	return repo.getAdmission(ctx, sq.Eq{"id": id})
}

func (repo *joiningRepository) GetAdmissionByLead(ctx context.Context, leadID string) (joining.Admission, error) {
	if !isValidID(leadID) {
		return joining.Admission{}, joining.ErrAdmissionNotFound
	}
	return repo.getAdmission(ctx, sq.Eq{"lead_id": leadID})
}

func applyAdmissionFilter(query sq.SelectBuilder, filter joining.AdmissionFilter) sq.SelectBuilder {
	if filter.Search != "" {
		contains := "%" + escapeLike(filter.Search) + "%"
		query = query.Where(sq.Or{
			iLike("admission_number", contains),
			iLike("payload->'student'->>'fullName'", contains),
		})
	}
	if filter.CourseID != "" {
		if !isValidID(filter.CourseID) {
			return query.Where(sq.Expr("false"))
		}
		query = query.Where(sq.Eq{"course_id": filter.CourseID})
	}
	if filter.Quota != "" {
		query = query.Where(sq.Eq{"quota": filter.Quota})
	}
	if filter.Status != "" {
		query = query.Where(sq.Eq{"status": filter.Status})
	}
	if !filter.From.IsZero() {
		query = query.Where(sq.GtOrEq{"admitted_at": filter.From.UTC()})
	}
	if !filter.To.IsZero() {
		query = query.Where(sq.LtOrEq{"admitted_at": filter.To.UTC()})
	}
	return query
}

func (repo *joiningRepository) QueryAdmissions(ctx context.Context, filter joining.AdmissionFilter, page core.Page) ([]joining.Admission, int, error) {
	var total int
	if err := repo.get(ctx, &total, applyAdmissionFilter(psql.Select("COUNT(*)").From("admissions"), filter)); err != nil {
		return nil, 0, errors.Wrap(err, "counting admissions")
	}
	if total == 0 {
		return []joining.Admission{}, 0, nil
	}

	var rows []admissionRow
	query := applyAdmissionFilter(psql.Select(admissionColumns...).From("admissions"), filter).
		OrderBy("admitted_at DESC", "id ASC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset()))
	if err := repo.selectAll(ctx, &rows, query); err != nil {
		return nil, 0, errors.Wrap(err, "querying admissions")
	}
	admissions := make([]joining.Admission, 0, len(rows))
	for _, r := range rows {
		a, err := r.admission()
		if err != nil {
			return nil, 0, err
		}
		admissions = append(admissions, a)
	}
	return admissions, total, nil
}
