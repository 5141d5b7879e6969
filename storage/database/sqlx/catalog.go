package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/admitflow/core/catalog"
)

var (
	courseColumns = []string{"id", "code", "name", "duration_years", "is_active", "created_at", "updated_at"}
	branchColumns = []string{"id", "course_id", "code", "name", "seats", "created_at", "updated_at"}
	feeColumns    = []string{
		"id", "course_id", "quota", "academic_year", "components", "total", "created_at", "updated_at",
	}
)

type feeRow struct {
	ID           string    `db:"id"`
	CourseID     string    `db:"course_id"`
	Quota        string    `db:"quota"`
	AcademicYear string    `db:"academic_year"`
	Components   []byte    `db:"components"`
	Total        float64   `db:"total"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r feeRow) fee() (catalog.FeeStructure, error) {
	f := catalog.FeeStructure{
		ID:           r.ID,
		CourseID:     r.CourseID,
		Quota:        r.Quota,
		AcademicYear: r.AcademicYear,
		Total:        r.Total,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if len(r.Components) > 0 {
		if err := sonic.Unmarshal(r.Components, &f.Components); err != nil {
			return catalog.FeeStructure{}, errors.Wrap(err, "decoding fee components")
		}
	}
	if f.Components == nil {
		f.Components = []catalog.FeeComponent{}
	}
	return f, nil
}

type catalogRepository struct {
	base
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *sqlx.DB) *catalogRepository {
	return &catalogRepository{base{db: db}}
}

// Courses

func (repo *catalogRepository) CreateCourse(ctx context.Context, c catalog.Course) (catalog.Course, error) {
	query := psql.Insert("courses").Columns(courseColumns...).
		Values(c.ID, c.Code, c.Name, c.DurationYears, c.IsActive, c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if _, err := repo.execute(ctx, query); err != nil {
		if isUniqueViolation(err) {
			return catalog.Course{}, catalog.ErrCourseCodeUsed
		}
		return catalog.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo *catalogRepository) UpdateCourse(ctx context.Context, c catalog.Course) (catalog.Course, error) {
	query := psql.Update("courses").SetMap(map[string]interface{}{
		"name":           c.Name,
		"duration_years": c.DurationYears,
		"is_active":      c.IsActive,
		"updated_at":     c.UpdatedAt.UTC(),
	}).Where(sq.Eq{"id": c.ID})

	n, err := repo.execute(ctx, query)
	if err != nil {
		return catalog.Course{}, errors.Wrap(err, "updating course")
	}
	if n == 0 {
		return catalog.Course{}, catalog.ErrCourseNotFound
	}
	return c, nil
}

func (repo *catalogRepository) getCourse(ctx context.Context, where sq.Eq) (catalog.Course, error) {
	var c catalog.Course
	query := psql.Select(
		"id", "code", "name", "duration_years AS durationyears", "is_active AS isactive",
		"created_at AS createdat", "updated_at AS updatedat",
	).From("courses").Where(where)
	if err := repo.get(ctx, &c, query); err != nil {
		return catalog.Course{}, trapNoRowsErr(err, catalog.ErrCourseNotFound, "getting course")
	}
	return c, nil
}

func (repo *catalogRepository) GetCourse(ctx context.Context, id string) (catalog.Course, error) {
	if !isValidID(id) {
		return catalog.Course{}, catalog.ErrCourseNotFound
	}
	return repo.getCourse(ctx, sq.Eq{"id": id})
}

func (repo *catalogRepository) GetCourseByCode(ctx context.Context, code string) (catalog.Course, error) {
	return repo.getCourse(ctx, sq.Eq{"code": code})
}

func (repo *catalogRepository) QueryCourses(ctx context.Context, activeOnly bool) ([]catalog.Course, error) {
	query := psql.Select(
		"id", "code", "name", "duration_years AS durationyears", "is_active AS isactive",
		"created_at AS createdat", "updated_at AS updatedat",
	).From("courses").OrderBy("code ASC")
	if activeOnly {
		query = query.Where(sq.Eq{"is_active": true})
	}
	var courses []catalog.Course
	if err := repo.selectAll(ctx, &courses, query); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return courses, nil
}

func (repo *catalogRepository) DeleteCourse(ctx context.Context, id string) error {
	if !isValidID(id) {
		return catalog.ErrCourseNotFound
	}
	// branches & fee structures go with ON DELETE CASCADE
	n, err := repo.execute(ctx, psql.Delete("courses").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if n == 0 {
		return catalog.ErrCourseNotFound
	}
	return nil
}

// Branches

func branchSelect() sq.SelectBuilder {
	return psql.Select(
		"id", "course_id AS courseid", "code", "name", "seats",
		"created_at AS createdat", "updated_at AS updatedat",
	).From("branches")
}

func (repo *catalogRepository) CreateBranch(ctx context.Context, b catalog.Branch) (catalog.Branch, error) {
	query := psql.Insert("branches").Columns(branchColumns...).
		Values(b.ID, b.CourseID, b.Code, b.Name, b.Seats, b.CreatedAt.UTC(), b.UpdatedAt.UTC())
	if _, err := repo.execute(ctx, query); err != nil {
		if isUniqueViolation(err) {
			return catalog.Branch{}, catalog.ErrBranchCodeUsed
		}
		return catalog.Branch{}, errors.Wrap(err, "inserting branch")
	}
	return b, nil
}

func (repo *catalogRepository) UpdateBranch(ctx context.Context, b catalog.Branch) (catalog.Branch, error) {
	query := psql.Update("branches").SetMap(map[string]interface{}{
		"name":       b.Name,
		"seats":      b.Seats,
		"updated_at": b.UpdatedAt.UTC(),
	}).Where(sq.Eq{"id": b.ID})

	n, err := repo.execute(ctx, query)
	if err != nil {
		return catalog.Branch{}, errors.Wrap(err, "updating branch")
	}
	if n == 0 {
		return catalog.Branch{}, catalog.ErrBranchNotFound
	}
	return b, nil
}

func (repo *catalogRepository) GetBranch(ctx context.Context, id string) (catalog.Branch, error) {
	if !isValidID(id) {
		return catalog.Branch{}, catalog.ErrBranchNotFound
	}
	var b catalog.Branch
	if err := repo.get(ctx, &b, branchSelect().Where(sq.Eq{"id": id})); err != nil {
		return catalog.Branch{}, trapNoRowsErr(err, catalog.ErrBranchNotFound, "getting branch")
	}
	return b, nil
}

func (repo *catalogRepository) QueryBranches(ctx context.Context, courseID string) ([]catalog.Branch, error) {
	var branches []catalog.Branch
	query := branchSelect().Where(sq.Eq{"course_id": courseID}).OrderBy("code ASC")
	if err := repo.selectAll(ctx, &branches, query); err != nil {
		return nil, errors.Wrap(err, "querying branches")
	}
	return branches, nil
}

func (repo *catalogRepository) DeleteBranch(ctx context.Context, id string) error {
	if !isValidID(id) {
		return catalog.ErrBranchNotFound
	}
	n, err := repo.execute(ctx, psql.Delete("branches").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting branch")
	}
	if n == 0 {
		return catalog.ErrBranchNotFound
	}
	return nil
}

// Fees

func upsertFeeQuery(f catalog.FeeStructure, components []byte) sq.InsertBuilder {
	return psql.Insert("fee_structures").Columns(feeColumns...).
		Values(f.ID, f.CourseID, f.Quota, f.AcademicYear, string(components), f.Total, f.CreatedAt.UTC(), f.UpdatedAt.UTC()).
		Suffix("ON CONFLICT (course_id, quota, academic_year) DO UPDATE SET " +
			"components = EXCLUDED.components, total = EXCLUDED.total, updated_at = EXCLUDED.updated_at " +
			"RETURNING " + joinColumns(feeColumns))
}

func (repo *catalogRepository) UpsertFee(ctx context.Context, f catalog.FeeStructure) (catalog.FeeStructure, error) {
	components, err := sonic.Marshal(f.Components)
	if err != nil {
		return catalog.FeeStructure{}, errors.Wrap(err, "encoding fee components")
	}
	var row feeRow
	if err = repo.get(ctx, &row, upsertFeeQuery(f, components)); err != nil {
		return catalog.FeeStructure{}, errors.Wrap(err, "upserting fee structure")
	}
	return row.fee()
}

func (repo *catalogRepository) QueryFees(ctx context.Context, filter catalog.FeeFilter) ([]catalog.FeeStructure, error) {
	query := psql.Select(feeColumns...).From("fee_structures").OrderBy("academic_year DESC", "quota ASC")
	if filter.CourseID != "" {
		if !isValidID(filter.CourseID) {
			return []catalog.FeeStructure{}, nil
		}
		query = query.Where(sq.Eq{"course_id": filter.CourseID})
	}
	if filter.Quota != "" {
		query = query.Where(sq.Eq{"quota": filter.Quota})
	}
	if filter.AcademicYear != "" {
		query = query.Where(sq.Eq{"academic_year": filter.AcademicYear})
	}

	var rows []feeRow
	if err := repo.selectAll(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying fee structures")
	}
	fees := make([]catalog.FeeStructure, 0, len(rows))
	for _, r := range rows {
		f, err := r.fee()
		if err != nil {
			return nil, err
		}
		fees = append(fees, f)
	}
	return fees, nil
}

func (repo *catalogRepository) DeleteFee(ctx context.Context, id string) error {
	if !isValidID(id) {
		return catalog.ErrFeeNotFound
	}
	n, err := repo.execute(ctx, psql.Delete("fee_structures").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting fee structure")
	}
	if n == 0 {
		return catalog.ErrFeeNotFound
	}
	return nil
}
