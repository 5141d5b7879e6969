package sqlxrepos

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/admitflow/core/analytics"
	"github.com/trezcool/admitflow/core/joining"
)

// groupable lead columns, with the column holding their display label
var leadGroupings = map[string]string{
	analytics.ByStatus:     "",
	analytics.ByQuota:      "",
	analytics.BySource:     "",
	analytics.ByCounsellor: "assigned_to_name",
}

type analyticsRepository struct {
	base
}

var _ analytics.Repository = (*analyticsRepository)(nil) // interface compliance check

func NewAnalyticsRepository(db *sqlx.DB) *analyticsRepository {
	return &analyticsRepository{base{db: db}}
}

func countLeadsQuery(filter analytics.Filter, groupBy string) (sq.SelectBuilder, error) {
	labelCol, ok := leadGroupings[groupBy]
	if !ok {
		return sq.SelectBuilder{}, errors.Errorf("unsupported grouping %q", groupBy)
	}
	label := "''"
	if labelCol != "" {
		label = fmt.Sprintf("MAX(%s)", labelCol)
	}

	query := psql.Select(
		fmt.Sprintf("COALESCE(%s::text, '') AS key", groupBy),
		label+" AS label",
		"COUNT(*) AS count",
	).From("leads").GroupBy(groupBy)

	if filter.AssignedTo != "" {
		if !isValidID(filter.AssignedTo) {
			return query.Where(sq.Expr("false")), nil
		}
		query = query.Where(sq.Eq{"assigned_to": filter.AssignedTo})
	}
	if !filter.From.IsZero() {
		query = query.Where(sq.GtOrEq{"created_at": filter.From.UTC()})
	}
	if !filter.To.IsZero() {
		query = query.Where(sq.LtOrEq{"created_at": filter.To.UTC()})
	}
	return query, nil
}

func (repo *analyticsRepository) CountLeads(ctx context.Context, filter analytics.Filter, groupBy string) ([]analytics.Bucket, error) {
	query, err := countLeadsQuery(filter, groupBy)
	if err != nil {
		return nil, err
	}
	var buckets []analytics.Bucket
	if err = repo.selectAll(ctx, &buckets, query); err != nil {
		return nil, errors.Wrapf(err, "counting leads by %s", groupBy)
	}
	return buckets, nil
}

func countAdmissionsQuery(filter analytics.Filter) sq.SelectBuilder {
	query := psql.Select("COUNT(*)").From("admissions a").
		Join("leads l ON l.id = a.lead_id").
		Where(sq.Eq{"a.status": joining.AdmissionActive})

	if filter.AssignedTo != "" {
		if !isValidID(filter.AssignedTo) {
			return query.Where(sq.Expr("false"))
		}
		query = query.Where(sq.Eq{"l.assigned_to": filter.AssignedTo})
	}
	if !filter.From.IsZero() {
		query = query.Where(sq.GtOrEq{"a.admitted_at": filter.From.UTC()})
	}
	if !filter.To.IsZero() {
		query = query.Where(sq.LtOrEq{"a.admitted_at": filter.To.UTC()})
	}
	return query
}

func (repo *analyticsRepository) CountAdmissions(ctx context.Context, filter analytics.Filter) (int, error) {
	var n int
	err := repo.get(ctx, &n, countAdmissionsQuery(filter))
	return n, errors.Wrap(err, "counting admissions")
}
