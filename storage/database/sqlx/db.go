// Package sqlxrepos implements the domain repositories on Postgres with sqlx & squirrel.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/admitflow/core"
)

const uniqueViolation = "23505"

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
)

type (
	// executor is implemented by both *sqlx.DB and *sqlx.Tx.
	executor interface {
		sqlx.ExtContext
		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	}

	txKey struct{}

	base struct {
		db *sqlx.DB
	}
)

// exec returns the transaction carried by ctx, or the DB.
func (b base) exec(ctx context.Context) executor {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return b.db
}

func (b base) get(ctx context.Context, dest interface{}, query sq.Sqlizer) error {
	q, args, err := query.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return b.exec(ctx).GetContext(ctx, dest, q, args...)
}

func (b base) selectAll(ctx context.Context, dest interface{}, query sq.Sqlizer) error {
	q, args, err := query.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return b.exec(ctx).SelectContext(ctx, dest, q, args...)
}

func (b base) execute(ctx context.Context, query sq.Sqlizer) (int, error) {
	q, args, err := query.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := b.exec(ctx).ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Transactor runs units of work in a single Postgres transaction. Nested calls join the outer one.
type Transactor struct {
	db *sqlx.DB
}

var _ core.Transactor = (*Transactor)(nil)

func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// Sequencer keeps per-key counters in the `counters` table.
type Sequencer struct {
	base
}

var _ core.Sequencer = (*Sequencer)(nil)

func NewSequencer(db *sqlx.DB) *Sequencer {
	return &Sequencer{base{db: db}}
}

func (s *Sequencer) Next(ctx context.Context, key string) (int, error) {
	var value int
	err := s.get(ctx, &value, nextValueQuery(key))
	return value, errors.Wrap(err, "incrementing counter")
}

func nextValueQuery(key string) sq.InsertBuilder {
	return psql.Insert("counters").
		Columns("key", "value").
		Values(key, 1).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = counters.value + 1 RETURNING value")
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == uniqueViolation
}

// validIDs drops ids Postgres would reject as uuids.
func validIDs(ids ...string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	return valid
}

func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// escapeLike makes LIKE wildcards in s match literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// iLike matches col case-insensitively against pattern, backslash escaping wildcards.
func iLike(col, pattern string) sq.Sqlizer {
	return sq.Expr(col+` ILIKE ? ESCAPE '\'`, pattern)
}

func orderBy(b sq.SelectBuilder, ordering []core.DBOrdering) sq.SelectBuilder {
	for _, ord := range ordering {
		b = b.OrderBy(ord.String())
	}
	return b.OrderBy("id ASC")
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
