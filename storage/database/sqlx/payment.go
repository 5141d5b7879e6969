package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admitflow/core/payment"
)

var gatewayColumns = []string{"provider", "app_id", "secret_key", "environment", "is_active", "updated_at", "updated_by"}

type gatewayRow struct {
	Provider    string      `db:"provider"`
	AppID       string      `db:"app_id"`
	SecretKey   string      `db:"secret_key"`
	Environment string      `db:"environment"`
	IsActive    bool        `db:"is_active"`
	UpdatedAt   time.Time   `db:"updated_at"`
	UpdatedBy   null.String `db:"updated_by"`
}

type paymentRepository struct {
	base
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *sqlx.DB) *paymentRepository {
	return &paymentRepository{base{db: db}}
}

func (repo *paymentRepository) GetGatewayConfig(ctx context.Context, provider string) (payment.GatewayConfig, error) {
	var row gatewayRow
	query := psql.Select(gatewayColumns...).From("payment_gateways").Where(sq.Eq{"provider": provider})
	if err := repo.get(ctx, &row, query); err != nil {
		return payment.GatewayConfig{}, trapNoRowsErr(err, payment.ErrNotConfigured, "getting gateway config")
	}
	return payment.GatewayConfig{
		Provider:    row.Provider,
		AppID:       row.AppID,
		SecretKey:   row.SecretKey,
		Environment: row.Environment,
		IsActive:    row.IsActive,
		UpdatedAt:   row.UpdatedAt.UTC(),
		UpdatedBy:   row.UpdatedBy.String,
	}, nil
}

func (repo *paymentRepository) SaveGatewayConfig(ctx context.Context, gc payment.GatewayConfig) (payment.GatewayConfig, error) {
	query := psql.Insert("payment_gateways").Columns(gatewayColumns...).
		Values(gc.Provider, gc.AppID, gc.SecretKey, gc.Environment, gc.IsActive, gc.UpdatedAt.UTC(), nullID(gc.UpdatedBy)).
		Suffix("ON CONFLICT (provider) DO UPDATE SET " +
			"app_id = EXCLUDED.app_id, secret_key = EXCLUDED.secret_key, environment = EXCLUDED.environment, " +
			"is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by")
	if _, err := repo.execute(ctx, query); err != nil {
		return payment.GatewayConfig{}, errors.Wrap(err, "saving gateway config")
	}
	return gc, nil
}
