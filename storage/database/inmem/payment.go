package inmemdb

import (
	"context"

	"github.com/trezcool/admitflow/core/payment"
)

type paymentRepository struct {
	db *DB
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *DB) payment.Repository {
	return &paymentRepository{db: db}
}

func (repo *paymentRepository) GetGatewayConfig(_ context.Context, provider string) (payment.GatewayConfig, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if gc, ok := repo.db.t.gateways[provider]; ok {
		return gc, nil
	}
	return payment.GatewayConfig{}, payment.ErrNotConfigured
}

func (repo *paymentRepository) SaveGatewayConfig(ctx context.Context, gc payment.GatewayConfig) (payment.GatewayConfig, error) {
	defer repo.db.lockWrite(ctx)()

	repo.db.t.gateways[gc.Provider] = gc
	return gc, nil
}
