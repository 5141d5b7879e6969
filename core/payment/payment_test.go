package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/user"
)

type memRepo struct {
	cfg *GatewayConfig
}

func (r *memRepo) GetGatewayConfig(_ context.Context, _ string) (GatewayConfig, error) {
	if r.cfg == nil {
		return GatewayConfig{}, ErrNotConfigured
	}
	return *r.cfg, nil
}

func (r *memRepo) SaveGatewayConfig(_ context.Context, gc GatewayConfig) (GatewayConfig, error) {
	r.cfg = &gc
	return gc, nil
}

func TestMaskSecret(t *testing.T) {
	tests := map[string]string{
		"":                   "",
		"abc":                "****",
		"cfsk_ma_test_9a8b7": "****a8b7",
	}
	for in, want := range tests {
		assert.Equal(t, want, MaskSecret(in), in)
	}
}

func TestService_Update(t *testing.T) {
	repo := new(memRepo)
	svc := NewService(repo)
	admin := user.User{ID: "u1", Role: user.RoleSuperAdmin}
	ctx := context.Background()

	_, err := svc.Get(ctx)
	assert.True(t, core.IsNotFound(err))

	// secret required on first save
	_, err = svc.Update(ctx, UpdateGateway{AppID: "app", Environment: EnvSandbox}, admin)
	assert.IsType(t, &core.ValidationError{}, err)

	gc, err := svc.Update(ctx, UpdateGateway{AppID: "app", SecretKey: "secret-1234", Environment: EnvSandbox}, admin)
	require.NoError(t, err)
	assert.Equal(t, "****1234", gc.SecretKey)
	assert.True(t, gc.IsActive)
	assert.Equal(t, "secret-1234", repo.cfg.SecretKey)

	// masked secret sent back keeps the stored one
	gc, err = svc.Update(ctx, UpdateGateway{AppID: "app2", SecretKey: "****1234", Environment: EnvProduction}, admin)
	require.NoError(t, err)
	assert.Equal(t, "secret-1234", repo.cfg.SecretKey)
	assert.Equal(t, "app2", gc.AppID)
	assert.Equal(t, EnvProduction, gc.Environment)
	assert.Equal(t, "u1", gc.UpdatedBy)
}
