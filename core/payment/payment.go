// Package payment stores the payment gateway credentials used to collect admission fees.
package payment

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/user"
)

const (
	ProviderCashfree = "cashfree"

	EnvSandbox    = "sandbox"
	EnvProduction = "production"

	maskPrefix = "****"
)

var ErrNotConfigured = core.NewNotFoundError("payment gateway configuration")

// GatewayConfig holds the credentials of a payment provider.
type GatewayConfig struct {
	Provider    string    `json:"provider"`
	AppID       string    `json:"appId"`
	SecretKey   string    `json:"secretKey"`
	Environment string    `json:"environment"`
	IsActive    bool      `json:"isActive"`
	UpdatedAt   time.Time `json:"updatedAt"`
	UpdatedBy   string    `json:"updatedBy"`
}

// Masked returns a copy safe to display: the secret is reduced to its last 4 characters.
func (gc GatewayConfig) Masked() GatewayConfig {
	gc.SecretKey = MaskSecret(gc.SecretKey)
	return gc
}

func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	runes := []rune(secret)
	if len(runes) <= 4 {
		return maskPrefix
	}
	return maskPrefix + string(runes[len(runes)-4:])
}

// UpdateGateway replaces the credentials. A secret left empty, or sent back masked, keeps the stored one.
type UpdateGateway struct {
	AppID       string `json:"appId" validate:"required"`
	SecretKey   string `json:"secretKey"`
	Environment string `json:"environment" validate:"required,oneof=sandbox production"`
	IsActive    *bool  `json:"isActive"`
}

func (ug *UpdateGateway) Validate(validate *validator.Validate) error {
	ug.AppID = core.CleanString(ug.AppID)
	ug.SecretKey = strings.TrimSpace(ug.SecretKey)
	ug.Environment = core.CleanString(ug.Environment, true /* lower */)
	return validate.Struct(ug)
}

type (
	Repository interface {
		GetGatewayConfig(ctx context.Context, provider string) (GatewayConfig, error)
		SaveGatewayConfig(ctx context.Context, gc GatewayConfig) (GatewayConfig, error)
	}

	Service interface {
		// Get returns the masked configuration.
		Get(ctx context.Context) (GatewayConfig, error)
		Update(ctx context.Context, ug UpdateGateway, actor user.User) (GatewayConfig, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Get(ctx context.Context) (GatewayConfig, error) {
	gc, err := svc.repo.GetGatewayConfig(ctx, ProviderCashfree)
	if err != nil {
		return GatewayConfig{}, err
	}
	return gc.Masked(), nil
}

func (svc *service) Update(ctx context.Context, ug UpdateGateway, actor user.User) (GatewayConfig, error) {
	gc, err := svc.repo.GetGatewayConfig(ctx, ProviderCashfree)
	if err != nil && !core.IsNotFound(err) {
		return GatewayConfig{}, errors.Wrap(err, "finding gateway config")
	}

	if ug.SecretKey != "" && !strings.HasPrefix(ug.SecretKey, maskPrefix) {
		gc.SecretKey = ug.SecretKey
	}
	if gc.SecretKey == "" {
		return GatewayConfig{}, core.NewValidationError(nil, core.FieldError{Field: "secretKey", Error: "this field is required"})
	}

	gc.Provider = ProviderCashfree
	gc.AppID = ug.AppID
	gc.Environment = ug.Environment
	if ug.IsActive != nil {
		gc.IsActive = *ug.IsActive
	} else if gc.UpdatedAt.IsZero() {
		gc.IsActive = true
	}
	gc.UpdatedAt = core.NowFunc()
	gc.UpdatedBy = actor.ID

	if gc, err = svc.repo.SaveGatewayConfig(ctx, gc); err != nil {
		return GatewayConfig{}, errors.Wrap(err, "saving gateway config")
	}
	return gc.Masked(), nil
}
