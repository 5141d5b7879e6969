package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/payment"
	"github.com/trezcool/admitflow/core/user"
)

type paymentApi struct {
	auth     *auth
	svc      payment.Service
	validate *validator.Validate
}

func registerPaymentAPI(g *echo.Group, jwt echo.MiddlewareFunc, a *auth, svc payment.Service, validate *validator.Validate) {
	api := paymentApi{auth: a, svc: svc, validate: validate}

	pg := g.Group("/settings/payment-gateway", jwt, a.requireRole(user.RoleSuperAdmin))
	pg.GET("", api.retrieve)
	pg.PUT("", api.update)
}

func (api *paymentApi) retrieve(ctx echo.Context) error {
	gc, err := api.svc.Get(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "finding gateway config")
	}
	return ctx.JSON(http.StatusOK, core.OK(gc))
}

func (api *paymentApi) update(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data payment.UpdateGateway
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGateway")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	gc, err := api.svc.Update(ctx.Request().Context(), data, usr)
	if err != nil {
		return errors.Wrap(err, "updating gateway config")
	}
	return ctx.JSON(http.StatusOK, core.OK(gc))
}
