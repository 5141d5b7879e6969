package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/analytics"
)

type analyticsApi struct {
	auth *auth
	svc  analytics.Service
}

func registerAnalyticsAPI(g *echo.Group, jwt echo.MiddlewareFunc, a *auth, svc analytics.Service) {
	api := analyticsApi{auth: a, svc: svc}

	g.GET("/analytics/overview", api.overview, jwt)
	g.GET("/leads/:id/analytics", api.leadSummary, jwt)
}

func (api *analyticsApi) overview(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var filter analytics.Filter
	if err = bindQuery(ctx, &filter); err != nil {
		return errors.Wrap(err, "binding to Filter")
	}

	ov, err := api.svc.Overview(ctx.Request().Context(), filter, usr)
	if err != nil {
		return errors.Wrap(err, "computing overview")
	}
	return ctx.JSON(http.StatusOK, core.OK(ov))
}

func (api *analyticsApi) leadSummary(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	summary, err := api.svc.LeadSummary(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "computing lead summary")
	}
	return ctx.JSON(http.StatusOK, core.OK(summary))
}
