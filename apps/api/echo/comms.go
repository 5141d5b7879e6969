package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/comms"
	"github.com/trezcool/admitflow/core/user"
)

type commsApi struct {
	auth     *auth
	svc      comms.Service
	validate *validator.Validate
}

func registerCommsAPI(g *echo.Group, jwt echo.MiddlewareFunc, a *auth, svc comms.Service, validate *validator.Validate) {
	api := commsApi{auth: a, svc: svc, validate: validate}
	superAdmins := a.requireRole(user.RoleSuperAdmin)

	g.POST("/leads/:id/calls", api.logCall, jwt)
	g.POST("/leads/:id/sms", api.sendSMS, jwt)
	g.GET("/leads/:id/communications", api.history, jwt)
	g.GET("/communications/stats", api.stats, jwt)

	tg := g.Group("/templates", jwt)
	tg.GET("", api.queryTemplates)
	tg.POST("", api.createTemplate, superAdmins)
	tg.GET("/:id", api.retrieveTemplate)
	tg.PUT("/:id", api.updateTemplate, superAdmins)
}

func (api *commsApi) logCall(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data comms.NewCall
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCall")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	rec, err := api.svc.LogCall(ctx.Request().Context(), ctx.Param("id"), data, usr)
	if err != nil {
		return errors.Wrap(err, "logging call")
	}
	return ctx.JSON(http.StatusCreated, core.OK(rec))
}

func (api *commsApi) sendSMS(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data comms.SendSMS
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendSMS")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	recs, err := api.svc.SendSMS(ctx.Request().Context(), ctx.Param("id"), data, usr)
	if err != nil {
		return errors.Wrap(err, "sending sms")
	}
	return ctx.JSON(http.StatusCreated, core.OK(recs))
}

func (api *commsApi) history(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	recs, err := api.svc.History(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "querying communications")
	}
	return ctx.JSON(http.StatusOK, core.OK(recs))
}

func (api *commsApi) stats(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var filter comms.StatsFilter
	if err = bindQuery(ctx, &filter); err != nil {
		return errors.Wrap(err, "binding to StatsFilter")
	}

	stats, err := api.svc.Stats(ctx.Request().Context(), filter, usr)
	if err != nil {
		return errors.Wrap(err, "computing communication stats")
	}
	return ctx.JSON(http.StatusOK, core.OK(stats))
}

func (api *commsApi) queryTemplates(ctx echo.Context) error {
	activeOnly, _ := strconv.ParseBool(ctx.QueryParam("active"))
	tmpls, err := api.svc.ListTemplates(ctx.Request().Context(), activeOnly)
	if err != nil {
		return errors.Wrap(err, "querying templates")
	}
	return ctx.JSON(http.StatusOK, core.OK(tmpls))
}

func (api *commsApi) retrieveTemplate(ctx echo.Context) error {
	t, err := api.svc.GetTemplate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding template")
	}
	return ctx.JSON(http.StatusOK, core.OK(t))
}

func (api *commsApi) createTemplate(ctx echo.Context) error {
	var data comms.NewTemplate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTemplate")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.CreateTemplate(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating template")
	}
	return ctx.JSON(http.StatusCreated, core.OK(t))
}

func (api *commsApi) updateTemplate(ctx echo.Context) error {
	var data comms.UpdateTemplate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTemplate")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.UpdateTemplate(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating template")
	}
	return ctx.JSON(http.StatusOK, core.OK(t))
}
