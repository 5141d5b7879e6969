package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/joining"
	"github.com/trezcool/admitflow/core/user"
)

type joiningApi struct {
	auth     *auth
	svc      joining.Service
	validate *validator.Validate
}

func registerJoiningAPI(g *echo.Group, jwt echo.MiddlewareFunc, a *auth, svc joining.Service, validate *validator.Validate) {
	api := joiningApi{auth: a, svc: svc, validate: validate}
	managers := a.requireRole(user.RoleManager)

	g.GET("/leads/:id/joining", api.retrieve, jwt)
	g.PUT("/leads/:id/joining", api.saveDraft, jwt)
	g.POST("/leads/:id/joining/submit", api.submit, jwt)
	g.POST("/leads/:id/joining/approve", api.approve, jwt, managers)
	g.POST("/leads/:id/joining/send-back", api.sendBack, jwt, managers)
	g.GET("/leads/:id/admission", api.retrieveAdmissionByLead, jwt)
	g.GET("/joinings/pending", api.queryPending, jwt, managers)

	ag := g.Group("/admissions", jwt, managers)
	ag.GET("", api.queryAdmissions)
	ag.GET("/:id", api.retrieveAdmission)
	ag.PUT("/:id", api.updateAdmission)
}

func (api *joiningApi) retrieve(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	j, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "finding joining")
	}
	return ctx.JSON(http.StatusOK, core.OK(j))
}

func (api *joiningApi) saveDraft(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data joining.SaveJoining
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveJoining")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	j, err := api.svc.SaveDraft(ctx.Request().Context(), ctx.Param("id"), data, usr)
	if err != nil {
		return errors.Wrap(err, "saving joining")
	}
	return ctx.JSON(http.StatusOK, core.OK(j))
}

func (api *joiningApi) submit(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	j, err := api.svc.Submit(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "submitting joining")
	}
	return ctx.JSON(http.StatusOK, core.OK(j))
}

func (api *joiningApi) approve(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	adm, err := api.svc.Approve(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "approving joining")
	}
	return ctx.JSON(http.StatusCreated, core.OK(adm))
}

func (api *joiningApi) sendBack(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data joining.SendBack
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendBack")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	j, err := api.svc.SendBack(ctx.Request().Context(), ctx.Param("id"), data, usr)
	if err != nil {
		return errors.Wrap(err, "sending joining back")
	}
	return ctx.JSON(http.StatusOK, core.OK(j))
}

func (api *joiningApi) queryPending(ctx echo.Context) error {
	joinings, err := api.svc.ListPending(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying pending joinings")
	}
	return ctx.JSON(http.StatusOK, core.OK(joinings))
}

func (api *joiningApi) retrieveAdmissionByLead(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	adm, err := api.svc.GetAdmissionByLead(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "finding admission")
	}
	return ctx.JSON(http.StatusOK, core.OK(adm))
}

func (api *joiningApi) queryAdmissions(ctx echo.Context) error {
	var filter joining.AdmissionFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return errors.Wrap(err, "binding to AdmissionFilter")
	}
	filter.Clean()
	page, err := bindPage(ctx)
	if err != nil {
		return err
	}

	adms, meta, err := api.svc.QueryAdmissions(ctx.Request().Context(), filter, page)
	if err != nil {
		return errors.Wrap(err, "querying admissions")
	}
	return ctx.JSON(http.StatusOK, core.OKPage(adms, meta))
}

func (api *joiningApi) retrieveAdmission(ctx echo.Context) error {
	adm, err := api.svc.GetAdmission(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding admission")
	}
	return ctx.JSON(http.StatusOK, core.OK(adm))
}

func (api *joiningApi) updateAdmission(ctx echo.Context) error {
	var data joining.UpdateAdmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAdmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	adm, err := api.svc.UpdateAdmission(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating admission")
	}
	return ctx.JSON(http.StatusOK, core.OK(adm))
}
