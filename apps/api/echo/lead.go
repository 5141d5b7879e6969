package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/comms"
	"github.com/trezcool/admitflow/core/lead"
	"github.com/trezcool/admitflow/core/timeline"
	"github.com/trezcool/admitflow/core/user"
)

type leadApi struct {
	auth     *auth
	svc      lead.Service
	commsSvc comms.Service
	validate *validator.Validate
}

func registerLeadAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	a *auth,
	svc lead.Service,
	commsSvc comms.Service,
	validate *validator.Validate,
) {
	api := leadApi{auth: a, svc: svc, commsSvc: commsSvc, validate: validate}

	lg := g.Group("/leads", jwt)
	managers := a.requireRole(user.RoleManager)

	lg.GET("", api.query)
	lg.POST("", api.create)
	lg.GET("/ids", api.queryIDs)
	lg.POST("/bulk-delete", api.bulkDelete, managers)
	lg.POST("/assign", api.assign, managers)

	// detail endpoints
	lg.GET("/:id", api.retrieve)
	lg.PUT("/:id", api.update)
	lg.DELETE("/:id", api.destroy, managers)
	lg.GET("/:id/activity", api.activities)
	lg.POST("/:id/activity", api.addActivity)
	lg.GET("/:id/timeline", api.timeline)
}

func bindLeadFilter(ctx echo.Context) (lead.QueryFilter, error) {
	var filter lead.QueryFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return lead.QueryFilter{}, errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	return filter, nil
}

func (api *leadApi) query(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	filter, err := bindLeadFilter(ctx)
	if err != nil {
		return err
	}
	page, err := bindPage(ctx)
	if err != nil {
		return err
	}
	ordering := core.ParseOrdering(ctx.QueryParam(orderingParam), lead.Orderings)

	leads, meta, err := api.svc.Query(ctx.Request().Context(), filter, page, ordering, usr)
	if err != nil {
		return errors.Wrap(err, "querying leads")
	}
	return ctx.JSON(http.StatusOK, core.OKPage(leads, meta))
}

func (api *leadApi) queryIDs(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	filter, err := bindLeadFilter(ctx)
	if err != nil {
		return err
	}

	ids, err := api.svc.QueryIDs(ctx.Request().Context(), filter, usr)
	if err != nil {
		return errors.Wrap(err, "querying lead ids")
	}
	return ctx.JSON(http.StatusOK, core.OK(ids))
}

func (api *leadApi) create(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data lead.NewLead
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLead")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.Create(ctx.Request().Context(), data, usr)
	if err != nil {
		return errors.Wrap(err, "creating lead")
	}
	return ctx.JSON(http.StatusCreated, core.OK(l))
}

func (api *leadApi) retrieve(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	l, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "finding lead")
	}
	return ctx.JSON(http.StatusOK, core.OK(l))
}

func (api *leadApi) update(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data lead.UpdateLead
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLead")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data, usr)
	if err != nil {
		return errors.Wrap(err, "updating lead")
	}
	return ctx.JSON(http.StatusOK, core.OK(l))
}

func (api *leadApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting lead")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *leadApi) bulkDelete(ctx echo.Context) error {
	var data BulkDeleteRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkDeleteRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	n, err := api.svc.BulkDelete(ctx.Request().Context(), data.IDs)
	if err != nil {
		return errors.Wrap(err, "bulk deleting leads")
	}
	return ctx.JSON(http.StatusOK, core.OK(CountResponse{Count: n}))
}

func (api *leadApi) assign(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data lead.AssignRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	n, err := api.svc.Assign(ctx.Request().Context(), data.LeadIDs, data.CounsellorID, usr)
	if err != nil {
		return errors.Wrap(err, "assigning leads")
	}
	return ctx.JSON(http.StatusOK, core.OK(CountResponse{Count: n}))
}

func (api *leadApi) activities(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	logs, err := api.svc.Activities(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "querying activities")
	}
	return ctx.JSON(http.StatusOK, core.OK(logs))
}

func (api *leadApi) addActivity(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data lead.NewActivity
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewActivity")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	l, logs, err := api.svc.AddActivity(ctx.Request().Context(), ctx.Param("id"), data, usr)
	if err != nil {
		return errors.Wrap(err, "adding activity")
	}
	return ctx.JSON(http.StatusCreated, core.OK(ActivityResponse{Lead: l, Activities: logs}))
}

func (api *leadApi) timeline(ctx echo.Context) error {
	usr, err := api.auth.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	reqCtx := ctx.Request().Context()
	id := ctx.Param("id")

	l, err := api.svc.Get(reqCtx, id, usr)
	if err != nil {
		return errors.Wrap(err, "finding lead")
	}
	logs, err := api.svc.Activities(reqCtx, id, usr)
	if err != nil {
		return errors.Wrap(err, "querying activities")
	}
	recs, err := api.commsSvc.History(reqCtx, id, usr)
	if err != nil {
		return errors.Wrap(err, "querying communications")
	}
	return ctx.JSON(http.StatusOK, core.OK(timeline.Build(l, logs, recs)))
}

type (
	BulkDeleteRequest struct {
		IDs []string `json:"ids" validate:"required,min=1,dive,required"`
	}

	CountResponse struct {
		Count int `json:"count"`
	}

	ActivityResponse struct {
		Lead       lead.Lead          `json:"lead"`
		Activities []lead.ActivityLog `json:"activities"`
	}
)
