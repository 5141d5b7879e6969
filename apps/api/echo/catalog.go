package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/catalog"
	"github.com/trezcool/admitflow/core/user"
)

type catalogApi struct {
	svc      catalog.Service
	validate *validator.Validate
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, a *auth, svc catalog.Service, validate *validator.Validate) {
	api := catalogApi{svc: svc, validate: validate}
	superAdmins := a.requireRole(user.RoleSuperAdmin)

	cg := g.Group("/courses", jwt)
	cg.GET("", api.queryCourses)
	cg.POST("", api.createCourse, superAdmins)
	cg.GET("/:id", api.retrieveCourse)
	cg.PUT("/:id", api.updateCourse, superAdmins)
	cg.DELETE("/:id", api.destroyCourse, superAdmins)
	cg.GET("/:id/branches", api.queryBranches)
	cg.POST("/:id/branches", api.createBranch, superAdmins)

	bg := g.Group("/branches", jwt, superAdmins)
	bg.PUT("/:id", api.updateBranch)
	bg.DELETE("/:id", api.destroyBranch)

	fg := g.Group("/fees", jwt)
	fg.GET("", api.queryFees)
	fg.PUT("", api.saveFee, superAdmins)
	fg.DELETE("/:id", api.destroyFee, superAdmins)
}

func (api *catalogApi) queryCourses(ctx echo.Context) error {
	activeOnly, _ := strconv.ParseBool(ctx.QueryParam("active"))
	courses, err := api.svc.ListCourses(ctx.Request().Context(), activeOnly)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, core.OK(courses))
}

func (api *catalogApi) retrieveCourse(ctx echo.Context) error {
	c, err := api.svc.GetCourse(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course")
	}
	return ctx.JSON(http.StatusOK, core.OK(c))
}

func (api *catalogApi) createCourse(ctx echo.Context) error {
	var data catalog.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.CreateCourse(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, core.OK(c))
}

func (api *catalogApi) updateCourse(ctx echo.Context) error {
	var data catalog.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.UpdateCourse(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, core.OK(c))
}

func (api *catalogApi) destroyCourse(ctx echo.Context) error {
	if err := api.svc.DeleteCourse(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) queryBranches(ctx echo.Context) error {
	branches, err := api.svc.ListBranches(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying branches")
	}
	return ctx.JSON(http.StatusOK, core.OK(branches))
}

func (api *catalogApi) createBranch(ctx echo.Context) error {
	var data catalog.NewBranch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBranch")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.CreateBranch(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating branch")
	}
	return ctx.JSON(http.StatusCreated, core.OK(b))
}

func (api *catalogApi) updateBranch(ctx echo.Context) error {
	var data catalog.UpdateBranch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBranch")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.UpdateBranch(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating branch")
	}
	return ctx.JSON(http.StatusOK, core.OK(b))
}

func (api *catalogApi) destroyBranch(ctx echo.Context) error {
	if err := api.svc.DeleteBranch(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting branch")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) queryFees(ctx echo.Context) error {
	var filter catalog.FeeFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return errors.Wrap(err, "binding to FeeFilter")
	}
	fees, err := api.svc.ListFees(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying fees")
	}
	return ctx.JSON(http.StatusOK, core.OK(fees))
}

func (api *catalogApi) saveFee(ctx echo.Context) error {
	var data catalog.NewFee
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFee")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	f, err := api.svc.SaveFee(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "saving fee structure")
	}
	return ctx.JSON(http.StatusOK, core.OK(f))
}

func (api *catalogApi) destroyFee(ctx echo.Context) error {
	if err := api.svc.DeleteFee(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting fee structure")
	}
	return ctx.NoContent(http.StatusNoContent)
}
