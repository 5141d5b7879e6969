package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admitflow/core"
)

var (
	orderingParam = "ordering"
	objectKey     = "object"
)

// bindPage reads the `page` & `limit` query params, falling back to the defaults.
func bindPage(ctx echo.Context) (core.Page, error) {
	var p core.Page
	if err := echo.QueryParamsBinder(ctx).
		Int("page", &p.Page).
		Int("limit", &p.Limit).
		BindError(); err != nil {
		return core.Page{}, errors.Wrap(err, "binding page")
	}
	return core.NewPage(p.Page, p.Limit), nil
}

// bindQuery binds the query params of GET requests into dest; ctx.Bind would also try the body.
func bindQuery(ctx echo.Context, dest interface{}) error {
	return (&echo.DefaultBinder{}).BindQueryParams(ctx, dest)
}
