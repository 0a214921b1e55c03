package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/fee"
)

type feeApi struct {
	svc      fee.Service
	validate *validator.Validate
}

func registerFeeAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := feeApi{
		svc:      deps.FeeSvc,
		validate: deps.Validate,
	}

	fg := g.Group("/fees", jwt)
	fg.GET("", api.query)
	fg.POST("", api.create, adminMiddleware())

	dg := fg.Group("/:id", objectMiddleware(api.getObject))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
}

func (api *feeApi) getObject(ctx echo.Context, id string) (interface{}, error) {
	return api.svc.GetByID(ctx.Request().Context(), id)
}

func (api *feeApi) create(ctx echo.Context) error {
	var data fee.NewStructure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStructure")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.validate, api.svc); err != nil {
		return err
	}

	s, err := api.svc.Create(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating fee structure")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *feeApi) query(ctx echo.Context) error {
	page := bindPagination(ctx)
	filter := new(fee.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, newPaginatedResponse([]fee.Structure{}, 0, page))
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	structures, total, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings, &page)
	if err != nil {
		return errors.Wrap(err, "querying fee structures")
	}
	return ctx.JSON(http.StatusOK, newPaginatedResponse(structures, total, page))
}

func (api *feeApi) retrieve(ctx echo.Context) error {
	s, ok := ctx.Get(contextObjectKey).(fee.Structure)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving fee structure from context")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *feeApi) update(ctx echo.Context) error {
	s, ok := ctx.Get(contextObjectKey).(fee.Structure)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving fee structure from context")
	}

	var data fee.UpdateStructure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStructure")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Update(ctx.Request().Context(), s, data)
	if err != nil {
		return errors.Wrap(err, "updating fee structure")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *feeApi) destroy(ctx echo.Context) error {
	s, ok := ctx.Get(contextObjectKey).(fee.Structure)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving fee structure from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), s.ID); err != nil {
		return errors.Wrap(err, "deleting fee structure")
	}
	return ctx.NoContent(http.StatusNoContent)
}
