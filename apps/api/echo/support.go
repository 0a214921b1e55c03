package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/directory"
	"github.com/trezcool/shule/core/support"
)

type supportApi struct {
	svc      support.Service
	validate *validator.Validate
}

func registerSupportAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := supportApi{
		svc:      deps.SupportSvc,
		validate: deps.Validate,
	}

	sg := g.Group("/support")
	ag := sg.Group("", jwt, adminMiddleware())
	ag.GET("", api.query)
	// registered after the authed group, which claims every method on the group path
	sg.POST("", api.create)

	dg := ag.Group("/:id", objectMiddleware(api.getObject))
	dg.GET("", api.retrieve)
	dg.POST("/respond", api.respond)
	dg.DELETE("", api.destroy)
}

func (api *supportApi) getObject(ctx echo.Context, id string) (interface{}, error) {
	return api.svc.GetByID(ctx.Request().Context(), id)
}

func (api *supportApi) create(ctx echo.Context) error {
	var data support.NewTicket
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTicket")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating support ticket")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *supportApi) query(ctx echo.Context) error {
	page := bindPagination(ctx)
	filter := new(support.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, newPaginatedResponse([]support.Ticket{}, 0, page))
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	tickets, total, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings, &page)
	if err != nil {
		return errors.Wrap(err, "querying support tickets")
	}
	return ctx.JSON(http.StatusOK, newPaginatedResponse(tickets, total, page))
}

func (api *supportApi) retrieve(ctx echo.Context) error {
	t, ok := ctx.Get(contextObjectKey).(support.Ticket)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving support ticket from context")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *supportApi) respond(ctx echo.Context) error {
	t, ok := ctx.Get(contextObjectKey).(support.Ticket)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving support ticket from context")
	}

	var data support.Response
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Response")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Respond(ctx.Request().Context(), t, data)
	if err != nil {
		return errors.Wrap(err, "responding to support ticket")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *supportApi) destroy(ctx echo.Context) error {
	t, ok := ctx.Get(contextObjectKey).(support.Ticket)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving support ticket from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), t.ID); err != nil {
		return errors.Wrap(err, "deleting support ticket")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type directoryApi struct {
	svc      directory.Service
	validate *validator.Validate
}

func registerDirectoryAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := directoryApi{
		svc:      deps.DirectorySvc,
		validate: deps.Validate,
	}
	g.GET("/directory", api.list, jwt, adminMiddleware())
}

func (api *directoryApi) list(ctx echo.Context) error {
	page := bindPagination(ctx)
	var q directory.Query
	if err := ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to directory.Query")
	}
	q.Clean()
	if err := api.validate.Struct(q); err != nil {
		return err
	}

	res, err := api.svc.List(ctx.Request().Context(), q, page)
	if err != nil {
		return errors.Wrap(err, "listing directory")
	}
	return ctx.JSON(http.StatusOK, newPaginatedResponse(res.Entries, res.Total, page))
}
