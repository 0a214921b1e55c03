package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/department"
	"github.com/trezcool/shule/core/directory"
	"github.com/trezcool/shule/core/registration"
	"github.com/trezcool/shule/core/school"
)

type schoolApi struct {
	svc      school.Service
	regSvc   registration.Service
	dirSvc   directory.Service
	validate *validator.Validate
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := schoolApi{
		svc:      deps.SchoolSvc,
		regSvc:   deps.RegistrationSvc,
		dirSvc:   deps.DirectorySvc,
		validate: deps.Validate,
	}

	sg := g.Group("/schools", jwt)
	sg.GET("", api.query)
	sg.POST("", api.create, adminMiddleware())

	dg := sg.Group("/:id", objectMiddleware(api.getObject))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
}

func (api *schoolApi) getObject(ctx echo.Context, id string) (interface{}, error) {
	return api.svc.GetByID(ctx.Request().Context(), id)
}

func (api *schoolApi) create(ctx echo.Context) error {
	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.validate, api.svc); err != nil {
		return err
	}

	s, err := api.svc.Create(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating school")
	}
	api.dirSvc.Invalidate(reqCtx)
	return ctx.JSON(http.StatusCreated, s)
}

func (api *schoolApi) query(ctx echo.Context) error {
	page := bindPagination(ctx)
	filter := new(school.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, newPaginatedResponse([]school.School{}, 0, page))
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	schools, total, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings, &page)
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	return ctx.JSON(http.StatusOK, newPaginatedResponse(schools, total, page))
}

func (api *schoolApi) retrieve(ctx echo.Context) error {
	s, ok := ctx.Get(contextObjectKey).(school.School)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving school from context")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *schoolApi) update(ctx echo.Context) error {
	s, ok := ctx.Get(contextObjectKey).(school.School)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving school from context")
	}

	var data school.UpdateSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSchool")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, s, api.validate, api.svc); err != nil {
		return err
	}

	s, err := api.svc.Update(reqCtx, s, data)
	if err != nil {
		return errors.Wrap(err, "updating school")
	}
	api.dirSvc.Invalidate(reqCtx)
	return ctx.JSON(http.StatusOK, s)
}

func (api *schoolApi) destroy(ctx echo.Context) error {
	s, ok := ctx.Get(contextObjectKey).(school.School)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving school from context")
	}
	reqCtx := ctx.Request().Context()
	// the database cascade would drop the registrations but leave their documents behind
	if err := api.regSvc.DeleteBySchool(reqCtx, s.ID); err != nil {
		return errors.Wrap(err, "deleting school registrations")
	}
	if err := api.svc.Delete(reqCtx, s.ID); err != nil {
		return errors.Wrap(err, "deleting school")
	}
	api.dirSvc.Invalidate(reqCtx)
	return ctx.NoContent(http.StatusNoContent)
}

type departmentApi struct {
	svc      department.Service
	validate *validator.Validate
}

func registerDepartmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := departmentApi{
		svc:      deps.DepartmentSvc,
		validate: deps.Validate,
	}

	dg := g.Group("/departments", jwt)
	dg.GET("", api.query)
	dg.POST("", api.create, adminMiddleware())

	og := dg.Group("/:id", objectMiddleware(api.getObject))
	og.GET("", api.retrieve)
	og.PUT("", api.update, adminMiddleware())
	og.DELETE("", api.destroy, adminMiddleware())
}

func (api *departmentApi) getObject(ctx echo.Context, id string) (interface{}, error) {
	return api.svc.GetByID(ctx.Request().Context(), id)
}

func (api *departmentApi) create(ctx echo.Context) error {
	var data department.NewDepartment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDepartment")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.validate, api.svc); err != nil {
		return err
	}

	d, err := api.svc.Create(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating department")
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *departmentApi) query(ctx echo.Context) error {
	page := bindPagination(ctx)
	filter := new(department.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, newPaginatedResponse([]department.Department{}, 0, page))
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	depts, total, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings, &page)
	if err != nil {
		return errors.Wrap(err, "querying departments")
	}
	return ctx.JSON(http.StatusOK, newPaginatedResponse(depts, total, page))
}

func (api *departmentApi) retrieve(ctx echo.Context) error {
	d, ok := ctx.Get(contextObjectKey).(department.Department)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving department from context")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *departmentApi) update(ctx echo.Context) error {
	d, ok := ctx.Get(contextObjectKey).(department.Department)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving department from context")
	}

	var data department.UpdateDepartment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateDepartment")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, d, api.validate, api.svc); err != nil {
		return err
	}

	d, err := api.svc.Update(reqCtx, d, data)
	if err != nil {
		return errors.Wrap(err, "updating department")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *departmentApi) destroy(ctx echo.Context) error {
	d, ok := ctx.Get(contextObjectKey).(department.Department)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving department from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), d.ID); err != nil {
		return errors.Wrap(err, "deleting department")
	}
	return ctx.NoContent(http.StatusNoContent)
}
