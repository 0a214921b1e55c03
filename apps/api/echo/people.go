package echoapi

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/directory"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
)

type teacherApi struct {
	svc      teacher.Service
	dirSvc   directory.Service
	validate *validator.Validate
}

func registerTeacherAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := teacherApi{
		svc:      deps.TeacherSvc,
		dirSvc:   deps.DirectorySvc,
		validate: deps.Validate,
	}

	tg := g.Group("/teachers", jwt, staffMiddleware())
	tg.GET("", api.query)
	tg.POST("", api.create, adminMiddleware())

	dg := tg.Group("/:id", objectMiddleware(api.getObject))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
}

func (api *teacherApi) getObject(ctx echo.Context, id string) (interface{}, error) {
	return api.svc.GetByID(ctx.Request().Context(), id)
}

func (api *teacherApi) create(ctx echo.Context) error {
	var data teacher.NewTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.validate, api.svc); err != nil {
		return err
	}

	t, err := api.svc.Create(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating teacher")
	}
	api.dirSvc.Invalidate(reqCtx)
	return ctx.JSON(http.StatusCreated, t)
}

func (api *teacherApi) query(ctx echo.Context) error {
	page := bindPagination(ctx)
	filter := new(teacher.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, newPaginatedResponse([]teacher.Teacher{}, 0, page))
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	teachers, total, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings, &page)
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	return ctx.JSON(http.StatusOK, newPaginatedResponse(teachers, total, page))
}

func (api *teacherApi) retrieve(ctx echo.Context) error {
	t, ok := ctx.Get(contextObjectKey).(teacher.Teacher)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving teacher from context")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *teacherApi) update(ctx echo.Context) error {
	t, ok := ctx.Get(contextObjectKey).(teacher.Teacher)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving teacher from context")
	}

	var data teacher.UpdateTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTeacher")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, t, api.validate, api.svc); err != nil {
		return err
	}

	t, err := api.svc.Update(reqCtx, t, data)
	if err != nil {
		return errors.Wrap(err, "updating teacher")
	}
	api.dirSvc.Invalidate(reqCtx)
	return ctx.JSON(http.StatusOK, t)
}

func (api *teacherApi) destroy(ctx echo.Context) error {
	t, ok := ctx.Get(contextObjectKey).(teacher.Teacher)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving teacher from context")
	}
	reqCtx := ctx.Request().Context()
	if err := api.svc.Delete(reqCtx, t.ID); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	api.dirSvc.Invalidate(reqCtx)
	return ctx.NoContent(http.StatusNoContent)
}

type studentApi struct {
	svc      student.Service
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := studentApi{
		svc:      deps.StudentSvc,
		validate: deps.Validate,
	}

	sg := g.Group("/students", jwt, staffMiddleware())
	sg.GET("", api.query)
	sg.GET("/export", api.export)
	sg.POST("", api.create, adminMiddleware())

	dg := sg.Group("/:id", objectMiddleware(api.getObject))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
}

func (api *studentApi) getObject(ctx echo.Context, id string) (interface{}, error) {
	return api.svc.GetByID(ctx.Request().Context(), id)
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.validate, api.svc); err != nil {
		return err
	}

	s, err := api.svc.Create(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *studentApi) bindFilter(ctx echo.Context) (*student.QueryFilter, []core.DBOrdering, error) {
	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return nil, nil, err
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)
	return filter, ordering.Orderings, nil
}

func (api *studentApi) query(ctx echo.Context) error {
	page := bindPagination(ctx)
	filter, ordering, err := api.bindFilter(ctx)
	if err != nil {
		return ctx.JSON(http.StatusOK, newPaginatedResponse([]student.Student{}, 0, page))
	}

	students, total, err := api.svc.Query(ctx.Request().Context(), filter, ordering, &page)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, newPaginatedResponse(students, total, page))
}

// export sends every student matching the filters as an xlsx workbook.
func (api *studentApi) export(ctx echo.Context) error {
	var students []student.Student
	filter, ordering, err := api.bindFilter(ctx)
	if err == nil {
		students, _, err = api.svc.Query(ctx.Request().Context(), filter, ordering, nil)
		if err != nil {
			return errors.Wrap(err, "querying students")
		}
	}

	var buf bytes.Buffer
	if err = student.WriteXLSX(&buf, students); err != nil {
		return errors.Wrap(err, "exporting students")
	}

	filename := fmt.Sprintf("students-%s.xlsx", time.Now().UTC().Format("20060102"))
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, student.ExportContentType, buf.Bytes())
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	s, ok := ctx.Get(contextObjectKey).(student.Student)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving student from context")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) update(ctx echo.Context) error {
	s, ok := ctx.Get(contextObjectKey).(student.Student)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving student from context")
	}

	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Update(ctx.Request().Context(), s, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	s, ok := ctx.Get(contextObjectKey).(student.Student)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving student from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), s.ID); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}
