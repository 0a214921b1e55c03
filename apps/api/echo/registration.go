package echoapi

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/registration"
)

const (
	registrationDataField      = "data"
	registrationDocumentsField = "documents"
)

type registrationApi struct {
	svc      registration.Service
	validate *validator.Validate
}

func registerRegistrationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := registrationApi{
		svc:      deps.RegistrationSvc,
		validate: deps.Validate,
	}

	rg := g.Group("/registrations")
	ag := rg.Group("", jwt, adminMiddleware())
	ag.GET("", api.query)

	// public endpoints, registered after the authed group which claims every method on the group path
	rg.POST("", api.submit)
	rg.POST("/validate", api.validateStep)

	dg := ag.Group("/:id", objectMiddleware(api.getObject))
	dg.GET("", api.retrieve)
	dg.GET("/documents/:docId", api.document)
	dg.POST("/approve", api.approve)
	dg.POST("/reject", api.reject)
	dg.DELETE("", api.destroy)
}

func (api *registrationApi) getObject(ctx echo.Context, id string) (interface{}, error) {
	return api.svc.GetByID(ctx.Request().Context(), id)
}

// DocumentMeta describes an attachment when validating the documents step without uploading it.
type DocumentMeta struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type ValidateStepRequest struct {
	registration.Application
	Documents []DocumentMeta `json:"documents"`
}

type ValidateStepResponse struct {
	Step     int    `json:"step"`
	StepName string `json:"step_name"`
	NextStep int    `json:"next_step,omitempty"`
}

func isMultipart(ctx echo.Context) bool {
	return strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// bindMultipartApplication reads the `data` JSON field and the `documents` files of a multipart form.
func bindMultipartApplication(ctx echo.Context) (registration.Application, []*multipart.FileHeader, error) {
	var app registration.Application
	form, err := ctx.MultipartForm()
	if err != nil {
		return app, nil, core.NewValidationError(errors.Wrap(err, "invalid multipart form"))
	}
	if vals := form.Value[registrationDataField]; len(vals) > 0 && vals[0] != "" {
		if err = json.Unmarshal([]byte(vals[0]), &app); err != nil {
			return app, nil, core.NewValidationError(nil, core.FieldError{
				Field: registrationDataField,
				Error: "must be a JSON object",
			})
		}
	}
	return app, form.File[registrationDocumentsField], nil
}

func documentInput(fh *multipart.FileHeader) registration.DocumentInput {
	return registration.DocumentInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
	}
}

// validateStep checks steps 1 to `step` so that the form may move on to the next one.
func (api *registrationApi) validateStep(ctx echo.Context) error {
	step, err := strconv.Atoi(ctx.QueryParam("step"))
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "step", Error: "must be a number"})
	}

	var app registration.Application
	var docs []registration.DocumentInput
	if isMultipart(ctx) {
		var files []*multipart.FileHeader
		app, files, err = bindMultipartApplication(ctx)
		if err != nil {
			return err
		}
		for _, fh := range files {
			docs = append(docs, documentInput(fh))
		}
	} else {
		var data ValidateStepRequest
		if err = ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to ValidateStepRequest")
		}
		app = data.Application
		for _, d := range data.Documents {
			docs = append(docs, registration.DocumentInput(d))
		}
	}

	if err = api.svc.ValidateStep(ctx.Request().Context(), app, step, docs); err != nil {
		return err
	}

	resp := ValidateStepResponse{Step: step, StepName: registration.StepName(step)}
	if step < registration.NumSteps {
		resp.NextStep = step + 1
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *registrationApi) submit(ctx echo.Context) error {
	if !isMultipart(ctx) {
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, "expected a multipart/form-data request")
	}
	app, files, err := bindMultipartApplication(ctx)
	if err != nil {
		return err
	}

	uploads := make([]registration.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return errors.Wrap(err, "opening uploaded document")
		}
		//goland:noinspection GoDeferInLoop
		defer f.Close()
		uploads = append(uploads, registration.Upload{DocumentInput: documentInput(fh), Content: f})
	}

	reg, err := api.svc.Submit(ctx.Request().Context(), app, uploads)
	if err != nil {
		return errors.Wrap(err, "submitting registration")
	}
	return ctx.JSON(http.StatusCreated, reg)
}

func (api *registrationApi) query(ctx echo.Context) error {
	page := bindPagination(ctx)
	filter := new(registration.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, newPaginatedResponse([]registration.Registration{}, 0, page))
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	regs, total, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings, &page)
	if err != nil {
		return errors.Wrap(err, "querying registrations")
	}
	return ctx.JSON(http.StatusOK, newPaginatedResponse(regs, total, page))
}

func (api *registrationApi) retrieve(ctx echo.Context) error {
	reg, ok := ctx.Get(contextObjectKey).(registration.Registration)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving registration from context")
	}
	return ctx.JSON(http.StatusOK, reg)
}

func (api *registrationApi) document(ctx echo.Context) error {
	reg, ok := ctx.Get(contextObjectKey).(registration.Registration)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving registration from context")
	}

	doc, rc, err := api.svc.OpenDocument(ctx.Request().Context(), reg, ctx.Param("docId"))
	if err != nil {
		return errors.Wrap(err, "opening document")
	}
	defer rc.Close()

	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", doc.Filename))
	ctx.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(doc.Size, 10))
	return ctx.Stream(http.StatusOK, doc.ContentType, rc)
}

func (api *registrationApi) bindReview(ctx echo.Context) (registration.Registration, registration.Review, string, error) {
	var review registration.Review
	reg, ok := ctx.Get(contextObjectKey).(registration.Registration)
	if !ok {
		return reg, review, "", errors.Wrap(errObjNotFoundInCtx, "retrieving registration from context")
	}
	if err := ctx.Bind(&review); err != nil {
		return reg, review, "", errors.Wrap(err, "binding to Review")
	}
	if err := api.validate.Struct(review); err != nil {
		return reg, review, "", err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return reg, review, "", errors.Wrap(err, "getting context claims")
	}
	return reg, review, claims.Subject, nil
}

func (api *registrationApi) approve(ctx echo.Context) error {
	reg, review, reviewerID, err := api.bindReview(ctx)
	if err != nil {
		return err
	}
	reg, err = api.svc.Approve(ctx.Request().Context(), reg, reviewerID, review)
	if err != nil {
		return errors.Wrap(err, "approving registration")
	}
	return ctx.JSON(http.StatusOK, reg)
}

func (api *registrationApi) reject(ctx echo.Context) error {
	reg, review, reviewerID, err := api.bindReview(ctx)
	if err != nil {
		return err
	}
	reg, err = api.svc.Reject(ctx.Request().Context(), reg, reviewerID, review)
	if err != nil {
		return errors.Wrap(err, "rejecting registration")
	}
	return ctx.JSON(http.StatusOK, reg)
}

func (api *registrationApi) destroy(ctx echo.Context) error {
	reg, ok := ctx.Get(contextObjectKey).(registration.Registration)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving registration from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), reg); err != nil {
		return errors.Wrap(err, "deleting registration")
	}
	return ctx.NoContent(http.StatusNoContent)
}
