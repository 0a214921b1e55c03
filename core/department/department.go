package department

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("department")
	ErrNameExists = errors.New("a department with this name already exists in this school")
	errNoSchool   = "school not found"
)

type Department struct {
	ID          string    `json:"id"`
	SchoolID    string    `json:"school_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type NewDepartment struct {
	SchoolID    string `json:"school_id" validate:"required,uuid"`
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"omitempty,max=500"`
}

func (nd *NewDepartment) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nd.SchoolID = core.CleanString(nd.SchoolID)
	nd.Name = core.CleanString(nd.Name)
	nd.Description = core.CleanString(nd.Description)
	if err := validate.Struct(nd); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nd.SchoolID, nd.Name)
}

type UpdateDepartment struct {
	Name        string `json:"name" validate:"omitempty,max=120"`
	Description string `json:"description" validate:"omitempty,max=500"`
}

func (ud *UpdateDepartment) Validate(ctx context.Context, orig Department, validate *validator.Validate, svc Service) error {
	ud.Name = core.CleanString(ud.Name)
	ud.Description = core.CleanString(ud.Description)
	if err := validate.Struct(ud); err != nil {
		return err
	}
	if ud.Name == "" {
		return nil
	}
	return svc.CheckUniqueness(ctx, orig.SchoolID, ud.Name, orig.ID)
}

type QueryFilter struct {
	SchoolID string `query:"school_id"`
	Search   string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.SchoolID = core.CleanString(qf.SchoolID)
	qf.Search = core.CleanString(qf.Search)
}

var OrderingFields = map[string]string{
	"name":       "name",
	"created_at": "created_at",
}

type (
	Repository interface {
		// CheckUniqueness returns ErrNameExists when another department of the school, other than excludedID, is named name.
		CheckUniqueness(ctx context.Context, schoolID, name, excludedID string, exec ...core.DBExecutor) error
		CreateDepartment(ctx context.Context, d Department, exec ...core.DBExecutor) (Department, error)
		QueryDepartments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]Department, int, error)
		GetDepartment(ctx context.Context, id string, exec ...core.DBExecutor) (Department, error)
		UpdateDepartment(ctx context.Context, d Department, exec ...core.DBExecutor) (Department, error)
		DeleteDepartment(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// SchoolGetter finds the school a department belongs to.
	SchoolGetter interface {
		GetByID(ctx context.Context, id string) (school.School, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, schoolID, name string, excludedID ...string) error
		Create(ctx context.Context, nd NewDepartment) (Department, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Pagination) ([]Department, int, error)
		GetByID(ctx context.Context, id string) (Department, error)
		Update(ctx context.Context, d Department, ud UpdateDepartment) (Department, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo    Repository
		schools SchoolGetter
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, schools SchoolGetter) Service {
	return &service{repo: repo, schools: schools}
}

func (svc *service) CheckUniqueness(ctx context.Context, schoolID, name string, excludedID ...string) error {
	var excl string
	if len(excludedID) > 0 {
		excl = excludedID[0]
	}
	if err := svc.repo.CheckUniqueness(ctx, schoolID, name, excl); err != nil {
		if errors.Cause(err) == ErrNameExists {
			return core.NewValidationError(err, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nd NewDepartment) (Department, error) {
	if _, err := svc.schools.GetByID(ctx, nd.SchoolID); err != nil {
		if errors.Cause(err) == school.ErrNotFound {
			return Department{}, core.NewValidationError(nil, core.FieldError{Field: "school_id", Error: errNoSchool})
		}
		return Department{}, errors.Wrap(err, "finding school")
	}

	now := time.Now().UTC()
	return svc.repo.CreateDepartment(ctx, Department{
		ID:          uuid.NewString(),
		SchoolID:    nd.SchoolID,
		Name:        nd.Name,
		Description: nd.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Pagination) ([]Department, int, error) {
	return svc.repo.QueryDepartments(ctx, filter, core.FilterOrderings(ordering, OrderingFields), page)
}

func (svc *service) GetByID(ctx context.Context, id string) (Department, error) {
	return svc.repo.GetDepartment(ctx, id)
}

func (svc *service) Update(ctx context.Context, d Department, ud UpdateDepartment) (Department, error) {
	if ud.Name != "" {
		d.Name = ud.Name
	}
	if ud.Description != "" {
		d.Description = ud.Description
	}
	d.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateDepartment(ctx, d)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteDepartment(ctx, id)
}
