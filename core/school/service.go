package school

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("school")
	ErrNameExists = errors.New("a school with this name already exists")
	ErrCodeExists = errors.New("a school with this code already exists")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrNameExists or ErrCodeExists when another school, other than excludedID, holds name or code.
		CheckUniqueness(ctx context.Context, name, code, excludedID string, exec ...core.DBExecutor) error
		CreateSchool(ctx context.Context, s School, exec ...core.DBExecutor) (School, error)
		QuerySchools(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]School, int, error)
		GetSchool(ctx context.Context, id string, exec ...core.DBExecutor) (School, error)
		UpdateSchool(ctx context.Context, s School, exec ...core.DBExecutor) (School, error)
		DeleteSchool(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		CheckUniqueness(ctx context.Context, name, code string, excludedID ...string) error
		Create(ctx context.Context, ns NewSchool) (School, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Pagination) ([]School, int, error)
		GetByID(ctx context.Context, id string) (School, error)
		Update(ctx context.Context, s School, us UpdateSchool) (School, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) CheckUniqueness(ctx context.Context, name, code string, excludedID ...string) error {
	var excl string
	if len(excludedID) > 0 {
		excl = excludedID[0]
	}
	if err := svc.repo.CheckUniqueness(ctx, name, code, excl); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrNameExists:
			field = "name"
		case ErrCodeExists:
			field = "code"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: errors.Cause(err).Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, ns NewSchool) (School, error) {
	now := time.Now().UTC()
	return svc.repo.CreateSchool(ctx, School{
		ID:        uuid.NewString(),
		Name:      ns.Name,
		Code:      ns.Code,
		Email:     ns.Email,
		Phone:     ns.Phone,
		Address:   ns.Address,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Pagination) ([]School, int, error) {
	return svc.repo.QuerySchools(ctx, filter, core.FilterOrderings(ordering, OrderingFields), page)
}

func (svc *service) GetByID(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchool(ctx, id)
}

func (svc *service) Update(ctx context.Context, s School, us UpdateSchool) (School, error) {
	s = us.apply(s)
	s.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSchool(ctx, s)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteSchool(ctx, id)
}
