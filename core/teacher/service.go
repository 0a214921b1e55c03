package teacher

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/department"
	"github.com/trezcool/shule/core/school"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("teacher")
	ErrEmailExists = errors.New("a teacher with this email already exists")

	errNoSchool          = "school not found"
	errNoDepartment      = "department not found"
	errDepartmentMissing = "department does not belong to this school"
)

type (
	Repository interface {
		// CheckUniqueness returns ErrEmailExists when another teacher, other than excludedID, holds email.
		CheckUniqueness(ctx context.Context, email, excludedID string, exec ...core.DBExecutor) error
		CreateTeacher(ctx context.Context, t Teacher, exec ...core.DBExecutor) (Teacher, error)
		QueryTeachers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]Teacher, int, error)
		GetTeacher(ctx context.Context, id string, exec ...core.DBExecutor) (Teacher, error)
		UpdateTeacher(ctx context.Context, t Teacher, exec ...core.DBExecutor) (Teacher, error)
		DeleteTeacher(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	SchoolGetter interface {
		GetByID(ctx context.Context, id string) (school.School, error)
	}

	DepartmentGetter interface {
		GetByID(ctx context.Context, id string) (department.Department, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, email string, excludedID ...string) error
		Create(ctx context.Context, nt NewTeacher) (Teacher, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Pagination) ([]Teacher, int, error)
		GetByID(ctx context.Context, id string) (Teacher, error)
		Update(ctx context.Context, t Teacher, ut UpdateTeacher) (Teacher, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo        Repository
		schools     SchoolGetter
		departments DepartmentGetter
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, schools SchoolGetter, departments DepartmentGetter) Service {
	return &service{repo: repo, schools: schools, departments: departments}
}

func (svc *service) CheckUniqueness(ctx context.Context, email string, excludedID ...string) error {
	var excl string
	if len(excludedID) > 0 {
		excl = excludedID[0]
	}
	if err := svc.repo.CheckUniqueness(ctx, email, excl); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
		return err
	}
	return nil
}

// checkPlacement makes sure the school exists and the department, when set, belongs to it.
func (svc *service) checkPlacement(ctx context.Context, schoolID, departmentID string) error {
	if _, err := svc.schools.GetByID(ctx, schoolID); err != nil {
		if errors.Cause(err) == school.ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "school_id", Error: errNoSchool})
		}
		return errors.Wrap(err, "finding school")
	}
	if departmentID == "" {
		return nil
	}
	dept, err := svc.departments.GetByID(ctx, departmentID)
	if err != nil {
		if errors.Cause(err) == department.ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "department_id", Error: errNoDepartment})
		}
		return errors.Wrap(err, "finding department")
	}
	if dept.SchoolID != schoolID {
		return core.NewValidationError(nil, core.FieldError{Field: "department_id", Error: errDepartmentMissing})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nt NewTeacher) (Teacher, error) {
	if err := svc.checkPlacement(ctx, nt.SchoolID, nt.DepartmentID); err != nil {
		return Teacher{}, err
	}

	now := time.Now().UTC()
	return svc.repo.CreateTeacher(ctx, Teacher{
		ID:            uuid.NewString(),
		SchoolID:      nt.SchoolID,
		DepartmentID:  nt.DepartmentID,
		FirstName:     nt.FirstName,
		LastName:      nt.LastName,
		Email:         nt.Email,
		Phone:         nt.Phone,
		Subject:       nt.Subject,
		Qualification: nt.Qualification,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Pagination) ([]Teacher, int, error) {
	return svc.repo.QueryTeachers(ctx, filter, core.FilterOrderings(ordering, OrderingFields), page)
}

func (svc *service) GetByID(ctx context.Context, id string) (Teacher, error) {
	return svc.repo.GetTeacher(ctx, id)
}

func (svc *service) Update(ctx context.Context, t Teacher, ut UpdateTeacher) (Teacher, error) {
	if ut.DepartmentID != nil && *ut.DepartmentID != t.DepartmentID {
		if err := svc.checkPlacement(ctx, t.SchoolID, *ut.DepartmentID); err != nil {
			return Teacher{}, err
		}
	}
	t = ut.apply(t)
	t.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateTeacher(ctx, t)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteTeacher(ctx, id)
}
