package fee

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("fee structure")
	ErrStructureExists = errors.New("a fee structure already exists for this class and academic year")

	errNoSchool = "school not found"
)

type (
	Repository interface {
		// CheckUniqueness returns ErrStructureExists when the (school, class, academic year) triple is taken.
		CheckUniqueness(ctx context.Context, schoolID, className, academicYear string, exec ...core.DBExecutor) error
		CreateStructure(ctx context.Context, s Structure, exec ...core.DBExecutor) (Structure, error)
		QueryStructures(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]Structure, int, error)
		GetStructure(ctx context.Context, id string, exec ...core.DBExecutor) (Structure, error)
		UpdateStructure(ctx context.Context, s Structure, exec ...core.DBExecutor) (Structure, error)
		DeleteStructure(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	SchoolGetter interface {
		GetByID(ctx context.Context, id string) (school.School, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, schoolID, className, academicYear string) error
		Create(ctx context.Context, ns NewStructure) (Structure, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Pagination) ([]Structure, int, error)
		GetByID(ctx context.Context, id string) (Structure, error)
		Update(ctx context.Context, s Structure, us UpdateStructure) (Structure, error)
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

func (svc *service) CheckUniqueness(ctx context.Context, schoolID, className, academicYear string) error {
	if err := svc.repo.CheckUniqueness(ctx, schoolID, className, academicYear); err != nil {
		if errors.Cause(err) == ErrStructureExists {
			return core.NewValidationError(err, core.FieldError{Field: "class_name", Error: ErrStructureExists.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, ns NewStructure) (Structure, error) {
	if _, err := svc.schools.GetByID(ctx, ns.SchoolID); err != nil {
		if errors.Cause(err) == school.ErrNotFound {
			return Structure{}, core.NewValidationError(nil, core.FieldError{Field: "school_id", Error: errNoSchool})
		}
		return Structure{}, errors.Wrap(err, "finding school")
	}

	now := time.Now().UTC()
	return svc.repo.CreateStructure(ctx, Structure{
		ID:           uuid.NewString(),
		SchoolID:     ns.SchoolID,
		ClassName:    ns.ClassName,
		AcademicYear: ns.AcademicYear,
		Currency:     ns.Currency,
		Items:        ns.Items,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Pagination) ([]Structure, int, error) {
	return svc.repo.QueryStructures(ctx, filter, core.FilterOrderings(ordering, OrderingFields), page)
}

func (svc *service) GetByID(ctx context.Context, id string) (Structure, error) {
	return svc.repo.GetStructure(ctx, id)
}

func (svc *service) Update(ctx context.Context, s Structure, us UpdateStructure) (Structure, error) {
	if us.Currency != "" {
		s.Currency = us.Currency
	}
	if us.Items != nil {
		s.Items = us.Items
	}
	s.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStructure(ctx, s)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteStructure(ctx, id)
}
