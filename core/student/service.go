package student

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/department"
	"github.com/trezcool/shule/core/school"
)

const admissionNoAttempts = 5

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("student")
	ErrAdmissionNoExists = errors.New("a student with this admission number already exists in this school")

	errDOBRequired       = "this field is required"
	errDOBInFuture       = "date of birth must be in the past"
	errNoSchool          = "school not found"
	errNoDepartment      = "department not found"
	errDepartmentMissing = "department does not belong to this school"
)

type (
	Repository interface {
		// CheckUniqueness returns ErrAdmissionNoExists when the admission number is taken in the school.
		CheckUniqueness(ctx context.Context, schoolID, admissionNo string, exec ...core.DBExecutor) error
		CreateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]Student, int, error)
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		UpdateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		DeleteStudent(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	SchoolGetter interface {
		GetByID(ctx context.Context, id string) (school.School, error)
	}

	DepartmentGetter interface {
		GetByID(ctx context.Context, id string) (department.Department, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, schoolID, admissionNo string) error
		// Create persists a new Student, generating its admission number when missing.
		// exec, when given, runs the inserts inside the caller's transaction.
		Create(ctx context.Context, ns NewStudent, exec ...core.DBExecutor) (Student, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Pagination) ([]Student, int, error)
		GetByID(ctx context.Context, id string) (Student, error)
		Update(ctx context.Context, s Student, us UpdateStudent) (Student, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo        Repository
		schools     SchoolGetter
		departments DepartmentGetter
		nowFunc     func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, schools SchoolGetter, departments DepartmentGetter) Service {
	return &service{
		repo:        repo,
		schools:     schools,
		departments: departments,
		nowFunc:     time.Now,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, schoolID, admissionNo string) error {
	if err := svc.repo.CheckUniqueness(ctx, schoolID, admissionNo); err != nil {
		if errors.Cause(err) == ErrAdmissionNoExists {
			return core.NewValidationError(err, core.FieldError{Field: "admission_no", Error: ErrAdmissionNoExists.Error()})
		}
		return err
	}
	return nil
}

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

// NewAdmissionNo returns "<year><6 uppercase hex digits>", eg. 2024A1B2C3.
func NewAdmissionNo(now time.Time) (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strconv.Itoa(now.Year()) + strings.ToUpper(hex.EncodeToString(b)), nil
}

func (svc *service) generateAdmissionNo(ctx context.Context, schoolID string, exec []core.DBExecutor) (string, error) {
	for i := 0; i < admissionNoAttempts; i++ {
		no, err := NewAdmissionNo(svc.nowFunc())
		if err != nil {
			return "", errors.Wrap(err, "generating admission number")
		}
		err = svc.repo.CheckUniqueness(ctx, schoolID, no, exec...)
		if err == nil {
			return no, nil
		}
		if errors.Cause(err) != ErrAdmissionNoExists {
			return "", err
		}
	}
	return "", errors.New("could not generate a unique admission number")
}

func (svc *service) Create(ctx context.Context, ns NewStudent, exec ...core.DBExecutor) (Student, error) {
	if err := svc.checkPlacement(ctx, ns.SchoolID, ns.DepartmentID); err != nil {
		return Student{}, err
	}

	admissionNo := ns.AdmissionNo
	if admissionNo == "" {
		var err error
		if admissionNo, err = svc.generateAdmissionNo(ctx, ns.SchoolID, exec); err != nil {
			return Student{}, err
		}
	}

	now := svc.nowFunc().UTC()
	return svc.repo.CreateStudent(ctx, Student{
		ID:            uuid.NewString(),
		SchoolID:      ns.SchoolID,
		DepartmentID:  ns.DepartmentID,
		AdmissionNo:   admissionNo,
		FirstName:     ns.FirstName,
		LastName:      ns.LastName,
		Gender:        ns.Gender,
		DateOfBirth:   ns.DateOfBirth,
		ClassName:     ns.ClassName,
		GuardianName:  ns.GuardianName,
		GuardianPhone: ns.GuardianPhone,
		GuardianEmail: ns.GuardianEmail,
		Address:       ns.Address,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, exec...)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Pagination) ([]Student, int, error) {
	return svc.repo.QueryStudents(ctx, filter, core.FilterOrderings(ordering, OrderingFields), page)
}

func (svc *service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *service) Update(ctx context.Context, s Student, us UpdateStudent) (Student, error) {
	if us.DepartmentID != nil && *us.DepartmentID != s.DepartmentID {
		if err := svc.checkPlacement(ctx, s.SchoolID, *us.DepartmentID); err != nil {
			return Student{}, err
		}
	}
	s = us.apply(s)
	s.UpdatedAt = svc.nowFunc().UTC()
	return svc.repo.UpdateStudent(ctx, s)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteStudent(ctx, id)
}
