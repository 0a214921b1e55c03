package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/department"
	"github.com/trezcool/shule/core/school"
)

const (
	schoolTable     = "school"
	departmentTable = "department"
)

type schoolRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Code      string    `db:"code"`
	Email     string    `db:"email"`
	Phone     string    `db:"phone"`
	Address   string    `db:"address"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r schoolRow) school() school.School {
	return school.School{
		ID:        r.ID,
		Name:      r.Name,
		Code:      r.Code,
		Email:     r.Email,
		Phone:     r.Phone,
		Address:   r.Address,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func schoolValues(s school.School) map[string]interface{} {
	return map[string]interface{}{
		"id":         s.ID,
		"name":       s.Name,
		"code":       s.Code,
		"email":      s.Email,
		"phone":      s.Phone,
		"address":    s.Address,
		"is_active":  s.IsActive,
		"created_at": s.CreatedAt.UTC(),
		"updated_at": s.UpdatedAt.UTC(),
	}
}

type schoolRepository struct {
	baseRepository
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(exec core.DBExecutor) school.Repository {
	return &schoolRepository{baseRepository{exec: exec}}
}

func (repo schoolRepository) CheckUniqueness(ctx context.Context, name, code, excludedID string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)

	var excl sq.And
	if excludedID != "" {
		excl = append(excl, sq.NotEq{"id": excludedID})
	}

	found, err := exists(ctx, exe, schoolTable, append(sq.And{sq.Expr("LOWER(name) = LOWER(?)", name)}, excl...))
	if err != nil {
		return errors.Wrap(err, "checking school name uniqueness")
	}
	if found {
		return school.ErrNameExists
	}

	found, err = exists(ctx, exe, schoolTable, append(sq.And{sq.Eq{"code": code}}, excl...))
	if err != nil {
		return errors.Wrap(err, "checking school code uniqueness")
	}
	if found {
		return school.ErrCodeExists
	}
	return nil
}

func (repo schoolRepository) CreateSchool(ctx context.Context, s school.School, exec ...core.DBExecutor) (school.School, error) {
	if err := insert(ctx, repo.getExec(exec), schoolTable, schoolValues(s)); err != nil {
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return s, nil
}

func (repo schoolRepository) QuerySchools(ctx context.Context, filter *school.QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]school.School, int, error) {
	var where sq.And
	if filter != nil {
		if filter.Search != "" {
			where = append(where, ilike(filter.Search, "name", "code", "email"))
		}
		if filter.IsActive != nil {
			where = append(where, sq.Eq{"is_active": *filter.IsActive})
		}
	}

	var rows []schoolRow
	total, err := queryPage(ctx, repo.getExec(exec), &rows, schoolTable, where, orderBy(ordering, "name ASC"), page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying schools")
	}
	schools := make([]school.School, 0, len(rows))
	for _, r := range rows {
		schools = append(schools, r.school())
	}
	return schools, total, nil
}

func (repo schoolRepository) GetSchool(ctx context.Context, id string, exec ...core.DBExecutor) (school.School, error) {
	if !validID(id) {
		return school.School{}, school.ErrNotFound
	}
	var row schoolRow
	if err := getOne(ctx, repo.getExec(exec), &row, schoolTable, sq.Eq{"id": id}); err != nil {
		return school.School{}, trapNoRowsErr(err, school.ErrNotFound, "finding school")
	}
	return row.school(), nil
}

func (repo schoolRepository) UpdateSchool(ctx context.Context, s school.School, exec ...core.DBExecutor) (school.School, error) {
	values := schoolValues(s)
	delete(values, "id")
	delete(values, "created_at")
	if err := update(ctx, repo.getExec(exec), schoolTable, s.ID, values, school.ErrNotFound); err != nil {
		return school.School{}, trapNoRowsErr(err, school.ErrNotFound, "updating school")
	}
	return s, nil
}

func (repo schoolRepository) DeleteSchool(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if err := deleteByID(ctx, repo.getExec(exec), schoolTable, id, school.ErrNotFound); err != nil {
		return trapNoRowsErr(err, school.ErrNotFound, "deleting school")
	}
	return nil
}

type departmentRow struct {
	ID          string    `db:"id"`
	SchoolID    string    `db:"school_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r departmentRow) department() department.Department {
	return department.Department{
		ID:          r.ID,
		SchoolID:    r.SchoolID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func departmentValues(d department.Department) map[string]interface{} {
	return map[string]interface{}{
		"id":          d.ID,
		"school_id":   d.SchoolID,
		"name":        d.Name,
		"description": d.Description,
		"created_at":  d.CreatedAt.UTC(),
		"updated_at":  d.UpdatedAt.UTC(),
	}
}

type departmentRepository struct {
	baseRepository
}

var _ department.Repository = (*departmentRepository)(nil)

func NewDepartmentRepository(exec core.DBExecutor) department.Repository {
	return &departmentRepository{baseRepository{exec: exec}}
}

func (repo departmentRepository) CheckUniqueness(ctx context.Context, schoolID, name, excludedID string, exec ...core.DBExecutor) error {
	where := sq.And{sq.Eq{"school_id": schoolID}, sq.Expr("LOWER(name) = LOWER(?)", name)}
	if excludedID != "" {
		where = append(where, sq.NotEq{"id": excludedID})
	}
	found, err := exists(ctx, repo.getExec(exec), departmentTable, where)
	if err != nil {
		return errors.Wrap(err, "checking department uniqueness")
	}
	if found {
		return department.ErrNameExists
	}
	return nil
}

func (repo departmentRepository) CreateDepartment(ctx context.Context, d department.Department, exec ...core.DBExecutor) (department.Department, error) {
	if err := insert(ctx, repo.getExec(exec), departmentTable, departmentValues(d)); err != nil {
		return department.Department{}, errors.Wrap(err, "inserting department")
	}
	return d, nil
}

func (repo departmentRepository) QueryDepartments(ctx context.Context, filter *department.QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]department.Department, int, error) {
	var where sq.And
	if filter != nil {
		if filter.SchoolID != "" {
			if !validID(filter.SchoolID) {
				return []department.Department{}, 0, nil
			}
			where = append(where, sq.Eq{"school_id": filter.SchoolID})
		}
		if filter.Search != "" {
			where = append(where, ilike(filter.Search, "name", "description"))
		}
	}

	var rows []departmentRow
	total, err := queryPage(ctx, repo.getExec(exec), &rows, departmentTable, where, orderBy(ordering, "name ASC"), page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying departments")
	}
	depts := make([]department.Department, 0, len(rows))
	for _, r := range rows {
		depts = append(depts, r.department())
	}
	return depts, total, nil
}

func (repo departmentRepository) GetDepartment(ctx context.Context, id string, exec ...core.DBExecutor) (department.Department, error) {
	if !validID(id) {
		return department.Department{}, department.ErrNotFound
	}
	var row departmentRow
	if err := getOne(ctx, repo.getExec(exec), &row, departmentTable, sq.Eq{"id": id}); err != nil {
		return department.Department{}, trapNoRowsErr(err, department.ErrNotFound, "finding department")
	}
	return row.department(), nil
}

func (repo departmentRepository) UpdateDepartment(ctx context.Context, d department.Department, exec ...core.DBExecutor) (department.Department, error) {
	values := departmentValues(d)
	delete(values, "id")
	delete(values, "created_at")
	if err := update(ctx, repo.getExec(exec), departmentTable, d.ID, values, department.ErrNotFound); err != nil {
		return department.Department{}, trapNoRowsErr(err, department.ErrNotFound, "updating department")
	}
	return d, nil
}

func (repo departmentRepository) DeleteDepartment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if err := deleteByID(ctx, repo.getExec(exec), departmentTable, id, department.ErrNotFound); err != nil {
		return trapNoRowsErr(err, department.ErrNotFound, "deleting department")
	}
	return nil
}
