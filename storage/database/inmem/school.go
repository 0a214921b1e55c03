package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/department"
	"github.com/trezcool/shule/core/school"
)

type schoolRepository struct {
	db *table[school.School]
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db.school}
}

var schoolComparators = comparators[school.School]{
	"name":       func(a, b school.School) int { return strings.Compare(a.Name, b.Name) },
	"code":       func(a, b school.School) int { return strings.Compare(a.Code, b.Code) },
	"created_at": func(a, b school.School) int { return compareTimes(a.CreatedAt, b.CreatedAt) },
	"updated_at": func(a, b school.School) int { return compareTimes(a.UpdatedAt, b.UpdatedAt) },
}

func (repo *schoolRepository) CheckUniqueness(ctx context.Context, name, code, excludedID string, exec ...core.DBExecutor) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, s := range repo.db.rows {
		if s.ID == excludedID {
			continue
		}
		if strings.EqualFold(s.Name, name) {
			return school.ErrNameExists
		}
		if s.Code == code {
			return school.ErrCodeExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, s school.School, exec ...core.DBExecutor) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.rows[s.ID] = s
	return s, nil
}

func (repo *schoolRepository) QuerySchools(ctx context.Context, filter *school.QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]school.School, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	schools := make([]school.School, 0, len(repo.db.rows))
	for _, s := range repo.db.all() {
		if filter != nil {
			if filter.Search != "" && !anyContainsFold(filter.Search, s.Name, s.Code, s.Email) {
				continue
			}
			if filter.IsActive != nil && s.IsActive != *filter.IsActive {
				continue
			}
		}
		schools = append(schools, s)
	}
	sortRows(schools, ordering, schoolComparators, func(a, b school.School) int {
		return strings.Compare(a.Name, b.Name)
	})
	return paginate(schools, page), len(schools), nil
}

func (repo *schoolRepository) GetSchool(ctx context.Context, id string, exec ...core.DBExecutor) (school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.rows[id]; ok {
		return s, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) UpdateSchool(ctx context.Context, s school.School, exec ...core.DBExecutor) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.rows[s.ID]; !ok {
		return school.School{}, school.ErrNotFound
	}
	repo.db.rows[s.ID] = s
	return s, nil
}

func (repo *schoolRepository) DeleteSchool(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.rows[id]; !ok {
		return school.ErrNotFound
	}
	delete(repo.db.rows, id)
	return nil
}

type departmentRepository struct {
	db *table[department.Department]
}

var _ department.Repository = (*departmentRepository)(nil)

func NewDepartmentRepository(db *DB) department.Repository {
	return &departmentRepository{db: db.department}
}

var departmentComparators = comparators[department.Department]{
	"name":       func(a, b department.Department) int { return strings.Compare(a.Name, b.Name) },
	"created_at": func(a, b department.Department) int { return compareTimes(a.CreatedAt, b.CreatedAt) },
}

func (repo *departmentRepository) CheckUniqueness(ctx context.Context, schoolID, name, excludedID string, exec ...core.DBExecutor) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, d := range repo.db.rows {
		if d.ID != excludedID && d.SchoolID == schoolID && strings.EqualFold(d.Name, name) {
			return department.ErrNameExists
		}
	}
	return nil
}

func (repo *departmentRepository) CreateDepartment(ctx context.Context, d department.Department, exec ...core.DBExecutor) (department.Department, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.rows[d.ID] = d
	return d, nil
}

func (repo *departmentRepository) QueryDepartments(ctx context.Context, filter *department.QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]department.Department, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	depts := make([]department.Department, 0, len(repo.db.rows))
	for _, d := range repo.db.all() {
		if filter != nil {
			if filter.SchoolID != "" && d.SchoolID != filter.SchoolID {
				continue
			}
			if filter.Search != "" && !anyContainsFold(filter.Search, d.Name, d.Description) {
				continue
			}
		}
		depts = append(depts, d)
	}
	sortRows(depts, ordering, departmentComparators, func(a, b department.Department) int {
		return strings.Compare(a.Name, b.Name)
	})
	return paginate(depts, page), len(depts), nil
}

func (repo *departmentRepository) GetDepartment(ctx context.Context, id string, exec ...core.DBExecutor) (department.Department, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if d, ok := repo.db.rows[id]; ok {
		return d, nil
	}
	return department.Department{}, department.ErrNotFound
}

func (repo *departmentRepository) UpdateDepartment(ctx context.Context, d department.Department, exec ...core.DBExecutor) (department.Department, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.rows[d.ID]; !ok {
		return department.Department{}, department.ErrNotFound
	}
	repo.db.rows[d.ID] = d
	return d, nil
}

func (repo *departmentRepository) DeleteDepartment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.rows[id]; !ok {
		return department.ErrNotFound
	}
	delete(repo.db.rows, id)
	return nil
}
