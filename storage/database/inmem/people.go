package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
)

type teacherRepository struct {
	db *table[teacher.Teacher]
}

var _ teacher.Repository = (*teacherRepository)(nil)

func NewTeacherRepository(db *DB) teacher.Repository {
	return &teacherRepository{db: db.teacher}
}

var teacherComparators = comparators[teacher.Teacher]{
	"first_name": func(a, b teacher.Teacher) int { return strings.Compare(a.FirstName, b.FirstName) },
	"last_name":  func(a, b teacher.Teacher) int { return strings.Compare(a.LastName, b.LastName) },
	"email":      func(a, b teacher.Teacher) int { return strings.Compare(a.Email, b.Email) },
	"subject":    func(a, b teacher.Teacher) int { return strings.Compare(a.Subject, b.Subject) },
	"created_at": func(a, b teacher.Teacher) int { return compareTimes(a.CreatedAt, b.CreatedAt) },
	"updated_at": func(a, b teacher.Teacher) int { return compareTimes(a.UpdatedAt, b.UpdatedAt) },
}

func (repo *teacherRepository) CheckUniqueness(ctx context.Context, email, excludedID string, exec ...core.DBExecutor) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, t := range repo.db.rows {
		if t.ID != excludedID && t.Email == email {
			return teacher.ErrEmailExists
		}
	}
	return nil
}

func (repo *teacherRepository) CreateTeacher(ctx context.Context, t teacher.Teacher, exec ...core.DBExecutor) (teacher.Teacher, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.rows[t.ID] = t
	return t, nil
}

func (repo *teacherRepository) QueryTeachers(ctx context.Context, filter *teacher.QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]teacher.Teacher, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	teachers := make([]teacher.Teacher, 0, len(repo.db.rows))
	for _, t := range repo.db.all() {
		if filter != nil {
			if filter.SchoolID != "" && t.SchoolID != filter.SchoolID {
				continue
			}
			if filter.DepartmentID != "" && t.DepartmentID != filter.DepartmentID {
				continue
			}
			if filter.Search != "" && !anyContainsFold(filter.Search, t.FirstName, t.LastName, t.Email, t.Subject) {
				continue
			}
			if filter.IsActive != nil && t.IsActive != *filter.IsActive {
				continue
			}
		}
		teachers = append(teachers, t)
	}
	sortRows(teachers, ordering, teacherComparators, func(a, b teacher.Teacher) int {
		if c := strings.Compare(a.LastName, b.LastName); c != 0 {
			return c
		}
		return strings.Compare(a.FirstName, b.FirstName)
	})
	return paginate(teachers, page), len(teachers), nil
}

func (repo *teacherRepository) GetTeacher(ctx context.Context, id string, exec ...core.DBExecutor) (teacher.Teacher, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.rows[id]; ok {
		return t, nil
	}
	return teacher.Teacher{}, teacher.ErrNotFound
}

func (repo *teacherRepository) UpdateTeacher(ctx context.Context, t teacher.Teacher, exec ...core.DBExecutor) (teacher.Teacher, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.rows[t.ID]; !ok {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	repo.db.rows[t.ID] = t
	return t, nil
}

func (repo *teacherRepository) DeleteTeacher(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.rows[id]; !ok {
		return teacher.ErrNotFound
	}
	delete(repo.db.rows, id)
	return nil
}

type studentRepository struct {
	db *table[student.Student]
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db.student}
}

var studentComparators = comparators[student.Student]{
	"admission_no":  func(a, b student.Student) int { return strings.Compare(a.AdmissionNo, b.AdmissionNo) },
	"first_name":    func(a, b student.Student) int { return strings.Compare(a.FirstName, b.FirstName) },
	"last_name":     func(a, b student.Student) int { return strings.Compare(a.LastName, b.LastName) },
	"class_name":    func(a, b student.Student) int { return strings.Compare(a.ClassName, b.ClassName) },
	"date_of_birth": func(a, b student.Student) int { return compareTimes(a.DateOfBirth.Time, b.DateOfBirth.Time) },
	"created_at":    func(a, b student.Student) int { return compareTimes(a.CreatedAt, b.CreatedAt) },
	"updated_at":    func(a, b student.Student) int { return compareTimes(a.UpdatedAt, b.UpdatedAt) },
}

func (repo *studentRepository) CheckUniqueness(ctx context.Context, schoolID, admissionNo string, exec ...core.DBExecutor) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, s := range repo.db.rows {
		if s.SchoolID == schoolID && strings.EqualFold(s.AdmissionNo, admissionNo) {
			return student.ErrAdmissionNoExists
		}
	}
	return nil
}

func (repo *studentRepository) CreateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.rows[s.ID] = s
	return s, nil
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]student.Student, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]student.Student, 0, len(repo.db.rows))
	for _, s := range repo.db.all() {
		if filter != nil {
			if filter.SchoolID != "" && s.SchoolID != filter.SchoolID {
				continue
			}
			if filter.DepartmentID != "" && s.DepartmentID != filter.DepartmentID {
				continue
			}
			if filter.ClassName != "" && !strings.EqualFold(s.ClassName, filter.ClassName) {
				continue
			}
			if filter.Gender != "" && s.Gender != filter.Gender {
				continue
			}
			if filter.Search != "" && !anyContainsFold(filter.Search, s.FirstName, s.LastName, s.AdmissionNo, s.GuardianName) {
				continue
			}
			if filter.IsActive != nil && s.IsActive != *filter.IsActive {
				continue
			}
		}
		students = append(students, s)
	}
	sortRows(students, ordering, studentComparators, func(a, b student.Student) int {
		return strings.Compare(a.AdmissionNo, b.AdmissionNo)
	})
	return paginate(students, page), len(students), nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.rows[id]; ok {
		return s, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.rows[s.ID]; !ok {
		return student.Student{}, student.ErrNotFound
	}
	repo.db.rows[s.ID] = s
	return s, nil
}

func (repo *studentRepository) DeleteStudent(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.rows[id]; !ok {
		return student.ErrNotFound
	}
	delete(repo.db.rows, id)
	return nil
}
