package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
)

const (
	teacherTable = "teacher"
	studentTable = "student"
)

type teacherRow struct {
	ID            string      `db:"id"`
	SchoolID      string      `db:"school_id"`
	DepartmentID  null.String `db:"department_id"`
	FirstName     string      `db:"first_name"`
	LastName      string      `db:"last_name"`
	Email         string      `db:"email"`
	Phone         string      `db:"phone"`
	Subject       string      `db:"subject"`
	Qualification string      `db:"qualification"`
	IsActive      bool        `db:"is_active"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

func (r teacherRow) teacher() teacher.Teacher {
	return teacher.Teacher{
		ID:            r.ID,
		SchoolID:      r.SchoolID,
		DepartmentID:  r.DepartmentID.String,
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Email:         r.Email,
		Phone:         r.Phone,
		Subject:       r.Subject,
		Qualification: r.Qualification,
		IsActive:      r.IsActive,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func teacherValues(t teacher.Teacher) map[string]interface{} {
	return map[string]interface{}{
		"id":            t.ID,
		"school_id":     t.SchoolID,
		"department_id": nullID(t.DepartmentID),
		"first_name":    t.FirstName,
		"last_name":     t.LastName,
		"email":         t.Email,
		"phone":         t.Phone,
		"subject":       t.Subject,
		"qualification": t.Qualification,
		"is_active":     t.IsActive,
		"created_at":    t.CreatedAt.UTC(),
		"updated_at":    t.UpdatedAt.UTC(),
	}
}

type teacherRepository struct {
	baseRepository
}

var _ teacher.Repository = (*teacherRepository)(nil)

func NewTeacherRepository(exec core.DBExecutor) teacher.Repository {
	return &teacherRepository{baseRepository{exec: exec}}
}

func (repo teacherRepository) CheckUniqueness(ctx context.Context, email, excludedID string, exec ...core.DBExecutor) error {
	where := sq.And{sq.Eq{"email": email}}
	if excludedID != "" {
		where = append(where, sq.NotEq{"id": excludedID})
	}
	found, err := exists(ctx, repo.getExec(exec), teacherTable, where)
	if err != nil {
		return errors.Wrap(err, "checking teacher uniqueness")
	}
	if found {
		return teacher.ErrEmailExists
	}
	return nil
}

func (repo teacherRepository) CreateTeacher(ctx context.Context, t teacher.Teacher, exec ...core.DBExecutor) (teacher.Teacher, error) {
	if err := insert(ctx, repo.getExec(exec), teacherTable, teacherValues(t)); err != nil {
		return teacher.Teacher{}, errors.Wrap(err, "inserting teacher")
	}
	return t, nil
}

func (repo teacherRepository) QueryTeachers(ctx context.Context, filter *teacher.QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]teacher.Teacher, int, error) {
	var where sq.And
	if filter != nil {
		if filter.SchoolID != "" {
			if !validID(filter.SchoolID) {
				return []teacher.Teacher{}, 0, nil
			}
			where = append(where, sq.Eq{"school_id": filter.SchoolID})
		}
		if filter.DepartmentID != "" {
			if !validID(filter.DepartmentID) {
				return []teacher.Teacher{}, 0, nil
			}
			where = append(where, sq.Eq{"department_id": filter.DepartmentID})
		}
		if filter.Search != "" {
			where = append(where, ilike(filter.Search, "first_name", "last_name", "email", "subject"))
		}
		if filter.IsActive != nil {
			where = append(where, sq.Eq{"is_active": *filter.IsActive})
		}
	}

	var rows []teacherRow
	total, err := queryPage(ctx, repo.getExec(exec), &rows, teacherTable, where, orderBy(ordering, "last_name ASC", "first_name ASC"), page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying teachers")
	}
	teachers := make([]teacher.Teacher, 0, len(rows))
	for _, r := range rows {
		teachers = append(teachers, r.teacher())
	}
	return teachers, total, nil
}

func (repo teacherRepository) GetTeacher(ctx context.Context, id string, exec ...core.DBExecutor) (teacher.Teacher, error) {
	if !validID(id) {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	var row teacherRow
	if err := getOne(ctx, repo.getExec(exec), &row, teacherTable, sq.Eq{"id": id}); err != nil {
		return teacher.Teacher{}, trapNoRowsErr(err, teacher.ErrNotFound, "finding teacher")
	}
	return row.teacher(), nil
}

func (repo teacherRepository) UpdateTeacher(ctx context.Context, t teacher.Teacher, exec ...core.DBExecutor) (teacher.Teacher, error) {
	values := teacherValues(t)
	delete(values, "id")
	delete(values, "created_at")
	if err := update(ctx, repo.getExec(exec), teacherTable, t.ID, values, teacher.ErrNotFound); err != nil {
		return teacher.Teacher{}, trapNoRowsErr(err, teacher.ErrNotFound, "updating teacher")
	}
	return t, nil
}

func (repo teacherRepository) DeleteTeacher(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if err := deleteByID(ctx, repo.getExec(exec), teacherTable, id, teacher.ErrNotFound); err != nil {
		return trapNoRowsErr(err, teacher.ErrNotFound, "deleting teacher")
	}
	return nil
}

type studentRow struct {
	ID            string      `db:"id"`
	SchoolID      string      `db:"school_id"`
	DepartmentID  null.String `db:"department_id"`
	AdmissionNo   string      `db:"admission_no"`
	FirstName     string      `db:"first_name"`
	LastName      string      `db:"last_name"`
	Gender        string      `db:"gender"`
	DateOfBirth   core.Date   `db:"date_of_birth"`
	ClassName     string      `db:"class_name"`
	GuardianName  string      `db:"guardian_name"`
	GuardianPhone string      `db:"guardian_phone"`
	GuardianEmail string      `db:"guardian_email"`
	Address       string      `db:"address"`
	IsActive      bool        `db:"is_active"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

func (r studentRow) student() student.Student {
	return student.Student{
		ID:            r.ID,
		SchoolID:      r.SchoolID,
		DepartmentID:  r.DepartmentID.String,
		AdmissionNo:   r.AdmissionNo,
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Gender:        r.Gender,
		DateOfBirth:   r.DateOfBirth,
		ClassName:     r.ClassName,
		GuardianName:  r.GuardianName,
		GuardianPhone: r.GuardianPhone,
		GuardianEmail: r.GuardianEmail,
		Address:       r.Address,
		IsActive:      r.IsActive,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func studentValues(s student.Student) map[string]interface{} {
	return map[string]interface{}{
		"id":             s.ID,
		"school_id":      s.SchoolID,
		"department_id":  nullID(s.DepartmentID),
		"admission_no":   s.AdmissionNo,
		"first_name":     s.FirstName,
		"last_name":      s.LastName,
		"gender":         s.Gender,
		"date_of_birth":  s.DateOfBirth,
		"class_name":     s.ClassName,
		"guardian_name":  s.GuardianName,
		"guardian_phone": s.GuardianPhone,
		"guardian_email": s.GuardianEmail,
		"address":        s.Address,
		"is_active":      s.IsActive,
		"created_at":     s.CreatedAt.UTC(),
		"updated_at":     s.UpdatedAt.UTC(),
	}
}

type studentRepository struct {
	baseRepository
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(exec core.DBExecutor) student.Repository {
	return &studentRepository{baseRepository{exec: exec}}
}

func (repo studentRepository) CheckUniqueness(ctx context.Context, schoolID, admissionNo string, exec ...core.DBExecutor) error {
	where := sq.And{sq.Eq{"school_id": schoolID}, sq.Expr("UPPER(admission_no) = UPPER(?)", admissionNo)}
	found, err := exists(ctx, repo.getExec(exec), studentTable, where)
	if err != nil {
		return errors.Wrap(err, "checking student uniqueness")
	}
	if found {
		return student.ErrAdmissionNoExists
	}
	return nil
}

func (repo studentRepository) CreateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	if err := insert(ctx, repo.getExec(exec), studentTable, studentValues(s)); err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return s, nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]student.Student, int, error) {
	var where sq.And
	if filter != nil {
		if filter.SchoolID != "" {
			if !validID(filter.SchoolID) {
				return []student.Student{}, 0, nil
			}
			where = append(where, sq.Eq{"school_id": filter.SchoolID})
		}
		if filter.DepartmentID != "" {
			if !validID(filter.DepartmentID) {
				return []student.Student{}, 0, nil
			}
			where = append(where, sq.Eq{"department_id": filter.DepartmentID})
		}
		if filter.ClassName != "" {
			where = append(where, sq.ILike{"class_name": filter.ClassName})
		}
		if filter.Gender != "" {
			where = append(where, sq.Eq{"gender": filter.Gender})
		}
		if filter.Search != "" {
			where = append(where, ilike(filter.Search, "first_name", "last_name", "admission_no", "guardian_name"))
		}
		if filter.IsActive != nil {
			where = append(where, sq.Eq{"is_active": *filter.IsActive})
		}
	}

	var rows []studentRow
	total, err := queryPage(ctx, repo.getExec(exec), &rows, studentTable, where, orderBy(ordering, "admission_no ASC"), page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.student())
	}
	return students, total, nil
}

func (repo studentRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	if !validID(id) {
		return student.Student{}, student.ErrNotFound
	}
	var row studentRow
	if err := getOne(ctx, repo.getExec(exec), &row, studentTable, sq.Eq{"id": id}); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student")
	}
	return row.student(), nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	values := studentValues(s)
	delete(values, "id")
	delete(values, "created_at")
	if err := update(ctx, repo.getExec(exec), studentTable, s.ID, values, student.ErrNotFound); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "updating student")
	}
	return s, nil
}

func (repo studentRepository) DeleteStudent(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if err := deleteByID(ctx, repo.getExec(exec), studentTable, id, student.ErrNotFound); err != nil {
		return trapNoRowsErr(err, student.ErrNotFound, "deleting student")
	}
	return nil
}
