package student

import (
	"bytes"
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/department"
	"github.com/trezcool/shule/core/school"
)

const (
	gomaID   = "9b2e8a3c-5a43-4c1e-9d0c-0d6f3f1f9a10"
	kinID    = "0f1c7d2e-3b4a-4e5f-8a9b-1c2d3e4f5a6b"
	scienceD = "5d7f0a1b-2c3d-4e5f-9a0b-1c2d3e4f5a60"
)

var admissionNoRegex = regexp.MustCompile(`^\d{4}[0-9A-F]{6}$`)

type fakeRepo struct {
	Repository
	taken   map[string]bool // admission numbers
	checks  int
	created []Student
	failing error
}

func (r *fakeRepo) CheckUniqueness(_ context.Context, _, admissionNo string, _ ...core.DBExecutor) error {
	r.checks++
	if r.failing != nil {
		return r.failing
	}
	if r.taken[admissionNo] {
		return ErrAdmissionNoExists
	}
	return nil
}

func (r *fakeRepo) CreateStudent(_ context.Context, s Student, _ ...core.DBExecutor) (Student, error) {
	r.created = append(r.created, s)
	return s, nil
}

func (r *fakeRepo) UpdateStudent(_ context.Context, s Student, _ ...core.DBExecutor) (Student, error) {
	return s, nil
}

type fakeSchools struct{}

func (fakeSchools) GetByID(_ context.Context, id string) (school.School, error) {
	if id == gomaID || id == kinID {
		return school.School{ID: id}, nil
	}
	return school.School{}, school.ErrNotFound
}

type fakeDepartments struct{}

func (fakeDepartments) GetByID(_ context.Context, id string) (department.Department, error) {
	if id == scienceD {
		return department.Department{ID: id, SchoolID: gomaID}, nil
	}
	return department.Department{}, department.ErrNotFound
}

func newTestService(repo *fakeRepo) *service {
	return &service{
		repo:        repo,
		schools:     fakeSchools{},
		departments: fakeDepartments{},
		nowFunc:     func() time.Time { return time.Date(2024, time.September, 2, 8, 0, 0, 0, time.UTC) },
	}
}

func fieldErrors(t *testing.T, err error) []core.FieldError {
	t.Helper()
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok, "%v", err)
	return verr.Fields
}

func TestNewAdmissionNo(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		no, err := NewAdmissionNo(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Regexp(t, admissionNoRegex, no)
		assert.Equal(t, "2024", no[:4])
		seen[no] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	ns := NewStudent{SchoolID: gomaID, FirstName: "Amani", LastName: "Bahati", Gender: GenderFemale, ClassName: "6 Sec-B"}

	t.Run("generates the admission number", func(t *testing.T) {
		repo := &fakeRepo{}
		s, err := newTestService(repo).Create(ctx, ns)
		require.NoError(t, err)
		assert.Regexp(t, admissionNoRegex, s.AdmissionNo)
		assert.Equal(t, "2024", s.AdmissionNo[:4])
		assert.True(t, s.IsActive)
		assert.NotEmpty(t, s.ID)
		assert.Equal(t, s.CreatedAt, s.UpdatedAt)
		assert.Len(t, repo.created, 1)
	})

	t.Run("keeps the given admission number", func(t *testing.T) {
		repo := &fakeRepo{}
		given := ns
		given.AdmissionNo = "GOMA001"
		s, err := newTestService(repo).Create(ctx, given)
		require.NoError(t, err)
		assert.Equal(t, "GOMA001", s.AdmissionNo)
		assert.Zero(t, repo.checks)
	})

	t.Run("gives up after repeated collisions", func(t *testing.T) {
		repo := &fakeRepo{failing: ErrAdmissionNoExists}
		_, err := newTestService(repo).Create(ctx, ns)
		require.Error(t, err)
		assert.Equal(t, admissionNoAttempts, repo.checks)
		assert.Empty(t, repo.created)
	})

	t.Run("repository errors are returned", func(t *testing.T) {
		boom := errors.New("db is down")
		_, err := newTestService(&fakeRepo{failing: boom}).Create(ctx, ns)
		assert.Equal(t, boom, errors.Cause(err))
	})

	t.Run("placement", func(t *testing.T) {
		tests := []struct {
			name   string
			school string
			dept   string
			want   core.FieldError
		}{
			{name: "unknown school", school: "d9c1a7a0-0000-4000-8000-000000000000", want: core.FieldError{Field: "school_id", Error: errNoSchool}},
			{name: "unknown department", school: gomaID, dept: "d9c1a7a0-0000-4000-8000-000000000000", want: core.FieldError{Field: "department_id", Error: errNoDepartment}},
			{name: "department of another school", school: kinID, dept: scienceD, want: core.FieldError{Field: "department_id", Error: errDepartmentMissing}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				repo := &fakeRepo{}
				bad := ns
				bad.SchoolID, bad.DepartmentID = tt.school, tt.dept
				_, err := newTestService(repo).Create(ctx, bad)
				assert.Equal(t, []core.FieldError{tt.want}, fieldErrors(t, err))
				assert.Empty(t, repo.created)
			})
		}
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakeRepo{})
	orig := Student{
		ID: "s1", SchoolID: gomaID, AdmissionNo: "2024ABCDEF", FirstName: "Amani", LastName: "Bahati",
		Gender: GenderFemale, ClassName: "6 Sec-B", GuardianPhone: "+243810000111", IsActive: true,
	}

	inactive := false
	dept := scienceD
	s, err := svc.Update(ctx, orig, UpdateStudent{ClassName: "6 Sec-A", DepartmentID: &dept, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "6 Sec-A", s.ClassName)
	assert.Equal(t, scienceD, s.DepartmentID)
	assert.False(t, s.IsActive)
	assert.Equal(t, "Amani", s.FirstName)
	assert.Equal(t, "+243810000111", s.GuardianPhone)
	assert.Equal(t, "2024ABCDEF", s.AdmissionNo)
	assert.False(t, s.UpdatedAt.IsZero())

	none := ""
	s, err = svc.Update(ctx, s, UpdateStudent{DepartmentID: &none})
	require.NoError(t, err)
	assert.Empty(t, s.DepartmentID)

	other := "d9c1a7a0-0000-4000-8000-000000000000"
	_, err = svc.Update(ctx, orig, UpdateStudent{DepartmentID: &other})
	assert.Equal(t, []core.FieldError{{Field: "department_id", Error: errNoDepartment}}, fieldErrors(t, err))
}

func TestNewStudent_Validate(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	svc := newTestService(&fakeRepo{taken: map[string]bool{"GOMA001": true}})
	ctx := context.Background()

	ns := NewStudent{
		SchoolID: " " + gomaID, FirstName: " Amani", LastName: "Bahati ", Gender: "FEMALE", ClassName: "6 Sec-B",
		DateOfBirth: core.NewDate(2016, time.September, 21), GuardianEmail: "Esther@Test.CD",
	}
	require.NoError(t, ns.Validate(ctx, validate, svc))
	assert.Equal(t, gomaID, ns.SchoolID)
	assert.Equal(t, "Amani", ns.FirstName)
	assert.Equal(t, GenderFemale, ns.Gender)
	assert.Equal(t, "esther@test.cd", ns.GuardianEmail)

	noDOB := ns
	noDOB.DateOfBirth = core.Date{}
	assert.Equal(t, []core.FieldError{{Field: "date_of_birth", Error: errDOBRequired}}, fieldErrors(t, noDOB.Validate(ctx, validate, svc)))

	future := ns
	future.DateOfBirth = core.Date{Time: time.Now().AddDate(0, 1, 0)}
	assert.Equal(t, []core.FieldError{{Field: "date_of_birth", Error: errDOBInFuture}}, fieldErrors(t, future.Validate(ctx, validate, svc)))

	taken := ns
	taken.AdmissionNo = "GOMA001"
	assert.Equal(t, []core.FieldError{{Field: "admission_no", Error: ErrAdmissionNoExists.Error()}}, fieldErrors(t, taken.Validate(ctx, validate, svc)))

	invalid := ns
	invalid.Gender = "other"
	invalid.FirstName = "Amani2"
	err := invalid.Validate(ctx, validate, svc)
	require.Error(t, err)
	var fields []string
	for _, fe := range err.(validator.ValidationErrors) {
		fields = append(fields, fe.Field())
	}
	assert.ElementsMatch(t, []string{"gender", "first_name"}, fields)
}

func TestWriteXLSX(t *testing.T) {
	students := []Student{
		{AdmissionNo: "2024ABCDEF", FirstName: "Amani", LastName: "Bahati", Gender: GenderFemale, DateOfBirth: core.NewDate(2016, time.September, 21), ClassName: "6 Sec-B", GuardianName: "Esther Bahati", IsActive: true},
		{AdmissionNo: "GOMA001", FirstName: "Jean", LastName: "Lukusa", Gender: GenderMale, ClassName: "5 Sec-A"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, students))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ExportSheet}, f.GetSheetList())
	rows, err := f.GetRows(ExportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportHeaders, rows[0])
	assert.Equal(t, []string{"2024ABCDEF", "Amani", "Bahati", "female", "2016-09-21", "6 Sec-B", "Esther Bahati", "", "", "TRUE"}, rows[1])
	assert.Equal(t, "GOMA001", rows[2][0])
	assert.Equal(t, "FALSE", rows[2][len(rows[2])-1])

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteXLSX(&buf, nil))
		f, err := excelize.OpenReader(&buf)
		require.NoError(t, err)
		defer f.Close()
		rows, err := f.GetRows(ExportSheet)
		require.NoError(t, err)
		assert.Equal(t, [][]string{exportHeaders}, rows)
	})
}
