package registration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
)

var testRules = DocumentRules{
	MaxSize:      1 << 20,
	MaxDocuments: 3,
	AllowedTypes: []string{"application/pdf", "image/png"},
}

func testApplication() Application {
	return Application{
		FirstName:     "Amani",
		LastName:      "Bahati",
		Gender:        "female",
		DateOfBirth:   "2016-09-21",
		GuardianName:  "Esther Bahati",
		GuardianPhone: "+243 810 000 111",
		GuardianEmail: "esther@test.cd",
		Address:       "12 Av. du Lac, Goma",
		SchoolID:      "9b2e8a3c-5a43-4c1e-9d0c-0d6f3f1f9a10",
		ClassName:     "6 Sec-B",
	}
}

func TestValidateField(t *testing.T) {
	tomorrow := time.Now().AddDate(0, 0, 1).Format(core.DateLayout)

	tests := []struct {
		name  string
		field string
		value string
		want  string
	}{
		{name: "unknown field", field: "nickname", value: "!!"},
		{name: "required", field: "first_name", want: requiredText},
		{name: "optional", field: "previous_school"},
		{name: "name with apostrophe", field: "last_name", value: "N'Sele"},
		{name: "name with digits", field: "first_name", value: "Amani2", want: "first name may only contain letters, spaces, apostrophes, dots and hyphens"},
		{name: "gender", field: "gender", value: "unknown", want: "gender must be male or female"},
		{name: "date format", field: "date_of_birth", value: "21/09/2016", want: "date of birth must be a date formatted as YYYY-MM-DD"},
		{name: "impossible date", field: "date_of_birth", value: "2016-02-30", want: "date of birth is not a valid date"},
		{name: "date in the future", field: "date_of_birth", value: tomorrow, want: "date of birth must be in the past"},
		{name: "phone", field: "guardian_phone", value: "call me", want: "guardian phone must be a valid phone number"},
		{name: "email", field: "guardian_email", value: "esther@test", want: "guardian email must be a valid email address"},
		{name: "address too short", field: "address", value: "Goma", want: "address must be 5 to 255 characters long"},
		{name: "school", field: "school_id", value: "college-de-goma", want: "a school must be selected"},
		{name: "class", field: "class_name", value: "6/B", want: "class may only contain letters, digits, spaces and hyphens"},
		{name: "previous school", field: "previous_school", value: "Complexe Scolaire Mwangaza"},
		{name: "previous school too short", field: "previous_school", value: "C", want: "previous school must be 2 to 120 characters long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateField(tt.field, tt.value))
		})
	}
}

func TestApplication_Clean(t *testing.T) {
	app := Application{
		FirstName:     "  Amani ",
		Gender:        " Female",
		GuardianEmail: "Esther@Test.CD ",
		SchoolID:      " 9B2E8A3C-5A43-4C1E-9D0C-0D6F3F1F9A10",
	}
	app.Clean()
	assert.Equal(t, "Amani", app.FirstName)
	assert.Equal(t, "female", app.Gender)
	assert.Equal(t, "esther@test.cd", app.GuardianEmail)
	assert.Equal(t, "9b2e8a3c-5a43-4c1e-9d0c-0d6f3f1f9a10", app.SchoolID)
}

func TestDocumentRules_check(t *testing.T) {
	pdf := DocumentInput{Filename: "report.pdf", ContentType: "application/pdf", Size: 1024}

	tests := []struct {
		name string
		docs []DocumentInput
		want []core.FieldError
	}{
		{
			name: "none",
			want: []core.FieldError{{Field: "documents", Error: "at least one document is required"}},
		},
		{
			name: "too many",
			docs: []DocumentInput{pdf, pdf, pdf, pdf},
			want: []core.FieldError{{Field: "documents", Error: "at most 3 documents are allowed"}},
		},
		{
			name: "content type parameters are ignored",
			docs: []DocumentInput{{Filename: "scan.png", ContentType: "Image/PNG; charset=binary", Size: 10}},
		},
		{
			name: "every invalid document is reported",
			docs: []DocumentInput{
				{Filename: "notes.txt", ContentType: "text/plain", Size: 10},
				pdf,
				{Filename: "empty.pdf", ContentType: "application/pdf"},
			},
			want: []core.FieldError{
				{Field: "documents[0]", Error: "notes.txt: file type is not allowed"},
				{Field: "documents[2]", Error: "empty.pdf: file is empty"},
			},
		},
		{
			name: "too large",
			docs: []DocumentInput{{Filename: "scan.png", ContentType: "image/png", Size: 1<<20 + 1}},
			want: []core.FieldError{{Field: "documents[0]", Error: "scan.png: file exceeds 1048576 bytes"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, testRules.check(tt.docs))
		})
	}
}

func TestApplication_ValidateUpTo(t *testing.T) {
	docs := []DocumentInput{{Filename: "report.pdf", ContentType: "application/pdf", Size: 1024}}

	t.Run("step out of range", func(t *testing.T) {
		for _, step := range []int{0, NumSteps + 1} {
			err := testApplication().ValidateUpTo(step, docs, testRules)
			verr, ok := err.(*core.ValidationError)
			require.True(t, ok, "step %d: %v", step, err)
			assert.Equal(t, []core.FieldError{{Field: "step", Error: "step must be between 1 and 4"}}, verr.Fields)
		}
	})

	t.Run("later steps are not checked", func(t *testing.T) {
		app := testApplication()
		app.GuardianEmail = ""
		app.SchoolID = ""
		assert.NoError(t, app.ValidateUpTo(StepStudent, nil, testRules))
	})

	t.Run("stops at the first invalid step", func(t *testing.T) {
		app := testApplication()
		app.Gender = ""
		app.GuardianEmail = ""
		err := app.ValidateUpTo(StepDocuments, nil, testRules)
		serr, ok := err.(*StepError)
		require.True(t, ok, err)
		assert.Equal(t, StepStudent, serr.Step)
		assert.Equal(t, "student", serr.Name)
		assert.Equal(t, []core.FieldError{{Field: "gender", Error: requiredText}}, serr.Fields)
		assert.Equal(t, "step 1 (student) is invalid: gender: this field is required", serr.Error())
	})

	t.Run("fields are reported in display order", func(t *testing.T) {
		app := testApplication()
		app.Address = ""
		app.GuardianName = "?"
		err := app.ValidateUpTo(StepAcademic, nil, testRules)
		serr, ok := err.(*StepError)
		require.True(t, ok, err)
		assert.Equal(t, StepGuardian, serr.Step)
		assert.Equal(t, []core.FieldError{
			{Field: "guardian_name", Error: "guardian name may only contain letters, spaces, apostrophes, dots and hyphens"},
			{Field: "address", Error: requiredText},
		}, serr.Fields)
	})

	t.Run("documents", func(t *testing.T) {
		err := testApplication().ValidateUpTo(StepDocuments, nil, testRules)
		serr, ok := err.(*StepError)
		require.True(t, ok, err)
		assert.Equal(t, StepDocuments, serr.Step)
		assert.Equal(t, "documents", serr.Name)
	})

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, testApplication().ValidateUpTo(NumSteps, docs, testRules))
	})
}

func TestStepName(t *testing.T) {
	assert.Equal(t, "student", StepName(StepStudent))
	assert.Equal(t, "guardian", StepName(StepGuardian))
	assert.Equal(t, "academic", StepName(StepAcademic))
	assert.Equal(t, "documents", StepName(StepDocuments))
	assert.Empty(t, StepName(42))
}

func TestDocuments_ValueScan(t *testing.T) {
	docs := Documents{{ID: "1", Filename: "report.pdf", ContentType: "application/pdf", Size: 12, Key: "reg/1.pdf"}}
	val, err := docs.Value()
	require.NoError(t, err)

	var scanned Documents
	require.NoError(t, scanned.Scan(val))
	assert.Equal(t, docs, scanned, "keys survive storage")

	require.NoError(t, scanned.Scan(nil))
	assert.Equal(t, Documents{}, scanned)
	assert.Error(t, scanned.Scan(42))
}
