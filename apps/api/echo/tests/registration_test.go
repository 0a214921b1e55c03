package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core/registration"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/testutil"
)

type stepErr struct {
	Step     int               `json:"step"`
	StepName string            `json:"step_name"`
	Errors   map[string]string `json:"errors"`
}

var birthCertificate = formFile{
	filename:    "birth-certificate.pdf",
	contentType: "application/pdf",
	content:     []byte("%PDF-1.4 birth certificate of Amani Bahati"),
}

func validApp(schoolID string) registration.Application {
	return registration.Application{
		FirstName:     "Amani",
		LastName:      "Bahati",
		Gender:        "male",
		DateOfBirth:   "2015-06-01",
		GuardianName:  "Esther Bahati",
		GuardianPhone: "+243 810 000 111",
		GuardianEmail: "esther@test.cd",
		Address:       "12 Av. du Lac, Goma",
		SchoolID:      schoolID,
		ClassName:     "1A",
	}
}

func validateBody(t *testing.T, app registration.Application, docs ...echoapi.DocumentMeta) []byte {
	return marchallObj(t, echoapi.ValidateStepRequest{Application: app, Documents: docs})
}

// submitRegistration goes through the public endpoint and returns the stored registration.
func submitRegistration(t *testing.T, form registration.Application, files ...formFile) registration.Registration {
	t.Helper()
	req, rec := newMultipartRequest(t, http.MethodPost, "/v1/registrations", "", form, files...)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created registration.Registration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	reg, err := regRepo.GetRegistration(context.Background(), created.ID)
	require.NoError(t, err)
	return reg
}

func Test_registrationApi_validateStep(t *testing.T) {
	resetDB(t)

	sch := testutil.CreateSchool(t, schoolRepo, "College de Goma", "CGOMA")
	valid := validApp(sch.ID)

	badStudent := valid
	badStudent.Gender = "other"
	badGuardian := valid
	badGuardian.GuardianEmail = "esther@"
	unknownSchool := valid
	unknownSchool.SchoolID = "9b2e8a3c-5a43-4c1e-9d0c-0d6f3f1f9a10"
	badAcademic := valid
	badAcademic.ClassName = "1A!"
	badAcademic.PreviousSchool = "x"
	future := valid
	future.DateOfBirth = time.Now().AddDate(1, 0, 0).Format("2006-01-02")

	pdf := echoapi.DocumentMeta{Filename: "report.pdf", ContentType: "application/pdf", Size: 2048}
	sixDocs := []echoapi.DocumentMeta{pdf, pdf, pdf, pdf, pdf, pdf}

	tests := []httpTest{
		{
			name: "step must be a number", method: http.MethodPost, path: "/v1/registrations/validate?step=one", body: validateBody(t, valid),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"step": "must be a number"}),
		},
		{
			name: "step out of range", method: http.MethodPost, path: "/v1/registrations/validate?step=0", body: validateBody(t, valid),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"step": "step must be between 1 and 4"}),
		},
		{
			name: "step out of range (too high)", method: http.MethodPost, path: "/v1/registrations/validate?step=5", body: validateBody(t, valid),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"step": "step must be between 1 and 4"}),
		},
		{
			name: "empty student step", method: http.MethodPost, path: "/v1/registrations/validate?step=1", body: validateBody(t, registration.Application{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, stepErr{Step: 1, StepName: "student", Errors: map[string]string{
				"first_name":    "this field is required",
				"last_name":     "this field is required",
				"gender":        "this field is required",
				"date_of_birth": "this field is required",
			}}),
		},
		{
			name: "date of birth in the future", method: http.MethodPost, path: "/v1/registrations/validate?step=1", body: validateBody(t, future),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, stepErr{Step: 1, StepName: "student", Errors: map[string]string{
				"date_of_birth": "date of birth must be in the past",
			}}),
		},
		{
			name: "student step", method: http.MethodPost, path: "/v1/registrations/validate?step=1", body: validateBody(t, valid),
			wantCode: http.StatusOK, wantData: marchallObj(t, echoapi.ValidateStepResponse{Step: 1, StepName: "student", NextStep: 2}),
		},
		{
			name: "guardian step fails on an earlier step", method: http.MethodPost, path: "/v1/registrations/validate?step=2", body: validateBody(t, badStudent),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, stepErr{Step: 1, StepName: "student", Errors: map[string]string{
				"gender": "gender must be male or female",
			}}),
		},
		{
			name: "invalid guardian step", method: http.MethodPost, path: "/v1/registrations/validate?step=2", body: validateBody(t, badGuardian),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, stepErr{Step: 2, StepName: "guardian", Errors: map[string]string{
				"guardian_email": "guardian email must be a valid email address",
			}}),
		},
		{
			name: "guardian step", method: http.MethodPost, path: "/v1/registrations/validate?step=2", body: validateBody(t, valid),
			wantCode: http.StatusOK, wantData: marchallObj(t, echoapi.ValidateStepResponse{Step: 2, StepName: "guardian", NextStep: 3}),
		},
		{
			name: "invalid academic step", method: http.MethodPost, path: "/v1/registrations/validate?step=3", body: validateBody(t, badAcademic),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, stepErr{Step: 3, StepName: "academic", Errors: map[string]string{
				"class_name":      "class may only contain letters, digits, spaces and hyphens",
				"previous_school": "previous school must be 2 to 120 characters long",
			}}),
		},
		{
			name: "unknown school", method: http.MethodPost, path: "/v1/registrations/validate?step=3", body: validateBody(t, unknownSchool),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, stepErr{Step: 3, StepName: "academic", Errors: map[string]string{
				"school_id": "school not found",
			}}),
		},
		{
			name: "academic step", method: http.MethodPost, path: "/v1/registrations/validate?step=3", body: validateBody(t, valid),
			wantCode: http.StatusOK, wantData: marchallObj(t, echoapi.ValidateStepResponse{Step: 3, StepName: "academic", NextStep: 4}),
		},
		{
			name: "documents required", method: http.MethodPost, path: "/v1/registrations/validate?step=4", body: validateBody(t, valid),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, stepErr{Step: 4, StepName: "documents", Errors: map[string]string{
				"documents": "at least one document is required",
			}}),
		},
		{
			name: "too many documents", method: http.MethodPost, path: "/v1/registrations/validate?step=4", body: validateBody(t, valid, sixDocs...),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, stepErr{Step: 4, StepName: "documents", Errors: map[string]string{
				"documents": "at most 5 documents are allowed",
			}}),
		},
		{
			name: "invalid documents", method: http.MethodPost, path: "/v1/registrations/validate?step=4",
			body: validateBody(t, valid,
				pdf,
				echoapi.DocumentMeta{Filename: "setup.exe", ContentType: "application/x-msdownload", Size: 10},
				echoapi.DocumentMeta{Filename: "empty.pdf", ContentType: "application/pdf"},
				echoapi.DocumentMeta{Filename: "scan.png", ContentType: "image/png", Size: 2 << 20},
			),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, stepErr{Step: 4, StepName: "documents", Errors: map[string]string{
				"documents[1]": "setup.exe: file type is not allowed",
				"documents[2]": "empty.pdf: file is empty",
				"documents[3]": "scan.png: file exceeds 1048576 bytes",
			}}),
		},
		{
			name: "documents step", method: http.MethodPost, path: "/v1/registrations/validate?step=4",
			body:     validateBody(t, valid, pdf, echoapi.DocumentMeta{Filename: "photo.jpg", ContentType: "image/jpeg", Size: 4096}),
			wantCode: http.StatusOK, wantData: marchallObj(t, echoapi.ValidateStepResponse{Step: 4, StepName: "documents"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("multipart documents step", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/registrations/validate?step=4", "", valid, birthCertificate)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.ValidateStepResponse{Step: 4, StepName: "documents"}),
		}, rec)
	})

	t.Run("multipart without documents", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/registrations/validate?step=4", "", valid)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, stepErr{Step: 4, StepName: "documents", Errors: map[string]string{
				"documents": "at least one document is required",
			}}),
		}, rec)
	})
}

func Test_registrationApi_submit(t *testing.T) {
	resetDB(t)

	sch := testutil.CreateSchool(t, schoolRepo, "College de Goma", "CGOMA")
	valid := validApp(sch.ID)
	unknownSchool := valid
	unknownSchool.SchoolID = "9b2e8a3c-5a43-4c1e-9d0c-0d6f3f1f9a10"

	t.Run("multipart required", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/registrations", marchallObj(t, valid))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusUnsupportedMediaType,
			wantData: marchallObj(t, httpErr{Error: "expected a multipart/form-data request"}),
		}, rec)
	})

	t.Run("invalid data field", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/registrations", "", "not an object", birthCertificate)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"data": "must be a JSON object"}),
		}, rec)
	})

	failures := []struct {
		name     string
		app      registration.Application
		files    []formFile
		wantData []byte
	}{
		{
			name: "documents required",
			app:  valid,
			wantData: marchallObj(t, stepErr{Step: 4, StepName: "documents", Errors: map[string]string{
				"documents": "at least one document is required",
			}}),
		},
		{
			name:  "unknown school",
			app:   unknownSchool,
			files: []formFile{birthCertificate},
			wantData: marchallObj(t, stepErr{Step: 3, StepName: "academic", Errors: map[string]string{
				"school_id": "school not found",
			}}),
		},
		{
			name:  "file type not allowed",
			app:   valid,
			files: []formFile{{filename: "notes.txt", contentType: "text/plain", content: []byte("hello")}},
			wantData: marchallObj(t, stepErr{Step: 4, StepName: "documents", Errors: map[string]string{
				"documents[0]": "notes.txt: file type is not allowed",
			}}),
		},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newMultipartRequest(t, http.MethodPost, "/v1/registrations", "", tt.app, tt.files...)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: tt.wantData}, rec)
		})
	}

	regs, total, err := regRepo.QueryRegistrations(context.Background(), nil, nil, nil)
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, regs)
	require.Empty(t, mailSvc.SentMessages())

	var reg registration.Registration
	t.Run("submit", func(t *testing.T) {
		raw := valid
		raw.FirstName = "  Amani "
		raw.GuardianEmail = "Esther@Test.CD"
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/registrations", "", raw, birthCertificate)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var created registration.Registration
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, registration.StatusPending, created.Status)
		assert.Equal(t, valid, created.Application)
		require.Len(t, created.Documents, 1)
		assert.Equal(t, birthCertificate.filename, created.Documents[0].Filename)
		assert.Equal(t, birthCertificate.contentType, created.Documents[0].ContentType)
		assert.Equal(t, int64(len(birthCertificate.content)), created.Documents[0].Size)
		assert.Empty(t, created.StudentID)
		assert.Nil(t, created.ReviewedAt)

		reg, err = regRepo.GetRegistration(context.Background(), created.ID)
		require.NoError(t, err)
		require.Len(t, reg.Documents, 1)
		assert.NotEmpty(t, reg.Documents[0].Key)
		assert.JSONEq(t, rec.Body.String(), string(marchallObj(t, reg)))

		sent := mailSvc.SentMessages()
		require.Len(t, sent, 1)
		msg := sent[0]
		assert.Equal(t, mail.Address{Name: valid.GuardianName, Address: valid.GuardianEmail}, msg.To[0])
		assert.Equal(t, "registration_received", msg.TemplateName)
		assert.Contains(t, msg.TextContent, reg.ID)
		assert.Contains(t, msg.TextContent, "Amani Bahati")
		assert.Contains(t, msg.HTMLContent, reg.ID)
	})

	t.Run("duplicate application", func(t *testing.T) {
		dup := valid
		dup.LastName = "BAHATI"
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/registrations", "", dup, birthCertificate)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "an application for this student is already pending"}),
		}, rec)
	})

	t.Run("sibling application", func(t *testing.T) {
		sibling := valid
		sibling.FirstName = "Neema"
		sibling.DateOfBirth = "2017-02-14"
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/registrations", "", sibling, birthCertificate)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})
}

func Test_registrationApi_review(t *testing.T) {
	resetDB(t)

	ctx := context.Background()
	admin, adminToken := createAdmin(t)
	stdnt := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	stdntToken := getToken(t, stdnt)

	sch := testutil.CreateSchool(t, schoolRepo, "College de Goma", "CGOMA")

	first := submitRegistration(t, validApp(sch.ID), birthCertificate)
	secondApp := validApp(sch.ID)
	secondApp.FirstName = "Neema"
	secondApp.DateOfBirth = "2017-02-14"
	secondApp.ClassName = "3B"
	photo := formFile{filename: "photo.png", contentType: "image/png", content: []byte("\x89PNG fake image")}
	second := submitRegistration(t, secondApp, birthCertificate, photo)
	thirdApp := validApp(sch.ID)
	thirdApp.FirstName = "Jabali"
	thirdApp.LastName = "Kasongo"
	thirdApp.GuardianName = "Paul Kasongo"
	thirdApp.GuardianEmail = "paul@test.cd"
	third := submitRegistration(t, thirdApp, birthCertificate)
	mailSvc.Reset()

	t.Run("query", func(t *testing.T) {
		tests := []httpTest{
			{name: "Auth required", method: http.MethodGet, path: "/v1/registrations", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
			{name: "Admin required", method: http.MethodGet, path: "/v1/registrations", token: stdntToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
			{
				name: "latest first", method: http.MethodGet, path: "/v1/registrations", token: adminToken, ordered: true,
				wantCode: http.StatusOK, wantData: marchallPage(t, third, second, first),
			},
			{
				name: "search", method: http.MethodGet, path: "/v1/registrations?search=kasongo", token: adminToken,
				wantCode: http.StatusOK, wantData: marchallPage(t, third),
			},
			{
				name: "by status", method: http.MethodGet, path: "/v1/registrations?status=approved", token: adminToken,
				wantCode: http.StatusOK, wantData: marchallPage(t),
			},
			{
				name: "order by class", method: http.MethodGet, path: "/v1/registrations?ordering=-class_name,created_at", token: adminToken, ordered: true,
				wantCode: http.StatusOK, wantData: marchallPage(t, second, first, third),
			},
			{
				name: "retrieve", method: http.MethodGet, path: "/v1/registrations/" + second.ID, token: adminToken,
				wantCode: http.StatusOK, wantData: marchallObj(t, second),
			},
			{
				name: "retrieve (unknown)", method: http.MethodGet, path: "/v1/registrations/lol", token: adminToken,
				wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "registration not found"}),
			},
			{
				name: "unknown document", method: http.MethodGet, path: "/v1/registrations/" + second.ID + "/documents/lol", token: adminToken,
				wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "document not found"}),
			},
			{
				name: "document of another registration", method: http.MethodGet, path: "/v1/registrations/" + first.ID + "/documents/" + second.Documents[1].ID, token: adminToken,
				wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "document not found"}),
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req, rec := newAuthRequest(tt.method, tt.path, tt.token)
				app.ServeHTTP(rec, req)
				checkCodeAndData(t, tt, rec)
			})
		}
	})

	t.Run("download document", func(t *testing.T) {
		doc := second.Documents[1]
		req, rec := newAuthRequest(http.MethodGet, "/v1/registrations/"+second.ID+"/documents/"+doc.ID, adminToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, photo.content, rec.Body.Bytes())
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment;"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), photo.filename)
	})

	t.Run("approve", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/registrations/"+first.ID+"/approve", stdntToken, []byte(`{"note":"Welcome!"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)

		req, rec = newAuthRequest(http.MethodPost, "/v1/registrations/"+first.ID+"/approve", adminToken, []byte(`{"note":"Welcome!"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		reg, err := regRepo.GetRegistration(ctx, first.ID)
		require.NoError(t, err)
		assert.JSONEq(t, rec.Body.String(), string(marchallObj(t, reg)))
		assert.Equal(t, registration.StatusApproved, reg.Status)
		assert.Equal(t, "Welcome!", reg.ReviewNote)
		assert.Equal(t, admin.ID, reg.ReviewedBy)
		require.NotNil(t, reg.ReviewedAt)
		require.NotEmpty(t, reg.StudentID)

		stud, err := studentRepo.GetStudent(ctx, reg.StudentID)
		require.NoError(t, err)
		assert.Equal(t, sch.ID, stud.SchoolID)
		assert.Equal(t, "Amani", stud.FirstName)
		assert.Equal(t, "Bahati", stud.LastName)
		assert.Equal(t, "1A", stud.ClassName)
		assert.Equal(t, "esther@test.cd", stud.GuardianEmail)
		assert.Equal(t, "2015-06-01", stud.DateOfBirth.Format("2006-01-02"))
		assert.True(t, stud.IsActive)

		sent := mailSvc.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "registration_approved", sent[0].TemplateName)
		assert.Equal(t, "esther@test.cd", sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, stud.AdmissionNo)
		assert.Contains(t, sent[0].TextContent, "Welcome!")
	})

	t.Run("reject", func(t *testing.T) {
		mailSvc.Reset()
		req, rec := newAuthRequest(http.MethodPost, "/v1/registrations/"+third.ID+"/reject", adminToken, []byte(`{"note":"The class is full."}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		reg, err := regRepo.GetRegistration(ctx, third.ID)
		require.NoError(t, err)
		assert.JSONEq(t, rec.Body.String(), string(marchallObj(t, reg)))
		assert.Equal(t, registration.StatusRejected, reg.Status)
		assert.Equal(t, "The class is full.", reg.ReviewNote)
		assert.Empty(t, reg.StudentID)

		sent := mailSvc.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "registration_rejected", sent[0].TemplateName)
		assert.Equal(t, "paul@test.cd", sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, "The class is full.")
	})

	t.Run("only pending registrations can be reviewed", func(t *testing.T) {
		for _, path := range []string{
			"/v1/registrations/" + first.ID + "/approve",
			"/v1/registrations/" + first.ID + "/reject",
			"/v1/registrations/" + third.ID + "/approve",
		} {
			req, rec := newAuthRequest(http.MethodPost, path, adminToken)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, httpTest{
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, httpErr{Error: "only pending registrations can be reviewed"}),
			}, rec)
		}
		_, total, err := studentRepo.QueryStudents(ctx, nil, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("query by status", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/registrations?status=PENDING", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallPage(t, second)}, rec)
	})

	t.Run("delete", func(t *testing.T) {
		docID := second.Documents[0].ID
		req, rec := newAuthRequest(http.MethodDelete, "/v1/registrations/"+second.ID, adminToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, "/v1/registrations/"+second.ID+"/documents/"+docID, adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "registration not found"}),
		}, rec)

		_, total, err := regRepo.QueryRegistrations(ctx, nil, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
	})
}
