package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/directory"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/support"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/testutil"
)

func Test_supportApi(t *testing.T) {
	resetDB(t)

	ctx := context.Background()
	_, adminToken := createAdmin(t)
	stdnt := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	stdntToken := getToken(t, stdnt)

	now := time.Now()
	login := testutil.CreateTicket(t, ticketRepo, "Esther Bahati", "esther@test.cd", "Cannot log in", now.Add(-3*time.Hour))
	fees := testutil.CreateTicket(t, ticketRepo, "Paul Kasongo", "paul@test.cd", "Fee receipt missing", now.Add(-2*time.Hour))
	closed := testutil.CreateTicket(t, ticketRepo, "Marie Mbuyi", "marie@test.cd", "Wrong class on report", now.Add(-time.Hour))
	closed.Status = support.StatusClosed
	closed, err := ticketRepo.UpdateTicket(ctx, closed)
	require.NoError(t, err)

	runChecked(t, []httpTest{
		{
			name: "create: required fields", method: http.MethodPost, path: "/v1/support", body: []byte(`{"subject":"  "}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name":    "this field is required",
				"email":   "this field is required",
				"subject": "this field is required",
				"message": "this field is required",
			}),
		},
		{
			name: "create: invalid fields", method: http.MethodPost, path: "/v1/support",
			body:     []byte(`{"name":"R2-D2","email":"r2d2","subject":"Help","message":"Beep"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name":  "only letters, spaces, apostrophes, dots and hyphens are allowed",
				"email": "email must be a valid email address",
			}),
		},
		{
			name: "create", method: http.MethodPost, path: "/v1/support",
			body:     []byte(`{"name":" Neema Bahati ","email":"Neema@Test.CD","subject":"Registration status","message":"Any news about my application?"}`),
			wantCode: http.StatusCreated,
			extra: checkFunc(func(t *testing.T, body []byte) {
				var tk support.Ticket
				require.NoError(t, json.Unmarshal(body, &tk))
				assert.Equal(t, "Neema Bahati", tk.Name)
				assert.Equal(t, "neema@test.cd", tk.Email)
				assert.Equal(t, support.StatusOpen, tk.Status)
				assert.Empty(t, tk.Response)
				assert.Nil(t, tk.ClosedAt)

				stored, err := ticketRepo.GetTicket(ctx, tk.ID)
				require.NoError(t, err)
				assert.JSONEq(t, string(body), string(marchallObj(t, stored)))
			}),
		},
	})

	// the ticket created above is the latest one
	tickets, total, err := ticketRepo.QueryTickets(ctx, nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 4, total)
	latest := tickets[0]

	runChecked(t, []httpTest{
		{name: "Auth required", method: http.MethodGet, path: "/v1/support", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Admin required", method: http.MethodGet, path: "/v1/support", token: stdntToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "query: latest first", method: http.MethodGet, path: "/v1/support", token: adminToken, ordered: true,
			wantData: marchallPage(t, latest, closed, fees, login),
		},
		{name: "query by status", method: http.MethodGet, path: "/v1/support?status=open", token: adminToken, wantData: marchallPage(t, latest, fees, login)},
		{name: "search", method: http.MethodGet, path: "/v1/support?search=KASONGO", token: adminToken, wantData: marchallPage(t, fees)},
		{
			name: "order by subject", method: http.MethodGet, path: "/v1/support?ordering=subject", token: adminToken, ordered: true,
			wantData: marchallPage(t, login, fees, latest, closed),
		},
		{
			name: "paginated", method: http.MethodGet, path: "/v1/support?page=2&page_size=3", token: adminToken,
			wantData: marchallPageN(t, 2, 3, 4, login),
		},
		{name: "retrieve", method: http.MethodGet, path: "/v1/support/" + fees.ID, token: adminToken, wantData: marchallObj(t, fees)},
		{
			name: "retrieve (unknown)", method: http.MethodGet, path: "/v1/support/lol", token: adminToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "support ticket not found"}),
		},
		{
			name: "respond: admin required", method: http.MethodPost, path: "/v1/support/" + fees.ID + "/respond", token: stdntToken,
			body: []byte(`{"response":"Done","status":"closed"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "respond: invalid", method: http.MethodPost, path: "/v1/support/" + fees.ID + "/respond", token: adminToken,
			body: []byte(`{"response":" ","status":"lol"}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"response": "this field is required",
				"status":   "status must be one of [open in_progress closed]",
			}),
		},
	})
	assert.Empty(t, mailSvc.SentMessages())

	t.Run("respond", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/support/"+fees.ID+"/respond", adminToken,
			[]byte(`{"response":"The receipt was sent again.","status":"CLOSED"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		tk, err := ticketRepo.GetTicket(ctx, fees.ID)
		require.NoError(t, err)
		assert.JSONEq(t, rec.Body.String(), string(marchallObj(t, tk)))
		assert.Equal(t, support.StatusClosed, tk.Status)
		assert.Equal(t, "The receipt was sent again.", tk.Response)
		require.NotNil(t, tk.ClosedAt)

		sent := mailSvc.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, mail.Address{Name: fees.Name, Address: fees.Email}, sent[0].To[0])
		assert.Equal(t, "Re: "+fees.Subject, sent[0].Subject)
		assert.Contains(t, sent[0].TextContent, "The receipt was sent again.")
		assert.Contains(t, sent[0].HTMLContent, "The receipt was sent again.")
	})

	t.Run("reopen", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/support/"+fees.ID+"/respond", adminToken,
			[]byte(`{"response":"Reopened on request.","status":"in_progress"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		tk, err := ticketRepo.GetTicket(ctx, fees.ID)
		require.NoError(t, err)
		assert.Equal(t, support.StatusInProgress, tk.Status)
		assert.Nil(t, tk.ClosedAt)
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/support/"+login.ID, adminToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		_, err := ticketRepo.GetTicket(ctx, login.ID)
		assert.Equal(t, support.ErrNotFound, err)

		req, rec = newAuthRequest(http.MethodDelete, "/v1/support/"+login.ID, adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "support ticket not found"})}, rec)
	})
}

func adminEntry(u user.User) directory.Entry {
	return directory.Entry{ID: u.ID, Kind: directory.KindAdmin, Name: u.Name, Email: u.Email, IsActive: u.IsActive, CreatedAt: u.CreatedAt}
}

func schoolEntry(s school.School) directory.Entry {
	return directory.Entry{ID: s.ID, Kind: directory.KindSchool, Name: s.Name, Email: s.Email, IsActive: s.IsActive, CreatedAt: s.CreatedAt}
}

func teacherEntry(tchr teacher.Teacher) directory.Entry {
	return directory.Entry{
		ID: tchr.ID, Kind: directory.KindTeacher, Name: tchr.FullName(), Email: tchr.Email, SchoolID: tchr.SchoolID,
		IsActive: tchr.IsActive, CreatedAt: tchr.CreatedAt,
	}
}

func Test_directoryApi(t *testing.T) {
	resetDB(t)

	admin, adminToken := createAdmin(t)
	base := time.Now().Add(-time.Hour)
	stdnt := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true, base)
	staff := testutil.CreateUser(t, usrRepo, "Staff", "staff", "staff@test.cd", "", []string{user.RoleTeacher}, true, base)
	principal := testutil.CreateUser(t, usrRepo, "Grace Principal", "grace", "grace@test.cd", "", []string{user.RoleAdminPrincipal}, true, base.Add(3*time.Minute))
	kin := testutil.CreateSchool(t, schoolRepo, "Institut de Kinshasa", "IKIN", base.Add(time.Minute))
	gom := testutil.CreateSchool(t, schoolRepo, "College de Goma", "CGOMA", base.Add(2*time.Minute))
	kabila := testutil.CreateTeacher(t, teacherRepo, kin.ID, "Marie", "Kabila", "marie@test.cd", true, base.Add(4*time.Minute))
	lukusa := testutil.CreateTeacher(t, teacherRepo, gom.ID, "Jean", "Lukusa", "jean@test.cd", false, base.Add(5*time.Minute))

	runChecked(t, []httpTest{
		{name: "Auth required", method: http.MethodGet, path: "/v1/directory", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Admin required (student)", method: http.MethodGet, path: "/v1/directory", token: getToken(t, stdnt), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "Admin required (teacher)", method: http.MethodGet, path: "/v1/directory", token: getToken(t, staff), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "latest first", method: http.MethodGet, path: "/v1/directory", token: adminToken, ordered: true,
			wantData: marchallPage(t,
				adminEntry(admin), teacherEntry(lukusa), teacherEntry(kabila), adminEntry(principal), schoolEntry(gom), schoolEntry(kin),
			),
		},
		{
			name: "by kind", method: http.MethodGet, path: "/v1/directory?kind=admin", token: adminToken, ordered: true,
			wantData: marchallPage(t, adminEntry(admin), adminEntry(principal)),
		},
		{
			name: "by kind (case-insensitive)", method: http.MethodGet, path: "/v1/directory?kind=School", token: adminToken, ordered: true,
			wantData: marchallPage(t, schoolEntry(gom), schoolEntry(kin)),
		},
		{
			name: "invalid kind", method: http.MethodGet, path: "/v1/directory?kind=student", token: adminToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"kind": "kind must be one of [admin school teacher]"}),
		},
		{
			name: "search name or email", method: http.MethodGet, path: "/v1/directory?search=MARIE", token: adminToken,
			wantData: marchallPage(t, teacherEntry(kabila)),
		},
		{
			name: "search across kinds", method: http.MethodGet, path: "/v1/directory?search=goma", token: adminToken,
			wantData: marchallPage(t, schoolEntry(gom)),
		},
		{
			name: "search and kind", method: http.MethodGet, path: "/v1/directory?kind=teacher&search=test.cd", token: adminToken, ordered: true,
			wantData: marchallPage(t, teacherEntry(lukusa), teacherEntry(kabila)),
		},
		{
			name: "paginated", method: http.MethodGet, path: "/v1/directory?page=2&page_size=4", token: adminToken, ordered: true,
			wantData: marchallPageN(t, 2, 4, 6, schoolEntry(gom), schoolEntry(kin)),
		},
		{
			name: "page out of range", method: http.MethodGet, path: "/v1/directory?page=5&page_size=4", token: adminToken,
			wantData: marchallPageN(t, 5, 4, 6),
		},
	})

	t.Run("cached until invalidated", func(t *testing.T) {
		// rows written behind the API's back are served from the cache
		testutil.CreateSchool(t, schoolRepo, "Lycee de Bukavu", "LBKV", base.Add(6*time.Minute))
		req, rec := newAuthRequest(http.MethodGet, "/v1/directory?kind=school", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallPage(t, schoolEntry(gom), schoolEntry(kin)), ordered: true}, rec)

		// writes through the API drop every cached page
		req, rec = newAuthRequest(http.MethodPost, "/v1/schools", adminToken, []byte(`{"name":"Ecole de Matadi","code":"EMTD"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, "/v1/directory?kind=school", adminToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var res struct {
			Data      []directory.Entry `json:"data"`
			TotalRows int               `json:"total_rows"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.Equal(t, 4, res.TotalRows)
		assert.Equal(t, "Ecole de Matadi", res.Data[0].Name)
		assert.Equal(t, "Lycee de Bukavu", res.Data[1].Name)
	})

	t.Run("teacher writes invalidate", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/teachers/"+lukusa.ID, adminToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, "/v1/directory?kind=teacher", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallPage(t, teacherEntry(kabila))}, rec)
	})
}
