package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	. "github.com/EllowDigital/GSAI-IN-sub000/apps/api/echo"
	"github.com/EllowDigital/GSAI-IN-sub000/core/student"
	"github.com/EllowDigital/GSAI-IN-sub000/tests"
)

func Test_home(t *testing.T) {
	app := setup(t)
	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Test Academy API!", rec.Body.String())
}

func Test_auth(t *testing.T) {
	app := setup(t)

	foreign := NewClaims(app.conf, "someone", "x@test.local", RoleAdmin, time.Hour)
	foreign.Audience = "another-app"
	foreignToken, err := GenerateToken(app.conf, foreign)
	assert.NoError(t, err)

	runHttpTests(t, app, []httpTest{
		{name: "Auth required", path: "/v1/students", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Bad token", path: "/v1/students", token: "not-a-jwt", wantCode: http.StatusUnauthorized},
		{name: "Wrong audience", path: "/v1/students", token: foreignToken, wantCode: http.StatusUnauthorized},
		{
			name: "No academy role", path: "/v1/students", token: getToken(t, app.conf, ""),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Coach cannot create students", method: http.MethodPost, path: "/v1/students",
			token: getToken(t, app.conf, RoleCoach), body: []byte(`{"name":"Asha","program":"Karate"}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Coach cannot see fees", path: "/v1/fees", token: getToken(t, app.conf, RoleCoach),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	})
}

func Test_studentApi(t *testing.T) {
	app := setup(t)
	admin := getToken(t, app.conf, RoleAdmin)
	coach := getToken(t, app.conf, RoleCoach)

	asha := testutil.CreateStudent(t, app.studRepo, "Asha Rao", "Karate", "2000", true)
	ravi := testutil.CreateStudent(t, app.studRepo, "Ravi Kumar", "BJJ", "2500", true)
	dev := testutil.CreateStudent(t, app.studRepo, "Dev Singh", "Karate", "1500", false)

	runHttpTests(t, app, []httpTest{
		{name: "Get all", path: "/v1/students", token: coach, wantCode: http.StatusOK, wantData: marchallObj(t, []student.Student{asha, dev, ravi})},
		{name: "program=karate", path: "/v1/students?program=karate", token: admin, wantCode: http.StatusOK, wantData: marchallObj(t, []student.Student{asha, dev})},
		{name: "is_active=false", path: "/v1/students?is_active=false", token: admin, wantCode: http.StatusOK, wantData: marchallObj(t, []student.Student{dev})},
		{name: "is_active=lol", path: "/v1/students?is_active=lol", token: admin, wantCode: http.StatusBadRequest},
		{name: "search=kum", path: "/v1/students?search=kum", token: admin, wantCode: http.StatusOK, wantData: marchallObj(t, []student.Student{ravi})},
		{name: "bad ordering", path: "/v1/students?ordering=email", token: admin, wantCode: http.StatusBadRequest,
			wantData: []byte(`{"ordering":"cannot order by email"}`)},
		{name: "Retrieve", path: "/v1/students/" + ravi.ID, token: coach, wantCode: http.StatusOK, wantData: marchallObj(t, ravi)},
		{name: "Retrieve unknown", path: "/v1/students/nope", token: admin, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"})},
		{name: "Create invalid", method: http.MethodPost, path: "/v1/students", token: admin, body: []byte(`{"program":"Karate"}`),
			wantCode: http.StatusBadRequest},
	})

	t.Run("Create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/students", admin, []byte(`{"name":" Meera ","program":"Taekwondo","monthly_fee":"1800"}`))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)

		var got student.Student
		unmarshallObj(t, rec.Body.Bytes(), &got)
		assert.NotEmpty(t, got.ID)
		assert.Equal(t, "Meera", got.Name)
		assert.True(t, got.IsActive)
		assert.Equal(t, "1800", got.MonthlyFee.String())
	})

	t.Run("Update", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/students/"+dev.ID, admin, []byte(`{"is_active":true}`))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var got student.Student
		unmarshallObj(t, rec.Body.Bytes(), &got)
		assert.True(t, got.IsActive)
		assert.Equal(t, dev.Name, got.Name)
	})
}
