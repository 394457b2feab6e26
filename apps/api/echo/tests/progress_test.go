package tests

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/EllowDigital/GSAI-IN-sub000/apps/api/echo"
	"github.com/EllowDigital/GSAI-IN-sub000/core/progression"
	"github.com/EllowDigital/GSAI-IN-sub000/tests"
)

func Test_progressionApi_levels(t *testing.T) {
	app := setup(t)
	coach := getToken(t, app.conf, RoleCoach)

	t.Run("Classify unmapped program", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/disciplines/classify?program=Kickboxing", coach)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var got progression.Classification
		unmarshallObj(t, rec.Body.Bytes(), &got)
		assert.True(t, got.Fallback)
		assert.Equal(t, progression.GeneralKey, got.Discipline.Key)
	})

	t.Run("Disciplines", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/disciplines", coach)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, progression.DefaultCatalog().Disciplines())}, rec)
	})

	t.Run("Levels of BJJ", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/levels?program=Grappling", coach)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var got progression.Filtered
		unmarshallObj(t, rec.Body.Bytes(), &got)
		assert.Equal(t, "bjj", got.Classification.Discipline.Key)
		assert.False(t, got.UsedFallback)
		require.Len(t, got.Levels, 5)
		assert.Equal(t, testutil.BJJWhiteID, got.Levels[0].ID)
	})

	t.Run("All levels", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/levels", coach)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var got []progression.Level
		unmarshallObj(t, rec.Body.Bytes(), &got)
		assert.Len(t, got, len(testutil.Ladder()))
	})

	runHttpTests(t, app, []httpTest{
		{name: "Import requires admin", method: http.MethodPut, path: "/v1/levels", token: coach, body: []byte(`[]`),
			wantCode: http.StatusForbidden},
		{
			name: "Import rejects cycles", method: http.MethodPut, path: "/v1/levels", token: getToken(t, app.conf, RoleAdmin),
			body:     []byte(fmt.Sprintf(`[{"id":%q,"rank":3,"label":"Green","next_level_id":%q}]`, testutil.GreenBeltID, testutil.WhiteBeltID)),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "Import rejects discipline names", method: http.MethodPut, path: "/v1/levels", token: getToken(t, app.conf, RoleAdmin),
			body:     []byte(`[{"id":"9f0a3f4e-0000-4000-8000-000000000009","discipline":"Muay Thai","rank":1,"label":"Khan 1"}]`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"discipline":"only alphanumeric characters, dashes and underscores are allowed"}`),
		},
	})
}

func Test_progressionApi_progress(t *testing.T) {
	app := setup(t)
	coach := getToken(t, app.conf, RoleCoach)
	stud := testutil.CreateStudent(t, app.studRepo, "Asha Rao", "Karate", "2000", true)

	assign := func(levelID string) (progression.Assignment, int) {
		body := fmt.Sprintf(`{"student_id":%q,"belt_level_id":%q}`, stud.ID, levelID)
		req, rec := newAuthRequest(http.MethodPost, "/v1/progress", coach, []byte(body))
		app.ServeHTTP(rec, req)
		var got progression.Assignment
		if rec.Code == http.StatusCreated {
			unmarshallObj(t, rec.Body.Bytes(), &got)
		}
		return got, rec.Code
	}

	asg, code := assign(testutil.WhiteBeltID)
	require.Equal(t, http.StatusCreated, code)
	assert.Empty(t, asg.Notice)
	assert.Equal(t, progression.StatusNeedsWork, asg.Record.Status)
	assert.True(t, asg.Record.Active)
	recID := asg.Record.ID

	other, code := assign(testutil.BJJWhiteID)
	require.Equal(t, http.StatusCreated, code)
	assert.NotEmpty(t, other.Notice)

	_, code = assign("9f0a3f4e-0000-4000-8000-00000000ffff")
	assert.Equal(t, http.StatusBadRequest, code)

	t.Run("Ready for testing", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPatch, "/v1/progress/"+recID, coach, []byte(`{"stripe_count":4,"coach_notes":"solid kata"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var updated progression.Record
		unmarshallObj(t, rec.Body.Bytes(), &updated)
		assert.Equal(t, 4, updated.StripeCount)
		assert.Equal(t, progression.StatusNeedsWork, updated.Status, "stripes do not change the status")

		runHttpTests(t, app, []httpTest{
			{name: "ready=true", path: "/v1/progress?ready=true", token: coach, wantCode: http.StatusOK,
				wantData: marchallObj(t, []progression.Record{updated})},
			{name: "status=ready", path: "/v1/progress?status=ready", token: coach, wantCode: http.StatusOK,
				wantData: []byte(`[]`)},
			{name: "ready=lol", path: "/v1/progress?ready=lol", token: coach, wantCode: http.StatusBadRequest},
		})
	})

	t.Run("Promote", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/progress/"+recID+"/promote", coach)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var promo progression.Promotion
		unmarshallObj(t, rec.Body.Bytes(), &promo)
		assert.Equal(t, progression.StatusPassed, promo.Previous.Status)
		assert.False(t, promo.Previous.Active)
		assert.NotNil(t, promo.Previous.AssessmentDate)
		assert.Equal(t, testutil.YellowBeltID, promo.Current.LevelID)
		assert.Equal(t, progression.StatusNeedsWork, promo.Current.Status)

		// the old record is history now
		req, rec = newAuthRequest(http.MethodPost, "/v1/progress/"+recID+"/promote", coach)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	runHttpTests(t, app, []httpTest{
		{name: "Retrieve unknown", path: "/v1/progress/nope", token: coach, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"})},
		{name: "Patch bad status", method: http.MethodPatch, path: "/v1/progress/" + recID, token: coach,
			body: []byte(`{"status":"black"}`), wantCode: http.StatusBadRequest},
		{name: "Promote unknown", method: http.MethodPost, path: "/v1/progress/nope/promote", token: coach,
			wantCode: http.StatusNotFound},
	})
}
