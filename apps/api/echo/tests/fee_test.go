package tests

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/EllowDigital/GSAI-IN-sub000/apps/api/echo"
	"github.com/EllowDigital/GSAI-IN-sub000/core"
	"github.com/EllowDigital/GSAI-IN-sub000/core/fee"
	"github.com/EllowDigital/GSAI-IN-sub000/tests"
)

func Test_feeApi_upsert(t *testing.T) {
	app := setup(t)
	admin := getToken(t, app.conf, RoleAdmin)
	stud := testutil.CreateStudent(t, app.studRepo, "Asha Rao", "Karate", "2000", true)

	post := func(body string) (fee.Record, int, string) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/fees", admin, []byte(body))
		app.ServeHTTP(rec, req)
		var got fee.Record
		if rec.Code == http.StatusOK {
			unmarshallObj(t, rec.Body.Bytes(), &got)
		}
		return got, rec.Code, rec.Body.String()
	}

	first, code, _ := post(fmt.Sprintf(`{"student_id":%q,"year":2025,"month":6,"monthly_fee":2000,"paid_amount":500}`, stud.ID))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, fee.StatusPartial, first.Status)
	assert.True(t, first.BalanceDue.Equal(testutil.Amount("1500")))

	// same period again: the record is updated in place
	second, code, _ := post(fmt.Sprintf(`{"student_id":%q,"year":2025,"month":6,"monthly_fee":"2000","paid_amount":"2000"}`, stud.ID))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, fee.StatusPaid, second.Status)
	assert.True(t, second.BalanceDue.IsZero())

	_, code, body := post(fmt.Sprintf(`{"student_id":%q,"year":2025,"month":7,"monthly_fee":1000,"paid_amount":1500}`, stud.ID))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"paid_amount":"paid amount cannot exceed the monthly fee"}`, body)

	_, code, body = post(`{"student_id":"ghost","year":2025,"month":7,"monthly_fee":1000,"paid_amount":0}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body, "student_id")

	_, code, _ = post(fmt.Sprintf(`{"student_id":%q,"year":2025,"month":13,"monthly_fee":1000}`, stud.ID))
	assert.Equal(t, http.StatusBadRequest, code)

	// nothing but the June record was written
	recs, err := app.feeRepo.QueryFees(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func Test_feeApi_read(t *testing.T) {
	app := setup(t)
	admin := getToken(t, app.conf, RoleAdmin)

	asha := testutil.CreateStudent(t, app.studRepo, "Asha Rao", "Karate", "2000", true)
	ravi := testutil.CreateStudent(t, app.studRepo, "Ravi Kumar", "BJJ", "2500", true)
	may := testutil.CreateFee(t, app.feeRepo, asha.ID, 2025, 5, "2000", "800")
	june := testutil.CreateFee(t, app.feeRepo, asha.ID, 2025, 6, "2000", "2000")
	raviJune := testutil.CreateFee(t, app.feeRepo, ravi.ID, 2025, 6, "2500", "0")

	runHttpTests(t, app, []httpTest{
		{name: "Get all", path: "/v1/fees", token: admin, wantCode: http.StatusOK, wantData: marchallObj(t, []fee.Record{june, raviJune, may})},
		{name: "student_id", path: "/v1/fees?student_id=" + ravi.ID, token: admin, wantCode: http.StatusOK, wantData: marchallObj(t, []fee.Record{raviJune})},
		{name: "status=partial,unpaid", path: "/v1/fees?status=partial,unpaid", token: admin, wantCode: http.StatusOK,
			wantData: marchallObj(t, []fee.Record{raviJune, may})},
		{name: "month=5", path: "/v1/fees?year=2025&month=5", token: admin, wantCode: http.StatusOK, wantData: marchallObj(t, []fee.Record{may})},
		{name: "month=lol", path: "/v1/fees?month=lol", token: admin, wantCode: http.StatusBadRequest},
		{name: "Retrieve", path: "/v1/fees/" + may.ID, token: admin, wantCode: http.StatusOK, wantData: marchallObj(t, may)},
		{name: "Retrieve unknown", path: "/v1/fees/nope", token: admin, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"})},
		{name: "Summary", path: "/v1/fees/summary?year=2025&month=6", token: admin, wantCode: http.StatusOK,
			wantData: marchallObj(t, fee.Summary{
				Collected: testutil.Amount("2000"),
				Pending:   testutil.Amount("0"),
				Overdue:   testutil.Amount("2500"),
				Records:   2,
			})},
		{name: "Ledger unknown student", path: "/v1/fees/ledger?student_id=ghost", token: admin, wantCode: http.StatusNotFound},
	})

	t.Run("Ledger carries debt forward", func(t *testing.T) {
		r, rec := newAuthRequest(http.MethodGet, "/v1/fees/ledger?student_id="+asha.ID+"&year=2025&month=7", admin)
		app.ServeHTTP(rec, r)
		require.Equal(t, http.StatusOK, rec.Code)

		var entry fee.LedgerEntry
		unmarshallObj(t, rec.Body.Bytes(), &entry)
		assert.False(t, entry.Exists)
		assert.True(t, entry.CarryForward.IsZero(), "June was settled")
		assert.True(t, entry.TotalDue.Equal(testutil.Amount("2000")))
	})

	t.Run("Export", func(t *testing.T) {
		r, rec := newAuthRequest(http.MethodGet, "/v1/fees/export?student_id="+asha.ID, admin)
		app.ServeHTTP(rec, r)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))

		lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, asha.ID+",Asha Rao,2025,5,2000.00,800.00,1200.00,partial,", lines[1])
	})
}

func Test_feeApi_sendReminders(t *testing.T) {
	app := setup(t)
	admin := getToken(t, app.conf, RoleAdmin)

	owing := testutil.CreateStudent(t, app.studRepo, "Owing Student", "Karate", "2000", true)
	settled := testutil.CreateStudent(t, app.studRepo, "Settled Student", "Karate", "2000", true)
	testutil.CreateFee(t, app.feeRepo, owing.ID, 2025, 5, "2000", "800")
	testutil.CreateFee(t, app.feeRepo, settled.ID, 2025, 6, "2000", "2000")

	runHttpTests(t, app, []httpTest{
		{name: "Send", method: http.MethodPost, path: "/v1/fees/reminders", token: admin, body: []byte(`{"year":2025,"month":6}`),
			wantCode: http.StatusOK, wantData: []byte(`{"sent":1}`)},
		{name: "Month out of range", method: http.MethodPost, path: "/v1/fees/reminders", token: admin, body: []byte(`{"year":2025,"month":13}`),
			wantCode: http.StatusBadRequest},
	})

	sent := app.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, owing.Email, sent[0].To[0].Address)
}

type brokenFeeRepo struct {
	fee.Repository
}

func (brokenFeeRepo) QueryFees(context.Context, *fee.QueryFilter, []core.DBOrdering) ([]fee.Record, error) {
	return nil, errors.New("connection reset")
}

func Test_feeApi_exportFailure(t *testing.T) {
	app := setup(t)
	logger := testutil.Logger()
	srv := NewServer(ServerDeps{
		Conf:           app.conf,
		Logger:         logger,
		FeeSvc:         fee.NewService(brokenFeeRepo{app.feeRepo}, app.studRepo, app.mailSvc, testutil.Validator(), logger),
		Validate:       testutil.Validator(),
		Translator:     core.NewTranslator(),
		DisableReqLogs: true,
	})

	r, rec := newAuthRequest(http.MethodGet, "/v1/fees/export", getToken(t, app.conf, RoleAdmin))
	srv.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.NotContains(t, rec.Body.String(), "student_id,")
}
