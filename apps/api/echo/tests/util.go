package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/EllowDigital/GSAI-IN-sub000/apps/api/echo"
	"github.com/EllowDigital/GSAI-IN-sub000/core"
	"github.com/EllowDigital/GSAI-IN-sub000/core/fee"
	"github.com/EllowDigital/GSAI-IN-sub000/core/progression"
	"github.com/EllowDigital/GSAI-IN-sub000/core/student"
	"github.com/EllowDigital/GSAI-IN-sub000/services/email"
	"github.com/EllowDigital/GSAI-IN-sub000/storage/database/inmem"
	"github.com/EllowDigital/GSAI-IN-sub000/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*Server
	conf         *core.Config
	studRepo     student.Repository
	feeRepo      fee.Repository
	progressRepo progression.Repository
	mailSvc      *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) testApp {
	conf := testutil.Config()
	// share one translator between validator & server, as apps/api/main.go does
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	logger := testutil.Logger()

	// set up DB & repos
	db := inmemdb.Open()
	app := testApp{
		conf:         conf,
		studRepo:     inmemdb.NewStudentRepository(db),
		feeRepo:      inmemdb.NewFeeRepository(db),
		progressRepo: inmemdb.NewProgressionRepository(db),
		mailSvc:      emailsvc.NewConsoleServiceMock(conf),
	}
	testutil.SeedLevels(t, app.progressRepo)

	// set up server
	app.Server = NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		StudentSvc:     student.NewService(app.studRepo, validate),
		FeeSvc:         fee.NewService(app.feeRepo, app.studRepo, app.mailSvc, validate, logger),
		ProgressSvc:    progression.NewService(app.progressRepo, app.studRepo, nil, nil, validate),
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	return app
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, role string) string {
	claims := NewClaims(conf, "user-"+role, role+"@test.local", role, time.Hour)
	token, err := GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshallObj(t *testing.T, data []byte, obj interface{}) {
	if err := json.Unmarshal(data, obj); err != nil {
		t.Fatalf("unmarshallObj(%s) failed: %v", data, err)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHttpTests(t *testing.T, app testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
