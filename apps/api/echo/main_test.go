package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/notification"
	"github.com/trezcool/miradi/core/period"
	"github.com/trezcool/miradi/core/project"
	"github.com/trezcool/miradi/core/report"
	"github.com/trezcool/miradi/core/settings"
	"github.com/trezcool/miradi/core/user"
	emailsvc "github.com/trezcool/miradi/services/email"
	logsvc "github.com/trezcool/miradi/services/logger"
	whatsappsvc "github.com/trezcool/miradi/services/whatsapp"
	inmemdb "github.com/trezcool/miradi/storage/database/inmem"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}

	// keeps created_at strictly increasing between rows created by a test
	seq int
)

type testEnv struct {
	app       *Server
	usrRepo   user.Repository
	prjRepo   project.Repository
	notifRepo notification.Repository
	periodSvc *period.Service
	gateway   *whatsappsvc.ConsoleGateway
}

func setup(t *testing.T) *testEnv {
	conf := *core.Conf
	conf.Debug = false
	conf.TestMode = true
	conf.MediaRoot = t.TempDir()
	conf.Notifications.ScanWindowDays = 7

	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger(&conf, io.Discard), &conf)
	logger.Enable(false)
	core.ParseEmailTemplates(logger)

	// set up DB & repos
	db, err := inmemdb.Open()
	require.NoError(t, err)
	tx := inmemdb.NewTxManager(db)
	usrRepo := inmemdb.NewUserRepository(db)
	periodRepo := inmemdb.NewPeriodRepository(db)
	prjRepo := inmemdb.NewProjectRepository(db)
	reportRepo := inmemdb.NewReportRepository(db)
	notifRepo := inmemdb.NewNotificationRepository(db)
	settingsRepo := inmemdb.NewSettingsRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(&conf, logger)
	gateway := whatsappsvc.NewConsoleGatewayMock(logger)

	usrSvc := user.NewService(usrRepo, mailSvc, logger)
	periodSvc := period.NewService(periodRepo, tx, logger)
	notifier := notification.NewNotifier(usrSvc, gateway, mailSvc, logger, false)
	dispatcher := notification.NewDispatcherMock(notifier, logger)
	prjSvc := project.NewService(prjRepo, usrSvc, notifRepo, dispatcher, tx, logger)
	scanner, err := notification.NewScanner(notifRepo, notifRepo, gateway, mailSvc, logger, notification.ScannerConfig{
		Location: time.UTC,
		Dedupe:   true,
	})
	require.NoError(t, err)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	project.InitValidators(validate, translator)
	report.InitValidators(validate, translator)

	app := NewServer(ServerDeps{
		Conf:            &conf,
		Logger:          logger,
		Validate:        validate,
		Translator:      translator,
		DisableReqLogs:  true,
		UserSvc:         usrSvc,
		PeriodSvc:       periodSvc,
		ProjectSvc:      prjSvc,
		ReportSvc:       report.NewService(reportRepo, prjRepo),
		NotificationSvc: notification.NewService(notifRepo),
		Scanner:         scanner,
		SettingsSvc:     settings.NewService(settingsRepo),
	})

	return &testEnv{
		app:       app,
		usrRepo:   usrRepo,
		prjRepo:   prjRepo,
		notifRepo: notifRepo,
		periodSvc: periodSvc,
		gateway:   gateway,
	}
}

func (env *testEnv) serve(req *http.Request, rec *httptest.ResponseRecorder) {
	env.app.ServeHTTP(rec, req)
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

func getToken(t *testing.T, usr user.User) string {
	token, err := newTokenIssuer(core.Conf).issue(usr)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func nextTimestamp() time.Time {
	seq++
	return time.Now().UTC().Add(time.Duration(seq) * time.Millisecond)
}

func createUser(t *testing.T, repo user.Repository, name, email, pwd string, role user.Role, phone string, isActive bool) user.User {
	now := nextTimestamp()
	usr := user.User{
		ID:          uuid.New().String(),
		Name:        name,
		Email:       email,
		Role:        role,
		PhoneNumber: phone,
		IsActive:    isActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func createProject(t *testing.T, repo project.Repository, teacher user.User, title string, status project.Status) project.Project {
	now := nextTimestamp()
	prj, err := repo.CreateProject(context.Background(), project.Project{
		ID:          uuid.New().String(),
		Title:       title,
		Description: "Descripción de " + title,
		Objectives:  []string{"Objetivo 1"},
		Resources:   []string{},
		TeacherID:   teacher.ID,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("createProject() failed: %v", err)
	}
	return prj
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, "code")
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, env *testEnv, tests []httpTest) {
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}
