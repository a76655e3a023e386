package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/notification"
	"github.com/trezcool/miradi/core/period"
	"github.com/trezcool/miradi/core/project"
	"github.com/trezcool/miradi/core/report"
	"github.com/trezcool/miradi/core/settings"
	"github.com/trezcool/miradi/core/user"
)

type (
	// DeadlineScanner is satisfied by *notification.Scanner.
	DeadlineScanner interface {
		Scan(ctx context.Context, windowDays int) (notification.ScanReport, error)
	}

	ServerDeps struct {
		Conf            *core.Config
		Logger          core.Logger
		Validate        *validator.Validate
		Translator      ut.Translator
		DisableReqLogs  bool
		UserSvc         *user.Service
		PeriodSvc       *period.Service
		ProjectSvc      *project.Service
		ReportSvc       *report.Service
		NotificationSvc *notification.Service
		Scanner         DeadlineScanner
		SettingsSvc     *settings.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORS())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", s.home)
	s.app.Static("/media", conf.MediaRoot)

	v1 := s.app.Group("/v1")
	v1.GET("/health", health)

	tokens := newTokenIssuer(conf)
	authed := []echo.MiddlewareFunc{tokens.middleware(), activeUserMiddleware(s.deps.UserSvc)}

	registerUserAPI(v1, authed, s.deps.UserSvc, s.deps.Validate, tokens)
	registerPeriodAPI(v1, authed, s.deps.PeriodSvc, s.deps.Validate)
	registerProjectAPI(v1, authed, s.deps.ProjectSvc, s.deps.ReportSvc, s.deps.Validate)
	registerReportAPI(v1, authed, s.deps.ReportSvc, s.deps.Validate)
	registerNotificationAPI(v1, authed, s.deps.NotificationSvc, s.deps.Scanner, conf.Notifications.ScanWindowDays)
	registerSettingsAPI(v1, authed, s.deps.SettingsSvc, s.deps.Validate, conf.MediaRoot)
}

// Start listens on the configured address; unexpected listener errors are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
