package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/miradi/apps/api/echo"
	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/notification"
	"github.com/trezcool/miradi/core/period"
	"github.com/trezcool/miradi/core/project"
	"github.com/trezcool/miradi/core/report"
	"github.com/trezcool/miradi/core/settings"
	"github.com/trezcool/miradi/core/user"
	emailsvc "github.com/trezcool/miradi/services/email"
	logsvc "github.com/trezcool/miradi/services/logger"
	"github.com/trezcool/miradi/services/scheduler"
	whatsappsvc "github.com/trezcool/miradi/services/whatsapp"
	"github.com/trezcool/miradi/storage/database"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.Conf

	// set up logger
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger(conf), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	stores, err := database.OpenStores(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = stores.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing database: %v", err), err)
		}
	}()

	// set up services
	var mailSvc *emailsvc.Service
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	defer mailSvc.Wait()

	gateway, err := whatsappsvc.NewGateway(conf.WhatsApp, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up whatsapp gateway: %v", err), err)
	}

	usrSvc := user.NewService(stores.Users, mailSvc, logger)
	notifier := notification.NewNotifier(usrSvc, gateway, mailSvc, logger, conf.Notifications.EmailCopy)
	dispatcher, err := notification.NewDispatcher(
		notifier, logger, conf.Notifications.DispatchWorkers, conf.Notifications.DispatchBuffer,
	)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up notification dispatcher: %v", err), err)
	}
	scanner, err := notification.NewScanner(
		stores.Notifications, stores.Notifications, gateway, mailSvc, logger,
		notification.ScannerConfig{
			Location:  conf.Location(),
			Dedupe:    conf.Notifications.ScanDedupe,
			EmailCopy: conf.Notifications.EmailCopy,
		},
	)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up deadline scanner: %v", err), err)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q, %s storage", conf.Build, conf.Database.Engine))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	project.InitValidators(validate, translator)
	report.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger)

	dispatcher.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()
		if err := dispatcher.Stop(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not drain notification queue: %v", err), err)
		}
	}()

	if conf.Notifications.ScanEnabled {
		sched := scheduler.New(scanner, logger, conf.Location(), conf.Notifications)
		if err := sched.Start(); err != nil {
			logger.Fatal(fmt.Sprintf("starting deadline scheduler: %v", err), err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()
			if err := sched.Stop(ctx); err != nil {
				logger.Error(fmt.Sprintf("could not stop deadline scheduler: %v", err), err)
			}
		}()
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("whatsapp").Set(gateway.Name())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:            conf,
		Logger:          logger,
		Validate:        validate,
		Translator:      translator,
		UserSvc:         usrSvc,
		PeriodSvc:       period.NewService(stores.Periods, stores.Tx, logger),
		ProjectSvc:      project.NewService(stores.Projects, usrSvc, stores.Notifications, dispatcher, stores.Tx, logger),
		ReportSvc:       report.NewService(stores.Reports, stores.Projects),
		NotificationSvc: notification.NewService(stores.Notifications),
		Scanner:         scanner,
		SettingsSvc:     settings.NewService(stores.Settings),
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
