package main

import (
	"fmt"
	"os"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/notification"
	emailsvc "github.com/trezcool/miradi/services/email"
	logsvc "github.com/trezcool/miradi/services/logger"
	whatsappsvc "github.com/trezcool/miradi/services/whatsapp"
	"github.com/trezcool/miradi/storage/database"
)

func main() {
	conf := core.Conf
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger(conf), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	stores := database.NewPostgresStores(db)

	// set up the deadline scanner
	gateway, err := whatsappsvc.NewGateway(conf.WhatsApp, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up whatsapp gateway: %v", err), err)
	}
	var mailSvc *emailsvc.Service
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	core.ParseEmailTemplates(logger)
	scanner, err := notification.NewScanner(stores.Notifications, stores.Notifications, gateway, mailSvc, logger,
		notification.ScannerConfig{
			Location:  conf.Location(),
			Dedupe:    conf.Notifications.ScanDedupe,
			EmailCopy: conf.Notifications.EmailCopy,
		},
	)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up deadline scanner: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		db:          db.DB,
		usrRepo:     stores.Users,
		scanner:     scanner,
		defaultDays: conf.Notifications.ScanWindowDays,
		out:         os.Stdout,
	}
	err = cli.run(os.Args)
	mailSvc.Wait()
	_ = stores.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
