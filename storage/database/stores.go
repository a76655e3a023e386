package database

import (
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/notification"
	"github.com/trezcool/miradi/core/period"
	"github.com/trezcool/miradi/core/project"
	"github.com/trezcool/miradi/core/report"
	"github.com/trezcool/miradi/core/settings"
	"github.com/trezcool/miradi/core/user"
	inmemdb "github.com/trezcool/miradi/storage/database/inmem"
	sqlxrepos "github.com/trezcool/miradi/storage/database/sqlx"
)

const (
	EnginePostgres = "postgres"
	EngineMemory   = "memory"
)

type (
	NotificationStore interface {
		notification.Repository
		notification.DeadlineRepository
	}

	// Stores holds the repositories of one storage engine.
	Stores struct {
		Tx            core.Transactor
		Users         user.Repository
		Periods       period.Repository
		Projects      project.Repository
		Reports       report.Repository
		Notifications NotificationStore
		Settings      settings.Repository

		// DB is nil for the memory engine.
		DB *sqlx.DB
	}
)

// OpenStores opens the configured engine. The postgres database is created and migrated when needed.
func OpenStores(conf *core.Config) (*Stores, error) {
	switch conf.Database.Engine {
	case EngineMemory:
		db, err := inmemdb.Open()
		if err != nil {
			return nil, errors.Wrap(err, "opening in-memory database")
		}
		return NewMemoryStores(db), nil

	case EnginePostgres, "":
		if err := CreateIfNotExist(conf); err != nil {
			return nil, err
		}
		db, err := Open(conf)
		if err != nil {
			return nil, err
		}
		if err = Migrate(db.DB, "up"); err != nil {
			_ = db.Close()
			return nil, err
		}
		return NewPostgresStores(db), nil
	}
	return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
}

func NewPostgresStores(db *sqlx.DB) *Stores {
	return &Stores{
		Tx:            sqlxrepos.NewTxManager(db),
		Users:         sqlxrepos.NewUserRepository(db),
		Periods:       sqlxrepos.NewPeriodRepository(db),
		Projects:      sqlxrepos.NewProjectRepository(db),
		Reports:       sqlxrepos.NewReportRepository(db),
		Notifications: sqlxrepos.NewNotificationRepository(db),
		Settings:      sqlxrepos.NewSettingsRepository(db),
		DB:            db,
	}
}

func NewMemoryStores(db *inmemdb.DB) *Stores {
	return &Stores{
		Tx:            inmemdb.NewTxManager(db),
		Users:         inmemdb.NewUserRepository(db),
		Periods:       inmemdb.NewPeriodRepository(db),
		Projects:      inmemdb.NewProjectRepository(db),
		Reports:       inmemdb.NewReportRepository(db),
		Notifications: inmemdb.NewNotificationRepository(db),
		Settings:      inmemdb.NewSettingsRepository(db),
	}
}

func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
