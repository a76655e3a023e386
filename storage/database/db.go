package database

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/fs"
)

const (
	driverName     = "postgres"
	maintenanceDB  = "postgres"
	readyTimeout   = 30 * time.Second
	readyBaseDelay = 100 * time.Millisecond
)

type credentials int

const (
	appCredentials credentials = iota
	adminCredentials
)

func dsn(conf core.DatabaseConfig, dbName string, creds credentials) string {
	usr := url.UserPassword(conf.User, conf.Password)
	if creds == adminCredentials && conf.AdminUser != "" {
		usr = url.UserPassword(conf.AdminUser, conf.AdminPassword)
	}

	q := make(url.Values)
	q.Set("sslmode", "require")
	if conf.DisableTLS {
		q.Set("sslmode", "disable")
	}
	q.Set("timezone", "utc")

	return (&url.URL{Scheme: driverName, User: usr, Host: conf.Address(), Path: dbName, RawQuery: q.Encode()}).String()
}

func connect(conf core.DatabaseConfig, dbName string, creds credentials) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, dsn(conf, dbName, creds))
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", dbName)
	}
	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()
	if err := waitReady(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Open returns the application connection pool, once the database answers.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := connect(conf.Database, conf.Database.Name, appCredentials)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(conf.Database.MaxOpenConns)
	db.SetMaxIdleConns(conf.Database.MaxIdleConns)
	db.SetConnMaxLifetime(conf.Database.ConnMaxLifetime)
	return db, nil
}

// waitReady pings db until it answers, backing off a little more after each attempt.
func waitReady(ctx context.Context, db *sql.DB) error {
	for attempt := 1; ; attempt++ {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrapf(err, "database not ready after %d attempts", attempt)
		case <-time.After(time.Duration(attempt) * readyBaseDelay):
		}
	}
}

// CreateIfNotExist creates the application role, with the admin credentials, then the application database.
func CreateIfNotExist(conf *core.Config) error {
	if conf.Database.User != "" {
		admin, err := connect(conf.Database, maintenanceDB, adminCredentials)
		if err != nil {
			return err
		}
		err = ensureRole(admin, conf.Database.User, conf.Database.Password)
		_ = admin.Close()
		if err != nil {
			return err
		}
	}

	db, err := connect(conf.Database, maintenanceDB, appCredentials)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return ensureDatabase(db, conf.Database.Name)
}

func ensureRole(db *sqlx.DB, name, password string) error {
	var exists bool
	if err := db.Get(&exists, `SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)`, name); err != nil {
		return errors.Wrap(err, "looking up app role")
	}
	if exists {
		return nil
	}
	q := "CREATE ROLE " + pq.QuoteIdentifier(name) + " LOGIN CREATEDB ENCRYPTED PASSWORD " + pq.QuoteLiteral(password)
	if _, err := db.Exec(q); err != nil {
		return errors.Wrap(err, "creating app role")
	}
	return nil
}

func ensureDatabase(db *sqlx.DB, name string) error {
	var exists bool
	if err := db.Get(&exists, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name); err != nil {
		return errors.Wrap(err, "looking up database")
	}
	if exists {
		return nil
	}
	if _, err := db.Exec("CREATE DATABASE " + pq.QuoteIdentifier(name)); err != nil {
		return errors.Wrap(err, "creating database")
	}
	return nil
}

// Migrate runs a goose command (up, down, status...) against the embedded migrations.
func Migrate(db *sql.DB, command string, args ...string) error {
	if err := goose.RunFS(command, db, appfs.FS, "migrations", args...); err != nil {
		return errors.Wrapf(err, "migrate %s", command)
	}
	return nil
}
