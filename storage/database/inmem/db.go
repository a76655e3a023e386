package inmemdb

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/notification"
	"github.com/trezcool/miradi/core/period"
	"github.com/trezcool/miradi/core/project"
	"github.com/trezcool/miradi/core/report"
	"github.com/trezcool/miradi/core/settings"
	"github.com/trezcool/miradi/core/user"
)

type (
	// DB is an in-memory store with the same semantics as the Postgres schema.
	// Tables are slices so rows keep their insertion order.
	DB struct {
		mu   sync.RWMutex
		txMu sync.Mutex
		t    *tables
	}

	tables struct {
		users         []user.User
		periods       []period.Period // without deadlines
		deadlines     []period.Deadline
		projects      []project.Project // without attachments nor teacher name
		attachments   []project.Attachment
		reports       []report.Report
		notifications []notification.Notification
		deliveries    []notification.Delivery
		settings      settings.Settings
	}
)

func Open() (*DB, error) {
	return &DB{
		t: &tables{
			settings: settings.Settings{
				InstitutionName: "Miradi",
				PrimaryColor:    "#1d4ed8",
				SecondaryColor:  "#9333ea",
				UpdatedAt:       time.Now().UTC(),
			},
		},
	}, nil
}

func (t *tables) clone() *tables {
	return &tables{
		users:         append([]user.User(nil), t.users...),
		periods:       append([]period.Period(nil), t.periods...),
		deadlines:     append([]period.Deadline(nil), t.deadlines...),
		projects:      append([]project.Project(nil), t.projects...),
		attachments:   append([]project.Attachment(nil), t.attachments...),
		reports:       append([]report.Report(nil), t.reports...),
		notifications: append([]notification.Notification(nil), t.notifications...),
		deliveries:    append([]notification.Delivery(nil), t.deliveries...),
		settings:      t.settings,
	}
}

type txKey struct{}

// TxManager serialises transactions and restores the tables on failure.
type TxManager struct {
	db *DB
}

var _ core.Transactor = (*TxManager)(nil)

func NewTxManager(db *DB) *TxManager {
	return &TxManager{db: db}
}

func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	m.db.txMu.Lock()
	defer m.db.txMu.Unlock()

	m.db.mu.RLock()
	snapshot := m.db.t.clone()
	m.db.mu.RUnlock()

	rollback := func() {
		m.db.mu.Lock()
		m.db.t = snapshot
		m.db.mu.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		rollback()
	}
	return err
}
