package inmemdb

import (
	"context"

	"github.com/trezcool/miradi/core/settings"
)

type settingsRepository struct {
	db *DB
}

var _ settings.Repository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(db *DB) *settingsRepository {
	return &settingsRepository{db: db}
}

func (repo *settingsRepository) GetSettings(_ context.Context) (settings.Settings, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.t.settings, nil
}

func (repo *settingsRepository) SaveSettings(_ context.Context, s settings.Settings) (settings.Settings, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.t.settings = s
	return s, nil
}
