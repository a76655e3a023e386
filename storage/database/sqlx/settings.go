package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/miradi/core/settings"
)

const settingsColumns = `institution_name, primary_color, secondary_color, logo, favicon, updated_at`

type settingsRow struct {
	InstitutionName string      `db:"institution_name"`
	PrimaryColor    string      `db:"primary_color"`
	SecondaryColor  string      `db:"secondary_color"`
	Logo            null.String `db:"logo"`
	Favicon         null.String `db:"favicon"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func (r settingsRow) toSettings() settings.Settings {
	return settings.Settings{
		InstitutionName: r.InstitutionName,
		PrimaryColor:    r.PrimaryColor,
		SecondaryColor:  r.SecondaryColor,
		Logo:            r.Logo.String,
		Favicon:         r.Favicon.String,
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

type settingsRepository struct {
	db *sqlx.DB
}

var _ settings.Repository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(db *sqlx.DB) *settingsRepository {
	return &settingsRepository{db: db}
}

func (repo settingsRepository) GetSettings(ctx context.Context) (settings.Settings, error) {
	var row settingsRow
	q := `SELECT ` + settingsColumns + ` FROM site_settings WHERE id = 1`
	if err := getExec(ctx, repo.db).GetContext(ctx, &row, q); err != nil {
		return settings.Settings{}, errors.Wrap(err, "loading site settings")
	}
	return row.toSettings(), nil
}

func (repo settingsRepository) SaveSettings(ctx context.Context, s settings.Settings) (settings.Settings, error) {
	q := `
	INSERT INTO site_settings (id, ` + settingsColumns + `) VALUES (1, $1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		institution_name = EXCLUDED.institution_name,
		primary_color = EXCLUDED.primary_color,
		secondary_color = EXCLUDED.secondary_color,
		logo = EXCLUDED.logo,
		favicon = EXCLUDED.favicon,
		updated_at = EXCLUDED.updated_at
	RETURNING ` + settingsColumns
	var row settingsRow
	err := getExec(ctx, repo.db).GetContext(ctx, &row, q,
		s.InstitutionName, s.PrimaryColor, s.SecondaryColor,
		null.NewString(s.Logo, s.Logo != ""), null.NewString(s.Favicon, s.Favicon != ""), s.UpdatedAt,
	)
	if err != nil {
		return settings.Settings{}, errors.Wrap(err, "saving site settings")
	}
	return row.toSettings(), nil
}
