package settings

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/miradi/core"
)

// Settings is the institution branding, a singleton.
type Settings struct {
	InstitutionName string    `json:"institutionName"`
	PrimaryColor    string    `json:"primaryColor"`
	SecondaryColor  string    `json:"secondaryColor"`
	Logo            string    `json:"logo"`
	Favicon         string    `json:"favicon"`
	UpdatedAt       time.Time `json:"updatedAt"` // UTC
}

// Update holds the changed settings; empty fields are left unchanged.
type Update struct {
	InstitutionName string `json:"institutionName" form:"institutionName"`
	PrimaryColor    string `json:"primaryColor" form:"primaryColor" validate:"omitempty,hexcolor"`
	SecondaryColor  string `json:"secondaryColor" form:"secondaryColor" validate:"omitempty,hexcolor"`
	Logo            string `json:"-" form:"-"`
	Favicon         string `json:"-" form:"-"`
}

func (u *Update) Validate(validate *validator.Validate) error {
	u.InstitutionName = core.CleanString(u.InstitutionName)
	u.PrimaryColor = core.CleanString(u.PrimaryColor, true /* lower */)
	u.SecondaryColor = core.CleanString(u.SecondaryColor, true /* lower */)
	return validate.Struct(u)
}

type (
	Repository interface {
		GetSettings(ctx context.Context) (Settings, error)
		SaveSettings(ctx context.Context, s Settings) (Settings, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Get(ctx context.Context) (Settings, error) {
	return svc.repo.GetSettings(ctx)
}

func (svc *Service) Update(ctx context.Context, u Update) (Settings, error) {
	s, err := svc.repo.GetSettings(ctx)
	if err != nil {
		return Settings{}, err
	}
	if u.InstitutionName != "" {
		s.InstitutionName = u.InstitutionName
	}
	if u.PrimaryColor != "" {
		s.PrimaryColor = u.PrimaryColor
	}
	if u.SecondaryColor != "" {
		s.SecondaryColor = u.SecondaryColor
	}
	if u.Logo != "" {
		s.Logo = u.Logo
	}
	if u.Favicon != "" {
		s.Favicon = u.Favicon
	}
	s.UpdatedAt = time.Now().UTC()
	return svc.repo.SaveSettings(ctx, s)
}
