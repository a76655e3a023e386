package report

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/project"
	"github.com/trezcool/miradi/core/user"
)

var ErrNotFound = core.NewNotFoundError("report not found")

type Type string

const (
	TypeTrimestral Type = "trimestral"
	TypeFinal      Type = "final"
)

func (t Type) Valid() bool {
	switch t {
	case TypeTrimestral, TypeFinal:
		return true
	}
	return false
}

type Status string

const (
	StatusPendiente Status = "pendiente"
	StatusEntregado Status = "entregado"
	StatusRevisado  Status = "revisado"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPendiente, StatusEntregado, StatusRevisado:
		return true
	}
	return false
}

type Report struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	Type        Type      `json:"type"`
	Content     string    `json:"content"`
	Status      Status    `json:"status"`
	SubmittedAt time.Time `json:"submittedAt"` // UTC
	CreatedAt   time.Time `json:"createdAt"`   // UTC
}

type NewReport struct {
	ProjectID string `json:"projectId" validate:"required"`
	Type      Type   `json:"type" validate:"required,report_type"`
	Content   string `json:"content" validate:"required"`
}

func (nr *NewReport) Validate(validate *validator.Validate) error {
	nr.ProjectID = core.CleanString(nr.ProjectID)
	nr.Type = Type(core.CleanString(string(nr.Type), true /* lower */))
	nr.Content = core.CleanString(nr.Content)
	return validate.Struct(nr)
}

type StatusChange struct {
	Status Status `json:"status" validate:"required,report_status"`
}

func (sc *StatusChange) Validate(validate *validator.Validate) error {
	sc.Status = Status(core.CleanString(string(sc.Status), true /* lower */))
	return validate.Struct(sc)
}

var (
	typeTag    = "report_type"
	typeText   = "invalid report type"
	statusTag  = "report_status"
	statusText = "invalid report status"
)

// InitValidators registers the report validators on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(typeTag, func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(Type)
		return ok && t.Valid()
	})
	core.RegisterCustomTranslation(validate, translator, typeTag, typeText)

	_ = validate.RegisterValidation(statusTag, func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(Status)
		return ok && s.Valid()
	})
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}

type (
	Repository interface {
		CreateReport(ctx context.Context, r Report) (Report, error)
		GetReportByID(ctx context.Context, id string) (Report, error)
		// QueryReportsByProject returns the project's reports, newest first.
		QueryReportsByProject(ctx context.Context, projectID string) ([]Report, error)
		UpdateReportStatus(ctx context.Context, id string, status Status) error
	}

	ProjectGetter interface {
		GetProjectByID(ctx context.Context, id string) (project.Project, error)
	}

	Service struct {
		repo     Repository
		projects ProjectGetter
	}
)

func NewService(repo Repository, projects ProjectGetter) *Service {
	return &Service{repo: repo, projects: projects}
}

// Create files a report on a project. Teachers may only report on their own projects.
func (svc *Service) Create(ctx context.Context, nr NewReport, actor user.User) (Report, error) {
	prj, err := svc.projects.GetProjectByID(ctx, nr.ProjectID)
	if err != nil {
		return Report{}, err
	}
	if !actor.CanReview() && prj.TeacherID != actor.ID {
		return Report{}, core.ErrPermissionDenied
	}

	now := time.Now().UTC()
	return svc.repo.CreateReport(ctx, Report{
		ID:          uuid.New().String(),
		ProjectID:   prj.ID,
		Type:        nr.Type,
		Content:     nr.Content,
		Status:      StatusEntregado,
		SubmittedAt: now,
		CreatedAt:   now,
	})
}

func (svc *Service) QueryByProject(ctx context.Context, projectID string, actor user.User) ([]Report, error) {
	prj, err := svc.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !project.CanView(prj, actor) {
		return nil, core.ErrPermissionDenied
	}
	return svc.repo.QueryReportsByProject(ctx, prj.ID)
}

func (svc *Service) ChangeStatus(ctx context.Context, id string, sc StatusChange, actor user.User) (Report, error) {
	if !actor.CanReview() {
		return Report{}, core.ErrPermissionDenied
	}
	r, err := svc.repo.GetReportByID(ctx, id)
	if err != nil {
		return Report{}, err
	}
	if err := svc.repo.UpdateReportStatus(ctx, id, sc.Status); err != nil {
		return Report{}, err
	}
	r.Status = sc.Status
	return r, nil
}
