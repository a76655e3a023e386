package project

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/miradi/core"
)

type Status string

const (
	StatusBorrador  Status = "borrador"
	StatusRevision  Status = "revision"
	StatusAprobado  Status = "aprobado"
	StatusRechazado Status = "rechazado"
)

var AllStatuses = []Status{StatusBorrador, StatusRevision, StatusAprobado, StatusRechazado}

func (s Status) Valid() bool {
	switch s {
	case StatusBorrador, StatusRevision, StatusAprobado, StatusRechazado:
		return true
	}
	return false
}

// Editable reports whether the owner may still edit the project.
func (s Status) Editable() bool {
	switch s {
	case StatusBorrador, StatusRechazado:
		return true
	case StatusRevision, StatusAprobado:
		return false
	}
	return false
}

type Project struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Objectives  []string     `json:"objectives"`
	Resources   []string     `json:"resources"`
	TeacherID   string       `json:"teacherId"`
	TeacherName string       `json:"teacherName,omitempty"`
	Status      Status       `json:"status"`
	Comments    string       `json:"comments"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"createdAt"` // UTC
	UpdatedAt   time.Time    `json:"updatedAt"` // UTC
}

// Attachment is the metadata of a file attached to a project.
type Attachment struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	FileName  string    `json:"fileName"`
	FilePath  string    `json:"filePath"`
	FileType  string    `json:"fileType"`
	CreatedAt time.Time `json:"createdAt"` // UTC
}

// NewProject contains information needed to create a new Project.
// TeacherID is only considered when a reviewer creates the project on behalf of a teacher.
type NewProject struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Objectives  []string `json:"objectives"`
	Resources   []string `json:"resources"`
	TeacherID   string   `json:"teacherId"`
	Status      Status   `json:"status" validate:"omitempty,oneof=borrador revision"`
}

func (np *NewProject) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Description = core.CleanString(np.Description)
	np.Objectives = core.CleanStrings(np.Objectives)
	np.Resources = core.CleanStrings(np.Resources)
	np.TeacherID = core.CleanString(np.TeacherID)
	if np.Status == "" {
		np.Status = StatusBorrador
	}
	return validate.Struct(np)
}

// UpdateProject defines what information may be provided to modify an existing Project.
// Empty fields and nil lists are left unchanged.
type UpdateProject struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Objectives  []string `json:"objectives"`
	Resources   []string `json:"resources"`
}

func (up *UpdateProject) Validate(validate *validator.Validate) error {
	up.Title = core.CleanString(up.Title)
	up.Description = core.CleanString(up.Description)
	if up.Objectives != nil {
		up.Objectives = core.CleanStrings(up.Objectives)
	}
	if up.Resources != nil {
		up.Resources = core.CleanStrings(up.Resources)
	}
	return validate.Struct(up)
}

// StatusChange is a review decision on a project.
type StatusChange struct {
	Status   Status `json:"status" validate:"required,project_status"`
	Comments string `json:"comments"`
}

func (sc *StatusChange) Validate(validate *validator.Validate) error {
	sc.Status = Status(core.CleanString(string(sc.Status), true /* lower */))
	sc.Comments = core.CleanString(sc.Comments)
	return validate.Struct(sc)
}

type StatusResult struct {
	ID       string `json:"id"`
	Status   Status `json:"status"`
	Comments string `json:"comments"`
}

type NewAttachment struct {
	FileName string `json:"fileName" validate:"required"`
	FilePath string `json:"filePath" validate:"required"`
	FileType string `json:"fileType"`
}

func (na *NewAttachment) Validate(validate *validator.Validate) error {
	na.FileName = core.CleanString(na.FileName)
	na.FilePath = core.CleanString(na.FilePath)
	na.FileType = core.CleanString(na.FileType, true /* lower */)
	return validate.Struct(na)
}

type QueryFilter struct {
	Search    string   `query:"search"`
	Statuses  []Status `query:"status"`
	TeacherID string   `query:"teacherId"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.TeacherID = core.CleanString(qf.TeacherID)
}

var (
	statusTag  = "project_status"
	statusText = "invalid project status"
)

// InitValidators registers the project validators on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(Status)
		return ok && s.Valid()
	})
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}
