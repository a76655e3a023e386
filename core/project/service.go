package project

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/notification"
	"github.com/trezcool/miradi/core/user"
)

var (
	ErrNotFound    = core.NewNotFoundError("project not found")
	ErrNotEditable = core.NewPermissionError("project can no longer be edited")
)

type (
	Repository interface {
		CreateProject(ctx context.Context, prj Project) (Project, error)
		// GetProjectByID returns the project with its teacher name and attachments.
		GetProjectByID(ctx context.Context, id string) (Project, error)
		QueryProjects(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]Project, error)
		UpdateProject(ctx context.Context, prj Project) (Project, error)
		// UpdateProjectStatus returns ErrNotFound when no project has the id.
		UpdateProjectStatus(ctx context.Context, id string, status Status, comments string, updatedAt time.Time) error
		AddAttachment(ctx context.Context, at Attachment) (Attachment, error)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo          Repository
		users         UserGetter
		notifications notification.Repository
		publisher     notification.Publisher
		tx            core.Transactor
		logger        core.Logger
	}
)

func NewService(
	repo Repository,
	users UserGetter,
	notifications notification.Repository,
	publisher notification.Publisher,
	tx core.Transactor,
	logger core.Logger,
) *Service {
	return &Service{
		repo:          repo,
		users:         users,
		notifications: notifications,
		publisher:     publisher,
		tx:            tx,
		logger:        logger,
	}
}

// CanView reports whether usr may see prj: reviewers see everything, teachers their own projects.
func CanView(prj Project, usr user.User) bool {
	return usr.CanReview() || prj.TeacherID == usr.ID
}

func (svc *Service) Create(ctx context.Context, np NewProject, actor user.User) (Project, error) {
	teacherID := actor.ID
	if actor.CanReview() && np.TeacherID != "" {
		teacher, err := svc.users.GetByID(ctx, np.TeacherID)
		if err != nil {
			if core.IsNotFound(err) {
				return Project{}, core.NewValidationError(err, core.FieldError{Field: "teacherId", Error: "teacher not found"})
			}
			return Project{}, err
		}
		if !teacher.IsProfesor() {
			return Project{}, core.NewValidationError(nil, core.FieldError{Field: "teacherId", Error: "user is not a teacher"})
		}
		teacherID = teacher.ID
	} else if !actor.IsProfesor() {
		return Project{}, core.NewValidationError(nil, core.FieldError{Field: "teacherId", Error: "this field is required"})
	}

	now := time.Now().UTC()
	prj := Project{
		ID:          uuid.New().String(),
		Title:       np.Title,
		Description: np.Description,
		Objectives:  np.Objectives,
		Resources:   np.Resources,
		TeacherID:   teacherID,
		Status:      np.Status,
		Attachments: make([]Attachment, 0),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateProject(ctx, prj)
}

func (svc *Service) GetByID(ctx context.Context, id string, actor user.User) (Project, error) {
	prj, err := svc.repo.GetProjectByID(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if !CanView(prj, actor) {
		return Project{}, core.ErrPermissionDenied
	}
	return prj, nil
}

// Query lists projects; teachers only ever see their own.
func (svc *Service) Query(ctx context.Context, filter QueryFilter, actor user.User, orderings ...core.DBOrdering) ([]Project, error) {
	filter.Clean()
	if !actor.CanReview() {
		filter.TeacherID = actor.ID
	}
	return svc.repo.QueryProjects(ctx, filter, orderings...)
}

func (svc *Service) Update(ctx context.Context, id string, up UpdateProject, actor user.User) (Project, error) {
	prj, err := svc.GetByID(ctx, id, actor)
	if err != nil {
		return Project{}, err
	}
	if !actor.CanReview() && !prj.Status.Editable() {
		return Project{}, ErrNotEditable
	}

	if up.Title != "" {
		prj.Title = up.Title
	}
	if up.Description != "" {
		prj.Description = up.Description
	}
	if up.Objectives != nil {
		prj.Objectives = up.Objectives
	}
	if up.Resources != nil {
		prj.Resources = up.Resources
	}
	prj.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateProject(ctx, prj)
}

// Submit sends a draft or rejected project to review. Only the owner may submit.
func (svc *Service) Submit(ctx context.Context, id string, actor user.User) (Project, error) {
	prj, err := svc.repo.GetProjectByID(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if prj.TeacherID != actor.ID {
		return Project{}, core.ErrPermissionDenied
	}
	if !prj.Status.Editable() {
		return Project{}, core.NewValidationError(nil, core.FieldError{
			Field: "status",
			Error: fmt.Sprintf("a project in %q cannot be submitted", prj.Status),
		})
	}

	prj.Status = StatusRevision
	prj.UpdatedAt = time.Now().UTC()
	if err := svc.repo.UpdateProjectStatus(ctx, prj.ID, prj.Status, prj.Comments, prj.UpdatedAt); err != nil {
		return Project{}, errors.Wrap(err, "submitting project")
	}
	return prj, nil
}

func (svc *Service) AddAttachment(ctx context.Context, id string, na NewAttachment, actor user.User) (Attachment, error) {
	prj, err := svc.GetByID(ctx, id, actor)
	if err != nil {
		return Attachment{}, err
	}
	return svc.repo.AddAttachment(ctx, Attachment{
		ID:        uuid.New().String(),
		ProjectID: prj.ID,
		FileName:  na.FileName,
		FilePath:  na.FilePath,
		FileType:  na.FileType,
		CreatedAt: time.Now().UTC(),
	})
}

// ChangeStatus records a review decision. Only admins and directors may review, whoever owns the project.
// The status update and the teacher's in-app notification are committed together; the outbound message is
// published afterwards and its failures never reach the caller.
func (svc *Service) ChangeStatus(ctx context.Context, id string, sc StatusChange, actor user.User) (StatusResult, error) {
	if !actor.CanReview() {
		return StatusResult{}, core.ErrPermissionDenied
	}

	var prj Project
	err := svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if prj, err = svc.repo.GetProjectByID(ctx, id); err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := svc.repo.UpdateProjectStatus(ctx, id, sc.Status, sc.Comments, now); err != nil {
			return errors.Wrap(err, "updating project status")
		}
		prj.Status = sc.Status
		prj.Comments = sc.Comments
		prj.UpdatedAt = now

		n := notification.StatusNotification(uuid.New().String(), prj.TeacherID, string(sc.Status), now)
		if err := svc.notifications.CreateNotification(ctx, n); err != nil {
			return errors.Wrap(err, "creating status notification")
		}
		return nil
	})
	if err != nil {
		return StatusResult{}, err
	}

	svc.logger.Info(fmt.Sprintf("project %s status changed to %s by %s", prj.ID, prj.Status, actor.ID))
	svc.publisher.Publish(notification.StatusChanged{
		ProjectID:    prj.ID,
		ProjectTitle: prj.Title,
		TeacherID:    prj.TeacherID,
		Status:       string(prj.Status),
		Comments:     prj.Comments,
		ChangedBy:    actor.ID,
		OccurredAt:   prj.UpdatedAt,
	})
	return StatusResult{ID: prj.ID, Status: prj.Status, Comments: prj.Comments}, nil
}
