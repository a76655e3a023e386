package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/project"
)

const (
	projectSelect = `
	SELECT p.id, p.title, p.description, p.objectives, p.resources, p.teacher_id, u.name AS teacher_name,
	       p.status, p.comments, p.created_at, p.updated_at
	FROM projects p
	JOIN users u ON u.id = p.teacher_id`
	attachmentColumns = `id, project_id, file_name, file_path, file_type, created_at`
)

var projectOrderings = map[string]string{
	"title":     "p.title",
	"status":    "p.status",
	"createdAt": "p.created_at",
	"updatedAt": "p.updated_at",
}

type projectRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Objectives  pq.StringArray `db:"objectives"`
	Resources   pq.StringArray `db:"resources"`
	TeacherID   string         `db:"teacher_id"`
	TeacherName string         `db:"teacher_name"`
	Status      string         `db:"status"`
	Comments    null.String    `db:"comments"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r projectRow) toProject() project.Project {
	objectives := []string(r.Objectives)
	if objectives == nil {
		objectives = make([]string, 0)
	}
	resources := []string(r.Resources)
	if resources == nil {
		resources = make([]string, 0)
	}
	return project.Project{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Objectives:  objectives,
		Resources:   resources,
		TeacherID:   r.TeacherID,
		TeacherName: r.TeacherName,
		Status:      project.Status(r.Status),
		Comments:    r.Comments.String,
		Attachments: make([]project.Attachment, 0),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type attachmentRow struct {
	ID        string    `db:"id"`
	ProjectID string    `db:"project_id"`
	FileName  string    `db:"file_name"`
	FilePath  string    `db:"file_path"`
	FileType  string    `db:"file_type"`
	CreatedAt time.Time `db:"created_at"`
}

func (r attachmentRow) toAttachment() project.Attachment {
	return project.Attachment{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		FileName:  r.FileName,
		FilePath:  r.FilePath,
		FileType:  r.FileType,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type projectRepository struct {
	db *sqlx.DB
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db *sqlx.DB) *projectRepository {
	return &projectRepository{db: db}
}

func (repo projectRepository) attachAttachments(ctx context.Context, rows []projectRow) ([]project.Project, error) {
	projects := make([]project.Project, 0, len(rows))
	if len(rows) == 0 {
		return projects, nil
	}

	ids := make([]string, 0, len(rows))
	idx := make(map[string]int, len(rows))
	for i, r := range rows {
		ids = append(ids, r.ID)
		idx[r.ID] = i
		projects = append(projects, r.toProject())
	}

	var aRows []attachmentRow
	q := `SELECT ` + attachmentColumns + ` FROM project_attachments WHERE project_id = ANY($1::uuid[]) ORDER BY created_at`
	if err := getExec(ctx, repo.db).SelectContext(ctx, &aRows, q, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "querying attachments")
	}
	for _, a := range aRows {
		i := idx[a.ProjectID]
		projects[i].Attachments = append(projects[i].Attachments, a.toAttachment())
	}
	return projects, nil
}

func (repo projectRepository) CreateProject(ctx context.Context, prj project.Project) (project.Project, error) {
	q := `
	INSERT INTO projects (id, title, description, objectives, resources, teacher_id, status, comments, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := getExec(ctx, repo.db).ExecContext(ctx, q,
		prj.ID, prj.Title, prj.Description, pq.Array(prj.Objectives), pq.Array(prj.Resources), prj.TeacherID,
		string(prj.Status), null.NewString(prj.Comments, prj.Comments != ""), prj.CreatedAt, prj.UpdatedAt,
	)
	if err != nil {
		return project.Project{}, trapErr(err, project.ErrNotFound, "inserting project")
	}
	return repo.GetProjectByID(ctx, prj.ID)
}

func (repo projectRepository) GetProjectByID(ctx context.Context, id string) (project.Project, error) {
	if !isUUID(id) {
		return project.Project{}, project.ErrNotFound
	}
	var row projectRow
	if err := getExec(ctx, repo.db).GetContext(ctx, &row, projectSelect+` WHERE p.id = $1`, id); err != nil {
		return project.Project{}, trapErr(err, project.ErrNotFound, "finding project")
	}
	projects, err := repo.attachAttachments(ctx, []projectRow{row})
	if err != nil {
		return project.Project{}, err
	}
	return projects[0], nil
}

func (repo projectRepository) QueryProjects(ctx context.Context, filter project.QueryFilter, orderings ...core.DBOrdering) ([]project.Project, error) {
	var w where
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(p.title ILIKE ? OR p.description ILIKE ?)", val, val)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		w.add("p.status = ANY(?)", pq.Array(statuses))
	}
	if filter.TeacherID != "" {
		if !isUUID(filter.TeacherID) {
			return make([]project.Project, 0), nil
		}
		w.add("p.teacher_id = ?", filter.TeacherID)
	}

	exec := getExec(ctx, repo.db)
	q := exec.Rebind(projectSelect + w.String() +
		` ORDER BY ` + core.OrderByClause(orderings, projectOrderings, "p.created_at DESC"))
	var rows []projectRow
	if err := exec.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying projects")
	}
	return repo.attachAttachments(ctx, rows)
}

func (repo projectRepository) UpdateProject(ctx context.Context, prj project.Project) (project.Project, error) {
	q := `
	UPDATE projects
	SET title = $1, description = $2, objectives = $3, resources = $4, updated_at = $5
	WHERE id = $6`
	res, err := getExec(ctx, repo.db).ExecContext(ctx, q,
		prj.Title, prj.Description, pq.Array(prj.Objectives), pq.Array(prj.Resources), prj.UpdatedAt, prj.ID)
	if err != nil {
		return project.Project{}, trapErr(err, project.ErrNotFound, "updating project")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return project.Project{}, project.ErrNotFound
	}
	return prj, nil
}

func (repo projectRepository) UpdateProjectStatus(ctx context.Context, id string, status project.Status, comments string, updatedAt time.Time) error {
	if !isUUID(id) {
		return project.ErrNotFound
	}
	q := `UPDATE projects SET status = $1, comments = $2, updated_at = $3 WHERE id = $4`
	res, err := getExec(ctx, repo.db).ExecContext(ctx, q,
		string(status), null.NewString(comments, comments != ""), updatedAt, id)
	if err != nil {
		return trapErr(err, project.ErrNotFound, "updating project status")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return project.ErrNotFound
	}
	return nil
}

func (repo projectRepository) AddAttachment(ctx context.Context, at project.Attachment) (project.Attachment, error) {
	q := `INSERT INTO project_attachments (` + attachmentColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := getExec(ctx, repo.db).ExecContext(ctx, q, at.ID, at.ProjectID, at.FileName, at.FilePath, at.FileType, at.CreatedAt)
	if err != nil {
		return project.Attachment{}, trapErr(err, project.ErrNotFound, "inserting attachment")
	}
	return at, nil
}
