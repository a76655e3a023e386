package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/project"
)

type projectRepository struct {
	db *DB
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db *DB) *projectRepository {
	return &projectRepository{db: db}
}

func (repo *projectRepository) index(id string) int {
	for i, p := range repo.db.t.projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// hydrate adds the teacher name and the attachments to p.
func (repo *projectRepository) hydrate(p project.Project) project.Project {
	for _, u := range repo.db.t.users {
		if u.ID == p.TeacherID {
			p.TeacherName = u.Name
			break
		}
	}
	p.Attachments = make([]project.Attachment, 0)
	for _, at := range repo.db.t.attachments {
		if at.ProjectID == p.ID {
			p.Attachments = append(p.Attachments, at)
		}
	}
	return p
}

func (repo *projectRepository) CreateProject(_ context.Context, prj project.Project) (project.Project, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.index(prj.ID) >= 0 {
		return project.Project{}, core.NewConflictError(errors.New("duplicate project"))
	}
	teacherFound := false
	for _, u := range repo.db.t.users {
		if u.ID == prj.TeacherID {
			teacherFound = true
			break
		}
	}
	if !teacherFound {
		return project.Project{}, core.NewConflictError(errors.Errorf("user %s does not exist", prj.TeacherID))
	}

	stored := prj
	stored.Attachments = nil
	stored.TeacherName = ""
	repo.db.t.projects = append(repo.db.t.projects, stored)
	return repo.hydrate(stored), nil
}

func (repo *projectRepository) GetProjectByID(_ context.Context, id string) (project.Project, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if i := repo.index(id); i >= 0 {
		return repo.hydrate(repo.db.t.projects[i]), nil
	}
	return project.Project{}, project.ErrNotFound
}

func (repo *projectRepository) QueryProjects(_ context.Context, filter project.QueryFilter, orderings ...core.DBOrdering) ([]project.Project, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	statuses := make(map[project.Status]bool, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses[s] = true
	}

	projects := make([]project.Project, 0, len(repo.db.t.projects))
	for i := len(repo.db.t.projects) - 1; i >= 0; i-- {
		p := repo.db.t.projects[i]
		if search != "" && !strings.Contains(strings.ToLower(p.Title), search) && !strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		if len(statuses) > 0 && !statuses[p.Status] {
			continue
		}
		if filter.TeacherID != "" && p.TeacherID != filter.TeacherID {
			continue
		}
		projects = append(projects, repo.hydrate(p))
	}

	less := func(a, b project.Project, field string) (bool, bool) {
		switch field {
		case "title":
			return a.Title < b.Title, a.Title == b.Title
		case "status":
			return a.Status < b.Status, a.Status == b.Status
		case "createdAt":
			return a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
		case "updatedAt":
			return a.UpdatedAt.Before(b.UpdatedAt), a.UpdatedAt.Equal(b.UpdatedAt)
		}
		return false, true
	}
	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "createdAt"}}
	}
	sort.SliceStable(projects, func(i, j int) bool {
		for _, ord := range orderings {
			lt, eq := less(projects[i], projects[j], ord.Field)
			if eq {
				continue
			}
			if ord.Ascending {
				return lt
			}
			return !lt
		}
		return false
	})
	return projects, nil
}

func (repo *projectRepository) UpdateProject(_ context.Context, prj project.Project) (project.Project, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	i := repo.index(prj.ID)
	if i < 0 {
		return project.Project{}, project.ErrNotFound
	}
	stored := repo.db.t.projects[i]
	stored.Title = prj.Title
	stored.Description = prj.Description
	stored.Objectives = prj.Objectives
	stored.Resources = prj.Resources
	stored.UpdatedAt = prj.UpdatedAt
	repo.db.t.projects[i] = stored
	return repo.hydrate(stored), nil
}

func (repo *projectRepository) UpdateProjectStatus(_ context.Context, id string, status project.Status, comments string, updatedAt time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	i := repo.index(id)
	if i < 0 {
		return project.ErrNotFound
	}
	repo.db.t.projects[i].Status = status
	repo.db.t.projects[i].Comments = comments
	repo.db.t.projects[i].UpdatedAt = updatedAt
	return nil
}

func (repo *projectRepository) AddAttachment(_ context.Context, at project.Attachment) (project.Attachment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.index(at.ProjectID) < 0 {
		return project.Attachment{}, core.NewConflictError(errors.Errorf("project %s does not exist", at.ProjectID))
	}
	repo.db.t.attachments = append(repo.db.t.attachments, at)
	return at, nil
}
