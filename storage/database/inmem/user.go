package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) index(id string) int {
	for i, u := range repo.db.t.users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedUsers ...user.User) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	for _, usr := range repo.db.t.users {
		if usr.Email == email && !excluded[usr.ID] {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, u := range repo.db.t.users {
		if u.ID == usr.ID || u.Email == usr.Email {
			return user.User{}, core.NewConflictError(errors.New("duplicate user"))
		}
	}
	repo.db.t.users = append(repo.db.t.users, usr)
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter, orderings ...core.DBOrdering) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	roles := make(map[user.Role]bool, len(filter.Roles))
	for _, r := range filter.Roles {
		roles[r] = true
	}

	users := make([]user.User, 0, len(repo.db.t.users))
	for _, u := range repo.db.t.users {
		if search != "" && !strings.Contains(strings.ToLower(u.Name), search) && !strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		if len(roles) > 0 && !roles[u.Role] {
			continue
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		if !filter.CreatedFrom.IsZero() && u.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && u.CreatedAt.After(filter.CreatedTo) {
			continue
		}
		users = append(users, u)
	}

	less := func(a, b user.User, field string) (bool, bool) {
		switch field {
		case "name":
			return a.Name < b.Name, a.Name == b.Name
		case "email":
			return a.Email < b.Email, a.Email == b.Email
		case "role":
			return a.Role < b.Role, a.Role == b.Role
		case "createdAt":
			return a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
		}
		return false, true
	}
	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "createdAt"}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range orderings {
			lt, eq := less(users[i], users[j], ord.Field)
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
	return users, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if i := repo.index(id); i >= 0 {
		return repo.db.t.users[i], nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.t.users {
		if usr.Email == email {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	i := repo.index(usr.ID)
	if i < 0 {
		return user.User{}, user.ErrNotFound
	}
	repo.db.t.users[i] = usr
	return usr, nil
}

func (repo *userRepository) SetLastLogin(_ context.Context, id string, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	i := repo.index(id)
	if i < 0 {
		return user.ErrNotFound
	}
	repo.db.t.users[i].LastLogin = &at
	return nil
}
