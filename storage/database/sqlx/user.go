package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/user"
)

const userColumns = `id, name, email, password_hash, role, phone_number, avatar, is_active, last_login, created_at, updated_at`

var userOrderings = map[string]string{
	"name":      "name",
	"email":     "email",
	"role":      "role",
	"isActive":  "is_active",
	"lastLogin": "last_login",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

type userRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Email        string      `db:"email"`
	PasswordHash []byte      `db:"password_hash"`
	Role         string      `db:"role"`
	PhoneNumber  null.String `db:"phone_number"`
	Avatar       null.String `db:"avatar"`
	IsActive     bool        `db:"is_active"`
	LastLogin    null.Time   `db:"last_login"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

func (r userRow) toUser() user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Role:         user.Role(r.Role),
		PhoneNumber:  r.PhoneNumber.String,
		Avatar:       r.Avatar.String,
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.LastLogin.Valid {
		t := r.LastLogin.Time.UTC()
		usr.LastLogin = &t
	}
	return usr
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) get(ctx context.Context, cond string, arg interface{}) (user.User, error) {
	exec := getExec(ctx, repo.db)
	var row userRow
	q := exec.Rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + cond)
	if err := exec.GetContext(ctx, &row, q, arg); err != nil {
		return user.User{}, trapErr(err, user.ErrNotFound, "finding user")
	}
	return row.toUser(), nil
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	ids := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		ids = append(ids, u.ID)
	}

	exec := getExec(ctx, repo.db)
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND NOT (id = ANY($2::uuid[])))`
	if err := exec.GetContext(ctx, &exists, q, email, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `
	INSERT INTO users (id, name, email, password_hash, role, phone_number, avatar, is_active, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := getExec(ctx, repo.db).ExecContext(ctx, q,
		usr.ID, usr.Name, usr.Email, usr.PasswordHash, string(usr.Role),
		null.NewString(usr.PhoneNumber, usr.PhoneNumber != ""),
		null.NewString(usr.Avatar, usr.Avatar != ""),
		usr.IsActive, usr.CreatedAt, usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, trapErr(err, user.ErrNotFound, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, orderings ...core.DBOrdering) ([]user.User, error) {
	var w where
	// users with Name or Email matching the search keyword
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(name ILIKE ? OR email ILIKE ?)", val, val)
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, 0, len(filter.Roles))
		for _, r := range filter.Roles {
			roles = append(roles, string(r))
		}
		w.add("role = ANY(?)", pq.Array(roles))
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		w.add("created_at >= ?", filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		w.add("created_at <= ?", filter.CreatedTo.UTC())
	}

	exec := getExec(ctx, repo.db)
	q := exec.Rebind(
		`SELECT ` + userColumns + ` FROM users` + w.String() +
			` ORDER BY ` + core.OrderByClause(orderings, userOrderings, "created_at DESC"),
	)
	var rows []userRow
	if err := exec.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}

	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if !isUUID(id) {
		return user.User{}, user.ErrNotFound
	}
	return repo.get(ctx, "id = ?", id)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.get(ctx, "email = ?", email)
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `
	UPDATE users
	SET name = $1, email = $2, password_hash = $3, role = $4, phone_number = $5, avatar = $6, is_active = $7, updated_at = $8
	WHERE id = $9`
	res, err := getExec(ctx, repo.db).ExecContext(ctx, q,
		usr.Name, usr.Email, usr.PasswordHash, string(usr.Role),
		null.NewString(usr.PhoneNumber, usr.PhoneNumber != ""),
		null.NewString(usr.Avatar, usr.Avatar != ""),
		usr.IsActive, usr.UpdatedAt, usr.ID,
	)
	if err != nil {
		return user.User{}, trapErr(err, user.ErrNotFound, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	q := `UPDATE users SET last_login = $1 WHERE id = $2`
	if _, err := getExec(ctx, repo.db).ExecContext(ctx, q, at, id); err != nil {
		return errors.Wrap(err, "updating last login")
	}
	return nil
}
