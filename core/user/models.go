package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/miradi/core"
)

// Role is the closed set of user roles.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleDirector Role = "director"
	RoleProfesor Role = "profesor"
)

var (
	AllRoles = []Role{RoleAdmin, RoleDirector, RoleProfesor}

	Roles = []RoleInfo{
		{Name: "Profesor", Value: RoleProfesor},
		{Name: "Director", Value: RoleDirector},
		{Name: "Administrador", Value: RoleAdmin},
	}
)

type RoleInfo struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

func ParseRole(s string) (Role, bool) {
	r := Role(core.CleanString(s, true /* lower */))
	return r, r.Valid()
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDirector, RoleProfesor:
		return true
	}
	return false
}

// Priority orders roles; a user may only grant roles up to their own priority.
func (r Role) Priority() int {
	switch r {
	case RoleAdmin:
		return 30
	case RoleDirector:
		return 20
	case RoleProfesor:
		return 10
	}
	return 0
}

// CanReview reports whether the role may review projects and reports.
func (r Role) CanReview() bool {
	switch r {
	case RoleAdmin, RoleDirector:
		return true
	case RoleProfesor:
		return false
	}
	return false
}

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         Role       `json:"role"`
	PhoneNumber  string     `json:"phoneNumber,omitempty"`
	Avatar       string     `json:"avatar,omitempty"`
	IsActive     bool       `json:"isActive"`
	PasswordHash []byte     `json:"-"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"` // UTC
	CreatedAt    time.Time  `json:"createdAt"`           // UTC
	UpdatedAt    time.Time  `json:"updatedAt"`           // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsAdmin() bool    { return u.Role == RoleAdmin }
func (u User) IsProfesor() bool { return u.Role == RoleProfesor }
func (u User) CanReview() bool  { return u.Role.CanReview() }
func (u User) HasPhone() bool   { return u.PhoneNumber != "" }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Role            Role   `json:"role" validate:"required,role"`
	PhoneNumber     string `json:"phoneNumber" validate:"omitempty,phone"`
	Avatar          string `json:"avatar" validate:"omitempty,url"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = Role(core.CleanString(string(nu.Role), true /* lower */))
	nu.PhoneNumber = core.CleanString(nu.PhoneNumber)
	nu.Avatar = core.CleanString(nu.Avatar)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkUniqueness(nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
// nil pointers leave the field unchanged; an empty PhoneNumber or Avatar clears it.
type UpdateUser struct {
	Name            string  `json:"name"`
	Email           string  `json:"email" validate:"omitempty,email"`
	Role            Role    `json:"role" validate:"omitempty,role"`
	PhoneNumber     *string `json:"phoneNumber" validate:"omitempty,phone"`
	Avatar          *string `json:"avatar" validate:"omitempty,url"`
	IsActive        *bool   `json:"isActive"`
	Password        string  `json:"password" validate:"omitempty"`
	PasswordConfirm string  `json:"passwordConfirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate, svc *Service) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if role := Role(core.CleanString(string(uu.Role), true /* lower */)); role != "" {
		uu.Role = role
	} else {
		uu.Role = origUsr.Role
	}

	if uu.PhoneNumber != nil {
		phone := core.CleanString(*uu.PhoneNumber)
		uu.PhoneNumber = &phone
	}
	if uu.Avatar != nil {
		avatar := core.CleanString(*uu.Avatar)
		uu.Avatar = &avatar
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.checkUniqueness(uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []Role    `query:"role"`
	IsActive    *bool     `query:"isActive"`
	CreatedFrom time.Time `query:"createdFrom"`
	CreatedTo   time.Time `query:"createdTo"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
