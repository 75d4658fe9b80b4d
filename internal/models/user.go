package models

import (
	"fmt"
	"time"
)

const (
	RoleStudent  = "student"
	RoleAdmin    = "admin"
	RoleLabAdmin = "lab_admin"
)

const DateLayout = "2006-01-02"

type User struct {
	Email        string  `db:"email" json:"email"`
	FirstName    string  `db:"first_name" json:"first_name"`
	LastName     string  `db:"last_name" json:"last_name"`
	Role         string  `db:"role" json:"role"`
	StudentCode  string  `db:"student_code" json:"student_code"`
	PasswordHash string  `db:"password_hash" json:"-"`
	LabAccess    bool    `db:"lab_access" json:"lab_access"`
	AccessExpiry *string `db:"access_expiry" json:"access_expiry,omitempty"`
}

func (u *User) FullName() string {
	return fmt.Sprintf("%s %s", u.FirstName, u.LastName)
}

// ExpiryDate parses AccessExpiry. ok is false for a permanent grant.
func (u *User) ExpiryDate(loc *time.Location) (expiry time.Time, ok bool, err error) {
	if u.AccessExpiry == nil || *u.AccessExpiry == "" {
		return time.Time{}, false, nil
	}
	expiry, err = time.ParseInLocation(DateLayout, *u.AccessExpiry, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid access expiry %q: %w", *u.AccessExpiry, err)
	}
	return expiry, true, nil
}

type Registration struct {
	FirstName   string `json:"first_name" validate:"required,max=100"`
	LastName    string `json:"last_name" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email"`
	StudentCode string `json:"student_code" validate:"required,numeric,min=6,max=12"`
	Password    string `json:"password" validate:"required,min=6"`
}

func (r *Registration) Validate() error {
	return validate.Struct(r)
}

type AccountInput struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	Role      string `json:"role" validate:"required,oneof=admin lab_admin"`
}

func (a *AccountInput) Validate() error {
	return validate.Struct(a)
}

type Credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (c *Credentials) Validate() error {
	return validate.Struct(c)
}

// AccessChange is an admin decision about restricted-lab access.
// Mode is one of enable, disable, temporary.
type AccessChange struct {
	Mode string `json:"mode" validate:"required,oneof=enable disable temporary"`
	Days int    `json:"days" validate:"required_if=Mode temporary,gte=0"`
}

func (a *AccessChange) Validate() error {
	return validate.Struct(a)
}

type Session struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
