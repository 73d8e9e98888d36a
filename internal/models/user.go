package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser       = "user"
	RoleSuperadmin = "superadmin"
)

// User stores the derived hash under "password". The plaintext is never kept.
type User struct {
	ID           uuid.UUID `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password,omitempty"`
	Salt         string    `json:"salt,omitempty"`
	Role         string    `json:"role,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (User) TableName() string { return "users" }

func (User) HiddenFields() []string { return []string{"password", "salt"} }

func (User) ReadonlyFields() []string { return []string{"password", "salt"} }
