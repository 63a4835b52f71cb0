package model

import (
	"github.com/google/uuid"
)

// Role enumerates user roles.
type Role string

const (
	RoleStudent Role = "student"
	RoleProctor Role = "proctor"
	RoleAdmin   Role = "admin"
)

// Elevated reports whether the role may act on attempts it does not own.
func (r Role) Elevated() bool {
	return r == RoleProctor || r == RoleAdmin
}

// User represents an account in the directory. Only the fields the session
// gate needs are modeled here; account management lives elsewhere.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CategoryID   uuid.UUID `json:"category_id"`
	Role         Role      `json:"role"`
}

// LoginRequest is the payload for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}
