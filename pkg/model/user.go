package model

import (
	"strings"
	"time"
)

// User is the locally simulated user profile
type User struct {
	Name         string    `json:"name" firestore:"name" validate:"required"`
	Email        string    `json:"email" firestore:"email" validate:"required,email"`
	Phone        string    `json:"phone,omitempty" firestore:"phone"`
	Role         string    `json:"role,omitempty" firestore:"role"`
	Tier         Tier      `json:"tier" firestore:"tier" validate:"oneof=free pro"`
	PasswordHash string    `json:"password_hash" firestore:"password_hash"`
	CreatedAt    time.Time `json:"created_at" firestore:"created_at"`
	UpgradedAt   time.Time `json:"upgraded_at,omitempty" firestore:"upgraded_at"`
}

// NormalizeEmail lowercases and trims an email address used as a user key
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks required profile fields
func (u *User) Validate() error {
	return validateStruct(u, "invalid user profile")
}
