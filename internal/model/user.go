// Package model defines domain entities for the application.
package model

import "time"

// Role is the subscription tier of a user account.
type Role string

const (
	RolePremium Role = "PREMIUM"
	RoleFree    Role = "FREE"
	RoleGuest   Role = "GUEST"
	RoleAdmin   Role = "ADMIN"
)

// Roles lists every role in reporting order.
var Roles = []Role{RolePremium, RoleFree, RoleGuest, RoleAdmin}

// User is an account that owns links or performed clicks.
type User struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// UserSummary is the subset of a user embedded in analytics responses.
type UserSummary struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}
