package admin

import "time"

// Admin is an administrator account. Admins are created by the seed-admin
// command and authenticate through a separate token flow from users.
type Admin struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CreateAdminInput holds the fields required to create an administrator.
type CreateAdminInput struct {
	Username string
	Password string
	Role     string
}
