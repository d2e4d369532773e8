package users

import "time"

// User is the account record as seen by the access layer: identity plus
// role assignments. Account lifecycle (signup, deletion) lives elsewhere.
type User struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	MainRole   string    `json:"main_role"`
	ExtraRoles []string  `json:"extra_roles"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ListFilters narrows user listings.
type ListFilters struct {
	Search string
	Role   string
	Active *bool
	Page   int
	Limit  int
}
