package auth

import "time"

// User is an account as the authentication layer sees it: credentials plus
// the role assignments that seed the request identity.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	MainRole     string
	ExtraRoles   []string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
