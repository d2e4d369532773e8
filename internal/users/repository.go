package users

import "context"

// Repository provides read access to accounts and write access to their
// role assignments.
type Repository interface {
	Get(ctx context.Context, id int64) (User, error)
	List(ctx context.Context, filters ListFilters) ([]User, int, error)
	SetMainRole(ctx context.Context, userID int64, role string) (User, error)
	AddExtraRole(ctx context.Context, userID int64, role string) (User, error)
	RemoveExtraRole(ctx context.Context, userID int64, role string) (User, error)
}
