package roles

import "context"

// Repository provides persistence for the role catalog.
type Repository interface {
	Create(ctx context.Context, role Role) (Role, error)
	Update(ctx context.Context, role Role) (Role, error)
	SetActive(ctx context.Context, id int64, active bool) (Role, error)
	Get(ctx context.Context, id int64) (Role, error)
	GetByIdentifier(ctx context.Context, identifier string) (Role, error)
	List(ctx context.Context, filters ListFilters) ([]Role, int, error)
	ListActive(ctx context.Context) ([]Role, error)
}
