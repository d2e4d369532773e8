package routes

import "context"

// Repository provides persistence for the route catalog.
type Repository interface {
	Create(ctx context.Context, route Route) (Route, error)
	Update(ctx context.Context, route Route) (Route, error)
	SetActive(ctx context.Context, id int64, active bool) (Route, error)
	Get(ctx context.Context, id int64) (Route, error)
	GetByIdentifier(ctx context.Context, identifier string) (Route, error)
	List(ctx context.Context, filters ListFilters) ([]Route, int, error)
	ListActive(ctx context.Context) ([]Route, error)
	// ActiveByURL returns active routes sharing a URL within a domain,
	// excluding the given id. Used for duplicate-URL warnings.
	ActiveByURL(ctx context.Context, domain Domain, url string, excludeID int64) ([]Route, error)
}
