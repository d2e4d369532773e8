package delegation

import (
	"context"
	"time"
)

// Repository provides persistence for delegations. Expired rows are never
// deleted or swept; IsDelegated excludes them in the query instead.
type Repository interface {
	Create(ctx context.Context, d Delegation) (Delegation, error)
	Update(ctx context.Context, d Delegation) (Delegation, error)
	SetActive(ctx context.Context, id int64, active bool) (Delegation, error)
	Get(ctx context.Context, id int64) (Delegation, error)
	List(ctx context.Context, filters ListFilters) ([]Delegation, int, error)
	// IsDelegated reports whether an active, non-expired delegation exists
	// for the delegate on the route at the given instant.
	IsDelegated(ctx context.Context, delegateID, routeID int64, now time.Time) (bool, error)
	// ExpiringBetween returns active delegations whose expiry falls inside
	// [from, to). Used by the expiry digest job.
	ExpiringBetween(ctx context.Context, from, to time.Time) ([]Delegation, error)
}
