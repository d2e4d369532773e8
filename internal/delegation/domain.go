package delegation

import "time"

// Delegation lends one user's access to a single route to another user.
// It is additive: authorization ORs it with the permission evaluation and
// it can never remove or mask a permission the delegate already holds.
type Delegation struct {
	ID          int64      `json:"id"`
	DelegatorID int64      `json:"delegator_id"`
	DelegateID  int64      `json:"delegate_id"`
	RouteID     int64      `json:"route_id"`
	Active      bool       `json:"active"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Live reports whether the delegation grants access at the given instant.
// Expiry is strict: a delegation expiring exactly at now is already expired.
func (d Delegation) Live(now time.Time) bool {
	if !d.Active {
		return false
	}
	return d.ExpiresAt == nil || now.Before(*d.ExpiresAt)
}

// ListFilters narrows delegation listings.
type ListFilters struct {
	// UserID matches delegations where the user is delegator or delegate.
	UserID  int64
	RouteID int64
	Active  *bool
	Page    int
	Limit   int
}
