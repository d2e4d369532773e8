package access

import (
	"context"
	"net/http"
	"time"

	"log/slog"

	"github.com/acacia-sms/acacia/internal/shared"
)

// DelegationSource answers whether a user currently holds a delegation for a
// route. Implemented by the delegation service; kept as an interface here so
// authorization does not depend on the delegation package.
type DelegationSource interface {
	IsDelegated(ctx context.Context, userID, routeID int64, now time.Time) (bool, error)
}

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Evaluator   *Evaluator
	Delegations DelegationSource
	Logger      *slog.Logger
}

// RequireAny ensures the current identity has at least one of the required
// permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.require(perms, false)
}

// RequireAll ensures the current identity has all required permissions.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.require(perms, true)
}

func (m Middleware) require(perms []string, all bool) func(http.Handler) http.Handler {
	normalized := normalizePermissionList(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			id := shared.IdentityFromContext(r.Context())
			if !id.Authenticated() {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			granted, err := m.Evaluator.EffectivePermissions(r.Context(), id)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("permission evaluation", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if matches(granted, normalized, all) {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// CanAccessRoute reports whether the identity may reach a route. Access is
// the permission check ORed with an active delegation; a delegation only
// ever adds access, it cannot mask a missing route or remove permissions.
func (m Middleware) CanAccessRoute(ctx context.Context, id *shared.Identity, routeID int64, permissionKey string, now time.Time) (bool, error) {
	if permissionKey == "" {
		// Routes without a permission key are public; guests land on the
		// guest template through category resolution.
		return true, nil
	}
	if !id.Authenticated() {
		return false, nil
	}
	ok, err := m.Evaluator.HasPermission(ctx, id, permissionKey)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	if m.Delegations == nil {
		return false, nil
	}
	return m.Delegations.IsDelegated(ctx, id.UserID, routeID, now)
}

func normalizePermissionList(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		if p = normalizeKey(p); p != "" {
			unique[p] = struct{}{}
		}
	}
	normalized := make([]string, 0, len(unique))
	for p := range unique {
		normalized = append(normalized, p)
	}
	return normalized
}

func matches(granted, required []string, all bool) bool {
	set := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		set[p] = struct{}{}
	}
	for _, r := range required {
		_, ok := set[r]
		if all && !ok {
			return false
		}
		if !all && ok {
			return true
		}
	}
	return all
}
