package auth

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/acacia-sms/acacia/internal/shared"
)

// IdentityMiddleware resolves the session's user into a request identity
// and stores it in the context. Requests without a usable session simply
// carry no identity; authorization decides what that means per route.
func IdentityMiddleware(service *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil || sess.User() == "" {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := strconv.ParseInt(sess.User(), 10, 64)
			if err != nil {
				logger.Warn("malformed session user", slog.String("value", sess.User()))
				next.ServeHTTP(w, r)
				return
			}
			id, err := service.IdentityFor(r.Context(), userID)
			if err != nil {
				logger.Warn("resolve identity", slog.Int64("user_id", userID), slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), id)))
		})
	}
}
