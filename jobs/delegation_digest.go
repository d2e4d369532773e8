package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/acacia-sms/acacia/internal/delegation"
	"github.com/acacia-sms/acacia/internal/directory/routes"
	jobmetrics "github.com/acacia-sms/acacia/internal/jobs"
	"github.com/acacia-sms/acacia/internal/users"
)

// ExpiringSource lists active delegations whose expiry falls inside a window
// starting now.
type ExpiringSource interface {
	ExpiringWithin(ctx context.Context, window time.Duration) ([]delegation.Delegation, error)
}

// AccountDirectory resolves user accounts for notification addressing.
type AccountDirectory interface {
	Get(ctx context.Context, id int64) (users.User, error)
}

// RouteCatalog resolves routes referenced by delegations.
type RouteCatalog interface {
	Get(ctx context.Context, id int64) (routes.Route, error)
}

// EmailEnqueuer submits notification emails to the queue. *Client satisfies it.
type EmailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// DigestConfig collects dependencies for the delegation expiry digest.
type DigestConfig struct {
	Source   ExpiringSource
	Accounts AccountDirectory
	Catalog  RouteCatalog
	Enqueuer EmailEnqueuer
	Window   time.Duration
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// RunDelegationDigest notifies delegate and delegator of delegations expiring
// within the configured window. Expired rows never grant access regardless of
// the digest; this is purely advisory. Returns the number of delegations
// reported.
func RunDelegationDigest(ctx context.Context, cfg DigestConfig) (int, error) {
	window := cfg.Window
	if window <= 0 {
		window = 24 * time.Hour
	}
	expiring, err := cfg.Source.ExpiringWithin(ctx, window)
	if err != nil {
		return 0, err
	}
	for _, d := range expiring {
		if d.ExpiresAt == nil {
			continue
		}
		routeName := fmt.Sprintf("route %d", d.RouteID)
		if cfg.Catalog != nil {
			if route, err := cfg.Catalog.Get(ctx, d.RouteID); err == nil {
				routeName = route.Identifier
			}
		}
		cfg.Logger.Info("delegation expiring",
			slog.Int64("delegation_id", d.ID),
			slog.Int64("delegate_id", d.DelegateID),
			slog.String("route", routeName),
			slog.Time("expires_at", *d.ExpiresAt))
		if cfg.Enqueuer == nil || cfg.Accounts == nil {
			continue
		}
		for _, userID := range []int64{d.DelegateID, d.DelegatorID} {
			account, err := cfg.Accounts.Get(ctx, userID)
			if err != nil || account.Email == "" {
				continue
			}
			payload := SendEmailPayload{
				To:      account.Email,
				Subject: fmt.Sprintf("Delegated access to %s expires soon", routeName),
				Body: fmt.Sprintf("The delegation of %s expires at %s. Renew it if continued access is needed.",
					routeName, d.ExpiresAt.Format(time.RFC3339)),
			}
			if _, err := cfg.Enqueuer.EnqueueSendEmail(ctx, payload); err != nil {
				cfg.Logger.Warn("enqueue delegation notice",
					slog.Int64("delegation_id", d.ID),
					slog.Any("error", err))
			}
		}
	}
	cfg.Metrics.AddExpiringDelegations(len(expiring))
	cfg.Logger.Info("delegation digest finished", slog.Int("expiring", len(expiring)))
	return len(expiring), nil
}

// NewDelegationDigestHandler adapts the digest into an Asynq handler.
func NewDelegationDigestHandler(cfg DigestConfig) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := cfg.Metrics.Track("delegation_digest")
		_, err := RunDelegationDigest(ctx, cfg)
		return tracker.End(err)
	}
}
