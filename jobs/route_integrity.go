package jobs

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/acacia-sms/acacia/internal/directory/routes"
	jobmetrics "github.com/acacia-sms/acacia/internal/jobs"
)

// RouteLister lists active routes for the integrity scan.
type RouteLister interface {
	ListActive(ctx context.Context) ([]routes.Route, error)
}

// RunRouteIntegrityScan walks the active catalog and reports URLs claimed by
// more than one route within the same domain. Aliases are legal, so the scan
// only warns; it returns the number of conflicting routes found.
func RunRouteIntegrityScan(ctx context.Context, lister RouteLister, logger *slog.Logger, metrics *jobmetrics.Metrics) (int, error) {
	active, err := lister.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	type key struct {
		domain routes.Domain
		url    string
	}
	byURL := make(map[key][]routes.Route)
	for _, route := range active {
		k := key{domain: route.Domain, url: route.URL}
		byURL[k] = append(byURL[k], route)
	}

	conflicts := 0
	perDomain := make(map[routes.Domain]int)
	for k, group := range byURL {
		if len(group) < 2 {
			continue
		}
		identifiers := make([]string, 0, len(group))
		for _, route := range group {
			identifiers = append(identifiers, route.Identifier)
		}
		sort.Strings(identifiers)
		logger.Warn("duplicate active route URL",
			slog.String("domain", string(k.domain)),
			slog.String("url", k.url),
			slog.String("routes", strings.Join(identifiers, ",")))
		extra := len(group) - 1
		conflicts += extra
		perDomain[k.domain] += extra
	}
	for domain, count := range perDomain {
		metrics.AddURLConflicts(string(domain), count)
	}

	logger.Info("route integrity scan finished",
		slog.Int("active_routes", len(active)),
		slog.Int("conflicts", conflicts))
	return conflicts, nil
}

// NewRouteIntegrityHandler adapts the scan into an Asynq handler.
func NewRouteIntegrityHandler(lister RouteLister, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("route_integrity")
		_, err := RunRouteIntegrityScan(ctx, lister, logger, metrics)
		return tracker.End(err)
	}
}
