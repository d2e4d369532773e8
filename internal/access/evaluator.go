package access

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/acacia-sms/acacia/internal/shared"
)

// GrantRepository provides the permission sources the evaluator flattens.
type GrantRepository interface {
	// RolePermissionKeys returns the ALLOW keys implied by the given role
	// identifiers. Roles without a configured mapping contribute nothing.
	RolePermissionKeys(ctx context.Context, roles []string) ([]string, error)
	// DirectGrants returns the per-user overrides for a user.
	DirectGrants(ctx context.Context, userID int64) ([]Grant, error)
}

// Evaluator computes effective permission sets. The evaluation order is
// fixed: role allows and direct allows are unioned first, then every key
// with a direct DENY is removed. A direct ALLOW never survives a direct
// DENY on the same key.
type Evaluator struct {
	repo GrantRepository
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(repo GrantRepository) *Evaluator {
	return &Evaluator{repo: repo}
}

// EffectivePermissions returns the sorted set of permission keys currently
// allowed for the identity. Unauthenticated or inactive identities hold no
// permissions.
func (e *Evaluator) EffectivePermissions(ctx context.Context, id *shared.Identity) ([]string, error) {
	if !id.Authenticated() {
		return nil, nil
	}

	roleKeys, err := e.repo.RolePermissionKeys(ctx, id.Roles())
	if err != nil {
		return nil, fmt.Errorf("access: role permissions: %w", err)
	}
	direct, err := e.repo.DirectGrants(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("access: direct grants: %w", err)
	}

	allowed := make(map[string]struct{}, len(roleKeys)+len(direct))
	for _, key := range roleKeys {
		if key = normalizeKey(key); key != "" {
			allowed[key] = struct{}{}
		}
	}
	for _, g := range direct {
		if g.Effect == EffectAllow {
			if key := normalizeKey(g.Key); key != "" {
				allowed[key] = struct{}{}
			}
		}
	}
	for _, g := range direct {
		if g.Effect == EffectDeny {
			delete(allowed, normalizeKey(g.Key))
		}
	}

	keys := make([]string, 0, len(allowed))
	for key := range allowed {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// HasPermission reports whether the identity holds a single permission key.
func (e *Evaluator) HasPermission(ctx context.Context, id *shared.Identity, key string) (bool, error) {
	key = normalizeKey(key)
	if key == "" {
		return false, nil
	}
	keys, err := e.EffectivePermissions(ctx, id)
	if err != nil {
		return false, err
	}
	for _, k := range keys {
		if k == key {
			return true, nil
		}
	}
	return false, nil
}

func normalizeKey(key string) string {
	return strings.TrimSpace(strings.ToLower(key))
}
