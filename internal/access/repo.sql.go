package access

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	platformdb "github.com/acacia-sms/acacia/internal/platform/db"
	"github.com/acacia-sms/acacia/internal/shared"
)

// Repository persists grants and role permission mappings in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RolePermissionKeys returns distinct ALLOW keys configured for the roles.
func (r *Repository) RolePermissionKeys(ctx context.Context, roles []string) ([]string, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT permission_key FROM role_permissions WHERE role_identifier = ANY($1) ORDER BY permission_key`, roles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// DirectGrants returns every stored override for a user.
func (r *Repository) DirectGrants(ctx context.Context, userID int64) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, permission_key, effect, created_at FROM user_grants WHERE user_id = $1 ORDER BY permission_key`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.UserID, &g.Key, &g.Effect, &g.CreatedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// SetGrant upserts a direct grant. A later write for the same (user, key)
// replaces the stored effect.
func (r *Repository) SetGrant(ctx context.Context, userID int64, key string, effect Effect) (Grant, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO user_grants (user_id, permission_key, effect, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, permission_key) DO UPDATE SET effect = EXCLUDED.effect
		RETURNING user_id, permission_key, effect, created_at`, userID, key, effect)
	var g Grant
	if err := row.Scan(&g.UserID, &g.Key, &g.Effect, &g.CreatedAt); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// RemoveGrant deletes a direct grant. Missing rows are reported as
// shared.ErrNotFound.
func (r *Repository) RemoveGrant(ctx context.Context, userID int64, key string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_grants WHERE user_id = $1 AND permission_key = $2`, userID, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RolePermissions returns the keys mapped to a single role identifier.
func (r *Repository) RolePermissions(ctx context.Context, role string) ([]string, error) {
	return r.RolePermissionKeys(ctx, []string{role})
}

// SetRolePermissions replaces the permission keys mapped to a role. The
// delete and reinsert run in one transaction so evaluation never observes a
// half-written mapping.
func (r *Repository) SetRolePermissions(ctx context.Context, role string, keys []string) error {
	return platformdb.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_identifier = $1`, role); err != nil {
			return err
		}
		for _, key := range keys {
			if _, err := tx.Exec(ctx, `INSERT INTO role_permissions (role_identifier, permission_key) VALUES ($1, $2) ON CONFLICT DO NOTHING`, role, key); err != nil {
				return err
			}
		}
		return nil
	})
}

var _ GrantRepository = (*Repository)(nil)
