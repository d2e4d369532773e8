package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acacia-sms/acacia/internal/platform/httpx"
)

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `u.id, u.email, u.name, u.main_role, u.active, u.created_at, u.updated_at`

func (r *PGRepository) scanUser(ctx context.Context, row pgx.Row) (User, error) {
	var user User
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.MainRole, &user.Active, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, httpx.ErrNotFound
		}
		return User{}, err
	}
	extra, err := r.extraRoles(ctx, user.ID)
	if err != nil {
		return User{}, err
	}
	user.ExtraRoles = extra
	return user, nil
}

func (r *PGRepository) extraRoles(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_identifier FROM user_extra_roles WHERE user_id = $1 ORDER BY role_identifier`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// Get fetches one account with its extra roles.
func (r *PGRepository) Get(ctx context.Context, id int64) (User, error) {
	return r.scanUser(ctx, r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id))
}

// List returns a filtered page plus the total match count.
func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]User, int, error) {
	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		p := arg("%" + search + "%")
		where = append(where, fmt.Sprintf("(u.email ILIKE %s OR u.name ILIKE %s)", p, p))
	}
	if filters.Role != "" {
		p := arg(filters.Role)
		where = append(where, fmt.Sprintf("(u.main_role = %s OR EXISTS (SELECT 1 FROM user_extra_roles x WHERE x.user_id = u.id AND x.role_identifier = %s))", p, p))
	}
	if filters.Active != nil {
		where = append(where, "u.active = "+arg(*filters.Active))
	}
	whereSQL := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users u WHERE `+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	query := fmt.Sprintf(`SELECT %s FROM users u WHERE %s ORDER BY u.name, u.id LIMIT %s OFFSET %s`,
		userColumns, whereSQL, arg(limit), arg((page-1)*limit))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Email, &user.Name, &user.MainRole, &user.Active, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range list {
		extra, err := r.extraRoles(ctx, list[i].ID)
		if err != nil {
			return nil, 0, err
		}
		list[i].ExtraRoles = extra
	}
	return list, total, nil
}

// SetMainRole replaces the primary role assignment.
func (r *PGRepository) SetMainRole(ctx context.Context, userID int64, role string) (User, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET main_role = $2, updated_at = NOW() WHERE id = $1`, userID, role)
	if err != nil {
		return User{}, err
	}
	if tag.RowsAffected() == 0 {
		return User{}, httpx.ErrNotFound
	}
	return r.Get(ctx, userID)
}

// AddExtraRole attaches an additional role; adding one twice is a no-op.
func (r *PGRepository) AddExtraRole(ctx context.Context, userID int64, role string) (User, error) {
	if _, err := r.Get(ctx, userID); err != nil {
		return User{}, err
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_extra_roles (user_id, role_identifier, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, role_identifier) DO NOTHING`, userID, role)
	if err != nil {
		return User{}, err
	}
	return r.Get(ctx, userID)
}

// RemoveExtraRole detaches an additional role.
func (r *PGRepository) RemoveExtraRole(ctx context.Context, userID int64, role string) (User, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_extra_roles WHERE user_id = $1 AND role_identifier = $2`, userID, role)
	if err != nil {
		return User{}, err
	}
	if tag.RowsAffected() == 0 {
		return User{}, httpx.ErrNotFound
	}
	return r.Get(ctx, userID)
}

var _ Repository = (*PGRepository)(nil)
