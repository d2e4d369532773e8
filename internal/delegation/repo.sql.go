package delegation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

const delegationColumns = `id, delegator_user_id, delegate_user_id, route_id, active, expires_at, created_at, updated_at`

func scanDelegation(row pgx.Row) (Delegation, error) {
	var d Delegation
	err := row.Scan(&d.ID, &d.DelegatorID, &d.DelegateID, &d.RouteID, &d.Active, &d.ExpiresAt, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// Create inserts a delegation. A second active delegation for the same
// delegator/delegate/route triple surfaces as httpx.ErrDuplicate.
func (r *PGRepository) Create(ctx context.Context, d Delegation) (Delegation, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO delegations (delegator_user_id, delegate_user_id, route_id, active, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, NOW(), NOW())
		RETURNING `+delegationColumns,
		d.DelegatorID, d.DelegateID, d.RouteID, d.ExpiresAt)
	created, err := scanDelegation(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Delegation{}, fmt.Errorf("%w: delegation already active for this route", httpx.ErrDuplicate)
		}
		return Delegation{}, err
	}
	return created, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Update writes the editable fields (route, expiry).
func (r *PGRepository) Update(ctx context.Context, d Delegation) (Delegation, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE delegations SET route_id = $2, expires_at = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+delegationColumns,
		d.ID, d.RouteID, d.ExpiresAt)
	updated, err := scanDelegation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Delegation{}, httpx.ErrNotFound
		}
		return Delegation{}, err
	}
	return updated, nil
}

// SetActive toggles the active flag.
func (r *PGRepository) SetActive(ctx context.Context, id int64, active bool) (Delegation, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE delegations SET active = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+delegationColumns, id, active)
	d, err := scanDelegation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Delegation{}, httpx.ErrNotFound
		}
		return Delegation{}, err
	}
	return d, nil
}

// Get fetches a delegation by ID.
func (r *PGRepository) Get(ctx context.Context, id int64) (Delegation, error) {
	d, err := scanDelegation(r.pool.QueryRow(ctx, `SELECT `+delegationColumns+` FROM delegations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Delegation{}, httpx.ErrNotFound
		}
		return Delegation{}, err
	}
	return d, nil
}

// List returns a filtered page plus the total match count.
func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]Delegation, int, error) {
	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filters.UserID != 0 {
		p := arg(filters.UserID)
		where = append(where, fmt.Sprintf("(delegator_user_id = %s OR delegate_user_id = %s)", p, p))
	}
	if filters.RouteID != 0 {
		where = append(where, "route_id = "+arg(filters.RouteID))
	}
	if filters.Active != nil {
		where = append(where, "active = "+arg(*filters.Active))
	}
	whereSQL := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM delegations WHERE `+whereSQL, args...).Scan(&total); err != nil {
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
	query := fmt.Sprintf(`SELECT %s FROM delegations WHERE %s ORDER BY created_at DESC, id DESC LIMIT %s OFFSET %s`,
		delegationColumns, whereSQL, arg(limit), arg((page-1)*limit))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []Delegation
	for rows.Next() {
		d, err := scanDelegation(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, d)
	}
	return list, total, rows.Err()
}

// IsDelegated checks for a live delegation without touching expired rows.
func (r *PGRepository) IsDelegated(ctx context.Context, delegateID, routeID int64, now time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM delegations
			WHERE active AND delegate_user_id = $1 AND route_id = $2
			  AND (expires_at IS NULL OR expires_at > $3)
		)`, delegateID, routeID, now).Scan(&exists)
	return exists, err
}

// ExpiringBetween returns active delegations expiring inside [from, to).
func (r *PGRepository) ExpiringBetween(ctx context.Context, from, to time.Time) ([]Delegation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+delegationColumns+` FROM delegations
		WHERE active AND expires_at IS NOT NULL AND expires_at >= $1 AND expires_at < $2
		ORDER BY expires_at`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Delegation
	for rows.Next() {
		d, err := scanDelegation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
