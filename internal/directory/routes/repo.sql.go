package routes

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const routeColumns = `id, identifier, url, domain, controller, permission_key, description, active, created_at, updated_at`

func scanRoute(row pgx.Row) (Route, error) {
	var route Route
	err := row.Scan(&route.ID, &route.Identifier, &route.URL, &route.Domain, &route.Controller, &route.PermissionKey, &route.Description, &route.Active, &route.CreatedAt, &route.UpdatedAt)
	return route, err
}

// Create inserts a catalog entry; identifier collisions surface as
// httpx.ErrDuplicate.
func (r *PGRepository) Create(ctx context.Context, route Route) (Route, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO routes (identifier, url, domain, controller, permission_key, description, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW(), NOW())
		RETURNING `+routeColumns,
		route.Identifier, route.URL, route.Domain, route.Controller, route.PermissionKey, route.Description)
	created, err := scanRoute(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Route{}, fmt.Errorf("%w: route %q", httpx.ErrDuplicate, route.Identifier)
		}
		return Route{}, err
	}
	return created, nil
}

// Update writes the mutable fields of an existing entry.
func (r *PGRepository) Update(ctx context.Context, route Route) (Route, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE routes SET url = $2, controller = $3, permission_key = $4, description = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+routeColumns,
		route.ID, route.URL, route.Controller, route.PermissionKey, route.Description)
	updated, err := scanRoute(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Route{}, httpx.ErrNotFound
		}
		return Route{}, err
	}
	return updated, nil
}

// SetActive toggles the active flag.
func (r *PGRepository) SetActive(ctx context.Context, id int64, active bool) (Route, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE routes SET active = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+routeColumns, id, active)
	route, err := scanRoute(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Route{}, httpx.ErrNotFound
		}
		return Route{}, err
	}
	return route, nil
}

// Get fetches an entry by ID.
func (r *PGRepository) Get(ctx context.Context, id int64) (Route, error) {
	route, err := scanRoute(r.pool.QueryRow(ctx, `SELECT `+routeColumns+` FROM routes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Route{}, httpx.ErrNotFound
		}
		return Route{}, err
	}
	return route, nil
}

// GetByIdentifier fetches an entry by its stable identifier.
func (r *PGRepository) GetByIdentifier(ctx context.Context, identifier string) (Route, error) {
	route, err := scanRoute(r.pool.QueryRow(ctx, `SELECT `+routeColumns+` FROM routes WHERE identifier = $1`, identifier))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Route{}, httpx.ErrNotFound
		}
		return Route{}, err
	}
	return route, nil
}

// List returns a filtered page plus the total match count.
func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]Route, int, error) {
	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		p := arg("%" + search + "%")
		where = append(where, fmt.Sprintf("(identifier ILIKE %s OR url ILIKE %s)", p, p))
	}
	if filters.Domain != "" {
		where = append(where, "domain = "+arg(filters.Domain))
	}
	if filters.Active != nil {
		where = append(where, "active = "+arg(*filters.Active))
	}
	whereSQL := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM routes WHERE `+whereSQL, args...).Scan(&total); err != nil {
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
	query := fmt.Sprintf(`SELECT %s FROM routes WHERE %s ORDER BY identifier LIMIT %s OFFSET %s`,
		routeColumns, whereSQL, arg(limit), arg((page-1)*limit))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []Route
	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, route)
	}
	return list, total, rows.Err()
}

// ListActive returns every active entry ordered by identifier.
func (r *PGRepository) ListActive(ctx context.Context) ([]Route, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+routeColumns+` FROM routes WHERE active ORDER BY identifier`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Route
	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, route)
	}
	return list, rows.Err()
}

// ActiveByURL returns active routes sharing a URL within a domain.
func (r *PGRepository) ActiveByURL(ctx context.Context, domain Domain, url string, excludeID int64) ([]Route, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+routeColumns+` FROM routes WHERE active AND domain = $1 AND url = $2 AND id <> $3`, domain, url, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Route
	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, route)
	}
	return list, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
