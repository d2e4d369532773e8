package roles

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

const roleColumns = `id, identifier, name, domain, description, icon, color, active, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Identifier, &role.Name, &role.Domain, &role.Description, &role.Icon, &role.Color, &role.Active, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

// Create inserts a catalog entry. Identifier collisions surface as
// httpx.ErrDuplicate.
func (r *PGRepository) Create(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO roles (identifier, name, domain, description, icon, color, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW(), NOW())
		RETURNING `+roleColumns,
		role.Identifier, role.Name, role.Domain, role.Description, role.Icon, role.Color)
	created, err := scanRole(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Role{}, fmt.Errorf("%w: role %q", httpx.ErrDuplicate, role.Identifier)
		}
		return Role{}, err
	}
	return created, nil
}

// Update writes the mutable fields of an existing entry.
func (r *PGRepository) Update(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE roles SET name = $2, description = $3, icon = $4, color = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+roleColumns,
		role.ID, role.Name, role.Description, role.Icon, role.Color)
	updated, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, httpx.ErrNotFound
		}
		return Role{}, err
	}
	return updated, nil
}

// SetActive toggles the active flag without touching anything else.
func (r *PGRepository) SetActive(ctx context.Context, id int64, active bool) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE roles SET active = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+roleColumns, id, active)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, httpx.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// Get fetches an entry by ID.
func (r *PGRepository) Get(ctx context.Context, id int64) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, httpx.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// GetByIdentifier fetches an entry by its stable identifier.
func (r *PGRepository) GetByIdentifier(ctx context.Context, identifier string) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE identifier = $1`, identifier))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, httpx.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// List returns a filtered page plus the unfiltered match count.
func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]Role, int, error) {
	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		p := arg("%" + search + "%")
		where = append(where, fmt.Sprintf("(identifier ILIKE %s OR name ILIKE %s)", p, p))
	}
	if filters.Domain != "" {
		where = append(where, "domain = "+arg(filters.Domain))
	}
	if filters.Active != nil {
		where = append(where, "active = "+arg(*filters.Active))
	}
	whereSQL := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM roles WHERE `+whereSQL, args...).Scan(&total); err != nil {
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
	query := fmt.Sprintf(`SELECT %s FROM roles WHERE %s ORDER BY identifier LIMIT %s OFFSET %s`,
		roleColumns, whereSQL, arg(limit), arg((page-1)*limit))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, role)
	}
	return list, total, rows.Err()
}

// ListActive returns every active entry ordered by identifier.
func (r *PGRepository) ListActive(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE active ORDER BY identifier`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, role)
	}
	return list, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
