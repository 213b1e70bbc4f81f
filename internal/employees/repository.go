package employees

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eureka-corp/eureka/internal/platform/db"
	"github.com/eureka-corp/eureka/internal/rbac"
	"github.com/eureka-corp/eureka/internal/shared"
)

// Repository provides PostgreSQL backed persistence for employees.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const listEmployees = `
SELECT u.id, u.email, u.name, u.created_at, u.updated_at
FROM users u
WHERE EXISTS (
	SELECT 1 FROM user_roles ur JOIN roles r ON r.id = ur.role_id
	WHERE ur.user_id = u.id AND r.name = $1
)
ORDER BY u.created_at, u.id`

// ListEmployees returns users holding the employee role, oldest first.
func (r *Repository) ListEmployees(ctx context.Context) ([]Employee, error) {
	rows, err := r.pool.Query(ctx, listEmployees, rbac.RoleEmployee)
	if err != nil {
		return nil, fmt.Errorf("employees: list: %w", err)
	}
	defer rows.Close()
	var out []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.Email, &e.Name, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("employees: list: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const searchEmployees = `
SELECT u.id, u.name, u.email
FROM users u
WHERE lower(u.name) LIKE lower($1) ESCAPE '\'
  AND EXISTS (
	SELECT 1 FROM user_roles ur JOIN roles r ON r.id = ur.role_id
	WHERE ur.user_id = u.id AND r.name = $2
)
ORDER BY u.created_at, u.id
LIMIT $3`

// SearchEmployees returns employees whose name starts with prefix, ignoring case.
func (r *Repository) SearchEmployees(ctx context.Context, prefix string, limit int) ([]Summary, error) {
	rows, err := r.pool.Query(ctx, searchEmployees, escapeLike(prefix)+"%", rbac.RoleEmployee, limit)
	if err != nil {
		return nil, fmt.Errorf("employees: search: %w", err)
	}
	defer rows.Close()
	out := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.Email); err != nil {
			return nil, fmt.Errorf("employees: search: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetEmployee loads any user account by id.
func (r *Repository) GetEmployee(ctx context.Context, id int64) (Employee, error) {
	var e Employee
	err := r.pool.QueryRow(ctx, `SELECT id, email, name, created_at, updated_at FROM users WHERE id = $1`, id).
		Scan(&e.ID, &e.Email, &e.Name, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, shared.ErrNotFound
		}
		return Employee{}, fmt.Errorf("employees: get: %w", err)
	}
	return e, nil
}

// UpdateEmployee changes email and name. The email must stay unique.
func (r *Repository) UpdateEmployee(ctx context.Context, id int64, in UpdateInput) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET email = $2, name = $3, updated_at = NOW() WHERE id = $1`, id, in.Email, in.Name)
	if err != nil {
		if db.IsUniqueViolation(err, "users_email_key") {
			return shared.ErrDuplicateEmail
		}
		return fmt.Errorf("employees: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RenameUser changes only the display name.
func (r *Repository) RenameUser(ctx context.Context, id int64, name string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET name = $2, updated_at = NOW() WHERE id = $1`, id, name)
	if err != nil {
		return fmt.Errorf("employees: rename: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteEmployee removes the account. Roles, sessions, reviews and
// assignments cascade.
func (r *Repository) DeleteEmployee(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("employees: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

var _ RepositoryPort = (*Repository)(nil)
