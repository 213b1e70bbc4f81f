package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// DBTX is the subset of pgxpool.Pool used by the service.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service loads roles and actor snapshots from PostgreSQL.
type Service struct {
	db DBTX
}

// NewService constructs a Service backed by the provided pool.
func NewService(db DBTX) *Service {
	return &Service{db: db}
}

const actorRolesQuery = `
SELECT r.id, r.name, r.description, p.entity, p.action, p.access
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id
LEFT JOIN role_permissions rp ON rp.role_id = r.id
LEFT JOIN permissions p ON p.id = rp.permission_id
WHERE ur.user_id = $1
ORDER BY r.name, p.entity, p.action, p.access`

// LoadActor fetches the user and the permission bundles of all its roles.
func (s *Service) LoadActor(ctx context.Context, userID int64) (*Actor, error) {
	actor := &Actor{}
	err := s.db.QueryRow(ctx, `SELECT id, email, name FROM users WHERE id = $1`, userID).
		Scan(&actor.ID, &actor.Email, &actor.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("rbac: load actor: %w", err)
	}
	rows, err := s.db.Query(ctx, actorRolesQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: load actor roles: %w", err)
	}
	roles, err := scanRoleRows(rows)
	if err != nil {
		return nil, fmt.Errorf("rbac: load actor roles: %w", err)
	}
	actor.Roles = roles
	return actor, nil
}

const listRolesQuery = `
SELECT r.id, r.name, r.description, p.entity, p.action, p.access
FROM roles r
LEFT JOIN role_permissions rp ON rp.role_id = r.id
LEFT JOIN permissions p ON p.id = rp.permission_id
ORDER BY r.name, p.entity, p.action, p.access`

// ListRoles returns every role with its permissions ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.db.Query(ctx, listRolesQuery)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	roles, err := scanRoleRows(rows)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	return roles, nil
}

// AssignRole grants the named role to a user. Assigning a held role is a no-op.
func (s *Service) AssignRole(ctx context.Context, userID int64, roleName string) error {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = $2
		ON CONFLICT DO NOTHING`, userID, roleName)
	if err != nil {
		return fmt.Errorf("rbac: assign role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1)`, roleName).Scan(&exists); err != nil {
			return fmt.Errorf("rbac: assign role: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

// scanRoleRows folds (role, permission) rows into roles. Rows must be ordered
// by role so that each role's permissions are contiguous.
func scanRoleRows(rows pgx.Rows) ([]Role, error) {
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var (
			id                     int64
			name, description      string
			entity, action, access pgtype.Text
		)
		if err := rows.Scan(&id, &name, &description, &entity, &action, &access); err != nil {
			return nil, err
		}
		if len(roles) == 0 || roles[len(roles)-1].ID != id {
			roles = append(roles, Role{ID: id, Name: name, Description: description})
		}
		if !entity.Valid {
			continue
		}
		current := &roles[len(roles)-1]
		current.Permissions = append(current.Permissions, Permission{
			Entity: Entity(entity.String),
			Action: Action(action.String),
			Access: Access(access.String),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}
