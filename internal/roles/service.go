package roles

import (
	"context"
	"sort"

	"github.com/eureka-corp/eureka/internal/rbac"
)

// Lister loads roles with their permissions. *rbac.Service satisfies it.
type Lister interface {
	ListRoles(ctx context.Context) ([]rbac.Role, error)
}

// Service exposes roles for the read-only roles page.
type Service struct {
	roles Lister
}

// NewService builds Service instance.
func NewService(roles Lister) *Service {
	return &Service{roles: roles}
}

// ListRoles returns every role with its permissions rendered in the
// action:entity:access notation, sorted.
func (s *Service) ListRoles(ctx context.Context) ([]View, error) {
	roles, err := s.roles.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(roles))
	for _, role := range roles {
		perms := make([]string, 0, len(role.Permissions))
		for _, p := range role.Permissions {
			perms = append(perms, p.String())
		}
		sort.Strings(perms)
		out = append(out, View{ID: role.ID, Name: role.Name, Description: role.Description, Permissions: perms})
	}
	return out, nil
}
