package rbac

// Entity names a kind of record guarded by permissions.
type Entity string

// Action names an operation on an entity.
type Action string

// Access scopes a permission to the actor's own records or to any record.
type Access string

const (
	EntityUser   Entity = "user"
	EntityReview Entity = "review"
)

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

const (
	AccessOwn Access = "own"
	AccessAny Access = "any"
)

// Well-known role names provisioned by the seed data.
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

// Valid reports whether e belongs to the closed set of entities.
func (e Entity) Valid() bool {
	switch e {
	case EntityUser, EntityReview:
		return true
	}
	return false
}

// Valid reports whether a belongs to the closed set of actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Valid reports whether a belongs to the closed set of access scopes.
func (a Access) Valid() bool {
	return a == AccessOwn || a == AccessAny
}

// Permission is a capability grant stored against a role.
type Permission struct {
	Entity Entity `json:"entity"`
	Action Action `json:"action"`
	Access Access `json:"access"`
}

// String renders the grant in permission-string form.
func (p Permission) String() string {
	return string(p.Action) + ":" + string(p.Entity) + ":" + string(p.Access)
}

// Role is a named bundle of permissions.
type Role struct {
	ID          int64
	Name        string
	Description string
	Permissions []Permission
}

// Actor is the authenticated user together with a snapshot of its roles.
type Actor struct {
	ID    int64
	Email string
	Name  string
	Roles []Role
}

// Permissions returns the union of the actor's role permissions.
func (a *Actor) Permissions() []Permission {
	if a == nil {
		return nil
	}
	seen := make(map[Permission]struct{})
	var perms []Permission
	for _, role := range a.Roles {
		for _, p := range role.Permissions {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			perms = append(perms, p)
		}
	}
	return perms
}

// RoleNames lists the names of the actor's roles.
func (a *Actor) RoleNames() []string {
	if a == nil {
		return nil
	}
	names := make([]string, 0, len(a.Roles))
	for _, role := range a.Roles {
		names = append(names, role.Name)
	}
	return names
}
