package rbac

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedPermission is returned for permission strings that do not follow
// action:entity[:access[,access...]] or use values outside the enumerations.
var ErrMalformedPermission = errors.New("rbac: malformed permission")

// Query is a parsed permission string. A nil Access matches any stored scope.
type Query struct {
	Action Action   `json:"action"`
	Entity Entity   `json:"entity"`
	Access []Access `json:"access,omitempty"`
}

// ParsePermission parses "action:entity" or "action:entity:access[,access...]".
func ParsePermission(s string) (Query, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Query{}, fmt.Errorf("%w: %q", ErrMalformedPermission, s)
	}
	q := Query{Action: Action(parts[0]), Entity: Entity(parts[1])}
	if !q.Action.Valid() {
		return Query{}, fmt.Errorf("%w: unknown action %q", ErrMalformedPermission, parts[0])
	}
	if !q.Entity.Valid() {
		return Query{}, fmt.Errorf("%w: unknown entity %q", ErrMalformedPermission, parts[1])
	}
	if len(parts) == 3 {
		for _, raw := range strings.Split(parts[2], ",") {
			access := Access(raw)
			if !access.Valid() {
				return Query{}, fmt.Errorf("%w: unknown access %q", ErrMalformedPermission, raw)
			}
			q.Access = append(q.Access, access)
		}
	}
	return q, nil
}

// MustParsePermission is ParsePermission for literals; it panics on error.
func MustParsePermission(s string) Query {
	q, err := ParsePermission(s)
	if err != nil {
		panic(err)
	}
	return q
}

// String renders the query back into permission-string form.
func (q Query) String() string {
	s := string(q.Action) + ":" + string(q.Entity)
	if len(q.Access) == 0 {
		return s
	}
	scopes := make([]string, len(q.Access))
	for i, a := range q.Access {
		scopes[i] = string(a)
	}
	return s + ":" + strings.Join(scopes, ",")
}

// Matches reports whether the stored permission satisfies the query.
func (q Query) Matches(p Permission) bool {
	if p.Entity != q.Entity || p.Action != q.Action {
		return false
	}
	if len(q.Access) == 0 {
		return true
	}
	for _, a := range q.Access {
		if a == p.Access {
			return true
		}
	}
	return false
}

// Permission checks used by the route handlers.
var (
	CreateUser         = MustParsePermission("create:user")
	UpdateAnyUser      = MustParsePermission("update:user:any")
	DeleteAnyUser      = MustParsePermission("delete:user:any")
	ReadOwnOrAnyUser   = MustParsePermission("read:user:own,any")
	UpdateOwnOrAnyUser = MustParsePermission("update:user:own,any")
	CreateReview       = MustParsePermission("create:review")
	UpdateReview       = MustParsePermission("update:review")
)
