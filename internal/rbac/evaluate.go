package rbac

// HasPermission reports whether any of the actor's roles holds a permission
// matching q. A nil actor never has a permission.
func HasPermission(actor *Actor, q Query) bool {
	if actor == nil {
		return false
	}
	for _, role := range actor.Roles {
		for _, p := range role.Permissions {
			if q.Matches(p) {
				return true
			}
		}
	}
	return false
}

// HasRole reports whether the actor holds a role with the given name.
func HasRole(actor *Actor, name string) bool {
	if actor == nil {
		return false
	}
	for _, role := range actor.Roles {
		if role.Name == name {
			return true
		}
	}
	return false
}

// Can parses perm and evaluates it against the actor. Malformed strings are
// treated as not granted.
func Can(actor *Actor, perm string) bool {
	q, err := ParsePermission(perm)
	if err != nil {
		return false
	}
	return HasPermission(actor, q)
}
