// Package authority decides which principals may invoke which task operations.
package authority

import (
	"fmt"

	"taskviewer/pkg/errs"
)

// Role is a closed set of role tokens carried by a principal.
type Role string

const (
	Admin Role = "ADMIN"
	User  Role = "USER"
)

// Valid reports whether r is a known role token.
func (r Role) Valid() bool {
	return r == Admin || r == User
}

// ParseRole converts a stored role string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", errs.Validation("unknown role %q", s)
	}
	return r, nil
}

// Principal is the authenticated caller of an operation.
type Principal struct {
	Username string `json:"username"`
	Roles    []Role `json:"roles"`
}

// Has reports whether the principal carries role r.
func (p Principal) Has(r Role) bool {
	for _, have := range p.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// Operation names a guarded task operation.
type Operation string

const (
	Create     Operation = "create"
	Replicate  Operation = "replicate"
	Update     Operation = "update"
	Close      Operation = "close"
	Assign     Operation = "assign"
	Delete     Operation = "delete"
	Track      Operation = "track"
	Search     Operation = "search"
	ByUsername Operation = "by-username"
	View       Operation = "view"
	Open       Operation = "open"
	Activity   Operation = "activity"
)

// policy maps each operation to the roles allowed to invoke it.
// Operations missing from the map are denied to everyone.
var policy = map[Operation][]Role{
	Create:     {Admin},
	Replicate:  {Admin},
	Update:     {Admin},
	Close:      {Admin},
	Assign:     {Admin},
	Delete:     {Admin},
	Track:      {Admin, User},
	Search:     {Admin, User},
	ByUsername: {Admin, User},
	View:       {Admin, User},
	Open:       {Admin, User},
	Activity:   {Admin, User},
}

// Required returns the roles allowed to invoke op.
func Required(op Operation) []Role {
	return append([]Role(nil), policy[op]...)
}

// Allow reports whether any of roles satisfies op's requirement.
func Allow(op Operation, roles []Role) bool {
	for _, want := range policy[op] {
		for _, have := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Gate rejects principals whose roles do not satisfy an operation.
type Gate struct{}

// Check returns an error wrapping errs.ErrPermission when p may not invoke op.
func (Gate) Check(p Principal, op Operation) error {
	if Allow(op, p.Roles) {
		return nil
	}
	name := p.Username
	if name == "" {
		name = "anonymous"
	}
	return fmt.Errorf("%s may not %s: %w", name, op, errs.ErrPermission)
}
