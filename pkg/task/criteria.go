package task

import (
	"sort"
	"strconv"

	"github.com/samber/mo"

	"taskviewer/pkg/errs"
)

// Field is a filterable task attribute. The set is closed.
type Field string

const (
	FieldUsername Field = "username"
	FieldEmail    Field = "email"
	FieldPriority Field = "priority"
	FieldStatus   Field = "status"
)

// Op is a comparison operator in a filter clause.
type Op string

const OpEq Op = "="

// Clause is one AND-ed predicate of a FilterSpec. Value is always bound as
// a query parameter.
type Clause struct {
	Field Field
	Op    Op
	Value any
}

// FilterSpec is an ordered conjunction of clauses.
type FilterSpec []Clause

// SearchCriteria selects tasks. Absent fields are not filtered on.
type SearchCriteria struct {
	Username mo.Option[string]
	Email    mo.Option[string]
	Priority mo.Option[int]
	Status   mo.Option[string]
}

// ParseCriteria reads criteria from caller-supplied key/value pairs.
// Keys outside the filterable set are rejected.
func ParseCriteria(fields map[string]string) (SearchCriteria, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var c SearchCriteria
	for _, k := range keys {
		v := fields[k]
		switch Field(k) {
		case FieldUsername:
			c.Username = mo.Some(v)
		case FieldEmail:
			c.Email = mo.Some(v)
		case FieldPriority:
			p, err := strconv.Atoi(v)
			if err != nil {
				return SearchCriteria{}, errs.Validation("priority %q is not a number", v)
			}
			c.Priority = mo.Some(p)
		case FieldStatus:
			c.Status = mo.Some(v)
		default:
			return SearchCriteria{}, errs.Validation("unknown search field %q", k)
		}
	}
	return c, nil
}

// BuildFilter turns c into a FilterSpec with one equality clause per
// present field, in the order username, email, priority, status.
func BuildFilter(c SearchCriteria) (FilterSpec, error) {
	var spec FilterSpec
	if v, ok := c.Username.Get(); ok {
		if v == "" {
			return nil, errs.Validation("username filter is empty")
		}
		spec = append(spec, Clause{Field: FieldUsername, Op: OpEq, Value: v})
	}
	if v, ok := c.Email.Get(); ok {
		if v == "" {
			return nil, errs.Validation("email filter is empty")
		}
		spec = append(spec, Clause{Field: FieldEmail, Op: OpEq, Value: v})
	}
	if v, ok := c.Priority.Get(); ok {
		if err := checkPriority(v); err != nil {
			return nil, err
		}
		spec = append(spec, Clause{Field: FieldPriority, Op: OpEq, Value: v})
	}
	if v, ok := c.Status.Get(); ok {
		if err := checkStatus(v); err != nil {
			return nil, err
		}
		spec = append(spec, Clause{Field: FieldStatus, Op: OpEq, Value: v})
	}
	return spec, nil
}
