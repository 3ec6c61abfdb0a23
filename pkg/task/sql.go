package task

import (
	"strconv"
	"strings"

	"taskviewer/pkg/errs"
)

// selectTasks reads tasks joined with their assignee. Every task query
// aliases tasks as t and users as u.
const selectTasks = `
	SELECT t.id, t.title, t.about, t.status, t.priority, t.due, t.estimate, t.tracked,
	       t.assignee, u.username, t.created_at, t.updated_at
	FROM tasks t JOIN users u ON u.id = t.assignee`

const orderTasks = ` ORDER BY t.created_at ASC, t.id ASC`

// placeholder renders the n-th (1-based) bind parameter.
type placeholder func(n int) string

func dollar(n int) string { return "$" + strconv.Itoa(n) }

func question(int) string { return "?" }

// dialect holds what differs between the SQL the stores speak.
type dialect struct {
	ph       placeholder
	greatest string // two-argument maximum
}

var (
	pgDialect     = dialect{ph: dollar, greatest: "GREATEST"}
	sqliteDialect = dialect{ph: question, greatest: "MAX"}
)

var filterColumns = map[Field]string{
	FieldUsername: "u.username",
	FieldEmail:    "u.email",
	FieldPriority: "t.priority",
	FieldStatus:   "t.status",
}

var updateColumns = map[Column]string{
	ColTitle:    "title",
	ColAbout:    "about",
	ColAssignee: "assignee",
	ColStatus:   "status",
	ColPriority: "priority",
	ColDue:      "due",
	ColTracked:  "tracked",
	ColUpdated:  "updated_at",
}

// renderWhere renders spec as a WHERE clause whose values are appended to
// args. An empty spec renders nothing.
func renderWhere(spec FilterSpec, ph placeholder, args []any) (string, []any, error) {
	if len(spec) == 0 {
		return "", args, nil
	}
	parts := make([]string, 0, len(spec))
	for _, c := range spec {
		col, ok := filterColumns[c.Field]
		if !ok {
			return "", nil, errs.Validation("unknown filter field %q", c.Field)
		}
		if c.Op != OpEq {
			return "", nil, errs.Validation("unsupported operator %q", c.Op)
		}
		args = append(args, c.Value)
		parts = append(parts, col+" = "+ph(len(args)))
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

// renderSet renders spec as the body of a SET clause. The assignee is
// resolved from its username by a parametrized lookup on users.
func renderSet(spec UpdateSpec, d dialect, args []any) (string, []any, error) {
	if len(spec) == 0 {
		return "", nil, errs.Validation("update changes nothing")
	}
	parts := make([]string, 0, len(spec))
	for _, a := range spec {
		col, ok := updateColumns[a.Column]
		if !ok {
			return "", nil, errs.Validation("unknown update column %q", a.Column)
		}
		args = append(args, a.Value)
		p := d.ph(len(args))
		switch {
		case a.Op == OpAdd && a.Column == ColTracked:
			parts = append(parts, col+" = "+col+" + "+p)
		case a.Op == OpRaise && a.Column == ColTracked:
			parts = append(parts, col+" = "+d.greatest+"("+col+", "+p+")")
		case a.Op != OpSet:
			return "", nil, errs.Validation("column %q cannot be incremented", a.Column)
		case a.Column == ColAssignee:
			parts = append(parts, col+" = (SELECT id FROM users WHERE username = "+p+")")
		default:
			parts = append(parts, col+" = "+p)
		}
	}
	return strings.Join(parts, ", "), args, nil
}

// assigneeOf returns the username carried by spec's assignee assignment.
func assigneeOf(spec UpdateSpec) string {
	for _, a := range spec {
		if a.Column == ColAssignee {
			s, _ := a.Value.(string)
			return s
		}
	}
	return ""
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.Title, &t.About, &t.Status.Value, &t.Status.Priority,
		&t.Time.Due, &t.Time.Estimate, &t.Time.Tracked,
		&t.Assignee, &t.Username, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
