package task

import (
	"encoding/json"
	"io"
	"time"

	"github.com/samber/mo"

	"taskviewer/pkg/errs"
)

// Column is an assignable task column. The set is closed.
type Column string

const (
	ColTitle    Column = "title"
	ColAbout    Column = "about"
	ColAssignee Column = "assignee" // value is a username, resolved by the store
	ColStatus   Column = "status"
	ColPriority Column = "priority"
	ColDue      Column = "due"
	ColTracked  Column = "tracked"
	ColUpdated  Column = "updated_at"
)

// AssignOp says how an assignment combines with the stored value.
type AssignOp int

const (
	OpSet   AssignOp = iota // column = value
	OpAdd                   // column = column + value
	OpRaise                 // column = max(column, value)
)

// Assignment sets one column. Value is always bound as a query parameter.
type Assignment struct {
	Column Column
	Op     AssignOp
	Value  any
}

// UpdateSpec is an ordered list of assignments ending with updated_at.
type UpdateSpec []Assignment

// UpdateRequest is a partial task update. Absent fields are left alone.
type UpdateRequest struct {
	Title    mo.Option[string]
	About    mo.Option[string]
	Username mo.Option[string] // new assignee
	Status   mo.Option[string]
	Priority mo.Option[int]
	Estimate mo.Option[time.Time] // due date
	Tracked  mo.Option[int]       // tracked minutes; never lowers the stored value
}

type updateWire struct {
	Title    *string    `json:"title"`
	About    *string    `json:"about"`
	Username *string    `json:"username"`
	Status   *string    `json:"status"`
	Priority *int       `json:"priority"`
	Estimate *time.Time `json:"estimate"`
	Tracked  *int       `json:"tracked"`
}

// DecodeUpdate reads a JSON update request. Unknown fields are rejected.
// A field that is null or missing is absent.
func DecodeUpdate(r io.Reader) (UpdateRequest, error) {
	var w updateWire
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return UpdateRequest{}, errs.Validation("update body: %v", err)
	}
	return UpdateRequest{
		Title:    mo.PointerToOption(w.Title),
		About:    mo.PointerToOption(w.About),
		Username: mo.PointerToOption(w.Username),
		Status:   mo.PointerToOption(w.Status),
		Priority: mo.PointerToOption(w.Priority),
		Estimate: mo.PointerToOption(w.Estimate),
		Tracked:  mo.PointerToOption(w.Tracked),
	}, nil
}

// BuildUpdate turns req into an UpdateSpec: one assignment per present
// field in the order title, about, assignee, status, priority, estimate,
// tracked, then updated_at = now. A request with no fields is rejected.
// Tracked time only moves up: a smaller value leaves it unchanged.
func BuildUpdate(req UpdateRequest, now time.Time) (UpdateSpec, error) {
	var spec UpdateSpec
	if v, ok := req.Title.Get(); ok {
		if err := checkTitle(v); err != nil {
			return nil, err
		}
		spec = append(spec, Assignment{Column: ColTitle, Value: v})
	}
	if v, ok := req.About.Get(); ok {
		spec = append(spec, Assignment{Column: ColAbout, Value: v})
	}
	if v, ok := req.Username.Get(); ok {
		if v == "" {
			return nil, errs.Validation("assignee username is empty")
		}
		spec = append(spec, Assignment{Column: ColAssignee, Value: v})
	}
	if v, ok := req.Status.Get(); ok {
		if err := checkStatus(v); err != nil {
			return nil, err
		}
		spec = append(spec, Assignment{Column: ColStatus, Value: v})
	}
	if v, ok := req.Priority.Get(); ok {
		if err := checkPriority(v); err != nil {
			return nil, err
		}
		spec = append(spec, Assignment{Column: ColPriority, Value: v})
	}
	if v, ok := req.Estimate.Get(); ok {
		spec = append(spec, Assignment{Column: ColDue, Value: v.UTC()})
	}
	if v, ok := req.Tracked.Get(); ok {
		if v < 0 {
			return nil, errs.Validation("tracked minutes %d must not be negative", v)
		}
		spec = append(spec, Assignment{Column: ColTracked, Op: OpRaise, Value: v})
	}
	if len(spec) == 0 {
		return nil, errs.Validation("update changes nothing")
	}
	return append(spec, Assignment{Column: ColUpdated, Value: now}), nil
}

// TrackSpec adds minutes to the stored tracked time relative to its
// current value, so concurrent calls never lose an increment.
func TrackSpec(minutes int, now time.Time) (UpdateSpec, error) {
	if minutes < 0 {
		return nil, errs.Validation("tracked minutes %d must not be negative", minutes)
	}
	return UpdateSpec{
		{Column: ColTracked, Op: OpAdd, Value: minutes},
		{Column: ColUpdated, Value: now},
	}, nil
}
