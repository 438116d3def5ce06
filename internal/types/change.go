package types

import "sort"

// Field names a semantically meaningful attribute tracked by change detection.
type Field string

const (
	FieldStage           Field = "stage"
	FieldStatus          Field = "status"
	FieldPriority        Field = "priority"
	FieldProgress        Field = "progressPercentage"
	FieldBudgetThreshold Field = "budgetThreshold"
	FieldDueDate         Field = "dueDate"
	FieldTeamMembers     Field = "teamMembers"
	FieldAssignee        Field = "assignedTo"
	FieldContact         Field = "contact"
	FieldCreated         Field = "created"
)

// Contact sub-fields. They never appear as ChangeSet keys; a contact change
// lists them in Change.Fields.
const (
	FieldContactName  Field = "contactName"
	FieldContactEmail Field = "contactEmail"
	FieldPhone        Field = "phone"
)

// Change describes one detected difference.
//
// Scalar fields use Old/New. Numeric fields also carry the absolute Delta.
// Membership fields use Added/Removed instead of Old/New. Threshold fields set
// Crossed when the derived condition flipped. Composite fields list the touched
// sub-fields in Fields.
type Change struct {
	Old     any      `json:"old,omitempty"`
	New     any      `json:"new,omitempty"`
	Delta   float64  `json:"delta,omitempty"`
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Crossed bool     `json:"crossed,omitempty"`
	Fields  []Field  `json:"fields,omitempty"`
}

// ChangeSet maps a field to its detected change. It exists only for the
// duration of one update and is never persisted.
type ChangeSet map[Field]Change

// Has reports whether the field changed.
func (cs ChangeSet) Has(f Field) bool {
	_, ok := cs[f]
	return ok
}

// Empty reports whether no meaningful change was detected.
func (cs ChangeSet) Empty() bool {
	return len(cs) == 0
}

// Fields returns the changed fields in sorted order.
func (cs ChangeSet) Fields() []Field {
	out := make([]Field, 0, len(cs))
	for f := range cs {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// OldString returns Old as a string, or "" if it is not one.
func (c Change) OldString() string {
	s, _ := c.Old.(string)
	return s
}

// NewString returns New as a string, or "" if it is not one.
func (c Change) NewString() string {
	s, _ := c.New.(string)
	return s
}
