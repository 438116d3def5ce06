package task

import (
	"fmt"

	"github.com/potooio/herald/internal/strategies/base"
	"github.com/potooio/herald/internal/types"
)

// ProgressThreshold is the minimum progress jump, in percentage points, that
// produces a progress event.
const ProgressThreshold = 25.0

// Strategy handles task updates.
type Strategy struct {
	progressThreshold float64
}

// New creates the task strategy.
func New() *Strategy {
	return &Strategy{progressThreshold: ProgressThreshold}
}

// Kind implements types.Strategy.
func (s *Strategy) Kind() types.EntityKind { return types.EntityKindTask }

// Detect implements types.Strategy.
func (s *Strategy) Detect(before *types.Entity, patch types.Patch) (types.ChangeSet, error) {
	if patch.Kind != "" && patch.Kind != types.EntityKindTask {
		return nil, fmt.Errorf("%w: patch kind %q", types.ErrKindMismatch, patch.Kind)
	}
	cs := types.ChangeSet{}
	if before == nil {
		cs[types.FieldCreated] = types.Change{}
		return cs, nil
	}
	if before.Kind != types.EntityKindTask || before.Task == nil {
		return nil, fmt.Errorf("%w: before kind %q", types.ErrKindMismatch, before.Kind)
	}
	p := patch.Task
	if p == nil {
		return cs, nil
	}
	b := before.Task

	base.DiffString(cs, types.FieldStatus, b.Status, p.Status)
	base.DiffString(cs, types.FieldPriority, b.Priority, p.Priority)
	base.DiffFloat(cs, types.FieldProgress, b.ProgressPercentage, p.ProgressPercentage)
	base.DiffTime(cs, types.FieldDueDate, b.DueDate, p.DueDate)
	base.DiffString(cs, types.FieldAssignee, b.AssignedTo, p.AssignedTo)
	return cs, nil
}

// Resolve implements types.Strategy.
func (s *Strategy) Resolve(cs types.ChangeSet, snap types.Snapshot) []types.NotificationEvent {
	t := snap.Entity.Task
	if t == nil || cs.Empty() || t.AssignedTo == "" {
		return nil
	}

	common := types.Params{
		"taskId":       t.ID,
		"taskTitle":    t.Title,
		"projectName":  t.ProjectName,
		"assigneeName": snap.UserName(t.AssignedTo),
		"actorName":    snap.ActorName(),
		"status":       t.Status,
		"priority":     t.Priority,
		"dueDate":      base.FormatDate(t.DueDate),
		types.ParamURL: base.EntityURL(snap.BaseURL, types.EntityKindTask, t.ID),
	}
	newEvent := func(et types.EventType, extra types.Params) types.NotificationEvent {
		return base.NewEvent(et, types.RuleAssignee, types.EntityKindTask, t.ID, base.Clone(common, extra))
	}

	var events []types.NotificationEvent

	if cs.Has(types.FieldCreated) || cs.Has(types.FieldAssignee) {
		events = append(events, newEvent(types.EventTaskAssigned, types.Params{
			types.ParamTitle:       fmt.Sprintf("Task assigned: %s", t.Title),
			types.ParamDescription: fmt.Sprintf("%s assigned %s to you", snap.ActorName(), t.Title),
		}))
	}

	if ch, ok := cs[types.FieldStatus]; ok {
		events = append(events, newEvent(types.EventTaskStatusChanged, changeParams(t, "status", ch)))
		switch {
		case base.OneOf(ch.NewString(), types.TaskStatusCompleted):
			events = append(events, newEvent(types.EventTaskCompleted, types.Params{
				types.ParamTitle:       fmt.Sprintf("Task completed: %s", t.Title),
				types.ParamDescription: fmt.Sprintf("%s marked %s as completed", snap.ActorName(), t.Title),
			}))
		case base.OneOf(ch.NewString(), types.TaskStatusBlocked):
			events = append(events, newEvent(types.EventTaskBlocked, types.Params{
				"oldValue":             base.FormatAny(ch.Old),
				types.ParamTitle:       fmt.Sprintf("Task blocked: %s", t.Title),
				types.ParamDescription: fmt.Sprintf("%s is blocked (was %s)", t.Title, base.FormatAny(ch.Old)),
			}))
		}
	}

	if ch, ok := cs[types.FieldPriority]; ok {
		events = append(events, newEvent(types.EventTaskPriorityChanged, changeParams(t, "priority", ch)))
	}

	if ch, ok := cs[types.FieldProgress]; ok && ch.Delta >= s.progressThreshold {
		events = append(events, newEvent(types.EventTaskProgressUpdated, types.Params{
			"oldProgress":          base.FormatAny(ch.Old),
			"newProgress":          base.FormatAny(ch.New),
			"progressDelta":        fmt.Sprintf("%.0f", ch.Delta),
			types.ParamTitle:       fmt.Sprintf("Progress update: %s", t.Title),
			types.ParamDescription: fmt.Sprintf("Progress moved from %s%% to %s%%", base.FormatAny(ch.Old), base.FormatAny(ch.New)),
		}))
	}

	if ch, ok := cs[types.FieldDueDate]; ok {
		events = append(events, newEvent(types.EventTaskDueDateChanged, types.Params{
			"oldDueDate":           base.FormatAny(ch.Old),
			"newDueDate":           base.FormatAny(ch.New),
			types.ParamTitle:       fmt.Sprintf("Due date changed: %s", t.Title),
			types.ParamDescription: fmt.Sprintf("%s is now due %s", t.Title, base.FormatAny(ch.New)),
		}))
	}

	return events
}

func changeParams(t *types.Task, field string, ch types.Change) types.Params {
	return types.Params{
		"field":                field,
		"oldValue":             base.FormatAny(ch.Old),
		"newValue":             base.FormatAny(ch.New),
		types.ParamTitle:       fmt.Sprintf("Task %s changed: %s", field, t.Title),
		types.ParamDescription: fmt.Sprintf("%s changed from %s to %s", field, base.FormatAny(ch.Old), base.FormatAny(ch.New)),
	}
}
