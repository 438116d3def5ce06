package project

import (
	"fmt"

	"github.com/potooio/herald/internal/strategies/base"
	"github.com/potooio/herald/internal/types"
)

// BudgetAlertThreshold is the spend ratio at which a budget alert fires.
const BudgetAlertThreshold = 0.80

// Strategy handles project updates.
type Strategy struct{}

// New creates the project strategy.
func New() *Strategy {
	return &Strategy{}
}

// Kind implements types.Strategy.
func (s *Strategy) Kind() types.EntityKind { return types.EntityKindProject }

// Detect implements types.Strategy.
func (s *Strategy) Detect(before *types.Entity, patch types.Patch) (types.ChangeSet, error) {
	if patch.Kind != "" && patch.Kind != types.EntityKindProject {
		return nil, fmt.Errorf("%w: patch kind %q", types.ErrKindMismatch, patch.Kind)
	}
	cs := types.ChangeSet{}
	if before == nil {
		cs[types.FieldCreated] = types.Change{}
		return cs, nil
	}
	if before.Kind != types.EntityKindProject || before.Project == nil {
		return nil, fmt.Errorf("%w: before kind %q", types.ErrKindMismatch, before.Kind)
	}
	p := patch.Project
	if p == nil {
		return cs, nil
	}
	b := before.Project

	base.DiffString(cs, types.FieldStage, b.Stage, p.Stage)
	base.DiffString(cs, types.FieldPriority, b.Priority, p.Priority)
	base.DiffTime(cs, types.FieldDueDate, b.DueDate, p.DueDate)
	base.DiffMembers(cs, types.FieldTeamMembers, b.TeamMemberIDs, p.TeamMemberIDs)

	if p.BudgetSpent != nil {
		budget := b.Budget
		if p.Budget != nil {
			budget = p.Budget
		}
		if ch, crossed := base.ThresholdCrossing(budget, b.BudgetSpent, *p.BudgetSpent, BudgetAlertThreshold); crossed {
			cs[types.FieldBudgetThreshold] = ch
		}
	}
	return cs, nil
}

// Resolve implements types.Strategy.
func (s *Strategy) Resolve(cs types.ChangeSet, snap types.Snapshot) []types.NotificationEvent {
	p := snap.Entity.Project
	if p == nil || cs.Empty() {
		return nil
	}

	common := types.Params{
		"projectId":    p.ID,
		"projectName":  p.Name,
		"actorName":    snap.ActorName(),
		"stage":        p.Stage,
		"priority":     p.Priority,
		types.ParamURL: base.EntityURL(snap.BaseURL, types.EntityKindProject, p.ID),
	}
	newEvent := func(t types.EventType, rule types.RecipientRule, extra types.Params) types.NotificationEvent {
		return base.NewEvent(t, rule, types.EntityKindProject, p.ID, base.Clone(common, extra))
	}

	var events []types.NotificationEvent

	if cs.Has(types.FieldCreated) {
		events = append(events, newEvent(types.EventProjectCreated, types.RuleTeam, types.Params{
			types.ParamTitle:       fmt.Sprintf("New project: %s", p.Name),
			types.ParamDescription: fmt.Sprintf("%s created project %s", snap.ActorName(), p.Name),
		}))
	}

	if ch, ok := cs[types.FieldStage]; ok {
		events = append(events, newEvent(types.EventProjectStatusChanged, types.RuleTeam, statusParams(p, "stage", ch)))
		if base.OneOf(ch.NewString(), types.ProjectStageCompleted, types.ProjectStageDelivered) {
			events = append(events, newEvent(types.EventProjectCompleted, types.RuleTeam, types.Params{
				types.ParamTitle:       fmt.Sprintf("Project %s is %s", p.Name, ch.NewString()),
				types.ParamDescription: fmt.Sprintf("%s marked %s as %s", snap.ActorName(), p.Name, ch.NewString()),
			}))
		}
	}

	if ch, ok := cs[types.FieldPriority]; ok {
		events = append(events, newEvent(types.EventProjectStatusChanged, types.RuleTeam, statusParams(p, "priority", ch)))
	}

	if ch, ok := cs[types.FieldDueDate]; ok {
		events = append(events, newEvent(types.EventProjectDeadlineChanged, types.RuleTeam, types.Params{
			"oldDueDate":           base.FormatAny(ch.Old),
			"newDueDate":           base.FormatAny(ch.New),
			types.ParamTitle:       fmt.Sprintf("Deadline changed for %s", p.Name),
			types.ParamDescription: fmt.Sprintf("Due date moved from %s to %s", base.FormatAny(ch.Old), base.FormatAny(ch.New)),
		}))
	}

	if ch, ok := cs[types.FieldBudgetThreshold]; ok && ch.Crossed {
		budget := 0.0
		if p.Budget != nil {
			budget = *p.Budget
		}
		events = append(events, newEvent(types.EventBudgetAlert, types.RuleTeamAndManager, types.Params{
			"budget":               budget,
			"budgetSpent":          p.BudgetSpent,
			"percentage":           fmt.Sprintf("%.0f", ch.New),
			"threshold":            fmt.Sprintf("%.0f", BudgetAlertThreshold*100),
			types.ParamTitle:       fmt.Sprintf("Budget alert for %s", p.Name),
			types.ParamDescription: fmt.Sprintf("%s has used %.0f%% of its budget", p.Name, ch.New),
		}))
	}

	if ch, ok := cs[types.FieldTeamMembers]; ok {
		for _, id := range ch.Added {
			params := base.Clone(common, types.Params{
				"memberId":             id,
				"memberName":           snap.UserName(id),
				types.ParamTitle:       fmt.Sprintf("You were added to %s", p.Name),
				types.ParamDescription: fmt.Sprintf("%s added you to the %s team", snap.ActorName(), p.Name),
			})
			events = append(events, base.ForUsers(types.EventTeamMemberAdded, types.EntityKindProject, p.ID, params, id))
		}
		for _, id := range ch.Removed {
			params := base.Clone(common, types.Params{
				"memberId":             id,
				"memberName":           snap.UserName(id),
				types.ParamTitle:       fmt.Sprintf("You were removed from %s", p.Name),
				types.ParamDescription: fmt.Sprintf("%s removed you from the %s team", snap.ActorName(), p.Name),
			})
			events = append(events, base.ForUsers(types.EventTeamMemberRemoved, types.EntityKindProject, p.ID, params, id))
		}
	}

	return events
}

func statusParams(p *types.Project, field string, ch types.Change) types.Params {
	return types.Params{
		"field":                field,
		"oldValue":             base.FormatAny(ch.Old),
		"newValue":             base.FormatAny(ch.New),
		types.ParamTitle:       fmt.Sprintf("Project %s %s changed", p.Name, field),
		types.ParamDescription: fmt.Sprintf("%s changed from %s to %s", field, base.FormatAny(ch.Old), base.FormatAny(ch.New)),
	}
}
