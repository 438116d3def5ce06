package notifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/potooio/herald/internal/types"
)

func TestResolveRecipients(t *testing.T) {
	project := types.Entity{Kind: types.EntityKindProject, Project: &types.Project{
		ID: "p1", ManagerID: "m1", TeamMemberIDs: []string{"u1", "u2", "u1"},
	}}
	managerInTeam := types.Entity{Kind: types.EntityKindProject, Project: &types.Project{
		ID: "p1", ManagerID: "u1", TeamMemberIDs: []string{"u1", "u2"},
	}}
	noManager := types.Entity{Kind: types.EntityKindProject, Project: &types.Project{
		ID: "p1", TeamMemberIDs: []string{"u1"},
	}}
	task := types.Entity{Kind: types.EntityKindTask, Task: &types.Task{ID: "t1", AssignedTo: "a1"}}
	unassigned := types.Entity{Kind: types.EntityKindTask, Task: &types.Task{ID: "t1"}}
	client := types.Entity{Kind: types.EntityKindClient, Client: &types.Client{
		ID: "c1", OwnerID: "o1", StakeholderIDs: []string{"s1", "o1"},
	}}

	tests := []struct {
		name   string
		rule   types.RecipientRule
		target []string
		entity types.Entity
		want   []string
	}{
		{"team dedupes", types.RuleTeam, nil, project, []string{"u1", "u2"}},
		{"team and manager", types.RuleTeamAndManager, nil, project, []string{"u1", "u2", "m1"}},
		{"manager already on team", types.RuleTeamAndManager, nil, managerInTeam, []string{"u1", "u2"}},
		{"missing manager contributes nobody", types.RuleTeamAndManager, nil, noManager, []string{"u1"}},
		{"assignee", types.RuleAssignee, nil, task, []string{"a1"}},
		{"no assignee", types.RuleAssignee, nil, unassigned, nil},
		{"client owner", types.RuleClientOwner, nil, client, []string{"o1"}},
		{"client stakeholders", types.RuleClientStakeholders, nil, client, []string{"o1", "s1"}},
		{"explicit", types.RuleExplicit, []string{"x1", "", "x1", "x2"}, project, []string{"x1", "x2"}},
		{"rule for other kind", types.RuleAssignee, nil, project, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := types.NotificationEvent{Rule: tt.rule, TargetUserIDs: tt.target}
			got := ResolveRecipients(ev, types.Snapshot{Entity: tt.entity})
			assert.Equal(t, tt.want, got)
		})
	}
}
