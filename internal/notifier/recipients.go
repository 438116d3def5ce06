package notifier

import (
	"github.com/potooio/herald/internal/types"
	"github.com/potooio/herald/internal/util"
)

// ResolveRecipients derives the candidate recipients of an event from the entity
// snapshot, before preferences are applied. The result is de-duplicated. A
// missing relation, such as a project without a manager, contributes nobody.
func ResolveRecipients(ev types.NotificationEvent, snap types.Snapshot) []string {
	var ids []string
	switch ev.Rule {
	case types.RuleExplicit:
		ids = ev.TargetUserIDs
	case types.RuleAssignee:
		if t := snap.Entity.Task; t != nil {
			ids = []string{t.AssignedTo}
		}
	case types.RuleTeam:
		if p := snap.Entity.Project; p != nil {
			ids = p.TeamMemberIDs
		}
	case types.RuleTeamAndManager:
		if p := snap.Entity.Project; p != nil {
			ids = append(append(ids, p.TeamMemberIDs...), p.ManagerID)
		}
	case types.RuleClientOwner:
		if c := snap.Entity.Client; c != nil {
			ids = []string{c.OwnerID}
		}
	case types.RuleClientStakeholders:
		if c := snap.Entity.Client; c != nil {
			ids = append(append(ids, c.OwnerID), c.StakeholderIDs...)
		}
	}
	return util.UniqueStrings(ids)
}
