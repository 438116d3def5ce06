package render

import "github.com/potooio/herald/internal/types"

// entry is the catalog source for one event type.
type entry struct {
	Subject  string
	Headline string
	Body     string
	Action   string
}

var catalog = map[types.EventType]entry{
	types.EventProjectCreated: {
		Subject:  "New project: {{.projectName}}",
		Headline: "A new project was created",
		Body:     "{{.actorName}} created the project {{.projectName}}. You are on the team.",
		Action:   "Open project",
	},
	types.EventProjectStatusChanged: {
		Subject:  "Project {{.field}} changed: {{.projectName}}",
		Headline: "{{.projectName}} was updated",
		Body:     "{{.actorName}} changed the {{.field}} of {{.projectName}} from {{.oldValue}} to {{.newValue}}.",
		Action:   "Open project",
	},
	types.EventProjectCompleted: {
		Subject:  "Project completed: {{.projectName}}",
		Headline: "{{.projectName}} is done",
		Body:     "{{.actorName}} marked {{.projectName}} as {{.stage}}. Thanks to everyone on the team.",
		Action:   "Open project",
	},
	types.EventProjectDeadlineApproaching: {
		Subject:  "Deadline approaching: {{.projectName}}",
		Headline: "{{.projectName}} is due soon",
		Body:     "{{.projectName}} is due on {{.dueDate}}.",
		Action:   "Open project",
	},
	types.EventProjectDeadlineChanged: {
		Subject:  "Deadline changed: {{.projectName}}",
		Headline: "New deadline for {{.projectName}}",
		Body:     "{{.actorName}} moved the deadline of {{.projectName}} from {{.oldDueDate}} to {{.newDueDate}}.",
		Action:   "Open project",
	},
	types.EventBudgetAlert: {
		Subject:  "Budget alert: {{.projectName}} at {{.percentage}}%",
		Headline: "{{.projectName}} crossed {{.threshold}}% of its budget",
		Body:     "{{.projectName}} has spent {{.budgetSpent}} of its {{.budget}} budget ({{.percentage}}%).",
		Action:   "Review budget",
	},
	types.EventTeamMemberAdded: {
		Subject:  "You were added to {{.projectName}}",
		Headline: "Welcome to the {{.projectName}} team",
		Body:     "{{.actorName}} added you to the project team of {{.projectName}}.",
		Action:   "Open project",
	},
	types.EventTeamMemberRemoved: {
		Subject:  "You were removed from {{.projectName}}",
		Headline: "Team change on {{.projectName}}",
		Body:     "{{.actorName}} removed you from the project team of {{.projectName}}.",
	},

	types.EventTaskAssigned: {
		Subject:  "Task assigned: {{.taskTitle}}",
		Headline: "You have a new task",
		Body:     "{{.actorName}} assigned {{.taskTitle}}{{if .projectName}} in {{.projectName}}{{end}} to you. Priority: {{.priority}}. Due: {{.dueDate}}.",
		Action:   "Open task",
	},
	types.EventTaskStatusChanged: {
		Subject:  "Task {{.field}} changed: {{.taskTitle}}",
		Headline: "{{.taskTitle}} was updated",
		Body:     "{{.actorName}} changed the {{.field}} of {{.taskTitle}} from {{.oldValue}} to {{.newValue}}.",
		Action:   "Open task",
	},
	types.EventTaskCompleted: {
		Subject:  "Task completed: {{.taskTitle}}",
		Headline: "{{.taskTitle}} is complete",
		Body:     "{{.actorName}} marked {{.taskTitle}} as completed.",
		Action:   "Open task",
	},
	types.EventTaskBlocked: {
		Subject:  "Task blocked: {{.taskTitle}}",
		Headline: "{{.taskTitle}} is blocked",
		Body:     "{{.actorName}} moved {{.taskTitle}} from {{.oldValue}} to blocked.",
		Action:   "Open task",
	},
	types.EventTaskPriorityChanged: {
		Subject:  "Task priority changed: {{.taskTitle}}",
		Headline: "{{.taskTitle}} has a new priority",
		Body:     "{{.actorName}} changed the priority of {{.taskTitle}} from {{.oldValue}} to {{.newValue}}.",
		Action:   "Open task",
	},
	types.EventTaskProgressUpdated: {
		Subject:  "Progress update: {{.taskTitle}}",
		Headline: "{{.taskTitle}} is at {{.newProgress}}%",
		Body:     "Progress on {{.taskTitle}} moved from {{.oldProgress}}% to {{.newProgress}}%.",
		Action:   "Open task",
	},
	types.EventTaskDueDateChanged: {
		Subject:  "Due date changed: {{.taskTitle}}",
		Headline: "New due date for {{.taskTitle}}",
		Body:     "{{.actorName}} moved the due date of {{.taskTitle}} from {{.oldDueDate}} to {{.newDueDate}}.",
		Action:   "Open task",
	},
	types.EventTaskDueSoon: {
		Subject:  "Task due soon: {{.taskTitle}}",
		Headline: "{{.taskTitle}} is due soon",
		Body:     "{{.taskTitle}} is due on {{.dueDate}}.",
		Action:   "Open task",
	},
	types.EventTaskOverdue: {
		Subject:  "Task overdue: {{.taskTitle}}",
		Headline: "{{.taskTitle}} is overdue",
		Body:     "{{.taskTitle}} was due on {{.dueDate}} and is not completed yet.",
		Action:   "Open task",
	},
	types.EventTaskCommentAdded: {
		Subject:  "New comment on {{.taskTitle}}",
		Headline: "{{.actorName}} commented on {{.taskTitle}}",
		Body:     "{{.comment}}",
		Action:   "Reply",
	},

	types.EventClientCreated: {
		Subject:  "New client: {{.clientName}}",
		Headline: "You own a new client",
		Body:     "{{.actorName}} created the client {{.clientName}}{{if .contactName}} (contact: {{.contactName}}){{end}}.",
		Action:   "Open client",
	},
	types.EventClientStatusChanged: {
		Subject:  "Client status changed: {{.clientName}}",
		Headline: "{{.clientName}} is now {{.newValue}}",
		Body:     "{{.actorName}} changed the status of {{.clientName}} from {{.oldValue}} to {{.newValue}}.",
		Action:   "Open client",
	},
	types.EventClientContactUpdated: {
		Subject:  "Contact updated: {{.clientName}}",
		Headline: "New contact details for {{.clientName}}",
		Body:     "{{.actorName}} updated {{.changedFields}}. Current contact: {{.contactName}} {{.contactEmail}}.",
		Action:   "Open client",
	},

	types.EventWeeklyReport: {
		Subject:  "Your weekly report",
		Headline: "Week in review",
		Body:     "{{.summary}}",
		Action:   "Open dashboard",
	},
	types.EventSystemAnnouncements: {
		Subject:  "{{.title}}",
		Headline: "{{.title}}",
		Body:     "{{.message}}",
	},
	types.EventMentionNotifications: {
		Subject:  "{{.actorName}} mentioned you",
		Headline: "You were mentioned",
		Body:     "{{.actorName}} mentioned you: {{.message}}",
		Action:   "View",
	},
}

// Has reports whether the catalog can render t.
func Has(t types.EventType) bool {
	_, ok := catalog[t]
	return ok
}

// EventTypes returns every renderable event type.
func EventTypes() []types.EventType {
	out := make([]types.EventType, 0, len(catalog))
	for t := range catalog {
		out = append(out, t)
	}
	return out
}
