package types

import "time"

// EventType names a notification category. Every event type has a template;
// only preference keys (see PreferenceKeys) have their own toggle.
type EventType string

// Preference keys, grouped by category.
const (
	EventProjectCreated             EventType = "projectCreated"
	EventProjectStatusChanged       EventType = "projectStatusChanged"
	EventProjectCompleted           EventType = "projectCompleted"
	EventProjectDeadlineApproaching EventType = "projectDeadlineApproaching"
	EventBudgetAlert                EventType = "budgetAlert"
	EventTeamMemberAdded            EventType = "teamMemberAdded"

	EventTaskAssigned      EventType = "taskAssigned"
	EventTaskStatusChanged EventType = "taskStatusChanged"
	EventTaskCompleted     EventType = "taskCompleted"
	EventTaskDueSoon       EventType = "taskDueSoon"
	EventTaskOverdue       EventType = "taskOverdue"
	EventTaskCommentAdded  EventType = "taskCommentAdded"

	EventClientCreated        EventType = "clientCreated"
	EventClientStatusChanged  EventType = "clientStatusChanged"
	EventClientContactUpdated EventType = "clientContactUpdated"

	EventWeeklyReport         EventType = "weeklyReport"
	EventSystemAnnouncements  EventType = "systemAnnouncements"
	EventMentionNotifications EventType = "mentionNotifications"
)

// Template-only variants. Each one is gated by the preference key of its family.
const (
	EventTeamMemberRemoved      EventType = "teamMemberRemoved"
	EventProjectDeadlineChanged EventType = "projectDeadlineChanged"
	EventTaskBlocked            EventType = "taskBlocked"
	EventTaskPriorityChanged    EventType = "taskPriorityChanged"
	EventTaskProgressUpdated    EventType = "taskProgressUpdated"
	EventTaskDueDateChanged     EventType = "taskDueDateChanged"
)

// Category groups preference keys for display.
type Category string

const (
	CategoryProject Category = "project"
	CategoryTask    Category = "task"
	CategoryClient  Category = "client"
	CategoryOther   Category = "other"
)

// PreferenceKeyInfo describes one user-toggleable event type.
type PreferenceKeyInfo struct {
	Key      EventType `json:"key"`
	Category Category  `json:"category"`
	Label    string    `json:"label"`
}

var preferenceKeys = []PreferenceKeyInfo{
	{EventProjectCreated, CategoryProject, "New project created"},
	{EventProjectStatusChanged, CategoryProject, "Project status or priority changed"},
	{EventProjectCompleted, CategoryProject, "Project completed"},
	{EventProjectDeadlineApproaching, CategoryProject, "Project deadline changes"},
	{EventBudgetAlert, CategoryProject, "Budget threshold reached"},
	{EventTeamMemberAdded, CategoryProject, "Added to or removed from a project team"},
	{EventTaskAssigned, CategoryTask, "Task assigned to you"},
	{EventTaskStatusChanged, CategoryTask, "Task status, priority or progress changed"},
	{EventTaskCompleted, CategoryTask, "Task completed"},
	{EventTaskDueSoon, CategoryTask, "Task due date changes"},
	{EventTaskOverdue, CategoryTask, "Task overdue"},
	{EventTaskCommentAdded, CategoryTask, "New comment on a task"},
	{EventClientCreated, CategoryClient, "New client created"},
	{EventClientStatusChanged, CategoryClient, "Client status changed"},
	{EventClientContactUpdated, CategoryClient, "Client contact details updated"},
	{EventWeeklyReport, CategoryOther, "Weekly report"},
	{EventSystemAnnouncements, CategoryOther, "System announcements"},
	{EventMentionNotifications, CategoryOther, "Mentions"},
}

// variantKeys maps template-only event types to the preference key that gates them.
var variantKeys = map[EventType]EventType{
	// Removal shares the membership toggle with additions.
	EventTeamMemberRemoved:      EventTeamMemberAdded,
	EventProjectDeadlineChanged: EventProjectDeadlineApproaching,
	EventTaskBlocked:            EventTaskStatusChanged,
	EventTaskPriorityChanged:    EventTaskStatusChanged,
	EventTaskProgressUpdated:    EventTaskStatusChanged,
	EventTaskDueDateChanged:     EventTaskDueSoon,
}

// PreferenceKeys returns the catalog of user-toggleable event types in display order.
func PreferenceKeys() []PreferenceKeyInfo {
	out := make([]PreferenceKeyInfo, len(preferenceKeys))
	copy(out, preferenceKeys)
	return out
}

// IsPreferenceKey reports whether t has its own preference toggle.
func IsPreferenceKey(t EventType) bool {
	for _, k := range preferenceKeys {
		if k.Key == t {
			return true
		}
	}
	return false
}

// PreferenceKey returns the preference toggle that gates this event type.
func (t EventType) PreferenceKey() EventType {
	if k, ok := variantKeys[t]; ok {
		return k
	}
	return t
}

// RecipientRule names how candidate recipients are derived from the entity snapshot.
type RecipientRule string

const (
	RuleAssignee           RecipientRule = "assignee"
	RuleTeam               RecipientRule = "team"
	RuleTeamAndManager     RecipientRule = "teamAndManager"
	RuleClientOwner        RecipientRule = "clientOwner"
	RuleClientStakeholders RecipientRule = "clientStakeholders"
	// RuleExplicit uses NotificationEvent.TargetUserIDs verbatim.
	RuleExplicit RecipientRule = "explicit"
)

// Params is the template parameter bag.
type Params map[string]any

// String returns the string value for key, or "".
func (p Params) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Well-known parameter keys used to build digest entries.
const (
	ParamTitle       = "title"
	ParamDescription = "description"
	ParamURL         = "url"
)

// NotificationEvent is an ephemeral value produced by an event resolver.
type NotificationEvent struct {
	ID               string        `json:"id"`
	Type             EventType     `json:"type"`
	Rule             RecipientRule `json:"rule"`
	TargetUserIDs    []string      `json:"targetUserIds,omitempty"`
	Params           Params        `json:"params"`
	SourceEntityID   string        `json:"sourceEntityId"`
	SourceEntityKind EntityKind    `json:"sourceEntityKind"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// DigestEntry is one item accumulated for a digest-frequency recipient.
type DigestEntry struct {
	Type        EventType `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// DigestEntryFor builds the digest entry for an event at the given time.
func DigestEntryFor(ev NotificationEvent, now time.Time) DigestEntry {
	return DigestEntry{
		Type:        ev.Type,
		Title:       ev.Params.String(ParamTitle),
		Description: ev.Params.String(ParamDescription),
		URL:         ev.Params.String(ParamURL),
		Timestamp:   now,
	}
}
