package types

import (
	"errors"
	"time"
)

// EntityKind identifies which business entity an update concerns.
type EntityKind string

const (
	EntityKindProject EntityKind = "project"
	EntityKindTask    EntityKind = "task"
	EntityKindClient  EntityKind = "client"
)

// ErrKindMismatch is returned when an update carries a snapshot or patch for a
// different entity kind than the one it declares.
var ErrKindMismatch = errors.New("entity kind mismatch")

// Project stages that count as finished work.
const (
	ProjectStageCompleted = "completed"
	ProjectStageDelivered = "delivered"
)

// Task statuses with their own notification flavour.
const (
	TaskStatusCompleted = "completed"
	TaskStatusBlocked   = "blocked"
)

// User is the subset of a user record the engine needs for addressing and naming.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// DisplayName returns the username, falling back to the ID.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}

// Project is a read-only snapshot of a project record.
type Project struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Stage         string     `json:"stage"`
	Priority      string     `json:"priority,omitempty"`
	Budget        *float64   `json:"budget,omitempty"`
	BudgetSpent   float64    `json:"budgetSpent"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	ManagerID     string     `json:"managerId,omitempty"`
	TeamMemberIDs []string   `json:"teamMemberIds,omitempty"`
	ClientID      string     `json:"clientId,omitempty"`
}

// Task is a read-only snapshot of a task record.
type Task struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Status             string     `json:"status"`
	Priority           string     `json:"priority,omitempty"`
	ProgressPercentage float64    `json:"progressPercentage"`
	DueDate            *time.Time `json:"dueDate,omitempty"`
	AssignedTo         string     `json:"assignedTo,omitempty"`
	ProjectID          string     `json:"projectId,omitempty"`
	ProjectName        string     `json:"projectName,omitempty"`
}

// Client is a read-only snapshot of a client record.
type Client struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Status         string   `json:"status"`
	OwnerID        string   `json:"ownerId,omitempty"`
	ContactName    string   `json:"contactName,omitempty"`
	ContactEmail   string   `json:"contactEmail,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	StakeholderIDs []string `json:"stakeholderIds,omitempty"`
}

// Entity is a tagged variant holding exactly one entity snapshot matching Kind.
type Entity struct {
	Kind    EntityKind `json:"kind"`
	Project *Project   `json:"project,omitempty"`
	Task    *Task      `json:"task,omitempty"`
	Client  *Client    `json:"client,omitempty"`
}

// ID returns the identifier of the wrapped entity, or "" if none is set.
func (e *Entity) ID() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case EntityKindProject:
		if e.Project != nil {
			return e.Project.ID
		}
	case EntityKindTask:
		if e.Task != nil {
			return e.Task.ID
		}
	case EntityKindClient:
		if e.Client != nil {
			return e.Client.ID
		}
	}
	return ""
}

// ProjectPatch is a partial project update. Nil fields were not part of the request.
type ProjectPatch struct {
	Name          *string    `json:"name,omitempty"`
	Stage         *string    `json:"stage,omitempty"`
	Priority      *string    `json:"priority,omitempty"`
	Budget        *float64   `json:"budget,omitempty"`
	BudgetSpent   *float64   `json:"budgetSpent,omitempty"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	TeamMemberIDs *[]string  `json:"teamMemberIds,omitempty"`
}

// TaskPatch is a partial task update. Nil fields were not part of the request.
// An AssignedTo pointing at "" clears the assignee.
type TaskPatch struct {
	Title              *string    `json:"title,omitempty"`
	Status             *string    `json:"status,omitempty"`
	Priority           *string    `json:"priority,omitempty"`
	ProgressPercentage *float64   `json:"progressPercentage,omitempty"`
	DueDate            *time.Time `json:"dueDate,omitempty"`
	AssignedTo         *string    `json:"assignedTo,omitempty"`
}

// ClientPatch is a partial client update. Nil fields were not part of the request.
type ClientPatch struct {
	Name         *string `json:"name,omitempty"`
	Status       *string `json:"status,omitempty"`
	ContactName  *string `json:"contactName,omitempty"`
	ContactEmail *string `json:"contactEmail,omitempty"`
	Phone        *string `json:"phone,omitempty"`
}

// Patch is a tagged variant holding the partial update request for one entity kind.
type Patch struct {
	Kind    EntityKind    `json:"kind"`
	Project *ProjectPatch `json:"project,omitempty"`
	Task    *TaskPatch    `json:"task,omitempty"`
	Client  *ClientPatch  `json:"client,omitempty"`
}

// Snapshot is the post-commit view of an entity plus the user records needed to
// render human-readable names.
type Snapshot struct {
	Entity Entity          `json:"entity"`
	Users  map[string]User `json:"users,omitempty"`
	// ActorID is the user who performed the update. Optional.
	ActorID string `json:"actorId,omitempty"`
	// BaseURL is prefixed to entity links in notifications. Optional.
	BaseURL string `json:"baseUrl,omitempty"`
}

// UserName returns the display name of the given user, falling back to the ID.
func (s Snapshot) UserName(id string) string {
	if u, ok := s.Users[id]; ok {
		return u.DisplayName()
	}
	return id
}

// ActorName returns the display name of the acting user, or "Someone".
func (s Snapshot) ActorName() string {
	if s.ActorID == "" {
		return "Someone"
	}
	return s.UserName(s.ActorID)
}

// Update is one committed entity change handed to the engine.
// Before is nil when the entity was just created.
type Update struct {
	Kind   EntityKind `json:"kind"`
	Before *Entity    `json:"before,omitempty"`
	Patch  Patch      `json:"patch"`
	After  Snapshot   `json:"after"`
}
