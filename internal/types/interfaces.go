package types

import (
	"context"
	"time"
)

// Strategy detects changes and resolves notification events for one entity kind.
//
// Implementations must be pure: no I/O, no mutation of the inputs, safe for
// concurrent use.
type Strategy interface {
	// Kind returns the entity kind this strategy handles.
	Kind() EntityKind

	// Detect compares the persisted entity before the update with the partial
	// update payload. Only fields present in the patch are considered, and only
	// value differences are reported. A nil before means the entity was created.
	Detect(before *Entity, patch Patch) (ChangeSet, error)

	// Resolve maps detected changes to zero or more events with fully-formed
	// template parameters built from the post-update snapshot.
	Resolve(cs ChangeSet, snap Snapshot) []NotificationEvent
}

// PreferenceStore reads and writes per-user notification preferences.
type PreferenceStore interface {
	// Get returns the stored preferences, or nil with no error if the user has none.
	Get(ctx context.Context, userID string) (*NotificationPreferences, error)

	// Update replaces the user's preferences.
	Update(ctx context.Context, userID string, prefs NotificationPreferences) error
}

// UserDirectory resolves user records for addressing.
type UserDirectory interface {
	// GetUser returns the user, or nil with no error if it does not exist.
	GetUser(ctx context.Context, userID string) (*User, error)
}

// Renderer turns an event type and parameters into a message.
type Renderer interface {
	Render(eventType EventType, params Params) (Message, error)
	RenderDigest(view DigestView) (Message, error)
}

// Transport delivers a rendered email.
type Transport interface {
	// Name identifies the transport in logs and metrics.
	Name() string
	Send(ctx context.Context, email Email) (SendReceipt, error)
}

// DigestQueue stores pending digest entries per recipient.
//
// Append may race with Pending/Ack. Ack(n) removes exactly the first n entries
// observed by Pending, so entries appended after Pending returned survive.
type DigestQueue interface {
	Append(ctx context.Context, userID string, entry DigestEntry) error
	Pending(ctx context.Context, userID string) ([]DigestEntry, error)
	Ack(ctx context.Context, userID string, n int) error
	// Users returns all users with pending entries.
	Users(ctx context.Context) ([]string, error)
}

// DigestGroup is one section of a digest: all pending entries of one type.
type DigestGroup struct {
	Type  EventType     `json:"type"`
	Label string        `json:"label"`
	Items []DigestEntry `json:"items"`
}

// DigestView is the input to digest rendering.
type DigestView struct {
	UserName    string        `json:"userName"`
	Frequency   Frequency     `json:"frequency"`
	Groups      []DigestGroup `json:"groups"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

// ItemCount returns the number of entries across all groups.
func (v DigestView) ItemCount() int {
	n := 0
	for _, g := range v.Groups {
		n += len(g.Items)
	}
	return n
}
