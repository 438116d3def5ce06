package base

import (
	"fmt"
	"strings"
	"time"

	"github.com/potooio/herald/internal/types"
)

// DateLayout is the human-readable date format used in template parameters.
const DateLayout = "Jan 2, 2006"

// NewEvent builds an event for the given entity. ID and CreatedAt are stamped
// by the engine so that resolution stays deterministic.
func NewEvent(t types.EventType, rule types.RecipientRule, kind types.EntityKind, entityID string, params types.Params) types.NotificationEvent {
	return types.NotificationEvent{
		Type:             t,
		Rule:             rule,
		Params:           params,
		SourceEntityID:   entityID,
		SourceEntityKind: kind,
	}
}

// ForUsers builds an explicit-rule event targeting the given users.
func ForUsers(t types.EventType, kind types.EntityKind, entityID string, params types.Params, userIDs ...string) types.NotificationEvent {
	ev := NewEvent(t, types.RuleExplicit, kind, entityID, params)
	ev.TargetUserIDs = userIDs
	return ev
}

// EntityURL returns the link to an entity, or "" when no base URL is configured.
func EntityURL(baseURL string, kind types.EntityKind, id string) string {
	if baseURL == "" || id == "" {
		return ""
	}
	return fmt.Sprintf("%s/%ss/%s", strings.TrimRight(baseURL, "/"), kind, id)
}

// FormatDate renders an optional date for templates.
func FormatDate(t *time.Time) string {
	if t == nil {
		return "no date"
	}
	return t.Format(DateLayout)
}

// FormatAny renders a change value for templates.
func FormatAny(v any) string {
	switch val := v.(type) {
	case nil:
		return "none"
	case string:
		if val == "" {
			return "none"
		}
		return val
	case time.Time:
		return val.Format(DateLayout)
	case float64:
		return fmt.Sprintf("%.0f", val)
	default:
		return fmt.Sprint(val)
	}
}

// Clone returns a shallow copy of p with extra merged on top.
func Clone(p types.Params, extra types.Params) types.Params {
	out := make(types.Params, len(p)+len(extra))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
