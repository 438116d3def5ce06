package types

import "fmt"

// Frequency controls when a user's notifications are delivered.
type Frequency string

const (
	FrequencyInstant      Frequency = "instant"
	FrequencyDailyDigest  Frequency = "daily_digest"
	FrequencyWeeklyDigest Frequency = "weekly_digest"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyInstant, FrequencyDailyDigest, FrequencyWeeklyDigest:
		return true
	default:
		return false
	}
}

// IsDigest reports whether f accumulates notifications instead of sending them.
func (f Frequency) IsDigest() bool {
	return f == FrequencyDailyDigest || f == FrequencyWeeklyDigest
}

// NotificationPreferences is owned by a user. The engine only reads it.
type NotificationPreferences struct {
	Enabled   bool      `json:"enabled"`
	Frequency Frequency `json:"frequency"`
	// EventTypes holds one toggle per preference key. A key absent from the map
	// is treated as enabled so that newly introduced event types reach users.
	EventTypes map[EventType]bool `json:"eventTypes"`
}

// DefaultPreferences returns the preferences applied when a user has none stored:
// everything enabled, delivered instantly.
func DefaultPreferences() NotificationPreferences {
	toggles := make(map[EventType]bool, len(preferenceKeys))
	for _, k := range preferenceKeys {
		toggles[k.Key] = true
	}
	return NotificationPreferences{
		Enabled:    true,
		Frequency:  FrequencyInstant,
		EventTypes: toggles,
	}
}

// Allows reports whether an event of type t may be delivered. The global
// Enabled flag overrides every per-type toggle.
func (p NotificationPreferences) Allows(t EventType) bool {
	if !p.Enabled {
		return false
	}
	on, ok := p.EventTypes[t.PreferenceKey()]
	return !ok || on
}

// Validate checks the frequency and that every toggle names a real preference key.
func (p NotificationPreferences) Validate() error {
	if !p.Frequency.Valid() {
		return fmt.Errorf("invalid frequency %q", p.Frequency)
	}
	for k := range p.EventTypes {
		if !IsPreferenceKey(k) {
			return fmt.Errorf("unknown event type %q", k)
		}
	}
	return nil
}
