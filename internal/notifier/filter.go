package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/potooio/herald/internal/store"
	"github.com/potooio/herald/internal/types"
)

// Buckets is the outcome of the dispatch filter for one event.
type Buckets struct {
	Instant []string
	Digest  []string
	// Skipped holds one result per skipped recipient with the reason.
	Skipped []types.DeliveryResult
}

// Filter splits recipients by their notification preferences.
type Filter struct {
	logger *zap.Logger
	prefs  types.PreferenceStore
}

// NewFilter creates a Filter backed by the given preference store.
func NewFilter(logger *zap.Logger, prefs types.PreferenceStore) *Filter {
	return &Filter{
		logger: logger.Named("filter"),
		prefs:  prefs,
	}
}

// Split buckets each recipient as instant, digest or skipped for eventType.
// Users without stored preferences get DefaultPreferences. A failed lookup
// skips only that user.
func (f *Filter) Split(ctx context.Context, recipients []string, eventType types.EventType) Buckets {
	var b Buckets
	for _, userID := range recipients {
		p, _, err := store.PreferencesOrDefault(ctx, f.prefs, userID)
		if err != nil {
			f.logger.Warn("Preference lookup failed, skipping recipient",
				zap.String("user_id", userID),
				zap.String("event_type", string(eventType)),
				zap.Error(err),
			)
			b.Skipped = append(b.Skipped, skipped(userID, eventType, types.ReasonPreferencesUnavailable, err))
			continue
		}
		switch {
		case !p.Enabled:
			b.Skipped = append(b.Skipped, skipped(userID, eventType, types.ReasonDisabled, nil))
		case !p.Allows(eventType):
			b.Skipped = append(b.Skipped, skipped(userID, eventType, types.ReasonEventTypeDisabled, nil))
		case p.Frequency.IsDigest():
			b.Digest = append(b.Digest, userID)
		default:
			b.Instant = append(b.Instant, userID)
		}
	}
	return b
}

func skipped(userID string, et types.EventType, reason types.Reason, err error) types.DeliveryResult {
	r := types.DeliveryResult{
		UserID:    userID,
		EventType: et,
		Skipped:   true,
		Reason:    reason,
	}
	if err != nil {
		r.Err = err
		r.Error = err.Error()
	}
	return r
}

func failed(userID string, et types.EventType, reason types.Reason, err error) types.DeliveryResult {
	r := types.DeliveryResult{
		UserID:    userID,
		EventType: et,
		Reason:    reason,
	}
	if err != nil {
		r.Err = err
		r.Error = err.Error()
	}
	return r
}
