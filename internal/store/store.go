package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/potooio/herald/internal/types"
)

// ErrNotFound is returned when a required record does not exist.
var ErrNotFound = errors.New("not found")

// UserWriter stores user records.
type UserWriter interface {
	PutUser(ctx context.Context, u types.User) error
}

// LookupUser returns the user or an error wrapping ErrNotFound.
func LookupUser(ctx context.Context, dir types.UserDirectory, userID string) (*types.User, error) {
	u, err := dir.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %q: %w", userID, ErrNotFound)
	}
	return u, nil
}

// PreferencesOrDefault returns stored preferences, or the defaults when none
// exist. stored reports which one it was.
func PreferencesOrDefault(ctx context.Context, ps types.PreferenceStore, userID string) (prefs types.NotificationPreferences, stored bool, err error) {
	p, err := ps.Get(ctx, userID)
	if err != nil {
		return types.NotificationPreferences{}, false, err
	}
	if p == nil {
		return types.DefaultPreferences(), false, nil
	}
	return *p, true, nil
}
