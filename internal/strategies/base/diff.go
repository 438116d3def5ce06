// Package base provides the diff and event-building helpers shared by the
// per-kind strategies.
package base

import (
	"math"
	"strings"
	"time"

	"github.com/potooio/herald/internal/types"
	"github.com/potooio/herald/internal/util"
)

// DiffString records a change when the patch touches the field with a different value.
func DiffString(cs types.ChangeSet, f types.Field, old string, patched *string) {
	if patched == nil || *patched == old {
		return
	}
	cs[f] = types.Change{Old: old, New: *patched}
}

// DiffFloat records a change with its absolute delta when the patch touches the
// field with a different value.
func DiffFloat(cs types.ChangeSet, f types.Field, old float64, patched *float64) {
	if patched == nil || *patched == old {
		return
	}
	cs[f] = types.Change{Old: old, New: *patched, Delta: math.Abs(*patched - old)}
}

// DiffTime records a change when the patch touches the field with a different instant.
func DiffTime(cs types.ChangeSet, f types.Field, old, patched *time.Time) {
	if patched == nil {
		return
	}
	if old != nil && old.Equal(*patched) {
		return
	}
	var oldVal any
	if old != nil {
		oldVal = *old
	}
	cs[f] = types.Change{Old: oldVal, New: *patched}
}

// DiffMembers records the set difference between the old and patched member lists.
func DiffMembers(cs types.ChangeSet, f types.Field, old []string, patched *[]string) {
	if patched == nil {
		return
	}
	added := util.Difference(*patched, old)
	removed := util.Difference(old, *patched)
	if len(added) == 0 && len(removed) == 0 {
		return
	}
	cs[f] = types.Change{Added: added, Removed: removed}
}

// ThresholdCrossing reports whether spent/budget moved from below threshold to at
// or above it. A missing or non-positive budget disables the check.
func ThresholdCrossing(budget *float64, oldSpent, newSpent, threshold float64) (types.Change, bool) {
	if budget == nil || *budget <= 0 {
		return types.Change{}, false
	}
	oldRatio := oldSpent / *budget
	newRatio := newSpent / *budget
	if newRatio >= threshold && oldRatio < threshold {
		return types.Change{
			Old:     oldRatio * 100,
			New:     newRatio * 100,
			Delta:   (newRatio - oldRatio) * 100,
			Crossed: true,
		}, true
	}
	return types.Change{}, false
}

// OneOf reports whether s equals any candidate, ignoring case.
func OneOf(s string, candidates ...string) bool {
	for _, c := range candidates {
		if strings.EqualFold(s, c) {
			return true
		}
	}
	return false
}
