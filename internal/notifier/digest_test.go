package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/potooio/herald/internal/store"
	"github.com/potooio/herald/internal/testutil"
	"github.com/potooio/herald/internal/types"
)

type batcherFixture struct {
	batcher *Batcher
	store   *store.MemoryStore
	queue   *store.MemoryDigestQueue
	tr      *testutil.FakeTransport
}

func newBatcherFixture(t *testing.T, now time.Time) *batcherFixture {
	t.Helper()
	s := store.NewMemoryStore()
	q := store.NewMemoryDigestQueue()
	tr := testutil.NewFakeTransport()
	b := NewBatcher(zap.NewNop(), s, s, q, newTestRenderer(t), tr, DefaultBatcherOptions())
	b.SetClock(func() time.Time { return now })
	for _, u := range testutil.MakeUsers("u1", "u2") {
		require.NoError(t, s.PutUser(context.Background(), u))
	}
	return &batcherFixture{batcher: b, store: s, queue: q, tr: tr}
}

func (f *batcherFixture) setFrequency(t *testing.T, userID string, freq types.Frequency) {
	t.Helper()
	setPrefs(t, f.store, userID, func(p *types.NotificationPreferences) { p.Frequency = freq })
}

func (f *batcherFixture) append(t *testing.T, userID string, et types.EventType, title string, at time.Time) {
	t.Helper()
	require.NoError(t, f.queue.Append(context.Background(), userID, types.DigestEntry{
		Type: et, Title: title, Description: title + " details", Timestamp: at,
	}))
}

func (f *batcherFixture) pending(t *testing.T, userID string) []types.DigestEntry {
	t.Helper()
	entries, err := f.queue.Pending(context.Background(), userID)
	require.NoError(t, err)
	return entries
}

var digestNow = time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC) // Wednesday

func TestGroupEntries(t *testing.T) {
	entries := []types.DigestEntry{
		{Type: types.EventTaskDueSoon, Title: "a"},
		{Type: types.EventProjectCompleted, Title: "b"},
		{Type: types.EventTaskDueSoon, Title: "c"},
	}
	groups := GroupEntries(entries)
	require.Len(t, groups, 2)
	assert.Equal(t, types.EventTaskDueSoon, groups[0].Type)
	assert.Equal(t, "Task due date changes", groups[0].Label)
	assert.Equal(t, []string{"a", "c"}, []string{groups[0].Items[0].Title, groups[0].Items[1].Title})
	assert.Equal(t, types.EventProjectCompleted, groups[1].Type)
	assert.Len(t, groups[1].Items, 1)

	assert.Nil(t, GroupEntries(nil))
}

func TestGroupEntries_VariantsShareFamilySection(t *testing.T) {
	entries := []types.DigestEntry{
		{Type: types.EventTaskBlocked, Title: "a"},
		{Type: types.EventTeamMemberRemoved, Title: "b"},
		{Type: types.EventTaskStatusChanged, Title: "c"},
		{Type: types.EventTeamMemberAdded, Title: "d"},
		{Type: types.EventTaskPriorityChanged, Title: "e"},
	}
	groups := GroupEntries(entries)
	require.Len(t, groups, 2)

	assert.Equal(t, types.EventTaskStatusChanged, groups[0].Type)
	assert.Equal(t, "Task status, priority or progress changed", groups[0].Label)
	require.Len(t, groups[0].Items, 3)
	assert.Equal(t, types.EventTaskBlocked, groups[0].Items[0].Type, "items keep their own type")

	assert.Equal(t, types.EventTeamMemberAdded, groups[1].Type)
	assert.Len(t, groups[1].Items, 2)

	labels := map[string]bool{}
	for _, g := range groups {
		assert.False(t, labels[g.Label], "duplicate heading %q", g.Label)
		labels[g.Label] = true
	}
}

func TestDrainAndSend_GroupsIntoOneEmail(t *testing.T) {
	f := newBatcherFixture(t, digestNow)
	f.setFrequency(t, "u1", types.FrequencyDailyDigest)
	f.append(t, "u1", types.EventTaskDueSoon, "Ship beta", digestNow.Add(-3*time.Hour))
	f.append(t, "u1", types.EventProjectCompleted, "Website Redesign", digestNow.Add(-2*time.Hour))
	f.append(t, "u1", types.EventTaskDueSoon, "Write docs", digestNow.Add(-time.Hour))

	r := f.batcher.DrainAndSend(context.Background(), "u1")
	assert.True(t, r.Success)
	assert.NotEmpty(t, r.MessageID)

	sent := f.tr.SentTo("u1@example.com")
	require.Len(t, sent, 1)
	assert.Equal(t, "Daily digest: 3 updates", sent[0].Subject)
	assert.Contains(t, sent[0].Text, "Task due date changes (2)")
	assert.Contains(t, sent[0].Text, "Project completed (1)")
	assert.Contains(t, sent[0].Text, "Ship beta")

	assert.Empty(t, f.pending(t, "u1"))
}

func TestDrainAndSend_FailureRetainsEntries(t *testing.T) {
	f := newBatcherFixture(t, digestNow)
	f.setFrequency(t, "u1", types.FrequencyDailyDigest)
	f.append(t, "u1", types.EventTaskDueSoon, "Ship beta", digestNow.Add(-time.Hour))
	f.append(t, "u1", types.EventTaskOverdue, "Fix login", digestNow.Add(-time.Hour))
	f.tr.FailAll(errors.New("smtp 451"))

	r := f.batcher.DrainAndSend(context.Background(), "u1")
	assert.True(t, r.Failed())
	assert.Equal(t, types.ReasonTransportError, r.Reason)
	assert.Len(t, f.pending(t, "u1"), 2, "entries survive for the next attempt")

	f.tr.FailAll(nil)
	r = f.batcher.DrainAndSend(context.Background(), "u1")
	assert.True(t, r.Success)
	assert.Empty(t, f.pending(t, "u1"))
	assert.Len(t, f.tr.Sent(), 1)
}

func TestDrainAndSend_Skips(t *testing.T) {
	tests := []struct {
		name        string
		user        string
		setup       func(t *testing.T, f *batcherFixture)
		wantReason  types.Reason
		wantPending int
	}{
		{
			name: "instant user is a no-op",
			user: "u1",
			setup: func(t *testing.T, f *batcherFixture) {
				f.append(t, "u1", types.EventTaskDueSoon, "x", digestNow)
			},
			wantReason:  types.ReasonInstantFrequency,
			wantPending: 1,
		},
		{
			name: "nothing pending",
			user: "u1",
			setup: func(t *testing.T, f *batcherFixture) {
				f.setFrequency(t, "u1", types.FrequencyWeeklyDigest)
			},
			wantReason: types.ReasonEmpty,
		},
		{
			name: "disabled user discards backlog",
			user: "u1",
			setup: func(t *testing.T, f *batcherFixture) {
				setPrefs(t, f.store, "u1", func(p *types.NotificationPreferences) {
					p.Enabled = false
					p.Frequency = types.FrequencyDailyDigest
				})
				f.append(t, "u1", types.EventTaskDueSoon, "x", digestNow)
			},
			wantReason: types.ReasonDisabled,
		},
		{
			name: "unknown user keeps backlog",
			user: "ghost",
			setup: func(t *testing.T, f *batcherFixture) {
				setPrefs(t, f.store, "ghost", func(p *types.NotificationPreferences) {
					p.Frequency = types.FrequencyDailyDigest
				})
				f.append(t, "ghost", types.EventTaskDueSoon, "x", digestNow)
			},
			wantReason:  types.ReasonNoEmail,
			wantPending: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBatcherFixture(t, digestNow)
			tt.setup(t, f)
			r := f.batcher.DrainAndSend(context.Background(), tt.user)
			assert.True(t, r.Skipped)
			assert.Equal(t, tt.wantReason, r.Reason)
			assert.Len(t, f.pending(t, tt.user), tt.wantPending)
			assert.Empty(t, f.tr.Sent())
		})
	}
}

func TestDrainAndSend_PreferenceLookupFailureKeepsEntries(t *testing.T) {
	f := newBatcherFixture(t, digestNow)
	f.setFrequency(t, "u1", types.FrequencyDailyDigest)
	f.append(t, "u1", types.EventTaskDueSoon, "x", digestNow)

	prefs := &testutil.FailingPreferences{PreferenceStore: f.store, Fail: map[string]error{"u1": errors.New("timeout")}}
	b := NewBatcher(zap.NewNop(), prefs, f.store, f.queue, newTestRenderer(t), f.tr, DefaultBatcherOptions())

	r := b.DrainAndSend(context.Background(), "u1")
	assert.True(t, r.Failed())
	assert.Equal(t, types.ReasonPreferencesUnavailable, r.Reason)
	assert.Len(t, f.pending(t, "u1"), 1)
}

func TestLastBoundary(t *testing.T) {
	b := NewBatcher(zap.NewNop(), nil, nil, nil, nil, nil, DefaultBatcherOptions())

	tests := []struct {
		name string
		freq types.Frequency
		now  time.Time
		want time.Time
	}{
		{
			name: "daily after hour",
			freq: types.FrequencyDailyDigest,
			now:  time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC),
			want: time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "daily before hour rolls back a day",
			freq: types.FrequencyDailyDigest,
			now:  time.Date(2026, 3, 4, 7, 59, 0, 0, time.UTC),
			want: time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "daily exactly on the hour",
			freq: types.FrequencyDailyDigest,
			now:  time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "weekly midweek goes back to monday",
			freq: types.FrequencyWeeklyDigest,
			now:  time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "weekly monday before hour goes back a week",
			freq: types.FrequencyWeeklyDigest,
			now:  time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC),
			want: time.Date(2026, 2, 23, 8, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.LastBoundary(tt.freq, tt.now))
		})
	}
}

func TestDrainDue(t *testing.T) {
	f := newBatcherFixture(t, digestNow)
	f.setFrequency(t, "u1", types.FrequencyDailyDigest)
	f.setFrequency(t, "u2", types.FrequencyWeeklyDigest)

	// u1: queued yesterday, due at today's 08:00 boundary.
	f.append(t, "u1", types.EventTaskDueSoon, "old", digestNow.Add(-20*time.Hour))
	// u2: queued after Monday's boundary, not due until next Monday.
	f.append(t, "u2", types.EventTaskDueSoon, "recent", time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC))

	summary, err := f.batcher.DrainDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.Summary{Total: 1, Successful: 1}, summary)

	assert.Len(t, f.tr.SentTo("u1@example.com"), 1)
	assert.Empty(t, f.pending(t, "u1"))
	assert.Len(t, f.pending(t, "u2"), 1)
}

func TestDrainDue_EntryAfterBoundaryWaits(t *testing.T) {
	f := newBatcherFixture(t, digestNow)
	f.setFrequency(t, "u1", types.FrequencyDailyDigest)
	f.append(t, "u1", types.EventTaskDueSoon, "fresh", digestNow.Add(-30*time.Minute))

	summary, err := f.batcher.DrainDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
	assert.Len(t, f.pending(t, "u1"), 1)
}

func TestDrainAndSend_ConcurrentDrainsSendOnce(t *testing.T) {
	f := newBatcherFixture(t, digestNow)
	f.setFrequency(t, "u1", types.FrequencyDailyDigest)
	f.append(t, "u1", types.EventTaskDueSoon, "Ship beta", digestNow)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.batcher.DrainAndSend(context.Background(), "u1")
		}()
	}
	wg.Wait()

	assert.Len(t, f.tr.SentTo("u1@example.com"), 1)
	assert.Empty(t, f.pending(t, "u1"))
}

func TestBatcher_UserLockStripes(t *testing.T) {
	f := newBatcherFixture(t, digestNow)
	assert.Same(t, f.batcher.userLock("u1"), f.batcher.userLock("u1"))

	seen := map[*sync.Mutex]bool{}
	for i := range 10000 {
		seen[f.batcher.userLock(fmt.Sprintf("user-%d", i))] = true
	}
	assert.LessOrEqual(t, len(seen), drainLockStripes, "lock set stays bounded")
}
