package notifier

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/potooio/herald/internal/render"
	"github.com/potooio/herald/internal/store"
	"github.com/potooio/herald/internal/types"
)

// BatcherOptions configures the digest Batcher.
type BatcherOptions struct {
	// DailyHour is the local hour at which daily and weekly digests become due. Default: 8.
	DailyHour int
	// WeeklyDay is the weekday on which weekly digests become due. Default: Monday.
	WeeklyDay time.Weekday
	// Location is the time zone for digest boundaries. Default: UTC.
	Location *time.Location
	// Interval is how often the scheduler checks for due digests. Default: 1 minute.
	Interval time.Duration
	// Concurrency bounds parallel drains in DrainDue. Default: 4.
	Concurrency int
}

// DefaultBatcherOptions returns sensible defaults.
func DefaultBatcherOptions() BatcherOptions {
	return BatcherOptions{
		DailyHour:   8,
		WeeklyDay:   time.Monday,
		Location:    time.UTC,
		Interval:    time.Minute,
		Concurrency: 4,
	}
}

// Batcher turns pending digest entries into one consolidated email per user.
type Batcher struct {
	logger    *zap.Logger
	prefs     types.PreferenceStore
	users     types.UserDirectory
	digests   types.DigestQueue
	renderer  types.Renderer
	transport types.Transport
	opts      BatcherOptions
	clock     func() time.Time

	// locks serializes drains per user so two drains never send the same
	// entries. Users hash onto a fixed set of stripes.
	locks [drainLockStripes]sync.Mutex

	wg sync.WaitGroup
}

// NewBatcher creates a Batcher.
func NewBatcher(logger *zap.Logger, prefs types.PreferenceStore, users types.UserDirectory, digests types.DigestQueue, renderer types.Renderer, transport types.Transport, opts BatcherOptions) *Batcher {
	def := DefaultBatcherOptions()
	if opts.Location == nil {
		opts.Location = def.Location
	}
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.DailyHour < 0 || opts.DailyHour > 23 {
		opts.DailyHour = def.DailyHour
	}
	return &Batcher{
		logger:    logger.Named("batcher"),
		prefs:     prefs,
		users:     users,
		digests:   digests,
		renderer:  renderer,
		transport: transport,
		opts:      opts,
		clock:     time.Now,
	}
}

// SetClock overrides the time source. Must be called before use (not concurrent).
func (b *Batcher) SetClock(clock func() time.Time) {
	b.clock = clock
}

const drainLockStripes = 64

func (b *Batcher) userLock(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &b.locks[h.Sum32()%drainLockStripes]
}

// DrainAndSend sends the user's pending entries as one digest and removes them
// on success. On any failure the entries stay queued for the next attempt.
// Instant-frequency users are a no-op. Users who disabled notifications have
// their pending entries discarded.
func (b *Batcher) DrainAndSend(ctx context.Context, userID string) types.DeliveryResult {
	m := b.userLock(userID)
	m.Lock()
	defer m.Unlock()

	result := b.drain(ctx, userID)
	status := resultStatus(result)
	if result.Skipped {
		status = string(result.Reason)
	}
	digestDrainsTotal.WithLabelValues(status).Inc()
	return result
}

func (b *Batcher) drain(ctx context.Context, userID string) (result types.DeliveryResult) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic during digest drain: %v", r)
			b.logger.Error("Recovered panic in digest drain", zap.String("user_id", userID), zap.Error(err))
			result = failed(userID, "", types.ReasonPanic, err)
		}
	}()

	prefs, _, err := store.PreferencesOrDefault(ctx, b.prefs, userID)
	if err != nil {
		b.logger.Warn("Preference lookup failed, keeping digest", zap.String("user_id", userID), zap.Error(err))
		return failed(userID, "", types.ReasonPreferencesUnavailable, err)
	}
	if prefs.Frequency == types.FrequencyInstant {
		return skipped(userID, "", types.ReasonInstantFrequency, nil)
	}

	entries, err := b.digests.Pending(ctx, userID)
	if err != nil {
		b.logger.Error("Reading pending digest failed", zap.String("user_id", userID), zap.Error(err))
		return failed(userID, "", types.ReasonQueueError, err)
	}
	if len(entries) == 0 {
		return skipped(userID, "", types.ReasonEmpty, nil)
	}

	if !prefs.Enabled {
		if err := b.digests.Ack(ctx, userID, len(entries)); err != nil {
			b.logger.Error("Discarding digest failed", zap.String("user_id", userID), zap.Error(err))
			return failed(userID, "", types.ReasonQueueError, err)
		}
		b.logger.Info("Discarded digest for disabled user",
			zap.String("user_id", userID),
			zap.Int("entries", len(entries)),
		)
		return skipped(userID, "", types.ReasonDisabled, nil)
	}

	user, err := b.lookupUser(ctx, userID)
	if err != nil {
		b.logger.Warn("User lookup failed, keeping digest", zap.String("user_id", userID), zap.Error(err))
		return skipped(userID, "", types.ReasonNoEmail, err)
	}
	if user.Email == "" {
		b.logger.Warn("Digest recipient has no email address, keeping digest", zap.String("user_id", userID))
		return skipped(userID, "", types.ReasonNoEmail, nil)
	}

	view := types.DigestView{
		UserName:    user.DisplayName(),
		Frequency:   prefs.Frequency,
		Groups:      GroupEntries(entries),
		GeneratedAt: b.clock(),
	}
	msg, err := b.renderer.RenderDigest(view)
	if err != nil {
		b.logger.Error("Digest render failed, keeping digest", zap.String("user_id", userID), zap.Error(err))
		return failed(userID, "", types.ReasonRenderError, err)
	}

	receipt, err := b.transport.Send(ctx, types.Email{
		To:      []string{user.Email},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		b.logger.Error("Digest send failed, keeping digest",
			zap.String("transport", b.transport.Name()),
			zap.String("user_id", userID),
			zap.Int("entries", len(entries)),
			zap.Error(err),
		)
		return failed(userID, "", types.ReasonTransportError, err)
	}

	// Entries appended after Pending returned stay queued for the next digest.
	if err := b.digests.Ack(ctx, userID, len(entries)); err != nil {
		b.logger.Error("Clearing sent digest failed, entries may be sent again",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
	b.logger.Info("Digest sent",
		zap.String("user_id", userID),
		zap.String("frequency", string(prefs.Frequency)),
		zap.Int("entries", len(entries)),
		zap.Int("groups", len(view.Groups)),
		zap.String("message_id", receipt.MessageID),
	)
	return types.DeliveryResult{UserID: userID, Success: true, MessageID: receipt.MessageID}
}

// lookupUser returns the directory record, or a bare user without an email when
// the directory does not know userID.
func (b *Batcher) lookupUser(ctx context.Context, userID string) (types.User, error) {
	if b.users == nil {
		return types.User{ID: userID}, nil
	}
	u, err := store.LookupUser(ctx, b.users, userID)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{ID: userID}, nil
	}
	if err != nil {
		return types.User{}, err
	}
	return *u, nil
}

// GroupEntries groups entries by preference key, so variants such as
// taskBlocked share their family's section. Groups appear in the order their
// key first occurs and keep the entries' original order.
func GroupEntries(entries []types.DigestEntry) []types.DigestGroup {
	var groups []types.DigestGroup
	index := make(map[types.EventType]int)
	for _, e := range entries {
		key := e.Type.PreferenceKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, types.DigestGroup{Type: key, Label: render.Label(key)})
		}
		groups[i].Items = append(groups[i].Items, e)
	}
	return groups
}

// DrainDue drains every user whose digest is due and returns the aggregate.
func (b *Batcher) DrainDue(ctx context.Context) (types.Summary, error) {
	users, err := b.digests.Users(ctx)
	if err != nil {
		return types.Summary{}, fmt.Errorf("list digest users: %w", err)
	}
	now := b.clock()

	var (
		mu      sync.Mutex
		results []types.DeliveryResult
	)
	var g errgroup.Group
	g.SetLimit(b.opts.Concurrency)
	for _, userID := range users {
		g.Go(func() error {
			due, err := b.isDue(ctx, userID, now)
			if err != nil {
				b.logger.Warn("Digest due check failed", zap.String("user_id", userID), zap.Error(err))
				return nil
			}
			if !due {
				return nil
			}
			r := b.DrainAndSend(ctx, userID)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	summary := types.Summarize(results)
	if summary.Total > 0 {
		b.logger.Info("Digest drain complete",
			zap.Int("total", summary.Total),
			zap.Int("successful", summary.Successful),
			zap.Int("skipped", summary.Skipped),
			zap.Int("failed", summary.Failed),
		)
	}
	return summary, nil
}

// isDue reports whether the user's oldest pending entry predates the most recent
// digest boundary. Disabled users are always due so their backlog is discarded.
func (b *Batcher) isDue(ctx context.Context, userID string, now time.Time) (bool, error) {
	prefs, _, err := store.PreferencesOrDefault(ctx, b.prefs, userID)
	if err != nil {
		return false, err
	}
	if !prefs.Frequency.IsDigest() {
		return false, nil
	}
	entries, err := b.digests.Pending(ctx, userID)
	if err != nil || len(entries) == 0 {
		return false, err
	}
	if !prefs.Enabled {
		return true, nil
	}
	return entries[0].Timestamp.Before(b.LastBoundary(prefs.Frequency, now)), nil
}

// LastBoundary returns the most recent digest boundary at or before now.
func (b *Batcher) LastBoundary(freq types.Frequency, now time.Time) time.Time {
	local := now.In(b.opts.Location)
	boundary := time.Date(local.Year(), local.Month(), local.Day(), b.opts.DailyHour, 0, 0, 0, b.opts.Location)
	if boundary.After(local) {
		boundary = boundary.AddDate(0, 0, -1)
	}
	if freq == types.FrequencyWeeklyDigest {
		back := (int(boundary.Weekday()) - int(b.opts.WeeklyDay) + 7) % 7
		boundary = boundary.AddDate(0, 0, -back)
	}
	return boundary
}

// Start runs DrainDue every Interval until ctx is cancelled. Non-blocking.
func (b *Batcher) Start(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := b.DrainDue(ctx); err != nil {
					b.logger.Error("Scheduled digest drain failed", zap.Error(err))
				}
			}
		}
	}()
	b.logger.Info("Digest scheduler started",
		zap.Duration("interval", b.opts.Interval),
		zap.Int("daily_hour", b.opts.DailyHour),
		zap.String("weekly_day", b.opts.WeeklyDay.String()),
		zap.String("location", b.opts.Location.String()),
	)
}

// Close waits for the scheduler loop to exit. Call after the context passed to
// Start is cancelled.
func (b *Batcher) Close() {
	b.wg.Wait()
}
