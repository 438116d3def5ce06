package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/potooio/herald/internal/store"
	"github.com/potooio/herald/internal/strategies"
	"github.com/potooio/herald/internal/types"
)

// Dependencies are the collaborators the Engine dispatches through.
type Dependencies struct {
	Preferences types.PreferenceStore
	// Users resolves recipient emails missing from the snapshot. Optional.
	Users types.UserDirectory
	// Recorder saves the snapshot records of digest recipients so the batcher
	// can address them after the update is gone. Optional.
	Recorder  store.UserWriter
	Renderer  types.Renderer
	Transport types.Transport
	Digests   types.DigestQueue
}

// Options configures the Engine.
type Options struct {
	Delivery DeliveryOptions
	Queue    QueueOptions
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Delivery: DefaultDeliveryOptions(),
		Queue:    DefaultQueueOptions(),
	}
}

// Report describes the outcome of processing one update.
type Report struct {
	Events  []types.NotificationEvent `json:"events"`
	Results []types.DeliveryResult    `json:"results"`
	Summary types.Summary             `json:"summary"`
}

// Engine turns committed entity updates into delivered or queued notifications.
type Engine struct {
	logger    *zap.Logger
	registry  *strategies.Registry
	filter    *Filter
	deliverer *Deliverer
	queue     *WorkQueue
	recorder  store.UserWriter
	clock     func() time.Time
	newID     func() string
}

// NewEngine wires the engine from a strategy registry and its collaborators.
func NewEngine(logger *zap.Logger, registry *strategies.Registry, deps Dependencies, opts Options) *Engine {
	return &Engine{
		logger:    logger.Named("engine"),
		registry:  registry,
		filter:    NewFilter(logger, deps.Preferences),
		deliverer: NewDeliverer(logger, deps.Renderer, deps.Transport, deps.Users, deps.Digests, opts.Delivery),
		queue:     NewWorkQueue(logger, opts.Queue),
		recorder:  deps.Recorder,
		clock:     time.Now,
		newID:     uuid.NewString,
	}
}

// SetClock overrides the time source. Must be called before use (not concurrent).
func (e *Engine) SetClock(clock func() time.Time) {
	e.clock = clock
	e.deliverer.SetClock(clock)
}

// Start launches the background workers. Non-blocking.
func (e *Engine) Start(ctx context.Context) {
	e.queue.Start(ctx)
	e.deliverer.Start(ctx)
}

// Close stops accepting updates and waits for queued ones to drain.
func (e *Engine) Close() {
	e.queue.Close()
}

// NotifyOnUpdate schedules notification processing for a committed update and
// returns immediately. Processing outcomes are only logged. The returned error
// reports that the job could not be scheduled, never a delivery failure.
func (e *Engine) NotifyOnUpdate(ctx context.Context, u types.Update) error {
	name := fmt.Sprintf("%s/%s", u.Kind, u.After.Entity.ID())
	return e.queue.Submit(ctx, name, func(ctx context.Context) {
		_, _ = e.Process(ctx, u)
	})
}

// Process runs the whole pipeline for one update synchronously: detect, resolve,
// pick recipients, filter by preferences, then send or queue. Every failure is
// contained in the report; the error is only set when no events could be
// resolved at all.
func (e *Engine) Process(ctx context.Context, u types.Update) (report Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing %s update: %v", u.Kind, r)
			e.logger.Error("Recovered panic in notification pipeline", zap.Error(err))
		}
	}()

	entityID := u.After.Entity.ID()
	cs, events, err := e.registry.Evaluate(u)
	if err != nil {
		e.logger.Error("Notification evaluation failed",
			zap.String("entity_kind", string(u.Kind)),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
		return Report{}, err
	}
	if len(events) == 0 {
		e.logger.Debug("No notifications for update",
			zap.String("entity_kind", string(u.Kind)),
			zap.String("entity_id", entityID),
			zap.Int("changes", len(cs)),
		)
		return Report{}, nil
	}

	now := e.clock()
	for i := range events {
		events[i].ID = e.newID()
		events[i].CreatedAt = now
		eventsResolvedTotal.WithLabelValues(string(events[i].Type)).Inc()
	}
	report.Events = events

	for _, ev := range events {
		report.Results = append(report.Results, e.dispatch(ctx, ev, u.After)...)
	}
	report.Summary = types.Summarize(report.Results)

	e.logger.Info("Notification dispatch complete",
		zap.String("entity_kind", string(u.Kind)),
		zap.String("entity_id", entityID),
		zap.Int("events", len(events)),
		zap.Int("total", report.Summary.Total),
		zap.Int("successful", report.Summary.Successful),
		zap.Int("skipped", report.Summary.Skipped),
		zap.Int("failed", report.Summary.Failed),
	)
	return report, nil
}

// dispatch handles one event. An event with no recipients yields no results.
func (e *Engine) dispatch(ctx context.Context, ev types.NotificationEvent, snap types.Snapshot) []types.DeliveryResult {
	recipients := ResolveRecipients(ev, snap)
	if len(recipients) == 0 {
		e.logger.Debug("Event has no recipients",
			zap.String("event_id", ev.ID),
			zap.String("event_type", string(ev.Type)),
		)
		return nil
	}

	b := e.filter.Split(ctx, recipients, ev.Type)
	results := make([]types.DeliveryResult, 0, len(recipients))
	for _, r := range b.Skipped {
		deliveriesTotal.WithLabelValues("filter", "skipped").Inc()
		results = append(results, r)
	}
	results = append(results, e.deliverer.Dispatch(ctx, ev, b.Instant, snap)...)
	if len(b.Digest) > 0 {
		e.recordUsers(ctx, b.Digest, snap)
	}
	results = append(results, e.deliverer.Enqueue(ctx, ev, b.Digest)...)
	return results
}

// recordUsers upserts the snapshot's user records for digest recipients. A
// failure only means the digest may later be skipped with no_email.
func (e *Engine) recordUsers(ctx context.Context, userIDs []string, snap types.Snapshot) {
	if e.recorder == nil {
		return
	}
	for _, id := range userIDs {
		u, ok := snap.Users[id]
		if !ok || u.Email == "" {
			continue
		}
		u.ID = id
		if err := e.recorder.PutUser(ctx, u); err != nil {
			e.logger.Warn("Recording digest recipient failed",
				zap.String("user_id", id),
				zap.Error(err),
			)
		}
	}
}
