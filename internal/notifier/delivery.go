package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/potooio/herald/internal/render"
	"github.com/potooio/herald/internal/types"
)

// DeliveryOptions configures the Deliverer.
type DeliveryOptions struct {
	// Concurrency bounds parallel sends within one event. Default: 8.
	Concurrency int
	// RateLimitPerMinute caps instant sends per recipient. 0 disables. Default: 60.
	RateLimitPerMinute int
}

// DefaultDeliveryOptions returns sensible defaults.
func DefaultDeliveryOptions() DeliveryOptions {
	return DeliveryOptions{
		Concurrency:        8,
		RateLimitPerMinute: 60,
	}
}

// Deliverer sends instant notifications and queues digest entries.
type Deliverer struct {
	logger    *zap.Logger
	renderer  types.Renderer
	transport types.Transport
	users     types.UserDirectory
	digests   types.DigestQueue
	limiter   *recipientLimiter
	opts      DeliveryOptions
	clock     func() time.Time
}

// NewDeliverer creates a Deliverer. users may be nil when snapshots always carry
// recipient emails.
func NewDeliverer(logger *zap.Logger, renderer types.Renderer, transport types.Transport, users types.UserDirectory, digests types.DigestQueue, opts DeliveryOptions) *Deliverer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultDeliveryOptions().Concurrency
	}
	return &Deliverer{
		logger:    logger.Named("deliverer"),
		renderer:  renderer,
		transport: transport,
		users:     users,
		digests:   digests,
		limiter:   newRecipientLimiter(opts.RateLimitPerMinute),
		opts:      opts,
		clock:     time.Now,
	}
}

// SetClock overrides the time source. Must be called before use (not concurrent).
func (d *Deliverer) SetClock(clock func() time.Time) {
	d.clock = clock
}

// Dispatch renders ev once and sends it to every instant recipient in parallel.
// Each recipient gets exactly one result; one failure never affects another send.
func (d *Deliverer) Dispatch(ctx context.Context, ev types.NotificationEvent, recipients []string, snap types.Snapshot) []types.DeliveryResult {
	if len(recipients) == 0 {
		return nil
	}
	results := make([]types.DeliveryResult, len(recipients))

	msg, err := d.renderer.Render(ev.Type, ev.Params)
	if err != nil {
		d.logger.Error("Template render failed, dropping event",
			zap.String("event_id", ev.ID),
			zap.String("event_type", string(ev.Type)),
			zap.Bool("unknown_event_type", errors.Is(err, render.ErrUnknownEventType)),
			zap.Error(err),
		)
		for i, userID := range recipients {
			results[i] = failed(userID, ev.Type, types.ReasonRenderError, err)
			deliveriesTotal.WithLabelValues("instant", "failed").Inc()
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(d.opts.Concurrency)
	for i, userID := range recipients {
		g.Go(func() error {
			results[i] = d.sendOne(ctx, ev, msg, userID, snap)
			deliveriesTotal.WithLabelValues("instant", resultStatus(results[i])).Inc()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// sendOne delivers msg to one recipient. Panics are converted into a failed result.
func (d *Deliverer) sendOne(ctx context.Context, ev types.NotificationEvent, msg types.Message, userID string, snap types.Snapshot) (result types.DeliveryResult) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic during send: %v", r)
			d.logger.Error("Recovered panic in send",
				zap.String("user_id", userID),
				zap.String("event_type", string(ev.Type)),
				zap.Error(err),
			)
			result = failed(userID, ev.Type, types.ReasonPanic, err)
		}
	}()

	email, err := resolveEmail(ctx, d.users, snap.Users, userID)
	if err != nil {
		d.logger.Warn("Recipient email lookup failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return skipped(userID, ev.Type, types.ReasonNoEmail, err)
	}
	if email == "" {
		d.logger.Warn("Recipient has no email address", zap.String("user_id", userID))
		return skipped(userID, ev.Type, types.ReasonNoEmail, nil)
	}

	if !d.limiter.Allow(userID) {
		d.logger.Debug("Recipient rate limited",
			zap.String("user_id", userID),
			zap.String("event_type", string(ev.Type)),
		)
		return skipped(userID, ev.Type, types.ReasonRateLimited, nil)
	}

	receipt, err := d.transport.Send(ctx, types.Email{
		To:      []string{email},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		d.logger.Error("Transport send failed",
			zap.String("transport", d.transport.Name()),
			zap.String("user_id", userID),
			zap.String("event_id", ev.ID),
			zap.String("event_type", string(ev.Type)),
			zap.Error(err),
		)
		return failed(userID, ev.Type, types.ReasonTransportError, err)
	}
	return types.DeliveryResult{
		UserID:    userID,
		EventType: ev.Type,
		Success:   true,
		MessageID: receipt.MessageID,
	}
}

// Enqueue appends a digest entry for each digest recipient. No rendering happens here.
func (d *Deliverer) Enqueue(ctx context.Context, ev types.NotificationEvent, recipients []string) []types.DeliveryResult {
	if len(recipients) == 0 {
		return nil
	}
	entry := types.DigestEntryFor(ev, d.clock())
	results := make([]types.DeliveryResult, 0, len(recipients))
	for _, userID := range recipients {
		var r types.DeliveryResult
		if err := d.digests.Append(ctx, userID, entry); err != nil {
			d.logger.Error("Digest enqueue failed",
				zap.String("user_id", userID),
				zap.String("event_type", string(ev.Type)),
				zap.Error(err),
			)
			r = failed(userID, ev.Type, types.ReasonQueueError, err)
		} else {
			r = types.DeliveryResult{UserID: userID, EventType: ev.Type, Success: true, Reason: types.ReasonQueued}
		}
		deliveriesTotal.WithLabelValues("digest", resultStatus(r)).Inc()
		results = append(results, r)
	}
	return results
}

// Start runs limiter eviction until ctx is cancelled. Non-blocking.
func (d *Deliverer) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.limiter.Evict(time.Hour)
			}
		}
	}()
}

// resolveEmail prefers the snapshot's user record and falls back to the directory.
func resolveEmail(ctx context.Context, dir types.UserDirectory, known map[string]types.User, userID string) (string, error) {
	if u, ok := known[userID]; ok && u.Email != "" {
		return u.Email, nil
	}
	if dir == nil {
		return "", nil
	}
	u, err := dir.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", nil
	}
	return u.Email, nil
}
