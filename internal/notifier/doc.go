// Package notifier turns committed entity updates into email notifications.
//
// # Contract
//
// The Engine runs one pipeline per update:
//  1. The strategy registry detects changes and resolves events.
//  2. ResolveRecipients derives candidate users per event from the snapshot.
//  3. Filter.Split reads each user's preferences and buckets them as instant,
//     digest or skipped. A missing preference record means DefaultPreferences.
//  4. Deliverer.Dispatch renders the event once and sends to every instant
//     recipient in parallel. Deliverer.Enqueue appends a digest entry for every
//     digest recipient.
//
// NotifyOnUpdate hands the update to a WorkQueue and returns at once, so the
// caller's committed write never waits on or fails because of notification
// work. Process runs the same pipeline synchronously.
//
// # Error boundary
//
// Nothing here propagates a delivery failure to the caller. Each recipient gets
// a DeliveryResult; transport errors, missing emails, preference lookup errors
// and render errors become failed or skipped results. Panics in a send, a
// digest drain or a background job are recovered and logged.
//
// # Rate Limiting
//
// Instant sends are limited per recipient (default 60/minute, 10% burst).
// Excess sends are skipped with reason rate_limited.
//
// # Digests
//
// The Batcher drains a user's pending entries into one message grouped by event
// type. Entries are removed only after a successful send, and only the entries
// that were read, so appends racing with a drain are kept. The scheduler drains
// a user once their oldest entry predates the last daily (or weekly) boundary.
//
//	func NewEngine(logger *zap.Logger, registry *strategies.Registry, deps Dependencies, opts Options) *Engine
//	func (e *Engine) NotifyOnUpdate(ctx context.Context, u types.Update) error
//	func (e *Engine) Process(ctx context.Context, u types.Update) (Report, error)
//
//	func NewBatcher(...) *Batcher
//	func (b *Batcher) DrainAndSend(ctx context.Context, userID string) types.DeliveryResult
//	func (b *Batcher) DrainDue(ctx context.Context) (types.Summary, error)
package notifier
