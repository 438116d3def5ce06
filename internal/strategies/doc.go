// Package strategies holds the per-entity-kind rule sets of the notification engine.
//
// # Contract
//
// Each entity kind (project, task, client) is served by one types.Strategy that
// bundles its Change Detector and Event Resolver:
//
//  1. Detect(before, patch) compares the persisted entity with the partial update
//     request. Only fields present in the patch count as touched, and a touched
//     field is reported only when its value actually differs.
//  2. Resolve(changeSet, snapshot) maps the change set to notification events,
//     each with a recipient rule and a template parameter bag that already holds
//     human-readable names.
//
// Strategies are pure functions of their inputs. The Registry dispatches on
// entity kind instead of branching inline.
//
//	func NewRegistry() *Registry
//	func (r *Registry) Register(s types.Strategy) error
//	func (r *Registry) Evaluate(u types.Update) (types.ChangeSet, []types.NotificationEvent, error)
//
// Use Default to get a registry with all built-in strategies.
package strategies
