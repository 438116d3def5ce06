// Package render turns notification events and digests into email messages.
//
// # Contract
//
// Every event type, preference key or template-only variant, has a catalog
// entry with a subject line and a body paragraph written as text/template
// sources over the event's parameter bag. The body is wrapped in a shared
// layout twice: once through html/template (auto-escaped) and once through
// text/template for the plain-text part.
//
// Rendering an event type with no catalog entry returns ErrUnknownEventType.
// Callers treat that as fatal for the one event and never retry it.
//
// Missing parameters render as empty strings, never as "<no value>".
//
//	func NewRenderer(opts Options) (*Renderer, error)
//	func (r *Renderer) Render(eventType types.EventType, params types.Params) (types.Message, error)
//	func (r *Renderer) RenderDigest(view types.DigestView) (types.Message, error)
package render
