package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/potooio/herald/internal/render"
	"github.com/potooio/herald/internal/types"
)

// CapabilitiesResponse is the response for GET /api/v1/capabilities.
type CapabilitiesResponse struct {
	// Version is the API schema version. Currently "1".
	Version string `json:"version"`

	// Kinds lists the entity kinds with a registered strategy.
	Kinds []types.EntityKind `json:"kinds"`

	// PreferenceKeys is the number of user-toggleable event types.
	PreferenceKeys int `json:"preferenceKeys"`

	// Templates is the number of event types the renderer can produce.
	Templates int `json:"templates"`

	// Transport names the active mail transport.
	Transport string `json:"transport"`

	// PreferenceStore and DigestQueue name the active storage backends.
	PreferenceStore string `json:"preferenceStore"`
	DigestQueue     string `json:"digestQueue"`

	// UpSince is when the daemon started.
	UpSince string `json:"upSince,omitempty"`
}

// CapabilitiesHandlerOptions configures the CapabilitiesHandler.
type CapabilitiesHandlerOptions struct {
	Kinds           []types.EntityKind
	Transport       string
	PreferenceStore string
	DigestQueue     string
}

// CapabilitiesHandler handles GET /api/v1/capabilities.
type CapabilitiesHandler struct {
	logger    *zap.Logger
	opts      CapabilitiesHandlerOptions
	startTime time.Time
}

// NewCapabilitiesHandler creates a new CapabilitiesHandler.
func NewCapabilitiesHandler(logger *zap.Logger, opts CapabilitiesHandlerOptions) *CapabilitiesHandler {
	return &CapabilitiesHandler{
		logger:    logger.Named("capabilities"),
		opts:      opts,
		startTime: time.Now(),
	}
}

// ServeHTTP implements http.Handler.
func (h *CapabilitiesHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	kinds := h.opts.Kinds
	if kinds == nil {
		kinds = []types.EntityKind{}
	}
	writeJSON(w, h.logger, http.StatusOK, CapabilitiesResponse{
		Version:         "1",
		Kinds:           kinds,
		PreferenceKeys:  len(types.PreferenceKeys()),
		Templates:       len(render.EventTypes()),
		Transport:       h.opts.Transport,
		PreferenceStore: h.opts.PreferenceStore,
		DigestQueue:     h.opts.DigestQueue,
		UpSince:         h.startTime.UTC().Format(time.RFC3339),
	})
}

// EventTypesResponse is the response for GET /api/v1/event-types.
type EventTypesResponse struct {
	PreferenceKeys []types.PreferenceKeyInfo `json:"preferenceKeys"`
	// Variants maps template-only event types to the preference key that gates them.
	Variants map[types.EventType]types.EventType `json:"variants"`
}

// EventTypesHandler handles GET /api/v1/event-types.
type EventTypesHandler struct {
	logger *zap.Logger
}

// NewEventTypesHandler creates a new EventTypesHandler.
func NewEventTypesHandler(logger *zap.Logger) *EventTypesHandler {
	return &EventTypesHandler{logger: logger.Named("event-types")}
}

// ServeHTTP implements http.Handler.
func (h *EventTypesHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	resp := EventTypesResponse{
		PreferenceKeys: types.PreferenceKeys(),
		Variants:       make(map[types.EventType]types.EventType),
	}
	for _, t := range render.EventTypes() {
		if !types.IsPreferenceKey(t) {
			resp.Variants[t] = t.PreferenceKey()
		}
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}
