package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/potooio/herald/internal/notifier"
	"github.com/potooio/herald/internal/types"
)

// Notifier accepts committed entity updates for background notification.
type Notifier interface {
	NotifyOnUpdate(ctx context.Context, u types.Update) error
}

// AcceptedResponse is the response for POST /api/v1/updates.
type AcceptedResponse struct {
	Status   string           `json:"status"`
	Kind     types.EntityKind `json:"kind"`
	EntityID string           `json:"entityId"`
}

// UpdatesHandler handles POST /api/v1/updates. The update is scheduled and the
// request returns before any notification is delivered.
type UpdatesHandler struct {
	logger   *zap.Logger
	notifier Notifier
	kinds    []types.EntityKind
}

// NewUpdatesHandler creates a new UpdatesHandler accepting the given entity kinds.
func NewUpdatesHandler(logger *zap.Logger, n Notifier, kinds []types.EntityKind) *UpdatesHandler {
	return &UpdatesHandler{
		logger:   logger.Named("updates"),
		notifier: n,
		kinds:    kinds,
	}
}

// ServeHTTP implements http.Handler.
func (h *UpdatesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var u types.Update
	if err := decodeJSON(w, r, &u); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, fmt.Sprintf("invalid update: %v", err))
		return
	}
	if err := h.validate(u); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	entityID := u.After.Entity.ID()
	if err := h.notifier.NotifyOnUpdate(r.Context(), u); err != nil {
		if errors.Is(err, notifier.ErrQueueFull) || errors.Is(err, notifier.ErrQueueClosed) {
			w.Header().Set("Retry-After", "1")
			writeError(w, h.logger, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.logger.Error("Scheduling update failed",
			zap.String("entity_kind", string(u.Kind)),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
		writeError(w, h.logger, http.StatusInternalServerError, "failed to schedule update")
		return
	}

	writeJSON(w, h.logger, http.StatusAccepted, AcceptedResponse{
		Status:   "accepted",
		Kind:     u.Kind,
		EntityID: entityID,
	})
}

func (h *UpdatesHandler) validate(u types.Update) error {
	if !slices.Contains(h.kinds, u.Kind) {
		return fmt.Errorf("unsupported entity kind %q", u.Kind)
	}
	if u.After.Entity.Kind != u.Kind {
		return fmt.Errorf("%w: update is %q, snapshot is %q", types.ErrKindMismatch, u.Kind, u.After.Entity.Kind)
	}
	if u.After.Entity.ID() == "" {
		return errors.New("after.entity is missing or has no id")
	}
	return nil
}
