package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/potooio/herald/internal/notifier"
	"github.com/potooio/herald/internal/store"
	"github.com/potooio/herald/internal/types"
)

// DigestDrainer sends a user's pending digest on demand.
type DigestDrainer interface {
	DrainAndSend(ctx context.Context, userID string) types.DeliveryResult
}

// PreferencesResponse is the response for GET and PUT /api/v1/users/{id}/preferences.
type PreferencesResponse struct {
	UserID string `json:"userId"`
	// Stored is false when the user has no saved preferences and defaults apply.
	Stored      bool                          `json:"stored"`
	Preferences types.NotificationPreferences `json:"preferences"`
}

// DigestResponse is the response for GET /api/v1/users/{id}/digest.
type DigestResponse struct {
	UserID string              `json:"userId"`
	Count  int                 `json:"count"`
	Groups []types.DigestGroup `json:"groups"`
}

// UsersHandler serves the per-user preference and digest endpoints.
type UsersHandler struct {
	logger  *zap.Logger
	prefs   types.PreferenceStore
	digests types.DigestQueue
	drainer DigestDrainer
}

// NewUsersHandler creates a new UsersHandler.
func NewUsersHandler(logger *zap.Logger, prefs types.PreferenceStore, digests types.DigestQueue, drainer DigestDrainer) *UsersHandler {
	return &UsersHandler{
		logger:  logger.Named("users"),
		prefs:   prefs,
		digests: digests,
		drainer: drainer,
	}
}

// Routes mounts the handlers under /users/{id}.
func (h *UsersHandler) Routes(r chi.Router) {
	r.Route("/users/{id}", func(r chi.Router) {
		r.Get("/preferences", h.GetPreferences)
		r.Put("/preferences", h.PutPreferences)
		r.Get("/digest", h.GetDigest)
		r.Post("/digest/drain", h.DrainDigest)
	})
}

// GetPreferences returns the stored preferences, or the defaults.
func (h *UsersHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	prefs, stored, err := store.PreferencesOrDefault(r.Context(), h.prefs, userID)
	if err != nil {
		h.logger.Error("Preference lookup failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "preferences unavailable")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, PreferencesResponse{UserID: userID, Stored: stored, Preferences: prefs})
}

// PutPreferences replaces the user's preferences.
func (h *UsersHandler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	var p types.NotificationPreferences
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, fmt.Sprintf("invalid preferences: %v", err))
		return
	}
	if err := p.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.prefs.Update(r.Context(), userID, p); err != nil {
		h.logger.Error("Preference update failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "failed to save preferences")
		return
	}
	h.logger.Info("Preferences updated",
		zap.String("user_id", userID),
		zap.Bool("enabled", p.Enabled),
		zap.String("frequency", string(p.Frequency)),
	)
	writeJSON(w, h.logger, http.StatusOK, PreferencesResponse{UserID: userID, Stored: true, Preferences: p})
}

// GetDigest returns the user's pending digest entries grouped by event type.
func (h *UsersHandler) GetDigest(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	entries, err := h.digests.Pending(r.Context(), userID)
	if err != nil {
		h.logger.Error("Reading pending digest failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "digest unavailable")
		return
	}
	groups := notifier.GroupEntries(entries)
	if groups == nil {
		groups = []types.DigestGroup{}
	}
	writeJSON(w, h.logger, http.StatusOK, DigestResponse{UserID: userID, Count: len(entries), Groups: groups})
}

// DrainDigest sends the user's pending digest now. A failed send answers 502
// and leaves the entries queued.
func (h *UsersHandler) DrainDigest(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	result := h.drainer.DrainAndSend(r.Context(), userID)
	status := http.StatusOK
	if result.Failed() {
		status = http.StatusBadGateway
	}
	writeJSON(w, h.logger, status, result)
}
