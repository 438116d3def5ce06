package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/potooio/herald/internal/notifier"
	"github.com/potooio/herald/internal/store"
	"github.com/potooio/herald/internal/testutil"
	"github.com/potooio/herald/internal/types"
)

type fakeNotifier struct {
	mu      sync.Mutex
	updates []types.Update
	err     error
}

func (f *fakeNotifier) NotifyOnUpdate(_ context.Context, u types.Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.updates = append(f.updates, u)
	return nil
}

type fakeDrainer struct {
	result types.DeliveryResult
	calls  []string
}

func (f *fakeDrainer) DrainAndSend(_ context.Context, userID string) types.DeliveryResult {
	f.calls = append(f.calls, userID)
	r := f.result
	r.UserID = userID
	return r
}

type apiFixture struct {
	router   http.Handler
	notifier *fakeNotifier
	drainer  *fakeDrainer
	store    *store.MemoryStore
	queue    *store.MemoryDigestQueue
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	f := &apiFixture{
		notifier: &fakeNotifier{},
		drainer:  &fakeDrainer{result: types.DeliveryResult{Success: true, MessageID: "m-1"}},
		store:    store.NewMemoryStore(),
		queue:    store.NewMemoryDigestQueue(),
	}
	f.router = NewRouter(zap.NewNop(), RouterOptions{
		Notifier:    f.notifier,
		Preferences: f.store,
		Digests:     f.queue,
		Drainer:     f.drainer,
		Capabilities: CapabilitiesHandlerOptions{
			Kinds:           []types.EntityKind{types.EntityKindClient, types.EntityKindProject, types.EntityKindTask},
			Transport:       "log",
			PreferenceStore: "memory",
			DigestQueue:     "memory",
		},
	})
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestUpdates_Accepted(t *testing.T) {
	f := newAPIFixture(t)
	u := testutil.LoadUpdate(t, "project-completed.yaml")
	jsonBody, err := json.Marshal(u)
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/v1/updates", jsonBody)
	assert.Equal(t, http.StatusAccepted, w.Code)

	resp := decode[AcceptedResponse](t, w)
	assert.Equal(t, AcceptedResponse{Status: "accepted", Kind: types.EntityKindProject, EntityID: "p1"}, resp)
	require.Len(t, f.notifier.updates, 1)
	assert.Equal(t, "completed", f.notifier.updates[0].After.Entity.Project.Stage)
}

func TestUpdates_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"malformed", `{"kind":`, "invalid update"},
		{"unknown field", `{"kind":"task","surprise":1}`, "invalid update"},
		{"unknown kind", `{"kind":"invoice","after":{"entity":{"kind":"invoice"}}}`, `unsupported entity kind "invoice"`},
		{"snapshot mismatch", `{"kind":"task","after":{"entity":{"kind":"project","project":{"id":"p1"}}}}`, "entity kind mismatch"},
		{"missing entity", `{"kind":"task","after":{"entity":{"kind":"task"}}}`, "no id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			w := f.do(t, http.MethodPost, "/api/v1/updates", []byte(tt.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode[ErrorResponse](t, w).Error, tt.wantErr)
			assert.Empty(t, f.notifier.updates)
		})
	}
}

func TestUpdates_QueueFull(t *testing.T) {
	f := newAPIFixture(t)
	f.notifier.err = notifier.ErrQueueFull
	body := `{"kind":"task","after":{"entity":{"kind":"task","task":{"id":"t1"}}}}`

	w := f.do(t, http.MethodPost, "/api/v1/updates", []byte(body))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestUpdates_UnexpectedError(t *testing.T) {
	f := newAPIFixture(t)
	f.notifier.err = errors.New("boom")
	body := `{"kind":"task","after":{"entity":{"kind":"task","task":{"id":"t1"}}}}`

	w := f.do(t, http.MethodPost, "/api/v1/updates", []byte(body))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPreferences_DefaultsThenUpdate(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/users/u1/preferences", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[PreferencesResponse](t, w)
	assert.False(t, got.Stored)
	assert.Equal(t, types.DefaultPreferences(), got.Preferences)

	body := `{"enabled":true,"frequency":"weekly_digest","eventTypes":{"taskAssigned":false}}`
	w = f.do(t, http.MethodPut, "/api/v1/users/u1/preferences", []byte(body))
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/users/u1/preferences", nil)
	got = decode[PreferencesResponse](t, w)
	assert.True(t, got.Stored)
	assert.Equal(t, types.FrequencyWeeklyDigest, got.Preferences.Frequency)
	assert.False(t, got.Preferences.Allows(types.EventTaskAssigned))
	assert.True(t, got.Preferences.Allows(types.EventTaskCompleted))
}

func TestPreferences_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad frequency", `{"enabled":true,"frequency":"hourly"}`},
		{"missing frequency", `{"enabled":true}`},
		{"unknown event type", `{"enabled":true,"frequency":"instant","eventTypes":{"taskBlocked":false}}`},
		{"not json", `enabled=true`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			w := f.do(t, http.MethodPut, "/api/v1/users/u1/preferences", []byte(tt.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)

			stored, err := f.store.Get(context.Background(), "u1")
			require.NoError(t, err)
			assert.Nil(t, stored)
		})
	}
}

func TestPreferences_StoreError(t *testing.T) {
	f := newAPIFixture(t)
	failing := &testutil.FailingPreferences{PreferenceStore: f.store, Fail: map[string]error{"u1": errors.New("db down")}}
	router := NewRouter(zap.NewNop(), RouterOptions{Preferences: failing, Digests: f.queue, Drainer: f.drainer})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/u1/preferences", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDigest_ShowGrouped(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	for _, e := range []types.DigestEntry{
		{Type: types.EventTaskDueSoon, Title: "a", Timestamp: now},
		{Type: types.EventProjectCompleted, Title: "b", Timestamp: now},
		{Type: types.EventTaskDueSoon, Title: "c", Timestamp: now},
	} {
		require.NoError(t, f.queue.Append(ctx, "u1", e))
	}

	w := f.do(t, http.MethodGet, "/api/v1/users/u1/digest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[DigestResponse](t, w)
	assert.Equal(t, 3, resp.Count)
	require.Len(t, resp.Groups, 2)
	assert.Equal(t, types.EventTaskDueSoon, resp.Groups[0].Type)
	assert.Len(t, resp.Groups[0].Items, 2)

	w = f.do(t, http.MethodGet, "/api/v1/users/nobody/digest", nil)
	resp = decode[DigestResponse](t, w)
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.Groups)
}

func TestDigest_Drain(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/users/u1/digest/drain", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	res := decode[types.DeliveryResult](t, w)
	assert.True(t, res.Success)
	assert.Equal(t, "u1", res.UserID)
	assert.Equal(t, []string{"u1"}, f.drainer.calls)

	f.drainer.result = types.DeliveryResult{Reason: types.ReasonTransportError, Error: "smtp 451"}
	w = f.do(t, http.MethodPost, "/api/v1/users/u2/digest/drain", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "smtp 451", decode[types.DeliveryResult](t, w).Error)
}

func TestEventTypes(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodGet, "/api/v1/event-types", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[EventTypesResponse](t, w)
	assert.Len(t, resp.PreferenceKeys, 18)
	assert.Equal(t, types.EventTaskStatusChanged, resp.Variants[types.EventTaskBlocked])
	assert.Equal(t, types.EventTeamMemberAdded, resp.Variants[types.EventTeamMemberRemoved])
	assert.NotContains(t, resp.Variants, types.EventTaskAssigned)
}

func TestCapabilities(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodGet, "/api/v1/capabilities", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[CapabilitiesResponse](t, w)
	assert.Equal(t, "1", resp.Version)
	assert.Len(t, resp.Kinds, 3)
	assert.Equal(t, 18, resp.PreferenceKeys)
	assert.Equal(t, 24, resp.Templates)
	assert.Equal(t, "log", resp.Transport)
	assert.NotEmpty(t, resp.UpSince)
}

func TestHealthz(t *testing.T) {
	healthy := NewRouter(zap.NewNop(), RouterOptions{Health: map[string]HealthCheck{
		"store": func(context.Context) error { return nil },
	}})
	w := httptest.NewRecorder()
	healthy.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	degraded := NewRouter(zap.NewNop(), RouterOptions{Health: map[string]HealthCheck{
		"store": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}})
	w = httptest.NewRecorder()
	degraded.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "connection refused", resp.Checks["redis"])
	assert.Equal(t, "ok", resp.Checks["store"])
}

func TestMetricsExposed(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodGet, "/api/v1/updates", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
