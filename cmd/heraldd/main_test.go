package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/potooio/herald/internal/config"
	"github.com/potooio/herald/internal/testutil"
	"github.com/potooio/herald/internal/types"
)

func TestBuild_DefaultsEndToEnd(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	cfg := config.Default()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := build(ctx, cfg, zap.New(core))
	require.NoError(t, err)
	defer c.close()
	assert.Equal(t, "log", c.transport.Name())

	c.engine.Start(ctx)
	u := testutil.LoadUpdate(t, "project-completed.yaml")
	body, err := json.Marshal(u)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/updates", bytes.NewReader(body)))
	require.Equal(t, http.StatusAccepted, w.Code)

	// Two events for two team members, each logged by the log transport.
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("Email").Len() == 4
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	c.engine.Close()
}

func TestBuild_DefaultsDigestDrain(t *testing.T) {
	ctx := context.Background()
	c, err := build(ctx, config.Default(), zap.NewNop())
	require.NoError(t, err)
	defer c.close()

	prefs := `{"enabled":true,"frequency":"daily_digest","eventTypes":{}}`
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/users/u1/preferences", bytes.NewReader([]byte(prefs))))
	require.Equal(t, http.StatusOK, w.Code)

	_, err = c.engine.Process(ctx, testutil.LoadUpdate(t, "project-completed.yaml"))
	require.NoError(t, err)

	w = httptest.NewRecorder()
	c.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/users/u1/digest/drain", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var res types.DeliveryResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.True(t, res.Success, "reason %s", res.Reason)
	assert.NotEmpty(t, res.MessageID)

	w = httptest.NewRecorder()
	c.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/users/u1/digest/drain", nil))
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, types.ReasonEmpty, res.Reason, "second drain finds nothing")
}

func TestBuild_SQLiteAndRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Store.Kind = config.StoreSQLite
	cfg.Store.DSN = filepath.Join(t.TempDir(), "herald.db")
	cfg.Digest.Queue = config.StoreRedis
	cfg.Digest.Redis.Addrs = []string{mr.Addr()}
	require.NoError(t, cfg.Validate())

	ctx := context.Background()
	c, err := build(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer c.close()

	prefs := `{"enabled":true,"frequency":"daily_digest","eventTypes":{}}`
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/users/u1/preferences", bytes.NewReader([]byte(prefs))))
	require.Equal(t, http.StatusOK, w.Code)

	u := testutil.LoadUpdate(t, "project-completed.yaml")
	report, err := c.engine.Process(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Summary.Successful)

	w = httptest.NewRecorder()
	c.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/users/u1/digest", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var digest struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&digest))
	assert.Equal(t, 2, digest.Count)

	w = httptest.NewRecorder()
	c.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/users/u1/digest/drain", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var drained types.DeliveryResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&drained))
	assert.True(t, drained.Success, "reason %s", drained.Reason)

	w = httptest.NewRecorder()
	c.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/users/u1/digest", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&digest))
	assert.Equal(t, 0, digest.Count)

	w = httptest.NewRecorder()
	c.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "redis")
	assert.Contains(t, w.Body.String(), "sqlite")
}

func TestBuild_RedisUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.Digest.Queue = config.StoreRedis
	cfg.Digest.Redis.Addrs = []string{"127.0.0.1:1"}

	_, err := build(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "connect digest queue")
}

func TestBuildTransport(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *config.Config)
		wantName string
		wantErr  bool
	}{
		{"log", func(*config.Config) {}, "log", false},
		{"webhook", func(c *config.Config) {
			c.Transport.Kind = config.TransportWebhook
			c.Transport.Webhook.URL = "https://relay.example.com/send"
		}, "webhook", false},
		{"smtp", func(c *config.Config) {
			c.Transport.Kind = config.TransportSMTP
			c.Transport.From = "herald@example.com"
			c.Transport.SMTP.Host = "smtp.example.com"
		}, "smtp", false},
		{"unknown", func(c *config.Config) { c.Transport.Kind = "pigeon" }, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			tr, err := buildTransport(cfg, zap.NewNop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, tr.Name())
		})
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := NewServer(ServerConfig{ShutdownTimeout: time.Second}, handler, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_ListenError(t *testing.T) {
	srv := NewServer(ServerConfig{Addr: "not-an-address"}, http.NotFoundHandler(), zap.NewNop())
	assert.Error(t, srv.Start(context.Background()))
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, zap.NewNop()) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
}
