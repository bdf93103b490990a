package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kewalaka/muffinbot/internal/config"
	"github.com/kewalaka/muffinbot/internal/dialog"
	"github.com/kewalaka/muffinbot/internal/logger"
	"github.com/kewalaka/muffinbot/internal/metrics"
	"github.com/kewalaka/muffinbot/internal/nlu"
	"github.com/kewalaka/muffinbot/internal/session"
	"github.com/kewalaka/muffinbot/internal/storage"
	"github.com/kewalaka/muffinbot/internal/webhook"
)

// setupTestApp builds an Application with the emulator transport and the
// local classifier. sqlite selects a temp-file database over memory.
func setupTestApp(t *testing.T, sqlite bool) *Application {
	t.Helper()

	cfg := &config.Config{
		Port:             "0",
		MotelTimezone:    "UTC",
		SessionRetention: 24 * time.Hour,
		ShutdownTimeout:  time.Second,
		EmulatorEnabled:  true,
		Bot:              config.DefaultBotConfig(),
	}
	registry := prometheus.NewRegistry()
	log := logger.NewWithWriter("error", io.Discard)

	app := &Application{
		cfg:      cfg,
		logger:   log,
		metrics:  metrics.New(registry),
		registry: registry,
	}

	if sqlite {
		db, err := storage.New(context.Background(), filepath.Join(t.TempDir(), "sessions.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		app.db = db
		app.sessions = storage.NewSessionStore(db)
	} else {
		app.sessions = session.NewMemoryStore()
	}

	classifier, err := nlu.NewUtteranceClassifier(nil)
	require.NoError(t, err)

	app.engine, err = dialog.NewEngine(dialog.EngineConfig{
		Store:      app.sessions,
		Dispatcher: dialog.NewDispatcher(classifier, dialog.NewDefaultRegistry(dialog.NewCheckInResolver(time.UTC))),
		Logger:     log,
		Metrics:    app.metrics,
	})
	require.NoError(t, err)

	app.emulator = webhook.NewEmulator(app.engine, log, app.metrics, 5*time.Second)
	app.router = app.newRouter()
	return app
}

func serve(app *Application, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	return w
}

func TestLivenessCheck(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, false)

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		w := serve(app, method, "/livez", nil)
		assert.Equal(t, http.StatusOK, w.Code, method)
	}

	var body map[string]any
	w := serve(app, http.MethodGet, "/livez", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "alive", body["status"])
}

func TestReadinessCheck(t *testing.T) {
	t.Parallel()

	for _, sqlite := range []bool{false, true} {
		app := setupTestApp(t, sqlite)
		w := serve(app, http.MethodGet, "/readyz", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Status   string          `json:"status"`
			Sessions int             `json:"sessions"`
			Features map[string]bool `json:"features"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ready", body.Status)
		assert.Zero(t, body.Sessions)
		assert.True(t, body.Features["emulator"])
		assert.False(t, body.Features["line"])
		assert.Equal(t, sqlite, body.Features["persistent_data"])
	}
}

func TestReadinessCheck_DatabaseClosed(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, true)
	require.NoError(t, app.db.Close())

	w := serve(app, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "database unavailable")
}

func TestRootRedirects(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, false)

	w := serve(app, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, repositoryURL, w.Header().Get("Location"))
}

func TestSecurityAndRequestIDHeaders(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, false)

	w := serve(app, http.MethodGet, "/livez", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set("X-Correlation-Id", "corr-42")
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	assert.Equal(t, "corr-42", rec.Header().Get("X-Request-Id"))
}

func TestWebhookRouteAbsentWhenLineDisabled(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, false)

	w := serve(app, http.MethodPost, "/webhook", []byte(`{}`))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEmulatorConversation_PersistsSession(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, true)

	post := func(activity webhook.EmulatorRequest) webhook.EmulatorResponse {
		t.Helper()
		body, err := json.Marshal(activity)
		require.NoError(t, err)
		w := serve(app, http.MethodPost, "/api/messages", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp webhook.EmulatorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp
	}

	resp := post(webhook.EmulatorRequest{Type: webhook.ActivityConversationUpdate, ConversationID: "room-7"})
	require.Len(t, resp.Replies, 2)
	assert.Equal(t, dialog.IntroText, resp.Replies[0].Text)
	assert.Equal(t, dialog.NamePromptText, resp.Replies[1].Text)

	resp = post(webhook.EmulatorRequest{Type: webhook.ActivityMessage, ConversationID: "room-7", Text: "Aroha"})
	require.Len(t, resp.Replies, 1)
	assert.Contains(t, resp.Replies[0].Text, "Aroha")

	sess, err := app.db.GetSession(context.Background(), "room-7")
	require.NoError(t, err)
	assert.Equal(t, "Aroha", sess.UserName)
	assert.True(t, sess.Welcomed)
}

func TestRunSessionCleanup(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, false)
	ctx := context.Background()

	require.NoError(t, app.sessions.Put(ctx, "chat-1", session.Session{UserName: "Mere", Welcomed: true}))

	// A negative retention puts the cutoff in the future.
	app.cfg.SessionRetention = -time.Minute
	app.runSessionCleanup(ctx)

	count, err := app.sessions.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, 1.0, testutil.ToFloat64(app.metrics.JobRunsTotal.WithLabelValues(jobSessionCleanup, "ok")))
}

func TestRecordGauges(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, false)
	ctx := context.Background()

	require.NoError(t, app.sessions.Put(ctx, "chat-1", session.Session{AwaitingName: true}))
	require.NoError(t, app.sessions.Put(ctx, "chat-2", session.Session{UserName: "Tama", Welcomed: true}))

	app.recordGauges(ctx)
	assert.Equal(t, 2.0, testutil.ToFloat64(app.metrics.SessionsStored))
}

func TestNextDailyRun(t *testing.T) {
	t.Parallel()
	nz := time.FixedZone("NZDT", 13*3600)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "before the hour runs today",
			now:  time.Date(2026, 10, 14, 1, 30, 0, 0, nz),
			want: time.Date(2026, 10, 14, 4, 0, 0, 0, nz),
		},
		{
			name: "after the hour runs tomorrow",
			now:  time.Date(2026, 10, 14, 9, 0, 0, 0, nz),
			want: time.Date(2026, 10, 15, 4, 0, 0, 0, nz),
		},
		{
			name: "exactly on the hour runs tomorrow",
			now:  time.Date(2026, 10, 14, 4, 0, 0, 0, nz),
			want: time.Date(2026, 10, 15, 4, 0, 0, 0, nz),
		},
		{
			name: "end of month rolls over",
			now:  time.Date(2026, 10, 31, 23, 0, 0, 0, nz),
			want: time.Date(2026, 11, 1, 4, 0, 0, 0, nz),
		},
		{
			name: "input in another zone",
			now:  time.Date(2026, 10, 14, 14, 0, 0, 0, time.UTC), // 03:00 NZDT on the 15th
			want: time.Date(2026, 10, 15, 4, 0, 0, 0, nz),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := nextDailyRun(tt.now, 4, nz)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}
