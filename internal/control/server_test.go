package control

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/api"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/domain"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/intercept"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/inject"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/messaging"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/settings"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type testHarness struct {
	engine *gin.Engine
	server *Server
	hub    *messaging.Hub
	host   *HostQueue
}

func newTestHarness(t *testing.T, upstreamURL string) *testHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := quietLogger()

	db, err := settings.Open(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := settings.NewRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	settingsSvc := settings.NewService(repo, logger)
	require.NoError(t, settingsSvc.Load(context.Background()))

	client := api.NewClient(api.Config{BaseURL: upstreamURL, Logger: logger})

	hub := messaging.NewHub(logger)
	host := NewHostQueue(logger)
	srv := NewServer(hub, settingsSvc, func() *api.Client { return client }, host, logger)

	engine := gin.New()
	srv.RegisterRoutes(engine)
	return &testHarness{engine: engine, server: srv, hub: hub, host: host}
}

func (h *testHarness) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func TestServer_Messages_DispatchesToHub(t *testing.T) {
	h := newTestHarness(t, "http://127.0.0.1:1")

	var gotType messaging.MessageType
	h.hub.RegisterHandler(func(_ context.Context, msg messaging.Message, _ messaging.Sender) messaging.Response {
		gotType = msg.Type
		return messaging.Success([]string{"a", "b"})
	})

	rec := h.request(t, http.MethodPost, "/api/messages", `{"type":"GET_ALL_TASKS"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, messaging.TypeGetAllTasks, gotType)

	var resp messaging.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, messaging.StatusSuccess, resp.Status)
}

func TestServer_Messages_HandlerErrorStaysHTTP200(t *testing.T) {
	h := newTestHarness(t, "http://127.0.0.1:1")
	h.hub.RegisterHandler(func(context.Context, messaging.Message, messaging.Sender) messaging.Response {
		return messaging.Response{Status: messaging.StatusError, Error: "Task not found"}
	})

	// Command failures travel inside the response envelope, not as HTTP errors.
	rec := h.request(t, http.MethodPost, "/api/messages", `{"type":"PAUSE_TASK","payload":{"taskId":"x"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp messaging.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, messaging.StatusError, resp.Status)
	assert.Equal(t, "Task not found", resp.Error)
}

func TestServer_Messages_RejectsMalformedJSON(t *testing.T) {
	h := newTestHarness(t, "http://127.0.0.1:1")
	rec := h.request(t, http.MethodPost, "/api/messages", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Settings_GetAndPut(t *testing.T) {
	h := newTestHarness(t, "http://127.0.0.1:1")

	rec := h.request(t, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var current domain.PluginSettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &current))
	assert.Equal(t, domain.DefaultSettings(), current)

	current.ServerURL = "http://10.0.0.5:8000"
	current.IgnoredDomains = []string{"example.com"}
	body, err := json.Marshal(current)
	require.NoError(t, err)

	rec = h.request(t, http.MethodPut, "/api/settings", string(body))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.request(t, http.MethodGet, "/api/settings", "")
	var updated domain.PluginSettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "http://10.0.0.5:8000", updated.ServerURL)
	assert.Equal(t, []string{"example.com"}, updated.IgnoredDomains)
}

func TestServer_Settings_PutRejectsInvalid(t *testing.T) {
	h := newTestHarness(t, "http://127.0.0.1:1")
	rec := h.request(t, http.MethodPut, "/api/settings", `{"serverUrl":"ftp://nope","modifierKey":"none"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_DownloadEvent_ReportsInterception(t *testing.T) {
	h := newTestHarness(t, "http://127.0.0.1:1")
	h.server.OnDownload(func(ctx context.Context, item intercept.DownloadItem, host intercept.Host) bool {
		require.NoError(t, host.CancelDownload(ctx, item.ID))
		require.NoError(t, host.Notify(ctx, "Task added", item.Filename))
		return true
	})

	rec := h.request(t, http.MethodPost, "/api/events/download",
		`{"id":7,"url":"https://downloads.net/big.iso","filename":"big.iso","fileSize":10485760}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Intercepted  bool   `json:"intercepted"`
		Cancelled    bool   `json:"cancelled"`
		Notification string `json:"notification"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Intercepted)
	assert.True(t, resp.Cancelled)
	assert.Equal(t, "Task added: big.iso", resp.Notification)
}

func TestServer_DownloadEvent_NoHandlerMeansNoInterception(t *testing.T) {
	h := newTestHarness(t, "http://127.0.0.1:1")

	rec := h.request(t, http.MethodPost, "/api/events/download", `{"id":1,"url":"https://x.net/a"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"intercepted":false`)
}

func TestServer_NavigationEvent_ReturnsScriptOnComplete(t *testing.T) {
	h := newTestHarness(t, "http://127.0.0.1:1")
	h.server.OnNavigation(func(ctx context.Context, tabID int, url string, exec inject.ScriptExecutor) {
		require.NoError(t, exec.ExecuteScript(ctx, tabID, "console.log('hi')"))
	})

	rec := h.request(t, http.MethodPost, "/api/events/navigation",
		`{"tabId":3,"url":"https://example.com/watch","status":"complete"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "console.log('hi')")
}

func TestServer_NavigationEvent_IgnoresIncompleteLoads(t *testing.T) {
	h := newTestHarness(t, "http://127.0.0.1:1")
	called := false
	h.server.OnNavigation(func(context.Context, int, string, inject.ScriptExecutor) {
		called = true
	})

	rec := h.request(t, http.MethodPost, "/api/events/navigation",
		`{"tabId":3,"url":"https://example.com","status":"loading"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, called)
}

func TestServer_HostPending_DrainsQueue(t *testing.T) {
	h := newTestHarness(t, "http://127.0.0.1:1")
	require.NoError(t, h.host.OpenOptionsPage(context.Background()))

	rec := h.request(t, http.MethodGet, "/api/host/pending", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var actions []HostAction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &actions))
	require.Len(t, actions, 1)
	assert.Equal(t, "openOptionsPage", actions[0].Action)

	// A second drain finds nothing.
	rec = h.request(t, http.MethodGet, "/api/host/pending", "")
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestServer_ServerPassthrough_ProxiesConfigValues(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/config/values", r.URL.Path)
		_, _ = w.Write([]byte(`{"maxWorkers":8}`))
	}))
	t.Cleanup(upstream.Close)

	h := newTestHarness(t, upstream.URL)
	rec := h.request(t, http.MethodGet, "/api/server/config/values", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"maxWorkers":8`)
}

func TestServer_ServerPassthrough_UpstreamFailureIsBadGateway(t *testing.T) {
	h := newTestHarness(t, "http://127.0.0.1:1")
	rec := h.request(t, http.MethodGet, "/api/server/config/values", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestServer_Health(t *testing.T) {
	h := newTestHarness(t, "http://127.0.0.1:1")
	rec := h.request(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
