package control

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/api"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/domain"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/intercept"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/inject"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/messaging"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/settings"
)

// ClientProvider yields the current remote API client. Indirection matters
// because the client is rebuilt whenever the server address changes.
type ClientProvider func() *api.Client

// DownloadHandler reacts to one forwarded pre-download event.
type DownloadHandler func(ctx context.Context, item intercept.DownloadItem, host intercept.Host) bool

// NavigationHandler reacts to one forwarded navigation-complete event.
type NavigationHandler func(ctx context.Context, tabID int, url string, exec inject.ScriptExecutor)

// Server is the agent's local HTTP surface: the messaging channel for UI
// surfaces, the browser-event bridge for the host shim, settings access, and
// passthroughs to the download server used by the options page.
type Server struct {
	hub      *messaging.Hub
	settings *settings.Service
	client   ClientProvider
	host     *HostQueue
	logger   *logrus.Logger

	mu           sync.RWMutex
	onDownload   DownloadHandler
	onNavigation NavigationHandler
}

func NewServer(hub *messaging.Hub, settingsSvc *settings.Service, client ClientProvider, host *HostQueue, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		hub:      hub,
		settings: settingsSvc,
		client:   client,
		host:     host,
		logger:   logger,
	}
}

// OnDownload installs the pre-download event handler, replacing any previous
// one so re-initialization never double-dispatches a single event.
func (s *Server) OnDownload(fn DownloadHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onDownload != nil {
		s.logger.Warn("download event handler was already registered, replacing it")
	}
	s.onDownload = fn
}

// OnNavigation installs the navigation-complete event handler, replacing any
// previous one.
func (s *Server) OnNavigation(fn NavigationHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onNavigation != nil {
		s.logger.Warn("navigation event handler was already registered, replacing it")
	}
	s.onNavigation = fn
}

func (s *Server) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/messages", s.handleMessage)

		apiGroup.GET("/settings", s.getSettings)
		apiGroup.PUT("/settings", s.updateSettings)

		apiGroup.POST("/events/download", s.handleDownloadEvent)
		apiGroup.POST("/events/navigation", s.handleNavigationEvent)
		apiGroup.GET("/host/pending", s.pendingHostActions)

		server := apiGroup.Group("/server")
		{
			server.GET("/config/schema", s.getConfigSchema)
			server.GET("/config/values", s.getGlobalValues)
			server.PUT("/config/values", s.updateGlobalValues)
			server.GET("/plugins", s.listPlugins)
			server.POST("/plugins/reload", s.reloadPlugins)
		}

		apiGroup.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusAccepted, gin.H{"ok": "ok"})
		})
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// ── messaging channel ────────────────────────────────────────────────────────

func (s *Server) handleMessage(c *gin.Context) {
	var msg messaging.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, messaging.Response{Status: messaging.StatusError, Error: err.Error()})
		return
	}

	sender := messaging.Sender{Origin: c.ClientIP()}
	resp := s.hub.Dispatch(c.Request.Context(), msg, sender)
	c.JSON(http.StatusOK, resp)
}

// ── settings ─────────────────────────────────────────────────────────────────

func (s *Server) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.settings.Current())
}

func (s *Server) updateSettings(c *gin.Context) {
	var updated domain.PluginSettings
	if err := c.ShouldBindJSON(&updated); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.settings.Update(c.Request.Context(), updated); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.settings.Current())
}

// ── browser event bridge ─────────────────────────────────────────────────────

type downloadEventResponse struct {
	Intercepted  bool   `json:"intercepted"`
	Cancelled    bool   `json:"cancelled"`
	Notification string `json:"notification,omitempty"`
}

// eventHost captures the host-side effects of one download decision so the
// shim can apply them.
type eventHost struct {
	cancelled    bool
	notification string
}

func (h *eventHost) CancelDownload(_ context.Context, _ int64) error {
	h.cancelled = true
	return nil
}

func (h *eventHost) Notify(_ context.Context, title, message string) error {
	h.notification = title + ": " + message
	return nil
}

func (s *Server) handleDownloadEvent(c *gin.Context) {
	var item intercept.DownloadItem
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.RLock()
	handler := s.onDownload
	s.mu.RUnlock()
	if handler == nil {
		c.JSON(http.StatusOK, downloadEventResponse{})
		return
	}

	host := &eventHost{}
	intercepted := handler(c.Request.Context(), item, host)
	c.JSON(http.StatusOK, downloadEventResponse{
		Intercepted:  intercepted,
		Cancelled:    host.cancelled,
		Notification: host.notification,
	})
}

type navigationEventRequest struct {
	TabID  int    `json:"tabId"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

type navigationEventResponse struct {
	Script string `json:"script,omitempty"`
}

// responseExecutor hands the script back to the shim, which runs it in the
// page context and removes the script element afterwards.
type responseExecutor struct {
	script string
}

func (e *responseExecutor) ExecuteScript(_ context.Context, _ int, script string) error {
	e.script = script
	return nil
}

func (s *Server) handleNavigationEvent(c *gin.Context) {
	var event navigationEventRequest
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.RLock()
	handler := s.onNavigation
	s.mu.RUnlock()
	if handler == nil || event.Status != "complete" {
		c.JSON(http.StatusOK, navigationEventResponse{})
		return
	}

	exec := &responseExecutor{}
	handler(c.Request.Context(), event.TabID, event.URL, exec)
	c.JSON(http.StatusOK, navigationEventResponse{Script: exec.script})
}

func (s *Server) pendingHostActions(c *gin.Context) {
	actions := s.host.Drain()
	if actions == nil {
		actions = []HostAction{}
	}
	c.JSON(http.StatusOK, actions)
}

// ── download server passthroughs ─────────────────────────────────────────────

func (s *Server) getConfigSchema(c *gin.Context) {
	schema, err := s.client().GetConfigSchema(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, schema)
}

func (s *Server) getGlobalValues(c *gin.Context) {
	values, err := s.client().GetGlobalValues(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, values)
}

func (s *Server) updateGlobalValues(c *gin.Context) {
	var req struct {
		Settings map[string]any `json:"settings"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	values, err := s.client().UpdateGlobalValues(c.Request.Context(), req.Settings)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, values)
}

func (s *Server) listPlugins(c *gin.Context) {
	plugins, err := s.client().GetInstalledPlugins(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, plugins)
}

func (s *Server) reloadPlugins(c *gin.Context) {
	if err := s.client().ReloadPlugins(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"reloaded": true})
}
