package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/api"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/config"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/control"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/domain"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/hub"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/inject"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/intercept"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/messaging"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/poller"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/settings"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/store"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	}

	logger.Info("background agent starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := settings.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open settings database: %v", err)
	}
	defer db.Close()

	settingsRepo := settings.NewRepository(db)
	if err := settingsRepo.Init(ctx); err != nil {
		logger.Fatalf("init settings repository: %v", err)
	}

	settingsSvc := settings.NewService(settingsRepo, logger)
	if err := settingsSvc.Load(ctx); err != nil {
		logger.Fatalf("load settings: %v", err)
	}

	serverURL := settingsSvc.Current().ServerURL
	if serverURL == "" {
		serverURL = cfg.Downloader.URL
	}

	var currentClient atomic.Pointer[api.Client]
	currentClient.Store(api.NewClient(api.Config{BaseURL: serverURL, Logger: logger}))
	logger.Infof("api client initialized to target server at: %s", serverURL)

	taskStore := store.New()
	taskPoller := poller.New(currentClient.Load(), taskStore, logger)

	interceptSvc := intercept.NewService(settingsSvc, taskPoller, logger)
	injectSvc := inject.NewService(currentClient.Load(), logger)

	messageHub := messaging.NewHub(logger)
	hostQueue := control.NewHostQueue(logger)
	router := hub.NewRouter(taskPoller, hostQueue, taskStore, logger)
	router.Register(messageHub)

	// Rebuild the remote client when the user points the agent at a
	// different server; everything else keeps its settings snapshot fresh
	// through the settings service.
	settingsSvc.OnChange(func(old, updated domain.PluginSettings) {
		if old.ServerURL == updated.ServerURL {
			return
		}
		client := api.NewClient(api.Config{BaseURL: updated.ServerURL, Logger: logger})
		currentClient.Store(client)
		taskPoller.SetAPI(client)
		injectSvc.SetSource(client)
		taskPoller.StartPolling()
		logger.Infof("api client re-initialized to target server at: %s", updated.ServerURL)
	})

	controlSrv := control.NewServer(messageHub, settingsSvc, currentClient.Load, hostQueue, logger)
	controlSrv.OnDownload(interceptSvc.Handle)
	controlSrv.OnNavigation(injectSvc.HandleNavigation)

	taskPoller.StartPolling()

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	controlSrv.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: engine,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("control server: %v", err)
		}
	}()

	logger.Info("all background services initialized and started")

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("control server shutdown: %v", err)
	}
	taskPoller.StopPolling()

	logger.Info("bye")
}
