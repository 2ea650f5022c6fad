package intercept

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/domain"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/telemetry"
)

// DownloadItem describes a native browser download about to start, forwarded
// by the host before the filename is finalized.
type DownloadItem struct {
	ID       int64  `json:"id"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	FileSize int64  `json:"fileSize"`
}

// Host exposes the browser-side actions the service needs when it decides to
// intercept: cancelling the native download and showing a notification.
type Host interface {
	CancelDownload(ctx context.Context, downloadID int64) error
	Notify(ctx context.Context, title, message string) error
}

// TaskCreator forwards an intercepted URL to the server as a new task.
type TaskCreator interface {
	CreateTask(ctx context.Context, url string) error
}

// SettingsProvider yields the current plugin settings snapshot.
type SettingsProvider interface {
	Current() domain.PluginSettings
}

// Service decides, per download, whether to take it over from the browser and
// hand it to the download server.
type Service struct {
	settings SettingsProvider
	tasks    TaskCreator
	logger   *logrus.Logger
}

func NewService(settings SettingsProvider, tasks TaskCreator, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		settings: settings,
		tasks:    tasks,
		logger:   logger,
	}
}

// Handle applies the interception policy to one download. It reports whether
// the download was intercepted; on a policy rejection it takes no action at
// all and the native download proceeds unmodified.
func (s *Service) Handle(ctx context.Context, item DownloadItem, host Host) bool {
	settings := s.settings.Current()

	if !settings.IsInterceptEnabled {
		s.logger.Debug("interception is disabled, skipping download")
		telemetry.InterceptDecisionsTotal.WithLabelValues("disabled").Inc()
		return false
	}

	parsed, err := url.Parse(item.URL)
	if err != nil || parsed.Hostname() == "" {
		s.logger.Warnf("cannot evaluate download URL %q, skipping interception: %v", item.URL, err)
		telemetry.InterceptDecisionsTotal.WithLabelValues("unparseable").Inc()
		return false
	}

	hostname := parsed.Hostname()
	for _, ignored := range settings.IgnoredDomains {
		if ignored != "" && strings.Contains(hostname, ignored) {
			s.logger.Debugf("domain %s is ignored, skipping download interception", hostname)
			telemetry.InterceptDecisionsTotal.WithLabelValues("ignored_domain").Inc()
			return false
		}
	}

	// FileSize may be unknown (zero) at this point; only a known size is
	// checked against the threshold.
	minBytes := int64(settings.MinFileSizeToIntercept) * 1024 * 1024
	if item.FileSize > 0 && item.FileSize < minBytes {
		s.logger.Debug("file size is below threshold, skipping download interception")
		telemetry.InterceptDecisionsTotal.WithLabelValues("below_min_size").Inc()
		return false
	}

	s.logger.Infof("intercepting download for URL: %s", item.URL)
	telemetry.InterceptDecisionsTotal.WithLabelValues("intercepted").Inc()

	// Best-effort: the download may already have been handled by the browser.
	if err := host.CancelDownload(ctx, item.ID); err != nil {
		s.logger.Warnf("could not cancel browser download %d, it may have already completed or failed: %v", item.ID, err)
	}

	if err := s.tasks.CreateTask(ctx, item.URL); err != nil {
		// The native download is already cancelled at this point; there is no
		// retry path for the user beyond starting the download again.
		s.logger.Errorf("failed to send intercepted download to server: %v", err)
		return true
	}

	if err := host.Notify(ctx, "Task added", fmt.Sprintf("Download sent to Ghost Downloader: %s", item.Filename)); err != nil {
		s.logger.Warnf("could not show interception notification: %v", err)
	}
	return true
}
