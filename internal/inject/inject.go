package inject

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/telemetry"
)

// ScriptSource resolves the injector script for a page URL. An empty script
// means nothing should be injected.
type ScriptSource interface {
	GetInjectorScript(ctx context.Context, pageURL string) (string, error)
}

// ScriptExecutor runs a script in the page context of a tab. The host side
// removes the script element right after execution.
type ScriptExecutor interface {
	ExecuteScript(ctx context.Context, tabID int, script string) error
}

// Service reacts to completed page navigations by asking the server for an
// injector script and running it once in the visited page.
type Service struct {
	source ScriptSource
	logger *logrus.Logger

	mu sync.Mutex
}

func NewService(source ScriptSource, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{source: source, logger: logger}
}

// SetSource swaps the script source, used when the server address changes.
func (s *Service) SetSource(source ScriptSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
}

func (s *Service) scriptSource() ScriptSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// HandleNavigation processes one navigation-complete event. Failures are
// logged per tab and never affect other tabs or future navigations.
func (s *Service) HandleNavigation(ctx context.Context, tabID int, pageURL string, exec ScriptExecutor) {
	if pageURL == "" {
		return
	}
	s.logger.Debugf("tab %d completed loading: %s", tabID, pageURL)

	script, err := s.scriptSource().GetInjectorScript(ctx, pageURL)
	if err != nil {
		s.logger.Errorf("failed to get injector script for tab %d: %v", tabID, err)
		telemetry.ScriptInjectionsTotal.WithLabelValues("fetch_error").Inc()
		return
	}
	if script == "" {
		return
	}

	s.logger.Infof("injecting script into tab %d for URL %s", tabID, pageURL)
	if err := exec.ExecuteScript(ctx, tabID, script); err != nil {
		s.logger.Errorf("failed to inject script into tab %d: %v", tabID, err)
		telemetry.ScriptInjectionsTotal.WithLabelValues("exec_error").Inc()
		return
	}
	telemetry.ScriptInjectionsTotal.WithLabelValues("ok").Inc()
}
