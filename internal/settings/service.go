package settings

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/domain"
)

// Service owns the process-wide PluginSettings singleton: loaded once at
// startup, read by the interception policy, mutated only through Update.
type Service struct {
	mu       sync.RWMutex
	repo     *Repository
	current  domain.PluginSettings
	logger   *logrus.Logger
	onChange func(old, updated domain.PluginSettings)
}

func NewService(repo *Repository, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		repo:    repo,
		current: domain.DefaultSettings(),
		logger:  logger,
	}
}

// OnChange registers a callback fired after every successful Update, with the
// previous and new settings. Used to rebuild the API client and restart
// polling when the server address changes.
func (s *Service) OnChange(fn func(old, updated domain.PluginSettings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Load reads the stored settings, seeding defaults on first run.
func (s *Service) Load(ctx context.Context) error {
	stored, found, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if !found {
		defaults := domain.DefaultSettings()
		if err := s.repo.Save(ctx, defaults); err != nil {
			return fmt.Errorf("seed default settings: %w", err)
		}
		stored = defaults
		s.logger.Info("no stored settings found, using defaults")
	}

	s.mu.Lock()
	s.current = stored
	s.mu.Unlock()
	s.logger.Infof("settings loaded, server url: %s", stored.ServerURL)
	return nil
}

// Current returns the settings snapshot.
func (s *Service) Current() domain.PluginSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update validates, persists and swaps in new settings, then notifies the
// change callback.
func (s *Service) Update(ctx context.Context, updated domain.PluginSettings) error {
	if err := validate(updated); err != nil {
		return err
	}
	if updated.IgnoredDomains == nil {
		updated.IgnoredDomains = []string{}
	}

	if err := s.repo.Save(ctx, updated); err != nil {
		return err
	}

	s.mu.Lock()
	old := s.current
	s.current = updated
	fn := s.onChange
	s.mu.Unlock()

	s.logger.Infof("settings updated, server url: %s", updated.ServerURL)
	if fn != nil {
		fn(old, updated)
	}
	return nil
}

func validate(settings domain.PluginSettings) error {
	parsed, err := url.Parse(settings.ServerURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("invalid server url: %q", settings.ServerURL)
	}
	if settings.MinFileSizeToIntercept < 0 {
		return errors.New("minimum file size must not be negative")
	}
	switch settings.ModifierKey {
	case domain.ModifierKeyAlt, domain.ModifierKeyCtrl, domain.ModifierKeyShift, domain.ModifierKeyNone:
	default:
		return fmt.Errorf("invalid modifier key: %q", settings.ModifierKey)
	}
	return nil
}
