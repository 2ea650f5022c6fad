package settings

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/domain"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func TestRepository_LoadBeforeSave_NotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, found, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRepository_SaveAndLoad_RoundTrip(t *testing.T) {
	repo := newTestRepository(t)

	saved := domain.PluginSettings{
		ServerURL:              "http://192.168.1.10:8000",
		IsInterceptEnabled:     true,
		MinFileSizeToIntercept: 5,
		IgnoredDomains:         []string{"example.com", "cdn.local"},
		ModifierKey:            domain.ModifierKeyAlt,
	}
	require.NoError(t, repo.Save(context.Background(), saved))

	loaded, found, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, saved, loaded)
}

func TestRepository_Save_Overwrites(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first := domain.DefaultSettings()
	require.NoError(t, repo.Save(ctx, first))

	second := first
	second.ServerURL = "https://dl.example.net"
	second.IsInterceptEnabled = false
	require.NoError(t, repo.Save(ctx, second))

	loaded, found, err := repo.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "https://dl.example.net", loaded.ServerURL)
	assert.False(t, loaded.IsInterceptEnabled)
}

func TestService_Load_SeedsDefaultsOnFirstRun(t *testing.T) {
	repo := newTestRepository(t)
	svc := NewService(repo, quietLogger())

	require.NoError(t, svc.Load(context.Background()))
	assert.Equal(t, domain.DefaultSettings(), svc.Current())

	// The defaults are persisted, not just held in memory.
	stored, found, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.DefaultSettings(), stored)
}

func TestService_Update_PersistsAndNotifies(t *testing.T) {
	repo := newTestRepository(t)
	svc := NewService(repo, quietLogger())
	require.NoError(t, svc.Load(context.Background()))

	var gotOld, gotNew domain.PluginSettings
	svc.OnChange(func(old, updated domain.PluginSettings) {
		gotOld, gotNew = old, updated
	})

	updated := svc.Current()
	updated.ServerURL = "http://10.0.0.2:8000"
	updated.MinFileSizeToIntercept = 10
	require.NoError(t, svc.Update(context.Background(), updated))

	assert.Equal(t, "http://127.0.0.1:8000", gotOld.ServerURL)
	assert.Equal(t, "http://10.0.0.2:8000", gotNew.ServerURL)
	assert.Equal(t, updated, svc.Current())

	stored, found, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 10, stored.MinFileSizeToIntercept)
}

func TestService_Update_RejectsInvalidSettings(t *testing.T) {
	repo := newTestRepository(t)
	svc := NewService(repo, quietLogger())
	require.NoError(t, svc.Load(context.Background()))

	cases := []struct {
		name   string
		mutate func(*domain.PluginSettings)
	}{
		{"empty server url", func(s *domain.PluginSettings) { s.ServerURL = "" }},
		{"non-http scheme", func(s *domain.PluginSettings) { s.ServerURL = "ftp://host" }},
		{"negative min size", func(s *domain.PluginSettings) { s.MinFileSizeToIntercept = -1 }},
		{"bogus modifier key", func(s *domain.PluginSettings) { s.ModifierKey = "meta" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			settings := svc.Current()
			tc.mutate(&settings)
			err := svc.Update(context.Background(), settings)
			require.Error(t, err)
			// A rejected update must leave the snapshot untouched.
			assert.Equal(t, domain.DefaultSettings(), svc.Current())
		})
	}
}
