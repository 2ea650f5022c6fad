package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/domain"
)

func task(id, title string, createdAt int64) domain.Task {
	return domain.Task{
		TaskID:        id,
		Title:         title,
		OverallStatus: domain.OverallStatusRunning,
		CreatedAt:     createdAt,
	}
}

func TestStore_SetTasks_ReplacesCollection(t *testing.T) {
	s := New()
	s.SetTasks([]domain.Task{task("a", "first", 1), task("b", "second", 2)})
	require.Equal(t, 2, s.Len())

	s.SetTasks([]domain.Task{task("c", "third", 3)})
	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("a")
	assert.False(t, ok)
}

func TestStore_UpdateOrAddTask_UpsertsByID(t *testing.T) {
	s := New()
	s.SetTasks([]domain.Task{task("a", "first", 1), task("b", "second", 2)})

	s.UpdateOrAddTask(task("a", "first updated", 1))
	require.Equal(t, 2, s.Len())

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "first updated", got.Title)

	unchanged, ok := s.Get("b")
	require.True(t, ok)
	assert.Equal(t, "second", unchanged.Title)

	s.UpdateOrAddTask(task("c", "third", 3))
	assert.Equal(t, 3, s.Len())
}

func TestStore_RemoveTask(t *testing.T) {
	s := New()
	s.SetTasks([]domain.Task{task("a", "first", 1), task("b", "second", 2)})

	s.RemoveTask("a")
	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("a")
	assert.False(t, ok)

	// Removing an unknown id is a no-op.
	s.RemoveTask("nope")
	assert.Equal(t, 1, s.Len())
}

func TestStore_Sorted_ByDescendingCreationTime(t *testing.T) {
	s := New()
	s.SetTasks([]domain.Task{
		task("old", "old", 100),
		task("new", "new", 300),
		task("mid", "mid", 200),
	})

	sorted := s.Sorted()
	require.Len(t, sorted, 3)
	assert.Equal(t, "new", sorted[0].TaskID)
	assert.Equal(t, "mid", sorted[1].TaskID)
	assert.Equal(t, "old", sorted[2].TaskID)
}

func TestStore_ActionLifecycle_TracksLoadingAndError(t *testing.T) {
	s := New()

	s.BeginAction()
	assert.True(t, s.IsLoading())
	assert.Empty(t, s.LastError())

	s.EndAction(errors.New("server unreachable"))
	assert.False(t, s.IsLoading())
	assert.Equal(t, "server unreachable", s.LastError())

	// The next action clears the previous error.
	s.BeginAction()
	assert.Empty(t, s.LastError())
	s.EndAction(nil)
	assert.Empty(t, s.LastError())
}
