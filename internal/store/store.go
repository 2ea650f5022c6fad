package store

import (
	"sort"
	"sync"

	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/domain"
)

// Store holds the authoritative local view of server-side tasks, keyed by
// taskId, plus the loading/error indicators the UI surfaces read. All server
// state flows in through the polling service; the store never invents tasks.
type Store struct {
	mu        sync.RWMutex
	tasks     map[string]domain.Task
	isLoading bool
	lastError string
}

func New() *Store {
	return &Store{tasks: make(map[string]domain.Task)}
}

// SetTasks replaces the whole collection with a server snapshot.
func (s *Store) SetTasks(tasks []domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[string]domain.Task, len(tasks))
	for _, t := range tasks {
		s.tasks[t.TaskID] = t
	}
}

// UpdateOrAddTask upserts a single task by its identifier.
func (s *Store) UpdateOrAddTask(task domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.TaskID] = task
}

// RemoveTask drops a task by identifier. Removing an unknown id is a no-op.
func (s *Store) RemoveTask(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, taskID)
}

// Get looks a task up by identifier.
func (s *Store) Get(taskID string) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[taskID]
	return t, ok
}

// Sorted returns the tasks ordered by descending creation time. The view is
// recomputed on every call, never cached.
func (s *Store) Sorted() []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt != tasks[j].CreatedAt {
			return tasks[i].CreatedAt > tasks[j].CreatedAt
		}
		return tasks[i].TaskID < tasks[j].TaskID
	})
	return tasks
}

// Len reports the number of tracked tasks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// BeginAction marks the start of a command-originated mutation: the loading
// flag goes up and the previous error is cleared.
func (s *Store) BeginAction() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isLoading = true
	s.lastError = ""
}

// EndAction marks the end of a command-originated mutation, recording the
// failure for UI consumption when err is non-nil.
func (s *Store) EndAction(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isLoading = false
	if err != nil {
		s.lastError = err.Error()
	}
}

func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isLoading
}

func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}
