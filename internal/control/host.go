package control

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// HostAction is a browser-side action the agent wants the host shim to
// perform. The shim drains pending actions over the control surface.
type HostAction struct {
	Action string `json:"action"`
	TaskID string `json:"taskId,omitempty"`
}

// HostQueue implements the router's browser actions by queueing them for the
// host shim to pick up.
type HostQueue struct {
	mu      sync.Mutex
	pending []HostAction
	logger  *logrus.Logger
}

func NewHostQueue(logger *logrus.Logger) *HostQueue {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HostQueue{logger: logger}
}

func (q *HostQueue) push(action HostAction) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, action)
}

// Drain returns and clears the pending actions.
func (q *HostQueue) Drain() []HostAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	actions := q.pending
	q.pending = nil
	return actions
}

func (q *HostQueue) OpenOptionsPage(_ context.Context) error {
	q.push(HostAction{Action: "openOptionsPage"})
	return nil
}

// ShowDownloadInFolder would reveal the finished file in the host's file
// manager. The server does not expose task save paths yet.
// TODO: wire to the host once GET /tasks/{id} reports the file location.
func (q *HostQueue) ShowDownloadInFolder(_ context.Context, taskID string) error {
	q.logger.Warnf("showDownloadInFolder for task %q is not yet implemented", taskID)
	return nil
}
