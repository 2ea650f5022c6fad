package messaging

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Sender describes where a message came from, for logging and auditing.
type Sender struct {
	Origin string
	TabID  int
}

// Handler processes one message and must return exactly one response.
type Handler func(ctx context.Context, msg Message, sender Sender) Response

// Hub is the messaging channel between UI surfaces and the agent. Exactly one
// handler is registered at a time; re-registering replaces the previous
// handler so a single incoming message is never dispatched twice.
type Hub struct {
	mu      sync.RWMutex
	handler Handler
	logger  *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{logger: logger}
}

// RegisterHandler installs the message handler, removing any previous one.
func (h *Hub) RegisterHandler(fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.handler != nil {
		h.logger.Warn("message handler was already registered, replacing it")
	}
	h.handler = fn
}

// Dispatch delivers one message to the registered handler and returns its
// response. Each dispatch gets a correlation id for log tracing.
func (h *Hub) Dispatch(ctx context.Context, msg Message, sender Sender) Response {
	h.mu.RLock()
	handler := h.handler
	h.mu.RUnlock()

	id := uuid.NewString()
	h.logger.Debugf("dispatching message %s type=%s origin=%s", id, msg.Type, sender.Origin)

	if handler == nil {
		h.logger.Errorf("message %s dropped: no handler registered", id)
		return Response{Status: StatusError, Error: "no message handler registered"}
	}
	return handler(ctx, msg, sender)
}
