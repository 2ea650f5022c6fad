package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/messaging"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/store"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/telemetry"
)

// TaskActions is the slice of the polling service the router drives.
type TaskActions interface {
	FetchTasks(ctx context.Context) error
	PauseTask(ctx context.Context, taskID string) error
	ResumeTask(ctx context.Context, taskID string) error
	CancelTask(ctx context.Context, taskID string, cleanup bool) error
}

// BrowserActions covers host-browser operations that stay outside the agent:
// opening the options page and revealing a downloaded file.
type BrowserActions interface {
	OpenOptionsPage(ctx context.Context) error
	ShowDownloadInFolder(ctx context.Context, taskID string) error
}

// Router is the single entry point for commands coming over the messaging
// channel. It dispatches by tag, converts every service failure into an
// error-status response, and never propagates a panic or error upward.
type Router struct {
	tasks   TaskActions
	browser BrowserActions
	store   *store.Store
	logger  *logrus.Logger
}

func NewRouter(tasks TaskActions, browser BrowserActions, st *store.Store, logger *logrus.Logger) *Router {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Router{
		tasks:   tasks,
		browser: browser,
		store:   st,
		logger:  logger,
	}
}

// Register installs the router on the hub. Safe to call again after a
// re-initialization; the hub replaces any previous handler.
func (r *Router) Register(h *messaging.Hub) {
	h.RegisterHandler(r.Handle)
	r.logger.Info("message hub initialized and listening for messages")
}

// Handle routes one message. Every tag in the closed set maps to exactly one
// service call; unknown tags are a protocol error, logged loudly and answered
// with an explicit error response.
func (r *Router) Handle(ctx context.Context, msg messaging.Message, sender messaging.Sender) messaging.Response {
	r.logger.Debugf("received message type=%s from %s", msg.Type, senderLabel(sender))

	resp := r.route(ctx, msg)
	telemetry.CommandsTotal.WithLabelValues(string(msg.Type), string(resp.Status)).Inc()
	if resp.Status == messaging.StatusError {
		r.logger.Errorf("error handling message type '%s': %s", msg.Type, resp.Error)
	}
	return resp
}

func (r *Router) route(ctx context.Context, msg messaging.Message) messaging.Response {
	switch msg.Type {
	case messaging.TypeGetAllTasks:
		r.store.BeginAction()
		err := r.tasks.FetchTasks(ctx)
		r.store.EndAction(err)
		if err != nil {
			return messaging.Failure(err)
		}
		return messaging.Success(r.store.Sorted())

	case messaging.TypePauseTask:
		var p messaging.PauseTaskPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return messaging.Failure(err)
		}
		if p.TaskID == "" {
			return messaging.Failure(errors.New("taskId is required"))
		}
		r.store.BeginAction()
		err := r.tasks.PauseTask(ctx, p.TaskID)
		r.store.EndAction(err)
		if err != nil {
			return messaging.Failure(err)
		}
		return messaging.Success(nil)

	case messaging.TypeResumeTask:
		var p messaging.ResumeTaskPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return messaging.Failure(err)
		}
		if p.TaskID == "" {
			return messaging.Failure(errors.New("taskId is required"))
		}
		r.store.BeginAction()
		err := r.tasks.ResumeTask(ctx, p.TaskID)
		r.store.EndAction(err)
		if err != nil {
			return messaging.Failure(err)
		}
		return messaging.Success(nil)

	case messaging.TypeCancelTask:
		var p messaging.CancelTaskPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return messaging.Failure(err)
		}
		if p.TaskID == "" {
			return messaging.Failure(errors.New("taskId is required"))
		}
		cleanup := true
		if p.Cleanup != nil {
			cleanup = *p.Cleanup
		}
		r.store.BeginAction()
		err := r.tasks.CancelTask(ctx, p.TaskID, cleanup)
		r.store.EndAction(err)
		if err != nil {
			return messaging.Failure(err)
		}
		// Optimistic local removal; the next poll reconciles either way.
		r.store.RemoveTask(p.TaskID)
		return messaging.Success(nil)

	case messaging.TypeOpenOptionsPage:
		if err := r.browser.OpenOptionsPage(ctx); err != nil {
			return messaging.Failure(err)
		}
		return messaging.Success(nil)

	case messaging.TypeOpenFileLocation:
		var p messaging.OpenFilePayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return messaging.Failure(err)
		}
		if p.TaskID == "" {
			return messaging.Failure(errors.New("taskId is required"))
		}
		if err := r.browser.ShowDownloadInFolder(ctx, p.TaskID); err != nil {
			return messaging.Failure(err)
		}
		return messaging.Success(nil)

	default:
		r.logger.Errorf("unhandled message type: %q", msg.Type)
		return messaging.Failure(fmt.Errorf("unknown message type: %q", msg.Type))
	}
}

func decodePayload(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return errors.New("missing message payload")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("malformed message payload: %w", err)
	}
	return nil
}

func senderLabel(s messaging.Sender) string {
	if s.TabID > 0 {
		return fmt.Sprintf("tab %d", s.TabID)
	}
	if s.Origin != "" {
		return s.Origin
	}
	return "UI"
}
