package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/domain"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/store"
	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/telemetry"
)

// DefaultInterval is how often the task list is refreshed from the server.
const DefaultInterval = time.Second

// TaskAPI is the slice of the remote client the poller needs.
type TaskAPI interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	CreateTask(ctx context.Context, url string, configOverrides map[string]any) (*domain.Task, error)
	PauseTask(ctx context.Context, taskID string) (*domain.Task, error)
	ResumeTask(ctx context.Context, taskID string) (*domain.Task, error)
	CancelTask(ctx context.Context, taskID string, cleanup bool) error
}

// Poller owns the recurring fetch-and-publish cycle that keeps the store in
// sync with the server, plus the direct pass-through task operations.
//
// Locking: runMu guards the timer lifecycle and apiMu guards the client
// reference. They are separate so that stopping the timer (which waits for
// the polling goroutine to exit) can never contend with the goroutine's own
// client() lookup on the tick path.
type Poller struct {
	store    *store.Store
	logger   *logrus.Logger
	interval time.Duration

	apiMu sync.Mutex
	api   TaskAPI

	// fetchMu serializes all fetch-and-publish cycles, tick-driven and
	// command-driven alike, so the store always holds the result of the
	// most recently completed fetch.
	fetchMu sync.Mutex

	runMu    sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	inFlight atomic.Bool
}

// Option configures a Poller.
type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

func New(api TaskAPI, st *store.Store, logger *logrus.Logger, opts ...Option) *Poller {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	p := &Poller{
		api:      api,
		store:    st,
		logger:   logger,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetAPI swaps the remote client, used when the server address changes.
// In-flight requests finish against the old client.
func (p *Poller) SetAPI(api TaskAPI) {
	p.apiMu.Lock()
	defer p.apiMu.Unlock()
	p.api = api
}

func (p *Poller) client() TaskAPI {
	p.apiMu.Lock()
	defer p.apiMu.Unlock()
	return p.api
}

// StartPolling starts the recurring timer. A fresh start performs one fetch
// immediately instead of waiting for the first tick; when a timer is already
// active it is replaced, without issuing a second immediate fetch.
func (p *Poller) StartPolling() {
	p.runMu.Lock()
	wasRunning := p.cancel != nil
	if wasRunning {
		p.stopLocked()
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.runMu.Unlock()

	p.logger.Infof("starting task polling every %s", p.interval)
	go p.run(ctx, done, !wasRunning)
}

// StopPolling cancels the timer. Safe to call when not running.
func (p *Poller) StopPolling() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	p.stopLocked()
}

// stopLocked runs under runMu. Waiting for the goroutine here is safe: the
// run loop only ever takes apiMu and fetchMu, never runMu.
func (p *Poller) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
	p.logger.Info("task polling stopped")
}

func (p *Poller) run(ctx context.Context, done chan struct{}, immediate bool) {
	defer close(done)

	if immediate {
		p.pollOnce(ctx)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

// pollOnce runs one cycle unless the previous one is still in flight, so the
// store always reflects the most recently completed fetch.
func (p *Poller) pollOnce(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.logger.Debug("previous poll still in flight, skipping tick")
		telemetry.PollCyclesTotal.WithLabelValues("skipped").Inc()
		return
	}
	defer p.inFlight.Store(false)

	if err := p.FetchTasks(ctx); err != nil {
		telemetry.PollCyclesTotal.WithLabelValues("error").Inc()
		return
	}
	telemetry.PollCyclesTotal.WithLabelValues("ok").Inc()
}

// FetchTasks replaces the store's collection with the server's task list.
// Failures are logged here; the polling loop never stops because of one.
// Cycles are serialized, so a command-triggered fetch racing a tick can never
// overwrite a newer snapshot with a staler one.
func (p *Poller) FetchTasks(ctx context.Context) error {
	p.fetchMu.Lock()
	defer p.fetchMu.Unlock()

	tasks, err := p.client().ListTasks(ctx)
	if err != nil {
		p.logger.Errorf("failed to fetch tasks from server: %v", err)
		return err
	}
	p.store.SetTasks(tasks)
	return nil
}

// CreateTask submits a new download URL and refreshes the list right away.
// The refresh is best-effort; the next tick reconciles if it fails.
func (p *Poller) CreateTask(ctx context.Context, url string) error {
	if _, err := p.client().CreateTask(ctx, url, nil); err != nil {
		return err
	}
	_ = p.FetchTasks(ctx)
	return nil
}

// PauseTask pauses a task and merges the server's updated snapshot into the
// store; when the server returns nothing useful it falls back to a refresh.
func (p *Poller) PauseTask(ctx context.Context, taskID string) error {
	updated, err := p.client().PauseTask(ctx, taskID)
	if err != nil {
		return err
	}
	if updated != nil && updated.TaskID != "" {
		p.store.UpdateOrAddTask(*updated)
		return nil
	}
	return p.FetchTasks(ctx)
}

// ResumeTask resumes a task and resynchronizes with a best-effort refresh.
func (p *Poller) ResumeTask(ctx context.Context, taskID string) error {
	if _, err := p.client().ResumeTask(ctx, taskID); err != nil {
		return err
	}
	_ = p.FetchTasks(ctx)
	return nil
}

// CancelTask cancels a task, forwarding the caller's choice about cleaning up
// on-disk artifacts, then resynchronizes with a best-effort refresh.
func (p *Poller) CancelTask(ctx context.Context, taskID string, cleanup bool) error {
	if err := p.client().CancelTask(ctx, taskID, cleanup); err != nil {
		return err
	}
	_ = p.FetchTasks(ctx)
	return nil
}
