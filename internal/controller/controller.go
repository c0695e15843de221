// Package controller runs nesting jobs behind an asynchronous message
// interface. A single actor goroutine owns all controller state; each run
// executes in its own goroutine and reports back through channels.
package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/piwi3910/SlabNest/internal/engine"
	"github.com/piwi3910/SlabNest/internal/metrics"
	"github.com/piwi3910/SlabNest/internal/model"
)

// ErrClosed is returned by Send once the actor loop has exited.
var ErrClosed = errors.New("controller closed")

// Recorder receives run lifecycle events.
type Recorder interface {
	RunStarted()
	RunFinished(outcome string, elapsed time.Duration)
	RunResult(placed, failed, skipped int, efficiency float64)
}

type nopRecorder struct{}

func (nopRecorder) RunStarted()                       {}
func (nopRecorder) RunFinished(string, time.Duration) {}
func (nopRecorder) RunResult(int, int, int, float64)  {}

// Controller serializes requests against one Nester.
type Controller struct {
	nester   *engine.Nester
	logger   *zap.Logger
	recorder Recorder
	defaults model.NestingConfig

	requests      chan Message
	notifications chan Notification
	done          chan runDone
	closed        chan struct{}

	// owned by the actor goroutine
	active *activeRun
}

type activeRun struct {
	id            string
	cancel        context.CancelFunc
	started       time.Time
	stopRequested bool
}

type runDone struct {
	id     string
	result model.NestResult
	err    error
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithDefaults sets the configuration that fields missing from a
// START_NESTING payload fall back to.
func WithDefaults(cfg model.NestingConfig) Option {
	return func(c *Controller) {
		c.defaults = cfg
	}
}

// WithBuffer sets the notification channel capacity.
func WithBuffer(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.notifications = make(chan Notification, n)
		}
	}
}

// New creates a controller. Call Run to start processing requests.
func New(nester *engine.Nester, opts ...Option) *Controller {
	c := &Controller{
		nester:        nester,
		logger:        zap.NewNop(),
		recorder:      nopRecorder{},
		defaults:      model.DefaultNestingConfig(),
		requests:      make(chan Message),
		notifications: make(chan Notification, 64),
		done:          make(chan runDone, 1),
		closed:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Notifications returns the channel notifications are delivered on. It is
// closed when Run returns.
func (c *Controller) Notifications() <-chan Notification {
	return c.notifications
}

// Send delivers a request to the actor loop.
func (c *Controller) Send(ctx context.Context, msg Message) error {
	select {
	case c.requests <- msg:
		return nil
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit delivers a request and waits for the actor to accept or reject it.
// The outcome is also reported through notifications as with Send.
func (c *Controller) Submit(ctx context.Context, msg Message) (Ack, error) {
	reply := make(chan Ack, 1)
	msg.reply = reply
	if err := c.Send(ctx, msg); err != nil {
		return Ack{}, err
	}
	select {
	case a := <-reply:
		return a, nil
	case <-c.closed:
		select {
		case a := <-reply:
			return a, nil
		default:
			return Ack{}, ErrClosed
		}
	case <-ctx.Done():
		return Ack{}, ctx.Err()
	}
}

// Run processes requests until ctx is cancelled. An active run is cancelled
// and awaited before Run returns.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.notifications)
	defer close(c.closed)

	c.logger.Info("Controller started")
	for {
		select {
		case <-ctx.Done():
			if c.active != nil {
				c.active.cancel()
				<-c.done
				c.recorder.RunFinished(metrics.OutcomeStopped, time.Since(c.active.started))
				c.active = nil
			}
			c.logger.Info("Controller stopped")
			return ctx.Err()
		case msg := <-c.requests:
			c.handle(ctx, msg)
		case d := <-c.done:
			c.finish(ctx, d)
		}
	}
}

func (c *Controller) handle(ctx context.Context, msg Message) {
	switch msg.Type {
	case StartNesting:
		c.start(ctx, msg)
	case StopNesting:
		c.stop(ctx, msg)
	case AnalyzeSheet:
		c.analyze(ctx, msg)
	default:
		err := fmt.Errorf("%w: unknown message type %q", model.ErrProtocol, msg.Type)
		c.logger.Warn("Rejected request", zap.Error(err))
		c.reject(ctx, msg, "", err)
	}
}

// reject answers a request with an error and reports it as ERROR.
func (c *Controller) reject(ctx context.Context, msg Message, runID string, err error) {
	msg.ack(Ack{RunID: runID, Err: err})
	c.emit(ctx, errorNotification(runID, err))
}

func (c *Controller) start(ctx context.Context, msg Message) {
	if c.active != nil {
		err := fmt.Errorf("%w: run %s in progress", model.ErrBusy, c.active.id)
		c.logger.Warn("Rejected start", zap.String("run", c.active.id), zap.Error(err))
		c.reject(ctx, msg, "", err)
		return
	}

	job, err := c.decodeJob(msg.Payload)
	if err != nil {
		c.logger.Warn("Rejected start", zap.Error(err))
		c.reject(ctx, msg, "", err)
		return
	}

	id := uuid.New().String()
	runCtx, cancel := context.WithCancel(ctx)
	c.active = &activeRun{id: id, cancel: cancel, started: time.Now()}
	c.recorder.RunStarted()
	c.logger.Info("Run started",
		zap.String("run", id),
		zap.Int("sheets", len(job.Sheets)),
		zap.Int("inventory", len(job.Inventory)),
		zap.String("mode", string(job.Config.Mode)))
	msg.ack(Ack{RunID: id})

	go func() {
		result, err := c.nester.Nest(runCtx, job, func(pct int) {
			select {
			case c.notifications <- Notification{Type: Progress, RunID: id, Payload: pct}:
			case <-runCtx.Done():
			}
		})
		c.done <- runDone{id: id, result: result, err: err}
	}()
}

func (c *Controller) decodeJob(payload json.RawMessage) (model.NestJob, error) {
	job := model.NestJob{Config: c.defaults}
	if len(bytes.TrimSpace(payload)) == 0 {
		return job, fmt.Errorf("%w: START_NESTING requires a payload", model.ErrProtocol)
	}
	if err := json.Unmarshal(payload, &job); err != nil {
		return job, fmt.Errorf("%w: invalid START_NESTING payload: %v", model.ErrProtocol, err)
	}
	if err := job.Config.Validate(); err != nil {
		return job, err
	}
	return job, nil
}

func (c *Controller) stop(ctx context.Context, msg Message) {
	if c.active == nil {
		msg.ack(Ack{})
		c.emit(ctx, Notification{Type: Stopped})
		return
	}
	msg.ack(Ack{RunID: c.active.id})
	c.logger.Info("Stop requested", zap.String("run", c.active.id))
	c.active.stopRequested = true
	c.active.cancel()
}

func (c *Controller) finish(ctx context.Context, d runDone) {
	run := c.active
	c.active = nil
	run.cancel()
	elapsed := time.Since(run.started)

	switch {
	case d.err == nil:
		c.recorder.RunResult(d.result.PlacedCount(), len(d.result.Failed), len(d.result.Skipped), d.result.TotalEfficiency())
		c.recorder.RunFinished(metrics.OutcomeCompleted, elapsed)
		c.logger.Info("Run completed",
			zap.String("run", d.id),
			zap.Int("placed", d.result.PlacedCount()),
			zap.Int("failed", len(d.result.Failed)),
			zap.Int("skipped", len(d.result.Skipped)),
			zap.Int("sheets", len(d.result.Sheets)),
			zap.Duration("elapsed", elapsed))
		c.emit(ctx, Notification{Type: Complete, RunID: d.id, Payload: d.result})
	case run.stopRequested:
		c.recorder.RunFinished(metrics.OutcomeStopped, elapsed)
		c.logger.Info("Run stopped", zap.String("run", d.id), zap.Duration("elapsed", elapsed))
	default:
		c.recorder.RunFinished(metrics.OutcomeFailed, elapsed)
		c.logger.Error("Run failed", zap.String("run", d.id), zap.Error(d.err))
		c.emit(ctx, errorNotification(d.id, d.err))
	}

	if run.stopRequested {
		c.emit(ctx, Notification{Type: Stopped, RunID: d.id})
	}
}

func (c *Controller) analyze(ctx context.Context, msg Message) {
	var req AnalyzePayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		err = fmt.Errorf("%w: invalid ANALYZE_SHEET payload: %v", model.ErrProtocol, err)
		c.logger.Warn("Rejected analyze", zap.Error(err))
		c.reject(ctx, msg, "", err)
		return
	}

	id := uuid.New().String()
	analysis, err := c.nester.AnalyzeSheet(ctx, req.Sheet)
	if err != nil {
		c.reject(ctx, msg, id, err)
		return
	}
	msg.ack(Ack{RunID: id, Payload: analysis})
	c.emit(ctx, Notification{Type: Complete, RunID: id, Payload: analysis})
}

// emit delivers a notification unless the actor is shutting down.
func (c *Controller) emit(ctx context.Context, n Notification) {
	select {
	case c.notifications <- n:
	case <-ctx.Done():
	}
}
