package backend

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

const DefaultJobTimeout = 10 * time.Minute

// Handle is the gateway's view of a submitted request.
type Handle struct {
	requestID int64
	done      chan error
	abandoned atomic.Bool
}

func newHandle(requestID int64) *Handle {
	return &Handle{requestID: requestID, done: make(chan error, 1)}
}

// Wait blocks until the request finishes or timeout passes. On timeout the
// handle is abandoned and ErrAckTimeout returned; the job keeps running.
func (h *Handle) Wait(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-h.done:
		return err
	case <-timer.C:
		h.abandoned.Store(true)
		return ErrAckTimeout
	}
}

// complete never blocks: done has room for exactly one result.
func (h *Handle) complete(err error) {
	select {
	case h.done <- err:
	default:
	}
}

type submission struct {
	req    IncomingRequest
	handle *Handle
}

// Dispatcher is the single long-lived executor. Every request enters through
// its Run loop, which starts one goroutine per request.
type Dispatcher struct {
	handler    RequestHandler
	sender     Sender
	jobTimeout time.Duration
	logger     *slog.Logger

	submissions chan submission
	started     chan struct{}
	stopped     chan struct{}
	startOnce   sync.Once
	jobs        sync.WaitGroup
	inflight    atomic.Int32
}

// NewDispatcher returns a dispatcher for handler. sender receives the
// message shown when a job panics and may be nil.
func NewDispatcher(handler RequestHandler, sender Sender, jobTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}
	if logger == nil {
		logger = Logger
	}
	return &Dispatcher{
		handler:     handler,
		sender:      sender,
		jobTimeout:  jobTimeout,
		logger:      componentLogger(logger, "dispatcher"),
		submissions: make(chan submission),
		started:     make(chan struct{}),
		stopped:     make(chan struct{}),
	}
}

// Run processes submissions until ctx is cancelled. Job contexts derive from
// ctx, so cancelling it also cancels running jobs. Run must be called once.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.startOnce.Do(func() { close(d.started) })
	defer close(d.stopped)

	d.logger.Info("dispatcher running")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping", slog.Int("inflight", d.InFlight()))
			return ctx.Err()
		case sub := <-d.submissions:
			d.jobs.Add(1)
			d.inflight.Add(1)
			go d.process(ctx, sub)
		}
	}
}

// Started is closed once Run has begun.
func (d *Dispatcher) Started() <-chan struct{} {
	return d.started
}

// Submit hands req to the Run loop.
func (d *Dispatcher) Submit(ctx context.Context, req IncomingRequest) (*Handle, error) {
	h := newHandle(req.RequestID)
	select {
	case <-d.stopped:
		return nil, ErrDispatcherStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	case d.submissions <- submission{req: req, handle: h}:
		return h, nil
	}
}

// InFlight reports the number of running jobs.
func (d *Dispatcher) InFlight() int {
	return int(d.inflight.Load())
}

// Wait blocks until every started job has finished.
func (d *Dispatcher) Wait() {
	d.jobs.Wait()
}

func (d *Dispatcher) process(ctx context.Context, sub submission) {
	defer d.jobs.Done()
	defer d.inflight.Add(-1)

	log := d.logger.With(slog.Int64("request", sub.req.RequestID))
	start := time.Now()

	jobCtx, cancel := context.WithTimeout(ctx, d.jobTimeout)
	defer cancel()

	err := d.safeHandle(jobCtx, sub.req, log)
	sub.handle.complete(err)

	elapsed := slog.Duration("elapsed", time.Since(start))
	switch {
	case sub.handle.abandoned.Load():
		log.Warn("request finished after acknowledgement timeout, result discarded", elapsed, slog.Any("error", err))
	case err != nil:
		log.Error("request failed", elapsed, slog.Any("error", err))
	default:
		log.Debug("request done", elapsed)
	}
}

func (d *Dispatcher) safeHandle(ctx context.Context, req IncomingRequest, log *slog.Logger) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		log.Error("request panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		err = fmt.Errorf("request %d panicked: %v", req.RequestID, r)
		if d.sender != nil {
			notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if _, sendErr := d.sender.SendText(notifyCtx, req.ChatID, req.MessageID, MsgInternalError); sendErr != nil {
				log.Warn("failed to report panic to user", slog.Any("error", sendErr))
			}
		}
	}()
	return d.handler.Handle(ctx, req)
}
