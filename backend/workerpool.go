package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned by Do after Close.
var ErrPoolClosed = errors.New("worker pool closed")

const DefaultBlockingWorkers = 8

type poolTask struct {
	ctx    context.Context
	fn     func(context.Context) error
	result chan error
}

// WorkerPool runs blocking operations (yt-dlp, ffmpeg, thumbnail downloads)
// on a fixed set of goroutines so a slow download only ties up one worker.
type WorkerPool struct {
	jobChan chan poolTask
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	busy    atomic.Int32
	logger  *slog.Logger
}

// NewWorkerPool starts size workers.
func NewWorkerPool(size int, logger *slog.Logger) *WorkerPool {
	if size <= 0 {
		size = DefaultBlockingWorkers
	}
	if logger == nil {
		logger = Logger
	}
	p := &WorkerPool{
		jobChan: make(chan poolTask),
		stop:    make(chan struct{}),
		logger:  componentLogger(logger, "workerpool"),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(workerID int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stop:
			return
		case task := <-p.jobChan:
			task.result <- p.run(workerID, task)
		}
	}
}

func (p *WorkerPool) run(workerID int, task poolTask) (err error) {
	if err := task.ctx.Err(); err != nil {
		return err
	}
	p.busy.Add(1)
	defer p.busy.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("blocking task panicked", slog.Int("worker", workerID), slog.Any("panic", r))
			err = fmt.Errorf("blocking task panicked: %v", r)
		}
	}()
	return task.fn(task.ctx)
}

// Do runs fn on a worker and waits for it. If ctx ends before a worker picks
// the task up, Do returns ctx.Err() without running fn. Once running, fn is
// expected to honour ctx itself.
func (p *WorkerPool) Do(ctx context.Context, fn func(context.Context) error) error {
	task := poolTask{ctx: ctx, fn: fn, result: make(chan error, 1)}

	select {
	case <-p.stop:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	case p.jobChan <- task:
	}

	return <-task.result
}

// Busy reports how many workers are running a task.
func (p *WorkerPool) Busy() int {
	return int(p.busy.Load())
}

// Close stops the workers after their current task.
func (p *WorkerPool) Close() {
	p.once.Do(func() {
		close(p.stop)
	})
	p.wg.Wait()
}
