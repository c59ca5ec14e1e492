package backend

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// ServiceContext is built once at startup and handed to the HTTP layer.
// The dispatcher is published only after its Run loop has started.
type ServiceContext struct {
	Config Config
	Logger *slog.Logger
	Dedup  *DuplicateCache

	dispatcher atomic.Pointer[Dispatcher]
}

func NewServiceContext(cfg Config, logger *slog.Logger) *ServiceContext {
	if logger == nil {
		logger = Logger
	}
	return &ServiceContext{
		Config: cfg,
		Logger: logger,
		Dedup:  NewDuplicateCache(cfg.Server.DedupSize),
	}
}

// Dispatcher returns the running dispatcher, or nil while starting.
func (s *ServiceContext) Dispatcher() *Dispatcher {
	return s.dispatcher.Load()
}

// StartDispatcher runs d on its own goroutine and publishes it once Run has
// begun. The returned channel receives Run's result.
func (s *ServiceContext) StartDispatcher(ctx context.Context, d *Dispatcher) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx)
	}()
	<-d.Started()
	s.dispatcher.Store(d)
	return done
}
