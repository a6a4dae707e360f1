package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// hook is one named lifecycle step. Either function may be nil.
type hook struct {
	name  string
	start func(context.Context) error
	stop  func(context.Context) error
}

// Lifecycle starts platform components in registration order and stops
// them in reverse.
type Lifecycle struct {
	mu      sync.Mutex
	hooks   []hook
	started bool
}

// NewLifecycle creates a new lifecycle manager.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

// OnStart registers a startup step.
func (l *Lifecycle) OnStart(name string, fn func(context.Context) error) {
	l.add(hook{name: name, start: fn})
}

// OnStop registers a shutdown step.
func (l *Lifecycle) OnStop(name string, fn func(context.Context) error) {
	l.add(hook{name: name, stop: fn})
}

// Closer is something that can be closed.
type Closer interface {
	Close() error
}

// RegisterCloser closes c on shutdown.
func (l *Lifecycle) RegisterCloser(name string, c Closer) {
	l.OnStop(name, func(context.Context) error { return c.Close() })
}

// RegisterWorker runs start on startup and closes c on shutdown or when a
// later step fails to start.
func (l *Lifecycle) RegisterWorker(name string, start func(), c Closer) {
	l.add(hook{
		name: name,
		start: func(context.Context) error {
			start()
			return nil
		},
		stop: func(context.Context) error { return c.Close() },
	})
}

func (l *Lifecycle) add(h hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, h)
}

// Start runs the startup steps. When one fails, the shutdown steps
// registered before it run and the error names the failed step.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return errors.New("lifecycle already started")
	}
	for i, h := range l.hooks {
		if h.start == nil {
			continue
		}
		if err := h.start(ctx); err != nil {
			if rbErr := l.stopFrom(ctx, i-1); rbErr != nil {
				slog.Warn("lifecycle rollback incomplete", "failed", h.name, "error", rbErr)
			}
			return fmt.Errorf("starting %s: %w", h.name, err)
		}
		slog.Debug("lifecycle step started", "name", h.name)
	}
	l.started = true
	return nil
}

// Stop runs every shutdown step, newest first, and joins their errors.
// Stopping a lifecycle that never started does nothing.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		return nil
	}
	l.started = false
	return l.stopFrom(ctx, len(l.hooks)-1)
}

// stopFrom runs shutdown steps from index last down to 0.
func (l *Lifecycle) stopFrom(ctx context.Context, last int) error {
	var errs []error
	for i := last; i >= 0; i-- {
		h := l.hooks[i]
		if h.stop == nil {
			continue
		}
		if err := h.stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping %s: %w", h.name, err))
			continue
		}
		slog.Debug("lifecycle step stopped", "name", h.name)
	}
	return errors.Join(errs...)
}

// IsStarted reports whether Start succeeded and Stop has not run since.
func (l *Lifecycle) IsStarted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}
