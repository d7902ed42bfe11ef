package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/workbench/internal/constants"
)

// Worker runs registered jobs on cron schedules. A job that is still running
// when its next tick arrives is skipped for that tick.
type Worker struct {
	registry *HandlerRegistry
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	running map[string]bool
	wg      sync.WaitGroup
}

// NewWorker creates a new job worker
func NewWorker(logger *slog.Logger) *Worker {
	return &Worker{
		registry: NewHandlerRegistry(),
		cron:     cron.New(cron.WithLogger(cronLogger{logger: logger})),
		logger:   logger,
		ctx:      context.Background(),
		running:  make(map[string]bool),
	}
}

// Schedule registers handler under name and runs it on spec, e.g.
// "@every 1m" or "0 3 * * *".
func (w *Worker) Schedule(name, spec string, handler JobHandler) error {
	if w.registry.HasHandler(name) {
		return fmt.Errorf("job %s already scheduled", name)
	}
	if _, err := w.cron.AddFunc(spec, func() { w.run(name) }); err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}
	w.registry.Register(name, handler)
	w.logger.Info("job scheduled", "job", name, "spec", spec)
	return nil
}

// ScheduleEvery runs handler at a fixed interval
func (w *Worker) ScheduleEvery(name string, interval time.Duration, handler JobHandler) error {
	return w.Schedule(name, "@every "+interval.String(), handler)
}

// RunNow runs the named job immediately and returns its error
func (w *Worker) RunNow(ctx context.Context, name string) error {
	handler, err := w.registry.GetHandler(name)
	if err != nil {
		return err
	}
	return w.execute(ctx, name, handler)
}

// Start begins the worker's main loop and blocks until ctx is done
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	w.logger.Info("job worker starting", "jobs", len(w.cron.Entries()))
	w.cron.Start()

	<-ctx.Done()
	w.logger.Info("job worker shutting down gracefully")
	return w.gracefulShutdown()
}

// gracefulShutdown waits for running jobs or times out
func (w *Worker) gracefulShutdown() error {
	stopped := w.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("job worker stopped")
		return nil
	case <-time.After(constants.JobGracefulShutdownTimeout):
		w.logger.Warn("shutdown timeout reached with jobs still running")
		return fmt.Errorf("jobs still running after %s", constants.JobGracefulShutdownTimeout)
	}
}

// run is the cron callback for name
func (w *Worker) run(name string) {
	handler, err := w.registry.GetHandler(name)
	if err != nil {
		w.logger.Error("scheduled job has no handler", "job", name)
		return
	}

	w.mu.Lock()
	if w.running[name] {
		w.mu.Unlock()
		w.logger.Debug("job still running, skipping tick", "job", name)
		return
	}
	w.running[name] = true
	parent := w.ctx
	w.wg.Add(1)
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.running, name)
		w.mu.Unlock()
		w.wg.Done()
	}()

	_ = w.execute(parent, name, handler)
}

func (w *Worker) execute(parent context.Context, name string, handler JobHandler) error {
	ctx, cancel := context.WithTimeout(parent, constants.JobTimeout)
	defer cancel()

	startTime := time.Now()
	if err := handler.Handle(ctx); err != nil {
		w.logger.ErrorContext(ctx, "job failed", "job", name, "error", err, "duration", time.Since(startTime))
		return err
	}

	w.logger.DebugContext(ctx, "job completed", "job", name, "duration", time.Since(startTime))
	return nil
}

// cronLogger routes cron's logging to slog
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
