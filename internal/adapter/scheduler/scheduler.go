package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sm8ta/f1_dashboard_cache/internal/core/ports"
	"github.com/sm8ta/f1_dashboard_cache/internal/core/services"
)

type JobRunner interface {
	Run(ctx context.Context, job services.Job, force bool) *services.JobReport
}

// Scheduler triggers refresh jobs on cron specs. A job never overlaps with
// itself and every invocation is bounded by the job timeout.
type Scheduler struct {
	cron    *cron.Cron
	runner  JobRunner
	logger  ports.LoggerPort
	timeout time.Duration

	jobs map[services.Job]cron.Job

	// running tracks invocations started outside cron: run-on-start and RunNow.
	mu      sync.Mutex
	stopped bool
	running sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

func New(runner JobRunner, logger ports.LoggerPort, timeout time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger{logger}),
		),
		runner:  runner,
		logger:  logger,
		timeout: timeout,
		jobs:    make(map[services.Job]cron.Job),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers job under a standard five field spec or a descriptor such as
// "@every 1m".
func (s *Scheduler) Add(spec string, job services.Job) error {
	const op = "scheduler.Add"

	if _, ok := s.jobs[job]; ok {
		return fmt.Errorf("%s: job %q already scheduled", op, job)
	}

	wrapped := cron.NewChain(cron.SkipIfStillRunning(cronLogger{s.logger})).Then(cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()
		s.runner.Run(ctx, job, false)
	}))

	if _, err := s.cron.AddJob(spec, wrapped); err != nil {
		return fmt.Errorf("%s: %s: %w", op, job, err)
	}
	s.jobs[job] = wrapped

	s.logger.Info("Refresh job scheduled", map[string]interface{}{
		"job":  job,
		"spec": spec,
	})
	return nil
}

// Start begins firing schedules. With runOnStart every registered job is
// also triggered once immediately.
func (s *Scheduler) Start(runOnStart bool) {
	s.cron.Start()
	if !runOnStart {
		return
	}
	for _, job := range s.jobs {
		job := job
		if !s.track() {
			return
		}
		go func() {
			defer s.running.Done()
			job.Run()
		}()
	}
}

// RunNow executes job synchronously unless an invocation is already running.
func (s *Scheduler) RunNow(job services.Job) error {
	wrapped, ok := s.jobs[job]
	if !ok {
		return fmt.Errorf("job %q is not scheduled", job)
	}
	if !s.track() {
		return fmt.Errorf("scheduler stopped")
	}
	defer s.running.Done()
	wrapped.Run()
	return nil
}

// track registers an invocation before it starts so Stop cannot miss it.
func (s *Scheduler) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.running.Add(1)
	return true
}

// Stop halts the schedules and waits for running jobs until ctx expires,
// after which their contexts are cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	defer s.cancel()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts the LoggerPort to cron's key/value logger.
type cronLogger struct {
	logger ports.LoggerPort
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, fields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	f := fields(keysAndValues)
	f["error"] = err.Error()
	l.logger.Error("cron: "+msg, f)
}

func fields(keysAndValues []interface{}) map[string]interface{} {
	f := make(map[string]interface{}, len(keysAndValues)/2+1)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
