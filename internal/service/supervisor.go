package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tutoralloc/allocator/internal/bus"
	"github.com/tutoralloc/allocator/internal/log"
	"github.com/tutoralloc/allocator/internal/model"
)

// Supervisor is the entry point of the job execution core. It owns the
// registry of active jobs and publishes every terminal outcome to its
// uploaders. It is safe for concurrent use.
type Supervisor struct {
	workers    Workers
	extensions []string
	registry   *Registry
	uploaders  []model.Uploader
	wg         sync.WaitGroup
}

func NewSupervisor(workers Workers, uploaders ...model.Uploader) *Supervisor {
	return &Supervisor{
		workers:    workers,
		extensions: []string{model.DefaultExtension},
		registry:   NewRegistry(),
		uploaders:  uploaders,
	}
}

// SupervisorFromConfig builds a Supervisor with the uploaders enabled in
// cfg.Service plus the extra ones.
func SupervisorFromConfig(ctx context.Context, cfg model.Config, extra ...model.Uploader) (*Supervisor, error) {
	if cfg.Version != 0 {
		return nil, fmt.Errorf("config version %d is not supported, expected 0", cfg.Version)
	}
	ups, err := uploaders(ctx, cfg.Service)
	if err != nil {
		return nil, fmt.Errorf("initializing uploaders: %w", err)
	}
	s := NewSupervisor(WorkersFromConfig(cfg.Workers), append(extra, ups...)...)
	s.extensions = cfg.Extensions()
	return s, nil
}

// WithExtensions changes the input file extensions accepted by pre-flight.
func (s *Supervisor) WithExtensions(extensions ...string) *Supervisor {
	s.extensions = extensions
	return s
}

// Registry exposes the set of active jobs.
func (s *Supervisor) Registry() *Registry {
	return s.registry
}

// RunJob validates req, spawns its worker and blocks until the job reaches a
// terminal state. Errors are returned only for failures before the worker
// runs: model.ErrInvalidInput, model.ErrInvalidAlgorithm,
// model.ErrMissingParameters, model.ErrJobInProgress and model.ErrSpawn.
// Everything after the spawn is reported as an Outcome.
func (s *Supervisor) RunJob(ctx context.Context, id string, req model.Request) (model.Outcome, error) {
	j, err := s.start(ctx, id, req)
	if err != nil {
		return model.Outcome{}, err
	}
	return s.run(j), nil
}

// Go is the asynchronous RunJob. The job is registered and spawned before Go
// returns, so a following CancelJob always reaches it. The outcome is passed
// to done from the job goroutine. Use Wait to wait for all started jobs.
func (s *Supervisor) Go(ctx context.Context, id string, req model.Request, done func(model.Outcome)) error {
	j, err := s.start(ctx, id, req)
	if err != nil {
		return err
	}
	s.wg.Go(func() {
		out := s.run(j)
		if done != nil {
			done(out)
		}
	})
	return nil
}

// Wait blocks until all jobs started with Go are done.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

type job struct {
	ctx    context.Context
	id     string
	gone   <-chan struct{}
	runner *Runner
}

func (s *Supervisor) start(ctx context.Context, id string, req model.Request) (*job, error) {
	ctx = log.JobAttrs(ctx, id)

	if err := Preflight(req, s.extensions); err != nil {
		return nil, err
	}
	cmd, err := s.workers.Command(req)
	if err != nil {
		return nil, err
	}

	gone, added := s.registry.Register(id)
	if !added {
		return nil, fmt.Errorf("%w: %s", model.ErrJobInProgress, id)
	}

	runner := NewRunner().WithStderrFunc(logStderr)
	if err := runner.Start(ctx, cmd); err != nil {
		s.registry.Unregister(id)
		slog.ErrorContext(ctx, "worker spawn failed", "path", cmd.Path, "error", err)
		return nil, err
	}
	slog.InfoContext(ctx, "job started", "algorithm", req.Algorithm)

	return &job{ctx: ctx, id: id, gone: gone, runner: runner}, nil
}

// run watches a started job. A panic is fatal to this job only.
func (s *Supervisor) run(j *job) (out model.Outcome) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		slog.ErrorContext(j.ctx, "job panicked", "panic", r)
		s.registry.Unregister(j.id)
		_ = j.runner.Kill()
		out = model.Failed(j.id, "", fmt.Errorf("%w: %v", model.ErrInternal, r))
		s.publish(j.ctx, out)
	}()

	out = watch(j.ctx, s.registry, j.id, j.gone, j.runner)
	slog.InfoContext(j.ctx, "job finished", "status", out.Status.String(), "exit_code", out.ExitCode)
	s.publish(j.ctx, out)
	return out
}

// CancelJob requests cancellation of job id. It never fails, unknown or
// already finished ids are ignored. The process is killed asynchronously by
// the goroutine running the job.
func (s *Supervisor) CancelJob(id string) {
	if s.registry.Unregister(id) {
		slog.Debug("job cancel requested", "job_id", id)
	}
}

// CancelAll cancels every active job.
func (s *Supervisor) CancelAll() {
	for _, id := range s.registry.List() {
		s.CancelJob(id)
	}
}

// Close waits for the jobs started with Go and releases the uploaders. It
// must not be called concurrently with RunJob.
func (s *Supervisor) Close() error {
	s.Wait()
	var errs []error
	for _, u := range s.uploaders {
		if closer, ok := u.(model.UploadCloser); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	s.uploaders = nil
	return errors.Join(errs...)
}

func (s *Supervisor) publish(ctx context.Context, out model.Outcome) {
	var errs []error
	for _, u := range s.uploaders {
		if err := upload(ctx, u, out); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		slog.ErrorContext(ctx, "publishing outcome failed", "error", err)
	}
}

// upload isolates the job from a misbehaving uploader.
func upload(ctx context.Context, u model.Uploader, out model.Outcome) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: uploader panicked: %v", model.ErrInternal, r)
		}
	}()
	return u.Upload(ctx, out)
}

func logStderr(ctx context.Context, line string) {
	slog.DebugContext(ctx, "worker stderr", "line", line)
}

func uploaders(ctx context.Context, cfg model.Service) ([]model.Uploader, error) {
	var ups []model.Uploader
	if cfg.Dir != "" {
		u, err := NewOSRootUploader(cfg.Dir)
		if err != nil {
			return nil, err
		}
		ups = append(ups, u)
	}

	if cfg.Callback != nil && cfg.Callback.Enabled {
		u, err := NewCallbackUploader(cfg.Callback.URL)
		if err != nil {
			return nil, err
		}
		ups = append(ups, u)
	}

	if cfg.NATS != nil && cfg.NATS.Enabled {
		subject := cfg.NATS.Subject
		if subject == "" {
			subject = model.DefaultNATSSubject
		}
		u, err := bus.NewPublisher(cfg.NATS.URL, subject)
		if err != nil {
			closeAll(ctx, ups)
			return nil, fmt.Errorf("connecting to nats: %w", err)
		}
		ups = append(ups, u)
	}
	return ups, nil
}

func closeAll(ctx context.Context, ups []model.Uploader) {
	for _, u := range ups {
		if closer, ok := u.(model.UploadCloser); ok {
			if err := closer.Close(); err != nil {
				slog.ErrorContext(ctx, "closing uploader have failed", "error", err)
			}
		}
	}
}
