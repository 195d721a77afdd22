package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/tutoralloc/allocator/internal/model"
)

var (
	ErrNotStarted     = errors.New("process not started")
	ErrAlreadyStarted = errors.New("process already started")
)

// waitDelay bounds the time Wait waits for output pipes held open by
// grandchildren after the worker itself exits or is killed.
const waitDelay = time.Second

// StderrFunc receives every line the worker writes to stderr.
type StderrFunc func(ctx context.Context, line string)

type Command struct {
	Path string
	Args []string
	Env  []string // nil => inherit the environment
}

type Result struct {
	Path    string
	Args    []string
	Started time.Time
	Stopped time.Time
	State   *os.ProcessState
	Stdout  *bytes.Buffer
	Stderr  *bytes.Buffer
	Err     error
}

// ExitCode returns the exit code of the process or -1 if it has not exited
// or was terminated by a signal.
func (r Result) ExitCode() int {
	if r.State == nil {
		return -1
	}
	return r.State.ExitCode()
}

// Runner owns exactly one worker process. It is a thin wrapper around os/exec:
//   - starts the process in its own process group
//   - accumulates stdout and stderr into independent buffers
//   - optionally passes stderr lines to a StderrFunc
//   - closes the Done channel once the process has exited
//
// Output must not be read before Done is closed.
type Runner struct {
	mx         sync.Mutex
	started    bool
	reaped     bool // cmd.Wait returned, the pid may be reused
	cmd        *exec.Cmd
	done       chan struct{}
	result     Result
	stderrFunc StderrFunc
}

func NewRunner() *Runner {
	return &Runner{
		done:   make(chan struct{}),
		result: Result{Err: ErrNotStarted},
	}
}

// WithStderrFunc must be called before Start.
func (r *Runner) WithStderrFunc(f StderrFunc) *Runner {
	r.stderrFunc = f
	return r
}

// Start spawns the process and returns immediately. Spawn failures are
// returned wrapped in model.ErrSpawn and close the Done channel.
func (r *Runner) Start(ctx context.Context, proto Command) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.started {
		return ErrAlreadyStarted
	}
	r.started = true

	r.result = Result{
		Path:   proto.Path,
		Args:   append([]string(nil), proto.Args...),
		Stdout: &bytes.Buffer{},
		Stderr: &bytes.Buffer{},
	}

	cmd := exec.Command(proto.Path, proto.Args...)
	cmd.Env = proto.Env
	cmd.Stdout = r.result.Stdout
	stderr := &stderrWriter{ctx: ctx, buf: r.result.Stderr, fn: r.stderrFunc}
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	setupProcess(cmd)

	r.result.Started = time.Now().UTC()
	if err := cmd.Start(); err != nil {
		r.result.Stopped = time.Now().UTC()
		r.result.Err = fmt.Errorf("%w: %w", model.ErrSpawn, err)
		close(r.done)
		return r.result.Err
	}
	slog.DebugContext(ctx, "worker started", "path", proto.Path, "args", proto.Args, "pid", cmd.Process.Pid)

	r.cmd = cmd
	go r.wait(cmd, stderr)
	return nil
}

func (r *Runner) wait(cmd *exec.Cmd, stderr *stderrWriter) {
	err := cmd.Wait()
	stopped := time.Now().UTC()

	r.mx.Lock()
	r.reaped = true
	r.result.Stopped = stopped
	r.result.State = cmd.ProcessState
	r.result.Err = err
	r.mx.Unlock()

	stderr.flush()
	close(r.done)
}

// Done is closed when the process has exited or failed to start.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// TryWait is a non-blocking poll: it returns the final result and true once
// the process has exited, otherwise false.
func (r *Runner) TryWait() (Result, bool) {
	select {
	case <-r.done:
		return r.Result(), true
	default:
		return Result{}, false
	}
}

// Wait blocks until the process exits or ctx is done.
func (r *Runner) Wait(ctx context.Context) (Result, error) {
	select {
	case <-r.done:
		return r.Result(), nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Kill terminates the process and its group. Killing an exited process is a
// no-op. Output written after the signal is best effort only.
//
// The signal is sent under the lock wait takes right after cmd.Wait returns,
// which keeps the window for signaling a recycled process group minimal.
func (r *Runner) Kill() error {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.cmd == nil {
		return ErrNotStarted
	}
	if r.reaped {
		return nil
	}
	err := killProcess(r.cmd)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// Result returns a snapshot of the last known state.
func (r *Runner) Result() Result {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.result
}

// stderrWriter accumulates everything and splits lines for the StderrFunc.
// It is written by the single os/exec copying goroutine only.
type stderrWriter struct {
	ctx  context.Context
	buf  *bytes.Buffer
	line []byte
	fn   StderrFunc
}

func (w *stderrWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	if w.fn == nil {
		return len(p), nil
	}
	w.line = append(w.line, p...)
	for {
		i := bytes.IndexByte(w.line, '\n')
		if i < 0 {
			break
		}
		w.fn(w.ctx, string(bytes.TrimRight(w.line[:i], "\r")))
		w.line = w.line[i+1:]
	}
	return len(p), nil
}

func (w *stderrWriter) flush() {
	if w.fn != nil && len(w.line) > 0 {
		w.fn(w.ctx, string(w.line))
	}
	w.line = nil
}
