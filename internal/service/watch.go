package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/tutoralloc/allocator/internal/model"
)

// watch drives one job from Running to exactly one terminal state. It
// suspends until one of the following happens:
//
//  1. gone is closed (the id was unregistered) => kill the process, Cancelled
//  2. the process exits => Unregister the id. If another caller removed it
//     first the cancellation wins and the outcome is Cancelled, otherwise the
//     result is decoded to Succeeded or Failed.
//  3. ctx is done => same as 1, the registry entry is removed.
//
// Cancellation is checked before completion, so once a cancel is observed the
// job never reports Succeeded.
func watch(ctx context.Context, reg *Registry, id string, gone <-chan struct{}, runner *Runner) model.Outcome {
	select {
	case <-gone:
		return cancel(ctx, id, runner)
	default:
	}

	select {
	case <-gone:
		return cancel(ctx, id, runner)
	case <-ctx.Done():
		reg.Unregister(id)
		slog.DebugContext(ctx, "context done, cancelling job", "error", ctx.Err())
		return cancel(ctx, id, runner)
	case <-runner.Done():
		if !reg.Unregister(id) {
			slog.DebugContext(ctx, "job exited after cancel was requested")
			return cancel(ctx, id, runner)
		}
		res, _ := runner.TryWait()
		slog.DebugContext(ctx, "worker exited",
			"exit_code", res.ExitCode(),
			"elapsed", res.Stopped.Sub(res.Started).String(),
		)
		return Decode(id, res)
	}
}

// cancel kills the process and reaps it. Output is discarded.
func cancel(ctx context.Context, id string, runner *Runner) model.Outcome {
	if err := runner.Kill(); err != nil {
		slog.WarnContext(ctx, "killing worker failed", "error", err)
	}
	// bounded by waitDelay once the process is dead
	<-runner.Done()
	out := model.Cancelled(id)
	out.Started = runner.Result().Started
	out.Stopped = time.Now().UTC()
	return out
}
