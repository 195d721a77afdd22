package service

// Package service implements supervision of external worker processes.
//
// Overview
// The Supervisor owns a Registry of active job ids. A job is one invocation
// of a worker executable identified by a caller supplied id. Only one job per
// id may be active at a time.
//
// Runner is a thin wrapper around os/exec:
//   - starts the process in its own process group
//   - captures stdout and stderr into separate buffers
//   - passes stderr lines to an optional callback
//   - closes its Done channel once the process exited
//
// Data flow:
//
//	Supervisor              Registry               Runner{cmd}
//	    |                      |                       |
//	RunJob -> Preflight        |                       |
//	    | Workers.Command      |                       |
//	    | Register(id) ------->|                       |
//	    | Start() ------------------------------------>| os/exec.Start + Wait() in goroutine
//	    | watch(): select gone | Done | ctx.Done       |
//	    |<------ gone ---------| (CancelJob)           |
//	    |  Kill() ------------------------------------>| kill(-pgid)
//	    |<------ Done ---------------------------------| (process exits)
//	    | Unregister(id) ----->|                       |
//	    | Decode(Result)                               |
//	    | publish(Outcome) to uploaders
//
// Invariants:
//   - Every job produces exactly one terminal Outcome.
//   - Once a cancel is observed the job is never reported as succeeded.
//   - Whoever removes the id from the Registry first decides between
//     completion and cancellation.
//   - The registry lock is never held while spawning or waiting.
//   - No timeout is enforced, callers cancel jobs with CancelJob.
//
// internal/service/supervisor_test.go is the best source about how to
// properly use the Supervisor struct.
