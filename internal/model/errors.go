package model

import (
	"errors"
)

var (
	// pre-flight and request errors, never reach a worker
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidAlgorithm  = errors.New("invalid algorithm")
	ErrMissingParameters = errors.New("missing parameters")
	ErrJobInProgress     = errors.New("job in progress")

	// OS refused to create the worker process
	ErrSpawn = errors.New("spawn failed")

	// worker exited 0, but stdout is not a JSON document
	ErrDecode = errors.New("decoding worker output")
	// worker exited non-zero or was terminated by a signal
	ErrWorkerFailure = errors.New("worker failed")
	// a job goroutine panicked
	ErrInternal = errors.New("internal error")
)
