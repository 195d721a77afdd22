package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type Status int

const (
	StatusRunning Status = iota
	StatusSucceeded
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "running":
		*s = StatusRunning
	case "succeeded":
		*s = StatusSucceeded
	case "failed":
		*s = StatusFailed
	case "cancelled":
		*s = StatusCancelled
	default:
		return fmt.Errorf("unknown status %q", string(text))
	}
	return nil
}

// Outcome is the terminal result of a job. Exactly one is produced per job.
type Outcome struct {
	JobID    string          `json:"job_id"`
	Status   Status          `json:"status"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Message  string          `json:"message,omitempty"`
	ExitCode int             `json:"exit_code"`
	Started  time.Time       `json:"started"`
	Stopped  time.Time       `json:"stopped"`
	// Err wraps one of ErrDecode, ErrWorkerFailure or ErrInternal on failure
	Err error `json:"-"`
}

func Succeeded(id string, payload json.RawMessage) Outcome {
	return Outcome{JobID: id, Status: StatusSucceeded, Payload: payload}
}

// Failed returns a failed outcome. Message is the human readable text shown
// to users, falling back to err when empty.
func Failed(id string, message string, err error) Outcome {
	if message == "" && err != nil {
		message = err.Error()
	}
	return Outcome{JobID: id, Status: StatusFailed, Message: message, Err: err, ExitCode: -1}
}

func Cancelled(id string) Outcome {
	return Outcome{JobID: id, Status: StatusCancelled, ExitCode: -1}
}
