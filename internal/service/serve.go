package service

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/tutoralloc/allocator/internal/model"
)

const (
	OpRun    = "run"
	OpCancel = "cancel"
	OpList   = "list"
)

// maxLine limits the size of one protocol message.
const maxLine = 1024 * 1024

// Message is one line read by Serve.
type Message struct {
	Op      string         `json:"op"`
	ID      string         `json:"id,omitempty"`
	Request *model.Request `json:"request,omitempty"`
}

// Reply is one line written by Serve.
type Reply struct {
	Op      string         `json:"op"`
	ID      string         `json:"id,omitempty"`
	Outcome *model.Outcome `json:"outcome,omitempty"`
	Active  []string       `json:"active,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Serve reads newline delimited Messages from r and writes Replies to w:
//
//	{"op":"run","id":"a","request":{...}}  => {"op":"run","id":"a","outcome":{...}} once the job ends
//	{"op":"cancel","id":"a"}               => {"op":"cancel","id":"a"}
//	{"op":"list"}                          => {"op":"list","active":["a"]}
//
// Failures before a worker runs are replied with the error field. Serve
// returns when r is exhausted and all jobs are done, or when ctx is done,
// which cancels the running jobs. When ctx is done and r is an io.Closer, r
// is closed to unblock the pending read. Otherwise the reading goroutine
// stays blocked until r returns.
func (s *Supervisor) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	replies := &replyWriter{w: w}
	defer s.Wait()

	for {
		select {
		case <-ctx.Done():
			if c, ok := r.(io.Closer); ok {
				if err := c.Close(); err != nil {
					slog.DebugContext(ctx, "closing input failed", "error", err)
				}
			}
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if len(line) == 0 {
				continue
			}
			s.handle(ctx, line, replies)
		}
	}
}

func (s *Supervisor) handle(ctx context.Context, line []byte, replies *replyWriter) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		replies.write(ctx, Reply{Error: "invalid message: " + err.Error()})
		return
	}

	switch msg.Op {
	case OpRun:
		if msg.ID == "" || msg.Request == nil {
			replies.write(ctx, Reply{Op: msg.Op, ID: msg.ID, Error: "run requires id and request"})
			return
		}
		err := s.Go(ctx, msg.ID, *msg.Request, func(out model.Outcome) {
			replies.write(ctx, Reply{Op: OpRun, ID: out.JobID, Outcome: &out})
		})
		if err != nil {
			replies.write(ctx, Reply{Op: msg.Op, ID: msg.ID, Error: err.Error()})
		}
	case OpCancel:
		s.CancelJob(msg.ID)
		replies.write(ctx, Reply{Op: msg.Op, ID: msg.ID})
	case OpList:
		replies.write(ctx, Reply{Op: msg.Op, Active: s.registry.List()})
	default:
		replies.write(ctx, Reply{Op: msg.Op, ID: msg.ID, Error: "unknown op"})
	}
}

type replyWriter struct {
	mx sync.Mutex
	w  io.Writer
}

func (r *replyWriter) write(ctx context.Context, reply Reply) {
	b, err := json.Marshal(reply)
	if err != nil {
		slog.ErrorContext(ctx, "encoding reply failed", "error", err)
		return
	}
	b = append(b, '\n')
	r.mx.Lock()
	defer r.mx.Unlock()
	if _, err := r.w.Write(b); err != nil {
		slog.ErrorContext(ctx, "writing reply failed", "error", err)
	}
}
