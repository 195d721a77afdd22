package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tutoralloc/allocator/internal/model"
)

const unknownFailure = "unknown failure"

// Decode turns the result of an exited worker into an outcome:
//   - exit code 0: stdout must hold exactly one JSON document, which becomes
//     the payload. Anything else is a failure wrapping model.ErrDecode.
//   - otherwise: the failure message is the "error" field of a JSON object on
//     stderr, the raw stderr text, or "unknown failure" if stderr is empty.
func Decode(id string, res Result) model.Outcome {
	var out model.Outcome
	if res.Err == nil && res.ExitCode() == 0 {
		payload, err := decodePayload(bytesOf(res.Stdout))
		if err != nil {
			out = model.Failed(id, "", err)
		} else {
			out = model.Succeeded(id, payload)
		}
	} else {
		msg := decodeFailure(bytesOf(res.Stderr))
		out = model.Failed(id, msg, fmt.Errorf("%w: %s", model.ErrWorkerFailure, msg))
	}
	out.ExitCode = res.ExitCode()
	out.Started = res.Started
	out.Stopped = res.Stopped
	return out
}

func decodePayload(stdout []byte) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(stdout))
	var doc json.RawMessage
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty output", model.ErrDecode)
		}
		return nil, fmt.Errorf("%w: %w", model.ErrDecode, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after JSON document", model.ErrDecode)
	}
	return doc, nil
}

func decodeFailure(stderr []byte) string {
	raw := strings.TrimSpace(string(stderr))
	if raw == "" {
		return unknownFailure
	}
	if msg, ok := errorField(raw); ok {
		return msg
	}
	// workers may log before the final JSON line
	if i := strings.LastIndexByte(raw, '\n'); i >= 0 {
		if msg, ok := errorField(strings.TrimSpace(raw[i+1:])); ok {
			return msg
		}
	}
	return raw
}

func errorField(s string) (string, bool) {
	var doc struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return "", false
	}
	if doc.Error == nil || *doc.Error == "" {
		return "", false
	}
	return *doc.Error, true
}

func bytesOf(b *bytes.Buffer) []byte {
	if b == nil {
		return nil
	}
	return b.Bytes()
}
