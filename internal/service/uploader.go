package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/tutoralloc/allocator/internal/model"
)

// WriteUploader writes every outcome as a single JSON line.
type WriteUploader struct {
	mx *sync.Mutex
	w  io.Writer
}

func NewWriteUploader(w io.Writer) WriteUploader {
	return WriteUploader{mx: &sync.Mutex{}, w: w}
}

func (u WriteUploader) Upload(_ context.Context, out model.Outcome) error {
	b, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encoding outcome: %w", err)
	}
	b = append(b, '\n')
	if u.mx != nil {
		u.mx.Lock()
		defer u.mx.Unlock()
	}
	w := u.w
	if w == nil {
		w = os.Stdout
	}
	_, err = w.Write(b)
	return err
}

// OSRootUploader stores every outcome as a file inside a directory.
type OSRootUploader struct {
	root *os.Root
}

func NewOSRootUploader(path string) (*OSRootUploader, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating outcome dir: %w", err)
	}
	root, err := os.OpenRoot(path)
	if err != nil {
		return nil, err
	}
	return &OSRootUploader{root: root}, nil
}

var unsafeNameRx = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileName returns the name under which out is stored.
func FileName(out model.Outcome) string {
	ts := out.Stopped
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return "allocator-" + unsafeNameRx.ReplaceAllString(out.JobID, "_") + "-" + ts.Format("2006-01-02-15-04-05") + ".json"
}

func (u *OSRootUploader) Upload(ctx context.Context, out model.Outcome) error {
	if u.root == nil {
		return errors.New("root already closed")
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding outcome: %w", err)
	}

	path := FileName(out)
	f, err := u.root.Create(path)
	if err != nil {
		return fmt.Errorf("creating outcome file: %w", err)
	}
	_, err = f.Write(b)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("saving outcome: %w", err)
	}
	err = f.Close()
	if err != nil {
		return fmt.Errorf("closing outcome file: %w", err)
	}
	slog.DebugContext(ctx, "outcome saved", "path", path)
	return nil
}

func (u *OSRootUploader) Close() error {
	if u.root == nil {
		return errors.New("uploader already closed")
	}
	err := u.root.Close()
	u.root = nil
	return err
}
