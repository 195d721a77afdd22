package model

import "context"

// Uploader publishes a terminal Outcome.
type Uploader interface {
	Upload(ctx context.Context, out Outcome) error
}

type UploadCloser interface {
	Uploader
	Close() error
}
