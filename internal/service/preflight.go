package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tutoralloc/allocator/internal/model"
)

// Preflight checks both input paths of req exist, are regular files and
// have one of the allowed extensions (case insensitive, without a dot).
func Preflight(req model.Request, extensions []string) error {
	for _, in := range []struct {
		name string
		path string
	}{
		{"tutors", req.TutorsPath},
		{"courses", req.CoursesPath},
	} {
		if in.path == "" {
			return fmt.Errorf("%w: %s file not specified", model.ErrInvalidInput, in.name)
		}
		info, err := os.Stat(in.path)
		if err != nil {
			return fmt.Errorf("%w: %s file does not exist: %s", model.ErrInvalidInput, in.name, in.path)
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("%w: %s file is not a regular file: %s", model.ErrInvalidInput, in.name, in.path)
		}
		if !hasExtension(in.path, extensions) {
			return fmt.Errorf("%w: %s file must have one of extensions %v: %s", model.ErrInvalidInput, in.name, extensions, in.path)
		}
	}
	return nil
}

func hasExtension(path string, extensions []string) bool {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return false
	}
	for _, allowed := range extensions {
		if strings.EqualFold(ext, strings.TrimPrefix(allowed, ".")) {
			return true
		}
	}
	return false
}
