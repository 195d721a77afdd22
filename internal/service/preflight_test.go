package service_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tutoralloc/allocator/internal/model"
	"github.com/tutoralloc/allocator/internal/service"

	"github.com/stretchr/testify/require"
)

func TestPreflight(t *testing.T) {
	t.Parallel()
	tutors, courses := inputs(t)
	dir := t.TempDir()
	csv := filepath.Join(dir, "tutors.csv")
	require.NoError(t, os.WriteFile(csv, []byte("a,b"), 0o644))
	upper := filepath.Join(dir, "COURSES.XLSX")
	require.NoError(t, os.WriteFile(upper, []byte("PK"), 0o644))
	noExt := filepath.Join(dir, "tutors")
	require.NoError(t, os.WriteFile(noExt, []byte("PK"), 0o644))
	xlsxDir := filepath.Join(dir, "dir.xlsx")
	require.NoError(t, os.Mkdir(xlsxDir, 0o755))

	xlsx := []string{model.DefaultExtension}

	var testCases = []struct {
		scenario   string
		tutors     string
		courses    string
		extensions []string
		then       string
	}{
		{"ok", tutors, courses, xlsx, ""},
		{"extension is case insensitive", tutors, upper, xlsx, ""},
		{"extra extension", csv, courses, []string{"xlsx", ".csv"}, ""},
		{"missing tutors", "", courses, xlsx, "tutors file not specified"},
		{"missing courses", tutors, "", xlsx, "courses file not specified"},
		{"does not exist", filepath.Join(dir, "nope.xlsx"), courses, xlsx, "tutors file does not exist"},
		{"directory", tutors, xlsxDir, xlsx, "courses file is not a regular file"},
		{"wrong extension", csv, courses, xlsx, "tutors file must have one of extensions"},
		{"no extension", noExt, courses, xlsx, "tutors file must have one of extensions"},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			req := model.Request{
				Algorithm:   model.AlgorithmLinear,
				TutorsPath:  tt.tutors,
				CoursesPath: tt.courses,
			}
			err := service.Preflight(req, tt.extensions)
			if tt.then == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, model.ErrInvalidInput)
			require.ErrorContains(t, err, tt.then)
		})
	}
}
