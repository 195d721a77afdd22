package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tutoralloc/allocator/internal/model"
	"github.com/tutoralloc/allocator/internal/service"

	"github.com/stretchr/testify/require"
)

func TestLoadManifest(t *testing.T) {
	t.Parallel()
	const manifest = `
parallel: 3
jobs:
  - id: spring
    algorithm: genetic
    tutors_path: tutors.xlsx
    courses_path: courses.xlsx
    min_grade: 7
    preference_flag: 1
    generations: 100
    population: 50
  - algorithm: simplex
    tutors_path: tutors.xlsx
    courses_path: courses.xlsx
`
	m, err := LoadManifest(strings.NewReader(manifest))
	require.NoError(t, err)
	require.Equal(t, 3, m.Parallel)
	require.Len(t, m.Jobs, 2)

	spring := m.Jobs[0]
	require.Equal(t, "spring", spring.ID)
	require.Equal(t, model.AlgorithmGenetic, spring.Algorithm)
	require.Equal(t, 7.0, spring.MinGrade)
	require.Equal(t, 1, spring.PreferenceFlag)
	require.NotNil(t, spring.Generations)
	require.Equal(t, 100, *spring.Generations)
	require.Equal(t, 50, *spring.Population)

	require.NotEmpty(t, m.Jobs[1].ID)
	require.Nil(t, m.Jobs[1].Generations)
}

func TestLoadManifestErrors(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario string
		given    string
		then     string
	}{
		{"no jobs", "parallel: 1\n", "manifest has no jobs"},
		{"unknown field", "jobs:\n  - algoritm: linear\n", "field algoritm not found"},
		{"duplicate", "jobs:\n  - id: a\n  - id: a\n", `duplicate job id "a"`},
		{"not yaml", "jobs: [", "decoding manifest"},
	}
	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			_, err := LoadManifest(strings.NewReader(tt.given))
			require.ErrorContains(t, err, tt.then)
		})
	}
}

func TestManifestDefaultParallel(t *testing.T) {
	t.Parallel()
	m, err := LoadManifest(strings.NewReader("jobs:\n  - id: a\n"))
	require.NoError(t, err)
	require.Equal(t, defaultParallel, m.Parallel)
}

func TestStoreConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "allocator.yaml")
	cfg := model.DefaultConfig(t.Context())
	require.NoError(t, storeConfig(path, cfg))
	require.True(t, exists(path))
	require.False(t, exists(filepath.Dir(path)))
	require.False(t, exists(filepath.Join(t.TempDir(), "missing.yaml")))

	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = f.Close()
	})
	loaded, err := model.LoadConfig(f)
	require.NoError(t, err)
	require.Equal(t, cfg.Workers, loaded.Workers)
}

func TestWorkersDir(t *testing.T) {
	t.Parallel()
	require.Empty(t, workersDir(""))
	abs := t.TempDir()
	require.Equal(t, abs, workersDir(abs))

	exe, err := os.Executable()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(filepath.Dir(exe), "binaries"), workersDir("binaries"))
}

// TestRunBatch is not parallel: it writes an executable, which must not race
// with a fork in another test.
func TestRunBatch(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}
	dir := t.TempDir()
	worker := filepath.Join(dir, "worker")
	script := "#!" + sh + "\n" + `if [ "$3" = "0" ]; then echo '{"error":"min grade required"}' >&2; exit 1; fi; echo '{"ok":true}'` + "\n"
	require.NoError(t, os.WriteFile(worker, []byte(script), 0o755))
	tutors := filepath.Join(dir, "tutors.xlsx")
	courses := filepath.Join(dir, "courses.xlsx")
	require.NoError(t, os.WriteFile(tutors, []byte("PK"), 0o644))
	require.NoError(t, os.WriteFile(courses, []byte("PK"), 0o644))

	req := model.Request{Algorithm: model.AlgorithmLinear, TutorsPath: tutors, CoursesPath: courses, MinGrade: 5}
	zero := req
	zero.MinGrade = 0
	missing := req
	missing.TutorsPath = filepath.Join(dir, "missing.xlsx")

	var buf strings.Builder
	supervisor := service.NewSupervisor(service.Workers{Dir: dir, Genetic: "worker", Linear: "worker"}, service.NewWriteUploader(&buf))

	err = runBatch(t.Context(), supervisor, Manifest{
		Parallel: 2,
		Jobs: []Job{
			{ID: "a", Request: req},
			{ID: "b", Request: req},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(buf.String(), `"status":"succeeded"`))

	err = runBatch(t.Context(), supervisor, Manifest{
		Parallel: 2,
		Jobs: []Job{
			{ID: "ok", Request: req},
			{ID: "zero", Request: zero},
			{ID: "missing", Request: missing},
		},
	})
	require.ErrorContains(t, err, "job zero failed: min grade required")
	require.ErrorIs(t, err, model.ErrInvalidInput)
	require.Zero(t, supervisor.Registry().Len())
}
