package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/tutoralloc/allocator/internal/model"
	"github.com/tutoralloc/allocator/internal/parallel"
	"github.com/tutoralloc/allocator/internal/service"
	"gopkg.in/yaml.v3"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const defaultParallel = 2

var flagParallel int

var batchCmd = &cobra.Command{
	Use:   "batch <manifest.yaml>",
	Short: "batch executes all jobs listed in a manifest",
	Args:  cobra.ExactArgs(1),
	RunE:  doBatch,
}

func init() {
	batchCmd.Flags().IntVar(&flagParallel, "parallel", 0, "maximum number of jobs running at once, overrides the manifest")
}

// Manifest lists the jobs of a batch:
//
//	parallel: 2
//	jobs:
//	  - id: spring
//	    algorithm: genetic
//	    tutors_path: tutors.xlsx
//	    courses_path: courses.xlsx
//	    min_grade: 7
//	    preference_flag: 1
//	    generations: 100
//	    population: 50
type Manifest struct {
	Parallel int   `yaml:"parallel,omitempty"`
	Jobs     []Job `yaml:"jobs"`
}

type Job struct {
	ID            string `yaml:"id,omitempty"`
	model.Request `yaml:",inline"`
}

// LoadManifest decodes a manifest and assigns random ids to jobs without one.
func LoadManifest(r io.Reader) (Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("decoding manifest: %w", err)
	}
	if len(m.Jobs) == 0 {
		return Manifest{}, errors.New("manifest has no jobs")
	}
	seen := make(map[string]struct{}, len(m.Jobs))
	for i := range m.Jobs {
		if m.Jobs[i].ID == "" {
			m.Jobs[i].ID = uuid.NewString()
		}
		if _, ok := seen[m.Jobs[i].ID]; ok {
			return Manifest{}, fmt.Errorf("duplicate job id %q", m.Jobs[i].ID)
		}
		seen[m.Jobs[i].ID] = struct{}{}
	}
	if m.Parallel <= 0 {
		m.Parallel = defaultParallel
	}
	return m, nil
}

func doBatch(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening manifest: %w", err)
	}
	manifest, err := LoadManifest(f)
	_ = f.Close()
	if err != nil {
		return err
	}
	if flagParallel > 0 {
		manifest.Parallel = flagParallel
	}

	supervisor, err := service.SupervisorFromConfig(ctx, config, service.NewWriteUploader(os.Stdout))
	if err != nil {
		return err
	}
	defer func() {
		if err := supervisor.Close(); err != nil {
			slog.WarnContext(ctx, "closing supervisor", "error", err)
		}
	}()

	return runBatch(ctx, supervisor, manifest)
}

func runBatch(ctx context.Context, supervisor *service.Supervisor, manifest Manifest) error {
	run := func(ctx context.Context, job Job) (model.Outcome, error) {
		out, err := supervisor.RunJob(ctx, job.ID, job.Request)
		if err != nil {
			return model.Outcome{JobID: job.ID}, fmt.Errorf("job %s: %w", job.ID, err)
		}
		return out, nil
	}

	var errs []error
	var succeeded int
	for out, err := range parallel.NewMap(manifest.Parallel, run).Iter(ctx, slices.Values(manifest.Jobs)) {
		if err != nil {
			slog.ErrorContext(ctx, "job not started", "error", err)
			errs = append(errs, err)
			continue
		}
		if err := outcomeErr(out); err != nil {
			errs = append(errs, err)
			continue
		}
		succeeded++
	}
	slog.InfoContext(ctx, "batch finished", "jobs", len(manifest.Jobs), "succeeded", succeeded)
	if ctx.Err() != nil {
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}
