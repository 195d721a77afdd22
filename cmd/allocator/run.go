package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tutoralloc/allocator/internal/model"
	"github.com/tutoralloc/allocator/internal/service"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	flagID          string
	flagTimeout     time.Duration
	flagAlgorithm   string
	flagTutors      string
	flagCourses     string
	flagMinGrade    float64
	flagPreference  int
	flagGenerations int
	flagPopulation  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run executes one allocation job and prints its outcome",
	RunE:  doRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&flagID, "id", "", "job identifier, random uuid if empty")
	f.DurationVar(&flagTimeout, "timeout", 0, "cancel the job after the given duration, 0 waits forever")
	f.StringVar(&flagAlgorithm, "algorithm", string(model.AlgorithmGenetic), "genetic, linear or simplex")
	f.StringVar(&flagTutors, "tutors", "", "path to the tutors spreadsheet")
	f.StringVar(&flagCourses, "courses", "", "path to the courses spreadsheet")
	f.Float64Var(&flagMinGrade, "min-grade", 0, "minimal grade of a tutor for a course")
	f.IntVar(&flagPreference, "preference", 0, "preference flag passed to the worker")
	f.IntVar(&flagGenerations, "generations", 0, "number of generations (genetic only)")
	f.IntVar(&flagPopulation, "population", 0, "population size (genetic only)")
	_ = runCmd.MarkFlagRequired("tutors")
	_ = runCmd.MarkFlagRequired("courses")
}

func doRun(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)

	req := model.Request{
		Algorithm:      model.Algorithm(flagAlgorithm),
		TutorsPath:     flagTutors,
		CoursesPath:    flagCourses,
		MinGrade:       flagMinGrade,
		PreferenceFlag: flagPreference,
	}
	if cmd.Flags().Changed("generations") {
		req.Generations = &flagGenerations
	}
	if cmd.Flags().Changed("population") {
		req.Population = &flagPopulation
	}

	id := flagID
	if id == "" {
		id = uuid.NewString()
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

	if flagTimeout > 0 {
		timer := time.AfterFunc(flagTimeout, func() {
			slog.WarnContext(ctx, "job timed out", "job_id", id, "timeout", flagTimeout.String())
			supervisor.CancelJob(id)
		})
		defer timer.Stop()
	}

	out, err := supervisor.RunJob(ctx, id, req)
	if err != nil {
		return err
	}
	return outcomeErr(out)
}

func outcomeErr(out model.Outcome) error {
	switch out.Status {
	case model.StatusSucceeded:
		return nil
	case model.StatusCancelled:
		return fmt.Errorf("job %s cancelled", out.JobID)
	default:
		return fmt.Errorf("job %s failed: %s", out.JobID, out.Message)
	}
}
