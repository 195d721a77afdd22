package main

import (
	"log/slog"
	"os"

	"github.com/tutoralloc/allocator/internal/service"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve reads JSON line commands from stdin and writes outcomes to stdout",
	Long: `serve accepts one command per line on stdin:

  {"op":"run","id":"a","request":{"algorithm":"linear","tutors_path":"t.xlsx","courses_path":"c.xlsx","min_grade":5}}
  {"op":"cancel","id":"a"}
  {"op":"list"}

Every outcome is written as one JSON line on stdout. Closing stdin waits for
the running jobs, an interrupt cancels them.`,
	RunE: doServe,
}

func doServe(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)

	supervisor, err := service.SupervisorFromConfig(ctx, config)
	if err != nil {
		return err
	}
	defer func() {
		if err := supervisor.Close(); err != nil {
			slog.WarnContext(ctx, "closing supervisor", "error", err)
		}
	}()

	slog.InfoContext(ctx, "serving", "workers", config.Workers.Dir)
	return supervisor.Serve(ctx, os.Stdin, os.Stdout)
}
