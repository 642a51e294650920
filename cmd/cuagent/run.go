package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/v0xg/cuagent/internal/gifgen"
	"github.com/v0xg/cuagent/internal/jobs"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Run one task and print the final job as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				a.close(closeCtx)
			}()

			job, err := runJob(ctx, a.jobs, strings.Join(args, " "))
			if err != nil {
				return err
			}

			if a.recorder != nil {
				rc := a.cfg.Record
				size, err := a.recorder.Save(rc.Output, gifgen.Options{FPS: rc.FPS, MaxWidth: rc.MaxWidth})
				if err != nil {
					a.logger.Warn("Failed to write recording", zap.String("path", rc.Output), zap.Error(err))
				} else {
					fmt.Fprintf(os.Stderr, "✓ Saved recording to %s (%.1f KB)\n", rc.Output, float64(size)/1024)
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(job); err != nil {
				return err
			}
			if job.Status == jobs.StatusFailed {
				return fmt.Errorf("job %s failed: %s", job.ID, job.Error)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringP("record", "o", "", "Write an animated GIF of the run to this path")
	flags.Int("fps", 2, "Frames per second of the recording")
	flags.Uint("max-width", 800, "Maximum width of the recording")
	flags.Bool("markers", true, "Draw clicks and scrolls on the recording")
	bindFlags(flags, map[string]string{
		"record.output":    "record",
		"record.fps":       "fps",
		"record.max_width": "max-width",
		"record.markers":   "markers",
	})
	return cmd
}

// runJob starts the task and waits for it. An interrupt cancels the job and
// still returns its final state.
func runJob(ctx context.Context, registry *jobs.Registry, prompt string) (jobs.Job, error) {
	id, err := registry.Start(prompt)
	if err != nil {
		return jobs.Job{}, err
	}

	job, err := registry.Wait(ctx, id)
	if err == nil {
		return job, nil
	}
	if ctx.Err() == nil {
		return jobs.Job{}, err
	}

	_ = registry.Cancel(id)
	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return registry.Wait(waitCtx, id)
}
