package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/tiered-memory/internal/config"
	"github.com/rcliao/tiered-memory/internal/engine"
	"github.com/rcliao/tiered-memory/internal/logging"
	"github.com/rcliao/tiered-memory/internal/scheduler"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled maintenance jobs until interrupted",
		Run:   runServe,
	}

	cmd.Flags().Duration("job-timeout", 10*time.Minute, "Upper bound on a single job run")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	timeout, _ := cmd.Flags().GetDuration("job-timeout")

	cfg := loadConfig()
	logger := newLogger(cfg)
	e, closeFn := openEngine(cfg, logger)
	defer closeFn()

	sched := scheduler.New(timeout, logging.Component(logger, "serve"))
	if err := addJobs(sched, e, cfg.Schedule); err != nil {
		exitErr("schedule", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched.Start()
	logger.Info().Int("jobs", sched.Entries()).Str("db", cfg.DBPath).Msg("Serving")
	<-ctx.Done()

	logger.Info().Msg("Shutting down")
	shutdown, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sched.Stop(shutdown); err != nil {
		logger.Warn().Err(err).Msg("Jobs still running at shutdown")
	}
}

func addJobs(sched *scheduler.Scheduler, e *engine.Engine, spec config.ScheduleConfig) error {
	jobs := []struct {
		name string
		spec string
		job  scheduler.Job
	}{
		{"sweep", spec.Sweep, func(ctx context.Context) error {
			if r := e.SweepSessionToLongTerm(ctx, false); r.Error != "" {
				return errors.New(r.Error)
			}
			return nil
		}},
		{"merge", spec.Merge, func(ctx context.Context) error {
			_, err := e.MergeSimilar(ctx)
			return err
		}},
		{"forget", spec.Forget, func(ctx context.Context) error {
			_, err := e.Forget(ctx, 0)
			return err
		}},
		{"decay", spec.Decay, func(context.Context) error {
			e.DecayWorking()
			return nil
		}},
	}
	for _, j := range jobs {
		if err := sched.Add(j.name, j.spec, j.job); err != nil {
			return err
		}
	}
	return nil
}
